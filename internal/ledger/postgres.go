package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/catalog/internal/store"
	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const table = "catalog_error_ledger"

// Schema is the DDL for the ledger table.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS ` + table + ` (
	id               UUID PRIMARY KEY,
	batch_id         TEXT NOT NULL,
	kind             TEXT NOT NULL,
	row_number       INTEGER NOT NULL,
	raw_data         TEXT NOT NULL DEFAULT '',
	error_type       TEXT NOT NULL,
	error_code       TEXT NOT NULL DEFAULT '',
	message          TEXT NOT NULL,
	field_name       TEXT NOT NULL DEFAULT '',
	attempted_value  TEXT NOT NULL DEFAULT '',
	suggestion       TEXT NOT NULL DEFAULT '',
	resolved         BOOLEAN NOT NULL DEFAULT FALSE,
	resolution_notes TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS ` + table + `_batch_idx ON ` + table + ` (batch_id, row_number)`,
	`CREATE INDEX IF NOT EXISTS ` + table + `_unresolved_idx ON ` + table + ` (kind) WHERE NOT resolved`,
	`CREATE INDEX IF NOT EXISTS ` + table + `_created_idx ON ` + table + ` (created_at)`,
}

var columns = []string{
	"id", "batch_id", "kind", "row_number", "raw_data", "error_type", "error_code",
	"message", "field_name", "attempted_value", "suggestion", "resolved",
	"resolution_notes", "created_at", "updated_at",
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Postgres is a Store backed by a single table.
type Postgres struct {
	db store.DBTX
}

func NewPostgres(db store.DBTX) *Postgres {
	return &Postgres{db: db}
}

// EnsureSchema creates the ledger table if it does not exist.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	for _, stmt := range Schema {
		if _, err := p.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure ledger schema: %w", err)
		}
	}
	return nil
}

func insertQuery(e *Entry) (string, []any, error) {
	return psql.Insert(table).Columns(columns...).Values(
		e.ID, e.BatchID, e.Kind, e.RowNumber, e.RawData, e.ErrorType, e.ErrorCode,
		e.Message, e.FieldName, e.AttemptedValue, e.Suggestion, e.Resolved,
		e.ResolutionNotes, e.CreatedAt, e.UpdatedAt,
	).ToSql()
}

func (p *Postgres) Append(ctx context.Context, e *Entry) error {
	prepare(e, time.Now().UTC())
	query, args, err := insertQuery(e)
	if err != nil {
		return fmt.Errorf("build ledger insert: %w", err)
	}
	if _, err := p.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}
	return nil
}

func selectEntries() sq.SelectBuilder {
	return psql.Select(columns...).From(table)
}

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	err := row.Scan(
		&e.ID, &e.BatchID, &e.Kind, &e.RowNumber, &e.RawData, &e.ErrorType, &e.ErrorCode,
		&e.Message, &e.FieldName, &e.AttemptedValue, &e.Suggestion, &e.Resolved,
		&e.ResolutionNotes, &e.CreatedAt, &e.UpdatedAt,
	)
	return e, err
}

func (p *Postgres) list(ctx context.Context, b sq.SelectBuilder) ([]Entry, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ledger query: %w", err)
	}
	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (p *Postgres) Get(ctx context.Context, id string) (Entry, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Entry{}, ErrNotFound
	}
	query, args, err := selectEntries().Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return Entry{}, fmt.Errorf("build ledger query: %w", err)
	}
	e, err := scanEntry(p.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("get ledger entry: %w", err)
	}
	return e, nil
}

func (p *Postgres) ListByBatch(ctx context.Context, batchID string) ([]Entry, error) {
	return p.list(ctx, selectEntries().Where(sq.Eq{"batch_id": batchID}).OrderBy("row_number", "created_at"))
}

func unresolvedQuery(kind string) sq.SelectBuilder {
	b := selectEntries().Where(sq.Eq{"resolved": false})
	if kind != "" {
		b = b.Where(sq.Eq{"kind": kind})
	}
	return b.OrderBy("created_at")
}

func (p *Postgres) ListUnresolved(ctx context.Context, kind string) ([]Entry, error) {
	return p.list(ctx, unresolvedQuery(kind))
}

func (p *Postgres) ListSince(ctx context.Context, since time.Time) ([]Entry, error) {
	return p.list(ctx, selectEntries().Where(sq.GtOrEq{"created_at": since}).OrderBy("created_at DESC"))
}

func countsQuery(kind string) sq.SelectBuilder {
	b := psql.Select("COUNT(*)", "COUNT(*) FILTER (WHERE NOT resolved)").From(table)
	if kind != "" {
		b = b.Where(sq.Eq{"kind": kind})
	}
	return b
}

func (p *Postgres) CountsByKind(ctx context.Context, kind string) (Counts, error) {
	query, args, err := countsQuery(kind).ToSql()
	if err != nil {
		return Counts{}, fmt.Errorf("build ledger counts: %w", err)
	}
	var c Counts
	if err := p.db.QueryRow(ctx, query, args...).Scan(&c.Total, &c.Unresolved); err != nil {
		return Counts{}, fmt.Errorf("count ledger entries: %w", err)
	}
	return c, nil
}

func (p *Postgres) Resolve(ctx context.Context, id, notes string, now time.Time) (Entry, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Entry{}, ErrNotFound
	}
	query, args, err := psql.Update(table).
		Set("resolved", true).
		Set("resolution_notes", notes).
		Set("updated_at", now).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + strings.Join(columns, ", ")).
		ToSql()
	if err != nil {
		return Entry{}, fmt.Errorf("build ledger resolve: %w", err)
	}
	e, err := scanEntry(p.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("resolve ledger entry: %w", err)
	}
	return e, nil
}
