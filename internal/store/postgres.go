package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/catalog/internal/catalog"
	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// psql builds PostgreSQL statements with $n placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// TableName returns the table holding records of kind k.
func TableName(k catalog.Kind) string {
	return "catalog_" + string(k)
}

// Schema returns the DDL for every catalog table. Each table stores the
// encoded record in a JSONB column and carries a UNIQUE constraint on the
// natural key.
func Schema() []string {
	stmts := make([]string, 0, len(catalog.Kinds)*2)
	for _, k := range catalog.Kinds {
		t := TableName(k)
		stmts = append(stmts,
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id          UUID PRIMARY KEY,
	natural_key TEXT NOT NULL UNIQUE,
	data        JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL
)`, t),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_created_at_idx ON %s (created_at)`, t, t),
		)
	}
	return stmts
}

// EnsureSchema creates the catalog tables if they do not exist.
func EnsureSchema(ctx context.Context, db DBTX) error {
	for _, stmt := range Schema() {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure catalog schema: %w", err)
		}
	}
	return nil
}

// Postgres is a Repository backed by one table per kind.
type Postgres[T catalog.Record] struct {
	db    DBTX
	table string
	newT  func() T
	now   func() time.Time
}

// NewPostgres creates a repository over the table for kind.
func NewPostgres[T catalog.Record](db DBTX, kind catalog.Kind, newT func() T) *Postgres[T] {
	return &Postgres[T]{db: db, table: TableName(kind), newT: newT, now: time.Now}
}

// NewPostgresSet returns a Set backed by PostgreSQL.
func NewPostgresSet(db DBTX) Set {
	return Set{
		Content: NewPostgres(db, catalog.KindContent, NewContent),
		Media:   NewPostgres(db, catalog.KindMedia, NewMedia),
		Upload:  NewPostgres(db, catalog.KindUpload, NewUpload),
		Stats:   NewPostgres(db, catalog.KindStats, NewStats),
	}
}

// upsertQuery builds the insert-or-replace statement for rec. The natural
// key constraint stays in force on both paths.
func (p *Postgres[T]) upsertQuery(rec T, data []byte, now time.Time) (string, []any, error) {
	return psql.Insert(p.table).
		Columns("id", "natural_key", "data", "created_at", "updated_at").
		Values(rec.RecordID(), rec.NaturalKey(), data, rec.Created(), now).
		Suffix("ON CONFLICT (id) DO UPDATE SET natural_key = EXCLUDED.natural_key, data = EXCLUDED.data, updated_at = EXCLUDED.updated_at").
		ToSql()
}

func (p *Postgres[T]) Save(ctx context.Context, rec T) (T, error) {
	var zero T

	if rec.RecordID() == "" {
		rec.SetRecordID(uuid.New().String())
	}
	now := p.now().UTC()
	rec.Stamp(now)

	data, err := encode(rec)
	if err != nil {
		return zero, err
	}

	query, args, err := p.upsertQuery(rec, data, now)
	if err != nil {
		return zero, fmt.Errorf("build save query: %w", err)
	}
	if _, err := p.db.Exec(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return zero, ErrDuplicateKey
		}
		return zero, fmt.Errorf("save %s record: %w", rec.Kind(), err)
	}
	return rec, nil
}

func (p *Postgres[T]) FindAll(ctx context.Context) ([]T, error) {
	query, args, err := psql.Select("data").From(p.table).OrderBy("created_at", "id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", p.table, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan %s: %w", p.table, err)
		}
		rec, err := decode(p.newT, data)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (p *Postgres[T]) findOne(ctx context.Context, where sq.Eq) (T, error) {
	var zero T

	query, args, err := psql.Select("data").From(p.table).Where(where).Limit(1).ToSql()
	if err != nil {
		return zero, fmt.Errorf("build lookup query: %w", err)
	}

	var data []byte
	if err := p.db.QueryRow(ctx, query, args...).Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return zero, ErrNotFound
		}
		return zero, fmt.Errorf("lookup %s: %w", p.table, err)
	}
	return decode(p.newT, data)
}

func (p *Postgres[T]) FindByID(ctx context.Context, id string) (T, error) {
	if _, err := uuid.Parse(id); err != nil {
		var zero T
		return zero, ErrNotFound
	}
	return p.findOne(ctx, sq.Eq{"id": id})
}

func (p *Postgres[T]) FindByKey(ctx context.Context, key string) (T, error) {
	return p.findOne(ctx, sq.Eq{"natural_key": key})
}

func (p *Postgres[T]) ExistsByKey(ctx context.Context, key string) (bool, error) {
	query, args, err := psql.Select("1").From(p.table).Where(sq.Eq{"natural_key": key}).Prefix("SELECT EXISTS (").Suffix(")").ToSql()
	if err != nil {
		return false, fmt.Errorf("build exists query: %w", err)
	}

	var exists bool
	if err := p.db.QueryRow(ctx, query, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("check %s key: %w", p.table, err)
	}
	return exists, nil
}

func (p *Postgres[T]) DeleteByID(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}

	query, args, err := psql.Delete(p.table).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete query: %w", err)
	}
	tag, err := p.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete from %s: %w", p.table, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
