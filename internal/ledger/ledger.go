// Package ledger is the durable record of rows rejected by ingestion.
//
// Every rejected row becomes one Entry tagged with the batch that produced
// it. Entries are append-only; the only mutation is resolution, which sets
// the resolved flag and notes and leaves the original diagnostic intact.
package ledger

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no entry has the requested id.
var ErrNotFound = errors.New("ledger entry not found")

// Entry is one rejected row.
type Entry struct {
	ID              string    `json:"id"`
	BatchID         string    `json:"batchId"`
	Kind            string    `json:"kind"`
	RowNumber       int       `json:"rowNumber"`
	RawData         string    `json:"rawData,omitempty"`
	ErrorType       string    `json:"errorType"`
	ErrorCode       string    `json:"errorCode,omitempty"`
	Message         string    `json:"message"`
	FieldName       string    `json:"fieldName,omitempty"`
	AttemptedValue  string    `json:"attemptedValue,omitempty"`
	Suggestion      string    `json:"suggestion,omitempty"`
	Resolved        bool      `json:"resolved"`
	ResolutionNotes string    `json:"resolutionNotes,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Counts summarizes the entries of one kind.
type Counts struct {
	Total      int `json:"total"`
	Unresolved int `json:"unresolved"`
}

// Store persists entries.
//
// Append assigns the ID, and CreatedAt unless the caller set it.
// ListByBatch orders by row number, ListUnresolved oldest first, ListSince
// newest first. An empty kind matches every kind.
type Store interface {
	Append(ctx context.Context, e *Entry) error
	Get(ctx context.Context, id string) (Entry, error)
	ListByBatch(ctx context.Context, batchID string) ([]Entry, error)
	ListUnresolved(ctx context.Context, kind string) ([]Entry, error)
	ListSince(ctx context.Context, since time.Time) ([]Entry, error)
	CountsByKind(ctx context.Context, kind string) (Counts, error)
	Resolve(ctx context.Context, id, notes string, now time.Time) (Entry, error)
}

// NewBatchID returns an 8-character upper-case batch code.
func NewBatchID() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(id[:8])
}

func prepare(e *Entry, now time.Time) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = e.CreatedAt
}

func sortByRow(es []Entry) {
	sort.SliceStable(es, func(i, j int) bool { return es[i].RowNumber < es[j].RowNumber })
}

func sortOldestFirst(es []Entry) {
	sort.SliceStable(es, func(i, j int) bool { return es[i].CreatedAt.Before(es[j].CreatedAt) })
}

func sortNewestFirst(es []Entry) {
	sort.SliceStable(es, func(i, j int) bool { return es[i].CreatedAt.After(es[j].CreatedAt) })
}

func kindMatches(kind, want string) bool {
	return want == "" || strings.EqualFold(kind, want)
}
