// Package store provides the persistence collaborator used by the ingestion
// pipeline. All backends implement [Repository] and enforce uniqueness of a
// record's natural key within its kind, reporting [ErrDuplicateKey] when a
// write would violate it.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/JonMunkholm/catalog/internal/catalog"
)

var (
	// ErrNotFound is returned by lookups that match no record.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateKey is returned when a save would give two records of the
	// same kind the same natural key.
	ErrDuplicateKey = errors.New("duplicate key: natural key already exists")

	// ErrConflict is returned when a concurrent write invalidated a save.
	ErrConflict = errors.New("write conflict: record changed concurrently")
)

// Repository is the narrow persistence contract the pipeline depends on.
//
// Save inserts a record without an ID (assigning one) and replaces the
// stored record otherwise. It stamps timestamps and returns the record.
type Repository[T catalog.Record] interface {
	Save(ctx context.Context, rec T) (T, error)
	FindAll(ctx context.Context) ([]T, error)
	FindByID(ctx context.Context, id string) (T, error)
	FindByKey(ctx context.Context, key string) (T, error)
	ExistsByKey(ctx context.Context, key string) (bool, error)
	DeleteByID(ctx context.Context, id string) error
}

// Set groups one repository per catalog kind.
type Set struct {
	Content Repository[*catalog.ContentItem]
	Media   Repository[*catalog.MediaItem]
	Upload  Repository[*catalog.UploadItem]
	Stats   Repository[*catalog.StatsItem]
}

func NewContent() *catalog.ContentItem { return &catalog.ContentItem{} }
func NewMedia() *catalog.MediaItem     { return &catalog.MediaItem{} }
func NewUpload() *catalog.UploadItem   { return &catalog.UploadItem{} }
func NewStats() *catalog.StatsItem     { return &catalog.StatsItem{} }

func encode[T catalog.Record](rec T) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode %s record: %w", rec.Kind(), err)
	}
	return data, nil
}

func decode[T catalog.Record](newT func() T, data []byte) (T, error) {
	rec := newT()
	if err := json.Unmarshal(data, rec); err != nil {
		var zero T
		return zero, fmt.Errorf("decode %s record: %w", rec.Kind(), err)
	}
	return rec, nil
}
