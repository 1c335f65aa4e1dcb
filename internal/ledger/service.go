package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultRecentWindow is the lookback used by ListRecent when none is given.
const DefaultRecentWindow = 7 * 24 * time.Hour

// ErrInvalidID is returned for empty ids.
var ErrInvalidID = errors.New("ledger: id is required")

// Service is the ledger API used by ingestion and by triage surfaces.
type Service struct {
	store  Store
	window time.Duration
	now    func() time.Time
}

// NewService wraps store. A non-positive window selects DefaultRecentWindow.
func NewService(store Store, window time.Duration) *Service {
	if window <= 0 {
		window = DefaultRecentWindow
	}
	return &Service{store: store, window: window, now: time.Now}
}

// Append records one rejected row.
func (s *Service) Append(ctx context.Context, e Entry) (Entry, error) {
	if e.BatchID == "" {
		return Entry{}, fmt.Errorf("%w: batch id", ErrInvalidID)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now().UTC()
	}
	if err := s.store.Append(ctx, &e); err != nil {
		return Entry{}, err
	}
	return e, nil
}

func (s *Service) Get(ctx context.Context, id string) (Entry, error) {
	if strings.TrimSpace(id) == "" {
		return Entry{}, ErrInvalidID
	}
	return s.store.Get(ctx, id)
}

// ListByBatch returns a batch's rejections in row order.
func (s *Service) ListByBatch(ctx context.Context, batchID string) ([]Entry, error) {
	batchID = strings.ToUpper(strings.TrimSpace(batchID))
	if batchID == "" {
		return nil, fmt.Errorf("%w: batch id", ErrInvalidID)
	}
	return s.store.ListByBatch(ctx, batchID)
}

// ListUnresolved returns open entries for kind, or all kinds if empty.
func (s *Service) ListUnresolved(ctx context.Context, kind string) ([]Entry, error) {
	return s.store.ListUnresolved(ctx, strings.ToLower(strings.TrimSpace(kind)))
}

// ListRecent returns entries created within window, newest first. A
// non-positive window uses the service default.
func (s *Service) ListRecent(ctx context.Context, window time.Duration) ([]Entry, error) {
	if window <= 0 {
		window = s.window
	}
	return s.store.ListSince(ctx, s.now().UTC().Add(-window))
}

func (s *Service) CountsByKind(ctx context.Context, kind string) (Counts, error) {
	return s.store.CountsByKind(ctx, strings.ToLower(strings.TrimSpace(kind)))
}

// Resolve marks an entry resolved with notes. The original diagnostic
// fields are kept.
func (s *Service) Resolve(ctx context.Context, id, notes string) (Entry, error) {
	if strings.TrimSpace(id) == "" {
		return Entry{}, ErrInvalidID
	}
	return s.store.Resolve(ctx, id, strings.TrimSpace(notes), s.now().UTC())
}
