package ledger

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Store.
type Memory struct {
	mu      sync.RWMutex
	entries []Entry
	byID    map[string]int
}

func NewMemory() *Memory {
	return &Memory{byID: make(map[string]int)}
}

func (m *Memory) Append(ctx context.Context, e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	prepare(e, time.Now().UTC())
	m.byID[e.ID] = len(m.entries)
	m.entries = append(m.entries, *e)
	return nil
}

func (m *Memory) Get(ctx context.Context, id string) (Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i, ok := m.byID[id]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return m.entries[i], nil
}

func (m *Memory) filter(keep func(Entry) bool) []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Entry
	for _, e := range m.entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

func (m *Memory) ListByBatch(ctx context.Context, batchID string) ([]Entry, error) {
	out := m.filter(func(e Entry) bool { return e.BatchID == batchID })
	sortByRow(out)
	return out, nil
}

func (m *Memory) ListUnresolved(ctx context.Context, kind string) ([]Entry, error) {
	out := m.filter(func(e Entry) bool { return !e.Resolved && kindMatches(e.Kind, kind) })
	sortOldestFirst(out)
	return out, nil
}

func (m *Memory) ListSince(ctx context.Context, since time.Time) ([]Entry, error) {
	out := m.filter(func(e Entry) bool { return !e.CreatedAt.Before(since) })
	sortNewestFirst(out)
	return out, nil
}

func (m *Memory) CountsByKind(ctx context.Context, kind string) (Counts, error) {
	var c Counts
	for _, e := range m.filter(func(e Entry) bool { return kindMatches(e.Kind, kind) }) {
		c.Total++
		if !e.Resolved {
			c.Unresolved++
		}
	}
	return c, nil
}

func (m *Memory) Resolve(ctx context.Context, id, notes string, now time.Time) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, ok := m.byID[id]
	if !ok {
		return Entry{}, ErrNotFound
	}
	e := &m.entries[i]
	e.Resolved = true
	e.ResolutionNotes = notes
	e.UpdatedAt = now
	return *e, nil
}
