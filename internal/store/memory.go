package store

import (
	"context"
	"sync"
	"time"

	"github.com/JonMunkholm/catalog/internal/catalog"
	"github.com/google/uuid"
)

// Memory is an in-process Repository. Records are held encoded so callers
// never share pointers with the store.
type Memory[T catalog.Record] struct {
	newT func() T
	now  func() time.Time

	mu    sync.RWMutex
	byID  map[string][]byte
	keys  map[string]string // natural key -> id
	order []string
}

// NewMemory creates an empty in-memory repository.
func NewMemory[T catalog.Record](newT func() T) *Memory[T] {
	return &Memory[T]{
		newT: newT,
		now:  time.Now,
		byID: make(map[string][]byte),
		keys: make(map[string]string),
	}
}

// NewMemorySet returns a Set backed entirely by memory.
func NewMemorySet() Set {
	return Set{
		Content: NewMemory(NewContent),
		Media:   NewMemory(NewMedia),
		Upload:  NewMemory(NewUpload),
		Stats:   NewMemory(NewStats),
	}
}

func (m *Memory[T]) Save(ctx context.Context, rec T) (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := rec.NaturalKey()
	id := rec.RecordID()
	if owner, ok := m.keys[key]; ok && owner != id {
		var zero T
		return zero, ErrDuplicateKey
	}

	isNew := id == ""
	if isNew {
		id = uuid.New().String()
		rec.SetRecordID(id)
	}
	rec.Stamp(m.now().UTC())

	data, err := encode(rec)
	if err != nil {
		var zero T
		return zero, err
	}

	if prev, ok := m.byID[id]; ok {
		if old, err := decode(m.newT, prev); err == nil && old.NaturalKey() != key {
			delete(m.keys, old.NaturalKey())
		}
	} else {
		m.order = append(m.order, id)
	}
	m.byID[id] = data
	m.keys[key] = id
	return rec, nil
}

func (m *Memory[T]) FindAll(ctx context.Context) ([]T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]T, 0, len(m.order))
	for _, id := range m.order {
		rec, err := decode(m.newT, m.byID[id])
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (m *Memory[T]) FindByID(ctx context.Context, id string) (T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.byID[id]
	if !ok {
		var zero T
		return zero, ErrNotFound
	}
	return decode(m.newT, data)
}

func (m *Memory[T]) FindByKey(ctx context.Context, key string) (T, error) {
	m.mu.RLock()
	id, ok := m.keys[key]
	m.mu.RUnlock()
	if !ok {
		var zero T
		return zero, ErrNotFound
	}
	return m.FindByID(ctx, id)
}

func (m *Memory[T]) ExistsByKey(ctx context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.keys[key]
	return ok, nil
}

func (m *Memory[T]) DeleteByID(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	if rec, err := decode(m.newT, data); err == nil {
		delete(m.keys, rec.NaturalKey())
	}
	delete(m.byID, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}
