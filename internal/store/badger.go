package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/JonMunkholm/catalog/internal/catalog"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// BadgerConfig configures an embedded badger database.
type BadgerConfig struct {
	// Dir is the data directory. Ignored when InMemory is set.
	Dir      string
	InMemory bool
	Logger   *slog.Logger
}

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// OpenBadger opens (creating if needed) a badger database.
func OpenBadger(cfg BadgerConfig) (*badger.DB, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Dir == "" {
			return nil, errors.New("badger: data directory is required")
		}
		if err := os.MkdirAll(cfg.Dir, 0750); err != nil {
			return nil, fmt.Errorf("create data directory %s: %w", cfg.Dir, err)
		}
		opts = badger.DefaultOptions(cfg.Dir)
	}

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return db, nil
}

// Badger is a Repository over an embedded badger database.
//
// Layout per kind:
//
//	rec/<kind>/<id>          encoded record
//	key/<kind>/<naturalKey>  id owning the key
type Badger[T catalog.Record] struct {
	db   *badger.DB
	kind catalog.Kind
	newT func() T
	now  func() time.Time
}

// NewBadger creates a repository for kind inside db.
func NewBadger[T catalog.Record](db *badger.DB, kind catalog.Kind, newT func() T) *Badger[T] {
	return &Badger[T]{db: db, kind: kind, newT: newT, now: time.Now}
}

// NewBadgerSet returns a Set sharing one badger database.
func NewBadgerSet(db *badger.DB) Set {
	return Set{
		Content: NewBadger(db, catalog.KindContent, NewContent),
		Media:   NewBadger(db, catalog.KindMedia, NewMedia),
		Upload:  NewBadger(db, catalog.KindUpload, NewUpload),
		Stats:   NewBadger(db, catalog.KindStats, NewStats),
	}
}

func (b *Badger[T]) recPrefix() []byte {
	return []byte("rec/" + string(b.kind) + "/")
}

func (b *Badger[T]) recKey(id string) []byte {
	return append(b.recPrefix(), id...)
}

func (b *Badger[T]) keyKey(natural string) []byte {
	return []byte("key/" + string(b.kind) + "/" + natural)
}

func (b *Badger[T]) Save(ctx context.Context, rec T) (T, error) {
	var zero T

	key := rec.NaturalKey()
	id := rec.RecordID()
	if id == "" {
		id = uuid.New().String()
	}

	var data []byte
	err := b.db.Update(func(txn *badger.Txn) error {
		owner, err := getString(txn, b.keyKey(key))
		switch {
		case err == nil && owner != id:
			return ErrDuplicateKey
		case err != nil && !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}

		// Drop the old index entry if the natural key changed.
		if prev, err := getValue(txn, b.recKey(id)); err == nil {
			if old, err := decode(b.newT, prev); err == nil && old.NaturalKey() != key {
				if err := txn.Delete(b.keyKey(old.NaturalKey())); err != nil {
					return err
				}
			}
		}

		rec.SetRecordID(id)
		rec.Stamp(b.now().UTC())
		data, err = encode(rec)
		if err != nil {
			return err
		}
		if err := txn.Set(b.recKey(id), data); err != nil {
			return err
		}
		return txn.Set(b.keyKey(key), []byte(id))
	})
	switch {
	case err == nil:
		return rec, nil
	case errors.Is(err, ErrDuplicateKey):
		return zero, ErrDuplicateKey
	case errors.Is(err, badger.ErrConflict):
		return zero, fmt.Errorf("save %s record: %w", b.kind, ErrConflict)
	default:
		return zero, fmt.Errorf("save %s record: %w", b.kind, err)
	}
}

func (b *Badger[T]) FindAll(ctx context.Context) ([]T, error) {
	var out []T
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = b.recPrefix()
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			data, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			rec, err := decode(b.newT, data)
			if err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s records: %w", b.kind, err)
	}
	return out, nil
}

func (b *Badger[T]) FindByID(ctx context.Context, id string) (T, error) {
	var zero T
	var data []byte
	err := b.db.View(func(txn *badger.Txn) error {
		var err error
		data, err = getValue(txn, b.recKey(id))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return zero, ErrNotFound
	}
	if err != nil {
		return zero, fmt.Errorf("get %s record: %w", b.kind, err)
	}
	return decode(b.newT, data)
}

func (b *Badger[T]) FindByKey(ctx context.Context, key string) (T, error) {
	var zero T
	var data []byte
	err := b.db.View(func(txn *badger.Txn) error {
		id, err := getString(txn, b.keyKey(key))
		if err != nil {
			return err
		}
		data, err = getValue(txn, b.recKey(id))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return zero, ErrNotFound
	}
	if err != nil {
		return zero, fmt.Errorf("get %s record by key: %w", b.kind, err)
	}
	return decode(b.newT, data)
}

func (b *Badger[T]) ExistsByKey(ctx context.Context, key string) (bool, error) {
	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(b.keyKey(key))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check %s key: %w", b.kind, err)
	}
	return true, nil
}

func (b *Badger[T]) DeleteByID(ctx context.Context, id string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		data, err := getValue(txn, b.recKey(id))
		if err != nil {
			return err
		}
		if rec, err := decode(b.newT, data); err == nil {
			if err := txn.Delete(b.keyKey(rec.NaturalKey())); err != nil {
				return err
			}
		}
		return txn.Delete(b.recKey(id))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete %s record: %w", b.kind, err)
	}
	return nil
}

func getValue(txn *badger.Txn, key []byte) ([]byte, error) {
	item, err := txn.Get(key)
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func getString(txn *badger.Txn, key []byte) (string, error) {
	v, err := getValue(txn, key)
	return string(v), err
}
