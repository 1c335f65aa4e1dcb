package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Badger is a Store over an embedded badger database.
//
//	ledger/entry/<id>                   encoded entry
//	ledger/batch/<batchID>/<row>/<id>   batch index, row zero-padded
type Badger struct {
	db *badger.DB
}

func NewBadger(db *badger.DB) *Badger {
	return &Badger{db: db}
}

var entryPrefix = []byte("ledger/entry/")

func entryKey(id string) []byte {
	return append(append([]byte(nil), entryPrefix...), id...)
}

func batchPrefix(batchID string) []byte {
	return []byte("ledger/batch/" + batchID + "/")
}

func batchKey(e *Entry) []byte {
	return []byte(fmt.Sprintf("ledger/batch/%s/%010d/%s", e.BatchID, e.RowNumber, e.ID))
}

func (b *Badger) Append(ctx context.Context, e *Entry) error {
	prepare(e, time.Now().UTC())
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode ledger entry: %w", err)
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(entryKey(e.ID), data); err != nil {
			return err
		}
		return txn.Set(batchKey(e), []byte(e.ID))
	})
	if err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}
	return nil
}

func getEntry(txn *badger.Txn, id string) (Entry, error) {
	item, err := txn.Get(entryKey(id))
	if err != nil {
		return Entry{}, err
	}
	var e Entry
	err = item.Value(func(v []byte) error { return json.Unmarshal(v, &e) })
	return e, err
}

func (b *Badger) Get(ctx context.Context, id string) (Entry, error) {
	var e Entry
	err := b.db.View(func(txn *badger.Txn) error {
		var err error
		e, err = getEntry(txn, id)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("get ledger entry: %w", err)
	}
	return e, nil
}

func (b *Badger) ListByBatch(ctx context.Context, batchID string) ([]Entry, error) {
	var out []Entry
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = batchPrefix(batchID)
		it := txn.NewIterator(opts)
		defer it.Close()

		// Keys sort by zero-padded row number.
		for it.Rewind(); it.Valid(); it.Next() {
			id, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			e, err := getEntry(txn, string(id))
			if err != nil {
				return err
			}
			out = append(out, e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list ledger batch: %w", err)
	}
	return out, nil
}

// scan visits every entry.
func (b *Badger) scan(keep func(Entry) bool) ([]Entry, error) {
	var out []Entry
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = entryPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var e Entry
			if err := it.Item().Value(func(v []byte) error { return json.Unmarshal(v, &e) }); err != nil {
				return err
			}
			if keep(e) {
				out = append(out, e)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan ledger: %w", err)
	}
	return out, nil
}

func (b *Badger) ListUnresolved(ctx context.Context, kind string) ([]Entry, error) {
	out, err := b.scan(func(e Entry) bool { return !e.Resolved && kindMatches(e.Kind, kind) })
	sortOldestFirst(out)
	return out, err
}

func (b *Badger) ListSince(ctx context.Context, since time.Time) ([]Entry, error) {
	out, err := b.scan(func(e Entry) bool { return !e.CreatedAt.Before(since) })
	sortNewestFirst(out)
	return out, err
}

func (b *Badger) CountsByKind(ctx context.Context, kind string) (Counts, error) {
	es, err := b.scan(func(e Entry) bool { return kindMatches(e.Kind, kind) })
	if err != nil {
		return Counts{}, err
	}
	c := Counts{Total: len(es)}
	for _, e := range es {
		if !e.Resolved {
			c.Unresolved++
		}
	}
	return c, nil
}

func (b *Badger) Resolve(ctx context.Context, id, notes string, now time.Time) (Entry, error) {
	var e Entry
	err := b.db.Update(func(txn *badger.Txn) error {
		var err error
		e, err = getEntry(txn, id)
		if err != nil {
			return err
		}
		e.Resolved = true
		e.ResolutionNotes = notes
		e.UpdatedAt = now
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		return txn.Set(entryKey(id), data)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("resolve ledger entry: %w", err)
	}
	return e, nil
}
