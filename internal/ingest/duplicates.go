package ingest

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/JonMunkholm/catalog/internal/catalog"
	"github.com/JonMunkholm/catalog/internal/store"
)

// existingKeyPreview bounds how many keys the store-pass summary lists.
const existingKeyPreview = 5

// candidate is a parsed, validated record waiting for persistence.
type candidate[T catalog.Record] struct {
	row int
	raw string
	rec T
}

// dedupeBatch drops every candidate whose natural key occurs more than once
// in the batch and reports one error per duplicated key, naming every row.
func dedupeBatch[T catalog.Record](cands []candidate[T]) ([]candidate[T], Report) {
	var rep Report

	groups := make(map[string][]int, len(cands))
	var order []string
	for i, c := range cands {
		key := c.rec.NaturalKey()
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}

	kept := make([]candidate[T], 0, len(cands))
	for _, key := range order {
		idx := groups[key]
		if len(idx) == 1 {
			kept = append(kept, cands[idx[0]])
			continue
		}

		rows := make([]int, len(idx))
		raw := make([]string, len(idx))
		for i, j := range idx {
			rows[i] = cands[j].row
			raw[i] = cands[j].raw
		}
		d := newDiagnostic(ClassDuplicate, rows[0], reasonRepeatedKey,
			fmt.Sprintf("Duplicate key %q appears on rows %s", key, joinInts(rows)))
		d.Rows = rows
		d.Value = key
		d.raw = raw
		rep.Error(d)
	}

	return kept, rep
}

// dedupeStore drops candidates whose natural key is already persisted. Each
// affected row gets its own error and the batch gets one summary.
func dedupeStore[T catalog.Record](ctx context.Context, repo store.Repository[T], cands []candidate[T]) ([]candidate[T], Report) {
	var rep Report
	kept := make([]candidate[T], 0, len(cands))
	var existing []string

	for _, c := range cands {
		key := c.rec.NaturalKey()
		exists, err := repo.ExistsByKey(ctx, key)
		if err != nil {
			d := newErrorDiagnostic(ClassPersistence, c.row, err, fmt.Sprintf("Row %d: could not check key %q: %v", c.row, key, err))
			d.Value = key
			d.raw = []string{c.raw}
			rep.Error(d)
			continue
		}
		if exists {
			d := newDiagnostic(ClassDuplicate, c.row, reasonKeyExists, fmt.Sprintf("Row %d: key %q already exists", c.row, key))
			d.Value = key
			d.raw = []string{c.raw}
			rep.Error(d)
			existing = append(existing, key)
			continue
		}
		kept = append(kept, c)
	}

	if len(existing) > 0 {
		rep.Error(newDiagnostic(ClassDuplicate, 0, reasonKeyExists, existingSummary(existing)))
	}
	return kept, rep
}

func existingSummary(keys []string) string {
	preview := keys
	if len(preview) > existingKeyPreview {
		preview = preview[:existingKeyPreview]
	}
	quoted := make([]string, len(preview))
	for i, k := range preview {
		quoted[i] = strconv.Quote(k)
	}

	msg := fmt.Sprintf("%d record(s) already exist: %s", len(keys), strings.Join(quoted, ", "))
	if extra := len(keys) - len(preview); extra > 0 {
		msg += fmt.Sprintf(" and %d more", extra)
	}
	return msg
}

func joinInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ", ")
}
