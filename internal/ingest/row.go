package ingest

import (
	"encoding/json"
	"strings"
)

// Row is one input row or record, independent of the file format it came
// from. Parsers read values through Cell (positional formats) or Field
// (keyed formats) and never see the underlying representation.
type Row interface {
	// Number is the row's position as the user sees it: the file line for
	// CSV and spreadsheets, the 1-based array index for JSON.
	Number() int
	// Cell returns the cleaned value at position i. Blank and missing cells
	// report false.
	Cell(i int) (string, bool)
	// Field returns the cleaned value for a named field. Names match
	// ignoring case, spaces, underscores and hyphens. Blank and missing
	// fields report false.
	Field(name string) (string, bool)
	// Raw is the row as it appeared in the file, for the error ledger.
	Raw() string
}

// lookup reads a column by name, falling back to its position.
func lookup(r Row, index int, name string) (string, bool) {
	if v, ok := r.Field(name); ok {
		return v, true
	}
	return r.Cell(index)
}

// cellRow is a positional row from CSV or a spreadsheet.
type cellRow struct {
	num   int
	cells []string
}

func (r cellRow) Number() int { return r.num }

func (r cellRow) Cell(i int) (string, bool) {
	if i < 0 || i >= len(r.cells) {
		return "", false
	}
	v := CleanCell(r.cells[i])
	return v, v != ""
}

func (r cellRow) Field(string) (string, bool) { return "", false }

func (r cellRow) Raw() string { return strings.Join(r.cells, ",") }

func (r cellRow) blank() bool {
	for _, c := range r.cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// fieldRow is one object from a JSON array.
type fieldRow struct {
	num    int
	fields map[string]string // keyed by fieldKey
	raw    json.RawMessage
}

func newFieldRow(num int, obj map[string]any, raw json.RawMessage) fieldRow {
	fields := make(map[string]string, len(obj))
	for k, v := range obj {
		s, ok := jsonScalar(v)
		if !ok {
			continue
		}
		fields[fieldKey(k)] = s
	}
	return fieldRow{num: num, fields: fields, raw: raw}
}

func (r fieldRow) Number() int { return r.num }

func (r fieldRow) Cell(int) (string, bool) { return "", false }

func (r fieldRow) Field(name string) (string, bool) {
	v, ok := r.fields[fieldKey(name)]
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (r fieldRow) Raw() string { return string(r.raw) }

func (r fieldRow) blank() bool {
	for _, v := range r.fields {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// badRow is an element that could not be read as a record.
type badRow struct {
	num int
	raw string
	err error
}

func (r badRow) Number() int                { return r.num }
func (r badRow) Cell(int) (string, bool)    { return "", false }
func (r badRow) Field(string) (string, bool) { return "", false }
func (r badRow) Raw() string                { return r.raw }

// fieldKey folds a field name so "publishedAt", "published_at" and
// "Published At" address the same value.
func fieldKey(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range strings.ToLower(name) {
		switch r {
		case '_', '-', ' ':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// jsonScalar renders a decoded JSON value as a cell string. Nested arrays
// and objects are not representable and report false.
func jsonScalar(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case bool:
		if t {
			return "true", true
		}
		return "false", true
	default:
		return "", false
	}
}
