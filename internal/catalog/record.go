package catalog

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// Record is implemented by every catalog record. Stores use it to assign
// identity and timestamps; the pipeline uses it for duplicate detection.
type Record interface {
	Kind() Kind
	NaturalKey() string
	RecordID() string
	SetRecordID(id string)
	Stamp(now time.Time)
	Created() time.Time
}

// Linkable is a record that references a counterpart in another catalog by
// the counterpart's natural key.
type Linkable interface {
	Record
	// LinkRef returns the counterpart's natural key, or "" if the record
	// references nothing.
	LinkRef() string
	// LinkName is merged into the counterpart's name list.
	LinkName() string
	// LinkType is the source type fed to the type map when a counterpart
	// has to be created.
	LinkType() string
	LinkedID() string
	// SetLinkedID records the counterpart's id unless one is already set.
	// It reports whether the record changed.
	SetLinkedID(id string) bool
}

// NameHolder is a record with a multi-value name list.
type NameHolder interface {
	Record
	// AddName appends name unless an equal name (ignoring case) is present.
	// It reports whether the list changed.
	AddName(name string) bool
	NameList() []string
}

// Meta holds the identity and timestamps shared by all records.
type Meta struct {
	ID        string    `json:"id,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (m *Meta) RecordID() string      { return m.ID }
func (m *Meta) SetRecordID(id string) { m.ID = id }
func (m *Meta) Created() time.Time    { return m.CreatedAt }

// Stamp sets CreatedAt on first save and UpdatedAt on every save.
func (m *Meta) Stamp(now time.Time) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
}

// Names is a case-insensitive set of names kept in insertion order.
type Names []string

// Add appends name if no equal name is present.
func (n *Names) Add(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	for _, existing := range *n {
		if strings.EqualFold(existing, name) {
			return false
		}
	}
	*n = append(*n, name)
	return true
}

// TitleCase capitalizes the first letter of every whitespace-delimited
// token and lower-cases the rest. Runs of whitespace collapse to one space.
func TitleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + strings.ToLower(w[size:])
	}
	return strings.Join(words, " ")
}
