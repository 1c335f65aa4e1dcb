package ingest

import (
	"strings"

	"github.com/JonMunkholm/catalog/internal/catalog"
)

// Parser turns rows of one catalog kind into records. The same parser
// serves every file format because rows are read through [Row].
type Parser[T catalog.Record] struct {
	Fields []FieldSpec
	Build  func(Values) T
}

// Parse reads one row. Warnings are returned alongside a record; an error
// means the row produced no record.
func (p Parser[T]) Parse(row Row) (T, []Diagnostic, error) {
	vals, warnings, err := readFields(row, p.Fields)
	if err != nil {
		var zero T
		return zero, nil, err
	}
	return p.Build(vals), warnings, nil
}

// Columns returns the column names in file order.
func (p Parser[T]) Columns() []string {
	cols := make([]string, len(p.Fields))
	for i, f := range p.Fields {
		cols[i] = f.Name
	}
	return cols
}

// KindDef describes how one catalog kind is ingested.
type KindDef[T catalog.Record] struct {
	Kind   catalog.Kind
	Label  string
	Key    string
	Parser Parser[T]
	// LinkOf and TypeOf feed the batch-level advisory checks.
	LinkOf func(T) string
	TypeOf func(T) string
}

// KindInfo is the display description of a registered kind.
type KindInfo struct {
	Kind       catalog.Kind `json:"kind"`
	Label      string       `json:"label"`
	Columns    []string     `json:"columns"`
	Required   []string     `json:"required"`
	NaturalKey string       `json:"naturalKey"`
	LinksTo    catalog.Kind `json:"linksTo,omitempty"`
}

func (d KindDef[T]) info() KindInfo {
	var required []string
	for _, f := range d.Parser.Fields {
		if f.Required {
			required = append(required, f.Name)
		}
	}
	return KindInfo{
		Kind:       d.Kind,
		Label:      d.Label,
		Columns:    d.Parser.Columns(),
		Required:   required,
		NaturalKey: d.Key,
	}
}

var (
	statusField   = FieldSpec{Name: "status", Type: FieldEnum, EnumValues: catalog.Statuses, Default: string(catalog.DefaultStatus)}
	priorityField = FieldSpec{Name: "priority", Type: FieldEnum, EnumValues: catalog.Priorities, Default: string(catalog.DefaultPriority)}
)

// ContentDef ingests content items keyed by link.
var ContentDef = KindDef[*catalog.ContentItem]{
	Kind:  catalog.KindContent,
	Label: "Content",
	Key:   "link",
	Parser: Parser[*catalog.ContentItem]{
		Fields: []FieldSpec{
			{Name: "link", Required: true},
			{Name: "title", Required: true},
			{Name: "type", Type: FieldEnum, Required: true, EnumValues: catalog.ContentTypes},
			statusField,
			priorityField,
			{Name: "published_at", Type: FieldDate},
			{Name: "notes"},
		},
		Build: func(v Values) *catalog.ContentItem {
			c := &catalog.ContentItem{
				Link:        v.Text("link"),
				Title:       v.Text("title"),
				Type:        catalog.ContentType(v.Text("type")),
				Status:      catalog.Status(v.Text("status")),
				Priority:    catalog.Priority(v.Text("priority")),
				PublishedAt: v.Date("published_at"),
				Notes:       v.Text("notes"),
			}
			c.AddName(c.Title)
			return c
		},
	},
	LinkOf: func(c *catalog.ContentItem) string { return c.Link },
	TypeOf: func(c *catalog.ContentItem) string { return string(c.Type) },
}

// MediaDef ingests media items keyed by title-cased name and language.
var MediaDef = KindDef[*catalog.MediaItem]{
	Kind:  catalog.KindMedia,
	Label: "Media",
	Key:   "name|language",
	Parser: Parser[*catalog.MediaItem]{
		Fields: []FieldSpec{
			{Name: "name", Required: true, Normalizer: catalog.TitleCase},
			{Name: "language", Required: true, Normalizer: strings.ToLower},
			{Name: "type", Type: FieldEnum, Required: true, EnumValues: catalog.MediaTypes},
			{Name: "release_date", Type: FieldDate},
			{Name: "rating", Type: FieldNumeric},
			{Name: "link"},
			priorityField,
		},
		Build: func(v Values) *catalog.MediaItem {
			return &catalog.MediaItem{
				Name:        v.Text("name"),
				Language:    v.Text("language"),
				Type:        catalog.MediaType(v.Text("type")),
				ReleaseDate: v.Date("release_date"),
				Rating:      v.Numeric("rating"),
				Link:        v.Text("link"),
				Priority:    catalog.Priority(v.Text("priority")),
			}
		},
	},
	LinkOf: func(m *catalog.MediaItem) string { return m.Link },
	TypeOf: func(m *catalog.MediaItem) string { return string(m.Type) },
}

// UploadDef ingests upload items keyed by link.
var UploadDef = KindDef[*catalog.UploadItem]{
	Kind:  catalog.KindUpload,
	Label: "Uploads",
	Key:   "link",
	Parser: Parser[*catalog.UploadItem]{
		Fields: []FieldSpec{
			{Name: "link", Required: true},
			{Name: "name", Required: true},
			{Name: "type", Type: FieldEnum, Required: true, EnumValues: catalog.UploadTypes},
			{Name: "content_link"},
			statusField,
			priorityField,
			{Name: "size_bytes", Type: FieldInt},
			{Name: "uploaded_at", Type: FieldDate},
		},
		Build: func(v Values) *catalog.UploadItem {
			u := &catalog.UploadItem{
				Link:        v.Text("link"),
				Name:        v.Text("name"),
				Type:        catalog.UploadType(v.Text("type")),
				ContentLink: v.Text("content_link"),
				Status:      catalog.Status(v.Text("status")),
				Priority:    catalog.Priority(v.Text("priority")),
				SizeBytes:   v.Int("size_bytes"),
				UploadedAt:  v.Date("uploaded_at"),
			}
			u.AddName(u.Name)
			return u
		},
	},
	LinkOf: func(u *catalog.UploadItem) string { return u.Link },
	TypeOf: func(u *catalog.UploadItem) string { return string(u.Type) },
}

// StatsDef ingests per-period stats keyed by content link and period.
var StatsDef = KindDef[*catalog.StatsItem]{
	Kind:  catalog.KindStats,
	Label: "Stats",
	Key:   "content_link|period",
	Parser: Parser[*catalog.StatsItem]{
		Fields: []FieldSpec{
			{Name: "content_link", Required: true},
			{Name: "period", Type: FieldDate, Required: true},
			{Name: "views", Type: FieldInt},
			{Name: "likes", Type: FieldInt},
			{Name: "revenue", Type: FieldNumeric},
			{Name: "source"},
		},
		Build: func(v Values) *catalog.StatsItem {
			return &catalog.StatsItem{
				ContentLink: v.Text("content_link"),
				Period:      v.Date("period"),
				Views:       v.Int("views"),
				Likes:       v.Int("likes"),
				Revenue:     v.Numeric("revenue"),
				Source:      v.Text("source"),
			}
		},
	},
	LinkOf: func(s *catalog.StatsItem) string { return s.ContentLink },
}
