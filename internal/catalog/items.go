package catalog

import (
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
)

// ContentItem is a piece of published content addressed by its link.
type ContentItem struct {
	Meta
	Link        string      `json:"link" validate:"required,max=2048,scheme_uri"`
	Title       string      `json:"title" validate:"required,max=255"`
	Names       Names       `json:"names,omitempty" validate:"dive,max=255"`
	Type        ContentType `json:"type" validate:"required,catalog_enum"`
	Status      Status      `json:"status" validate:"required,catalog_enum"`
	Priority    Priority    `json:"priority" validate:"required,catalog_enum"`
	PublishedAt pgtype.Date `json:"publishedAt"`
	Notes       string      `json:"notes,omitempty" validate:"max=2000"`
}

func (c *ContentItem) Kind() Kind           { return KindContent }
func (c *ContentItem) NaturalKey() string   { return strings.TrimSpace(c.Link) }
func (c *ContentItem) AddName(n string) bool { return c.Names.Add(n) }
func (c *ContentItem) NameList() []string   { return c.Names }

// MediaItem is a title in a given language, optionally pointing at an upload.
type MediaItem struct {
	Meta
	Name        string         `json:"name" validate:"required,max=255"`
	Language    string         `json:"language" validate:"required,max=64"`
	Type        MediaType      `json:"type" validate:"required,catalog_enum"`
	ReleaseDate pgtype.Date    `json:"releaseDate"`
	Rating      pgtype.Numeric `json:"rating"`
	Link        string         `json:"link,omitempty" validate:"omitempty,max=2048,scheme_uri"`
	Priority    Priority       `json:"priority" validate:"required,catalog_enum"`
	UploadID    string         `json:"uploadId,omitempty"`
}

func (m *MediaItem) Kind() Kind { return KindMedia }

// NaturalKey is name and language; the name is title-cased by the parser
// so differently cased spellings collide.
func (m *MediaItem) NaturalKey() string {
	return strings.TrimSpace(m.Name) + "|" + strings.ToLower(strings.TrimSpace(m.Language))
}

func (m *MediaItem) LinkRef() string  { return strings.TrimSpace(m.Link) }
func (m *MediaItem) LinkName() string { return m.Name }
func (m *MediaItem) LinkType() string { return string(m.Type) }
func (m *MediaItem) LinkedID() string { return m.UploadID }

func (m *MediaItem) SetLinkedID(id string) bool {
	if m.UploadID != "" || id == "" {
		return false
	}
	m.UploadID = id
	return true
}

// UploadItem is a stored file that may belong to a content item.
type UploadItem struct {
	Meta
	Link        string      `json:"link" validate:"required,max=2048,scheme_uri"`
	Name        string      `json:"name" validate:"required,max=255"`
	Names       Names       `json:"names,omitempty" validate:"dive,max=255"`
	Type        UploadType  `json:"type" validate:"required,catalog_enum"`
	ContentLink string      `json:"contentLink,omitempty" validate:"omitempty,max=2048,scheme_uri"`
	Status      Status      `json:"status" validate:"required,catalog_enum"`
	Priority    Priority    `json:"priority" validate:"required,catalog_enum"`
	SizeBytes   int64       `json:"sizeBytes" validate:"gte=0"`
	UploadedAt  pgtype.Date `json:"uploadedAt"`
	ContentID   string      `json:"contentId,omitempty"`
}

func (u *UploadItem) Kind() Kind           { return KindUpload }
func (u *UploadItem) NaturalKey() string   { return strings.TrimSpace(u.Link) }
func (u *UploadItem) AddName(n string) bool { return u.Names.Add(n) }
func (u *UploadItem) NameList() []string   { return u.Names }
func (u *UploadItem) LinkRef() string      { return strings.TrimSpace(u.ContentLink) }
func (u *UploadItem) LinkName() string     { return u.Name }
func (u *UploadItem) LinkType() string     { return string(u.Type) }
func (u *UploadItem) LinkedID() string     { return u.ContentID }

func (u *UploadItem) SetLinkedID(id string) bool {
	if u.ContentID != "" || id == "" {
		return false
	}
	u.ContentID = id
	return true
}

// StatsItem is a per-period engagement snapshot for a content link.
type StatsItem struct {
	Meta
	ContentLink string         `json:"contentLink" validate:"required,max=2048,scheme_uri"`
	Period      pgtype.Date    `json:"period"`
	Views       int64          `json:"views" validate:"gte=0"`
	Likes       int64          `json:"likes" validate:"gte=0"`
	Revenue     pgtype.Numeric `json:"revenue"`
	Source      string         `json:"source,omitempty" validate:"max=100"`
}

func (s *StatsItem) Kind() Kind { return KindStats }

func (s *StatsItem) NaturalKey() string {
	period := ""
	if s.Period.Valid {
		period = s.Period.Time.Format("2006-01-02")
	}
	return strings.TrimSpace(s.ContentLink) + "|" + period
}

// NewContentItem builds the minimal content item the linker creates when an
// upload references a link that is not yet cataloged.
func NewContentItem(link, name string, typ ContentType) *ContentItem {
	c := &ContentItem{
		Link:     link,
		Title:    name,
		Type:     typ,
		Status:   DefaultStatus,
		Priority: DefaultPriority,
	}
	c.AddName(name)
	return c
}

// NewUploadItem builds the minimal upload item the linker creates when a
// media item references an unknown upload link.
func NewUploadItem(link, name string, typ UploadType) *UploadItem {
	u := &UploadItem{
		Link:     link,
		Name:     name,
		Type:     typ,
		Status:   DefaultStatus,
		Priority: DefaultPriority,
	}
	u.AddName(name)
	return u
}
