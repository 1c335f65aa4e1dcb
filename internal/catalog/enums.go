package catalog

import "strings"

// Kind identifies a catalog.
type Kind string

const (
	KindContent Kind = "content"
	KindMedia   Kind = "media"
	KindUpload  Kind = "upload"
	KindStats   Kind = "stats"
)

// Kinds lists every catalog kind in display order.
var Kinds = []Kind{KindContent, KindMedia, KindUpload, KindStats}

// ParseKind returns the Kind for s, ignoring case and surrounding space.
func ParseKind(s string) (Kind, bool) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, true
		}
	}
	return "", false
}

// ContentType classifies a content item.
type ContentType string

const (
	ContentArticle ContentType = "ARTICLE"
	ContentVideo   ContentType = "VIDEO"
	ContentPodcast ContentType = "PODCAST"
	ContentCourse  ContentType = "COURSE"
	ContentEbook   ContentType = "EBOOK"
	ContentOther   ContentType = "OTHER"
)

// ContentTypes are the legal values for ContentType.
var ContentTypes = []string{"ARTICLE", "VIDEO", "PODCAST", "COURSE", "EBOOK", "OTHER"}

func (t ContentType) Valid() bool { return contains(ContentTypes, string(t)) }

// Status is the lifecycle state shared by content and upload items.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusPending  Status = "PENDING"
	StatusArchived Status = "ARCHIVED"
	StatusDraft    Status = "DRAFT"
)

// Statuses are the legal values for Status.
var Statuses = []string{"ACTIVE", "PENDING", "ARCHIVED", "DRAFT"}

func (s Status) Valid() bool { return contains(Statuses, string(s)) }

// Priority orders work on a record.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

// Priorities are the legal values for Priority.
var Priorities = []string{"LOW", "MEDIUM", "HIGH", "URGENT"}

func (p Priority) Valid() bool { return contains(Priorities, string(p)) }

// MediaType classifies a media item.
type MediaType string

const (
	MediaFilm          MediaType = "FILM"
	MediaTVSeries      MediaType = "TV_SERIES"
	MediaAnime         MediaType = "ANIME"
	MediaDocumentary   MediaType = "DOCUMENTARY"
	MediaMusicAlbum    MediaType = "MUSIC_ALBUM"
	MediaPodcastSeries MediaType = "PODCAST_SERIES"
	MediaAudiobook     MediaType = "AUDIOBOOK"
	MediaVideoGame     MediaType = "VIDEO_GAME"
)

// MediaTypes are the legal values for MediaType.
var MediaTypes = []string{
	"FILM", "TV_SERIES", "ANIME", "DOCUMENTARY",
	"MUSIC_ALBUM", "PODCAST_SERIES", "AUDIOBOOK", "VIDEO_GAME",
}

func (t MediaType) Valid() bool { return contains(MediaTypes, string(t)) }

// UploadType classifies an upload item.
type UploadType string

const (
	UploadVideoFile UploadType = "VIDEO_FILE"
	UploadAudioFile UploadType = "AUDIO_FILE"
	UploadDocument  UploadType = "DOCUMENT"
	UploadImage     UploadType = "IMAGE"
	UploadArchive   UploadType = "ARCHIVE"
	UploadOther     UploadType = "OTHER"
)

// UploadTypes are the legal values for UploadType.
var UploadTypes = []string{"VIDEO_FILE", "AUDIO_FILE", "DOCUMENT", "IMAGE", "ARCHIVE", "OTHER"}

func (t UploadType) Valid() bool { return contains(UploadTypes, string(t)) }

// Defaults applied when optional enumerated fields are absent, and to
// counterparts created by the linker.
const (
	DefaultStatus   = StatusPending
	DefaultPriority = PriorityMedium
)

// NormalizeEnum upper-cases s and folds hyphens to underscores so that
// "tv-series", "Tv_Series" and "TV_SERIES" compare equal.
func NormalizeEnum(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	return strings.ReplaceAll(s, "-", "_")
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
