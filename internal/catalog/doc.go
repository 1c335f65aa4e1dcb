// Package catalog defines the record kinds managed by the catalog backend.
//
// There are four kinds, each with a natural key used for duplicate detection:
//
//   - content: ContentItem, keyed by its link
//   - media:   MediaItem, keyed by name and language
//   - upload:  UploadItem, keyed by its link
//   - stats:   StatsItem, keyed by content link and period
//
// Records are plain structs. Persistence assigns the ID and timestamps
// through the [Record] interface; cross-catalog links go through
// [Linkable] on the referencing side and [NameHolder] on the referenced side.
package catalog
