package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/JonMunkholm/catalog/internal/catalog"
	"github.com/JonMunkholm/catalog/internal/store"
)

// Counter keys merged into every batch result.
const (
	CounterNewEntries                = "newEntries"
	CounterUpdatedEntries            = "updatedEntries"
	CounterAutoCreatedContentEntries = "autoCreatedContentEntries"
	CounterAutoCreatedUploadEntries  = "autoCreatedUploadEntries"
)

// runner is the kind-erased view of a pipeline the service dispatches to.
type runner interface {
	kind() catalog.Kind
	describe() KindInfo
	counters() []string
	run(ctx context.Context, rows []Row, dryRun bool, log *slog.Logger) Report
}

// pipeline ingests rows of one catalog kind.
type pipeline[T catalog.Record] struct {
	def  KindDef[T]
	repo store.Repository[T]

	// link is nil for kinds that reference nothing.
	link        func(ctx context.Context, rec T) (LinkOutcome, error)
	linksTo     catalog.Kind
	linkCounter string
}

func (p *pipeline[T]) kind() catalog.Kind { return p.def.Kind }

func (p *pipeline[T]) describe() KindInfo {
	info := p.def.info()
	info.LinksTo = p.linksTo
	return info
}

func (p *pipeline[T]) counters() []string {
	keys := []string{CounterNewEntries, CounterUpdatedEntries}
	if p.linkCounter != "" {
		keys = append(keys, p.linkCounter)
	}
	return keys
}

// run processes rows in order: parse, validate, intra-batch duplicates,
// store duplicates, then save and link each survivor. A failing row never
// stops the rows after it.
func (p *pipeline[T]) run(ctx context.Context, rows []Row, dryRun bool, log *slog.Logger) Report {
	var rep Report
	for _, k := range p.counters() {
		rep.Count(k, 0)
	}

	cands := make([]candidate[T], 0, len(rows))
	for _, row := range rows {
		rec, warnings, err := p.def.Parser.Parse(row)
		if err != nil {
			rep.Error(fieldErrorDiagnostic(row, err))
			continue
		}
		for _, w := range warnings {
			rep.Warn(w)
		}
		if d := validateRecord(row.Number(), rec); d != nil {
			d.raw = []string{row.Raw()}
			rep.Error(*d)
			continue
		}
		cands = append(cands, candidate[T]{row: row.Number(), raw: row.Raw(), rec: rec})
	}

	cands, dupRep := dedupeBatch(cands)
	rep.Merge(dupRep)

	cands, storeRep := dedupeStore(ctx, p.repo, cands)
	rep.Merge(storeRep)

	saved := make([]T, 0, len(cands))
	for _, c := range cands {
		if dryRun {
			rep.Succeed()
			rep.Count(CounterNewEntries, 1)
			saved = append(saved, c.rec)
			continue
		}

		rec, err := p.repo.Save(ctx, c.rec)
		if err != nil {
			rep.Error(p.saveError(c, err, log))
			continue
		}
		rep.Succeed()
		rep.Count(CounterNewEntries, 1)
		saved = append(saved, rec)

		if p.link != nil {
			p.linkRecord(ctx, c.row, rec, &rep, log)
		}
	}

	for _, w := range adviseBatch(p.def, saved) {
		rep.Warn(w)
	}
	return rep
}

func (p *pipeline[T]) saveError(c candidate[T], err error, log *slog.Logger) Diagnostic {
	key := c.rec.NaturalKey()
	var d Diagnostic
	if errors.Is(err, store.ErrDuplicateKey) {
		// Another batch saved the key after our store pass.
		d = newDiagnostic(ClassDuplicate, c.row, reasonDuplicateSave,
			fmt.Sprintf("Row %d: key %q already exists (duplicate key saved by a concurrent upload)", c.row, key))
		log.Warn("duplicate key at save", "row", c.row, "key", key)
	} else {
		d = newErrorDiagnostic(ClassPersistence, c.row, err, fmt.Sprintf("Row %d: could not save record: %v", c.row, err))
		log.Error("save failed", "row", c.row, "key", key, "error", err)
	}
	d.Value = key
	d.raw = []string{c.raw}
	return d
}

// linkRecord counts what the linker did to the counterpart, also when a
// later link step failed.
func (p *pipeline[T]) linkRecord(ctx context.Context, row int, rec T, rep *Report, log *slog.Logger) {
	outcome, err := p.link(ctx, rec)

	switch outcome {
	case LinkCreated:
		rep.Count(p.linkCounter, 1)
	case LinkMerged:
		rep.Count(CounterUpdatedEntries, 1)
	}
	if outcome != "" {
		linksTotal.WithLabelValues(string(p.def.Kind), string(outcome)).Inc()
	}

	if err != nil {
		linksTotal.WithLabelValues(string(p.def.Kind), "failed").Inc()
		d := newDiagnostic(ClassLink, row, reasonLinkFailed,
			fmt.Sprintf("Row %d: could not link to %s: %v", row, p.linksTo, err))
		d.Value = rec.NaturalKey()
		rep.Warn(d)
		log.Warn("link failed", "row", row, "key", rec.NaturalKey(), "outcome", outcome, "error", err)
	}
}

// newRunners builds the pipeline of every kind over stores.
func newRunners(stores store.Set, maps LinkMaps) map[catalog.Kind]runner {
	uploadLinker := NewUploadContentLinker(stores, maps.UploadToContent)
	mediaLinker := NewMediaUploadLinker(stores, maps.MediaToUpload)

	return map[catalog.Kind]runner{
		catalog.KindContent: &pipeline[*catalog.ContentItem]{
			def:  ContentDef,
			repo: stores.Content,
		},
		catalog.KindMedia: &pipeline[*catalog.MediaItem]{
			def:         MediaDef,
			repo:        stores.Media,
			link:        mediaLinker.Link,
			linksTo:     catalog.KindUpload,
			linkCounter: CounterAutoCreatedUploadEntries,
		},
		catalog.KindUpload: &pipeline[*catalog.UploadItem]{
			def:         UploadDef,
			repo:        stores.Upload,
			link:        uploadLinker.Link,
			linksTo:     catalog.KindContent,
			linkCounter: CounterAutoCreatedContentEntries,
		},
		catalog.KindStats: &pipeline[*catalog.StatsItem]{
			def:  StatsDef,
			repo: stores.Stats,
		},
	}
}
