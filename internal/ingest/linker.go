package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/JonMunkholm/catalog/internal/catalog"
	"github.com/JonMunkholm/catalog/internal/store"
)

// LinkOutcome is what linking did to the counterpart.
type LinkOutcome string

const (
	LinkCreated   LinkOutcome = "created"
	LinkMerged    LinkOutcome = "merged"
	LinkUnchanged LinkOutcome = "unchanged"
	LinkSkipped   LinkOutcome = "skipped"
)

// Linker connects records of a source kind to counterparts of another kind
// by the counterpart's natural key, creating counterparts that are missing.
type Linker[S catalog.Linkable, C catalog.NameHolder] struct {
	Sources      store.Repository[S]
	Counterparts store.Repository[C]
	Types        TypeMap
	// New builds a minimal counterpart for key with the given name and
	// mapped type.
	New func(key, name, typ string) C
}

// Link finds or creates src's counterpart, merges src's name into it and
// sets src's back-reference unless one is already set. Linking the same
// source twice leaves the counterpart unchanged.
func (l *Linker[S, C]) Link(ctx context.Context, src S) (LinkOutcome, error) {
	ref := src.LinkRef()
	if ref == "" {
		return LinkSkipped, nil
	}

	cp, outcome, err := l.counterpart(ctx, src, ref)
	if err != nil {
		return "", err
	}

	if src.SetLinkedID(cp.RecordID()) {
		if _, err := l.Sources.Save(ctx, src); err != nil {
			return outcome, fmt.Errorf("save back-reference: %w", err)
		}
	}
	return outcome, nil
}

func (l *Linker[S, C]) counterpart(ctx context.Context, src S, ref string) (C, LinkOutcome, error) {
	var zero C

	cp, err := l.Counterparts.FindByKey(ctx, ref)
	if errors.Is(err, store.ErrNotFound) {
		created, saveErr := l.Counterparts.Save(ctx, l.New(ref, src.LinkName(), l.Types.Lookup(src.LinkType())))
		if saveErr == nil {
			return created, LinkCreated, nil
		}
		if !errors.Is(saveErr, store.ErrDuplicateKey) {
			return zero, "", fmt.Errorf("create counterpart %q: %w", ref, saveErr)
		}
		// Another batch created it between our lookup and save.
		cp, err = l.Counterparts.FindByKey(ctx, ref)
	}
	if err != nil {
		return zero, "", fmt.Errorf("find counterpart %q: %w", ref, err)
	}

	if !cp.AddName(src.LinkName()) {
		return cp, LinkUnchanged, nil
	}
	saved, err := l.Counterparts.Save(ctx, cp)
	if err != nil {
		return zero, "", fmt.Errorf("update counterpart %q: %w", ref, err)
	}
	return saved, LinkMerged, nil
}

// NewUploadContentLinker links uploads to the content item named by their
// content link.
func NewUploadContentLinker(stores store.Set, types TypeMap) *Linker[*catalog.UploadItem, *catalog.ContentItem] {
	return &Linker[*catalog.UploadItem, *catalog.ContentItem]{
		Sources:      stores.Upload,
		Counterparts: stores.Content,
		Types:        types,
		New: func(key, name, typ string) *catalog.ContentItem {
			return catalog.NewContentItem(key, name, catalog.ContentType(typ))
		},
	}
}

// NewMediaUploadLinker links media items to the upload named by their link.
func NewMediaUploadLinker(stores store.Set, types TypeMap) *Linker[*catalog.MediaItem, *catalog.UploadItem] {
	return &Linker[*catalog.MediaItem, *catalog.UploadItem]{
		Sources:      stores.Media,
		Counterparts: stores.Upload,
		Types:        types,
		New: func(key, name, typ string) *catalog.UploadItem {
			return catalog.NewUploadItem(key, name, catalog.UploadType(typ))
		},
	}
}
