package store

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/JonMunkholm/catalog/internal/catalog"
)

// =============================================================================
// Backends under test
// =============================================================================

func backends(t *testing.T) map[string]Repository[*catalog.ContentItem] {
	t.Helper()

	db, err := OpenBadger(BadgerConfig{InMemory: true})
	if err != nil {
		t.Fatalf("OpenBadger: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return map[string]Repository[*catalog.ContentItem]{
		"memory": NewMemory(NewContent),
		"badger": NewBadger(db, catalog.KindContent, NewContent),
	}
}

func content(link, title string) *catalog.ContentItem {
	return &catalog.ContentItem{
		Link:     link,
		Title:    title,
		Type:     catalog.ContentArticle,
		Status:   catalog.StatusActive,
		Priority: catalog.PriorityHigh,
	}
}

// =============================================================================
// Repository contract
// =============================================================================

func TestRepository_SaveAssignsIdentity(t *testing.T) {
	for name, repo := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			saved, err := repo.Save(ctx, content("https://x/1", "One"))
			if err != nil {
				t.Fatalf("Save: %v", err)
			}
			if saved.ID == "" {
				t.Fatal("Save did not assign an ID")
			}
			if saved.CreatedAt.IsZero() || saved.UpdatedAt.IsZero() {
				t.Error("Save did not stamp timestamps")
			}

			got, err := repo.FindByID(ctx, saved.ID)
			if err != nil {
				t.Fatalf("FindByID: %v", err)
			}
			if got.Link != "https://x/1" || got.Title != "One" {
				t.Errorf("FindByID = %+v", got)
			}
			if got == saved {
				t.Error("FindByID returned the caller's pointer")
			}
		})
	}
}

func TestRepository_DuplicateKey(t *testing.T) {
	for name, repo := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if _, err := repo.Save(ctx, content("https://x/1", "One")); err != nil {
				t.Fatalf("first Save: %v", err)
			}
			_, err := repo.Save(ctx, content("https://x/1", "Other"))
			if !errors.Is(err, ErrDuplicateKey) {
				t.Fatalf("second Save err = %v, want ErrDuplicateKey", err)
			}

			all, err := repo.FindAll(ctx)
			if err != nil {
				t.Fatalf("FindAll: %v", err)
			}
			if len(all) != 1 {
				t.Errorf("FindAll returned %d records, want 1", len(all))
			}
		})
	}
}

func TestRepository_UpdateKeepsKey(t *testing.T) {
	for name, repo := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			saved, err := repo.Save(ctx, content("https://x/1", "One"))
			if err != nil {
				t.Fatalf("Save: %v", err)
			}
			created := saved.CreatedAt

			saved.AddName("Alias")
			updated, err := repo.Save(ctx, saved)
			if err != nil {
				t.Fatalf("re-Save: %v", err)
			}
			if !updated.CreatedAt.Equal(created) {
				t.Errorf("CreatedAt changed on update: %v -> %v", created, updated.CreatedAt)
			}

			got, err := repo.FindByKey(ctx, "https://x/1")
			if err != nil {
				t.Fatalf("FindByKey: %v", err)
			}
			if len(got.Names) != 1 || got.Names[0] != "Alias" {
				t.Errorf("Names = %v, want [Alias]", got.Names)
			}
		})
	}
}

func TestRepository_KeyChangeReleasesOldKey(t *testing.T) {
	for name, repo := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			saved, err := repo.Save(ctx, content("https://x/old", "One"))
			if err != nil {
				t.Fatalf("Save: %v", err)
			}
			saved.Link = "https://x/new"
			if _, err := repo.Save(ctx, saved); err != nil {
				t.Fatalf("re-Save: %v", err)
			}

			if ok, _ := repo.ExistsByKey(ctx, "https://x/old"); ok {
				t.Error("old key still indexed")
			}
			if ok, _ := repo.ExistsByKey(ctx, "https://x/new"); !ok {
				t.Error("new key not indexed")
			}
		})
	}
}

func TestRepository_NotFound(t *testing.T) {
	for name, repo := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if _, err := repo.FindByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Errorf("FindByID err = %v, want ErrNotFound", err)
			}
			if _, err := repo.FindByKey(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Errorf("FindByKey err = %v, want ErrNotFound", err)
			}
			if err := repo.DeleteByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Errorf("DeleteByID err = %v, want ErrNotFound", err)
			}
			ok, err := repo.ExistsByKey(ctx, "missing")
			if err != nil || ok {
				t.Errorf("ExistsByKey = %v, %v; want false, nil", ok, err)
			}
		})
	}
}

func TestRepository_Delete(t *testing.T) {
	for name, repo := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			saved, err := repo.Save(ctx, content("https://x/1", "One"))
			if err != nil {
				t.Fatalf("Save: %v", err)
			}
			if err := repo.DeleteByID(ctx, saved.ID); err != nil {
				t.Fatalf("DeleteByID: %v", err)
			}
			if ok, _ := repo.ExistsByKey(ctx, "https://x/1"); ok {
				t.Error("key still exists after delete")
			}
			// The key is free again.
			if _, err := repo.Save(ctx, content("https://x/1", "Again")); err != nil {
				t.Errorf("Save after delete: %v", err)
			}
		})
	}
}

func TestMemory_ConcurrentSameKey(t *testing.T) {
	repo := NewMemory(NewContent)
	ctx := context.Background()

	const writers = 20
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Save(ctx, content("https://x/race", "Race"))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, dup int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrDuplicateKey):
			dup++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 || dup != writers-1 {
		t.Errorf("ok=%d dup=%d, want 1 and %d", ok, dup, writers-1)
	}
}

// =============================================================================
// Postgres statement building
// =============================================================================

func TestPostgres_UpsertQuery(t *testing.T) {
	p := NewPostgres[*catalog.ContentItem](nil, catalog.KindContent, NewContent)
	rec := content("https://x/1", "One")
	rec.SetRecordID("6f1c1f5e-0000-4000-8000-000000000001")

	query, args, err := p.upsertQuery(rec, []byte(`{}`), p.now())
	if err != nil {
		t.Fatalf("upsertQuery: %v", err)
	}

	for _, want := range []string{
		"INSERT INTO catalog_content",
		"(id,natural_key,data,created_at,updated_at)",
		"VALUES ($1,$2,$3,$4,$5)",
		"ON CONFLICT (id) DO UPDATE",
	} {
		if !strings.Contains(query, want) {
			t.Errorf("query %q missing %q", query, want)
		}
	}
	if len(args) != 5 {
		t.Fatalf("len(args) = %d, want 5", len(args))
	}
	if args[1] != "https://x/1" {
		t.Errorf("natural key arg = %v", args[1])
	}
}

func TestSchema_UniqueNaturalKey(t *testing.T) {
	stmts := Schema()
	for _, k := range catalog.Kinds {
		found := false
		for _, s := range stmts {
			if strings.Contains(s, "CREATE TABLE IF NOT EXISTS "+TableName(k)) {
				found = true
				if !strings.Contains(s, "natural_key TEXT NOT NULL UNIQUE") {
					t.Errorf("%s table lacks a unique natural key", k)
				}
			}
		}
		if !found {
			t.Errorf("no table for kind %s", k)
		}
	}
}
