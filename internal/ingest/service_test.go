package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/catalog/internal/catalog"
	"github.com/JonMunkholm/catalog/internal/ledger"
	"github.com/JonMunkholm/catalog/internal/store"
)

// =============================================================================
// Helpers
// =============================================================================

func csvFile(lines ...string) []byte {
	return []byte(strings.Join(lines, "\n") + "\n")
}

func newTestService(t *testing.T, stores store.Set) (*Service, *ledger.Service) {
	t.Helper()
	led := ledger.NewService(ledger.NewMemory(), 0)
	return NewService(stores, Config{Ledger: led, MaxWait: time.Second}), led
}

func assertCountsMatch(t *testing.T, res *BatchResult) {
	t.Helper()
	if res.ErrorCount != len(res.Errors) {
		t.Errorf("ErrorCount = %d, len(Errors) = %d", res.ErrorCount, len(res.Errors))
	}
	if res.WarningCount != len(res.Warnings) {
		t.Errorf("WarningCount = %d, len(Warnings) = %d", res.WarningCount, len(res.Warnings))
	}
}

func containsMessage(ds []Diagnostic, sub string) bool {
	for _, d := range ds {
		if strings.Contains(d.Message, sub) {
			return true
		}
	}
	return false
}

// failingRepo wraps a repository and fails selected calls.
type failingRepo[T catalog.Record] struct {
	store.Repository[T]
	saveErr error
	findErr error
	saveOK  int // saves that succeed before saveErr applies
	saves   int
}

func (f *failingRepo[T]) Save(ctx context.Context, rec T) (T, error) {
	f.saves++
	if f.saveErr != nil && f.saves > f.saveOK {
		var zero T
		return zero, f.saveErr
	}
	return f.Repository.Save(ctx, rec)
}

func (f *failingRepo[T]) FindByKey(ctx context.Context, key string) (T, error) {
	if f.findErr != nil {
		var zero T
		return zero, f.findErr
	}
	return f.Repository.FindByKey(ctx, key)
}

// =============================================================================
// Scenarios
// =============================================================================

func TestIngest_TwoValidRows(t *testing.T) {
	stores := store.NewMemorySet()
	svc, _ := newTestService(t, stores)

	data := csvFile(
		"link,title,type,status,priority",
		"https://x/1,First,article,active,high",
		"https://x/2,Second,VIDEO,Draft,low",
	)
	res, err := svc.IngestContent(context.Background(), "content.csv", data, Options{})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if res.SuccessCount != 2 || res.ErrorCount != 0 {
		t.Fatalf("success=%d errors=%d (%v), want 2 and 0", res.SuccessCount, res.ErrorCount, res.ErrorMessages())
	}
	if res.Outcome() != OutcomeSuccess {
		t.Errorf("Outcome = %s, want success", res.Outcome())
	}
	if res.Counters[CounterNewEntries] != 2 {
		t.Errorf("newEntries = %d, want 2", res.Counters[CounterNewEntries])
	}
	if res.FileType != string(FormatCSV) || res.FileSize != int64(len(data)) {
		t.Errorf("file info = %s/%d", res.FileType, res.FileSize)
	}
	assertCountsMatch(t, res)

	got, err := stores.Content.FindByKey(context.Background(), "https://x/2")
	if err != nil {
		t.Fatalf("FindByKey: %v", err)
	}
	if got.Type != catalog.ContentVideo || got.Status != catalog.StatusDraft || got.Priority != catalog.PriorityLow {
		t.Errorf("stored = %+v", got)
	}
}

func TestIngest_DuplicateWithinBatch(t *testing.T) {
	stores := store.NewMemorySet()
	svc, led := newTestService(t, stores)

	data := csvFile(
		"link,title,type",
		"https://x/1,First,ARTICLE",
		"https://x/1,Again,ARTICLE",
		"https://x/2,Other,ARTICLE",
	)
	res, err := svc.IngestContent(context.Background(), "content.csv", data, Options{})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if res.SuccessCount != 1 {
		t.Errorf("SuccessCount = %d, want 1", res.SuccessCount)
	}
	if res.ErrorCount < 1 {
		t.Fatalf("ErrorCount = %d, want at least 1", res.ErrorCount)
	}
	d := res.Errors[0]
	if !strings.Contains(d.Message, "https://x/1") || !strings.Contains(d.Message, "rows 2, 3") {
		t.Errorf("message = %q", d.Message)
	}
	if len(d.Rows) != 2 || d.Rows[0] != 2 || d.Rows[1] != 3 {
		t.Errorf("Rows = %v, want [2 3]", d.Rows)
	}
	if d.Class != ClassDuplicate || d.Code != "DUP001" {
		t.Errorf("class/code = %s/%s", d.Class, d.Code)
	}
	if res.Outcome() != OutcomePartialSuccess {
		t.Errorf("Outcome = %s, want partial_success", res.Outcome())
	}
	assertCountsMatch(t, res)

	if ok, _ := stores.Content.ExistsByKey(context.Background(), "https://x/1"); ok {
		t.Error("duplicated key was persisted")
	}

	entries, err := led.ListByBatch(context.Background(), res.BatchID)
	if err != nil {
		t.Fatalf("ListByBatch: %v", err)
	}
	if len(entries) != 2 || entries[0].RowNumber != 2 || entries[1].RowNumber != 3 {
		t.Fatalf("ledger entries = %+v", entries)
	}
	if entries[1].RawData != "https://x/1,Again,ARTICLE" {
		t.Errorf("RawData = %q", entries[1].RawData)
	}
	if entries[0].ErrorType != string(ClassDuplicate) || entries[0].Suggestion == "" {
		t.Errorf("entry = %+v", entries[0])
	}
}

func TestIngest_BatchFatal(t *testing.T) {
	tests := []struct {
		name      string
		fileName  string
		data      []byte
		wantClass Class
		wantText  string
		wantCode  string
	}{
		{
			name:      "empty file",
			fileName:  "empty.csv",
			data:      nil,
			wantClass: ClassEmpty,
			wantText:  "empty",
			wantCode:  "FILE005",
		},
		{
			name:      "unsupported extension",
			fileName:  "data.txt",
			data:      []byte("link,title,type\n"),
			wantClass: ClassFormat,
			wantText:  "unsupported format",
			wantCode:  "FILE006",
		},
		{
			name:      "header only",
			fileName:  "content.csv",
			data:      csvFile("link,title,type"),
			wantClass: ClassEmpty,
			wantText:  "no data rows",
			wantCode:  "FILE007",
		},
		{
			name:      "json is not an array",
			fileName:  "content.json",
			data:      []byte(`{"link":"https://x/1"}`),
			wantClass: ClassFormat,
			wantText:  "unreadable json",
			wantCode:  "FILE003",
		},
		{
			name:      "spreadsheet is not a workbook",
			fileName:  "content.xlsx",
			data:      []byte("plain text"),
			wantClass: ClassFormat,
			wantText:  "unreadable spreadsheet",
			wantCode:  "FILE003",
		},
		{
			name:      "file too large",
			fileName:  "big.csv",
			data:      []byte(strings.Repeat("x", 65)),
			wantClass: ClassFormat,
			wantText:  "file too large",
			wantCode:  "FILE001",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			led := ledger.NewService(ledger.NewMemory(), 0)
			svc := NewService(store.NewMemorySet(), Config{Ledger: led, MaxFileSize: 64})

			res, err := svc.IngestContent(context.Background(), tt.fileName, tt.data, Options{})
			if err != nil {
				t.Fatalf("Ingest: %v", err)
			}
			if res.SuccessCount != 0 || res.ErrorCount != 1 {
				t.Fatalf("success=%d errors=%d, want 0 and 1", res.SuccessCount, res.ErrorCount)
			}
			d := res.Errors[0]
			if !strings.Contains(strings.ToLower(d.Message), tt.wantText) {
				t.Errorf("message %q does not mention %q", d.Message, tt.wantText)
			}
			if d.Class != tt.wantClass || d.Code != tt.wantCode {
				t.Errorf("class/code = %s/%s, want %s/%s", d.Class, d.Code, tt.wantClass, tt.wantCode)
			}
			if res.Outcome() != OutcomeCompleteFailure {
				t.Errorf("Outcome = %s", res.Outcome())
			}

			entries, _ := led.ListByBatch(context.Background(), res.BatchID)
			if len(entries) != 1 || entries[0].RowNumber != 0 {
				t.Errorf("ledger entries = %+v, want one batch-level entry", entries)
			}
		})
	}
}

func TestIngest_MissingRequiredFieldDoesNotStopBatch(t *testing.T) {
	svc, _ := newTestService(t, store.NewMemorySet())

	data := csvFile(
		"link,title,type",
		"https://x/1,No type,",
		"https://x/2,Has type,PODCAST",
		"https://x/3,Also fine,course",
	)
	res, err := svc.IngestContent(context.Background(), "content.csv", data, Options{})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if res.SuccessCount != 2 || res.ErrorCount != 1 {
		t.Fatalf("success=%d errors=%d, want 2 and 1", res.SuccessCount, res.ErrorCount)
	}
	d := res.Errors[0]
	if d.Message != "Row 2: missing required field(s): type" {
		t.Errorf("message = %q", d.Message)
	}
	if d.Row != 2 || d.Field != "type" || d.Class != ClassParse || d.Code != "VAL003" {
		t.Errorf("diagnostic = %+v", d)
	}
}

func TestIngest_UploadCreatesContent(t *testing.T) {
	ctx := context.Background()
	stores := store.NewMemorySet()
	svc, _ := newTestService(t, stores)

	data := csvFile(
		"link,name,type,content_link",
		"https://files/1,Intro Video,video_file,https://x/intro",
	)
	res, err := svc.IngestUpload(ctx, "uploads.csv", data, Options{})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.SuccessCount != 1 || res.ErrorCount != 0 {
		t.Fatalf("success=%d errors=%v", res.SuccessCount, res.ErrorMessages())
	}
	if res.Counters[CounterAutoCreatedContentEntries] != 1 {
		t.Errorf("autoCreatedContentEntries = %d, want 1", res.Counters[CounterAutoCreatedContentEntries])
	}

	content, err := stores.Content.FindByKey(ctx, "https://x/intro")
	if err != nil {
		t.Fatalf("content not created: %v", err)
	}
	if content.Status != catalog.DefaultStatus || content.Priority != catalog.DefaultPriority {
		t.Errorf("status/priority = %s/%s", content.Status, content.Priority)
	}
	if content.Type != catalog.ContentVideo {
		t.Errorf("Type = %s, want VIDEO", content.Type)
	}
	if len(content.Names) != 1 || content.Names[0] != "Intro Video" {
		t.Errorf("Names = %v", content.Names)
	}

	upload, err := stores.Upload.FindByKey(ctx, "https://files/1")
	if err != nil {
		t.Fatalf("FindByKey: %v", err)
	}
	if upload.ContentID != content.ID {
		t.Errorf("ContentID = %q, want %q", upload.ContentID, content.ID)
	}
}

func TestIngest_UploadMergesIntoExistingContent(t *testing.T) {
	ctx := context.Background()
	stores := store.NewMemorySet()
	existing, err := stores.Content.Save(ctx, catalog.NewContentItem("https://x/intro", "Intro", catalog.ContentArticle))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	svc, _ := newTestService(t, stores)

	data := csvFile(
		"link,name,type,content_link",
		"https://files/1,Intro Cut,VIDEO_FILE,https://x/intro",
		"https://files/2,intro cut,VIDEO_FILE,https://x/intro",
	)
	res, err := svc.IngestUpload(ctx, "uploads.csv", data, Options{})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.Counters[CounterUpdatedEntries] != 1 || res.Counters[CounterAutoCreatedContentEntries] != 0 {
		t.Errorf("counters = %v", res.Counters)
	}

	content, _ := stores.Content.FindByKey(ctx, "https://x/intro")
	if len(content.Names) != 2 {
		t.Errorf("Names = %v, want [Intro Intro Cut]", content.Names)
	}
	if content.Type != catalog.ContentArticle {
		t.Errorf("existing type changed to %s", content.Type)
	}
	for _, key := range []string{"https://files/1", "https://files/2"} {
		u, _ := stores.Upload.FindByKey(ctx, key)
		if u.ContentID != existing.ID {
			t.Errorf("%s ContentID = %q, want %q", key, u.ContentID, existing.ID)
		}
	}
}

func TestIngest_MediaCreatesUpload(t *testing.T) {
	ctx := context.Background()
	stores := store.NewMemorySet()
	svc, _ := newTestService(t, stores)

	data := []byte(`[
		{"name": "spirited away", "language": "JA", "type": "anime", "link": "https://files/sa", "rating": 8.6},
		{"name": "Spirited Away", "language": "en", "type": "anime", "link": "https://files/sa"}
	]`)
	res, err := svc.IngestMedia(ctx, "media.json", data, Options{})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.SuccessCount != 2 || res.ErrorCount != 0 {
		t.Fatalf("success=%d errors=%v", res.SuccessCount, res.ErrorMessages())
	}
	if res.Counters[CounterAutoCreatedUploadEntries] != 1 {
		t.Errorf("autoCreatedUploadEntries = %d, want 1", res.Counters[CounterAutoCreatedUploadEntries])
	}

	upload, err := stores.Upload.FindByKey(ctx, "https://files/sa")
	if err != nil {
		t.Fatalf("upload not created: %v", err)
	}
	if upload.Type != catalog.UploadVideoFile {
		t.Errorf("Type = %s, want VIDEO_FILE", upload.Type)
	}
	if len(upload.Names) != 1 || upload.Names[0] != "Spirited Away" {
		t.Errorf("Names = %v", upload.Names)
	}

	media, err := stores.Media.FindByKey(ctx, "Spirited Away|ja")
	if err != nil {
		t.Fatalf("FindByKey: %v", err)
	}
	if media.UploadID != upload.ID {
		t.Errorf("UploadID = %q, want %q", media.UploadID, upload.ID)
	}
}

func TestIngest_MediaLanguageNames(t *testing.T) {
	ctx := context.Background()
	stores := store.NewMemorySet()
	svc, _ := newTestService(t, stores)

	data := csvFile(
		"name,language,type",
		"Sholay,Hindi,film",
		"Central Station,pt-BR,FILM",
		"Solaris,ru,film",
	)
	res, err := svc.IngestMedia(ctx, "media.csv", data, Options{})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.SuccessCount != 3 || res.ErrorCount != 0 {
		t.Fatalf("success=%d errors=%v", res.SuccessCount, res.ErrorMessages())
	}

	for _, key := range []string{"Sholay|hindi", "Central Station|pt-br", "Solaris|ru"} {
		if ok, _ := stores.Media.ExistsByKey(ctx, key); !ok {
			t.Errorf("media %q not stored", key)
		}
	}
}

// =============================================================================
// Store pass and persistence
// =============================================================================

func TestIngest_KeyAlreadyStored(t *testing.T) {
	ctx := context.Background()
	stores := store.NewMemorySet()
	if _, err := stores.Content.Save(ctx, catalog.NewContentItem("https://x/1", "Old", catalog.ContentArticle)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	svc, led := newTestService(t, stores)

	data := csvFile(
		"link,title,type",
		"https://x/1,New title,ARTICLE",
		"https://x/2,Fresh,ARTICLE",
	)
	res, err := svc.IngestContent(ctx, "content.csv", data, Options{})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if res.SuccessCount != 1 || res.ErrorCount != 2 {
		t.Fatalf("success=%d errors=%v", res.SuccessCount, res.ErrorMessages())
	}
	if res.Errors[0].Message != `Row 2: key "https://x/1" already exists` {
		t.Errorf("row error = %q", res.Errors[0].Message)
	}
	if res.Errors[1].Message != `1 record(s) already exist: "https://x/1"` {
		t.Errorf("summary = %q", res.Errors[1].Message)
	}

	entries, _ := led.ListByBatch(ctx, res.BatchID)
	if len(entries) != 1 || entries[0].RowNumber != 2 {
		t.Errorf("ledger entries = %+v, want one for row 2", entries)
	}

	old, _ := stores.Content.FindByKey(ctx, "https://x/1")
	if old.Title != "Old" {
		t.Errorf("stored title changed to %q", old.Title)
	}
}

func TestExistingSummaryPreview(t *testing.T) {
	keys := []string{"a", "b", "c", "d", "e", "f", "g"}
	got := existingSummary(keys)
	want := `7 record(s) already exist: "a", "b", "c", "d", "e" and 2 more`
	if got != want {
		t.Errorf("existingSummary = %q, want %q", got, want)
	}
}

func TestIngest_SaveFailures(t *testing.T) {
	tests := []struct {
		name      string
		saveErr   error
		wantClass Class
		wantText  string
		wantCode  string
	}{
		{
			name:      "lost race to a concurrent batch",
			saveErr:   store.ErrDuplicateKey,
			wantClass: ClassDuplicate,
			wantText:  "already exists",
			wantCode:  "DB001",
		},
		{
			name:      "store unavailable",
			saveErr:   errors.New("dial tcp: connection refused"),
			wantClass: ClassPersistence,
			wantText:  "could not save record",
			wantCode:  "DB004",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stores := store.NewMemorySet()
			stores.Content = &failingRepo[*catalog.ContentItem]{Repository: stores.Content, saveErr: tt.saveErr}
			svc, led := newTestService(t, stores)

			data := csvFile("link,title,type", "https://x/1,First,ARTICLE")
			res, err := svc.IngestContent(context.Background(), "content.csv", data, Options{})
			if err != nil {
				t.Fatalf("Ingest: %v", err)
			}
			if res.SuccessCount != 0 || res.ErrorCount != 1 {
				t.Fatalf("success=%d errors=%v", res.SuccessCount, res.ErrorMessages())
			}
			d := res.Errors[0]
			if d.Class != tt.wantClass || !strings.Contains(d.Message, tt.wantText) || d.Row != 2 || d.Code != tt.wantCode {
				t.Errorf("diagnostic = %+v", d)
			}
			if res.Counters[CounterNewEntries] != 0 {
				t.Errorf("newEntries = %d", res.Counters[CounterNewEntries])
			}
			entries, _ := led.ListByBatch(context.Background(), res.BatchID)
			if len(entries) != 1 {
				t.Errorf("ledger entries = %d, want 1", len(entries))
			}
		})
	}
}

func TestIngest_LinkFailureIsWarning(t *testing.T) {
	stores := store.NewMemorySet()
	stores.Content = &failingRepo[*catalog.ContentItem]{Repository: stores.Content, findErr: errors.New("connection reset by peer")}
	svc, led := newTestService(t, stores)

	data := csvFile(
		"link,name,type,content_link,status,priority",
		"https://files/1,Clip,VIDEO_FILE,https://x/1,ACTIVE,HIGH",
	)
	res, err := svc.IngestUpload(context.Background(), "uploads.csv", data, Options{})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.SuccessCount != 1 || res.ErrorCount != 0 {
		t.Fatalf("success=%d errors=%v", res.SuccessCount, res.ErrorMessages())
	}
	if res.WarningCount != 1 || res.Warnings[0].Class != ClassLink || res.Warnings[0].Code != "LNK001" {
		t.Errorf("warnings = %+v", res.Warnings)
	}
	if ok, _ := stores.Upload.ExistsByKey(context.Background(), "https://files/1"); !ok {
		t.Error("upload was not kept after link failure")
	}
	entries, _ := led.ListByBatch(context.Background(), res.BatchID)
	if len(entries) != 0 {
		t.Errorf("link warning written to ledger: %+v", entries)
	}
}

func TestIngest_CodesIgnoreQuotedValues(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		data     []byte
		wantCode string
	}{
		{
			name:     "enum value reads like a duplicate",
			fileName: "content.csv",
			data:     csvFile("link,title,type", "https://x/1,One,already exists"),
			wantCode: "VAL006",
		},
		{
			name:     "file name reads like a timeout",
			fileName: "timeout.csv",
			data:     csvFile("link,title,type"),
			wantCode: "FILE007",
		},
		{
			name:     "link reads like a connection error",
			fileName: "content.csv",
			data:     csvFile("link,title,type", "connection refused,One,ARTICLE"),
			wantCode: "VAL007",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t, store.NewMemorySet())
			res, err := svc.IngestContent(context.Background(), tt.fileName, tt.data, Options{})
			if err != nil {
				t.Fatalf("Ingest: %v", err)
			}
			if res.ErrorCount != 1 || res.Errors[0].Code != tt.wantCode {
				t.Errorf("errors = %+v, want one %s", res.Errors, tt.wantCode)
			}
		})
	}
}

func TestIngest_BackReferenceFailureStillCountsLink(t *testing.T) {
	ctx := context.Background()
	stores := store.NewMemorySet()
	stores.Upload = &failingRepo[*catalog.UploadItem]{Repository: stores.Upload, saveErr: errors.New("disk full"), saveOK: 1}
	svc, _ := newTestService(t, stores)

	data := csvFile(
		"link,name,type,content_link",
		"https://files/1,Clip,VIDEO_FILE,https://x/1",
	)
	res, err := svc.IngestUpload(ctx, "uploads.csv", data, Options{})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.SuccessCount != 1 || res.ErrorCount != 0 {
		t.Fatalf("success=%d errors=%v", res.SuccessCount, res.ErrorMessages())
	}
	if res.WarningCount != 1 || res.Warnings[0].Code != "LNK001" {
		t.Errorf("warnings = %+v", res.Warnings)
	}
	if res.Counters[CounterAutoCreatedContentEntries] != 1 {
		t.Errorf("autoCreatedContentEntries = %d, want 1", res.Counters[CounterAutoCreatedContentEntries])
	}
	if ok, _ := stores.Content.ExistsByKey(ctx, "https://x/1"); !ok {
		t.Error("auto-created content was not kept")
	}
}

// =============================================================================
// Options and limits
// =============================================================================

func TestIngest_DryRun(t *testing.T) {
	ctx := context.Background()
	stores := store.NewMemorySet()
	svc, led := newTestService(t, stores)

	data := csvFile(
		"link,name,type,content_link",
		"https://files/1,Clip,VIDEO_FILE,https://x/1",
		"https://files/2,Bad,NOT_A_TYPE,",
	)
	res, err := svc.IngestUpload(ctx, "uploads.csv", data, Options{DryRun: true})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if !res.DryRun || res.SuccessCount != 1 || res.ErrorCount != 1 {
		t.Fatalf("dryRun=%v success=%d errors=%d", res.DryRun, res.SuccessCount, res.ErrorCount)
	}

	if all, _ := stores.Upload.FindAll(ctx); len(all) != 0 {
		t.Errorf("dry run saved %d uploads", len(all))
	}
	if all, _ := stores.Content.FindAll(ctx); len(all) != 0 {
		t.Errorf("dry run linked %d content items", len(all))
	}
	if c, _ := led.CountsByKind(ctx, ""); c.Total != 0 {
		t.Errorf("dry run wrote %d ledger entries", c.Total)
	}
}

func TestIngest_Defaults(t *testing.T) {
	ctx := context.Background()
	stores := store.NewMemorySet()
	svc, _ := newTestService(t, stores)

	data := csvFile("link,title,type", "https://x/1,First,EBOOK")
	res, err := svc.IngestContent(ctx, "content.csv", data, Options{})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.ErrorCount != 0 || res.WarningCount != 2 {
		t.Fatalf("errors=%v warnings=%v", res.ErrorMessages(), res.WarningMessages())
	}
	if !containsMessage(res.Warnings, "priority not set, defaulted to MEDIUM") {
		t.Errorf("warnings = %v", res.WarningMessages())
	}

	got, _ := stores.Content.FindByKey(ctx, "https://x/1")
	if got.Status != catalog.StatusPending || got.Priority != catalog.PriorityMedium {
		t.Errorf("status/priority = %s/%s", got.Status, got.Priority)
	}
}

func TestIngest_UnknownKind(t *testing.T) {
	svc, _ := newTestService(t, store.NewMemorySet())
	_, err := svc.Ingest(context.Background(), catalog.Kind("bogus"), "x.csv", []byte("a\nb\n"), Options{})
	if !errors.Is(err, ErrUnknownKind) {
		t.Errorf("err = %v, want ErrUnknownKind", err)
	}
}

func TestIngest_NoFreeSlot(t *testing.T) {
	svc := NewService(store.NewMemorySet(), Config{MaxConcurrent: 1, MaxWait: 10 * time.Millisecond})
	if err := svc.Limiter().Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire on an idle limiter: %v", err)
	}
	defer svc.Limiter().Release()

	_, err := svc.IngestContent(context.Background(), "content.csv", csvFile("link,title,type", "https://x/1,A,ARTICLE"), Options{})
	if !errors.Is(err, ErrTooManyBatches) {
		t.Errorf("err = %v, want ErrTooManyBatches", err)
	}
}

func TestIngest_StatsKeyedByLinkAndPeriod(t *testing.T) {
	ctx := context.Background()
	stores := store.NewMemorySet()
	svc, _ := newTestService(t, stores)

	data := csvFile(
		"content_link,period,views,likes,revenue,source",
		`https://x/1,2024-01-31,"1,200",15,$12.50,youtube`,
		"https://x/1,01/31/2024,3,1,,rss",
		"https://x/1,2024-02-29,10,2,0.5,rss",
	)
	res, err := svc.IngestStats(ctx, "stats.csv", data, Options{})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.SuccessCount != 1 || res.ErrorCount != 1 {
		t.Fatalf("success=%d errors=%v", res.SuccessCount, res.ErrorMessages())
	}
	if !strings.Contains(res.Errors[0].Message, `"https://x/1|2024-01-31" appears on rows 2, 3`) {
		t.Errorf("message = %q", res.Errors[0].Message)
	}

	got, err := stores.Stats.FindByKey(ctx, "https://x/1|2024-02-29")
	if err != nil {
		t.Fatalf("FindByKey: %v", err)
	}
	if got.Views != 10 || got.Likes != 2 || !got.Revenue.Valid {
		t.Errorf("stored = %+v", got)
	}
}

func TestService_Kinds(t *testing.T) {
	svc, _ := newTestService(t, store.NewMemorySet())
	kinds := svc.Kinds()
	if len(kinds) != len(catalog.Kinds) {
		t.Fatalf("Kinds() returned %d, want %d", len(kinds), len(catalog.Kinds))
	}
	byKind := make(map[catalog.Kind]KindInfo)
	for _, k := range kinds {
		byKind[k.Kind] = k
	}
	if got := byKind[catalog.KindUpload]; got.LinksTo != catalog.KindContent || got.Columns[3] != "content_link" {
		t.Errorf("upload info = %+v", got)
	}
	if got := byKind[catalog.KindMedia]; got.LinksTo != catalog.KindUpload || got.NaturalKey != "name|language" {
		t.Errorf("media info = %+v", got)
	}
	if got := byKind[catalog.KindContent]; len(got.Required) != 3 || got.LinksTo != "" {
		t.Errorf("content info = %+v", got)
	}
}

func TestBatchResult_ToMap(t *testing.T) {
	svc, _ := newTestService(t, store.NewMemorySet())
	data := csvFile("link,name,type,content_link", "https://files/1,Clip,IMAGE,https://x/1")
	res, err := svc.IngestUpload(context.Background(), "uploads.csv", data, Options{})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	m := res.ToMap()
	for _, key := range []string{
		"successCount", "errorCount", "warningCount", "errors", "warnings",
		"fileName", "fileType", "fileSize", "processedAt", "processingTimeMs",
		CounterNewEntries, CounterUpdatedEntries, CounterAutoCreatedContentEntries,
	} {
		if _, ok := m[key]; !ok {
			t.Errorf("ToMap missing %q", key)
		}
	}
	if m["fileName"] != "uploads.csv" || m["successCount"] != 1 {
		t.Errorf("ToMap = %v", m)
	}
}
