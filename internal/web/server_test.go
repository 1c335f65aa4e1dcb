package web

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/catalog/internal/config"
	"github.com/JonMunkholm/catalog/internal/ingest"
	"github.com/JonMunkholm/catalog/internal/ledger"
	"github.com/JonMunkholm/catalog/internal/store"
)

// =============================================================================
// Helpers
// =============================================================================

type testEnv struct {
	srv    *Server
	stores store.Set
	ledger *ledger.Service
}

func newTestEnv(t *testing.T, withLedger bool) testEnv {
	t.Helper()
	cfg, err := config.LoadFrom(func(string) (string, bool) { return "", false })
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	cfg.Rate.Enabled = false

	stores := store.NewMemorySet()
	var led *ledger.Service
	if withLedger {
		led = ledger.NewService(ledger.NewMemory(), 0)
	}
	ing := ingest.NewService(stores, ingest.Config{Ledger: led, MaxWait: time.Second})
	return testEnv{srv: NewServer(cfg, ing, led), stores: stores, ledger: led}
}

func (e testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.srv.Router().ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, path, fileName, body string, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if fileName != "" {
		fw, err := mw.CreateFormFile("file", fileName)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = fw.Write([]byte(body))
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

const contentCSV = "link,title,type\nhttps://x/1,One,ARTICLE\nhttps://x/2,,VIDEO\n"

// =============================================================================
// Ingest
// =============================================================================

func TestIngest_PartialSuccess(t *testing.T) {
	env := newTestEnv(t, true)
	rec := env.do(t, uploadRequest(t, "/api/ingest/content", "items.csv", contentCSV, nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	res := decode[map[string]any](t, rec)
	if res["outcome"] != "partial_success" || res["successCount"] != float64(1) || res["errorCount"] != float64(1) {
		t.Errorf("result = %v", res)
	}
	if res["newEntries"] != float64(1) {
		t.Errorf("newEntries = %v, want 1", res["newEntries"])
	}
	if id, _ := res["batchId"].(string); len(id) != 8 {
		t.Errorf("batchId = %v", res["batchId"])
	}
	if _, err := env.stores.Content.FindByKey(context.Background(), "https://x/1"); err != nil {
		t.Errorf("record not saved: %v", err)
	}
}

func TestIngest_DryRun(t *testing.T) {
	env := newTestEnv(t, true)
	rec := env.do(t, uploadRequest(t, "/api/ingest/CONTENT", "items.csv", contentCSV, map[string]string{"dryRun": "true"}))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if res := decode[map[string]any](t, rec); res["dryRun"] != true {
		t.Errorf("dryRun = %v", res["dryRun"])
	}
	all, _ := env.stores.Content.FindAll(context.Background())
	if len(all) != 0 {
		t.Errorf("dry run saved %d records", len(all))
	}
}

func TestIngest_RequestErrors(t *testing.T) {
	tests := []struct {
		name     string
		req      func(t *testing.T) *http.Request
		wantCode int
		wantErr  string
	}{
		{
			name:     "unknown kind",
			req:      func(t *testing.T) *http.Request { return uploadRequest(t, "/api/ingest/books", "a.csv", contentCSV, nil) },
			wantCode: http.StatusNotFound,
			wantErr:  "UPL006",
		},
		{
			name:     "no file",
			req:      func(t *testing.T) *http.Request { return uploadRequest(t, "/api/ingest/content", "", "", nil) },
			wantCode: http.StatusBadRequest,
			wantErr:  "REQ001",
		},
		{
			name: "bad dry run flag",
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "/api/ingest/content", "a.csv", contentCSV, map[string]string{"dryRun": "perhaps"})
			},
			wantCode: http.StatusBadRequest,
			wantErr:  "REQ001",
		},
		{
			name: "not multipart",
			req: func(t *testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/api/ingest/content", strings.NewReader("x"))
			},
			wantCode: http.StatusBadRequest,
			wantErr:  "REQ001",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, false)
			rec := env.do(t, tt.req(t))
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantCode, rec.Body.String())
			}
			if body := decode[ErrorResponse](t, rec); body.Code != tt.wantErr || body.Message == "" {
				t.Errorf("body = %+v", body)
			}
		})
	}
}

func TestIngest_BatchFatalIsAResult(t *testing.T) {
	env := newTestEnv(t, true)
	rec := env.do(t, uploadRequest(t, "/api/ingest/media", "notes.txt", "hello", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	res := decode[map[string]any](t, rec)
	if res["outcome"] != "complete_failure" {
		t.Errorf("outcome = %v", res["outcome"])
	}
}

func TestKindsAndStatus(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/kinds", nil))
	kinds := decode[[]ingest.KindInfo](t, rec)
	if len(kinds) != 4 || kinds[0].Kind != "content" {
		t.Errorf("kinds = %+v", kinds)
	}

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	st := decode[map[string]any](t, rec)
	if st["ledger"] != false || st["maxFileSize"] != float64(ingest.DefaultMaxFileSize) {
		t.Errorf("status = %v", st)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, false)
	for _, path := range []string{"/healthz", "/metrics"} {
		rec := env.do(t, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d", path, rec.Code)
		}
	}
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
}

// =============================================================================
// Ledger
// =============================================================================

func TestLedger_TriageFlow(t *testing.T) {
	env := newTestEnv(t, true)
	rec := env.do(t, uploadRequest(t, "/api/ingest/content", "items.csv", contentCSV, nil))
	batchID := decode[map[string]any](t, rec)["batchId"].(string)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/ledger/batches/"+strings.ToLower(batchID), nil))
	batch := decode[entriesResponse](t, rec)
	if batch.Count != 1 || batch.Entries[0].RowNumber != 3 || batch.Entries[0].FieldName != "title" {
		t.Fatalf("batch = %+v", batch)
	}
	id := batch.Entries[0].ID

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/ledger/unresolved?kind=content", nil))
	if got := decode[entriesResponse](t, rec); got.Count != 1 {
		t.Errorf("unresolved = %d, want 1", got.Count)
	}
	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/ledger/unresolved?kind=media", nil))
	if got := decode[entriesResponse](t, rec); got.Count != 0 || got.Entries == nil {
		t.Errorf("media unresolved = %+v, want empty list", got)
	}

	rec = env.do(t, httptest.NewRequest(http.MethodPost, "/api/ledger/"+id+"/resolve",
		strings.NewReader(`{"notes":"fixed upstream"}`)))
	resolved := decode[ledger.Entry](t, rec)
	if !resolved.Resolved || resolved.ResolutionNotes != "fixed upstream" || resolved.Message == "" {
		t.Errorf("resolved = %+v", resolved)
	}

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/ledger/counts/content", nil))
	counts := decode[map[string]any](t, rec)
	if counts["total"] != float64(1) || counts["unresolved"] != float64(0) {
		t.Errorf("counts = %v", counts)
	}

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/ledger/recent?window=1h", nil))
	if got := decode[entriesResponse](t, rec); got.Count != 1 {
		t.Errorf("recent = %d, want 1", got.Count)
	}

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/ledger/"+id, nil))
	if got := decode[ledger.Entry](t, rec); got.ID != id || !got.Resolved {
		t.Errorf("entry = %+v", got)
	}
}

func TestLedger_Errors(t *testing.T) {
	tests := []struct {
		name       string
		withLedger bool
		method     string
		path       string
		wantStatus int
		wantCode   string
	}{
		{"disabled", false, http.MethodGet, "/api/ledger/unresolved", http.StatusNotFound, "LED001"},
		{"unknown entry", true, http.MethodGet, "/api/ledger/nope", http.StatusNotFound, ""},
		{"resolve unknown", true, http.MethodPost, "/api/ledger/nope/resolve", http.StatusNotFound, ""},
		{"bad window", true, http.MethodGet, "/api/ledger/recent?window=yesterday", http.StatusBadRequest, "REQ001"},
		{"bad kind filter", true, http.MethodGet, "/api/ledger/unresolved?kind=books", http.StatusBadRequest, "REQ001"},
		{"counts unknown kind", true, http.MethodGet, "/api/ledger/counts/books", http.StatusNotFound, "UPL006"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.withLedger)
			rec := env.do(t, httptest.NewRequest(tt.method, tt.path, nil))
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantCode != "" {
				if body := decode[ErrorResponse](t, rec); body.Code != tt.wantCode {
					t.Errorf("code = %s, want %s", body.Code, tt.wantCode)
				}
			}
		})
	}
}

// =============================================================================
// Middleware wiring
// =============================================================================

func TestAPIKeyRequired(t *testing.T) {
	env := newTestEnv(t, false)
	env.srv.cfg.Security = config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"secret"}}
	env.srv = NewServer(env.srv.cfg, env.srv.ingest, nil)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/kinds", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("without key = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/kinds", nil)
	req.Header.Set("X-API-Key", "secret")
	if rec := env.do(t, req); rec.Code != http.StatusOK {
		t.Errorf("with key = %d, want 200", rec.Code)
	}

	if rec := env.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil)); rec.Code != http.StatusOK {
		t.Errorf("healthz needs no key, got %d", rec.Code)
	}
}

func TestIngestRateLimited(t *testing.T) {
	env := newTestEnv(t, false)
	env.srv.cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 100, IngestLimit: 1}
	env.srv = NewServer(env.srv.cfg, env.srv.ingest, nil)

	first := env.do(t, uploadRequest(t, "/api/ingest/content", "a.csv", contentCSV, nil))
	second := env.do(t, uploadRequest(t, "/api/ingest/content", "a.csv", contentCSV, nil))
	if first.Code != http.StatusOK || second.Code != http.StatusTooManyRequests {
		t.Errorf("codes = %d, %d; want 200, 429", first.Code, second.Code)
	}
}
