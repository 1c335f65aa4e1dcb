package web

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/catalog/internal/catalog"
	"github.com/JonMunkholm/catalog/internal/ingest"
)

// multipartOverhead is allowed on top of the file size for form framing.
const multipartOverhead = 1 << 20

// handleIngest runs one batch over the multipart "file" field.
//
// A batch that ran answers 200 with the batch result, whatever its outcome.
// Oversized files are read one byte past the limit so the pipeline reports
// them like any other batch-fatal problem.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	limit := s.ingest.MaxFileSize()
	r.Body = http.MaxBytesReader(w, r.Body, limit+1+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		respondError(w, r, fmt.Errorf("%w: invalid multipart form: %v", errBadRequest, err), 0)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, fmt.Errorf("%w: no file provided", errBadRequest), 0)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		respondError(w, r, fmt.Errorf("read upload: %w", err), http.StatusBadRequest)
		return
	}

	var opts ingest.Options
	if v := firstNonEmpty(r.FormValue("dryRun"), r.URL.Query().Get("dryRun")); v != "" {
		if opts.DryRun, err = strconv.ParseBool(v); err != nil {
			respondError(w, r, fmt.Errorf("%w: dryRun must be true or false", errBadRequest), 0)
			return
		}
	}

	res, err := s.ingest.Ingest(r.Context(), kind, header.Filename, data, opts)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleKinds(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ingest.Kinds())
}

// handleStatus reports batch slot usage, for monitoring and for clients
// deciding whether to submit now.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"batches":     s.ingest.Limiter().Status(),
		"maxFileSize": s.ingest.MaxFileSize(),
		"ledger":      s.ledger != nil,
	})
}

func kindParam(r *http.Request) (catalog.Kind, error) {
	raw := chi.URLParam(r, "kind")
	kind, ok := catalog.ParseKind(raw)
	if !ok {
		return "", fmt.Errorf("%w: %q", ingest.ErrUnknownKind, raw)
	}
	return kind, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
