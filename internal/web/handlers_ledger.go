package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/catalog/internal/catalog"
	"github.com/JonMunkholm/catalog/internal/ledger"
)

var errLedgerDisabled = errors.New("error ledger is disabled")

func (s *Server) requireLedger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.ledger == nil {
			writeJSON(w, http.StatusNotFound, ErrorResponse{
				Error:   errLedgerDisabled.Error(),
				Message: "The error ledger is not enabled on this server",
				Action:  "Set INGEST_LEDGER_ENABLED=true and restart",
				Code:    "LED001",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

type entriesResponse struct {
	Count   int            `json:"count"`
	Entries []ledger.Entry `json:"entries"`
}

func writeEntries(w http.ResponseWriter, es []ledger.Entry) {
	if es == nil {
		es = []ledger.Entry{}
	}
	writeJSON(w, http.StatusOK, entriesResponse{Count: len(es), Entries: es})
}

func (s *Server) handleLedgerBatch(w http.ResponseWriter, r *http.Request) {
	es, err := s.ledger.ListByBatch(r.Context(), chi.URLParam(r, "batchID"))
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeEntries(w, es)
}

// handleLedgerUnresolved lists open entries, optionally for ?kind= only.
func (s *Server) handleLedgerUnresolved(w http.ResponseWriter, r *http.Request) {
	var kind string
	if raw := r.URL.Query().Get("kind"); raw != "" {
		k, ok := catalog.ParseKind(raw)
		if !ok {
			respondError(w, r, fmt.Errorf("%w: unknown kind %q", errBadRequest, raw), 0)
			return
		}
		kind = string(k)
	}

	es, err := s.ledger.ListUnresolved(r.Context(), kind)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeEntries(w, es)
}

// handleLedgerRecent lists entries newer than ?window= (a Go duration).
func (s *Server) handleLedgerRecent(w http.ResponseWriter, r *http.Request) {
	var window time.Duration
	if raw := r.URL.Query().Get("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			respondError(w, r, fmt.Errorf("%w: window must be a positive duration such as 24h", errBadRequest), 0)
			return
		}
		window = d
	}

	es, err := s.ledger.ListRecent(r.Context(), window)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeEntries(w, es)
}

func (s *Server) handleLedgerCounts(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	c, err := s.ledger.CountsByKind(r.Context(), string(kind))
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"kind":       kind,
		"total":      c.Total,
		"unresolved": c.Unresolved,
	})
}

func (s *Server) handleLedgerEntry(w http.ResponseWriter, r *http.Request) {
	e, err := s.ledger.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

type resolveRequest struct {
	Notes string `json:"notes"`
}

// handleLedgerResolve marks an entry resolved. The body is optional.
func (s *Server) handleLedgerResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if r.Body != nil {
		err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&req)
		if err != nil && !errors.Is(err, io.EOF) {
			respondError(w, r, fmt.Errorf("%w: invalid JSON body", errBadRequest), 0)
			return
		}
	}

	e, err := s.ledger.Resolve(r.Context(), chi.URLParam(r, "id"), req.Notes)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, e)
}
