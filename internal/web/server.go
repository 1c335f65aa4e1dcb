// Package web provides the HTTP API for batch ingestion and error ledger
// triage.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/catalog/internal/config"
	"github.com/JonMunkholm/catalog/internal/ingest"
	"github.com/JonMunkholm/catalog/internal/ledger"
	"github.com/JonMunkholm/catalog/internal/web/middleware"
)

// Server is the HTTP server for the catalog API.
type Server struct {
	ingest *ingest.Service
	ledger *ledger.Service // nil when the ledger is disabled
	cfg    *config.Config
	router *chi.Mux
	server *http.Server

	apiLimiter    *middleware.RateLimiter
	ingestLimiter *middleware.RateLimiter
}

// NewServer creates a Server. led may be nil.
func NewServer(cfg *config.Config, ing *ingest.Service, led *ledger.Service) *Server {
	s := &Server{
		ingest: ing,
		ledger: led,
		cfg:    cfg,
		router: chi.NewRouter(),
	}
	if cfg.Rate.Enabled {
		s.apiLimiter = middleware.NewRateLimiter(cfg.Rate.RequestsPerMinute)
		s.ingestLimiter = middleware.NewRateLimiter(cfg.Rate.IngestLimit)
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	if s.cfg.Server.RequestTimeout > 0 {
		s.router.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
	}
	s.router.Use(securityHeaders)
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(s.cfg.Security))

		r.Group(func(r chi.Router) {
			if s.ingestLimiter != nil {
				r.Use(s.ingestLimiter.Middleware)
			}
			r.Post("/ingest/{kind}", s.handleIngest)
		})

		r.Group(func(r chi.Router) {
			if s.apiLimiter != nil {
				r.Use(s.apiLimiter.Middleware)
			}
			r.Get("/kinds", s.handleKinds)
			r.Get("/status", s.handleStatus)

			r.Route("/ledger", func(r chi.Router) {
				r.Use(s.requireLedger)
				r.Get("/batches/{batchID}", s.handleLedgerBatch)
				r.Get("/unresolved", s.handleLedgerUnresolved)
				r.Get("/recent", s.handleLedgerRecent)
				r.Get("/counts/{kind}", s.handleLedgerCounts)
				r.Get("/{id}", s.handleLedgerEntry)
				r.Post("/{id}/resolve", s.handleLedgerResolve)
			})
		})
	})
}

// Start listens until Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	sc := s.cfg.Server
	s.server = &http.Server{
		Addr:         sc.Addr(),
		Handler:      s.router,
		ReadTimeout:  sc.ReadTimeout,
		WriteTimeout: sc.WriteTimeout,
		IdleTimeout:  sc.IdleTimeout,
	}

	for _, rl := range []*middleware.RateLimiter{s.apiLimiter, s.ingestLimiter} {
		if rl != nil {
			go rl.Cleanup(ctx, time.Minute)
		}
	}

	slog.Info("server listening", "addr", sc.Addr())
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests, then waits for running batches.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	return s.ingest.Limiter().WaitForDrain(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v with status. Encoding errors are logged since the
// headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
