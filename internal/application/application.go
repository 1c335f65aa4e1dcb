// Package application wires configuration into a running catalog: the
// record stores, the error ledger and the ingestion service. Both the HTTP
// server and the CLI start from Open.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/catalog/internal/config"
	"github.com/JonMunkholm/catalog/internal/ingest"
	"github.com/JonMunkholm/catalog/internal/ledger"
	"github.com/JonMunkholm/catalog/internal/store"
)

// App holds the wired collaborators. Close releases the backend.
type App struct {
	Stores store.Set
	Ledger *ledger.Service // nil when the ledger is disabled
	Ingest *ingest.Service

	closers []func() error
}

// Open connects the configured backend and builds the services on it.
func Open(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	app := &App{}

	var ledgerStore ledger.Store
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		pool, err := openPool(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, func() error { pool.Close(); return nil })

		if err := store.EnsureSchema(ctx, pool); err != nil {
			app.Close()
			return nil, err
		}
		lp := ledger.NewPostgres(pool)
		if err := lp.EnsureSchema(ctx); err != nil {
			app.Close()
			return nil, err
		}
		app.Stores = store.NewPostgresSet(pool)
		ledgerStore = lp
		log.Info("store opened", "backend", "postgres", "database", databaseName(cfg.Database.URL))

	case config.BackendBadger:
		db, err := store.OpenBadger(store.BadgerConfig{Dir: cfg.Store.BadgerDir, Logger: log})
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, db.Close)
		app.Stores = store.NewBadgerSet(db)
		ledgerStore = ledger.NewBadger(db)
		log.Info("store opened", "backend", "badger", "dir", cfg.Store.BadgerDir)

	case config.BackendMemory, "":
		app.Stores = store.NewMemorySet()
		ledgerStore = ledger.NewMemory()
		log.Info("store opened", "backend", "memory")

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	if cfg.Ingest.LedgerEnabled {
		app.Ledger = ledger.NewService(ledgerStore, cfg.Ingest.RecentWindow)
	}

	maps, err := ingest.LoadLinkMaps(cfg.Ingest.LinkMapPath)
	if err != nil {
		app.Close()
		return nil, err
	}

	app.Ingest = ingest.NewService(app.Stores, ingest.Config{
		MaxFileSize:   cfg.Ingest.MaxFileSize,
		MaxConcurrent: cfg.Ingest.MaxConcurrent,
		MaxWait:       cfg.Ingest.MaxWaitTime,
		LinkMaps:      &maps,
		Ledger:        app.Ledger,
	})
	return app, nil
}

// Close releases the backend. It is safe to call more than once.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func openPool(ctx context.Context, dc config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dc.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(dc.MaxConns)
	poolConfig.MinConns = int32(dc.MinConns)
	poolConfig.MaxConnLifetime = dc.MaxConnLifetime
	poolConfig.MaxConnIdleTime = dc.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// databaseName extracts the database name for logs without credentials.
func databaseName(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Path, "/")
}
