package main

import (
	"context"
	"fmt"

	"github.com/ewilliams-labs/emotune/internal/adapters/audiofile"
	"github.com/ewilliams-labs/emotune/internal/adapters/sqlite"
	"github.com/ewilliams-labs/emotune/internal/config"
	"github.com/ewilliams-labs/emotune/internal/core/domain"
	"github.com/ewilliams-labs/emotune/internal/core/services"
	"github.com/ewilliams-labs/emotune/internal/logging"
	"github.com/ewilliams-labs/emotune/internal/worker"
)

// library is the storage and catalog wiring shared by every command.
type library struct {
	store   *sqlite.Adapter
	catalog *domain.Catalog
	pool    *worker.Pool
	indexer *services.Indexer
}

func openLibrary(cfg *config.Config) (*library, error) {
	store, err := sqlite.NewAdapter(cfg.Database.Path,
		sqlite.WithMaxOpenConns(cfg.Database.MaxOpenConns),
		sqlite.WithBusyTimeout(cfg.Database.BusyTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cfg.Database.Path, err)
	}

	catalog := domain.NewCatalog()
	pool := worker.NewPool(store, catalog, cfg.Library.ProbeQueue)
	pool.Start(cfg.Library.ProbeWorkers)

	indexer := services.NewIndexer(catalog, store, audiofile.TagReader{}, pool, cfg.Library.RootDir, cfg.Library.Extensions)
	return &library{store: store, catalog: catalog, pool: pool, indexer: indexer}, nil
}

func (l *library) reindex(ctx context.Context) (services.IndexReport, error) {
	return l.indexer.Reindex(ctx)
}

// Close drains pending duration probes before closing the database.
func (l *library) Close() error {
	l.pool.Stop()
	return l.store.Close()
}

// Shutdown abandons queued probes, waits for in-flight ones until ctx is
// done and closes the database. Unprobed tracks are queued again on the next
// index.
func (l *library) Shutdown(ctx context.Context) error {
	if err := l.pool.Shutdown(ctx); err != nil {
		logging.Warn().Err(err).Msg("duration probes still running at shutdown")
	}
	return l.store.Close()
}
