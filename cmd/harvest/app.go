package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"course-harvest/internal/cache"
	"course-harvest/internal/config"
	"course-harvest/internal/database"
	"course-harvest/internal/extract"
	"course-harvest/internal/fallback"
	"course-harvest/internal/fetcher"
	"course-harvest/internal/merge"
	"course-harvest/internal/normalize"
	"course-harvest/internal/registry"
	"course-harvest/internal/service"
)

// stores pairs the cache with the merged store of the same backend.
type stores struct {
	cache  cache.Store
	merged merge.Store
	close  func()
}

func openStores(ctx context.Context, cfg config.Config) (stores, error) {
	switch cfg.Store {
	case config.StoreSQLite:
		db, err := database.OpenMigrated(ctx, database.Config{Path: cfg.SQLitePath})
		if err != nil {
			return stores{}, err
		}
		return stores{
			cache:  cache.NewSQLiteStore(db, nil),
			merged: merge.NewSQLiteStore(db),
			close:  func() { _ = db.Close() },
		}, nil

	case config.StorePostgres:
		pool, err := database.OpenPool(ctx, database.PoolConfig{DSN: cfg.PGDSN, MaxConns: cfg.PGMaxConns})
		if err != nil {
			return stores{}, err
		}
		if err := database.MigratePool(ctx, pool); err != nil {
			pool.Close()
			return stores{}, err
		}
		return stores{
			cache:  cache.NewPostgresStore(pool, nil),
			merged: merge.NewPostgresStore(pool),
			close:  pool.Close,
		}, nil

	default:
		return stores{
			cache:  cache.NewMemoryStore(nil),
			merged: merge.NewMemoryStore(),
			close:  func() {},
		}, nil
	}
}

func loadRegistry(cfg config.Config) (*registry.Registry, error) {
	if cfg.SourcesFile == "" {
		return registry.Default(), nil
	}
	return registry.LoadFile(cfg.SourcesFile)
}

// buildService wires every component from cfg. The returned func releases
// database handles.
func buildService(ctx context.Context, cfg config.Config, log *zap.Logger) (*service.Service, func(), error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	reg, err := loadRegistry(cfg)
	if err != nil {
		return nil, nil, err
	}
	st, err := openStores(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s store: %w", cfg.Store, err)
	}

	f := &fetcher.Fetcher{
		Backend:      extract.New(cfg.ExtractBaseURL, cfg.ExtractAPIKey),
		Normalizer:   normalize.New(),
		Fallback:     fallback.New(),
		Schema:       extract.CourseSchema(),
		Prompt:       extract.DefaultPrompt,
		PollInterval: cfg.PollInterval,
		MaxPolls:     cfg.MaxPolls,
		Log:          log,
	}

	svc := &service.Service{
		Registry: reg,
		Fetcher:  f,
		Cache:    st.cache,
		Merger: &merge.Engine{
			Cache:     st.cache,
			Store:     st.merged,
			ChunkSize: cfg.MergeChunk,
			Log:       log,
		},
		Merged:  st.merged,
		TTL:     cfg.CacheTTL,
		Workers: cfg.Workers,
		Log:     log,
	}
	return svc, st.close, nil
}
