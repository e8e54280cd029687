package main

import (
	"context"
	"fmt"

	"github.com/emadnahed/linkguard/internal/cache"
	"github.com/emadnahed/linkguard/internal/config"
	"github.com/emadnahed/linkguard/internal/database"
	"github.com/emadnahed/linkguard/internal/handlers"
	"github.com/emadnahed/linkguard/internal/repository"
	"github.com/emadnahed/linkguard/pkg/logger"
)

// stores bundles the backend selected by STORE_BACKEND.
type stores struct {
	mappings repository.MappingStore
	windows  repository.RateWindowStore
	sweeper  repository.WindowSweeper
	checks   map[string]handlers.CheckFunc
	close    func()
}

func openStores(ctx context.Context, cfg *config.Config, log *logger.Logger) (*stores, error) {
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		return openPostgres(ctx, cfg, log)
	case config.BackendRedis:
		return openRedis(ctx, cfg, log)
	default:
		windows := repository.NewMemoryRateWindowStore()
		log.Warn("using in-memory store; data is lost on restart")
		return &stores{
			mappings: repository.NewMemoryMappingStore(),
			windows:  windows,
			sweeper:  windows,
			checks:   map[string]handlers.CheckFunc{},
			close:    func() {},
		}, nil
	}
}

func openPostgres(ctx context.Context, cfg *config.Config, log *logger.Logger) (*stores, error) {
	pool, err := database.NewPool(ctx, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if cfg.Database.AutoMigrate {
		applied, err := database.Migrate(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		log.Info("database migrated", "applied", applied)
	}

	log.Info("connected to postgres", "host", cfg.Database.Host, "database", cfg.Database.DBName)
	windows := repository.NewPostgresRateWindowStore(pool)
	return &stores{
		mappings: repository.NewPostgresMappingStore(pool),
		windows:  windows,
		sweeper:  windows,
		checks:   map[string]handlers.CheckFunc{"postgres": pool.HealthCheck},
		close:    pool.Close,
	}, nil
}

func openRedis(ctx context.Context, cfg *config.Config, log *logger.Logger) (*stores, error) {
	client, err := cache.NewRedisClient(ctx, &cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	log.Info("connected to redis", "address", cfg.Redis.Address(), "prefix", client.Prefix())
	windows := repository.NewRedisRateWindowStore(client, repository.DefaultMaxTxRetries)
	return &stores{
		mappings: repository.NewRedisMappingStore(client),
		windows:  windows,
		sweeper:  windows,
		checks:   map[string]handlers.CheckFunc{"redis": client.HealthCheck},
		close: func() {
			if err := client.Close(); err != nil {
				log.Error("failed to close redis client", "error", err)
			}
		},
	}, nil
}
