package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/apfl99/DexSwipe-Backend/internal/api"
	"github.com/apfl99/DexSwipe-Backend/internal/config"
	"github.com/apfl99/DexSwipe-Backend/internal/store"
	"github.com/apfl99/DexSwipe-Backend/internal/store/memory"
	"github.com/apfl99/DexSwipe-Backend/internal/store/postgres"
	redispkg "github.com/apfl99/DexSwipe-Backend/internal/store/redis"
)

type healthCheck struct {
	name string
	fn   api.CheckFunc
}

// backend is the set of repositories one storage choice provides.
type backend struct {
	jobs       store.JobQueueRepository
	security   store.SecurityCacheRepository
	rugpull    store.RugpullCacheRepository
	urlRisk    store.URLRiskCacheRepository
	tokens     store.TokenRepository
	feed       store.FeedRepository
	wishlist   store.WishlistRepository
	chains     store.ChainMappingRepository
	daily      store.DailyUsageRepository
	runs       store.IngestionRunRepository
	tokenCache store.AccessTokenCache

	db      *postgres.DB
	checks  []healthCheck
	closers []func() error
}

func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backend, error) {
	var (
		b   *backend
		err error
	)
	switch cfg.Pipeline.StoreBackend {
	case config.StoreBackendMemory:
		b = memoryBackend(memory.New())
		logger.Warn("using in-memory store, state is lost on restart")
	default:
		b, err = postgresBackend(ctx, cfg.DB, logger)
		if err != nil {
			return nil, err
		}
	}

	if cfg.Redis.URL != "" {
		if err := attachRedis(ctx, b, cfg.Redis.URL); err != nil {
			b.Close()
			return nil, err
		}
		logger.Info("redis enabled for daily counter and access token cache")
	}
	return b, nil
}

func memoryBackend(m *memory.Store) *backend {
	return &backend{
		jobs:       m,
		security:   m,
		rugpull:    m,
		urlRisk:    m,
		tokens:     m,
		feed:       m,
		wishlist:   m,
		chains:     m,
		daily:      m,
		runs:       m,
		tokenCache: m,
	}
}

func postgresBackend(ctx context.Context, cfg config.DBConfig, logger *slog.Logger) (*backend, error) {
	db, err := postgres.New(postgres.Config{
		URL:             cfg.URL,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		Logger:          logger,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := db.RunMigrations(ctx, postgres.MigrationsFS(cfg.MigrationsDir)); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("connected to database")

	jobs := postgres.NewJobQueueRepo(db)
	caches := postgres.NewCacheRepo(db)
	tokens := postgres.NewTokenRepo(db)
	ops := postgres.NewOpsRepo(db)
	return &backend{
		jobs:     jobs,
		security: caches,
		rugpull:  caches,
		urlRisk:  caches,
		tokens:   tokens,
		feed:     tokens,
		wishlist: tokens,
		chains:   ops,
		daily:    ops,
		runs:     ops,
		// Without Redis the issued token lives only in process memory.
		tokenCache: memory.New(),
		db:         db,
		checks:     []healthCheck{{name: "postgres", fn: db.Check}},
		closers:    []func() error{db.Close},
	}, nil
}

// attachRedis moves the daily scan counter and the access token to Redis so
// every replica shares them.
func attachRedis(ctx context.Context, b *backend, url string) error {
	rs, err := redispkg.New(ctx, url)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	b.daily = rs
	b.tokenCache = rs
	b.checks = append(b.checks, healthCheck{name: "redis", fn: rs.Check})
	b.closers = append(b.closers, rs.Close)
	return nil
}
