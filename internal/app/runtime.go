package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-pos/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-pos/internal/platform/db"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

const testModeEnv = "ODYSSEY_TEST_MODE"

var (
	testModeFlag atomic.Bool
	testModeOnce sync.Once
)

// detectTestMode reads the ODYSSEY_TEST_MODE flag once.
func detectTestMode() {
	testModeFlag.Store(os.Getenv(testModeEnv) == "1")
}

// InTestMode reports whether the application should skip runtime side effects.
func InTestMode() bool {
	testModeOnce.Do(detectTestMode)
	return testModeFlag.Load()
}

// RefreshTestMode updates the cached flag after environment changes.
func RefreshTestMode() {
	testModeOnce.Do(func() {})
	detectTestMode()
}

// Runtime holds the store and cache connections shared by the binaries.
type Runtime struct {
	Pool     *pgxpool.Pool
	Runner   *db.Runner
	Activity *shared.ActivityLogger
	Redis    *redis.Client
	Cache    *cache.Versioned
}

// Bootstrap connects to PostgreSQL and Redis and applies the schema when
// PG_AUTO_MIGRATE is set. Redis is optional: when it is unreachable the
// report cache is disabled and a warning is logged.
func Bootstrap(ctx context.Context, cfg *Config, logger *slog.Logger) (*Runtime, error) {
	pool, err := db.New(ctx, cfg.PGDSN, db.Options{TimeZone: cfg.LedgerTimezone})
	if err != nil {
		return nil, err
	}
	if cfg.PGAutoMigrate {
		if err := db.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("app: migrate: %w", err)
		}
	}

	rt := &Runtime{
		Pool: pool,
		Runner: db.NewRunner(pool, db.RunnerConfig{
			Attempts: cfg.LedgerTxAttempts,
			Timeout:  cfg.LedgerStoreTimeout,
			Logger:   logger,
		}),
		Activity: shared.NewActivityLogger(),
	}

	client, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, report cache disabled", slog.Any("error", err))
		rt.Cache = cache.NewVersioned(nil, cfg.ReportCacheTTL)
		return rt, nil
	}
	rt.Redis = client
	rt.Cache = cache.NewVersioned(client, cfg.ReportCacheTTL)
	return rt, nil
}

// Close releases the connections.
func (rt *Runtime) Close(logger *slog.Logger) {
	if rt == nil {
		return
	}
	if rt.Redis != nil {
		if err := rt.Redis.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}
	if rt.Pool != nil {
		rt.Pool.Close()
	}
}
