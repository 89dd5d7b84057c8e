package app

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/sevensea/warehouse/internal/platform/db"
	"github.com/sevensea/warehouse/internal/platform/docstore"
)

const testModeEnv = "WAREHOUSE_TEST_MODE"

var (
	testModeFlag atomic.Bool
	testModeOnce sync.Once
)

// detectTestMode reads the WAREHOUSE_TEST_MODE flag once.
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
	detectTestMode()
}

// OpenStore builds the document store selected by STORE_DRIVER. The postgres
// driver migrates the schema before returning; the returned pool is nil for
// the other drivers.
func OpenStore(ctx context.Context, cfg *Config, redisClient *redis.Client) (docstore.Store, *pgxpool.Pool, error) {
	switch cfg.StoreDriver {
	case StoreMemory:
		return docstore.NewMemoryStore(), nil, nil
	case StoreRedis:
		if redisClient == nil {
			return nil, nil, fmt.Errorf("app: redis store requires a redis client")
		}
		return docstore.NewRedisStore(redisClient), nil, nil
	case StorePostgres:
		if err := db.Migrate(ctx, cfg.PGDSN); err != nil {
			return nil, nil, err
		}
		pool, err := db.New(ctx, cfg.PGDSN)
		if err != nil {
			return nil, nil, err
		}
		return docstore.NewPostgresStore(pool), pool, nil
	default:
		return nil, nil, fmt.Errorf("app: unknown store driver %q", cfg.StoreDriver)
	}
}
