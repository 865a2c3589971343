// Package store persists geocoder responses between runs. SQLite is the
// default; Postgres and Redis suit shared deployments.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/deidentify-cli/internal/config"
	"github.com/sells-group/deidentify-cli/internal/db"
	"github.com/sells-group/deidentify-cli/pkg/geocode"
)

// Open returns the cache backend selected by cfg.Driver, migrated and ready.
func Open(ctx context.Context, cfg config.CacheConfig) (geocode.Cache, error) {
	log := zap.L().With(zap.String("component", "store"))
	ttl := cfg.TTL()

	switch cfg.Driver {
	case "", "sqlite":
		c, err := NewSQLiteCache(cfg.Path, ttl, cfg.MaxEntries)
		if err != nil {
			return nil, err
		}
		if err := c.Migrate(ctx); err != nil {
			c.Close() //nolint:errcheck
			return nil, err
		}
		log.Debug("opened sqlite geocode cache", zap.String("path", cfg.Path))
		return c, nil

	case "postgres":
		pool, err := db.Connect(ctx, cfg.DatabaseURL, db.PoolConfig{})
		if err != nil {
			return nil, eris.Wrap(err, "store: connect postgres")
		}
		c := NewPostgresCache(pool, ttl)
		c.closeFn = pool.Close
		if err := c.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		log.Debug("opened postgres geocode cache")
		return c, nil

	case "redis":
		c, err := DialRedis(ctx, cfg.RedisURL, ttl)
		if err != nil {
			return nil, err
		}
		log.Debug("opened redis geocode cache")
		return c, nil

	case "none":
		return geocode.NopCache{}, nil

	default:
		return nil, eris.Errorf("store: unknown cache driver %q", cfg.Driver)
	}
}

// expiresAt returns the expiry of an entry written at now. A non-positive ttl
// never expires.
func expiresAt(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Unix(1<<62/int64(time.Second), 0)
	}
	return now.Add(ttl)
}
