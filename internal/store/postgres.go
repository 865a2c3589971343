package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/deidentify-cli/internal/db"
	"github.com/sells-group/deidentify-cli/pkg/geocode"
)

// PostgresCache keeps geocode responses in public.geocode_cache so several
// workers share one cache.
type PostgresCache struct {
	pool    db.Pool
	ttl     time.Duration
	closeFn func()
}

// NewPostgresCache wraps an open pool. Entries older than ttl are ignored;
// ttl <= 0 keeps them forever.
func NewPostgresCache(pool db.Pool, ttl time.Duration) *PostgresCache {
	return &PostgresCache{pool: pool, ttl: ttl}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS public.geocode_cache (
	address_hash TEXT PRIMARY KEY,
	latitude     DOUBLE PRECISION NOT NULL DEFAULT 0,
	longitude    DOUBLE PRECISION NOT NULL DEFAULT 0,
	quality      TEXT NOT NULL DEFAULT '',
	matched      BOOLEAN NOT NULL,
	source       TEXT NOT NULL DEFAULT '',
	zipcode      TEXT,
	plus4        TEXT,
	cached_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_geocode_cache_cached_at ON public.geocode_cache(cached_at);
`

// Migrate creates the cache table.
func (c *PostgresCache) Migrate(ctx context.Context) error {
	_, err := c.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate geocode cache")
}

// Close releases the pool when the cache opened it.
func (c *PostgresCache) Close() error {
	if c.closeFn != nil {
		c.closeFn()
	}
	return nil
}

func (c *PostgresCache) ttlSeconds() float64 {
	if c.ttl <= 0 {
		return 0
	}
	return c.ttl.Seconds()
}

// Get implements geocode.Cache.
func (c *PostgresCache) Get(ctx context.Context, key string) (*geocode.Result, bool, error) {
	var r geocode.Result
	var zipcode, plus4 *string

	err := c.pool.QueryRow(ctx, `
		SELECT latitude, longitude, quality, matched, source, zipcode, plus4
		FROM public.geocode_cache
		WHERE address_hash = $1
			AND ($2::float8 = 0 OR cached_at > now() - make_interval(secs => $2::float8))`,
		key, c.ttlSeconds(),
	).Scan(&r.Latitude, &r.Longitude, &r.Quality, &r.Matched, &r.Source, &zipcode, &plus4)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "postgres: get cached geocode")
	}
	if zipcode != nil {
		r.ZipCode = *zipcode
	}
	if plus4 != nil {
		r.Plus4 = *plus4
	}
	return &r, true, nil
}

// Set implements geocode.Cache.
func (c *PostgresCache) Set(ctx context.Context, key string, r *geocode.Result) error {
	_, err := c.pool.Exec(ctx, `
		INSERT INTO public.geocode_cache (address_hash, latitude, longitude, quality, matched, source, zipcode, plus4, cached_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (address_hash) DO UPDATE SET
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			quality = EXCLUDED.quality,
			matched = EXCLUDED.matched,
			source = EXCLUDED.source,
			zipcode = EXCLUDED.zipcode,
			plus4 = EXCLUDED.plus4,
			cached_at = now()`,
		key, r.Latitude, r.Longitude, r.Quality, r.Matched, r.Source, nilIfEmpty(r.ZipCode), nilIfEmpty(r.Plus4),
	)
	if err != nil {
		return eris.Wrap(err, "postgres: store geocode")
	}
	return nil
}

// PurgeExpired implements geocode.Cache.
func (c *PostgresCache) PurgeExpired(ctx context.Context) (int64, error) {
	if c.ttl <= 0 {
		return 0, nil
	}
	tag, err := c.pool.Exec(ctx,
		`DELETE FROM public.geocode_cache WHERE cached_at <= now() - make_interval(secs => $1::float8)`,
		c.ttlSeconds(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: purge expired")
	}
	return tag.RowsAffected(), nil
}

// Stats implements geocode.Cache.
func (c *PostgresCache) Stats(ctx context.Context) (geocode.CacheStats, error) {
	stats := geocode.CacheStats{Backend: "postgres"}
	err := c.pool.QueryRow(ctx, `
		SELECT count(*),
			count(*) FILTER (WHERE matched),
			count(*) FILTER (WHERE $1::float8 > 0 AND cached_at <= now() - make_interval(secs => $1::float8))
		FROM public.geocode_cache`,
		c.ttlSeconds(),
	).Scan(&stats.Entries, &stats.Matched, &stats.Expired)
	if err != nil {
		return stats, eris.Wrap(err, "postgres: stats")
	}
	return stats, nil
}

// nilIfEmpty returns nil for empty strings, allowing NULL storage in Postgres.
func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
