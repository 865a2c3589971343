package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/deidentify-cli/pkg/geocode"
)

// SQLiteCache is a file-backed geocode cache with a TTL and a size cap.
type SQLiteCache struct {
	db         *sql.DB
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

// NewSQLiteCache opens a SQLite database at path and configures WAL mode.
// maxEntries <= 0 disables eviction.
func NewSQLiteCache(path string, ttl time.Duration, maxEntries int) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// Concurrent batch writers otherwise see SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteCache{db: db, ttl: ttl, maxEntries: maxEntries, now: time.Now}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS geocode_cache (
	address_hash TEXT PRIMARY KEY,
	result       TEXT NOT NULL,
	matched      INTEGER NOT NULL,
	cached_at    INTEGER NOT NULL,
	expires_at   INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_geocode_cache_cached_at ON geocode_cache(cached_at);
CREATE INDEX IF NOT EXISTS idx_geocode_cache_expires_at ON geocode_cache(expires_at);
`

// Migrate creates the cache table.
func (s *SQLiteCache) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteCache) Close() error {
	return s.db.Close()
}

// Get implements geocode.Cache.
func (s *SQLiteCache) Get(ctx context.Context, key string) (*geocode.Result, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT result FROM geocode_cache WHERE address_hash = ? AND expires_at > ?`,
		key, s.now().UnixMilli(),
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "sqlite: get cached geocode")
	}

	var r geocode.Result
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, false, eris.Wrap(err, "sqlite: decode cached geocode")
	}
	return &r, true, nil
}

// Set implements geocode.Cache, evicting the oldest entries beyond the cap.
func (s *SQLiteCache) Set(ctx context.Context, key string, r *geocode.Result) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return eris.Wrap(err, "sqlite: encode geocode")
	}

	now := s.now()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO geocode_cache (address_hash, result, matched, cached_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (address_hash) DO UPDATE SET
			result = excluded.result,
			matched = excluded.matched,
			cached_at = excluded.cached_at,
			expires_at = excluded.expires_at`,
		key, string(raw), r.Matched, now.UnixMilli(), expiresAt(now, s.ttl).UnixMilli(),
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: store geocode")
	}

	if s.maxEntries > 0 {
		_, err = s.db.ExecContext(ctx, `
			DELETE FROM geocode_cache WHERE address_hash IN (
				SELECT address_hash FROM geocode_cache
				ORDER BY cached_at ASC, rowid ASC
				LIMIT max(0, (SELECT COUNT(*) FROM geocode_cache) - ?)
			)`, s.maxEntries)
		if err != nil {
			return eris.Wrap(err, "sqlite: evict oldest")
		}
	}
	return nil
}

// PurgeExpired implements geocode.Cache.
func (s *SQLiteCache) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM geocode_cache WHERE expires_at <= ?`, s.now().UnixMilli())
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: purge expired")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: purge rows affected")
	}
	return n, nil
}

// Stats implements geocode.Cache.
func (s *SQLiteCache) Stats(ctx context.Context) (geocode.CacheStats, error) {
	stats := geocode.CacheStats{Backend: "sqlite"}
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN matched THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN expires_at <= ? THEN 1 ELSE 0 END), 0)
		FROM geocode_cache`, s.now().UnixMilli(),
	).Scan(&stats.Entries, &stats.Matched, &stats.Expired)
	if err != nil {
		return stats, eris.Wrap(err, "sqlite: stats")
	}
	return stats, nil
}
