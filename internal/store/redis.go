package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"github.com/sells-group/deidentify-cli/pkg/geocode"
)

const redisKeyPrefix = "geocode:"

// redisClient is the subset of *redis.Client the cache uses.
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
	Close() error
}

// RedisCache stores geocode responses as JSON strings that Redis expires.
type RedisCache struct {
	client redisClient
	ttl    time.Duration
}

// DialRedis connects to url (redis://host:port/db) and pings it.
func DialRedis(ctx context.Context, url string, ttl time.Duration) (*RedisCache, error) {
	if url == "" {
		return nil, eris.New("redis: empty url")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, eris.Wrap(err, "redis: parse url")
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "redis: ping")
	}
	return NewRedisCache(client, ttl), nil
}

// NewRedisCache wraps an existing client.
func NewRedisCache(client redisClient, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// Get implements geocode.Cache.
func (c *RedisCache) Get(ctx context.Context, key string) (*geocode.Result, bool, error) {
	raw, err := c.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "redis: get cached geocode")
	}
	var r geocode.Result
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, false, eris.Wrap(err, "redis: decode cached geocode")
	}
	return &r, true, nil
}

// Set implements geocode.Cache.
func (c *RedisCache) Set(ctx context.Context, key string, r *geocode.Result) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return eris.Wrap(err, "redis: encode geocode")
	}
	ttl := c.ttl
	if ttl < 0 {
		ttl = 0
	}
	if err := c.client.Set(ctx, redisKeyPrefix+key, raw, ttl).Err(); err != nil {
		return eris.Wrap(err, "redis: store geocode")
	}
	return nil
}

// PurgeExpired implements geocode.Cache. Redis expires keys itself.
func (c *RedisCache) PurgeExpired(context.Context) (int64, error) {
	return 0, nil
}

// Stats implements geocode.Cache by scanning the geocode keys.
func (c *RedisCache) Stats(ctx context.Context) (geocode.CacheStats, error) {
	stats := geocode.CacheStats{Backend: "redis"}
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, redisKeyPrefix+"*", 500).Result()
		if err != nil {
			return stats, eris.Wrap(err, "redis: scan")
		}
		for _, k := range keys {
			raw, err := c.client.Get(ctx, k).Bytes()
			if errors.Is(err, redis.Nil) {
				continue
			}
			if err != nil {
				return stats, eris.Wrap(err, "redis: stats get")
			}
			stats.Entries++
			var r geocode.Result
			if json.Unmarshal(raw, &r) == nil && r.Matched {
				stats.Matched++
			}
		}
		if next == 0 {
			return stats, nil
		}
		cursor = next
	}
}

// Close closes the client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
