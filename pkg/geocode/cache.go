package geocode

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Cache stores provider responses, negative ones included, keyed by CacheKey.
type Cache interface {
	// Get returns the cached result for key. ok is false on a miss or when the
	// entry has expired.
	Get(ctx context.Context, key string) (r *Result, ok bool, err error)
	Set(ctx context.Context, key string, r *Result) error
	// PurgeExpired removes expired entries and returns how many were removed.
	PurgeExpired(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (CacheStats, error)
	Close() error
}

// CacheStats summarises a cache's contents.
type CacheStats struct {
	Backend string `json:"backend"`
	Entries int64  `json:"entries"`
	Matched int64  `json:"matched"`
	Expired int64  `json:"expired"`
}

// CacheKey returns the SHA-256 hex of the address serialized as JSON with
// sorted keys. Two addresses that standardize identically share a key.
func CacheKey(addr AddressInput) string {
	canonical := map[string]string{
		"street":    addr.Street,
		"street2":   addr.Street2,
		"secondary": addr.Secondary,
		"city":      addr.City,
		"state":     addr.State,
		"zipcode":   addr.ZipCode,
	}
	// encoding/json writes map keys in sorted order.
	b, _ := json.Marshal(canonical) //nolint:errchkjson // map[string]string always marshals
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}

// NopCache never stores anything.
type NopCache struct{}

// Get implements Cache.
func (NopCache) Get(context.Context, string) (*Result, bool, error) { return nil, false, nil }

// Set implements Cache.
func (NopCache) Set(context.Context, string, *Result) error { return nil }

// PurgeExpired implements Cache.
func (NopCache) PurgeExpired(context.Context) (int64, error) { return 0, nil }

// Stats implements Cache.
func (NopCache) Stats(context.Context) (CacheStats, error) { return CacheStats{Backend: "none"}, nil }

// Close implements Cache.
func (NopCache) Close() error { return nil }

func keyPrefix(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}
