package geocode

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/deidentify-cli/internal/monitoring"
	"github.com/sells-group/deidentify-cli/internal/resilience"
)

// CascadeClient tries geocode providers in order until one matches, with a
// cache in front of them.
type CascadeClient struct {
	providers        []Provider
	cache            Cache
	invalidate       bool
	batchConcurrency int
	metrics          *monitoring.Metrics

	lookups       atomic.Int64
	cacheHits     atomic.Int64
	providerCalls atomic.Int64
	matched       atomic.Int64
}

// CascadeOption configures the CascadeClient.
type CascadeOption func(*CascadeClient)

// WithCache sets the response cache. The default stores nothing.
func WithCache(c Cache) CascadeOption {
	return func(cc *CascadeClient) {
		if c != nil {
			cc.cache = c
		}
	}
}

// WithInvalidate skips cache reads. Fresh responses are still written.
func WithInvalidate(invalidate bool) CascadeOption {
	return func(c *CascadeClient) {
		c.invalidate = invalidate
	}
}

// WithBatchConcurrency sets the max parallel lookups for BatchGeocode.
func WithBatchConcurrency(n int) CascadeOption {
	return func(c *CascadeClient) {
		if n > 0 {
			c.batchConcurrency = n
		}
	}
}

// WithMetrics records provider calls and cache lookups.
func WithMetrics(m *monitoring.Metrics) CascadeOption {
	return func(c *CascadeClient) {
		c.metrics = m
	}
}

// NewCascadeClient creates a CascadeClient that tries providers in order.
func NewCascadeClient(providers []Provider, opts ...CascadeOption) *CascadeClient {
	c := &CascadeClient{
		providers:        providers,
		cache:            NopCache{},
		batchConcurrency: 8,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CascadeStats counts work done since the client was created.
type CascadeStats struct {
	Lookups       int64
	CacheHits     int64
	ProviderCalls int64
	Matched       int64
}

// Stats returns the running counters.
func (c *CascadeClient) Stats() CascadeStats {
	return CascadeStats{
		Lookups:       c.lookups.Load(),
		CacheHits:     c.cacheHits.Load(),
		ProviderCalls: c.providerCalls.Load(),
		Matched:       c.matched.Load(),
	}
}

// Geocode implements Client.
func (c *CascadeClient) Geocode(ctx context.Context, addr AddressInput) (*Result, error) {
	c.lookups.Add(1)
	key := CacheKey(addr)

	if cached, ok := c.cached(ctx, key); ok {
		return cached, nil
	}

	result, cacheable, err := c.cascade(ctx, addr, 0)
	if err != nil {
		return nil, err
	}
	if cacheable {
		c.store(ctx, key, result)
	}
	c.countMatch(result)
	return result, nil
}

// BatchGeocode implements Client. Identical addresses are looked up once.
// A transient provider failure leaves that address unmatched; any other
// failure (bad credentials, an open breaker) fails the whole batch.
// When the first available provider has a batch endpoint it is used for all
// uncached addresses; the rest of the cascade handles what it missed.
func (c *CascadeClient) BatchGeocode(ctx context.Context, addrs []AddressInput) ([]Result, error) {
	if len(addrs) == 0 {
		return nil, nil
	}
	log := zap.L().With(zap.String("component", "geocode.cascade"))

	type pending struct {
		key     string
		addr    AddressInput
		indexes []int
	}
	byKey := make(map[string]*pending, len(addrs))
	var order []*pending
	for i, addr := range addrs {
		key := CacheKey(addr)
		if p, ok := byKey[key]; ok {
			p.indexes = append(p.indexes, i)
			continue
		}
		p := &pending{key: key, addr: addr, indexes: []int{i}}
		byKey[key] = p
		order = append(order, p)
	}
	c.lookups.Add(int64(len(order)))

	results := make([]Result, len(addrs))
	fill := func(p *pending, r *Result) {
		for _, i := range p.indexes {
			results[i] = *r
		}
	}

	var todo []*pending
	for _, p := range order {
		if r, ok := c.cached(ctx, p.key); ok {
			fill(p, r)
			continue
		}
		todo = append(todo, p)
	}

	start := 0
	if first, idx := c.firstAvailable(); first != nil && len(todo) > 1 {
		if bp, ok := first.(BatchProvider); ok {
			batch := make([]AddressInput, len(todo))
			for i, p := range todo {
				batch[i] = p.addr
			}
			c.providerCalls.Add(1)
			began := time.Now()
			batchResults, err := bp.BatchGeocode(ctx, batch)
			if err != nil || len(batchResults) != len(todo) {
				c.metrics.ObserveGeocode(bp.Name(), monitoring.OutcomeError, time.Since(began))
				log.Warn("batch geocode failed, looking up individually",
					zap.String("provider", bp.Name()), zap.Int("count", len(todo)), zap.Error(err))
			} else {
				c.metrics.ObserveGeocode(bp.Name(), monitoring.OutcomeMatched, time.Since(began))
				var missed []*pending
				for i, p := range todo {
					r := batchResults[i]
					if !r.Matched {
						missed = append(missed, p)
						continue
					}
					c.store(ctx, p.key, &r)
					c.countMatch(&r)
					fill(p, &r)
				}
				todo = missed
				start = idx + 1
			}
		}
	}

	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(c.batchConcurrency)
	for _, p := range todo {
		eg.Go(func() error {
			r, cacheable, err := c.cascade(gCtx, p.addr, start)
			if err != nil {
				if gCtx.Err() != nil {
					return gCtx.Err()
				}
				if !resilience.IsTransient(err) || errors.Is(err, resilience.ErrCircuitOpen) {
					return err
				}
				log.Warn("geocode failed", zap.String("key", keyPrefix(p.key)), zap.Error(err))
				fill(p, &Result{Matched: false, Source: "cascade"})
				return nil
			}
			if cacheable {
				c.store(gCtx, p.key, r)
			}
			c.countMatch(r)
			fill(p, r)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, eris.Wrap(err, "geocode: batch")
	}
	return results, nil
}

func (c *CascadeClient) firstAvailable() (Provider, int) {
	for i, p := range c.providers {
		if p.Available() {
			return p, i
		}
	}
	return nil, -1
}

// cascade asks providers[start:] in order. cacheable is false when a provider
// failed and no later one matched, so a transient outage is not remembered as
// a bad address.
func (c *CascadeClient) cascade(ctx context.Context, addr AddressInput, start int) (*Result, bool, error) {
	log := zap.L().With(zap.String("component", "geocode.cascade"))

	var lastResult *Result
	var lastErr error
	for _, p := range c.providers[start:] {
		if !p.Available() {
			continue
		}
		c.providerCalls.Add(1)
		began := time.Now()
		result, err := p.Geocode(ctx, addr)
		if err != nil {
			c.metrics.ObserveGeocode(p.Name(), monitoring.OutcomeError, time.Since(began))
			log.Debug("provider error, trying next", zap.String("provider", p.Name()), zap.Error(err))
			lastErr = err
			continue
		}
		if result != nil && result.Matched {
			c.metrics.ObserveGeocode(p.Name(), monitoring.OutcomeMatched, time.Since(began))
			return result, true, nil
		}
		c.metrics.ObserveGeocode(p.Name(), monitoring.OutcomeUnmatched, time.Since(began))
		if result != nil {
			lastResult = result
		}
	}

	if lastResult == nil && lastErr != nil {
		return nil, false, eris.Wrap(lastErr, "geocode: all providers failed")
	}

	noMatch := &Result{Matched: false, Source: "cascade"}
	if lastResult != nil {
		noMatch.Source = lastResult.Source
	}
	return noMatch, lastErr == nil, nil
}

func (c *CascadeClient) cached(ctx context.Context, key string) (*Result, bool) {
	if c.invalidate {
		return nil, false
	}
	r, ok, err := c.cache.Get(ctx, key)
	switch {
	case err != nil:
		c.metrics.CacheError()
		zap.L().Warn("geocode cache read failed", zap.String("key", keyPrefix(key)), zap.Error(err))
		return nil, false
	case !ok || r == nil:
		c.metrics.CacheMiss()
		return nil, false
	}
	c.metrics.CacheHit()
	c.cacheHits.Add(1)
	c.countMatch(r)
	zap.L().Debug("geocode cache hit", zap.String("key", keyPrefix(key)), zap.Bool("matched", r.Matched))
	return r, true
}

func (c *CascadeClient) store(ctx context.Context, key string, r *Result) {
	if err := c.cache.Set(ctx, key, r); err != nil {
		zap.L().Warn("geocode cache write failed", zap.String("key", keyPrefix(key)), zap.Error(err))
	}
}

func (c *CascadeClient) countMatch(r *Result) {
	if r != nil && r.Matched {
		c.matched.Add(1)
	}
}
