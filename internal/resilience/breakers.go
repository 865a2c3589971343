package resilience

import (
	"sync"
)

// Breakers hands out one CircuitBreaker per upstream, created on first use.
type Breakers struct {
	mu  sync.Mutex
	cfg CircuitBreakerConfig
	m   map[string]*CircuitBreaker
}

// NewBreakers creates a registry whose breakers share cfg.
func NewBreakers(cfg CircuitBreakerConfig) *Breakers {
	return &Breakers{cfg: cfg, m: make(map[string]*CircuitBreaker)}
}

// Get returns the breaker for name.
func (b *Breakers) Get(name string) *CircuitBreaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	cb, ok := b.m[name]
	if !ok {
		cb = NewCircuitBreaker(name, b.cfg)
		b.m[name] = cb
	}
	return cb
}

// States reports the state of every breaker created so far.
func (b *Breakers) States() map[string]CircuitState {
	b.mu.Lock()
	names := make([]*CircuitBreaker, 0, len(b.m))
	for _, cb := range b.m {
		names = append(names, cb)
	}
	b.mu.Unlock()

	out := make(map[string]CircuitState, len(names))
	for _, cb := range names {
		out[cb.name] = cb.State()
	}
	return out
}
