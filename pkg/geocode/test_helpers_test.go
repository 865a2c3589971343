package geocode

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/sells-group/deidentify-cli/internal/resilience"
)

// newTestLimiter creates a rate limiter that effectively does not limit for tests.
func newTestLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Inf, 1)
}

// testOpts are provider options with no rate limit and millisecond retries.
func testOpts(extra ...Option) []Option {
	opts := []Option{
		WithLimiter(newTestLimiter()),
		WithRetry(resilience.RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     time.Millisecond,
		}),
	}
	return append(opts, extra...)
}

// newRewriteClient creates an HTTP client that rewrites requests to a test server URL.
// All requests matching the target prefix are redirected to the test server.
func newRewriteClient(testServerURL, targetPrefix string) *http.Client {
	return &http.Client{
		Transport: &rewriteTransport{
			base:         http.DefaultTransport,
			testServer:   testServerURL,
			targetPrefix: targetPrefix,
		},
	}
}

type rewriteTransport struct {
	base         http.RoundTripper
	testServer   string
	targetPrefix string
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	origURL := req.URL.String()
	if strings.HasPrefix(origURL, t.targetPrefix) {
		suffix := origURL[len(t.targetPrefix):]
		newURL := t.testServer + suffix
		newReq := req.Clone(req.Context())
		parsed, err := req.URL.Parse(newURL)
		if err != nil {
			return nil, err
		}
		newReq.URL = parsed
		newReq.Host = parsed.Host
		return t.base.RoundTrip(newReq)
	}
	return t.base.RoundTrip(req)
}

// mockProvider implements Provider for testing cascade behavior.
type mockProvider struct {
	name      string
	available bool
	result    *Result
	err       error

	mu    sync.Mutex
	calls []AddressInput
}

func (m *mockProvider) Name() string    { return m.name }
func (m *mockProvider) Available() bool { return m.available }
func (m *mockProvider) Geocode(_ context.Context, addr AddressInput) (*Result, error) {
	m.mu.Lock()
	m.calls = append(m.calls, addr)
	m.mu.Unlock()
	if m.result == nil {
		return nil, m.err
	}
	r := *m.result
	return &r, m.err
}

func (m *mockProvider) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// mockBatchProvider adds a batch endpoint to mockProvider.
type mockBatchProvider struct {
	mockProvider
	batchResults func(addrs []AddressInput) ([]Result, error)
	batchCalls   int
}

func (m *mockBatchProvider) BatchGeocode(_ context.Context, addrs []AddressInput) ([]Result, error) {
	m.batchCalls++
	return m.batchResults(addrs)
}

// memCache is an in-memory Cache.
type memCache struct {
	mu      sync.Mutex
	entries map[string]Result
	getErr  error
	sets    int
}

func newMemCache() *memCache { return &memCache{entries: make(map[string]Result)} }

func (m *memCache) Get(_ context.Context, key string) (*Result, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	r, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	return &r, true, nil
}

func (m *memCache) Set(_ context.Context, key string, r *Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = *r
	m.sets++
	return nil
}

func (m *memCache) PurgeExpired(context.Context) (int64, error) { return 0, nil }
func (m *memCache) Stats(context.Context) (CacheStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return CacheStats{Backend: "memory", Entries: int64(len(m.entries))}, nil
}
func (m *memCache) Close() error { return nil }
