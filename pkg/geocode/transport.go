package geocode

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/deidentify-cli/internal/resilience"
)

// Option configures the HTTP behaviour of a provider.
type Option func(*transport)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(t *transport) {
		t.client = hc
	}
}

// WithRateLimit sets the requests-per-second limit for the provider.
func WithRateLimit(rps float64) Option {
	return func(t *transport) {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLimiter sets the rate limiter directly.
func WithLimiter(l *rate.Limiter) Option {
	return func(t *transport) {
		t.limiter = l
	}
}

// WithRetry sets the retry policy for transient failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(t *transport) {
		t.retry = cfg
	}
}

// WithBreaker guards the provider with a circuit breaker.
func WithBreaker(cb *resilience.CircuitBreaker) Option {
	return func(t *transport) {
		t.breaker = cb
	}
}

// transport performs rate-limited, retried HTTP calls for one provider.
type transport struct {
	name    string
	client  *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
}

func newTransport(name string, defaultRPS float64, opts []Option) *transport {
	t := &transport{
		name:    name,
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(defaultRPS), max(1, int(defaultRPS))),
		retry:   resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.retry.OnRetry == nil {
		t.retry.OnRetry = resilience.RetryLogger(name, "geocode")
	}
	return t
}

// do sends the request built by newReq and returns the body of a 200
// response. Requests are rebuilt on every attempt.
func (t *transport) do(ctx context.Context, newReq func(ctx context.Context) (*http.Request, error)) ([]byte, error) {
	call := func(ctx context.Context) ([]byte, error) {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrapf(err, "geocode: %s rate limit", t.name)
		}

		req, err := newReq(ctx)
		if err != nil {
			return nil, eris.Wrapf(err, "geocode: %s build request", t.name)
		}

		resp, err := t.client.Do(req)
		if err != nil {
			return nil, eris.Wrapf(err, "geocode: %s request", t.name)
		}
		defer resp.Body.Close() //nolint:errcheck

		if err := resilience.CheckStatus("geocode: "+t.name, resp.StatusCode); err != nil {
			return nil, err
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrapf(err, "geocode: %s read body", t.name)
		}
		return body, nil
	}

	withRetry := func(ctx context.Context) ([]byte, error) {
		return resilience.DoVal(ctx, t.retry, call)
	}
	if t.breaker == nil {
		return withRetry(ctx)
	}
	return resilience.ExecuteVal(ctx, t.breaker, withRetry)
}
