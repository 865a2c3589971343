package main

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/deidentify-cli/internal/address"
	"github.com/sells-group/deidentify-cli/internal/config"
	"github.com/sells-group/deidentify-cli/internal/deidentify"
	"github.com/sells-group/deidentify-cli/internal/monitoring"
	"github.com/sells-group/deidentify-cli/internal/resilience"
	"github.com/sells-group/deidentify-cli/internal/store"
	"github.com/sells-group/deidentify-cli/internal/tract"
	"github.com/sells-group/deidentify-cli/pkg/geocode"
)

// appMetrics registers the collectors with the default registry once per
// process.
var appMetrics = sync.OnceValue(monitoring.New)

// lookupEnv holds the geocoder, cache and tract locator shared by the
// commands that assign tracts.
type lookupEnv struct {
	Geocoder *geocode.CascadeClient
	Cache    geocode.Cache
	Locator  tract.Locator
	Breakers *resilience.Breakers
	Metrics  *monitoring.Metrics

	closeLocator func()
}

// Processor returns a record processor over the environment.
func (e *lookupEnv) Processor() *deidentify.Processor {
	return deidentify.NewProcessor(e.Geocoder, e.Locator, e.Metrics)
}

// Close releases the cache and locator.
func (e *lookupEnv) Close() {
	if e.closeLocator != nil {
		e.closeLocator()
	}
	if e.Cache != nil {
		if err := e.Cache.Close(); err != nil {
			zap.L().Warn("close geocode cache", zap.Error(err))
		}
	}
}

// initLookupEnv opens the cache, the providers and the tract locator.
// tractsPath overrides tracts.path when set.
func initLookupEnv(ctx context.Context, c *config.Config, invalidate bool, tractsPath string) (*lookupEnv, error) {
	if tractsPath != "" {
		c.Tracts.Path = tractsPath
	}
	if err := c.Validate(config.ModeTract); err != nil {
		return nil, err
	}

	env := &lookupEnv{
		Metrics:  appMetrics(),
		Breakers: resilience.NewBreakers(resilience.DefaultCircuitBreakerConfig()),
	}

	providers, err := buildProviders(c, env.Breakers)
	if err != nil {
		return nil, err
	}

	cache, err := store.Open(ctx, c.Cache)
	if err != nil {
		return nil, eris.Wrap(err, "open geocode cache")
	}
	env.Cache = cache

	locator, closeLocator, err := tract.Open(ctx, c.Tracts, c.Tiger.Year)
	if err != nil {
		env.Close()
		return nil, eris.Wrap(err, "open tract boundaries")
	}
	env.Locator = locator
	env.closeLocator = closeLocator

	env.Geocoder = geocode.NewCascadeClient(providers,
		geocode.WithCache(cache),
		geocode.WithInvalidate(invalidate),
		geocode.WithBatchConcurrency(c.Geocode.BatchConcurrency),
		geocode.WithMetrics(env.Metrics),
	)
	return env, nil
}

// buildProviders creates the configured geocoders in cascade order.
func buildProviders(c *config.Config, breakers *resilience.Breakers) ([]geocode.Provider, error) {
	httpClient := &http.Client{Timeout: time.Duration(c.Geocode.TimeoutSecs) * time.Second}
	if c.Geocode.TimeoutSecs <= 0 {
		httpClient.Timeout = 30 * time.Second
	}

	providers := make([]geocode.Provider, 0, len(c.Geocode.Providers))
	for _, name := range c.Geocode.Providers {
		opts := []geocode.Option{
			geocode.WithHTTPClient(httpClient),
			geocode.WithRetry(resilience.RetryConfig{
				MaxAttempts:    c.Geocode.MaxAttempts,
				InitialBackoff: 500 * time.Millisecond,
				MaxBackoff:     10 * time.Second,
				JitterFraction: 0.25,
			}),
			geocode.WithBreaker(breakers.Get(name)),
		}
		if c.Geocode.RateLimit > 0 {
			opts = append(opts, geocode.WithRateLimit(c.Geocode.RateLimit))
		}

		switch name {
		case "smarty":
			providers = append(providers, geocode.NewSmartyProvider(geocode.SmartyConfig{
				AuthID:     c.Smarty.AuthID,
				AuthToken:  c.Smarty.AuthToken,
				StreetURL:  c.Smarty.StreetURL,
				ExtractURL: c.Smarty.ExtractURL,
				Candidates: c.Smarty.Candidates,
				Match:      c.Smarty.Match,
			}, opts...))
		case "census":
			providers = append(providers, geocode.NewCensusProvider(geocode.CensusConfig{
				Benchmark:  c.Census.Benchmark,
				OneLineURL: c.Census.OneLineURL,
				BatchURL:   c.Census.BatchURL,
			}, opts...))
		case "google":
			providers = append(providers, geocode.NewGoogleProvider(c.Google.Key, c.Google.BaseURL, opts...))
		default:
			return nil, eris.Errorf("unknown geocode provider %q", name)
		}
	}
	return providers, nil
}

// resolveAddressMapping returns the flag mapping when any column flag is set,
// otherwise the institute's mapping.
func resolveAddressMapping(c *config.Config, institute string, flags address.Flags) (address.Mapping, error) {
	if m, ok := address.Custom(flags); ok {
		zap.L().Info("using custom address mapping", zap.Stringer("mapping", m))
		return m, nil
	}
	inst, err := config.LoadInstitutes(c.InstitutesFile)
	if err != nil {
		return nil, err
	}
	raw, err := inst.AddressMapping(institute)
	if err != nil {
		return nil, err
	}
	zap.L().Info("using institute address mapping", zap.String("institute", institute))
	return address.FromConfig(raw)
}

// resolvePIIMapping is resolveAddressMapping for participant identifiers.
func resolvePIIMapping(c *config.Config, institute string, flags deidentify.PIIFlags) (deidentify.PIIMapping, error) {
	if m, ok := deidentify.CustomPII(flags); ok {
		return m, nil
	}
	inst, err := config.LoadInstitutes(c.InstitutesFile)
	if err != nil {
		return nil, err
	}
	raw, err := inst.PIIMapping(institute)
	if err != nil {
		return nil, err
	}
	return deidentify.PIIMappingFromConfig(raw)
}

func logSummary(ctx context.Context, cmdName string, sum deidentify.Summary, cache geocode.Cache) {
	fields := []zap.Field{
		zap.String("command", cmdName),
		zap.Int("records", sum.Records),
		zap.Int("geocoded", sum.Geocoded),
		zap.Int("located", sum.Located),
		zap.Int64("cache_hits", sum.CacheHits),
	}
	if st, err := cache.Stats(ctx); err == nil {
		fields = append(fields, zap.String("cache_backend", st.Backend), zap.Int64("cache_entries", st.Entries))
	}
	zap.L().Info("run complete", fields...)
}
