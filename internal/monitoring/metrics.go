// Package monitoring exposes Prometheus counters for geocoding, caching and
// tract lookup.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels.
const (
	OutcomeMatched   = "matched"
	OutcomeUnmatched = "unmatched"
	OutcomeError     = "error"
	OutcomeFound     = "found"
	OutcomeNotFound  = "not_found"
	OutcomeSkipped   = "skipped"
)

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	GeocodeRequests *prometheus.CounterVec
	GeocodeLatency  *prometheus.HistogramVec
	CacheLookups    *prometheus.CounterVec
	TractLookups    *prometheus.CounterVec
	HTTPRequests    *prometheus.CounterVec
}

// New registers the collectors with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the collectors with reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		GeocodeRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "deidentify_geocode_requests_total",
			Help: "Geocoder calls by provider and outcome",
		}, []string{"provider", "outcome"}),
		GeocodeLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "deidentify_geocode_duration_seconds",
			Help:    "Geocoder call latency by provider",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "deidentify_geocode_cache_lookups_total",
			Help: "Geocode cache lookups by result (hit, miss, error)",
		}, []string{"result"}),
		TractLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "deidentify_tract_lookups_total",
			Help: "Census tract lookups by outcome",
		}, []string{"outcome"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "deidentify_http_requests_total",
			Help: "Lookup service requests by route and status code",
		}, []string{"route", "code"}),
	}
}

// ObserveGeocode records one provider call.
func (m *Metrics) ObserveGeocode(provider, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.GeocodeRequests.WithLabelValues(provider, outcome).Inc()
	m.GeocodeLatency.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// CacheHit records a cache hit.
func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues("hit").Inc()
}

// CacheMiss records a cache miss.
func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues("miss").Inc()
}

// CacheError records a failed cache read.
func (m *Metrics) CacheError() {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues("error").Inc()
}

// TractLookup records one point-in-polygon lookup.
func (m *Metrics) TractLookup(outcome string) {
	if m == nil {
		return
	}
	m.TractLookups.WithLabelValues(outcome).Inc()
}

// HTTPRequest records one served request.
func (m *Metrics) HTTPRequest(route, code string) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, code).Inc()
}
