// Package server exposes tract lookup over HTTP. Responses carry the tract
// GEOID only; coordinates never leave the process.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/deidentify-cli/internal/config"
	"github.com/sells-group/deidentify-cli/internal/monitoring"
	"github.com/sells-group/deidentify-cli/pkg/geocode"
)

// MaxBatch is the largest accepted batch request.
const MaxBatch = 1000

// Lookuper resolves addresses to tract GEOIDs.
type Lookuper interface {
	Lookup(ctx context.Context, addr geocode.AddressInput) (string, *geocode.Result, error)
	LookupBatch(ctx context.Context, addrs []geocode.AddressInput) ([]string, []geocode.Result, error)
}

// Server is the tract lookup service.
type Server struct {
	cfg      config.ServerConfig
	lookup   Lookuper
	metrics  *monitoring.Metrics
	gatherer prometheus.Gatherer
	limiter  *clientLimiter
	log      *zap.Logger
}

// New returns a Server. gatherer backs /metrics and may be nil to use the
// default registry.
func New(cfg config.ServerConfig, lookup Lookuper, metrics *monitoring.Metrics, gatherer prometheus.Gatherer) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Server{
		cfg:      cfg,
		lookup:   lookup,
		metrics:  metrics,
		gatherer: gatherer,
		limiter:  newClientLimiter(cfg.RateLimit, cfg.RateBurst),
		log:      zap.L().With(zap.String("component", "server")),
	}
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(requestID)
	r.Use(s.accessLog)
	if len(s.cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", requestIDHeader},
			ExposedHeaders: []string{requestIDHeader},
			MaxAge:         300,
		}))
	}

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Use(chimw.Timeout(2 * time.Minute))
		if s.cfg.JWTSecret != "" {
			r.Use(requireAuth([]byte(s.cfg.JWTSecret), s.log))
		}
		r.Use(s.rateLimit)
		r.Post("/tract", s.handleTract)
		r.Post("/tract/batch", s.handleBatch)
	})
	return r
}

// ListenAndServe serves on cfg.Port until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("starting server", zap.Int("port", s.cfg.Port), zap.Bool("auth", s.cfg.JWTSecret != ""))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return eris.Wrap(err, "server: listen")
	case <-ctx.Done():
	}

	s.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "server: shutdown")
	}
	return nil
}
