// Package http exposes the storefront search API, the provider's catalog
// feed and the operational endpoints.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/finsearch/pkg/health"
	"github.com/utafrali/finsearch/pkg/middleware"
)

const serviceName = "finsearch"

// RouterConfig holds the handlers and route guards of the service.
type RouterConfig struct {
	Search *SearchHandler
	Export *ExportHandler
	Health *health.Handler

	// AdminToken guards the reindex endpoint. Empty disables it.
	AdminToken string
	// ExportAllowedCIDRs restricts the feed to the provider's crawlers.
	// Empty leaves it open.
	ExportAllowedCIDRs []string
	PprofAllowedCIDRs  []string

	SearchTimeout time.Duration
	ExportTimeout time.Duration
}

// NewRouter creates a chi router with all routes registered.
func NewRouter(cfg RouterConfig, logger *slog.Logger) http.Handler {
	if cfg.SearchTimeout <= 0 {
		cfg.SearchTimeout = 30 * time.Second
	}
	if cfg.ExportTimeout <= 0 {
		cfg.ExportTimeout = 5 * time.Minute
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimw.Compress(5))
	r.Use(middleware.PrometheusMetrics(serviceName))

	// Health check endpoints
	r.Get("/health/live", cfg.Health.LivenessHandler())
	r.Get("/health/ready", cfg.Health.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})
	if len(cfg.PprofAllowedCIDRs) > 0 {
		middleware.RegisterPprof(r, cfg.PprofAllowedCIDRs, logger)
	}

	// Storefront search
	r.Route("/api/v1/search", func(r chi.Router) {
		r.Use(chimw.Timeout(cfg.SearchTimeout))

		r.With(middleware.CacheControl(60)).Get("/suggest", cfg.Search.Suggest)
		r.With(middleware.NoStore()).Get("/", cfg.Search.Search)

		r.Group(func(r chi.Router) {
			r.Use(middleware.AdminToken(cfg.AdminToken))
			r.Post("/reindex", cfg.Search.Reindex)
		})
	})

	// Catalog export feed
	r.Group(func(r chi.Router) {
		if len(cfg.ExportAllowedCIDRs) > 0 {
			r.Use(middleware.IPAllowlist(cfg.ExportAllowedCIDRs, logger))
		}
		r.Use(chimw.Timeout(cfg.ExportTimeout))
		r.Use(middleware.NoStore())
		r.Get("/findologic", cfg.Export.Feed)
	})

	return r
}
