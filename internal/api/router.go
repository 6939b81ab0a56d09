// Package api provides the HTTP API for Tripwise.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/tripwise/tripwise/internal/api/handler"
	"github.com/tripwise/tripwise/internal/api/middleware"
	"github.com/tripwise/tripwise/internal/api/response"
	"github.com/tripwise/tripwise/internal/featureflags"
	"github.com/tripwise/tripwise/internal/provider/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version   string
	BuildTime string
	Logger    zerolog.Logger
	Metrics   *middleware.Metrics

	// RequireTLS rejects requests forwarded over plain HTTP.
	RequireTLS bool

	// Optimizer serves route optimization.
	Optimizer handler.Optimizer

	// MapsConfigured reports whether a mapping credential is set.
	MapsConfigured bool

	// FeatureFlagService backs the admin endpoints and status flags.
	FeatureFlagService *featureflags.Service

	// ProviderRegistry reports outbound provider health (optional).
	ProviderRegistry *resilience.Registry

	// Database is pinged by the readiness check (optional).
	Database handler.Pinger

	// ProviderCaches are listed and flushed by the admin cache endpoints.
	ProviderCaches []handler.ProviderCache

	// AdminToken guards /v1/admin. Empty disables the admin endpoints.
	AdminToken string
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware - order matters
	r.Use(middleware.RequestID) // Generate/propagate request ID first
	r.Use(middleware.Tracing()) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	r.Use(middleware.SecurityHeaders)      // Security headers (HSTS, CSP, etc.)
	if cfg.RequireTLS {
		r.Use(middleware.RequireTLS) // TLS enforcement behind a proxy
	}
	r.Use(middleware.ContentTypeJSON) // JSON content type
	r.Use(middleware.RequireJSON)     // Reject non-JSON bodies

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, r, "no route matches "+r.Method+" "+r.URL.Path)
	})

	// Initialize handlers
	opsCfg := handler.OpsConfig{
		Version:        cfg.Version,
		BuildTime:      cfg.BuildTime,
		Registry:       cfg.ProviderRegistry,
		Database:       cfg.Database,
		MapsConfigured: cfg.MapsConfigured,
	}
	if cfg.FeatureFlagService != nil {
		opsCfg.Flags = cfg.FeatureFlagService
	}
	opsHandler := handler.NewOpsHandler(opsCfg)
	routeHandler := handler.NewRouteHandler(cfg.Optimizer, cfg.Logger)
	activityHandler := handler.NewActivityHandler()

	// Create rate limit middleware for different endpoint categories
	adminRateLimit := middleware.RateLimitByIP(middleware.AdminRateLimit)         // 10 req/min
	expensiveRateLimit := middleware.RateLimitByIP(middleware.ExpensiveRateLimit) // 30 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)   // 100 req/min

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.With(standardRateLimit).Get("/status", opsHandler.SystemStatus)
		})

		// Route optimization - expensive compute, strict rate limiting
		r.With(expensiveRateLimit).Post("/routes:optimize", routeHandler.OptimizeRoute)

		// Activity catalog - standard rate limiting
		r.With(standardRateLimit).Post("/activities:suggest", activityHandler.SuggestActivities)

		// Admin endpoints (shared secret) - for internal operations
		cachesHandler := handler.NewCachesHandler(cfg.ProviderCaches, cfg.Logger)
		r.Route("/admin", func(r chi.Router) {
			r.Use(adminRateLimit)
			r.Use(middleware.AdminToken(cfg.AdminToken))

			// Provider answer caches
			r.Get("/caches", cachesHandler.ListCaches)
			r.Post("/caches/invalidate", cachesHandler.InvalidateCaches)

			// Feature flags management
			if cfg.FeatureFlagService != nil {
				featureFlagsHandler := handler.NewFeatureFlagsHandler(cfg.FeatureFlagService, cfg.Logger)
				r.Route("/feature-flags", func(r chi.Router) {
					r.Get("/", featureFlagsHandler.ListFeatureFlags)
					r.Put("/", featureFlagsHandler.UpsertFeatureFlags)
					r.Post("/invalidate", featureFlagsHandler.InvalidateCache)
					r.Delete("/{key}", featureFlagsHandler.ResetFeatureFlag)
				})
			}
		})
	})

	return r
}
