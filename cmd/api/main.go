// Package main provides the entrypoint for the Tripwise API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/tripwise/tripwise/internal/api"
	"github.com/tripwise/tripwise/internal/api/handler"
	"github.com/tripwise/tripwise/internal/api/middleware"
	"github.com/tripwise/tripwise/internal/database"
	"github.com/tripwise/tripwise/internal/featureflags"
	"github.com/tripwise/tripwise/internal/maps"
	"github.com/tripwise/tripwise/internal/maps/googlemaps"
	"github.com/tripwise/tripwise/internal/optimizer"
	"github.com/tripwise/tripwise/internal/provider/resilience"
	"github.com/tripwise/tripwise/internal/telemetry"
	"github.com/tripwise/tripwise/internal/weather"
	"github.com/tripwise/tripwise/internal/weather/openweathermap"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "tripwise-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting Tripwise API")

	// Get configuration from environment
	port := getEnvOrDefault("APP_PORT", "8080")
	env := getEnvOrDefault("APP_ENV", "development")
	providerTimeout, err := time.ParseDuration(getEnvOrDefault("PROVIDER_TIMEOUT", "8s"))
	if err != nil {
		log.Fatal().Err(err).Msg("invalid PROVIDER_TIMEOUT")
	}
	concurrency, err := strconv.Atoi(getEnvOrDefault("OPTIMIZER_CONCURRENCY", "4"))
	if err != nil {
		log.Fatal().Err(err).Msg("invalid OPTIMIZER_CONCURRENCY")
	}

	// Initialize OpenTelemetry
	ctx := context.Background()
	telemetryConfig := telemetry.ConfigFromEnv(serviceName, Version, env)

	tp, err := telemetry.Init(ctx, telemetryConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if telemetryConfig.Enabled {
		log.Info().
			Str("otlp_endpoint", telemetryConfig.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}
	providerMetrics, err := telemetry.NewProviderMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize provider metrics")
		os.Exit(1)
	}

	registry := resilience.GlobalRegistry

	// Mapping provider. Without a key the route endpoint reports a
	// configuration error instead of refusing to start.
	var (
		mapsService optimizer.Maps
		caches      []handler.ProviderCache
	)
	mapsKey := os.Getenv("GOOGLE_MAPS_API_KEY")
	if mapsKey != "" {
		client := googlemaps.NewClient(googlemaps.ClientConfig{
			APIKey:   mapsKey,
			BaseURL:  os.Getenv("GOOGLE_MAPS_BASE_URL"),
			Timeout:  providerTimeout,
			Registry: registry,
			Logger:   log,
		})
		svc := maps.NewService(maps.ServiceConfig{
			Provider: client,
			Logger:   log,
			Metrics:  providerMetrics,
		})
		mapsService = svc
		caches = append(caches, svc)
		log.Info().Msg("google maps client initialized")
	} else {
		log.Warn().Msg("GOOGLE_MAPS_API_KEY not set - route optimization will fail")
	}

	// Weather provider is optional
	var forecaster optimizer.Forecaster
	if weatherKey := os.Getenv("OPENWEATHERMAP_API_KEY"); weatherKey != "" {
		client := openweathermap.NewClient(openweathermap.ClientConfig{
			APIKey:   weatherKey,
			Timeout:  providerTimeout,
			Registry: registry,
			Logger:   log,
		})
		svc := weather.NewService(weather.ServiceConfig{
			Provider: client,
			Logger:   log,
			Metrics:  providerMetrics,
		})
		forecaster = svc
		caches = append(caches, svc)
		log.Info().Msg("weather client initialized")
	}

	// Feature flags are stored in Postgres when configured, else in memory
	var (
		ffRepo featureflags.Repository
		pinger handler.Pinger
	)
	dbConfig, dbEnabled := database.ConfigFromEnv()
	if dbEnabled {
		pool, err := database.Connect(ctx, dbConfig)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		log.Info().
			Str("host", dbConfig.Host).
			Int("port", dbConfig.Port).
			Str("database", dbConfig.Database).
			Msg("database connected")
		ffRepo = featureflags.NewPostgresRepository(pool)
		pinger = pool
	} else {
		log.Warn().Msg("DB_HOST not set - feature flags kept in memory")
		ffRepo = featureflags.NewInMemoryRepository()
	}

	ffService := featureflags.NewService(featureflags.ServiceConfig{
		Repository: ffRepo,
		Logger:     log,
		CacheTTL:   1 * time.Minute,
	})
	log.Info().Msg("feature flags service initialized")

	opt := optimizer.New(optimizer.Config{
		Maps:        mapsService,
		Forecaster:  forecaster,
		Flags:       ffService,
		Logger:      log,
		Concurrency: concurrency,
		CallTimeout: providerTimeout,
	})

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:            Version,
		BuildTime:          BuildTime,
		Logger:             log,
		RequireTLS:         os.Getenv("REQUIRE_TLS") == "true",
		Metrics:            metrics,
		Optimizer:          opt,
		MapsConfigured:     mapsKey != "",
		FeatureFlagService: ffService,
		ProviderRegistry:   registry,
		Database:           pinger,
		ProviderCaches:     caches,
		AdminToken:         os.Getenv("ADMIN_TOKEN"),
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
