package weather

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/tripwise/tripwise/internal/telemetry"
)

// Provider defines the interface for weather data providers.
type Provider interface {
	// GetForecast fetches hourly forecast for a location.
	GetForecast(ctx context.Context, lat, lon float64) (*Forecast, error)

	// Name returns the provider name for logging.
	Name() string
}

// ServiceConfig holds configuration for the weather service.
type ServiceConfig struct {
	// Provider is the weather data provider.
	Provider Provider

	// Logger for service operations.
	Logger zerolog.Logger

	// Metrics records provider call durations and cache hits (optional).
	Metrics *telemetry.ProviderMetrics

	// CacheTTL is how long to cache forecasts (default: 30 minutes).
	CacheTTL time.Duration

	// CacheGridSize is the size of cache grid cells in degrees (default: 0.1).
	// Points within the same grid cell share cached data.
	CacheGridSize float64
}

// Service provides forecasts with caching.
type Service struct {
	provider      Provider
	logger        zerolog.Logger
	metrics       *telemetry.ProviderMetrics
	cacheGridSize float64
	forecasts     *cache.Cache
}

// NewService creates a new weather service.
func NewService(cfg ServiceConfig) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 30 * time.Minute
	}

	cacheGridSize := cfg.CacheGridSize
	if cacheGridSize == 0 {
		cacheGridSize = 0.1
	}

	return &Service{
		provider:      cfg.Provider,
		logger:        cfg.Logger,
		metrics:       cfg.Metrics,
		cacheGridSize: cacheGridSize,
		forecasts:     cache.New(cacheTTL, 2*cacheTTL),
	}
}

// GetForecast returns the hourly forecast for a location.
func (s *Service) GetForecast(ctx context.Context, lat, lon float64) (*Forecast, error) {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, ErrInvalidCoordinates
	}

	key := s.cacheKey(lat, lon)
	if cached, ok := s.forecasts.Get(key); ok {
		s.metrics.RecordCacheLookup(s.provider.Name(), "forecast", true)
		return cached.(*Forecast), nil
	}
	s.metrics.RecordCacheLookup(s.provider.Name(), "forecast", false)

	start := time.Now()
	forecast, err := s.provider.GetForecast(ctx, lat, lon)
	s.metrics.RecordRequest(s.provider.Name(), "forecast", time.Since(start), err)
	if err != nil {
		return nil, err
	}

	s.forecasts.Set(key, forecast, cache.DefaultExpiration)

	s.logger.Debug().
		Str("cache_key", key).
		Int("hours", len(forecast.Hourly)).
		Msg("cached forecast")

	return forecast, nil
}

// cacheKey snaps a point to the grid. Format: {lat},{lon}.
func (s *Service) cacheKey(lat, lon float64) string {
	gridLat := math.Floor(lat/s.cacheGridSize) * s.cacheGridSize
	gridLon := math.Floor(lon/s.cacheGridSize) * s.cacheGridSize
	return fmt.Sprintf("%.2f,%.2f", gridLat, gridLon)
}

// InvalidateCache clears all cached forecasts.
func (s *Service) InvalidateCache() {
	s.forecasts.Flush()
}

// CacheEntries reports the number of cached forecasts.
func (s *Service) CacheEntries() map[string]int {
	return map[string]int{"forecast": s.forecasts.ItemCount()}
}
