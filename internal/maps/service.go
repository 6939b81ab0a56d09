package maps

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/tripwise/tripwise/internal/telemetry"
)

// ServiceConfig holds configuration for the maps service.
type ServiceConfig struct {
	Provider Provider
	Logger   zerolog.Logger

	// Metrics records provider call durations and cache lookups (optional).
	Metrics *telemetry.ProviderMetrics

	// GeocodeTTL is how long resolved addresses are cached (default: 24h).
	GeocodeTTL time.Duration

	// DirectionsTTL is how long directions are served without asking the
	// provider again (default: 15m).
	DirectionsTTL time.Duration

	// StaleIfErrorTTL is how long expired directions remain usable when the
	// provider fails (default: 1h).
	StaleIfErrorTTL time.Duration

	// CacheGridSize snaps directions endpoints to a grid in degrees so
	// nearby requests share an entry (default: 0.001, about 110m).
	CacheGridSize float64

	// CleanupInterval is how often evicted entries are purged (default: 10m).
	CleanupInterval time.Duration
}

// Service fronts a Provider with caches and metrics.
type Service struct {
	provider      Provider
	logger        zerolog.Logger
	metrics       *telemetry.ProviderMetrics
	directionsTTL time.Duration
	cacheGridSize float64

	geocodes   *cache.Cache
	directions *cache.Cache
}

// cachedDirections is kept for the stale window; it is fresh for directionsTTL.
type cachedDirections struct {
	response  *Directions
	fetchedAt time.Time
}

func durationOr(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}

// NewService creates a new maps service.
func NewService(cfg ServiceConfig) *Service {
	cleanup := durationOr(cfg.CleanupInterval, 10*time.Minute)

	grid := cfg.CacheGridSize
	if grid <= 0 {
		grid = 0.001
	}

	return &Service{
		provider:      cfg.Provider,
		logger:        cfg.Logger,
		metrics:       cfg.Metrics,
		directionsTTL: durationOr(cfg.DirectionsTTL, 15*time.Minute),
		cacheGridSize: grid,
		geocodes:      cache.New(durationOr(cfg.GeocodeTTL, 24*time.Hour), cleanup),
		directions:    cache.New(durationOr(cfg.StaleIfErrorTTL, time.Hour), cleanup),
	}
}

// Geocode resolves an address, serving repeated addresses from cache.
func (s *Service) Geocode(ctx context.Context, address string) (*Coordinate, error) {
	key := normalizeAddress(address)
	if key == "" {
		return nil, &Error{
			Provider: s.provider.Name(),
			Code:     "EMPTY_ADDRESS",
			Message:  "address is empty",
			Err:      ErrNotFound,
		}
	}

	if cached, ok := s.geocodes.Get(key); ok {
		s.metrics.RecordCacheLookup(s.provider.Name(), "geocode", true)
		c := cached.(Coordinate)
		return &c, nil
	}
	s.metrics.RecordCacheLookup(s.provider.Name(), "geocode", false)

	start := time.Now()
	coord, err := s.provider.Geocode(ctx, address)
	s.metrics.RecordRequest(s.provider.Name(), "geocode", time.Since(start), err)
	if err != nil {
		return nil, err
	}

	s.geocodes.Set(key, *coord, cache.DefaultExpiration)
	return coord, nil
}

// DistanceMatrix fetches a duration matrix. Results are not cached since they
// depend on the exact set of points.
func (s *Service) DistanceMatrix(ctx context.Context, req MatrixRequest) (*Matrix, error) {
	for _, c := range req.Origins {
		if err := ValidateCoordinate(c); err != nil {
			return nil, &Error{Provider: s.provider.Name(), Code: "INVALID_ORIGIN", Message: "invalid origin coordinates", Err: err}
		}
	}
	for _, c := range req.Destinations {
		if err := ValidateCoordinate(c); err != nil {
			return nil, &Error{Provider: s.provider.Name(), Code: "INVALID_DESTINATION", Message: "invalid destination coordinates", Err: err}
		}
	}

	start := time.Now()
	m, err := s.provider.DistanceMatrix(ctx, req)
	s.metrics.RecordRequest(s.provider.Name(), "distance_matrix", time.Since(start), err)
	return m, err
}

// GetDirections returns directions between two points.
// Uses cached data if available and not expired.
func (s *Service) GetDirections(ctx context.Context, req DirectionsRequest) (*Directions, error) {
	if err := ValidateCoordinate(req.Origin); err != nil {
		return nil, &Error{Provider: s.provider.Name(), Code: "INVALID_ORIGIN", Message: "invalid origin coordinates", Err: err}
	}
	if err := ValidateCoordinate(req.Destination); err != nil {
		return nil, &Error{Provider: s.provider.Name(), Code: "INVALID_DESTINATION", Message: "invalid destination coordinates", Err: err}
	}

	key := s.directionsKey(req)

	var cached *cachedDirections
	if v, ok := s.directions.Get(key); ok {
		cached = v.(*cachedDirections)
	}
	if cached != nil && time.Since(cached.fetchedAt) < s.directionsTTL {
		s.metrics.RecordCacheLookup(s.provider.Name(), "directions", true)
		return cached.response, nil
	}
	s.metrics.RecordCacheLookup(s.provider.Name(), "directions", false)

	start := time.Now()
	resp, err := s.provider.GetDirections(ctx, req)
	s.metrics.RecordRequest(s.provider.Name(), "directions", time.Since(start), err)
	if err != nil {
		// Stale-if-error, except when the route simply does not exist.
		if cached != nil && !errors.Is(err, ErrNotFound) {
			s.logger.Warn().Err(err).
				Time("fetched_at", cached.fetchedAt).
				Str("cache_key", key).
				Msg("serving stale directions after provider error")
			return cached.response, nil
		}
		return nil, err
	}

	s.directions.SetDefault(key, &cachedDirections{response: resp, fetchedAt: time.Now()})
	return resp, nil
}

// directionsKey quantizes both endpoints to the cache grid.
// Format: {mode}:{originLat},{originLon}:{destLat},{destLon}.
func (s *Service) directionsKey(req DirectionsRequest) string {
	q := func(v float64) float64 {
		return math.Floor(v/s.cacheGridSize) * s.cacheGridSize
	}
	return fmt.Sprintf("%s:%.3f,%.3f:%.3f,%.3f",
		req.Mode,
		q(req.Origin.Lat), q(req.Origin.Lon),
		q(req.Destination.Lat), q(req.Destination.Lon),
	)
}

// InvalidateCache clears all cached data.
func (s *Service) InvalidateCache() {
	s.geocodes.Flush()
	s.directions.Flush()
}

// CacheEntries counts cached entries per cache, including expired ones not
// yet purged.
func (s *Service) CacheEntries() map[string]int {
	return map[string]int{
		"geocode":    s.geocodes.ItemCount(),
		"directions": s.directions.ItemCount(),
	}
}

func normalizeAddress(address string) string {
	return strings.Join(strings.Fields(strings.ToLower(address)), " ")
}
