package featureflags

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
)

// ServiceConfig holds configuration for the feature flag service.
type ServiceConfig struct {
	Repository Repository
	Logger     zerolog.Logger

	// CacheTTL bounds how stale a resolved flag may be (default: 1m).
	CacheTTL time.Duration

	// DefaultFlags overrides the built-in defaults, mainly for tests.
	DefaultFlags map[string]*Flag
}

// Service resolves flags as stored override, else default. Resolved values
// are cached per key so the optimizer does not hit the store on every request.
type Service struct {
	repo         Repository
	logger       zerolog.Logger
	defaultFlags map[string]*Flag
	cache        *cache.Cache
}

// NewService creates a new feature flag service.
func NewService(cfg ServiceConfig) *Service {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = time.Minute
	}

	defaults := cfg.DefaultFlags
	if defaults == nil {
		defaults = DefaultFlags()
	}

	return &Service{
		repo:         cfg.Repository,
		logger:       cfg.Logger,
		defaultFlags: defaults,
		cache:        cache.New(ttl, 2*ttl),
	}
}

// GetFlag returns the effective flag for key, or nil for unknown keys.
// Store errors are logged and answered with the default, uncached, so the
// next call retries the store.
func (s *Service) GetFlag(ctx context.Context, key string) *Flag {
	if v, ok := s.cache.Get(key); ok {
		return v.(*Flag).clone()
	}

	flag, err := s.repo.GetFlag(ctx, key)
	switch {
	case err == nil:
		s.cache.SetDefault(key, flag)
		return flag.clone()
	case errors.Is(err, ErrFlagNotFound):
		def := s.defaultFlags[key]
		if def != nil {
			s.cache.SetDefault(key, def)
		}
		return def.clone()
	default:
		s.logger.Warn().Err(err).Str("flag", key).Msg("feature flag lookup failed, using default")
		return s.defaultFlags[key].clone()
	}
}

// GetAllFlags returns every known flag with overrides applied. When the
// store is unavailable the defaults are returned.
func (s *Service) GetAllFlags(ctx context.Context) map[string]*Flag {
	result := make(map[string]*Flag, len(s.defaultFlags))
	for k, v := range s.defaultFlags {
		result[k] = v.clone()
	}

	stored, err := s.repo.GetAllFlags(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("feature flag listing failed, using defaults")
		return result
	}
	for k, v := range stored {
		result[k] = v.clone()
	}

	for k, v := range result {
		s.cache.SetDefault(k, v.clone())
	}
	return result
}

// SetFlag stores a single override.
func (s *Service) SetFlag(ctx context.Context, flag *Flag) error {
	return s.SetFlags(ctx, []*Flag{flag})
}

// SetFlags stores all overrides in one repository call and refreshes the cache.
func (s *Service) SetFlags(ctx context.Context, flags []*Flag) error {
	now := time.Now()
	for _, f := range flags {
		f.UpdatedAt = now
	}

	if err := s.repo.SetFlags(ctx, flags); err != nil {
		return fmt.Errorf("store feature flags: %w", err)
	}

	for _, f := range flags {
		s.cache.SetDefault(f.Key, f.clone())
	}
	return nil
}

// ResetFlag drops the stored override for key so it reverts to its default.
func (s *Service) ResetFlag(ctx context.Context, key string) error {
	if _, ok := s.defaultFlags[key]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownFlag, key)
	}

	if err := s.repo.DeleteFlag(ctx, key); err != nil && !errors.Is(err, ErrFlagNotFound) {
		return fmt.Errorf("delete feature flag %s: %w", key, err)
	}

	s.cache.Delete(key)
	return nil
}

// InvalidateCache forgets every resolved flag.
func (s *Service) InvalidateCache() {
	s.cache.Flush()
}

// IsEnabled reports whether a boolean flag is on. Unknown keys are off.
func (s *Service) IsEnabled(ctx context.Context, key string) bool {
	return s.GetFlag(ctx, key).BoolValue(false)
}

func (s *Service) IsDistanceMatrixDisabled(ctx context.Context) bool {
	return s.IsEnabled(ctx, FlagDisableDistanceMatrix)
}

func (s *Service) IsTransportOptionsDisabled(ctx context.Context) bool {
	return s.IsEnabled(ctx, FlagDisableTransportOptions)
}

func (s *Service) IsWeatherForecastDisabled(ctx context.Context) bool {
	return s.IsEnabled(ctx, FlagDisableWeatherForecast)
}

// MaxTransportLegs returns the cap on resolved transport legs. Negative
// values fall back to the default.
func (s *Service) MaxTransportLegs(ctx context.Context) int {
	n := s.GetFlag(ctx, FlagMaxTransportLegs).IntValue(DefaultMaxTransportLegs)
	if n < 0 {
		return DefaultMaxTransportLegs
	}
	return n
}

// ActiveDegradations returns the keys of the kill switches currently on, sorted.
func (s *Service) ActiveDegradations(ctx context.Context) []string {
	active := []string{}
	for _, d := range definitions {
		if d.Degradation && s.IsEnabled(ctx, d.Key) {
			active = append(active, d.Key)
		}
	}
	sort.Strings(active)
	return active
}
