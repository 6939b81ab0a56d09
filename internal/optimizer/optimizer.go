// Package optimizer enriches the route heuristic with mapping and weather
// data. Every enrichment stage is settle-all: a failed lookup is logged and
// the affected part of the route falls back to heuristic values.
package optimizer

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tripwise/tripwise/internal/maps"
	"github.com/tripwise/tripwise/internal/telemetry"
	"github.com/tripwise/tripwise/internal/weather"
	"github.com/tripwise/tripwise/pkg/routeplan"
)

const tracerName = "github.com/tripwise/tripwise/internal/optimizer"

// ErrMissingCredential is returned when no mapping provider is configured.
var ErrMissingCredential = errors.New("mapping provider credential not configured")

// Maps is the subset of the mapping service the optimizer uses.
type Maps interface {
	Geocode(ctx context.Context, address string) (*maps.Coordinate, error)
	DistanceMatrix(ctx context.Context, req maps.MatrixRequest) (*maps.Matrix, error)
	GetDirections(ctx context.Context, req maps.DirectionsRequest) (*maps.Directions, error)
}

// Forecaster returns hourly forecasts.
type Forecaster interface {
	GetForecast(ctx context.Context, lat, lon float64) (*weather.Forecast, error)
}

// Flags exposes the runtime switches that turn enrichment stages off.
type Flags interface {
	IsDistanceMatrixDisabled(ctx context.Context) bool
	IsTransportOptionsDisabled(ctx context.Context) bool
	IsWeatherForecastDisabled(ctx context.Context) bool
	MaxTransportLegs(ctx context.Context) int
}

// Config holds the optimizer dependencies.
type Config struct {
	// Maps is required; Optimize fails with ErrMissingCredential without it.
	Maps Maps

	// Forecaster is optional. Without it no rain tip is generated.
	Forecaster Forecaster

	// Flags is optional. Without it every stage runs with the default leg cap.
	Flags Flags

	Logger zerolog.Logger

	// Now returns the wall-clock time (default: time.Now).
	Now func() time.Time

	// Concurrency bounds in-flight provider calls per stage (default: 4).
	Concurrency int

	// CallTimeout bounds each provider call (default: 8s).
	CallTimeout time.Duration
}

// Service optimizes trip days.
type Service struct {
	maps        Maps
	forecaster  Forecaster
	flags       Flags
	logger      zerolog.Logger
	now         func() time.Time
	concurrency int
	callTimeout time.Duration
}

// New creates an optimizer service.
func New(cfg Config) *Service {
	s := &Service{
		maps:        cfg.Maps,
		forecaster:  cfg.Forecaster,
		flags:       cfg.Flags,
		logger:      cfg.Logger,
		now:         cfg.Now,
		concurrency: cfg.Concurrency,
		callTimeout: cfg.CallTimeout,
	}
	if s.flags == nil {
		s.flags = defaultFlags{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.concurrency <= 0 {
		s.concurrency = 4
	}
	if s.callTimeout <= 0 {
		s.callTimeout = 8 * time.Second
	}
	return s
}

// Optimize orders the request's activities and enriches the route with
// coordinates, walking times, transport options and a rain forecast.
// It returns a *routeplan.ValidationError for malformed requests and
// ErrMissingCredential when no mapping provider is configured. Provider
// failures never fail the request.
func (s *Service) Optimize(ctx context.Context, req *routeplan.Request) (res *routeplan.RouteOptimization, err error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if s.maps == nil {
		return nil, ErrMissingCredential
	}

	ctx, span := telemetry.StartSpan(ctx, tracerName, "optimizer.Optimize",
		attribute.Int("activities", len(req.Activities)),
		attribute.Int("trip_day", req.TripDay),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	now := s.now()
	order := routeplan.Schedule(req.Activities, routeplan.ScheduleOptions{
		Destination: req.Destination,
		TripDay:     req.TripDay,
		Now:         now,
	})
	for i := range order {
		order[i].TravelTimes = nil
	}

	wantForecast := s.wantsForecast(ctx, req, order)
	destination := s.geocodeStage(ctx, order, req.Destination, wantForecast)

	var enr routeplan.Enrichment
	if !s.flags.IsDistanceMatrixDisabled(ctx) {
		enr.RealTravelTimes = s.travelStage(ctx, order)
	}
	if !s.flags.IsTransportOptionsDisabled(ctx) {
		enr.TransportationOptions = s.transportStage(ctx, order, s.flags.MaxTransportLegs(ctx))
	}
	if wantForecast && destination != nil {
		if tip, ok := s.forecastStage(ctx, order, req, *destination, now); ok {
			enr.Suggestions = append(enr.Suggestions, tip)
		}
	}

	res = routeplan.Assemble(order, req, enr)

	s.logger.Info().
		Int("activities", len(order)).
		Bool("real_travel_times", res.RealTravelTimes).
		Int("transport_options", len(res.TransportationOptions)).
		Int("total_walking_time", res.TotalWalkingTime).
		Msg("route optimized")

	return res, nil
}

func (s *Service) wantsForecast(ctx context.Context, req *routeplan.Request, order []routeplan.Activity) bool {
	if s.forecaster == nil || !req.WeatherBackup || req.Destination == "" {
		return false
	}
	if s.flags.IsWeatherForecastDisabled(ctx) {
		return false
	}
	for i := range order {
		if order[i].WeatherDependent {
			return true
		}
	}
	return false
}

// callContext bounds one provider call.
func (s *Service) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.callTimeout)
}

type defaultFlags struct{}

func (defaultFlags) IsDistanceMatrixDisabled(context.Context) bool   { return false }
func (defaultFlags) IsTransportOptionsDisabled(context.Context) bool { return false }
func (defaultFlags) IsWeatherForecastDisabled(context.Context) bool  { return false }
func (defaultFlags) MaxTransportLegs(context.Context) int            { return defaultMaxTransportLegs }
