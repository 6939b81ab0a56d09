package optimizer

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/tripwise/tripwise/internal/maps"
	"github.com/tripwise/tripwise/internal/telemetry"
	"github.com/tripwise/tripwise/pkg/routeplan"
)

// geocodeStage sets Coordinates on every activity that lacks them and can be
// resolved. When withDestination is set the destination itself is resolved
// too and returned; otherwise the result is nil.
func (s *Service) geocodeStage(ctx context.Context, order []routeplan.Activity, destination string, withDestination bool) *maps.Coordinate {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "optimizer.geocode")
	defer span.End()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	var resolved int
	results := make([]*maps.Coordinate, len(order))
	for i := range order {
		if order[i].Coordinates != nil {
			continue
		}
		address := order[i].Location + ", " + destination
		g.Go(func() error {
			results[i] = s.geocode(ctx, address, order[i].ID)
			return nil
		})
	}

	var dest *maps.Coordinate
	if withDestination {
		g.Go(func() error {
			dest = s.geocode(ctx, destination, "")
			return nil
		})
	}

	_ = g.Wait()

	for i, c := range results {
		if c == nil {
			continue
		}
		order[i].Coordinates = &routeplan.Coordinates{c.Lon, c.Lat}
		resolved++
	}

	span.SetAttributes(attribute.Int("geocoded", resolved))
	return dest
}

func (s *Service) geocode(ctx context.Context, address, activityID string) *maps.Coordinate {
	callCtx, cancel := s.callContext(ctx)
	defer cancel()

	c, err := s.maps.Geocode(callCtx, address)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("stage", "geocode").
			Str("activity_id", activityID).
			Str("address", address).
			Msg("geocoding failed")
		return nil
	}
	return c
}
