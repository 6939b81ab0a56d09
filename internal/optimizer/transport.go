package optimizer

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/tripwise/tripwise/internal/maps"
	"github.com/tripwise/tripwise/internal/telemetry"
	"github.com/tripwise/tripwise/pkg/routeplan"
)

const defaultMaxTransportLegs = 3

// legModes are requested for every leg, in output order.
var legModes = []struct {
	maps maps.Mode
	mode routeplan.TransportMode
}{
	{maps.ModeTransit, routeplan.ModeTransit},
	{maps.ModeWalking, routeplan.ModeWalking},
}

// transportStage resolves transit and walking directions for the first
// maxLegs consecutive pairs. Options come back in leg order, transit first.
func (s *Service) transportStage(ctx context.Context, order []routeplan.Activity, maxLegs int) []routeplan.TransportationOption {
	legs := len(order) - 1
	if maxLegs < legs {
		legs = maxLegs
	}
	if legs <= 0 {
		return nil
	}

	ctx, span := telemetry.StartSpan(ctx, tracerName, "optimizer.transport_options",
		attribute.Int("legs", legs),
	)
	defer span.End()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	slots := make([]*routeplan.TransportationOption, legs*len(legModes))
	for leg := 0; leg < legs; leg++ {
		from, to := &order[leg], &order[leg+1]
		if from.Coordinates == nil || to.Coordinates == nil {
			continue
		}
		for m, lm := range legModes {
			slot := leg*len(legModes) + m
			g.Go(func() error {
				slots[slot] = s.directions(ctx, from, to, lm.maps, lm.mode)
				return nil
			})
		}
	}
	_ = g.Wait()

	opts := make([]routeplan.TransportationOption, 0, len(slots))
	for _, o := range slots {
		if o != nil {
			opts = append(opts, *o)
		}
	}
	span.SetAttributes(attribute.Int("options", len(opts)))
	return opts
}

func (s *Service) directions(ctx context.Context, from, to *routeplan.Activity, mode maps.Mode, out routeplan.TransportMode) *routeplan.TransportationOption {
	callCtx, cancel := s.callContext(ctx)
	defer cancel()

	d, err := s.maps.GetDirections(callCtx, maps.DirectionsRequest{
		Origin:      maps.Coordinate{Lat: from.Coordinates.Lat(), Lon: from.Coordinates.Lon()},
		Destination: maps.Coordinate{Lat: to.Coordinates.Lat(), Lon: to.Coordinates.Lon()},
		Mode:        mode,
	})
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("stage", "transport_options").
			Str("mode", string(mode)).
			Str("from", from.ID).
			Str("to", to.ID).
			Msg("directions failed")
		return nil
	}

	return &routeplan.TransportationOption{
		From:         from.Name,
		To:           to.Name,
		Mode:         out,
		Duration:     d.DurationText,
		Distance:     d.DistanceText,
		Cost:         d.Fare,
		Instructions: d.Steps,
	}
}
