package optimizer

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/tripwise/tripwise/internal/maps"
	"github.com/tripwise/tripwise/internal/telemetry"
	"github.com/tripwise/tripwise/pkg/routeplan"
)

// travelStage fetches one walking matrix over the geocoded activities and
// sets TravelTimes on every activity. It reports whether real times were
// attached.
func (s *Service) travelStage(ctx context.Context, order []routeplan.Activity) bool {
	var idx []int
	var points []maps.Coordinate
	for i := range order {
		if c := order[i].Coordinates; c != nil {
			idx = append(idx, i)
			points = append(points, maps.Coordinate{Lat: c.Lat(), Lon: c.Lon()})
		}
	}
	if len(points) < 2 {
		return false
	}

	ctx, span := telemetry.StartSpan(ctx, tracerName, "optimizer.travel_times",
		attribute.Int("points", len(points)),
	)
	callCtx, cancel := s.callContext(ctx)
	matrix, err := s.maps.DistanceMatrix(callCtx, maps.MatrixRequest{
		Origins:      points,
		Destinations: points,
		Mode:         maps.ModeWalking,
	})
	cancel()
	telemetry.EndSpan(span, err)

	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("stage", "travel_times").
			Int("points", len(points)).
			Msg("distance matrix failed, using estimates")
		return false
	}

	// pos maps an order index to its row in the matrix.
	pos := make([]int, len(order))
	for i := range pos {
		pos[i] = -1
	}
	for row, i := range idx {
		pos[i] = row
	}

	for i := range order {
		times := make([]int, len(order))
		for j := range order {
			switch {
			case i == j:
				times[j] = 0
			case pos[i] < 0 || pos[j] < 0:
				times[j] = routeplan.FallbackLegMinutes
			default:
				times[j] = legMinutes(matrix, pos[i], pos[j])
			}
		}
		order[i].TravelTimes = times
	}
	return true
}

func legMinutes(m *maps.Matrix, from, to int) int {
	if from >= len(m.Rows) || to >= len(m.Rows[from]) {
		return routeplan.FallbackLegMinutes
	}
	el := m.Rows[from][to]
	if !el.OK {
		return routeplan.FallbackLegMinutes
	}
	minutes := el.DurationSeconds / 60
	if minutes == 0 && el.DistanceMeters > 0 {
		minutes = 1
	}
	return minutes
}
