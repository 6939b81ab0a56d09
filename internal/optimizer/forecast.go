package optimizer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tripwise/tripwise/internal/maps"
	"github.com/tripwise/tripwise/internal/telemetry"
	"github.com/tripwise/tripwise/pkg/routeplan"
)

// rainTipThreshold is the precipitation probability that triggers a tip.
const rainTipThreshold = 0.5

// forecastStage looks up the destination forecast for the planned day and
// returns a tip when rain is likely while weather-dependent activities are
// scheduled.
func (s *Service) forecastStage(ctx context.Context, order []routeplan.Activity, req *routeplan.Request, dest maps.Coordinate, now time.Time) (string, bool) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "optimizer.forecast")
	callCtx, cancel := s.callContext(ctx)
	forecast, err := s.forecaster.GetForecast(callCtx, dest.Lat, dest.Lon)
	cancel()
	telemetry.EndSpan(span, err)

	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("stage", "forecast").
			Str("destination", req.Destination).
			Msg("forecast failed")
		return "", false
	}

	from, to, ok := dayWindow(order, req.StartTime, now.In(forecast.Location()))
	if !ok {
		return "", false
	}

	hour, ok := forecast.WettestHour(from.Truncate(time.Hour), to)
	if !ok || hour.PrecipProb < rainTipThreshold {
		return "", false
	}

	var names []string
	for i := range order {
		if order[i].WeatherDependent {
			names = append(names, order[i].Name)
		}
	}

	return fmt.Sprintf("Rain is likely around %s (%d%% chance) - plan indoor time instead of: %s",
		hour.Time.In(forecast.Location()).Format("15:04"),
		int(hour.PrecipProb*100+0.5),
		strings.Join(names, ", "),
	), true
}

// dayWindow returns the local span covered by the route, starting at
// startTime today, or tomorrow when today's span has already ended.
func dayWindow(order []routeplan.Activity, startTime string, now time.Time) (time.Time, time.Time, bool) {
	start, err := routeplan.ParseClock(startTime)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}

	span := 0
	for i := range order {
		span += order[i].EstimatedDuration
		if i+1 < len(order) {
			span += routeplan.LegMinutes(order, i)
		}
	}
	if span < 60 {
		span = 60
	}

	y, m, d := now.Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, now.Location()).Add(time.Duration(start) * time.Minute)
	to := from.Add(time.Duration(span) * time.Minute)
	if !to.After(now) {
		from = from.AddDate(0, 0, 1)
		to = to.AddDate(0, 0, 1)
	}
	return from, to, true
}
