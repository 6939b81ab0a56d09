// Package weather provides hourly forecasts used to warn travelers about rain.
package weather

import (
	"errors"
	"time"
)

// Weather errors.
var (
	ErrProviderUnavailable = errors.New("weather provider unavailable")
	ErrNoDataForLocation   = errors.New("no weather data for location")
	ErrInvalidCoordinates  = errors.New("invalid coordinates")
	ErrUnauthorized        = errors.New("weather provider rejected credentials")
)

// Condition represents the general weather condition.
type Condition string

const (
	ConditionClear        Condition = "CLEAR"
	ConditionClouds       Condition = "CLOUDS"
	ConditionRain         Condition = "RAIN"
	ConditionDrizzle      Condition = "DRIZZLE"
	ConditionThunderstorm Condition = "THUNDERSTORM"
	ConditionSnow         Condition = "SNOW"
	ConditionMist         Condition = "MIST"
	ConditionFog          Condition = "FOG"
	ConditionHaze         Condition = "HAZE"
	ConditionUnknown      Condition = "UNKNOWN"
)

// IsWet reports whether the condition means precipitation.
func (c Condition) IsWet() bool {
	switch c {
	case ConditionRain, ConditionDrizzle, ConditionThunderstorm, ConditionSnow:
		return true
	default:
		return false
	}
}

// Forecast represents weather forecast data.
type Forecast struct {
	// Location
	Lat float64
	Lon float64

	// UTCOffset is the location's offset from UTC.
	UTCOffset time.Duration

	// Hourly forecasts, ordered by time
	Hourly []HourlyForecast

	// When the forecast was fetched
	FetchedAt time.Time
}

// HourlyForecast represents weather for a specific hour.
type HourlyForecast struct {
	Time        time.Time
	Temperature float64
	Condition   Condition
	Description string
	PrecipProb  float64 // Probability of precipitation (0-1)
}

// Location returns a fixed zone for the forecast's UTC offset.
func (f *Forecast) Location() *time.Location {
	return time.FixedZone("", int(f.UTCOffset/time.Second))
}

// WettestHour returns the hour in [from, to) with the highest precipitation
// probability. Ties keep the earliest hour. ok is false when no hour falls in
// the window.
func (f *Forecast) WettestHour(from, to time.Time) (hour HourlyForecast, ok bool) {
	for _, h := range f.Hourly {
		if h.Time.Before(from) || !h.Time.Before(to) {
			continue
		}
		if !ok || h.PrecipProb > hour.PrecipProb {
			hour, ok = h, true
		}
	}
	return hour, ok
}
