// Package featureflags holds the runtime switches that let operators turn
// enrichment stages of the optimizer off without a deploy.
package featureflags

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Validation errors for flag updates.
var (
	ErrUnknownFlag      = errors.New("unknown feature flag")
	ErrInvalidFlagValue = errors.New("invalid feature flag value")
)

// Well-known feature flag keys.
const (
	FlagDisableDistanceMatrix   = "disable_distance_matrix"
	FlagDisableTransportOptions = "disable_transport_options"
	FlagMaxTransportLegs        = "max_transport_legs"
	FlagDisableWeatherForecast  = "disable_weather_forecast"
)

// DefaultMaxTransportLegs is the number of consecutive pairs resolved for
// transportation options unless overridden by FlagMaxTransportLegs.
const DefaultMaxTransportLegs = 3

// Kind is the JSON type a flag value must have.
type Kind int

const (
	KindBool Kind = iota
	// KindCount is a non-negative whole number.
	KindCount
)

// Definition describes one flag the service knows about.
type Definition struct {
	Key         string
	Kind        Kind
	Default     any
	Description string

	// Degradation marks kill switches reported on the status endpoint
	// while they are on.
	Degradation bool
}

// definitions is the source of truth for known keys and their defaults.
// Numbers are float64 so defaults compare equal to decoded JSON.
var definitions = []Definition{
	{
		Key:         FlagDisableDistanceMatrix,
		Kind:        KindBool,
		Default:     false,
		Description: "skip the walking distance matrix; every leg uses the fallback estimate",
		Degradation: true,
	},
	{
		Key:         FlagDisableTransportOptions,
		Kind:        KindBool,
		Default:     false,
		Description: "skip transit and walking directions; only the rideshare placeholder is returned",
		Degradation: true,
	},
	{
		Key:         FlagMaxTransportLegs,
		Kind:        KindCount,
		Default:     float64(DefaultMaxTransportLegs),
		Description: "cap on consecutive pairs that get directions; 0 turns directions off",
	},
	{
		Key:         FlagDisableWeatherForecast,
		Kind:        KindBool,
		Default:     false,
		Description: "skip the forecast lookup and its rain tip",
		Degradation: true,
	},
}

// Definitions returns a copy of the known flag definitions.
func Definitions() []Definition {
	out := make([]Definition, len(definitions))
	copy(out, definitions)
	return out
}

func lookup(key string) (Definition, bool) {
	for _, d := range definitions {
		if d.Key == key {
			return d, true
		}
	}
	return Definition{}, false
}

// Flag represents a feature flag with its current value.
type Flag struct {
	Key       string    `json:"key"`
	Value     any       `json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FlagList represents a list of feature flags.
type FlagList struct {
	Items []Flag `json:"items"`
}

// FlagUpdate is one key/value pair of an admin update.
type FlagUpdate struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// FlagUpdateRequest is the body of PUT /v1/admin/feature-flags.
type FlagUpdateRequest struct {
	Updates []FlagUpdate `json:"updates"`
	Reason  string       `json:"reason"`
}

// BoolValue returns the value as a boolean, or def when f is nil or holds
// something else. Numbers count as true when non-zero.
func (f *Flag) BoolValue(def bool) bool {
	if f == nil {
		return def
	}
	switch v := f.Value.(type) {
	case bool:
		return v
	case float64:
		return v != 0
	}
	return def
}

// IntValue returns the value as an int, or def when f is nil or not numeric.
func (f *Flag) IntValue(def int) int {
	if f == nil {
		return def
	}
	switch v := f.Value.(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return def
}

// clone returns a copy so cached and stored flags are never shared with callers.
func (f *Flag) clone() *Flag {
	if f == nil {
		return nil
	}
	c := *f
	return &c
}

// DefaultFlags returns a fresh flag per definition holding its default value.
func DefaultFlags() map[string]*Flag {
	now := time.Now()
	flags := make(map[string]*Flag, len(definitions))
	for _, d := range definitions {
		flags[d.Key] = &Flag{Key: d.Key, Value: d.Default, UpdatedAt: now}
	}
	return flags
}

// Validate checks that an update targets a known flag with a value of the right kind.
func (u FlagUpdate) Validate() error {
	d, ok := lookup(u.Key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownFlag, u.Key)
	}

	switch d.Kind {
	case KindBool:
		if _, ok := u.Value.(bool); !ok {
			return fmt.Errorf("%w: %s must be a boolean", ErrInvalidFlagValue, u.Key)
		}
	case KindCount:
		n, ok := u.Value.(float64)
		if !ok || n < 0 || n != math.Trunc(n) {
			return fmt.Errorf("%w: %s must be a non-negative integer", ErrInvalidFlagValue, u.Key)
		}
	}
	return nil
}
