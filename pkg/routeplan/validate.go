package routeplan

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// FieldError describes one invalid field of a request.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError is returned when a request is malformed.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "invalid request"
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "invalid request: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, format string, args ...interface{}) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Validate checks the request and returns a *ValidationError listing every
// problem found, or nil.
func (r *Request) Validate() error {
	verr := &ValidationError{}

	if _, err := ParseClock(r.StartTime); err != nil {
		verr.add("startTime", "must be HH:MM")
	}
	if r.EnergyLevel != "" && !r.EnergyLevel.valid() {
		verr.add("energyLevel", "must be one of low, medium, high")
	}
	if r.TripDay < 0 {
		verr.add("tripDay", "must not be negative")
	}

	for i := range r.Activities {
		validateActivity(verr, fmt.Sprintf("activities[%d]", i), &r.Activities[i])
	}

	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

func validateActivity(verr *ValidationError, prefix string, a *Activity) {
	if strings.TrimSpace(a.ID) == "" {
		verr.add(prefix+".id", "is required")
	}
	if strings.TrimSpace(a.Name) == "" {
		verr.add(prefix+".name", "is required")
	}
	if a.EstimatedDuration < 0 {
		verr.add(prefix+".estimatedDuration", "must not be negative")
	}
	if !a.Category.valid() {
		verr.add(prefix+".category", "must be one of attraction, restaurant, activity, transport")
	}
	if !a.CrowdLevel.valid() {
		verr.add(prefix+".crowdLevel", "must be one of low, medium, high")
	}
	if !a.EnergyRequired.valid() {
		verr.add(prefix+".energyRequired", "must be one of low, medium, high")
	}
	if c := a.Coordinates; c != nil {
		if math.IsNaN(c.Lat()) || c.Lat() < -90 || c.Lat() > 90 ||
			math.IsNaN(c.Lon()) || c.Lon() < -180 || c.Lon() > 180 {
			verr.add(prefix+".coordinates", "must be [longitude, latitude] within range")
		}
	}
}

// ParseClock parses an "HH:MM" wall-clock time into minutes after midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("parsing clock %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatClock renders minutes after midnight as "HH:MM", wrapping past
// midnight.
func FormatClock(minutes int) string {
	m := ((minutes % (24 * 60)) + 24*60) % (24 * 60)
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}
