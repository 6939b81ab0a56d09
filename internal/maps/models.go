// Package maps provides geocoding, distance-matrix and directions lookups
// behind a provider-neutral interface.
package maps

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for mapping operations.
var (
	// ErrProviderUnavailable indicates the mapping provider is down or the circuit breaker is open.
	ErrProviderUnavailable = errors.New("mapping provider unavailable")
	// ErrNotFound indicates the provider returned no result for the query.
	ErrNotFound = errors.New("no result found")
	// ErrRateLimitExceeded indicates the API quota has been exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrInvalidCoordinates indicates the provided coordinates are invalid or out of range.
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	// ErrRequestDenied indicates the provider rejected the credentials.
	ErrRequestDenied = errors.New("request denied by provider")
)

// Provider defines the interface for mapping providers.
type Provider interface {
	// Geocode resolves a free-text address to a coordinate.
	Geocode(ctx context.Context, address string) (*Coordinate, error)
	// DistanceMatrix returns pairwise travel durations between points.
	DistanceMatrix(ctx context.Context, req MatrixRequest) (*Matrix, error)
	// GetDirections returns directions for one origin/destination pair.
	GetDirections(ctx context.Context, req DirectionsRequest) (*Directions, error)
	// Name returns the provider identifier for logging and metrics.
	Name() string
}

// Mode is a travel mode understood by the provider.
type Mode string

const (
	ModeWalking Mode = "walking"
	ModeTransit Mode = "transit"
)

// Coordinate represents a geographic point.
type Coordinate struct {
	Lat float64
	Lon float64
}

// MatrixRequest asks for durations between every origin and every destination.
type MatrixRequest struct {
	Origins      []Coordinate
	Destinations []Coordinate
	Mode         Mode
}

// Matrix holds the durations of a distance-matrix lookup.
// Rows[i][j] is the trip from Origins[i] to Destinations[j].
type Matrix struct {
	Rows      [][]MatrixElement
	Provider  string
	FetchedAt time.Time
}

// MatrixElement is one origin/destination pair of a Matrix.
type MatrixElement struct {
	OK              bool
	DurationSeconds int
	DistanceMeters  int
}

// DirectionsRequest is the request for one leg of directions.
type DirectionsRequest struct {
	Origin      Coordinate
	Destination Coordinate
	Mode        Mode
}

// Directions is the first route returned for a DirectionsRequest.
type Directions struct {
	DurationSeconds int
	DurationText    string
	DistanceMeters  int
	DistanceText    string
	// Fare is the provider's display fare for transit, empty when unknown.
	Fare string
	// Steps are plain-text instructions; provider markup is already stripped.
	Steps     []string
	Provider  string
	FetchedAt time.Time
}

// Error provides detailed error information from the mapping provider.
type Error struct {
	Provider string // Provider that generated the error
	Code     string // Error code from the provider
	Message  string // Human-readable error message
	Err      error  // Underlying error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is transient and the request can be retried.
func (e *Error) IsRetryable() bool {
	return errors.Is(e.Err, ErrProviderUnavailable) || errors.Is(e.Err, ErrRateLimitExceeded)
}

// ValidateCoordinate checks if a coordinate is within valid ranges.
func ValidateCoordinate(c Coordinate) error {
	if c.Lat < -90 || c.Lat > 90 || c.Lon < -180 || c.Lon > 180 {
		return ErrInvalidCoordinates
	}
	return nil
}
