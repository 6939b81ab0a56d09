package featureflags

import (
	"context"
	"errors"
)

// ErrFlagNotFound is returned when the store holds no override for a key.
var ErrFlagNotFound = errors.New("feature flag not found")

// Repository persists flag overrides. Keys absent from the store resolve to
// DefaultFlags in Service.
type Repository interface {
	GetFlag(ctx context.Context, key string) (*Flag, error)
	GetAllFlags(ctx context.Context) (map[string]*Flag, error)
	SetFlag(ctx context.Context, flag *Flag) error

	// SetFlags applies every override or none of them.
	SetFlags(ctx context.Context, flags []*Flag) error

	// DeleteFlag drops an override, returning ErrFlagNotFound if none exists.
	DeleteFlag(ctx context.Context, key string) error
}
