package featureflags

import (
	"context"
	"sync"
	"time"
)

// InMemoryRepository keeps overrides in a map. It backs the service when no
// database is configured; overrides are lost on restart.
type InMemoryRepository struct {
	mu    sync.RWMutex
	now   func() time.Time
	flags map[string]*Flag
}

// NewInMemoryRepository returns an empty repository, so every key resolves
// to its default until overridden.
func NewInMemoryRepository() *InMemoryRepository {
	return NewInMemoryRepositoryWithFlags(nil)
}

// NewInMemoryRepositoryWithFlags returns a repository seeded with copies of flags.
func NewInMemoryRepositoryWithFlags(flags map[string]*Flag) *InMemoryRepository {
	repo := &InMemoryRepository{
		now:   time.Now,
		flags: make(map[string]*Flag, len(flags)),
	}
	for k, v := range flags {
		repo.flags[k] = v.clone()
	}
	return repo
}

func (r *InMemoryRepository) GetFlag(_ context.Context, key string) (*Flag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	flag, ok := r.flags[key]
	if !ok {
		return nil, ErrFlagNotFound
	}
	return flag.clone(), nil
}

func (r *InMemoryRepository) GetAllFlags(_ context.Context) (map[string]*Flag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]*Flag, len(r.flags))
	for k, v := range r.flags {
		out[k] = v.clone()
	}
	return out, nil
}

func (r *InMemoryRepository) SetFlag(ctx context.Context, flag *Flag) error {
	return r.SetFlags(ctx, []*Flag{flag})
}

func (r *InMemoryRepository) SetFlags(_ context.Context, flags []*Flag) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for _, f := range flags {
		stored := f.clone()
		stored.UpdatedAt = now
		r.flags[f.Key] = stored
	}
	return nil
}

func (r *InMemoryRepository) DeleteFlag(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.flags[key]; !ok {
		return ErrFlagNotFound
	}
	delete(r.flags, key)
	return nil
}

var _ Repository = (*InMemoryRepository)(nil)
