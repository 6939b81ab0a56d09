package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Level summarizes how usable a provider currently is.
type Level int

const (
	// LevelOK means the breaker is closed and the last call succeeded.
	LevelOK Level = iota
	// LevelDegraded means the breaker is probing or the last call failed.
	LevelDegraded
	// LevelDown means the breaker is open and calls are rejected.
	LevelDown
)

func (l Level) String() string {
	switch l {
	case LevelOK:
		return "ok"
	case LevelDegraded:
		return "degraded"
	default:
		return "down"
	}
}

// ProviderHealth is a point-in-time view of one provider.
type ProviderHealth struct {
	Name         string
	CircuitState gobreaker.State
	Counts       gobreaker.Counts

	LastSuccessAt *time.Time
	LastFailureAt *time.Time
	LastError     string

	// ConsecutiveFailures counts failed calls since the last success,
	// including calls rejected by an open breaker.
	ConsecutiveFailures int
}

// Level derives the provider level from the breaker state and the outcome
// of the most recent call.
func (h *ProviderHealth) Level() Level {
	switch h.CircuitState {
	case gobreaker.StateOpen:
		return LevelDown
	case gobreaker.StateHalfOpen:
		return LevelDegraded
	}
	if h.ConsecutiveFailures > 0 {
		return LevelDegraded
	}
	return LevelOK
}

// Registry tracks the resilient clients of every configured provider.
type Registry struct {
	now func() time.Time

	mu        sync.RWMutex
	providers map[string]*trackedProvider
}

type trackedProvider struct {
	client              *Client
	lastSuccessAt       *time.Time
	lastFailureAt       *time.Time
	lastError           string
	consecutiveFailures int
}

// GlobalRegistry is the registry the API server reports from.
var GlobalRegistry = NewRegistry()

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		now:       time.Now,
		providers: make(map[string]*trackedProvider),
	}
}

// Register starts tracking client under name, replacing any earlier client.
func (r *Registry) Register(name string, client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = &trackedProvider{client: client}
}

// RecordSuccess marks a completed call for name.
func (r *Registry) RecordSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.providers[name]
	if !ok {
		return
	}
	now := r.now()
	p.lastSuccessAt = &now
	p.consecutiveFailures = 0
}

// RecordFailure marks a failed call for name.
func (r *Registry) RecordFailure(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.providers[name]
	if !ok {
		return
	}
	now := r.now()
	p.lastFailureAt = &now
	p.consecutiveFailures++
	if err != nil {
		p.lastError = err.Error()
	}
}

// Health returns the health of one provider, or nil if it is not registered.
func (r *Registry) Health(name string) *ProviderHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil
	}
	return p.health(name)
}

// Snapshot returns the health of every registered provider, sorted by name.
func (r *Registry) Snapshot() []*ProviderHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	health := make([]*ProviderHealth, 0, len(r.providers))
	for name, p := range r.providers {
		health = append(health, p.health(name))
	}
	sort.Slice(health, func(i, j int) bool {
		return health[i].Name < health[j].Name
	})
	return health
}

// Len returns the number of registered providers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}

func (p *trackedProvider) health(name string) *ProviderHealth {
	return &ProviderHealth{
		Name:                name,
		CircuitState:        p.client.CircuitBreakerState(),
		Counts:              p.client.CircuitBreakerCounts(),
		LastSuccessAt:       p.lastSuccessAt,
		LastFailureAt:       p.lastFailureAt,
		LastError:           p.lastError,
		ConsecutiveFailures: p.consecutiveFailures,
	}
}
