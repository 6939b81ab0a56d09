package resilience

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned without a network call while a provider's
// breaker rejects requests.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// ClientConfig configures a resilient provider client.
type ClientConfig struct {
	// Name is the provider name used for the breaker and the registry.
	Name string

	// Timeout bounds a single attempt (default: 10s).
	Timeout time.Duration

	// MaxRetries is the number of attempts after the first (default: 3).
	MaxRetries uint64

	// InitialInterval and MaxInterval shape the exponential backoff
	// (defaults: 100ms and 5s). MaxInterval also caps Retry-After hints.
	InitialInterval time.Duration
	MaxInterval     time.Duration

	// CircuitBreaker defaults to DefaultCircuitBreakerConfig(Name).
	CircuitBreaker *CircuitBreakerConfig

	// Registry, if set, tracks the client and the outcome of every call.
	Registry *Registry

	Logger zerolog.Logger
}

// DefaultClientConfig returns the settings used for mapping and weather providers.
func DefaultClientConfig(name string) ClientConfig {
	cb := DefaultCircuitBreakerConfig(name)
	return ClientConfig{
		Name:            name,
		Timeout:         10 * time.Second,
		MaxRetries:      3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		CircuitBreaker:  &cb,
		Logger:          zerolog.Nop(),
	}
}

// Client sends provider requests through a circuit breaker and retries
// transient failures with exponential backoff.
type Client struct {
	cfg     ClientConfig
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
}

// NewClient creates a client and registers it with cfg.Registry.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 100 * time.Millisecond
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = 5 * time.Second
	}

	cbConfig := DefaultCircuitBreakerConfig(cfg.Name)
	if cfg.CircuitBreaker != nil {
		cbConfig = *cfg.CircuitBreaker
	}
	cbConfig.Logger = cfg.Logger

	c := &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: NewCircuitBreaker[*http.Response](cbConfig), //nolint:bodyclose // type param
	}
	if cfg.Registry != nil {
		cfg.Registry.Register(cfg.Name, c)
	}
	return c
}

// Name returns the provider name.
func (c *Client) Name() string {
	return c.cfg.Name
}

// Do sends req, retrying network errors, 5xx and 429 answers until
// MaxRetries is spent or the request context ends. A 429 Retry-After header
// stretches the next wait. When retries run out on an HTTP failure the last
// response is returned with a nil error so callers can map the status.
// Requests must not carry a body that cannot be replayed.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.cfg.InitialInterval
	exp.MaxInterval = c.cfg.MaxInterval
	exp.MaxElapsedTime = 0

	hinted := &retryAfterBackOff{next: exp, limit: c.cfg.MaxInterval}
	policy := backoff.WithContext(backoff.WithMaxRetries(hinted, c.cfg.MaxRetries), ctx)

	var last *http.Response
	attempt := func() error {
		resp, err := c.breaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // returned to caller
			r, err := c.http.Do(req.Clone(ctx))
			if err != nil {
				return nil, err
			}
			if r.StatusCode >= 500 || r.StatusCode == http.StatusTooManyRequests {
				return r, &ServerError{StatusCode: r.StatusCode}
			}
			return r, nil
		})

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return backoff.Permanent(ErrCircuitOpen)
		}

		if resp != nil {
			discard(last)
			last = resp
		}
		if err != nil && resp != nil && resp.StatusCode == http.StatusTooManyRequests {
			hinted.hint = retryAfter(resp.Header.Get("Retry-After"))
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		c.cfg.Logger.Debug().
			Err(err).
			Str("provider", c.cfg.Name).
			Dur("wait", wait).
			Msg("retrying provider request")
	}

	if err := backoff.RetryNotify(attempt, policy, notify); err != nil {
		c.record(err)
		if last != nil && !errors.Is(err, ErrCircuitOpen) {
			return last, nil
		}
		discard(last)
		return nil, err
	}

	c.record(nil)
	return last, nil
}

func (c *Client) record(err error) {
	if c.cfg.Registry == nil {
		return
	}
	if err != nil {
		c.cfg.Registry.RecordFailure(c.cfg.Name, err)
		return
	}
	c.cfg.Registry.RecordSuccess(c.cfg.Name)
}

// CircuitBreakerState returns the current breaker state.
func (c *Client) CircuitBreakerState() gobreaker.State {
	return c.breaker.State()
}

// CircuitBreakerCounts returns the breaker's counts for the current window.
func (c *Client) CircuitBreakerCounts() gobreaker.Counts {
	return c.breaker.Counts()
}

// ServerError is a retryable HTTP status (5xx or 429).
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return "server error: " + http.StatusText(e.StatusCode)
}

// retryAfterBackOff waits at least as long as the last Retry-After hint,
// capped at limit.
type retryAfterBackOff struct {
	next  backoff.BackOff
	limit time.Duration
	hint  time.Duration
}

func (b *retryAfterBackOff) NextBackOff() time.Duration {
	wait := b.next.NextBackOff()
	if wait == backoff.Stop {
		return wait
	}
	if b.hint > wait {
		wait = min(b.hint, b.limit)
	}
	b.hint = 0
	return wait
}

func (b *retryAfterBackOff) Reset() {
	b.next.Reset()
	b.hint = 0
}

// retryAfter parses a delay-seconds Retry-After value. HTTP dates are ignored.
func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func discard(resp *http.Response) {
	if resp == nil {
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
