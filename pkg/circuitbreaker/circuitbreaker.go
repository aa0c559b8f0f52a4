// Package circuitbreaker stops calling an external dependency (the
// notification broker, the document CDN) after repeated failures and probes
// it again after a cool-down. Callers fail fast while the circuit is open.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State of a circuit.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

var (
	// ErrOpen is returned without calling the dependency while the circuit is open.
	ErrOpen = errors.New("circuit breaker is open")
	// ErrProbeInFlight is returned in half-open state when the probe budget is used up.
	ErrProbeInFlight = errors.New("circuit breaker is probing")
)

// Config holds circuit breaker settings.
type Config struct {
	Name string

	// FailureThreshold consecutive failures open the circuit.
	FailureThreshold int

	// SuccessThreshold consecutive probe successes close it again.
	SuccessThreshold int

	// CoolDown is how long the circuit stays open before probing.
	CoolDown time.Duration

	// MaxProbes limits concurrent calls in half-open state.
	MaxProbes int

	OnStateChange func(name string, from, to State)

	// IsFailure decides which errors count. Context cancellation by the
	// caller never counts. Nil counts every other error.
	IsFailure func(error) bool
}

// Option configures a CircuitBreaker.
type Option func(*Config)

func WithFailureThreshold(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.FailureThreshold = n
		}
	}
}

func WithSuccessThreshold(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.SuccessThreshold = n
		}
	}
}

func WithCoolDown(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.CoolDown = d
		}
	}
}

func WithMaxProbes(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.MaxProbes = n
		}
	}
}

func WithOnStateChange(fn func(name string, from, to State)) Option {
	return func(c *Config) { c.OnStateChange = fn }
}

func WithIsFailure(fn func(error) bool) Option {
	return func(c *Config) { c.IsFailure = fn }
}

// CircuitBreaker is safe for concurrent use.
type CircuitBreaker struct {
	config Config
	now    func() time.Time

	mu          sync.Mutex
	state       State
	failures    int
	successes   int
	probes      int
	openedAt    time.Time
	transitions []func()
}

// New creates a closed circuit.
func New(name string, opts ...Option) *CircuitBreaker {
	cfg := Config{
		Name:             name,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		CoolDown:         30 * time.Second,
		MaxProbes:        1,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &CircuitBreaker{config: cfg, now: time.Now}
}

// WithClock replaces the time source. Used by tests.
func (cb *CircuitBreaker) WithClock(now func() time.Time) *CircuitBreaker {
	cb.now = now
	return cb
}

// Execute calls fn unless the circuit is open. A nil breaker always calls fn.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if cb == nil {
		return fn(ctx)
	}
	if err := cb.acquire(); err != nil {
		return err
	}
	err := fn(ctx)
	cb.record(ctx, err)
	return err
}

func (cb *CircuitBreaker) acquire() error {
	cb.mu.Lock()
	defer cb.flush()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.config.CoolDown {
			return ErrOpen
		}
		cb.transition(StateHalfOpen)
		cb.probes = 1
		return nil
	case StateHalfOpen:
		if cb.probes >= cb.config.MaxProbes {
			return ErrProbeInFlight
		}
		cb.probes++
		return nil
	default:
		return nil
	}
}

func (cb *CircuitBreaker) record(ctx context.Context, err error) {
	cb.mu.Lock()
	defer cb.flush()

	if cb.state == StateHalfOpen && cb.probes > 0 {
		cb.probes--
	}

	if !cb.countsAsFailure(ctx, err) {
		cb.failures = 0
		if cb.state == StateHalfOpen {
			cb.successes++
			if cb.successes >= cb.config.SuccessThreshold {
				cb.transition(StateClosed)
			}
		}
		return
	}

	cb.successes = 0
	cb.failures++
	if cb.state == StateHalfOpen || cb.failures >= cb.config.FailureThreshold {
		cb.openedAt = cb.now()
		cb.transition(StateOpen)
	}
}

func (cb *CircuitBreaker) countsAsFailure(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return false
	}
	if cb.config.IsFailure != nil {
		return cb.config.IsFailure(err)
	}
	return true
}

// transition must be called with mu held. Callbacks run after unlock.
func (cb *CircuitBreaker) transition(to State) {
	if cb.state == to {
		return
	}
	from := cb.state
	cb.state = to
	cb.failures, cb.successes, cb.probes = 0, 0, 0
	if fn := cb.config.OnStateChange; fn != nil {
		name := cb.config.Name
		cb.transitions = append(cb.transitions, func() { fn(name, from, to) })
	}
}

// flush unlocks mu and runs queued state-change callbacks.
func (cb *CircuitBreaker) flush() {
	pending := cb.transitions
	cb.transitions = nil
	cb.mu.Unlock()
	for _, fn := range pending {
		fn()
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Name returns the breaker name.
func (cb *CircuitBreaker) Name() string {
	return cb.config.Name
}

// BrokerBreaker guards notification publishing. Notifications are best
// effort, so the circuit opens quickly and probes every 30 seconds.
func BrokerBreaker(onStateChange func(name string, from, to State)) *CircuitBreaker {
	return New("notification-broker",
		WithFailureThreshold(3),
		WithSuccessThreshold(1),
		WithCoolDown(30*time.Second),
		WithOnStateChange(onStateChange),
	)
}

// StorageBreaker guards the remote document store.
func StorageBreaker(onStateChange func(name string, from, to State)) *CircuitBreaker {
	return New("document-storage",
		WithFailureThreshold(5),
		WithSuccessThreshold(2),
		WithCoolDown(15*time.Second),
		WithMaxProbes(2),
		WithOnStateChange(onStateChange),
	)
}
