package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

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

// CircuitBreaker stops calling a failing dependency for OpenTimeout after
// MaxFailures consecutive failures, then lets HalfOpenSuccesses probes
// through before closing again.
type CircuitBreaker struct {
	name              string
	maxFailures       int
	openTimeout       time.Duration
	halfOpenSuccesses int
	now               func() time.Time
	onStateChange     func(name string, from, to State)
	isFailure         func(error) bool

	mu           sync.Mutex
	state        State
	failures     int
	successes    int
	lastFailTime time.Time
}

type CircuitBreakerConfig struct {
	Name              string
	MaxFailures       int
	OpenTimeout       time.Duration
	HalfOpenSuccesses int
	// OnStateChange runs synchronously, outside the breaker's lock.
	OnStateChange func(name string, from, to State)
	// IsFailure decides which errors count against the breaker. Context
	// cancellation never does.
	IsFailure func(error) bool
	Now       func() time.Time
}

func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.HalfOpenSuccesses <= 0 {
		cfg.HalfOpenSuccesses = 1
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = func(error) bool { return true }
	}

	return &CircuitBreaker{
		name:              cfg.Name,
		maxFailures:       cfg.MaxFailures,
		openTimeout:       cfg.OpenTimeout,
		halfOpenSuccesses: cfg.HalfOpenSuccesses,
		now:               cfg.Now,
		onStateChange:     cfg.OnStateChange,
		isFailure:         cfg.IsFailure,
		state:             StateClosed,
	}
}

func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Execute runs fn unless the circuit is open.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if !cb.allow() {
		return ErrCircuitOpen
	}

	err := fn(ctx)
	switch {
	case err == nil:
		cb.onSuccess()
	case ctx.Err() != nil:
	case cb.isFailure(err):
		cb.onFailure()
	}
	return err
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	var change func()
	allowed := true
	if cb.state == StateOpen {
		if cb.now().Sub(cb.lastFailTime) >= cb.openTimeout {
			change = cb.transitionLocked(StateHalfOpen)
		} else {
			allowed = false
		}
	}
	cb.mu.Unlock()

	if change != nil {
		change()
	}
	return allowed
}

func (cb *CircuitBreaker) onSuccess() {
	cb.mu.Lock()
	var change func()
	switch cb.state {
	case StateClosed:
		cb.failures = 0
	case StateHalfOpen:
		cb.successes++
		if cb.successes >= cb.halfOpenSuccesses {
			change = cb.transitionLocked(StateClosed)
		}
	}
	cb.mu.Unlock()

	if change != nil {
		change()
	}
}

func (cb *CircuitBreaker) onFailure() {
	cb.mu.Lock()
	var change func()
	cb.lastFailTime = cb.now()
	switch cb.state {
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.maxFailures {
			change = cb.transitionLocked(StateOpen)
		}
	case StateHalfOpen:
		change = cb.transitionLocked(StateOpen)
	}
	cb.mu.Unlock()

	if change != nil {
		change()
	}
}

// transitionLocked switches state and returns the notification to run once
// the lock is released.
func (cb *CircuitBreaker) transitionLocked(to State) func() {
	from := cb.state
	cb.state = to
	cb.failures = 0
	cb.successes = 0

	if cb.onStateChange == nil || from == to {
		return nil
	}
	return func() { cb.onStateChange(cb.name, from, to) }
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	change := cb.transitionLocked(StateClosed)
	cb.lastFailTime = time.Time{}
	cb.mu.Unlock()

	if change != nil {
		change()
	}
}

func (cb *CircuitBreaker) Stats() (state State, failures int, lastFail time.Time) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state, cb.failures, cb.lastFailTime
}
