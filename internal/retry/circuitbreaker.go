package retry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	// ErrCircuitOpen is returned when the circuit breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// CircuitBreakerState is one of Closed, Open, HalfOpen.
type CircuitBreakerState int

const (
	StateClosed CircuitBreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitBreakerState) String() string {
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

// CircuitBreakerConfig configures a CircuitBreaker.
type CircuitBreakerConfig struct {
	FailureThreshold int           // Number of failures before opening circuit
	SuccessThreshold int           // Number of successes in half-open to close circuit
	Timeout          time.Duration // Time to wait before attempting half-open
	ResetTimeout     time.Duration // Time to wait before resetting failure count
}

// DefaultCircuitBreakerConfig returns the breaker policy wrapping each
// adapter: five failures trips it, two successes in half-open closes it.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
		ResetTimeout:     60 * time.Second,
	}
}

// CircuitBreaker implements the closed/open/half-open circuit breaker
// pattern around a single named dependency.
type CircuitBreaker struct {
	name      string
	config    CircuitBreakerConfig
	mu        sync.Mutex
	state     CircuitBreakerState
	failures  int
	successes int
	lastFail  time.Time
	lastReset time.Time
}

// NewCircuitBreaker creates a breaker for the named dependency (used only in
// log fields, e.g. "github", "jira", "slack").
func NewCircuitBreaker(name string, config CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{name: name, config: config, lastReset: time.Now()}
}

// State returns the breaker's current state.
func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Call runs fn through the breaker: refused immediately with ErrCircuitOpen
// while open, otherwise executed and the result folded into the breaker's
// state.
func (cb *CircuitBreaker) Call(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.beforeCall(); err != nil {
		return err
	}
	err := fn(ctx)
	cb.afterCall(err)
	return err
}

func (cb *CircuitBreaker) beforeCall() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()
	if now.Sub(cb.lastReset) > cb.config.ResetTimeout {
		cb.failures = 0
		cb.lastReset = now
	}

	switch cb.state {
	case StateClosed:
		return nil
	case StateOpen:
		if now.Sub(cb.lastFail) > cb.config.Timeout {
			cb.transition(StateHalfOpen)
			cb.successes = 0
			return nil
		}
		return ErrCircuitOpen
	case StateHalfOpen:
		return nil
	default:
		return ErrCircuitOpen
	}
}

func (cb *CircuitBreaker) afterCall(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.failures++
		cb.lastFail = time.Now()

		switch cb.state {
		case StateClosed:
			if cb.failures >= cb.config.FailureThreshold {
				cb.transition(StateOpen)
			}
		case StateHalfOpen:
			cb.transition(StateOpen)
			cb.successes = 0
		}
		return
	}

	cb.failures = 0
	switch cb.state {
	case StateClosed:
		cb.lastReset = time.Now()
	case StateHalfOpen:
		cb.successes++
		if cb.successes >= cb.config.SuccessThreshold {
			cb.transition(StateClosed)
			cb.successes = 0
			cb.lastReset = time.Now()
		}
	}
}

// transition must be called with cb.mu held.
func (cb *CircuitBreaker) transition(to CircuitBreakerState) {
	from := cb.state
	cb.state = to
	if from != to {
		log.Warn().Str("breaker", cb.name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
	}
}

// Reset forces the breaker back to closed, used by the admin surface to
// manually clear a trip.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transition(StateClosed)
	cb.failures = 0
	cb.successes = 0
	cb.lastReset = time.Now()
}

// Stats is a snapshot of a CircuitBreaker's counters, returned by GetStats
// for the admin surface and for tests.
type Stats struct {
	State     CircuitBreakerState
	Failures  int
	Successes int
	LastFail  time.Time
}

// GetStats returns a snapshot of the breaker's current counters.
func (cb *CircuitBreaker) GetStats() Stats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return Stats{State: cb.state, Failures: cb.failures, Successes: cb.successes, LastFail: cb.lastFail}
}
