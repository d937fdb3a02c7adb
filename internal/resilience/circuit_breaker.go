// Package resilience provides the failure-isolation primitives shared by
// planning and execution: a per-dependency circuit breaker and a
// configurable retry policy with backoff.
package resilience

import (
	"fmt"
	"sync"
	"time"
)

// CircuitState represents the current state of a circuit.
type CircuitState int

const (
	// StateClosed means normal operation, calls are allowed.
	StateClosed CircuitState = iota

	// StateOpen means the dependency is failing and calls are rejected
	// until the cool-down elapses.
	StateOpen

	// StateHalfOpen means the breaker is probing whether the dependency
	// has recovered.
	StateHalfOpen
)

// String returns a human-readable representation of the circuit state.
func (s CircuitState) String() string {
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

// CircuitBreakerConfig holds configuration for circuit breaker behavior.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before the
	// circuit opens. Default: 5.
	FailureThreshold int

	// CoolDown is how long an open circuit rejects calls before
	// transitioning to half-open. Default: 30 seconds.
	CoolDown time.Duration

	// HalfOpenMaxCalls is the number of trial calls allowed in half-open
	// state. Any failure reopens the circuit. Default: 1.
	HalfOpenMaxCalls int
}

// DefaultCircuitBreakerConfig returns a configuration with sensible defaults.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		CoolDown:         30 * time.Second,
		HalfOpenMaxCalls: 1,
	}
}

// circuit tracks breaker state for one logical external dependency.
type circuit struct {
	dependency    string
	state         CircuitState
	failures      int
	openedAt      time.Time
	halfOpenCalls int
	lastFailure   time.Time
}

// CircuitBreaker tracks one circuit per logical external dependency
// (an LLM provider, a tool backend). A circuit is shared by all
// concurrent tasks calling that dependency, so a dependency that starts
// failing under one task is rejected for every task until it recovers.
//
// State transitions:
//   - Closed -> Open: after FailureThreshold consecutive failures
//   - Open -> HalfOpen: after CoolDown elapses
//   - HalfOpen -> Closed: trial call succeeds
//   - HalfOpen -> Open: trial call fails
//
// All methods are safe for concurrent use.
type CircuitBreaker struct {
	config   CircuitBreakerConfig
	mu       sync.RWMutex
	circuits map[string]*circuit
}

// NewCircuitBreaker creates a circuit breaker with the given configuration.
// Zero-valued config fields fall back to defaults.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	def := DefaultCircuitBreakerConfig()
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = def.FailureThreshold
	}
	if config.CoolDown <= 0 {
		config.CoolDown = def.CoolDown
	}
	if config.HalfOpenMaxCalls <= 0 {
		config.HalfOpenMaxCalls = def.HalfOpenMaxCalls
	}
	return &CircuitBreaker{
		config:   config,
		circuits: make(map[string]*circuit),
	}
}

// Allow checks whether a call to the dependency may proceed.
//
// Returns nil if the call should go ahead, or a *CircuitOpenError if the
// circuit is open. An open circuit whose cool-down has elapsed
// transitions to half-open and admits the caller as the trial call.
func (cb *CircuitBreaker) Allow(dependency string) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	c := cb.getOrCreate(dependency)

	switch c.state {
	case StateClosed:
		return nil

	case StateOpen:
		if time.Since(c.openedAt) >= cb.config.CoolDown {
			c.state = StateHalfOpen
			c.halfOpenCalls = 1
			return nil
		}
		return &CircuitOpenError{
			Dependency: dependency,
			OpenedAt:   c.openedAt,
			RetryAfter: c.openedAt.Add(cb.config.CoolDown),
		}

	case StateHalfOpen:
		if c.halfOpenCalls < cb.config.HalfOpenMaxCalls {
			c.halfOpenCalls++
			return nil
		}
		return &CircuitOpenError{
			Dependency: dependency,
			OpenedAt:   c.openedAt,
			RetryAfter: c.openedAt.Add(cb.config.CoolDown),
		}

	default:
		return nil
	}
}

// RecordSuccess records a successful call to the dependency.
// In closed state it resets the failure counter; in half-open state it
// closes the circuit.
func (cb *CircuitBreaker) RecordSuccess(dependency string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	c := cb.getOrCreate(dependency)

	switch c.state {
	case StateClosed:
		c.failures = 0
	case StateHalfOpen, StateOpen:
		c.state = StateClosed
		c.failures = 0
		c.halfOpenCalls = 0
	}
}

// RecordFailure records a failed call to the dependency.
// Reaching the failure threshold opens the circuit; a failure during a
// half-open trial reopens it immediately.
func (cb *CircuitBreaker) RecordFailure(dependency string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	c := cb.getOrCreate(dependency)
	c.lastFailure = time.Now()

	switch c.state {
	case StateClosed:
		c.failures++
		if c.failures >= cb.config.FailureThreshold {
			c.state = StateOpen
			c.openedAt = time.Now()
		}
	case StateHalfOpen:
		c.state = StateOpen
		c.openedAt = time.Now()
		c.failures = cb.config.FailureThreshold
		c.halfOpenCalls = 0
	case StateOpen:
		// Counter already at threshold, nothing to increment.
	}
}

// State returns the current state of the circuit for the dependency.
// A dependency with no recorded calls is closed.
func (cb *CircuitBreaker) State(dependency string) CircuitState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	c, ok := cb.circuits[dependency]
	if !ok {
		return StateClosed
	}
	// Report half-open once the cool-down has elapsed; the actual
	// transition happens in Allow.
	if c.state == StateOpen && time.Since(c.openedAt) >= cb.config.CoolDown {
		return StateHalfOpen
	}
	return c.state
}

// Reset returns the circuit for the dependency to closed state.
func (cb *CircuitBreaker) Reset(dependency string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if c, ok := cb.circuits[dependency]; ok {
		c.state = StateClosed
		c.failures = 0
		c.halfOpenCalls = 0
	}
}

// Stats returns a snapshot of all tracked circuits, for display and
// health reporting.
func (cb *CircuitBreaker) Stats() CircuitBreakerStats {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	stats := CircuitBreakerStats{
		Dependencies: make(map[string]CircuitStats, len(cb.circuits)),
	}
	for dep, c := range cb.circuits {
		state := c.state
		if state == StateOpen && time.Since(c.openedAt) >= cb.config.CoolDown {
			state = StateHalfOpen
		}
		switch state {
		case StateClosed:
			stats.Closed++
		case StateOpen:
			stats.Open++
		case StateHalfOpen:
			stats.HalfOpen++
		}
		stats.Dependencies[dep] = CircuitStats{
			State:       state,
			Failures:    c.failures,
			OpenedAt:    c.openedAt,
			LastFailure: c.lastFailure,
		}
	}
	return stats
}

// getOrCreate returns the circuit for the dependency, creating it if
// needed. Must be called with mu held.
func (cb *CircuitBreaker) getOrCreate(dependency string) *circuit {
	c, ok := cb.circuits[dependency]
	if !ok {
		c = &circuit{dependency: dependency, state: StateClosed}
		cb.circuits[dependency] = c
	}
	return c
}

// CircuitBreakerStats aggregates the state of all tracked circuits.
type CircuitBreakerStats struct {
	Closed       int
	Open         int
	HalfOpen     int
	Dependencies map[string]CircuitStats
}

// CircuitStats describes a single dependency circuit.
type CircuitStats struct {
	State       CircuitState
	Failures    int
	OpenedAt    time.Time
	LastFailure time.Time
}

// CircuitOpenError is returned when a circuit is open and the call was
// rejected without invoking the dependency.
type CircuitOpenError struct {
	Dependency string
	OpenedAt   time.Time
	RetryAfter time.Time
}

// Error implements the error interface.
func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit open for dependency %s (opened at %s, retry after %s)",
		e.Dependency, e.OpenedAt.Format(time.RFC3339), e.RetryAfter.Format(time.RFC3339))
}
