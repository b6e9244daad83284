package remote

import (
	"sync"
	"time"
)

// breakerState is the circuit state: closed (normal), open (failing fast),
// half-open (probing after cooldown)
type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

// CircuitBreaker guards the research backend. When the backend is down,
// failing fast here keeps a bulk run from burning every item's full retry
// budget against a dead endpoint.
type CircuitBreaker struct {
	mu sync.Mutex

	state        breakerState
	failures     int
	probeSuccess int
	openedAt     time.Time

	failureThreshold int           // Consecutive failures before opening
	successThreshold int           // Probe successes to close from half-open
	cooldown         time.Duration // Open duration before probing
}

// NewCircuitBreaker creates a breaker that opens after failureThreshold
// consecutive failures and probes again after the cooldown elapses
func NewCircuitBreaker(failureThreshold int, cooldown time.Duration) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if cooldown <= 0 {
		cooldown = 60 * time.Second
	}

	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		successThreshold: 2,
		cooldown:         cooldown,
	}
}

// Allow reports whether a request may be attempted right now
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == breakerOpen {
		if time.Since(cb.openedAt) < cb.cooldown {
			return false
		}
		// Cooldown elapsed, let a probe through
		cb.state = breakerHalfOpen
		cb.probeSuccess = 0
	}

	return true
}

// RecordSuccess records a successful request
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case breakerClosed:
		cb.failures = 0
	case breakerHalfOpen:
		cb.probeSuccess++
		if cb.probeSuccess >= cb.successThreshold {
			cb.state = breakerClosed
			cb.failures = 0
			cb.probeSuccess = 0
		}
	}
}

// RecordFailure records a failed request
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++

	switch cb.state {
	case breakerClosed:
		if cb.failures >= cb.failureThreshold {
			cb.state = breakerOpen
			cb.openedAt = time.Now()
		}
	case breakerHalfOpen:
		// A failed probe re-opens immediately
		cb.state = breakerOpen
		cb.openedAt = time.Now()
		cb.probeSuccess = 0
	}
}

// State returns the current state name for logging and health reporting
func (cb *CircuitBreaker) State() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case breakerOpen:
		return "open"
	case breakerHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}
