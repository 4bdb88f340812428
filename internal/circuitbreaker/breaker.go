// Package circuitbreaker stops calls to the upstream data source after
// repeated failures and probes it again once a reset delay has passed.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/vault-risk-engine/internal/metrics"
)

// ErrOpen is returned without calling the guarded operation while the
// circuit is open
var ErrOpen = errors.New("circuit breaker open: upstream calls suspended")

// State of the breaker
type State int

// Circuit breaker states
const (
	StateClosed   State = iota // Normal operation
	StateOpen                  // Tripped, calls rejected
	StateHalfOpen              // Probing whether upstream recovered
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

// CircuitBreaker counts consecutive failures of the guarded operation
type CircuitBreaker struct {
	mu sync.Mutex

	state    State
	lastTrip time.Time

	// Consecutive failures while closed
	failures         int
	failureThreshold int

	// Consecutive successes while half-open
	successCount     int
	successThreshold int

	resetDelay time.Duration
	now        func() time.Time
	metrics    *metrics.Metrics

	onTripCallback func(lastErr error)
}

// New creates a closed breaker that trips after failureThreshold
// consecutive failures
func New(failureThreshold int) *CircuitBreaker {
	if failureThreshold < 1 {
		failureThreshold = 1
	}
	return &CircuitBreaker{
		state:            StateClosed,
		failureThreshold: failureThreshold,
		successThreshold: 1,
		resetDelay:       30 * time.Second,
		now:              time.Now,
	}
}

// WithResetDelay sets how long the circuit stays open before probing
func (cb *CircuitBreaker) WithResetDelay(delay time.Duration) *CircuitBreaker {
	cb.resetDelay = delay
	return cb
}

// WithSuccessThreshold sets the number of half-open successes needed to close the circuit
func (cb *CircuitBreaker) WithSuccessThreshold(threshold int) *CircuitBreaker {
	if threshold < 1 {
		threshold = 1
	}
	cb.successThreshold = threshold
	return cb
}

// WithTripCallback sets a function called in its own goroutine when the circuit trips
func (cb *CircuitBreaker) WithTripCallback(callback func(lastErr error)) *CircuitBreaker {
	cb.onTripCallback = callback
	return cb
}

func (cb *CircuitBreaker) WithMetrics(m *metrics.Metrics) *CircuitBreaker {
	cb.metrics = m
	m.CircuitState(int(cb.state))
	return cb
}

func (cb *CircuitBreaker) WithClock(now func() time.Time) *CircuitBreaker {
	cb.now = now
	return cb
}

// Execute runs fn unless the circuit is open and records its outcome.
// fn is not called at all while open; the caller gets ErrOpen instead,
// and that result is not counted as a failure.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.Allow(); err != nil {
		return err
	}
	err := fn()
	if err != nil {
		cb.RecordFailure(err)
	} else {
		cb.RecordSuccess()
	}
	return err
}

// Allow reports ErrOpen while the circuit is open. Once the reset delay has
// elapsed the circuit moves to half-open and calls are let through.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != StateOpen {
		return nil
	}
	if cb.now().Sub(cb.lastTrip) < cb.resetDelay {
		return ErrOpen
	}
	cb.setState(StateHalfOpen)
	cb.successCount = 0
	logrus.Info("Circuit breaker half-open: probing upstream")
	return nil
}

// RecordSuccess resets the failure count and may close a half-open circuit
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	if cb.state == StateHalfOpen {
		cb.successCount++
		if cb.successCount >= cb.successThreshold {
			cb.setState(StateClosed)
			cb.successCount = 0
			logrus.Info("Circuit breaker closed: upstream recovered")
		}
	}
}

// RecordFailure counts a failure. A half-open circuit trips immediately.
func (cb *CircuitBreaker) RecordFailure(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateHalfOpen:
		cb.trip(err)
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.failureThreshold {
			cb.trip(err)
		}
	}
}

// GetState is safe for concurrent use
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset forcibly resets the circuit breaker to closed state
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.setState(StateClosed)
	cb.failures = 0
	cb.successCount = 0
	logrus.Info("Circuit breaker manually reset to closed state")
}

// trip opens the circuit; cb.mu must be held
func (cb *CircuitBreaker) trip(err error) {
	cb.setState(StateOpen)
	cb.lastTrip = cb.now()
	cb.failures = 0
	logrus.Warnf("Circuit breaker tripped: %v", err)

	if cb.onTripCallback != nil {
		go cb.onTripCallback(err)
	}
}

func (cb *CircuitBreaker) setState(s State) {
	cb.state = s
	cb.metrics.CircuitState(int(s))
}
