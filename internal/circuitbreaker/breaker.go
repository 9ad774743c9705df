// Package circuitbreaker stops calling a failing upstream for a while so that
// requests go straight to the synthetic fallback instead of waiting on timeouts.
package circuitbreaker

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// State represents the current state of the circuit breaker
type State int

// Circuit breaker states
const (
	StateClosed   State = iota // Normal operation
	StateOpen                  // Tripped, upstream calls are skipped
	StateHalfOpen              // Probing whether upstream has recovered
)

// String returns the lower-case state name used in logs and the status endpoint
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

// MarshalText lets the state render as its name in JSON
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Options configures a CircuitBreaker
type Options struct {
	// Consecutive failures that trip the breaker
	FailureThreshold int

	// Successful probes in half-open state required to close again
	SuccessThreshold int

	// Time the breaker stays open before probing
	CooldownPeriod time.Duration

	// Called (in its own goroutine) whenever the breaker trips
	OnTrip func(failures int, lastErr error)
}

// CircuitBreaker counts consecutive upstream failures and opens once they reach
// the threshold. It is safe for concurrent use.
type CircuitBreaker struct {
	opts Options

	mu           sync.Mutex
	state        State
	failures     int
	successCount int
	lastTrip     time.Time
	lastErr      error

	now func() time.Time
}

// New creates a closed CircuitBreaker
func New(opts Options) *CircuitBreaker {
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = 5
	}
	if opts.SuccessThreshold <= 0 {
		opts.SuccessThreshold = 1
	}
	if opts.CooldownPeriod <= 0 {
		opts.CooldownPeriod = time.Minute
	}
	return &CircuitBreaker{opts: opts, state: StateClosed, now: time.Now}
}

// Allow reports whether an upstream call may be attempted. An open breaker
// moves to half-open once the cooldown has elapsed.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if cb.now().Sub(cb.lastTrip) < cb.opts.CooldownPeriod {
			return false
		}
		cb.state = StateHalfOpen
		cb.successCount = 0
		logrus.Info("Circuit breaker half-open: probing upstream")
	}
	return true
}

// RecordSuccess resets the failure count and may close a half-open breaker
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	if cb.state == StateHalfOpen {
		cb.successCount++
		if cb.successCount >= cb.opts.SuccessThreshold {
			cb.state = StateClosed
			cb.successCount = 0
			logrus.Info("Circuit breaker closed: upstream has recovered")
		}
	}
}

// RecordFailure counts a failure; a failed half-open probe reopens immediately
func (cb *CircuitBreaker) RecordFailure(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lastErr = err
	cb.failures++

	if cb.state == StateHalfOpen || cb.failures >= cb.opts.FailureThreshold {
		cb.trip()
	}
}

// trip opens the breaker; caller holds the lock
func (cb *CircuitBreaker) trip() {
	if cb.state != StateOpen {
		logrus.WithFields(logrus.Fields{
			"failures": cb.failures,
			"error":    cb.lastErr,
		}).Warn("Circuit breaker tripped")
	}
	cb.state = StateOpen
	cb.lastTrip = cb.now()
	cb.successCount = 0

	if cb.opts.OnTrip != nil {
		go cb.opts.OnTrip(cb.failures, cb.lastErr)
	}
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Failures returns the current consecutive failure count
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// Reset forcibly resets the circuit breaker to closed state
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failures = 0
	cb.successCount = 0
	logrus.Info("Circuit breaker manually reset to closed state")
}
