package core

import (
	"sync"
	"time"
)

// BreakerState is one of the three states in spec.md §4.D's state
// machine diagram.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

// CircuitBreaker is process-wide, shared-mutable state for one upstream
// provider (spec.md §5: "the circuit breaker is the only long-lived
// mutable state... encapsulate it behind a single object"). All methods
// are safe for concurrent use by multiple requests.
type CircuitBreaker struct {
	mu                sync.Mutex
	state             BreakerState
	failures          int
	failureThreshold  int
	cooldown          time.Duration
	openedAt          time.Time
	halfOpenInFlight  bool
}

func NewCircuitBreaker(failureThreshold int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		state:            BreakerClosed,
		failureThreshold: failureThreshold,
		cooldown:         cooldown,
	}
}

// Allow reports whether a call may proceed, transitioning Open→Half-Open
// once the cooldown has elapsed. Exactly one caller is admitted as the
// Half-Open probe; concurrent callers arriving while a probe is already
// in flight are refused.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		return true
	case BreakerOpen:
		if time.Since(b.openedAt) < b.cooldown {
			return false
		}
		b.state = BreakerHalfOpen
		b.halfOpenInFlight = true
		return true
	case BreakerHalfOpen:
		if b.halfOpenInFlight {
			return false
		}
		b.halfOpenInFlight = true
		return true
	default:
		return false
	}
}

// RecordSuccess resets the failure counter and, from Half-Open, closes
// the breaker.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.halfOpenInFlight = false
	if b.state == BreakerHalfOpen {
		b.state = BreakerClosed
	}
}

// RecordFailure increments the failure counter and opens the breaker
// when the threshold is reached from Closed, or immediately reopens it
// (with a fresh cooldown) from Half-Open.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.halfOpenInFlight = false

	switch b.state {
	case BreakerClosed:
		b.failures++
		if b.failures >= b.failureThreshold {
			b.state = BreakerOpen
			b.openedAt = time.Now()
		}
	case BreakerHalfOpen:
		b.state = BreakerOpen
		b.openedAt = time.Now()
		b.failures = b.failureThreshold
	}
}

func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
