package core

import (
	"context"
	"math/rand"
	"time"

	"github.com/tributary-ai-services/llm-gateway/gatewayerr"
)

// ResiliencePolicy wraps a single provider invocation with retry and a
// circuit breaker, composed retry-outside-of-circuit-breaker per
// spec.md §4.D: a retry that trips the breaker sees an open-circuit
// error on its next iteration rather than punching through. One
// ResiliencePolicy is constructed per upstream provider and its breaker
// is shared across every concurrent request against that provider —
// grounded on other_examples' ResilientClient/CircuitBreaker pair,
// since the teacher itself has no circuit breaker at all.
type ResiliencePolicy struct {
	breaker      *CircuitBreaker
	maxRetries   int
	baseDelay    time.Duration
	jitterWindow time.Duration
	providerName string
}

func NewResiliencePolicy(providerName string, maxRetries int, failureThreshold int, cooldown time.Duration) *ResiliencePolicy {
	return &ResiliencePolicy{
		breaker:      NewCircuitBreaker(failureThreshold, cooldown),
		maxRetries:   maxRetries,
		baseDelay:    500 * time.Millisecond,
		jitterWindow: 250 * time.Millisecond,
		providerName: providerName,
	}
}

// Execute runs fn, retrying the same model up to maxRetries additional
// times on a transient failure, honoring ctx cancellation between
// attempts. It never switches models — that is the AttemptLoop's
// concern, one layer up.
func Execute[T any](p *ResiliencePolicy, ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return zero, gatewayerr.ClientCancel()
		}

		if !p.breaker.Allow() {
			// An open breaker fails immediately, with no retry — spec.md
			// §4.D: "Open: immediately fail any call with CircuitOpen."
			// Sleeping through a backoff window here would just burn
			// maxRetries delays waiting for a cooldown that Allow()
			// already knows hasn't elapsed.
			return zero, gatewayerr.CircuitOpen(p.providerName)
		}

		result, err := fn(ctx)
		if err == nil {
			p.breaker.RecordSuccess()
			return result, nil
		}
		lastErr = err
		if !gatewayerr.IsTransient(err) {
			// Non-transient failures are not retried, but they
			// still count as a failed call against the breaker.
			p.breaker.RecordFailure()
			return zero, err
		}
		p.breaker.RecordFailure()

		if attempt == p.maxRetries {
			break
		}

		delay := p.backoff(attempt + 1)
		select {
		case <-ctx.Done():
			return zero, gatewayerr.ClientCancel()
		case <-time.After(delay):
		}
	}

	return zero, lastErr
}

// backoff computes attempt k's sleep: base*2^(k-1) plus uniform jitter
// in [0, 0.25s] (spec.md §4.D).
func (p *ResiliencePolicy) backoff(attempt int) time.Duration {
	delay := p.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	jitter := time.Duration(rand.Int63n(int64(p.jitterWindow) + 1))
	return delay + jitter
}

// BreakerState exposes the underlying breaker's state for health/metrics
// reporting.
func (p *ResiliencePolicy) BreakerState() BreakerState {
	return p.breaker.State()
}

// NotifyStreamResult lets a caller that manages its own read loop after a
// successfully-opened call — StreamingAssembler, which cannot express
// "read until the stream ends" as a single fn passed to Execute — report
// the eventual outcome back to the breaker.
func (p *ResiliencePolicy) NotifyStreamResult(success bool) {
	if success {
		p.breaker.RecordSuccess()
	} else {
		p.breaker.RecordFailure()
	}
}
