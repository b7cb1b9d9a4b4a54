// Package core implements the request-orchestration pipeline: Router,
// AttemptLoop, ResiliencePolicy, FallbackChain, Accountant and
// StreamingAssembler (spec.md §4). It depends on the outside world only
// through the small interfaces declared here and on providers.Adapter —
// composition is explicit in each component's constructor, there is no
// runtime auto-discovery (spec.md §9).
package core

import (
	"context"

	"github.com/tributary-ai-services/llm-gateway/models"
)

// RequestLogSink is the persistence collaborator the Accountant writes
// to. Implementations live in package store; the core never imports
// store directly.
type RequestLogSink interface {
	Save(ctx context.Context, log models.RequestLog) error
}

// PricingLookup resolves a model to its Pricing row. Implementations
// may cache results with a TTL (spec.md §5); the core treats the
// lookup as read-mostly and does not invalidate it.
type PricingLookup interface {
	Lookup(ctx context.Context, model models.ModelId) (models.Pricing, bool, error)
}
