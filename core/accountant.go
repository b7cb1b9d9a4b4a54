package core

import (
	"context"
	"time"

	"github.com/tributary-ai-services/llm-gateway/internal/logging"
	"github.com/tributary-ai-services/llm-gateway/models"
)

// Accountant computes cost and persists a RequestLog after a successful
// attempt (spec.md §4.F). Its failure policy is the one hard invariant
// worth calling out: a pricing-lookup or log-write failure must never
// turn a successful chat response into a client-visible error.
type Accountant struct {
	pricing PricingLookup
	sink    RequestLogSink
	logger  *logging.Logger
}

func NewAccountant(pricing PricingLookup, sink RequestLogSink, logger *logging.Logger) *Accountant {
	return &Accountant{pricing: pricing, sink: sink, logger: logger}
}

// Track looks up pricing, computes cost, persists a RequestLog, and
// returns the computed cost. Any internal error is logged and
// swallowed; the returned cost in that case is models.ZeroCost.
func (a *Accountant) Track(ctx context.Context, model models.ModelId, inputTokens, outputTokens models.TokenCount, providerName string, responseTime time.Duration, wasFallback bool) models.CostAmount {
	cost := models.ZeroCost

	pricing, found, err := a.pricing.Lookup(ctx, model)
	switch {
	case err != nil:
		a.logger.Errorf("pricing lookup failed for model %s: %v", model, err)
	case found:
		cost = pricing.Cost(inputTokens, outputTokens)
	default:
		// No Pricing row: spec.md §3 invariant — cost is Zero and the
		// log is still persisted.
	}

	log := models.NewRequestLog(model, inputTokens, outputTokens, providerName, responseTime, wasFallback, cost)
	if err := a.sink.Save(ctx, log); err != nil {
		a.logger.Errorf("failed to persist request log for model %s: %v", model, err)
		return models.ZeroCost
	}

	return cost
}
