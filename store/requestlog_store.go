// Package store provides the two persistence-facing implementations the
// orchestration core depends on through narrow interfaces
// (core.RequestLogSink, core.PricingLookup): a gorm-backed RequestLog
// writer and a gorm-plus-Redis-cache Pricing reader.
package store

import (
	"context"

	"github.com/tributary-ai-services/llm-gateway/models"
	"gorm.io/gorm"
)

// RequestLogStore persists one RequestLog row per successful attempt.
// Grounded on services/impl/execution_service_impl.go's plain
// db.Create/db.Where gorm usage; the Accountant's invariant that write
// failures never surface to a client is enforced by the caller
// (core.Accountant.Track), not here — Save returns its error honestly.
type RequestLogStore struct {
	db *gorm.DB
}

func NewRequestLogStore(db *gorm.DB) *RequestLogStore {
	return &RequestLogStore{db: db}
}

func (s *RequestLogStore) Save(ctx context.Context, log models.RequestLog) error {
	return s.db.WithContext(ctx).Create(&log).Error
}

// Summarize aggregates every persisted RequestLog into the rollup served
// by GET /v1/usage/stats (SPEC_FULL.md §12.1).
func (s *RequestLogStore) Summarize(ctx context.Context) (models.UsageSummary, error) {
	var logs []models.RequestLog
	if err := s.db.WithContext(ctx).Order("timestamp DESC").Find(&logs).Error; err != nil {
		return models.UsageSummary{}, err
	}

	summary := models.UsageSummary{
		RequestsByProvider: models.ProviderStats{},
		CostByProviderUSD:  map[string]models.CostAmount{},
	}

	for _, l := range logs {
		summary.TotalRequests++
		summary.TotalCostUSD = summary.TotalCostUSD.Add(l.EstimatedCostUSD)
		summary.TotalInputTokens += int64(l.InputTokens)
		summary.TotalOutputTokens += int64(l.OutputTokens)
		if l.WasFallback {
			summary.FallbackRequests++
		}
		summary.RequestsByProvider[l.ProviderName]++
		summary.CostByProviderUSD[l.ProviderName] = summary.CostByProviderUSD[l.ProviderName].Add(l.EstimatedCostUSD)

		ts := l.Timestamp
		if summary.LastRequestAt == nil || ts.After(*summary.LastRequestAt) {
			summary.LastRequestAt = &ts
		}
	}

	return summary, nil
}
