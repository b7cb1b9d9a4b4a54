package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// ProviderStats and ModelStats are JSONB rollup maps, the same
// Value()/Scan() wrapper-type pattern the teacher uses for per-agent
// usage aggregation, re-pointed here at per-request-log aggregation
// (spec.md has no reporting surface of its own; GET /v1/usage/stats is
// a supplemented, read-only addition over data the core already writes).
type ProviderStats map[string]int64
type ModelStats map[string]int64

func (p ProviderStats) Value() (driver.Value, error) {
	return json.Marshal(p)
}

func (p *ProviderStats) Scan(value interface{}) error {
	if value == nil {
		*p = make(ProviderStats)
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return json.Unmarshal([]byte(value.(string)), p)
	}
	return json.Unmarshal(bytes, p)
}

func (m ModelStats) Value() (driver.Value, error) {
	return json.Marshal(m)
}

func (m *ModelStats) Scan(value interface{}) error {
	if value == nil {
		*m = make(ModelStats)
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return json.Unmarshal([]byte(value.(string)), m)
	}
	return json.Unmarshal(bytes, m)
}

// UsageSummary is the body of GET /v1/usage/stats: a rollup computed
// on demand from request_logs, never persisted itself.
type UsageSummary struct {
	TotalRequests     int64         `json:"total_requests"`
	TotalCostUSD      CostAmount    `json:"total_cost_usd"`
	TotalInputTokens  int64         `json:"total_input_tokens"`
	TotalOutputTokens int64         `json:"total_output_tokens"`
	FallbackRequests  int64         `json:"fallback_requests"`
	RequestsByProvider ProviderStats `json:"requests_by_provider"`
	CostByProviderUSD  map[string]CostAmount `json:"cost_by_provider_usd"`
	LastRequestAt      *time.Time  `json:"last_request_at,omitempty"`
}
