package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RequestLog is the immutable record Accountant persists after every
// successful attempt (spec.md §3, §6 "request_logs"). It is never
// mutated after construction; id and timestamp are assigned once, at
// creation time, by NewRequestLog.
type RequestLog struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Timestamp        time.Time `gorm:"not null;index"`
	ModelUsed        string    `gorm:"type:varchar(300);not null"`
	InputTokens      int       `gorm:"not null"`
	OutputTokens     int       `gorm:"not null"`
	EstimatedCostUSD CostAmount `gorm:"type:decimal(18,6);not null"`
	ProviderName     string    `gorm:"type:varchar(100);not null;index"`
	ResponseTimeMs   int64     `gorm:"not null"`
	WasFallback      bool      `gorm:"not null;default:false"`
}

func (RequestLog) TableName() string {
	return "request_logs"
}

// NewRequestLog builds a fresh RequestLog row: fresh UUID, current UTC
// timestamp, per spec.md §3's lifecycle rule ("timestamp = now()").
func NewRequestLog(model ModelId, inputTokens, outputTokens TokenCount, providerName string, responseTime time.Duration, wasFallback bool, cost CostAmount) RequestLog {
	return RequestLog{
		ID:               uuid.New(),
		Timestamp:        time.Now().UTC(),
		ModelUsed:        model.String(),
		InputTokens:      inputTokens.Int(),
		OutputTokens:     outputTokens.Int(),
		EstimatedCostUSD: cost,
		ProviderName:     providerName,
		ResponseTimeMs:   responseTime.Milliseconds(),
		WasFallback:      wasFallback,
	}
}

// Pricing is the read-only (from the core's perspective) per-model rate
// table (spec.md §3, §6 "model_pricing"). Seeded externally.
type Pricing struct {
	ID                     uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ModelName              string    `gorm:"type:varchar(300);not null;uniqueIndex"`
	ProviderName           string    `gorm:"type:varchar(100);not null;index"`
	InputCostPer1MTokens   CostAmount `gorm:"column:input_cost_per_1m_tokens;type:decimal(18,6);not null"`
	OutputCostPer1MTokens  CostAmount `gorm:"column:output_cost_per_1m_tokens;type:decimal(18,6);not null"`
	MaxContextTokens       int       `gorm:"not null"`
	UpdatedAt              time.Time `gorm:"not null"`
}

func (Pricing) TableName() string {
	return "model_pricing"
}

// Validate enforces the Pricing invariants from spec.md §3: both prices
// non-negative, max_context positive.
func (p Pricing) Validate() error {
	if p.InputCostPer1MTokens.Decimal().IsNegative() {
		return ValidationError{Field: "input_cost_per_1m_tokens", Message: "must be non-negative"}
	}
	if p.OutputCostPer1MTokens.Decimal().IsNegative() {
		return ValidationError{Field: "output_cost_per_1m_tokens", Message: "must be non-negative"}
	}
	if p.MaxContextTokens <= 0 {
		return ValidationError{Field: "max_context_tokens", Message: "must be positive"}
	}
	return nil
}

// Cost computes cost(input_tokens, output_tokens) = (input/1e6)*input_price
// + (output/1e6)*output_price, per spec.md §3, rounded half-to-even to
// 6 decimal places on return.
func (p Pricing) Cost(inputTokens, outputTokens TokenCount) CostAmount {
	million := decimal.NewFromInt(1_000_000)
	inputCost := decimal.NewFromInt(int64(inputTokens)).Div(million).Mul(p.InputCostPer1MTokens.Decimal())
	outputCost := decimal.NewFromInt(int64(outputTokens)).Div(million).Mul(p.OutputCostPer1MTokens.Decimal())
	return NewCostAmount(inputCost.Add(outputCost))
}

// Id returns the Pricing row's model as the value object the core
// operates on.
func (p Pricing) Id() ModelId {
	return ModelId(p.ModelName)
}
