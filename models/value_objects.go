package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// ModelId is an opaque "<provider>/<model>" identifier. Equality is by
// full string; Provider() is derived for display only and never used to
// compare two ids.
type ModelId string

// NewModelId validates and returns a ModelId, or an error if blank.
func NewModelId(raw string) (ModelId, error) {
	if strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("model id must not be empty")
	}
	return ModelId(raw), nil
}

func (m ModelId) String() string {
	return string(m)
}

func (m ModelId) IsEmpty() bool {
	return strings.TrimSpace(string(m)) == ""
}

// Provider returns the component of the id before the first "/", for
// display and log-column purposes only.
func (m ModelId) Provider() string {
	s := string(m)
	if idx := strings.Index(s, "/"); idx >= 0 {
		return s[:idx]
	}
	return s
}

// TokenCount is a non-negative integer token estimate.
type TokenCount int

// NewTokenCount constructs a TokenCount from an explicit count.
func NewTokenCount(n int) TokenCount {
	if n < 0 {
		return 0
	}
	return TokenCount(n)
}

// EstimateTokens is the crude routing-only heuristic: total character
// count across all message contents, integer-divided by 4. It is never
// used for billing, only for routing (see core.Router). Non-Latin
// scripts with multi-byte runes per "word" will under-count relative to
// a real tokenizer.
func EstimateTokens(messages []ChatMessage) TokenCount {
	total := 0
	for _, m := range messages {
		total += utf8.RuneCountInString(m.Content)
	}
	return TokenCount(total / 4)
}

func (t TokenCount) Int() int {
	return int(t)
}

func (t TokenCount) Exceeds(limit int) bool {
	return int(t) > limit
}

// CostAmount is a non-negative USD amount carried at 6-decimal precision.
// Values are rounded half-to-even on construction so that repeated
// additions never drift from the precision the persisted column
// (decimal(18,6)) actually stores.
type CostAmount struct {
	v decimal.Decimal
}

// ZeroCost is the additive identity.
var ZeroCost = CostAmount{v: decimal.Zero}

// NewCostAmount rounds d to 6 decimal places, half-to-even, and clamps
// negative inputs to zero (cost is never negative in this system).
func NewCostAmount(d decimal.Decimal) CostAmount {
	if d.IsNegative() {
		d = decimal.Zero
	}
	return CostAmount{v: d.RoundBank(6)}
}

// NewCostAmountFromFloat is a convenience constructor for literals and
// test fixtures.
func NewCostAmountFromFloat(f float64) CostAmount {
	return NewCostAmount(decimal.NewFromFloat(f))
}

func (c CostAmount) Add(other CostAmount) CostAmount {
	return NewCostAmount(c.v.Add(other.v))
}

func (c CostAmount) IsZero() bool {
	return c.v.IsZero()
}

func (c CostAmount) Decimal() decimal.Decimal {
	return c.v
}

// Float64 converts the amount to a float64. JSON encoding does not go
// through it (MarshalJSON writes the 6-decimal value directly); the
// authoritative representation remains the decimal.
func (c CostAmount) Float64() float64 {
	f, _ := c.v.Float64()
	return f
}

func (c CostAmount) String() string {
	return c.v.StringFixed(6)
}

func (c CostAmount) MarshalJSON() ([]byte, error) {
	return []byte(c.v.StringFixed(6)), nil
}

func (c *CostAmount) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return err
	}
	*c = NewCostAmount(d)
	return nil
}

// Value/Scan let CostAmount sit directly in a decimal(18,6) gorm column,
// the same Value()/Scan() wrapper pattern the teacher uses for its JSONB
// typed columns (models/execution.go's ExecutionStep).
func (c CostAmount) Value() (driver.Value, error) {
	return c.v.Value()
}

func (c *CostAmount) Scan(value interface{}) error {
	if value == nil {
		c.v = decimal.Zero
		return nil
	}
	var d decimal.Decimal
	if err := d.Scan(value); err != nil {
		return err
	}
	*c = NewCostAmount(d)
	return nil
}
