package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tributary-ai-services/llm-gateway/internal/logging"
	"github.com/tributary-ai-services/llm-gateway/models"
)

type fakePricingLookup struct {
	pricing models.Pricing
	found   bool
	err     error
}

func (f fakePricingLookup) Lookup(ctx context.Context, model models.ModelId) (models.Pricing, bool, error) {
	return f.pricing, f.found, f.err
}

type fakeRequestLogSink struct {
	saved []models.RequestLog
	err   error
}

func (f *fakeRequestLogSink) Save(ctx context.Context, log models.RequestLog) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, log)
	return nil
}

func testLogger() *logging.Logger {
	return logging.New("stdout")
}

func TestAccountantComputesCostAndPersists(t *testing.T) {
	pricing := models.Pricing{
		ModelName:             "a/x",
		ProviderName:          "a",
		InputCostPer1MTokens:  models.NewCostAmountFromFloat(3.0),
		OutputCostPer1MTokens: models.NewCostAmountFromFloat(15.0),
		MaxContextTokens:      100000,
	}
	sink := &fakeRequestLogSink{}
	acc := NewAccountant(fakePricingLookup{pricing: pricing, found: true}, sink, testLogger())

	cost := acc.Track(context.Background(), "a/x", models.NewTokenCount(1_000_000), models.NewTokenCount(1_000_000), "a", 250*time.Millisecond, false)

	assert.False(t, cost.IsZero())
	assert.Equal(t, "18.000000", cost.String())
	assert.Len(t, sink.saved, 1)
	assert.Equal(t, "a/x", sink.saved[0].ModelUsed)
}

func TestAccountantZeroCostWhenPricingNotFound(t *testing.T) {
	sink := &fakeRequestLogSink{}
	acc := NewAccountant(fakePricingLookup{found: false}, sink, testLogger())

	cost := acc.Track(context.Background(), "a/unknown", models.NewTokenCount(100), models.NewTokenCount(100), "a", time.Second, false)

	assert.True(t, cost.IsZero())
	assert.Len(t, sink.saved, 1, "the log is still persisted even without a pricing row")
}

func TestAccountantSwallowsPricingLookupFailure(t *testing.T) {
	sink := &fakeRequestLogSink{}
	acc := NewAccountant(fakePricingLookup{err: errors.New("db down")}, sink, testLogger())

	cost := acc.Track(context.Background(), "a/x", models.NewTokenCount(100), models.NewTokenCount(100), "a", time.Second, false)

	assert.True(t, cost.IsZero())
	assert.Len(t, sink.saved, 1, "the request log is still saved even when pricing lookup fails")
}

func TestAccountantSwallowsSaveFailure(t *testing.T) {
	pricing := models.Pricing{
		ModelName:             "a/x",
		InputCostPer1MTokens:  models.NewCostAmountFromFloat(3.0),
		OutputCostPer1MTokens: models.NewCostAmountFromFloat(15.0),
	}
	sink := &fakeRequestLogSink{err: errors.New("disk full")}
	acc := NewAccountant(fakePricingLookup{pricing: pricing, found: true}, sink, testLogger())

	cost := acc.Track(context.Background(), "a/x", models.NewTokenCount(1000), models.NewTokenCount(1000), "a", time.Second, false)

	assert.True(t, cost.IsZero(), "a save failure must still leave the caller with a usable (zero) cost, never a panic or error return")
}
