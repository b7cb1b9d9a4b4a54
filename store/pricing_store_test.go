package store

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tributary-ai-services/llm-gateway/config"
	"github.com/tributary-ai-services/llm-gateway/models"
)

func testPricing(model string) models.Pricing {
	return models.Pricing{
		ModelName:             model,
		ProviderName:          "a",
		InputCostPer1MTokens:  models.NewCostAmountFromFloat(1.5),
		OutputCostPer1MTokens: models.NewCostAmountFromFloat(4.5),
		MaxContextTokens:      100000,
	}
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "llm_gateway:pricing:a/x", cacheKey("a/x"))
}

func TestPricingStoreMemCacheRoundTrip(t *testing.T) {
	s := &PricingStore{
		cfg:      config.RedisConfig{PricingCacheTTL: 1},
		memCache: make(map[string]memCacheEntry),
	}

	_, ok := s.getFromMemCache("k")
	assert.False(t, ok)

	s.setMemCache("k", testPricing("a/x"))
	got, ok := s.getFromMemCache("k")
	require.True(t, ok)
	assert.Equal(t, "a/x", got.ModelName)
}

func TestPricingStoreMemCacheExpires(t *testing.T) {
	s := &PricingStore{
		cfg:      config.RedisConfig{PricingCacheTTL: 0}, // 0 -> default applied inside setMemCache
		memCache: make(map[string]memCacheEntry),
	}
	// Insert an already-expired entry directly to avoid sleeping past the
	// default 300s TTL.
	s.memCache["k"] = memCacheEntry{pricing: testPricing("a/x"), expiresAt: time.Now().Add(-time.Second)}

	_, ok := s.getFromMemCache("k")
	assert.False(t, ok, "an expired entry must not be returned")

	s.mu.RLock()
	_, stillPresent := s.memCache["k"]
	s.mu.RUnlock()
	assert.False(t, stillPresent, "getFromMemCache evicts expired entries")
}

func TestPricingStoreRedisCacheHitSkipsDB(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	host, portStr, err := net.SplitHostPort(mr.Addr())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	s := NewPricingStore(nil, config.RedisConfig{
		EnablePricingCache: true,
		Host:               host,
		Port:               port,
		PricingCacheTTL:    60,
	})
	require.True(t, s.useRedis, "store should have connected to the miniredis instance")

	pricing := testPricing("a/x")
	s.store(context.Background(), cacheKey("a/x"), pricing)

	got, found, err := s.Lookup(context.Background(), "a/x")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "a/x", got.ModelName)
}

func TestPricingStoreDisabledCacheSkipsCacheLayer(t *testing.T) {
	s := NewPricingStore(nil, config.RedisConfig{EnablePricingCache: false})
	assert.False(t, s.useRedis)
}
