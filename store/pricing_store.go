package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tributary-ai-services/llm-gateway/config"
	"github.com/tributary-ai-services/llm-gateway/models"
	"gorm.io/gorm"
)

const pricingCacheKeyPrefix = "llm_gateway:pricing"

// PricingStore implements core.PricingLookup: a gorm read of the
// model_pricing table, fronted by an optional Redis TTL cache with a
// graceful in-memory fallback when Redis is unreachable — the same
// "try Redis, degrade to a mutex-guarded map, never error" shape as
// services/impl/cache_service_impl.go's cacheServiceImpl.
type PricingStore struct {
	db  *gorm.DB
	cfg config.RedisConfig

	mu       sync.RWMutex
	memCache map[string]memCacheEntry

	redis    *redis.Client
	useRedis bool
}

type memCacheEntry struct {
	pricing   models.Pricing
	expiresAt time.Time
}

func NewPricingStore(db *gorm.DB, cfg config.RedisConfig) *PricingStore {
	s := &PricingStore{
		db:       db,
		cfg:      cfg,
		memCache: make(map[string]memCacheEntry),
	}

	if cfg.EnablePricingCache && cfg.Host != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Password: cfg.Password,
			DB:       cfg.DB,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err == nil {
			s.redis = client
			s.useRedis = true
		}
		// Ping failure: fall back to the in-memory cache, no error raised.
	}

	return s
}

// Lookup returns (pricing, true, nil) on a hit, (zero, false, nil) when
// no Pricing row exists for model, and (zero, false, err) only for an
// actual lookup failure. Accountant treats all three differently per
// spec.md §4.F.
func (s *PricingStore) Lookup(ctx context.Context, model models.ModelId) (models.Pricing, bool, error) {
	if !s.cfg.EnablePricingCache {
		return s.lookupDB(ctx, model)
	}

	key := cacheKey(model)

	if s.useRedis && s.redis != nil {
		if data, err := s.redis.Get(ctx, key).Bytes(); err == nil {
			var pricing models.Pricing
			if jsonErr := json.Unmarshal(data, &pricing); jsonErr == nil {
				return pricing, true, nil
			}
			s.redis.Del(ctx, key)
		} else if err != redis.Nil {
			// Redis error: fall through to the in-memory cache / DB read,
			// exactly as the database layer does — never surface a cache
			// transport error to the caller.
			return s.lookupWithMemCache(ctx, model, key)
		}
	} else if pricing, ok := s.getFromMemCache(key); ok {
		return pricing, true, nil
	}

	pricing, found, err := s.lookupDB(ctx, model)
	if err != nil || !found {
		return pricing, found, err
	}

	s.store(ctx, key, pricing)
	return pricing, true, nil
}

func (s *PricingStore) lookupWithMemCache(ctx context.Context, model models.ModelId, key string) (models.Pricing, bool, error) {
	if pricing, ok := s.getFromMemCache(key); ok {
		return pricing, true, nil
	}
	pricing, found, err := s.lookupDB(ctx, model)
	if err != nil || !found {
		return pricing, found, err
	}
	s.setMemCache(key, pricing)
	return pricing, true, nil
}

func (s *PricingStore) lookupDB(ctx context.Context, model models.ModelId) (models.Pricing, bool, error) {
	var pricing models.Pricing
	err := s.db.WithContext(ctx).Where("model_name = ?", model.String()).First(&pricing).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return models.Pricing{}, false, nil
		}
		return models.Pricing{}, false, err
	}
	return pricing, true, nil
}

func (s *PricingStore) store(ctx context.Context, key string, pricing models.Pricing) {
	ttl := time.Duration(s.cfg.PricingCacheTTL) * time.Second
	if ttl <= 0 {
		ttl = 300 * time.Second
	}

	if s.useRedis && s.redis != nil {
		if data, err := json.Marshal(pricing); err == nil {
			if err := s.redis.Set(ctx, key, data, ttl).Err(); err == nil {
				return
			}
		}
	}
	s.setMemCache(key, pricing)
}

func (s *PricingStore) getFromMemCache(key string) (models.Pricing, bool) {
	s.mu.RLock()
	entry, ok := s.memCache[key]
	s.mu.RUnlock()
	if !ok {
		return models.Pricing{}, false
	}
	if time.Now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.memCache, key)
		s.mu.Unlock()
		return models.Pricing{}, false
	}
	return entry.pricing, true
}

func (s *PricingStore) setMemCache(key string, pricing models.Pricing) {
	ttl := time.Duration(s.cfg.PricingCacheTTL) * time.Second
	if ttl <= 0 {
		ttl = 300 * time.Second
	}
	s.mu.Lock()
	s.memCache[key] = memCacheEntry{pricing: pricing, expiresAt: time.Now().Add(ttl)}
	s.mu.Unlock()
}

func cacheKey(model models.ModelId) string {
	return fmt.Sprintf("%s:%s", pricingCacheKeyPrefix, model.String())
}
