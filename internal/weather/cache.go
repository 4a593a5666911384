package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"lawncare/internal/types"
)

// Cache is the key-value store behind CachedSource.
type Cache interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
}

// RedisCache stores JSON-encoded values in Redis. Get returns redis.Nil on
// a miss.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	p, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, p, expiration).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	return c.client.Get(ctx, key).Result()
}

// CachedSource memoizes another Source per scenario and calendar day. Cache
// failures degrade to a direct fetch.
type CachedSource struct {
	next   Source
	cache  Cache
	ttl    time.Duration
	clock  types.Clock
	logger *slog.Logger
}

func NewCachedSource(next Source, cache Cache, ttl time.Duration, clock types.Clock, logger *slog.Logger) *CachedSource {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedSource{next: next, cache: cache, ttl: ttl, clock: clock, logger: logger}
}

func (s *CachedSource) Name() string { return s.next.Name() }

func (s *CachedSource) cacheKey(scenario types.Scenario) string {
	return fmt.Sprintf("forecast:%s:%s:%s", s.next.Name(), scenario, types.DateOf(s.clock.Now()))
}

func (s *CachedSource) Forecast(ctx context.Context, scenario types.Scenario) ([]types.DailyForecast, error) {
	key := s.cacheKey(scenario)

	cached, err := s.cache.Get(ctx, key)
	if err == nil {
		var days []types.DailyForecast
		jsonErr := json.Unmarshal([]byte(cached), &days)
		if jsonErr == nil && len(days) > 0 {
			s.logger.DebugContext(ctx, "cache hit", "key", key)
			return days, nil
		}
		if jsonErr != nil {
			s.logger.WarnContext(ctx, "invalid cache entry: unmarshal error", "key", key, "error", jsonErr)
		} else {
			s.logger.WarnContext(ctx, "invalid cache entry: empty forecast", "key", key)
		}
	} else if !errors.Is(err, redis.Nil) {
		s.logger.WarnContext(ctx, "error getting from redis", "key", key, "error", err)
	}

	days, err := s.next.Forecast(ctx, scenario)
	if err != nil {
		return nil, err
	}

	if cacheErr := s.cache.Set(ctx, key, days, s.ttl); cacheErr != nil {
		s.logger.WarnContext(ctx, "error setting to redis", "key", key, "error", cacheErr)
	}
	return days, nil
}
