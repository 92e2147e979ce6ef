package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"moviehub-backend/pkg/redis"

	"github.com/goccy/go-json"
	redisClient "github.com/redis/go-redis/v9"
)

// RedisCacheManager implements Store using Redis
type RedisCacheManager struct {
	client *redis.Client
	config CacheConfig
	stats  cacheStats
}

// NewRedisCacheManager creates a new Redis-backed cache manager
func NewRedisCacheManager(client *redis.Client, config CacheConfig) *RedisCacheManager {
	if config.KeyPrefix == "" {
		config.KeyPrefix = DefaultCacheConfig().KeyPrefix
	}
	return &RedisCacheManager{
		client: client,
		config: config,
	}
}

// Get retrieves a value from cache
func (r *RedisCacheManager) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := r.client.GetClient().Get(ctx, r.buildKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redisClient.Nil) {
			r.stats.recordMiss()
			return false, nil // Cache miss, not an error
		}
		return false, fmt.Errorf("failed to get from cache: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal data: %w", err)
	}

	r.stats.recordHit()
	return true, nil
}

// Set stores a value in cache with TTL
func (r *RedisCacheManager) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	if err := r.client.GetClient().Set(ctx, r.buildKey(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set in cache: %w", err)
	}
	return nil
}

// Delete removes a key from cache
func (r *RedisCacheManager) Delete(ctx context.Context, key string) error {
	return r.client.GetClient().Del(ctx, r.buildKey(key)).Err()
}

// GetCacheStats returns cache performance statistics. KeyCount is left at
// zero: counting keys means a SCAN over the shared keyspace.
func (r *RedisCacheManager) GetCacheStats() CacheStats {
	return r.stats.snapshot("redis", 0)
}

// HealthCheck verifies cache connectivity
func (r *RedisCacheManager) HealthCheck(ctx context.Context) error {
	return r.client.GetClient().Ping(ctx).Err()
}

// Close is a no-op; the shared Redis client is closed by its owner
func (r *RedisCacheManager) Close() error {
	return nil
}

func (r *RedisCacheManager) buildKey(key string) string {
	return r.config.KeyPrefix + key
}
