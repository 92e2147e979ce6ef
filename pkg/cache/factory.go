package cache

import (
	"fmt"

	"moviehub-backend/pkg/redis"
)

// NewStore creates the cache backend named in config. redisClient may be nil
// unless the backend is "redis".
func NewStore(config CacheConfig, redisClient *redis.Client) (Store, error) {
	switch config.Backend {
	case "", "memory":
		return NewMemoryCacheManager(config)
	case "redis":
		if redisClient == nil {
			return nil, fmt.Errorf("cache: redis backend selected without a redis client")
		}
		return NewRedisCacheManager(redisClient, config), nil
	default:
		return nil, fmt.Errorf("cache: unknown backend %q", config.Backend)
	}
}
