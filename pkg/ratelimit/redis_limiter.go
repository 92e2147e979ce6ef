package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// fixedWindowScript runs one admission atomically. Times are unix
// milliseconds supplied by the caller so every instance agrees on the clock
// it was given.
//
// Returns {allowed, count, reset_time}.
var fixedWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local max_requests = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])
	local now = tonumber(ARGV[3])
	local ttl = tonumber(ARGV[4])

	local count = tonumber(redis.call('HGET', key, 'count'))
	local reset_time = tonumber(redis.call('HGET', key, 'reset_time'))

	-- No history, or the window has passed: start a fresh one
	if count == nil or reset_time == nil or now > reset_time then
		reset_time = now + window
		redis.call('HSET', key, 'count', 1, 'reset_time', reset_time)
		redis.call('PEXPIRE', key, ttl)
		return {1, 1, reset_time}
	end

	if count >= max_requests then
		return {0, count, reset_time}
	end

	count = redis.call('HINCRBY', key, 'count', 1)
	redis.call('PEXPIRE', key, ttl)
	return {1, count, reset_time}
`)

// RedisRateLimiter implements Limiter using Redis as the backend. Keys expire
// after the entry TTL so abandoned identities disappear without a sweeper;
// the capacity bound is left to the Redis server's maxmemory policy.
type RedisRateLimiter struct {
	client *redis.Client
	config *Config
	clock  Clock

	totalRequests   atomic.Int64
	blockedRequests atomic.Int64
}

// NewRedisRateLimiter creates a new Redis-backed rate limiter
func NewRedisRateLimiter(client *redis.Client, config *Config, opts ...Option) (*RedisRateLimiter, error) {
	if client == nil {
		return nil, errors.New("ratelimit: redis client is required")
	}
	if config == nil {
		config = DefaultConfig()
	}
	cfg := *config
	if err := cfg.normalize(); err != nil {
		return nil, err
	}

	o := buildOptions(opts)
	return &RedisRateLimiter{
		client: client,
		config: &cfg,
		clock:  o.clock,
	}, nil
}

// Admit applies the fixed-window check for identity
func (r *RedisRateLimiter) Admit(ctx context.Context, identity string) (bool, error) {
	if !r.config.Enabled {
		return true, nil
	}

	r.totalRequests.Add(1)
	now := r.clock.Now()

	result, err := fixedWindowScript.Run(ctx, r.client, []string{r.key(identity)},
		r.config.MaxRequests,
		r.config.Window.Milliseconds(),
		now.UnixMilli(),
		r.config.EntryTTL.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}
	if len(result) != 3 {
		return false, fmt.Errorf("rate limit check failed: unexpected script result %v", result)
	}

	if result[0] != 1 {
		r.blockedRequests.Add(1)
		return false, nil
	}
	return true, nil
}

// Status reads the window for identity without modifying it
func (r *RedisRateLimiter) Status(ctx context.Context, identity string) (Status, error) {
	now := r.clock.Now()

	values, err := r.client.HMGet(ctx, r.key(identity), "count", "reset_time").Result()
	if err != nil {
		return Status{}, fmt.Errorf("rate limit status failed: %w", err)
	}

	entry, ok := parseEntry(values)
	if !ok {
		return statusFor(nil, r.config, now), nil
	}
	return statusFor(&entry, r.config, now), nil
}

// Limit returns the configured requests per window
func (r *RedisRateLimiter) Limit() int {
	return r.config.MaxRequests
}

// Clear forgets identity's window
func (r *RedisRateLimiter) Clear(ctx context.Context, identity string) error {
	return r.client.Del(ctx, r.key(identity)).Err()
}

// GetStats returns current rate limiter statistics. ActiveClients is not
// tracked for Redis; scanning the keyspace per call is not worth it.
func (r *RedisRateLimiter) GetStats() RateLimiterStats {
	return RateLimiterStats{
		Backend:         "redis",
		TotalRequests:   r.totalRequests.Load(),
		BlockedRequests: r.blockedRequests.Load(),
	}
}

func (r *RedisRateLimiter) key(identity string) string {
	return r.config.RedisKeyPrefix + identity
}

func parseEntry(values []interface{}) (Entry, bool) {
	if len(values) != 2 || values[0] == nil || values[1] == nil {
		return Entry{}, false
	}

	countStr, ok1 := values[0].(string)
	resetStr, ok2 := values[1].(string)
	if !ok1 || !ok2 {
		return Entry{}, false
	}

	count, err := strconv.Atoi(countStr)
	if err != nil {
		return Entry{}, false
	}
	resetMillis, err := strconv.ParseInt(resetStr, 10, 64)
	if err != nil {
		return Entry{}, false
	}

	return Entry{
		Count:     count,
		ResetTime: time.UnixMilli(resetMillis),
	}, true
}
