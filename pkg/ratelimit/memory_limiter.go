package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Option customizes a limiter at construction time
type Option func(*options)

type options struct {
	clock Clock
}

// WithClock replaces the wall clock, mainly for tests
func WithClock(clock Clock) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{clock: SystemClock{}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// MemoryRateLimiter implements Limiter on a capacity-bounded, self-expiring
// LRU. The bound matters: identities come from client-supplied headers, so an
// unbounded map would grow with every spoofed address.
type MemoryRateLimiter struct {
	config  *Config
	clock   Clock
	entries *expirable.LRU[string, Entry]

	// mu makes each admission's read-modify-write atomic; the LRU is safe
	// for concurrent use but two racing increments would lose one.
	mu sync.Mutex

	totalRequests   atomic.Int64
	blockedRequests atomic.Int64
}

// NewMemoryRateLimiter creates a new in-memory rate limiter
func NewMemoryRateLimiter(config *Config, opts ...Option) (*MemoryRateLimiter, error) {
	if config == nil {
		config = DefaultConfig()
	}
	cfg := *config
	if err := cfg.normalize(); err != nil {
		return nil, err
	}

	o := buildOptions(opts)
	return &MemoryRateLimiter{
		config:  &cfg,
		clock:   o.clock,
		entries: expirable.NewLRU[string, Entry](cfg.Capacity, nil, cfg.EntryTTL),
	}, nil
}

// Admit applies the fixed-window check for identity
func (r *MemoryRateLimiter) Admit(_ context.Context, identity string) (bool, error) {
	if !r.config.Enabled {
		return true, nil
	}

	r.totalRequests.Add(1)
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries.Get(identity)
	if !ok || now.After(entry.ResetTime) {
		r.entries.Add(identity, Entry{
			Count:     1,
			ResetTime: now.Add(r.config.Window),
		})
		return true, nil
	}

	if entry.Count >= r.config.MaxRequests {
		r.blockedRequests.Add(1)
		return false, nil
	}

	entry.Count++
	r.entries.Add(identity, entry)
	return true, nil
}

// Status returns the window snapshot for identity without touching recency
func (r *MemoryRateLimiter) Status(_ context.Context, identity string) (Status, error) {
	now := r.clock.Now()

	r.mu.Lock()
	entry, ok := r.entries.Peek(identity)
	r.mu.Unlock()

	if !ok {
		return statusFor(nil, r.config, now), nil
	}
	return statusFor(&entry, r.config, now), nil
}

// Limit returns the configured requests per window
func (r *MemoryRateLimiter) Limit() int {
	return r.config.MaxRequests
}

// Clear forgets identity's window
func (r *MemoryRateLimiter) Clear(identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries.Remove(identity)
}

// ClearAll forgets every window
func (r *MemoryRateLimiter) ClearAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries.Purge()
}

// GetStats returns current rate limiter statistics
func (r *MemoryRateLimiter) GetStats() RateLimiterStats {
	return RateLimiterStats{
		Backend:         "memory",
		TotalRequests:   r.totalRequests.Load(),
		BlockedRequests: r.blockedRequests.Load(),
		ActiveClients:   r.entries.Len(),
	}
}
