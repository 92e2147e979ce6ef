package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	lru "github.com/hashicorp/golang-lru/v2"
)

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryCacheManager implements Store with a bounded LRU. Entries carry their
// own expiry because TTLs differ per key (minutes for trending lists, weeks
// for genre lists).
type MemoryCacheManager struct {
	entries *lru.Cache[string, memoryEntry]
	config  CacheConfig
	stats   cacheStats
	now     func() time.Time
}

// NewMemoryCacheManager creates a new in-process cache manager
func NewMemoryCacheManager(config CacheConfig) (*MemoryCacheManager, error) {
	if config.Capacity <= 0 {
		config.Capacity = DefaultCacheConfig().Capacity
	}
	entries, err := lru.New[string, memoryEntry](config.Capacity)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}
	return &MemoryCacheManager{
		entries: entries,
		config:  config,
		now:     time.Now,
	}, nil
}

// Get retrieves a value from cache
func (m *MemoryCacheManager) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	entry, ok := m.entries.Get(key)
	if !ok {
		m.stats.recordMiss()
		return false, nil
	}
	if !m.now().Before(entry.expiresAt) {
		m.entries.Remove(key)
		m.stats.recordMiss()
		return false, nil
	}

	if err := json.Unmarshal(entry.data, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached data: %w", err)
	}

	m.stats.recordHit()
	return true, nil
}

// Set stores a value in cache with TTL
func (m *MemoryCacheManager) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	m.entries.Add(key, memoryEntry{
		data:      data,
		expiresAt: m.now().Add(ttl),
	})
	return nil
}

// Delete removes a key from cache
func (m *MemoryCacheManager) Delete(_ context.Context, key string) error {
	m.entries.Remove(key)
	return nil
}

// GetCacheStats returns cache performance statistics
func (m *MemoryCacheManager) GetCacheStats() CacheStats {
	return m.stats.snapshot("memory", m.entries.Len())
}

// HealthCheck always succeeds for the in-process cache
func (m *MemoryCacheManager) HealthCheck(context.Context) error {
	return nil
}

// Close drops every entry
func (m *MemoryCacheManager) Close() error {
	m.entries.Purge()
	return nil
}

// PurgeExpired drops every expired entry and returns how many were removed.
// Expired entries are otherwise only dropped when read or evicted.
func (m *MemoryCacheManager) PurgeExpired() int {
	now := m.now()
	removed := 0
	for _, key := range m.entries.Keys() {
		entry, ok := m.entries.Peek(key)
		if ok && !now.Before(entry.expiresAt) {
			m.entries.Remove(key)
			removed++
		}
	}
	return removed
}
