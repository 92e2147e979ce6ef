package cache

import "sync/atomic"

// cacheStats tracks cache performance metrics
type cacheStats struct {
	totalHits   atomic.Int64
	totalMisses atomic.Int64
}

func (s *cacheStats) recordHit() {
	s.totalHits.Add(1)
}

func (s *cacheStats) recordMiss() {
	s.totalMisses.Add(1)
}

func (s *cacheStats) snapshot(backend string, keyCount int) CacheStats {
	hits := s.totalHits.Load()
	misses := s.totalMisses.Load()

	stats := CacheStats{
		Backend:     backend,
		KeyCount:    keyCount,
		TotalHits:   hits,
		TotalMisses: misses,
	}
	if total := hits + misses; total > 0 {
		stats.HitRate = float64(hits) / float64(total)
		stats.MissRate = float64(misses) / float64(total)
	}
	return stats
}
