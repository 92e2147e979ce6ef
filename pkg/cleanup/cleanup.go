package cleanup

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper removes expired entries from an in-process store
type Sweeper interface {
	PurgeExpired() int
}

type CleanupService struct {
	sweeper  Sweeper
	interval time.Duration
	logger   *zap.Logger
}

func NewCleanupService(sweeper Sweeper, interval time.Duration, logger *zap.Logger) *CleanupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CleanupService{
		sweeper:  sweeper,
		interval: interval,
		logger:   logger,
	}
}

// Start runs the sweep every interval until ctx is done
func (s *CleanupService) Start(ctx context.Context) {
	s.logger.Info("Starting expired entry cleanup", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-ctx.Done():
			s.logger.Info("Stopping expired entry cleanup")
			return
		}
	}
}

func (s *CleanupService) sweep() int {
	count := s.sweeper.PurgeExpired()
	if count > 0 {
		s.logger.Debug("Cleaned up expired entries", zap.Int("count", count))
	}
	return count
}
