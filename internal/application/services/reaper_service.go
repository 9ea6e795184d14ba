package services

import (
	"context"
	"time"

	"github.com/AtRiskMedia/formrelay-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/formrelay-go/internal/infrastructure/persistence/partition"
)

// ReaperService periodically removes partitions whose owning session has
// been inactive past the configured day threshold. Advisory housekeeping:
// failures are logged and never touch the live pipeline.
type ReaperService struct {
	store    *partition.Store
	interval time.Duration
	days     int
	logger   *logging.ChanneledLogger
}

// NewReaperService creates the reaper. A nil store disables it.
func NewReaperService(store *partition.Store, interval time.Duration, days int, logger *logging.ChanneledLogger) *ReaperService {
	return &ReaperService{store: store, interval: interval, days: days, logger: logger}
}

// Run executes the reap loop until the context is cancelled. This should
// be run as a goroutine.
func (s *ReaperService) Run(ctx context.Context) {
	if s.store == nil {
		s.logger.Database().Warn("Partition reaper disabled: no backing store")
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if count, err := s.store.Reap(s.days); err != nil {
				s.logger.Database().Error("Partition reap failed", "error", err.Error())
			} else if count > 0 {
				s.logger.Database().Info("Partition reap completed", "removed", count)
			}
		case <-ctx.Done():
			return
		}
	}
}
