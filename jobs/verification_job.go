package jobs

import (
	"log/slog"

	"github.com/robfig/cron/v3"
)

type Purger interface {
	Purge() int
}

// SweepVerificationCache drops expired verification codes from the local
// cache. Redis expires its own copies.
func SweepVerificationCache(cache Purger, logger *slog.Logger) func() {
	if logger == nil {
		logger = slog.Default()
	}
	return func() {
		if n := cache.Purge(); n > 0 {
			logger.Info("purged expired verification codes", "count", n)
		}
	}
}

func ScheduleVerificationSweep(c *cron.Cron, schedule string, cache Purger, logger *slog.Logger) (cron.EntryID, error) {
	return c.AddFunc(schedule, SweepVerificationCache(cache, logger))
}
