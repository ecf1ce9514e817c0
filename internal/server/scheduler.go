package server

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rxtech-lab/profile-launchpad/internal/services"
	"go.uber.org/zap"
)

// StartFeeSchedule runs the fee collection job on a five-field cron schedule.
// Overlapping runs are skipped. Stop the returned scheduler on shutdown.
func StartFeeSchedule(schedule string, job services.FeeCollectionJob, timeout time.Duration, logger *zap.Logger) (*cron.Cron, error) {
	logger = logger.Named("fee_schedule")
	c := cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)))

	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		summary := job.Run(ctx)
		logger.Info("scheduled fee collection done",
			zap.Int("total", summary.Total),
			zap.Int("failed", summary.Failed))
	})
	if err != nil {
		return nil, fmt.Errorf("invalid fee collection schedule %q: %w", schedule, err)
	}

	c.Start()
	logger.Info("fee collection scheduled", zap.String("schedule", schedule))
	return c, nil
}
