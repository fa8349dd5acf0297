// internal/app/system/tasks/jobs.go
package tasks

import (
	"context"
	"time"

	"github.com/dalemusser/focushub/internal/app/system/deadlines"
	"github.com/dalemusser/focushub/internal/app/system/dispatch"
	"go.uber.org/zap"
)

// DigestCycle runs one digest dispatch cycle.
type DigestCycle interface {
	Run(ctx context.Context) (dispatch.Result, error)
}

// DeadlineCycle runs one deadline alert cycle.
type DeadlineCycle interface {
	Run(ctx context.Context) (deadlines.Result, error)
}

// LogPruner deletes notification attempts older than a cutoff.
type LogPruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// DigestJob creates a job that runs the digest cycle every interval.
// Per-user failures are part of the result; only a failure to list
// preferences is returned as an error.
func DigestJob(cycle DigestCycle, logger *zap.Logger, interval time.Duration) Job {
	return Job{
		Name:     "digest-dispatch",
		Interval: interval,
		Run: func(ctx context.Context) error {
			res, err := cycle.Run(ctx)
			if err != nil {
				return err
			}
			if res.Eligible > 0 || res.Skipped > 0 {
				logger.Info("digest cycle finished",
					zap.Int("considered", res.Considered),
					zap.Int("eligible", res.Eligible),
					zap.Int("sent", res.Sent),
					zap.Int("failed", res.Failed),
					zap.Int("skipped", res.Skipped))
			}
			return nil
		},
	}
}

// DeadlineJob creates a job that runs the deadline alert cycle every interval.
func DeadlineJob(cycle DeadlineCycle, logger *zap.Logger, interval time.Duration) Job {
	return Job{
		Name:     "deadline-alerts",
		Interval: interval,
		Run: func(ctx context.Context) error {
			res, err := cycle.Run(ctx)
			if err != nil {
				return err
			}
			if res.Alerted > 0 || res.Skipped > 0 {
				logger.Info("deadline cycle finished",
					zap.Int("alerted", res.Alerted),
					zap.Int("deliveries", res.Deliveries),
					zap.Int("delivery_failures", res.DeliveryFailures),
					zap.Int("failed", res.Failed),
					zap.Int("skipped", res.Skipped))
			}
			return nil
		},
	}
}

// LogRetentionJob creates a job that prunes notification attempts older
// than retention. It runs hourly.
func LogRetentionJob(logs LogPruner, logger *zap.Logger, retention time.Duration) Job {
	return Job{
		Name:     "notification-log-retention",
		Interval: 1 * time.Hour,
		Run: func(ctx context.Context) error {
			count, err := logs.DeleteOlderThan(ctx, time.Now().UTC().Add(-retention))
			if err != nil {
				return err
			}
			if count > 0 {
				logger.Debug("pruned notification log", zap.Int64("count", count))
			}
			return nil
		},
	}
}
