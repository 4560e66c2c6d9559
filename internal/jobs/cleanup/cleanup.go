package cleanup

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const defaultInterval = time.Hour

type PermissionSweeper interface {
	DeleteExpiredPermissions(ctx context.Context, cutoff time.Time) (int64, error)
}

// Job removes photo whitelist entries whose expiry has passed. Expired rows
// already deny access; the sweep only keeps the table small.
type Job struct {
	permissions PermissionSweeper
	interval    time.Duration
	now         func() time.Time
	logger      *zap.Logger
}

func New(permissions PermissionSweeper, interval time.Duration, logger *zap.Logger) *Job {
	if interval <= 0 {
		interval = defaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Job{
		permissions: permissions,
		interval:    interval,
		now:         time.Now,
		logger:      logger,
	}
}

func (j *Job) Run(ctx context.Context) error {
	if j.permissions == nil {
		return nil
	}

	rows, err := j.permissions.DeleteExpiredPermissions(ctx, j.now().UTC())
	if err != nil {
		return fmt.Errorf("cleanup expired photo permissions: %w", err)
	}
	if rows > 0 {
		j.logger.Info("cleanup expired photo permissions completed", zap.Int64("deleted", rows))
	}
	return nil
}

// Loop runs the job once and then every interval until ctx ends. Failed runs
// are logged and retried on the next tick.
func (j *Job) Loop(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		if err := j.Run(ctx); err != nil && ctx.Err() == nil {
			j.logger.Warn("cleanup run failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
