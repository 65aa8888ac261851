// Package jobs runs background maintenance on a cron schedule.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/quipper/poc/classroom/be/pkg/common/logger"
)

// Pruner deletes records created before a cutoff.
type Pruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// NotificationPruner removes notifications older than the retention period.
type NotificationPruner struct {
	cron      *cron.Cron
	repo      Pruner
	retention time.Duration
	now       func() time.Time
}

func NewNotificationPruner(repo Pruner, retention time.Duration) *NotificationPruner {
	return &NotificationPruner{
		cron:      cron.New(),
		repo:      repo,
		retention: retention,
		now:       time.Now,
	}
}

// Start schedules RunOnce with a standard five-field cron spec or a
// descriptor such as "@hourly".
func (p *NotificationPruner) Start(schedule string) error {
	if _, err := p.cron.AddFunc(schedule, func() {
		if _, err := p.RunOnce(context.Background()); err != nil {
			logger.Warn("prune notifications: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid prune schedule %q: %w", schedule, err)
	}
	p.cron.Start()
	logger.Info("notification pruner started schedule=%s retention=%s", schedule, p.retention)
	return nil
}

// Stop stops the scheduler and waits for a running prune to finish or ctx to end.
func (p *NotificationPruner) Stop(ctx context.Context) {
	select {
	case <-p.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (p *NotificationPruner) RunOnce(ctx context.Context) (int64, error) {
	cutoff := p.now().Add(-p.retention)
	n, err := p.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logger.Info("pruned %d notifications older than %s", n, cutoff.Format(time.RFC3339))
	}
	return n, nil
}
