package main

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/sitemgmt/pkg/directory"
	"github.com/platinummonkey/sitemgmt/pkg/observability"
)

// rosterJobTimeout bounds a single roster refresh
const rosterJobTimeout = 30 * time.Second

// newScheduler registers the background jobs. It returns nil when there is
// nothing to schedule.
func newScheduler(schedule string, dir *directory.Directory, metrics *observability.Metrics, logger *observability.Logger) (*cron.Cron, error) {
	if schedule == "" || metrics == nil {
		return nil, nil
	}

	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		defer observability.RecoverPanic(logger, "roster gauge refresh")

		ctx, cancel := context.WithTimeout(context.Background(), rosterJobTimeout)
		defer cancel()
		if err := refreshRoster(ctx, dir, metrics); err != nil {
			logger.WithError(err).Warn("Roster gauge refresh failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to schedule roster gauge refresh: %w", err)
	}
	return c, nil
}

// refreshRoster publishes the current admin counts
func refreshRoster(ctx context.Context, dir *directory.Directory, metrics *observability.Metrics) error {
	active, inactive, err := dir.RosterCounts(ctx)
	if err != nil {
		return err
	}
	metrics.SetAdminCounts(active, inactive)
	return nil
}
