package store

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sagalabs/saga/internal/logging"
)

// StartSweeper schedules periodic deletion of conversations untouched for
// longer than days. Returns nil when retention is disabled (days <= 0).
// Stop the returned cron to cancel the schedule.
func StartSweeper(s *Store, days int, schedule string) (*cron.Cron, error) {
	if days <= 0 {
		return nil, nil
	}
	if schedule == "" {
		schedule = "@hourly"
	}

	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		cutoff := daysAgo(days)
		n, err := s.PurgeOlderThan(context.Background(), cutoff)
		if err != nil {
			logging.Errorf("retention sweep failed: %v", err)
			return
		}
		if n > 0 {
			logging.Infof("retention sweep removed %d conversation(s) older than %d days", n, days)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid retention schedule %q: %w", schedule, err)
	}
	c.Start()
	logging.Infof("retention sweeper running (%s, %d days)", schedule, days)
	return c, nil
}

func daysAgo(days int) time.Time {
	return time.Now().AddDate(0, 0, -days)
}
