package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"usdgflow/logger"
)

// Scheduler fires the daily pipeline run once per UTC day at a fixed
// wall-clock time. Runs are strictly sequential: a long run delays the next
// trigger rather than overlapping it.
type Scheduler struct {
	pipeline *Pipeline
	hour     int
	minute   int
	log      *logger.Log
}

// NewScheduler parses runAt as "HH:MM" in UTC.
func NewScheduler(p *Pipeline, runAt string) (*Scheduler, error) {
	parts := strings.SplitN(runAt, ":", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid run_at_utc %q, expected HH:MM", runAt)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return nil, fmt.Errorf("invalid run_at_utc hour in %q", runAt)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return nil, fmt.Errorf("invalid run_at_utc minute in %q", runAt)
	}
	return &Scheduler{
		pipeline: p,
		hour:     hour,
		minute:   minute,
		log:      logger.GetLogger(),
	}, nil
}

// nextRun returns the next scheduled trigger strictly after now.
func (s *Scheduler) nextRun(now time.Time) time.Time {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), s.hour, s.minute, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Start blocks until ctx is cancelled, firing RunDaily at each trigger.
func (s *Scheduler) Start(ctx context.Context) {
	log := s.log.WithComponent("scheduler")
	for {
		next := s.nextRun(time.Now())
		log.WithFields(logger.Fields{"next_run": next.Format(time.RFC3339)}).Info("sleeping until next collection run")

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info("scheduler stopped")
			return
		case <-timer.C:
		}

		if err := s.pipeline.RunDaily(ctx); err != nil {
			log.WithError(err).Error("scheduled run failed")
		}
	}
}
