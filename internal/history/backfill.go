package history

import (
	"fmt"
	"time"

	"usdgflow/internal/volume"
	"usdgflow/logger"
	"usdgflow/models"
)

// BackfillResult reports which dates a backfill run wrote and which it
// skipped because an entry already existed.
type BackfillResult struct {
	Written []string
	Skipped []string
}

// Backfill recomputes one snapshot per day for the last weeks*7 days from the
// given unified series and appends the dates that are missing from the log.
// Each recomputation only sees series entries at or before its target date.
// Re-running over an already populated range writes nothing.
func (s *Store) Backfill(u models.UnifiedSeries, weeks int, now time.Time) (BackfillResult, error) {
	if weeks <= 0 {
		weeks = 4
	}

	existing, err := s.Dates()
	if err != nil {
		return BackfillResult{}, fmt.Errorf("failed to read existing history: %w", err)
	}

	var result BackfillResult
	days := weeks * 7
	for i := days - 1; i >= 0; i-- {
		target := now.UTC().AddDate(0, 0, -i)
		date := target.Format(dateLayout)

		if _, ok := existing[date]; ok {
			result.Skipped = append(result.Skipped, date)
			continue
		}

		snapshot := volume.ComputeAsOf(u, date)
		ts := time.Date(target.Year(), target.Month(), target.Day(), 0, 0, 0, 0, time.UTC)
		if err := s.AppendAt(ts, snapshot); err != nil {
			return result, fmt.Errorf("failed to backfill %s: %w", date, err)
		}
		existing[date] = struct{}{}
		result.Written = append(result.Written, date)
	}

	s.log.WithComponent("history").WithFields(logger.Fields{
		"weeks":   weeks,
		"written": len(result.Written),
		"skipped": len(result.Skipped),
	}).Info("backfill completed")

	return result, nil
}
