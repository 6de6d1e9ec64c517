package summary

import (
	"sort"
	"time"

	"usdgflow/models"
)

// GroupWeekly partitions log entries into calendar weeks starting on the most
// recent Sunday (UTC) at or before each entry. Within a week the entry with
// the latest timestamp represents the whole week. Output is sorted ascending
// by week start.
func GroupWeekly(entries []models.LogEntry) []models.PeriodSummary {
	byWeek := make(map[string]models.PeriodSummary)
	for _, e := range entries {
		start := weekStart(e.Timestamp)
		key := start.Format("2006-01-02")
		cur, ok := byWeek[key]
		if ok && !e.Timestamp.After(cur.Timestamp) {
			continue
		}
		byWeek[key] = models.PeriodSummary{
			PeriodKey:   key,
			PeriodStart: start,
			PeriodEnd:   start.AddDate(0, 0, 7),
			Timestamp:   e.Timestamp,
			Metrics:     e.Metrics,
		}
	}
	return sortedSummaries(byWeek)
}

// GroupMonthly partitions log entries into UTC calendar months. The current,
// still-in-progress month relative to now is always excluded; a month only
// becomes reportable once it has fully elapsed. Latest timestamp wins within
// a month. Output is sorted ascending by month.
func GroupMonthly(entries []models.LogEntry, now time.Time) []models.PeriodSummary {
	currentKey := now.UTC().Format("2006-01")
	byMonth := make(map[string]models.PeriodSummary)
	for _, e := range entries {
		ts := e.Timestamp.UTC()
		key := ts.Format("2006-01")
		if key == currentKey {
			continue
		}
		cur, ok := byMonth[key]
		if ok && !e.Timestamp.After(cur.Timestamp) {
			continue
		}
		start := time.Date(ts.Year(), ts.Month(), 1, 0, 0, 0, 0, time.UTC)
		byMonth[key] = models.PeriodSummary{
			PeriodKey:   key,
			PeriodStart: start,
			PeriodEnd:   start.AddDate(0, 1, 0),
			Timestamp:   e.Timestamp,
			Metrics:     e.Metrics,
		}
	}
	return sortedSummaries(byMonth)
}

// Delta computes period-over-period changes between the two most recent
// summaries. Returns nil when fewer than two periods exist.
func Delta(summaries []models.PeriodSummary) *models.PeriodDelta {
	if len(summaries) < 2 {
		return nil
	}
	current := summaries[len(summaries)-1].Metrics
	previous := summaries[len(summaries)-2].Metrics

	return &models.PeriodDelta{
		Volume7Day:      volumeChange(current.Volume7Day, previous.Volume7Day),
		Volume30Day:     volumeChange(current.Volume30Day, previous.Volume30Day),
		ActiveExchanges: current.ActiveExchanges - previous.ActiveExchanges,
		TotalPairs:      current.TotalPairs - previous.TotalPairs,
		ExchangeThresholds: models.ThresholdCounts{
			From1Mto5M:  current.ExchangeThresholds.From1Mto5M - previous.ExchangeThresholds.From1Mto5M,
			From5Mto25M: current.ExchangeThresholds.From5Mto25M - previous.ExchangeThresholds.From5Mto25M,
			Over25M:     current.ExchangeThresholds.Over25M - previous.ExchangeThresholds.Over25M,
		},
	}
}

// Report pairs the two most recent period summaries of a grouping with their
// deltas. Previous and Changes are nil when not enough periods exist.
type Report struct {
	Current  *models.PeriodSummary `json:"current"`
	Previous *models.PeriodSummary `json:"previous"`
	Changes  *models.PeriodDelta   `json:"changes"`
}

// WeeklyReport builds the current/previous/changes view over weekly buckets.
func WeeklyReport(entries []models.LogEntry) Report {
	return buildReport(GroupWeekly(entries))
}

// MonthlyReport builds the current/previous/changes view over monthly
// buckets, excluding the in-progress month.
func MonthlyReport(entries []models.LogEntry, now time.Time) Report {
	return buildReport(GroupMonthly(entries, now))
}

func buildReport(summaries []models.PeriodSummary) Report {
	var report Report
	if len(summaries) > 0 {
		report.Current = &summaries[len(summaries)-1]
	}
	if len(summaries) > 1 {
		report.Previous = &summaries[len(summaries)-2]
	}
	report.Changes = Delta(summaries)
	return report
}

// volumeChange returns the absolute and percent delta. Percent is defined as
// 0 when the previous value is 0.
func volumeChange(current, previous float64) models.VolumeChange {
	change := models.VolumeChange{Absolute: current - previous}
	if previous != 0 {
		change.Percent = (current - previous) / previous * 100
	}
	return change
}

// weekStart truncates a timestamp to the most recent Sunday 00:00 UTC.
func weekStart(ts time.Time) time.Time {
	ts = ts.UTC()
	day := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
	return day.AddDate(0, 0, -int(day.Weekday()))
}

func sortedSummaries(byKey map[string]models.PeriodSummary) []models.PeriodSummary {
	out := make([]models.PeriodSummary, 0, len(byKey))
	for _, s := range byKey {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].PeriodStart.Before(out[j].PeriodStart)
	})
	return out
}
