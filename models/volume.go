package models

import (
	"time"
)

// DailyVolumePoint is one calendar day of aggregated USDG volume.
// Volume always equals the sum of the ByExchange contributions; exchanges
// with no data on that day are absent from the map rather than zero-valued.
type DailyVolumePoint struct {
	Date       string             `json:"date"` // YYYY-MM-DD
	Volume     float64            `json:"volume"`
	ByExchange map[string]float64 `json:"byExchange"`
}

// ExchangeSeries is the normalized per-exchange output consumed by the
// aggregator. A failed fetch is represented as an empty series, not an error.
type ExchangeSeries struct {
	Exchange    string             `json:"exchange"`
	Pairs       []string           `json:"pairs"`
	DailyVolume []ExchangeDayPoint `json:"dailyVolume"`
}

// ExchangeDayPoint is a single day of one exchange's USD volume.
type ExchangeDayPoint struct {
	Date   string  `json:"date"` // YYYY-MM-DD
	Volume float64 `json:"volume"`
}

// UnifiedSeries is the merged output of the volume aggregator: the distinct
// dates across all exchanges sorted ascending, plus the pair roster.
type UnifiedSeries struct {
	Points          []DailyVolumePoint  `json:"points"`
	PairsByExchange map[string][]string `json:"pairsByExchange"`
}

// TotalPairs counts every listing across all exchanges. The same logical
// pair listed on two venues counts twice.
func (u UnifiedSeries) TotalPairs() int {
	total := 0
	for _, pairs := range u.PairsByExchange {
		total += len(pairs)
	}
	return total
}

// ThresholdCounts buckets exchanges by 30-day average daily volume.
// Averages below 1M USD are not tracked.
type ThresholdCounts struct {
	From1Mto5M  int `json:"1Mto5M"`
	From5Mto25M int `json:"5Mto25M"`
	Over25M     int `json:"over25M"`
}

// MetricsSnapshot is the derived daily state appended to the history log.
// Fields are never mutated after creation.
type MetricsSnapshot struct {
	Volume7Day         float64         `json:"volume7Day"`
	Volume30Day        float64         `json:"volume30Day"`
	ActiveExchanges    int             `json:"activeExchanges"`
	TotalPairs         int             `json:"totalPairs"`
	ExchangeThresholds ThresholdCounts `json:"exchangeThresholds"`
}

// LogEntry is one immutable line of the history log.
type LogEntry struct {
	Timestamp time.Time       `json:"timestamp"`
	Metrics   MetricsSnapshot `json:"metrics"`
}

// PeriodSummary is the representative LogEntry chosen for a week or month
// (latest timestamp within the period), tagged with the period boundaries.
type PeriodSummary struct {
	PeriodKey   string          `json:"periodKey"`
	PeriodStart time.Time       `json:"periodStart"`
	PeriodEnd   time.Time       `json:"periodEnd"`
	Timestamp   time.Time       `json:"timestamp"`
	Metrics     MetricsSnapshot `json:"metrics"`
}

// PeriodDelta holds period-over-period changes between the two most recent
// summaries of a grouping. Volume changes carry both absolute and percent
// forms; percent is 0 when the previous value is 0.
type PeriodDelta struct {
	Volume7Day         VolumeChange    `json:"volume7Day"`
	Volume30Day        VolumeChange    `json:"volume30Day"`
	ActiveExchanges    int             `json:"activeExchanges"`
	TotalPairs         int             `json:"totalPairs"`
	ExchangeThresholds ThresholdCounts `json:"exchangeThresholds"`
}

// VolumeChange is an absolute plus percent delta for a volume metric.
type VolumeChange struct {
	Absolute float64 `json:"absolute"`
	Percent  float64 `json:"percent"`
}
