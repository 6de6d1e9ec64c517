package volume

import (
	"usdgflow/models"
)

// Rolling windows are positional: "last N entries" of the date-sorted series,
// not N calendar days. Gapped series therefore span more than N days.
const (
	shortWindow = 7
	longWindow  = 30

	// averageDivisor stays fixed at 30 regardless of how many entries the
	// series actually has, so early-history averages come out deflated.
	averageDivisor = 30
)

// Threshold bands for exchange 30-day averages, half-open. Averages below
// the lowest band are intentionally untracked.
const (
	band1M  = 1_000_000.0
	band5M  = 5_000_000.0
	band25M = 25_000_000.0
)

// Compute derives a MetricsSnapshot from a finalized unified series.
// It is a pure function: the same input always yields the identical snapshot.
func Compute(u models.UnifiedSeries) models.MetricsSnapshot {
	averages := ExchangeAverages(u.Points)

	return models.MetricsSnapshot{
		Volume7Day:         WindowVolume(u.Points, shortWindow),
		Volume30Day:        WindowVolume(u.Points, longWindow),
		ActiveExchanges:    countActive(u.Points),
		TotalPairs:         u.TotalPairs(),
		ExchangeThresholds: bucketAverages(averages),
	}
}

// ComputeAsOf derives the snapshot a daily run would have produced on the
// given date: only entries with Date <= cutoff participate and the rolling
// windows are taken relative to that cutoff.
func ComputeAsOf(u models.UnifiedSeries, cutoff string) models.MetricsSnapshot {
	trimmed := u.Points
	for i, p := range u.Points {
		if p.Date > cutoff {
			trimmed = u.Points[:i]
			break
		}
	}
	return Compute(models.UnifiedSeries{Points: trimmed, PairsByExchange: u.PairsByExchange})
}

// WindowVolume sums total volume over the last n entries of the series.
func WindowVolume(points []models.DailyVolumePoint, n int) float64 {
	sum := 0.0
	for _, p := range lastN(points, n) {
		sum += p.Volume
	}
	return sum
}

// ExchangeAverages computes each exchange's 30-day average daily volume over
// the last 30 entries, dividing by the fixed window length.
func ExchangeAverages(points []models.DailyVolumePoint) map[string]float64 {
	sums := exchangeWindowSums(points)
	averages := make(map[string]float64, len(sums))
	for exchange, sum := range sums {
		averages[exchange] = sum / averageDivisor
	}
	return averages
}

func countActive(points []models.DailyVolumePoint) int {
	active := 0
	for _, sum := range exchangeWindowSums(points) {
		if sum > 0 {
			active++
		}
	}
	return active
}

func exchangeWindowSums(points []models.DailyVolumePoint) map[string]float64 {
	sums := make(map[string]float64)
	for _, p := range lastN(points, longWindow) {
		for exchange, v := range p.ByExchange {
			sums[exchange] += v
		}
	}
	return sums
}

// bucketAverages classifies each average into exactly one of the three bands.
func bucketAverages(averages map[string]float64) models.ThresholdCounts {
	var counts models.ThresholdCounts
	for _, avg := range averages {
		switch {
		case avg >= band25M:
			counts.Over25M++
		case avg >= band5M:
			counts.From5Mto25M++
		case avg >= band1M:
			counts.From1Mto5M++
		}
	}
	return counts
}

func lastN(points []models.DailyVolumePoint, n int) []models.DailyVolumePoint {
	if len(points) <= n {
		return points
	}
	return points[len(points)-n:]
}
