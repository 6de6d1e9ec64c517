package volume

import (
	"sort"

	"usdgflow/models"
)

// Aggregate merges per-exchange daily series into one unified series with
// per-exchange attribution. The output contains every distinct date observed
// across all inputs, sorted ascending; dates are canonical zero-padded
// YYYY-MM-DD strings so lexicographic order is calendar order. Exchanges
// absent on a date do not appear in that date's ByExchange map.
//
// An empty ExchangeSeries (the degraded result of a failed fetch) contributes
// nothing and is not an error.
func Aggregate(series []models.ExchangeSeries) models.UnifiedSeries {
	volumeByDate := make(map[string]float64)
	byExchange := make(map[string]map[string]float64)
	pairsByExchange := make(map[string][]string)

	for _, s := range series {
		if s.Exchange == "" {
			continue
		}
		if len(s.Pairs) > 0 {
			pairsByExchange[s.Exchange] = append([]string(nil), s.Pairs...)
		}
		for _, p := range s.DailyVolume {
			volumeByDate[p.Date] += p.Volume
			if byExchange[p.Date] == nil {
				byExchange[p.Date] = make(map[string]float64)
			}
			byExchange[p.Date][s.Exchange] += p.Volume
		}
	}

	dates := make([]string, 0, len(volumeByDate))
	for d := range volumeByDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	points := make([]models.DailyVolumePoint, 0, len(dates))
	for _, d := range dates {
		points = append(points, models.DailyVolumePoint{
			Date:       d,
			Volume:     volumeByDate[d],
			ByExchange: byExchange[d],
		})
	}

	return models.UnifiedSeries{
		Points:          points,
		PairsByExchange: pairsByExchange,
	}
}
