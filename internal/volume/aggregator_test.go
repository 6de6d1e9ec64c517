package volume

import (
	"math"
	"sort"
	"testing"

	"usdgflow/models"
)

func TestAggregateMergesAndSorts(t *testing.T) {
	series := []models.ExchangeSeries{
		{
			Exchange: "kraken",
			Pairs:    []string{"USDG/USD", "BTC/USDG"},
			DailyVolume: []models.ExchangeDayPoint{
				{Date: "2024-01-02", Volume: 120},
				{Date: "2024-01-01", Volume: 60},
			},
		},
		{
			Exchange: "gate",
			Pairs:    []string{"USDG_USDT"},
			DailyVolume: []models.ExchangeDayPoint{
				{Date: "2024-01-01", Volume: 40},
				{Date: "2024-01-03", Volume: 10},
			},
		},
	}

	u := Aggregate(series)

	if len(u.Points) != 3 {
		t.Fatalf("expected 3 dates, got %d", len(u.Points))
	}
	if !sort.SliceIsSorted(u.Points, func(i, j int) bool { return u.Points[i].Date < u.Points[j].Date }) {
		t.Fatalf("points not sorted ascending: %+v", u.Points)
	}
	if u.Points[0].Date != "2024-01-01" || u.Points[0].Volume != 100 {
		t.Errorf("unexpected first point: %+v", u.Points[0])
	}
	if v := u.Points[1].ByExchange["kraken"]; v != 120 {
		t.Errorf("kraken attribution on day 2 = %v, want 120", v)
	}
	if _, ok := u.Points[2].ByExchange["kraken"]; ok {
		t.Errorf("kraken should be absent on 2024-01-03")
	}
	if got := u.TotalPairs(); got != 3 {
		t.Errorf("TotalPairs = %d, want 3 (no cross-exchange dedup)", got)
	}
}

// Every date's total must equal the sum of its per-exchange contributions.
func TestAggregateVolumeEqualsAttributionSum(t *testing.T) {
	series := []models.ExchangeSeries{
		{Exchange: "kraken", DailyVolume: []models.ExchangeDayPoint{{Date: "2024-02-01", Volume: 11.5}, {Date: "2024-02-02", Volume: 3.25}}},
		{Exchange: "gate", DailyVolume: []models.ExchangeDayPoint{{Date: "2024-02-02", Volume: 9.75}}},
		{Exchange: "bitmart", DailyVolume: []models.ExchangeDayPoint{{Date: "2024-02-01", Volume: 0}}},
	}

	u := Aggregate(series)
	for _, p := range u.Points {
		sum := 0.0
		for _, v := range p.ByExchange {
			sum += v
		}
		if math.Abs(sum-p.Volume) > 1e-9 {
			t.Errorf("date %s: volume %v != attribution sum %v", p.Date, p.Volume, sum)
		}
	}
}

func TestAggregateEmptyAndFailedSeries(t *testing.T) {
	series := []models.ExchangeSeries{
		{Exchange: "kraken"},
		{},
	}
	u := Aggregate(series)
	if len(u.Points) != 0 {
		t.Fatalf("expected no points, got %d", len(u.Points))
	}
	if u.TotalPairs() != 0 {
		t.Fatalf("expected no pairs, got %d", u.TotalPairs())
	}
}

func TestAggregateSameExchangeDateAccumulates(t *testing.T) {
	series := []models.ExchangeSeries{
		{Exchange: "gate", DailyVolume: []models.ExchangeDayPoint{
			{Date: "2024-03-01", Volume: 5},
			{Date: "2024-03-01", Volume: 7},
		}},
	}
	u := Aggregate(series)
	if len(u.Points) != 1 || u.Points[0].Volume != 12 {
		t.Fatalf("expected accumulated 12, got %+v", u.Points)
	}
	if u.Points[0].ByExchange["gate"] != 12 {
		t.Fatalf("expected gate attribution 12, got %v", u.Points[0].ByExchange["gate"])
	}
}
