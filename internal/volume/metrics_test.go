package volume

import (
	"fmt"
	"reflect"
	"testing"

	"usdgflow/models"
)

func seriesOf(points ...models.DailyVolumePoint) models.UnifiedSeries {
	return models.UnifiedSeries{Points: points}
}

func TestWindowVolumeShortSeries(t *testing.T) {
	u := seriesOf(
		models.DailyVolumePoint{Date: "2024-01-01", Volume: 100, ByExchange: map[string]float64{"a": 60, "b": 40}},
		models.DailyVolumePoint{Date: "2024-01-02", Volume: 200, ByExchange: map[string]float64{"a": 120, "b": 80}},
	)
	snap := Compute(u)
	if snap.Volume7Day != 300 {
		t.Errorf("Volume7Day = %v, want 300 (sum over available entries)", snap.Volume7Day)
	}
	if snap.Volume30Day != 300 {
		t.Errorf("Volume30Day = %v, want 300", snap.Volume30Day)
	}
	if snap.ActiveExchanges != 2 {
		t.Errorf("ActiveExchanges = %d, want 2", snap.ActiveExchanges)
	}
}

func TestWindowVolumePositional(t *testing.T) {
	points := make([]models.DailyVolumePoint, 0, 40)
	for i := 0; i < 40; i++ {
		points = append(points, models.DailyVolumePoint{
			Date:       fmt.Sprintf("2024-01-%02d", i+1),
			Volume:     1,
			ByExchange: map[string]float64{"a": 1},
		})
	}
	if got := WindowVolume(points, 7); got != 7 {
		t.Errorf("7-entry window = %v, want 7", got)
	}
	if got := WindowVolume(points, 30); got != 30 {
		t.Errorf("30-entry window = %v, want 30", got)
	}
}

func TestComputeIdempotent(t *testing.T) {
	u := seriesOf(
		models.DailyVolumePoint{Date: "2024-01-01", Volume: 123.456, ByExchange: map[string]float64{"kraken": 123.456}},
		models.DailyVolumePoint{Date: "2024-01-02", Volume: 7.89, ByExchange: map[string]float64{"gate": 7.89}},
	)
	u.PairsByExchange = map[string][]string{"kraken": {"USDG/USD"}, "gate": {"USDG_USDT", "BTC_USDG"}}

	first := Compute(u)
	second := Compute(u)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("Compute not deterministic: %+v vs %+v", first, second)
	}
	if first.TotalPairs != 3 {
		t.Errorf("TotalPairs = %d, want 3", first.TotalPairs)
	}
}

// The divisor is the constant 30 even when fewer entries exist, so averages
// are deflated early in the series.
func TestExchangeAverageFixedDivisor(t *testing.T) {
	points := []models.DailyVolumePoint{
		{Date: "2024-01-01", Volume: 60_000_000, ByExchange: map[string]float64{"kraken": 60_000_000}},
	}
	averages := ExchangeAverages(points)
	if got := averages["kraken"]; got != 2_000_000 {
		t.Fatalf("average = %v, want 2000000 (60M / fixed 30)", got)
	}
}

func TestThresholdBucketsArePartition(t *testing.T) {
	cases := []struct {
		avg  float64
		want models.ThresholdCounts
	}{
		{999_999, models.ThresholdCounts{}},
		{1_000_000, models.ThresholdCounts{From1Mto5M: 1}},
		{4_999_999, models.ThresholdCounts{From1Mto5M: 1}},
		{5_000_000, models.ThresholdCounts{From5Mto25M: 1}},
		{24_999_999, models.ThresholdCounts{From5Mto25M: 1}},
		{25_000_000, models.ThresholdCounts{Over25M: 1}},
		{250_000_000, models.ThresholdCounts{Over25M: 1}},
	}
	for _, c := range cases {
		got := bucketAverages(map[string]float64{"x": c.avg})
		if got != c.want {
			t.Errorf("avg %v: got %+v, want %+v", c.avg, got, c.want)
		}
		total := got.From1Mto5M + got.From5Mto25M + got.Over25M
		if total > 1 {
			t.Errorf("avg %v mapped to %d buckets", c.avg, total)
		}
	}
}

func TestActiveExchangesStrictlyPositive(t *testing.T) {
	u := seriesOf(
		models.DailyVolumePoint{Date: "2024-01-01", Volume: 10, ByExchange: map[string]float64{"kraken": 10, "gate": 0}},
	)
	snap := Compute(u)
	if snap.ActiveExchanges != 1 {
		t.Fatalf("ActiveExchanges = %d, want 1 (zero sums are inactive)", snap.ActiveExchanges)
	}
}

func TestComputeAsOfCutsWindowAtDate(t *testing.T) {
	points := make([]models.DailyVolumePoint, 0, 10)
	for i := 1; i <= 10; i++ {
		points = append(points, models.DailyVolumePoint{
			Date:       fmt.Sprintf("2024-01-%02d", i),
			Volume:     float64(i),
			ByExchange: map[string]float64{"a": float64(i)},
		})
	}
	u := models.UnifiedSeries{Points: points}

	snap := ComputeAsOf(u, "2024-01-05")
	if snap.Volume7Day != 1+2+3+4+5 {
		t.Errorf("Volume7Day as of day 5 = %v, want 15", snap.Volume7Day)
	}

	// Entries after the cutoff must not leak in.
	full := Compute(u)
	if snap.Volume7Day == full.Volume7Day {
		t.Errorf("as-of snapshot should differ from live snapshot")
	}
}
