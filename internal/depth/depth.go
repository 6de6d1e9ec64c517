package depth

import (
	"strings"

	"usdgflow/models"
)

// Basis-point bands per pair class. Stablecoin pairs trade tight, so their
// bands sit much closer to mid.
var (
	StablecoinBands = []int{2, 5, 10, 100}
	RiskBands       = []int{10, 25, 50, 100}
)

// stablecoins is the fixed set used to classify the non-USDG leg of a pair.
var stablecoins = map[string]struct{}{
	"USDT":  {},
	"USDC":  {},
	"DAI":   {},
	"USD":   {},
	"EUR":   {},
	"PYUSD": {},
	"TUSD":  {},
	"USDP":  {},
	"FDUSD": {},
}

// Classify types a USDG pair by its non-USDG leg. A single leading 'Z' or 'X'
// asset-code prefix (Kraken-style, e.g. ZUSD, XXBT) is stripped from each leg
// before matching against the stablecoin set.
func Classify(pair string) models.PairType {
	for _, leg := range legs(pair) {
		if _, ok := stablecoins[normalizeLeg(leg)]; ok {
			return models.PairTypeStablecoin
		}
	}
	return models.PairTypeRisk
}

// Bands returns the depth band levels for a pair class.
func Bands(pairType models.PairType) []int {
	if pairType == models.PairTypeStablecoin {
		return StablecoinBands
	}
	return RiskBands
}

// Calculate converts one orderbook snapshot into a DepthRow. Bids must be
// sorted descending and asks ascending; the per-band scan walks outward from
// the best price and stops at the first level beyond the bound, so sortedness
// is a precondition, not something re-checked here. Returns false when either
// side of the book is empty: such pairs are excluded, not zero-filled.
func Calculate(book models.Orderbook) (models.DepthRow, bool) {
	if len(book.Bids) == 0 || len(book.Asks) == 0 {
		return models.DepthRow{}, false
	}

	bestBid := book.Bids[0].Price
	bestAsk := book.Asks[0].Price
	mid := (bestBid + bestAsk) / 2
	if mid == 0 {
		return models.DepthRow{}, false
	}
	spreadBps := (bestAsk - bestBid) / mid * 10000

	pairType := Classify(book.Pair)
	bands := Bands(pairType)

	row := models.DepthRow{
		Exchange:  book.Exchange,
		Pair:      book.Pair,
		PairType:  pairType,
		MidPrice:  mid,
		SpreadBps: spreadBps,
		BpsLevels: bands,
		BidDepth:  make(map[int]float64, len(bands)),
		AskDepth:  make(map[int]float64, len(bands)),
	}

	for _, level := range bands {
		bound := mid * (1 - float64(level)/10000)
		sum := 0.0
		for _, bid := range book.Bids {
			if bid.Price < bound {
				break
			}
			sum += bid.Price * bid.Quantity
		}
		row.BidDepth[level] = sum

		bound = mid * (1 + float64(level)/10000)
		sum = 0.0
		for _, ask := range book.Asks {
			if ask.Price > bound {
				break
			}
			sum += ask.Price * ask.Quantity
		}
		row.AskDepth[level] = sum
	}

	return row, true
}

// legs splits a pair symbol into its two asset legs. Separator forms
// (USDG/USD, USDG_USDT, USDG-BTC) split directly; joined forms fall back to
// trimming the USDG leg off either end.
func legs(pair string) []string {
	upper := strings.ToUpper(strings.TrimSpace(pair))
	for _, sep := range []string{"/", "_", "-"} {
		if parts := strings.Split(upper, sep); len(parts) == 2 {
			return parts
		}
	}
	if other := strings.TrimPrefix(upper, "USDG"); other != upper && other != "" {
		return []string{"USDG", other}
	}
	if other := strings.TrimSuffix(upper, "USDG"); other != upper && other != "" {
		return []string{other, "USDG"}
	}
	return []string{upper}
}

// normalizeLeg uppercases a leg and strips a single leading venue prefix
// character when the remainder is still a plausible asset code.
func normalizeLeg(leg string) string {
	leg = strings.ToUpper(strings.TrimSpace(leg))
	if len(leg) >= 4 && (leg[0] == 'Z' || leg[0] == 'X') {
		if _, ok := stablecoins[leg[1:]]; ok {
			return leg[1:]
		}
	}
	return leg
}
