package models

// OrderbookEntry represents a single price level in the orderbook.
type OrderbookEntry struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
}

// Orderbook is one normalized snapshot of resting orders for a pair.
// Bids are sorted descending by price, asks ascending; readers must return
// them in that order and downstream code relies on it.
type Orderbook struct {
	Exchange string           `json:"exchange"`
	Pair     string           `json:"pair"`
	Bids     []OrderbookEntry `json:"bids"`
	Asks     []OrderbookEntry `json:"asks"`
}

// PairType partitions USDG pairs by the nature of the non-USDG leg.
type PairType string

const (
	PairTypeStablecoin PairType = "stablecoin"
	PairTypeRisk       PairType = "risk"
)

// PairInfo describes one listed USDG pair on an exchange.
type PairInfo struct {
	Symbol  string `json:"symbol"`
	Display string `json:"display,omitempty"`
}

// DepthRow is the per-pair depth/spread view. Ephemeral: recomputed per
// request, never persisted.
type DepthRow struct {
	Exchange  string          `json:"exchange"`
	Pair      string          `json:"pair"`
	PairType  PairType        `json:"pairType"`
	MidPrice  float64         `json:"midPrice"`
	SpreadBps float64         `json:"spreadBps"`
	BpsLevels []int           `json:"bpsLevels"`
	BidDepth  map[int]float64 `json:"bidDepth"` // bps level -> cumulative USD
	AskDepth  map[int]float64 `json:"askDepth"`
}
