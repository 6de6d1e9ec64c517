package reader

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	appconfig "usdgflow/config"
	"usdgflow/logger"
	"usdgflow/models"
)

// Kraken fetches USDG spot data from the Kraken public REST API.
type Kraken struct {
	base
	log *logger.Log
}

func NewKraken(src appconfig.ExchangeSourceConfig, bookLimit int) *Kraken {
	return &Kraken{base: newBase("kraken", src, bookLimit), log: logger.GetLogger()}
}

type krakenAssetPairsResp struct {
	Error  []string `json:"error"`
	Result map[string]struct {
		WSName string `json:"wsname"`
		Base   string `json:"base"`
		Quote  string `json:"quote"`
	} `json:"result"`
}

type krakenOHLCResp struct {
	Error  []string                   `json:"error"`
	Result map[string]json.RawMessage `json:"result"`
}

type krakenDepthResp struct {
	Error  []string `json:"error"`
	Result map[string]struct {
		Bids [][]json.RawMessage `json:"bids"`
		Asks [][]json.RawMessage `json:"asks"`
	} `json:"result"`
}

// USDGPairs lists Kraken pairs with a USDG leg. Kraken keys pairs by an
// internal code while wsname carries the display form.
func (k *Kraken) USDGPairs(ctx context.Context) ([]models.PairInfo, error) {
	body, err := k.get(ctx, "/0/public/AssetPairs")
	if err != nil {
		return nil, err
	}
	var resp krakenAssetPairsResp
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode asset pairs: %w", err)
	}
	if len(resp.Error) > 0 {
		return nil, fmt.Errorf("kraken error: %v", resp.Error)
	}

	var pairs []models.PairInfo
	for code, p := range resp.Result {
		if p.Base == "USDG" || p.Quote == "USDG" {
			pairs = append(pairs, models.PairInfo{Symbol: code, Display: p.WSName})
		}
	}
	return pairs, nil
}

// AggregatedVolume sums daily USD volume across all USDG pairs. Kraken OHLC
// rows report base-asset volume, so each day is converted with that day's
// close price.
func (k *Kraken) AggregatedVolume(ctx context.Context) (models.ExchangeSeries, error) {
	pairs, err := k.USDGPairs(ctx)
	if err != nil {
		return models.ExchangeSeries{}, err
	}

	usdByDate := make(map[string]float64)
	names := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		names = append(names, pair.Display)
		if err := k.accumulateOHLC(ctx, pair.Symbol, usdByDate); err != nil {
			k.log.WithComponent("kraken_reader").WithError(err).WithFields(logger.Fields{"pair": pair.Symbol}).Warn("failed to fetch ohlc")
		}
	}

	series := seriesFromDays(k.exchange, names, usdByDate)
	return series, nil
}

func (k *Kraken) accumulateOHLC(ctx context.Context, pairCode string, usdByDate map[string]float64) error {
	body, err := k.get(ctx, fmt.Sprintf("/0/public/OHLC?pair=%s&interval=1440", pairCode))
	if err != nil {
		return err
	}
	var resp krakenOHLCResp
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("failed to decode ohlc: %w", err)
	}
	if len(resp.Error) > 0 {
		return fmt.Errorf("kraken error: %v", resp.Error)
	}

	for key, raw := range resp.Result {
		if key == "last" {
			continue
		}
		// Rows are [time, open, high, low, close, vwap, volume, count].
		var rows [][]json.RawMessage
		if err := json.Unmarshal(raw, &rows); err != nil {
			return fmt.Errorf("failed to decode ohlc rows: %w", err)
		}
		logger.IncrementVolumeRead(len(body))
		for _, row := range rows {
			if len(row) < 7 {
				continue
			}
			var ts int64
			if err := json.Unmarshal(row[0], &ts); err != nil {
				continue
			}
			closePrice := krakenNumber(row[4])
			volume := krakenNumber(row[6])
			usdByDate[dayString(ts)] += volume * closePrice
		}
	}
	return nil
}

// Orderbook returns the depth snapshot for one pair, bids descending and
// asks ascending as Kraken serves them.
func (k *Kraken) Orderbook(ctx context.Context, pair string) (models.Orderbook, error) {
	body, err := k.get(ctx, fmt.Sprintf("/0/public/Depth?pair=%s&count=%d", pair, k.bookLimit))
	if err != nil {
		return models.Orderbook{}, err
	}
	var resp krakenDepthResp
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.Orderbook{}, fmt.Errorf("failed to decode depth: %w", err)
	}
	if len(resp.Error) > 0 {
		return models.Orderbook{}, fmt.Errorf("kraken error: %v", resp.Error)
	}

	book := models.Orderbook{Exchange: k.exchange, Pair: pair}
	for _, side := range resp.Result {
		book.Bids = krakenLevels(side.Bids)
		book.Asks = krakenLevels(side.Asks)
		break
	}
	logger.IncrementDepthRead(len(body))
	return book, nil
}

// krakenLevels parses [price, volume, timestamp] rows where price and volume
// are JSON strings.
func krakenLevels(raw [][]json.RawMessage) []models.OrderbookEntry {
	entries := make([]models.OrderbookEntry, 0, len(raw))
	for _, level := range raw {
		if len(level) < 2 {
			continue
		}
		price := krakenNumber(level[0])
		qty := krakenNumber(level[1])
		if price == 0 || qty == 0 {
			continue
		}
		entries = append(entries, models.OrderbookEntry{Price: price, Quantity: qty})
	}
	return entries
}

// krakenNumber decodes a value Kraken may serve as either a JSON string or a
// bare number.
func krakenNumber(raw json.RawMessage) float64 {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		v, _ := strconv.ParseFloat(s, 64)
		return v
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err == nil {
		return v
	}
	return 0
}
