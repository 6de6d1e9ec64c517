package reader

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	appconfig "usdgflow/config"
	"usdgflow/logger"
	"usdgflow/models"
)

// Bullish fetches USDG spot data from the Bullish trading REST API.
type Bullish struct {
	base
	log *logger.Log
}

func NewBullish(src appconfig.ExchangeSourceConfig, bookLimit int) *Bullish {
	return &Bullish{base: newBase("bullish", src, bookLimit), log: logger.GetLogger()}
}

type bullishMarket struct {
	Symbol        string `json:"symbol"`
	BaseSymbol    string `json:"baseSymbol"`
	QuoteSymbol   string `json:"quoteSymbol"`
	MarketEnabled bool   `json:"marketEnabled"`
}

type bullishCandle struct {
	Open            string `json:"open"`
	Close           string `json:"close"`
	Volume          string `json:"volume"`
	QuoteVolume     string `json:"quoteVolume"`
	CreatedAtTime   string `json:"createdAtDatetime"`
	CreatedAtMillis string `json:"createdAtTimestamp"`
}

type bullishBookLevel struct {
	Price         string `json:"price"`
	PriceLevelQty string `json:"priceLevelQuantity"`
}

type bullishBookResp struct {
	Bids []bullishBookLevel `json:"bids"`
	Asks []bullishBookLevel `json:"asks"`
}

func (bl *Bullish) USDGPairs(ctx context.Context) ([]models.PairInfo, error) {
	body, err := bl.get(ctx, "/trading-api/v1/markets")
	if err != nil {
		return nil, err
	}
	var markets []bullishMarket
	if err := json.Unmarshal(body, &markets); err != nil {
		return nil, fmt.Errorf("failed to decode markets: %w", err)
	}

	var pairs []models.PairInfo
	for _, m := range markets {
		if !m.MarketEnabled {
			continue
		}
		if m.BaseSymbol == "USDG" || m.QuoteSymbol == "USDG" {
			pairs = append(pairs, models.PairInfo{Symbol: m.Symbol, Display: strings.ReplaceAll(m.Symbol, "-", "/")})
		}
	}
	return pairs, nil
}

func (bl *Bullish) AggregatedVolume(ctx context.Context) (models.ExchangeSeries, error) {
	pairs, err := bl.USDGPairs(ctx)
	if err != nil {
		return models.ExchangeSeries{}, err
	}

	usdByDate := make(map[string]float64)
	names := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		names = append(names, pair.Display)
		if err := bl.accumulateCandles(ctx, pair.Symbol, usdByDate); err != nil {
			bl.log.WithComponent("bullish_reader").WithError(err).WithFields(logger.Fields{"pair": pair.Symbol}).Warn("failed to fetch candles")
		}
	}
	return seriesFromDays(bl.exchange, names, usdByDate), nil
}

func (bl *Bullish) accumulateCandles(ctx context.Context, symbol string, usdByDate map[string]float64) error {
	now := time.Now().UTC()
	from := now.AddDate(0, 0, -bl.days)
	path := fmt.Sprintf("/trading-api/v1/markets/%s/candle?timeBucket=1d&createdAtDatetime[gte]=%s&createdAtDatetime[lte]=%s",
		symbol, from.Format(time.RFC3339), now.Format(time.RFC3339))
	body, err := bl.get(ctx, path)
	if err != nil {
		return err
	}
	var candles []bullishCandle
	if err := json.Unmarshal(body, &candles); err != nil {
		return fmt.Errorf("failed to decode candles: %w", err)
	}
	logger.IncrementVolumeRead(len(body))
	for _, c := range candles {
		millis, err := strconv.ParseInt(c.CreatedAtMillis, 10, 64)
		if err != nil {
			continue
		}
		quoteVolume, err := strconv.ParseFloat(c.QuoteVolume, 64)
		if err != nil {
			continue
		}
		usdByDate[dayString(millis/1000)] += quoteVolume
	}
	return nil
}

func (bl *Bullish) Orderbook(ctx context.Context, pair string) (models.Orderbook, error) {
	body, err := bl.get(ctx, fmt.Sprintf("/trading-api/v1/markets/%s/orderbook/hybrid?depth=%d", pair, bl.bookLimit))
	if err != nil {
		return models.Orderbook{}, err
	}
	var resp bullishBookResp
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.Orderbook{}, fmt.Errorf("failed to decode orderbook: %w", err)
	}
	logger.IncrementDepthRead(len(body))
	return models.Orderbook{
		Exchange: bl.exchange,
		Pair:     pair,
		Bids:     bullishLevels(resp.Bids),
		Asks:     bullishLevels(resp.Asks),
	}, nil
}

func bullishLevels(raw []bullishBookLevel) []models.OrderbookEntry {
	entries := make([]models.OrderbookEntry, 0, len(raw))
	for _, level := range raw {
		price, err := strconv.ParseFloat(level.Price, 64)
		if err != nil {
			continue
		}
		qty, err := strconv.ParseFloat(level.PriceLevelQty, 64)
		if err != nil {
			continue
		}
		if price == 0 || qty == 0 {
			continue
		}
		entries = append(entries, models.OrderbookEntry{Price: price, Quantity: qty})
	}
	return entries
}
