package reader

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	appconfig "usdgflow/config"
	"usdgflow/logger"
	"usdgflow/models"
)

// Gate fetches USDG spot data from the Gate.io v4 REST API.
type Gate struct {
	base
	log *logger.Log
}

func NewGate(src appconfig.ExchangeSourceConfig, bookLimit int) *Gate {
	return &Gate{base: newBase("gate", src, bookLimit), log: logger.GetLogger()}
}

type gateCurrencyPair struct {
	ID          string `json:"id"`
	Base        string `json:"base"`
	Quote       string `json:"quote"`
	TradeStatus string `json:"trade_status"`
}

type gateBookResp struct {
	Bids [][]string `json:"bids"`
	Asks [][]string `json:"asks"`
}

func (g *Gate) USDGPairs(ctx context.Context) ([]models.PairInfo, error) {
	body, err := g.get(ctx, "/spot/currency_pairs")
	if err != nil {
		return nil, err
	}
	var all []gateCurrencyPair
	if err := json.Unmarshal(body, &all); err != nil {
		return nil, fmt.Errorf("failed to decode currency pairs: %w", err)
	}

	var pairs []models.PairInfo
	for _, p := range all {
		if p.TradeStatus != "tradable" {
			continue
		}
		if p.Base == "USDG" || p.Quote == "USDG" {
			pairs = append(pairs, models.PairInfo{Symbol: p.ID, Display: strings.ReplaceAll(p.ID, "_", "/")})
		}
	}
	return pairs, nil
}

func (g *Gate) AggregatedVolume(ctx context.Context) (models.ExchangeSeries, error) {
	pairs, err := g.USDGPairs(ctx)
	if err != nil {
		return models.ExchangeSeries{}, err
	}

	usdByDate := make(map[string]float64)
	names := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		names = append(names, pair.Display)
		if err := g.accumulateCandles(ctx, pair.Symbol, usdByDate); err != nil {
			g.log.WithComponent("gate_reader").WithError(err).WithFields(logger.Fields{"pair": pair.Symbol}).Warn("failed to fetch candlesticks")
		}
	}
	return seriesFromDays(g.exchange, names, usdByDate), nil
}

func (g *Gate) accumulateCandles(ctx context.Context, symbol string, usdByDate map[string]float64) error {
	body, err := g.get(ctx, fmt.Sprintf("/spot/candlesticks?currency_pair=%s&interval=1d&limit=%d", symbol, g.days))
	if err != nil {
		return err
	}
	// Rows are [timestamp, quote_volume, close, high, low, open, base_volume, is_closed].
	var rows [][]string
	if err := json.Unmarshal(body, &rows); err != nil {
		return fmt.Errorf("failed to decode candlesticks: %w", err)
	}
	logger.IncrementVolumeRead(len(body))
	for _, row := range rows {
		if len(row) < 3 {
			continue
		}
		ts, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			continue
		}
		quoteVolume, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			continue
		}
		usdByDate[dayString(ts)] += quoteVolume
	}
	return nil
}

func (g *Gate) Orderbook(ctx context.Context, pair string) (models.Orderbook, error) {
	body, err := g.get(ctx, fmt.Sprintf("/spot/order_book?currency_pair=%s&limit=%d", pair, g.bookLimit))
	if err != nil {
		return models.Orderbook{}, err
	}
	var resp gateBookResp
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.Orderbook{}, fmt.Errorf("failed to decode order book: %w", err)
	}
	logger.IncrementDepthRead(len(body))
	return models.Orderbook{
		Exchange: g.exchange,
		Pair:     pair,
		Bids:     parseLevels(resp.Bids),
		Asks:     parseLevels(resp.Asks),
	}, nil
}
