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

// Bitget fetches USDG spot data from the Bitget v2 REST API.
type Bitget struct {
	base
	log *logger.Log
}

func NewBitget(src appconfig.ExchangeSourceConfig, bookLimit int) *Bitget {
	return &Bitget{base: newBase("bitget", src, bookLimit), log: logger.GetLogger()}
}

type bitgetSymbolsResp struct {
	Code string `json:"code"`
	Data []struct {
		Symbol    string `json:"symbol"`
		BaseCoin  string `json:"baseCoin"`
		QuoteCoin string `json:"quoteCoin"`
		Status    string `json:"status"`
	} `json:"data"`
}

type bitgetCandlesResp struct {
	Code string     `json:"code"`
	Data [][]string `json:"data"`
}

type bitgetBookResp struct {
	Code string `json:"code"`
	Data struct {
		Bids [][]string `json:"bids"`
		Asks [][]string `json:"asks"`
	} `json:"data"`
}

func (b *Bitget) USDGPairs(ctx context.Context) ([]models.PairInfo, error) {
	body, err := b.get(ctx, "/api/v2/spot/public/symbols")
	if err != nil {
		return nil, err
	}
	var resp bitgetSymbolsResp
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode symbols: %w", err)
	}
	if resp.Code != "00000" {
		return nil, fmt.Errorf("bitget error code %s", resp.Code)
	}

	var pairs []models.PairInfo
	for _, s := range resp.Data {
		if s.Status != "online" {
			continue
		}
		if s.BaseCoin == "USDG" || s.QuoteCoin == "USDG" {
			display := s.BaseCoin + "/" + s.QuoteCoin
			pairs = append(pairs, models.PairInfo{Symbol: s.Symbol, Display: display})
		}
	}
	return pairs, nil
}

func (b *Bitget) AggregatedVolume(ctx context.Context) (models.ExchangeSeries, error) {
	pairs, err := b.USDGPairs(ctx)
	if err != nil {
		return models.ExchangeSeries{}, err
	}

	usdByDate := make(map[string]float64)
	names := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		names = append(names, pair.Display)
		if err := b.accumulateCandles(ctx, pair.Symbol, usdByDate); err != nil {
			b.log.WithComponent("bitget_reader").WithError(err).WithFields(logger.Fields{"pair": pair.Symbol}).Warn("failed to fetch candles")
		}
	}
	return seriesFromDays(b.exchange, names, usdByDate), nil
}

func (b *Bitget) accumulateCandles(ctx context.Context, symbol string, usdByDate map[string]float64) error {
	body, err := b.get(ctx, fmt.Sprintf("/api/v2/spot/market/candles?symbol=%s&granularity=1day&limit=%d", symbol, b.days))
	if err != nil {
		return err
	}
	var resp bitgetCandlesResp
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("failed to decode candles: %w", err)
	}
	if resp.Code != "00000" {
		return fmt.Errorf("bitget error code %s", resp.Code)
	}
	logger.IncrementVolumeRead(len(body))
	// Rows are [timestamp_ms, open, high, low, close, base_volume, usdt_volume, quote_volume].
	for _, row := range resp.Data {
		if len(row) < 7 {
			continue
		}
		millis, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			continue
		}
		usdVolume, err := strconv.ParseFloat(row[6], 64)
		if err != nil {
			continue
		}
		usdByDate[dayString(millis/1000)] += usdVolume
	}
	return nil
}

func (b *Bitget) Orderbook(ctx context.Context, pair string) (models.Orderbook, error) {
	symbol := strings.ReplaceAll(pair, "/", "")
	body, err := b.get(ctx, fmt.Sprintf("/api/v2/spot/market/orderbook?symbol=%s&type=step0&limit=%d", symbol, b.bookLimit))
	if err != nil {
		return models.Orderbook{}, err
	}
	var resp bitgetBookResp
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.Orderbook{}, fmt.Errorf("failed to decode orderbook: %w", err)
	}
	if resp.Code != "00000" {
		return models.Orderbook{}, fmt.Errorf("bitget error code %s", resp.Code)
	}
	logger.IncrementDepthRead(len(body))
	return models.Orderbook{
		Exchange: b.exchange,
		Pair:     pair,
		Bids:     parseLevels(resp.Data.Bids),
		Asks:     parseLevels(resp.Data.Asks),
	}, nil
}
