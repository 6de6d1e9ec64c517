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

// Bitmart fetches USDG spot data from the BitMart cloud REST API.
type Bitmart struct {
	base
	log *logger.Log
}

func NewBitmart(src appconfig.ExchangeSourceConfig, bookLimit int) *Bitmart {
	return &Bitmart{base: newBase("bitmart", src, bookLimit), log: logger.GetLogger()}
}

type bitmartSymbolsResp struct {
	Code int `json:"code"`
	Data struct {
		Symbols []struct {
			Symbol      string `json:"symbol"`
			BaseCurrency string `json:"base_currency"`
			QuoteCurrency string `json:"quote_currency"`
			TradeStatus string `json:"trade_status"`
		} `json:"symbols"`
	} `json:"data"`
}

type bitmartKlinesResp struct {
	Code int        `json:"code"`
	Data [][]string `json:"data"`
}

type bitmartBookResp struct {
	Code int `json:"code"`
	Data struct {
		Bids [][]string `json:"bids"`
		Asks [][]string `json:"asks"`
	} `json:"data"`
}

func (b *Bitmart) USDGPairs(ctx context.Context) ([]models.PairInfo, error) {
	body, err := b.get(ctx, "/spot/v1/symbols/details")
	if err != nil {
		return nil, err
	}
	var resp bitmartSymbolsResp
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode symbols: %w", err)
	}
	if resp.Code != 1000 {
		return nil, fmt.Errorf("bitmart error code %d", resp.Code)
	}

	var pairs []models.PairInfo
	for _, s := range resp.Data.Symbols {
		if s.TradeStatus != "trading" {
			continue
		}
		if s.BaseCurrency == "USDG" || s.QuoteCurrency == "USDG" {
			pairs = append(pairs, models.PairInfo{Symbol: s.Symbol, Display: strings.ReplaceAll(s.Symbol, "_", "/")})
		}
	}
	return pairs, nil
}

func (b *Bitmart) AggregatedVolume(ctx context.Context) (models.ExchangeSeries, error) {
	pairs, err := b.USDGPairs(ctx)
	if err != nil {
		return models.ExchangeSeries{}, err
	}

	usdByDate := make(map[string]float64)
	names := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		names = append(names, pair.Display)
		if err := b.accumulateKlines(ctx, pair.Symbol, usdByDate); err != nil {
			b.log.WithComponent("bitmart_reader").WithError(err).WithFields(logger.Fields{"pair": pair.Symbol}).Warn("failed to fetch klines")
		}
	}
	return seriesFromDays(b.exchange, names, usdByDate), nil
}

func (b *Bitmart) accumulateKlines(ctx context.Context, symbol string, usdByDate map[string]float64) error {
	body, err := b.get(ctx, fmt.Sprintf("/spot/quotation/v3/lite-klines?symbol=%s&step=1440&limit=%d", symbol, b.days))
	if err != nil {
		return err
	}
	var resp bitmartKlinesResp
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("failed to decode klines: %w", err)
	}
	if resp.Code != 1000 {
		return fmt.Errorf("bitmart error code %d", resp.Code)
	}
	logger.IncrementVolumeRead(len(body))
	// Rows are [timestamp, open, high, low, close, base_volume, quote_volume].
	for _, row := range resp.Data {
		if len(row) < 7 {
			continue
		}
		ts, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			continue
		}
		quoteVolume, err := strconv.ParseFloat(row[6], 64)
		if err != nil {
			continue
		}
		usdByDate[dayString(ts)] += quoteVolume
	}
	return nil
}

func (b *Bitmart) Orderbook(ctx context.Context, pair string) (models.Orderbook, error) {
	body, err := b.get(ctx, fmt.Sprintf("/spot/quotation/v3/books?symbol=%s&limit=%d", pair, b.bookLimit))
	if err != nil {
		return models.Orderbook{}, err
	}
	var resp bitmartBookResp
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.Orderbook{}, fmt.Errorf("failed to decode book: %w", err)
	}
	if resp.Code != 1000 {
		return models.Orderbook{}, fmt.Errorf("bitmart error code %d", resp.Code)
	}
	logger.IncrementDepthRead(len(body))
	return models.Orderbook{
		Exchange: b.exchange,
		Pair:     pair,
		Bids:     parseLevels(resp.Data.Bids),
		Asks:     parseLevels(resp.Data.Asks),
	}, nil
}
