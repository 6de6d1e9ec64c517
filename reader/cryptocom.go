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

// Cryptocom fetches USDG spot data from the Crypto.com Exchange v1 REST API.
type Cryptocom struct {
	base
	log *logger.Log
}

func NewCryptocom(src appconfig.ExchangeSourceConfig, bookLimit int) *Cryptocom {
	return &Cryptocom{base: newBase("cryptocom", src, bookLimit), log: logger.GetLogger()}
}

type cryptocomInstrumentsResp struct {
	Code   int `json:"code"`
	Result struct {
		Data []struct {
			Symbol        string `json:"symbol"`
			BaseCcy       string `json:"base_ccy"`
			QuoteCcy      string `json:"quote_ccy"`
			Tradable      bool   `json:"tradable"`
			InstrumentType string `json:"inst_type"`
		} `json:"data"`
	} `json:"result"`
}

type cryptocomCandleResp struct {
	Code   int `json:"code"`
	Result struct {
		Data []struct {
			T int64  `json:"t"`
			O string `json:"o"`
			C string `json:"c"`
			V string `json:"v"`
		} `json:"data"`
	} `json:"result"`
}

type cryptocomBookResp struct {
	Code   int `json:"code"`
	Result struct {
		Data []struct {
			Bids [][]string `json:"bids"`
			Asks [][]string `json:"asks"`
		} `json:"data"`
	} `json:"result"`
}

func (c *Cryptocom) USDGPairs(ctx context.Context) ([]models.PairInfo, error) {
	body, err := c.get(ctx, "/v1/public/get-instruments")
	if err != nil {
		return nil, err
	}
	var resp cryptocomInstrumentsResp
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode instruments: %w", err)
	}
	if resp.Code != 0 {
		return nil, fmt.Errorf("cryptocom error code %d", resp.Code)
	}

	var pairs []models.PairInfo
	for _, inst := range resp.Result.Data {
		if !inst.Tradable || inst.InstrumentType != "CCY_PAIR" {
			continue
		}
		if inst.BaseCcy == "USDG" || inst.QuoteCcy == "USDG" {
			pairs = append(pairs, models.PairInfo{Symbol: inst.Symbol, Display: strings.ReplaceAll(inst.Symbol, "_", "/")})
		}
	}
	return pairs, nil
}

func (c *Cryptocom) AggregatedVolume(ctx context.Context) (models.ExchangeSeries, error) {
	pairs, err := c.USDGPairs(ctx)
	if err != nil {
		return models.ExchangeSeries{}, err
	}

	usdByDate := make(map[string]float64)
	names := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		names = append(names, pair.Display)
		if err := c.accumulateCandles(ctx, pair.Symbol, usdByDate); err != nil {
			c.log.WithComponent("cryptocom_reader").WithError(err).WithFields(logger.Fields{"pair": pair.Symbol}).Warn("failed to fetch candlestick")
		}
	}
	return seriesFromDays(c.exchange, names, usdByDate), nil
}

func (c *Cryptocom) accumulateCandles(ctx context.Context, symbol string, usdByDate map[string]float64) error {
	body, err := c.get(ctx, fmt.Sprintf("/v1/public/get-candlestick?instrument_name=%s&timeframe=1D&count=%d", symbol, c.days))
	if err != nil {
		return err
	}
	var resp cryptocomCandleResp
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("failed to decode candlestick: %w", err)
	}
	if resp.Code != 0 {
		return fmt.Errorf("cryptocom error code %d", resp.Code)
	}
	logger.IncrementVolumeRead(len(body))
	// v is base-asset volume, so convert with that candle's close.
	for _, row := range resp.Result.Data {
		closePrice, err := strconv.ParseFloat(row.C, 64)
		if err != nil {
			continue
		}
		volume, err := strconv.ParseFloat(row.V, 64)
		if err != nil {
			continue
		}
		usdByDate[dayString(row.T/1000)] += volume * closePrice
	}
	return nil
}

func (c *Cryptocom) Orderbook(ctx context.Context, pair string) (models.Orderbook, error) {
	body, err := c.get(ctx, fmt.Sprintf("/v1/public/get-book?instrument_name=%s&depth=%d", pair, c.bookLimit))
	if err != nil {
		return models.Orderbook{}, err
	}
	var resp cryptocomBookResp
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.Orderbook{}, fmt.Errorf("failed to decode book: %w", err)
	}
	if resp.Code != 0 {
		return models.Orderbook{}, fmt.Errorf("cryptocom error code %d", resp.Code)
	}

	book := models.Orderbook{Exchange: c.exchange, Pair: pair}
	if len(resp.Result.Data) > 0 {
		book.Bids = parseLevels(resp.Result.Data[0].Bids)
		book.Asks = parseLevels(resp.Result.Data[0].Asks)
	}
	logger.IncrementDepthRead(len(body))
	return book, nil
}
