package reader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	appconfig "usdgflow/config"
	"usdgflow/models"
)

// Client is the per-exchange collaborator consumed by the pipeline. Each
// implementation returns normalized data: daily volume already converted to
// USD, dates as zero-padded YYYY-MM-DD, bids descending and asks ascending.
// Any call may fail; callers degrade to empty results rather than propagate.
type Client interface {
	Exchange() string
	AggregatedVolume(ctx context.Context) (models.ExchangeSeries, error)
	USDGPairs(ctx context.Context) ([]models.PairInfo, error)
	Orderbook(ctx context.Context, pair string) (models.Orderbook, error)
}

// Exchanges is the fixed roster of venues, in display order.
var Exchanges = []string{"kraken", "gate", "bitmart", "bullish", "cryptocom", "bitget"}

// BuildClients constructs one client per enabled exchange in roster order.
func BuildClients(cfg *appconfig.Config) []Client {
	var clients []Client
	for _, exchange := range Exchanges {
		src, ok := cfg.Source.ByExchange(exchange)
		if !ok || !src.Enabled {
			continue
		}
		limit := cfg.Depth.Limit
		switch exchange {
		case "kraken":
			clients = append(clients, NewKraken(src, limit))
		case "gate":
			clients = append(clients, NewGate(src, limit))
		case "bitmart":
			clients = append(clients, NewBitmart(src, limit))
		case "bullish":
			clients = append(clients, NewBullish(src, limit))
		case "cryptocom":
			clients = append(clients, NewCryptocom(src, limit))
		case "bitget":
			clients = append(clients, NewBitget(src, limit))
		}
	}
	return clients
}

// base carries the shared HTTP plumbing for one venue.
type base struct {
	exchange  string
	baseURL   string
	days      int
	bookLimit int
	client    *http.Client
	limiter   *rate.Limiter
}

func newBase(exchange string, src appconfig.ExchangeSourceConfig, bookLimit int) base {
	timeout := time.Duration(src.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	rps := src.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	days := src.Days
	if days <= 0 {
		days = 35
	}
	if bookLimit <= 0 {
		bookLimit = 100
	}
	return base{
		exchange:  exchange,
		baseURL:   src.BaseURL,
		days:      days,
		bookLimit: bookLimit,
		client:    &http.Client{Timeout: timeout},
		limiter:   rate.NewLimiter(rate.Limit(rps), 1),
	}
}

func (b *base) Exchange() string {
	return b.exchange
}

// get performs a rate-limited GET against the venue and returns the body.
func (b *base) get(ctx context.Context, path string) ([]byte, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "usdgflow/1.0")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

// parseLevels converts [[price, qty, ...]] string arrays into sorted entries.
func parseLevels(raw [][]string) []models.OrderbookEntry {
	entries := make([]models.OrderbookEntry, 0, len(raw))
	for _, level := range raw {
		if len(level) < 2 {
			continue
		}
		price, err := strconv.ParseFloat(level[0], 64)
		if err != nil {
			continue
		}
		qty, err := strconv.ParseFloat(level[1], 64)
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

// dayString formats a unix timestamp (seconds) as a canonical calendar date.
func dayString(unixSec int64) string {
	return time.Unix(unixSec, 0).UTC().Format("2006-01-02")
}

// seriesFromDays builds a date-sorted ExchangeSeries from per-date USD sums.
func seriesFromDays(exchange string, pairs []string, usdByDate map[string]float64) models.ExchangeSeries {
	series := models.ExchangeSeries{Exchange: exchange, Pairs: pairs}
	dates := make([]string, 0, len(usdByDate))
	for d := range usdByDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	for _, d := range dates {
		series.DailyVolume = append(series.DailyVolume, models.ExchangeDayPoint{Date: d, Volume: usdByDate[d]})
	}
	return series
}
