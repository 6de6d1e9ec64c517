package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	appconfig "usdgflow/config"
	"usdgflow/internal/cache"
	"usdgflow/internal/history"
	"usdgflow/internal/pipeline"
	"usdgflow/models"
	"usdgflow/reader"
)

type stubClient struct {
	exchange string
	series   models.ExchangeSeries
	pairs    []models.PairInfo
	book     models.Orderbook
}

func (s *stubClient) Exchange() string { return s.exchange }

func (s *stubClient) AggregatedVolume(ctx context.Context) (models.ExchangeSeries, error) {
	return s.series, nil
}

func (s *stubClient) USDGPairs(ctx context.Context) ([]models.PairInfo, error) {
	return s.pairs, nil
}

func (s *stubClient) Orderbook(ctx context.Context, pair string) (models.Orderbook, error) {
	return s.book, nil
}

func newTestServer(t *testing.T) (*Server, *history.Store) {
	t.Helper()
	kraken := &stubClient{
		exchange: "kraken",
		series: models.ExchangeSeries{
			Exchange: "kraken",
			Pairs:    []string{"USDG/USD"},
			DailyVolume: []models.ExchangeDayPoint{
				{Date: "2026-08-29", Volume: 1000},
				{Date: "2026-08-30", Volume: 2000},
			},
		},
		pairs: []models.PairInfo{{Symbol: "USDGZUSD", Display: "USDG/USD"}},
		book: models.Orderbook{
			Exchange: "kraken", Pair: "USDG/USD",
			Bids: []models.OrderbookEntry{{Price: 0.9999, Quantity: 1000}},
			Asks: []models.OrderbookEntry{{Price: 1.0001, Quantity: 1000}},
		},
	}
	gate := &stubClient{
		exchange: "gate",
		series: models.ExchangeSeries{
			Exchange: "gate",
			Pairs:    []string{"XBT/USDG"},
			DailyVolume: []models.ExchangeDayPoint{
				{Date: "2026-08-30", Volume: 500},
			},
		},
		pairs: []models.PairInfo{{Symbol: "XBT_USDG", Display: "XBT/USDG"}},
		book: models.Orderbook{
			Exchange: "gate", Pair: "XBT/USDG",
			Bids: []models.OrderbookEntry{{Price: 49990, Quantity: 1}},
			Asks: []models.OrderbookEntry{{Price: 50010, Quantity: 1}},
		},
	}

	clients := []reader.Client{kraken, gate}
	store := history.NewStore(filepath.Join(t.TempDir(), "history.jsonl"), nil)
	pipe := pipeline.NewPipeline(clients, store)
	table := pipeline.NewDepthTable(clients, appconfig.DepthConfig{PairDelayMs: 1})
	memo := cache.New(time.Minute)

	srv := NewServer(appconfig.HTTPConfig{Enabled: true, Address: ":0"}, pipe, table, store, memo)
	if srv == nil {
		t.Fatal("expected enabled server")
	}
	return srv, store
}

func doRequest(t *testing.T, srv *Server, path string) (*httptest.ResponseRecorder, map[string]json.RawMessage) {
	t.Helper()
	router, err := srv.buildRouter()
	if err != nil {
		t.Fatalf("buildRouter failed: %v", err)
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(w, req)

	var body map[string]json.RawMessage
	if w.Code == http.StatusOK {
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("invalid JSON response for %s: %v", path, err)
		}
	}
	return w, body
}

func TestHandleExchanges(t *testing.T) {
	srv, _ := newTestServer(t)
	w, body := doRequest(t, srv, "/api/exchanges")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var exchanges []string
	if err := json.Unmarshal(body["exchanges"], &exchanges); err != nil {
		t.Fatalf("decode exchanges: %v", err)
	}
	if len(exchanges) != 6 || exchanges[0] != "kraken" {
		t.Errorf("unexpected roster: %v", exchanges)
	}
}

func TestHandleMergedVolume(t *testing.T) {
	srv, _ := newTestServer(t)
	w, body := doRequest(t, srv, "/api/volume")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var points []models.DailyVolumePoint
	if err := json.Unmarshal(body["points"], &points); err != nil {
		t.Fatalf("decode points: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("expected 2 merged points, got %d", len(points))
	}
	// 2026-08-30 merges kraken 2000 + gate 500.
	if points[1].Volume != 2500 {
		t.Errorf("expected merged volume 2500, got %f", points[1].Volume)
	}
	if points[1].ByExchange["gate"] != 500 {
		t.Errorf("expected gate attribution 500, got %f", points[1].ByExchange["gate"])
	}
}

func TestHandleExchangeVolumeUnknown(t *testing.T) {
	srv, _ := newTestServer(t)
	w, _ := doRequest(t, srv, "/api/volume/binance")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown exchange, got %d", w.Code)
	}
}

func TestHandleExchangeVolume(t *testing.T) {
	srv, _ := newTestServer(t)
	w, body := doRequest(t, srv, "/api/volume/kraken")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var points []models.ExchangeDayPoint
	if err := json.Unmarshal(body["points"], &points); err != nil {
		t.Fatalf("decode points: %v", err)
	}
	if len(points) != 2 || points[0].Volume != 1000 || points[1].Volume != 2000 {
		t.Errorf("unexpected kraken points: %+v", points)
	}
}

func TestHandleAssets(t *testing.T) {
	srv, _ := newTestServer(t)
	w, body := doRequest(t, srv, "/api/assets")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var assets map[string][]string
	if err := json.Unmarshal(body["assets"], &assets); err != nil {
		t.Fatalf("decode assets: %v", err)
	}
	if len(assets["USD"]) != 1 || assets["USD"][0] != "kraken" {
		t.Errorf("unexpected USD venues: %v", assets["USD"])
	}
	if len(assets["XBT"]) != 1 || assets["XBT"][0] != "gate" {
		t.Errorf("unexpected XBT venues: %v", assets["XBT"])
	}
}

func TestHandleWeeklyReport(t *testing.T) {
	srv, store := newTestServer(t)
	snapshot := models.MetricsSnapshot{Volume7Day: 3500, Volume30Day: 3500, ActiveExchanges: 2, TotalPairs: 2}
	if err := store.AppendAt(time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC), snapshot); err != nil {
		t.Fatalf("AppendAt failed: %v", err)
	}

	w, body := doRequest(t, srv, "/api/reports/weekly")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var current models.PeriodSummary
	if err := json.Unmarshal(body["current"], &current); err != nil {
		t.Fatalf("decode current: %v", err)
	}
	if current.Metrics.Volume7Day != 3500 {
		t.Errorf("expected 7d volume 3500, got %f", current.Metrics.Volume7Day)
	}
}

func TestHandleDepthGroups(t *testing.T) {
	srv, _ := newTestServer(t)
	w, body := doRequest(t, srv, "/api/depth")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var stable, risk []models.DepthRow
	if err := json.Unmarshal(body["stablecoin"], &stable); err != nil {
		t.Fatalf("decode stablecoin rows: %v", err)
	}
	if err := json.Unmarshal(body["risk"], &risk); err != nil {
		t.Fatalf("decode risk rows: %v", err)
	}
	if len(stable) != 1 || stable[0].Pair != "USDG/USD" {
		t.Errorf("unexpected stablecoin rows: %+v", stable)
	}
	if len(risk) != 1 || risk[0].Pair != "XBT/USDG" {
		t.Errorf("unexpected risk rows: %+v", risk)
	}
}

func TestCounterAsset(t *testing.T) {
	cases := []struct {
		pair string
		want string
	}{
		{"USDG/USD", "USD"},
		{"XBT/USDG", "XBT"},
		{"USDG_USDT", "USDT"},
		{"ETH-USDG", "ETH"},
		{"USDGUSDT", "USDT"},
		{"BTCUSDT", ""},
		{"BTC/USDT", ""},
	}
	for _, tc := range cases {
		if got := counterAsset(tc.pair); got != tc.want {
			t.Errorf("counterAsset(%q) = %q, want %q", tc.pair, got, tc.want)
		}
	}
}

// ctxClient fails any call whose context is already cancelled, mimicking a
// live venue fetch interrupted by a client disconnect.
type ctxClient struct {
	stubClient
}

func (c *ctxClient) AggregatedVolume(ctx context.Context) (models.ExchangeSeries, error) {
	if err := ctx.Err(); err != nil {
		return models.ExchangeSeries{}, err
	}
	return c.stubClient.AggregatedVolume(ctx)
}

func TestCancelledRequestDoesNotPoisonVolumeCache(t *testing.T) {
	client := &ctxClient{stubClient{
		exchange: "kraken",
		series: models.ExchangeSeries{
			Exchange:    "kraken",
			Pairs:       []string{"USDG/USD"},
			DailyVolume: []models.ExchangeDayPoint{{Date: "2026-08-30", Volume: 2000}},
		},
	}}
	clients := []reader.Client{client}
	store := history.NewStore(filepath.Join(t.TempDir(), "history.jsonl"), nil)
	pipe := pipeline.NewPipeline(clients, store)
	table := pipeline.NewDepthTable(clients, appconfig.DepthConfig{PairDelayMs: 1})
	memo := cache.New(time.Minute)

	srv := NewServer(appconfig.HTTPConfig{Enabled: true, Address: ":0"}, pipe, table, store, memo)
	router, err := srv.buildRouter()
	if err != nil {
		t.Fatalf("buildRouter failed: %v", err)
	}

	// First request arrives with its context already cancelled. The fetch
	// it triggers must not cache a degraded empty series.
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/volume", nil).WithContext(cancelled)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", w.Code)
	}

	// A healthy follow-up must see live data, not the first caller's view.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/volume", nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("second request: expected 200, got %d", w.Code)
	}
	var body struct {
		Points []models.DailyVolumePoint `json:"points"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Points) != 1 || body.Points[0].Volume != 2000 {
		t.Fatalf("expected live data after cancelled request, got %+v", body.Points)
	}
}
