package reader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	appconfig "usdgflow/config"
)

func testSource(url string) appconfig.ExchangeSourceConfig {
	return appconfig.ExchangeSourceConfig{
		Enabled:           true,
		BaseURL:           url,
		Days:              30,
		TimeoutSec:        5,
		RequestsPerSecond: 100,
	}
}

func TestParseLevels(t *testing.T) {
	raw := [][]string{
		{"100.5", "2"},
		{"bad", "2"},
		{"99", "bad"},
		{"0", "5"},
		{"98", "0"},
		{"97.25", "1.5", "1700000000"},
	}
	entries := parseLevels(raw)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Price != 100.5 || entries[0].Quantity != 2 {
		t.Errorf("unexpected first entry: %+v", entries[0])
	}
	if entries[1].Price != 97.25 || entries[1].Quantity != 1.5 {
		t.Errorf("unexpected second entry: %+v", entries[1])
	}
}

func TestSeriesFromDaysSorted(t *testing.T) {
	usd := map[string]float64{
		"2026-08-03": 300,
		"2026-08-01": 100,
		"2026-08-02": 200,
	}
	series := seriesFromDays("kraken", []string{"USDG/USD"}, usd)
	if series.Exchange != "kraken" {
		t.Errorf("expected exchange kraken, got %s", series.Exchange)
	}
	want := []string{"2026-08-01", "2026-08-02", "2026-08-03"}
	if len(series.DailyVolume) != len(want) {
		t.Fatalf("expected %d points, got %d", len(want), len(series.DailyVolume))
	}
	for i, date := range want {
		if series.DailyVolume[i].Date != date {
			t.Errorf("point %d: expected date %s, got %s", i, date, series.DailyVolume[i].Date)
		}
	}
}

func TestKrakenUSDGPairs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/0/public/AssetPairs" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"error":[],"result":{
			"USDGZUSD":{"wsname":"USDG/USD","base":"USDG","quote":"ZUSD"},
			"XXBTZUSD":{"wsname":"XBT/USD","base":"XXBT","quote":"ZUSD"},
			"XBTUSDG":{"wsname":"XBT/USDG","base":"XXBT","quote":"USDG"}}}`))
	}))
	defer srv.Close()

	k := NewKraken(testSource(srv.URL), 100)
	pairs, err := k.USDGPairs(context.Background())
	if err != nil {
		t.Fatalf("USDGPairs failed: %v", err)
	}
	if len(pairs) != 2 {
		t.Fatalf("expected 2 USDG pairs, got %d", len(pairs))
	}
	found := make(map[string]bool)
	for _, p := range pairs {
		found[p.Symbol] = true
	}
	if !found["USDGZUSD"] || !found["XBTUSDG"] {
		t.Errorf("missing expected pairs, got %+v", pairs)
	}
}

func TestKrakenAggregatedVolume(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/0/public/AssetPairs":
			w.Write([]byte(`{"error":[],"result":{
				"USDGZUSD":{"wsname":"USDG/USD","base":"USDG","quote":"ZUSD"}}}`))
		case "/0/public/OHLC":
			// 2026-08-30 and 2026-08-31 daily candles.
			w.Write([]byte(`{"error":[],"result":{
				"USDGZUSD":[
					[1788048000,"1.00","1.01","0.99","1.00","1.00","1000","10"],
					[1788134400,"1.00","1.01","0.99","0.50","1.00","2000","20"]],
				"last":1788134400}}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	k := NewKraken(testSource(srv.URL), 100)
	series, err := k.AggregatedVolume(context.Background())
	if err != nil {
		t.Fatalf("AggregatedVolume failed: %v", err)
	}
	if len(series.DailyVolume) != 2 {
		t.Fatalf("expected 2 daily points, got %d", len(series.DailyVolume))
	}
	// volume * close: 1000*1.00 then 2000*0.50.
	if series.DailyVolume[0].Volume != 1000 {
		t.Errorf("day 0: expected 1000, got %f", series.DailyVolume[0].Volume)
	}
	if series.DailyVolume[1].Volume != 1000 {
		t.Errorf("day 1: expected 1000, got %f", series.DailyVolume[1].Volume)
	}
	if len(series.Pairs) != 1 || series.Pairs[0] != "USDG/USD" {
		t.Errorf("unexpected pairs: %v", series.Pairs)
	}
}

func TestKrakenOrderbook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":[],"result":{"USDGZUSD":{
			"bids":[["0.9999","5000","1788134400"],["0.9998","3000","1788134400"]],
			"asks":[["1.0001","4000","1788134400"]]}}}`))
	}))
	defer srv.Close()

	k := NewKraken(testSource(srv.URL), 100)
	book, err := k.Orderbook(context.Background(), "USDGZUSD")
	if err != nil {
		t.Fatalf("Orderbook failed: %v", err)
	}
	if len(book.Bids) != 2 || len(book.Asks) != 1 {
		t.Fatalf("expected 2 bids / 1 ask, got %d / %d", len(book.Bids), len(book.Asks))
	}
	if book.Bids[0].Price != 0.9999 || book.Bids[0].Quantity != 5000 {
		t.Errorf("unexpected best bid: %+v", book.Bids[0])
	}
	if book.Asks[0].Price != 1.0001 {
		t.Errorf("unexpected best ask: %+v", book.Asks[0])
	}
}

func TestGateAggregatedVolume(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/spot/currency_pairs":
			w.Write([]byte(`[
				{"id":"USDG_USDT","base":"USDG","quote":"USDT","trade_status":"tradable"},
				{"id":"BTC_USDT","base":"BTC","quote":"USDT","trade_status":"tradable"},
				{"id":"USDG_EUR","base":"USDG","quote":"EUR","trade_status":"untradable"}]`))
		case "/spot/candlesticks":
			w.Write([]byte(`[
				["1788048000","1500","1.0001","1.001","0.999","1.0","1499.8","true"],
				["1788134400","2500","1.0000","1.001","0.999","1.0","2500.1","true"]]`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	g := NewGate(testSource(srv.URL), 100)
	series, err := g.AggregatedVolume(context.Background())
	if err != nil {
		t.Fatalf("AggregatedVolume failed: %v", err)
	}
	if len(series.Pairs) != 1 || series.Pairs[0] != "USDG/USDT" {
		t.Fatalf("expected only tradable USDG pair, got %v", series.Pairs)
	}
	if len(series.DailyVolume) != 2 {
		t.Fatalf("expected 2 daily points, got %d", len(series.DailyVolume))
	}
	if series.DailyVolume[0].Volume != 1500 {
		t.Errorf("day 0: expected 1500, got %f", series.DailyVolume[0].Volume)
	}
}

func TestGateOrderbook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"bids":[["0.9998","10000"]],"asks":[["1.0002","8000"],["1.0005","2000"]]}`))
	}))
	defer srv.Close()

	g := NewGate(testSource(srv.URL), 100)
	book, err := g.Orderbook(context.Background(), "USDG_USDT")
	if err != nil {
		t.Fatalf("Orderbook failed: %v", err)
	}
	if len(book.Bids) != 1 || len(book.Asks) != 2 {
		t.Fatalf("expected 1 bid / 2 asks, got %d / %d", len(book.Bids), len(book.Asks))
	}
	if book.Exchange != "gate" || book.Pair != "USDG_USDT" {
		t.Errorf("unexpected book identity: %s %s", book.Exchange, book.Pair)
	}
}

func TestBitgetUSDGPairs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"00000","data":[
			{"symbol":"USDGUSDT","baseCoin":"USDG","quoteCoin":"USDT","status":"online"},
			{"symbol":"ETHUSDG","baseCoin":"ETH","quoteCoin":"USDG","status":"offline"},
			{"symbol":"BTCUSDT","baseCoin":"BTC","quoteCoin":"USDT","status":"online"}]}`))
	}))
	defer srv.Close()

	b := NewBitget(testSource(srv.URL), 100)
	pairs, err := b.USDGPairs(context.Background())
	if err != nil {
		t.Fatalf("USDGPairs failed: %v", err)
	}
	if len(pairs) != 1 {
		t.Fatalf("expected 1 pair, got %d", len(pairs))
	}
	if pairs[0].Symbol != "USDGUSDT" || pairs[0].Display != "USDG/USDT" {
		t.Errorf("unexpected pair: %+v", pairs[0])
	}
}

func TestReaderHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	k := NewKraken(testSource(srv.URL), 100)
	if _, err := k.USDGPairs(context.Background()); err == nil {
		t.Fatal("expected error on non-200 response")
	}
}

func TestBuildClientsSkipsDisabled(t *testing.T) {
	cfg := &appconfig.Config{}
	cfg.Source.Kraken = testSource("http://localhost")
	cfg.Source.Gate = testSource("http://localhost")
	cfg.Source.Gate.Enabled = false

	clients := BuildClients(cfg)
	if len(clients) != 1 {
		t.Fatalf("expected 1 client, got %d", len(clients))
	}
	if clients[0].Exchange() != "kraken" {
		t.Errorf("expected kraken, got %s", clients[0].Exchange())
	}
}

func TestOrderbookUsesConfiguredLimit(t *testing.T) {
	var gotCount, gotLimit string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/0/public/Depth":
			gotCount = r.URL.Query().Get("count")
			w.Write([]byte(`{"error":[],"result":{"USDGZUSD":{"bids":[["1","1","0"]],"asks":[["1.1","1","0"]]}}}`))
		case "/spot/order_book":
			gotLimit = r.URL.Query().Get("limit")
			w.Write([]byte(`{"bids":[["1","1"]],"asks":[["1.1","1"]]}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	k := NewKraken(testSource(srv.URL), 25)
	if _, err := k.Orderbook(context.Background(), "USDGZUSD"); err != nil {
		t.Fatalf("kraken Orderbook failed: %v", err)
	}
	if gotCount != "25" {
		t.Errorf("kraken: expected count=25, got %q", gotCount)
	}

	g := NewGate(testSource(srv.URL), 25)
	if _, err := g.Orderbook(context.Background(), "USDG_USDT"); err != nil {
		t.Fatalf("gate Orderbook failed: %v", err)
	}
	if gotLimit != "25" {
		t.Errorf("gate: expected limit=25, got %q", gotLimit)
	}
}

func TestNewBaseDefaultBookLimit(t *testing.T) {
	b := newBase("kraken", testSource("http://localhost"), 0)
	if b.bookLimit != 100 {
		t.Errorf("expected default book limit 100, got %d", b.bookLimit)
	}
}
