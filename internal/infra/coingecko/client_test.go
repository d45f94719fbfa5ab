package coingecko

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"crypto_dash/internal/infra"
)

// MockRoundTripper allows us to mock HTTP responses
type MockRoundTripper struct {
	Func func(req *http.Request) (*http.Response, error)
}

func (m *MockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return m.Func(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     make(http.Header),
	}
}

func newTestClient(t *testing.T, fn func(req *http.Request) (*http.Response, error)) *Client {
	t.Helper()
	cfg := infra.DefaultConfig()
	cfg.API.CoinGecko.Burst = 100
	cfg.API.CoinGecko.PerSecond = 100
	client := NewClient(cfg)
	client.httpClient.Transport = &MockRoundTripper{Func: fn}
	return client
}

func TestClient_TopCryptos(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/api/v3/coins/markets" {
			t.Errorf("Unexpected path: %s", req.URL.Path)
		}
		q := req.URL.Query()
		checks := map[string]string{
			"vs_currency":             "usd",
			"order":                   "market_cap_desc",
			"per_page":                "100",
			"page":                    "2",
			"sparkline":               "true",
			"price_change_percentage": "1h,24h,7d,30d",
		}
		for k, want := range checks {
			if got := q.Get(k); got != want {
				t.Errorf("query %s = %q, want %q", k, got, want)
			}
		}
		return jsonResponse(200, `[
			{"id":"bitcoin","symbol":"btc","name":"Bitcoin","current_price":50000.5,"market_cap_rank":1,
			 "sparkline_in_7d":{"price":[1,2,3]},"price_change_percentage_1h_in_currency":0.5,"max_supply":null}
		]`), nil
	})

	coins, err := client.TopCryptos(context.Background(), 2, 100)
	if err != nil {
		t.Fatalf("TopCryptos failed: %v", err)
	}
	if len(coins) != 1 || coins[0].ID != "bitcoin" || coins[0].CurrentPrice != 50000.5 {
		t.Fatalf("unexpected coins %+v", coins)
	}
	if coins[0].Sparkline7d == nil || len(coins[0].Sparkline7d.Price) != 3 {
		t.Error("sparkline not decoded")
	}
	if coins[0].PriceChangePercentage1hIn == nil || *coins[0].PriceChangePercentage1hIn != 0.5 {
		t.Error("1h change not decoded")
	}
	if coins[0].PriceChangePercentage7dIn != nil {
		t.Error("absent 7d change should stay nil")
	}
}

func TestClient_Trending_KeepsRankOrder(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/api/v3/search/trending" {
			t.Errorf("Unexpected path: %s", req.URL.Path)
		}
		return jsonResponse(200, `{"coins":[
			{"item":{"id":"pepe","name":"Pepe","score":0}},
			{"item":{"id":"sui","name":"Sui","score":1}}
		]}`), nil
	})

	coins, err := client.Trending(context.Background())
	if err != nil {
		t.Fatalf("Trending failed: %v", err)
	}
	if len(coins) != 2 || coins[0].ID != "pepe" || coins[1].ID != "sui" {
		t.Errorf("unexpected trending %+v", coins)
	}
}

func TestClient_GlobalData(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(200, `{"data":{"active_cryptocurrencies":12000,
			"total_market_cap":{"usd":2.5e12},"market_cap_percentage":{"btc":52.1,"eth":17.3},
			"market_cap_change_percentage_24h_usd":-1.2}}`), nil
	})

	g, err := client.GlobalData(context.Background())
	if err != nil {
		t.Fatalf("GlobalData failed: %v", err)
	}
	if g.ActiveCryptocurrencies != 12000 || g.TotalMarketCap["usd"] != 2.5e12 {
		t.Errorf("unexpected global %+v", g)
	}
	if g.Dominance("btc") != 52.1 {
		t.Errorf("btc dominance = %v", g.Dominance("btc"))
	}
}

func TestClient_ChartData_Interval(t *testing.T) {
	tests := []struct {
		days     int
		interval string
	}{
		{1, "hourly"},
		{7, "daily"},
		{365, "daily"},
	}

	for _, tt := range tests {
		client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
			if req.URL.Path != "/api/v3/coins/bitcoin/market_chart" {
				t.Errorf("Unexpected path: %s", req.URL.Path)
			}
			if got := req.URL.Query().Get("interval"); got != tt.interval {
				t.Errorf("days=%d interval=%q, want %q", tt.days, got, tt.interval)
			}
			return jsonResponse(200, `{"prices":[[1700000000000,37000.5]],"market_caps":[],"total_volumes":[[1700000000000,1e9]]}`), nil
		})

		chart, err := client.ChartData(context.Background(), "bitcoin", tt.days)
		if err != nil {
			t.Fatalf("ChartData failed: %v", err)
		}
		if len(chart.Prices) != 1 || chart.Prices[0][1] != 37000.5 {
			t.Errorf("unexpected chart %+v", chart)
		}
	}
}

func TestClient_CoinData(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		q := req.URL.Query()
		if q.Get("tickers") != "false" || q.Get("market_data") != "true" || q.Get("sparkline") != "true" {
			t.Errorf("unexpected query %s", req.URL.RawQuery)
		}
		return jsonResponse(200, `{"id":"ethereum","symbol":"eth","name":"Ethereum",
			"image":{"large":"https://img/eth.png"},
			"market_data":{"current_price":{"usd":3000}}}`), nil
	})

	d, err := client.CoinData(context.Background(), "ethereum")
	if err != nil {
		t.Fatalf("CoinData failed: %v", err)
	}
	if d.MarketData.CurrentPrice["usd"] != 3000 || d.Image.Large == "" {
		t.Errorf("unexpected detail %+v", d)
	}
}

func TestClient_Search(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		if got := req.URL.Query().Get("query"); got != "bit coin" {
			t.Errorf("query = %q", got)
		}
		return jsonResponse(200, `{"coins":[{"id":"bitcoin"},{"id":"bitcoin-cash"}],"exchanges":[]}`), nil
	})

	res, err := client.Search(context.Background(), "bit coin")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(res.Coins) != 2 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestClient_ErrorStatus(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(429, `{"status":{"error_code":429}}`), nil
	})

	_, err := client.GlobalData(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != 429 || apiErr.Endpoint != "/global" {
		t.Errorf("unexpected error %+v", apiErr)
	}
}

func TestClient_DecodeError(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(200, `not json`), nil
	})

	if _, err := client.TopCryptos(context.Background(), 1, 10); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestClient_AgainstServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-cg-demo-api-key") != "demo" {
			t.Errorf("api key header missing")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"coins":[]}`))
	}))
	defer srv.Close()

	cfg := infra.DefaultConfig()
	cfg.API.CoinGecko.BaseURL = srv.URL
	cfg.API.CoinGecko.APIKey = "demo"
	client := NewClient(cfg)

	if _, err := client.Search(context.Background(), "eth"); err != nil {
		t.Fatalf("Search failed: %v", err)
	}
}
