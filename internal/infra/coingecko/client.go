package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"crypto_dash/internal/domain"
	"crypto_dash/internal/infra"
)

// DefaultBaseURL is the public CoinGecko v3 API.
const DefaultBaseURL = "https://api.coingecko.com/api/v3"

// APIError reports a non-2xx answer from the market API.
type APIError struct {
	StatusCode int
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("coingecko %s: unexpected status %d", e.Endpoint, e.StatusCode)
}

// Client reads market data from CoinGecko. It never retries; callers decide.
type Client struct {
	baseURL    string
	vsCurrency string
	apiKey     string
	httpClient *http.Client
	limiter    *infra.RateLimiter
}

// NewClient builds a client from the coingecko config section.
func NewClient(cfg *infra.Config) *Client {
	cg := cfg.API.CoinGecko
	c := &Client{
		baseURL:    cg.BaseURL,
		vsCurrency: cg.VsCurrency,
		apiKey:     cg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.CoinGeckoTimeout(),
		},
		limiter: infra.NewRateLimiter(cg.Burst, cg.PerSecond),
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.vsCurrency == "" {
		c.vsCurrency = "usd"
	}
	if c.httpClient.Timeout <= 0 {
		c.httpClient.Timeout = 10 * time.Second
	}
	return c
}

// TopCryptos lists coins ordered by market cap with sparklines and
// 1h/24h/7d/30d changes.
func (c *Client) TopCryptos(ctx context.Context, page, perPage int) ([]domain.CryptoCurrency, error) {
	q := url.Values{}
	q.Set("vs_currency", c.vsCurrency)
	q.Set("order", "market_cap_desc")
	q.Set("per_page", strconv.Itoa(perPage))
	q.Set("page", strconv.Itoa(page))
	q.Set("sparkline", "true")
	q.Set("price_change_percentage", "1h,24h,7d,30d")

	var coins []domain.CryptoCurrency
	if err := c.get(ctx, "/coins/markets", q, &coins); err != nil {
		return nil, err
	}
	return coins, nil
}

type globalResponse struct {
	Data domain.GlobalMarketData `json:"data"`
}

// GlobalData returns aggregate market statistics.
func (c *Client) GlobalData(ctx context.Context) (*domain.GlobalMarketData, error) {
	var resp globalResponse
	if err := c.get(ctx, "/global", nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

type trendingResponse struct {
	Coins []struct {
		Item domain.TrendingCoin `json:"item"`
	} `json:"coins"`
}

// Trending returns the trending coins in rank order.
func (c *Client) Trending(ctx context.Context) ([]domain.TrendingCoin, error) {
	var resp trendingResponse
	if err := c.get(ctx, "/search/trending", nil, &resp); err != nil {
		return nil, err
	}

	coins := make([]domain.TrendingCoin, 0, len(resp.Coins))
	for _, entry := range resp.Coins {
		coins = append(coins, entry.Item)
	}
	return coins, nil
}

// CoinData returns the detail of one coin with market data and sparkline.
func (c *Client) CoinData(ctx context.Context, id string) (*domain.CoinDetail, error) {
	q := url.Values{}
	q.Set("localization", "false")
	q.Set("tickers", "false")
	q.Set("market_data", "true")
	q.Set("community_data", "false")
	q.Set("developer_data", "false")
	q.Set("sparkline", "true")

	var detail domain.CoinDetail
	if err := c.get(ctx, "/coins/"+url.PathEscape(id), q, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ChartData returns price, market cap and volume series for the last days.
// A single day is sampled hourly, longer ranges daily.
func (c *Client) ChartData(ctx context.Context, id string, days int) (*domain.ChartData, error) {
	interval := "daily"
	if days <= 1 {
		interval = "hourly"
	}

	q := url.Values{}
	q.Set("vs_currency", c.vsCurrency)
	q.Set("days", strconv.Itoa(days))
	q.Set("interval", interval)

	var chart domain.ChartData
	if err := c.get(ctx, "/coins/"+url.PathEscape(id)+"/market_chart", q, &chart); err != nil {
		return nil, err
	}
	return &chart, nil
}

// Search matches coins by free text.
func (c *Client) Search(ctx context.Context, query string) (*domain.SearchResult, error) {
	q := url.Values{}
	q.Set("query", query)

	var result domain.SearchResult
	if err := c.get(ctx, "/search", q, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) get(ctx context.Context, endpoint string, q url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	u := c.baseURL + endpoint
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", infra.DefaultUserAgent)
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("coingecko %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// drain so the connection can be reused
		io.Copy(io.Discard, resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Endpoint: endpoint}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("coingecko %s: decode: %w", endpoint, err)
	}

	slog.Debug("CoinGecko request done",
		slog.String("endpoint", endpoint),
		slog.Duration("took", time.Since(start)))
	return nil
}
