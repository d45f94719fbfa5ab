// Package market exposes one cached query per remote read, each with its own
// freshness and refresh policy.
package market

import (
	"context"
	"time"

	"crypto_dash/internal/domain"
	"crypto_dash/internal/query"
)

// API is the market data source; *coingecko.Client satisfies it.
type API interface {
	TopCryptos(ctx context.Context, page, perPage int) ([]domain.CryptoCurrency, error)
	GlobalData(ctx context.Context) (*domain.GlobalMarketData, error)
	Trending(ctx context.Context) ([]domain.TrendingCoin, error)
	CoinData(ctx context.Context, id string) (*domain.CoinDetail, error)
	ChartData(ctx context.Context, id string, days int) (*domain.ChartData, error)
	Search(ctx context.Context, query string) (*domain.SearchResult, error)
}

// Sentiment is the fear & greed source; *feargreed.Client satisfies it.
type Sentiment interface {
	Index(ctx context.Context) domain.FearGreedIndex
}

// Cache policies per hook.
var (
	TopCryptosPolicy = query.Options{StaleTime: 30 * time.Second, RefetchInterval: time.Minute}
	GlobalDataPolicy = query.Options{StaleTime: time.Minute, RefetchInterval: 2 * time.Minute}
	TrendingPolicy   = query.Options{StaleTime: 5 * time.Minute, RefetchInterval: 10 * time.Minute}
	CoinDataPolicy   = query.Options{StaleTime: time.Minute, RefetchInterval: 2 * time.Minute}
	FearGreedPolicy  = query.Options{StaleTime: time.Hour, RefetchInterval: time.Hour}
	SearchPolicy     = query.Options{StaleTime: 5 * time.Minute}
)

// MinSearchLength is the query length above which search is enabled.
const MinSearchLength = 2

// ChartPolicy refreshes intraday charts every minute and longer ranges every 5.
func ChartPolicy(days int) query.Options {
	refetch := 5 * time.Minute
	if days <= 1 {
		refetch = time.Minute
	}
	return query.Options{StaleTime: time.Minute, RefetchInterval: refetch}
}

// Hooks builds the cached queries over one shared cache.
type Hooks struct {
	cache     *query.Client
	api       API
	sentiment Sentiment
}

// NewHooks wires the sources into the cache.
func NewHooks(cache *query.Client, api API, sentiment Sentiment) *Hooks {
	return &Hooks{cache: cache, api: api, sentiment: sentiment}
}

// Cache returns the underlying request cache.
func (h *Hooks) Cache() *query.Client { return h.cache }

func enabled(opts query.Options, on bool) query.Options {
	opts.Enabled = on
	return opts
}

// TopCryptos is the market-cap ranked listing.
func (h *Hooks) TopCryptos(page, perPage int) *query.Query[[]domain.CryptoCurrency] {
	return query.New(h.cache, query.Key{"topCryptos", page, perPage}, enabled(TopCryptosPolicy, true),
		func(ctx context.Context) ([]domain.CryptoCurrency, error) {
			return h.api.TopCryptos(ctx, page, perPage)
		})
}

// GlobalData is the aggregate market snapshot.
func (h *Hooks) GlobalData() *query.Query[*domain.GlobalMarketData] {
	return query.New(h.cache, query.Key{"globalData"}, enabled(GlobalDataPolicy, true), h.api.GlobalData)
}

// Trending is the rank-ordered trending list.
func (h *Hooks) Trending() *query.Query[[]domain.TrendingCoin] {
	return query.New(h.cache, query.Key{"trendingCoins"}, enabled(TrendingPolicy, true), h.api.Trending)
}

// CoinData is a single coin's detail.
func (h *Hooks) CoinData(id string, on bool) *query.Query[*domain.CoinDetail] {
	return query.New(h.cache, query.Key{"coinData", id}, enabled(CoinDataPolicy, on && id != ""),
		func(ctx context.Context) (*domain.CoinDetail, error) {
			return h.api.CoinData(ctx, id)
		})
}

// ChartData is the price history of a coin over days.
func (h *Hooks) ChartData(id string, days int, on bool) *query.Query[*domain.ChartData] {
	return query.New(h.cache, query.Key{"chartData", id, days}, enabled(ChartPolicy(days), on && id != ""),
		func(ctx context.Context) (*domain.ChartData, error) {
			return h.api.ChartData(ctx, id, days)
		})
}

// FearGreed is the sentiment index. Its fetch never fails.
func (h *Hooks) FearGreed() *query.Query[domain.FearGreedIndex] {
	return query.New(h.cache, query.Key{"fearGreedIndex"}, enabled(FearGreedPolicy, true),
		func(ctx context.Context) (domain.FearGreedIndex, error) {
			return h.sentiment.Index(ctx), nil
		})
}

// SearchCoins is disabled unless on is set and q is longer than MinSearchLength.
func (h *Hooks) SearchCoins(q string, on bool) *query.Query[*domain.SearchResult] {
	return query.New(h.cache, query.Key{"searchCoins", q}, enabled(SearchPolicy, on && len(q) > MinSearchLength),
		func(ctx context.Context) (*domain.SearchResult, error) {
			return h.api.Search(ctx, q)
		})
}
