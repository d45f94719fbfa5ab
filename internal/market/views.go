package market

import (
	"context"
	"slices"

	"golang.org/x/sync/errgroup"

	"crypto_dash/internal/domain"
	"crypto_dash/pkg/safe"
)

// SearchDisplayLimit is how many search matches are shown.
const SearchDisplayLimit = 5

// Timeframes are the selectable chart ranges in days.
var Timeframes = []int{1, 7, 30, 90, 365}

// DefaultTimeframe is the chart range shown when none is chosen.
const DefaultTimeframe = 7

// ValidTimeframe reports whether days is a selectable chart range.
func ValidTimeframe(days int) bool {
	return slices.Contains(Timeframes, days)
}

// Overview is the headline market summary.
type Overview struct {
	TotalMarketCap          float64 `json:"total_market_cap"`
	TotalVolume             float64 `json:"total_volume"`
	MarketCapChange24h      float64 `json:"market_cap_change_24h"`
	ActiveCryptocurrencies  int     `json:"active_cryptocurrencies"`
	FearGreedValue          int     `json:"fear_greed_value"`
	FearGreedClassification string  `json:"fear_greed_classification"`
	FearGreedLevel          string  `json:"fear_greed_level"`
}

// BuildOverview derives the summary. Missing inputs read as zero, and a
// missing index reads as neutral.
func BuildOverview(g *domain.GlobalMarketData, fg *domain.FearGreedIndex) Overview {
	var o Overview
	if g != nil {
		o.TotalMarketCap = g.TotalMarketCap["usd"]
		o.TotalVolume = g.TotalVolume["usd"]
		o.MarketCapChange24h = g.MarketCapChangePercentage24hUSD
		o.ActiveCryptocurrencies = g.ActiveCryptocurrencies
	}

	idx := domain.FearGreedIndex{Value: "50", ValueClassification: "Neutral"}
	if fg != nil {
		idx = *fg
	}
	o.FearGreedValue = idx.IntValue()
	o.FearGreedClassification = idx.ValueClassification
	if o.FearGreedClassification == "" {
		o.FearGreedClassification = "Neutral"
	}
	o.FearGreedLevel = idx.Level()
	return o
}

// Overview fetches global data and sentiment in parallel and derives the summary.
func (h *Hooks) Overview(ctx context.Context) (Overview, error) {
	var (
		global *domain.GlobalMarketData
		fg     domain.FearGreedIndex
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		st, err := h.GlobalData().Fetch(gctx)
		global = st.Data
		return err
	})
	g.Go(func() error {
		st, err := h.FearGreed().Fetch(gctx)
		fg = st.Data
		return err
	})
	if err := g.Wait(); err != nil {
		return Overview{}, err
	}
	return BuildOverview(global, &fg), nil
}

// Dominance is the market cap split between BTC, ETH and the rest.
type Dominance struct {
	BTC    float64 `json:"btc"`
	ETH    float64 `json:"eth"`
	Others float64 `json:"others"`
}

// BuildDominance reads BTC and ETH shares; Others is never negative.
func BuildDominance(g *domain.GlobalMarketData) Dominance {
	d := Dominance{BTC: g.Dominance("btc"), ETH: g.Dominance("eth")}
	d.Others = safe.NonNegative(100 - d.BTC - d.ETH)
	return d
}

// ChartView is a decoded price chart with its range statistics.
type ChartView struct {
	Days          int                 `json:"days"`
	Prices        []domain.ChartPoint `json:"prices"`
	Volumes       []domain.ChartPoint `json:"volumes"`
	High          float64             `json:"high"`
	Low           float64             `json:"low"`
	ChangePercent float64             `json:"change_percent"`
}

// BuildChartView decodes the series and computes high, low and the change
// between the first and last price.
func BuildChartView(days int, c *domain.ChartData) ChartView {
	v := ChartView{Days: days}
	if c == nil {
		return v
	}
	v.Prices = c.PricePoints()
	v.Volumes = c.VolumePoints()
	if len(v.Prices) == 0 {
		return v
	}

	v.High, v.Low = v.Prices[0].Value, v.Prices[0].Value
	for _, p := range v.Prices[1:] {
		v.High = max(v.High, p.Value)
		v.Low = min(v.Low, p.Value)
	}
	first, last := v.Prices[0].Value, v.Prices[len(v.Prices)-1].Value
	v.ChangePercent = safe.Percent(last-first, first)
	return v
}

// SearchMatches returns the displayed matches of a search result.
func SearchMatches(r *domain.SearchResult) []domain.SearchCoin {
	return r.Top(SearchDisplayLimit)
}
