package domain

import (
	"strconv"
	"time"
)

// Sparkline holds the 7-day hourly price sequence attached to a listing.
type Sparkline struct {
	Price []float64 `json:"price"`
}

// CryptoCurrency is one market snapshot for a coin. A snapshot is replaced
// wholesale on every refetch; the id string is its only identity.
type CryptoCurrency struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	Image  string `json:"image"`

	CurrentPrice                 float64 `json:"current_price"`
	MarketCap                    float64 `json:"market_cap"`
	MarketCapRank                int     `json:"market_cap_rank"`
	FullyDilutedValuation        float64 `json:"fully_diluted_valuation"`
	TotalVolume                  float64 `json:"total_volume"`
	High24h                      float64 `json:"high_24h"`
	Low24h                       float64 `json:"low_24h"`
	PriceChange24h               float64 `json:"price_change_24h"`
	PriceChangePercentage24h     float64 `json:"price_change_percentage_24h"`
	MarketCapChange24h           float64 `json:"market_cap_change_24h"`
	MarketCapChangePercentage24h float64 `json:"market_cap_change_percentage_24h"`

	CirculatingSupply float64 `json:"circulating_supply"`
	TotalSupply       float64 `json:"total_supply"`
	MaxSupply         float64 `json:"max_supply"`

	ATH                 float64   `json:"ath"`
	ATHChangePercentage float64   `json:"ath_change_percentage"`
	ATHDate             time.Time `json:"ath_date"`
	ATL                 float64   `json:"atl"`
	ATLChangePercentage float64   `json:"atl_change_percentage"`
	ATLDate             time.Time `json:"atl_date"`
	LastUpdated         time.Time `json:"last_updated"`

	// Optional fields, present only when requested from the listing endpoint.
	Sparkline7d                *Sparkline `json:"sparkline_in_7d,omitempty"`
	PriceChangePercentage1hIn  *float64   `json:"price_change_percentage_1h_in_currency,omitempty"`
	PriceChangePercentage7dIn  *float64   `json:"price_change_percentage_7d_in_currency,omitempty"`
	PriceChangePercentage30dIn *float64   `json:"price_change_percentage_30d_in_currency,omitempty"`
}

// RecentSparkline returns at most the last n sparkline prices.
func (c *CryptoCurrency) RecentSparkline(n int) []float64 {
	if c.Sparkline7d == nil || n <= 0 {
		return nil
	}
	prices := c.Sparkline7d.Price
	if len(prices) > n {
		prices = prices[len(prices)-n:]
	}
	return prices
}

// IndexByID maps coins by id for price lookups.
func IndexByID(coins []CryptoCurrency) map[string]CryptoCurrency {
	idx := make(map[string]CryptoCurrency, len(coins))
	for _, c := range coins {
		idx[c.ID] = c
	}
	return idx
}

// GlobalMarketData is the aggregate market snapshot.
type GlobalMarketData struct {
	ActiveCryptocurrencies          int                `json:"active_cryptocurrencies"`
	UpcomingICOs                    int                `json:"upcoming_icos"`
	OngoingICOs                     int                `json:"ongoing_icos"`
	EndedICOs                       int                `json:"ended_icos"`
	Markets                         int                `json:"markets"`
	TotalMarketCap                  map[string]float64 `json:"total_market_cap"`
	TotalVolume                     map[string]float64 `json:"total_volume"`
	MarketCapPercentage             map[string]float64 `json:"market_cap_percentage"`
	MarketCapChangePercentage24hUSD float64            `json:"market_cap_change_percentage_24h_usd"`
	UpdatedAt                       int64              `json:"updated_at"`
}

// Dominance returns a coin's share of total market cap in percent, 0 if unknown.
func (g *GlobalMarketData) Dominance(symbol string) float64 {
	if g == nil {
		return 0
	}
	return g.MarketCapPercentage[symbol]
}

// TrendingCoin is one entry of the rank-ordered trending list.
type TrendingCoin struct {
	ID            string  `json:"id"`
	CoinID        int     `json:"coin_id"`
	Name          string  `json:"name"`
	Symbol        string  `json:"symbol"`
	MarketCapRank int     `json:"market_cap_rank"`
	Thumb         string  `json:"thumb"`
	Small         string  `json:"small"`
	Large         string  `json:"large"`
	Slug          string  `json:"slug"`
	PriceBTC      float64 `json:"price_btc"`
	Score         int     `json:"score"`
}

// ChartData holds three parallel [timestamp_ms, value] series.
type ChartData struct {
	Prices       [][2]float64 `json:"prices"`
	MarketCaps   [][2]float64 `json:"market_caps"`
	TotalVolumes [][2]float64 `json:"total_volumes"`
}

// ChartPoint is a single decoded sample of a chart series.
type ChartPoint struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// PricePoints decodes the price series into time-stamped points.
func (c *ChartData) PricePoints() []ChartPoint {
	return toPoints(c.Prices)
}

// VolumePoints decodes the volume series into time-stamped points.
func (c *ChartData) VolumePoints() []ChartPoint {
	return toPoints(c.TotalVolumes)
}

func toPoints(series [][2]float64) []ChartPoint {
	points := make([]ChartPoint, 0, len(series))
	for _, s := range series {
		points = append(points, ChartPoint{
			Time:  time.UnixMilli(int64(s[0])).UTC(),
			Value: s[1],
		})
	}
	return points
}

// CoinImage lists the artwork sizes of a coin.
type CoinImage struct {
	Thumb string `json:"thumb"`
	Small string `json:"small"`
	Large string `json:"large"`
}

// CoinMarketData is the market block of a single-coin detail response.
type CoinMarketData struct {
	CurrentPrice                 map[string]float64 `json:"current_price"`
	MarketCap                    map[string]float64 `json:"market_cap"`
	TotalVolume                  map[string]float64 `json:"total_volume"`
	High24h                      map[string]float64 `json:"high_24h"`
	Low24h                       map[string]float64 `json:"low_24h"`
	PriceChange24h               float64            `json:"price_change_24h"`
	PriceChangePercentage24h     float64            `json:"price_change_percentage_24h"`
	PriceChangePercentage7d      float64            `json:"price_change_percentage_7d"`
	PriceChangePercentage30d     float64            `json:"price_change_percentage_30d"`
	PriceChangePercentage1y      float64            `json:"price_change_percentage_1y"`
	MarketCapChangePercentage24h float64            `json:"market_cap_change_percentage_24h"`
	CirculatingSupply            float64            `json:"circulating_supply"`
	TotalSupply                  float64            `json:"total_supply"`
	MaxSupply                    float64            `json:"max_supply"`
	Sparkline7d                  *Sparkline         `json:"sparkline_7d,omitempty"`
}

// CoinDetail is the single-coin detail payload.
type CoinDetail struct {
	ID            string            `json:"id"`
	Symbol        string            `json:"symbol"`
	Name          string            `json:"name"`
	Description   map[string]string `json:"description"`
	Image         CoinImage         `json:"image"`
	MarketCapRank int               `json:"market_cap_rank"`
	MarketData    CoinMarketData    `json:"market_data"`
	LastUpdated   time.Time         `json:"last_updated"`
}

// SearchCoin is one coin match of a free-text search.
type SearchCoin struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	APISymbol     string `json:"api_symbol"`
	Symbol        string `json:"symbol"`
	MarketCapRank int    `json:"market_cap_rank"`
	Thumb         string `json:"thumb"`
	Large         string `json:"large"`
}

// SearchResult is the search payload; only coin matches are kept.
type SearchResult struct {
	Coins []SearchCoin `json:"coins"`
}

// Top returns at most the first n coin matches.
func (s *SearchResult) Top(n int) []SearchCoin {
	if s == nil || n <= 0 {
		return nil
	}
	if len(s.Coins) <= n {
		return s.Coins
	}
	return s.Coins[:n]
}

// FearGreedIndex is a sentiment reading (0-100) and its classification.
type FearGreedIndex struct {
	Value               string `json:"value"`
	ValueClassification string `json:"value_classification"`
	Timestamp           string `json:"timestamp"`
	TimeUntilUpdate     string `json:"time_until_update,omitempty"`
}

// NeutralFearGreed is substituted whenever the sentiment source is unavailable.
func NeutralFearGreed(now time.Time) FearGreedIndex {
	return FearGreedIndex{
		Value:               "50",
		ValueClassification: "Neutral",
		Timestamp:           strconv.FormatInt(now.Unix(), 10),
		TimeUntilUpdate:     "0",
	}
}

// IntValue parses Value, falling back to 50 when it is not a number.
func (f FearGreedIndex) IntValue() int {
	v, err := strconv.Atoi(f.Value)
	if err != nil {
		return 50
	}
	return v
}

// Time parses the unix-seconds Timestamp. Unparsable values give the zero time.
func (f FearGreedIndex) Time() time.Time {
	sec, err := strconv.ParseInt(f.Timestamp, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}

// Level buckets the index into four bands.
func (f FearGreedIndex) Level() string {
	v := f.IntValue()
	switch {
	case v <= 25:
		return "extreme_fear"
	case v <= 50:
		return "fear"
	case v <= 75:
		return "greed"
	default:
		return "extreme_greed"
	}
}
