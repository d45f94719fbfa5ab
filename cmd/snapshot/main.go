package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"crypto_dash/internal/domain"
	"crypto_dash/internal/infra"
	"crypto_dash/internal/infra/coingecko"
	"crypto_dash/internal/infra/feargreed"
	"crypto_dash/internal/market"
	"crypto_dash/pkg/format"
)

func main() {
	limit := flag.Int("n", 10, "number of coins to list")
	flag.Parse()

	cfg, err := infra.LoadConfig(infra.ResolveConfigPath())
	if err != nil {
		slog.Warn("Config not loaded, using defaults", slog.Any("error", err))
		cfg = infra.DefaultConfig()
	}
	slog.SetDefault(infra.NewLogger(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	api := coingecko.NewClient(cfg)
	sentiment := feargreed.NewClient(cfg)

	var (
		coins    []domain.CryptoCurrency
		global   *domain.GlobalMarketData
		trending []domain.TrendingCoin
		fg       domain.FearGreedIndex
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		coins, err = api.TopCryptos(gctx, 1, *limit)
		return err
	})
	g.Go(func() error {
		var err error
		global, err = api.GlobalData(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		trending, err = api.Trending(gctx)
		return err
	})
	g.Go(func() error {
		fg = sentiment.Index(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		slog.Error("Snapshot failed", slog.Any("error", err))
		os.Exit(1)
	}

	now := time.Now()
	overview := market.BuildOverview(global, &fg)
	dominance := market.BuildDominance(global)

	fmt.Println("=== Crypto Market Snapshot ===")
	fmt.Printf("  %s\n\n", format.Date(now, "Jan 2, 2006 15:04"))

	fmt.Printf("  Market Cap:   %s (%s)\n", format.MarketCap(overview.TotalMarketCap), format.Percentage(overview.MarketCapChange24h))
	fmt.Printf("  24h Volume:   %s\n", format.Volume(overview.TotalVolume))
	fmt.Printf("  Active Coins: %s\n", format.Number(float64(overview.ActiveCryptocurrencies)))
	fmt.Printf("  Fear & Greed: %d (%s)\n", overview.FearGreedValue, overview.FearGreedClassification)
	fmt.Printf("  Dominance:    BTC %.1f%%  ETH %.1f%%  Others %.1f%%\n\n", dominance.BTC, dominance.ETH, dominance.Others)

	fmt.Printf("  %-4s %-22s %16s %9s %12s\n", "#", "Coin", "Price", "24h", "Market Cap")
	fmt.Println("  " + strings.Repeat("-", 67))
	for _, c := range coins {
		name := format.Truncate(fmt.Sprintf("%s (%s)", c.Name, strings.ToUpper(c.Symbol)), 22)
		fmt.Printf("  %-4d %-22s %16s %9s %12s\n",
			c.MarketCapRank, name,
			format.Currency(c.CurrentPrice),
			format.Percentage(c.PriceChangePercentage24h),
			format.MarketCap(c.MarketCap))
	}

	if len(trending) > 0 {
		names := make([]string, 0, len(trending))
		for _, t := range trending {
			names = append(names, t.Name)
		}
		fmt.Printf("\n  Trending: %s\n", strings.Join(names, ", "))
	}

	if ts := fg.Time(); !ts.IsZero() {
		fmt.Printf("  Sentiment updated %s\n", format.TimeAgo(ts, now))
	}
}
