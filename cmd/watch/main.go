package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"crypto_dash/internal/domain"
	"crypto_dash/internal/engine"
	"crypto_dash/internal/infra"
	"crypto_dash/internal/market"
	"crypto_dash/internal/notify"
	"crypto_dash/internal/web"
	"crypto_dash/pkg/format"
)

// printer renders dashboard frames as terminal lines.
type printer struct {
	search string
	top    int
}

func (p *printer) OnConnect(ctx context.Context, c *infra.StreamClient) error {
	if p.search == "" {
		return nil
	}
	return c.WriteJSON(web.ClientMessage{Type: web.FrameSearch, Query: p.search})
}

func (p *printer) OnMessage(ctx context.Context, msg []byte) {
	var f struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
		At   time.Time       `json:"at"`
	}
	if err := json.Unmarshal(msg, &f); err != nil {
		slog.Warn("Malformed frame", slog.Any("error", err))
		return
	}
	stamp := format.Date(f.At.Local(), "15:04:05")

	switch f.Type {
	case engine.FramePrices:
		var coins []domain.CryptoCurrency
		if json.Unmarshal(f.Data, &coins) != nil {
			return
		}
		parts := make([]string, 0, p.top)
		for i, c := range coins {
			if i == p.top {
				break
			}
			parts = append(parts, fmt.Sprintf("%s %s (%s)",
				strings.ToUpper(c.Symbol), format.Currency(c.CurrentPrice), format.Percentage(c.PriceChangePercentage24h)))
		}
		fmt.Printf("[%s] prices  %s\n", stamp, strings.Join(parts, " | "))
	case engine.FramePortfolio:
		var v engine.PortfolioView
		if json.Unmarshal(f.Data, &v) != nil {
			return
		}
		fmt.Printf("[%s] portfolio %d holdings, value %s, P/L %s (%s)\n", stamp, len(v.Holdings),
			format.Currency(v.Summary.TotalValue), format.Currency(v.Summary.TotalGainLoss),
			format.Percentage(v.Summary.TotalGainLossPercent))
	case engine.FrameAlert:
		var n domain.AlertNotice
		if json.Unmarshal(f.Data, &n) != nil {
			return
		}
		fmt.Printf("[%s] ALERT  %s %s %s, now %s\n", stamp, n.Alert.CoinName, n.Alert.Condition,
			format.Currency(n.Alert.TargetPrice), format.Currency(n.Price))
	case "notification":
		var n notify.Notification
		if json.Unmarshal(f.Data, &n) != nil {
			return
		}
		fmt.Printf("[%s] %s: %s\n", stamp, n.Title, n.Body)
	case web.FrameOverview:
		var o market.Overview
		if json.Unmarshal(f.Data, &o) != nil {
			return
		}
		fmt.Printf("[%s] market  cap %s (%s), fear & greed %d %s\n", stamp, format.Currency(o.TotalMarketCap),
			format.Percentage(o.MarketCapChange24h), o.FearGreedValue, o.FearGreedClassification)
	case web.FrameTrending:
		var coins []domain.TrendingCoin
		if json.Unmarshal(f.Data, &coins) != nil {
			return
		}
		names := make([]string, 0, len(coins))
		for _, c := range coins {
			names = append(names, c.Name)
		}
		fmt.Printf("[%s] trending %s\n", stamp, strings.Join(names, ", "))
	case web.FrameSearch:
		var s web.SearchFrame
		if json.Unmarshal(f.Data, &s) != nil {
			return
		}
		fmt.Printf("[%s] search %q\n", stamp, s.Query)
		for _, c := range s.Coins {
			fmt.Printf("         #%-5d %s (%s)\n", c.MarketCapRank, c.Name, strings.ToUpper(c.Symbol))
		}
	default:
		slog.Debug("Unhandled frame", slog.String("type", f.Type))
	}
}

func defaultURL() string {
	addr := infra.DefaultConfig().Server.Addr
	if cfg, err := infra.LoadConfig(infra.ResolveConfigPath()); err == nil {
		addr = cfg.Server.Addr
	}
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "ws://" + addr + "/ws"
}

func main() {
	url := flag.String("url", defaultURL(), "dashboard stream URL")
	search := flag.String("search", "", "search query sent on connect")
	top := flag.Int("top", 5, "coins shown per price frame")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := infra.NewStreamClient(*url, &printer{search: *search, top: *top})
	client.Start(ctx)

	<-ctx.Done()
	client.Stop()
}
