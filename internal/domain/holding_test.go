package domain

import (
	"errors"
	"math"
	"testing"
)

func TestHoldingInput_Validate(t *testing.T) {
	tests := []struct {
		name    string
		in      HoldingInput
		wantErr bool
	}{
		{"valid", HoldingInput{CoinID: "bitcoin", Amount: 1, AvgBuyPrice: 100}, false},
		{"zero amount", HoldingInput{CoinID: "bitcoin", Amount: 0, AvgBuyPrice: 100}, false},
		{"negative amount", HoldingInput{CoinID: "bitcoin", Amount: -1, AvgBuyPrice: 100}, true},
		{"negative price", HoldingInput{CoinID: "bitcoin", Amount: 1, AvgBuyPrice: -5}, true},
		{"missing coin", HoldingInput{Amount: 1}, true},
		{"NaN amount", HoldingInput{CoinID: "bitcoin", Amount: math.NaN()}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidHolding) {
				t.Errorf("expected ErrInvalidHolding, got %v", err)
			}
		})
	}
}

func TestNewHolding_SeedsFromCoin(t *testing.T) {
	coin := CryptoCurrency{ID: "bitcoin", Symbol: "btc", Name: "Bitcoin", CurrentPrice: 150, PriceChangePercentage24h: 2.5}
	h, err := NewHolding(HoldingInput{CoinID: "bitcoin", Amount: 2, AvgBuyPrice: 100}, &coin)
	if err != nil {
		t.Fatalf("NewHolding: %v", err)
	}
	if h.CurrentPrice != 150 || h.PriceChange24h != 2.5 || h.Symbol != "btc" {
		t.Errorf("holding not seeded from coin: %+v", h)
	}
}

func TestSyncPricesAndSummarize(t *testing.T) {
	holdings := []PortfolioHolding{{ID: "h1", CoinID: "bitcoin", Amount: 2, AvgBuyPrice: 100}}
	coins := []CryptoCurrency{{ID: "bitcoin", CurrentPrice: 150, PriceChangePercentage24h: 1.5}}

	synced := SyncPrices(holdings, coins)
	if synced[0].CurrentPrice != 150 || synced[0].PriceChange24h != 1.5 {
		t.Fatalf("price not synced: %+v", synced[0])
	}
	if holdings[0].CurrentPrice != 0 {
		t.Error("input holdings were modified")
	}

	s := Summarize(synced)
	if s.TotalValue != 300 {
		t.Errorf("TotalValue = %v, want 300", s.TotalValue)
	}
	if s.TotalGainLoss != 100 {
		t.Errorf("TotalGainLoss = %v, want 100", s.TotalGainLoss)
	}
	if s.TotalGainLossPercent != 50 {
		t.Errorf("TotalGainLossPercent = %v, want 50", s.TotalGainLossPercent)
	}
}

func TestSyncPrices_UnmatchedKeepsStalePrice(t *testing.T) {
	holdings := []PortfolioHolding{{CoinID: "delisted", Amount: 1, CurrentPrice: 7, PriceChange24h: -1}}
	synced := SyncPrices(holdings, []CryptoCurrency{{ID: "bitcoin", CurrentPrice: 150}})
	if synced[0].CurrentPrice != 7 || synced[0].PriceChange24h != -1 {
		t.Errorf("unmatched holding changed: %+v", synced[0])
	}
}

func TestSummarize_ZeroInvested(t *testing.T) {
	holdings := []PortfolioHolding{{CoinID: "airdrop", Amount: 10, AvgBuyPrice: 0, CurrentPrice: 3}}
	s := Summarize(holdings)
	if s.TotalGainLossPercent != 0 {
		t.Errorf("percent = %v, want 0", s.TotalGainLossPercent)
	}
	if math.IsNaN(s.TotalGainLossPercent) || math.IsInf(s.TotalGainLossPercent, 0) {
		t.Error("percent must be finite")
	}
	if s.TotalValue != 30 {
		t.Errorf("TotalValue = %v, want 30", s.TotalValue)
	}

	if empty := Summarize(nil); empty != (PortfolioSummary{}) {
		t.Errorf("empty summary = %+v", empty)
	}
	if p := holdings[0].GainLossPercent(); p != 0 {
		t.Errorf("holding percent = %v, want 0", p)
	}
}

func TestHolding_Apply(t *testing.T) {
	h := PortfolioHolding{CoinID: "bitcoin", Amount: 1, AvgBuyPrice: 10}
	if err := h.Apply(HoldingInput{Amount: -2}); err == nil {
		t.Fatal("expected error for negative amount")
	}
	if err := h.Apply(HoldingInput{Amount: 3, AvgBuyPrice: 20}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if h.Amount != 3 || h.AvgBuyPrice != 20 || h.CoinID != "bitcoin" {
		t.Errorf("unexpected holding after Apply: %+v", h)
	}
}
