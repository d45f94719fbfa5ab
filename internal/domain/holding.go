package domain

import (
	"errors"
	"fmt"
	"strings"

	"crypto_dash/pkg/safe"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrInvalidHolding is returned when user input cannot form a holding.
var ErrInvalidHolding = errors.New("invalid holding")

// PortfolioHolding is a user-entered position merged with live price fields.
// JSON keys keep the camelCase layout of the persisted browser collection.
type PortfolioHolding struct {
	ID             string  `json:"id"`
	CoinID         string  `json:"coinId"`
	Symbol         string  `json:"symbol"`
	Name           string  `json:"name"`
	Image          string  `json:"image"`
	Amount         float64 `json:"amount"`
	AvgBuyPrice    float64 `json:"avgBuyPrice"`
	CurrentPrice   float64 `json:"currentPrice"`
	PriceChange24h float64 `json:"priceChange24h"`
}

// HoldingInput is the user-editable part of a holding.
type HoldingInput struct {
	CoinID      string  `json:"coinId"`
	Symbol      string  `json:"symbol,omitempty"`
	Name        string  `json:"name,omitempty"`
	Image       string  `json:"image,omitempty"`
	Amount      float64 `json:"amount"`
	AvgBuyPrice float64 `json:"avgBuyPrice"`
}

// Validate enforces amount >= 0 and a non-negative buy price.
func (in HoldingInput) Validate() error {
	if strings.TrimSpace(in.CoinID) == "" {
		return fmt.Errorf("%w: coin id is required", ErrInvalidHolding)
	}
	if in.Amount < 0 || safe.Finite(in.Amount) != in.Amount {
		return fmt.Errorf("%w: amount must be >= 0", ErrInvalidHolding)
	}
	if in.AvgBuyPrice < 0 || safe.Finite(in.AvgBuyPrice) != in.AvgBuyPrice {
		return fmt.Errorf("%w: average buy price must be >= 0", ErrInvalidHolding)
	}
	return nil
}

// NewHolding builds a holding from validated input. When coin is non-nil its
// metadata and live price seed the holding.
func NewHolding(in HoldingInput, coin *CryptoCurrency) (PortfolioHolding, error) {
	if err := in.Validate(); err != nil {
		return PortfolioHolding{}, err
	}
	h := PortfolioHolding{
		ID:          uuid.NewString(),
		CoinID:      in.CoinID,
		Symbol:      in.Symbol,
		Name:        in.Name,
		Image:       in.Image,
		Amount:      in.Amount,
		AvgBuyPrice: in.AvgBuyPrice,
	}
	if coin != nil {
		h.Symbol = coin.Symbol
		h.Name = coin.Name
		h.Image = coin.Image
		h.CurrentPrice = coin.CurrentPrice
		h.PriceChange24h = coin.PriceChangePercentage24h
	}
	return h, nil
}

// Apply edits amount and buy price in place.
func (h *PortfolioHolding) Apply(in HoldingInput) error {
	in.CoinID = h.CoinID
	if err := in.Validate(); err != nil {
		return err
	}
	h.Amount = in.Amount
	h.AvgBuyPrice = in.AvgBuyPrice
	return nil
}

// Value is amount * current price.
func (h *PortfolioHolding) Value() float64 {
	return h.Amount * h.CurrentPrice
}

// Invested is amount * average buy price.
func (h *PortfolioHolding) Invested() float64 {
	return h.Amount * h.AvgBuyPrice
}

// GainLoss is the unrealized profit of the holding.
func (h *PortfolioHolding) GainLoss() float64 {
	return h.Value() - h.Invested()
}

// GainLossPercent is 0 when nothing was invested.
func (h *PortfolioHolding) GainLossPercent() float64 {
	return safe.Percent(h.GainLoss(), h.Invested())
}

// SyncPrices overwrites live price fields from coins by id. Holdings whose
// coin is absent keep their previous (stale) price. The input is not modified.
func SyncPrices(holdings []PortfolioHolding, coins []CryptoCurrency) []PortfolioHolding {
	idx := IndexByID(coins)
	out := make([]PortfolioHolding, len(holdings))
	for i, h := range holdings {
		if c, ok := idx[h.CoinID]; ok {
			h.CurrentPrice = c.CurrentPrice
			h.PriceChange24h = c.PriceChangePercentage24h
		}
		out[i] = h
	}
	return out
}

// PortfolioSummary holds aggregates derived from the holdings list.
type PortfolioSummary struct {
	TotalValue           float64 `json:"totalValue"`
	TotalInvested        float64 `json:"totalInvested"`
	TotalGainLoss        float64 `json:"totalGainLoss"`
	TotalGainLossPercent float64 `json:"totalGainLossPercent"`
}

// Summarize recomputes the aggregates from scratch. The percentage is 0 when
// the total invested is exactly zero.
func Summarize(holdings []PortfolioHolding) PortfolioSummary {
	value := decimal.Zero
	invested := decimal.Zero
	for _, h := range holdings {
		amount := decimal.NewFromFloat(h.Amount)
		value = value.Add(amount.Mul(decimal.NewFromFloat(h.CurrentPrice)))
		invested = invested.Add(amount.Mul(decimal.NewFromFloat(h.AvgBuyPrice)))
	}
	gain := value.Sub(invested)

	s := PortfolioSummary{
		TotalValue:    value.InexactFloat64(),
		TotalInvested: invested.InexactFloat64(),
		TotalGainLoss: gain.InexactFloat64(),
	}
	if !invested.IsZero() {
		s.TotalGainLossPercent = gain.Div(invested).Mul(decimal.NewFromInt(100)).InexactFloat64()
	}
	return s
}
