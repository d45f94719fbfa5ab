package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidAlert is returned when user input cannot form an alert.
var ErrInvalidAlert = errors.New("invalid alert")

// AlertCondition is the direction a price must cross.
type AlertCondition string

const (
	ConditionAbove AlertCondition = "above"
	ConditionBelow AlertCondition = "below"
)

// Valid reports whether c is a known condition.
func (c AlertCondition) Valid() bool {
	return c == ConditionAbove || c == ConditionBelow
}

// PriceAlert is a user-defined watch on a coin price.
// Lifecycle: active+untriggered -> triggered+inactive (terminal).
type PriceAlert struct {
	ID          string         `json:"id"`
	CoinID      string         `json:"coinId"`
	CoinName    string         `json:"coinName"`
	CoinSymbol  string         `json:"coinSymbol"`
	CoinImage   string         `json:"coinImage"`
	TargetPrice float64        `json:"targetPrice"`
	Condition   AlertCondition `json:"condition"`
	IsActive    bool           `json:"isActive"`
	Triggered   bool           `json:"triggered"`
	CreatedAt   time.Time      `json:"createdAt"`
	TriggeredAt *time.Time     `json:"triggeredAt,omitempty"`
}

// AlertInput is the user request to create an alert.
type AlertInput struct {
	CoinID      string         `json:"coinId"`
	TargetPrice float64        `json:"targetPrice"`
	Condition   AlertCondition `json:"condition"`
}

// NewPriceAlert creates an active, untriggered alert for coin.
func NewPriceAlert(coin CryptoCurrency, targetPrice float64, cond AlertCondition, now time.Time) (*PriceAlert, error) {
	if strings.TrimSpace(coin.ID) == "" {
		return nil, fmt.Errorf("%w: coin id is required", ErrInvalidAlert)
	}
	if !cond.Valid() {
		return nil, fmt.Errorf("%w: unknown condition %q", ErrInvalidAlert, cond)
	}
	if targetPrice <= 0 {
		return nil, fmt.Errorf("%w: target price must be positive", ErrInvalidAlert)
	}
	return &PriceAlert{
		ID:          uuid.NewString(),
		CoinID:      coin.ID,
		CoinName:    coin.Name,
		CoinSymbol:  coin.Symbol,
		CoinImage:   coin.Image,
		TargetPrice: targetPrice,
		Condition:   cond,
		IsActive:    true,
		CreatedAt:   now,
	}, nil
}

// Pending reports whether the alert is still being evaluated.
func (a *PriceAlert) Pending() bool {
	return a.IsActive && !a.Triggered
}

// CheckCondition checks if the alert condition is met at currentPrice.
// Triggered or inactive alerts never match.
func (a *PriceAlert) CheckCondition(currentPrice float64) bool {
	if !a.Pending() {
		return false
	}
	switch a.Condition {
	case ConditionAbove:
		return currentPrice >= a.TargetPrice
	case ConditionBelow:
		return currentPrice <= a.TargetPrice
	default:
		return false
	}
}

// Trigger moves the alert to its terminal state.
func (a *PriceAlert) Trigger(now time.Time) {
	a.Triggered = true
	a.IsActive = false
	a.TriggeredAt = &now
}

// AlertNotice is the transient "just triggered" message shown to the user.
type AlertNotice struct {
	Alert PriceAlert `json:"alert"`
	Price float64    `json:"price"`
	At    time.Time  `json:"at"`
}

// EvaluateAlerts checks every pending alert against coins and triggers the
// ones whose condition holds. Alerts for coins missing from coins are left
// for a later pass. The input slice is not modified.
func EvaluateAlerts(alerts []PriceAlert, coins []CryptoCurrency, now time.Time) ([]PriceAlert, []AlertNotice) {
	idx := IndexByID(coins)
	out := make([]PriceAlert, len(alerts))
	var fired []AlertNotice
	for i, a := range alerts {
		if a.Pending() {
			if c, ok := idx[a.CoinID]; ok && a.CheckCondition(c.CurrentPrice) {
				a.Trigger(now)
				fired = append(fired, AlertNotice{Alert: a, Price: c.CurrentPrice, At: now})
			}
		}
		out[i] = a
	}
	return out, fired
}
