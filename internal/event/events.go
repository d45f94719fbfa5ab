package event

import (
	"time"

	"crypto_dash/internal/domain"
)

// Type defines the type of event.
type Type uint16

const (
	EvPriceTick Type = iota + 1
	EvAddHolding
	EvUpdateHolding
	EvRemoveHolding
	EvAddAlert
	EvRemoveAlert
	EvDismissNotice
	EvToggleFavorite
)

func (t Type) String() string {
	switch t {
	case EvPriceTick:
		return "price_tick"
	case EvAddHolding:
		return "add_holding"
	case EvUpdateHolding:
		return "update_holding"
	case EvRemoveHolding:
		return "remove_holding"
	case EvAddAlert:
		return "add_alert"
	case EvRemoveAlert:
		return "remove_alert"
	case EvDismissNotice:
		return "dismiss_notice"
	case EvToggleFavorite:
		return "toggle_favorite"
	default:
		return "unknown"
	}
}

// Event is the interface for all dashboard loop inputs.
type Event interface {
	GetTs() time.Time
	GetType() Type
}

// BaseEvent contains common fields for all events.
type BaseEvent struct {
	Ts time.Time `json:"ts"`
}

func (e BaseEvent) GetTs() time.Time { return e.Ts }

// Result is the answer to a user command.
type Result struct {
	Value any
	Err   error
}

// Command is an event whose sender waits for a Result.
type Command struct {
	BaseEvent
	Reply chan Result `json:"-"`
}

// NewCommand stamps ts and allocates the reply channel.
func NewCommand(ts time.Time) Command {
	return Command{BaseEvent: BaseEvent{Ts: ts}, Reply: make(chan Result, 1)}
}

// Respond delivers the result without blocking the loop.
func (c Command) Respond(v any, err error) {
	if c.Reply == nil {
		return
	}
	select {
	case c.Reply <- Result{Value: v, Err: err}:
	default:
	}
}

// PriceTickEvent carries a fresh top-coins listing.
type PriceTickEvent struct {
	BaseEvent
	Coins []domain.CryptoCurrency `json:"coins"`
}

func (e PriceTickEvent) GetType() Type { return EvPriceTick }

// AddHoldingEvent adds a holding.
type AddHoldingEvent struct {
	Command
	Input domain.HoldingInput
}

func (e AddHoldingEvent) GetType() Type { return EvAddHolding }

// UpdateHoldingEvent edits amount and buy price of a holding.
type UpdateHoldingEvent struct {
	Command
	ID    string
	Input domain.HoldingInput
}

func (e UpdateHoldingEvent) GetType() Type { return EvUpdateHolding }

// RemoveHoldingEvent deletes a holding.
type RemoveHoldingEvent struct {
	Command
	ID string
}

func (e RemoveHoldingEvent) GetType() Type { return EvRemoveHolding }

// AddAlertEvent creates a price alert.
type AddAlertEvent struct {
	Command
	Input domain.AlertInput
}

func (e AddAlertEvent) GetType() Type { return EvAddAlert }

// RemoveAlertEvent deletes an alert.
type RemoveAlertEvent struct {
	Command
	ID string
}

func (e RemoveAlertEvent) GetType() Type { return EvRemoveAlert }

// DismissNoticeEvent removes a transient triggered-alert notice.
type DismissNoticeEvent struct {
	Command
	AlertID string
}

func (e DismissNoticeEvent) GetType() Type { return EvDismissNotice }

// ToggleFavoriteEvent stars or unstars a coin.
type ToggleFavoriteEvent struct {
	Command
	CoinID string
}

func (e ToggleFavoriteEvent) GetType() Type { return EvToggleFavorite }
