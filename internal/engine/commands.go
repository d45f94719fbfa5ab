package engine

import (
	"context"
	"fmt"

	"crypto_dash/internal/domain"
	"crypto_dash/internal/event"
)

// SubmitPrices queues a fresh listing. It drops the tick when the inbox is
// full; the next poll carries newer prices anyway.
func (d *Dashboard) SubmitPrices(coins []domain.CryptoCurrency) bool {
	ev := &event.PriceTickEvent{BaseEvent: event.BaseEvent{Ts: d.cfg.Now()}, Coins: coins}
	select {
	case d.inbox <- ev:
		return true
	default:
		return false
	}
}

// send queues a command and waits for its result.
func (d *Dashboard) send(ctx context.Context, ev event.Event, reply chan event.Result) (any, error) {
	select {
	case d.inbox <- ev:
	case <-d.done:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case res := <-reply:
		return res.Value, res.Err
	case <-d.done:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func call[T any](ctx context.Context, d *Dashboard, ev event.Event, reply chan event.Result) (T, error) {
	var zero T
	v, err := d.send(ctx, ev, reply)
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	out, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("unexpected result %T for %s", v, ev.GetType())
	}
	return out, nil
}

// AddHolding adds a position, seeded with the live price when the coin is listed.
func (d *Dashboard) AddHolding(ctx context.Context, in domain.HoldingInput) (domain.PortfolioHolding, error) {
	ev := &event.AddHoldingEvent{Command: event.NewCommand(d.cfg.Now()), Input: in}
	return call[domain.PortfolioHolding](ctx, d, ev, ev.Reply)
}

// UpdateHolding edits amount and average buy price.
func (d *Dashboard) UpdateHolding(ctx context.Context, id string, in domain.HoldingInput) (domain.PortfolioHolding, error) {
	ev := &event.UpdateHoldingEvent{Command: event.NewCommand(d.cfg.Now()), ID: id, Input: in}
	return call[domain.PortfolioHolding](ctx, d, ev, ev.Reply)
}

// RemoveHolding deletes a position.
func (d *Dashboard) RemoveHolding(ctx context.Context, id string) error {
	ev := &event.RemoveHoldingEvent{Command: event.NewCommand(d.cfg.Now()), ID: id}
	_, err := d.send(ctx, ev, ev.Reply)
	return err
}

// AddAlert creates an alert for a coin of the current listing.
func (d *Dashboard) AddAlert(ctx context.Context, in domain.AlertInput) (domain.PriceAlert, error) {
	ev := &event.AddAlertEvent{Command: event.NewCommand(d.cfg.Now()), Input: in}
	return call[domain.PriceAlert](ctx, d, ev, ev.Reply)
}

// RemoveAlert deletes an alert.
func (d *Dashboard) RemoveAlert(ctx context.Context, id string) error {
	ev := &event.RemoveAlertEvent{Command: event.NewCommand(d.cfg.Now()), ID: id}
	_, err := d.send(ctx, ev, ev.Reply)
	return err
}

// DismissNotice drops the transient notice of a triggered alert.
func (d *Dashboard) DismissNotice(ctx context.Context, alertID string) error {
	ev := &event.DismissNoticeEvent{Command: event.NewCommand(d.cfg.Now()), AlertID: alertID}
	_, err := d.send(ctx, ev, ev.Reply)
	return err
}

// ToggleFavorite stars or unstars a coin and returns the new list.
func (d *Dashboard) ToggleFavorite(ctx context.Context, coinID string) (domain.Favorites, error) {
	ev := &event.ToggleFavoriteEvent{Command: event.NewCommand(d.cfg.Now()), CoinID: coinID}
	return call[domain.Favorites](ctx, d, ev, ev.Reply)
}
