// Package engine runs the dashboard state loop. Holdings, alerts, favorites
// and notices are owned by one goroutine; everything else talks to it through
// events.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"
	"time"

	"crypto_dash/internal/domain"
	"crypto_dash/internal/event"
	"crypto_dash/internal/notify"
	"crypto_dash/internal/storage"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrUnknownCoin = errors.New("coin is not in the current listing")
	ErrStopped     = errors.New("dashboard stopped")
)

// Frame types passed to the update callback.
const (
	FramePrices    = "prices"
	FramePortfolio = "portfolio"
	FrameAlerts    = "alerts"
	FrameAlert     = "alert"
	FrameFavorites = "favorites"
)

// Config tunes the loop.
type Config struct {
	InboxSize   int
	NoticeLimit int
	Now         func() time.Time
}

// Snapshot is a consistent copy of the dashboard state for readers.
type Snapshot struct {
	Coins     []domain.CryptoCurrency   `json:"coins"`
	PricesAt  time.Time                 `json:"prices_at"`
	Holdings  []domain.PortfolioHolding `json:"holdings"`
	Summary   domain.PortfolioSummary   `json:"summary"`
	Alerts    []domain.PriceAlert       `json:"alerts"`
	Notices   []domain.AlertNotice      `json:"notices"`
	Favorites domain.Favorites          `json:"favorites"`
}

// PortfolioView is the holdings list with its totals.
type PortfolioView struct {
	Holdings []domain.PortfolioHolding `json:"holdings"`
	Summary  domain.PortfolioSummary   `json:"summary"`
}

// Dashboard is the single-threaded state owner.
type Dashboard struct {
	inbox chan event.Event
	done  chan struct{}
	cfg   Config

	coins     []domain.CryptoCurrency
	pricesAt  time.Time
	holdings  []domain.PortfolioHolding
	alerts    []domain.PriceAlert
	notices   []domain.AlertNotice
	favorites domain.Favorites

	portfolioRepo *storage.Repository[[]domain.PortfolioHolding]
	alertRepo     *storage.Repository[[]domain.PriceAlert]
	favoriteRepo  *storage.Repository[domain.Favorites]

	notifier notify.Notifier

	// Boundary: used to push state changes to stream clients
	onUpdate func(frameType string, payload any)

	mu   sync.RWMutex // guards view, used only for external reads
	view Snapshot
}

// NewDashboard creates the loop. Call Load, then Run in its own goroutine.
func NewDashboard(store storage.Store, notifier notify.Notifier, onUpdate func(string, any), cfg Config) *Dashboard {
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = 256
	}
	if cfg.NoticeLimit <= 0 {
		cfg.NoticeLimit = 50
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Dashboard{
		inbox:         make(chan event.Event, cfg.InboxSize),
		done:          make(chan struct{}),
		cfg:           cfg,
		portfolioRepo: storage.NewRepository[[]domain.PortfolioHolding](store, storage.KeyPortfolio),
		alertRepo:     storage.NewRepository[[]domain.PriceAlert](store, storage.KeyAlerts),
		favoriteRepo:  storage.NewRepository[domain.Favorites](store, storage.KeyFavorites),
		notifier:      notifier,
		onUpdate:      onUpdate,
	}
}

// Load restores each collection once. A collection that cannot be read is
// logged and starts empty; the others are unaffected.
func (d *Dashboard) Load(ctx context.Context) {
	if holdings, err := d.portfolioRepo.Load(ctx); err != nil {
		slog.Error("Portfolio unreadable, starting empty", slog.Any("error", err))
	} else {
		d.holdings = holdings
	}

	if alerts, err := d.alertRepo.Load(ctx); err != nil {
		slog.Error("Alerts unreadable, starting empty", slog.Any("error", err))
	} else {
		d.alerts = alerts
	}

	if favorites, err := d.favoriteRepo.Load(ctx); err != nil {
		slog.Error("Favorites unreadable, starting empty", slog.Any("error", err))
	} else {
		d.favorites = favorites
	}

	slog.Info("Dashboard state loaded",
		slog.Int("holdings", len(d.holdings)),
		slog.Int("alerts", len(d.alerts)),
		slog.Int("favorites", len(d.favorites)))
	d.publish()
}

// Inbox returns the event channel. External producers send events here.
func (d *Dashboard) Inbox() chan<- event.Event {
	return d.inbox
}

// Run processes events until ctx is done. It MUST run in a single goroutine.
func (d *Dashboard) Run(ctx context.Context) {
	slog.Info("Dashboard loop started")
	defer close(d.done)

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Dashboard loop panic", slog.Any("panic", r))
			d.DumpState("panic_dump.json")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Dashboard loop stopping")
			return
		case ev := <-d.inbox:
			d.processEvent(ctx, ev)
		}
	}
}

// ProcessEvent handles one event synchronously. Only for tests and for
// callers that own the loop.
func (d *Dashboard) ProcessEvent(ctx context.Context, ev event.Event) {
	d.processEvent(ctx, ev)
}

func (d *Dashboard) processEvent(ctx context.Context, ev event.Event) {
	switch e := ev.(type) {
	case *event.PriceTickEvent:
		d.handlePriceTick(ctx, e)
	case *event.AddHoldingEvent:
		e.Respond(d.addHolding(ctx, e.Input))
	case *event.UpdateHoldingEvent:
		e.Respond(d.updateHolding(ctx, e.ID, e.Input))
	case *event.RemoveHoldingEvent:
		e.Respond(nil, d.removeHolding(ctx, e.ID))
	case *event.AddAlertEvent:
		e.Respond(d.addAlert(ctx, e.Input))
	case *event.RemoveAlertEvent:
		e.Respond(nil, d.removeAlert(ctx, e.ID))
	case *event.DismissNoticeEvent:
		e.Respond(nil, d.dismissNotice(e.AlertID))
	case *event.ToggleFavoriteEvent:
		e.Respond(d.toggleFavorite(ctx, e.CoinID))
	default:
		slog.Warn("Unknown event type", slog.String("type", ev.GetType().String()))
		return
	}
	d.publish()
}

func (d *Dashboard) handlePriceTick(ctx context.Context, e *event.PriceTickEvent) {
	d.coins = e.Coins
	d.pricesAt = e.Ts
	d.emit(FramePrices, e.Coins)

	if len(d.holdings) > 0 {
		d.holdings = domain.SyncPrices(d.holdings, d.coins)
		d.savePortfolio(ctx)
	}
	d.evaluateAlerts(ctx)
}

// evaluateAlerts triggers pending alerts against the latest listing.
func (d *Dashboard) evaluateAlerts(ctx context.Context) {
	if len(d.coins) == 0 || len(d.alerts) == 0 {
		return
	}
	alerts, fired := domain.EvaluateAlerts(d.alerts, d.coins, d.cfg.Now())
	if len(fired) == 0 {
		return
	}

	d.alerts = alerts
	d.saveAlerts(ctx)

	for _, n := range fired {
		slog.Info("Price alert triggered",
			slog.String("coin", n.Alert.CoinID),
			slog.String("condition", string(n.Alert.Condition)),
			slog.Float64("target", n.Alert.TargetPrice),
			slog.Float64("price", n.Price))

		d.notices = append(d.notices, n)
		d.emit(FrameAlert, n)
		if d.notifier != nil {
			if err := d.notifier.Notify(ctx, notify.ForAlert(n)); err != nil {
				slog.Warn("Notification failed", slog.Any("error", err))
			}
		}
	}
	if over := len(d.notices) - d.cfg.NoticeLimit; over > 0 {
		d.notices = slices.Clone(d.notices[over:])
	}
}

func (d *Dashboard) coin(id string) *domain.CryptoCurrency {
	for i := range d.coins {
		if d.coins[i].ID == id {
			return &d.coins[i]
		}
	}
	return nil
}

func (d *Dashboard) addHolding(ctx context.Context, in domain.HoldingInput) (domain.PortfolioHolding, error) {
	h, err := domain.NewHolding(in, d.coin(in.CoinID))
	if err != nil {
		return domain.PortfolioHolding{}, err
	}
	d.holdings = append(slices.Clone(d.holdings), h)
	d.savePortfolio(ctx)
	return h, nil
}

func (d *Dashboard) updateHolding(ctx context.Context, id string, in domain.HoldingInput) (domain.PortfolioHolding, error) {
	i := slices.IndexFunc(d.holdings, func(h domain.PortfolioHolding) bool { return h.ID == id })
	if i < 0 {
		return domain.PortfolioHolding{}, fmt.Errorf("holding %s: %w", id, ErrNotFound)
	}
	holdings := slices.Clone(d.holdings)
	if err := holdings[i].Apply(in); err != nil {
		return domain.PortfolioHolding{}, err
	}
	d.holdings = holdings
	d.savePortfolio(ctx)
	return holdings[i], nil
}

func (d *Dashboard) removeHolding(ctx context.Context, id string) error {
	i := slices.IndexFunc(d.holdings, func(h domain.PortfolioHolding) bool { return h.ID == id })
	if i < 0 {
		return fmt.Errorf("holding %s: %w", id, ErrNotFound)
	}
	d.holdings = slices.Delete(slices.Clone(d.holdings), i, i+1)
	d.savePortfolio(ctx)
	return nil
}

func (d *Dashboard) addAlert(ctx context.Context, in domain.AlertInput) (domain.PriceAlert, error) {
	c := d.coin(in.CoinID)
	if c == nil {
		return domain.PriceAlert{}, fmt.Errorf("%s: %w", in.CoinID, ErrUnknownCoin)
	}
	a, err := domain.NewPriceAlert(*c, in.TargetPrice, in.Condition, d.cfg.Now())
	if err != nil {
		return domain.PriceAlert{}, err
	}
	d.alerts = append(slices.Clone(d.alerts), *a)
	d.saveAlerts(ctx)

	// a new alert is checked against the current prices right away
	d.evaluateAlerts(ctx)
	for _, stored := range d.alerts {
		if stored.ID == a.ID {
			return stored, nil
		}
	}
	return *a, nil
}

func (d *Dashboard) removeAlert(ctx context.Context, id string) error {
	i := slices.IndexFunc(d.alerts, func(a domain.PriceAlert) bool { return a.ID == id })
	if i < 0 {
		return fmt.Errorf("alert %s: %w", id, ErrNotFound)
	}
	d.alerts = slices.Delete(slices.Clone(d.alerts), i, i+1)
	d.saveAlerts(ctx)
	return nil
}

func (d *Dashboard) dismissNotice(alertID string) error {
	i := slices.IndexFunc(d.notices, func(n domain.AlertNotice) bool { return n.Alert.ID == alertID })
	if i < 0 {
		return fmt.Errorf("notice %s: %w", alertID, ErrNotFound)
	}
	d.notices = slices.Delete(slices.Clone(d.notices), i, i+1)
	return nil
}

func (d *Dashboard) toggleFavorite(ctx context.Context, coinID string) (domain.Favorites, error) {
	if coinID == "" {
		return nil, fmt.Errorf("coin id: %w", ErrNotFound)
	}
	d.favorites = d.favorites.Toggle(coinID)
	if err := d.favoriteRepo.Save(ctx, d.favorites); err != nil {
		slog.Error("Failed to save favorites", slog.Any("error", err))
	}
	d.emit(FrameFavorites, d.favorites)
	return slices.Clone(d.favorites), nil
}

// Saves are whole-collection and last-writer-wins. A failed save keeps the
// in-memory state and is retried implicitly by the next mutation.
func (d *Dashboard) savePortfolio(ctx context.Context) {
	if err := d.portfolioRepo.Save(ctx, d.holdings); err != nil {
		slog.Error("Failed to save portfolio", slog.Any("error", err))
	}
	d.emit(FramePortfolio, PortfolioView{Holdings: d.holdings, Summary: domain.Summarize(d.holdings)})
}

func (d *Dashboard) saveAlerts(ctx context.Context) {
	if err := d.alertRepo.Save(ctx, d.alerts); err != nil {
		slog.Error("Failed to save alerts", slog.Any("error", err))
	}
	d.emit(FrameAlerts, d.alerts)
}

func (d *Dashboard) emit(frameType string, payload any) {
	if d.onUpdate != nil {
		d.onUpdate(frameType, payload)
	}
}

// publish copies the loop state into the read view.
func (d *Dashboard) publish() {
	view := Snapshot{
		Coins:     d.coins,
		PricesAt:  d.pricesAt,
		Holdings:  slices.Clone(d.holdings),
		Summary:   domain.Summarize(d.holdings),
		Alerts:    slices.Clone(d.alerts),
		Notices:   slices.Clone(d.notices),
		Favorites: slices.Clone(d.favorites),
	}
	d.mu.Lock()
	d.view = view
	d.mu.Unlock()
}

// Snapshot returns the state as of the last processed event.
func (d *Dashboard) Snapshot() Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.view
}

// DumpState writes the read view to a file (for post-mortem).
func (d *Dashboard) DumpState(filename string) {
	slog.Info("Dumping dashboard state", slog.String("file", filename))

	b, err := json.MarshalIndent(d.Snapshot(), "", "  ")
	if err != nil {
		slog.Error("Failed to marshal state", slog.Any("error", err))
		return
	}
	if err := os.WriteFile(filename, b, 0644); err != nil {
		slog.Error("Failed to write state dump", slog.Any("error", err))
	}
}
