package engine

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"crypto_dash/internal/domain"
	"crypto_dash/internal/event"
	"crypto_dash/internal/notify"
	"crypto_dash/internal/storage"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (r *recordingNotifier) Notify(ctx context.Context, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

type frameLog struct {
	mu     sync.Mutex
	frames []string
}

func (f *frameLog) record(frameType string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, frameType)
}

func (f *frameLog) count(frameType string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.frames {
		if t == frameType {
			n++
		}
	}
	return n
}

func coins(btc, eth float64) []domain.CryptoCurrency {
	return []domain.CryptoCurrency{
		{ID: "bitcoin", Symbol: "btc", Name: "Bitcoin", CurrentPrice: btc, PriceChangePercentage24h: 2.5},
		{ID: "ethereum", Symbol: "eth", Name: "Ethereum", CurrentPrice: eth, PriceChangePercentage24h: -1.2},
	}
}

func tick(c []domain.CryptoCurrency) *event.PriceTickEvent {
	return &event.PriceTickEvent{BaseEvent: event.BaseEvent{Ts: testNow}, Coins: c}
}

func newTestDashboard(t *testing.T, store storage.Store) (*Dashboard, *recordingNotifier, *frameLog) {
	t.Helper()
	n := &recordingNotifier{}
	frames := &frameLog{}
	d := NewDashboard(store, n, frames.record, Config{NoticeLimit: 3, Now: func() time.Time { return testNow }})
	d.Load(context.Background())
	return d, n, frames
}

// do runs a command event through the loop synchronously and returns its result.
func do(t *testing.T, d *Dashboard, ev event.Event, reply chan event.Result) event.Result {
	t.Helper()
	d.ProcessEvent(context.Background(), ev)
	select {
	case res := <-reply:
		return res
	default:
		t.Fatal("command produced no reply")
		return event.Result{}
	}
}

func TestDashboard_HoldingLifecycle(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	d, _, frames := newTestDashboard(t, store)

	d.ProcessEvent(ctx, tick(coins(60000, 3000)))

	add := &event.AddHoldingEvent{Command: event.NewCommand(testNow), Input: domain.HoldingInput{CoinID: "bitcoin", Amount: 0.5, AvgBuyPrice: 40000}}
	res := do(t, d, add, add.Reply)
	if res.Err != nil {
		t.Fatalf("add holding: %v", res.Err)
	}
	h := res.Value.(domain.PortfolioHolding)
	if h.CurrentPrice != 60000 || h.Name != "Bitcoin" {
		t.Errorf("holding not seeded from listing: %+v", h)
	}

	snap := d.Snapshot()
	if len(snap.Holdings) != 1 {
		t.Fatalf("expected 1 holding, got %d", len(snap.Holdings))
	}
	if snap.Summary.TotalValue != 30000 || snap.Summary.TotalGainLoss != 10000 {
		t.Errorf("unexpected summary: %+v", snap.Summary)
	}

	// price sync persists the new price
	d.ProcessEvent(ctx, tick(coins(70000, 3000)))
	saved, err := storage.NewRepository[[]domain.PortfolioHolding](store, storage.KeyPortfolio).Load(ctx)
	if err != nil {
		t.Fatalf("load portfolio: %v", err)
	}
	if len(saved) != 1 || saved[0].CurrentPrice != 70000 {
		t.Errorf("portfolio not saved after price sync: %+v", saved)
	}

	upd := &event.UpdateHoldingEvent{Command: event.NewCommand(testNow), ID: h.ID, Input: domain.HoldingInput{Amount: 1, AvgBuyPrice: 50000}}
	if res := do(t, d, upd, upd.Reply); res.Err != nil {
		t.Fatalf("update holding: %v", res.Err)
	}
	if got := d.Snapshot().Holdings[0]; got.Amount != 1 || got.AvgBuyPrice != 50000 {
		t.Errorf("update not applied: %+v", got)
	}

	bad := &event.UpdateHoldingEvent{Command: event.NewCommand(testNow), ID: h.ID, Input: domain.HoldingInput{Amount: -1}}
	if res := do(t, d, bad, bad.Reply); !errors.Is(res.Err, domain.ErrInvalidHolding) {
		t.Errorf("expected ErrInvalidHolding, got %v", res.Err)
	}

	rm := &event.RemoveHoldingEvent{Command: event.NewCommand(testNow), ID: h.ID}
	if res := do(t, d, rm, rm.Reply); res.Err != nil {
		t.Fatalf("remove holding: %v", res.Err)
	}
	rm2 := &event.RemoveHoldingEvent{Command: event.NewCommand(testNow), ID: h.ID}
	if res := do(t, d, rm2, rm2.Reply); !errors.Is(res.Err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", res.Err)
	}
	if len(d.Snapshot().Holdings) != 0 {
		t.Error("holding not removed")
	}
	if frames.count(FramePortfolio) == 0 {
		t.Error("expected portfolio frames")
	}
}

func TestDashboard_AlertTriggersOnce(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	d, n, frames := newTestDashboard(t, store)

	d.ProcessEvent(ctx, tick(coins(60000, 3000)))

	add := &event.AddAlertEvent{Command: event.NewCommand(testNow), Input: domain.AlertInput{CoinID: "bitcoin", TargetPrice: 65000, Condition: domain.ConditionAbove}}
	res := do(t, d, add, add.Reply)
	if res.Err != nil {
		t.Fatalf("add alert: %v", res.Err)
	}
	alert := res.Value.(domain.PriceAlert)
	if !alert.Pending() {
		t.Fatalf("new alert should be pending: %+v", alert)
	}

	d.ProcessEvent(ctx, tick(coins(66000, 3000)))
	d.ProcessEvent(ctx, tick(coins(67000, 3000)))

	snap := d.Snapshot()
	if len(snap.Notices) != 1 {
		t.Fatalf("expected 1 notice, got %d", len(snap.Notices))
	}
	if !snap.Alerts[0].Triggered || snap.Alerts[0].IsActive {
		t.Errorf("alert not in terminal state: %+v", snap.Alerts[0])
	}
	if len(n.sent) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(n.sent))
	}
	if n.sent[0].Title != "Price Alert: Bitcoin" || n.sent[0].Body != "BTC has reached $66,000.00" {
		t.Errorf("unexpected notification: %+v", n.sent[0])
	}
	if frames.count(FrameAlert) != 1 {
		t.Errorf("expected one alert frame, got %d", frames.count(FrameAlert))
	}

	saved, err := storage.NewRepository[[]domain.PriceAlert](store, storage.KeyAlerts).Load(ctx)
	if err != nil || len(saved) != 1 || !saved[0].Triggered {
		t.Errorf("triggered alert not saved: %+v, %v", saved, err)
	}

	dismiss := &event.DismissNoticeEvent{Command: event.NewCommand(testNow), AlertID: alert.ID}
	if res := do(t, d, dismiss, dismiss.Reply); res.Err != nil {
		t.Fatalf("dismiss: %v", res.Err)
	}
	if len(d.Snapshot().Notices) != 0 {
		t.Error("notice not dismissed")
	}
	if len(d.Snapshot().Alerts) != 1 {
		t.Error("dismissing a notice must keep the alert")
	}
}

func TestDashboard_AlertAlreadyMetFiresImmediately(t *testing.T) {
	ctx := context.Background()
	d, n, _ := newTestDashboard(t, storage.NewMemoryStore())
	d.ProcessEvent(ctx, tick(coins(60000, 3000)))

	add := &event.AddAlertEvent{Command: event.NewCommand(testNow), Input: domain.AlertInput{CoinID: "ethereum", TargetPrice: 3500, Condition: domain.ConditionBelow}}
	res := do(t, d, add, add.Reply)
	if res.Err != nil {
		t.Fatalf("add alert: %v", res.Err)
	}
	if a := res.Value.(domain.PriceAlert); !a.Triggered {
		t.Errorf("expected alert to trigger on creation: %+v", a)
	}
	if len(n.sent) != 1 {
		t.Errorf("expected 1 notification, got %d", len(n.sent))
	}
}

func TestDashboard_AddAlertErrors(t *testing.T) {
	ctx := context.Background()
	d, _, _ := newTestDashboard(t, storage.NewMemoryStore())

	tests := []struct {
		name  string
		input domain.AlertInput
		want  error
	}{
		{"no listing yet", domain.AlertInput{CoinID: "bitcoin", TargetPrice: 1, Condition: domain.ConditionAbove}, ErrUnknownCoin},
		{"unknown coin", domain.AlertInput{CoinID: "dogecoin", TargetPrice: 1, Condition: domain.ConditionAbove}, ErrUnknownCoin},
		{"bad condition", domain.AlertInput{CoinID: "bitcoin", TargetPrice: 1, Condition: "sideways"}, domain.ErrInvalidAlert},
		{"zero target", domain.AlertInput{CoinID: "bitcoin", Condition: domain.ConditionBelow}, domain.ErrInvalidAlert},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if i == 1 {
				d.ProcessEvent(ctx, tick(coins(60000, 3000)))
			}
			ev := &event.AddAlertEvent{Command: event.NewCommand(testNow), Input: tt.input}
			if res := do(t, d, ev, ev.Reply); !errors.Is(res.Err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, res.Err)
			}
		})
	}
	if len(d.Snapshot().Alerts) != 0 {
		t.Error("failed adds must not create alerts")
	}
}

func TestDashboard_NoticeLimit(t *testing.T) {
	ctx := context.Background()
	d, _, _ := newTestDashboard(t, storage.NewMemoryStore())
	d.ProcessEvent(ctx, tick(coins(60000, 3000)))

	for i := 0; i < 5; i++ {
		ev := &event.AddAlertEvent{Command: event.NewCommand(testNow), Input: domain.AlertInput{CoinID: "bitcoin", TargetPrice: 70000, Condition: domain.ConditionAbove}}
		do(t, d, ev, ev.Reply)
	}
	d.ProcessEvent(ctx, tick(coins(71000, 3000)))

	if got := len(d.Snapshot().Notices); got != 3 {
		t.Errorf("expected notices capped at 3, got %d", got)
	}
}

func TestDashboard_RemoveAlert(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	d, _, _ := newTestDashboard(t, store)
	d.ProcessEvent(ctx, tick(coins(60000, 3000)))

	add := &event.AddAlertEvent{Command: event.NewCommand(testNow), Input: domain.AlertInput{CoinID: "bitcoin", TargetPrice: 90000, Condition: domain.ConditionAbove}}
	alert := do(t, d, add, add.Reply).Value.(domain.PriceAlert)

	rm := &event.RemoveAlertEvent{Command: event.NewCommand(testNow), ID: alert.ID}
	if res := do(t, d, rm, rm.Reply); res.Err != nil {
		t.Fatalf("remove alert: %v", res.Err)
	}
	saved, _ := storage.NewRepository[[]domain.PriceAlert](store, storage.KeyAlerts).Load(ctx)
	if len(saved) != 0 {
		t.Errorf("alert removal not saved: %+v", saved)
	}

	again := &event.RemoveAlertEvent{Command: event.NewCommand(testNow), ID: alert.ID}
	if res := do(t, d, again, again.Reply); !errors.Is(res.Err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", res.Err)
	}
}

func TestDashboard_ToggleFavorite(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	d, _, frames := newTestDashboard(t, store)

	ev := &event.ToggleFavoriteEvent{Command: event.NewCommand(testNow), CoinID: "bitcoin"}
	res := do(t, d, ev, ev.Reply)
	if favs := res.Value.(domain.Favorites); !favs.Contains("bitcoin") {
		t.Errorf("expected bitcoin starred, got %v", favs)
	}

	ev = &event.ToggleFavoriteEvent{Command: event.NewCommand(testNow), CoinID: "bitcoin"}
	res = do(t, d, ev, ev.Reply)
	if favs := res.Value.(domain.Favorites); favs.Contains("bitcoin") {
		t.Errorf("expected bitcoin unstarred, got %v", favs)
	}

	saved, err := storage.NewRepository[domain.Favorites](store, storage.KeyFavorites).Load(ctx)
	if err != nil || len(saved) != 0 {
		t.Errorf("unexpected saved favorites: %v, %v", saved, err)
	}
	if frames.count(FrameFavorites) != 2 {
		t.Errorf("expected 2 favorites frames, got %d", frames.count(FrameFavorites))
	}
}

func TestDashboard_LoadRestoresAndIsolatesCorruption(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	holdings := []domain.PortfolioHolding{{ID: "h1", CoinID: "bitcoin", Amount: 2, AvgBuyPrice: 100, CurrentPrice: 150}}
	if err := storage.NewRepository[[]domain.PortfolioHolding](store, storage.KeyPortfolio).Save(ctx, holdings); err != nil {
		t.Fatal(err)
	}
	if err := store.Save(ctx, storage.KeyAlerts, []byte("{not json")); err != nil {
		t.Fatal(err)
	}
	if err := store.Save(ctx, storage.KeyFavorites, []byte(`["ethereum"]`)); err != nil {
		t.Fatal(err)
	}

	d, _, _ := newTestDashboard(t, store)
	snap := d.Snapshot()

	if len(snap.Holdings) != 1 || snap.Summary.TotalValue != 300 {
		t.Errorf("holdings not restored: %+v", snap)
	}
	if len(snap.Alerts) != 0 {
		t.Errorf("corrupt alerts should start empty, got %d", len(snap.Alerts))
	}
	if !snap.Favorites.Contains("ethereum") {
		t.Errorf("favorites not restored: %v", snap.Favorites)
	}
}

func TestDashboard_UnmatchedHoldingKeepsStalePrice(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	holdings := []domain.PortfolioHolding{{ID: "h1", CoinID: "obscure", Amount: 1, CurrentPrice: 5}}
	_ = storage.NewRepository[[]domain.PortfolioHolding](store, storage.KeyPortfolio).Save(ctx, holdings)

	d, _, _ := newTestDashboard(t, store)
	d.ProcessEvent(ctx, tick(coins(60000, 3000)))

	if got := d.Snapshot().Holdings[0].CurrentPrice; got != 5 {
		t.Errorf("expected stale price 5, got %v", got)
	}
}

func TestDashboard_RunAndCommands(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	d, _, _ := newTestDashboard(t, storage.NewMemoryStore())

	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	if !d.SubmitPrices(coins(60000, 3000)) {
		t.Fatal("price tick rejected")
	}

	h, err := d.AddHolding(ctx, domain.HoldingInput{CoinID: "ethereum", Amount: 2, AvgBuyPrice: 2000})
	if err != nil {
		t.Fatalf("AddHolding: %v", err)
	}
	if h.CurrentPrice != 3000 {
		t.Errorf("expected price from the earlier tick, got %v", h.CurrentPrice)
	}

	favs, err := d.ToggleFavorite(ctx, "ethereum")
	if err != nil || !favs.Contains("ethereum") {
		t.Errorf("ToggleFavorite: %v %v", favs, err)
	}

	if err := d.RemoveHolding(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}

	if err := d.RemoveAlert(context.Background(), "x"); !errors.Is(err, ErrStopped) {
		t.Errorf("expected ErrStopped after shutdown, got %v", err)
	}
}

func TestDashboard_CommandHonoursContext(t *testing.T) {
	d := NewDashboard(storage.NewMemoryStore(), nil, nil, Config{InboxSize: 1})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// no loop is running, so the reply never comes
	_, err := d.AddHolding(ctx, domain.HoldingInput{CoinID: "bitcoin", Amount: 1})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestDashboard_DumpState(t *testing.T) {
	d, _, _ := newTestDashboard(t, storage.NewMemoryStore())
	d.ProcessEvent(context.Background(), tick(coins(1, 2)))

	path := filepath.Join(t.TempDir(), "dump.json")
	d.DumpState(path)

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("dump not written: %v", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		t.Fatalf("dump is not JSON: %v", err)
	}
	if len(snap.Coins) != 2 {
		t.Errorf("expected 2 coins in dump, got %d", len(snap.Coins))
	}
}
