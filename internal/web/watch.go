package web

import (
	"context"
	"sync"
	"time"

	"crypto_dash/internal/domain"
	"crypto_dash/internal/market"
	"crypto_dash/internal/query"
)

// Frame types pushed by MarketWatch.
const (
	FrameOverview  = "overview"
	FrameDominance = "dominance"
	FrameTrending  = "trending"
)

// MarketWatch observes the market widgets while at least one stream client is
// connected, which keeps their refresh policies running, and pushes a frame
// whenever one of them gets new data.
type MarketWatch struct {
	hooks *market.Hooks
	push  func(frameType string, payload any)

	mu      sync.Mutex
	clients int
	cancel  context.CancelFunc
}

// NewMarketWatch creates an idle watch. push is usually Hub.Broadcast.
func NewMarketWatch(hooks *market.Hooks, push func(frameType string, payload any)) *MarketWatch {
	return &MarketWatch{hooks: hooks, push: push}
}

// Attach counts a connected client. The first one starts observing.
func (w *MarketWatch) Attach() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.clients++
	if w.clients == 1 {
		ctx, cancel := context.WithCancel(context.Background())
		w.cancel = cancel
		go w.run(ctx)
	}
}

// Detach counts a disconnected client. The last one stops observing.
func (w *MarketWatch) Detach() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.clients == 0 {
		return
	}
	w.clients--
	if w.clients == 0 && w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
}

// Frames returns the widget frames for what is already cached.
func (w *MarketWatch) Frames() []Frame {
	global, sentiment, trending := w.hooks.GlobalData().Peek(), w.hooks.FearGreed().Peek(), w.hooks.Trending().Peek()

	var frames []Frame
	if global.HasData {
		frames = append(frames,
			Frame{Type: FrameOverview, Data: overview(global, sentiment)},
			Frame{Type: FrameDominance, Data: market.BuildDominance(global.Data)},
		)
	}
	if trending.HasData {
		frames = append(frames, Frame{Type: FrameTrending, Data: trending.Data})
	}
	return frames
}

func overview(global query.State[*domain.GlobalMarketData], sentiment query.State[domain.FearGreedIndex]) market.Overview {
	var fg *domain.FearGreedIndex
	if sentiment.HasData {
		fg = &sentiment.Data
	}
	return market.BuildOverview(global.Data, fg)
}

func (w *MarketWatch) run(ctx context.Context) {
	global := w.hooks.GlobalData().Observe()
	sentiment := w.hooks.FearGreed().Observe()
	trending := w.hooks.Trending().Observe()
	defer func() {
		global.Close()
		sentiment.Close()
		trending.Close()
	}()

	var seenGlobal, seenSentiment, seenTrending time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-global.Changes():
		case <-sentiment.Changes():
		case <-trending.Changes():
		}

		g, s, t := global.State(), sentiment.State(), trending.State()
		globalMoved := newer(g.UpdatedAt, &seenGlobal)
		sentimentMoved := newer(s.UpdatedAt, &seenSentiment)
		if globalMoved || sentimentMoved {
			if g.HasData {
				w.push(FrameOverview, overview(g, s))
				w.push(FrameDominance, market.BuildDominance(g.Data))
			}
		}
		if newer(t.UpdatedAt, &seenTrending) && t.HasData {
			w.push(FrameTrending, t.Data)
		}
	}
}

func newer(at time.Time, seen *time.Time) bool {
	if !at.After(*seen) {
		return false
	}
	*seen = at
	return true
}
