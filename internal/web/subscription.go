package web

import (
	"log/slog"
	"sync"
	"time"

	"crypto_dash/internal/domain"
	"crypto_dash/internal/market"
	"crypto_dash/internal/query"
)

// Frame types a connection receives for what it follows.
const (
	FrameSearch = "search"
	FrameCoin   = "coin"
	FrameChart  = "chart"
)

// SearchFrame answers a debounced search.
type SearchFrame struct {
	Query string              `json:"query"`
	Coins []domain.SearchCoin `json:"coins"`
	Error string              `json:"error,omitempty"`
}

// DetailFrame carries the detail or chart of the coin a connection follows.
type DetailFrame struct {
	ID   string `json:"id"`
	Days int    `json:"days,omitempty"`
	Envelope
}

// topic names what a subscription is bound to.
type topic struct {
	Name string
	Days int
}

type renderFunc[T any] func(t topic, st query.State[T], enabled bool) (any, bool)

// subscription follows one cached query for one connection. Switching topics
// rebinds it, so results for a previous topic are never sent.
type subscription[T any] struct {
	frameType string
	render    renderFunc[T]
	send      func([]byte) bool

	mu      sync.Mutex
	binding *query.Binding[T]
	topic   topic
	enabled bool
	closed  bool
	seq     uint64
	sentSeq uint64
	sentAt  time.Time

	done chan struct{}
}

func newSubscription[T any](frameType string, initial *query.Query[T], render renderFunc[T], send func([]byte) bool) *subscription[T] {
	s := &subscription[T]{
		frameType: frameType,
		render:    render,
		send:      send,
		binding:   query.NewBinding(initial),
		enabled:   initial.Options().Enabled,
		done:      make(chan struct{}),
	}
	go s.loop()
	return s
}

func (s *subscription[T]) loop() {
	for {
		select {
		case <-s.done:
			return
		case <-s.binding.Changes():
			s.flush()
		}
	}
}

// switchTo rebinds to q and answers at once when q is cached or disabled.
func (s *subscription[T]) switchTo(t topic, q *query.Query[T]) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.binding.Rebind(q)
	s.topic = t
	s.enabled = q.Options().Enabled
	s.seq++
	s.mu.Unlock()
	s.flush()
}

// flush sends the bound state on the first answer after a switch and
// whenever newer data lands.
func (s *subscription[T]) flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	st := s.binding.State()
	ready := !s.enabled || st.HasData || (st.Err != nil && !st.IsFetching)
	if !ready || (s.seq == s.sentSeq && !st.UpdatedAt.After(s.sentAt)) {
		return
	}
	s.sentSeq, s.sentAt = s.seq, st.UpdatedAt

	payload, ok := s.render(s.topic, st, s.enabled)
	if !ok {
		return
	}
	b, err := encodeFrame(s.frameType, payload)
	if err != nil {
		slog.Error("Failed to encode frame", slog.String("type", s.frameType), slog.Any("error", err))
		return
	}
	s.send(b)
}

func (s *subscription[T]) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
	s.binding.Close()
}

// Disabled searches answer with no matches.
func renderSearch(t topic, st query.State[*domain.SearchResult], enabled bool) (any, bool) {
	out := SearchFrame{Query: t.Name, Coins: []domain.SearchCoin{}}
	if !enabled {
		return out, true
	}
	if st.Err != nil {
		out.Error = st.Err.Error()
	}
	if coins := market.SearchMatches(st.Data); coins != nil {
		out.Coins = coins
	}
	return out, true
}

func renderCoin(t topic, st query.State[*domain.CoinDetail], enabled bool) (any, bool) {
	if !enabled {
		return nil, false
	}
	env, _ := NewEnvelope(st, st.Err)
	return DetailFrame{ID: t.Name, Envelope: env}, true
}

func renderChart(t topic, st query.State[*domain.ChartData], enabled bool) (any, bool) {
	if !enabled {
		return nil, false
	}
	env, _ := mapped(st, st.Err, func(c *domain.ChartData) market.ChartView {
		return market.BuildChartView(t.Days, c)
	})
	return DetailFrame{ID: t.Name, Days: t.Days, Envelope: env}, true
}
