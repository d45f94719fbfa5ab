package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"crypto_dash/internal/domain"
	"crypto_dash/internal/market"
	"crypto_dash/internal/query"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

// Frame is one message on the dashboard stream.
type Frame struct {
	Type string    `json:"type"`
	Data any       `json:"data,omitempty"`
	At   time.Time `json:"at"`
}

// ClientMessage is what stream clients may send. "search" follows Query after
// the debounce delay; "coin" follows the detail and the Days chart of ID.
type ClientMessage struct {
	Type  string `json:"type"`
	Query string `json:"query"`
	ID    string `json:"id"`
	Days  int    `json:"days"`
}

// Sources builds the cached queries a stream connection can follow.
type Sources struct {
	Search func(q string) *query.Query[*domain.SearchResult]
	Coin   func(id string) *query.Query[*domain.CoinDetail]
	Chart  func(id string, days int) *query.Query[*domain.ChartData]
}

// Presence is told when stream clients come and go.
type Presence interface {
	Attach()
	Detach()
}

// Hub fans frames out to every connected stream client.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*streamClient]struct{}
	upgrader websocket.Upgrader
	sources  Sources
	debounce time.Duration

	// Greeting returns the frames sent to a client right after it connects.
	Greeting func() []Frame
	// Presence, when set, is attached for every registered client.
	Presence Presence
}

// NewHub creates a hub. Search messages are debounced by debounce.
func NewHub(sources Sources, debounce time.Duration) *Hub {
	if debounce <= 0 {
		debounce = query.DefaultDebounce
	}
	return &Hub{
		clients: make(map[*streamClient]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		sources:  sources,
		debounce: debounce,
	}
}

type streamClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (c *streamClient) enqueue(b []byte) bool {
	select {
	case <-c.done:
		return false
	case c.send <- b:
		return true
	default:
		return false
	}
}

func (c *streamClient) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func encodeFrame(frameType string, payload any) ([]byte, error) {
	return json.Marshal(Frame{Type: frameType, Data: payload, At: time.Now()})
}

// Broadcast sends a frame to all clients. Clients that cannot keep up are
// disconnected.
func (h *Hub) Broadcast(frameType string, payload any) {
	b, err := encodeFrame(frameType, payload)
	if err != nil {
		slog.Error("Failed to encode frame", slog.String("type", frameType), slog.Any("error", err))
		return
	}

	h.mu.RLock()
	var slow []*streamClient
	for c := range h.clients {
		if !c.enqueue(b) {
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		slog.Warn("Dropping slow stream client", slog.String("client", c.id))
		h.unregister(c)
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(c *streamClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	if h.Presence != nil {
		h.Presence.Attach()
	}
	slog.Info("Stream client connected", slog.String("client", c.id))
}

func (h *Hub) unregister(c *streamClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()

	c.close()
	if ok {
		if h.Presence != nil {
			h.Presence.Detach()
		}
		slog.Info("Stream client disconnected", slog.String("client", c.id))
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	clients := make([]*streamClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		h.unregister(c)
	}
}

// ServeHTTP upgrades GET /ws and runs the connection until it closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("WebSocket upgrade failed", slog.Any("error", err))
		return
	}

	c := &streamClient{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}

	if h.Greeting != nil {
		for _, f := range h.Greeting() {
			if b, err := encodeFrame(f.Type, f.Data); err == nil {
				c.enqueue(b)
			}
		}
	}
	h.register(c)

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) writePump(c *streamClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		h.unregister(c)
	}()

	for {
		select {
		case <-c.done:
			return
		case b := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) readPump(c *streamClient) {
	search := newSubscription(FrameSearch, h.sources.Search(""), renderSearch, c.enqueue)
	coin := newSubscription(FrameCoin, h.sources.Coin(""), renderCoin, c.enqueue)
	chart := newSubscription(FrameChart, h.sources.Chart("", market.DefaultTimeframe), renderChart, c.enqueue)
	debouncer := query.NewDebouncer(h.debounce, func(q string) {
		search.switchTo(topic{Name: q}, h.sources.Search(q))
	})
	defer func() {
		debouncer.Stop()
		search.close()
		coin.close()
		chart.close()
		h.unregister(c)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("Stream read error", slog.String("client", c.id), slog.Any("error", err))
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Debug("Ignoring malformed client message", slog.String("client", c.id))
			continue
		}
		switch msg.Type {
		case "search":
			debouncer.Trigger(msg.Query)
		case "coin":
			days := msg.Days
			if !market.ValidTimeframe(days) {
				days = market.DefaultTimeframe
			}
			coin.switchTo(topic{Name: msg.ID}, h.sources.Coin(msg.ID))
			chart.switchTo(topic{Name: msg.ID, Days: days}, h.sources.Chart(msg.ID, days))
		default:
			slog.Debug("Ignoring client message", slog.String("type", msg.Type))
		}
	}
}
