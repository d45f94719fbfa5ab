package infra

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// StreamHandler receives frames from a StreamClient.
type StreamHandler interface {
	// OnConnect runs after every successful dial, e.g. to resend subscriptions.
	OnConnect(ctx context.Context, c *StreamClient) error
	OnMessage(ctx context.Context, msg []byte)
}

// StreamClient keeps a WebSocket connection to the dashboard stream open.
// It reconnects with backoff, enforces read timeouts and serializes writes.
type StreamClient struct {
	url     string
	handler StreamHandler
	mu      sync.RWMutex
	conn    *websocket.Conn
	writeMu sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	ReadTimeout  time.Duration
	PingInterval time.Duration
	Backoff      Backoff
}

// NewStreamClient creates a client for the given ws:// or wss:// URL.
func NewStreamClient(url string, handler StreamHandler) *StreamClient {
	return &StreamClient{
		url:          url,
		handler:      handler,
		ReadTimeout:  90 * time.Second,
		PingInterval: 30 * time.Second,
		Backoff:      DefaultBackoff,
	}
}

// Start initiates the connection loop.
func (c *StreamClient) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go c.runLoop(ctx)
}

// Stop terminates the client and waits for its goroutines.
func (c *StreamClient) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.close()
	c.wg.Wait()
}

func (c *StreamClient) runLoop(ctx context.Context) {
	defer c.wg.Done()
	retry := 0

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := c.connect(ctx); err != nil {
			delay := c.Backoff.Delay(retry)
			slog.Warn("Stream connection failed",
				slog.String("url", c.url),
				slog.Int("retry", retry),
				slog.Duration("delay", delay),
				slog.Any("error", err))
			retry++

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
				continue
			}
		}

		retry = 0
		c.process(ctx)
	}
}

func (c *StreamClient) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	header := make(http.Header)
	header.Set("User-Agent", DefaultUserAgent)

	conn, _, err := dialer.DialContext(ctx, c.url, header)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	if err := c.handler.OnConnect(ctx, c); err != nil {
		c.close()
		return fmt.Errorf("OnConnect failed: %w", err)
	}

	if c.PingInterval > 0 {
		c.wg.Add(1)
		go c.pingLoop(ctx, conn)
	}

	slog.Info("Stream connected", slog.String("url", c.url))
	return nil
}

func (c *StreamClient) process(ctx context.Context) {
	for {
		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()
		if conn == nil {
			return
		}

		conn.SetReadDeadline(time.Now().Add(c.ReadTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				slog.Warn("Stream read error", slog.Any("error", err))
			}
			c.close()
			return
		}

		c.handler.OnMessage(ctx, msg)
	}
}

func (c *StreamClient) pingLoop(ctx context.Context, conn *websocket.Conn) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.RLock()
			current := c.conn
			c.mu.RUnlock()
			if current != conn {
				return
			}
			c.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			c.writeMu.Unlock()
			if err != nil {
				slog.Warn("Stream ping error", slog.Any("error", err))
				c.close()
				return
			}
		}
	}
}

// WriteJSON sends v as a text frame.
func (c *StreamClient) WriteJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return fmt.Errorf("stream not connected")
	}
	return conn.WriteJSON(v)
}

func (c *StreamClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}
