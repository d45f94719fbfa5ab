// Package query is a keyed request cache: it serves fresh data without
// network calls, shares in-flight requests per key and keeps observed keys
// refreshed in the background.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrDisabled is returned by operations on a disabled query. No network
// activity happens for disabled queries.
var ErrDisabled = errors.New("query disabled")

// DefaultGCTime is how long an unobserved entry is kept after its last update.
const DefaultGCTime = 5 * time.Minute

// Key identifies a cache entry: an operation name followed by its parameters.
type Key []any

// String renders the key as "op:p1:p2".
func (k Key) String() string {
	parts := make([]string, len(k))
	for i, p := range k {
		parts[i] = fmt.Sprint(p)
	}
	return strings.Join(parts, ":")
}

// Options is the per-query cache policy.
type Options struct {
	StaleTime       time.Duration // data younger than this is served without a request
	RefetchInterval time.Duration // background refresh period while observed; 0 disables
	Enabled         bool
}

type fetcher func(ctx context.Context) (any, error)

type entry struct {
	data      any
	hasData   bool
	err       error
	updatedAt time.Time
	fetching  bool

	observers int
	stopPoll  context.CancelFunc
	listeners map[uint64]chan struct{}
}

// Client owns every cache entry and the background pollers.
type Client struct {
	mu      sync.Mutex
	entries map[string]*entry
	group   singleflight.Group
	nextID  uint64

	now    func() time.Time
	gcTime time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) { c.now = now }
}

// WithGCTime sets how long unobserved entries survive.
func WithGCTime(d time.Duration) ClientOption {
	return func(c *Client) { c.gcTime = d }
}

// NewClient creates a cache whose requests and pollers live until ctx is
// cancelled or Close is called.
func NewClient(ctx context.Context, opts ...ClientOption) *Client {
	c := &Client{
		entries: make(map[string]*entry),
		now:     time.Now,
		gcTime:  DefaultGCTime,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	return c
}

// Close stops all pollers and waits for them to exit.
func (c *Client) Close() {
	c.cancel()
	c.wg.Wait()
}

// StartGC removes unobserved, expired entries every interval until Close.
func (c *Client) StartGC(interval time.Duration) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-c.ctx.Done():
				return
			case <-ticker.C:
				if n := c.collect(); n > 0 {
					slog.Debug("Query cache GC", slog.Int("removed", n))
				}
			}
		}
	}()
}

func (c *Client) collect() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, e := range c.entries {
		if e.observers == 0 && !e.fetching && now.Sub(e.updatedAt) > c.gcTime {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of cached keys.
func (c *Client) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// entryLocked returns the entry for key, creating it. Must hold c.mu.
func (c *Client) entryLocked(key string) *entry {
	e, ok := c.entries[key]
	if !ok {
		e = &entry{listeners: make(map[uint64]chan struct{})}
		c.entries[key] = e
	}
	return e
}

// freshLocked reports whether the last successful result is inside the stale
// window. A failed refetch keeps the error for reporting but does not age the
// data.
func (c *Client) freshLocked(e *entry, stale time.Duration) bool {
	return e.hasData && c.now().Sub(e.updatedAt) < stale
}

// fetch serves from cache within stale time, otherwise joins or starts the
// single in-flight request for key. Cancelling ctx abandons the wait only;
// the shared request keeps running on the client context.
func (c *Client) fetch(ctx context.Context, key string, stale time.Duration, force bool, fn fetcher) error {
	if !force {
		c.mu.Lock()
		fresh := c.freshLocked(c.entryLocked(key), stale)
		c.mu.Unlock()
		if fresh {
			return nil
		}
	}

	ch := c.group.DoChan(key, func() (any, error) {
		return nil, c.run(key, stale, force, fn)
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}

func (c *Client) run(key string, stale time.Duration, force bool, fn fetcher) error {
	c.mu.Lock()
	e := c.entryLocked(key)
	// A request for this key may have completed between the caller's
	// freshness check and joining the flight group.
	if !force && c.freshLocked(e, stale) {
		c.mu.Unlock()
		return nil
	}
	e.fetching = true
	c.mu.Unlock()
	c.notify(key)

	v, err := c.call(fn)

	c.mu.Lock()
	e = c.entryLocked(key)
	e.fetching = false
	if err != nil {
		e.err = err
	} else {
		e.data = v
		e.hasData = true
		e.err = nil
		e.updatedAt = c.now()
	}
	c.mu.Unlock()
	c.notify(key)

	if err != nil {
		slog.Warn("Query fetch failed", slog.String("key", key), slog.Any("error", err))
	}
	return err
}

func (c *Client) call(fn fetcher) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("query fetcher panic: %v", r)
		}
	}()
	return fn(c.ctx)
}

func (c *Client) notify(key string) {
	c.mu.Lock()
	e, ok := c.entries[key]
	var chans []chan struct{}
	if ok {
		chans = make([]chan struct{}, 0, len(e.listeners))
		for _, ch := range e.listeners {
			chans = append(chans, ch)
		}
	}
	c.mu.Unlock()

	for _, ch := range chans {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

type snapshot struct {
	data      any
	hasData   bool
	err       error
	updatedAt time.Time
	fetching  bool
}

func (c *Client) snapshot(key string) snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return snapshot{}
	}
	return snapshot{data: e.data, hasData: e.hasData, err: e.err, updatedAt: e.updatedAt, fetching: e.fetching}
}

// attach registers a consumer of key. The first consumer starts the poller.
func (c *Client) attach(key string, opts Options, fn fetcher) (uint64, chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entryLocked(key)
	c.nextID++
	id := c.nextID
	ch := make(chan struct{}, 1)
	e.listeners[id] = ch
	e.observers++

	if e.observers == 1 && opts.RefetchInterval > 0 {
		pollCtx, stop := context.WithCancel(c.ctx)
		e.stopPoll = stop
		c.wg.Add(1)
		go c.poll(pollCtx, key, opts.RefetchInterval, fn)
	}
	return id, ch
}

// detach removes a consumer. The last consumer stops the poller.
func (c *Client) detach(key string, id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return
	}
	if _, ok := e.listeners[id]; !ok {
		return
	}
	delete(e.listeners, id)
	e.observers--
	if e.observers == 0 && e.stopPoll != nil {
		e.stopPoll()
		e.stopPoll = nil
	}
}

func (c *Client) poll(ctx context.Context, key string, interval time.Duration, fn fetcher) {
	defer c.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Query poller panic recovered", slog.String("key", key), slog.Any("panic", r))
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Errors are recorded on the entry and logged by run.
			_ = c.fetch(ctx, key, 0, true, fn)
		}
	}
}

// Observers returns the number of consumers attached to key.
func (c *Client) Observers(key Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key.String()]; ok {
		return e.observers
	}
	return 0
}
