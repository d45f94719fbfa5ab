package query

import (
	"context"
	"sync"
	"time"
)

// State is what a consumer sees for one key.
type State[T any] struct {
	Data       T
	HasData    bool
	IsLoading  bool // no data yet and a request is in flight
	IsFetching bool // any request in flight, including background refreshes
	Err        error
	UpdatedAt  time.Time
}

// Query binds a typed fetch function to a cache key and policy.
type Query[T any] struct {
	client *Client
	key    string
	opts   Options
	fetch  fetcher
}

// New creates a query. It does not perform any request.
func New[T any](c *Client, key Key, opts Options, fetch func(ctx context.Context) (T, error)) *Query[T] {
	return &Query[T]{
		client: c,
		key:    key.String(),
		opts:   opts,
		fetch: func(ctx context.Context) (any, error) {
			return fetch(ctx)
		},
	}
}

// Key returns the rendered cache key.
func (q *Query[T]) Key() string { return q.key }

// Options returns the cache policy.
func (q *Query[T]) Options() Options { return q.opts }

// Peek reads the cached state without any network activity.
func (q *Query[T]) Peek() State[T] {
	if !q.opts.Enabled {
		return State[T]{}
	}
	s := q.client.snapshot(q.key)
	st := State[T]{
		HasData:    s.hasData,
		IsLoading:  s.fetching && !s.hasData,
		IsFetching: s.fetching,
		Err:        s.err,
		UpdatedAt:  s.updatedAt,
	}
	if v, ok := s.data.(T); ok {
		st.Data = v
	}
	return st
}

// Fetch returns cached data within the stale time, otherwise waits for the
// shared request for this key. Disabled queries return ErrDisabled.
func (q *Query[T]) Fetch(ctx context.Context) (State[T], error) {
	if !q.opts.Enabled {
		return State[T]{}, ErrDisabled
	}
	err := q.client.fetch(ctx, q.key, q.opts.StaleTime, false, q.fetch)
	return q.Peek(), err
}

// Refetch ignores the stale time but still shares an in-flight request.
func (q *Query[T]) Refetch(ctx context.Context) (State[T], error) {
	if !q.opts.Enabled {
		return State[T]{}, ErrDisabled
	}
	err := q.client.fetch(ctx, q.key, q.opts.StaleTime, true, q.fetch)
	return q.Peek(), err
}

// Observe mounts a consumer. Stale data is refreshed in the background and,
// while at least one consumer is mounted, the key is re-fetched every
// RefetchInterval. Close the observer to detach.
func (q *Query[T]) Observe() *Observer[T] {
	o := &Observer[T]{query: q}
	if !q.opts.Enabled {
		o.changes = make(chan struct{})
		return o
	}
	o.id, o.changes = q.client.attach(q.key, q.opts, q.fetch)

	q.client.wg.Add(1)
	go func() {
		defer q.client.wg.Done()
		_ = q.client.fetch(q.client.ctx, q.key, q.opts.StaleTime, false, q.fetch)
	}()
	return o
}

// Observer is a mounted consumer of one query.
type Observer[T any] struct {
	query   *Query[T]
	id      uint64
	changes chan struct{}
	once    sync.Once
}

// State returns the current cached state of the observed key.
func (o *Observer[T]) State() State[T] {
	return o.query.Peek()
}

// Changes signals (coalesced) whenever the observed entry changes.
func (o *Observer[T]) Changes() <-chan struct{} {
	return o.changes
}

// Key returns the observed cache key.
func (o *Observer[T]) Key() string { return o.query.key }

// Close detaches the consumer. Safe to call more than once.
func (o *Observer[T]) Close() {
	o.once.Do(func() {
		if o.query.opts.Enabled {
			o.query.client.detach(o.query.key, o.id)
		}
	})
}
