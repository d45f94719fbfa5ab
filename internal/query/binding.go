package query

import "sync"

// Binding is a consumer whose parameters can change. After Rebind, state and
// change signals of the previous key are no longer visible through it, even
// if a request for that key completes later.
type Binding[T any] struct {
	mu      sync.Mutex
	current *Observer[T]
	changes chan struct{}
	stop    chan struct{}
}

// NewBinding starts observing q.
func NewBinding[T any](q *Query[T]) *Binding[T] {
	b := &Binding[T]{changes: make(chan struct{}, 1)}
	b.Rebind(q)
	return b
}

// Rebind detaches from the current key and observes q instead.
func (b *Binding[T]) Rebind(q *Query[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current != nil {
		close(b.stop)
		b.current.Close()
	}
	obs := q.Observe()
	stop := make(chan struct{})
	b.current = obs
	b.stop = stop

	go func() {
		for {
			select {
			case <-stop:
				return
			case <-obs.Changes():
				select {
				case b.changes <- struct{}{}:
				default:
				}
			}
		}
	}()
}

// State returns the state of the currently bound key, or the zero state once
// the binding is closed.
func (b *Binding[T]) State() State[T] {
	b.mu.Lock()
	obs := b.current
	b.mu.Unlock()
	if obs == nil {
		return State[T]{}
	}
	return obs.State()
}

// Key returns the currently bound key, or "" once the binding is closed.
func (b *Binding[T]) Key() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil {
		return ""
	}
	return b.current.Key()
}

// Changes signals whenever the bound key's entry changes.
func (b *Binding[T]) Changes() <-chan struct{} {
	return b.changes
}

// Close detaches from the current key.
func (b *Binding[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current != nil {
		close(b.stop)
		b.current.Close()
		b.current = nil
	}
}
