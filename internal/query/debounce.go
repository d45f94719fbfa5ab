package query

import (
	"sync"
	"time"
)

// DefaultDebounce is the quiet period applied to search input.
const DefaultDebounce = 300 * time.Millisecond

// Debouncer delivers only the last value triggered within a quiet period.
type Debouncer[T any] struct {
	mu      sync.Mutex
	wait    time.Duration
	fn      func(T)
	timer   *time.Timer
	seq     uint64
	stopped bool
}

// NewDebouncer calls fn with the final value once wait elapses without a new Trigger.
func NewDebouncer[T any](wait time.Duration, fn func(T)) *Debouncer[T] {
	return &Debouncer[T]{wait: wait, fn: fn}
}

// Trigger records v and restarts the quiet period.
func (d *Debouncer[T]) Trigger(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.seq++
	seq := d.seq
	d.timer = time.AfterFunc(d.wait, func() {
		d.mu.Lock()
		current := seq == d.seq && !d.stopped
		d.mu.Unlock()
		if current {
			d.fn(v)
		}
	})
}

// Stop cancels any pending delivery. Later Triggers are ignored.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
}
