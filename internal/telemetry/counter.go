// Package telemetry counts agents that are blocked waiting for a stand.
//
// The count never drops below zero. Each change swaps the count together with
// a change sequence number in one atomic step, then is pushed to registered
// hooks and, when a bus is attached, published as a
// [event.WaitingChangedEvent] carrying that sequence number.
package telemetry

import (
	"sync"
	"sync/atomic"

	"github.com/Iron-Ham/standsim/internal/event"
	"github.com/Iron-Ham/standsim/internal/logging"
)

// Counter is the shared waiting counter.
type Counter struct {
	state atomic.Pointer[reading]
	peak  atomic.Int64

	mu    sync.Mutex
	hooks []func(int64)

	bus    *event.Bus
	logger *logging.Logger
}

// reading is one immutable value of the counter. seq counts changes.
type reading struct {
	value int64
	seq   uint64
}

// Option configures a Counter.
type Option func(*Counter)

// WithBus publishes a WaitingChangedEvent after every change.
func WithBus(bus *event.Bus) Option {
	return func(c *Counter) {
		c.bus = bus
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Counter) {
		c.logger = logger
	}
}

// NewCounter creates a counter starting at zero.
func NewCounter(opts ...Option) *Counter {
	c := &Counter{logger: logging.NopLogger()}
	c.state.Store(&reading{})
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnChange registers a hook called with the new value after every change.
// Hooks run on the goroutine that made the change and must not block.
// Concurrent changes may reach hooks out of order; bus subscribers can use
// WaitingChangedEvent.Seq to restore it.
func (c *Counter) OnChange(hook func(int64)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, hook)
}

// Increment adds one waiter and returns the new count.
func (c *Counter) Increment() int64 {
	for {
		cur := c.state.Load()
		next := &reading{value: cur.value + 1, seq: cur.seq + 1}
		if c.state.CompareAndSwap(cur, next) {
			c.raisePeak(next.value)
			c.notify(next)
			return next.value
		}
	}
}

// Decrement removes one waiter. It returns false, leaving the count at zero,
// if there was nothing to remove.
func (c *Counter) Decrement() bool {
	for {
		cur := c.state.Load()
		if cur.value <= 0 {
			c.logger.Warn("waiting counter decrement at zero")
			return false
		}
		next := &reading{value: cur.value - 1, seq: cur.seq + 1}
		if c.state.CompareAndSwap(cur, next) {
			c.notify(next)
			return true
		}
	}
}

// Snapshot returns the current count.
func (c *Counter) Snapshot() int64 {
	return c.state.Load().value
}

// Seq returns the number of changes made so far.
func (c *Counter) Seq() uint64 {
	return c.state.Load().seq
}

// Peak returns the highest count observed.
func (c *Counter) Peak() int64 {
	return c.peak.Load()
}

func (c *Counter) raisePeak(n int64) {
	for {
		p := c.peak.Load()
		if n <= p || c.peak.CompareAndSwap(p, n) {
			return
		}
	}
}

func (c *Counter) notify(r *reading) {
	c.mu.Lock()
	hooks := make([]func(int64), len(c.hooks))
	copy(hooks, c.hooks)
	c.mu.Unlock()

	for _, hook := range hooks {
		hook(r.value)
	}
	if c.bus != nil {
		c.bus.Publish(event.NewWaitingChangedEvent(r.value, r.seq))
	}
}
