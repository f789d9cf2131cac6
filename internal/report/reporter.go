// Package report prints the waiting count as it changes.
package report

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Iron-Ham/standsim/internal/event"
	"github.com/Iron-Ham/standsim/internal/logging"
)

// Reporter writes "waiting=N" lines for telemetry.waiting events.
type Reporter struct {
	mu       sync.Mutex
	w        io.Writer
	bus      *event.Bus
	logger   *logging.Logger
	interval time.Duration
	source   func() int64

	subID   string
	last    int64
	lastSeq uint64
	hasLast bool
	lines   int
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithInterval also reports the current count every d. Zero disables it.
func WithInterval(d time.Duration) Option {
	return func(r *Reporter) {
		r.interval = d
	}
}

// WithSource reads the count for periodic reports from fn instead of the
// last value seen on the bus.
func WithSource(fn func() int64) Option {
	return func(r *Reporter) {
		r.source = fn
	}
}

// WithLogger sets the logger. When w is nil reports go to the logger only.
func WithLogger(logger *logging.Logger) Option {
	return func(r *Reporter) {
		r.logger = logger
	}
}

// New creates a Reporter that writes to w.
func New(bus *event.Bus, w io.Writer, opts ...Option) *Reporter {
	r := &Reporter{
		w:      w,
		bus:    bus,
		logger: logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Subscribe starts listening for waiting-count changes. It is called by
// Start; call it earlier to make sure no change published before Start is
// missed. Calling it again has no effect.
func (r *Reporter) Subscribe() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.subID != "" {
		return
	}
	r.subID = r.bus.Subscribe(event.TypeWaitingChanged, func(e event.Event) {
		we, ok := e.(event.WaitingChangedEvent)
		if !ok {
			return
		}
		r.observe(we.Waiting, we.Seq)
	})
}

// Start subscribes, if Subscribe has not been called yet, and blocks until
// ctx is cancelled. It unsubscribes on return.
func (r *Reporter) Start(ctx context.Context) {
	r.Subscribe()
	defer r.unsubscribe()

	if r.interval <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick()
		}
	}
}

func (r *Reporter) unsubscribe() {
	r.mu.Lock()
	id := r.subID
	r.subID = ""
	r.mu.Unlock()
	if id != "" {
		r.bus.Unsubscribe(id)
	}
}

// Lines returns how many lines have been written.
func (r *Reporter) Lines() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lines
}

// observe reports n unless it repeats the previous value or seq is older
// than a change already seen.
func (r *Reporter) observe(n int64, seq uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if seq != 0 && seq <= r.lastSeq {
		r.logger.Debug("stale waiting count dropped", "waiting", n, "seq", seq, "last_seq", r.lastSeq)
		return
	}
	if seq != 0 {
		r.lastSeq = seq
	}
	if r.hasLast && r.last == n {
		return
	}
	r.last, r.hasLast = n, true
	r.writeLocked(n)
}

func (r *Reporter) tick() {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.last
	if r.source != nil {
		n = r.source()
		r.last, r.hasLast = n, true
	}
	r.writeLocked(n)
}

func (r *Reporter) writeLocked(n int64) {
	r.lines++
	r.logger.Debug("waiting count", "waiting", n)
	if r.w == nil {
		return
	}
	if _, err := fmt.Fprintf(r.w, "waiting=%d\n", n); err != nil {
		r.logger.Warn("failed to write report", "error", err)
	}
}
