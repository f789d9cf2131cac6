// Package phase implements the globally broadcast signal phase that agents
// consult at the decision point of the track.
//
// The phase cycles 0 → 1 → 2 → 0 on a fixed period. Readers use an atomic
// load and tolerate values that are up to one period stale.
package phase

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/Iron-Ham/standsim/internal/event"
	"github.com/Iron-Ham/standsim/internal/logging"
)

// Phase is one of the three signal states.
type Phase int32

const (
	// Red routes agents to stand A.
	Red Phase = 0
	// Green routes agents to stand C.
	Green Phase = 1
	// Amber leaves agents on the neutral path.
	Amber Phase = 2

	// Count is the number of distinct phases.
	Count = 3
)

// String returns a human-readable name for the phase.
func (p Phase) String() string {
	switch p {
	case Red:
		return "red"
	case Green:
		return "green"
	case Amber:
		return "amber"
	default:
		return "unknown"
	}
}

// Next returns the phase that follows p.
func (p Phase) Next() Phase {
	return Phase((int32(p) + 1) % Count)
}

// Broadcaster owns the shared phase cell.
type Broadcaster struct {
	current        atomic.Int32
	interval       time.Duration
	advanceOnStart bool
	bus            *event.Bus
	logger         *logging.Logger
}

// Option configures a Broadcaster.
type Option func(*Broadcaster)

// WithInitial sets the phase before the broadcaster starts.
func WithInitial(p Phase) Option {
	return func(b *Broadcaster) {
		b.current.Store(int32(p))
	}
}

// WithAdvanceOnStart controls whether Run advances once immediately.
func WithAdvanceOnStart(advance bool) Option {
	return func(b *Broadcaster) {
		b.advanceOnStart = advance
	}
}

// WithBus publishes a PhaseChangedEvent on every advance.
func WithBus(bus *event.Bus) Option {
	return func(b *Broadcaster) {
		b.bus = bus
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(b *Broadcaster) {
		b.logger = logger
	}
}

// NewBroadcaster creates a Broadcaster that advances every interval.
func NewBroadcaster(interval time.Duration, opts ...Option) *Broadcaster {
	b := &Broadcaster{
		interval: interval,
		logger:   logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Current returns the phase currently broadcast.
func (b *Broadcaster) Current() Phase {
	return Phase(b.current.Load())
}

// Set forces the phase. Values outside [0,Count) are stored as-is and
// read by agents as the neutral route.
func (b *Broadcaster) Set(p Phase) {
	prev := Phase(b.current.Swap(int32(p)))
	b.publish(prev, p)
}

// Advance moves to the next phase and returns it.
func (b *Broadcaster) Advance() Phase {
	for {
		prev := b.current.Load()
		next := Phase(prev).Next()
		if b.current.CompareAndSwap(prev, int32(next)) {
			b.publish(Phase(prev), next)
			return next
		}
	}
}

// Run advances the phase every interval until ctx is cancelled.
func (b *Broadcaster) Run(ctx context.Context) {
	if b.advanceOnStart {
		b.Advance()
	}

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.logger.Debug("broadcaster stopped", "phase", b.Current().String())
			return
		case <-ticker.C:
			b.Advance()
		}
	}
}

func (b *Broadcaster) publish(prev, next Phase) {
	b.logger.Debug("phase changed", "from", prev.String(), "to", next.String())
	if b.bus != nil {
		b.bus.Publish(event.NewPhaseChangedEvent(int(prev), int(next)))
	}
}
