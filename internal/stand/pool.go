package stand

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Iron-Ham/standsim/internal/event"
	"github.com/Iron-Ham/standsim/internal/logging"
)

// Sentinel errors returned by pool operations.
var (
	// ErrCancelled is returned when a blocking acquire is interrupted by
	// pool shutdown or context cancellation. It is not a failure.
	ErrCancelled = errors.New("stand acquisition cancelled")

	// ErrUnknownStand is returned for an ID outside the pool.
	ErrUnknownStand = errors.New("unknown stand")

	// ErrNotOccupied is returned when releasing a free stand.
	ErrNotOccupied = errors.New("stand is not occupied")

	// ErrNotHolder is returned when releasing a stand held by someone else.
	ErrNotHolder = errors.New("stand is held by another agent")
)

// slot is one exclusive stand. All fields are guarded by mu.
type slot struct {
	id       ID
	mu       sync.Mutex
	cond     *sync.Cond
	occupied bool
	holder   string
	since    time.Time
	waiters  int
	served   int
	logger   *logging.Logger
}

// Slot is a read-only view of one stand.
type Slot struct {
	ID       ID
	Occupied bool
	Holder   string
	Waiters  int // agents blocked in Acquire
	Served   int // completed acquisitions
}

// Pool is a fixed set of mutually exclusive stands.
//
// Each stand has its own mutex and condition variable. A single shared
// closed flag, checked by every waiter, guarantees that no Acquire outlives
// Close. Callers must never take a stand lock (i.e. call into the pool)
// while that would invert the registry → stand lock order; the pool itself
// never calls back into caller code while holding a stand lock.
type Pool struct {
	slots  [Count]*slot
	closed atomic.Bool
	bus    *event.Bus
	logger *logging.Logger
}

// Option configures a Pool.
type Option func(*Pool)

// WithBus publishes acquire/release events.
func WithBus(bus *event.Bus) Option {
	return func(p *Pool) {
		p.bus = bus
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(p *Pool) {
		p.logger = logger
	}
}

// NewPool creates a pool with all stands free.
func NewPool(opts ...Option) *Pool {
	p := &Pool{logger: logging.NopLogger()}
	for i := range p.slots {
		s := &slot{id: ID(i)}
		s.cond = sync.NewCond(&s.mu)
		p.slots[i] = s
	}
	for _, opt := range opts {
		opt(p)
	}
	for _, s := range p.slots {
		s.logger = p.logger.WithStand(s.id.String())
	}
	return p
}

func (p *Pool) slot(id ID) (*slot, error) {
	if !id.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownStand, int(id))
	}
	return p.slots[id], nil
}

// TryAcquire takes the stand if it is free. It never blocks on other
// holders and returns false once the pool is closed.
func (p *Pool) TryAcquire(id ID, holder string) bool {
	s, err := p.slot(id)
	if err != nil {
		return false
	}

	s.mu.Lock()
	if s.occupied || p.closed.Load() {
		s.mu.Unlock()
		return false
	}
	s.take(holder)
	s.mu.Unlock()

	p.publishAcquired(s, holder, 0)
	return true
}

// Acquire blocks until the stand is free and takes it.
// It returns ErrCancelled if the pool is closed or ctx is done before the
// stand could be taken. Spurious wakeups are absorbed by re-checking the
// predicate.
func (p *Pool) Acquire(ctx context.Context, id ID, holder string) error {
	s, err := p.slot(id)
	if err != nil {
		return err
	}

	start := time.Now()

	// Bridge ctx cancellation into the condition variable.
	stop := context.AfterFunc(ctx, func() {
		s.mu.Lock()
		s.cond.Broadcast()
		s.mu.Unlock()
	})
	defer stop()

	s.mu.Lock()
	s.waiters++
	for {
		if p.closed.Load() || ctx.Err() != nil {
			s.waiters--
			s.mu.Unlock()
			s.logger.Debug("acquire cancelled", "holder", holder)
			return ErrCancelled
		}
		if !s.occupied {
			break
		}
		s.cond.Wait()
	}
	s.waiters--
	s.take(holder)
	s.mu.Unlock()

	p.publishAcquired(s, holder, time.Since(start))
	return nil
}

// Release frees a stand held by holder and wakes its waiters.
// All waiters are woken so a waiter that is concurrently cancelled can
// never swallow the only wakeup.
func (p *Pool) Release(id ID, holder string) error {
	s, err := p.slot(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if !s.occupied {
		s.mu.Unlock()
		return fmt.Errorf("release %s: %w", id, ErrNotOccupied)
	}
	if s.holder != holder {
		owner := s.holder
		s.mu.Unlock()
		return fmt.Errorf("release %s by %s: %w (held by %s)", id, holder, ErrNotHolder, owner)
	}
	held := time.Since(s.since)
	s.occupied = false
	s.holder = ""
	s.since = time.Time{}
	s.served++
	s.cond.Broadcast()
	s.mu.Unlock()

	s.logger.Debug("stand released", "holder", holder, "held_ms", held.Milliseconds())
	if p.bus != nil {
		p.bus.Publish(event.NewStandReleasedEvent(holder, id.String(), held))
	}
	return nil
}

// Close marks the pool stopped and wakes every waiter. Idempotent.
// Stands that are currently held stay held until released.
func (p *Pool) Close() {
	if p.closed.Swap(true) {
		return
	}
	for _, s := range p.slots {
		s.mu.Lock()
		s.cond.Broadcast()
		s.mu.Unlock()
	}
	p.logger.Debug("pool closed")
}

// Closed reports whether Close has been called.
func (p *Pool) Closed() bool {
	return p.closed.Load()
}

// Holder returns the agent holding the stand, if any.
func (p *Pool) Holder(id ID) (string, bool) {
	s, err := p.slot(id)
	if err != nil {
		return "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.holder, s.occupied
}

// Occupancy returns a point-in-time view of every stand, in ID order.
// Each stand is read under its own lock, one at a time.
func (p *Pool) Occupancy() []Slot {
	out := make([]Slot, 0, Count)
	for _, s := range p.slots {
		s.mu.Lock()
		out = append(out, Slot{
			ID:       s.id,
			Occupied: s.occupied,
			Holder:   s.holder,
			Waiters:  s.waiters,
			Served:   s.served,
		})
		s.mu.Unlock()
	}
	return out
}

// take marks the slot held. Caller holds s.mu.
func (s *slot) take(holder string) {
	s.occupied = true
	s.holder = holder
	s.since = time.Now()
}

func (p *Pool) publishAcquired(s *slot, holder string, waited time.Duration) {
	s.logger.Debug("stand acquired", "holder", holder, "waited_ms", waited.Milliseconds())
	if p.bus != nil {
		p.bus.Publish(event.NewStandAcquiredEvent(holder, s.id.String(), waited))
	}
}
