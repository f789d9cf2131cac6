// Package sim wires the broadcaster, stand pool, telemetry counter, agent
// registry and fleet into one runnable simulation.
//
// Renderers read the simulation through [Simulation.Snapshot] and subscribe
// to its event bus; they never touch agents directly.
package sim

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/Iron-Ham/standsim/internal/agent"
	"github.com/Iron-Ham/standsim/internal/config"
	"github.com/Iron-Ham/standsim/internal/event"
	"github.com/Iron-Ham/standsim/internal/fleet"
	"github.com/Iron-Ham/standsim/internal/logging"
	"github.com/Iron-Ham/standsim/internal/phase"
	"github.com/Iron-Ham/standsim/internal/stand"
	"github.com/Iron-Ham/standsim/internal/telemetry"
	"github.com/sourcegraph/conc"
)

// ErrAlreadyRunning is returned by Start on a simulation that was already
// started. A simulation cannot be restarted after Stop.
var ErrAlreadyRunning = errors.New("simulation already started")

// Snapshot is a consistent view of the simulation for one frame.
type Snapshot struct {
	Agents  []agent.View
	Stands  []stand.Slot
	Phase   phase.Phase
	Waiting int64
	Track   config.TrackConfig
}

// Stats summarises a run.
type Stats struct {
	Spawned      int64
	Reaped       int64
	Live         int
	Finished     int64
	Cancelled    int64
	Served       [stand.Count]int
	PeakWaiting  int64
	PhaseChanges int64
}

// TotalServed returns the number of completed stand visits.
func (s Stats) TotalServed() int {
	n := 0
	for _, v := range s.Served {
		n += v
	}
	return n
}

// Simulation is the composition root.
type Simulation struct {
	cfg    *config.Config
	bus    *event.Bus
	logger *logging.Logger

	signal   *phase.Broadcaster
	pool     *stand.Pool
	waiting  *telemetry.Counter
	registry *agent.Registry
	fleet    *fleet.Fleet

	pin       *phase.Phase
	fleetOpts []fleet.Option

	finished     atomic.Int64
	cancelled    atomic.Int64
	phaseChanges atomic.Int64

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	wg      conc.WaitGroup
}

// Option configures a Simulation.
type Option func(*Simulation)

// WithLogger sets the logger shared by every component.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Simulation) {
		s.logger = logger
	}
}

// WithBus uses an existing event bus.
func WithBus(bus *event.Bus) Option {
	return func(s *Simulation) {
		s.bus = bus
	}
}

// WithPinnedPhase holds the signal at p for the whole run.
func WithPinnedPhase(p phase.Phase) Option {
	return func(s *Simulation) {
		s.pin = &p
	}
}

// WithSeed makes spawned agent parameters deterministic.
func WithSeed(seed uint64) Option {
	return func(s *Simulation) {
		s.fleetOpts = append(s.fleetOpts, fleet.WithSeed(seed))
	}
}

// New builds a simulation from cfg. Nothing runs until Start.
func New(cfg *config.Config, opts ...Option) *Simulation {
	s := &Simulation{
		cfg:    cfg,
		logger: logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.bus == nil {
		s.bus = event.NewBus(event.WithLogger(s.logger.WithComponent("bus")))
	}

	signalOpts := []phase.Option{
		phase.WithAdvanceOnStart(cfg.Signal.AdvanceOnStart),
		phase.WithBus(s.bus),
		phase.WithLogger(s.logger.WithComponent("signal")),
	}
	if s.pin != nil {
		signalOpts = append(signalOpts, phase.WithInitial(*s.pin))
	}
	s.signal = phase.NewBroadcaster(cfg.Signal.Interval(), signalOpts...)

	s.pool = stand.NewPool(stand.WithBus(s.bus), stand.WithLogger(s.logger.WithComponent("pool")))
	s.waiting = telemetry.NewCounter(telemetry.WithBus(s.bus), telemetry.WithLogger(s.logger.WithComponent("telemetry")))
	s.registry = agent.NewRegistry()

	env := &agent.Env{
		Registry:          s.registry,
		Pool:              s.pool,
		Signal:            s.signal,
		Waiting:           s.waiting,
		Bus:               s.bus,
		Logger:            s.logger,
		Track:             cfg.Track,
		DriftFactor:       cfg.Agent.DriftFactor,
		Dwell:             cfg.Stand.Dwell(),
		NeutralUsesCenter: cfg.Stand.NeutralUsesCenter,
	}
	s.fleet = fleet.New(cfg, env, append(s.fleetOpts, fleet.WithLogger(s.logger))...)

	s.bus.Subscribe(event.TypeAgentFinished, func(e event.Event) {
		fe, ok := e.(event.AgentFinishedEvent)
		if !ok {
			return
		}
		s.finished.Add(1)
		if fe.Cancelled {
			s.cancelled.Add(1)
		}
	})
	s.bus.Subscribe(event.TypePhaseChanged, func(event.Event) {
		s.phaseChanges.Add(1)
	})
	return s
}

// Bus returns the event bus components publish on.
func (s *Simulation) Bus() *event.Bus { return s.bus }

// Config returns the configuration the simulation was built with.
func (s *Simulation) Config() *config.Config { return s.cfg }

// Start launches the broadcaster and the fleet. The simulation runs until
// Stop is called or ctx is cancelled; in the latter case Stop must still be
// called to join the agents.
func (s *Simulation) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyRunning
	}
	s.started = true

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	if s.pin == nil {
		s.wg.Go(func() { s.signal.Run(runCtx) })
	}
	s.wg.Go(func() { s.fleet.Run(runCtx) })

	s.logger.Info("simulation started",
		"phase", s.signal.Current().String(),
		"pinned", s.pin != nil,
		"max_agents", s.cfg.Fleet.MaxAgents,
	)
	return nil
}

// Stop shuts everything down and returns once every goroutine has exited.
// Safe to call more than once, and before Start.
func (s *Simulation) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.started = true
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	s.fleet.Shutdown()

	st := s.Stats()
	s.logger.Info("simulation stopped",
		"spawned", st.Spawned,
		"served", st.TotalServed(),
		"cancelled", st.Cancelled,
		"peak_waiting", st.PeakWaiting,
	)
}

// Run starts the simulation, blocks until ctx is done, then stops it.
func (s *Simulation) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	s.Stop()
	return nil
}

// Snapshot returns the state to render for one frame. Agents are copied
// under the registry lock; stands are read afterwards, one lock at a time.
func (s *Simulation) Snapshot() Snapshot {
	return Snapshot{
		Agents:  s.registry.Snapshot(),
		Stands:  s.pool.Occupancy(),
		Phase:   s.signal.Current(),
		Waiting: s.waiting.Snapshot(),
		Track:   s.cfg.Track,
	}
}

// Stats returns run statistics.
func (s *Simulation) Stats() Stats {
	fs := s.fleet.Stats()
	st := Stats{
		Spawned:      fs.Spawned,
		Reaped:       fs.Reaped,
		Live:         fs.Live,
		Finished:     s.finished.Load(),
		Cancelled:    s.cancelled.Load(),
		PeakWaiting:  s.waiting.Peak(),
		PhaseChanges: s.phaseChanges.Load(),
	}
	for _, slot := range s.pool.Occupancy() {
		st.Served[slot.ID] = slot.Served
	}
	return st
}

// Waiting returns the current number of blocked agents.
func (s *Simulation) Waiting() int64 {
	return s.waiting.Snapshot()
}

// Phase returns the phase currently broadcast.
func (s *Simulation) Phase() phase.Phase {
	return s.signal.Current()
}

// Spawn adds one agent immediately, outside the regular cadence.
func (s *Simulation) Spawn() *agent.Agent {
	return s.fleet.Spawn()
}
