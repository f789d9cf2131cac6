// Package fleet spawns agents on a randomized cadence, reaps the ones that
// have finished, and shuts the rest down.
package fleet

import (
	"context"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Iron-Ham/standsim/internal/agent"
	"github.com/Iron-Ham/standsim/internal/config"
	"github.com/Iron-Ham/standsim/internal/event"
	"github.com/Iron-Ham/standsim/internal/logging"
	"github.com/sourcegraph/conc"
)

// Stats is a point-in-time count of the fleet.
type Stats struct {
	Spawned int64
	Reaped  int64
	Live    int
}

// Fleet owns the agent goroutines of a simulation.
type Fleet struct {
	env      *agent.Env
	agentCfg config.AgentConfig
	fleetCfg config.FleetConfig
	bus      *event.Bus
	logger   *logging.Logger

	// ctx is the parent of every agent's Run; cancel is called on shutdown.
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex // guards rng, closed and wg.Go against Shutdown
	rng    *rand.Rand
	closed bool
	wg     conc.WaitGroup

	spawned atomic.Int64
	reaped  atomic.Int64

	shutdownOnce sync.Once
}

// Option configures a Fleet.
type Option func(*Fleet)

// WithSeed makes agent parameters deterministic.
func WithSeed(seed uint64) Option {
	return func(f *Fleet) {
		f.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(f *Fleet) {
		f.logger = logger
	}
}

// New creates a fleet that spawns agents into env.
func New(cfg *config.Config, env *agent.Env, opts ...Option) *Fleet {
	ctx, cancel := context.WithCancel(context.Background())
	now := uint64(time.Now().UnixNano())
	f := &Fleet{
		env:      env,
		agentCfg: cfg.Agent,
		fleetCfg: cfg.Fleet,
		bus:      env.Bus,
		logger:   logging.NopLogger(),
		ctx:      ctx,
		cancel:   cancel,
		rng:      rand.New(rand.NewPCG(now, now>>7)),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.WithComponent("fleet")
	return f
}

// Run spawns and reaps until ctx is cancelled. It does not stop the agents;
// call Shutdown after Run returns.
func (f *Fleet) Run(ctx context.Context) {
	reap := time.NewTicker(f.fleetCfg.ReapInterval())
	defer reap.Stop()

	spawn := time.NewTimer(f.nextSpawnDelay())
	defer spawn.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-reap.C:
			f.Reap()
		case <-spawn.C:
			if f.atCapacity() {
				f.logger.Debug("spawn skipped, fleet at capacity", "max_agents", f.fleetCfg.MaxAgents)
			} else {
				f.Spawn()
			}
			spawn.Reset(f.nextSpawnDelay())
		}
	}
}

// Spawn creates an agent, registers it and starts its goroutine. It returns
// nil once the fleet has been shut down.
func (f *Fleet) Spawn() *agent.Agent {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}

	tickMin, tickMax := f.agentCfg.TickRange()
	a := agent.New(agent.Options{
		Speed:        uniform(f.rng, f.agentCfg.SpeedMin, f.agentCfg.SpeedMax),
		TickInterval: uniformDuration(f.rng, tickMin, tickMax),
		Color: agent.Color{
			R: uint8(f.rng.UintN(256)),
			G: uint8(f.rng.UintN(256)),
			B: uint8(f.rng.UintN(256)),
		},
	}, f.env)

	f.env.Registry.Add(a)
	f.wg.Go(func() {
		a.Run(f.ctx)
	})
	f.spawned.Add(1)

	f.logger.Debug("agent spawned", "agent_id", a.ID, "speed", a.Speed, "tick", a.TickInterval.String())
	if f.bus != nil {
		f.bus.Publish(event.NewAgentSpawnedEvent(a.ID, a.Speed))
	}
	return a
}

// Reap removes finished agents from the live set and joins their
// goroutines. It returns how many were reaped.
func (f *Fleet) Reap() int {
	removed := f.env.Registry.RemoveFinished()
	for _, a := range removed {
		<-a.Done()
		f.reaped.Add(1)
		if f.bus != nil {
			f.bus.Publish(event.NewAgentReapedEvent(a.ID))
		}
	}
	if len(removed) > 0 {
		f.logger.Debug("reaped agents", "count", len(removed))
	}
	return len(removed)
}

// Shutdown stops every agent and returns once all agent goroutines have
// exited. Safe to call more than once.
func (f *Fleet) Shutdown() {
	f.shutdownOnce.Do(func() {
		f.mu.Lock()
		f.closed = true
		f.mu.Unlock()

		stopped := f.env.Registry.DeactivateAll()
		f.cancel()
		f.env.Pool.Close()

		if r := f.wg.WaitAndRecover(); r != nil {
			f.logger.Error("agent goroutine panicked", "panic", r.String())
		}

		cleared := f.env.Registry.Clear()
		f.reaped.Add(int64(len(cleared)))
		f.logger.Info("fleet shut down", "stopped", stopped, "joined", len(cleared))
	})
}

// Stats returns the current counts.
func (f *Fleet) Stats() Stats {
	return Stats{
		Spawned: f.spawned.Load(),
		Reaped:  f.reaped.Load(),
		Live:    f.env.Registry.Live(),
	}
}

func (f *Fleet) atCapacity() bool {
	return f.fleetCfg.MaxAgents > 0 && f.env.Registry.Live() >= f.fleetCfg.MaxAgents
}

func (f *Fleet) nextSpawnDelay() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	lo, hi := f.fleetCfg.SpawnRange()
	return uniformDuration(f.rng, lo, hi)
}

func uniform(r *rand.Rand, lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + r.Float64()*(hi-lo)
}

func uniformDuration(r *rand.Rand, lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(r.Int64N(int64(hi-lo)+1))
}
