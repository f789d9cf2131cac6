package agent

import (
	"context"
	"errors"
	"time"

	"github.com/Iron-Ham/standsim/internal/config"
	"github.com/Iron-Ham/standsim/internal/event"
	"github.com/Iron-Ham/standsim/internal/logging"
	"github.com/Iron-Ham/standsim/internal/phase"
	"github.com/Iron-Ham/standsim/internal/stand"
	"github.com/Iron-Ham/standsim/internal/telemetry"
	"github.com/google/uuid"
)

// PhaseReader is the read side of the signal broadcaster.
type PhaseReader interface {
	Current() phase.Phase
}

// Env holds the collaborators shared by every agent of a simulation.
type Env struct {
	Registry *Registry
	Pool     *stand.Pool
	Signal   PhaseReader
	Waiting  *telemetry.Counter
	Bus      *event.Bus
	Logger   *logging.Logger

	Track             config.TrackConfig
	DriftFactor       float64
	Dwell             time.Duration
	NeutralUsesCenter bool
}

// Options are the per-agent parameters drawn at spawn time.
type Options struct {
	ID           string // generated when empty
	Speed        float64
	TickInterval time.Duration
	Color        Color
}

// Agent is one traveller on the track.
type Agent struct {
	ID           string
	Speed        float64
	TickInterval time.Duration
	Color        Color

	env    *Env
	logger *logging.Logger
	done   chan struct{}

	// Guarded by env.Registry.mu.
	position        float64
	lateral         float64
	direction       float64
	stand           stand.ID
	state           State
	active          bool
	finished        bool
	waitingForStand bool
	served          bool

	// Owned by the agent goroutine.
	blocked bool
}

// New creates an agent at the start of the track. Env.Registry, Env.Pool,
// Env.Signal and Env.Waiting are required.
// The agent is not added to the registry.
func New(opts Options, env *Env) *Agent {
	id := opts.ID
	if id == "" {
		id = uuid.NewString()[:8]
	}
	logger := env.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Agent{
		ID:           id,
		Speed:        opts.Speed,
		TickInterval: opts.TickInterval,
		Color:        opts.Color,
		env:          env,
		logger:       logger.WithAgent(id),
		done:         make(chan struct{}),
		position:     env.Track.Start,
		stand:        stand.None,
		state:        StateTraveling,
		active:       true,
	}
}

// Done is closed when Run has returned.
func (a *Agent) Done() <-chan struct{} {
	return a.done
}

// View returns a copy of the agent's state.
func (a *Agent) View() View {
	a.env.Registry.mu.Lock()
	defer a.env.Registry.mu.Unlock()
	return a.viewLocked()
}

// Finished reports whether the control loop has terminated.
func (a *Agent) Finished() bool {
	a.env.Registry.mu.Lock()
	defer a.env.Registry.mu.Unlock()
	return a.finished
}

// Stop asks the agent to terminate. It is observed within one tick, or when
// the agent's current blocking wait is cancelled.
func (a *Agent) Stop() {
	a.env.Registry.mu.Lock()
	defer a.env.Registry.mu.Unlock()
	a.active = false
}

func (a *Agent) viewLocked() View {
	return View{
		ID:       a.ID,
		Position: a.position,
		Lateral:  a.lateral,
		Speed:    a.Speed,
		Color:    a.Color,
		Stand:    a.stand,
		State:    a.state,
		Waiting:  a.waitingForStand,
		Active:   a.active,
		Finished: a.finished,
		Served:   a.served,
	}
}

type stepResult int

const (
	stepContinue stepResult = iota
	stepArrived
	stepCancelled
)

// Run drives the agent until it leaves the track or is cancelled.
// It must be called at most once.
func (a *Agent) Run(ctx context.Context) {
	defer close(a.done)

	cancelled := true
	for ctx.Err() == nil {
		res := a.step(ctx)
		if res == stepArrived {
			cancelled = false
			break
		}
		if res == stepCancelled || !a.sleep(ctx) {
			break
		}
	}
	a.finish(cancelled)
}

// step performs one tick of movement and, at the stand threshold, the whole
// acquire/dwell/release sequence.
func (a *Agent) step(ctx context.Context) stepResult {
	track := a.env.Track
	reg := a.env.Registry

	reg.mu.Lock()
	if !a.active {
		reg.mu.Unlock()
		return stepCancelled
	}

	contending := a.stand.Valid() && (a.state == StateDecisionMade || a.state == StateQueued)
	if contending {
		if blocker := reg.blockingAgentLocked(a, track.Proximity); blocker != nil {
			a.waitingForStand = true
			a.state = StateQueued
			blockerID := blocker.ID
			reg.mu.Unlock()

			if a.enterWait() {
				a.logger.Debug("soft-blocked", "behind", blockerID)
			}
			return stepContinue
		}
	}

	a.position += a.Speed
	a.lateral += a.direction

	routed := false
	var ph phase.Phase
	if a.state == StateTraveling && a.position >= track.Midpoint {
		ph = a.env.Signal.Current()
		a.routeLocked(ph)
		routed = true
		contending = a.stand.Valid()
	}
	if a.position >= track.Approach {
		a.direction = 0
	}

	atStand := contending && a.position >= track.Stand
	if atStand {
		a.waitingForStand = true
		a.state = StateQueued
	}
	arrived := !atStand && a.position >= track.End
	if arrived {
		a.active = false
	}
	id, pos := a.stand, a.position
	reg.mu.Unlock()

	a.leaveWait()
	if routed {
		a.logger.Debug("routed", "phase", ph.String(), "stand", id.String(), "position", pos)
		if a.env.Bus != nil {
			a.env.Bus.Publish(event.NewAgentRoutedEvent(a.ID, int(ph), routedStand(id)))
		}
	}

	switch {
	case atStand:
		return a.occupy(ctx, id)
	case arrived:
		return stepArrived
	default:
		return stepContinue
	}
}

// routeLocked assigns the stand and lateral drift for the phase read at the
// decision point. Caller holds the registry lock.
func (a *Agent) routeLocked(p phase.Phase) {
	drift := a.Speed * a.env.DriftFactor
	switch p {
	case phase.Red:
		a.stand = stand.A
		a.direction = drift
	case phase.Green:
		a.stand = stand.C
		a.direction = -drift
	default:
		a.stand = stand.None
		if a.env.NeutralUsesCenter {
			a.stand = stand.B
		}
		a.direction = 0
	}
	a.state = StateDecisionMade
}

// occupy takes the stand, holds it for the dwell time and gives it back.
func (a *Agent) occupy(ctx context.Context, id stand.ID) stepResult {
	pool := a.env.Pool
	reg := a.env.Registry

	if !pool.TryAcquire(id, a.ID) {
		a.enterWait()
		err := pool.Acquire(ctx, id, a.ID)
		a.leaveWait()
		if err != nil {
			if !errors.Is(err, stand.ErrCancelled) {
				a.logger.Error("stand acquire failed", "stand", id.String(), "error", err)
			}
			reg.mu.Lock()
			a.waitingForStand = false
			reg.mu.Unlock()
			return stepCancelled
		}
	}

	reg.mu.Lock()
	a.state = StateOccupying
	a.served = true
	reg.mu.Unlock()

	time.Sleep(a.env.Dwell)

	if err := pool.Release(id, a.ID); err != nil {
		a.logger.Error("stand release failed", "stand", id.String(), "error", err)
	}
	a.logger.Debug("released", "stand", id.String())

	reg.mu.Lock()
	a.waitingForStand = false
	a.state = StateExiting
	reg.mu.Unlock()
	return stepContinue
}

// finish resolves any outstanding wait and marks the agent finished.
// After finished is set the goroutine touches no shared state.
func (a *Agent) finish(cancelled bool) {
	a.leaveWait()

	reg := a.env.Registry
	reg.mu.Lock()
	served := a.served
	reg.mu.Unlock()

	a.logger.Debug("finished", "served", served, "cancelled", cancelled)
	if a.env.Bus != nil {
		a.env.Bus.Publish(event.NewAgentFinishedEvent(a.ID, served, cancelled))
	}

	reg.mu.Lock()
	a.active = false
	a.waitingForStand = false
	a.state = StateFinished
	a.finished = true
	reg.mu.Unlock()
}

// sleep waits one tick. It returns false if ctx was cancelled first.
func (a *Agent) sleep(ctx context.Context) bool {
	timer := time.NewTimer(a.TickInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// enterWait counts the agent as blocked. It reports whether this call
// started a new wait.
func (a *Agent) enterWait() bool {
	if a.blocked {
		return false
	}
	a.blocked = true
	a.env.Waiting.Increment()
	return true
}

// leaveWait ends a wait started by enterWait, if any.
func (a *Agent) leaveWait() {
	if !a.blocked {
		return
	}
	a.blocked = false
	a.env.Waiting.Decrement()
}

func routedStand(id stand.ID) string {
	if !id.Valid() {
		return ""
	}
	return id.String()
}
