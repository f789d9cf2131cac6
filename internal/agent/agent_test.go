package agent

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Iron-Ham/standsim/internal/config"
	"github.com/Iron-Ham/standsim/internal/event"
	"github.com/Iron-Ham/standsim/internal/phase"
	"github.com/Iron-Ham/standsim/internal/stand"
	"github.com/Iron-Ham/standsim/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedSignal phase.Phase

func (f fixedSignal) Current() phase.Phase { return phase.Phase(f) }

// advancingSignal moves to the next phase on every read.
type advancingSignal struct {
	reads atomic.Int32
}

func (s *advancingSignal) Current() phase.Phase {
	return phase.Phase((s.reads.Add(1) - 1) % phase.Count)
}

func testTrack() config.TrackConfig {
	return config.TrackConfig{
		Start:     0,
		Midpoint:  0.1,
		Approach:  0.5,
		Stand:     0.9,
		End:       1.0,
		Proximity: 0.05,
	}
}

func newTestEnv(p phase.Phase) *Env {
	bus := event.NewBus()
	return &Env{
		Registry:    NewRegistry(),
		Pool:        stand.NewPool(stand.WithBus(bus)),
		Signal:      fixedSignal(p),
		Waiting:     telemetry.NewCounter(),
		Bus:         bus,
		Track:       testTrack(),
		DriftFactor: 0.5,
		Dwell:       30 * time.Millisecond,
	}
}

func spawn(env *Env, id string) *Agent {
	a := New(Options{ID: id, Speed: 0.05, TickInterval: time.Millisecond}, env)
	env.Registry.Add(a)
	return a
}

func waitDone(t *testing.T, a *Agent) {
	t.Helper()
	select {
	case <-a.Done():
	case <-time.After(3 * time.Second):
		t.Fatalf("agent %s did not finish", a.ID)
	}
}

func TestNew_Defaults(t *testing.T) {
	env := newTestEnv(phase.Red)
	a := New(Options{Speed: 0.01}, env)

	assert.Len(t, a.ID, 8)
	v := a.View()
	assert.Equal(t, env.Track.Start, v.Position)
	assert.Equal(t, stand.None, v.Stand)
	assert.Equal(t, StateTraveling, v.State)
	assert.True(t, v.Active)
	assert.False(t, v.Finished)
	assert.False(t, v.Waiting)
}

func TestAgent_RoutesByPhase(t *testing.T) {
	tests := []struct {
		name          string
		phase         phase.Phase
		neutralCenter bool
		wantStand     stand.ID
		wantLateral   int // sign
	}{
		{name: "red goes to A", phase: phase.Red, wantStand: stand.A, wantLateral: 1},
		{name: "green goes to C", phase: phase.Green, wantStand: stand.C, wantLateral: -1},
		{name: "amber stays neutral", phase: phase.Amber, wantStand: stand.None},
		{name: "amber to centre when enabled", phase: phase.Amber, neutralCenter: true, wantStand: stand.B},
		{name: "unknown phase is neutral", phase: phase.Phase(9), wantStand: stand.None},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(tt.phase)
			env.NeutralUsesCenter = tt.neutralCenter

			var mu sync.Mutex
			var routed []event.AgentRoutedEvent
			env.Bus.Subscribe(event.TypeAgentRouted, func(e event.Event) {
				mu.Lock()
				defer mu.Unlock()
				routed = append(routed, e.(event.AgentRoutedEvent))
			})

			a := spawn(env, "a1")
			go a.Run(context.Background())
			waitDone(t, a)

			v := a.View()
			assert.True(t, v.Finished)
			assert.Equal(t, StateFinished, v.State)
			assert.Equal(t, tt.wantStand, v.Stand)
			assert.GreaterOrEqual(t, v.Position, env.Track.End)
			assert.Equal(t, tt.wantStand.Valid(), v.Served)

			switch tt.wantLateral {
			case 1:
				assert.Greater(t, v.Lateral, 0.0)
			case -1:
				assert.Less(t, v.Lateral, 0.0)
			default:
				assert.Equal(t, 0.0, v.Lateral)
			}

			served := 0
			for _, s := range env.Pool.Occupancy() {
				assert.False(t, s.Occupied)
				served += s.Served
			}
			if tt.wantStand.Valid() {
				assert.Equal(t, 1, env.Pool.Occupancy()[tt.wantStand].Served)
			} else {
				assert.Zero(t, served, "neutral agents never contend")
			}
			assert.Equal(t, int64(0), env.Waiting.Snapshot())

			mu.Lock()
			defer mu.Unlock()
			require.Len(t, routed, 1, "routing decision is made exactly once")
			assert.Equal(t, int(tt.phase), routed[0].Phase)
			if tt.wantStand.Valid() {
				assert.Equal(t, tt.wantStand.String(), routed[0].Stand)
			} else {
				assert.Empty(t, routed[0].Stand)
			}
		})
	}
}

func TestAgent_DriftStopsAtApproach(t *testing.T) {
	env := newTestEnv(phase.Red)
	a := spawn(env, "a1")
	go a.Run(context.Background())
	waitDone(t, a)

	// Drift applies from the decision point until the approach landmark:
	// at most (approach-midpoint)/speed + 1 steps of speed*factor.
	maxSteps := (env.Track.Approach-env.Track.Midpoint)/a.Speed + 1
	assert.LessOrEqual(t, a.View().Lateral, maxSteps*a.Speed*env.DriftFactor+1e-9)
}

func TestAgent_RoutedEventMatchesDecision(t *testing.T) {
	wantStand := map[int]string{
		int(phase.Red):   "A",
		int(phase.Green): "C",
		int(phase.Amber): "",
	}

	for i := 0; i < 6; i++ {
		env := newTestEnv(phase.Red)
		env.Signal = &advancingSignal{}
		for j := 0; j < i; j++ {
			env.Signal.Current()
		}

		var mu sync.Mutex
		var routed []event.AgentRoutedEvent
		env.Bus.Subscribe(event.TypeAgentRouted, func(e event.Event) {
			mu.Lock()
			defer mu.Unlock()
			routed = append(routed, e.(event.AgentRoutedEvent))
		})

		a := spawn(env, "a1")
		go a.Run(context.Background())
		waitDone(t, a)

		mu.Lock()
		require.Len(t, routed, 1)
		got := routed[0]
		mu.Unlock()
		assert.Equal(t, wantStand[got.Phase], got.Stand, "phase %d routed to %q", got.Phase, got.Stand)
		assert.Equal(t, got.Stand, routedStand(a.View().Stand))
	}
}

func TestAgent_TwoAgentsSameStand(t *testing.T) {
	env := newTestEnv(phase.Red)
	env.Dwell = 80 * time.Millisecond

	var mu sync.Mutex
	var acquired []event.StandAcquiredEvent
	released := make(map[string]int)
	env.Bus.Subscribe(event.TypeStandAcquired, func(e event.Event) {
		mu.Lock()
		defer mu.Unlock()
		acquired = append(acquired, e.(event.StandAcquiredEvent))
	})
	env.Bus.Subscribe(event.TypeStandReleased, func(e event.Event) {
		mu.Lock()
		defer mu.Unlock()
		released[e.(event.StandReleasedEvent).AgentID]++
	})

	var waiting []int64
	env.Waiting.OnChange(func(n int64) {
		mu.Lock()
		defer mu.Unlock()
		waiting = append(waiting, n)
	})

	first := spawn(env, "a1")
	second := spawn(env, "a2")
	ctx := context.Background()
	go first.Run(ctx)
	go second.Run(ctx)

	waitDone(t, first)
	waitDone(t, second)

	assert.True(t, first.View().Served)
	assert.True(t, second.View().Served)
	assert.Equal(t, 2, env.Pool.Occupancy()[stand.A].Served)
	assert.Equal(t, int64(0), env.Waiting.Snapshot())

	mu.Lock()
	defer mu.Unlock()

	// The later agent waited exactly once, for the whole occupancy.
	assert.Equal(t, []int64{1, 0}, waiting)

	require.Len(t, acquired, 2)
	assert.NotEqual(t, acquired[0].AgentID, acquired[1].AgentID)
	assert.Equal(t, "A", acquired[0].Stand)
	assert.Equal(t, "A", acquired[1].Stand)
	assert.GreaterOrEqual(t, acquired[1].Timestamp().Sub(acquired[0].Timestamp()), env.Dwell,
		"second agent took the stand before the first one's dwell ended")

	assert.Equal(t, map[string]int{"a1": 1, "a2": 1}, released, "each agent releases exactly once")
}

func TestAgent_SoftBlockNeverPassesWaitingLeader(t *testing.T) {
	env := newTestEnv(phase.Red)

	leader := New(Options{ID: "leader", Speed: 0.05}, env)
	leader.position = 0.6
	leader.stand = stand.A
	leader.state = StateQueued
	leader.waitingForStand = true
	env.Registry.Add(leader)

	follower := spawn(env, "follower")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go follower.Run(ctx)

	limit := leader.View().Position - env.Track.Proximity + 1e-9
	maxSeen := 0.0
	require.Eventually(t, func() bool {
		v := follower.View()
		if v.Position > maxSeen {
			maxSeen = v.Position
		}
		return v.State == StateQueued && env.Waiting.Snapshot() == 1
	}, 2*time.Second, time.Millisecond)

	settled := follower.View().Position
	time.Sleep(30 * time.Millisecond)
	v := follower.View()
	assert.Equal(t, settled, v.Position, "blocked follower must stay put")
	assert.LessOrEqual(t, maxSeen, limit)
	assert.LessOrEqual(t, v.Position, limit)
	assert.True(t, v.Waiting)
	assert.Equal(t, int64(1), env.Waiting.Snapshot(), "a long block counts once")

	cancel()
	waitDone(t, follower)
	assert.Equal(t, int64(0), env.Waiting.Snapshot())
	assert.False(t, follower.View().Waiting)
}

func TestAgent_FollowerResumesWhenLeaderMovesOn(t *testing.T) {
	env := newTestEnv(phase.Red)

	leader := New(Options{ID: "leader", Speed: 0.05}, env)
	leader.position = 0.6
	leader.stand = stand.A
	leader.state = StateQueued
	leader.waitingForStand = true
	env.Registry.Add(leader)

	follower := spawn(env, "follower")
	go follower.Run(context.Background())

	require.Eventually(t, func() bool {
		return env.Waiting.Snapshot() == 1
	}, 2*time.Second, time.Millisecond)

	env.Registry.mu.Lock()
	leader.waitingForStand = false
	leader.state = StateExiting
	leader.position = 1.0
	env.Registry.mu.Unlock()

	waitDone(t, follower)
	assert.True(t, follower.View().Served)
	assert.Equal(t, int64(0), env.Waiting.Snapshot())
}

func TestAgent_CancelWhileAcquiring(t *testing.T) {
	tests := []struct {
		name   string
		cancel func(env *Env, cancel context.CancelFunc)
	}{
		{
			name:   "context cancel",
			cancel: func(_ *Env, cancel context.CancelFunc) { cancel() },
		},
		{
			name:   "pool close",
			cancel: func(env *Env, _ context.CancelFunc) { env.Pool.Close() },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(phase.Red)
			require.True(t, env.Pool.TryAcquire(stand.A, "squatter"))

			var mu sync.Mutex
			var finished []event.AgentFinishedEvent
			env.Bus.Subscribe(event.TypeAgentFinished, func(e event.Event) {
				mu.Lock()
				defer mu.Unlock()
				finished = append(finished, e.(event.AgentFinishedEvent))
			})

			a := spawn(env, "a1")
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go a.Run(ctx)

			require.Eventually(t, func() bool {
				return env.Pool.Occupancy()[stand.A].Waiters == 1
			}, 2*time.Second, time.Millisecond)
			assert.Equal(t, int64(1), env.Waiting.Snapshot())

			tt.cancel(env, cancel)
			waitDone(t, a)

			v := a.View()
			assert.True(t, v.Finished)
			assert.False(t, v.Served)
			assert.False(t, v.Waiting)
			assert.Equal(t, int64(0), env.Waiting.Snapshot())

			holder, _ := env.Pool.Holder(stand.A)
			assert.Equal(t, "squatter", holder)

			mu.Lock()
			defer mu.Unlock()
			require.Len(t, finished, 1)
			assert.True(t, finished[0].Cancelled)
			assert.False(t, finished[0].Served)
		})
	}
}

func TestAgent_StopIsObservedWithinATick(t *testing.T) {
	env := newTestEnv(phase.Amber)
	env.Track.End = 1000

	a := New(Options{ID: "a1", Speed: 0.001, TickInterval: 5 * time.Millisecond}, env)
	env.Registry.Add(a)
	go a.Run(context.Background())

	time.Sleep(20 * time.Millisecond)
	a.Stop()
	waitDone(t, a)

	assert.True(t, a.Finished())
	pos := a.View().Position
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, pos, a.View().Position, "no movement after finish")
	assert.True(t, a.Finished(), "finished never reverts")
}

func TestAgent_CancelledBeforeStart(t *testing.T) {
	env := newTestEnv(phase.Red)
	a := spawn(env, "a1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a.Run(ctx)

	v := a.View()
	assert.True(t, v.Finished)
	assert.Equal(t, env.Track.Start, v.Position)
}
