package phase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Iron-Ham/standsim/internal/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhase_Next(t *testing.T) {
	assert.Equal(t, Green, Red.Next())
	assert.Equal(t, Amber, Green.Next())
	assert.Equal(t, Red, Amber.Next())
}

func TestPhase_String(t *testing.T) {
	assert.Equal(t, "red", Red.String())
	assert.Equal(t, "green", Green.String())
	assert.Equal(t, "amber", Amber.String())
	assert.Equal(t, "unknown", Phase(7).String())
}

func TestBroadcaster_InitialAndSet(t *testing.T) {
	b := NewBroadcaster(time.Hour, WithInitial(Amber))
	assert.Equal(t, Amber, b.Current())

	b.Set(Red)
	assert.Equal(t, Red, b.Current())
}

func TestBroadcaster_AdvanceCycles(t *testing.T) {
	b := NewBroadcaster(time.Hour)

	var seen []Phase
	for i := 0; i < 6; i++ {
		seen = append(seen, b.Advance())
	}
	assert.Equal(t, []Phase{Green, Amber, Red, Green, Amber, Red}, seen)
}

func TestBroadcaster_ConcurrentAdvanceStaysInRange(t *testing.T) {
	b := NewBroadcaster(time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 300; j++ {
				p := b.Advance()
				if p < 0 || p >= Count {
					t.Errorf("phase out of range: %d", p)
				}
				_ = b.Current()
			}
		}()
	}
	wg.Wait()

	// 2400 advances from Red land back on Red.
	assert.Equal(t, Red, b.Current())
}

func TestBroadcaster_RunPublishesAndStops(t *testing.T) {
	bus := event.NewBus()

	var mu sync.Mutex
	var changes []event.PhaseChangedEvent
	bus.Subscribe(event.TypePhaseChanged, func(e event.Event) {
		mu.Lock()
		defer mu.Unlock()
		changes = append(changes, e.(event.PhaseChangedEvent))
	})

	b := NewBroadcaster(10*time.Millisecond, WithBus(bus), WithAdvanceOnStart(true))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(changes) >= 3
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcaster did not stop after context cancel")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 0, changes[0].Previous)
	assert.Equal(t, 1, changes[0].Phase)
	for i := 1; i < len(changes); i++ {
		assert.Equal(t, changes[i-1].Phase, changes[i].Previous)
		assert.Equal(t, (changes[i].Previous+1)%Count, changes[i].Phase)
	}
}

func TestBroadcaster_NoAdvanceOnStart(t *testing.T) {
	b := NewBroadcaster(time.Hour, WithAdvanceOnStart(false))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, Red, b.Current())

	cancel()
	<-done
}
