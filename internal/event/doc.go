// Package event provides a pub-sub event bus that decouples the simulation
// core from its observers.
//
// The core (broadcaster, stand pool, agents, fleet) publishes events; the
// telemetry reporter, the run statistics and the terminal view subscribe to
// them without the core knowing who is listening.
//
// # Event Categories
//
// Signal:
//   - [PhaseChangedEvent]: the broadcaster advanced the phase
//
// Agent lifecycle:
//   - [AgentSpawnedEvent], [AgentRoutedEvent], [AgentFinishedEvent], [AgentReapedEvent]
//
// Stands:
//   - [StandAcquiredEvent], [StandReleasedEvent]
//
// Telemetry:
//   - [WaitingChangedEvent]: the blocked-agent counter changed
//
// # Thread Safety
//
// [Bus] is safe for concurrent use. Handlers run synchronously on the
// publishing goroutine; agents publish from their own goroutines, so
// handlers must be cheap and must synchronize their own state.
//
// # Basic Usage
//
//	bus := event.NewBus()
//	bus.Subscribe(event.TypeStandAcquired, func(e event.Event) {
//	    acq := e.(event.StandAcquiredEvent)
//	    fmt.Println(acq.AgentID, "took", acq.Stand)
//	})
//	bus.Publish(event.NewStandAcquiredEvent("a1", "A", 0))
package event
