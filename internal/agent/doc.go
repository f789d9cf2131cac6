// Package agent implements the per-agent control loop and the shared live
// set the agents move in.
//
// Every agent runs [Agent.Run] on its own goroutine. Mutable agent state
// (position, route, flags) is guarded by the [Registry] lock, which is the
// coarse lock of the whole simulation: an agent takes it once per tick to
// read the live set and move, and never holds it while sleeping or blocking
// on a stand.
//
// # Lock Order
//
// The registry lock is always taken before a stand lock and never the other
// way round. Agents never call into the stand pool, the telemetry counter,
// or the event bus while holding the registry lock.
//
// # Lifecycle
//
//	Traveling → DecisionMade → Queued → Occupying → Exiting → Finished
//
// Agents routed to no stand skip Queued and Occupying. Cancellation moves an
// agent to Finished from any state.
package agent
