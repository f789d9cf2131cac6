package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a "category.action" identifier, e.g. "stand.acquired".
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event type identifiers.
const (
	TypePhaseChanged   = "phase.changed"
	TypeAgentSpawned   = "agent.spawned"
	TypeAgentRouted    = "agent.routed"
	TypeAgentFinished  = "agent.finished"
	TypeAgentReaped    = "agent.reaped"
	TypeStandAcquired  = "stand.acquired"
	TypeStandReleased  = "stand.released"
	TypeWaitingChanged = "telemetry.waiting"
)

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Signal Events
// -----------------------------------------------------------------------------

// PhaseChangedEvent is emitted each time the broadcaster advances the phase.
type PhaseChangedEvent struct {
	baseEvent
	Previous int
	Phase    int
}

// NewPhaseChangedEvent creates a PhaseChangedEvent.
func NewPhaseChangedEvent(previous, phase int) PhaseChangedEvent {
	return PhaseChangedEvent{
		baseEvent: newBaseEvent(TypePhaseChanged),
		Previous:  previous,
		Phase:     phase,
	}
}

// -----------------------------------------------------------------------------
// Agent Lifecycle Events
// -----------------------------------------------------------------------------

// AgentSpawnedEvent is emitted when the fleet starts a new agent.
type AgentSpawnedEvent struct {
	baseEvent
	AgentID string
	Speed   float64 // track units per tick
}

// NewAgentSpawnedEvent creates an AgentSpawnedEvent.
func NewAgentSpawnedEvent(agentID string, speed float64) AgentSpawnedEvent {
	return AgentSpawnedEvent{
		baseEvent: newBaseEvent(TypeAgentSpawned),
		AgentID:   agentID,
		Speed:     speed,
	}
}

// AgentRoutedEvent is emitted when an agent crosses the decision point.
// Stand is empty for agents sent down the neutral path.
type AgentRoutedEvent struct {
	baseEvent
	AgentID string
	Phase   int
	Stand   string
}

// NewAgentRoutedEvent creates an AgentRoutedEvent.
func NewAgentRoutedEvent(agentID string, phase int, stand string) AgentRoutedEvent {
	return AgentRoutedEvent{
		baseEvent: newBaseEvent(TypeAgentRouted),
		AgentID:   agentID,
		Phase:     phase,
		Stand:     stand,
	}
}

// AgentFinishedEvent is emitted when an agent's control loop terminates.
type AgentFinishedEvent struct {
	baseEvent
	AgentID   string
	Served    bool // occupied a stand before finishing
	Cancelled bool // stopped by shutdown rather than reaching the end
}

// NewAgentFinishedEvent creates an AgentFinishedEvent.
func NewAgentFinishedEvent(agentID string, served, cancelled bool) AgentFinishedEvent {
	return AgentFinishedEvent{
		baseEvent: newBaseEvent(TypeAgentFinished),
		AgentID:   agentID,
		Served:    served,
		Cancelled: cancelled,
	}
}

// AgentReapedEvent is emitted after the fleet removed and joined an agent.
type AgentReapedEvent struct {
	baseEvent
	AgentID string
}

// NewAgentReapedEvent creates an AgentReapedEvent.
func NewAgentReapedEvent(agentID string) AgentReapedEvent {
	return AgentReapedEvent{
		baseEvent: newBaseEvent(TypeAgentReaped),
		AgentID:   agentID,
	}
}

// -----------------------------------------------------------------------------
// Stand Events
// -----------------------------------------------------------------------------

// StandAcquiredEvent is emitted when an agent takes a stand.
type StandAcquiredEvent struct {
	baseEvent
	AgentID string
	Stand   string
	Waited  time.Duration // time spent blocked in the pool, zero if uncontended
}

// NewStandAcquiredEvent creates a StandAcquiredEvent.
func NewStandAcquiredEvent(agentID, stand string, waited time.Duration) StandAcquiredEvent {
	return StandAcquiredEvent{
		baseEvent: newBaseEvent(TypeStandAcquired),
		AgentID:   agentID,
		Stand:     stand,
		Waited:    waited,
	}
}

// StandReleasedEvent is emitted when an agent gives a stand back.
type StandReleasedEvent struct {
	baseEvent
	AgentID string
	Stand   string
	Held    time.Duration
}

// NewStandReleasedEvent creates a StandReleasedEvent.
func NewStandReleasedEvent(agentID, stand string, held time.Duration) StandReleasedEvent {
	return StandReleasedEvent{
		baseEvent: newBaseEvent(TypeStandReleased),
		AgentID:   agentID,
		Stand:     stand,
		Held:      held,
	}
}

// -----------------------------------------------------------------------------
// Telemetry Events
// -----------------------------------------------------------------------------

// WaitingChangedEvent is emitted after every change of the waiting counter.
// Seq increases with every change, so subscribers can discard an event that
// arrives after a newer one.
type WaitingChangedEvent struct {
	baseEvent
	Waiting int64
	Seq     uint64
}

// NewWaitingChangedEvent creates a WaitingChangedEvent.
func NewWaitingChangedEvent(waiting int64, seq uint64) WaitingChangedEvent {
	return WaitingChangedEvent{
		baseEvent: newBaseEvent(TypeWaitingChanged),
		Waiting:   waiting,
		Seq:       seq,
	}
}
