package agent

import (
	"sync"

	"github.com/Iron-Ham/standsim/internal/stand"
)

// View is a copy of one agent's observable state.
type View struct {
	ID       string
	Position float64
	Lateral  float64
	Speed    float64
	Color    Color
	Stand    stand.ID
	State    State
	Waiting  bool // waiting for or holding its stand
	Active   bool
	Finished bool
	Served   bool
}

// Registry is the live set of agents and the lock that guards their
// mutable state.
type Registry struct {
	mu     sync.Mutex
	agents []*Agent
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add inserts an agent into the live set.
func (r *Registry) Add(a *Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents = append(r.agents, a)
}

// Len returns the number of agents in the set, finished or not.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.agents)
}

// Live returns the number of agents that have not finished.
func (r *Registry) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, a := range r.agents {
		if !a.finished {
			n++
		}
	}
	return n
}

// Snapshot returns a consistent copy of every agent, in insertion order.
func (r *Registry) Snapshot() []View {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]View, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, a.viewLocked())
	}
	return out
}

// RemoveFinished removes every finished agent from the set and returns
// them. The caller joins them after the lock is released.
func (r *Registry) RemoveFinished() []*Agent {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []*Agent
	kept := r.agents[:0]
	for _, a := range r.agents {
		if a.finished {
			removed = append(removed, a)
		} else {
			kept = append(kept, a)
		}
	}
	clear(r.agents[len(kept):])
	r.agents = kept
	return removed
}

// DeactivateAll clears the active flag of every agent and returns how many
// were still active.
func (r *Registry) DeactivateAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, a := range r.agents {
		if a.active {
			a.active = false
			n++
		}
	}
	return n
}

// Clear empties the set and returns what it held.
func (r *Registry) Clear() []*Agent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.agents
	r.agents = nil
	return out
}

// blockingAgentLocked returns the nearest agent ahead of self that is
// waiting for the same stand and that self would come within proximity of
// by taking its next step. Caller holds r.mu.
func (r *Registry) blockingAgentLocked(self *Agent, proximity float64) *Agent {
	if !self.stand.Valid() {
		return nil
	}
	next := self.position + self.Speed

	var nearest *Agent
	for _, other := range r.agents {
		if other == self || other.stand != self.stand || !other.waitingForStand {
			continue
		}
		if !isAhead(other, self) {
			continue
		}
		if other.position-next >= proximity {
			continue
		}
		if nearest == nil || isAhead(nearest, other) {
			nearest = other
		}
	}
	return nearest
}

// isAhead reports whether a is ahead of b on the track. Agents at the same
// position are ordered by ID, the smaller ID being ahead.
func isAhead(a, b *Agent) bool {
	if a.position != b.position {
		return a.position > b.position
	}
	return a.ID < b.ID
}
