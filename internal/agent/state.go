package agent

import "fmt"

// State is the phase of an agent's control loop.
type State int

const (
	StateTraveling State = iota
	StateDecisionMade
	StateQueued
	StateOccupying
	StateExiting
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateTraveling:
		return "traveling"
	case StateDecisionMade:
		return "decision_made"
	case StateQueued:
		return "queued"
	case StateOccupying:
		return "occupying"
	case StateExiting:
		return "exiting"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Color is an RGB display colour.
type Color struct {
	R, G, B uint8
}

// Hex returns the colour as "#rrggbb".
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
