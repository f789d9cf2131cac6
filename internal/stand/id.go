// Package stand implements the pool of mutually exclusive stands at the
// end of the track.
//
// Each stand can be held by at most one agent. Agents take a stand with
// [Pool.TryAcquire] or block in [Pool.Acquire]; a blocked acquire returns
// [ErrCancelled] as soon as the pool is closed or the caller's context is
// done, so no agent waits past shutdown.
package stand

// ID identifies a stand.
type ID int

const (
	// None is the unassigned stand of an agent on the neutral path.
	None ID = -1
	// A is the upper stand, served on the red phase.
	A ID = 0
	// B is the centre stand.
	B ID = 1
	// C is the lower stand, served on the green phase.
	C ID = 2

	// Count is the number of stands in a pool.
	Count = 3
)

// String returns the stand letter, or "-" for None.
func (id ID) String() string {
	switch id {
	case A:
		return "A"
	case B:
		return "B"
	case C:
		return "C"
	case None:
		return "-"
	default:
		return "?"
	}
}

// Valid reports whether id names a stand in the pool.
func (id ID) Valid() bool {
	return id >= 0 && int(id) < Count
}

// All returns every stand ID in order.
func All() []ID {
	return []ID{A, B, C}
}
