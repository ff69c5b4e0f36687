package sim

import (
	"fmt"
	"time"

	"github.com/setanarut/cm"
	"github.com/setanarut/v"
)

// State is the lifecycle state of a bubble.
//
// Active bubbles have a live collider and are subject to timeout and
// hit-testing. PendingRemoval bubbles have had their collider removed (at
// pop or timeout) but are still tracked while the respawn delay runs.
// Removed is terminal; a removed bubble's handle is never reused.
type State int

const (
	StateActive State = iota
	StatePendingRemoval
	StateRemoved
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StatePendingRemoval:
		return "pending-removal"
	case StateRemoved:
		return "removed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Handle identifies a bubble. It is a stable id owned by the simulation,
// deliberately decoupled from the physics engine's body and shape pointers
// so that engine entity validity never leaks to callers.
type Handle uint64

// Snapshot is the per-entity state returned by Step, used by the caller
// for drawing only.
type Snapshot struct {
	ID       Handle
	Position v.Vec
	Radius   float64
	State    State
}

// bubble is the internal entity record. The body and shape pointers are the
// back-references into the engine; position is refreshed from the body each
// step and not trusted beyond that.
type bubble struct {
	id    Handle
	body  *cm.Body
	shape *cm.Shape

	pos v.Vec

	spawnTime time.Time
	duration  time.Duration
	delay     time.Duration
	endTime   time.Time

	state State
}
