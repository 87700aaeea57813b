package train

import "github.com/tracktitans/layoutrt/topology"

// Mode is a route's regeneration policy.
type Mode string

const (
	// ModeFixed routes are user-authored and never mutated at runtime.
	ModeFixed Mode = "fixed"
	// ModeAutomaticOnce runs towards a fixed Destination and stops the
	// train completely on arrival. Its steps are followed as given: the
	// Start handler regenerates only ModeAutomatic routes, and no other
	// handler regenerates a route.
	ModeAutomaticOnce Mode = "automaticOnce"
	// ModeAutomatic regenerates endlessly with no destination.
	ModeAutomatic Mode = "automatic"
)

// Step is one (blockId, direction) member of a route, mirroring
// pathfinder.Step / reservation's chain steps.
type Step struct {
	BlockID     string
	Direction   topology.Direction
	WaitingTime int // seconds; 0 means "use the block's default"
}

// Route is the train's assigned path, regenerated in place for
// ModeAutomatic.
type Route struct {
	ID          string
	Steps       []Step
	Mode        Mode
	Enabled     bool
	Destination *Step // only meaningful when Mode == ModeAutomaticOnce
}

// StepAt satisfies reservation.Route: returns the i'th step's block and
// direction, or ok=false past the end.
func (r *Route) StepAt(i int) (blockID string, dir topology.Direction, ok bool) {
	if r == nil || i < 0 || i >= len(r.Steps) {
		return "", "", false
	}
	s := r.Steps[i]
	return s.BlockID, s.Direction, true
}

// Len is the number of steps in the route.
func (r *Route) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Steps)
}

// LastIndex is the index of the final step, or -1 if empty.
func (r *Route) LastIndex() int { return r.Len() - 1 }
