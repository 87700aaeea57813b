package train

import "github.com/tracktitans/layoutrt/topology"

// newPosition computes a train's new within-block position after a
// feedback at index feedbackIndex (0-based, along the block's natural
// previous->next axis) reports detected=true, per the MoveWithinBlock.
//
// In strict mode only the feedback exactly one ahead of the current
// position (relative to dir) advances it — anything else is ignored. In
// lenient mode any feedback ahead of the current position jumps it
// straight to that feedback's implied position. Travelling next, feedback
// index i implies position i+1; travelling previous, feedback index i
// implies position i.
func newPosition(current int, feedbackIndex int, dir topology.Direction, strict bool) (int, bool) {
	implied := impliedPosition(feedbackIndex, dir)

	if !ahead(current, implied, dir) {
		return current, false
	}
	if strict && !isNext(current, implied, dir) {
		return current, false
	}
	return implied, true
}

func impliedPosition(feedbackIndex int, dir topology.Direction) int {
	if dir == topology.DirNext {
		return feedbackIndex + 1
	}
	return feedbackIndex
}

func ahead(current, implied int, dir topology.Direction) bool {
	if dir == topology.DirNext {
		return implied > current
	}
	return implied < current
}

func isNext(current, implied int, dir topology.Direction) bool {
	if dir == topology.DirNext {
		return implied == current+1
	}
	return implied == current-1
}
