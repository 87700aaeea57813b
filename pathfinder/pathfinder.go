// Package pathfinder implements the depth-first, backtracking route search
// over the topology graph: given a starting block+side and an optional
// destination, it produces a physically valid sequence of block/turnout
// steps honoring reservation and avoidance policy.
package pathfinder

import (
	"fmt"
	"math/rand"

	"github.com/tracktitans/layoutrt/topology"
)

// ReservedBlockBehavior controls how the search treats blocks reserved by
// another train.
type ReservedBlockBehavior int

const (
	// AvoidReserved never steps onto a block reserved by a different train.
	AvoidReserved ReservedBlockBehavior = iota
	// AvoidReservedUntil ignores another train's reservation once the
	// accumulated path length exceeds N steps.
	AvoidReservedUntil
	// IgnoreReserved never rejects a block for being reserved.
	IgnoreReserved
)

// Constraints configures one search: the train asking, how to treat
// reserved blocks, whether an unspecified destination stops at the first
// station reached, and whether the train may traverse in either body
// direction (not modeled further here; carried for callers that need it).
type Constraints struct {
	TrainID                 string
	ReservedBlockBehavior   ReservedBlockBehavior
	AvoidReservedUntilSteps int
	StopAtFirstStation      bool
	AllowBothBodyDirections bool
}

// Settings tunes the search algorithm itself.
type Settings struct {
	OverflowLimit int
	Randomize     bool
	Seed          int64
	Verbose       bool
}

// Step is one (block, direction) hop of a returned route.
type Step struct {
	BlockID   string
	Direction topology.Direction
}

// Destination optionally pins the search to a specific block+direction.
type Destination struct {
	BlockID   string
	Direction topology.Direction
	HasDir    bool
}

// OverflowError is raised when the accumulated path length exceeds
// Settings.OverflowLimit.
type OverflowError struct{ Limit int }

func (e *OverflowError) Error() string {
	return fmt.Sprintf("pathfinder: path overflow, exceeded %d steps", e.Limit)
}

// Find runs the DFS search. When dest is nil the search
// stops at the first station block reached other than the start, and only
// when c.StopAtFirstStation is set; with neither a destination nor that
// flag no path can succeed and Find returns an error. When dest is set and settings.Randomize is
// true, up to ten candidate paths are drawn and the shortest is returned;
// otherwise the first path found is returned.
func Find(g *topology.Graph, startBlockID string, startDir topology.Direction, dest *Destination, c Constraints, s Settings) ([]Step, error) {
	if s.OverflowLimit <= 0 {
		s.OverflowLimit = 500
	}
	rng := rand.New(rand.NewSource(s.Seed))

	if dest != nil && s.Randomize {
		var best []Step
		for i := 0; i < 10; i++ {
			path, err := findOnce(g, startBlockID, startDir, dest, c, s, rng)
			if err != nil {
				if _, ok := err.(*OverflowError); ok {
					continue
				}
				return nil, err
			}
			if path == nil {
				continue
			}
			if best == nil || len(path) < len(best) {
				best = path
			}
		}
		if best == nil {
			return nil, fmt.Errorf("pathfinder: no path found to destination %s", dest.BlockID)
		}
		return best, nil
	}

	path, err := findOnce(g, startBlockID, startDir, dest, c, s, rng)
	if err != nil {
		return nil, err
	}
	if path == nil {
		if dest != nil {
			return nil, fmt.Errorf("pathfinder: no path found to destination %s", dest.BlockID)
		}
		return nil, fmt.Errorf("pathfinder: no station reachable from %s", startBlockID)
	}
	return path, nil
}

func findOnce(g *topology.Graph, startBlockID string, startDir topology.Direction, dest *Destination, c Constraints, s Settings, rng *rand.Rand) ([]Step, error) {
	visited := map[string]bool{}
	var path []Step
	found, overflowed := search(g, startBlockID, startDir, dest, c, s, rng, visited, &path, true)
	if overflowed {
		return nil, &OverflowError{Limit: s.OverflowLimit}
	}
	if !found {
		return nil, nil
	}
	return append([]Step{}, path...), nil
}

// search performs one DFS branch, appending accepted steps to *path. It
// returns found=true once a success condition is met, leaving *path as the
// winning route. overflow=true aborts the whole search.
func search(g *topology.Graph, blockID string, dir topology.Direction, dest *Destination, c Constraints, s Settings, rng *rand.Rand, visited map[string]bool, path *[]Step, isStart bool) (found bool, overflow bool) {
	if len(*path) > s.OverflowLimit {
		return false, true
	}

	block, err := g.Block(blockID)
	if err != nil {
		return false, false
	}

	if !isStart {
		if !block.Enabled() {
			return false, false
		}
		if visited[blockID] {
			return false, false
		}
		if ti := block.TrainInstance(); ti != nil && ti.TrainID != c.TrainID {
			return false, false
		}
		if r := block.Reservation(); r != nil && r.TrainID != c.TrainID {
			behavior := c.ReservedBlockBehavior
			if behavior == AvoidReservedUntil && len(*path) > c.AvoidReservedUntilSteps {
				// ignore reservation past the threshold
			} else if behavior != IgnoreReserved {
				return false, false
			}
		}
	}

	*path = append(*path, Step{BlockID: blockID, Direction: dir})
	visited[blockID] = true
	defer func() {
		if !found {
			*path = (*path)[:len(*path)-1]
			delete(visited, blockID)
		}
	}()

	// Success conditions.
	if dest != nil {
		if blockID == dest.BlockID && (!dest.HasDir || dir == dest.Direction) {
			return true, false
		}
	} else if !isStart && block.IsStation() && c.StopAtFirstStation {
		return true, false
	}

	options := g.NextOptions(blockID, dir)
	if s.Randomize {
		rng.Shuffle(len(options), func(i, j int) { options[i], options[j] = options[j], options[i] })
	}
	for _, opt := range options {
		ok, overflowed := search(g, opt.BlockID, opt.Direction, dest, c, s, rng, visited, path, false)
		if overflowed {
			return false, true
		}
		if ok {
			return true, false
		}
	}
	return false, false
}
