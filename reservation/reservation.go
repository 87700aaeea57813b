// Package reservation implements the atomic reservation engine:
// it toggles `reserved` on blocks/turnouts/transitions, sets turnout state
// to whatever each reservation requires, and is the only writer of
// reservation fields anywhere in the runtime.
package reservation

import (
	log "gopkg.in/inconshreveable/log15.v2"

	"github.com/tracktitans/layoutrt/busif"
	"github.com/tracktitans/layoutrt/topology"
)

var logger log.Logger

// InitializeLogger wires the package logger, following the ambient
// convention used across this module.
func InitializeLogger(parent log.Logger) { logger = parent.New("module", "reservation") }

// TrailingStep is one member of a train's remembered trailing chain, kept
// so FreeTrailing can release it again once it falls outside the train's
// length window. TurnoutIDs and TransitionIDs are the crossings reserved to
// reach BlockID, i.e. what Free/FreeTrailing must clear alongside the block
// itself.
type TrailingStep struct {
	BlockID       string
	Direction     topology.Direction
	TurnoutIDs    []string
	TransitionIDs []string
}

// Engine is the reservation engine bound to one topology graph and one
// command-bus adapter for turnout commands.
type Engine struct {
	graph *topology.Graph
	bus   busif.CommandInterface
}

// New builds a reservation Engine. bus may be nil, in which case turnout
// commands are simply not sent (useful for tests).
func New(g *topology.Graph, bus busif.CommandInterface) *Engine {
	return &Engine{graph: g, bus: bus}
}

// Reserve finds the transition chain from fromBlock's outgoing side (per
// direction) to toBlock's incoming side, verifies every intermediate
// turnout and block is free or already owned by trainID, then commits the
// whole chain atomically: every transition, every turnout (plus its
// required state), and the destination block. It returns false (no
// mutation at all) if any step is blocked by another train's reservation,
// and a topology error if there is no such chain in the graph.
func (e *Engine) Reserve(trainID string, fromBlockID string, fromDir topology.Direction, toBlockID string, toDir topology.Direction) (bool, error) {
	crossings, transitions, err := e.graph.ChainTo(fromBlockID, fromDir, toBlockID, toDir)
	if err != nil {
		return false, err
	}

	toBlock, err := e.graph.Block(toBlockID)
	if err != nil {
		return false, err
	}

	// Validate before mutating anything (atomicity).
	for _, cr := range crossings {
		to, err := e.graph.Turnout(cr.TurnoutID)
		if err != nil {
			return false, err
		}
		if to.Reserved() != "" && to.Reserved() != trainID {
			return false, nil
		}
	}
	for _, tr := range transitions {
		if tr.Reserved() != "" && tr.Reserved() != trainID {
			return false, nil
		}
	}
	if r := toBlock.Reservation(); r != nil && r.TrainID != trainID {
		return false, nil
	}
	if ti := toBlock.TrainInstance(); ti != nil && ti.TrainID != trainID {
		return false, nil
	}

	// Commit.
	for _, tr := range transitions {
		tr.SetReserved(trainID)
	}
	for _, cr := range crossings {
		to, _ := e.graph.Turnout(cr.TurnoutID)
		to.SetReserved(trainID)
		if to.State() != cr.RequiredState {
			to.SetState(cr.RequiredState)
			e.sendTurnoutCommand(to, cr.RequiredState)
		}
	}
	toBlock.SetReservation(&topology.Reservation{TrainID: trainID, Direction: toDir})

	return true, nil
}

// sendTurnoutCommand emits a fire-and-forget command to the bus adapter; a
// failure is logged, never rolled back.
func (e *Engine) sendTurnoutCommand(to *topology.Turnout, state topology.TurnoutState) {
	if e.bus == nil {
		return
	}
	cmd := busif.TurnoutSetStateCommand{Addresses: to.Addresses(), State: string(state)}
	if err := e.bus.Execute(cmd); err != nil {
		if logger != nil {
			logger.Error("turnout command failed", "turnout", to.ID(), "state", state, "error", err)
		}
	}
}

// Route is the minimal view of a train's route the reservation engine
// needs: its ordered steps. Defined here (rather than imported from the
// train package) to avoid an import cycle; the train package's Route
// satisfies this interface trivially.
type Route interface {
	StepAt(i int) (blockID string, dir topology.Direction, ok bool)
	Len() int
}

// ReserveLeading reserves forward from route step fromIndex up to
// maxLeading steps, stopping at the first step it cannot reserve. It
// returns true if Reserve succeeded for at least one step, including a
// step trainID already held — partial progress
// is kept, there is no rollback of the steps that did succeed.
func (e *Engine) ReserveLeading(trainID string, route Route, fromIndex int, maxLeading int) bool {
	reservedAny := false
	idx := fromIndex
	for count := 0; count < maxLeading; count++ {
		fromBlockID, fromDir, ok := route.StepAt(idx)
		if !ok {
			break
		}
		toBlockID, toDir, ok := route.StepAt(idx + 1)
		if !ok {
			break
		}
		ok2, err := e.Reserve(trainID, fromBlockID, fromDir, toBlockID, toDir)
		if err != nil || !ok2 {
			break
		}
		reservedAny = true
		idx++
	}
	return reservedAny
}

// Free unconditionally releases a block and every turnout/transition
// crossed to reach it (as recorded on step), regardless of owner.
func (e *Engine) Free(step TrailingStep) error {
	b, err := e.graph.Block(step.BlockID)
	if err != nil {
		return err
	}
	b.SetReservation(nil)
	for _, id := range step.TurnoutIDs {
		if to, err := e.graph.Turnout(id); err == nil {
			to.SetReserved("")
		}
	}
	for _, id := range step.TransitionIDs {
		if tr, err := e.graph.Transition(id); err == nil {
			tr.SetReserved("")
		}
	}
	return nil
}

// FreeBetween releases every step's block and crossings up to, but
// excluding, the step whose BlockID equals toBlockIDExclusive. steps is a
// caller-supplied ordered path segment (typically a train's own remembered
// route or trailing chain) — the reservation engine has no notion of "the"
// route between two blocks in a branching graph without one.
func (e *Engine) FreeBetween(steps []TrailingStep, toBlockIDExclusive string) error {
	for _, step := range steps {
		if step.BlockID == toBlockIDExclusive {
			break
		}
		if err := e.Free(step); err != nil {
			return err
		}
	}
	return nil
}

// FreeTrailing walks the train's remembered trailing chain and releases
// blocks/turnouts/transitions from the rearmost end until the number of
// trailing steps remembered falls to or below required.
func (e *Engine) FreeTrailing(trailing []TrailingStep, required int) []TrailingStep {
	for len(trailing) > required {
		oldest := trailing[0]
		_ = e.Free(oldest)
		trailing = trailing[1:]
	}
	return trailing
}
