// Package diagnostics implements the pure-query inspector: it
// enumerates structural problems in a topology graph and a set of trains,
// and offers a conservative repair pass for the trivially-fixable ones.
package diagnostics

import (
	"fmt"
	"sort"

	log "gopkg.in/inconshreveable/log15.v2"

	"github.com/tracktitans/layoutrt/topology"
	"github.com/tracktitans/layoutrt/train"
)

var logger log.Logger

// InitializeLogger wires the package logger, following the ambient
// convention used across this module.
func InitializeLogger(parent log.Logger) { logger = parent.New("module", "diagnostics") }

// FindingKind enumerates the categories of problem Diagnose reports.
type FindingKind string

const (
	FindingDuplicateID        FindingKind = "duplicateId"
	FindingDuplicateName      FindingKind = "duplicateName"
	FindingDuplicateAddress   FindingKind = "duplicateAddress"
	FindingOrphanSocket       FindingKind = "orphanSocket"
	FindingInvalidTransition  FindingKind = "invalidTransition"
	FindingMissingLength      FindingKind = "missingLength"
	FindingMissingDistances   FindingKind = "missingFeedbackDistances"
	FindingMissingTrainLength FindingKind = "missingTrainLength"
	FindingDanglingTrainRef   FindingKind = "danglingTrainReference"
	FindingSelfLoop           FindingKind = "selfLoopTransition"
)

// Finding is one reported problem: a kind, the element it concerns, and a
// human-readable message.
type Finding struct {
	Kind      FindingKind
	ElementID string
	Message   string
}

// Options tunes which checks run; by default only structural checks
// (duplicates, orphans, invalid transitions, dangling refs) run. Setting
// RequireLengths also flags missing lengths/feedback distances, for
// layouts where length-aware features (train-length trailing windows,
// speed profiles) are enabled.
type Options struct {
	RequireLengths bool
}

// Diagnose runs every check against g and trains, returning findings
// sorted by kind then element id for stable output.
func Diagnose(g *topology.Graph, trains map[string]*train.Train, opts Options) []Finding {
	var findings []Finding

	findings = append(findings, checkDuplicateIDs(g)...)
	findings = append(findings, checkDuplicateNames(g)...)
	findings = append(findings, checkDuplicateAddresses(g)...)
	findings = append(findings, checkOrphanSockets(g)...)
	findings = append(findings, checkInvalidTransitions(g)...)
	findings = append(findings, checkDanglingTrainReferences(g, trains)...)
	if opts.RequireLengths {
		findings = append(findings, checkMissingLengths(g)...)
		findings = append(findings, checkMissingTrainLengths(trains)...)
	}

	sort.Slice(findings, func(i, j int) bool {
		if findings[i].Kind != findings[j].Kind {
			return findings[i].Kind < findings[j].Kind
		}
		return findings[i].ElementID < findings[j].ElementID
	})

	if logger != nil {
		logger.Info("diagnose complete", "findings", len(findings))
	}
	return findings
}

func checkDuplicateIDs(g *topology.Graph) []Finding {
	seen := map[string]int{}
	for id := range g.Blocks() {
		seen[id]++
	}
	for id := range g.Turnouts() {
		seen[id]++
	}
	for id := range g.Feedbacks() {
		seen[id]++
	}
	var findings []Finding
	for id, count := range seen {
		if count > 1 {
			findings = append(findings, Finding{Kind: FindingDuplicateID, ElementID: id,
				Message: fmt.Sprintf("id %q used by %d elements across block/turnout/feedback namespaces", id, count)})
		}
	}
	return findings
}

func checkDuplicateNames(g *topology.Graph) []Finding {
	byName := map[string][]string{}
	for id, b := range g.Blocks() {
		byName[b.Name()] = append(byName[b.Name()], id)
	}
	var findings []Finding
	for name, ids := range byName {
		if len(ids) > 1 {
			sort.Strings(ids)
			findings = append(findings, Finding{Kind: FindingDuplicateName, ElementID: ids[0],
				Message: fmt.Sprintf("block name %q shared by %v", name, ids)})
		}
	}
	return findings
}

func checkDuplicateAddresses(g *topology.Graph) []Finding {
	byAddr := map[int][]string{}
	for id, to := range g.Turnouts() {
		for _, addr := range to.Addresses() {
			byAddr[addr] = append(byAddr[addr], id)
		}
	}
	var findings []Finding
	for addr, ids := range byAddr {
		if len(ids) > 1 {
			sort.Strings(ids)
			findings = append(findings, Finding{Kind: FindingDuplicateAddress, ElementID: ids[0],
				Message: fmt.Sprintf("bus address %d shared by turnouts %v", addr, ids)})
		}
	}
	return findings
}

// checkOrphanSockets flags any block/turnout socket with no transition
// attached to it at all.
func checkOrphanSockets(g *topology.Graph) []Finding {
	var findings []Finding
	for id, b := range g.Blocks() {
		for _, s := range b.Sockets() {
			socket := topology.BlockSocket(id, s)
			if len(g.TransitionsFrom(socket)) == 0 {
				findings = append(findings, Finding{Kind: FindingOrphanSocket, ElementID: id,
					Message: fmt.Sprintf("block %q socket %d has no transition attached", id, s)})
			}
		}
	}
	for id, to := range g.Turnouts() {
		for _, s := range to.Sockets() {
			socket := topology.TurnoutSocket(id, s)
			if len(g.TransitionsFrom(socket)) == 0 {
				findings = append(findings, Finding{Kind: FindingOrphanSocket, ElementID: id,
					Message: fmt.Sprintf("turnout %q socket %d has no transition attached", id, s)})
			}
		}
	}
	return findings
}

// checkInvalidTransitions flags transitions whose endpoints reference an
// element that no longer exists, or that loop an element back onto
// itself.
func checkInvalidTransitions(g *topology.Graph) []Finding {
	var findings []Finding
	for _, t := range g.Transitions() {
		a, b := t.A(), t.B()
		if !elementExists(g, a.Element) {
			findings = append(findings, Finding{Kind: FindingInvalidTransition, ElementID: t.ID(),
				Message: fmt.Sprintf("transition %q endpoint a references missing %s %q", t.ID(), a.Element.Kind, a.Element.ID)})
		}
		if !elementExists(g, b.Element) {
			findings = append(findings, Finding{Kind: FindingInvalidTransition, ElementID: t.ID(),
				Message: fmt.Sprintf("transition %q endpoint b references missing %s %q", t.ID(), b.Element.Kind, b.Element.ID)})
		}
		if a.Element == b.Element {
			findings = append(findings, Finding{Kind: FindingSelfLoop, ElementID: t.ID(),
				Message: fmt.Sprintf("transition %q connects %s %q to itself", t.ID(), a.Element.Kind, a.Element.ID)})
		}
	}
	return findings
}

func elementExists(g *topology.Graph, ref topology.ElementRef) bool {
	switch ref.Kind {
	case topology.KindBlock:
		_, err := g.Block(ref.ID)
		return err == nil
	case topology.KindTurnout:
		_, err := g.Turnout(ref.ID)
		return err == nil
	default:
		return false
	}
}

// checkDanglingTrainReferences enforces invariant 1: a block
// claiming a train must be claimed back by that train. The check runs from
// the block side only: a train whose BlockID names a block that does not
// claim it is not reported.
func checkDanglingTrainReferences(g *topology.Graph, trains map[string]*train.Train) []Finding {
	var findings []Finding
	for id, b := range g.Blocks() {
		ti := b.TrainInstance()
		if ti == nil {
			continue
		}
		t, ok := trains[ti.TrainID]
		if !ok {
			findings = append(findings, Finding{Kind: FindingDanglingTrainRef, ElementID: id,
				Message: fmt.Sprintf("block %q claims unknown train %q", id, ti.TrainID)})
			continue
		}
		if t.BlockID != id {
			findings = append(findings, Finding{Kind: FindingDanglingTrainRef, ElementID: id,
				Message: fmt.Sprintf("block %q claims train %q but train reports block %q", id, t.ID, t.BlockID)})
		}
	}
	return findings
}

func checkMissingLengths(g *topology.Graph) []Finding {
	var findings []Finding
	for id, b := range g.Blocks() {
		if b.Length() <= 0 {
			findings = append(findings, Finding{Kind: FindingMissingLength, ElementID: id,
				Message: fmt.Sprintf("block %q has no configured length", id)})
		}
		if len(b.Feedbacks()) > 0 && !b.HasFeedbackDistances() {
			findings = append(findings, Finding{Kind: FindingMissingDistances, ElementID: id,
				Message: fmt.Sprintf("block %q is missing per-feedback distances", id)})
		}
	}
	return findings
}

func checkMissingTrainLengths(trains map[string]*train.Train) []Finding {
	var findings []Finding
	for id, t := range trains {
		if t.TrailingLength <= 0 {
			findings = append(findings, Finding{Kind: FindingMissingTrainLength, ElementID: id,
				Message: fmt.Sprintf("train %q has no configured length", id)})
		}
	}
	return findings
}

// Repair removes trivially invalid state: self-loop transitions and
// dangling train references (a block's train instance pointing at a train
// that no longer exists, or whose own blockId disagrees). It does not
// attempt to fix orphan sockets, duplicate ids, or missing lengths — those
// require operator judgement, not mechanical removal.
func Repair(g *topology.Graph, trains map[string]*train.Train) []Finding {
	var repaired []Finding
	for _, t := range append([]*topology.Transition(nil), g.Transitions()...) {
		a, b := t.A(), t.B()
		if a.Element == b.Element {
			g.RemoveTransition(t.ID())
			repaired = append(repaired, Finding{Kind: FindingSelfLoop, ElementID: t.ID(),
				Message: fmt.Sprintf("removed self-loop transition %q on %s %q", t.ID(), a.Element.Kind, a.Element.ID)})
		}
	}
	for _, b := range g.Blocks() {
		ti := b.TrainInstance()
		if ti == nil {
			continue
		}
		t, ok := trains[ti.TrainID]
		if !ok || t.BlockID != b.ID() {
			b.SetTrainInstance(nil)
			repaired = append(repaired, Finding{Kind: FindingDanglingTrainRef, ElementID: b.ID(),
				Message: fmt.Sprintf("cleared dangling train reference on block %q", b.ID())})
		}
	}
	if logger != nil {
		logger.Info("repair complete", "repaired", len(repaired))
	}
	return repaired
}
