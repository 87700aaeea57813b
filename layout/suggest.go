// Non-actuating suggestion/advisory engine supplementing the runtime
// controller, on this module's block/turnout/reservation domain.
package layout

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tracktitans/layoutrt/topology"
	"github.com/tracktitans/layoutrt/train"
)

// SuggestionKind categorizes an advisory suggestion the engine proposes
// for the operator to accept or reject; nothing it proposes is ever
// applied automatically.
type SuggestionKind string

const (
	SuggestionResumeStalledTrain  SuggestionKind = "RESUME_STALLED_TRAIN"
	SuggestionRegenerateRoute     SuggestionKind = "REGENERATE_ROUTE"
	SuggestionFreeStaleReservation SuggestionKind = "FREE_STALE_RESERVATION"
)

// SuggestionAction names the operator command the suggestion, if
// accepted, maps onto, so the HTTP/WS surface can dispatch it the same
// way it dispatches any other operator command.
type SuggestionAction struct {
	Object string
	Action string
	TrainID string
}

// Suggestion is one scored, explained recommendation.
type Suggestion struct {
	ID      string
	Kind    SuggestionKind
	Title   string
	Reason  string
	Score   float64
	Actions []SuggestionAction
}

// SuggestionEngine periodically scans every train for conditions an
// operator would want to know about, without ever mutating layout state
// itself.
type SuggestionEngine struct {
	trains func() map[string]*train.Train
	graph  *topology.Graph

	lastComputedAt time.Time
	interval       time.Duration
	rejectedUntil  map[string]time.Time
}

// NewSuggestionEngine builds an engine that reads trains via the given
// accessor (kept as a func, not a stored map, so the engine always sees
// the controller's live set) and scans g for reservations orphaned by a
// train no longer present in that accessor.
func NewSuggestionEngine(trains func() map[string]*train.Train, g *topology.Graph) *SuggestionEngine {
	return &SuggestionEngine{
		trains:        trains,
		graph:         g,
		interval:      3 * time.Minute,
		rejectedUntil: make(map[string]time.Time),
	}
}

// SetInterval overrides the default 3-minute recompute interval.
func (e *SuggestionEngine) SetInterval(d time.Duration) { e.interval = d }

// RejectUntil suppresses a suggestion id from reappearing before until.
func (e *SuggestionEngine) RejectUntil(id string, until time.Time) {
	e.rejectedUntil[id] = until
}

// RecomputeIfDue returns a freshly computed, filtered list on every call;
// the interval only governs when lastComputedAt is advanced, and no result
// is cached between calls.
func (e *SuggestionEngine) RecomputeIfDue(now time.Time) []Suggestion {
	if !e.lastComputedAt.IsZero() && now.Sub(e.lastComputedAt) < e.interval {
		return e.filtered(now)
	}
	e.lastComputedAt = now
	return e.filtered(now)
}

func (e *SuggestionEngine) filtered(now time.Time) []Suggestion {
	all := e.compute()
	out := make([]Suggestion, 0, len(all))
	for _, s := range all {
		if until, ok := e.rejectedUntil[s.ID]; ok && now.Before(until) {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// compute scans every train and proposes advisories: every train stopped
// temporarily (reservation conflict) gets a resume suggestion, without any
// check of the blocking reservation; an automaticRunning train that is
// stopped with no pending stop trigger gets a regeneration suggestion; and any block/turnout/transition
// still reserved for a train id no longer known to the controller (left
// behind when a locomotive is dropped by discovery's replace mode) gets a
// free-reservation suggestion.
func (e *SuggestionEngine) compute() []Suggestion {
	var out []Suggestion
	trains := e.trains()
	for id, t := range trains {
		if t.Stop.Kind == train.StopTriggerStopTemporarily {
			out = append(out, Suggestion{
				ID:     fmt.Sprintf("%s:%s", SuggestionResumeStalledTrain, id),
				Kind:   SuggestionResumeStalledTrain,
				Title:  fmt.Sprintf("Resume %s", t.Name),
				Reason: "train is stopped temporarily pending a reservation conflict",
				Score:  50,
				Actions: []SuggestionAction{{Object: "train", Action: "start", TrainID: id}},
			})
		}
		if t.IsAutomatic() && t.RouteStepIndex >= 0 {
			// A route exhausted with no destination and nowhere left to
			// go is exactly the condition Start's regeneration handles;
			// surfacing it lets an operator nudge a stuck automatic
			// train without waiting for the next feedback event.
			if t.State == train.StateStopped && t.Stop.Kind == train.StopTriggerNone && t.Scheduling == train.SchedulingAutomaticRunning {
				out = append(out, Suggestion{
					ID:     fmt.Sprintf("%s:%s", SuggestionRegenerateRoute, id),
					Kind:   SuggestionRegenerateRoute,
					Title:  fmt.Sprintf("Regenerate route for %s", t.Name),
					Reason: "automatic train is stopped with no pending stop trigger",
					Score:  30,
					Actions: []SuggestionAction{{Object: "train", Action: "start", TrainID: id}},
				})
			}
		}
	}

	if e.graph != nil {
		seen := make(map[string]bool)
		note := func(kind, elementID, ownerID string) {
			if trains[ownerID] != nil || seen[ownerID] {
				return
			}
			seen[ownerID] = true
			out = append(out, Suggestion{
				ID:     fmt.Sprintf("%s:%s", SuggestionFreeStaleReservation, ownerID),
				Kind:   SuggestionFreeStaleReservation,
				Title:  fmt.Sprintf("Free reservations held by %s", ownerID),
				Reason: fmt.Sprintf("%s %q is still reserved for train %q, which no longer exists", kind, elementID, ownerID),
				Score:  70,
			})
		}
		for id, b := range e.graph.Blocks() {
			if r := b.Reservation(); r != nil {
				note("block", id, r.TrainID)
			}
		}
		for id, to := range e.graph.Turnouts() {
			if r := to.Reserved(); r != "" {
				note("turnout", id, r)
			}
		}
		for _, tr := range e.graph.Transitions() {
			if r := tr.Reserved(); r != "" {
				note("transition", tr.ID(), r)
			}
		}
	}

	return out
}

// Accept dispatches the action named by a suggestion id via the given
// operator-command callback. id is kind:trainId, colon-separated.
func (e *SuggestionEngine) Accept(id string, dispatch func(SuggestionAction) error) error {
	parts := strings.SplitN(id, ":", 2)
	if len(parts) != 2 {
		return fmt.Errorf("layout: invalid suggestion id %q", id)
	}
	kind := SuggestionKind(parts[0])
	switch kind {
	case SuggestionResumeStalledTrain, SuggestionRegenerateRoute:
		return dispatch(SuggestionAction{Object: "train", Action: "start", TrainID: parts[1]})
	case SuggestionFreeStaleReservation:
		return dispatch(SuggestionAction{Object: "layout", Action: "freeReservations", TrainID: parts[1]})
	default:
		return fmt.Errorf("layout: unknown suggestion kind %q", kind)
	}
}

// Reject suppresses id for the given number of minutes.
func (e *SuggestionEngine) Reject(id string, minutes int, now time.Time) {
	e.RejectUntil(id, now.Add(time.Duration(minutes)*time.Minute))
}
