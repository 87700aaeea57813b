// Package document implements the JSON persistence layer: a single
// structured file capturing every layout element, trains, routes, display
// geometry and the opaque scripts collection, loaded/saved with a lossless
// round-trip for all model data.
package document

import (
	"encoding/json"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/tracktitans/layoutrt/topology"
	"github.com/tracktitans/layoutrt/train"
)

// Point is a display-geometry coordinate, keyed by element id in
// Document.Geometry. The runtime never reads these; they exist purely so
// a round-trip through this package does not lose switchboard layout.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// SocketDoc is the wire form of a topology.Socket.
type SocketDoc struct {
	Kind      string `json:"kind"`
	ElementID string `json:"elementId"`
	Socket    int    `json:"socket"`
}

// BlockDoc is the wire form of a topology.Block.
type BlockDoc struct {
	ID                string         `json:"id"`
	Name              string         `json:"name"`
	Category          string         `json:"category"`
	Enabled           bool           `json:"enabled"`
	Length            float64        `json:"length,omitempty"`
	Feedbacks         []string       `json:"feedbacks,omitempty"`
	FeedbackDistances []float64      `json:"feedbackDistances,omitempty"`
	BrakeFeedback     map[string]int `json:"brakeFeedback,omitempty"`
	StopFeedback      map[string]int `json:"stopFeedback,omitempty"`
	WaitingTimeSec    int            `json:"waitingTimeSeconds,omitempty"`
}

// TurnoutDoc is the wire form of a topology.Turnout.
type TurnoutDoc struct {
	ID        string `json:"id"`
	Category  string `json:"category"`
	Addresses []int  `json:"addresses"`
	Length    float64 `json:"length,omitempty"`
}

// FeedbackDoc is the wire form of a topology.Feedback.
type FeedbackDoc struct {
	ID        string `json:"id"`
	DeviceID  int    `json:"deviceId"`
	ContactID int    `json:"contactId"`
}

// TransitionDoc is the wire form of a topology.Transition.
type TransitionDoc struct {
	ID string    `json:"id"`
	A  SocketDoc `json:"a"`
	B  SocketDoc `json:"b"`
}

// StepDoc is the wire form of a train.Step.
type StepDoc struct {
	BlockID     string `json:"blockId"`
	Direction   string `json:"direction"`
	WaitingTime int    `json:"waitingTime,omitempty"`
}

// RouteDoc is the wire form of a train.Route.
type RouteDoc struct {
	ID          string    `json:"id"`
	Mode        string    `json:"mode"`
	Enabled     bool      `json:"enabled"`
	Steps       []StepDoc `json:"steps"`
	Destination *StepDoc  `json:"destination,omitempty"`
}

// TrainDoc is the wire form of a train.Train. Current/requested speed are
// deliberately not persisted: on load they always start at 0, since an
// unsupervised locomotive should never resume moving on its own.
type TrainDoc struct {
	ID                       string  `json:"id"`
	Name                     string  `json:"name"`
	LocoAddress              int     `json:"locoAddress"`
	DecoderFamily            string  `json:"decoderFamily,omitempty"`
	BodyForward              bool    `json:"bodyForward"`
	BlockID                  string  `json:"blockId,omitempty"`
	Direction                string  `json:"direction,omitempty"`
	Position                 int     `json:"position"`
	RouteID                  string  `json:"routeId,omitempty"`
	RouteStepIndex           int     `json:"routeStepIndex"`
	StartRouteIndex          int     `json:"startRouteIndex"`
	Scheduling               string  `json:"scheduling"`
	State                    string  `json:"state"`
	StopKind                 string  `json:"stopKind,omitempty"`
	StopDelaySeconds         int     `json:"stopDelaySeconds,omitempty"`
	MaxLeadingReservedBlocks int     `json:"maxLeadingReservedBlocks"`
	TrailingLength           float64 `json:"trailingLength,omitempty"`
	RequiredTrailingSteps    int     `json:"requiredTrailingSteps,omitempty"`
	SpeedMax                 float64 `json:"speedMax,omitempty"`
	SpeedRunning             float64 `json:"speedRunning,omitempty"`
	SpeedBraking             float64 `json:"speedBraking,omitempty"`
}

// Document is the complete JSON-serializable layout, per the persistence
// contract.
type Document struct {
	Blocks      []BlockDoc        `json:"blocks"`
	Turnouts    []TurnoutDoc      `json:"turnouts"`
	Feedbacks   []FeedbackDoc     `json:"feedbacks"`
	Transitions []TransitionDoc   `json:"transitions"`
	Trains      []TrainDoc        `json:"trains"`
	Routes      []RouteDoc        `json:"routes"`
	Geometry    map[string]Point  `json:"geometry,omitempty"`
	Scripts     []json.RawMessage `json:"scripts,omitempty"`
}

// Load reads and decodes a Document from path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "document: read %q", path)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "document: decode %q", path)
	}
	mintMissingIDs(&doc)
	return &doc, nil
}

// Save encodes doc as indented JSON and writes it to path.
func Save(path string, doc *Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrap(err, "document: encode")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "document: write %q", path)
	}
	return nil
}

// mintMissingIDs assigns a stable UUID to any element loaded without an
// explicit id.
func mintMissingIDs(doc *Document) {
	for i := range doc.Blocks {
		if doc.Blocks[i].ID == "" {
			doc.Blocks[i].ID = uuid.NewString()
		}
	}
	for i := range doc.Turnouts {
		if doc.Turnouts[i].ID == "" {
			doc.Turnouts[i].ID = uuid.NewString()
		}
	}
	for i := range doc.Feedbacks {
		if doc.Feedbacks[i].ID == "" {
			doc.Feedbacks[i].ID = uuid.NewString()
		}
	}
	for i := range doc.Transitions {
		if doc.Transitions[i].ID == "" {
			doc.Transitions[i].ID = uuid.NewString()
		}
	}
	for i := range doc.Trains {
		if doc.Trains[i].ID == "" {
			doc.Trains[i].ID = uuid.NewString()
		}
	}
	for i := range doc.Routes {
		if doc.Routes[i].ID == "" {
			doc.Routes[i].ID = uuid.NewString()
		}
	}
}

// Build materializes a topology.Graph, a train map and a route map from a
// decoded Document.
func Build(doc *Document) (*topology.Graph, map[string]*train.Train, map[string]*train.Route, error) {
	g := topology.NewGraph()

	for _, bd := range doc.Blocks {
		b := topology.NewBlock(bd.ID, bd.Name, topology.BlockCategory(bd.Category))
		b.SetEnabled(bd.Enabled)
		b.SetLength(bd.Length)
		b.SetFeedbacks(bd.Feedbacks)
		if len(bd.FeedbackDistances) > 0 {
			b.SetFeedbackDistances(bd.FeedbackDistances)
		}
		for dirName, idx := range bd.BrakeFeedback {
			b.SetBrakeFeedbackIndex(topology.Direction(dirName), idx)
		}
		for dirName, idx := range bd.StopFeedback {
			b.SetStopFeedbackIndex(topology.Direction(dirName), idx)
		}
		if bd.WaitingTimeSec > 0 {
			b.SetWaitingTime(secondsToDuration(bd.WaitingTimeSec))
		}
		g.AddBlock(b)
	}

	for _, td := range doc.Turnouts {
		to := topology.NewTurnout(td.ID, topology.TurnoutCategory(td.Category), td.Addresses)
		to.SetLength(td.Length)
		g.AddTurnout(to)
	}

	for _, fd := range doc.Feedbacks {
		g.AddFeedback(topology.NewFeedback(fd.ID, fd.DeviceID, fd.ContactID))
	}

	for _, trd := range doc.Transitions {
		g.AddTransition(topology.NewTransition(trd.ID, socketFromDoc(trd.A), socketFromDoc(trd.B)))
	}

	trains := make(map[string]*train.Train, len(doc.Trains))
	for _, tdoc := range doc.Trains {
		t := train.NewTrain(tdoc.ID, tdoc.Name, tdoc.LocoAddress)
		t.DecoderFamily = tdoc.DecoderFamily
		t.BodyForward = tdoc.BodyForward
		t.RouteID = tdoc.RouteID
		t.MaxLeadingReservedBlocks = tdoc.MaxLeadingReservedBlocks
		t.TrailingLength = tdoc.TrailingLength
		t.RequiredTrailingSteps = tdoc.RequiredTrailingSteps
		t.Speed.Max = tdoc.SpeedMax
		t.Speed.Running = tdoc.SpeedRunning
		t.Speed.Braking = tdoc.SpeedBraking
		if tdoc.Scheduling != "" {
			t.Scheduling = train.Scheduling(tdoc.Scheduling)
		}
		if tdoc.State != "" {
			t.State = train.State(tdoc.State)
		}
		if tdoc.StopKind != "" {
			t.Stop = train.StopTrigger{Kind: train.StopTriggerKind(tdoc.StopKind), Delay: secondsToDuration(tdoc.StopDelaySeconds)}
		}
		// BlockID/Direction/Position/RouteStepIndex/StartRouteIndex are
		// loaded here so the document remains lossless for display and
		// offline inspection purposes, but ApplyStartupPolicy clears them
		// again before the runtime trusts any of it.
		t.BlockID = tdoc.BlockID
		if tdoc.Direction != "" {
			t.Direction = topology.Direction(tdoc.Direction)
		}
		t.Position = tdoc.Position
		t.RouteStepIndex = tdoc.RouteStepIndex
		t.StartRouteIndex = tdoc.StartRouteIndex
		trains[t.ID] = t
	}

	routes := make(map[string]*train.Route, len(doc.Routes))
	for _, rd := range doc.Routes {
		steps := make([]train.Step, len(rd.Steps))
		for i, sd := range rd.Steps {
			steps[i] = train.Step{BlockID: sd.BlockID, Direction: topology.Direction(sd.Direction), WaitingTime: sd.WaitingTime}
		}
		r := &train.Route{ID: rd.ID, Mode: train.Mode(rd.Mode), Enabled: rd.Enabled, Steps: steps}
		if rd.Destination != nil {
			r.Destination = &train.Step{BlockID: rd.Destination.BlockID, Direction: topology.Direction(rd.Destination.Direction), WaitingTime: rd.Destination.WaitingTime}
		}
		routes[r.ID] = r
	}

	return g, trains, routes, nil
}

// Dump serializes a graph/trains/routes triple back into a Document,
// preserving any geometry/scripts passed through from the document that
// was originally loaded (callers that build a graph from scratch pass nil
// for both).
func Dump(g *topology.Graph, trains map[string]*train.Train, routes map[string]*train.Route, geometry map[string]Point, scripts []json.RawMessage) *Document {
	doc := &Document{Geometry: geometry, Scripts: scripts}

	for _, b := range g.Blocks() {
		bd := BlockDoc{
			ID:             b.ID(),
			Name:           b.Name(),
			Category:       string(b.Category()),
			Enabled:        b.Enabled(),
			Length:         b.Length(),
			Feedbacks:      b.Feedbacks(),
			WaitingTimeSec: int(b.WaitingTime().Seconds()),
		}
		if b.HasFeedbackDistances() {
			dists := make([]float64, b.FeedbackCount())
			for i := range dists {
				dists[i] = b.FeedbackDistance(i)
			}
			bd.FeedbackDistances = dists
		}
		brake := map[string]int{}
		stop := map[string]int{}
		for _, d := range []topology.Direction{topology.DirPrevious, topology.DirNext} {
			if idx := b.BrakeFeedbackIndex(d); idx >= 0 {
				brake[string(d)] = idx
			}
			if idx := b.StopFeedbackIndex(d); idx >= 0 {
				stop[string(d)] = idx
			}
		}
		if len(brake) > 0 {
			bd.BrakeFeedback = brake
		}
		if len(stop) > 0 {
			bd.StopFeedback = stop
		}
		doc.Blocks = append(doc.Blocks, bd)
	}

	for _, to := range g.Turnouts() {
		doc.Turnouts = append(doc.Turnouts, TurnoutDoc{
			ID:        to.ID(),
			Category:  string(to.Category()),
			Addresses: to.Addresses(),
			Length:    to.Length(),
		})
	}

	for _, f := range g.Feedbacks() {
		doc.Feedbacks = append(doc.Feedbacks, FeedbackDoc{ID: f.ID(), DeviceID: f.DeviceID(), ContactID: f.ContactID()})
	}

	for _, t := range g.Transitions() {
		doc.Transitions = append(doc.Transitions, TransitionDoc{ID: t.ID(), A: socketToDoc(t.A()), B: socketToDoc(t.B())})
	}

	for _, t := range trains {
		td := TrainDoc{
			ID:                       t.ID,
			Name:                     t.Name,
			LocoAddress:              t.LocoAddress,
			DecoderFamily:            t.DecoderFamily,
			BodyForward:              t.BodyForward,
			BlockID:                  t.BlockID,
			Direction:                string(t.Direction),
			Position:                 t.Position,
			RouteID:                  t.RouteID,
			RouteStepIndex:           t.RouteStepIndex,
			StartRouteIndex:          t.StartRouteIndex,
			Scheduling:               string(t.Scheduling),
			State:                    string(t.State),
			StopKind:                 string(t.Stop.Kind),
			StopDelaySeconds:         int(t.Stop.Delay.Seconds()),
			MaxLeadingReservedBlocks: t.MaxLeadingReservedBlocks,
			TrailingLength:           t.TrailingLength,
			RequiredTrailingSteps:    t.RequiredTrailingSteps,
			SpeedMax:                 t.Speed.Max,
			SpeedRunning:             t.Speed.Running,
			SpeedBraking:             t.Speed.Braking,
		}
		doc.Trains = append(doc.Trains, td)
	}

	for _, r := range routes {
		steps := make([]StepDoc, len(r.Steps))
		for i, s := range r.Steps {
			steps[i] = StepDoc{BlockID: s.BlockID, Direction: string(s.Direction), WaitingTime: s.WaitingTime}
		}
		rd := RouteDoc{ID: r.ID, Mode: string(r.Mode), Enabled: r.Enabled, Steps: steps}
		if r.Destination != nil {
			rd.Destination = &StepDoc{BlockID: r.Destination.BlockID, Direction: string(r.Destination.Direction), WaitingTime: r.Destination.WaitingTime}
		}
		doc.Routes = append(doc.Routes, rd)
	}

	return doc
}

// ApplyStartupPolicy implements the "positions and reservations are not
// trusted at startup": it clears every reservation, occupancy marker, and
// train position/block assignment, forcing the operator to reconfirm
// where each train physically sits before anything can be started.
func ApplyStartupPolicy(g *topology.Graph, trains map[string]*train.Train) {
	for _, b := range g.Blocks() {
		b.SetReservation(nil)
		b.SetTrainInstance(nil)
	}
	for _, to := range g.Turnouts() {
		to.SetReserved("")
	}
	for _, tr := range g.Transitions() {
		tr.SetReserved("")
	}
	for _, t := range trains {
		t.BlockID = ""
		t.Position = 0
		t.RouteStepIndex = 0
		t.StartRouteIndex = 0
		t.TrailingSteps = nil
		t.Scheduling = train.SchedulingManual
		t.State = train.StateStopped
		t.Stop = train.StopTrigger{Kind: train.StopTriggerNone}
		t.SetRestartArmed(false)
		t.Speed = train.Speed{Max: t.Speed.Max, Running: t.Speed.Running, Braking: t.Speed.Braking}
	}
}

func socketFromDoc(s SocketDoc) topology.Socket {
	if s.Kind == string(topology.KindTurnout) {
		return topology.TurnoutSocket(s.ElementID, s.Socket)
	}
	return topology.BlockSocket(s.ElementID, s.Socket)
}

func socketToDoc(s topology.Socket) SocketDoc {
	return SocketDoc{Kind: string(s.Element.Kind), ElementID: s.Element.ID, Socket: s.Socket}
}

func secondsToDuration(s int) time.Duration { return time.Duration(s) * time.Second }

