package document

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tracktitans/layoutrt/topology"
)

func sampleDocument() *Document {
	return &Document{
		Blocks: []BlockDoc{
			{
				ID: "b1", Name: "Platform 1", Category: "station", Enabled: true,
				Length: 120, Feedbacks: []string{"fb1", "fb2"},
				FeedbackDistances: []float64{10, 110},
				BrakeFeedback:     map[string]int{"next": 0},
				StopFeedback:      map[string]int{"next": 1},
				WaitingTimeSec:    45,
			},
			{ID: "b2", Name: "Siding", Category: "sidingNext", Enabled: true},
		},
		Turnouts: []TurnoutDoc{
			{ID: "t1", Category: "singleLeft", Addresses: []int{5}},
		},
		Feedbacks: []FeedbackDoc{
			{ID: "fb1", DeviceID: 1, ContactID: 1},
			{ID: "fb2", DeviceID: 1, ContactID: 2},
		},
		Transitions: []TransitionDoc{
			{ID: "tr1", A: SocketDoc{Kind: "block", ElementID: "b1", Socket: 1}, B: SocketDoc{Kind: "turnout", ElementID: "t1", Socket: 0}},
		},
		Trains: []TrainDoc{
			{
				ID: "train1", Name: "Loco 1", LocoAddress: 3, DecoderFamily: "mfx",
				BodyForward: true, BlockID: "b1", Direction: "next", Position: 0,
				RouteID: "r1", Scheduling: "manual", State: "stopped", StopKind: "none",
				MaxLeadingReservedBlocks: 2, TrailingLength: 30,
				SpeedMax: 80, SpeedRunning: 50, SpeedBraking: 15,
			},
		},
		Routes: []RouteDoc{
			{
				ID: "r1", Mode: "fixed", Enabled: true,
				Steps: []StepDoc{{BlockID: "b1", Direction: "next"}, {BlockID: "b2", Direction: "next", WaitingTime: 30}},
			},
		},
		Geometry: map[string]Point{"b1": {X: 10, Y: 20}},
	}
}

func TestRoundTripPreservesModelData(t *testing.T) {
	doc := sampleDocument()

	g, trains, routes, err := Build(doc)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	dumped := Dump(g, trains, routes, doc.Geometry, doc.Scripts)

	sortDocument(doc)
	sortDocument(dumped)

	if diff := cmp.Diff(doc, dumped); diff != "" {
		t.Fatalf("round trip lost or altered model data (-want +got):\n%s", diff)
	}
}

func TestApplyStartupPolicyClearsUntrustedState(t *testing.T) {
	doc := sampleDocument()
	g, trains, _, err := Build(doc)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	b1, err := g.Block("b1")
	if err != nil {
		t.Fatalf("Block: %v", err)
	}
	b1.SetTrainInstance(&topology.TrainInstance{TrainID: "train1", Direction: topology.DirNext})
	b1.SetReservation(&topology.Reservation{TrainID: "train1"})

	ApplyStartupPolicy(g, trains)

	if b1.TrainInstance() != nil {
		t.Fatalf("expected occupancy cleared, got %+v", b1.TrainInstance())
	}
	if b1.Reservation() != nil {
		t.Fatalf("expected reservation cleared, got %+v", b1.Reservation())
	}
	tr := trains["train1"]
	if tr.BlockID != "" || tr.Position != 0 {
		t.Fatalf("expected train position/assignment cleared, got block=%q position=%d", tr.BlockID, tr.Position)
	}
	if tr.Speed.Max != 80 {
		t.Fatalf("expected configured max speed to survive the startup policy, got %v", tr.Speed.Max)
	}
	if tr.Speed.Current != 0 {
		t.Fatalf("expected current speed to reset to 0 on load/startup, got %v", tr.Speed.Current)
	}
}

// sortDocument orders every slice field by id so cmp.Diff compares content,
// not map-iteration order — Build/Dump round-trip through Go maps keyed by
// id.
func sortDocument(doc *Document) {
	sort.Slice(doc.Blocks, func(i, j int) bool { return doc.Blocks[i].ID < doc.Blocks[j].ID })
	sort.Slice(doc.Turnouts, func(i, j int) bool { return doc.Turnouts[i].ID < doc.Turnouts[j].ID })
	sort.Slice(doc.Feedbacks, func(i, j int) bool { return doc.Feedbacks[i].ID < doc.Feedbacks[j].ID })
	sort.Slice(doc.Transitions, func(i, j int) bool { return doc.Transitions[i].ID < doc.Transitions[j].ID })
	sort.Slice(doc.Trains, func(i, j int) bool { return doc.Trains[i].ID < doc.Trains[j].ID })
	sort.Slice(doc.Routes, func(i, j int) bool { return doc.Routes[i].ID < doc.Routes[j].ID })
}
