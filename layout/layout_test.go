package layout

import (
	"context"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/tracktitans/layoutrt/busif"
	"github.com/tracktitans/layoutrt/reservation"
	"github.com/tracktitans/layoutrt/topology"
	"github.com/tracktitans/layoutrt/train"
)

func buildSingleBlockGraph() *topology.Graph {
	g := topology.NewGraph()
	b := topology.NewBlock("b1", "B1", topology.CategoryFree)
	b.SetFeedbacks([]string{"fb1"})
	g.AddBlock(b)
	g.AddFeedback(topology.NewFeedback("fb1", 1, 1))
	return g
}

func TestDispatchFeedbackRoutesToOccupyingTrain(t *testing.T) {
	Convey("Given a layout controller with one train sitting in b1", t, func() {
		g := buildSingleBlockGraph()
		res := reservation.New(g, nil)
		c := NewController(g, res, nil)

		tr := train.NewTrain("t1", "Loco 1", 3)
		tr.BlockID = "b1"
		tr.Direction = topology.DirNext
		route := &train.Route{ID: "r1", Mode: train.ModeFixed, Steps: []train.Step{{BlockID: "b1", Direction: topology.DirNext}}}
		tc := train.NewController(tr, route, g, res, nil)
		c.AddTrain(tc)

		Convey("A feedback event for fb1 is routed without touching other trains", func() {
			So(func() { c.handleBusEvent(busif.Event{Kind: busif.EventFeedback, DeviceID: "1", ContactID: 1, Detected: true}) }, ShouldNotPanic)
			So(tr.BlockID, ShouldEqual, "b1")
		})

		Convey("A feedback event from an unknown contact is dropped, not routed", func() {
			So(func() { c.handleBusEvent(busif.Event{Kind: busif.EventFeedback, DeviceID: "9", ContactID: 9, Detected: true}) }, ShouldNotPanic)
		})
	})
}

func TestStartEnqueuesSchedulingChanged(t *testing.T) {
	Convey("Given a registered train controller", t, func() {
		g := buildSingleBlockGraph()
		res := reservation.New(g, nil)
		c := NewController(g, res, nil)

		tr := train.NewTrain("t1", "Loco 1", 3)
		tr.BlockID = "b1"
		route := &train.Route{ID: "r1", Mode: train.ModeFixed, Steps: []train.Step{{BlockID: "b1", Direction: topology.DirNext}}}
		tc := train.NewController(tr, route, g, res, nil)
		c.AddTrain(tc)

		Convey("Start returns an error for an unknown train and nil for a known one", func() {
			So(c.Start("ghost"), ShouldNotBeNil)
			So(c.Start("t1"), ShouldBeNil)
		})
	})
}

func TestRunStopsOnContextCancel(t *testing.T) {
	Convey("Given a layout controller with no bus", t, func() {
		g := buildSingleBlockGraph()
		res := reservation.New(g, nil)
		c := NewController(g, res, nil)

		Convey("Run returns once the context is cancelled", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			err := c.Run(ctx)
			So(err, ShouldNotBeNil)
		})
	})
}

// fakeBus is a no-op busif.CommandInterface that records the last
// command it was asked to Execute, used to verify DiscoverLocomotives
// issues the right query without needing a real adapter.
type fakeBus struct {
	lastCommand busif.Command
}

func (b *fakeBus) Connect() error         { return nil }
func (b *fakeBus) Disconnect() error      { return nil }
func (b *fakeBus) Register(busif.Callback) {}
func (b *fakeBus) Execute(cmd busif.Command) error {
	b.lastCommand = cmd
	return nil
}

func TestDiscoverLocomotivesQueriesBusAndMergesResults(t *testing.T) {
	Convey("Given a layout controller with a fake bus and no trains", t, func() {
		g := buildSingleBlockGraph()
		res := reservation.New(g, nil)
		bus := &fakeBus{}
		c := NewController(g, res, bus)

		Convey("DiscoverLocomotives sends a query and rejects an unknown mode", func() {
			So(c.DiscoverLocomotives("merge"), ShouldBeNil)
			So(bus.lastCommand, ShouldResemble, busif.QueryLocomotivesCommand{})
			So(c.DiscoverLocomotives("overwrite"), ShouldNotBeNil)
		})

		Convey("a discovered-locomotives event mints a train per unseen address", func() {
			So(c.DiscoverLocomotives("merge"), ShouldBeNil)
			c.handleBusEvent(busif.Event{Kind: busif.EventLocomotivesDiscovered, Addresses: []int{3, 11}})
			trains := c.Trains()
			So(trains, ShouldContainKey, "loco-3")
			So(trains, ShouldContainKey, "loco-11")
			So(trains["loco-11"].LocoAddress, ShouldEqual, 11)
		})
	})
}

func TestSuggestionEngineProposesResumeForStalledTrain(t *testing.T) {
	Convey("Given a train stopped temporarily", t, func() {
		g := buildSingleBlockGraph()
		res := reservation.New(g, nil)
		c := NewController(g, res, nil)

		tr := train.NewTrain("t1", "Loco 1", 3)
		tr.BlockID = "b1"
		tr.Scheduling = train.SchedulingAutomaticRunning
		tr.Stop = train.StopTrigger{Kind: train.StopTriggerStopTemporarily}
		route := &train.Route{ID: "r1", Mode: train.ModeFixed, Steps: []train.Step{{BlockID: "b1", Direction: topology.DirNext}}}
		tc := train.NewController(tr, route, g, res, nil)
		c.AddTrain(tc)

		Convey("RecomputeIfDue surfaces a resume suggestion", func() {
			suggestions := c.Suggestions.RecomputeIfDue(time.Now())
			found := false
			for _, s := range suggestions {
				if s.Kind == SuggestionResumeStalledTrain {
					found = true
				}
			}
			So(found, ShouldBeTrue)
		})
	})
}

func TestSuggestionEngineFlagsReservationOrphanedByRemovedTrain(t *testing.T) {
	Convey("Given a block reserved by a train id the controller no longer knows", t, func() {
		g := buildSingleBlockGraph()
		res := reservation.New(g, nil)
		c := NewController(g, res, nil)

		b1, _ := g.Block("b1")
		b1.SetReservation(&topology.Reservation{TrainID: "ghost"})

		Convey("RecomputeIfDue surfaces a free-reservation suggestion for it", func() {
			suggestions := c.Suggestions.RecomputeIfDue(time.Now())
			var found *Suggestion
			for i := range suggestions {
				if suggestions[i].Kind == SuggestionFreeStaleReservation {
					found = &suggestions[i]
				}
			}
			So(found, ShouldNotBeNil)

			Convey("AcceptSuggestion clears the orphaned reservation", func() {
				So(c.AcceptSuggestion(found.ID), ShouldBeNil)
				So(b1.Reservation(), ShouldBeNil)
			})
		})
	})
}
