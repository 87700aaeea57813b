package train

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/tracktitans/layoutrt/reservation"
	"github.com/tracktitans/layoutrt/topology"
)

// buildLine builds s1(station, 1 feedback) -> b1(free, 1 feedback) ->
// s2(station, 1 feedback), loosely modeling scenario S1's approach-and-stop
// leg. Each station's single feedback doubles as its stop feedback for
// travel in the next direction; b1 has no stop feedback.
func buildLine() (*topology.Graph, *reservation.Engine) {
	g := topology.NewGraph()

	s1 := topology.NewBlock("s1", "s1", topology.CategoryStation)
	s1.SetFeedbacks([]string{"fb-s1"})
	s1.SetStopFeedbackIndex(topology.DirNext, 0)
	g.AddBlock(s1)

	b1 := topology.NewBlock("b1", "b1", topology.CategoryFree)
	b1.SetFeedbacks([]string{"fb-b1"})
	g.AddBlock(b1)

	s2 := topology.NewBlock("s2", "s2", topology.CategoryStation)
	s2.SetFeedbacks([]string{"fb-s2"})
	s2.SetStopFeedbackIndex(topology.DirNext, 0)
	g.AddBlock(s2)

	g.AddTransition(topology.NewTransition("tr1", topology.BlockSocket("s1", 1), topology.BlockSocket("b1", 0)))
	g.AddTransition(topology.NewTransition("tr2", topology.BlockSocket("b1", 1), topology.BlockSocket("s2", 0)))

	return g, reservation.New(g, nil)
}

func newTestController(g *topology.Graph, res *reservation.Engine) *Controller {
	tr := NewTrain("t1", "Train 1", 3)
	tr.BlockID = "s1"
	tr.Direction = topology.DirNext
	tr.Scheduling = SchedulingAutomaticRunning
	tr.Speed.Running = 40
	tr.MaxLeadingReservedBlocks = 2

	route := &Route{
		ID:   "r1",
		Mode: ModeAutomaticOnce,
		Steps: []Step{
			{BlockID: "s1", Direction: topology.DirNext},
			{BlockID: "b1", Direction: topology.DirNext},
			{BlockID: "s2", Direction: topology.DirNext},
		},
		Destination: &Step{BlockID: "s2", Direction: topology.DirNext},
	}
	tr.RouteID = route.ID

	return NewController(tr, route, g, res, nil)
}

func TestStartReservesLeadingBlocksAndCommandsRunning(t *testing.T) {
	Convey("Given a train at rest in a station with an automatic route", t, func() {
		g, res := buildLine()
		c := newTestController(g, res)

		Convey("schedulingChanged starts the train", func() {
			c.Dispatch(Event{Kind: EventSchedulingChanged})
			So(c.Train.State, ShouldEqual, StateRunning)
			So(c.Train.Speed.Requested, ShouldEqual, float64(40))

			b1, _ := g.Block("b1")
			So(b1.ReservedBy(), ShouldEqual, "t1")
		})
	})
}

func TestMoveToNextBlockAdvancesRouteAndReassignsTrain(t *testing.T) {
	Convey("Given a running train about to cross into b1", t, func() {
		g, res := buildLine()
		c := newTestController(g, res)
		c.Dispatch(Event{Kind: EventSchedulingChanged})

		Convey("the b1 entry feedback moves the train across the transition", func() {
			out := c.Dispatch
			out(Event{Kind: EventFeedbackTriggered, FeedbackID: "fb-b1", Detected: true})

			So(c.Train.BlockID, ShouldEqual, "b1")
			So(c.Train.RouteStepIndex, ShouldEqual, 1)

			b1, _ := g.Block("b1")
			So(b1.TrainInstance(), ShouldNotBeNil)
			So(b1.TrainInstance().TrainID, ShouldEqual, "t1")
		})
	})
}

func TestStartStaysStoppedWhenLeadingBlockReserved(t *testing.T) {
	Convey("Given b1 already reserved by another train", t, func() {
		g, res := buildLine()
		b1, _ := g.Block("b1")
		b1.SetReservation(&topology.Reservation{TrainID: "other"})
		c := newTestController(g, res)

		Convey("schedulingChanged fails to reserve and does not start", func() {
			c.Dispatch(Event{Kind: EventSchedulingChanged})
			So(c.Train.State, ShouldEqual, StateStopped)
		})
	})
}
