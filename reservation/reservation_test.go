package reservation

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/tracktitans/layoutrt/topology"
)

// buildThroughTurnout builds A --T1-- B, where T1 is a singleLeft turnout
// on the single transition between them, for exercising Reserve/Free
// across a turnout crossing.
func buildThroughTurnout() *topology.Graph {
	g := topology.NewGraph()
	a := topology.NewBlock("A", "A", topology.CategoryFree)
	b := topology.NewBlock("B", "B", topology.CategoryFree)
	to := topology.NewTurnout("T1", topology.CategorySingleLeft, []int{1})
	g.AddBlock(a)
	g.AddBlock(b)
	g.AddTurnout(to)
	g.AddTransition(topology.NewTransition("tr1", topology.BlockSocket("A", 1), topology.TurnoutSocket("T1", 0)))
	g.AddTransition(topology.NewTransition("tr2", topology.TurnoutSocket("T1", 1), topology.BlockSocket("B", 0)))
	return g
}

func TestReserveCommitsTurnoutAndTransitions(t *testing.T) {
	Convey("Given A and B joined through turnout T1", t, func() {
		g := buildThroughTurnout()
		e := New(g, nil)

		Convey("Reserve claims the turnout and every transition in the chain", func() {
			ok, err := e.Reserve("t1", "A", topology.DirNext, "B", topology.DirNext)
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)

			to, _ := g.Turnout("T1")
			So(to.Reserved(), ShouldEqual, "t1")
			tr1, _ := g.Transition("tr1")
			tr2, _ := g.Transition("tr2")
			So(tr1.Reserved(), ShouldEqual, "t1")
			So(tr2.Reserved(), ShouldEqual, "t1")
		})
	})
}

func TestFreeReleasesBlockTurnoutAndTransitions(t *testing.T) {
	Convey("Given a committed reservation across T1", t, func() {
		g := buildThroughTurnout()
		e := New(g, nil)
		ok, err := e.Reserve("t1", "A", topology.DirNext, "B", topology.DirNext)
		So(err, ShouldBeNil)
		So(ok, ShouldBeTrue)

		to, _ := g.Turnout("T1")
		tr1, _ := g.Transition("tr1")
		tr2, _ := g.Transition("tr2")
		step := TrailingStep{BlockID: "B", Direction: topology.DirNext, TurnoutIDs: []string{"T1"}, TransitionIDs: []string{"tr1", "tr2"}}

		Convey("Free clears the block, the turnout and every transition", func() {
			So(e.Free(step), ShouldBeNil)

			b, _ := g.Block("B")
			So(b.Reservation(), ShouldBeNil)
			So(to.Reserved(), ShouldEqual, "")
			So(tr1.Reserved(), ShouldEqual, "")
			So(tr2.Reserved(), ShouldEqual, "")
		})
	})
}

func TestFreeTrailingReleasesRetreatingSteps(t *testing.T) {
	Convey("Given a trailing chain longer than required", t, func() {
		g := buildThroughTurnout()
		e := New(g, nil)
		to, _ := g.Turnout("T1")
		to.SetReserved("t1")
		tr1, _ := g.Transition("tr1")
		tr1.SetReserved("t1")

		trailing := []TrailingStep{
			{BlockID: "A", Direction: topology.DirNext, TurnoutIDs: []string{"T1"}, TransitionIDs: []string{"tr1"}},
			{BlockID: "B", Direction: topology.DirNext},
		}

		Convey("FreeTrailing drops the oldest step and releases its crossings", func() {
			remaining := e.FreeTrailing(trailing, 1)
			So(remaining, ShouldHaveLength, 1)
			So(remaining[0].BlockID, ShouldEqual, "B")
			So(to.Reserved(), ShouldEqual, "")
			So(tr1.Reserved(), ShouldEqual, "")
		})
	})
}
