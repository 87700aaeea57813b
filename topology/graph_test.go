package topology

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestGraphDirectBlockToBlock(t *testing.T) {
	Convey("Given two blocks joined by a single transition", t, func() {
		g := NewGraph()
		a := NewBlock("A", "Block A", CategoryFree)
		b := NewBlock("B", "Block B", CategoryFree)
		g.AddBlock(a)
		g.AddBlock(b)
		g.AddTransition(NewTransition("tr1", BlockSocket("A", 1), BlockSocket("B", 0)))

		Convey("NextOptions from A travelling next reaches B travelling next", func() {
			opts := g.NextOptions("A", DirNext)
			So(opts, ShouldHaveLength, 1)
			So(opts[0].BlockID, ShouldEqual, "B")
			So(opts[0].Direction, ShouldEqual, DirNext)
			So(opts[0].Crossings, ShouldBeEmpty)
		})

		Convey("ChainTo resolves the same single step with no turnout crossings", func() {
			crossings, transitions, err := g.ChainTo("A", DirNext, "B", DirNext)
			So(err, ShouldBeNil)
			So(crossings, ShouldBeEmpty)
			So(transitions, ShouldHaveLength, 1)
		})

		Convey("ChainTo fails for an unreachable destination", func() {
			_, _, err := g.ChainTo("A", DirPrevious, "B", DirNext)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestGraphThroughTurnoutBranches(t *testing.T) {
	Convey("Given block A feeding a singleLeft turnout splitting to blocks B and C", t, func() {
		g := NewGraph()
		a := NewBlock("A", "A", CategoryFree)
		b := NewBlock("B", "B", CategoryFree)
		c := NewBlock("C", "C", CategoryFree)
		to := NewTurnout("T1", CategorySingleLeft, []int{1})
		g.AddBlock(a)
		g.AddBlock(b)
		g.AddBlock(c)
		g.AddTurnout(to)
		g.AddTransition(NewTransition("tr1", BlockSocket("A", 1), TurnoutSocket("T1", 0)))
		g.AddTransition(NewTransition("tr2", TurnoutSocket("T1", 1), BlockSocket("B", 0)))
		g.AddTransition(NewTransition("tr3", TurnoutSocket("T1", 2), BlockSocket("C", 0)))

		Convey("NextOptions from A enumerates both branches", func() {
			opts := g.NextOptions("A", DirNext)
			So(opts, ShouldHaveLength, 2)
			ids := map[string]TurnoutState{}
			for _, o := range opts {
				So(o.Crossings, ShouldHaveLength, 1)
				ids[o.BlockID] = o.Crossings[0].RequiredState
			}
			So(ids["B"], ShouldEqual, StateNormal)
			So(ids["C"], ShouldEqual, StateReversed)
		})

		Convey("ChainTo reports the required turnout state for the branch taken", func() {
			crossings, _, err := g.ChainTo("A", DirNext, "C", DirNext)
			So(err, ShouldBeNil)
			So(crossings, ShouldHaveLength, 1)
			So(crossings[0].TurnoutID, ShouldEqual, "T1")
			So(crossings[0].RequiredState, ShouldEqual, StateReversed)
		})
	})
}

func TestBlockSocketsRespectSidingCategory(t *testing.T) {
	Convey("Siding blocks expose only their open side", t, func() {
		prev := NewBlock("P", "siding-previous", CategorySidingPrevious)
		next := NewBlock("N", "siding-next", CategorySidingNext)
		So(prev.Sockets(), ShouldResemble, []int{0})
		So(next.Sockets(), ShouldResemble, []int{1})
		So(prev.HasSocket(1), ShouldBeFalse)
		So(next.HasSocket(0), ShouldBeFalse)
	})
}
