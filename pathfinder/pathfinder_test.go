package pathfinder

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/tracktitans/layoutrt/topology"
)

// buildTriangle builds a straight line s1 -> b1 -> b2 -> b3 -> s2 joined by
// plain transitions, with no turnouts; s1 and s2 are stations.
func buildTriangle() *topology.Graph {
	g := topology.NewGraph()
	ids := []string{"s1", "b1", "b2", "b3", "s2"}
	for _, id := range ids {
		cat := topology.CategoryFree
		if id == "s1" || id == "s2" {
			cat = topology.CategoryStation
		}
		g.AddBlock(topology.NewBlock(id, id, cat))
	}
	g.AddTransition(topology.NewTransition("tr-s1-b1", topology.BlockSocket("s1", 1), topology.BlockSocket("b1", 0)))
	g.AddTransition(topology.NewTransition("tr-b1-b2", topology.BlockSocket("b1", 1), topology.BlockSocket("b2", 0)))
	g.AddTransition(topology.NewTransition("tr-b2-b3", topology.BlockSocket("b2", 1), topology.BlockSocket("b3", 0)))
	g.AddTransition(topology.NewTransition("tr-b3-s2", topology.BlockSocket("b3", 1), topology.BlockSocket("s2", 0)))
	return g
}

func TestFindPathToDestination(t *testing.T) {
	Convey("Given the triangle layout", t, func() {
		g := buildTriangle()

		Convey("Find locates s2 from s1 with consecutive connected steps", func() {
			path, err := Find(g, "s1", topology.DirNext, &Destination{BlockID: "s2", Direction: topology.DirNext, HasDir: true}, Constraints{TrainID: "1"}, Settings{})
			So(err, ShouldBeNil)
			So(len(path), ShouldBeGreaterThan, 0)
			So(path[0].BlockID, ShouldEqual, "s1")
			So(path[len(path)-1].BlockID, ShouldEqual, "s2")

			seen := map[string]bool{}
			for _, step := range path {
				So(seen[step.BlockID], ShouldBeFalse)
				seen[step.BlockID] = true
			}
		})

		Convey("Find with no destination stops at the first station reached", func() {
			path, err := Find(g, "s1", topology.DirNext, nil, Constraints{TrainID: "1", StopAtFirstStation: true}, Settings{})
			So(err, ShouldBeNil)
			So(path[len(path)-1].BlockID, ShouldEqual, "s2")
		})

		Convey("avoidReserved rejects a path through a block reserved by another train", func() {
			b2, _ := g.Block("b2")
			b2.SetReservation(&topology.Reservation{TrainID: "other"})
			_, err := Find(g, "s1", topology.DirNext, &Destination{BlockID: "s2", Direction: topology.DirNext, HasDir: true}, Constraints{TrainID: "1", ReservedBlockBehavior: AvoidReserved}, Settings{})
			So(err, ShouldNotBeNil)
		})

		Convey("ignoreReserved still finds the path through a reserved block", func() {
			b2, _ := g.Block("b2")
			b2.SetReservation(&topology.Reservation{TrainID: "other"})
			path, err := Find(g, "s1", topology.DirNext, &Destination{BlockID: "s2", Direction: topology.DirNext, HasDir: true}, Constraints{TrainID: "1", ReservedBlockBehavior: IgnoreReserved}, Settings{})
			So(err, ShouldBeNil)
			So(path[len(path)-1].BlockID, ShouldEqual, "s2")
		})

		Convey("an overflow limit smaller than the path length fails", func() {
			_, err := Find(g, "s1", topology.DirNext, &Destination{BlockID: "s2", Direction: topology.DirNext, HasDir: true}, Constraints{TrainID: "1"}, Settings{OverflowLimit: 1})
			So(err, ShouldNotBeNil)
			_, ok := err.(*OverflowError)
			So(ok, ShouldBeTrue)
		})
	})
}
