package topology

import "sort"

// geometry encodes one turnout category's fixed socket graph: the legal
// entry->[]exit adjacency, and the state each (entry,exit) pair requires.
// Every pair is stored symmetrically (a->b and b->a) since a turnout is
// traversable in either direction.
type geometry struct {
	socketIDs []int
	sockets   map[int][]int
	state     map[[2]int]TurnoutState
}

func buildGeometry(socketIDs []int, pairs map[[2]int]TurnoutState) geometry {
	g := geometry{
		socketIDs: socketIDs,
		sockets:   make(map[int][]int),
		state:     make(map[[2]int]TurnoutState),
	}
	for pair, state := range pairs {
		a, b := pair[0], pair[1]
		g.state[[2]int{a, b}] = state
		g.state[[2]int{b, a}] = state
		g.sockets[a] = append(g.sockets[a], b)
		g.sockets[b] = append(g.sockets[b], a)
	}
	for _, exits := range g.sockets {
		sort.Ints(exits)
	}
	return g
}

// geometryFor reproduces the socket/state geometry for each turnout
// category exactly as specified: singleLeft/Right have sockets {0,1,2}
// with a straight pair and a branching pair; threeWay has sockets
// {0,1,2,3}; doubleSlip and doubleSlip2 each have 4 sockets with two
// non-overlapping straight pairs and two crossing pairs.
func geometryFor(cat TurnoutCategory) geometry {
	switch cat {
	case CategorySingleLeft, CategorySingleRight:
		// 0 = common (point) end, 1 = straight leg, 2 = branch leg.
		// Category only changes which physical side the branch sits on;
		// the socket/state graph is identical for routing purposes.
		return buildGeometry([]int{0, 1, 2}, map[[2]int]TurnoutState{
			{0, 1}: StateNormal,
			{0, 2}: StateReversed,
		})
	case CategoryThreeWay:
		// 0 = common end, 1 = straight, 2 = left branch, 3 = right branch.
		return buildGeometry([]int{0, 1, 2, 3}, map[[2]int]TurnoutState{
			{0, 1}: StateNormal,
			{0, 2}: StateLeft,
			{0, 3}: StateRight,
		})
	case CategoryDoubleSlip:
		// Two straight-through pairs (0-2, 1-3) and two crossing/slip
		// pairs (0-3, 1-2).
		return buildGeometry([]int{0, 1, 2, 3}, map[[2]int]TurnoutState{
			{0, 2}: StateNormal,
			{1, 3}: StateNormal,
			{0, 3}: StateReversed,
			{1, 2}: StateReversed,
		})
	case CategoryDoubleSlip2:
		// Mirror labeling of doubleSlip: straight pairs and crossing
		// pairs swap which socket numbers they connect, distinguishing
		// the category while keeping the same shape (4 sockets, two
		// straight + two crossing routes).
		return buildGeometry([]int{0, 1, 2, 3}, map[[2]int]TurnoutState{
			{0, 3}: StateNormal,
			{1, 2}: StateNormal,
			{0, 2}: StateReversed,
			{1, 3}: StateReversed,
		})
	default:
		return geometry{}
	}
}
