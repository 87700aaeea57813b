package topology

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTurnoutGeometryLegalPairs(t *testing.T) {
	cases := []struct {
		category TurnoutCategory
		entry    int
		exit     int
		want     TurnoutState
	}{
		{CategorySingleLeft, 0, 1, StateNormal},
		{CategorySingleLeft, 0, 2, StateReversed},
		{CategorySingleLeft, 1, 0, StateNormal},
		{CategorySingleRight, 0, 1, StateNormal},
		{CategorySingleRight, 0, 2, StateReversed},
		{CategoryThreeWay, 0, 1, StateNormal},
		{CategoryThreeWay, 0, 2, StateLeft},
		{CategoryThreeWay, 0, 3, StateRight},
		{CategoryDoubleSlip, 0, 2, StateNormal},
		{CategoryDoubleSlip, 1, 3, StateNormal},
		{CategoryDoubleSlip, 0, 3, StateReversed},
		{CategoryDoubleSlip, 1, 2, StateReversed},
		{CategoryDoubleSlip2, 0, 3, StateNormal},
		{CategoryDoubleSlip2, 1, 2, StateNormal},
		{CategoryDoubleSlip2, 0, 2, StateReversed},
		{CategoryDoubleSlip2, 1, 3, StateReversed},
	}
	for _, c := range cases {
		to := NewTurnout("t", c.category, nil)
		got := to.RequiredState(c.entry, c.exit)
		assert.Equalf(t, c.want, got, "%s (%d->%d)", c.category, c.entry, c.exit)
	}
}

func TestTurnoutGeometryIllegalPairsAreInvalid(t *testing.T) {
	illegal := []struct {
		category TurnoutCategory
		entry    int
		exit     int
	}{
		{CategorySingleLeft, 1, 2},
		{CategorySingleRight, 2, 1},
		{CategoryThreeWay, 1, 2},
		{CategoryThreeWay, 2, 3},
		{CategoryDoubleSlip, 0, 1},
		{CategoryDoubleSlip, 2, 3},
		{CategoryDoubleSlip2, 0, 1},
	}
	for _, c := range illegal {
		to := NewTurnout("t", c.category, nil)
		assert.Equalf(t, StateInvalid, to.RequiredState(c.entry, c.exit), "%s (%d->%d)", c.category, c.entry, c.exit)
	}
}

func TestSingleLeftAndRightShareSocketSet(t *testing.T) {
	left := NewTurnout("l", CategorySingleLeft, nil)
	right := NewTurnout("r", CategorySingleRight, nil)
	assert.ElementsMatch(t, left.Sockets(), []int{0, 1, 2})
	assert.ElementsMatch(t, right.Sockets(), []int{0, 1, 2})
}

func TestDoubleSlipSocketsAreFourWide(t *testing.T) {
	ds := NewTurnout("ds", CategoryDoubleSlip, nil)
	ds2 := NewTurnout("ds2", CategoryDoubleSlip2, nil)
	assert.ElementsMatch(t, ds.Sockets(), []int{0, 1, 2, 3})
	assert.ElementsMatch(t, ds2.Sockets(), []int{0, 1, 2, 3})
}
