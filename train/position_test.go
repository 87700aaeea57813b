package train

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tracktitans/layoutrt/topology"
)

func TestNewPositionStrictOnlyAdvancesOneStepAhead(t *testing.T) {
	pos, changed := newPosition(0, 0, topology.DirNext, true)
	assert.True(t, changed)
	assert.Equal(t, 1, pos)

	pos, changed = newPosition(0, 2, topology.DirNext, true)
	assert.False(t, changed, "strict mode must ignore a feedback more than one step ahead")
	assert.Equal(t, 0, pos)
}

func TestNewPositionLenientJumpsToImpliedPosition(t *testing.T) {
	pos, changed := newPosition(0, 2, topology.DirNext, false)
	assert.True(t, changed)
	assert.Equal(t, 3, pos)
}

func TestNewPositionIgnoresFeedbackBehindCurrentPosition(t *testing.T) {
	_, changed := newPosition(2, 0, topology.DirNext, false)
	assert.False(t, changed)
}

func TestNewPositionTravellingPreviousDecreases(t *testing.T) {
	pos, changed := newPosition(3, 2, topology.DirPrevious, true)
	assert.True(t, changed)
	assert.Equal(t, 2, pos)
}
