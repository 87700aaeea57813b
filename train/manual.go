package train

import "github.com/tracktitans/layoutrt/topology"

// handleManualMoveToNextBlock is the manual counterpart of
// MoveToNextBlock: instead of following a pre-planned route, it
// follows the layout's own notion of the next valid block — the first
// NextOptions() entry departing the current block in the train's current
// direction whose turnouts are already set for that exit.
func handleManualMoveToNextBlock(c *Controller, e Event) []Event {
	if !e.Detected {
		return nil
	}
	t := c.Train
	block, err := c.currentBlock()
	if err != nil {
		return nil
	}

	options := c.Graph.NextOptions(t.BlockID, t.Direction)
	for _, opt := range options {
		if !turnoutsAgreeWithOption(c, opt) {
			continue
		}
		nextBlock, err := c.Graph.Block(opt.BlockID)
		if err != nil {
			continue
		}
		entryIdx := entryFeedbackIndex(nextBlock, opt.Direction)
		if entryIdx < 0 || entryIdx >= len(nextBlock.Feedbacks()) || nextBlock.Feedbacks()[entryIdx] != e.FeedbackID {
			continue
		}

		block.SetTrainInstance(nil)
		t.BlockID = opt.BlockID
		t.Direction = opt.Direction
		t.Position = entryPosition(opt.Direction, nextBlock.FeedbackCount())
		nextBlock.SetTrainInstance(&topology.TrainInstance{TrainID: t.ID, Direction: opt.Direction})
		return []Event{{Kind: EventMovedToNextBlock}}
	}
	return nil
}

// turnoutsAgreeWithOption reports whether every turnout crossed by opt is
// already thrown to the state the crossing requires (a manually-moving
// train has no reservation engine regenerating turnout state for it).
func turnoutsAgreeWithOption(c *Controller, opt topology.NextOption) bool {
	for _, cr := range opt.Crossings {
		to, err := c.Graph.Turnout(cr.TurnoutID)
		if err != nil || to.State() != cr.RequiredState {
			return false
		}
	}
	return true
}

// handleStopTriggerDetection stops a manually-driven train when it has no
// next block to move to, i.e. it has reached an end of track.
func handleStopTriggerDetection(c *Controller, _ Event) []Event {
	t := c.Train
	options := c.Graph.NextOptions(t.BlockID, t.Direction)
	for _, opt := range options {
		if turnoutsAgreeWithOption(c, opt) {
			return nil
		}
	}
	if t.State != StateStopped {
		c.commandStop()
		return []Event{{Kind: EventStateChanged}}
	}
	return nil
}
