package train

import (
	"time"

	"github.com/tracktitans/layoutrt/pathfinder"
	"github.com/tracktitans/layoutrt/reservation"
	"github.com/tracktitans/layoutrt/topology"
)

// handleStart is handler 1. Precondition: speed 0, train
// assigned to a block, no restart timer active. Regenerates an endless
// route if exhausted, then tries to reserve the leading blocks before
// commanding the running speed.
func handleStart(c *Controller, _ Event) []Event {
	t := c.Train
	if t.Speed.Current != 0 || t.BlockID == "" || t.RestartArmed() {
		return nil
	}

	if t.RouteStepIndex >= c.Route.Len()-1 && c.Route.Mode == ModeAutomatic {
		if !regenerateRoute(c) {
			return nil
		}
	}

	if !c.Reservation.ReserveLeading(t.ID, c.Route, t.RouteStepIndex, t.MaxLeadingReservedBlocks) {
		return nil
	}

	t.StartRouteIndex = t.RouteStepIndex
	c.commandSpeed(t.Speed.Running)
	prev := t.State
	t.State = StateRunning
	if prev != t.State {
		return []Event{{Kind: EventStateChanged}}
	}
	return nil
}

// handleMoveWithinBlock is handler 2, shared by automatic and
// manual pipelines.
func handleMoveWithinBlock(c *Controller, e Event) []Event {
	if !e.Detected {
		return nil
	}
	block, err := c.currentBlock()
	if err != nil {
		return nil
	}
	idx := feedbackIndex(block, e.FeedbackID)
	if idx < 0 {
		return nil
	}
	newPos, changed := newPosition(c.Train.Position, idx, c.Train.Direction, c.Strict)
	if !changed {
		return nil
	}
	c.Train.Position = newPos
	return []Event{{Kind: EventMovedInsideBlock}}
}

// handleMoveToNextBlock is handler 3: detects the entry
// feedback of the next block along the route and, once triggered, moves
// the train's assignment across the transition.
func handleMoveToNextBlock(c *Controller, e Event) []Event {
	if !e.Detected {
		return nil
	}
	t := c.Train
	nextBlockID, nextDir, ok := c.Route.StepAt(t.RouteStepIndex + 1)
	if !ok {
		return nil
	}

	curBlockID, curDir, _ := c.Route.StepAt(t.RouteStepIndex)
	crossings, transitions, err := c.Graph.ChainTo(curBlockID, curDir, nextBlockID, nextDir)
	if err != nil {
		return nil
	}

	nextBlock, err := c.Graph.Block(nextBlockID)
	if err != nil {
		return nil
	}
	entryIdx := entryFeedbackIndex(nextBlock, nextDir)
	if entryIdx < 0 || entryIdx >= len(nextBlock.Feedbacks()) || nextBlock.Feedbacks()[entryIdx] != e.FeedbackID {
		return nil
	}

	oldBlock, _ := c.Graph.Block(t.BlockID)
	if oldBlock != nil {
		oldBlock.SetTrainInstance(nil)
	}

	t.BlockID = nextBlockID
	t.Direction = nextDir
	t.Position = entryPosition(nextDir, nextBlock.FeedbackCount())
	nextBlock.SetTrainInstance(&topology.TrainInstance{TrainID: t.ID, Direction: nextDir})
	t.RouteStepIndex++

	turnoutIDs := make([]string, len(crossings))
	for i, cr := range crossings {
		turnoutIDs[i] = cr.TurnoutID
	}
	transitionIDs := make([]string, len(transitions))
	for i, tr := range transitions {
		transitionIDs[i] = tr.ID()
	}
	t.TrailingSteps = append(t.TrailingSteps, reservation.TrailingStep{
		BlockID:       nextBlockID,
		Direction:     nextDir,
		TurnoutIDs:    turnoutIDs,
		TransitionIDs: transitionIDs,
	})
	t.TrailingSteps = c.Reservation.FreeTrailing(t.TrailingSteps, t.RequiredTrailingSteps)

	return []Event{{Kind: EventMovedToNextBlock}}
}

// handleDetectStop is handler 4.
func handleDetectStop(c *Controller, _ Event) []Event {
	t := c.Train
	last := c.Route.LastIndex()

	switch c.Route.Mode {
	case ModeAutomaticOnce:
		if t.RouteStepIndex == last {
			dest := c.Route.Destination
			if dest != nil && (t.BlockID != dest.BlockID || t.Direction != dest.Direction) {
				if logger != nil {
					logger.Error("train reached end of route at wrong destination", "train", t.ID, "block", t.BlockID, "wantBlock", dest.BlockID)
				}
				return nil
			}
			t.Stop = StopTrigger{Kind: StopTriggerStopCompletely}
			return []Event{{Kind: EventStopRequested}}
		}
	case ModeFixed:
		if t.RouteStepIndex == last {
			t.Stop = StopTrigger{Kind: StopTriggerStopCompletely}
			return []Event{{Kind: EventStopRequested}}
		}
		return stationStopIfApplicable(c)
	default: // ModeAutomatic
		return stationStopIfApplicable(c)
	}
	return nil
}

// stationStopIfApplicable arms a station stop (or stop-and-restart) when
// the newly entered block is a station and is not the train's start block
// of this automatic run.
func stationStopIfApplicable(c *Controller) []Event {
	t := c.Train
	block, err := c.currentBlock()
	if err != nil || !block.IsStation() {
		return nil
	}
	if t.RouteStepIndex == t.StartRouteIndex {
		return nil
	}

	if t.Scheduling == SchedulingAutomaticFinishing {
		t.Stop = StopTrigger{Kind: StopTriggerStopCompletely}
	} else {
		delay := stationWaitingTime(c.Route, t.RouteStepIndex, block)
		t.Stop = StopTrigger{Kind: StopTriggerStopAndRestart, Delay: delay}
	}
	return []Event{{Kind: EventStopRequested}}
}

// stationWaitingTime resolves the open-question fallback order: the
// route step's configured waiting time, else the block's default, else a
// fixed 10 seconds.
func stationWaitingTime(route *Route, routeStepIndex int, block *topology.Block) time.Duration {
	if step, _, ok := stepAtIndex(route, routeStepIndex); ok && step.WaitingTime > 0 {
		return time.Duration(step.WaitingTime) * time.Second
	}
	if block.WaitingTime() > 0 {
		return block.WaitingTime()
	}
	return 10 * time.Second
}

func stepAtIndex(r *Route, i int) (Step, bool, bool) {
	if r == nil || i < 0 || i >= len(r.Steps) {
		return Step{}, false, false
	}
	return r.Steps[i], true, true
}

// handleExecuteStopInBlock is handler 5: watches for the
// brake and stop feedbacks of the current block once a stop is pending.
func handleExecuteStopInBlock(c *Controller, e Event) []Event {
	t := c.Train
	if t.Stop.Kind == StopTriggerNone || !e.Detected {
		return nil
	}
	block, err := c.currentBlock()
	if err != nil {
		return nil
	}

	if t.State == StateRunning {
		brakeIdx := block.BrakeFeedbackIndex(t.Direction)
		if brakeIdx >= 0 && brakeIdx < len(block.Feedbacks()) && block.Feedbacks()[brakeIdx] == e.FeedbackID {
			c.commandSpeed(t.Speed.Braking)
			t.State = StateBraking
			return []Event{{Kind: EventStateChanged}}
		}
		return nil
	}

	if t.State == StateBraking {
		stopIdx := block.StopFeedbackIndex(t.Direction)
		if stopIdx >= 0 && stopIdx < len(block.Feedbacks()) && block.Feedbacks()[stopIdx] == e.FeedbackID {
			c.commandStop()
			if t.Stop.Kind == StopTriggerStopAndRestart {
				t.SetRestartArmed(true)
				if c.RestartTimer != nil {
					c.RestartTimer(t.ID, t.Stop.Delay)
				}
			} else {
				t.Scheduling = SchedulingManual
			}
			return []Event{{Kind: EventStateChanged}}
		}
	}
	return nil
}

// handleRestartTimerFired reacts to a scheduled station-restart timer
// elapsing: clears the pending stop and re-enters the Start handler's
// precondition by raising schedulingChanged.
func handleRestartTimerFired(c *Controller, _ Event) []Event {
	t := c.Train
	if !t.RestartArmed() {
		return nil
	}
	t.SetRestartArmed(false)
	t.Stop = StopTrigger{Kind: StopTriggerNone}
	return []Event{{Kind: EventSchedulingChanged}}
}

// handleReserveLeadingBlocks is handler 6.
func handleReserveLeadingBlocks(c *Controller, _ Event) []Event {
	t := c.Train
	if t.Stop.Kind != StopTriggerNone || t.State == StateStopped {
		return nil
	}
	if !c.Reservation.ReserveLeading(t.ID, c.Route, t.RouteStepIndex, t.MaxLeadingReservedBlocks) {
		t.Stop = StopTrigger{Kind: StopTriggerStopTemporarily}
		return []Event{{Kind: EventStopRequested}}
	}
	return nil
}

// handleSpeedLimitEvent is handler 7: a simple stand-in for
// per-turnout speed restrictions, since the topology model carries no
// explicit turnout speed-limit attribute beyond what the caller supplies.
func handleSpeedLimitEvent(c *Controller, _ Event) []Event {
	t := c.Train
	if t.State == StateRunning && t.Speed.Requested > t.Speed.Max && t.Speed.Max > 0 {
		c.commandSpeed(t.Speed.Max)
	}
	return nil
}

// handleStopPushingWagons is handler 8: if the locomotive is
// pushing (running with its body reversed relative to travel direction)
// and the next block cannot be resolved, stop before running off the end
// of track.
func handleStopPushingWagons(c *Controller, _ Event) []Event {
	t := c.Train
	if t.BodyForward {
		return nil
	}
	if _, _, ok := c.Route.StepAt(t.RouteStepIndex + 1); ok {
		return nil
	}
	if t.State != StateStopped {
		c.commandStop()
		return []Event{{Kind: EventStateChanged}}
	}
	return nil
}

// regenerateRoute invokes the path finder from the train's current
// block/direction, per the "Automatic route regeneration": towards the
// route's Destination for automaticOnce, or endlessly otherwise. Replaces
// the route's steps in place and resets routeStepIndex to 0.
func regenerateRoute(c *Controller) bool {
	t := c.Train
	var dest *pathfinder.Destination
	if c.Route.Mode == ModeAutomaticOnce && c.Route.Destination != nil {
		dest = &pathfinder.Destination{BlockID: c.Route.Destination.BlockID, Direction: c.Route.Destination.Direction, HasDir: true}
	}

	steps, err := pathfinder.Find(c.Graph, t.BlockID, t.Direction, dest,
		pathfinder.Constraints{TrainID: t.ID, ReservedBlockBehavior: pathfinder.AvoidReserved, StopAtFirstStation: dest == nil},
		c.PathfinderSettings)
	if err != nil {
		if logger != nil {
			logger.Warn("route regeneration failed", "train", t.ID, "error", err)
		}
		return false
	}

	newSteps := make([]Step, len(steps))
	for i, s := range steps {
		newSteps[i] = Step{BlockID: s.BlockID, Direction: s.Direction}
	}
	c.Route.Steps = newSteps
	t.RouteStepIndex = 0
	return true
}

func feedbackIndex(b *topology.Block, feedbackID string) int {
	for i, id := range b.Feedbacks() {
		if id == feedbackID {
			return i
		}
	}
	return -1
}

// entryFeedbackIndex is the feedback index hit first when entering a
// block travelling in dir: index 0 when entering via socket 0 (travelling
// next), the last index when entering via socket 1 (travelling previous).
func entryFeedbackIndex(b *topology.Block, dir topology.Direction) int {
	if dir == topology.DirNext {
		return 0
	}
	return b.FeedbackCount() - 1
}

// entryPosition is the starting Position value for a block just entered
// travelling in dir.
func entryPosition(dir topology.Direction, feedbackCount int) int {
	if dir == topology.DirNext {
		return 0
	}
	return feedbackCount
}
