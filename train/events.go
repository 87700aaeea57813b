package train

// EventKind enumerates the event stream a train controller processes.
type EventKind string

const (
	EventFeedbackTriggered EventKind = "feedbackTriggered"
	EventMovedInsideBlock  EventKind = "movedInsideBlock"
	EventMovedToNextBlock  EventKind = "movedToNextBlock"
	EventRestartTimerFired EventKind = "restartTimerFired"
	EventSchedulingChanged EventKind = "schedulingChanged"
	EventStateChanged      EventKind = "stateChanged"
	EventStopRequested     EventKind = "stopRequested"
)

// Event is one occurrence fed to, or produced by, a train controller's
// handler pipeline.
type Event struct {
	Kind EventKind

	// FeedbackID/Detected apply to EventFeedbackTriggered.
	FeedbackID string
	Detected   bool
}

// Handler processes one event against the controller's train, route and
// layout, returning any follow-on events to requeue.
type Handler func(c *Controller, e Event) []Event
