package train

import (
	"time"

	log "gopkg.in/inconshreveable/log15.v2"

	"github.com/tracktitans/layoutrt/busif"
	"github.com/tracktitans/layoutrt/pathfinder"
	"github.com/tracktitans/layoutrt/reservation"
	"github.com/tracktitans/layoutrt/topology"
)

var logger log.Logger

// InitializeLogger wires the package logger, following the ambient
// convention used across this module.
func InitializeLogger(parent log.Logger) { logger = parent.New("module", "train") }

// registeredHandler pairs a handler function with the event kinds it
// declares interest in — each handler only runs for the subset of events
// it processes.
type registeredHandler struct {
	name  string
	kinds map[EventKind]bool
	fn    Handler
}

func declare(name string, fn Handler, kinds ...EventKind) registeredHandler {
	set := make(map[EventKind]bool, len(kinds))
	for _, k := range kinds {
		set[k] = true
	}
	return registeredHandler{name: name, kinds: set, fn: fn}
}

// Controller is the per-train object: it owns one Train,
// its Route, and processes events against the shared Graph and
// reservation Engine. Dispatch runs to completion before the layout
// controller's outer loop takes the next input message.
type Controller struct {
	Train *Train
	Route *Route

	Graph       *topology.Graph
	Reservation *reservation.Engine
	Bus         busif.CommandInterface

	Strict bool

	// PathfinderSettings tunes automatic route regeneration.
	PathfinderSettings pathfinder.Settings

	// RestartTimer schedules a callback after d that enqueues
	// EventRestartTimerFired; owned by the layout controller, but
	// invoked from here so ExecuteStopInBlock can arm it directly.
	RestartTimer func(trainID string, d time.Duration)

	automatic []registeredHandler
	manual    []registeredHandler

	queue []Event
}

// NewController wires a Controller with the standard automatic and manual
// handler pipelines, in a fixed dispatch order.
func NewController(t *Train, r *Route, g *topology.Graph, res *reservation.Engine, bus busif.CommandInterface) *Controller {
	c := &Controller{Train: t, Route: r, Graph: g, Reservation: res, Bus: bus, Strict: true}
	c.automatic = []registeredHandler{
		declare("Start", handleStart, EventSchedulingChanged),
		declare("RestartAfterTimer", handleRestartTimerFired, EventRestartTimerFired),
		declare("MoveWithinBlock", handleMoveWithinBlock, EventFeedbackTriggered),
		declare("MoveToNextBlock", handleMoveToNextBlock, EventFeedbackTriggered),
		declare("DetectStop", handleDetectStop, EventMovedToNextBlock),
		declare("ExecuteStopInBlock", handleExecuteStopInBlock, EventFeedbackTriggered),
		declare("ReserveLeadingBlocks", handleReserveLeadingBlocks, EventMovedToNextBlock, EventMovedInsideBlock),
		declare("SpeedLimitEvent", handleSpeedLimitEvent, EventStateChanged),
		declare("StopPushingWagons", handleStopPushingWagons, EventMovedToNextBlock),
	}
	c.manual = []registeredHandler{
		declare("MoveWithinBlock", handleMoveWithinBlock, EventFeedbackTriggered),
		declare("ManualMoveToNextBlock", handleManualMoveToNextBlock, EventFeedbackTriggered),
		declare("StopTriggerDetection", handleStopTriggerDetection, EventMovedToNextBlock),
	}
	return c
}

// Dispatch enqueues e and drains the queue, running every interested
// handler from the pipeline matching the train's current scheduling mode,
// in fixed order, until no further events are produced.
func (c *Controller) Dispatch(e Event) {
	c.queue = append(c.queue, e)
	for len(c.queue) > 0 {
		cur := c.queue[0]
		c.queue = c.queue[1:]

		pipeline := c.manual
		if c.Train.IsAutomatic() {
			pipeline = c.automatic
		}
		for _, h := range pipeline {
			if !h.kinds[cur.Kind] {
				continue
			}
			func() {
				defer func() {
					if r := recover(); r != nil {
						if logger != nil {
							logger.Error("handler panicked, stopping train", "train", c.Train.ID, "handler", h.name, "error", r)
						}
						c.commandStop()
						c.Train.Scheduling = SchedulingManual
					}
				}()
				out := h.fn(c, cur)
				c.queue = append(c.queue, out...)
			}()
		}
	}
}

// commandSpeed issues a locomotive speed command via the bus, updating
// the train's requested speed unconditionally (bus errors are logged,
// non-fatal).
func (c *Controller) commandSpeed(kph float64) {
	c.Train.Speed.Requested = kph
	if c.Bus == nil {
		return
	}
	if err := c.Bus.Execute(busif.LocomotiveSetSpeedCommand{Address: c.Train.LocoAddress, Step: int(kph)}); err != nil {
		if logger != nil {
			logger.Error("speed command failed", "train", c.Train.ID, "error", err)
		}
	}
}

func (c *Controller) commandStop() {
	c.Train.State = StateStopped
	c.commandSpeed(0)
}

func (c *Controller) currentBlock() (*topology.Block, error) {
	return c.Graph.Block(c.Train.BlockID)
}
