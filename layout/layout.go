// Package layout implements the outer-loop runtime controller: it owns
// the topology graph, the reservation engine, every train's controller,
// and the control-bus collaborator, translating asynchronous bus/timer/
// operator inputs into the single-threaded event stream each
// train.Controller expects — one goroutine serializing requests from
// several input sources onto a shared runtime.
package layout

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	log "gopkg.in/inconshreveable/log15.v2"
	"golang.org/x/sync/errgroup"

	"github.com/tracktitans/layoutrt/busif"
	"github.com/tracktitans/layoutrt/document"
	"github.com/tracktitans/layoutrt/reservation"
	"github.com/tracktitans/layoutrt/topology"
	"github.com/tracktitans/layoutrt/train"
)

var logger log.Logger

// InitializeLogger wires the package logger, following the ambient
// convention used across this module.
func InitializeLogger(parent log.Logger) { logger = parent.New("module", "layout") }

// timerJob is a scheduled restart-timer callback, keyed by train id so a
// later start cancels any earlier one.
type timerJob struct {
	trainID string
	timer   *time.Timer
}

// Controller is the single logical task: every external input —
// bus feedback/speed/direction events, restart timers, operator commands
// — is funneled through its internal channel and processed one at a time,
// so train.Controller.Dispatch never needs its own locking.
type Controller struct {
	Graph       *topology.Graph
	Reservation *reservation.Engine
	Bus         busif.CommandInterface

	Suggestions *SuggestionEngine

	// Geometry and Scripts carry the document package's opaque passthrough
	// fields across the runtime's lifetime, so a "dump" made mid
	// session round-trips them the same way Load/Save would.
	Geometry map[string]document.Point
	Scripts  []json.RawMessage

	mu          sync.Mutex
	controllers map[string]*train.Controller
	routes      map[string]*train.Route
	timers      map[string]*timerJob

	inbox chan func()
	done  chan struct{}

	// discoverMode holds the merge/replace policy for the in-flight
	// DiscoverLocomotives call, consumed when the bus answers with
	// EventLocomotivesDiscovered.
	discoverMode string
}

// NewController builds a layout controller over an already-populated
// graph and reservation engine. Call Run to start its processing loop and
// AddTrain for every train before trains can be started.
func NewController(g *topology.Graph, res *reservation.Engine, bus busif.CommandInterface) *Controller {
	c := &Controller{
		Graph:       g,
		Reservation: res,
		Bus:         bus,
		controllers: make(map[string]*train.Controller),
		routes:      make(map[string]*train.Route),
		timers:      make(map[string]*timerJob),
		inbox:       make(chan func(), 256),
		done:        make(chan struct{}),
	}
	c.Suggestions = NewSuggestionEngine(c.trainSnapshot, g)
	return c
}

// AddTrain registers a train controller, wiring its RestartTimer callback
// back into this layout controller's timer registry.
func (c *Controller) AddTrain(tc *train.Controller) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tc.RestartTimer = c.scheduleRestart
	c.controllers[tc.Train.ID] = tc
	if tc.Route != nil {
		c.routes[tc.Route.ID] = tc.Route
	}
}

// Routes returns a snapshot of every route currently assigned to a train,
// keyed by route id, for the document "dump" operation.
func (c *Controller) Routes() map[string]*train.Route {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]*train.Route, len(c.routes))
	for id, r := range c.routes {
		out[id] = r
	}
	return out
}

func (c *Controller) trainSnapshot() map[string]*train.Train {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]*train.Train, len(c.controllers))
	for id, tc := range c.controllers {
		out[id] = tc.Train
	}
	return out
}

// Run starts the bus receiver task and the runtime processing task as an
// errgroup, returning when ctx is cancelled or either task fails.
func (c *Controller) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return c.receiveBusEvents(ctx)
	})
	g.Go(func() error {
		return c.runLoop(ctx)
	})

	err := g.Wait()
	c.cancelAllTimers()
	return err
}

// receiveBusEvents connects the bus adapter and registers a callback that
// enqueues translated events onto the runtime task; it blocks until ctx is
// cancelled, then disconnects.
func (c *Controller) receiveBusEvents(ctx context.Context) error {
	if c.Bus == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	if err := c.Bus.Connect(); err != nil {
		return fmt.Errorf("layout: bus connect: %w", err)
	}
	c.Bus.Register(func(ev busif.Event) {
		c.Enqueue(func() { c.handleBusEvent(ev) })
	})
	<-ctx.Done()
	if err := c.Bus.Disconnect(); err != nil && logger != nil {
		logger.Error("bus disconnect failed", "error", err)
	}
	return ctx.Err()
}

// runLoop drains the inbox one job at a time until ctx is cancelled,
// which is what keeps every train.Controller.Dispatch call single
// threaded (the "one logical task with enqueued external inputs").
func (c *Controller) runLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case job := <-c.inbox:
			job()
		}
	}
}

// Enqueue submits a job to run on the runtime task. Safe to call from any
// goroutine — the bus receiver, timer callbacks, and operator-facing API
// handlers all use this instead of touching train/reservation state
// directly.
func (c *Controller) Enqueue(job func()) {
	select {
	case c.inbox <- job:
	case <-c.done:
	}
}

func (c *Controller) handleBusEvent(ev busif.Event) {
	switch ev.Kind {
	case busif.EventFeedback:
		c.dispatchFeedback(ev.DeviceID, ev.ContactID, ev.Detected)
	case busif.EventSpeed, busif.EventDirection:
		// Acknowledgement-only events; no train.Controller handler
		// currently reacts to them directly (speed/direction state is
		// driven by the commands this runtime issues, not echoed back).
	case busif.EventLocomotivesDiscovered:
		c.mu.Lock()
		mode := c.discoverMode
		c.mu.Unlock()
		c.mergeDiscoveredLocomotives(ev.Addresses, mode)
	}
}

// dispatchFeedback resolves which block/train a physical feedback
// belongs to and dispatches feedbackTriggered to every train controller
// whose current block carries that feedback id, since more than one
// train could plausibly straddle adjoining blocks during a handoff.
func (c *Controller) dispatchFeedback(deviceID string, contactID int, detected bool) {
	var feedbackID string
	for id, f := range c.Graph.Feedbacks() {
		if fmt.Sprintf("%d", f.DeviceID()) == deviceID && f.ContactID() == contactID {
			feedbackID = id
			f.SetDetected(detected)
			break
		}
	}
	if feedbackID == "" {
		if logger != nil {
			logger.Warn("feedback event from unknown contact", "device", deviceID, "contact", contactID)
		}
		return
	}

	c.mu.Lock()
	targets := make([]*train.Controller, 0, len(c.controllers))
	for _, tc := range c.controllers {
		block, err := c.Graph.Block(tc.Train.BlockID)
		if err != nil {
			continue
		}
		for _, fid := range block.Feedbacks() {
			if fid == feedbackID {
				targets = append(targets, tc)
				break
			}
		}
	}
	c.mu.Unlock()

	for _, tc := range targets {
		tc.Dispatch(train.Event{Kind: train.EventFeedbackTriggered, FeedbackID: feedbackID, Detected: detected})
	}
}

// scheduleRestart is the RestartTimer callback wired into every
// train.Controller: it arms a stdlib timer that, on firing, enqueues
// restartTimerFired back onto the runtime task.
func (c *Controller) scheduleRestart(trainID string, d time.Duration) {
	c.mu.Lock()
	if existing, ok := c.timers[trainID]; ok {
		existing.timer.Stop()
	}
	job := &timerJob{trainID: trainID}
	job.timer = time.AfterFunc(d, func() {
		c.Enqueue(func() { c.fireRestart(trainID) })
	})
	c.timers[trainID] = job
	c.mu.Unlock()
}

func (c *Controller) fireRestart(trainID string) {
	c.mu.Lock()
	delete(c.timers, trainID)
	tc, ok := c.controllers[trainID]
	c.mu.Unlock()
	if !ok {
		return
	}
	tc.Dispatch(train.Event{Kind: train.EventRestartTimerFired})
}

func (c *Controller) cancelAllTimers() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, j := range c.timers {
		j.timer.Stop()
	}
	c.timers = make(map[string]*timerJob)
	close(c.done)
}

// cancelTimer stops and forgets trainID's pending restart timer: a
// pending restart timer is cancelled when the train is commanded to stop
// completely.
func (c *Controller) cancelTimer(trainID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if j, ok := c.timers[trainID]; ok {
		j.timer.Stop()
		delete(c.timers, trainID)
	}
}

// Start is the operator-facing "start train" command: it enqueues
// schedulingChanged on the runtime task and returns, since the actual
// reservation/speed work happens inside the train.Controller's Start
// handler.
func (c *Controller) Start(trainID string) error {
	c.mu.Lock()
	tc, ok := c.controllers[trainID]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("layout: unknown train %q", trainID)
	}
	c.Enqueue(func() {
		tc.Train.Scheduling = train.SchedulingAutomaticRunning
		tc.Dispatch(train.Event{Kind: train.EventSchedulingChanged})
	})
	return nil
}

// Stop requests a complete stop for trainID, independent of route
// progress.
func (c *Controller) Stop(trainID string) error {
	c.mu.Lock()
	tc, ok := c.controllers[trainID]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("layout: unknown train %q", trainID)
	}
	c.Enqueue(func() {
		c.cancelTimer(trainID)
		tc.Train.SetRestartArmed(false)
		tc.Train.Stop = train.StopTrigger{Kind: train.StopTriggerStopCompletely}
		tc.Dispatch(train.Event{Kind: train.EventStopRequested})
	})
	return nil
}

// Finish lets a running automatic train complete its current route and
// stop at the next station rather than continuing endlessly.
func (c *Controller) Finish(trainID string) error {
	c.mu.Lock()
	tc, ok := c.controllers[trainID]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("layout: unknown train %q", trainID)
	}
	c.Enqueue(func() {
		tc.Train.Scheduling = train.SchedulingAutomaticFinishing
	})
	return nil
}

// Trains returns a snapshot of every known train, keyed by id. Safe to
// call from any goroutine (the HTTP/WS operator surface in particular).
func (c *Controller) Trains() map[string]*train.Train {
	return c.trainSnapshot()
}

// TimerBacklog reports how many trains currently have a pending restart
// timer armed, used by the operator surface's KPI ticker.
func (c *Controller) TimerBacklog() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// DiscoverLocomotives asks the bus to report every locomotive address it
// knows about. mode is either "merge" (add newly seen addresses, leave
// existing trains alone)
// or "replace" (additionally drop unassigned trains no longer reported).
// The result arrives asynchronously as EventLocomotivesDiscovered.
func (c *Controller) DiscoverLocomotives(mode string) error {
	if c.Bus == nil {
		return fmt.Errorf("layout: no bus configured")
	}
	if mode != "merge" && mode != "replace" {
		return fmt.Errorf("layout: unknown discovery mode %q", mode)
	}
	c.mu.Lock()
	c.discoverMode = mode
	c.mu.Unlock()
	return c.Bus.Execute(busif.QueryLocomotivesCommand{})
}

func (c *Controller) mergeDiscoveredLocomotives(addresses []int, mode string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	known := make(map[int]bool, len(c.controllers))
	for _, tc := range c.controllers {
		known[tc.Train.LocoAddress] = true
	}
	seen := make(map[int]bool, len(addresses))
	for _, addr := range addresses {
		seen[addr] = true
	}

	if mode == "replace" {
		for id, tc := range c.controllers {
			if tc.Train.BlockID == "" && !seen[tc.Train.LocoAddress] {
				delete(c.controllers, id)
			}
		}
	}

	for _, addr := range addresses {
		if known[addr] {
			continue
		}
		tr := train.NewTrain(fmt.Sprintf("loco-%d", addr), fmt.Sprintf("Locomotive %d", addr), addr)
		tc := train.NewController(tr, nil, c.Graph, c.Reservation, c.Bus)
		tc.RestartTimer = c.scheduleRestart
		c.controllers[tr.ID] = tc
	}
}

// AcceptSuggestion dispatches the operator command a suggestion names.
func (c *Controller) AcceptSuggestion(id string) error {
	return c.Suggestions.Accept(id, func(a SuggestionAction) error {
		switch a.Action {
		case "start":
			return c.Start(a.TrainID)
		case "freeReservations":
			c.FreeReservationsFor(a.TrainID)
			return nil
		default:
			return fmt.Errorf("layout: unsupported suggestion action %q", a.Action)
		}
	})
}

// FreeReservationsFor clears every block, turnout and transition reserved
// for trainID, regardless of whether a live train.Controller still owns
// that id. Used to recover reservations orphaned by a locomotive dropped
// via discovery's replace mode, which never goes through the normal
// trailing-release path.
func (c *Controller) FreeReservationsFor(trainID string) {
	for _, b := range c.Graph.Blocks() {
		if r := b.Reservation(); r != nil && r.TrainID == trainID {
			b.SetReservation(nil)
		}
	}
	for _, to := range c.Graph.Turnouts() {
		if to.Reserved() == trainID {
			to.SetReserved("")
		}
	}
	for _, tr := range c.Graph.Transitions() {
		if tr.Reserved() == trainID {
			tr.SetReserved("")
		}
	}
}
