// Package train implements the per-train controller: the state
// machine, its automatic (route-driven) and manual (operator-driven)
// handler pipelines, and the pure position arithmetic they share.
package train

import (
	"time"

	"github.com/tracktitans/layoutrt/reservation"
	"github.com/tracktitans/layoutrt/topology"
)

// Scheduling is the operator-facing mode a train runs under.
type Scheduling string

const (
	SchedulingManual             Scheduling = "manual"
	SchedulingAutomaticRunning   Scheduling = "automaticRunning"
	SchedulingAutomaticFinishing Scheduling = "automaticFinishing"
	SchedulingStopped            Scheduling = "stopped"
)

// State is the train's physical motion state.
type State string

const (
	StateStopped  State = "stopped"
	StateRunning  State = "running"
	StateBraking  State = "braking"
	StateStopping State = "stopping"
)

// StopTriggerKind distinguishes why a train is being brought to a stop.
type StopTriggerKind string

const (
	StopTriggerNone          StopTriggerKind = "none"
	StopTriggerStopCompletely StopTriggerKind = "stopCompletely"
	StopTriggerStopAndRestart StopTriggerKind = "stopAndRestart"
	StopTriggerStopTemporarily StopTriggerKind = "stopTemporarily"
)

// StopTrigger carries the restart delay when Kind is StopTriggerStopAndRestart.
type StopTrigger struct {
	Kind  StopTriggerKind
	Delay time.Duration
}

// Speed holds a train's current, requested and configured-max speed in kph.
type Speed struct {
	Current   float64
	Requested float64
	Max       float64
	Running   float64 // default running speed commanded by Start
	Braking   float64 // commanded speed while State == braking
}

// Train is the runtime state of one locomotive-hauled consist.
type Train struct {
	ID             string
	Name           string
	LocoAddress    int
	DecoderFamily  string
	BodyForward    bool // true = locomotive body faces the route's "next" sense

	BlockID   string // "" when unassigned
	Direction topology.Direction // direction of travel inside BlockID
	Position  int    // 0..block.FeedbackCount()

	RouteID        string
	RouteStepIndex int
	StartRouteIndex int

	Scheduling Scheduling
	State      State
	Stop       StopTrigger

	MaxLeadingReservedBlocks int
	TrailingLength           float64 // physical length used to size the trailing window
	RequiredTrailingSteps    int
	TrailingSteps            []reservation.TrailingStep

	Speed Speed

	// restartArmed is set by ExecuteStopInBlock when a stopAndRestart timer
	// has been scheduled by the layout controller, and cleared once it
	// fires or a stopCompletely supersedes it.
	restartArmed bool
}

// NewTrain constructs a Train at rest, unassigned to any block.
func NewTrain(id, name string, locoAddress int) *Train {
	return &Train{
		ID:                       id,
		Name:                     name,
		LocoAddress:              locoAddress,
		BodyForward:              true,
		Scheduling:               SchedulingManual,
		State:                    StateStopped,
		Stop:                     StopTrigger{Kind: StopTriggerNone},
		MaxLeadingReservedBlocks: 1,
	}
}

func (t *Train) RestartArmed() bool     { return t.restartArmed }
func (t *Train) SetRestartArmed(v bool) { t.restartArmed = v }

// IsAutomatic reports whether the train is under route-driven control.
func (t *Train) IsAutomatic() bool {
	return t.Scheduling == SchedulingAutomaticRunning || t.Scheduling == SchedulingAutomaticFinishing
}
