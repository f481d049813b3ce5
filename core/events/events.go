package events

import (
	"time"

	"github.com/kilianp07/mtrr/core/model"
)

// Event is implemented by every type published on the mission bus.
type Event interface {
	Kind() string
}

// MissionEvent is published on every lifecycle transition. State is one of
// "started", "finished", "aborted" or "ended".
type MissionEvent struct {
	MissionID int
	State     string
	Vehicles  int
	Actions   int
	Time      time.Time
}

func (MissionEvent) Kind() string { return "mission" }

// DispatchEvent is published for each task frame sent on a channel.
type DispatchEvent struct {
	MissionID int
	VehicleID int
	ActionID  int
	Task      string
	Channel   string
	SeqOp     byte
	Err       error
	Time      time.Time
}

func (DispatchEvent) Kind() string { return "dispatch" }

// TaskReportEvent describes how a task report was handled. Outcome is
// "accepted", "duplicate", "stale", "unsupported" or "error". Latency is the
// time since dispatch for Finished reports, zero otherwise.
type TaskReportEvent struct {
	MissionID int
	VehicleID int
	ActionID  int
	Code      int
	Status    string
	Outcome   string
	Latency   time.Duration
	Time      time.Time
}

func (TaskReportEvent) Kind() string { return "task_report" }

// DiscoveryEvent is published for each CDT response.
type DiscoveryEvent struct {
	Subtype string
	Success bool
	Time    time.Time
}

func (DiscoveryEvent) Kind() string { return "discovery" }

// StateVectorEvent carries a vehicle state report.
type StateVectorEvent struct {
	State model.StateVector
	Time  time.Time
}

func (StateVectorEvent) Kind() string { return "state_vector" }

// Publisher accepts events. eventbus.TypedBus[Event] implements it.
type Publisher interface {
	Publish(Event)
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(Event) {}
