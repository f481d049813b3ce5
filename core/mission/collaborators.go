package mission

import (
	"context"

	"github.com/kilianp07/mtrr/core/model"
)

// Notifier forwards outcomes to the mission management tool. Deliveries are
// queued; calls never block on the network.
type Notifier interface {
	SendStatusReport(a model.Action)
	SendError(code int, message string)
	SendUpdatedStatusNotification()
}

// NopNotifier drops every notification.
type NopNotifier struct{}

func (NopNotifier) SendStatusReport(model.Action)  {}
func (NopNotifier) SendError(int, string)          {}
func (NopNotifier) SendUpdatedStatusNotification() {}

// Feeder is the surface used by the control authority.
type Feeder interface {
	StartMission(ctx context.Context, m *model.Mission) error
	RequestUpdatedStatus(ctx context.Context) error
	AbortVehiclePlan(ctx context.Context, vehicleID int, hard bool) error
	AbortMissionPlan(ctx context.Context, missionID int, hard bool) error
	EnablePeriodicEnvironmentalReport(ctx context.Context) error
	DisablePeriodicEnvironmentalReport(ctx context.Context) error
	OngoingMissionID() int
}

// Reporter is the surface used by the inbound transport.
type Reporter interface {
	ReportTask(ctx context.Context, r model.Report, missionID int)
	ReportEvent(ctx context.Context, r model.Report, missionID int)
	ReportCDT(ctx context.Context, r model.Report, missionID int)
	ReportEnvironment(ctx context.Context, sv model.StateVector, missionID int)
}
