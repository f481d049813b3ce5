// Package knowledge defines the persistence contract for missions, fleet
// membership and everything vehicles report during a mission.
package knowledge

import (
	"context"
	"time"

	"github.com/kilianp07/mtrr/core/model"
)

// TaskReport is a stored task status report.
type TaskReport struct {
	MissionID  int       `json:"mission_id"`
	VehicleID  int       `json:"vehicle_id"`
	ActionID   int       `json:"action_id"`
	Subtype    byte      `json:"subtype"`
	SeqOp      byte      `json:"seq_op"`
	Code       int       `json:"code"`
	Status     string    `json:"status"`
	EpochMS    int64     `json:"epoch_ms"`
	ReceivedAt time.Time `json:"received_at"`
}

// EventRecord is a stored vehicle event.
type EventRecord struct {
	MissionID   int       `json:"mission_id"`
	VehicleID   int       `json:"vehicle_id"`
	Subtype     byte      `json:"subtype"`
	SeqOp       byte      `json:"seq_op"`
	EpochMS     int64     `json:"epoch_ms"`
	ErrorID     int       `json:"error_id"`
	EventID     int       `json:"event_id"`
	Description string    `json:"description"`
	ReceivedAt  time.Time `json:"received_at"`
}

// Salinity is a concentration sample taken by a vehicle.
type Salinity struct {
	MissionID     int     `json:"mission_id"`
	VehicleID     int     `json:"vehicle_id"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	Depth         float64 `json:"depth"`
	Altitude      float64 `json:"altitude"`
	Concentration float64 `json:"concentration"`
	TimeMS        int64   `json:"time_ms"`
}

// Writer persists mission data.
type Writer interface {
	StoreReferenceCoordinates(ctx context.Context, missionID int, lat, lon float64) error
	StoreMission(ctx context.Context, m model.Mission) error
	StoreAssignedVehicles(ctx context.Context, missionID int, vehicles []model.Vehicle) error
	StoreTaskReport(ctx context.Context, r TaskReport) error
	StoreEvent(ctx context.Context, e EventRecord) error
	StoreStateVector(ctx context.Context, sv model.StateVector) error
	StoreSalinity(ctx context.Context, s Salinity) error
}

// Reader queries stored data.
type Reader interface {
	// AllVehicles returns every known fleet member ordered by id.
	AllVehicles(ctx context.Context) ([]model.Vehicle, error)
	TaskReports(ctx context.Context, missionID int) ([]TaskReport, error)
}

// FleetSeeder is implemented by stores that accept the configured fleet at
// startup, before any mission assigned vehicles.
type FleetSeeder interface {
	SeedFleet(ctx context.Context, vehicles []model.Vehicle) error
}

// Store is a complete knowledge store backend.
type Store interface {
	Writer
	Reader
	Close() error
}

// ApplyStateVector returns v with the pose, speed and battery of sv.
func ApplyStateVector(v model.Vehicle, sv model.StateVector) model.Vehicle {
	v.Location = model.Position{Latitude: sv.Latitude, Longitude: sv.Longitude, Altitude: sv.Altitude, Depth: sv.Depth}
	v.Orientation = model.Orientation{Pitch: sv.Pitch, Roll: sv.Roll, Yaw: sv.Yaw}
	v.CurrentSpeed = sv.Speed
	v.BatteryStatus = sv.RemainingBattery
	return v
}
