package model

import (
	"fmt"
	"strings"
)

// VehicleType classifies a vehicle by its links. AUVs are reachable over the
// acoustic channel, ROVs are tethered and IP only.
type VehicleType int

const (
	VehicleAUV VehicleType = iota
	VehicleROV
	VehicleUSV
	VehicleOther
)

var vehicleTypeNames = map[VehicleType]string{
	VehicleAUV:   "AUV",
	VehicleROV:   "ROV",
	VehicleUSV:   "USV",
	VehicleOther: "OTHER",
}

func (t VehicleType) String() string {
	if s, ok := vehicleTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("VehicleType(%d)", int(t))
}

// MarshalText encodes the type by name.
func (t VehicleType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// UnmarshalText accepts the type name, case insensitive.
func (t *VehicleType) UnmarshalText(b []byte) error {
	name := strings.ToUpper(strings.TrimSpace(string(b)))
	for k, v := range vehicleTypeNames {
		if v == name {
			*t = k
			return nil
		}
	}
	return fmt.Errorf("unknown vehicle type %q", string(b))
}

// EquipmentType identifies a payload carried by a vehicle or required by a task.
type EquipmentType int

const (
	EquipmentCamera EquipmentType = iota
	EquipmentH2S
	EquipmentSonar
	EquipmentLight
	EquipmentAcoustic
	EquipmentOther
)

var equipmentNames = map[EquipmentType]string{
	EquipmentCamera:   "CAMERA",
	EquipmentH2S:      "H2S",
	EquipmentSonar:    "SONAR",
	EquipmentLight:    "LIGHT",
	EquipmentAcoustic: "ACOUSTIC",
	EquipmentOther:    "OTHER",
}

func (e EquipmentType) String() string {
	if s, ok := equipmentNames[e]; ok {
		return s
	}
	return fmt.Sprintf("EquipmentType(%d)", int(e))
}

func (e EquipmentType) MarshalText() ([]byte, error) { return []byte(e.String()), nil }

func (e *EquipmentType) UnmarshalText(b []byte) error {
	name := strings.ToUpper(strings.TrimSpace(string(b)))
	for k, v := range equipmentNames {
		if v == name {
			*e = k
			return nil
		}
	}
	return fmt.Errorf("unknown equipment type %q", string(b))
}

// Equipment is one item mounted on a vehicle.
type Equipment struct {
	Type        EquipmentType `json:"type" yaml:"type"`
	ID          int           `json:"id" yaml:"id"`
	Description string        `json:"description" yaml:"description"`
}

// Vehicle is a fleet member taking part in a mission. Kinematic and battery
// attributes are carried for the knowledge store and not interpreted here.
type Vehicle struct {
	ID             int         `json:"id" yaml:"id"`
	Name           string      `json:"name" yaml:"name"`
	Type           VehicleType `json:"type" yaml:"type"`
	HasPlanner     bool        `json:"has_planner" yaml:"has_planner"`
	Equipment      []Equipment `json:"equipment,omitempty" yaml:"equipment,omitempty"`
	Location       Position    `json:"location" yaml:"location"`
	Orientation    Orientation `json:"orientation" yaml:"orientation"`
	MaxSpeed       float64     `json:"max_speed" yaml:"max_speed"`
	CurrentSpeed   float64     `json:"current_speed" yaml:"current_speed"`
	MaxBattery     float64     `json:"max_battery" yaml:"max_battery"`
	BatteryStatus  float64     `json:"battery_status" yaml:"battery_status"`
	Consumption    float64     `json:"consumption" yaml:"consumption"`
	SafetyDistance float64     `json:"safety_distance" yaml:"safety_distance"`
}

// IsAUV reports whether the vehicle is reachable over the acoustic channel.
func (v Vehicle) IsAUV() bool { return v.Type == VehicleAUV }

// IsROV reports whether the vehicle is tethered.
func (v Vehicle) IsROV() bool { return v.Type == VehicleROV }

// Label returns "name (id)" for log lines.
func (v Vehicle) Label() string {
	if v.Name == "" {
		return fmt.Sprintf("vehicle (%d)", v.ID)
	}
	return fmt.Sprintf("%s (%d)", v.Name, v.ID)
}
