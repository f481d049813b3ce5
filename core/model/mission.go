package model

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Position is a geographic point. Longitude and latitude are decimal degrees,
// altitude and depth are meters.
type Position struct {
	Longitude float64 `json:"longitude" yaml:"longitude"`
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Altitude  float64 `json:"altitude" yaml:"altitude"`
	Depth     float64 `json:"depth" yaml:"depth"`
}

// Orientation holds attitude angles in degrees.
type Orientation struct {
	Pitch float64 `json:"pitch" yaml:"pitch"`
	Roll  float64 `json:"roll" yaml:"roll"`
	Yaw   float64 `json:"yaw" yaml:"yaw"`
}

// TaskStatus is the lifecycle status of an action.
type TaskStatus int

const (
	TaskNotStarted TaskStatus = iota
	TaskRunning
	TaskFinished
)

var taskStatusNames = map[TaskStatus]string{
	TaskNotStarted: "NotStarted",
	TaskRunning:    "Running",
	TaskFinished:   "Finished",
}

func (s TaskStatus) String() string {
	if n, ok := taskStatusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("TaskStatus(%d)", int(s))
}

func (s TaskStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *TaskStatus) UnmarshalText(b []byte) error {
	name := strings.TrimSpace(string(b))
	for k, v := range taskStatusNames {
		if strings.EqualFold(v, name) {
			*s = k
			return nil
		}
	}
	return fmt.Errorf("unknown task status %q", string(b))
}

// Task describes a task type. TypeID is the wire subtype of the task frame.
type Task struct {
	TypeID            byte            `json:"type_id" yaml:"type_id"`
	Description       string          `json:"description" yaml:"description"`
	RequiredEquipment []EquipmentType `json:"required_equipment,omitempty" yaml:"required_equipment,omitempty"`
	Duration          float64         `json:"duration,omitempty" yaml:"duration,omitempty"`
}

// Action is one task instance assigned to a vehicle. ParentID 0 means the
// action is top level; children are primitive expansions of their parent.
type Action struct {
	ID        int         `json:"id" yaml:"id"`
	Task      Task        `json:"task" yaml:"task"`
	Area      []Position  `json:"area" yaml:"area"`
	Speed     float64     `json:"speed" yaml:"speed"`
	Altitude  float64     `json:"altitude" yaml:"altitude"`
	Range     float64     `json:"range" yaml:"range"`
	TimeLapse float64     `json:"time_lapse" yaml:"time_lapse"`
	Bearing   Orientation `json:"bearing" yaml:"bearing"`
	StartTime int64       `json:"start_time" yaml:"start_time"`
	EndTime   int64       `json:"end_time" yaml:"end_time"`
	Status    TaskStatus  `json:"status" yaml:"status"`
	VehicleID int         `json:"vehicle_id" yaml:"vehicle_id"`
	ParentID  int         `json:"parent_id" yaml:"parent_id"`
}

// Label returns "description (id)" for log lines.
func (a Action) Label() string {
	return fmt.Sprintf("%s (%d)", a.Task.Description, a.ID)
}

// Mission is a plan submitted by the control authority.
type Mission struct {
	ID             int        `json:"id" yaml:"id"`
	Name           string     `json:"name,omitempty" yaml:"name,omitempty"`
	Actions        []Action   `json:"actions" yaml:"actions"`
	Vehicles       []Vehicle  `json:"vehicles" yaml:"vehicles"`
	NavigationArea []Position `json:"navigation_area,omitempty" yaml:"navigation_area,omitempty"`
}

// Vehicle returns the vehicle with the given id.
func (m Mission) Vehicle(id int) (Vehicle, bool) {
	for _, v := range m.Vehicles {
		if v.ID == id {
			return v, true
		}
	}
	return Vehicle{}, false
}

// LoadMissionFile reads a mission plan from a YAML (or JSON, which YAML
// accepts) document.
func LoadMissionFile(path string) (*Mission, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mission: %w", err)
	}
	var m Mission
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decode mission %s: %w", path, err)
	}
	return &m, nil
}
