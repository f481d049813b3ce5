package model

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVehicleTypeText(t *testing.T) {
	var vt VehicleType
	require.NoError(t, vt.UnmarshalText([]byte("rov")))
	assert.Equal(t, VehicleROV, vt)
	assert.Error(t, vt.UnmarshalText([]byte("submarine")))

	b, err := json.Marshal(Vehicle{ID: 1, Type: VehicleAUV})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"type":"AUV"`)
}

func TestVehicleLabel(t *testing.T) {
	if got := (Vehicle{ID: 3, Name: "SAGA"}).Label(); got != "SAGA (3)" {
		t.Fatalf("unexpected label %q", got)
	}
	if got := (Vehicle{ID: 4}).Label(); got != "vehicle (4)" {
		t.Fatalf("unexpected label %q", got)
	}
}

func TestLoadMissionFile(t *testing.T) {
	data := `id: 42
vehicles:
  - id: 1
    name: IXN
    type: AUV
    equipment:
      - type: ACOUSTIC
  - id: 3
    name: SAGA
    type: ROV
    has_planner: true
actions:
  - id: 1
    vehicle_id: 1
    task: {type_id: 4, description: GOTO_WAYPOINT}
    area:
      - {longitude: 9.545972, latitude: 63.593722}
      - {longitude: 9.546972, latitude: 63.594722, depth: 2}
    speed: 2
    bearing: {yaw: 30}
    start_time: 10
    status: NotStarted
`
	path := filepath.Join(t.TempDir(), "mission.yaml")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	m, err := LoadMissionFile(path)
	require.NoError(t, err)
	assert.Equal(t, 42, m.ID)
	require.Len(t, m.Vehicles, 2)
	assert.Equal(t, VehicleROV, m.Vehicles[1].Type)
	assert.True(t, m.Vehicles[1].HasPlanner)
	assert.Equal(t, EquipmentAcoustic, m.Vehicles[0].Equipment[0].Type)
	require.Len(t, m.Actions, 1)
	assert.Equal(t, byte(4), m.Actions[0].Task.TypeID)
	assert.Equal(t, 2.0, m.Actions[0].Area[1].Depth)
	assert.Equal(t, TaskNotStarted, m.Actions[0].Status)

	v, ok := m.Vehicle(3)
	assert.True(t, ok)
	assert.Equal(t, "SAGA", v.Name)
}

func TestLoadMissionFileMissing(t *testing.T) {
	_, err := LoadMissionFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
