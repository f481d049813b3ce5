package cmd

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/mtrr/config"
	"github.com/kilianp07/mtrr/core/codec"
	"github.com/kilianp07/mtrr/core/mission"
	"github.com/kilianp07/mtrr/core/model"
)

func TestInspectPlan(t *testing.T) {
	m := &model.Mission{
		ID:   3,
		Name: "harbour",
		Vehicles: []model.Vehicle{
			{ID: 1, Name: "auv", Type: model.VehicleAUV},
		},
		Actions: []model.Action{
			{ID: 10, VehicleID: 1, Task: model.Task{TypeID: codec.TaskHover, Description: "HOVER"}, Area: []model.Position{{Latitude: 63.6, Longitude: 9.55}}},
		},
	}
	var buf bytes.Buffer
	require.NoError(t, inspectPlan(&buf, m, mission.DefaultSettings()))
	out := buf.String()
	assert.Contains(t, out, `mission 3 "harbour": 1 actions, 1 vehicles, assignment wait_to_complete`)
	assert.Contains(t, out, "HOVER (10)")
	if !strings.Contains(out, "seq 1") {
		t.Fatalf("missing sequence number in %q", out)
	}
}

func TestAPIClientCurrentMission(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"mission_id": 5}`))
	}))
	defer srv.Close()

	id, err := newAPIClient(srv.URL+"/", "tok").currentMission(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, id)

	err = newAPIClient(srv.URL, "").do(context.Background(), http.MethodPost, "/api/missions", map[string]int{"id": 1}, nil)
	assert.Error(t, err)

	resolve := apiMission(newAPIClient("http://127.0.0.1:1", ""), 7)
	assert.Equal(t, 7, resolve(context.Background()))
}

func TestStartupFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "mqtt:\n  broker: tcp://broker:1883\nmission:\n  assignment_mode: full_sequence\n  cdt:\n    available: true\napi:\n  token: secret\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := config.Load(path)
	require.NoError(t, err)

	f := startupFields(cfg)
	assert.Equal(t, path, f["config"])
	assert.Equal(t, "tcp://broker:1883", f["broker"])
	assert.Equal(t, ":8080", f["api"])
	assert.Equal(t, true, f["api_auth"])
	assert.Equal(t, "disabled", f["mmt"])
	assert.Equal(t, "memory", f["knowledge"])
	assert.Equal(t, "full_sequence", f["assignment"])
	assert.Equal(t, "sleep", f["discovery"])
	assert.Equal(t, true, f["cdt"])
	assert.Equal(t, 0, f["fleet"])
}
