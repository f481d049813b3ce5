package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/mtrr/core/discovery"
	"github.com/kilianp07/mtrr/core/mission"
	"github.com/kilianp07/mtrr/infra/logger"
)

func writeFile(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

//nolint:gocyclo
func TestLoad(t *testing.T) {
	path := writeFile(t, "config.yaml", `mqtt:
  broker: "tcp://localhost:1883"
  client_id: "cli"
  username: "user"
  password: "pass"
  use_tls: false
  qos:
    task: 2
mission:
  state_vector:
    timeout_ms: 3000
  neighbour_discovery:
    style: wait
  assignment_mode: full_sequence
api:
  listen: ":9000"
  token: "secret"
mmt:
  url: "http://mmt:8081"
knowledge:
  type: sqlite
  conf:
    path: "/tmp/mtrr.db"
dedup:
  backend: redis
  redis:
    addr: "localhost:6379"
    ttl: 1h
metrics:
  sinks:
    - type: "nop"
fleet:
  - id: 1
    name: "auv-1"
  - id: 2
    name: "rov-2"
    type: 1
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"broker", cfg.MQTT.Broker, "tcp://localhost:1883"},
		{"client_id", cfg.MQTT.ClientID, "cli"},
		{"qos.task", cfg.MQTT.QoS["task"], byte(2)},
		{"max_retries default", cfg.MQTT.MaxRetries, 3},
		{"sv timeout", cfg.Mission.StateVector.TimeoutMS, 3000},
		{"api.listen", cfg.API.Listen, ":9000"},
		{"api.token", cfg.API.Token, "secret"},
		{"mmt.url", cfg.MMT.URL, "http://mmt:8081"},
		{"mmt retry default", cfg.MMT.RetryDelayMS, 1000},
		{"knowledge", cfg.Knowledge.Type, "sqlite"},
		{"knowledge path", cfg.Knowledge.Conf["path"], "/tmp/mtrr.db"},
		{"dedup", cfg.Dedup.Backend, "redis"},
		{"dedup ttl", cfg.Dedup.Redis.TTL, time.Hour},
		{"metrics_sink", len(cfg.Metrics.Sinks) == 1 && cfg.Metrics.Sinks[0].Type == "nop", true},
		{"fleet", len(cfg.Fleet), 2},
		{"fleet name", cfg.Fleet[1].Name, "rov-2"},
		{"fleet rov", cfg.Fleet[1].IsROV(), true},
		{"path", cfg.Path, path},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s: got %v want %v", c.name, c.got, c.want)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeFile(t, "config.json", `{}`))
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Knowledge.Type)
	assert.Equal(t, "memory", cfg.Dedup.Backend)
	assert.Equal(t, ":8080", cfg.API.Listen)
	assert.Equal(t, mission.DefaultSettings(), cfg.Mission.Settings())
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("K_MQTT__BROKER", "tcp://broker:1883")
	t.Setenv("K_MISSION__ABORT_DELAY_MS", "250")
	cfg, err := Load(writeFile(t, "config.yaml", "mqtt:\n  broker: tcp://localhost:1883\n"))
	require.NoError(t, err)
	assert.Equal(t, "tcp://broker:1883", cfg.MQTT.Broker)
	assert.Equal(t, 250*time.Millisecond, cfg.Mission.Settings().AbortDelay)
}

func TestLoadRejects(t *testing.T) {
	cases := map[string]string{
		"format":     "",
		"style":      "mission:\n  neighbour_discovery:\n    style: shout\n",
		"assignment": "mission:\n  assignment_mode: random\n",
		"dedup":      "dedup:\n  backend: etcd\n",
		"redis addr": "dedup:\n  backend: redis\n",
		"fleet":      "fleet:\n  - id: 1\n  - id: 1\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			file := "config.yaml"
			if name == "format" {
				file = "config.toml"
			}
			_, err := Load(writeFile(t, file, data))
			assert.Error(t, err)
		})
	}
}

func TestMissionSettings(t *testing.T) {
	lat, notify := 10.5, false
	var mc MissionConfig
	mc.StateVector.TimeoutMS = 1000
	mc.StateVector.RefreshTime.IP = 2
	mc.GetNeighbours.Tryouts = 4
	mc.StartDiscovery.TimeoutMS = 20000
	mc.CDT.Available = true
	mc.Coords.Reference.Latitude = &lat
	mc.NeighbourDiscovery.Style = "wait"
	mc.Do.GetNeighbours = true
	mc.NotifyStatus = &notify

	s := mc.Settings()
	assert.Equal(t, time.Second, s.Discovery.StateVectorTimeout)
	assert.Equal(t, 20*time.Second, s.Discovery.StartDiscoveryTimeout)
	assert.Equal(t, 5*time.Second, s.Discovery.GetNeighboursTimeout)
	assert.Equal(t, 4, s.Discovery.GetNeighboursTryouts)
	assert.Equal(t, discovery.StyleWait, s.Discovery.Style)
	assert.True(t, s.Discovery.DoGetNeighbours)
	assert.EqualValues(t, 2, s.RefreshIP)
	assert.EqualValues(t, 60, s.RefreshAcoustic)
	assert.True(t, s.CDTAvailable)
	assert.Equal(t, 10.5, s.ReferenceLatitude)
	assert.Equal(t, 9.545972, s.ReferenceLongitude)
	assert.Equal(t, mission.WaitToComplete, s.Assignment)
	assert.False(t, s.NotifyStatus)
}

func TestMissionSourceReload(t *testing.T) {
	path := writeFile(t, "config.yaml", "mission:\n  assignment_mode: full_sequence\n")
	src := NewMissionSource(path, logger.NopLogger{})
	assert.Equal(t, mission.FullSequence, src.Reload().Assignment)

	require.NoError(t, os.WriteFile(path, []byte("mission:\n  abort_delay_ms: 100\n"), 0o644))
	s := src.Reload()
	assert.Equal(t, mission.WaitToComplete, s.Assignment)
	assert.Equal(t, 100*time.Millisecond, s.AbortDelay)

	require.NoError(t, os.Remove(path))
	assert.Equal(t, mission.DefaultSettings(), src.Reload())
}
