package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/mtrr/core/events"
	coremetrics "github.com/kilianp07/mtrr/core/metrics"
	"github.com/kilianp07/mtrr/core/model"
)

type bodyRecorder struct {
	mu     sync.Mutex
	bodies []string
}

func (b *bodyRecorder) server(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		b.mu.Lock()
		b.bodies = append(b.bodies, strings.TrimSpace(string(data)))
		b.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func (b *bodyRecorder) last() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.bodies) == 0 {
		return ""
	}
	return b.bodies[len(b.bodies)-1]
}

func lineProtocol(p *write.Point) string {
	return strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
}

func TestInfluxSinkRecordTaskReport(t *testing.T) {
	rec := &bodyRecorder{}
	srv := rec.server(t)
	sink := NewInfluxSink(InfluxConfig{URL: srv.URL + "/api/v2/write", Token: "tok", Org: "org", Bucket: "bucket"})
	defer sink.Close()

	now := time.Now()
	ev := events.TaskReportEvent{
		MissionID: 7, VehicleID: 2, ActionID: 11, Code: 2,
		Status: "Finished", Outcome: "accepted", Latency: 1500 * time.Millisecond, Time: now,
	}
	require.NoError(t, sink.RecordTaskReport(ev))

	p := write.NewPointWithMeasurement("task_report").
		AddTag("mission_id", "7").
		AddTag("vehicle_id", "2").
		AddTag("status", "Finished").
		AddTag("outcome", "accepted").
		AddField("action_id", 11).
		AddField("code", 2).
		AddField("latency_ms", 1500.0).
		SetTime(now)
	if rec.last() != lineProtocol(p) {
		t.Fatalf("unexpected body: %s", rec.last())
	}
}

func TestInfluxSinkRecordDispatchAndState(t *testing.T) {
	rec := &bodyRecorder{}
	srv := rec.server(t)
	sink := NewInfluxSink(InfluxConfig{URL: srv.URL, Org: "org", Bucket: "bucket"})
	defer sink.Close()

	now := time.Now()
	require.NoError(t, sink.RecordDispatch(events.DispatchEvent{
		MissionID: 1, VehicleID: 3, ActionID: 4, Task: "HOVER", Channel: "IP", SeqOp: 9,
		Err: errors.New("broker down"), Time: now,
	}))
	require.Contains(t, rec.last(), `error="broker down"`)
	require.Contains(t, rec.last(), "task_dispatch,")

	require.NoError(t, sink.RecordStateVector(events.StateVectorEvent{
		State: model.StateVector{MissionID: 1, VehicleID: 3, Depth: 12.3456, RemainingBattery: 80},
		Time:  now,
	}))
	require.Contains(t, rec.last(), "depth=12.346")
	require.Contains(t, rec.last(), "battery=80")
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(InfluxConfig{URL: srv.URL + "/api/v2/write", Token: "tok", Org: "org", Bucket: "bucket"})
	if _, ok := sink.(coremetrics.NopSink); !ok {
		t.Fatalf("expected NopSink on failing health check, got %T", sink)
	}
	if !called {
		t.Fatalf("health endpoint not queried")
	}
}
