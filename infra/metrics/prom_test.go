package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/mtrr/core/events"
	coremetrics "github.com/kilianp07/mtrr/core/metrics"
	"github.com/kilianp07/mtrr/core/model"
	"github.com/kilianp07/mtrr/infra/logger"
	"github.com/kilianp07/mtrr/internal/eventbus"
)

func TestPromSinkRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	assert.Equal(t, -1.0, testutil.ToFloat64(sink.active))
	require.NoError(t, sink.RecordMission(events.MissionEvent{MissionID: 5, State: "started"}))
	assert.Equal(t, 5.0, testutil.ToFloat64(sink.active))

	require.NoError(t, sink.RecordDispatch(events.DispatchEvent{VehicleID: 1, Task: "HOVER", Channel: "IP"}))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.dispatch.WithLabelValues("1", "HOVER", "IP", "ok")))

	require.NoError(t, sink.RecordTaskReport(events.TaskReportEvent{VehicleID: 1, Status: "Finished", Outcome: "accepted", Latency: 2 * time.Second}))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.reports.WithLabelValues("1", "Finished", "accepted")))
	assert.Equal(t, 1, testutil.CollectAndCount(sink.latency))

	require.NoError(t, sink.RecordStateVector(events.StateVectorEvent{State: model.StateVector{VehicleID: 1, RemainingBattery: 42}, Time: time.Unix(100, 0)}))
	assert.Equal(t, 42.0, testutil.ToFloat64(sink.battery.WithLabelValues("1")))
	assert.Equal(t, 100.0, testutil.ToFloat64(sink.lastState.WithLabelValues("1")))

	require.NoError(t, sink.RecordMission(events.MissionEvent{MissionID: 5, State: "finished"}))
	assert.Equal(t, -1.0, testutil.ToFloat64(sink.active))
}

func TestPromSinkReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	second, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	require.NoError(t, second.RecordDiscovery(events.DiscoveryEvent{Subtype: "SET_NEIGHBOURS", Success: true}))
	assert.Equal(t, 1.0, testutil.ToFloat64(first.cdt.WithLabelValues("SET_NEIGHBOURS", "true")))
}

func TestEventCollectorForwardsToSink(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	bus := eventbus.NewTyped[events.Event]()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		RunEventCollector(ctx, bus, coremetrics.NewMultiSink(sink, coremetrics.NopSink{}), logger.NopLogger{})
		close(done)
	}()

	require.Eventually(t, func() bool { return bus.Subscribers() == 1 }, time.Second, 5*time.Millisecond)
	bus.Publish(events.MissionEvent{MissionID: 9, State: "started"})
	bus.Publish(events.DiscoveryEvent{Subtype: "START_DISCOVERY", Success: false})

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(sink.cdt.WithLabelValues("START_DISCOVERY", "false")) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 9.0, testutil.ToFloat64(sink.active))

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("collector did not stop")
	}
}
