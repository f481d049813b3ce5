package mission

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/mtrr/infra/logger"
)

func TestLifecycleTransitions(t *testing.T) {
	ctx := context.Background()
	l := newLifecycle(logger.NopLogger{})
	assert.Equal(t, StateIdle, l.current())
	assert.False(t, l.end(ctx, EndFinished))

	require.NoError(t, l.start(ctx))
	assert.True(t, l.active())
	assert.Error(t, l.start(ctx))

	assert.True(t, l.end(ctx, EndAborted))
	assert.Equal(t, StateIdle, l.current())
	assert.False(t, l.end(ctx, EndAborted))

	require.NoError(t, l.start(ctx))
	assert.True(t, l.end(ctx, EndOther))
	assert.Equal(t, StateIdle, l.current())
}

func TestEndReasonString(t *testing.T) {
	assert.Equal(t, "FINISHED", EndFinished.String())
	assert.Equal(t, "ABORTED", EndAborted.String())
	assert.Equal(t, "OTHER", EndOther.String())
	assert.Equal(t, "OTHER", EndReason(9).String())
}

func TestResult(t *testing.T) {
	assert.Equal(t, "OK", Result(nil))
	assert.Equal(t, "NOK: boom", Result(errors.New("boom")))
	err := reject(ErrUnknownVehicle, "Vehicle %d is not active", 4)
	assert.Equal(t, "NOK: Vehicle 4 is not active", Result(err))
	assert.True(t, errors.Is(err, ErrUnknownVehicle))
}

func TestSummaryFinalize(t *testing.T) {
	s := &Summary{MissionID: 1}
	s.finalize()
	assert.Zero(t, s.MeanLatency)

	s.observe(2 * time.Second)
	s.finalize()
	assert.Equal(t, 2*time.Second, s.MeanLatency)
	assert.Zero(t, s.StdDevLatency)

	s.observe(4 * time.Second)
	s.finalize()
	assert.Equal(t, 3*time.Second, s.MeanLatency)
	assert.InDelta(t, 1.414, s.StdDevLatency.Seconds(), 0.001)
	assert.Equal(t, 2, s.Completed)
	assert.EqualValues(t, 3000, s.fields()["mean_latency_ms"])
}

func TestMustRegisterMetricsOnCustomRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	ResetMetrics(reg)
	framesPublished.WithLabelValues("task", "IP").Inc()
	reportsProcessed.WithLabelValues("task", "accepted").Inc()
	missionsEnded.WithLabelValues("FINISHED").Inc()
	discoveryRounds.WithLabelValues("wait", "ok").Inc()
	actionLatency.Observe(1)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	for _, n := range []string{
		"mtrr_frames_published_total",
		"mtrr_reports_total",
		"mtrr_missions_ended_total",
		"mtrr_discovery_rounds_total",
		"mtrr_awaiting_actions",
		"mtrr_action_completion_seconds",
	} {
		if !names[n] {
			t.Fatalf("metric %s not registered", n)
		}
	}
	assert.Panics(t, func() { MustRegisterMetrics(reg) })
}
