package mqtt

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/mtrr/core/model"
	coremqtt "github.com/kilianp07/mtrr/core/mqtt"
	"github.com/kilianp07/mtrr/infra/logger"
)

type recReporter struct {
	mu    sync.Mutex
	calls []string
	last  model.Report
	sv    model.StateVector
	mid   int
}

func (r *recReporter) record(kind string, rep model.Report, mid int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, kind)
	r.last = rep
	r.mid = mid
}

func (r *recReporter) ReportTask(_ context.Context, rep model.Report, mid int) {
	r.record("task", rep, mid)
}
func (r *recReporter) ReportEvent(_ context.Context, rep model.Report, mid int) {
	r.record("event", rep, mid)
}
func (r *recReporter) ReportCDT(_ context.Context, rep model.Report, mid int) {
	r.record("cdt", rep, mid)
}
func (r *recReporter) ReportEnvironment(_ context.Context, sv model.StateVector, mid int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "environment")
	r.sv = sv
	r.mid = mid
}

type recSubscriber struct{ topics []string }

func (s *recSubscriber) Subscribe(topic string, _ Handler) error {
	s.topics = append(s.topics, topic)
	return nil
}

func TestRouterBindsEveryReportTopic(t *testing.T) {
	sub := &recSubscriber{}
	r := NewRouter(context.Background(), &recReporter{}, nil)
	require.NoError(t, r.Bind(sub))
	assert.ElementsMatch(t, []string{
		"REPORT_CDT",
		"REPORT_TASK_IP", "REPORT_EVENTS_IP", "REPORT_ENVIRONMENT_IP",
		"REPORT_TASK_ACOUSTIC", "REPORT_EVENTS_ACOUSTIC", "REPORT_ENVIRONMENT_ACOUSTIC",
	}, sub.topics)
}

func TestRouterDispatchesByTopic(t *testing.T) {
	rep := &recReporter{}
	r := NewRouter(context.Background(), rep, logger.NopLogger{})

	r.Handle(coremqtt.ReportTaskTopic(coremqtt.ChannelAcoustic),
		[]byte(`{"mission_id":4,"type":1,"subtype":5,"vid":2,"seq_op":9,"status":2,"epoch_ms":1700000000000}`))
	require.Equal(t, []string{"task"}, rep.calls)
	assert.Equal(t, 4, rep.mid)
	assert.Equal(t, byte(2), rep.last.VehicleID)
	assert.Equal(t, byte(9), rep.last.SeqOp)
	assert.Equal(t, 2, rep.last.Status)

	r.Handle(coremqtt.ReportEventsTopic(coremqtt.ChannelIP), []byte(`{"mission_id":4,"type":3,"vid":1,"event_id":12,"description":"leak"}`))
	assert.Equal(t, "leak", rep.last.Description)

	r.Handle(coremqtt.TopicReportCDT, []byte(`{"type":4,"subtype":6,"result":0}`))
	r.Handle(coremqtt.ReportEnvironmentTopic(coremqtt.ChannelIP), []byte(`{"mission_id":4,"vid":3,"depth":12.5,"remaining_battery":71}`))
	assert.Equal(t, []string{"task", "event", "cdt", "environment"}, rep.calls)
	assert.Equal(t, 3, rep.sv.VehicleID)
	assert.Equal(t, 12.5, rep.sv.Depth)
}

func TestRouterDropsBadPayloads(t *testing.T) {
	rep := &recReporter{}
	r := NewRouter(context.Background(), rep, logger.NopLogger{})
	r.Handle(coremqtt.ReportTaskTopic(coremqtt.ChannelIP), []byte("not json"))
	r.Handle("SOMETHING_ELSE", []byte(`{}`))
	r.Handle(coremqtt.ReportEnvironmentTopic(coremqtt.ChannelIP), []byte("{"))
	assert.Empty(t, rep.calls)
}
