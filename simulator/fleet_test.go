package simulator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/mtrr/core/codec"
	"github.com/kilianp07/mtrr/core/model"
	coremqtt "github.com/kilianp07/mtrr/core/mqtt"
	"github.com/kilianp07/mtrr/infra/logger"
	"github.com/kilianp07/mtrr/infra/mqtt"
)

type published struct {
	topic string
	v     any
}

type fakeTransport struct {
	mu       sync.Mutex
	handlers map[string]mqtt.Handler
	out      []published
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{handlers: map[string]mqtt.Handler{}}
}

func (f *fakeTransport) Subscribe(topic string, h mqtt.Handler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[topic] = h
	return nil
}

func (f *fakeTransport) PublishJSON(_ context.Context, topic string, v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.out = append(f.out, published{topic, v})
	return nil
}

func (f *fakeTransport) deliver(t *testing.T, topic string, fr model.Frame) {
	t.Helper()
	f.mu.Lock()
	h, ok := f.handlers[topic]
	f.mu.Unlock()
	require.True(t, ok, "no handler for %s", topic)
	h(topic, codec.Marshal(fr))
}

func (f *fakeTransport) on(topic string) []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []any
	for _, p := range f.out {
		if p.topic == topic {
			out = append(out, p.v)
		}
	}
	return out
}

func (f *fakeTransport) subscribed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers)
}

func startFleet(t *testing.T, cfg Config) (*Fleet, *fakeTransport) {
	t.Helper()
	tr := newFakeTransport()
	cfg.Mission = StaticMission(9)
	f, err := NewFleet(cfg, tr, AutoReply{}, logger.NopLogger{})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = f.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	// 2 environment, 2 events, CDT, plus task and notify per link per vehicle.
	want := 5
	for _, v := range f.Vehicles() {
		if v.IsROV() {
			want += 2
		} else {
			want += 4
		}
	}
	require.Eventually(t, func() bool { return tr.subscribed() == want }, time.Second, 5*time.Millisecond)
	return f, tr
}

func taskReports(tr *fakeTransport) []model.Report {
	var out []model.Report
	for _, v := range tr.on(coremqtt.ReportTaskTopic(coremqtt.ChannelIP)) {
		out = append(out, v.(model.Report))
	}
	return out
}

func TestGenerateFleet(t *testing.T) {
	vs := GenerateFleet(4, 0.5, model.Position{Latitude: 63.5})
	require.Len(t, vs, 4)
	assert.Equal(t, 1, vs[0].ID)
	assert.True(t, vs[1].IsAUV())
	assert.True(t, vs[2].IsROV())
	assert.Equal(t, "ROV-4", vs[3].Name)
	assert.Equal(t, 63.5, vs[3].Location.Latitude)
	assert.Nil(t, GenerateFleet(0, 1, model.Position{}))
}

func TestNewFleetRejects(t *testing.T) {
	_, err := NewFleet(Config{DropRate: 2}, newFakeTransport(), nil, logger.NopLogger{})
	assert.Error(t, err)
	_, err = NewFleet(Config{Vehicles: []model.Vehicle{{ID: 1}, {ID: 1}}}, newFakeTransport(), nil, logger.NopLogger{})
	assert.Error(t, err)
}

func TestTaskRunsOnceAndCompletes(t *testing.T) {
	f, tr := startFleet(t, Config{Count: 2, AUVShare: 0.5, TaskDuration: 10 * time.Millisecond, DrainPerTask: 5})
	fr := model.Frame{Type: codec.TypeTask, Subtype: codec.TaskHover, VehicleID: 1, SeqOp: 4}
	tr.deliver(t, coremqtt.TaskTopic(coremqtt.ChannelIP, 1), fr)
	tr.deliver(t, coremqtt.TaskTopic(coremqtt.ChannelAcoustic, 1), fr)

	require.Eventually(t, func() bool { return len(taskReports(tr)) == 2 }, time.Second, 5*time.Millisecond)
	reps := taskReports(tr)
	assert.Equal(t, codec.ReportRunning, reps[0].Status)
	assert.Equal(t, codec.ReportCompleted, reps[1].Status)
	assert.Equal(t, 9, reps[1].MissionID)
	assert.Equal(t, byte(4), reps[1].SeqOp)
	assert.Equal(t, codec.TaskHover, reps[1].Subtype)
	assert.Equal(t, 95.0, f.vehicles[1].Battery.Remaining())

	time.Sleep(30 * time.Millisecond)
	assert.Len(t, taskReports(tr), 2)
}

func TestAbortReportsRunningTask(t *testing.T) {
	f, tr := startFleet(t, Config{Count: 1, TaskDuration: time.Hour})
	tr.deliver(t, coremqtt.TaskTopic(coremqtt.ChannelIP, 1), model.Frame{Type: codec.TypeTask, Subtype: codec.TaskWait, VehicleID: 1, SeqOp: 1})
	tr.deliver(t, coremqtt.TaskTopic(coremqtt.ChannelIP, 1), model.Frame{Type: codec.TypeTask, Subtype: codec.TaskHover, VehicleID: 1, SeqOp: 2})
	require.Eventually(t, func() bool { return len(taskReports(tr)) == 1 }, time.Second, 5*time.Millisecond)

	tr.deliver(t, coremqtt.NotifyTopic(coremqtt.ChannelIP, 1), codec.Notification(1, 3, false))
	require.Eventually(t, func() bool { return len(taskReports(tr)) == 2 }, time.Second, 5*time.Millisecond)
	last := taskReports(tr)[1]
	assert.Equal(t, codec.ReportAborted, last.Status)
	assert.Equal(t, codec.TaskWait, last.Subtype)
	require.Eventually(t, func() bool { return !f.vehicles[1].busy() }, time.Second, 5*time.Millisecond)
}

func TestStateVectorsAndCDT(t *testing.T) {
	_, tr := startFleet(t, Config{Count: 2, AUVShare: 0.5})

	tr.deliver(t, coremqtt.EnvironmentTopic(coremqtt.ChannelIP), codec.StateVectorRequest(2, 7, 5))
	tr.deliver(t, coremqtt.EnvironmentTopic(coremqtt.ChannelAcoustic), codec.StateVectorRequest(2, 8, 60))
	tr.deliver(t, coremqtt.EnvironmentTopic(coremqtt.ChannelAcoustic), codec.StateVectorRequest(1, 9, 60))
	tr.deliver(t, coremqtt.EnvironmentTopic(coremqtt.ChannelAcoustic), model.Frame{})

	ip := tr.on(coremqtt.ReportEnvironmentTopic(coremqtt.ChannelIP))
	require.Len(t, ip, 1)
	sv := ip[0].(model.StateVector)
	assert.Equal(t, 2, sv.VehicleID)
	assert.Equal(t, byte(7), sv.SeqOp)
	assert.Equal(t, 100.0, sv.RemainingBattery)
	assert.Len(t, tr.on(coremqtt.ReportEnvironmentTopic(coremqtt.ChannelAcoustic)), 2)

	tr.deliver(t, coremqtt.TopicCDT, codec.GetNeighbours(11))
	cdt := tr.on(coremqtt.TopicReportCDT)
	require.Len(t, cdt, 1)
	r := cdt[0].(model.Report)
	assert.Equal(t, codec.SubtypeGetNeighbours, r.Subtype)
	assert.Equal(t, byte(11), r.SeqOp)
	assert.Zero(t, r.Result)
}

func TestReplyStrategies(t *testing.T) {
	ctx := context.Background()
	sent := 0
	NewRandomReply(0, 1, 1).Reply(ctx, func() { sent++ })
	assert.Zero(t, sent)
	NewRandomReply(0, 0, 1).Reply(ctx, func() { sent++ })
	AutoReply{Delay: time.Millisecond}.Reply(ctx, func() { sent++ })
	assert.Equal(t, 2, sent)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	AutoReply{Delay: time.Hour}.Reply(cancelled, func() { sent++ })
	assert.Equal(t, 2, sent)
}

func TestBatteryClamps(t *testing.T) {
	b := NewBattery(150)
	assert.Equal(t, 100.0, b.Remaining())
	assert.Equal(t, 40.0, b.Drain(60))
	assert.Equal(t, 0.0, b.Drain(60))
}
