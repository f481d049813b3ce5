package metrics

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/mtrr/core/events"
	"github.com/kilianp07/mtrr/core/factory"
)

type recordSink struct {
	count int
	err   error
}

func (r *recordSink) RecordMission(events.MissionEvent) error {
	r.count++
	return r.err
}

func (r *recordSink) RecordTaskReport(events.TaskReportEvent) error {
	r.count++
	return r.err
}

// missionOnly implements only the mandatory method.
type missionOnly struct{ count int }

func (m *missionOnly) RecordMission(events.MissionEvent) error {
	m.count++
	return nil
}

func TestMultiSinkForwardsToSupportingSinks(t *testing.T) {
	s1 := &recordSink{}
	s2 := &missionOnly{}
	m := NewMultiSink(s1, s2)

	require.NoError(t, m.RecordMission(events.MissionEvent{MissionID: 1, State: "started"}))
	require.NoError(t, m.RecordTaskReport(events.TaskReportEvent{Outcome: "accepted"}))
	require.NoError(t, m.RecordDispatch(events.DispatchEvent{}))

	if s1.count != 2 || s2.count != 1 {
		t.Fatalf("unexpected forward counts %d %d", s1.count, s2.count)
	}
}

func TestMultiSinkJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	s1 := &recordSink{err: boom}
	s2 := &recordSink{}
	err := NewMultiSink(s1, s2).RecordMission(events.MissionEvent{})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, s2.count)
}

func TestNewSink(t *testing.T) {
	s, err := NewSink(nil)
	require.NoError(t, err)
	if _, ok := s.(NopSink); !ok {
		t.Fatalf("expected NopSink, got %T", s)
	}

	require.NoError(t, RegisterSink("test-record", func(map[string]any) (MetricsSink, error) {
		return &recordSink{}, nil
	}))
	s, err = NewSink([]factory.ModuleConfig{{Type: "test-record"}, {Type: "test-record"}})
	require.NoError(t, err)
	multi, ok := s.(*MultiSink)
	require.True(t, ok)
	assert.Len(t, multi.Sinks, 2)

	_, err = NewSink([]factory.ModuleConfig{{Type: "test-record"}, {Type: "missing"}})
	assert.Error(t, err)
}
