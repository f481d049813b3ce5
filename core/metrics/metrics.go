package metrics

import "github.com/kilianp07/mtrr/core/events"

// MetricsSink records mission lifecycle transitions. Every sink implements it.
type MetricsSink interface {
	RecordMission(ev events.MissionEvent) error
}

// DispatchRecorder records task frames sent to vehicles.
type DispatchRecorder interface {
	RecordDispatch(ev events.DispatchEvent) error
}

// TaskReportRecorder records how task reports were handled.
type TaskReportRecorder interface {
	RecordTaskReport(ev events.TaskReportEvent) error
}

// DiscoveryRecorder records CDT responses.
type DiscoveryRecorder interface {
	RecordDiscovery(ev events.DiscoveryEvent) error
}

// StateVectorRecorder records vehicle state vectors.
type StateVectorRecorder interface {
	RecordStateVector(ev events.StateVectorEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordMission(events.MissionEvent) error         { return nil }
func (NopSink) RecordDispatch(events.DispatchEvent) error       { return nil }
func (NopSink) RecordTaskReport(events.TaskReportEvent) error   { return nil }
func (NopSink) RecordDiscovery(events.DiscoveryEvent) error     { return nil }
func (NopSink) RecordStateVector(events.StateVectorEvent) error { return nil }
