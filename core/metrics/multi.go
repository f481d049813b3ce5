package metrics

import (
	"errors"

	"github.com/kilianp07/mtrr/core/events"
)

// MultiSink fans records out to several sinks. A failing sink does not stop
// the others; the errors are joined.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

func (m *MultiSink) RecordMission(ev events.MissionEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		errs = append(errs, s.RecordMission(ev))
	}
	return errors.Join(errs...)
}

// RecordDispatch forwards dispatch events to the sinks supporting them.
func (m *MultiSink) RecordDispatch(ev events.DispatchEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(DispatchRecorder); ok {
			errs = append(errs, r.RecordDispatch(ev))
		}
	}
	return errors.Join(errs...)
}

// RecordTaskReport forwards task report outcomes.
func (m *MultiSink) RecordTaskReport(ev events.TaskReportEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(TaskReportRecorder); ok {
			errs = append(errs, r.RecordTaskReport(ev))
		}
	}
	return errors.Join(errs...)
}

// RecordDiscovery forwards CDT responses.
func (m *MultiSink) RecordDiscovery(ev events.DiscoveryEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(DiscoveryRecorder); ok {
			errs = append(errs, r.RecordDiscovery(ev))
		}
	}
	return errors.Join(errs...)
}

// RecordStateVector forwards state vectors.
func (m *MultiSink) RecordStateVector(ev events.StateVectorEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(StateVectorRecorder); ok {
			errs = append(errs, r.RecordStateVector(ev))
		}
	}
	return errors.Join(errs...)
}
