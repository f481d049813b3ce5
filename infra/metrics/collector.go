package metrics

import (
	"context"

	"github.com/kilianp07/mtrr/core/events"
	coremetrics "github.com/kilianp07/mtrr/core/metrics"
	"github.com/kilianp07/mtrr/infra/logger"
	"github.com/kilianp07/mtrr/internal/eventbus"
)

// RunEventCollector forwards bus events to the sink until ctx is done or the
// bus is closed. Sink errors are logged and never stop the collector.
func RunEventCollector(ctx context.Context, bus *eventbus.TypedBus[events.Event], sink coremetrics.MetricsSink, log logger.Logger) {
	if bus == nil || sink == nil {
		return
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			if err := record(sink, ev); err != nil {
				log.Warnf("record %s event: %v", ev.Kind(), err)
			}
		}
	}
}

// StartEventCollector runs the collector in its own goroutine.
func StartEventCollector(ctx context.Context, bus *eventbus.TypedBus[events.Event], sink coremetrics.MetricsSink, log logger.Logger) {
	go RunEventCollector(ctx, bus, sink, log)
}

func record(sink coremetrics.MetricsSink, ev events.Event) error {
	switch e := ev.(type) {
	case events.MissionEvent:
		return sink.RecordMission(e)
	case events.DispatchEvent:
		if r, ok := sink.(coremetrics.DispatchRecorder); ok {
			return r.RecordDispatch(e)
		}
	case events.TaskReportEvent:
		if r, ok := sink.(coremetrics.TaskReportRecorder); ok {
			return r.RecordTaskReport(e)
		}
	case events.DiscoveryEvent:
		if r, ok := sink.(coremetrics.DiscoveryRecorder); ok {
			return r.RecordDiscovery(e)
		}
	case events.StateVectorEvent:
		if r, ok := sink.(coremetrics.StateVectorRecorder); ok {
			return r.RecordStateVector(e)
		}
	}
	return nil
}
