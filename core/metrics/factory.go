package metrics

import (
	"fmt"

	"github.com/kilianp07/mtrr/core/factory"
)

var sinkRegistry = factory.NewRegistry[MetricsSink]()

// RegisterSink adds a sink factory identified by name.
func RegisterSink(name string, f factory.Factory[MetricsSink]) error {
	return sinkRegistry.Register(name, f)
}

// NewSink creates the sink described by cfgs. No configuration yields a
// NopSink and several yield a MultiSink.
func NewSink(cfgs []factory.ModuleConfig) (MetricsSink, error) {
	switch len(cfgs) {
	case 0:
		return NopSink{}, nil
	case 1:
		return sinkRegistry.Create(cfgs[0])
	}
	sinks := make([]MetricsSink, 0, len(cfgs))
	for _, c := range cfgs {
		s, err := sinkRegistry.Create(c)
		if err != nil {
			return nil, fmt.Errorf("metrics sink %s: %w", c.Type, err)
		}
		sinks = append(sinks, s)
	}
	return NewMultiSink(sinks...), nil
}
