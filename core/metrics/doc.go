// Package metrics defines the sinks mission telemetry is recorded to. A sink
// implements MetricsSink and any of the optional recorder interfaces;
// MultiSink forwards each record to the sinks that support it. Sinks are
// built from configuration through the registry in factory.go.
package metrics
