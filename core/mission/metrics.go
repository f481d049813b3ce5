package mission

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	framesPublished  *prometheus.CounterVec
	publishFailures  *prometheus.CounterVec
	reportsProcessed *prometheus.CounterVec
	missionsEnded    *prometheus.CounterVec
	discoveryRounds  *prometheus.CounterVec
	awaitingActions  prometheus.Gauge
	actionLatency    prometheus.Histogram
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, *prometheus.CounterVec, *prometheus.CounterVec, *prometheus.CounterVec, *prometheus.CounterVec, prometheus.Gauge, prometheus.Histogram) {
	frames := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mtrr_frames_published_total",
			Help: "Frames published to the fleet",
		},
		[]string{"kind", "channel"},
	)
	failures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mtrr_publish_failures_total",
			Help: "Frames that could not be published",
		},
		[]string{"kind", "channel"},
	)
	reports := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mtrr_reports_total",
			Help: "Inbound reports by stream and outcome",
		},
		[]string{"stream", "outcome"},
	)
	ended := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mtrr_missions_ended_total",
			Help: "Missions ended by reason",
		},
		[]string{"reason"},
	)
	rounds := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mtrr_discovery_rounds_total",
			Help: "Neighbour discovery rounds by style and result",
		},
		[]string{"style", "result"},
	)
	awaiting := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mtrr_awaiting_actions",
			Help: "Dispatched actions not yet finished",
		},
	)
	latency := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mtrr_action_completion_seconds",
			Help:    "Time between dispatch and the finished report",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)
	return frames, failures, reports, ended, rounds, awaiting, latency
}

func init() {
	framesPublished, publishFailures, reportsProcessed, missionsEnded, discoveryRounds, awaitingActions, actionLatency = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers mission metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(framesPublished, publishFailures, reportsProcessed, missionsEnded, discoveryRounds, awaitingActions, actionLatency)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	framesPublished, publishFailures, reportsProcessed, missionsEnded, discoveryRounds, awaitingActions, actionLatency = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
