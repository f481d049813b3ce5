package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/mtrr/core/events"
	coremetrics "github.com/kilianp07/mtrr/core/metrics"
)

// PromSink records mission telemetry in Prometheus collectors. The counters
// kept by the orchestrator itself cover dispatch and report totals; this sink
// adds the per-vehicle view.
type PromSink struct {
	active    prometheus.Gauge
	missions  *prometheus.CounterVec
	dispatch  *prometheus.CounterVec
	reports   *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	cdt       *prometheus.CounterVec
	battery   *prometheus.GaugeVec
	depth     *prometheus.GaugeVec
	speed     *prometheus.GaugeVec
	lastState *prometheus.GaugeVec
}

// NewPromSink registers the collectors on the default Prometheus registerer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers the collectors on reg, reusing the ones
// already registered by an earlier sink. A nil registerer defaults to the
// global one.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{}
	var err error
	if s.active, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mtrr_mission_active",
		Help: "Identifier of the running mission, -1 when idle",
	})); err != nil {
		return nil, err
	}
	if s.missions, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mtrr_mission_transitions_total",
		Help: "Mission lifecycle transitions by state",
	}, []string{"state"})); err != nil {
		return nil, err
	}
	if s.dispatch, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mtrr_task_dispatch_total",
		Help: "Task frames sent per vehicle, task, channel and result",
	}, []string{"vehicle_id", "task", "channel", "result"})); err != nil {
		return nil, err
	}
	if s.reports, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mtrr_vehicle_task_reports_total",
		Help: "Task reports per vehicle, status and outcome",
	}, []string{"vehicle_id", "status", "outcome"})); err != nil {
		return nil, err
	}
	if s.latency, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mtrr_vehicle_action_latency_seconds",
		Help:    "Time between dispatch and completion per vehicle",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
	}, []string{"vehicle_id"})); err != nil {
		return nil, err
	}
	if s.cdt, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mtrr_cdt_responses_total",
		Help: "CDT responses by request and success",
	}, []string{"request", "success"})); err != nil {
		return nil, err
	}
	if s.battery, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mtrr_vehicle_battery_remaining",
		Help: "Remaining battery reported in the last state vector",
	}, []string{"vehicle_id"})); err != nil {
		return nil, err
	}
	if s.depth, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mtrr_vehicle_depth_meters",
		Help: "Depth reported in the last state vector",
	}, []string{"vehicle_id"})); err != nil {
		return nil, err
	}
	if s.speed, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mtrr_vehicle_speed",
		Help: "Speed reported in the last state vector",
	}, []string{"vehicle_id"})); err != nil {
		return nil, err
	}
	if s.lastState, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mtrr_vehicle_last_state_vector_seconds",
		Help: "Unix time of the last state vector",
	}, []string{"vehicle_id"})); err != nil {
		return nil, err
	}
	s.active.Set(-1)
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

var (
	_ coremetrics.DispatchRecorder    = (*PromSink)(nil)
	_ coremetrics.TaskReportRecorder  = (*PromSink)(nil)
	_ coremetrics.DiscoveryRecorder   = (*PromSink)(nil)
	_ coremetrics.StateVectorRecorder = (*PromSink)(nil)
)

// RecordMission tracks the active mission gauge.
func (s *PromSink) RecordMission(ev events.MissionEvent) error {
	s.missions.WithLabelValues(ev.State).Inc()
	if ev.State == "started" {
		s.active.Set(float64(ev.MissionID))
	} else {
		s.active.Set(-1)
	}
	return nil
}

func (s *PromSink) RecordDispatch(ev events.DispatchEvent) error {
	result := "ok"
	if ev.Err != nil {
		result = "error"
	}
	s.dispatch.WithLabelValues(strconv.Itoa(ev.VehicleID), ev.Task, ev.Channel, result).Inc()
	return nil
}

func (s *PromSink) RecordTaskReport(ev events.TaskReportEvent) error {
	vid := strconv.Itoa(ev.VehicleID)
	s.reports.WithLabelValues(vid, ev.Status, ev.Outcome).Inc()
	if ev.Latency > 0 {
		s.latency.WithLabelValues(vid).Observe(ev.Latency.Seconds())
	}
	return nil
}

func (s *PromSink) RecordDiscovery(ev events.DiscoveryEvent) error {
	s.cdt.WithLabelValues(ev.Subtype, strconv.FormatBool(ev.Success)).Inc()
	return nil
}

func (s *PromSink) RecordStateVector(ev events.StateVectorEvent) error {
	vid := strconv.Itoa(ev.State.VehicleID)
	s.battery.WithLabelValues(vid).Set(ev.State.RemainingBattery)
	s.depth.WithLabelValues(vid).Set(ev.State.Depth)
	s.speed.WithLabelValues(vid).Set(ev.State.Speed)
	s.lastState.WithLabelValues(vid).Set(float64(ev.Time.Unix()))
	return nil
}
