package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/kilianp07/mtrr/core/events"
	coremetrics "github.com/kilianp07/mtrr/core/metrics"
	"github.com/kilianp07/mtrr/infra/logger"
)

// InfluxSink writes mission telemetry to InfluxDB, one point per event.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// InfluxConfig addresses an InfluxDB v2 bucket.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// NewInfluxSink creates a sink for the given endpoint. A trailing
// /api/v2/write is accepted and stripped.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings InfluxDB and returns a NopSink when the
// health check fails, so a missing database never blocks mission control.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// Close releases the client.
func (s *InfluxSink) Close() { s.client.Close() }

func (s *InfluxSink) write(p *write.Point) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, p)
}

func (s *InfluxSink) RecordMission(ev events.MissionEvent) error {
	p := write.NewPointWithMeasurement("mission").
		AddTag("mission_id", strconv.Itoa(ev.MissionID)).
		AddTag("state", ev.State).
		AddField("vehicles", ev.Vehicles).
		AddField("actions", ev.Actions).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordDispatch writes a task_dispatch point per channel.
func (s *InfluxSink) RecordDispatch(ev events.DispatchEvent) error {
	errStr := ""
	if ev.Err != nil {
		errStr = ev.Err.Error()
	}
	p := write.NewPointWithMeasurement("task_dispatch").
		AddTag("mission_id", strconv.Itoa(ev.MissionID)).
		AddTag("vehicle_id", strconv.Itoa(ev.VehicleID)).
		AddTag("task", ev.Task).
		AddTag("channel", ev.Channel).
		AddField("action_id", ev.ActionID).
		AddField("seq_op", int(ev.SeqOp)).
		AddField("error", errStr).
		SetTime(ev.Time)
	return s.write(p)
}

func (s *InfluxSink) RecordTaskReport(ev events.TaskReportEvent) error {
	p := write.NewPointWithMeasurement("task_report").
		AddTag("mission_id", strconv.Itoa(ev.MissionID)).
		AddTag("vehicle_id", strconv.Itoa(ev.VehicleID)).
		AddTag("status", ev.Status).
		AddTag("outcome", ev.Outcome).
		AddField("action_id", ev.ActionID).
		AddField("code", ev.Code).
		AddField("latency_ms", round3(ev.Latency.Seconds()*1000)).
		SetTime(ev.Time)
	return s.write(p)
}

func (s *InfluxSink) RecordDiscovery(ev events.DiscoveryEvent) error {
	p := write.NewPointWithMeasurement("cdt_response").
		AddTag("request", ev.Subtype).
		AddField("success", ev.Success).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordStateVector writes the vehicle pose and battery.
func (s *InfluxSink) RecordStateVector(ev events.StateVectorEvent) error {
	sv := ev.State
	p := write.NewPointWithMeasurement("state_vector").
		AddTag("mission_id", strconv.Itoa(sv.MissionID)).
		AddTag("vehicle_id", strconv.Itoa(sv.VehicleID)).
		AddField("latitude", sv.Latitude).
		AddField("longitude", sv.Longitude).
		AddField("depth", round3(sv.Depth)).
		AddField("altitude", round3(sv.Altitude)).
		AddField("yaw", round3(sv.Yaw)).
		AddField("speed", round3(sv.Speed)).
		AddField("battery", round3(sv.RemainingBattery)).
		SetTime(ev.Time)
	return s.write(p)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
