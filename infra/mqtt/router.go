package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kilianp07/mtrr/core/mission"
	"github.com/kilianp07/mtrr/core/model"
	coremqtt "github.com/kilianp07/mtrr/core/mqtt"
	"github.com/kilianp07/mtrr/infra/logger"
)

// Subscriber registers inbound handlers. PahoClient implements it.
type Subscriber interface {
	Subscribe(topic string, h Handler) error
}

// Router decodes the JSON report envelopes published by vehicles and the CDT
// and hands them to the orchestrator.
type Router struct {
	ctx context.Context
	rep mission.Reporter
	log logger.Logger
}

// NewRouter returns a router calling rep with ctx.
func NewRouter(ctx context.Context, rep mission.Reporter, log logger.Logger) *Router {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Router{ctx: ctx, rep: rep, log: log}
}

// Topics lists every inbound topic the router understands.
func Topics() []string {
	out := []string{coremqtt.TopicReportCDT}
	for _, ch := range coremqtt.Channels {
		out = append(out,
			coremqtt.ReportTaskTopic(ch),
			coremqtt.ReportEventsTopic(ch),
			coremqtt.ReportEnvironmentTopic(ch),
		)
	}
	return out
}

// Bind subscribes the router to every report topic.
func (r *Router) Bind(sub Subscriber) error {
	for _, t := range Topics() {
		if err := sub.Subscribe(t, r.Handle); err != nil {
			return err
		}
	}
	return nil
}

// Handle routes one message. Undecodable payloads are logged and dropped.
func (r *Router) Handle(topic string, payload []byte) {
	if err := r.route(topic, payload); err != nil {
		r.log.Warnf("dropping message on %s: %v", topic, err)
	}
}

func (r *Router) route(topic string, payload []byte) error {
	switch {
	case strings.HasPrefix(topic, "REPORT_ENVIRONMENT_"):
		var sv model.StateVector
		if err := json.Unmarshal(payload, &sv); err != nil {
			return fmt.Errorf("decode state vector: %w", err)
		}
		r.rep.ReportEnvironment(r.ctx, sv, sv.MissionID)
		return nil
	case strings.HasPrefix(topic, "REPORT_TASK_"), strings.HasPrefix(topic, "REPORT_EVENTS_"), topic == coremqtt.TopicReportCDT:
	default:
		return fmt.Errorf("unknown topic")
	}

	var rep model.Report
	if err := json.Unmarshal(payload, &rep); err != nil {
		return fmt.Errorf("decode report: %w", err)
	}
	switch {
	case strings.HasPrefix(topic, "REPORT_TASK_"):
		r.rep.ReportTask(r.ctx, rep, rep.MissionID)
	case strings.HasPrefix(topic, "REPORT_EVENTS_"):
		r.rep.ReportEvent(r.ctx, rep, rep.MissionID)
	default:
		r.rep.ReportCDT(r.ctx, rep, rep.MissionID)
	}
	return nil
}
