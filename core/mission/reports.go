package mission

import (
	"context"
	"time"

	"github.com/kilianp07/mtrr/core/codec"
	"github.com/kilianp07/mtrr/core/dedup"
	"github.com/kilianp07/mtrr/core/events"
	"github.com/kilianp07/mtrr/core/knowledge"
	"github.com/kilianp07/mtrr/core/model"
)

// Report outcomes, used as metric labels and on TaskReportEvent.
const (
	outcomeAccepted    = "accepted"
	outcomeDuplicate   = "duplicate"
	outcomeIgnored     = "ignored"
	outcomeUnexpected  = "unexpected"
	outcomeStale       = "stale"
	outcomeUnsupported = "unsupported"
	outcomeError       = "error"
)

// classify maps a task report code to an action status. failure is set for
// error codes; supported is false for codes the control authority has no
// status for.
func classify(code int) (status model.TaskStatus, failure string, supported bool) {
	switch code {
	case codec.ReportPending:
		return model.TaskNotStarted, "", true
	case codec.ReportRunning:
		return model.TaskRunning, "", true
	case codec.ReportCompleted:
		return model.TaskFinished, "", true
	case codec.ReportExecFailed:
		return 0, "Execution failed", true
	case codec.ReportPlanFailed:
		return 0, "Plan failed", true
	case codec.ReportAborted:
		return 0, "Aborted", true
	case codec.ReportCancelled:
		return 0, "Cancelled", true
	case codec.ReportRejected:
		return 0, "Rejected", true
	default:
		return 0, "", false
	}
}

// ReportTask consumes a task status report. Reports for another mission,
// duplicates and reports for a task other than the last one sent to the
// vehicle are logged and dropped.
func (o *Orchestrator) ReportTask(ctx context.Context, r model.Report, missionID int) {
	o.mu.Lock()
	defer o.mu.Unlock()

	vid := int(r.VehicleID)
	fields := map[string]any{
		"mission_id": missionID,
		"vid":        vid,
		"task":       codec.TaskName(r.Subtype),
		"status":     codec.StatusName(r.Status),
		"code":       r.Status,
		"seq_op":     r.SeqOp,
	}
	o.log.Infow("task report", fields)

	if !o.life.active() {
		o.log.Infof("task report received with no active mission")
		o.taskOutcome(r, missionID, 0, outcomeIgnored, 0)
		return
	}
	if missionID != o.missionID {
		o.log.Infof("task report for mission %d while running mission %d", missionID, o.missionID)
		o.taskOutcome(r, missionID, 0, outcomeIgnored, 0)
		return
	}

	key := dedup.Key{
		Kind:      dedup.KindTask,
		MissionID: missionID,
		VehicleID: vid,
		Subtype:   r.Subtype,
		SeqOp:     r.SeqOp,
		Status:    r.Status,
		HasStatus: true,
	}
	fresh, err := o.dedup.Record(ctx, key)
	if err != nil {
		o.log.Errorf("record task report %s: %v", key, err)
	} else if !fresh {
		o.log.Infow("duplicated task report", fields)
		o.taskOutcome(r, missionID, 0, outcomeDuplicate, 0)
		return
	}

	action, known := o.resolveAction(vid, r.SeqOp)
	if err := o.store.StoreTaskReport(ctx, knowledge.TaskReport{
		MissionID:  missionID,
		VehicleID:  vid,
		ActionID:   action.ID,
		Subtype:    r.Subtype,
		SeqOp:      r.SeqOp,
		Code:       r.Status,
		Status:     codec.StatusName(r.Status),
		EpochMS:    r.EpochMS,
		ReceivedAt: o.now(),
	}); err != nil {
		o.log.Errorf("store task report: %v", err)
	}

	if !known {
		o.log.Errorf("unexpected task report for vehicle %d: vehicle has no active or pending task", vid)
		o.taskOutcome(r, missionID, 0, outcomeUnexpected, 0)
		return
	}

	if last, ok := o.lastFrame[vid]; !ok {
		o.log.Warnf("no previous frame stored for vehicle %d", vid)
	} else if last.Subtype != r.Subtype {
		o.log.Infof("subtype mismatch for vehicle %d: last sent %s, report for %s", vid, codec.TaskName(last.Subtype), codec.TaskName(r.Subtype))
		o.taskOutcome(r, missionID, action.ID, outcomeStale, 0)
		return
	}

	status, failure, supported := classify(r.Status)
	switch {
	case failure != "":
		if r.Status == codec.ReportAborted {
			delete(o.awaiting, action.ID)
			awaitingActions.Set(float64(len(o.awaiting)))
		}
		if o.summary != nil {
			o.summary.Failed++
		}
		o.log.Warnf("task %s on vehicle %d reported error %d: %s", action.Label(), vid, r.Status, failure)
		o.taskOutcome(r, missionID, action.ID, outcomeError, 0)
		return
	case !supported:
		o.log.Warnf("unsupported task status %d for %s", r.Status, action.Label())
		o.taskOutcome(r, missionID, action.ID, outcomeUnsupported, 0)
		return
	}

	action.Status = status
	if cur, ok := o.current[vid]; ok && cur.ID == action.ID {
		o.current[vid] = action
	}
	if o.cfg.NotifyStatus {
		o.log.Infof("sending task status report to MMT for %s: %s", action.Label(), codec.StatusName(r.Status))
		o.notifier.SendStatusReport(action)
	}

	if r.Status != codec.ReportCompleted {
		o.taskOutcome(r, missionID, action.ID, outcomeAccepted, 0)
		return
	}

	latency := o.completed(action)
	o.taskOutcome(r, missionID, action.ID, outcomeAccepted, latency)
	if o.cfg.Assignment == FullSequence {
		return
	}

	if o.dispatchNext(ctx, o.vehicles[vid]) {
		return
	}
	if len(o.awaiting) == 0 {
		o.log.Infof("no more pending tasks in mission %d, ending mission", o.missionID)
		o.endLocked(ctx, EndFinished)
		return
	}
	for id, a := range o.awaiting {
		o.log.Infof("task %s (%d) still awaiting completion", a.Task.Description, id)
	}
}

// resolveAction finds the action a report refers to. Under FullSequence a
// vehicle has several actions in flight, so the report sequence id is tried
// before the vehicle's current action.
func (o *Orchestrator) resolveAction(vid int, seq byte) (model.Action, bool) {
	if o.cfg.Assignment == FullSequence {
		if a, ok := o.bySeq[seq]; ok && a.VehicleID == vid {
			return a, true
		}
	}
	a, ok := o.current[vid]
	return a, ok
}

// completed removes a finished action from the awaiting set and returns the
// time since it was dispatched.
func (o *Orchestrator) completed(a model.Action) time.Duration {
	delete(o.awaiting, a.ID)
	awaitingActions.Set(float64(len(o.awaiting)))
	at, ok := o.dispatchedAt[a.ID]
	if !ok {
		return 0
	}
	delete(o.dispatchedAt, a.ID)
	d := o.now().Sub(at)
	actionLatency.Observe(d.Seconds())
	if o.summary != nil {
		o.summary.observe(d)
	}
	return d
}

func (o *Orchestrator) taskOutcome(r model.Report, missionID, actionID int, outcome string, latency time.Duration) {
	reportsProcessed.WithLabelValues("task", outcome).Inc()
	o.bus.Publish(events.TaskReportEvent{
		MissionID: missionID,
		VehicleID: int(r.VehicleID),
		ActionID:  actionID,
		Code:      r.Status,
		Status:    codec.StatusName(r.Status),
		Outcome:   outcome,
		Latency:   latency,
		Time:      o.now(),
	})
}

// ReportEvent stores a vehicle event once per (mission, vehicle, subtype,
// sequence id).
func (o *Orchestrator) ReportEvent(ctx context.Context, r model.Report, missionID int) {
	key := dedup.Key{
		Kind:      dedup.KindEvent,
		MissionID: missionID,
		VehicleID: int(r.VehicleID),
		Subtype:   r.Subtype,
		SeqOp:     r.SeqOp,
	}
	fresh, err := o.dedup.Record(ctx, key)
	if err != nil {
		o.log.Errorf("record event report %s: %v", key, err)
	} else if !fresh {
		o.log.Infof("duplicated event report %q (%d: %d) for vehicle %d", r.Description, r.Subtype, r.EventID, r.VehicleID)
		reportsProcessed.WithLabelValues("event", outcomeDuplicate).Inc()
		return
	}
	err = o.store.StoreEvent(ctx, knowledge.EventRecord{
		MissionID:   missionID,
		VehicleID:   int(r.VehicleID),
		Subtype:     r.Subtype,
		SeqOp:       r.SeqOp,
		EpochMS:     r.EpochMS,
		ErrorID:     r.ErrorID,
		EventID:     r.EventID,
		Description: r.Description,
		ReceivedAt:  o.now(),
	})
	if err != nil {
		o.log.Warnf("store event report from %d (%s): %v", r.VehicleID, r.Description, err)
		reportsProcessed.WithLabelValues("event", outcomeError).Inc()
		return
	}
	reportsProcessed.WithLabelValues("event", outcomeAccepted).Inc()
}

// ReportCDT hands a discovery response to the coordinator.
func (o *Orchestrator) ReportCDT(ctx context.Context, r model.Report, missionID int) {
	o.log.Debugf("CDT report for mission %d: %s result %d", missionID, codec.SubtypeName(codec.TypeCDT, r.Subtype), r.Result)
	reportsProcessed.WithLabelValues("cdt", outcomeAccepted).Inc()
	o.disc.HandleResponse(ctx, r)
}

// ReportEnvironment stores a state vector. During a status refresh the
// reporting vehicle is marked available.
func (o *Orchestrator) ReportEnvironment(ctx context.Context, sv model.StateVector, missionID int) {
	o.statusMu.Lock()
	if o.refreshing {
		o.availability[sv.VehicleID] = true
	}
	o.statusMu.Unlock()

	if sv.MissionID == 0 {
		sv.MissionID = missionID
	}
	o.bus.Publish(events.StateVectorEvent{State: sv, Time: o.now()})
	if err := o.store.StoreStateVector(ctx, sv); err != nil {
		o.log.Errorf("store state vector of vehicle %d: %v", sv.VehicleID, err)
		reportsProcessed.WithLabelValues("environment", outcomeError).Inc()
		return
	}
	if sv.Concentration != 0 {
		o.log.Infof("environment report with salinity concentration %.3f", sv.Concentration)
		err := o.store.StoreSalinity(ctx, knowledge.Salinity{
			MissionID:     missionID,
			VehicleID:     sv.VehicleID,
			Latitude:      sv.Latitude,
			Longitude:     sv.Longitude,
			Depth:         sv.Depth,
			Altitude:      sv.Altitude,
			Concentration: sv.Concentration,
			TimeMS:        sv.TimeMS,
		})
		if err != nil {
			o.log.Errorf("store salinity: %v", err)
		}
	}
	reportsProcessed.WithLabelValues("environment", outcomeAccepted).Inc()
}
