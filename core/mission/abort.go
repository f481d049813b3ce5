package mission

import (
	"context"
	"sort"
	"time"

	"github.com/kilianp07/mtrr/core/codec"
	coremqtt "github.com/kilianp07/mtrr/core/mqtt"
)

// AbortVehiclePlan clears the queued actions of a vehicle and notifies it
// over IP, and over acoustic unless it is a ROV. hard sends a safety action
// instead of a plan abort.
func (o *Orchestrator) AbortVehiclePlan(ctx context.Context, vehicleID int, hard bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.life.active() {
		return reject(ErrUnknownVehicle, "Vehicle %d is not active in the mission: no active mission", vehicleID)
	}
	return o.abortVehicleLocked(ctx, vehicleID, hard)
}

func (o *Orchestrator) abortVehicleLocked(ctx context.Context, vehicleID int, hard bool) error {
	v, ok := o.vehicles[vehicleID]
	if !ok {
		return reject(ErrUnknownVehicle, "Vehicle %d is not active in the mission %d", vehicleID, o.missionID)
	}
	o.plans[vehicleID].Clear()

	f := codec.Notification(byte(vehicleID), o.seq.Next(), hard)
	kind := "abort"
	if hard {
		kind = "safety"
	}
	o.log.Infow("notifying vehicle plan abort", map[string]any{"vehicle": v.Label(), "hard": hard, "seq_op": f.SeqOp})
	if err := o.publish(ctx, kind, coremqtt.ChannelIP, coremqtt.NotifyTopic(coremqtt.ChannelIP, vehicleID), f); err != nil {
		return err
	}
	if !v.IsROV() {
		if err := o.publish(ctx, kind, coremqtt.ChannelAcoustic, coremqtt.NotifyTopic(coremqtt.ChannelAcoustic, vehicleID), f); err != nil {
			return err
		}
	}
	return nil
}

// AbortMissionPlan aborts every vehicle of the active mission, one after the
// other with the configured delay, and ends the mission. A running neighbour
// discovery or mission start for that mission is cancelled first.
func (o *Orchestrator) AbortMissionPlan(ctx context.Context, missionID int, hard bool) error {
	if o.OngoingMissionID() == missionID {
		o.cancelMission()
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.life.active() {
		return reject(ErrNoActiveMission, "Specified mission ID %d does not match current active mission: no active mission", missionID)
	}
	if missionID != o.missionID {
		return reject(ErrMissionMismatch, "Specified mission ID %d does not match current active mission ID %d", missionID, o.missionID)
	}

	ids := make([]int, 0, len(o.vehicles))
	for id := range o.vehicles {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	if len(ids) == 0 {
		o.log.Warnf("aborting mission plan %d: there are no vehicles in the map", missionID)
	}
	for i, id := range ids {
		if i > 0 {
			wait(ctx, o.cfg.AbortDelay)
		}
		o.log.Infof("aborting mission plan %d: aborting vehicle plan for vehicle %d", missionID, id)
		if err := o.abortVehicleLocked(ctx, id, hard); err != nil {
			o.log.Errorf("abort vehicle %d: %v", id, err)
		}
	}
	o.endLocked(ctx, EndAborted)
	return nil
}

// wait pauses for d unless ctx ends first.
func wait(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
