package simulator

import (
	"context"
	"sync"

	"github.com/kilianp07/mtrr/core/codec"
	"github.com/kilianp07/mtrr/core/model"
	coremqtt "github.com/kilianp07/mtrr/core/mqtt"
)

const taskQueueSize = 64

type running struct {
	frame  model.Frame
	cancel context.CancelFunc
}

// Vehicle executes the tasks it receives one after the other.
type Vehicle struct {
	model.Vehicle
	Battery *Battery

	fleet *Fleet
	tasks chan model.Frame

	mu            sync.Mutex
	current       *running
	lastTaskSeq   int
	lastNotifySeq int
}

func newVehicle(f *Fleet, v model.Vehicle) *Vehicle {
	charge := v.BatteryStatus
	if charge <= 0 {
		charge = 100
	}
	return &Vehicle{
		Vehicle:       v,
		Battery:       NewBattery(charge),
		fleet:         f,
		tasks:         make(chan model.Frame, taskQueueSize),
		lastTaskSeq:   -1,
		lastNotifySeq: -1,
	}
}

// enqueue queues a task frame. The same frame received on both links is
// executed once.
func (v *Vehicle) enqueue(fr model.Frame) {
	v.mu.Lock()
	if int(fr.SeqOp) == v.lastTaskSeq {
		v.mu.Unlock()
		return
	}
	v.lastTaskSeq = int(fr.SeqOp)
	v.mu.Unlock()
	select {
	case v.tasks <- fr:
		v.fleet.log.Infof("%s: queued %s (seq %d)", v.Label(), codec.TaskName(fr.Subtype), fr.SeqOp)
	default:
		v.fleet.log.Warnf("%s: task queue full, dropping %s (seq %d)", v.Label(), codec.TaskName(fr.Subtype), fr.SeqOp)
	}
}

func (v *Vehicle) worker(ctx context.Context) {
	for {
		select {
		case fr := <-v.tasks:
			v.execute(ctx, fr)
		case <-ctx.Done():
			return
		}
	}
}

func (v *Vehicle) execute(ctx context.Context, fr model.Frame) {
	tctx, cancel := context.WithCancel(ctx)
	run := &running{frame: fr, cancel: cancel}
	v.mu.Lock()
	v.current = run
	v.mu.Unlock()
	defer func() {
		cancel()
		v.mu.Lock()
		if v.current == run {
			v.current = nil
		}
		v.mu.Unlock()
	}()

	v.fleet.replies.Reply(tctx, func() { v.report(ctx, fr, codec.ReportRunning) })
	if !sleep(tctx, v.fleet.cfg.TaskDuration) {
		return
	}
	left := v.Battery.Drain(v.fleet.cfg.DrainPerTask)
	v.fleet.log.Debugf("%s: %s done, battery %.1f%%", v.Label(), codec.TaskName(fr.Subtype), left)
	v.fleet.replies.Reply(tctx, func() { v.report(ctx, fr, codec.ReportCompleted) })
}

// abort stops the running task, drops the queued ones and reports the
// running task as aborted.
func (v *Vehicle) abort(ctx context.Context, fr model.Frame) {
	v.mu.Lock()
	if int(fr.SeqOp) == v.lastNotifySeq {
		v.mu.Unlock()
		return
	}
	v.lastNotifySeq = int(fr.SeqOp)
	cur := v.current
	v.current = nil
	v.mu.Unlock()

	dropped := 0
drain:
	for {
		select {
		case <-v.tasks:
			dropped++
		default:
			break drain
		}
	}
	if cur == nil {
		v.fleet.log.Infof("%s: abort received while idle, %d queued tasks dropped", v.Label(), dropped)
		return
	}
	cur.cancel()
	v.fleet.log.Infof("%s: %s aborted, %d queued tasks dropped", v.Label(), codec.TaskName(cur.frame.Subtype), dropped)
	v.report(ctx, cur.frame, codec.ReportAborted)
}

func (v *Vehicle) report(ctx context.Context, fr model.Frame, status int) {
	r := model.Report{
		MissionID: v.fleet.cfg.Mission(ctx),
		Type:      codec.TypeTask,
		Subtype:   fr.Subtype,
		VehicleID: byte(v.ID),
		SeqOp:     fr.SeqOp,
		Status:    status,
		EpochMS:   v.fleet.now().UnixMilli(),
	}
	v.fleet.publish(ctx, coremqtt.ReportTaskTopic(coremqtt.ChannelIP), r)
}

func (v *Vehicle) stateVector(ctx context.Context, seq byte) model.StateVector {
	speed := 0.0
	v.mu.Lock()
	if v.current != nil {
		speed = v.MaxSpeed
	}
	v.mu.Unlock()
	return model.StateVector{
		MissionID:        v.fleet.cfg.Mission(ctx),
		VehicleID:        v.ID,
		SeqOp:            seq,
		Latitude:         v.Location.Latitude,
		Longitude:        v.Location.Longitude,
		Altitude:         v.Location.Altitude,
		Depth:            v.Location.Depth,
		Pitch:            v.Orientation.Pitch,
		Roll:             v.Orientation.Roll,
		Yaw:              v.Orientation.Yaw,
		Speed:            speed,
		RemainingBattery: v.Battery.Remaining(),
		TimeMS:           v.fleet.now().UnixMilli(),
	}
}

// busy reports whether a task is running or queued.
func (v *Vehicle) busy() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current != nil || len(v.tasks) > 0
}

