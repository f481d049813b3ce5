package mission

import (
	"context"

	"github.com/looplab/fsm"

	"github.com/kilianp07/mtrr/core/logger"
)

// Mission lifecycle states.
const (
	StateIdle     = "Idle"
	StateActive   = "Active"
	StateFinished = "Finished"
	StateAborted  = "Aborted"
)

// EndReason tells why a mission ended. It is informational only.
type EndReason byte

const (
	EndOther    EndReason = 0
	EndFinished EndReason = 1
	EndAborted  EndReason = 2
)

func (r EndReason) String() string {
	switch r {
	case EndFinished:
		return "FINISHED"
	case EndAborted:
		return "ABORTED"
	default:
		return "OTHER"
	}
}

const (
	evStart  = "start"
	evFinish = "finish"
	evAbort  = "abort"
	evEnd    = "end"
	evReset  = "reset"
)

// lifecycle tracks Idle -> Active -> {Finished | Aborted} -> Idle. Ending for
// any other reason goes straight back to Idle.
type lifecycle struct {
	fsm *fsm.FSM
}

func newLifecycle(log logger.Logger) *lifecycle {
	return &lifecycle{fsm: fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: evStart, Src: []string{StateIdle}, Dst: StateActive},
			{Name: evFinish, Src: []string{StateActive}, Dst: StateFinished},
			{Name: evAbort, Src: []string{StateActive}, Dst: StateAborted},
			{Name: evEnd, Src: []string{StateActive}, Dst: StateIdle},
			{Name: evReset, Src: []string{StateFinished, StateAborted}, Dst: StateIdle},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				log.Debugf("mission state %s -> %s (%s)", e.Src, e.Dst, e.Event)
			},
		},
	)}
}

func (l *lifecycle) active() bool { return l.fsm.Is(StateActive) }

func (l *lifecycle) current() string { return l.fsm.Current() }

func (l *lifecycle) start(ctx context.Context) error {
	return l.fsm.Event(ctx, evStart)
}

// end moves an active mission to its terminal state and back to Idle. It
// reports whether a transition happened.
func (l *lifecycle) end(ctx context.Context, reason EndReason) bool {
	if !l.active() {
		return false
	}
	switch reason {
	case EndFinished:
		_ = l.fsm.Event(ctx, evFinish)
	case EndAborted:
		_ = l.fsm.Event(ctx, evAbort)
	default:
		_ = l.fsm.Event(ctx, evEnd)
		return true
	}
	_ = l.fsm.Event(ctx, evReset)
	return true
}
