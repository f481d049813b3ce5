// Package mission runs one mission at a time: it dispatches the plan to the
// fleet, consumes the reports vehicles send back and ends the mission when
// the plan is complete or aborted.
package mission

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kilianp07/mtrr/core/codec"
	"github.com/kilianp07/mtrr/core/dedup"
	"github.com/kilianp07/mtrr/core/discovery"
	"github.com/kilianp07/mtrr/core/events"
	"github.com/kilianp07/mtrr/core/knowledge"
	"github.com/kilianp07/mtrr/core/logger"
	"github.com/kilianp07/mtrr/core/model"
	"github.com/kilianp07/mtrr/core/monitoring"
	coremqtt "github.com/kilianp07/mtrr/core/mqtt"
	"github.com/kilianp07/mtrr/core/plan"
)

// codeMissionActive is sent to the control authority when a plan arrives
// while another mission runs.
const codeMissionActive = 1062

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Publisher coremqtt.Publisher
	Store     knowledge.Store
	Notifier  Notifier
	Settings  SettingsSource
	Dedup     dedup.Store
	Bus       events.Publisher
	Logger    logger.Logger
}

// Orchestrator owns the state of the running mission. Every operation that
// reads or mutates it holds mu. CDT, event and environment reports never
// touch that state and bypass mu so they can be consumed while a status
// refresh blocks on discovery.
type Orchestrator struct {
	mu       sync.Mutex
	pub      coremqtt.Publisher
	store    knowledge.Store
	notifier Notifier
	settings SettingsSource
	dedup    dedup.Store
	encoder  *codec.Encoder
	seq      *codec.Sequence
	disc     *discovery.Coordinator
	bus      events.Publisher
	log      logger.Logger
	now      func() time.Time

	life      *lifecycle
	cfg       Settings
	missionID int
	activeID  atomic.Int64
	hasAUVs   bool

	vehicles     map[int]model.Vehicle
	plans        map[int]*plan.Queue
	current      map[int]model.Action
	awaiting     map[int]model.Action
	lastFrame    map[int]model.Frame
	bySeq        map[byte]model.Action
	dispatchedAt map[int]time.Time
	summary      *Summary
	lastSummary  *Summary

	statusRequested bool

	statusMu     sync.Mutex
	refreshing   bool
	availability map[int]bool
	svRequestIDs map[int]byte

	discMu        sync.Mutex
	discCancel    context.CancelFunc
	missionCancel context.CancelFunc
}

var (
	_ Feeder   = (*Orchestrator)(nil)
	_ Reporter = (*Orchestrator)(nil)
)

// New creates an orchestrator. Publisher, Store and Logger are required.
func New(d Deps) (*Orchestrator, error) {
	if d.Publisher == nil || d.Store == nil || d.Logger == nil {
		return nil, fmt.Errorf("mission: nil parameter provided to New")
	}
	if d.Notifier == nil {
		d.Notifier = NopNotifier{}
	}
	if d.Settings == nil {
		d.Settings = StaticSettings(DefaultSettings())
	}
	if d.Dedup == nil {
		d.Dedup = dedup.NewMemoryStore()
	}
	if d.Bus == nil {
		d.Bus = events.Discard{}
	}
	cfg := d.Settings.Reload()
	seq := &codec.Sequence{}
	o := &Orchestrator{
		pub:          d.Publisher,
		store:        d.Store,
		notifier:     d.Notifier,
		settings:     d.Settings,
		dedup:        d.Dedup,
		encoder:      codec.NewEncoder(cfg.ReferenceLatitude, cfg.ReferenceLongitude, d.Logger),
		seq:          seq,
		disc:         discovery.NewCoordinator(d.Publisher, d.Store, seq, d.Bus, d.Logger),
		bus:          d.Bus,
		log:          d.Logger,
		now:          time.Now,
		life:         newLifecycle(d.Logger),
		cfg:          cfg,
		availability: make(map[int]bool),
		svRequestIDs: make(map[int]byte),
	}
	o.activeID.Store(-1)
	o.resetMissionState()
	return o, nil
}

func (o *Orchestrator) resetMissionState() {
	o.vehicles = make(map[int]model.Vehicle)
	o.plans = make(map[int]*plan.Queue)
	o.current = make(map[int]model.Action)
	o.awaiting = make(map[int]model.Action)
	o.lastFrame = make(map[int]model.Frame)
	o.bySeq = make(map[byte]model.Action)
	o.dispatchedAt = make(map[int]time.Time)
	awaitingActions.Set(0)
}

// OngoingMissionID returns the id of the active mission or -1.
func (o *Orchestrator) OngoingMissionID() int { return int(o.activeID.Load()) }

// Discovery exposes the CDT coordinator.
func (o *Orchestrator) Discovery() *discovery.Coordinator { return o.disc }

// StartMission validates the plan, records it, refreshes the fleet status if
// nobody asked for it yet, subscribes to vehicle events and dispatches the
// first actions. Rejections leave the running mission untouched.
func (o *Orchestrator) StartMission(ctx context.Context, m *model.Mission) error {
	if m == nil {
		o.log.Warnf("global mission plan is nil, ignoring start request")
		return reject(ErrNilPlan, "mission plan is nil")
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	o.log.Infow("new mission plan received", map[string]any{"mission_id": m.ID, "actions": len(m.Actions), "vehicles": len(m.Vehicles)})
	if o.life.active() {
		msg := fmt.Sprintf("Requested new mission %d while mission %d is still running", m.ID, o.missionID)
		o.notifier.SendError(codeMissionActive, msg)
		o.log.Warnf("mission %d requested while mission %d still active, ignoring", m.ID, o.missionID)
		return reject(ErrMissionActive, "%s", msg)
	}
	if len(m.Actions) == 0 {
		o.log.Warnf("mission %d plan is empty", m.ID)
		return reject(ErrEmptyPlan, "mission %d plan is empty", m.ID)
	}
	if len(m.Vehicles) == 0 {
		o.log.Warnf("mission %d vehicle list is empty", m.ID)
		return reject(ErrNoVehicles, "mission %d vehicle list is empty", m.ID)
	}

	if err := o.life.start(ctx); err != nil {
		return fmt.Errorf("start mission %d: %w", m.ID, err)
	}
	// The cancel is visible before the id so an abort that sees the mission
	// always finds something to cancel.
	ctx, cancel := context.WithCancel(ctx)
	o.discMu.Lock()
	o.missionCancel = cancel
	o.discMu.Unlock()
	o.missionID = m.ID
	o.activeID.Store(int64(m.ID))
	o.cfg = o.settings.Reload()
	for _, a := range m.Actions {
		o.log.Debugw("plan action", map[string]any{
			"action":     a.Label(),
			"vehicle_id": a.VehicleID,
			"parent_id":  a.ParentID,
			"start_time": a.StartTime,
			"end_time":   a.EndTime,
			"points":     len(a.Area),
			"speed":      a.Speed,
			"status":     a.Status.String(),
		})
	}
	o.hasAUVs = false
	for _, v := range m.Vehicles {
		if v.IsAUV() {
			o.hasAUVs = true
		}
	}
	o.encoder.SetOrigin(o.cfg.ReferenceLatitude, o.cfg.ReferenceLongitude)
	o.persistMission(ctx, m)

	o.resetMissionState()
	for _, v := range m.Vehicles {
		o.vehicles[v.ID] = v
	}
	if err := o.dedup.Reset(ctx, m.ID); err != nil {
		o.log.Errorf("reset report records for mission %d: %v", m.ID, err)
	}
	o.summary = &Summary{MissionID: m.ID}
	o.bus.Publish(events.MissionEvent{MissionID: m.ID, State: "started", Vehicles: len(m.Vehicles), Actions: len(m.Actions), Time: o.now()})

	if !o.statusRequested {
		o.log.Infof("requesting status update from mission start")
		if err := o.refreshStatus(ctx, true); err != nil {
			if errors.Is(err, discovery.ErrCancelled) {
				o.log.Warnf("mission %d start interrupted during status refresh", m.ID)
				return err
			}
			o.log.Errorf("status refresh at mission start: %v", err)
		}
	}
	if err := ctx.Err(); err != nil {
		o.log.Warnf("mission %d start interrupted: %v", m.ID, err)
		return fmt.Errorf("start mission %d: %w: %v", m.ID, discovery.ErrCancelled, err)
	}

	o.subscribeEvents(ctx, m.Vehicles)

	switch o.cfg.Assignment {
	case FullSequence:
		for _, a := range plan.FilterGlobalPlan(m) {
			v, ok := o.vehicles[a.VehicleID]
			if !ok {
				o.log.Warnf("action %s assigned to unknown vehicle %d, skipping", a.Label(), a.VehicleID)
				continue
			}
			o.current[v.ID] = a
			o.assignTask(ctx, a, v)
		}
	default:
		for _, v := range m.Vehicles {
			q := plan.NewQueue(plan.FilterVehiclePlan(v, m))
			o.plans[v.ID] = q
			for _, a := range q.Items() {
				o.log.Debugf("parsed plan for %s: %s starting at %d", v.Label(), a.Label(), a.StartTime)
			}
			if q.Len() == 0 {
				o.log.Warnf("vehicle %s has no actions in mission %d", v.Label(), m.ID)
				continue
			}
			o.dispatchNext(ctx, v)
		}
	}
	return nil
}

func (o *Orchestrator) persistMission(ctx context.Context, m *model.Mission) {
	lat, lon := o.encoder.Origin()
	if err := o.store.StoreReferenceCoordinates(ctx, m.ID, lat, lon); err != nil {
		o.log.Errorf("store reference coordinates: %v", err)
	}
	if err := o.store.StoreMission(ctx, *m); err != nil {
		o.log.Errorf("store mission %d: %v", m.ID, err)
	}
	if err := o.store.StoreAssignedVehicles(ctx, m.ID, m.Vehicles); err != nil {
		o.log.Errorf("store assigned vehicles: %v", err)
	}
}

// acousticReady reports whether frames may go over the acoustic channel.
func (o *Orchestrator) acousticReady(v model.Vehicle) bool {
	return v.IsAUV() && (!o.cfg.CDTRequired || o.disc.State().CDTReady())
}

func (o *Orchestrator) subscribeEvents(ctx context.Context, vehicles []model.Vehicle) {
	for _, v := range vehicles {
		f := codec.EventsSubscription(byte(v.ID), o.seq.Next())
		_ = o.publish(ctx, "events", coremqtt.ChannelIP, coremqtt.EventsTopic(coremqtt.ChannelIP), f)
		if o.acousticReady(v) {
			_ = o.publish(ctx, "events", coremqtt.ChannelAcoustic, coremqtt.EventsTopic(coremqtt.ChannelAcoustic), f)
		}
	}
}

// dispatchNext pops the vehicle queue until an action is sent. Actions that
// cannot be encoded are skipped. It reports whether an action went out.
func (o *Orchestrator) dispatchNext(ctx context.Context, v model.Vehicle) bool {
	q := o.plans[v.ID]
	for {
		a, ok := q.Pop()
		if !ok {
			return false
		}
		o.current[v.ID] = a
		if o.assignTask(ctx, a, v) {
			return true
		}
		if o.summary != nil {
			o.summary.Failed++
		}
		o.log.Warnf("skipping %s on %s, %d actions left in its plan", a.Label(), v.Label(), q.Len())
	}
}

// assignTask encodes a and sends it to v over IP, and over acoustic when the
// vehicle is an AUV and the acoustic link may be used. It returns false when
// the action could not be encoded.
func (o *Orchestrator) assignTask(ctx context.Context, a model.Action, v model.Vehicle) bool {
	seq := o.seq.Next()
	f, err := o.encoder.EncodeTask(a, seq)
	if err != nil {
		o.log.Errorf("encode %s for %s: %v", a.Label(), v.Label(), err)
		o.bus.Publish(events.DispatchEvent{MissionID: o.missionID, VehicleID: v.ID, ActionID: a.ID, Task: codec.TaskName(a.Task.TypeID), SeqOp: seq, Err: err, Time: o.now()})
		return false
	}
	o.lastFrame[v.ID] = f
	o.awaiting[a.ID] = a
	o.bySeq[seq] = a
	o.dispatchedAt[a.ID] = o.now()
	o.summary.Dispatched++
	awaitingActions.Set(float64(len(o.awaiting)))

	channels := []coremqtt.Channel{coremqtt.ChannelIP}
	if o.acousticReady(v) {
		channels = append(channels, coremqtt.ChannelAcoustic)
	}
	for _, ch := range channels {
		o.log.Infow("sending task assignment", map[string]any{"action": a.Label(), "vehicle": v.Label(), "channel": string(ch), "seq_op": seq})
		err := o.publish(ctx, "task", ch, coremqtt.TaskTopic(ch, v.ID), f)
		o.bus.Publish(events.DispatchEvent{
			MissionID: o.missionID,
			VehicleID: v.ID,
			ActionID:  a.ID,
			Task:      codec.TaskName(f.Subtype),
			Channel:   string(ch),
			SeqOp:     seq,
			Err:       err,
			Time:      o.now(),
		})
	}
	return true
}

func (o *Orchestrator) publish(ctx context.Context, kind string, ch coremqtt.Channel, topic string, f model.Frame) error {
	if err := o.pub.Publish(ctx, topic, f); err != nil {
		publishFailures.WithLabelValues(kind, string(ch)).Inc()
		o.log.Errorf("publish %s on %s: %v", kind, topic, err)
		monitoring.CaptureException(err, map[string]string{"topic": topic, "kind": kind})
		return err
	}
	framesPublished.WithLabelValues(kind, string(ch)).Inc()
	return nil
}

// EndMission deactivates the mission if it is the active one. Calls for an
// inactive or different mission are logged and ignored.
func (o *Orchestrator) EndMission(ctx context.Context, missionID int, reason EndReason) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.life.active() || missionID != o.missionID {
		o.log.Infof("end of mission %d (%s) ignored: not the active mission", missionID, reason)
		return
	}
	o.endLocked(ctx, reason)
}

func (o *Orchestrator) endLocked(ctx context.Context, reason EndReason) {
	if !o.life.end(ctx, reason) {
		return
	}
	state := "ended"
	switch reason {
	case EndFinished:
		state = "finished"
		o.log.Infof("last task in mission %d has been completed", o.missionID)
	case EndAborted:
		state = "aborted"
		o.log.Infof("mission %d aborted", o.missionID)
	default:
		o.log.Infof("mission %d end", o.missionID)
	}
	o.activeID.Store(-1)
	o.discMu.Lock()
	if o.missionCancel != nil {
		o.missionCancel()
		o.missionCancel = nil
	}
	o.discMu.Unlock()
	missionsEnded.WithLabelValues(reason.String()).Inc()
	if o.summary != nil {
		o.summary.finalize()
		o.log.Infow("mission summary", o.summary.fields())
		o.lastSummary = o.summary
		o.summary = nil
	}
	o.bus.Publish(events.MissionEvent{MissionID: o.missionID, State: state, Vehicles: len(o.vehicles), Time: o.now()})
}

// LastSummary returns the statistics of the most recently ended mission.
func (o *Orchestrator) LastSummary() (Summary, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.lastSummary == nil {
		return Summary{}, false
	}
	return *o.lastSummary, true
}

// Snapshot is a read only view of the orchestrator state.
type Snapshot struct {
	MissionID int         `json:"mission_id"`
	State     string      `json:"state"`
	HasAUVs   bool        `json:"has_auvs"`
	CDTReady  bool        `json:"cdt_ready"`
	Awaiting  []int       `json:"awaiting"`
	Queued    map[int]int `json:"queued"`
	Current   map[int]int `json:"current"`
}

// Snapshot returns the current state. It waits for any running operation.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := Snapshot{
		MissionID: o.OngoingMissionID(),
		State:     o.life.current(),
		HasAUVs:   o.hasAUVs,
		CDTReady:  o.disc.State().CDTReady(),
		Queued:    make(map[int]int, len(o.plans)),
		Current:   make(map[int]int, len(o.current)),
	}
	for id := range o.awaiting {
		s.Awaiting = append(s.Awaiting, id)
	}
	sort.Ints(s.Awaiting)
	for vid, q := range o.plans {
		s.Queued[vid] = q.Len()
	}
	for vid, a := range o.current {
		s.Current[vid] = a.ID
	}
	return s
}
