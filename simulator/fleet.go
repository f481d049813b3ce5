package simulator

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/kilianp07/mtrr/core/codec"
	"github.com/kilianp07/mtrr/core/logger"
	"github.com/kilianp07/mtrr/core/model"
	coremqtt "github.com/kilianp07/mtrr/core/mqtt"
	"github.com/kilianp07/mtrr/infra/mqtt"
)

// Transport is the broker connection used by the fleet. PahoClient
// implements it.
type Transport interface {
	Subscribe(topic string, h mqtt.Handler) error
	PublishJSON(ctx context.Context, topic string, v any) error
}

// Fleet is a set of simulated vehicles sharing one broker connection. It
// also plays the CDT and answers discovery requests.
type Fleet struct {
	cfg      Config
	t        Transport
	replies  ReplyStrategy
	log      logger.Logger
	vehicles map[int]*Vehicle
	now      func() time.Time

	mu  sync.Mutex
	ctx context.Context
	wg  sync.WaitGroup
}

// GenerateFleet creates n vehicles with ids 1..n placed at origin. The first
// round(n*auvShare) are AUVs, the others ROVs.
func GenerateFleet(n int, auvShare float64, origin model.Position) []model.Vehicle {
	if n <= 0 {
		return nil
	}
	auvs := int(math.Round(float64(n) * auvShare))
	vs := make([]model.Vehicle, n)
	for i := range vs {
		id := i + 1
		v := model.Vehicle{
			ID:            id,
			Type:          model.VehicleROV,
			Location:      origin,
			MaxSpeed:      2,
			MaxBattery:    100,
			BatteryStatus: 100,
		}
		if i < auvs {
			v.Type = model.VehicleAUV
		}
		v.Name = fmt.Sprintf("%s-%d", v.Type, id)
		vs[i] = v
	}
	return vs
}

// NewFleet prepares the configured vehicles. Call Run to start answering.
func NewFleet(cfg Config, t Transport, replies ReplyStrategy, log logger.Logger) (*Fleet, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if replies == nil {
		replies = NewRandomReply(cfg.ReplyDelay, cfg.DropRate, time.Now().UnixNano())
	}
	f := &Fleet{
		cfg:      cfg,
		t:        t,
		replies:  replies,
		log:      log,
		vehicles: make(map[int]*Vehicle),
		now:      time.Now,
		ctx:      context.Background(),
	}
	vs := cfg.Vehicles
	if len(vs) == 0 {
		vs = GenerateFleet(cfg.Count, cfg.AUVShare, cfg.Origin)
	}
	for _, v := range vs {
		if _, dup := f.vehicles[v.ID]; dup {
			return nil, fmt.Errorf("duplicate vehicle id %d", v.ID)
		}
		f.vehicles[v.ID] = newVehicle(f, v)
	}
	return f, nil
}

// Vehicles returns the simulated vehicles ordered by id.
func (f *Fleet) Vehicles() []model.Vehicle {
	out := make([]model.Vehicle, 0, len(f.vehicles))
	for _, v := range f.vehicles {
		out = append(out, v.Vehicle)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Run subscribes to every request topic and answers until ctx is done.
func (f *Fleet) Run(ctx context.Context) error {
	f.mu.Lock()
	f.ctx = ctx
	f.mu.Unlock()

	for _, v := range f.vehicles {
		f.wg.Add(1)
		go func(v *Vehicle) {
			defer f.wg.Done()
			v.worker(ctx)
		}(v)
	}
	if err := f.subscribe(); err != nil {
		return err
	}
	f.log.Infof("simulating %d vehicles", len(f.vehicles))
	<-ctx.Done()
	f.wg.Wait()
	return nil
}

func (f *Fleet) subscribe() error {
	subs := map[string]mqtt.Handler{coremqtt.TopicCDT: f.handleCDT}
	for _, ch := range coremqtt.Channels {
		subs[coremqtt.EnvironmentTopic(ch)] = f.handleEnvironment(ch)
		subs[coremqtt.EventsTopic(ch)] = f.handleEvents
	}
	for _, v := range f.vehicles {
		for _, ch := range coremqtt.Channels {
			if ch == coremqtt.ChannelAcoustic && v.IsROV() {
				continue
			}
			subs[coremqtt.TaskTopic(ch, v.ID)] = f.handleTask(v)
			subs[coremqtt.NotifyTopic(ch, v.ID)] = f.handleNotify(v)
		}
	}
	topics := make([]string, 0, len(subs))
	for t := range subs {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	for _, t := range topics {
		if err := f.t.Subscribe(t, subs[t]); err != nil {
			return err
		}
	}
	return nil
}

func (f *Fleet) context() context.Context {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ctx
}

func (f *Fleet) decode(topic string, payload []byte) (model.Frame, bool) {
	fr, err := codec.Unmarshal(payload)
	if err != nil {
		if len(payload) > 0 {
			f.log.Warnf("decode frame on %s: %v", topic, err)
		}
		return fr, false
	}
	return fr, true
}

func (f *Fleet) handleTask(v *Vehicle) mqtt.Handler {
	return func(topic string, payload []byte) {
		fr, ok := f.decode(topic, payload)
		if !ok || fr.Type != codec.TypeTask {
			return
		}
		v.enqueue(fr)
	}
}

func (f *Fleet) handleNotify(v *Vehicle) mqtt.Handler {
	return func(topic string, payload []byte) {
		fr, ok := f.decode(topic, payload)
		if !ok || fr.Type != codec.TypeNotification {
			return
		}
		v.abort(f.context(), fr)
	}
}

// handleEnvironment answers state vector requests. An all zero frame is
// the retained periodic environment request and every AUV answers it.
func (f *Fleet) handleEnvironment(ch coremqtt.Channel) mqtt.Handler {
	return func(topic string, payload []byte) {
		fr, ok := f.decode(topic, payload)
		if !ok {
			return
		}
		ctx := f.context()
		if fr == (model.Frame{}) {
			for _, v := range f.sorted() {
				if v.IsAUV() {
					f.publish(ctx, coremqtt.ReportEnvironmentTopic(ch), v.stateVector(ctx, 0))
				}
			}
			return
		}
		if fr.Type != codec.TypeEnvironment || fr.Subtype != codec.SubtypeStateVector {
			return
		}
		v, ok := f.vehicles[int(fr.VehicleID)]
		if !ok {
			return
		}
		if ch == coremqtt.ChannelAcoustic && v.IsROV() {
			return
		}
		f.publish(ctx, coremqtt.ReportEnvironmentTopic(ch), v.stateVector(ctx, fr.SeqOp))
	}
}

func (f *Fleet) handleEvents(topic string, payload []byte) {
	fr, ok := f.decode(topic, payload)
	if !ok || fr.Type != codec.TypeEvents {
		return
	}
	f.log.Debugf("vehicle %d subscribed to events on %s", fr.VehicleID, topic)
}

// handleCDT acknowledges every discovery request with a success result.
func (f *Fleet) handleCDT(topic string, payload []byte) {
	fr, ok := f.decode(topic, payload)
	if !ok || fr.Type != codec.TypeCDT {
		return
	}
	ctx := f.context()
	f.log.Infof("CDT %s request (seq %d)", codec.SubtypeName(codec.TypeCDT, fr.Subtype), fr.SeqOp)
	f.publish(ctx, coremqtt.TopicReportCDT, model.Report{
		MissionID: f.cfg.Mission(ctx),
		Type:      codec.TypeCDT,
		Subtype:   fr.Subtype,
		SeqOp:     fr.SeqOp,
		Result:    0,
		EpochMS:   f.now().UnixMilli(),
	})
}

func (f *Fleet) sorted() []*Vehicle {
	out := make([]*Vehicle, 0, len(f.vehicles))
	for _, v := range f.vehicles {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *Fleet) publish(ctx context.Context, topic string, v any) {
	if err := f.t.PublishJSON(ctx, topic, v); err != nil {
		f.log.Errorf("publish %s: %v", topic, err)
	}
}
