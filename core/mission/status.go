package mission

import (
	"context"
	"fmt"

	"github.com/kilianp07/mtrr/core/codec"
	"github.com/kilianp07/mtrr/core/discovery"
	"github.com/kilianp07/mtrr/core/model"
	coremqtt "github.com/kilianp07/mtrr/core/mqtt"
)

// RequestUpdatedStatus asks every known vehicle for its state vector, runs
// the neighbour discovery when the acoustic link is configured and notifies
// the control authority once done.
func (o *Orchestrator) RequestUpdatedStatus(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.refreshStatus(ctx, false)
}

// Availability returns which vehicles answered the last status refresh.
func (o *Orchestrator) Availability() map[int]bool {
	o.statusMu.Lock()
	defer o.statusMu.Unlock()
	out := make(map[int]bool, len(o.availability))
	for k, v := range o.availability {
		out[k] = v
	}
	return out
}

func (o *Orchestrator) refreshStatus(ctx context.Context, internal bool) error {
	o.statusRequested = true
	cfg := o.settings.Reload()

	vehicles, err := o.store.AllVehicles(ctx)
	if err != nil {
		return fmt.Errorf("list fleet: %w", err)
	}

	o.statusMu.Lock()
	o.refreshing = true
	o.availability = make(map[int]bool, len(vehicles))
	o.svRequestIDs = make(map[int]byte, len(vehicles))
	for _, v := range vehicles {
		o.availability[v.ID] = false
	}
	o.statusMu.Unlock()
	defer func() {
		o.statusMu.Lock()
		o.refreshing = false
		o.statusMu.Unlock()
	}()

	ids := make(map[int]byte, len(vehicles))
	for _, v := range vehicles {
		seq := o.seq.Next()
		ids[v.ID] = seq
		f := codec.StateVectorRequest(byte(v.ID), seq, cfg.RefreshIP)
		_ = o.publish(ctx, "state_vector", coremqtt.ChannelIP, coremqtt.EnvironmentTopic(coremqtt.ChannelIP), f)
	}
	o.statusMu.Lock()
	o.svRequestIDs = ids
	o.statusMu.Unlock()

	if cfg.CDTAvailable && len(discovery.AUVIDs(vehicles)) > 0 {
		if err := o.runDiscovery(ctx, cfg, vehicles, ids); err != nil {
			return err
		}
	}

	if !internal {
		o.notifier.SendUpdatedStatusNotification()
	}
	return nil
}

func (o *Orchestrator) runDiscovery(ctx context.Context, cfg Settings, vehicles []model.Vehicle, ids map[int]byte) error {
	dctx, cancel := context.WithCancel(ctx)
	o.discMu.Lock()
	o.discCancel = cancel
	o.discMu.Unlock()
	defer func() {
		o.discMu.Lock()
		o.discCancel = nil
		o.discMu.Unlock()
		cancel()
	}()

	acoustic := func(ctx context.Context) error {
		for _, v := range vehicles {
			if !v.IsAUV() {
				continue
			}
			f := codec.StateVectorRequest(byte(v.ID), ids[v.ID], cfg.RefreshAcoustic)
			_ = o.publish(ctx, "state_vector", coremqtt.ChannelAcoustic, coremqtt.EnvironmentTopic(coremqtt.ChannelAcoustic), f)
		}
		return nil
	}
	err := o.disc.Run(dctx, cfg.Discovery, vehicles, acoustic)
	result := "ok"
	if err != nil {
		result = "cancelled"
	}
	discoveryRounds.WithLabelValues(string(cfg.Discovery.Style), result).Inc()
	if err != nil {
		return fmt.Errorf("neighbour discovery: %w", err)
	}
	return nil
}

// cancelMission interrupts the work started for the active mission and any
// running neighbour discovery.
func (o *Orchestrator) cancelMission() {
	o.discMu.Lock()
	defer o.discMu.Unlock()
	if o.missionCancel != nil {
		o.log.Infof("cancelling start of the active mission")
		o.missionCancel()
	}
	if o.discCancel != nil {
		o.log.Infof("cancelling neighbour discovery")
		o.discCancel()
	}
}

// EnablePeriodicEnvironmentalReport starts periodic acoustic environment
// reports by retaining an empty request on the acoustic environment topic.
func (o *Orchestrator) EnablePeriodicEnvironmentalReport(ctx context.Context) error {
	topic := coremqtt.EnvironmentTopic(coremqtt.ChannelAcoustic)
	if err := o.pub.PublishRetained(ctx, topic, model.Frame{}); err != nil {
		publishFailures.WithLabelValues("periodic", string(coremqtt.ChannelAcoustic)).Inc()
		return fmt.Errorf("enable periodic environment report: %w", err)
	}
	framesPublished.WithLabelValues("periodic", string(coremqtt.ChannelAcoustic)).Inc()
	o.log.Infof("periodic environmental report enabled")
	return nil
}

// DisablePeriodicEnvironmentalReport clears the retained request.
func (o *Orchestrator) DisablePeriodicEnvironmentalReport(ctx context.Context) error {
	if err := o.pub.Unpublish(ctx, coremqtt.EnvironmentTopic(coremqtt.ChannelAcoustic)); err != nil {
		return fmt.Errorf("disable periodic environment report: %w", err)
	}
	o.log.Infof("periodic environmental report disabled")
	return nil
}
