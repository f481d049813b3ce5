// Package discovery runs the CDT neighbour discovery handshake that must
// complete before acoustic coordination is trusted.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/mtrr/core/codec"
	"github.com/kilianp07/mtrr/core/events"
	"github.com/kilianp07/mtrr/core/logger"
	"github.com/kilianp07/mtrr/core/model"
	coremqtt "github.com/kilianp07/mtrr/core/mqtt"
)

// Style selects how the handshake waits for CDT responses.
type Style string

const (
	// StyleSleep waits fixed durations and never checks results.
	StyleSleep Style = "sleep"
	// StyleWait blocks on CDT responses and retries until success.
	StyleWait Style = "wait"
)

// Config holds the handshake timings.
type Config struct {
	Style                 Style
	DoGetNeighbours       bool
	GetNeighboursTryouts  int
	GetNeighboursTimeout  time.Duration
	SetNeighboursTimeout  time.Duration
	StartDiscoveryTimeout time.Duration
	StateVectorTimeout    time.Duration
}

// FleetSource lists the vehicles SET_NEIGHBOURS is built from.
type FleetSource interface {
	AllVehicles(ctx context.Context) ([]model.Vehicle, error)
}

// Coordinator sends CDT requests and tracks their responses. Requests draw
// their ids from the sequence shared with task dispatch.
type Coordinator struct {
	pub   coremqtt.Publisher
	fleet FleetSource
	seq   *codec.Sequence
	state *State
	bus   events.Publisher
	log   logger.Logger
	now   func() time.Time
}

// NewCoordinator wires a coordinator. A nil bus discards events.
func NewCoordinator(pub coremqtt.Publisher, fleet FleetSource, seq *codec.Sequence, bus events.Publisher, log logger.Logger) *Coordinator {
	if bus == nil {
		bus = events.Discard{}
	}
	return &Coordinator{
		pub:   pub,
		fleet: fleet,
		seq:   seq,
		state: NewState(),
		bus:   bus,
		log:   log,
		now:   time.Now,
	}
}

// State exposes the handshake flags.
func (c *Coordinator) State() *State { return c.state }

// AUVIDs returns the ids of the acoustic capable vehicles.
func AUVIDs(vehicles []model.Vehicle) []int {
	var ids []int
	for _, v := range vehicles {
		if v.IsAUV() {
			ids = append(ids, v.ID)
		}
	}
	return ids
}

// SendSetNeighbours clears the SET_NEIGHBOURS flags and publishes the AUV list.
func (c *Coordinator) SendSetNeighbours(ctx context.Context, vehicles []model.Vehicle) error {
	c.state.Update(func(f *Flags) {
		f.SetNeighboursReceived = false
		f.SetNeighboursSuccessful = false
	})
	ids := AUVIDs(vehicles)
	seq := c.seq.Next()
	c.log.Infow("sending SET_NEIGHBOURS", map[string]any{"seq_op": seq, "auv_ids": ids})
	return c.publish(ctx, codec.SetNeighbours(ids, seq))
}

// SendGetNeighbours clears the GET_NEIGHBOURS flags and publishes the request.
func (c *Coordinator) SendGetNeighbours(ctx context.Context) error {
	c.state.Update(func(f *Flags) {
		f.GetNeighboursReceived = false
		f.GetNeighboursSuccessful = false
	})
	seq := c.seq.Next()
	c.log.Infof("sending GET_NEIGHBOURS request id %d", seq)
	return c.publish(ctx, codec.GetNeighbours(seq))
}

// SendStartDiscovery clears the START_DISCOVERY flags and publishes the request.
func (c *Coordinator) SendStartDiscovery(ctx context.Context) error {
	c.state.Update(func(f *Flags) {
		f.StartDiscoveryReceived = false
		f.StartDiscoverySuccessful = false
	})
	seq := c.seq.Next()
	c.log.Infof("sending START_DISCOVERY request id %d", seq)
	return c.publish(ctx, codec.StartDiscovery(seq))
}

func (c *Coordinator) publish(ctx context.Context, f model.Frame) error {
	if err := c.pub.Publish(ctx, coremqtt.TopicCDT, f); err != nil {
		return fmt.Errorf("publish %s: %w", codec.SubtypeName(f.Type, f.Subtype), err)
	}
	return nil
}

// HandleResponse records a CDT report. A failed SET_NEIGHBOURS and a
// STOP_POLLING notification both resend SET_NEIGHBOURS to the whole fleet.
func (c *Coordinator) HandleResponse(ctx context.Context, r model.Report) {
	name := codec.SubtypeName(codec.TypeCDT, r.Subtype)
	ok := r.Result == 0
	resend := false
	switch r.Subtype {
	case codec.SubtypeStartDiscovery:
		c.state.Update(func(f *Flags) {
			f.StartDiscoveryReceived = true
			f.StartDiscoverySuccessful = ok
			if ok {
				f.CDTReady = true
			}
		})
	case codec.SubtypeSetNeighbours:
		c.state.Update(func(f *Flags) {
			f.SetNeighboursReceived = true
			f.SetNeighboursSuccessful = ok
		})
		resend = !ok
	case codec.SubtypeGetNeighbours:
		c.state.Update(func(f *Flags) {
			f.GetNeighboursReceived = true
			f.GetNeighboursSuccessful = ok
		})
	case codec.SubtypeStopPolling:
		c.log.Infof("CDT reports STOP_POLLING")
		resend = true
	default:
		c.log.Warnf("ignoring CDT report with %s", name)
		return
	}
	if r.Subtype != codec.SubtypeStopPolling {
		c.log.Infow("CDT response", map[string]any{"subtype": name, "result": r.Result, "vid": r.VehicleID})
		c.bus.Publish(events.DiscoveryEvent{Subtype: name, Success: ok, Time: c.now()})
	}
	if resend {
		if err := c.resendSetNeighbours(ctx); err != nil {
			c.log.Errorf("resend SET_NEIGHBOURS: %v", err)
		}
	}
}

func (c *Coordinator) resendSetNeighbours(ctx context.Context) error {
	vehicles, err := c.fleet.AllVehicles(ctx)
	if err != nil {
		return fmt.Errorf("list fleet: %w", err)
	}
	return c.SendSetNeighbours(ctx, vehicles)
}

// Run performs one handshake with the given fleet and then calls acoustic,
// which issues the acoustic state vector requests.
func (c *Coordinator) Run(ctx context.Context, cfg Config, vehicles []model.Vehicle, acoustic func(context.Context) error) error {
	switch cfg.Style {
	case StyleWait:
		c.log.Infof("performing neighbour discovery awaiting CDT responses")
		if err := c.runWait(ctx, cfg, vehicles); err != nil {
			return err
		}
		return acoustic(ctx)
	default:
		c.log.Infof("performing neighbour discovery using fixed delays")
		return c.runSleep(ctx, cfg, vehicles, acoustic)
	}
}

func (c *Coordinator) runSleep(ctx context.Context, cfg Config, vehicles []model.Vehicle, acoustic func(context.Context) error) error {
	if err := c.SendSetNeighbours(ctx, vehicles); err != nil {
		return err
	}
	if err := sleep(ctx, cfg.GetNeighboursTimeout); err != nil {
		return err
	}
	if err := c.SendGetNeighbours(ctx); err != nil {
		return err
	}
	if err := sleep(ctx, cfg.GetNeighboursTimeout); err != nil {
		return err
	}
	if err := acoustic(ctx); err != nil {
		return err
	}
	return sleep(ctx, cfg.StateVectorTimeout)
}

func (c *Coordinator) runWait(ctx context.Context, cfg Config, vehicles []model.Vehicle) error {
	if !c.state.Snapshot().SetNeighboursSuccessful {
		if err := c.SendSetNeighbours(ctx, vehicles); err != nil {
			return err
		}
		for {
			err := c.state.Wait(ctx, cfg.SetNeighboursTimeout, func(f Flags) bool { return f.SetNeighboursSuccessful })
			if err == nil {
				break
			}
			if !errors.Is(err, errTimeout) {
				return err
			}
			c.log.Warnf("no successful SET_NEIGHBOURS response after %s, resending", cfg.SetNeighboursTimeout)
			if err := c.SendSetNeighbours(ctx, vehicles); err != nil {
				return err
			}
		}
	}

	if cfg.DoGetNeighbours {
		for try := 0; try < cfg.GetNeighboursTryouts && !c.state.Snapshot().GetNeighboursSuccessful; try++ {
			if err := c.SendGetNeighbours(ctx); err != nil {
				return err
			}
			err := c.state.Wait(ctx, cfg.GetNeighboursTimeout, func(f Flags) bool { return f.GetNeighboursReceived })
			switch {
			case errors.Is(err, errTimeout):
				c.log.Warnf("GET_NEIGHBOURS attempt %d timed out", try+1)
			case err != nil:
				return err
			case c.state.Snapshot().GetNeighboursSuccessful:
				c.log.Infof("received successful GET_NEIGHBOURS response")
			default:
				c.log.Infof("received unsuccessful GET_NEIGHBOURS response")
			}
		}

		if !c.state.Snapshot().GetNeighboursSuccessful {
			for !c.state.Snapshot().StartDiscoverySuccessful {
				if err := c.SendStartDiscovery(ctx); err != nil {
					return err
				}
				err := c.state.Wait(ctx, cfg.StartDiscoveryTimeout, func(f Flags) bool { return f.StartDiscoveryReceived })
				if err != nil && !errors.Is(err, errTimeout) {
					return err
				}
				if !c.state.Snapshot().StartDiscoverySuccessful {
					c.log.Infof("START_DISCOVERY not successful, retrying")
				}
			}
		}
	}
	c.state.Update(func(f *Flags) { f.CDTReady = true })
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
	}
}
