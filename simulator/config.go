// Package simulator runs a fleet of fake vehicles against the broker. Each
// vehicle decodes the frames addressed to it and answers with the reports a
// real vehicle would send.
package simulator

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/mtrr/core/model"
)

// MissionResolver returns the mission id stamped on task reports.
type MissionResolver func(ctx context.Context) int

// StaticMission always reports id.
func StaticMission(id int) MissionResolver {
	return func(context.Context) int { return id }
}

// Config holds the simulation parameters.
type Config struct {
	// Vehicles to simulate. When empty, Count vehicles are generated.
	Vehicles []model.Vehicle
	Count    int
	// AUVShare is the ratio of generated vehicles that are AUVs.
	AUVShare float64
	Origin   model.Position

	ReplyDelay   time.Duration
	TaskDuration time.Duration
	// DropRate is the probability a task report is never sent.
	DropRate float64
	// DrainPerTask is the battery percentage consumed by a completed task.
	DrainPerTask float64

	Mission MissionResolver
}

func (c *Config) SetDefaults() {
	if len(c.Vehicles) == 0 && c.Count <= 0 {
		c.Count = 2
	}
	if c.TaskDuration <= 0 {
		c.TaskDuration = 2 * time.Second
	}
	if c.DrainPerTask <= 0 {
		c.DrainPerTask = 1
	}
	if c.Mission == nil {
		c.Mission = StaticMission(0)
	}
}

func (c Config) Validate() error {
	if c.DropRate < 0 || c.DropRate > 1 {
		return fmt.Errorf("drop rate must be within [0,1], got %v", c.DropRate)
	}
	if c.AUVShare < 0 || c.AUVShare > 1 {
		return fmt.Errorf("auv share must be within [0,1], got %v", c.AUVShare)
	}
	if c.ReplyDelay < 0 {
		return fmt.Errorf("reply delay must not be negative")
	}
	return nil
}
