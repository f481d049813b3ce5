package mission

import (
	"time"

	"github.com/kilianp07/mtrr/core/discovery"
)

// AssignmentMode selects how actions are dispatched at mission start.
type AssignmentMode string

const (
	// WaitToComplete dispatches one action per vehicle and the next one when
	// the previous finished.
	WaitToComplete AssignmentMode = "wait_to_complete"
	// FullSequence dispatches every action at once in start time order.
	FullSequence AssignmentMode = "full_sequence"
)

// Settings are the options read at mission start and status refresh.
type Settings struct {
	Discovery          discovery.Config
	RefreshIP          int32
	RefreshAcoustic    int32
	CDTRequired        bool
	CDTAvailable       bool
	ReferenceLatitude  float64
	ReferenceLongitude float64
	Assignment         AssignmentMode
	AbortDelay         time.Duration
	// NotifyStatus forwards accepted task reports to the control authority.
	NotifyStatus bool
}

// DefaultSettings returns the compiled in defaults.
func DefaultSettings() Settings {
	return Settings{
		Discovery: discovery.Config{
			Style:                 discovery.StyleSleep,
			GetNeighboursTryouts:  2,
			GetNeighboursTimeout:  5 * time.Second,
			SetNeighboursTimeout:  2 * time.Second,
			StartDiscoveryTimeout: 15 * time.Second,
			StateVectorTimeout:    5 * time.Second,
		},
		RefreshIP:          5,
		RefreshAcoustic:    60,
		ReferenceLatitude:  63.593722,
		ReferenceLongitude: 9.545972,
		Assignment:         WaitToComplete,
		AbortDelay:         500 * time.Millisecond,
		NotifyStatus:       true,
	}
}

// SettingsSource returns fresh settings on every call.
type SettingsSource interface {
	Reload() Settings
}

// StaticSettings always returns the same settings.
type StaticSettings Settings

func (s StaticSettings) Reload() Settings { return Settings(s) }
