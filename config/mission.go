package config

import (
	"fmt"
	"time"

	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/mtrr/core/discovery"
	"github.com/kilianp07/mtrr/core/logger"
	"github.com/kilianp07/mtrr/core/mission"
)

// MissionConfig holds the options read at mission start and status refresh.
// Zero values fall back to the compiled defaults.
type MissionConfig struct {
	StateVector        StateVectorConfig `json:"state_vector"`
	GetNeighbours      TimeoutConfig     `json:"get_neighbours"`
	SetNeighbours      TimeoutConfig     `json:"set_neighbours"`
	StartDiscovery     TimeoutConfig     `json:"start_discovery"`
	CDT                CDTConfig         `json:"cdt"`
	Coords             CoordsConfig      `json:"coords"`
	NeighbourDiscovery struct {
		Style string `json:"style"`
	} `json:"neighbour_discovery"`
	Do struct {
		GetNeighbours bool `json:"get_neighbours"`
	} `json:"do"`
	AssignmentMode string `json:"assignment_mode"`
	AbortDelayMS   int    `json:"abort_delay_ms"`
	NotifyStatus   *bool  `json:"notify_status"`
}

type StateVectorConfig struct {
	TimeoutMS   int `json:"timeout_ms"`
	RefreshTime struct {
		IP       int `json:"ip"`
		Acoustic int `json:"acoustic"`
	} `json:"refresh_time"`
}

type TimeoutConfig struct {
	TimeoutMS int `json:"timeout_ms"`
	Tryouts   int `json:"tryouts"`
}

type CDTConfig struct {
	LegacyDiscoveryRequired bool `json:"legacy_discovery_required"`
	Available               bool `json:"available"`
}

type CoordsConfig struct {
	Reference struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	} `json:"reference"`
}

// Validate rejects unknown enumerations.
func (c MissionConfig) Validate() error {
	switch discovery.Style(c.NeighbourDiscovery.Style) {
	case "", discovery.StyleSleep, discovery.StyleWait:
	default:
		return fmt.Errorf("mission: unknown neighbour_discovery.style %q", c.NeighbourDiscovery.Style)
	}
	switch mission.AssignmentMode(c.AssignmentMode) {
	case "", mission.WaitToComplete, mission.FullSequence:
	default:
		return fmt.Errorf("mission: unknown assignment_mode %q", c.AssignmentMode)
	}
	return nil
}

func ms(v int, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return time.Duration(v) * time.Millisecond
}

// Settings converts the section into orchestrator settings.
func (c MissionConfig) Settings() mission.Settings {
	s := mission.DefaultSettings()
	d := &s.Discovery
	d.StateVectorTimeout = ms(c.StateVector.TimeoutMS, d.StateVectorTimeout)
	d.GetNeighboursTimeout = ms(c.GetNeighbours.TimeoutMS, d.GetNeighboursTimeout)
	d.SetNeighboursTimeout = ms(c.SetNeighbours.TimeoutMS, d.SetNeighboursTimeout)
	d.StartDiscoveryTimeout = ms(c.StartDiscovery.TimeoutMS, d.StartDiscoveryTimeout)
	if c.GetNeighbours.Tryouts > 0 {
		d.GetNeighboursTryouts = c.GetNeighbours.Tryouts
	}
	if c.NeighbourDiscovery.Style != "" {
		d.Style = discovery.Style(c.NeighbourDiscovery.Style)
	}
	d.DoGetNeighbours = c.Do.GetNeighbours

	if c.StateVector.RefreshTime.IP > 0 {
		s.RefreshIP = int32(c.StateVector.RefreshTime.IP)
	}
	if c.StateVector.RefreshTime.Acoustic > 0 {
		s.RefreshAcoustic = int32(c.StateVector.RefreshTime.Acoustic)
	}
	s.CDTRequired = c.CDT.LegacyDiscoveryRequired
	s.CDTAvailable = c.CDT.Available
	if c.Coords.Reference.Latitude != nil {
		s.ReferenceLatitude = *c.Coords.Reference.Latitude
	}
	if c.Coords.Reference.Longitude != nil {
		s.ReferenceLongitude = *c.Coords.Reference.Longitude
	}
	if c.AssignmentMode != "" {
		s.Assignment = mission.AssignmentMode(c.AssignmentMode)
	}
	s.AbortDelay = ms(c.AbortDelayMS, s.AbortDelay)
	if c.NotifyStatus != nil {
		s.NotifyStatus = *c.NotifyStatus
	}
	return s
}

// MissionSource re-reads the mission section from the configuration file on
// every Reload, so operators can tune a running orchestrator between
// missions. A file that cannot be read yields the compiled defaults.
type MissionSource struct {
	path string
	log  logger.Logger
}

var _ mission.SettingsSource = (*MissionSource)(nil)

func NewMissionSource(path string, log logger.Logger) *MissionSource {
	return &MissionSource{path: path, log: log}
}

func (s *MissionSource) Reload() mission.Settings {
	mc, err := s.load()
	if err != nil {
		if s.log != nil {
			s.log.Errorf("reload mission settings from %s: %v; using defaults", s.path, err)
		}
		return mission.DefaultSettings()
	}
	return mc.Settings()
}

func (s *MissionSource) load() (MissionConfig, error) {
	var mc MissionConfig
	k, err := read(s.path)
	if err != nil {
		return mc, err
	}
	if err := k.UnmarshalWithConf("mission", &mc, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return mc, err
	}
	return mc, mc.Validate()
}
