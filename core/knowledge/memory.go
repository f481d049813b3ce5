package knowledge

import (
	"context"
	"sort"
	"sync"

	"github.com/kilianp07/mtrr/core/model"
)

// MemoryStore keeps everything in process memory. It backs tests and runs
// without a configured database.
type MemoryStore struct {
	mu       sync.RWMutex
	vehicles map[int]model.Vehicle
	missions map[int]model.Mission
	refs     map[int][2]float64
	assigned map[int][]int
	reports  []TaskReport
	events   []EventRecord
	states   []model.StateVector
	salinity []Salinity
}

// NewMemoryStore returns a store seeded with the given fleet.
func NewMemoryStore(fleet ...model.Vehicle) *MemoryStore {
	s := &MemoryStore{
		vehicles: make(map[int]model.Vehicle),
		missions: make(map[int]model.Mission),
		refs:     make(map[int][2]float64),
		assigned: make(map[int][]int),
	}
	for _, v := range fleet {
		s.vehicles[v.ID] = v
	}
	return s
}

// SeedFleet adds or replaces fleet members.
func (s *MemoryStore) SeedFleet(_ context.Context, vehicles []model.Vehicle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range vehicles {
		s.vehicles[v.ID] = v
	}
	return nil
}

func (s *MemoryStore) StoreReferenceCoordinates(_ context.Context, missionID int, lat, lon float64) error {
	s.mu.Lock()
	s.refs[missionID] = [2]float64{lat, lon}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) StoreMission(_ context.Context, m model.Mission) error {
	s.mu.Lock()
	s.missions[m.ID] = m
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) StoreAssignedVehicles(_ context.Context, missionID int, vehicles []model.Vehicle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int, 0, len(vehicles))
	for _, v := range vehicles {
		s.vehicles[v.ID] = v
		ids = append(ids, v.ID)
	}
	s.assigned[missionID] = ids
	return nil
}

func (s *MemoryStore) StoreTaskReport(_ context.Context, r TaskReport) error {
	s.mu.Lock()
	s.reports = append(s.reports, r)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) StoreEvent(_ context.Context, e EventRecord) error {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) StoreStateVector(_ context.Context, sv model.StateVector) error {
	s.mu.Lock()
	s.states = append(s.states, sv)
	if v, ok := s.vehicles[sv.VehicleID]; ok {
		s.vehicles[sv.VehicleID] = ApplyStateVector(v, sv)
	}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) StoreSalinity(_ context.Context, sal Salinity) error {
	s.mu.Lock()
	s.salinity = append(s.salinity, sal)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) AllVehicles(context.Context) ([]model.Vehicle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Vehicle, 0, len(s.vehicles))
	for _, v := range s.vehicles {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) TaskReports(_ context.Context, missionID int) ([]TaskReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []TaskReport
	for _, r := range s.reports {
		if r.MissionID == missionID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }

// Events returns the stored events.
func (s *MemoryStore) Events() []EventRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]EventRecord(nil), s.events...)
}

// StateVectors returns the stored state vectors.
func (s *MemoryStore) StateVectors() []model.StateVector {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.StateVector(nil), s.states...)
}

// SalinitySamples returns the stored concentration samples.
func (s *MemoryStore) SalinitySamples() []Salinity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Salinity(nil), s.salinity...)
}

// ReferenceCoordinates returns the stored origin of a mission.
func (s *MemoryStore) ReferenceCoordinates(missionID int) (lat, lon float64, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.refs[missionID]
	return r[0], r[1], ok
}

// Mission returns a stored mission.
func (s *MemoryStore) Mission(id int) (model.Mission, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.missions[id]
	return m, ok
}
