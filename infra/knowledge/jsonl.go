package knowledge

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/kilianp07/mtrr/core/knowledge"
	"github.com/kilianp07/mtrr/core/model"
)

// Record kinds written to the journal.
const (
	kindReference = "reference"
	kindMission   = "mission"
	kindAssigned  = "assigned"
	kindFleet     = "fleet"
	kindTask      = "task_report"
	kindEvent     = "event"
	kindState     = "state_vector"
	kindSalinity  = "salinity"
)

type journalRecord struct {
	Kind      string          `json:"kind"`
	MissionID int             `json:"mission_id,omitempty"`
	Time      time.Time       `json:"time"`
	Payload   json.RawMessage `json:"payload"`
}

type refCoords struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// JSONLStore journals every write as one JSON line in a size rotated file
// and answers reads from an in-memory index rebuilt from the journal at open.
type JSONLStore struct {
	mu     sync.Mutex
	writer *lumberjack.Logger
	path   string
	index  *knowledge.MemoryStore
	now    func() time.Time
}

var _ knowledge.Store = (*JSONLStore)(nil)
var _ knowledge.FleetSeeder = (*JSONLStore)(nil)

// JSONLConfig sets the journal location and rotation in megabytes and days.
type JSONLConfig struct {
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
	Compress   bool   `json:"compress"`
}

// NewJSONLStore opens the journal and replays existing files, rotated ones
// included, into the index.
func NewJSONLStore(cfg JSONLConfig) (*JSONLStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("jsonl store: path is required")
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	s := &JSONLStore{
		writer: &lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		},
		path:  cfg.Path,
		index: knowledge.NewMemoryStore(),
		now:   time.Now,
	}
	if err := s.replay(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

// journalFiles returns rotated backups, oldest first, then the live file.
func (s *JSONLStore) journalFiles() ([]string, error) {
	ext := filepath.Ext(s.path)
	prefix := s.path[:len(s.path)-len(ext)]
	backups, err := filepath.Glob(prefix + "-*" + ext)
	if err != nil {
		return nil, err
	}
	sort.Strings(backups)
	if _, err := os.Stat(s.path); err == nil {
		backups = append(backups, s.path)
	}
	return backups, nil
}

func (s *JSONLStore) replay(ctx context.Context) error {
	files, err := s.journalFiles()
	if err != nil {
		return err
	}
	for _, name := range files {
		f, err := os.Open(name)
		if err != nil {
			continue
		}
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			var rec journalRecord
			if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
				continue
			}
			if err := s.apply(ctx, rec); err != nil {
				_ = f.Close()
				return fmt.Errorf("replay %s: %w", name, err)
			}
		}
		_ = f.Close()
	}
	return nil
}

func (s *JSONLStore) apply(ctx context.Context, rec journalRecord) error {
	switch rec.Kind {
	case kindReference:
		var r refCoords
		if err := json.Unmarshal(rec.Payload, &r); err != nil {
			return err
		}
		return s.index.StoreReferenceCoordinates(ctx, rec.MissionID, r.Latitude, r.Longitude)
	case kindMission:
		var m model.Mission
		if err := json.Unmarshal(rec.Payload, &m); err != nil {
			return err
		}
		return s.index.StoreMission(ctx, m)
	case kindAssigned, kindFleet:
		var vs []model.Vehicle
		if err := json.Unmarshal(rec.Payload, &vs); err != nil {
			return err
		}
		if rec.Kind == kindFleet {
			return s.index.SeedFleet(ctx, vs)
		}
		return s.index.StoreAssignedVehicles(ctx, rec.MissionID, vs)
	case kindTask:
		var r knowledge.TaskReport
		if err := json.Unmarshal(rec.Payload, &r); err != nil {
			return err
		}
		return s.index.StoreTaskReport(ctx, r)
	case kindEvent:
		var e knowledge.EventRecord
		if err := json.Unmarshal(rec.Payload, &e); err != nil {
			return err
		}
		return s.index.StoreEvent(ctx, e)
	case kindState:
		var sv model.StateVector
		if err := json.Unmarshal(rec.Payload, &sv); err != nil {
			return err
		}
		return s.index.StoreStateVector(ctx, sv)
	case kindSalinity:
		var sal knowledge.Salinity
		if err := json.Unmarshal(rec.Payload, &sal); err != nil {
			return err
		}
		return s.index.StoreSalinity(ctx, sal)
	}
	return nil
}

// append journals the record then applies it to the index.
func (s *JSONLStore) append(ctx context.Context, kind string, missionID int, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	rec := journalRecord{Kind: kind, MissionID: missionID, Time: s.now().UTC(), Payload: b}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := json.NewEncoder(s.writer).Encode(rec); err != nil {
		return fmt.Errorf("journal %s: %w", kind, err)
	}
	return s.apply(ctx, rec)
}

func (s *JSONLStore) SeedFleet(ctx context.Context, vehicles []model.Vehicle) error {
	return s.append(ctx, kindFleet, 0, vehicles)
}

func (s *JSONLStore) StoreReferenceCoordinates(ctx context.Context, missionID int, lat, lon float64) error {
	return s.append(ctx, kindReference, missionID, refCoords{Latitude: lat, Longitude: lon})
}

func (s *JSONLStore) StoreMission(ctx context.Context, m model.Mission) error {
	return s.append(ctx, kindMission, m.ID, m)
}

func (s *JSONLStore) StoreAssignedVehicles(ctx context.Context, missionID int, vehicles []model.Vehicle) error {
	return s.append(ctx, kindAssigned, missionID, vehicles)
}

func (s *JSONLStore) StoreTaskReport(ctx context.Context, r knowledge.TaskReport) error {
	return s.append(ctx, kindTask, r.MissionID, r)
}

func (s *JSONLStore) StoreEvent(ctx context.Context, e knowledge.EventRecord) error {
	return s.append(ctx, kindEvent, e.MissionID, e)
}

func (s *JSONLStore) StoreStateVector(ctx context.Context, sv model.StateVector) error {
	return s.append(ctx, kindState, sv.MissionID, sv)
}

func (s *JSONLStore) StoreSalinity(ctx context.Context, sal knowledge.Salinity) error {
	return s.append(ctx, kindSalinity, sal.MissionID, sal)
}

func (s *JSONLStore) AllVehicles(ctx context.Context) ([]model.Vehicle, error) {
	return s.index.AllVehicles(ctx)
}

func (s *JSONLStore) TaskReports(ctx context.Context, missionID int) ([]knowledge.TaskReport, error) {
	return s.index.TaskReports(ctx, missionID)
}

// Rotate forces the journal onto a new file.
func (s *JSONLStore) Rotate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writer.Rotate()
}

// Close closes the underlying writer.
func (s *JSONLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writer.Close()
}
