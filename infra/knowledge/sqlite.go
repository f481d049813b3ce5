package knowledge

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kilianp07/mtrr/core/knowledge"
	"github.com/kilianp07/mtrr/core/model"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS vehicles (
    id INTEGER PRIMARY KEY,
    record TEXT NOT NULL,
    updated_at INTEGER
);
CREATE TABLE IF NOT EXISTS missions (
    id INTEGER PRIMARY KEY,
    name TEXT,
    record TEXT,
    ref_lat REAL,
    ref_lon REAL,
    stored_at INTEGER
);
CREATE TABLE IF NOT EXISTS mission_vehicles (
    mission_id INTEGER NOT NULL,
    vehicle_id INTEGER NOT NULL,
    PRIMARY KEY (mission_id, vehicle_id)
);
CREATE TABLE IF NOT EXISTS task_reports (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    mission_id INTEGER,
    vehicle_id INTEGER,
    action_id INTEGER,
    subtype INTEGER,
    seq_op INTEGER,
    code INTEGER,
    status TEXT,
    epoch_ms INTEGER,
    received_at INTEGER
);
CREATE INDEX IF NOT EXISTS task_reports_mission ON task_reports (mission_id);
CREATE TABLE IF NOT EXISTS vehicle_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    mission_id INTEGER,
    vehicle_id INTEGER,
    subtype INTEGER,
    seq_op INTEGER,
    epoch_ms INTEGER,
    error_id INTEGER,
    event_id INTEGER,
    description TEXT,
    received_at INTEGER
);
CREATE TABLE IF NOT EXISTS state_vectors (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    mission_id INTEGER,
    vehicle_id INTEGER,
    time_ms INTEGER,
    record TEXT
);
CREATE TABLE IF NOT EXISTS salinity (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    mission_id INTEGER,
    vehicle_id INTEGER,
    latitude REAL,
    longitude REAL,
    depth REAL,
    altitude REAL,
    concentration REAL,
    time_ms INTEGER
);`

// SQLiteStore persists mission knowledge to a SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ knowledge.Store = (*SQLiteStore)(nil)
var _ knowledge.FleetSeeder = (*SQLiteStore)(nil)

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single connection serialises writers; ":memory:" databases are
	// per connection as well.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

func (s *SQLiteStore) upsertVehicle(ctx context.Context, tx *sql.Tx, v model.Vehicle) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO vehicles (id, record, updated_at) VALUES (?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET record = excluded.record, updated_at = excluded.updated_at`,
		v.ID, string(b), s.now().Unix())
	return err
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// SeedFleet upserts the configured fleet.
func (s *SQLiteStore) SeedFleet(ctx context.Context, vehicles []model.Vehicle) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, v := range vehicles {
			if err := s.upsertVehicle(ctx, tx, v); err != nil {
				return fmt.Errorf("seed vehicle %d: %w", v.ID, err)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) StoreReferenceCoordinates(ctx context.Context, missionID int, lat, lon float64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO missions (id, ref_lat, ref_lon, stored_at) VALUES (?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET ref_lat = excluded.ref_lat, ref_lon = excluded.ref_lon`,
		missionID, lat, lon, s.now().Unix())
	return err
}

func (s *SQLiteStore) StoreMission(ctx context.Context, m model.Mission) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO missions (id, name, record, stored_at) VALUES (?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET name = excluded.name, record = excluded.record, stored_at = excluded.stored_at`,
		m.ID, m.Name, string(b), s.now().Unix())
	return err
}

// StoreAssignedVehicles upserts the vehicles and links them to the mission.
func (s *SQLiteStore) StoreAssignedVehicles(ctx context.Context, missionID int, vehicles []model.Vehicle) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM mission_vehicles WHERE mission_id = ?`, missionID); err != nil {
			return err
		}
		for _, v := range vehicles {
			if err := s.upsertVehicle(ctx, tx, v); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO mission_vehicles (mission_id, vehicle_id) VALUES (?, ?)`, missionID, v.ID); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLiteStore) StoreTaskReport(ctx context.Context, r knowledge.TaskReport) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO task_reports (mission_id, vehicle_id, action_id, subtype, seq_op, code, status, epoch_ms, received_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.MissionID, r.VehicleID, r.ActionID, int(r.Subtype), int(r.SeqOp), r.Code, r.Status, r.EpochMS, r.ReceivedAt.UnixMilli())
	return err
}

func (s *SQLiteStore) StoreEvent(ctx context.Context, e knowledge.EventRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO vehicle_events (mission_id, vehicle_id, subtype, seq_op, epoch_ms, error_id, event_id, description, received_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.MissionID, e.VehicleID, int(e.Subtype), int(e.SeqOp), e.EpochMS, e.ErrorID, e.EventID, e.Description, e.ReceivedAt.UnixMilli())
	return err
}

// StoreStateVector records the report and refreshes the vehicle row.
func (s *SQLiteStore) StoreStateVector(ctx context.Context, sv model.StateVector) error {
	b, err := json.Marshal(sv)
	if err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO state_vectors (mission_id, vehicle_id, time_ms, record) VALUES (?, ?, ?, ?)`,
			sv.MissionID, sv.VehicleID, sv.TimeMS, string(b)); err != nil {
			return err
		}
		var rec string
		err := tx.QueryRowContext(ctx, `SELECT record FROM vehicles WHERE id = ?`, sv.VehicleID).Scan(&rec)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		var v model.Vehicle
		if err := json.Unmarshal([]byte(rec), &v); err != nil {
			return fmt.Errorf("unmarshal vehicle %d: %w", sv.VehicleID, err)
		}
		return s.upsertVehicle(ctx, tx, knowledge.ApplyStateVector(v, sv))
	})
}

func (s *SQLiteStore) StoreSalinity(ctx context.Context, sal knowledge.Salinity) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO salinity (mission_id, vehicle_id, latitude, longitude, depth, altitude, concentration, time_ms)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sal.MissionID, sal.VehicleID, sal.Latitude, sal.Longitude, sal.Depth, sal.Altitude, sal.Concentration, sal.TimeMS)
	return err
}

func (s *SQLiteStore) AllVehicles(ctx context.Context) ([]model.Vehicle, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT record FROM vehicles ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []model.Vehicle
	for rows.Next() {
		var rec string
		if err := rows.Scan(&rec); err != nil {
			return nil, err
		}
		var v model.Vehicle
		if err := json.Unmarshal([]byte(rec), &v); err != nil {
			return nil, fmt.Errorf("unmarshal vehicle: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) TaskReports(ctx context.Context, missionID int) ([]knowledge.TaskReport, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT mission_id, vehicle_id, action_id, subtype, seq_op, code, status, epoch_ms, received_at
         FROM task_reports WHERE mission_id = ? ORDER BY id`, missionID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []knowledge.TaskReport
	for rows.Next() {
		var r knowledge.TaskReport
		var subtype, seq int
		var received int64
		if err := rows.Scan(&r.MissionID, &r.VehicleID, &r.ActionID, &subtype, &seq, &r.Code, &r.Status, &r.EpochMS, &received); err != nil {
			return nil, err
		}
		r.Subtype, r.SeqOp = byte(subtype), byte(seq)
		r.ReceivedAt = time.UnixMilli(received)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ReferenceCoordinates returns the origin stored for a mission.
func (s *SQLiteStore) ReferenceCoordinates(ctx context.Context, missionID int) (lat, lon float64, err error) {
	err = s.db.QueryRowContext(ctx, `SELECT COALESCE(ref_lat, 0), COALESCE(ref_lon, 0) FROM missions WHERE id = ?`, missionID).Scan(&lat, &lon)
	return lat, lon, err
}

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
