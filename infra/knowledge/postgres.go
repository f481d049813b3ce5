package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kilianp07/mtrr/core/knowledge"
	"github.com/kilianp07/mtrr/core/model"
)

// Table models. Vehicles and missions keep their full JSON next to the
// columns used for lookups.
type vehicleRow struct {
	ID        int `gorm:"primaryKey;autoIncrement:false"`
	Name      string
	Type      string
	Record    string `gorm:"type:text"`
	UpdatedAt time.Time
}

func (vehicleRow) TableName() string { return "vehicles" }

type missionRow struct {
	ID       int `gorm:"primaryKey;autoIncrement:false"`
	Name     string
	Record   string `gorm:"type:text"`
	RefLat   float64
	RefLon   float64
	StoredAt time.Time
}

func (missionRow) TableName() string { return "missions" }

type missionVehicleRow struct {
	MissionID int `gorm:"primaryKey;autoIncrement:false"`
	VehicleID int `gorm:"primaryKey;autoIncrement:false"`
}

func (missionVehicleRow) TableName() string { return "mission_vehicles" }

type taskReportRow struct {
	ID         uint `gorm:"primaryKey"`
	MissionID  int  `gorm:"index"`
	VehicleID  int
	ActionID   int
	Subtype    int
	SeqOp      int
	Code       int
	Status     string
	EpochMS    int64
	ReceivedAt time.Time
}

func (taskReportRow) TableName() string { return "task_reports" }

type eventRow struct {
	ID          uint `gorm:"primaryKey"`
	MissionID   int  `gorm:"index"`
	VehicleID   int
	Subtype     int
	SeqOp       int
	EpochMS     int64
	ErrorID     int
	EventID     int
	Description string
	ReceivedAt  time.Time
}

func (eventRow) TableName() string { return "vehicle_events" }

type stateVectorRow struct {
	ID        uint `gorm:"primaryKey"`
	MissionID int  `gorm:"index"`
	VehicleID int
	TimeMS    int64
	Record    string `gorm:"type:text"`
}

func (stateVectorRow) TableName() string { return "state_vectors" }

type salinityRow struct {
	ID            uint `gorm:"primaryKey"`
	MissionID     int  `gorm:"index"`
	VehicleID     int
	Latitude      float64
	Longitude     float64
	Depth         float64
	Altitude      float64
	Concentration float64
	TimeMS        int64
}

func (salinityRow) TableName() string { return "salinity" }

// PostgresConfig addresses the database.
type PostgresConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

// dsn returns DSN when set, otherwise builds one from the parts.
func (c PostgresConfig) dsn() string {
	if c.DSN != "" {
		return c.DSN
	}
	port := c.Port
	if port == 0 {
		port = 5432
	}
	ssl := c.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
		c.Host, c.User, c.Password, c.DBName, port, ssl)
}

// PostgresStore persists mission knowledge through gorm.
type PostgresStore struct {
	db *gorm.DB
}

var _ knowledge.Store = (*PostgresStore)(nil)
var _ knowledge.FleetSeeder = (*PostgresStore)(nil)

// NewPostgresStore connects and migrates the schema.
func NewPostgresStore(cfg PostgresConfig) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.Open(cfg.dsn()), &gorm.Config{Logger: gormlogger.Discard})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return newGormStore(db)
}

func newGormStore(db *gorm.DB) (*PostgresStore, error) {
	if err := db.AutoMigrate(
		&vehicleRow{},
		&missionRow{},
		&missionVehicleRow{},
		&taskReportRow{},
		&eventRow{},
		&stateVectorRow{},
		&salinityRow{},
	); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func toVehicleRow(v model.Vehicle) (vehicleRow, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return vehicleRow{}, err
	}
	return vehicleRow{ID: v.ID, Name: v.Name, Type: v.Type.String(), Record: string(b), UpdatedAt: time.Now()}, nil
}

func upsertVehicles(tx *gorm.DB, vehicles []model.Vehicle) error {
	for _, v := range vehicles {
		row, err := toVehicleRow(v)
		if err != nil {
			return err
		}
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
			return fmt.Errorf("upsert vehicle %d: %w", v.ID, err)
		}
	}
	return nil
}

func (s *PostgresStore) SeedFleet(ctx context.Context, vehicles []model.Vehicle) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return upsertVehicles(tx, vehicles)
	})
}

func (s *PostgresStore) StoreReferenceCoordinates(ctx context.Context, missionID int, lat, lon float64) error {
	row := missionRow{ID: missionID, RefLat: lat, RefLon: lon, StoredAt: time.Now()}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"ref_lat", "ref_lon"}),
	}).Create(&row).Error
}

func (s *PostgresStore) StoreMission(ctx context.Context, m model.Mission) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	row := missionRow{ID: m.ID, Name: m.Name, Record: string(b), StoredAt: time.Now()}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "record", "stored_at"}),
	}).Create(&row).Error
}

func (s *PostgresStore) StoreAssignedVehicles(ctx context.Context, missionID int, vehicles []model.Vehicle) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := upsertVehicles(tx, vehicles); err != nil {
			return err
		}
		if err := tx.Where("mission_id = ?", missionID).Delete(&missionVehicleRow{}).Error; err != nil {
			return err
		}
		for _, v := range vehicles {
			if err := tx.Create(&missionVehicleRow{MissionID: missionID, VehicleID: v.ID}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *PostgresStore) StoreTaskReport(ctx context.Context, r knowledge.TaskReport) error {
	row := taskReportRow{
		MissionID: r.MissionID, VehicleID: r.VehicleID, ActionID: r.ActionID,
		Subtype: int(r.Subtype), SeqOp: int(r.SeqOp), Code: r.Code, Status: r.Status,
		EpochMS: r.EpochMS, ReceivedAt: r.ReceivedAt,
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *PostgresStore) StoreEvent(ctx context.Context, e knowledge.EventRecord) error {
	row := eventRow{
		MissionID: e.MissionID, VehicleID: e.VehicleID, Subtype: int(e.Subtype), SeqOp: int(e.SeqOp),
		EpochMS: e.EpochMS, ErrorID: e.ErrorID, EventID: e.EventID, Description: e.Description,
		ReceivedAt: e.ReceivedAt,
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

// StoreStateVector records the report and refreshes the vehicle row.
func (s *PostgresStore) StoreStateVector(ctx context.Context, sv model.StateVector) error {
	b, err := json.Marshal(sv)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&stateVectorRow{MissionID: sv.MissionID, VehicleID: sv.VehicleID, TimeMS: sv.TimeMS, Record: string(b)}).Error; err != nil {
			return err
		}
		var row vehicleRow
		err := tx.First(&row, sv.VehicleID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		var v model.Vehicle
		if err := json.Unmarshal([]byte(row.Record), &v); err != nil {
			return fmt.Errorf("unmarshal vehicle %d: %w", sv.VehicleID, err)
		}
		return upsertVehicles(tx, []model.Vehicle{knowledge.ApplyStateVector(v, sv)})
	})
}

func (s *PostgresStore) StoreSalinity(ctx context.Context, sal knowledge.Salinity) error {
	row := salinityRow{
		MissionID: sal.MissionID, VehicleID: sal.VehicleID, Latitude: sal.Latitude, Longitude: sal.Longitude,
		Depth: sal.Depth, Altitude: sal.Altitude, Concentration: sal.Concentration, TimeMS: sal.TimeMS,
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *PostgresStore) AllVehicles(ctx context.Context) ([]model.Vehicle, error) {
	var rows []vehicleRow
	if err := s.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]model.Vehicle, 0, len(rows))
	for _, r := range rows {
		var v model.Vehicle
		if err := json.Unmarshal([]byte(r.Record), &v); err != nil {
			return nil, fmt.Errorf("unmarshal vehicle %d: %w", r.ID, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *PostgresStore) TaskReports(ctx context.Context, missionID int) ([]knowledge.TaskReport, error) {
	var rows []taskReportRow
	if err := s.db.WithContext(ctx).Where("mission_id = ?", missionID).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]knowledge.TaskReport, 0, len(rows))
	for _, r := range rows {
		out = append(out, knowledge.TaskReport{
			MissionID: r.MissionID, VehicleID: r.VehicleID, ActionID: r.ActionID,
			Subtype: byte(r.Subtype), SeqOp: byte(r.SeqOp), Code: r.Code, Status: r.Status,
			EpochMS: r.EpochMS, ReceivedAt: r.ReceivedAt,
		})
	}
	return out, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
