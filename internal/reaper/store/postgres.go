package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/glassdome/overseer/internal/config"
	"github.com/glassdome/overseer/internal/reaper/types"
)

// PostgresStore is a gorm/Postgres-backed MissionStore: one row per
// mission, the full MissionState stored as a jsonb document column.
type PostgresStore struct {
	db *gorm.DB
}

// NewPostgresStore wraps an already-connected *gorm.DB.
func NewPostgresStore(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// ConnectPostgres dials cfg with gorm, retrying with linear backoff the
// way the teacher's database connector does, since Postgres may still be
// starting up when Glassdome does.
func ConnectPostgres(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var db *gorm.DB
	var err error

	const maxRetries = 10
	for i := 0; i < maxRetries; i++ {
		db, err = gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{})
		if err == nil {
			sqlDB, pingErr := db.DB()
			if pingErr == nil && sqlDB.Ping() == nil {
				break
			}
			err = pingErr
		}
		if i < maxRetries-1 {
			time.Sleep(time.Duration(i+1) * time.Second)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("store: connect to postgres after %d attempts: %w", maxRetries, err)
	}

	if err := db.AutoMigrate(&missionRecord{}); err != nil {
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return db, nil
}

func toDocument(m types.MissionState) (map[string]interface{}, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("store: marshal mission: %w", err)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("store: unmarshal mission to document: %w", err)
	}
	return doc, nil
}

func fromDocument(doc map[string]interface{}) (types.MissionState, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return types.MissionState{}, fmt.Errorf("store: marshal document: %w", err)
	}
	var m types.MissionState
	if err := json.Unmarshal(data, &m); err != nil {
		return types.MissionState{}, fmt.Errorf("store: unmarshal document to mission: %w", err)
	}
	return m, nil
}

// Load fetches a mission by id. ok is false if no such row exists.
func (s *PostgresStore) Load(ctx context.Context, missionID string) (types.MissionState, bool, error) {
	var rec missionRecord
	err := s.db.WithContext(ctx).First(&rec, "mission_id = ?", missionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.MissionState{}, false, nil
	}
	if err != nil {
		return types.MissionState{}, false, fmt.Errorf("store: load %s: %w", missionID, err)
	}
	m, err := fromDocument(rec.Document)
	if err != nil {
		return types.MissionState{}, false, err
	}
	return m, true, nil
}

// Save upserts the full record for mission.
func (s *PostgresStore) Save(ctx context.Context, mission types.MissionState) error {
	rec, err := toRecord(mission)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Save(&rec).Error
}

// Delete removes a mission's row. Deleting an absent mission is not an
// error (gorm's Delete is already idempotent on a missing primary key).
func (s *PostgresStore) Delete(ctx context.Context, missionID string) error {
	return s.db.WithContext(ctx).Delete(&missionRecord{}, "mission_id = ?", missionID).Error
}

// ListMissions returns every stored mission.
func (s *PostgresStore) ListMissions(ctx context.Context) ([]types.MissionState, error) {
	var recs []missionRecord
	if err := s.db.WithContext(ctx).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("store: list missions: %w", err)
	}
	out := make([]types.MissionState, 0, len(recs))
	for _, rec := range recs {
		m, err := fromDocument(rec.Document)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}
