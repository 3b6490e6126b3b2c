package store

import (
	"time"

	"github.com/glassdome/overseer/internal/reaper/types"
)

// missionRecord is the gorm model backing one row per mission. The full
// MissionState (hosts, pending/completed/failed task lists) is stored as
// a single jsonb document rather than normalised across tables — the
// store never queries into its structure, only loads/saves it whole.
type missionRecord struct {
	MissionID   string                 `gorm:"column:mission_id;primaryKey"`
	LabID       string                 `gorm:"column:lab_id;index"`
	MissionType string                 `gorm:"column:mission_type"`
	Status      string                 `gorm:"column:status;index"`
	Document    map[string]interface{} `gorm:"column:document;type:jsonb"`
	CreatedAt   time.Time              `gorm:"column:created_at"`
	UpdatedAt   time.Time              `gorm:"column:updated_at"`
}

func (missionRecord) TableName() string { return "reaper_missions" }

func toRecord(m types.MissionState) (missionRecord, error) {
	doc, err := toDocument(m)
	if err != nil {
		return missionRecord{}, err
	}
	return missionRecord{
		MissionID:   m.MissionID,
		LabID:       m.LabID,
		MissionType: m.MissionType,
		Status:      string(m.Status),
		Document:    doc,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}, nil
}
