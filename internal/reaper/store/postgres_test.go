package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/glassdome/overseer/internal/reaper/types"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
		},
	})
	require.NoError(t, err)

	return gormDB, mock
}

func TestPostgresStore_Load_NotFoundReturnsOkFalse(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	s := NewPostgresStore(gormDB)

	mock.ExpectQuery(`SELECT \* FROM "reaper_missions"`).
		WillReturnError(gorm.ErrRecordNotFound)

	_, ok, err := s.Load(context.Background(), "m1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPostgresStore_Save_UpsertsRecord(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	s := NewPostgresStore(gormDB)

	mission := types.MissionState{
		MissionID:   "m1",
		LabID:       "lab-1",
		MissionType: "standard",
		Status:      types.MissionRunning,
		Hosts:       map[string]types.HostState{},
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "reaper_missions"`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := s.Save(context.Background(), mission)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
