package model

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// one connection so every query sees the same in-memory database
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, migrateDB(db))

	prevDB, prevLogDB := DB, LOG_DB
	DB, LOG_DB = db, db
	t.Cleanup(func() {
		_ = sqlDB.Close()
		DB, LOG_DB = prevDB, prevLogDB
	})
}

func TestRecordAndGetGenerationLogs(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		log := NewGenerationLog(fmt.Sprintf("req-%d", i), "sid-a", "google/imagen-3.0", "a red fox", 2, time.Second)
		log.ImagesReturned = 2
		RecordGenerationLog(ctx, log)
	}
	failed := NewGenerationLog("req-x", "sid-b", "google/imagen-3.0", "p", 1, time.Second)
	failed.ErrorKind = "auth_error"
	failed.StatusCode = 401
	RecordGenerationLog(ctx, failed)

	logs, total, err := GetGenerationLogs("", "", 0, 3)
	require.NoError(t, err)
	assert.EqualValues(t, 6, total)
	require.Len(t, logs, 3)
	assert.Equal(t, "req-x", logs[0].RequestId)
	assert.False(t, logs[0].Success())
	assert.NotZero(t, logs[0].CreatedAt)

	logs, total, err = GetGenerationLogs("sid-a", "", 3, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	assert.Len(t, logs, 2)

	logs, total, err = GetGenerationLogs("", "auth_error", 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, 401, logs[0].StatusCode)
}

func TestGenerationLogDoesNotKeepPromptText(t *testing.T) {
	log := NewGenerationLog("req", "sid", "m", "héllo", 1, time.Second)
	assert.Equal(t, 5, log.PromptLength)
}

func TestNewGenerationLogDuration(t *testing.T) {
	log := NewGenerationLog("req", "sid", "m", "p", 1, 1500*time.Millisecond)
	assert.Equal(t, 1.5, log.Duration)
}

func TestRecordGenerationLogWithoutDatabase(t *testing.T) {
	prev := LOG_DB
	LOG_DB = nil
	defer func() { LOG_DB = prev }()

	assert.NotPanics(t, func() {
		RecordGenerationLog(context.Background(), &GenerationLog{})
	})
}
