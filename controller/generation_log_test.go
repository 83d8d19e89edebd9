package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ezlinkai/ai-image-generator/model"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func useTestLogDB(t *testing.T) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&model.GenerationLog{}))
	prev := model.LOG_DB
	model.LOG_DB = db
	t.Cleanup(func() {
		model.LOG_DB = prev
		_ = sqlDB.Close()
	})
}

func TestGetGenerationLogsForSession(t *testing.T) {
	useTestLogDB(t)

	for i := 0; i < 3; i++ {
		model.RecordGenerationLog(context.Background(), model.NewGenerationLog("r", "session-logs", "m", "p", 1, time.Second))
	}
	model.RecordGenerationLog(context.Background(), model.NewGenerationLog("r", "session-b", "m", "p", 1, time.Second))

	r := newTestServer(t, &stubGenerator{})
	req := httptest.NewRequest(http.MethodGet, "/api/generations?page=0&pagesize=2", nil)
	req.Header.Set("X-Test-Session", "session-logs")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			List     []model.GenerationLog `json:"list"`
			Total    int64                 `json:"total"`
			PageSize int                   `json:"pageSize"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.EqualValues(t, 3, resp.Data.Total)
	assert.Len(t, resp.Data.List, 2)
	assert.Equal(t, 2, resp.Data.PageSize)
	for _, log := range resp.Data.List {
		assert.Equal(t, "session-logs", log.SessionId)
	}
}

func TestGenerateRecordsDurationFromClock(t *testing.T) {
	useTestLogDB(t)

	var ticks int
	var clockMu sync.Mutex
	r := newTestServerWithClock(t, &stubGenerator{payloads: []string{encoded("x")}}, func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()
		ticks++
		return testNow.Add(time.Duration(ticks) * time.Second)
	})
	req := httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader(`{"prompt":"p","count":1}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-Session", "session-duration")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var logs []*model.GenerationLog
	require.Eventually(t, func() bool {
		var err error
		logs, _, err = model.GetGenerationLogs("session-duration", "", 0, 10)
		return err == nil && len(logs) == 1
	}, 2*time.Second, 10*time.Millisecond)
	// the test clock advances one second per reading
	assert.Equal(t, 1.0, logs[0].Duration)
	assert.Equal(t, 1, logs[0].ImagesReturned)
}
