package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clipforge/config"
	"clipforge/state"
	"clipforge/task"
)

func setupTest(t *testing.T, cfg *config.Config) (*gin.Engine, state.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	if cfg == nil {
		cfg = &config.Config{}
	}
	if cfg.TaskDir == "" {
		cfg.TaskDir = t.TempDir()
	}

	store := state.NewMemoryStore()
	// Collaborators stay nil: the requests under test either stop at the
	// script stage with an explicit script, or never start a run.
	orc := task.NewOrchestrator(cfg, store, nil, nil, nil, nil, nil, nil, nil, nil)
	router := SetupRouter(NewHandler(orc, store, cfg), cfg)
	return router, store
}

func TestHealth(t *testing.T) {
	router, _ := setupTest(t, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/health", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateTask(t *testing.T) {
	router, store := setupTest(t, nil)

	body := `{"task_id": "t1", "video_script": "A ready made script.", "stop_at": "script"}`
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/tasks", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "t1", resp["task_id"])

	// The run completes in the background.
	require.Eventually(t, func() bool {
		rec, err := store.Get("t1")
		return err == nil && rec["state"] == task.StateComplete
	}, 2*time.Second, 10*time.Millisecond)

	rec, err := store.Get("t1")
	require.NoError(t, err)
	assert.Equal(t, 100, rec["progress"])
	assert.Equal(t, "A ready made script.", rec["script"])
}

func TestCreateTask_GeneratesID(t *testing.T) {
	router, _ := setupTest(t, nil)

	body := `{"video_script": "Some script.", "stop_at": "script"}`
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/tasks", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["task_id"])
}

func TestCreateTask_RequiresSubjectOrScript(t *testing.T) {
	router, _ := setupTest(t, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/tasks", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetTask(t *testing.T) {
	router, store := setupTest(t, nil)
	require.NoError(t, store.Update("t1", task.StateProcessing, 30, map[string]any{"script": "hi"}))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/tasks/t1", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Equal(t, "t1", rec["task_id"])
	assert.Equal(t, float64(30), rec["progress"])
	assert.Equal(t, "hi", rec["script"])
}

func TestGetTask_NotFound(t *testing.T) {
	router, _ := setupTest(t, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/tasks/nope", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteTask(t *testing.T) {
	router, store := setupTest(t, nil)
	require.NoError(t, store.Update("t1", task.StateComplete, 100, nil))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("DELETE", "/api/v1/tasks/t1", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	_, err := store.Get("t1")
	assert.ErrorIs(t, err, state.ErrNotFound)
}

func TestDeleteTask_NotFound(t *testing.T) {
	router, _ := setupTest(t, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("DELETE", "/api/v1/tasks/nope", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAuthMiddleware(t *testing.T) {
	cfg := &config.Config{AuthEnable: true, AuthKey: "secret"}
	router, store := setupTest(t, cfg)
	require.NoError(t, store.Update("t1", task.StateQueued, 0, nil))

	t.Run("missing header", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/v1/tasks/t1", nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("wrong token", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/v1/tasks/t1", nil)
		req.Header.Set("Authorization", "Bearer wrong")
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/v1/tasks/t1", nil)
		req.Header.Set("Authorization", "Bearer secret")
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("health needs no auth", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/health", nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
