package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"

	"taskvault/internal/handlers"
	"taskvault/internal/integrity"
	"taskvault/internal/repositories"
	"taskvault/internal/routes"
	"taskvault/internal/storage"
)

func setupTestRouter(t *testing.T) (*gin.Engine, *storage.Gateway) {
	t.Helper()

	store := storage.NewMemoryStore(storage.MemoryStoreConfig{})
	gw := storage.NewGateway(store, storage.GatewayConfig{Prefix: "test:"})

	logger := otelzap.New(zap.NewNop())

	taskRepo := repositories.NewTaskRepository(gw, zap.NewNop(), nil)
	projectRepo := repositories.NewProjectRepository(gw, zap.NewNop(), nil)
	settingsRepo := repositories.NewSettingsRepository(gw, zap.NewNop())
	manager := integrity.NewManager(gw, zap.NewNop(), nil, taskRepo, projectRepo)

	router := routes.SetupRouterForTests(routes.HandlersConfig{
		TaskHandler:      handlers.NewTaskHandler(taskRepo, logger),
		ProjectHandler:   handlers.NewProjectHandler(projectRepo, taskRepo, logger),
		SettingsHandler:  handlers.NewSettingsHandler(settingsRepo, logger),
		IntegrityHandler: handlers.NewIntegrityHandler(manager, gw, logger),
	})

	return router, gw
}

func doRequest(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader

	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestTaskEndpoints_CreateAndFetch(t *testing.T) {
	router, _ := setupTestRouter(t)

	created := doRequest(router, http.MethodPost, "/tasks", map[string]any{
		"title":    "Ship release",
		"priority": "high",
	})
	assert.Equal(t, http.StatusCreated, created.Code)

	var response struct {
		Data struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"data"`
	}
	assert.NoError(t, json.Unmarshal(created.Body.Bytes(), &response))
	assert.NotEmpty(t, response.Data.ID)

	fetched := doRequest(router, http.MethodGet, "/tasks/"+response.Data.ID, nil)
	assert.Equal(t, http.StatusOK, fetched.Code)

	list := doRequest(router, http.MethodGet, "/tasks?priority=high", nil)
	assert.Equal(t, http.StatusOK, list.Code)
	assert.Contains(t, list.Body.String(), "Ship release")
}

func TestTaskEndpoints_ValidationError(t *testing.T) {
	router, _ := setupTestRouter(t)

	response := doRequest(router, http.MethodPost, "/tasks", map[string]any{
		"title":    "",
		"priority": "urgent",
	})

	assert.Equal(t, http.StatusBadRequest, response.Code)
	assert.Contains(t, response.Body.String(), "VALIDATION_ERROR")
}

func TestTaskEndpoints_NotFound(t *testing.T) {
	router, _ := setupTestRouter(t)

	response := doRequest(router, http.MethodGet, "/tasks/ghost", nil)
	assert.Equal(t, http.StatusNotFound, response.Code)
	assert.Contains(t, response.Body.String(), "NOT_FOUND")
}

func TestProjectEndpoints_ConflictOnDuplicateName(t *testing.T) {
	router, _ := setupTestRouter(t)

	first := doRequest(router, http.MethodPost, "/projects", map[string]any{"name": "Work"})
	assert.Equal(t, http.StatusCreated, first.Code)

	duplicate := doRequest(router, http.MethodPost, "/projects", map[string]any{"name": "work"})
	assert.Equal(t, http.StatusConflict, duplicate.Code)
	assert.Contains(t, duplicate.Body.String(), "CONFLICT")
}

func TestProjectEndpoints_DeleteMovesTasksToDefault(t *testing.T) {
	router, _ := setupTestRouter(t)

	var project struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	created := doRequest(router, http.MethodPost, "/projects", map[string]any{"name": "Doomed"})
	json.Unmarshal(created.Body.Bytes(), &project)

	doRequest(router, http.MethodPost, "/tasks", map[string]any{
		"title":     "Survivor",
		"projectId": project.Data.ID,
	})

	deleted := doRequest(router, http.MethodDelete, "/projects/"+project.Data.ID, nil)
	assert.Equal(t, http.StatusOK, deleted.Code)

	list := doRequest(router, http.MethodGet, "/tasks?project=default", nil)
	assert.Contains(t, list.Body.String(), "Survivor")
}

func TestSettingsEndpoints_PatchAndReset(t *testing.T) {
	router, _ := setupTestRouter(t)

	patched := doRequest(router, http.MethodPatch, "/settings", map[string]any{
		"theme": "dark",
	})
	assert.Equal(t, http.StatusOK, patched.Code)
	assert.Contains(t, patched.Body.String(), "dark")

	reset := doRequest(router, http.MethodPost, "/settings/reset", nil)
	assert.Equal(t, http.StatusOK, reset.Code)
	assert.Contains(t, reset.Body.String(), "light")
}

func TestStorageEndpoints_StatusAndMigrateBack(t *testing.T) {
	router, gw := setupTestRouter(t)

	status := doRequest(router, http.MethodGet, "/storage/status", nil)
	assert.Equal(t, http.StatusOK, status.Code)
	assert.Contains(t, status.Body.String(), `"available":true`)

	// Not on fallback, so migrate-back is a cheap no-op.
	migrate := doRequest(router, http.MethodPost, "/storage/migrate-back", nil)
	assert.Equal(t, http.StatusOK, migrate.Code)
	assert.False(t, gw.UsingFallback())
}

func TestIntegrityEndpoints_ValidateAndRepair(t *testing.T) {
	router, gw := setupTestRouter(t)

	doRequest(router, http.MethodPost, "/tasks", map[string]any{"title": "ok"})

	valid := doRequest(router, http.MethodGet, "/integrity/validate", nil)
	assert.Equal(t, http.StatusOK, valid.Code)

	// Corrupt the stored collection directly, then expect the validate
	// endpoint to flag it and repair to clean it up.
	gw.Save(storage.TasksKey, []map[string]any{
		{"id": "bad", "title": "", "priority": "nope"},
	})

	invalid := doRequest(router, http.MethodGet, "/integrity/validate", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, invalid.Code)

	repaired := doRequest(router, http.MethodPost, "/integrity/repair", nil)
	assert.Equal(t, http.StatusOK, repaired.Code)

	clean := doRequest(router, http.MethodGet, "/integrity/validate", nil)
	assert.Equal(t, http.StatusOK, clean.Code)
}
