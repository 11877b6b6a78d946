package integrity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"taskvault/internal/models"
	"taskvault/internal/repositories"
	"taskvault/internal/storage"
)

func newTestManager(t *testing.T) (*Manager, *storage.Gateway, *repositories.TaskRepository, *repositories.ProjectRepository) {
	t.Helper()

	store := storage.NewMemoryStore(storage.MemoryStoreConfig{})
	gw := storage.NewGateway(store, storage.GatewayConfig{Prefix: "test:"})

	taskRepo := repositories.NewTaskRepository(gw, zap.NewNop(), nil)
	projectRepo := repositories.NewProjectRepository(gw, zap.NewNop(), nil)

	manager := NewManager(gw, zap.NewNop(), nil, taskRepo, projectRepo)
	return manager, gw, taskRepo, projectRepo
}

func TestValidate_CleanVault(t *testing.T) {
	manager, _, taskRepo, projectRepo := newTestManager(t)
	ctx := context.Background()

	projectRepo.EnsureDefaultExists(ctx)
	taskRepo.Create(ctx, models.TaskInput{Title: "fine"})

	report := manager.ValidateDataIntegrity(ctx)

	assert.True(t, report.Valid)
	assert.Len(t, report.Entities, 3)
}

func TestValidate_FindsCorruptedRecords(t *testing.T) {
	manager, gw, _, _ := newTestManager(t)
	ctx := context.Background()

	records := []map[string]any{
		{"id": "t1", "title": "good", "priority": "low", "projectId": "default"},
		{"id": "t2", "title": "", "priority": "nope"},
		{"id": "t1", "title": "dup id", "priority": "low", "projectId": "default"},
	}
	assert.NoError(t, gw.Save(storage.TasksKey, records))

	report := manager.ValidateDataIntegrity(ctx)

	assert.False(t, report.Valid)

	tasks := report.Entities[0]
	assert.Equal(t, "tasks", tasks.Entity)
	assert.Equal(t, 3, tasks.Total)
	assert.Len(t, tasks.Errors, 2)
}

func TestValidate_FlagsOrphanedProjectReference(t *testing.T) {
	manager, _, taskRepo, projectRepo := newTestManager(t)
	ctx := context.Background()

	projectRepo.EnsureDefaultExists(ctx)
	taskRepo.Create(ctx, models.TaskInput{Title: "orphan", ProjectID: "gone"})

	report := manager.ValidateDataIntegrity(ctx)

	assert.False(t, report.Valid)
}

func TestValidate_NeverMutates(t *testing.T) {
	manager, gw, _, _ := newTestManager(t)
	ctx := context.Background()

	records := []map[string]any{
		{"id": "t2", "title": "", "priority": "nope"},
	}
	assert.NoError(t, gw.Save(storage.TasksKey, records))

	manager.ValidateDataIntegrity(ctx)

	var raw []map[string]any
	assert.True(t, gw.Load(storage.TasksKey, &raw))
	assert.Len(t, raw, 1)
}

func TestRepair_RemovesBrokenAndReassignsOrphans(t *testing.T) {
	manager, gw, taskRepo, projectRepo := newTestManager(t)
	ctx := context.Background()

	projectRepo.EnsureDefaultExists(ctx)

	records := []map[string]any{
		{"id": "t1", "title": "good", "priority": "low", "projectId": "default"},
		{"id": "t2", "title": "", "priority": "nope"},
		{"id": "t3", "title": "orphan", "priority": "low", "projectId": "gone"},
	}
	assert.NoError(t, gw.Save(storage.TasksKey, records))

	result, err := manager.RepairData(ctx)

	assert.NoError(t, err)
	assert.Equal(t, 1, result.RemovedTasks)
	assert.Equal(t, 1, result.ReassignedTasks)

	// Repaired data is what the repository now serves.
	tasks := taskRepo.GetAll(ctx)
	assert.Len(t, tasks, 2)

	orphan, err := taskRepo.GetByID(ctx, "t3")
	assert.NoError(t, err)
	assert.Equal(t, models.DefaultProjectID, orphan.ProjectID)

	report := manager.ValidateDataIntegrity(ctx)
	assert.True(t, report.Valid)
}

func TestRepair_CleanVaultIsNoop(t *testing.T) {
	manager, _, taskRepo, projectRepo := newTestManager(t)
	ctx := context.Background()

	projectRepo.EnsureDefaultExists(ctx)
	taskRepo.Create(ctx, models.TaskInput{Title: "fine"})

	result, err := manager.RepairData(ctx)

	assert.NoError(t, err)
	assert.Zero(t, result.RemovedTasks)
	assert.Zero(t, result.RemovedProjects)
	assert.Zero(t, result.ReassignedTasks)
	assert.False(t, result.SettingsReset)
}

func TestForceRecovery_ReseedsMinimalState(t *testing.T) {
	manager, gw, taskRepo, projectRepo := newTestManager(t)
	ctx := context.Background()

	projectRepo.EnsureDefaultExists(ctx)
	taskRepo.Create(ctx, models.TaskInput{Title: "doomed"})

	assert.NoError(t, manager.ForceRecovery(ctx))

	assert.Empty(t, taskRepo.GetAll(ctx))

	projects := projectRepo.GetAll(ctx)
	assert.Len(t, projects, 1)
	assert.True(t, projects[0].IsDefault())

	var settings models.Settings
	assert.True(t, gw.Load(storage.SettingsKey, &settings))
	assert.Equal(t, "light", settings.Theme)
}
