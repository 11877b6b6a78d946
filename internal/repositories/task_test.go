package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"taskvault/internal/apperr"
	"taskvault/internal/models"
	"taskvault/internal/storage"
)

type TaskRepositoryTestSuite struct {
	suite.Suite
	gw   *storage.Gateway
	repo *TaskRepository
	ctx  context.Context
}

func (s *TaskRepositoryTestSuite) SetupTest() {
	store := storage.NewMemoryStore(storage.MemoryStoreConfig{})
	s.gw = storage.NewGateway(store, storage.GatewayConfig{Prefix: "test:"})
	s.repo = NewTaskRepository(s.gw, zap.NewNop(), nil)
	s.ctx = context.Background()
}

func TestTaskRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(TaskRepositoryTestSuite))
}

func (s *TaskRepositoryTestSuite) createTask(custom map[string]any) *models.Task {
	input := models.TaskInput{Title: "Task", Priority: "medium"}

	if title, ok := custom["Title"].(string); ok {
		input.Title = title
	}
	if priority, ok := custom["Priority"].(string); ok {
		input.Priority = priority
	}
	if projectID, ok := custom["ProjectID"].(string); ok {
		input.ProjectID = projectID
	}
	if due, ok := custom["DueDate"].(*time.Time); ok {
		input.DueDate = due
	}
	if completed, ok := custom["Completed"].(bool); ok {
		input.Completed = completed
	}

	task, err := s.repo.Create(s.ctx, input)
	assert.NoError(s.T(), err)
	return task
}

func (s *TaskRepositoryTestSuite) TestCreate_PersistsAndSurvivesReload() {
	task := s.createTask(map[string]any{"Title": "Persisted"})

	fresh := NewTaskRepository(s.gw, zap.NewNop(), nil)
	loaded, err := fresh.GetByID(s.ctx, task.ID)

	assert.NoError(s.T(), err)
	assert.Equal(s.T(), "Persisted", loaded.Title)
}

func (s *TaskRepositoryTestSuite) TestCreate_ValidationError() {
	_, err := s.repo.Create(s.ctx, models.TaskInput{Title: ""})

	assert.True(s.T(), errors.Is(err, apperr.ErrValidation))
	assert.Empty(s.T(), s.repo.GetAll(s.ctx))
}

func (s *TaskRepositoryTestSuite) TestGetByID_NotFound() {
	_, err := s.repo.GetByID(s.ctx, "missing")
	assert.True(s.T(), errors.Is(err, apperr.ErrNotFound))
}

func (s *TaskRepositoryTestSuite) TestGetByProject_DefaultIsMasterView() {
	s.createTask(map[string]any{"ProjectID": "work"})
	s.createTask(map[string]any{"ProjectID": "home"})
	s.createTask(map[string]any{})

	all := s.repo.GetByProject(s.ctx, models.DefaultProjectID)
	assert.Len(s.T(), all, 3)

	work := s.repo.GetByProject(s.ctx, "work")
	assert.Len(s.T(), work, 1)
}

func (s *TaskRepositoryTestSuite) TestUpdate_PersistsChanges() {
	task := s.createTask(map[string]any{})

	title := "Renamed"
	updated, err := s.repo.Update(s.ctx, task.ID, models.TaskPatch{Title: &title})

	assert.NoError(s.T(), err)
	assert.Equal(s.T(), "Renamed", updated.Title)

	fresh := NewTaskRepository(s.gw, zap.NewNop(), nil)
	loaded, _ := fresh.GetByID(s.ctx, task.ID)
	assert.Equal(s.T(), "Renamed", loaded.Title)
}

func (s *TaskRepositoryTestSuite) TestUpdate_InvalidPatchKeepsOriginal() {
	task := s.createTask(map[string]any{"Title": "Original"})

	empty := ""
	_, err := s.repo.Update(s.ctx, task.ID, models.TaskPatch{Title: &empty})

	assert.True(s.T(), errors.Is(err, apperr.ErrValidation))

	loaded, _ := s.repo.GetByID(s.ctx, task.ID)
	assert.Equal(s.T(), "Original", loaded.Title)
}

func (s *TaskRepositoryTestSuite) TestDelete() {
	task := s.createTask(map[string]any{})

	assert.NoError(s.T(), s.repo.Delete(s.ctx, task.ID))
	assert.Empty(s.T(), s.repo.GetAll(s.ctx))

	err := s.repo.Delete(s.ctx, task.ID)
	assert.True(s.T(), errors.Is(err, apperr.ErrNotFound))
}

func (s *TaskRepositoryTestSuite) TestToggleCompletion() {
	task := s.createTask(map[string]any{})

	toggled, err := s.repo.ToggleCompletion(s.ctx, task.ID)
	assert.NoError(s.T(), err)
	assert.True(s.T(), toggled.Completed)

	toggled, err = s.repo.ToggleCompletion(s.ctx, task.ID)
	assert.NoError(s.T(), err)
	assert.False(s.T(), toggled.Completed)
}

func (s *TaskRepositoryTestSuite) TestMoveToProject_EmptyMeansDefault() {
	task := s.createTask(map[string]any{"ProjectID": "work"})

	moved, err := s.repo.MoveToProject(s.ctx, task.ID, "")
	assert.NoError(s.T(), err)
	assert.Equal(s.T(), models.DefaultProjectID, moved.ProjectID)
}

func (s *TaskRepositoryTestSuite) TestLoad_DropsCorruptedRecords() {
	valid := s.createTask(map[string]any{"Title": "Good"})

	// Rewrite the stored collection with a broken record alongside the
	// good one.
	records := []map[string]any{
		{"id": valid.ID, "title": "Good", "priority": "medium", "projectId": "default"},
		{"id": "bad", "title": "", "priority": "nope"},
	}
	assert.NoError(s.T(), s.gw.Save(storage.TasksKey, records))

	fresh := NewTaskRepository(s.gw, zap.NewNop(), nil)
	tasks := fresh.GetAll(s.ctx)

	assert.Len(s.T(), tasks, 1)
	assert.Equal(s.T(), "Good", tasks[0].Title)
}

func (s *TaskRepositoryTestSuite) TestChecklistOperationsPersist() {
	task := s.createTask(map[string]any{})

	item, err := s.repo.AddChecklistItem(s.ctx, task.ID, "step")
	assert.NoError(s.T(), err)

	done := true
	assert.NoError(s.T(), s.repo.UpdateChecklistItem(s.ctx, task.ID, item.ID, nil, &done))

	fresh := NewTaskRepository(s.gw, zap.NewNop(), nil)
	loaded, _ := fresh.GetByID(s.ctx, task.ID)
	assert.Len(s.T(), loaded.Checklist, 1)
	assert.True(s.T(), loaded.Checklist[0].Completed)

	assert.NoError(s.T(), s.repo.RemoveChecklistItem(s.ctx, task.ID, item.ID))

	err = s.repo.RemoveChecklistItem(s.ctx, task.ID, item.ID)
	assert.True(s.T(), errors.Is(err, apperr.ErrNotFound))
}

func (s *TaskRepositoryTestSuite) TestFilter() {
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(48 * time.Hour)

	s.createTask(map[string]any{"Title": "Pay rent", "Priority": "high", "DueDate": &past})
	s.createTask(map[string]any{"Title": "Water plants", "Priority": "low", "DueDate": &future})
	s.createTask(map[string]any{"Title": "Pay taxes", "Priority": "high", "Completed": true})

	high := s.repo.Filter(s.ctx, TaskFilter{Priority: "high"})
	assert.Len(s.T(), high, 2)

	completed := true
	done := s.repo.Filter(s.ctx, TaskFilter{Completed: &completed})
	assert.Len(s.T(), done, 1)

	overdue := true
	late := s.repo.Filter(s.ctx, TaskFilter{Overdue: &overdue})
	assert.Len(s.T(), late, 1)
	assert.Equal(s.T(), "Pay rent", late[0].Title)

	pay := s.repo.Filter(s.ctx, TaskFilter{Search: "pay"})
	assert.Len(s.T(), pay, 2)

	cutoff := time.Now().Add(24 * time.Hour)
	soon := s.repo.Filter(s.ctx, TaskFilter{DueBefore: &cutoff})
	assert.Len(s.T(), soon, 1)
}

func (s *TaskRepositoryTestSuite) TestSorted_PriorityThenStability() {
	s.createTask(map[string]any{"Title": "b", "Priority": "low"})
	s.createTask(map[string]any{"Title": "a", "Priority": "high"})
	s.createTask(map[string]any{"Title": "c", "Priority": "high"})

	sorted := s.repo.Sorted(s.ctx, SortByPriority, false)

	assert.Equal(s.T(), "a", sorted[0].Title)
	assert.Equal(s.T(), "c", sorted[1].Title)
	assert.Equal(s.T(), "b", sorted[2].Title)
}

func (s *TaskRepositoryTestSuite) TestSorted_UndatedTasksLast() {
	later := time.Now().Add(48 * time.Hour)
	sooner := time.Now().Add(time.Hour)

	s.createTask(map[string]any{"Title": "undated"})
	s.createTask(map[string]any{"Title": "later", "DueDate": &later})
	s.createTask(map[string]any{"Title": "sooner", "DueDate": &sooner})

	sorted := s.repo.Sorted(s.ctx, SortByDueDate, false)

	assert.Equal(s.T(), "sooner", sorted[0].Title)
	assert.Equal(s.T(), "later", sorted[1].Title)
	assert.Equal(s.T(), "undated", sorted[2].Title)
}

func (s *TaskRepositoryTestSuite) TestStats() {
	past := time.Now().Add(-time.Hour)

	s.createTask(map[string]any{"Priority": "high", "DueDate": &past})
	s.createTask(map[string]any{"Priority": "low", "Completed": true})
	task := s.createTask(map[string]any{"Priority": "medium"})
	s.repo.AddChecklistItem(s.ctx, task.ID, "step")

	stats := s.repo.Stats(s.ctx, "")

	assert.Equal(s.T(), 3, stats.Total)
	assert.Equal(s.T(), 1, stats.Completed)
	assert.Equal(s.T(), 2, stats.Pending)
	assert.Equal(s.T(), 1, stats.Overdue)
	assert.Equal(s.T(), 1, stats.HighPriority)
	assert.Equal(s.T(), 1, stats.WithChecklist)
	assert.Equal(s.T(), 33, stats.CompletionRate)
}

func (s *TaskRepositoryTestSuite) TestStats_ScopedToProject() {
	s.createTask(map[string]any{"ProjectID": "work"})
	s.createTask(map[string]any{"ProjectID": "home"})

	stats := s.repo.Stats(s.ctx, "work")
	assert.Equal(s.T(), 1, stats.Total)

	master := s.repo.Stats(s.ctx, models.DefaultProjectID)
	assert.Equal(s.T(), 2, master.Total)
}

func (s *TaskRepositoryTestSuite) TestBulkUpdate_PartialSuccess() {
	task := s.createTask(map[string]any{})

	completed := true
	result := s.repo.BulkUpdate(s.ctx, []string{task.ID, "missing"}, models.TaskPatch{Completed: &completed})

	assert.Equal(s.T(), []string{task.ID}, result.Succeeded)
	assert.Len(s.T(), result.Errors, 1)
	assert.Equal(s.T(), "missing", result.Errors[0].ID)
}

func (s *TaskRepositoryTestSuite) TestBulkDelete_PartialSuccess() {
	task1 := s.createTask(map[string]any{})
	task2 := s.createTask(map[string]any{})

	result := s.repo.BulkDelete(s.ctx, []string{task1.ID, "ghost", task2.ID})

	assert.Len(s.T(), result.Succeeded, 2)
	assert.Len(s.T(), result.Errors, 1)
	assert.Empty(s.T(), s.repo.GetAll(s.ctx))
}

func (s *TaskRepositoryTestSuite) TestCounts() {
	s.createTask(map[string]any{"ProjectID": "work"})
	s.createTask(map[string]any{"ProjectID": "work"})
	s.createTask(map[string]any{})

	assert.Equal(s.T(), 3, s.repo.CountAll())
	assert.Equal(s.T(), 2, s.repo.CountByProject("work"))
	assert.Equal(s.T(), 1, s.repo.CountByProject(models.DefaultProjectID))
}
