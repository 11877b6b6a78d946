package repositories

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"taskvault/internal/apperr"
	"taskvault/internal/models"
	"taskvault/internal/shared"
	"taskvault/internal/storage"
)

// TaskRepository owns the authoritative in-memory task collection and
// keeps it synchronized with the persistence gateway after every
// mutation. Methods take a context to keep the contract asynchronous-
// shaped for future backends; the underlying store is synchronous and
// nothing suspends mid-mutation.
type TaskRepository struct {
	gw      *storage.Gateway
	logger  *zap.Logger
	metrics *shared.StorageMetrics

	mu     sync.Mutex
	tasks  []*models.Task
	loaded bool
}

func NewTaskRepository(gw *storage.Gateway, logger *zap.Logger, metrics *shared.StorageMetrics) *TaskRepository {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &TaskRepository{gw: gw, logger: logger, metrics: metrics}
}

// ensureLoadedLocked lazily loads the persisted collection. Records that
// fail validation are dropped with a logged warning; the load itself
// never fails.
func (r *TaskRepository) ensureLoadedLocked() {
	if r.loaded {
		return
	}

	r.loaded = true

	var raws []json.RawMessage
	if !r.gw.Load(storage.TasksKey, &raws) {
		r.tasks = []*models.Task{}
		return
	}

	tasks := make([]*models.Task, 0, len(raws))

	for _, raw := range raws {
		task, err := models.TaskFromRecord(raw)
		if err != nil {
			r.logger.Warn("dropping corrupted task record", zap.Error(err))
			r.metrics.RecordDroppedRecord("task")
			continue
		}
		tasks = append(tasks, task)
	}

	r.tasks = tasks
}

func (r *TaskRepository) persistLocked() error {
	return r.gw.Save(storage.TasksKey, r.tasks)
}

func (r *TaskRepository) findLocked(id string) (int, *models.Task) {
	for i, task := range r.tasks {
		if task.ID == id {
			return i, task
		}
	}
	return -1, nil
}

func (r *TaskRepository) Create(ctx context.Context, input models.TaskInput) (*models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureLoadedLocked()

	task, err := models.NewTask(input)
	if err != nil {
		return nil, err
	}

	r.tasks = append(r.tasks, task)

	if err := r.persistLocked(); err != nil {
		r.tasks = r.tasks[:len(r.tasks)-1]
		return nil, err
	}

	return task, nil
}

func (r *TaskRepository) GetByID(ctx context.Context, id string) (*models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureLoadedLocked()

	_, task := r.findLocked(id)
	if task == nil {
		return nil, apperr.NewNotFoundError("task", id)
	}

	return task, nil
}

func (r *TaskRepository) GetAll(ctx context.Context) []*models.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureLoadedLocked()

	out := make([]*models.Task, len(r.tasks))
	copy(out, r.tasks)
	return out
}

// GetByProject returns the tasks assigned to a project. The reserved
// default project acts as the all-tasks master view and returns the
// full collection regardless of each task's actual project.
func (r *TaskRepository) GetByProject(ctx context.Context, projectID string) []*models.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureLoadedLocked()

	if projectID == models.DefaultProjectID {
		out := make([]*models.Task, len(r.tasks))
		copy(out, r.tasks)
		return out
	}

	out := []*models.Task{}
	for _, task := range r.tasks {
		if task.ProjectID == projectID {
			out = append(out, task)
		}
	}
	return out
}

func (r *TaskRepository) Update(ctx context.Context, id string, patch models.TaskPatch) (*models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureLoadedLocked()

	return r.updateLocked(id, patch)
}

func (r *TaskRepository) updateLocked(id string, patch models.TaskPatch) (*models.Task, error) {
	_, task := r.findLocked(id)
	if task == nil {
		return nil, apperr.NewNotFoundError("task", id)
	}

	snapshot := task.Clone()

	if err := task.Update(patch); err != nil {
		return nil, err
	}

	if err := r.persistLocked(); err != nil {
		*task = *snapshot
		return nil, err
	}

	return task, nil
}

func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureLoadedLocked()

	return r.deleteLocked(id)
}

func (r *TaskRepository) deleteLocked(id string) error {
	idx, _ := r.findLocked(id)
	if idx < 0 {
		return apperr.NewNotFoundError("task", id)
	}

	removed := r.tasks[idx]
	r.tasks = append(r.tasks[:idx], r.tasks[idx+1:]...)

	if err := r.persistLocked(); err != nil {
		r.tasks = append(r.tasks, nil)
		copy(r.tasks[idx+1:], r.tasks[idx:])
		r.tasks[idx] = removed
		return err
	}

	return nil
}

func (r *TaskRepository) ToggleCompletion(ctx context.Context, id string) (*models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureLoadedLocked()

	_, task := r.findLocked(id)
	if task == nil {
		return nil, apperr.NewNotFoundError("task", id)
	}

	toggled := !task.Completed
	return r.updateLocked(id, models.TaskPatch{Completed: &toggled})
}

func (r *TaskRepository) MoveToProject(ctx context.Context, id, projectID string) (*models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureLoadedLocked()

	if projectID == "" {
		projectID = models.DefaultProjectID
	}

	return r.updateLocked(id, models.TaskPatch{ProjectID: &projectID})
}

func (r *TaskRepository) AddChecklistItem(ctx context.Context, taskID, text string) (models.ChecklistItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureLoadedLocked()

	_, task := r.findLocked(taskID)
	if task == nil {
		return models.ChecklistItem{}, apperr.NewNotFoundError("task", taskID)
	}

	snapshot := task.Clone()

	item, err := task.AddChecklistItem(text)
	if err != nil {
		return models.ChecklistItem{}, err
	}

	if err := r.persistLocked(); err != nil {
		*task = *snapshot
		return models.ChecklistItem{}, err
	}

	return item, nil
}

func (r *TaskRepository) UpdateChecklistItem(ctx context.Context, taskID, itemID string, text *string, completed *bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureLoadedLocked()

	_, task := r.findLocked(taskID)
	if task == nil {
		return apperr.NewNotFoundError("task", taskID)
	}

	snapshot := task.Clone()

	if err := task.UpdateChecklistItem(itemID, text, completed); err != nil {
		return err
	}

	if err := r.persistLocked(); err != nil {
		*task = *snapshot
		return err
	}

	return nil
}

func (r *TaskRepository) RemoveChecklistItem(ctx context.Context, taskID, itemID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureLoadedLocked()

	_, task := r.findLocked(taskID)
	if task == nil {
		return apperr.NewNotFoundError("task", taskID)
	}

	snapshot := task.Clone()

	if err := task.RemoveChecklistItem(itemID); err != nil {
		return err
	}

	if err := r.persistLocked(); err != nil {
		*task = *snapshot
		return err
	}

	return nil
}

// TaskFilter narrows the collection; zero values mean "no constraint".
type TaskFilter struct {
	ProjectID string
	Completed *bool
	Priority  string
	DueBefore *time.Time
	DueAfter  *time.Time
	Overdue   *bool
	Search    string
}

func (r *TaskRepository) Filter(ctx context.Context, filter TaskFilter) []*models.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureLoadedLocked()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	out := []*models.Task{}

	for _, task := range r.tasks {
		if filter.ProjectID != "" && filter.ProjectID != models.DefaultProjectID && task.ProjectID != filter.ProjectID {
			continue
		}
		if filter.Completed != nil && task.Completed != *filter.Completed {
			continue
		}
		if filter.Priority != "" && string(task.Priority) != filter.Priority {
			continue
		}
		if filter.DueBefore != nil && (task.DueDate == nil || !task.DueDate.Before(*filter.DueBefore)) {
			continue
		}
		if filter.DueAfter != nil && (task.DueDate == nil || !task.DueDate.After(*filter.DueAfter)) {
			continue
		}
		if filter.Overdue != nil && task.IsOverdue() != *filter.Overdue {
			continue
		}
		if search != "" && !taskMatchesSearch(task, search) {
			continue
		}

		out = append(out, task)
	}

	return out
}

func taskMatchesSearch(task *models.Task, search string) bool {
	return strings.Contains(strings.ToLower(task.Title), search) ||
		strings.Contains(strings.ToLower(task.Description), search) ||
		strings.Contains(strings.ToLower(task.Notes), search)
}

type SortField string

const (
	SortByTitle     SortField = "title"
	SortByDueDate   SortField = "dueDate"
	SortByPriority  SortField = "priority"
	SortByCompleted SortField = "completed"
	SortByCreatedAt SortField = "createdAt"
	SortByUpdatedAt SortField = "updatedAt"
)

// Sorted returns a sorted copy of the collection. Ties keep the
// original insertion order.
func (r *TaskRepository) Sorted(ctx context.Context, field SortField, descending bool) []*models.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureLoadedLocked()

	out := make([]*models.Task, len(r.tasks))
	copy(out, r.tasks)

	SortTasks(out, field, descending)
	return out
}

// SortTasks sorts a slice in place, keeping insertion order on ties.
func SortTasks(tasks []*models.Task, field SortField, descending bool) {
	less := taskLess(field)

	sort.SliceStable(tasks, func(i, j int) bool {
		if descending {
			return less(tasks[j], tasks[i])
		}
		return less(tasks[i], tasks[j])
	})
}

func taskLess(field SortField) func(a, b *models.Task) bool {
	switch field {
	case SortByTitle:
		return func(a, b *models.Task) bool {
			return strings.ToLower(a.Title) < strings.ToLower(b.Title)
		}
	case SortByDueDate:
		// Tasks without a due date sort after dated ones.
		return func(a, b *models.Task) bool {
			if a.DueDate == nil {
				return false
			}
			if b.DueDate == nil {
				return true
			}
			return a.DueDate.Before(*b.DueDate)
		}
	case SortByPriority:
		return func(a, b *models.Task) bool {
			return a.Priority.Rank() > b.Priority.Rank()
		}
	case SortByCompleted:
		return func(a, b *models.Task) bool {
			return !a.Completed && b.Completed
		}
	case SortByUpdatedAt:
		return func(a, b *models.Task) bool {
			return a.UpdatedAt.Before(b.UpdatedAt)
		}
	default:
		return func(a, b *models.Task) bool {
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}
}

type TaskStats struct {
	Total          int `json:"total"`
	Completed      int `json:"completed"`
	Pending        int `json:"pending"`
	Overdue        int `json:"overdue"`
	HighPriority   int `json:"highPriority"`
	MediumPriority int `json:"mediumPriority"`
	LowPriority    int `json:"lowPriority"`
	WithChecklist  int `json:"withChecklist"`
	CompletionRate int `json:"completionRate"`
}

// Stats aggregates counts over one project's tasks, or over everything
// when projectID is empty or the reserved default.
func (r *TaskRepository) Stats(ctx context.Context, projectID string) TaskStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureLoadedLocked()

	stats := TaskStats{}

	for _, task := range r.tasks {
		if projectID != "" && projectID != models.DefaultProjectID && task.ProjectID != projectID {
			continue
		}

		stats.Total++

		if task.Completed {
			stats.Completed++
		} else {
			stats.Pending++
		}
		if task.IsOverdue() {
			stats.Overdue++
		}
		switch task.Priority {
		case models.PriorityHigh:
			stats.HighPriority++
		case models.PriorityMedium:
			stats.MediumPriority++
		case models.PriorityLow:
			stats.LowPriority++
		}
		if len(task.Checklist) > 0 {
			stats.WithChecklist++
		}
	}

	if stats.Total > 0 {
		stats.CompletionRate = (stats.Completed*100 + stats.Total/2) / stats.Total
	}

	return stats
}

type BulkError struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// BulkResult reports partial successes instead of aborting a batch on
// the first failure.
type BulkResult struct {
	Succeeded []string    `json:"succeeded"`
	Errors    []BulkError `json:"errors"`
}

func (r *TaskRepository) BulkUpdate(ctx context.Context, ids []string, patch models.TaskPatch) BulkResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureLoadedLocked()

	result := BulkResult{Succeeded: []string{}, Errors: []BulkError{}}

	for _, id := range ids {
		if _, err := r.updateLocked(id, patch); err != nil {
			result.Errors = append(result.Errors, BulkError{ID: id, Error: err.Error()})
			continue
		}
		result.Succeeded = append(result.Succeeded, id)
	}

	return result
}

func (r *TaskRepository) BulkDelete(ctx context.Context, ids []string) BulkResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureLoadedLocked()

	result := BulkResult{Succeeded: []string{}, Errors: []BulkError{}}

	for _, id := range ids {
		if err := r.deleteLocked(id); err != nil {
			result.Errors = append(result.Errors, BulkError{ID: id, Error: err.Error()})
			continue
		}
		result.Succeeded = append(result.Succeeded, id)
	}

	return result
}

// Invalidate discards the cached collection so the next call reloads
// from the gateway. Used after out-of-band repairs to the stored data.
func (r *TaskRepository) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tasks = nil
	r.loaded = false
}

// CountAll and CountByProject implement the task-count callback the
// project repository reconciles against.
func (r *TaskRepository) CountAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureLoadedLocked()

	return len(r.tasks)
}

func (r *TaskRepository) CountByProject(projectID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureLoadedLocked()

	count := 0
	for _, task := range r.tasks {
		if task.ProjectID == projectID {
			count++
		}
	}
	return count
}
