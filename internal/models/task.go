package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"taskvault/internal/apperr"
	"taskvault/internal/validation"
)

// DefaultProjectID is the reserved project id. The default project can
// never be deleted and doubles as the all-tasks view.
const DefaultProjectID = "default"

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Rank orders priorities for sorting, high > medium > low.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

type ChecklistItem struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

type Task struct {
	ID          string
	Title       string
	Description string
	DueDate     *time.Time
	Priority    Priority
	Notes       string
	Checklist   []ChecklistItem
	Completed   bool
	ProjectID   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TaskInput is the loosely-typed record accepted on creation. Notes are
// capped at 1000 characters on this path; the stored-record path allows
// 2000 so legacy data is not dropped on load.
type TaskInput struct {
	ID          string               `json:"id"`
	Title       string               `json:"title" validate:"required,max=200"`
	Description string               `json:"description" validate:"max=1000"`
	DueDate     *time.Time           `json:"dueDate"`
	Priority    string               `json:"priority" validate:"omitempty,oneof=high medium low"`
	Notes       string               `json:"notes" validate:"max=1000"`
	Checklist   []ChecklistItemInput `json:"checklist"`
	Completed   bool                 `json:"completed"`
	ProjectID   string               `json:"projectId"`
}

type ChecklistItemInput struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

// taskConstraints re-validates a merged entity on update and load.
type taskConstraints struct {
	Title       string `validate:"required,max=200"`
	Description string `validate:"max=1000"`
	Priority    string `validate:"required,oneof=high medium low"`
	Notes       string `validate:"max=2000"`
}

// TaskPatch carries only the fields an update wants to change.
type TaskPatch struct {
	Title        *string
	Description  *string
	DueDate      *time.Time
	ClearDueDate bool
	Priority     *string
	Notes        *string
	Completed    *bool
	ProjectID    *string
}

// ValidateTaskData checks loosely-typed input against the creation
// constraints and returns a tagged result. On success Data carries the
// normalized input.
func ValidateTaskData(input TaskInput) validation.Result[TaskInput] {
	input.Title = strings.TrimSpace(input.Title)

	errs := validation.Check(input)

	for i, item := range input.Checklist {
		if strings.TrimSpace(item.Text) == "" {
			errs = append(errs, validation.FieldError{
				Field:   fmt.Sprintf("checklist[%d].text", i),
				Rule:    "required",
				Message: fmt.Sprintf("checklist item %d text must not be empty", i),
			})
		}
	}

	if len(errs) > 0 {
		return validation.Failure[TaskInput](errs)
	}

	return validation.Success(input)
}

func NewTask(input TaskInput) (*Task, error) {
	result := ValidateTaskData(input)
	if !result.Valid {
		return nil, apperr.NewValidationError(validation.Messages(result.Errors)...)
	}

	input = result.Data

	checklist := make([]ChecklistItem, 0, len(input.Checklist))

	for _, item := range input.Checklist {
		id := item.ID
		if id == "" {
			id = uuid.NewString()
		}

		checklist = append(checklist, ChecklistItem{ID: id, Text: strings.TrimSpace(item.Text), Completed: item.Completed})
	}

	id := input.ID
	if id == "" {
		id = uuid.NewString()
	}

	priority := Priority(input.Priority)
	if priority == "" {
		priority = PriorityMedium
	}

	projectID := input.ProjectID
	if projectID == "" {
		projectID = DefaultProjectID
	}

	now := time.Now().UTC()

	return &Task{
		ID:          id,
		Title:       input.Title,
		Description: input.Description,
		DueDate:     input.DueDate,
		Priority:    priority,
		Notes:       input.Notes,
		Checklist:   checklist,
		Completed:   input.Completed,
		ProjectID:   projectID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Update merges only the provided fields and re-validates the merged
// result on a trial copy. On failure the receiver is left unmodified.
func (t *Task) Update(patch TaskPatch) error {
	trial := t.Clone()

	if patch.Title != nil {
		trial.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		trial.Description = *patch.Description
	}
	if patch.ClearDueDate {
		trial.DueDate = nil
	} else if patch.DueDate != nil {
		trial.DueDate = patch.DueDate
	}
	if patch.Priority != nil {
		trial.Priority = Priority(*patch.Priority)
	}
	if patch.Notes != nil {
		trial.Notes = *patch.Notes
	}
	if patch.Completed != nil {
		trial.Completed = *patch.Completed
	}
	if patch.ProjectID != nil && *patch.ProjectID != "" {
		trial.ProjectID = *patch.ProjectID
	}

	errs := validation.Check(taskConstraints{
		Title:       trial.Title,
		Description: trial.Description,
		Priority:    string(trial.Priority),
		Notes:       trial.Notes,
	})

	if len(errs) > 0 {
		return apperr.NewValidationError(validation.Messages(errs)...)
	}

	trial.UpdatedAt = time.Now().UTC()
	*t = *trial

	return nil
}

func (t *Task) Clone() *Task {
	clone := *t

	if t.DueDate != nil {
		due := *t.DueDate
		clone.DueDate = &due
	}

	clone.Checklist = make([]ChecklistItem, len(t.Checklist))
	copy(clone.Checklist, t.Checklist)

	return &clone
}

func (t *Task) AddChecklistItem(text string) (ChecklistItem, error) {
	text = strings.TrimSpace(text)

	if text == "" {
		return ChecklistItem{}, apperr.NewValidationError("checklist item text must not be empty")
	}

	item := ChecklistItem{ID: uuid.NewString(), Text: text}
	t.Checklist = append(t.Checklist, item)
	t.UpdatedAt = time.Now().UTC()

	return item, nil
}

func (t *Task) UpdateChecklistItem(itemID string, text *string, completed *bool) error {
	for i := range t.Checklist {
		if t.Checklist[i].ID != itemID {
			continue
		}

		if text != nil {
			trimmed := strings.TrimSpace(*text)
			if trimmed == "" {
				return apperr.NewValidationError("checklist item text must not be empty")
			}
			t.Checklist[i].Text = trimmed
		}

		if completed != nil {
			t.Checklist[i].Completed = *completed
		}

		t.UpdatedAt = time.Now().UTC()
		return nil
	}

	return apperr.NewNotFoundError("checklist item", itemID)
}

func (t *Task) RemoveChecklistItem(itemID string) error {
	for i := range t.Checklist {
		if t.Checklist[i].ID != itemID {
			continue
		}

		t.Checklist = append(t.Checklist[:i], t.Checklist[i+1:]...)
		t.UpdatedAt = time.Now().UTC()
		return nil
	}

	return apperr.NewNotFoundError("checklist item", itemID)
}

type ChecklistProgress struct {
	Completed  int `json:"completed"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

func (t *Task) GetChecklistProgress() ChecklistProgress {
	total := len(t.Checklist)
	completed := 0

	for _, item := range t.Checklist {
		if item.Completed {
			completed++
		}
	}

	percentage := 0
	if total > 0 {
		percentage = int(math.Round(100 * float64(completed) / float64(total)))
	}

	return ChecklistProgress{Completed: completed, Total: total, Percentage: percentage}
}

// IsOverdue is false for completed tasks and tasks without a due date.
func (t *Task) IsOverdue() bool {
	if t.Completed || t.DueDate == nil {
		return false
	}
	return t.DueDate.Before(time.Now())
}

type taskRecord struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	DueDate     *string         `json:"dueDate"`
	Priority    string          `json:"priority"`
	Notes       string          `json:"notes"`
	Checklist   []ChecklistItem `json:"checklist"`
	Completed   bool            `json:"completed"`
	ProjectID   string          `json:"projectId"`
	CreatedAt   string          `json:"createdAt"`
	UpdatedAt   string          `json:"updatedAt"`
}

func (t *Task) MarshalJSON() ([]byte, error) {
	record := taskRecord{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Priority:    string(t.Priority),
		Notes:       t.Notes,
		Checklist:   t.Checklist,
		Completed:   t.Completed,
		ProjectID:   t.ProjectID,
		CreatedAt:   t.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:   t.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}

	if record.Checklist == nil {
		record.Checklist = []ChecklistItem{}
	}

	if t.DueDate != nil {
		due := t.DueDate.UTC().Format(time.RFC3339Nano)
		record.DueDate = &due
	}

	return json.Marshal(record)
}

func (t *Task) UnmarshalJSON(data []byte) error {
	parsed, err := TaskFromRecord(data)
	if err != nil {
		return err
	}

	*t = *parsed
	return nil
}

// TaskFromRecord reconstructs a task from its stored JSON form,
// re-validating every constraint. Callers loading collections drop and
// log records that fail here instead of failing the whole load.
func TaskFromRecord(data []byte) (*Task, error) {
	var record taskRecord

	if err := json.Unmarshal(data, &record); err != nil {
		return nil, apperr.NewValidationError(fmt.Sprintf("malformed task record: %v", err))
	}

	record.Title = strings.TrimSpace(record.Title)

	priority := record.Priority
	if priority == "" {
		priority = string(PriorityMedium)
	}

	errs := validation.Check(taskConstraints{
		Title:       record.Title,
		Description: record.Description,
		Priority:    priority,
		Notes:       record.Notes,
	})

	var violations []string
	violations = append(violations, validation.Messages(errs)...)

	var dueDate *time.Time
	if record.DueDate != nil && *record.DueDate != "" {
		parsed, err := ParseInstant(*record.DueDate)
		if err != nil {
			violations = append(violations, fmt.Sprintf("due date %q is not a valid instant", *record.DueDate))
		} else {
			dueDate = &parsed
		}
	}

	checklist := make([]ChecklistItem, 0, len(record.Checklist))
	for i, item := range record.Checklist {
		text := strings.TrimSpace(item.Text)
		if text == "" {
			violations = append(violations, fmt.Sprintf("checklist item %d text must not be empty", i))
			continue
		}
		id := item.ID
		if id == "" {
			id = uuid.NewString()
		}
		checklist = append(checklist, ChecklistItem{ID: id, Text: text, Completed: item.Completed})
	}

	if record.ID == "" {
		violations = append(violations, "id is required")
	}

	if len(violations) > 0 {
		return nil, apperr.NewValidationError(violations...)
	}

	now := time.Now().UTC()

	createdAt := now
	if record.CreatedAt != "" {
		if parsed, err := ParseInstant(record.CreatedAt); err == nil {
			createdAt = parsed
		}
	}

	updatedAt := createdAt
	if record.UpdatedAt != "" {
		if parsed, err := ParseInstant(record.UpdatedAt); err == nil {
			updatedAt = parsed
		}
	}

	projectID := record.ProjectID
	if projectID == "" {
		projectID = DefaultProjectID
	}

	return &Task{
		ID:          record.ID,
		Title:       record.Title,
		Description: record.Description,
		DueDate:     dueDate,
		Priority:    Priority(priority),
		Notes:       record.Notes,
		Checklist:   checklist,
		Completed:   record.Completed,
		ProjectID:   projectID,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}, nil
}

// ParseInstant accepts the timestamp shapes that show up in stored
// records: RFC3339 with or without sub-second precision, and bare dates.
func ParseInstant(value string) (time.Time, error) {
	layouts := []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"}

	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized instant %q", value)
}
