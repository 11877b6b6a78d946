package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"taskvault/internal/apperr"
	"taskvault/internal/validation"
)

type Project struct {
	ID        string
	Name      string
	CreatedAt time.Time
	// TaskCount is a denormalized cache of the number of associated
	// tasks. It is advisory only; task membership is authoritative via
	// Task.ProjectID and reconciled by ProjectRepository.SyncTaskCounts.
	TaskCount int
}

type ProjectInput struct {
	ID        string `json:"id"`
	Name      string `json:"name" validate:"required,max=100"`
	TaskCount int    `json:"taskCount" validate:"gte=0"`
}

// ValidateProjectData checks loosely-typed input against the project
// constraints and returns a tagged result. On success Data carries the
// normalized input.
func ValidateProjectData(input ProjectInput) validation.Result[ProjectInput] {
	input.Name = strings.TrimSpace(input.Name)

	if errs := validation.Check(input); len(errs) > 0 {
		return validation.Failure[ProjectInput](errs)
	}

	return validation.Success(input)
}

func NewProject(input ProjectInput) (*Project, error) {
	result := ValidateProjectData(input)
	if !result.Valid {
		return nil, apperr.NewValidationError(validation.Messages(result.Errors)...)
	}

	input = result.Data

	id := input.ID
	if id == "" {
		id = uuid.NewString()
	}

	return &Project{
		ID:        id,
		Name:      input.Name,
		CreatedAt: time.Now().UTC(),
		TaskCount: input.TaskCount,
	}, nil
}

// ValidateProjectName checks a name against the project constraints
// without building a project, for rename flows.
func ValidateProjectName(name string) []string {
	errs := validation.Check(ProjectInput{Name: strings.TrimSpace(name)})

	var messages []string
	for _, fieldErr := range errs {
		if fieldErr.Field == "name" {
			messages = append(messages, fieldErr.Message)
		}
	}
	return messages
}

// NewDefaultProject builds the reserved default project.
func NewDefaultProject() *Project {
	return &Project{
		ID:        DefaultProjectID,
		Name:      "Default",
		CreatedAt: time.Now().UTC(),
	}
}

func (p *Project) IsDefault() bool {
	return p.ID == DefaultProjectID
}

func (p *Project) Clone() *Project {
	clone := *p
	return &clone
}

type projectRecord struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"createdAt"`
	TaskCount int    `json:"taskCount"`
}

func (p *Project) MarshalJSON() ([]byte, error) {
	return json.Marshal(projectRecord{
		ID:        p.ID,
		Name:      p.Name,
		CreatedAt: p.CreatedAt.UTC().Format(time.RFC3339Nano),
		TaskCount: p.TaskCount,
	})
}

func (p *Project) UnmarshalJSON(data []byte) error {
	parsed, err := ProjectFromRecord(data)
	if err != nil {
		return err
	}

	*p = *parsed
	return nil
}

// ProjectFromRecord reconstructs a project from its stored JSON form,
// re-validating every constraint.
func ProjectFromRecord(data []byte) (*Project, error) {
	var record projectRecord

	if err := json.Unmarshal(data, &record); err != nil {
		return nil, apperr.NewValidationError(fmt.Sprintf("malformed project record: %v", err))
	}

	record.Name = strings.TrimSpace(record.Name)

	var violations []string

	if record.ID == "" {
		violations = append(violations, "id is required")
	}

	errs := validation.Check(ProjectInput{
		ID:        record.ID,
		Name:      record.Name,
		TaskCount: record.TaskCount,
	})
	violations = append(violations, validation.Messages(errs)...)

	if len(violations) > 0 {
		return nil, apperr.NewValidationError(violations...)
	}

	createdAt := time.Now().UTC()
	if record.CreatedAt != "" {
		if parsed, err := ParseInstant(record.CreatedAt); err == nil {
			createdAt = parsed
		}
	}

	return &Project{
		ID:        record.ID,
		Name:      record.Name,
		CreatedAt: createdAt,
		TaskCount: record.TaskCount,
	}, nil
}
