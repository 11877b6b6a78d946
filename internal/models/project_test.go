package models

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"taskvault/internal/apperr"
)

func TestNewProject(t *testing.T) {
	project, err := NewProject(ProjectInput{Name: "  Work  "})

	assert.NoError(t, err)
	assert.NotEmpty(t, project.ID)
	assert.Equal(t, "Work", project.Name)
	assert.Zero(t, project.TaskCount)
	assert.False(t, project.IsDefault())
}

func TestNewProject_Validation(t *testing.T) {
	_, err := NewProject(ProjectInput{Name: "   "})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = NewProject(ProjectInput{Name: strings.Repeat("p", 101)})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = NewProject(ProjectInput{Name: "ok", TaskCount: -1})
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestNewDefaultProject(t *testing.T) {
	project := NewDefaultProject()

	assert.Equal(t, DefaultProjectID, project.ID)
	assert.Equal(t, "Default", project.Name)
	assert.True(t, project.IsDefault())
}

func TestValidateProjectName(t *testing.T) {
	assert.Empty(t, ValidateProjectName("fine"))
	assert.NotEmpty(t, ValidateProjectName(""))
	assert.NotEmpty(t, ValidateProjectName(strings.Repeat("p", 101)))
}

func TestProject_JSONRoundTrip(t *testing.T) {
	project, _ := NewProject(ProjectInput{Name: "Work", TaskCount: 4})

	data, err := json.Marshal(project)
	assert.NoError(t, err)

	var restored Project
	assert.NoError(t, json.Unmarshal(data, &restored))

	assert.Equal(t, project.ID, restored.ID)
	assert.Equal(t, "Work", restored.Name)
	assert.Equal(t, 4, restored.TaskCount)
	assert.True(t, project.CreatedAt.Equal(restored.CreatedAt))
}

func TestValidateProjectData_TaggedResult(t *testing.T) {
	failure := ValidateProjectData(ProjectInput{Name: "", TaskCount: -1})
	assert.False(t, failure.Valid)
	assert.Len(t, failure.Errors, 2)
	assert.Equal(t, "name", failure.Errors[0].Field)

	success := ValidateProjectData(ProjectInput{Name: "  Work  "})
	assert.True(t, success.Valid)
	assert.Equal(t, "Work", success.Data.Name)
}

func TestProjectFromRecord_RejectsInvalidRecords(t *testing.T) {
	for name, raw := range map[string]string{
		"malformed":  `{oops`,
		"missing id": `{"name":"Work"}`,
		"empty name": `{"id":"p1","name":"  "}`,
	} {
		_, err := ProjectFromRecord([]byte(raw))
		assert.Error(t, err, name)
	}
}
