package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"taskvault/internal/models"
	"taskvault/internal/repositories"
	"taskvault/internal/shared"
)

// ProjectHandler handles HTTP requests for project operations
type ProjectHandler struct {
	projects *repositories.ProjectRepository
	tasks    *repositories.TaskRepository
	logger   *otelzap.Logger
}

func NewProjectHandler(projects *repositories.ProjectRepository, tasks *repositories.TaskRepository, logger *otelzap.Logger) *ProjectHandler {
	return &ProjectHandler{projects: projects, tasks: tasks, logger: logger}
}

func (h *ProjectHandler) Create(c *gin.Context) {
	var input models.ProjectInput

	if err := c.ShouldBindJSON(&input); err != nil {
		shared.SendBadRequestError(c, "body", "invalid JSON body")
		return
	}

	project, err := h.projects.Create(c.Request.Context(), input)

	if err != nil {
		shared.SendAppError(c, err)
		return
	}

	h.logger.Ctx(c.Request.Context()).Info("project created",
		zap.String("project_id", project.ID),
		zap.String("name", project.Name),
	)

	shared.SendSuccess(c, http.StatusCreated, project)
}

func (h *ProjectHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	if query := c.Query("search"); query != "" {
		shared.SendSuccess(c, http.StatusOK, h.projects.SearchByName(ctx, query))
		return
	}

	sortField := repositories.ProjectSortField(c.Query("sort"))
	descending := c.Query("order") == "desc"

	shared.SendSuccess(c, http.StatusOK, h.projects.Sorted(ctx, sortField, descending))
}

func (h *ProjectHandler) Get(c *gin.Context) {
	project, err := h.projects.GetByID(c.Request.Context(), c.Param("id"))

	if err != nil {
		shared.SendAppError(c, err)
		return
	}

	shared.SendSuccess(c, http.StatusOK, project)
}

type renameRequest struct {
	Name string `json:"name"`
}

func (h *ProjectHandler) Rename(c *gin.Context) {
	var request renameRequest

	if err := c.ShouldBindJSON(&request); err != nil {
		shared.SendBadRequestError(c, "body", "invalid JSON body")
		return
	}

	project, err := h.projects.Rename(c.Request.Context(), c.Param("id"), request.Name)

	if err != nil {
		shared.SendAppError(c, err)
		return
	}

	shared.SendSuccess(c, http.StatusOK, project)
}

// Delete removes a project after moving its tasks back to the default
// project, so no task is orphaned by the deletion.
func (h *ProjectHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	project, err := h.projects.GetByID(ctx, id)
	if err != nil {
		shared.SendAppError(c, err)
		return
	}
	if project.IsDefault() {
		shared.SendAppError(c, h.projects.Delete(ctx, id))
		return
	}

	for _, task := range h.tasks.GetByProject(ctx, id) {
		if _, err := h.tasks.MoveToProject(ctx, task.ID, models.DefaultProjectID); err != nil {
			shared.SendAppError(c, err)
			return
		}
	}

	if err := h.projects.Delete(ctx, id); err != nil {
		shared.SendAppError(c, err)
		return
	}

	shared.SendSuccess(c, http.StatusOK, nil, "Project deleted successfully")
}

func (h *ProjectHandler) Tasks(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	if _, err := h.projects.GetByID(ctx, id); err != nil {
		shared.SendAppError(c, err)
		return
	}

	shared.SendSuccess(c, http.StatusOK, h.tasks.GetByProject(ctx, id))
}

func (h *ProjectHandler) SyncTaskCounts(c *gin.Context) {
	if err := h.projects.SyncTaskCounts(c.Request.Context(), h.tasks); err != nil {
		shared.SendAppError(c, err)
		return
	}

	shared.SendSuccess(c, http.StatusOK, h.projects.GetAll(c.Request.Context()))
}

func (h *ProjectHandler) Export(c *gin.Context) {
	shared.SendSuccess(c, http.StatusOK, h.projects.Export(c.Request.Context()))
}

type importRequest struct {
	Backup    repositories.BackupRecord `json:"backup"`
	Replace   bool                      `json:"replace"`
	Overwrite bool                      `json:"overwrite"`
}

func (h *ProjectHandler) Import(c *gin.Context) {
	var request importRequest

	if err := c.ShouldBindJSON(&request); err != nil {
		shared.SendBadRequestError(c, "body", "invalid JSON body")
		return
	}

	result, err := h.projects.Import(c.Request.Context(), request.Backup, repositories.ImportOptions{
		Replace:   request.Replace,
		Overwrite: request.Overwrite,
	})

	if err != nil {
		shared.SendAppError(c, err)
		return
	}

	shared.SendSuccess(c, http.StatusOK, result)
}
