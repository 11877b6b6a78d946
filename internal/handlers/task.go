package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"taskvault/internal/models"
	"taskvault/internal/repositories"
	"taskvault/internal/shared"
)

// TaskHandler handles HTTP requests for task operations
type TaskHandler struct {
	tasks  *repositories.TaskRepository
	logger *otelzap.Logger
}

func NewTaskHandler(tasks *repositories.TaskRepository, logger *otelzap.Logger) *TaskHandler {
	return &TaskHandler{tasks: tasks, logger: logger}
}

func (h *TaskHandler) Create(c *gin.Context) {
	var input models.TaskInput

	if err := c.ShouldBindJSON(&input); err != nil {
		shared.SendBadRequestError(c, "body", "invalid JSON body")
		return
	}

	task, err := h.tasks.Create(c.Request.Context(), input)

	if err != nil {
		shared.SendAppError(c, err)
		return
	}

	h.logger.Ctx(c.Request.Context()).Info("task created",
		zap.String("task_id", task.ID),
		zap.String("project_id", task.ProjectID),
	)

	shared.SendSuccess(c, http.StatusCreated, task)
}

// List supports filtering and sorting through query parameters. Filters
// compose; sorting applies to the filtered result.
func (h *TaskHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	filter := repositories.TaskFilter{
		ProjectID: c.Query("project"),
		Priority:  c.Query("priority"),
		Search:    c.Query("search"),
	}

	if raw := c.Query("completed"); raw != "" {
		if completed, err := strconv.ParseBool(raw); err == nil {
			filter.Completed = &completed
		}
	}
	if raw := c.Query("overdue"); raw != "" {
		if overdue, err := strconv.ParseBool(raw); err == nil {
			filter.Overdue = &overdue
		}
	}
	if raw := c.Query("due_before"); raw != "" {
		if instant, err := models.ParseInstant(raw); err == nil {
			filter.DueBefore = &instant
		} else {
			shared.SendBadRequestError(c, "due_before", "invalid timestamp")
			return
		}
	}
	if raw := c.Query("due_after"); raw != "" {
		if instant, err := models.ParseInstant(raw); err == nil {
			filter.DueAfter = &instant
		} else {
			shared.SendBadRequestError(c, "due_after", "invalid timestamp")
			return
		}
	}

	tasks := h.tasks.Filter(ctx, filter)

	if sortField := c.Query("sort"); sortField != "" {
		descending := c.Query("order") == "desc"
		repositories.SortTasks(tasks, repositories.SortField(sortField), descending)
	}

	shared.SendSuccess(c, http.StatusOK, tasks)
}

func (h *TaskHandler) Get(c *gin.Context) {
	task, err := h.tasks.GetByID(c.Request.Context(), c.Param("id"))

	if err != nil {
		shared.SendAppError(c, err)
		return
	}

	shared.SendSuccess(c, http.StatusOK, task)
}

type taskPatchRequest struct {
	Title        *string `json:"title"`
	Description  *string `json:"description"`
	DueDate      *string `json:"dueDate"`
	ClearDueDate bool    `json:"clearDueDate"`
	Priority     *string `json:"priority"`
	Notes        *string `json:"notes"`
	Completed    *bool   `json:"completed"`
	ProjectID    *string `json:"projectId"`
}

func (r taskPatchRequest) toPatch() (models.TaskPatch, error) {
	patch := models.TaskPatch{
		Title:        r.Title,
		Description:  r.Description,
		ClearDueDate: r.ClearDueDate,
		Priority:     r.Priority,
		Notes:        r.Notes,
		Completed:    r.Completed,
		ProjectID:    r.ProjectID,
	}

	if r.DueDate != nil {
		instant, err := models.ParseInstant(*r.DueDate)
		if err != nil {
			return models.TaskPatch{}, err
		}
		patch.DueDate = &instant
	}

	return patch, nil
}

func (h *TaskHandler) Update(c *gin.Context) {
	var request taskPatchRequest

	if err := c.ShouldBindJSON(&request); err != nil {
		shared.SendBadRequestError(c, "body", "invalid JSON body")
		return
	}

	patch, err := request.toPatch()
	if err != nil {
		shared.SendBadRequestError(c, "dueDate", "invalid timestamp")
		return
	}

	task, err := h.tasks.Update(c.Request.Context(), c.Param("id"), patch)

	if err != nil {
		shared.SendAppError(c, err)
		return
	}

	shared.SendSuccess(c, http.StatusOK, task)
}

func (h *TaskHandler) Delete(c *gin.Context) {
	if err := h.tasks.Delete(c.Request.Context(), c.Param("id")); err != nil {
		shared.SendAppError(c, err)
		return
	}

	shared.SendSuccess(c, http.StatusOK, nil, "Task deleted successfully")
}

func (h *TaskHandler) ToggleCompletion(c *gin.Context) {
	task, err := h.tasks.ToggleCompletion(c.Request.Context(), c.Param("id"))

	if err != nil {
		shared.SendAppError(c, err)
		return
	}

	shared.SendSuccess(c, http.StatusOK, task)
}

type moveRequest struct {
	ProjectID string `json:"projectId"`
}

func (h *TaskHandler) MoveToProject(c *gin.Context) {
	var request moveRequest

	if err := c.ShouldBindJSON(&request); err != nil {
		shared.SendBadRequestError(c, "body", "invalid JSON body")
		return
	}

	task, err := h.tasks.MoveToProject(c.Request.Context(), c.Param("id"), request.ProjectID)

	if err != nil {
		shared.SendAppError(c, err)
		return
	}

	shared.SendSuccess(c, http.StatusOK, task)
}

type checklistAddRequest struct {
	Text string `json:"text"`
}

func (h *TaskHandler) AddChecklistItem(c *gin.Context) {
	var request checklistAddRequest

	if err := c.ShouldBindJSON(&request); err != nil {
		shared.SendBadRequestError(c, "body", "invalid JSON body")
		return
	}

	item, err := h.tasks.AddChecklistItem(c.Request.Context(), c.Param("id"), request.Text)

	if err != nil {
		shared.SendAppError(c, err)
		return
	}

	shared.SendSuccess(c, http.StatusCreated, item)
}

type checklistUpdateRequest struct {
	Text      *string `json:"text"`
	Completed *bool   `json:"completed"`
}

func (h *TaskHandler) UpdateChecklistItem(c *gin.Context) {
	var request checklistUpdateRequest

	if err := c.ShouldBindJSON(&request); err != nil {
		shared.SendBadRequestError(c, "body", "invalid JSON body")
		return
	}

	err := h.tasks.UpdateChecklistItem(c.Request.Context(), c.Param("id"), c.Param("itemId"), request.Text, request.Completed)

	if err != nil {
		shared.SendAppError(c, err)
		return
	}

	shared.SendSuccess(c, http.StatusOK, nil)
}

func (h *TaskHandler) RemoveChecklistItem(c *gin.Context) {
	err := h.tasks.RemoveChecklistItem(c.Request.Context(), c.Param("id"), c.Param("itemId"))

	if err != nil {
		shared.SendAppError(c, err)
		return
	}

	shared.SendSuccess(c, http.StatusOK, nil, "Checklist item removed")
}

func (h *TaskHandler) ChecklistProgress(c *gin.Context) {
	task, err := h.tasks.GetByID(c.Request.Context(), c.Param("id"))

	if err != nil {
		shared.SendAppError(c, err)
		return
	}

	shared.SendSuccess(c, http.StatusOK, task.GetChecklistProgress())
}

func (h *TaskHandler) Stats(c *gin.Context) {
	stats := h.tasks.Stats(c.Request.Context(), c.Query("project"))
	shared.SendSuccess(c, http.StatusOK, stats)
}

type bulkUpdateRequest struct {
	IDs   []string         `json:"ids"`
	Patch taskPatchRequest `json:"patch"`
}

func (h *TaskHandler) BulkUpdate(c *gin.Context) {
	startTime := time.Now()

	var request bulkUpdateRequest

	if err := c.ShouldBindJSON(&request); err != nil {
		shared.SendBadRequestError(c, "body", "invalid JSON body")
		return
	}

	patch, err := request.Patch.toPatch()
	if err != nil {
		shared.SendBadRequestError(c, "patch.dueDate", "invalid timestamp")
		return
	}

	result := h.tasks.BulkUpdate(c.Request.Context(), request.IDs, patch)

	h.logger.Ctx(c.Request.Context()).Info("bulk update finished",
		zap.Int("succeeded", len(result.Succeeded)),
		zap.Int("failed", len(result.Errors)),
		zap.Duration("time", time.Since(startTime)),
	)

	shared.SendSuccess(c, http.StatusOK, result)
}

type bulkDeleteRequest struct {
	IDs []string `json:"ids"`
}

func (h *TaskHandler) BulkDelete(c *gin.Context) {
	var request bulkDeleteRequest

	if err := c.ShouldBindJSON(&request); err != nil {
		shared.SendBadRequestError(c, "body", "invalid JSON body")
		return
	}

	result := h.tasks.BulkDelete(c.Request.Context(), request.IDs)

	shared.SendSuccess(c, http.StatusOK, result)
}
