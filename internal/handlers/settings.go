package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"

	"taskvault/internal/repositories"
	"taskvault/internal/shared"
)

type SettingsHandler struct {
	settings *repositories.SettingsRepository
	logger   *otelzap.Logger
}

func NewSettingsHandler(settings *repositories.SettingsRepository, logger *otelzap.Logger) *SettingsHandler {
	return &SettingsHandler{settings: settings, logger: logger}
}

func (h *SettingsHandler) Get(c *gin.Context) {
	shared.SendSuccess(c, http.StatusOK, h.settings.Load(c.Request.Context()))
}

type settingsPatchRequest struct {
	CurrentProjectID *string        `json:"currentProjectId"`
	Theme            *string        `json:"theme"`
	Extra            map[string]any `json:"extra"`
}

func (h *SettingsHandler) Update(c *gin.Context) {
	var request settingsPatchRequest

	if err := c.ShouldBindJSON(&request); err != nil {
		shared.SendBadRequestError(c, "body", "invalid JSON body")
		return
	}

	settings, err := h.settings.Update(c.Request.Context(), repositories.SettingsPatch{
		CurrentProjectID: request.CurrentProjectID,
		Theme:            request.Theme,
		Extra:            request.Extra,
	})

	if err != nil {
		shared.SendAppError(c, err)
		return
	}

	shared.SendSuccess(c, http.StatusOK, settings)
}

func (h *SettingsHandler) Reset(c *gin.Context) {
	settings, err := h.settings.ResetDefaults(c.Request.Context())

	if err != nil {
		shared.SendAppError(c, err)
		return
	}

	shared.SendSuccess(c, http.StatusOK, settings)
}
