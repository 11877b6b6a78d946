package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"taskvault/internal/integrity"
	"taskvault/internal/shared"
	"taskvault/internal/storage"
)

// IntegrityHandler exposes vault health and recovery operations.
type IntegrityHandler struct {
	manager *integrity.Manager
	gw      *storage.Gateway
	logger  *otelzap.Logger
}

func NewIntegrityHandler(manager *integrity.Manager, gw *storage.Gateway, logger *otelzap.Logger) *IntegrityHandler {
	return &IntegrityHandler{manager: manager, gw: gw, logger: logger}
}

func (h *IntegrityHandler) Validate(c *gin.Context) {
	report := h.manager.ValidateDataIntegrity(c.Request.Context())

	status := http.StatusOK
	if !report.Valid {
		status = http.StatusUnprocessableEntity
	}

	shared.SendSuccess(c, status, report)
}

func (h *IntegrityHandler) Repair(c *gin.Context) {
	result, err := h.manager.RepairData(c.Request.Context())

	if err != nil {
		shared.SendAppError(c, err)
		return
	}

	shared.SendSuccess(c, http.StatusOK, result)
}

func (h *IntegrityHandler) ForceRecovery(c *gin.Context) {
	if err := h.manager.ForceRecovery(c.Request.Context()); err != nil {
		shared.SendAppError(c, err)
		return
	}

	h.logger.Ctx(c.Request.Context()).Warn("force recovery requested over HTTP")

	shared.SendSuccess(c, http.StatusOK, nil, "Vault reset to defaults")
}

// StorageStatus reports the gateway state machine: whether the durable
// store answers, whether writes run against the in-memory fallback, and
// whether the last durable write hit the quota.
func (h *IntegrityHandler) StorageStatus(c *gin.Context) {
	shared.SendSuccess(c, http.StatusOK, h.gw.Status())
}

// MigrateBack attempts to move fallback data into the durable store
// after the operator resolved the underlying failure.
func (h *IntegrityHandler) MigrateBack(c *gin.Context) {
	if err := h.gw.MigrateBackToStore(); err != nil {
		shared.SendAppError(c, err)
		return
	}

	h.logger.Ctx(c.Request.Context()).Info("fallback data migrated back to durable store",
		zap.Any("status", h.gw.Status()),
	)

	shared.SendSuccess(c, http.StatusOK, h.gw.Status(), "Fallback data migrated")
}
