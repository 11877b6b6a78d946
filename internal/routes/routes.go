package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"

	"taskvault/internal/handlers"
	"taskvault/internal/shared"
)

type HandlersConfig struct {
	TaskHandler      *handlers.TaskHandler
	ProjectHandler   *handlers.ProjectHandler
	SettingsHandler  *handlers.SettingsHandler
	IntegrityHandler *handlers.IntegrityHandler
}

func SetupRouter(h HandlersConfig, metrics *shared.StorageMetrics, logger *otelzap.Logger) *gin.Engine {
	if gin.Mode() == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	shared.SetupGinMiddleware(router, "taskvault", metrics, logger)

	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	limiter := shared.NewRateLimiter(logger.Logger, metrics)
	router.Use(limiter.RateLimitMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":       "ok",
			"rate_limiter": limiter.GetStats(),
		})
	})

	if h.TaskHandler != nil {
		setupTaskRoutes(router, h.TaskHandler)
	}
	if h.ProjectHandler != nil {
		setupProjectRoutes(router, h.ProjectHandler)
	}
	if h.SettingsHandler != nil {
		setupSettingsRoutes(router, h.SettingsHandler)
	}
	if h.IntegrityHandler != nil {
		setupIntegrityRoutes(router, h.IntegrityHandler)
	}

	return router
}

func setupTaskRoutes(router *gin.Engine, h *handlers.TaskHandler) {
	tasks := router.Group("/tasks")
	{
		tasks.GET("", h.List)
		tasks.POST("", h.Create)
		tasks.GET("/stats", h.Stats)
		tasks.POST("/bulk/update", h.BulkUpdate)
		tasks.POST("/bulk/delete", h.BulkDelete)
		tasks.GET("/:id", h.Get)
		tasks.PUT("/:id", h.Update)
		tasks.DELETE("/:id", h.Delete)
		tasks.POST("/:id/toggle", h.ToggleCompletion)
		tasks.POST("/:id/move", h.MoveToProject)
		tasks.GET("/:id/checklist/progress", h.ChecklistProgress)
		tasks.POST("/:id/checklist", h.AddChecklistItem)
		tasks.PUT("/:id/checklist/:itemId", h.UpdateChecklistItem)
		tasks.DELETE("/:id/checklist/:itemId", h.RemoveChecklistItem)
	}
}

func setupProjectRoutes(router *gin.Engine, h *handlers.ProjectHandler) {
	projects := router.Group("/projects")
	{
		projects.GET("", h.List)
		projects.POST("", h.Create)
		projects.POST("/sync-counts", h.SyncTaskCounts)
		projects.GET("/export", h.Export)
		projects.POST("/import", h.Import)
		projects.GET("/:id", h.Get)
		projects.PUT("/:id", h.Rename)
		projects.DELETE("/:id", h.Delete)
		projects.GET("/:id/tasks", h.Tasks)
	}
}

func setupSettingsRoutes(router *gin.Engine, h *handlers.SettingsHandler) {
	settings := router.Group("/settings")
	{
		settings.GET("", h.Get)
		settings.PATCH("", h.Update)
		settings.POST("/reset", h.Reset)
	}
}

func setupIntegrityRoutes(router *gin.Engine, h *handlers.IntegrityHandler) {
	integrity := router.Group("/integrity")
	{
		integrity.GET("/validate", h.Validate)
		integrity.POST("/repair", h.Repair)
		integrity.POST("/force-recovery", h.ForceRecovery)
	}

	storage := router.Group("/storage")
	{
		storage.GET("/status", h.StorageStatus)
		storage.POST("/migrate-back", h.MigrateBack)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// SetupRouterForTests wires routes without telemetry middleware.
func SetupRouterForTests(h HandlersConfig) *gin.Engine {
	if gin.Mode() == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	if h.TaskHandler != nil {
		setupTaskRoutes(router, h.TaskHandler)
	}
	if h.ProjectHandler != nil {
		setupProjectRoutes(router, h.ProjectHandler)
	}
	if h.SettingsHandler != nil {
		setupSettingsRoutes(router, h.SettingsHandler)
	}
	if h.IntegrityHandler != nil {
		setupIntegrityRoutes(router, h.IntegrityHandler)
	}

	return router
}
