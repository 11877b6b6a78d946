package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"taskvault/internal/handlers"
	"taskvault/internal/integrity"
	"taskvault/internal/repositories"
	"taskvault/internal/routes"
	"taskvault/internal/shared"
	"taskvault/internal/storage"
)

const serviceVersion = "1.0.0"

func main() {
	ctx := context.Background()

	config := shared.GetDefaultConfig()
	if os.Getenv("GIN_MODE") == "release" {
		config.Environment = "production"
	}

	logger, err := shared.NewLogger(config.Environment)

	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}

	defer logger.Sync()

	telemetry, err := shared.InitTelemetry(shared.TelemetryConfig{
		ServiceName:    "taskvault",
		ServiceVersion: serviceVersion,
		Environment:    config.Environment,
		MetricsPort:    config.MetricsPort,
		OTLPEndpoint:   config.OTLPEndpoint,
		Logger:         logger.Logger,
	})

	if err != nil {
		log.Fatal("Failed to initialize telemetry:", err)
	}

	defer telemetry.Shutdown(ctx)

	metrics := shared.NewStorageMetrics(telemetry.PrometheusRegistry)

	store, err := openStore(config)

	if err != nil {
		logger.Warn("durable store unavailable, starting on in-memory fallback",
			zap.String("backend", config.StorageBackend),
			zap.Error(err),
		)
		store = nil
	} else {
		defer store.Close()
	}

	gw := storage.NewGateway(store, storage.GatewayConfig{
		Prefix:  config.Namespace,
		Logger:  logger.Logger,
		Metrics: metrics,
	})

	gw.OnQuotaExceeded(func(key string) {
		logger.Warn("storage quota exceeded", zap.String("key", key))
	})

	taskRepo := repositories.NewTaskRepository(gw, logger.Logger, metrics)
	projectRepo := repositories.NewProjectRepository(gw, logger.Logger, metrics)
	settingsRepo := repositories.NewSettingsRepository(gw, logger.Logger)

	if err := projectRepo.EnsureDefaultExists(ctx); err != nil {
		logger.Error("failed to seed default project", zap.Error(err))
	}

	manager := integrity.NewManager(gw, logger.Logger, metrics, taskRepo, projectRepo)

	integrityCtx, stopIntegrity := context.WithCancel(ctx)
	defer stopIntegrity()
	go manager.Run(integrityCtx, config.IntegrityInterval)

	router := routes.SetupRouter(routes.HandlersConfig{
		TaskHandler:      handlers.NewTaskHandler(taskRepo, logger),
		ProjectHandler:   handlers.NewProjectHandler(projectRepo, taskRepo, logger),
		SettingsHandler:  handlers.NewSettingsHandler(settingsRepo, logger),
		IntegrityHandler: handlers.NewIntegrityHandler(manager, gw, logger),
	}, metrics, logger)

	server := &http.Server{
		Addr:         ":" + config.HTTPPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("taskvault listening",
			zap.String("port", config.HTTPPort),
			zap.String("backend", config.StorageBackend),
		)

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	logger.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
}

func openStore(config *shared.AppConfig) (storage.KeyValueStore, error) {
	switch config.StorageBackend {
	case "memory":
		return storage.NewMemoryStore(storage.MemoryStoreConfig{}), nil
	case "sqlite":
		return storage.NewSQLiteStore(storage.SQLiteStoreConfig{
			Path:           config.DatabasePath,
			MigrationsPath: config.MigrationsPath,
		})
	case "postgres":
		return storage.NewPostgresStore(storage.PostgresStoreConfig{
			URL:            config.DatabaseURL,
			MigrationsPath: config.MigrationsPath,
		})
	case "redis":
		return storage.NewRedisStore(storage.RedisStoreConfig{
			Addr:     config.RedisAddr,
			Password: config.RedisPassword,
			DB:       config.RedisDB,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", config.StorageBackend)
	}
}
