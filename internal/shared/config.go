package shared

import (
	"os"
	"strconv"
	"time"
)

// AppConfig general application configuration
type AppConfig struct {
	Environment string
	HTTPPort    string
	MetricsPort string

	// Telemetry
	OTLPEndpoint string

	// Storage
	StorageBackend string // memory, sqlite, postgres, redis
	Namespace      string
	DatabasePath   string
	DatabaseURL    string
	MigrationsPath string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int

	// Integrity
	IntegrityInterval time.Duration
}

// GetDefaultConfig returns the default configuration with environment
// variable overrides applied.
func GetDefaultConfig() *AppConfig {
	config := &AppConfig{
		Environment:       "development",
		HTTPPort:          "8080",
		MetricsPort:       "9090",
		OTLPEndpoint:      "localhost:4317",
		StorageBackend:    "sqlite",
		Namespace:         "taskvault:",
		DatabasePath:      "taskvault.db",
		MigrationsPath:    "db/migrations",
		RedisAddr:         "localhost:6379",
		IntegrityInterval: 10 * time.Minute,
	}

	overrideString(&config.Environment, "APP_ENV")
	overrideString(&config.HTTPPort, "PORT")
	overrideString(&config.MetricsPort, "METRICS_PORT")
	overrideString(&config.OTLPEndpoint, "OTLP_ENDPOINT")
	overrideString(&config.StorageBackend, "STORAGE_BACKEND")
	overrideString(&config.Namespace, "STORAGE_NAMESPACE")
	overrideString(&config.DatabasePath, "DATABASE_PATH")
	overrideString(&config.DatabaseURL, "DATABASE_URL")
	overrideString(&config.MigrationsPath, "MIGRATIONS_PATH")
	overrideString(&config.RedisAddr, "REDIS_ADDR")
	overrideString(&config.RedisPassword, "REDIS_PASSWORD")

	if value := os.Getenv("REDIS_DB"); value != "" {
		if db, err := strconv.Atoi(value); err == nil {
			config.RedisDB = db
		}
	}
	if value := os.Getenv("INTEGRITY_INTERVAL"); value != "" {
		if interval, err := time.ParseDuration(value); err == nil {
			config.IntegrityInterval = interval
		}
	}

	return config
}

func overrideString(target *string, envKey string) {
	if value := os.Getenv(envKey); value != "" {
		*target = value
	}
}
