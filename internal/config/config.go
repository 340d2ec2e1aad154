package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pixel-tales-export-api/internal/templates"
)

// Storage backends
const (
	StorageLocal = "local"
	StorageMinIO = "minio"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Story import configuration
	Import ImportConfig

	// PDF export configuration
	Export ExportConfig

	// Artifact storage configuration
	Storage StorageConfig

	// Logging configuration
	Log LogConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	Name           string
	SSLMode        string
	MaxOpenConns   int
	MaxIdleConns   int
	MaxLifetime    time.Duration
	MigrationsPath string
}

// ImportConfig holds import job settings
type ImportConfig struct {
	BatchSize     int
	MaxUploadSize int64 // in bytes
	UploadDir     string
}

// ExportConfig holds export job and rendering settings
type ExportConfig struct {
	OutputDir           string
	DefaultTemplate     string
	DefaultPrintProfile string
	MaxStories          int
	MaxWorkers          int
	PollInterval        time.Duration
	ImageFetchTimeout   time.Duration
	ImageCacheTTL       time.Duration
	ImageMaxBytes       int64
}

// StorageConfig selects and configures the artifact store
type StorageConfig struct {
	Backend        string
	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOBucket    string
	MinIOUseSSL    bool
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string
	Format string // "json" or "pretty"
}

// Load reads configuration from environment variables. A .env file in the
// working directory is applied first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 300*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnv("DB_PORT", "5432"),
			User:           getEnv("DB_USER", "postgres"),
			Password:       getEnv("DB_PASSWORD", "postgres"),
			Name:           getEnv("DB_NAME", "pixel_tales"),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:   getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:   getIntEnv("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:    getDurationEnv("DB_MAX_LIFETIME", 5*time.Minute),
			MigrationsPath: getEnv("MIGRATIONS_PATH", "./migrations"),
		},
		Import: ImportConfig{
			BatchSize:     getIntEnv("IMPORT_BATCH_SIZE", 500),
			MaxUploadSize: getInt64Env("MAX_UPLOAD_SIZE", 200*1024*1024), // 200MB
			UploadDir:     getEnv("UPLOAD_DIR", "./data/uploads"),
		},
		Export: ExportConfig{
			OutputDir:           getEnv("EXPORT_OUTPUT_DIR", "./data/exports"),
			DefaultTemplate:     getEnv("EXPORT_DEFAULT_TEMPLATE", "classic"),
			DefaultPrintProfile: getEnv("EXPORT_DEFAULT_PRINT_PROFILE", "screen"),
			MaxStories:          getIntEnv("EXPORT_MAX_STORIES", 100),
			MaxWorkers:          getIntEnv("EXPORT_MAX_WORKERS", 0),
			PollInterval:        getDurationEnv("JOB_POLL_INTERVAL", 2*time.Second),
			ImageFetchTimeout:   getDurationEnv("IMAGE_FETCH_TIMEOUT", 30*time.Second),
			ImageCacheTTL:       getDurationEnv("IMAGE_CACHE_TTL", 10*time.Minute),
			ImageMaxBytes:       getInt64Env("IMAGE_MAX_BYTES", 20*1024*1024),
		},
		Storage: StorageConfig{
			Backend:        strings.ToLower(getEnv("STORAGE_BACKEND", StorageLocal)),
			MinIOEndpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
			MinIOAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			MinIOSecretKey: getEnv("MINIO_SECRET_KEY", ""),
			MinIOBucket:    getEnv("MINIO_BUCKET", "pixel-tales-exports"),
			MinIOUseSSL:    getBoolEnv("MINIO_USE_SSL", false),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if _, err := templates.ParseTemplateID(c.Export.DefaultTemplate); err != nil {
		return fmt.Errorf("EXPORT_DEFAULT_TEMPLATE: %w", err)
	}
	if _, err := templates.ParsePrintProfileID(c.Export.DefaultPrintProfile); err != nil {
		return fmt.Errorf("EXPORT_DEFAULT_PRINT_PROFILE: %w", err)
	}
	if c.Export.MaxStories <= 0 {
		return fmt.Errorf("EXPORT_MAX_STORIES must be positive")
	}

	switch c.Storage.Backend {
	case StorageLocal:
		if c.Export.OutputDir == "" {
			return fmt.Errorf("EXPORT_OUTPUT_DIR is required for local storage")
		}
	case StorageMinIO:
		if c.Storage.MinIOAccessKey == "" || c.Storage.MinIOSecretKey == "" {
			return fmt.Errorf("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required for minio storage")
		}
		if c.Storage.MinIOBucket == "" {
			return fmt.Errorf("MINIO_BUCKET is required for minio storage")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage.Backend)
	}
	return nil
}

// GetDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
