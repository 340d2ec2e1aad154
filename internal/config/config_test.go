package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pixel-tales-export-api/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "")
	t.Setenv("EXPORT_DEFAULT_TEMPLATE", "")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Storage.Backend != config.StorageLocal {
		t.Errorf("Expected local storage, got %s", cfg.Storage.Backend)
	}
	if cfg.Export.DefaultTemplate != "classic" {
		t.Errorf("Expected classic template, got %s", cfg.Export.DefaultTemplate)
	}
	if cfg.Export.PollInterval != 2*time.Second {
		t.Errorf("Expected 2s poll interval, got %v", cfg.Export.PollInterval)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("EXPORT_DEFAULT_TEMPLATE", "Elegant")
	t.Setenv("EXPORT_MAX_STORIES", "12")
	t.Setenv("IMAGE_FETCH_TIMEOUT", "5s")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("IMPORT_BATCH_SIZE", "not-a-number")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Export.MaxStories != 12 {
		t.Errorf("Expected 12, got %d", cfg.Export.MaxStories)
	}
	if cfg.Export.ImageFetchTimeout != 5*time.Second {
		t.Errorf("Expected 5s, got %v", cfg.Export.ImageFetchTimeout)
	}
	if !cfg.Storage.MinIOUseSSL {
		t.Error("Expected MinIOUseSSL")
	}
	if cfg.Import.BatchSize != 500 {
		t.Errorf("Expected default batch size on bad input, got %d", cfg.Import.BatchSize)
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("MINIO_BUCKET=from-dotenv\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)
	// registers restore of the original value, then leaves the key for .env
	t.Setenv("MINIO_BUCKET", "")
	os.Unsetenv("MINIO_BUCKET")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Storage.MinIOBucket != "from-dotenv" {
		t.Errorf("Expected bucket from .env, got %s", cfg.Storage.MinIOBucket)
	}
}

func TestLoad_UnreadableDotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, ".env"), 0755); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)

	if _, err := config.Load(); err == nil {
		t.Error("Expected an error for an unreadable .env")
	}
}

func TestLoad_MissingDotEnvIsFine(t *testing.T) {
	t.Chdir(t.TempDir())

	if _, err := config.Load(); err != nil {
		t.Errorf("Load without .env failed: %v", err)
	}
}

func validConfig() *config.Config {
	return &config.Config{
		Database: config.DatabaseConfig{Host: "localhost", Name: "pixel_tales"},
		Export: config.ExportConfig{
			OutputDir:           "/tmp/exports",
			DefaultTemplate:     "classic",
			DefaultPrintProfile: "screen",
			MaxStories:          10,
		},
		Storage: config.StorageConfig{Backend: config.StorageLocal},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *config.Config)
		wantErr bool
	}{
		{"valid", func(c *config.Config) {}, false},
		{"missing host", func(c *config.Config) { c.Database.Host = "" }, true},
		{"missing db name", func(c *config.Config) { c.Database.Name = "" }, true},
		{"unknown template", func(c *config.Config) { c.Export.DefaultTemplate = "gothic" }, true},
		{"unknown profile", func(c *config.Config) { c.Export.DefaultPrintProfile = "poster" }, true},
		{"zero max stories", func(c *config.Config) { c.Export.MaxStories = 0 }, true},
		{"unknown backend", func(c *config.Config) { c.Storage.Backend = "s3" }, true},
		{"minio without credentials", func(c *config.Config) { c.Storage.Backend = config.StorageMinIO }, true},
		{"minio configured", func(c *config.Config) {
			c.Storage = config.StorageConfig{
				Backend:        config.StorageMinIO,
				MinIOAccessKey: "key",
				MinIOSecretKey: "secret",
				MinIOBucket:    "exports",
			}
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetDSN(t *testing.T) {
	db := config.DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	expected := "host=db port=5432 user=u password=p dbname=n sslmode=disable"
	if got := db.GetDSN(); got != expected {
		t.Errorf("Expected %s, got %s", expected, got)
	}
}
