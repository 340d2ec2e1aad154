package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/pixel-tales-export-api/internal/config"
	"github.com/rs/zerolog"
)

// ErrNotFound is returned when no object exists under a key
var ErrNotFound = errors.New("artifact not found")

// ArtifactStore persists finished export documents
type ArtifactStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// ArtifactKey is the storage key of one file produced by an export job
func ArtifactKey(jobID, fileName string) string {
	return path.Join("exports", jobID, path.Base(fileName))
}

// New builds the store selected by the storage backend setting
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (ArtifactStore, error) {
	switch strings.ToLower(cfg.Storage.Backend) {
	case config.StorageLocal, "":
		return NewLocalStore(cfg.Export.OutputDir, log)
	case config.StorageMinIO:
		return NewMinIOStore(ctx, cfg.Storage, log)
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
}

func validKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "..") {
		return fmt.Errorf("invalid artifact key %q", key)
	}
	return nil
}
