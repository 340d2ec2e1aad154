package service

import (
	"context"
	"errors"

	"github.com/pixel-tales-export-api/internal/config"
	"github.com/pixel-tales-export-api/internal/models"
	"github.com/pixel-tales-export-api/internal/render"
	"github.com/pixel-tales-export-api/internal/repository"
	"github.com/pixel-tales-export-api/internal/storage"
	"github.com/pixel-tales-export-api/internal/templates"
	"github.com/rs/zerolog"
)

var (
	ErrNoStoriesSelected = errors.New("no stories selected for export")
	ErrExportInFlight    = errors.New("an export is already in progress")
	ErrSessionClosed     = errors.New("export session is closed")
	ErrStoryNotFound     = errors.New("story not found")
	ErrInvalidRequest    = errors.New("invalid export request")

	// ErrExportFailed is the assembler's failure sentinel, re-exported so
	// callers can classify errors without importing render.
	ErrExportFailed = render.ErrExportFailed
)

// StoryService defines the interface for reading the story library
type StoryService interface {
	ListStories(ctx context.Context, limit, offset int) ([]models.StorySummary, error)
	GetStory(ctx context.Context, id string) (*models.Story, error)
	CountStories(ctx context.Context) (int, error)
}

// ImportService defines the interface for import operations
type ImportService interface {
	CreateImportJob(ctx context.Context, req *models.ImportRequest, filePath string) (*models.Job, error)
	ProcessImport(ctx context.Context, job *models.Job) error
}

// ExportService defines the interface for PDF export operations
type ExportService interface {
	CreateExportJob(ctx context.Context, req *models.ExportRequest) (*models.Job, error)
	ProcessExport(ctx context.Context, job *models.Job) error
	RenderStory(ctx context.Context, id string, tpl templates.TemplateID, profile templates.PrintProfileID) (*render.Artifact, error)
	GetArtifact(ctx context.Context, jobID, name string) ([]byte, error)
}

// JobService defines the interface for job management
type JobService interface {
	StartProcessor(ctx context.Context)
	StopProcessor()
	GetJob(ctx context.Context, id string) (*models.JobResponse, error)
	GetJobByIdempotencyKey(ctx context.Context, key string) (*models.Job, error)
	GetJobErrors(ctx context.Context, id string) ([]models.ValidationError, error)
	CountByStatus(ctx context.Context) (map[models.JobStatus]int, error)
	SetImportService(importService ImportService)
	SetExportService(exportService ExportService)
}

// Services holds all service interfaces
type Services struct {
	Story  StoryService
	Import ImportService
	Export ExportService
	Job    JobService
}

// NewServices creates all services. images may be nil, in which case
// documents render without illustrations.
func NewServices(repos *repository.Repositories, store storage.ArtifactStore, images render.ImageSource, cfg *config.Config, log zerolog.Logger) *Services {
	jobSvc := newJobService(repos.Job, cfg.Export, log)
	importSvc := newImportService(repos, cfg, log)
	exportSvc := newExportService(repos, store, render.NewAssembler(images, log), cfg, log)

	// Wire up job processor to import and export services
	jobSvc.SetImportService(importSvc)
	jobSvc.SetExportService(exportSvc)

	return &Services{
		Story:  newStoryService(repos.Story, log),
		Import: importSvc,
		Export: exportSvc,
		Job:    jobSvc,
	}
}
