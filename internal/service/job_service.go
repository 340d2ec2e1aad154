package service

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"runtime"
	"sync"
	"time"

	"github.com/pixel-tales-export-api/internal/config"
	"github.com/pixel-tales-export-api/internal/models"
	"github.com/pixel-tales-export-api/internal/repository"
	"github.com/rs/zerolog"
)

const maxStatusErrors = 100

// jobService is the concrete implementation of JobService
type jobService struct {
	jobRepo       repository.JobRepository
	importService ImportService
	exportService ExportService
	pollInterval  time.Duration
	log           zerolog.Logger
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	running       bool
	mu            sync.Mutex
	// Semaphore: buffered channel to limit concurrent job processing
	sem chan struct{}
}

// newJobService creates a new JobService. Without an explicit worker count
// the pool is sized for I/O-bound work: NumCPU*4 clamped to 4..32.
func newJobService(jobRepo repository.JobRepository, cfg config.ExportConfig, log zerolog.Logger) *jobService {
	maxWorkers := cfg.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = runtime.NumCPU() * 4
		if maxWorkers < 4 {
			maxWorkers = 4
		}
		if maxWorkers > 32 {
			maxWorkers = 32
		}
	}

	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}

	log.Info().
		Int("max_workers", maxWorkers).
		Dur("poll_interval", pollInterval).
		Msg("Initializing job service worker pool")

	return &jobService{
		jobRepo:      jobRepo,
		pollInterval: pollInterval,
		log:          log.With().Str("service", "job").Logger(),
		sem:          make(chan struct{}, maxWorkers),
	}
}

// SetImportService sets the import service for job processing
func (s *jobService) SetImportService(importService ImportService) {
	s.importService = importService
}

// SetExportService sets the export service for job processing
func (s *jobService) SetExportService(exportService ExportService) {
	s.exportService = exportService
}

// StartProcessor starts the background job processor
func (s *jobService) StartProcessor(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.log.Info().Msg("Job processor started")

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			s.log.Info().Msg("Job processor stopping")
			return
		case <-ticker.C:
			s.processPendingJobs()
		}
	}
}

// StopProcessor stops the background job processor and waits for running jobs
func (s *jobService) StopProcessor() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.cancel()
	s.wg.Wait()
	s.running = false
	s.log.Info().Msg("Job processor stopped")
}

func (s *jobService) processPendingJobs() {
	jobs, err := s.jobRepo.GetPendingJobs(s.ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to get pending jobs")
		return
	}

	for _, job := range jobs {
		// blocks while every worker is busy
		select {
		case s.sem <- struct{}{}:
		case <-s.ctx.Done():
			return
		}

		marked, err := s.jobRepo.MarkJobAsProcessing(s.ctx, job.ID)
		if err != nil || !marked {
			<-s.sem
			continue // another instance picked it up
		}

		s.wg.Add(1)
		go func(j *models.Job) {
			defer s.wg.Done()
			defer func() { <-s.sem }()

			defer func() {
				if r := recover(); r != nil {
					s.log.Error().
						Interface("panic", r).
						Str("job_id", j.ID).
						Msg("Job processing panicked - recovered")
					j.Status = models.JobStatusFailed
					j.Progress = 0
					j.Artifacts = nil
					j.ErrorMessage = fmt.Sprintf("internal error: %v", r)
					s.jobRepo.Update(context.WithoutCancel(s.ctx), j)
				}
			}()
			s.processJob(j)
		}(job)
	}
}

func (s *jobService) processJob(job *models.Job) {
	select {
	case <-s.ctx.Done():
		s.log.Warn().Str("job_id", job.ID).Msg("Job processing cancelled due to shutdown")
		return
	default:
	}

	s.log.Info().Str("job_id", job.ID).Str("type", string(job.Type)).Msg("Processing job")

	switch job.Type {
	case models.JobTypeImport:
		if s.importService != nil {
			if err := s.importService.ProcessImport(s.ctx, job); err != nil {
				s.log.Error().Err(err).Str("job_id", job.ID).Msg("Import processing failed")
			}
		}
	case models.JobTypeExport:
		if s.exportService != nil {
			if err := s.exportService.ProcessExport(s.ctx, job); err != nil {
				s.log.Error().Err(err).Str("job_id", job.ID).Msg("Export processing failed")
			}
		}
	default:
		s.log.Warn().Str("job_id", job.ID).Str("type", string(job.Type)).Msg("Unknown job type")
	}
}

// GetJob retrieves a job by ID with its errors or download links
func (s *jobService) GetJob(ctx context.Context, id string) (*models.JobResponse, error) {
	job, err := s.jobRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, nil
	}

	response := &models.JobResponse{Job: *job}

	switch job.Type {
	case models.JobTypeExport:
		if job.Status == models.JobStatusCompleted {
			response.Downloads = downloadLinks(job)
		}
	default:
		errors, err := s.jobRepo.GetErrors(ctx, id, maxStatusErrors)
		if err != nil {
			s.log.Error().Err(err).Str("job_id", id).Msg("Failed to get job errors")
		}
		response.Errors = errors
		response.ErrorCount = job.FailedCount
		if job.FailedCount > 0 {
			response.ErrorReport = "/v1/stories/import/" + job.ID + "/errors"
		}
	}

	return response, nil
}

func downloadLinks(job *models.Job) []models.ArtifactLink {
	links := make([]models.ArtifactLink, 0, len(job.Artifacts))
	for _, key := range job.Artifacts {
		name := path.Base(key)
		links = append(links, models.ArtifactLink{
			Name: name,
			URL:  "/v1/exports/" + job.ID + "/artifacts/" + url.PathEscape(name),
		})
	}
	return links
}

// GetJobByIdempotencyKey retrieves a job by idempotency key
func (s *jobService) GetJobByIdempotencyKey(ctx context.Context, key string) (*models.Job, error) {
	return s.jobRepo.GetByIdempotencyKey(ctx, key)
}

// GetJobErrors retrieves all validation errors for a job
func (s *jobService) GetJobErrors(ctx context.Context, id string) ([]models.ValidationError, error) {
	return s.jobRepo.GetErrors(ctx, id, 0)
}

// CountByStatus returns job counts keyed by status
func (s *jobService) CountByStatus(ctx context.Context) (map[models.JobStatus]int, error) {
	return s.jobRepo.CountByStatus(ctx)
}
