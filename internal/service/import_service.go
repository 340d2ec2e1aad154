package service

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pixel-tales-export-api/internal/config"
	"github.com/pixel-tales-export-api/internal/models"
	"github.com/pixel-tales-export-api/internal/repository"
	"github.com/pixel-tales-export-api/internal/validation"
	"github.com/rs/zerolog"
)

// errorFlushThreshold bounds the validation errors held in memory before
// they are written to job_errors.
const errorFlushThreshold = 1000

// maxCachedStoryIDs caps the existing-ID preload used for duplicate checks
const maxCachedStoryIDs = 100000

// importService is the concrete implementation of ImportService
type importService struct {
	repos *repository.Repositories
	cfg   *config.Config
	log   zerolog.Logger
}

// newImportService creates a new ImportService
func newImportService(repos *repository.Repositories, cfg *config.Config, log zerolog.Logger) *importService {
	return &importService{
		repos: repos,
		cfg:   cfg,
		log:   log.With().Str("service", "import").Logger(),
	}
}

// CreateImportJob creates a new import job for an uploaded file
func (s *importService) CreateImportJob(ctx context.Context, req *models.ImportRequest, filePath string) (*models.Job, error) {
	resource := req.Resource
	if resource == "" {
		resource = models.ResourceStories
	}

	job := &models.Job{
		ID:             uuid.New().String(),
		Type:           models.JobTypeImport,
		Resource:       resource,
		Status:         models.JobStatusPending,
		IdempotencyKey: req.IdempotencyKey,
		FilePath:       filePath,
		CreatedAt:      time.Now(),
	}

	if err := s.repos.Job.Create(ctx, job); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("job_id", job.ID).
		Str("resource", job.Resource).
		Str("file", filePath).
		Msg("Import job created")

	return job, nil
}

// ProcessImport processes an import job
func (s *importService) ProcessImport(ctx context.Context, job *models.Job) error {
	startTime := time.Now()
	now := startTime
	job.Status = models.JobStatusProcessing
	job.StartedAt = &now
	s.repos.Job.Update(ctx, job)

	s.log.Info().
		Str("job_id", job.ID).
		Str("resource", job.Resource).
		Msg("Starting import processing")

	var err error
	switch job.Resource {
	case models.ResourceStories:
		err = s.processStoriesNDJSON(ctx, job)
	default:
		err = fmt.Errorf("unknown resource type: %s", job.Resource)
	}

	duration := time.Since(startTime)
	job.DurationMs = duration.Milliseconds()
	if job.ProcessedCount > 0 && duration.Seconds() > 0 {
		job.RowsPerSec = float64(job.ProcessedCount) / duration.Seconds()
	}
	if job.TotalRecords > 0 {
		job.Progress = job.ProcessedCount * 100 / job.TotalRecords
	}

	completedAt := time.Now()
	job.CompletedAt = &completedAt

	var errorRate float64
	if job.TotalRecords > 0 {
		errorRate = float64(job.FailedCount) / float64(job.TotalRecords) * 100
	}

	if err != nil {
		job.Status = models.JobStatusFailed
		job.ErrorMessage = err.Error()
		s.log.Error().Err(err).Str("job_id", job.ID).Msg("Import failed")
	} else {
		job.Status = models.JobStatusCompleted
		s.log.Info().
			Str("job_id", job.ID).
			Int("total", job.TotalRecords).
			Int("successful", job.SuccessfulCount).
			Int("failed", job.FailedCount).
			Float64("error_rate_pct", errorRate).
			Int64("duration_ms", job.DurationMs).
			Float64("rows_per_sec", job.RowsPerSec).
			Msg("Import completed")
	}

	s.repos.Job.Update(context.WithoutCancel(ctx), job)

	return err
}

// processStoriesNDJSON reads one story per line, validates it, and inserts
// accepted stories in batches.
func (s *importService) processStoriesNDJSON(ctx context.Context, job *models.Job) error {
	file, err := os.Open(job.FilePath)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	// stories carry inline images, so lines can be long
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, maxLineBytes(s.cfg))

	validator := validation.NewValidator()
	batchSize := s.cfg.Import.BatchSize
	if batchSize <= 0 {
		batchSize = 500
	}

	existing, err := s.repos.Story.GetAllIDs(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to preload story IDs, duplicates will surface at insert")
	} else if len(existing) < maxCachedStoryIDs {
		validator.SetStoryIDCache(existing)
	}

	var batch []*models.Story
	var validationErrors []models.ValidationError
	lineNum := 0

	flushBatch := func() {
		if len(batch) == 0 {
			return
		}
		inserted, err := s.repos.Story.BatchInsert(ctx, batch)
		if err != nil {
			s.log.Error().Err(err).Int("batch_size", len(batch)).Msg("Batch insert failed")
			job.FailedCount += len(batch)
		} else {
			job.SuccessfulCount += inserted
			job.FailedCount += len(batch) - inserted
		}
		job.ProcessedCount += len(batch)
		batch = batch[:0]

		s.log.Debug().
			Str("job_id", job.ID).
			Int("processed", job.ProcessedCount).
			Float64("rows_per_sec", float64(job.ProcessedCount)/time.Since(*job.StartedAt).Seconds()).
			Msg("Batch processed")
	}

	for scanner.Scan() {
		lineNum++
		line := scanner.Text()

		if strings.TrimSpace(line) == "" {
			continue
		}

		job.TotalRecords++

		if lineNum%1000 == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}

		var record models.StoryNDJSON
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			job.FailedCount++
			job.ProcessedCount++
			validationErrors = append(validationErrors, models.ValidationError{
				Line:    lineNum,
				Field:   "json",
				Message: fmt.Sprintf("invalid JSON: %v", err),
			})
			if len(validationErrors) >= errorFlushThreshold {
				s.flushValidationErrors(ctx, job.ID, &validationErrors)
			}
			continue
		}

		errors := validator.ValidateStory(&record, lineNum)
		if len(errors) > 0 {
			job.FailedCount++
			job.ProcessedCount++
			for _, e := range errors {
				validationErrors = append(validationErrors, models.ValidationError{
					Line:    lineNum,
					Field:   e.Field,
					Message: e.Message,
					Value:   e.Value,
				})
			}
			if len(validationErrors) >= errorFlushThreshold {
				s.flushValidationErrors(ctx, job.ID, &validationErrors)
			}
			continue
		}

		batch = append(batch, convertNDJSONToStory(&record))
		validator.AddStoryID(record.ID)

		if len(batch) >= batchSize {
			flushBatch()
		}
	}

	flushBatch()
	s.flushValidationErrors(ctx, job.ID, &validationErrors)

	return scanner.Err()
}

func maxLineBytes(cfg *config.Config) int {
	const floor = 1024 * 1024
	if max := cfg.Export.ImageMaxBytes * 2; max > floor {
		return int(max)
	}
	return floor
}

func (s *importService) flushValidationErrors(ctx context.Context, jobID string, errors *[]models.ValidationError) {
	if len(*errors) == 0 {
		return
	}
	if err := s.repos.Job.AddErrors(ctx, jobID, *errors); err != nil {
		s.log.Error().Err(err).Int("count", len(*errors)).Msg("Failed to flush validation errors")
	}
	*errors = (*errors)[:0]
}

// convertNDJSONToStory maps a validated record onto the stored model. A
// missing created_at becomes the import time.
func convertNDJSONToStory(record *models.StoryNDJSON) *models.Story {
	story := &models.Story{
		ID:         strings.ToLower(record.ID),
		Title:      strings.TrimSpace(record.Title),
		Author:     strings.TrimSpace(record.Author),
		Category:   record.Category,
		Genres:     record.Genres,
		Language:   record.Language,
		CoverImage: record.CoverImage,
		Pages:      make([]models.Page, len(record.Pages)),
	}
	for i, p := range record.Pages {
		story.Pages[i] = models.Page{
			Text:            p.Text,
			CanvasData:      p.CanvasData,
			BackgroundImage: p.BackgroundImage,
		}
	}

	if t, err := time.Parse(time.RFC3339, record.CreatedAt); err == nil {
		story.CreatedAt = t
	} else {
		story.CreatedAt = time.Now().UTC()
	}
	if record.LastModified != "" {
		if t, err := time.Parse(time.RFC3339, record.LastModified); err == nil {
			story.LastModified = &t
		}
	}
	return story
}
