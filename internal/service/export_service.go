package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pixel-tales-export-api/internal/config"
	"github.com/pixel-tales-export-api/internal/models"
	"github.com/pixel-tales-export-api/internal/render"
	"github.com/pixel-tales-export-api/internal/repository"
	"github.com/pixel-tales-export-api/internal/storage"
	"github.com/pixel-tales-export-api/internal/templates"
	"github.com/rs/zerolog"
)

// exportService is the concrete implementation of ExportService
type exportService struct {
	repos      *repository.Repositories
	store      storage.ArtifactStore
	assembler  DocumentAssembler
	maxStories int
	defaults   render.Options
	log        zerolog.Logger
}

// newExportService creates a new ExportService. Config defaults have been
// checked by config.Validate, so parse failures fall back to the baseline.
func newExportService(repos *repository.Repositories, store storage.ArtifactStore, assembler DocumentAssembler, cfg *config.Config, log zerolog.Logger) *exportService {
	tpl, _ := templates.ParseTemplateID(cfg.Export.DefaultTemplate)
	profile, _ := templates.ParsePrintProfileID(cfg.Export.DefaultPrintProfile)

	maxStories := cfg.Export.MaxStories
	if maxStories <= 0 {
		maxStories = 100
	}

	return &exportService{
		repos:      repos,
		store:      store,
		assembler:  assembler,
		maxStories: maxStories,
		defaults:   render.Options{Template: tpl, PrintProfile: profile},
		log:        log.With().Str("service", "export").Logger(),
	}
}

// CreateExportJob validates the request and queues an export job
func (s *exportService) CreateExportJob(ctx context.Context, req *models.ExportRequest) (*models.Job, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	ids := dedupe(req.StoryIDs)
	if len(ids) == 0 {
		s.log.Warn().Msg("Export requested with no stories selected")
		return nil, ErrNoStoriesSelected
	}
	if len(ids) > s.maxStories {
		return nil, fmt.Errorf("%w: at most %d stories per export", ErrInvalidRequest, s.maxStories)
	}

	found, err := s.repos.Story.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(found) != len(ids) {
		return nil, fmt.Errorf("%w: %d of %d requested stories exist", ErrStoryNotFound, len(found), len(ids))
	}

	mode := req.Mode
	if mode == "" {
		mode = models.ExportModeIndividual
	}
	tpl := req.Template
	if tpl == (templates.TemplateID{}) {
		tpl = s.defaults.Template
	}
	profile := req.PrintProfile
	if profile == (templates.PrintProfileID{}) {
		profile = s.defaults.PrintProfile
	}

	job := &models.Job{
		ID:             uuid.New().String(),
		Type:           models.JobTypeExport,
		Resource:       models.ResourceStories,
		Status:         models.JobStatusPending,
		IdempotencyKey: req.IdempotencyKey,
		TotalRecords:   len(ids),
		CreatedAt:      time.Now(),
		Mode:           mode,
		Template:       tpl,
		PrintProfile:   profile,
		ExportType:     req.ExportType,
		StoryIDs:       ids,
	}

	if err := s.repos.Job.Create(ctx, job); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("job_id", job.ID).
		Str("mode", string(job.Mode)).
		Int("stories", len(ids)).
		Str("template", tpl.String()).
		Str("print_profile", profile.String()).
		Msg("Export job created")

	return job, nil
}

// ProcessExport renders an export job and stores its artifacts. A failed
// job keeps no artifacts.
func (s *exportService) ProcessExport(ctx context.Context, job *models.Job) error {
	startTime := time.Now()
	now := startTime
	job.Status = models.JobStatusProcessing
	job.StartedAt = &now
	job.Progress = 0
	s.repos.Job.Update(ctx, job)

	log := s.log.With().Str("job_id", job.ID).Logger()
	log.Info().Int("stories", len(job.StoryIDs)).Msg("Starting export processing")

	sink := &jobSink{store: s.store, jobID: job.ID}
	err := s.runExport(ctx, job, sink, log)

	duration := time.Since(startTime)
	job.DurationMs = duration.Milliseconds()
	completedAt := time.Now()
	job.CompletedAt = &completedAt

	if err != nil {
		// a failed export leaves nothing downloadable
		sink.discard(log)
		job.Status = models.JobStatusFailed
		job.Progress = 0
		job.Artifacts = nil
		job.SuccessfulCount = 0
		job.FailedCount = job.TotalRecords
		job.ErrorMessage = err.Error()
		log.Error().Err(err).Msg("Export failed")
	} else {
		job.Status = models.JobStatusCompleted
		job.Progress = 100
		job.Artifacts = sink.keys
		job.ProcessedCount = job.TotalRecords
		job.SuccessfulCount = job.TotalRecords
		if duration.Seconds() > 0 {
			job.RowsPerSec = float64(job.ProcessedCount) / duration.Seconds()
		}
		log.Info().
			Int("artifacts", len(job.Artifacts)).
			Int64("duration_ms", job.DurationMs).
			Msg("Export completed")
	}

	// persist the terminal state even when the processor is shutting down
	if uerr := s.repos.Job.Update(context.WithoutCancel(ctx), job); uerr != nil {
		log.Error().Err(uerr).Msg("Failed to persist export result")
	}

	return err
}

func (s *exportService) runExport(ctx context.Context, job *models.Job, sink *jobSink, log zerolog.Logger) error {
	stories, err := s.repos.Story.GetByIDs(ctx, job.StoryIDs)
	if err != nil {
		return fmt.Errorf("load stories: %w", err)
	}
	if len(stories) == 0 {
		return ErrNoStoriesSelected
	}
	if len(stories) != len(job.StoryIDs) {
		log.Warn().
			Int("requested", len(job.StoryIDs)).
			Int("found", len(stories)).
			Msg("Some stories disappeared before export, continuing with the rest")
	}

	session := NewExportSession(stories, s.assembler, sink, log)
	session.ToggleAll()
	session.SetMode(job.Mode)
	session.SetExportType(job.ExportType)
	if err := session.SetTemplate(job.Template); err != nil {
		return err
	}
	if err := session.SetPrintProfile(job.PrintProfile); err != nil {
		return err
	}
	session.OnProgress(func(p int) {
		job.Progress = p
		job.ProcessedCount = p * job.TotalRecords / 100
		if err := s.repos.Job.UpdateProgress(ctx, job.ID, p); err != nil {
			log.Warn().Err(err).Int("progress", p).Msg("Failed to record progress")
		}
	})

	return session.Begin(ctx)
}

// RenderStory renders one story synchronously with the given options. Zero
// options fall back to the configured defaults.
func (s *exportService) RenderStory(ctx context.Context, id string, tpl templates.TemplateID, profile templates.PrintProfileID) (*render.Artifact, error) {
	story, err := s.repos.Story.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if story == nil {
		return nil, ErrStoryNotFound
	}

	opts := s.defaults
	if tpl != (templates.TemplateID{}) {
		opts.Template = tpl
	}
	if profile != (templates.PrintProfileID{}) {
		opts.PrintProfile = profile
	}
	return s.assembler.ExportStory(ctx, story, opts)
}

// GetArtifact returns the bytes of a named artifact of a completed job
func (s *exportService) GetArtifact(ctx context.Context, jobID, name string) ([]byte, error) {
	job, err := s.repos.Job.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil || job.Type != models.JobTypeExport || job.Status != models.JobStatusCompleted {
		return nil, storage.ErrNotFound
	}

	for _, key := range job.Artifacts {
		if path.Base(key) == name {
			return s.store.Get(ctx, key)
		}
	}
	return nil, storage.ErrNotFound
}

// jobSink stores artifacts under the job's prefix and remembers their keys
type jobSink struct {
	store storage.ArtifactStore
	jobID string
	keys  []string
}

func (j *jobSink) Save(ctx context.Context, artifact *render.Artifact) error {
	key := storage.ArtifactKey(j.jobID, j.uniqueName(artifact.FileName))
	if err := j.store.Put(ctx, key, artifact.Data, artifact.ContentType()); err != nil {
		return err
	}
	j.keys = append(j.keys, key)
	return nil
}

// uniqueName suffixes repeated file names, since two stories may share a title
func (j *jobSink) uniqueName(name string) string {
	taken := make(map[string]bool, len(j.keys))
	for _, k := range j.keys {
		taken[path.Base(k)] = true
	}
	if !taken[name] {
		return name
	}
	stem := strings.TrimSuffix(name, ".pdf")
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s_%d.pdf", stem, i)
		if !taken[candidate] {
			return candidate
		}
	}
}

func (j *jobSink) discard(log zerolog.Logger) {
	ctx := context.Background()
	for _, key := range j.keys {
		if err := j.store.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
			log.Warn().Err(err).Str("key", key).Msg("Failed to remove partial artifact")
		}
	}
	j.keys = nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		key := strings.ToLower(strings.TrimSpace(id))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, key)
	}
	return out
}
