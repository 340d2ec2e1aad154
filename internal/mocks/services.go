package mocks

import (
	"context"

	"github.com/pixel-tales-export-api/internal/models"
	"github.com/pixel-tales-export-api/internal/render"
	"github.com/pixel-tales-export-api/internal/service"
	"github.com/pixel-tales-export-api/internal/storage"
	"github.com/pixel-tales-export-api/internal/templates"
)

// MockStoryService is a mock implementation of StoryService
type MockStoryService struct {
	Stories   []*models.Story
	ListError error
}

// Verify interface compliance
var _ service.StoryService = (*MockStoryService)(nil)

func NewMockStoryService(stories ...*models.Story) *MockStoryService {
	return &MockStoryService{Stories: stories}
}

func (m *MockStoryService) ListStories(ctx context.Context, limit, offset int) ([]models.StorySummary, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	out := make([]models.StorySummary, 0, len(m.Stories))
	for i, s := range m.Stories {
		if i < offset {
			continue
		}
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, s.Summary())
	}
	return out, nil
}

func (m *MockStoryService) GetStory(ctx context.Context, id string) (*models.Story, error) {
	for _, s := range m.Stories {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, service.ErrStoryNotFound
}

func (m *MockStoryService) CountStories(ctx context.Context) (int, error) {
	return len(m.Stories), nil
}

// MockImportService is a mock implementation of ImportService
type MockImportService struct {
	CreateJobFunc func(ctx context.Context, req *models.ImportRequest, filePath string) (*models.Job, error)
	ProcessFunc   func(ctx context.Context, job *models.Job) error
	ProcessedJobs []*models.Job
	CreatedJobs   []*models.Job
}

// Verify interface compliance
var _ service.ImportService = (*MockImportService)(nil)

func NewMockImportService() *MockImportService {
	return &MockImportService{
		ProcessedJobs: make([]*models.Job, 0),
		CreatedJobs:   make([]*models.Job, 0),
	}
}

func (m *MockImportService) CreateImportJob(ctx context.Context, req *models.ImportRequest, filePath string) (*models.Job, error) {
	if m.CreateJobFunc != nil {
		return m.CreateJobFunc(ctx, req, filePath)
	}
	job := &models.Job{
		ID:       "test-job-id",
		Type:     models.JobTypeImport,
		Resource: req.Resource,
		Status:   models.JobStatusPending,
	}
	m.CreatedJobs = append(m.CreatedJobs, job)
	return job, nil
}

func (m *MockImportService) ProcessImport(ctx context.Context, job *models.Job) error {
	if m.ProcessFunc != nil {
		return m.ProcessFunc(ctx, job)
	}
	m.ProcessedJobs = append(m.ProcessedJobs, job)
	job.Status = models.JobStatusCompleted
	return nil
}

// MockExportService is a mock implementation of ExportService
type MockExportService struct {
	CreateJobFunc   func(ctx context.Context, req *models.ExportRequest) (*models.Job, error)
	ProcessFunc     func(ctx context.Context, job *models.Job) error
	RenderStoryFunc func(ctx context.Context, id string, tpl templates.TemplateID, profile templates.PrintProfileID) (*render.Artifact, error)
	Artifacts       map[string][]byte
	CreatedJobs     []*models.Job
	ProcessedJobs   []*models.Job
}

// Verify interface compliance
var _ service.ExportService = (*MockExportService)(nil)

func NewMockExportService() *MockExportService {
	return &MockExportService{Artifacts: make(map[string][]byte)}
}

func (m *MockExportService) CreateExportJob(ctx context.Context, req *models.ExportRequest) (*models.Job, error) {
	if m.CreateJobFunc != nil {
		return m.CreateJobFunc(ctx, req)
	}
	if len(req.StoryIDs) == 0 {
		return nil, service.ErrNoStoriesSelected
	}
	job := &models.Job{
		ID:           "test-export-id",
		Type:         models.JobTypeExport,
		Resource:     models.ResourceStories,
		Status:       models.JobStatusPending,
		Mode:         req.Mode,
		Template:     req.Template,
		PrintProfile: req.PrintProfile,
		StoryIDs:     req.StoryIDs,
		TotalRecords: len(req.StoryIDs),
	}
	m.CreatedJobs = append(m.CreatedJobs, job)
	return job, nil
}

func (m *MockExportService) ProcessExport(ctx context.Context, job *models.Job) error {
	if m.ProcessFunc != nil {
		return m.ProcessFunc(ctx, job)
	}
	m.ProcessedJobs = append(m.ProcessedJobs, job)
	job.Status = models.JobStatusCompleted
	job.Progress = 100
	return nil
}

func (m *MockExportService) RenderStory(ctx context.Context, id string, tpl templates.TemplateID, profile templates.PrintProfileID) (*render.Artifact, error) {
	if m.RenderStoryFunc != nil {
		return m.RenderStoryFunc(ctx, id, tpl, profile)
	}
	return nil, service.ErrStoryNotFound
}

// GetArtifact looks up Artifacts by "jobID/name"
func (m *MockExportService) GetArtifact(ctx context.Context, jobID, name string) ([]byte, error) {
	data, ok := m.Artifacts[jobID+"/"+name]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return data, nil
}

// MockJobService is a mock implementation of JobService
type MockJobService struct {
	Jobs          map[string]*models.JobResponse
	Errors        map[string][]models.ValidationError
	Counts        map[models.JobStatus]int
	ImportService service.ImportService
	ExportService service.ExportService
}

// Verify interface compliance
var _ service.JobService = (*MockJobService)(nil)

func NewMockJobService() *MockJobService {
	return &MockJobService{
		Jobs:   make(map[string]*models.JobResponse),
		Errors: make(map[string][]models.ValidationError),
		Counts: make(map[models.JobStatus]int),
	}
}

func (m *MockJobService) StartProcessor(ctx context.Context) {}

func (m *MockJobService) StopProcessor() {}

func (m *MockJobService) GetJob(ctx context.Context, id string) (*models.JobResponse, error) {
	return m.Jobs[id], nil
}

func (m *MockJobService) GetJobByIdempotencyKey(ctx context.Context, key string) (*models.Job, error) {
	for _, job := range m.Jobs {
		if job.IdempotencyKey == key {
			return &job.Job, nil
		}
	}
	return nil, nil
}

func (m *MockJobService) GetJobErrors(ctx context.Context, id string) ([]models.ValidationError, error) {
	return m.Errors[id], nil
}

func (m *MockJobService) CountByStatus(ctx context.Context) (map[models.JobStatus]int, error) {
	return m.Counts, nil
}

func (m *MockJobService) SetImportService(importService service.ImportService) {
	m.ImportService = importService
}

func (m *MockJobService) SetExportService(exportService service.ExportService) {
	m.ExportService = exportService
}
