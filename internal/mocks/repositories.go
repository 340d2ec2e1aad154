package mocks

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/pixel-tales-export-api/internal/models"
	"github.com/pixel-tales-export-api/internal/repository"
)

// Verify interface compliance
var (
	_ repository.StoryRepository = (*MockStoryRepository)(nil)
	_ repository.JobRepository   = (*MockJobRepository)(nil)
)

// MockStoryRepository is an in-memory StoryRepository that keeps library order
type MockStoryRepository struct {
	mu               sync.Mutex
	Stories          map[string]*models.Story
	InsertError      error
	GetError         error
	InsertedCount    int
	BatchInsertFunc  func(ctx context.Context, stories []*models.Story) (int, error)
	BatchInsertCalls int
}

func NewMockStoryRepository(stories ...*models.Story) *MockStoryRepository {
	m := &MockStoryRepository{Stories: make(map[string]*models.Story)}
	for _, s := range stories {
		m.Stories[strings.ToLower(s.ID)] = s
	}
	return m
}

func (m *MockStoryRepository) Create(ctx context.Context, story *models.Story) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InsertError != nil {
		return m.InsertError
	}
	m.Stories[strings.ToLower(story.ID)] = story
	return nil
}

func (m *MockStoryRepository) BatchInsert(ctx context.Context, stories []*models.Story) (int, error) {
	m.mu.Lock()
	m.BatchInsertCalls++
	fn := m.BatchInsertFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, stories)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InsertError != nil {
		return 0, m.InsertError
	}
	for _, s := range stories {
		m.Stories[strings.ToLower(s.ID)] = s
	}
	m.InsertedCount += len(stories)
	return len(stories), nil
}

func (m *MockStoryRepository) GetByID(ctx context.Context, id string) (*models.Story, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetError != nil {
		return nil, m.GetError
	}
	return m.Stories[strings.ToLower(id)], nil
}

func (m *MockStoryRepository) GetByIDs(ctx context.Context, ids []string) ([]*models.Story, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetError != nil {
		return nil, m.GetError
	}
	var out []*models.Story
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		key := strings.ToLower(id)
		if s, ok := m.Stories[key]; ok && !seen[key] {
			seen[key] = true
			out = append(out, s)
		}
	}
	sortLibrary(out)
	return out, nil
}

func (m *MockStoryRepository) List(ctx context.Context, limit, offset int) ([]models.StorySummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.ordered()
	if offset >= len(all) {
		return []models.StorySummary{}, nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	out := make([]models.StorySummary, 0, len(all))
	for _, s := range all {
		out = append(out, s.Summary())
	}
	return out, nil
}

func (m *MockStoryRepository) Exists(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, exists := m.Stories[strings.ToLower(id)]
	return exists, nil
}

func (m *MockStoryRepository) GetAllIDs(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.Stories))
	for id := range m.Stories {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *MockStoryRepository) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Stories), nil
}

func (m *MockStoryRepository) ordered() []*models.Story {
	out := make([]*models.Story, 0, len(m.Stories))
	for _, s := range m.Stories {
		out = append(out, s)
	}
	sortLibrary(out)
	return out
}

func sortLibrary(stories []*models.Story) {
	sort.Slice(stories, func(i, j int) bool {
		if !stories[i].CreatedAt.Equal(stories[j].CreatedAt) {
			return stories[i].CreatedAt.Before(stories[j].CreatedAt)
		}
		return stories[i].ID < stories[j].ID
	})
}

// MockJobRepository is a mock implementation of JobRepository. It stores
// copies so workers and pollers never share a *models.Job.
type MockJobRepository struct {
	mu              sync.Mutex
	Jobs            map[string]*models.Job
	Errors          map[string][]models.ValidationError
	ProgressUpdates map[string][]int
	CreateError     error
	UpdateError     error
}

func NewMockJobRepository() *MockJobRepository {
	return &MockJobRepository{
		Jobs:            make(map[string]*models.Job),
		Errors:          make(map[string][]models.ValidationError),
		ProgressUpdates: make(map[string][]int),
	}
}

func cloneJob(job *models.Job) *models.Job {
	if job == nil {
		return nil
	}
	c := *job
	c.StoryIDs = append([]string(nil), job.StoryIDs...)
	c.Artifacts = append([]string(nil), job.Artifacts...)
	return &c
}

func (m *MockJobRepository) Create(ctx context.Context, job *models.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateError != nil {
		return m.CreateError
	}
	m.Jobs[job.ID] = cloneJob(job)
	return nil
}

func (m *MockJobRepository) Update(ctx context.Context, job *models.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.Jobs[job.ID] = cloneJob(job)
	return nil
}

func (m *MockJobRepository) UpdateProgress(ctx context.Context, jobID string, progress int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.ProgressUpdates[jobID] = append(m.ProgressUpdates[jobID], progress)
	if job, ok := m.Jobs[jobID]; ok {
		job.Progress = progress
	}
	return nil
}

func (m *MockJobRepository) GetByID(ctx context.Context, id string) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneJob(m.Jobs[id]), nil
}

func (m *MockJobRepository) GetByIdempotencyKey(ctx context.Context, key string) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, job := range m.Jobs {
		if key != "" && job.IdempotencyKey == key {
			return cloneJob(job), nil
		}
	}
	return nil, nil
}

func (m *MockJobRepository) GetPendingJobs(ctx context.Context) ([]*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var pending []*models.Job
	for _, job := range m.Jobs {
		if job.Status == models.JobStatusPending {
			pending = append(pending, cloneJob(job))
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].CreatedAt.Before(pending[j].CreatedAt) })
	return pending, nil
}

func (m *MockJobRepository) MarkJobAsProcessing(ctx context.Context, jobID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, exists := m.Jobs[jobID]
	if !exists || job.Status != models.JobStatusPending {
		return false, nil
	}
	job.Status = models.JobStatusProcessing
	return true, nil
}

func (m *MockJobRepository) CountByStatus(ctx context.Context) (map[models.JobStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[models.JobStatus]int)
	for _, job := range m.Jobs {
		counts[job.Status]++
	}
	return counts, nil
}

func (m *MockJobRepository) AddError(ctx context.Context, jobID string, err *models.ValidationError) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Errors[jobID] = append(m.Errors[jobID], *err)
	return nil
}

func (m *MockJobRepository) AddErrors(ctx context.Context, jobID string, errors []models.ValidationError) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Errors[jobID] = append(m.Errors[jobID], errors...)
	return nil
}

func (m *MockJobRepository) GetErrors(ctx context.Context, jobID string, limit int) ([]models.ValidationError, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	errors := m.Errors[jobID]
	if limit > 0 && len(errors) > limit {
		return errors[:limit], nil
	}
	return errors, nil
}

// Progress returns the recorded progress values for a job
func (m *MockJobRepository) Progress(jobID string) []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.ProgressUpdates[jobID]...)
}
