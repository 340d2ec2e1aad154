package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"

	"github.com/lib/pq"
	"github.com/pixel-tales-export-api/internal/database"
	"github.com/pixel-tales-export-api/internal/models"
)

// StoryRepository defines the interface for story data operations.
// Listings return stories in library order: created_at, then id.
type StoryRepository interface {
	Create(ctx context.Context, story *models.Story) error
	BatchInsert(ctx context.Context, stories []*models.Story) (int, error)
	GetByID(ctx context.Context, id string) (*models.Story, error)
	GetByIDs(ctx context.Context, ids []string) ([]*models.Story, error)
	List(ctx context.Context, limit, offset int) ([]models.StorySummary, error)
	Exists(ctx context.Context, id string) (bool, error)
	GetAllIDs(ctx context.Context) ([]string, error)
	Count(ctx context.Context) (int, error)
}

// JobRepository defines the interface for job data operations
type JobRepository interface {
	Create(ctx context.Context, job *models.Job) error
	Update(ctx context.Context, job *models.Job) error
	UpdateProgress(ctx context.Context, jobID string, progress int) error
	GetByID(ctx context.Context, id string) (*models.Job, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*models.Job, error)
	GetPendingJobs(ctx context.Context) ([]*models.Job, error)
	MarkJobAsProcessing(ctx context.Context, jobID string) (bool, error)
	CountByStatus(ctx context.Context) (map[models.JobStatus]int, error)
	AddError(ctx context.Context, jobID string, err *models.ValidationError) error
	AddErrors(ctx context.Context, jobID string, errors []models.ValidationError) error
	GetErrors(ctx context.Context, jobID string, limit int) ([]models.ValidationError, error)
}

// Repositories holds all repository interfaces
type Repositories struct {
	Story StoryRepository
	Job   JobRepository
}

// New creates all repositories with the given database connection
func New(db *database.DB) *Repositories {
	return &Repositories{
		Story: NewStoryRepo(db),
		Job:   NewJobRepo(db),
	}
}

// helper to convert empty string to NULL
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// textArray encodes a nil slice as an empty array rather than NULL
func textArray(s []string) driver.Valuer {
	if s == nil {
		s = []string{}
	}
	return pq.StringArray(s)
}
