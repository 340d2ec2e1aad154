package models

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/pixel-tales-export-api/internal/templates"
)

// JobStatus represents the status of an import/export job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// JobType represents the type of job
type JobType string

const (
	JobTypeImport JobType = "import"
	JobTypeExport JobType = "export"
)

// ExportMode selects one document per story or one combined document
type ExportMode string

const (
	ExportModeIndividual ExportMode = "individual"
	ExportModeCombined   ExportMode = "combined"
)

// ResourceStories is the only resource handled by jobs
const ResourceStories = "stories"

// maxExportTypeLen matches the jobs.export_type column
const maxExportTypeLen = 20

// Job represents a story import or a PDF export job
type Job struct {
	ID              string     `json:"job_id" db:"id"`
	Type            JobType    `json:"type" db:"type"`
	Resource        string     `json:"resource" db:"resource"`
	Status          JobStatus  `json:"status" db:"status"`
	IdempotencyKey  string     `json:"idempotency_key,omitempty" db:"idempotency_key"`
	TotalRecords    int        `json:"total_records" db:"total_records"`
	ProcessedCount  int        `json:"processed" db:"processed_count"`
	SuccessfulCount int        `json:"successful" db:"successful_count"`
	FailedCount     int        `json:"failed" db:"failed_count"`
	DurationMs      int64      `json:"duration_ms,omitempty" db:"duration_ms"`
	RowsPerSec      float64    `json:"rows_per_sec,omitempty" db:"rows_per_sec"`
	FilePath        string     `json:"-" db:"file_path"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	StartedAt       *time.Time `json:"started_at,omitempty" db:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty" db:"completed_at"`

	// Export jobs only
	Mode         ExportMode               `json:"mode,omitempty" db:"mode"`
	Template     templates.TemplateID     `json:"template" db:"template"`
	PrintProfile templates.PrintProfileID `json:"print_profile" db:"print_profile"`
	ExportType   string                   `json:"export_type,omitempty" db:"export_type"`
	StoryIDs     []string                 `json:"story_ids,omitempty" db:"story_ids"`
	Progress     int                      `json:"progress" db:"progress"`
	Artifacts    []string                 `json:"-" db:"artifacts"`
	ErrorMessage string                   `json:"error,omitempty" db:"error_message"`
}

// ValidationError represents a single validation error
type ValidationError struct {
	Line    int         `json:"line"`
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// ArtifactLink points at a downloadable export artifact
type ArtifactLink struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// JobResponse is the API response for job status
type JobResponse struct {
	Job
	Errors      []ValidationError `json:"errors,omitempty"`
	ErrorCount  int               `json:"error_count,omitempty"`
	ErrorReport string            `json:"error_report_url,omitempty"`
	Downloads   []ArtifactLink    `json:"downloads,omitempty"`
}

// ImportRequest represents an import job request
type ImportRequest struct {
	Resource       string `json:"resource" form:"resource"`
	IdempotencyKey string `json:"-"`
}

// ExportRequest represents an export job request
type ExportRequest struct {
	StoryIDs       []string                 `json:"story_ids"`
	Mode           ExportMode               `json:"mode"`
	Template       templates.TemplateID     `json:"template"`
	PrintProfile   templates.PrintProfileID `json:"print_profile"`
	ExportType     string                   `json:"export_type"`
	IdempotencyKey string                   `json:"-"`
}

// Validate checks the request shape. An empty selection is not a shape
// error and is reported separately by the export service.
func (r ExportRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.StoryIDs,
			validation.Each(is.UUID.Error("story id must be a UUID")),
		),
		validation.Field(&r.Mode,
			validation.In(ExportModeIndividual, ExportModeCombined).Error("mode must be one of: individual, combined"),
		),
		validation.Field(&r.ExportType,
			validation.Length(0, maxExportTypeLen).Error("export_type must be at most 20 characters"),
		),
	)
}
