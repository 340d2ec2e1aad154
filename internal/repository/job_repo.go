package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/pixel-tales-export-api/internal/database"
	"github.com/pixel-tales-export-api/internal/models"
	"github.com/pixel-tales-export-api/internal/templates"
)

const jobColumns = `
	id, type, resource, status, idempotency_key, total_records, processed_count,
	successful_count, failed_count, duration_ms, rows_per_sec, file_path,
	mode, template, print_profile, export_type, story_ids, progress, artifacts,
	error_message, created_at, started_at, completed_at`

// jobRepo is the concrete implementation of JobRepository
type jobRepo struct {
	db *database.DB
}

// NewJobRepo creates a new job repository
func NewJobRepo(db *database.DB) JobRepository {
	return &jobRepo{db: db}
}

// Create inserts a new job
func (r *jobRepo) Create(ctx context.Context, job *models.Job) error {
	query := `
		INSERT INTO jobs (id, type, resource, status, idempotency_key, total_records,
			processed_count, successful_count, failed_count, file_path,
			mode, template, print_profile, export_type, story_ids, progress, artifacts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	_, err := r.db.ExecContext(ctx, query,
		job.ID, job.Type, job.Resource, job.Status, nullString(job.IdempotencyKey),
		job.TotalRecords, job.ProcessedCount, job.SuccessfulCount, job.FailedCount,
		nullString(job.FilePath), nullString(string(job.Mode)), exportOption(job, job.Template.String()),
		exportOption(job, job.PrintProfile.String()), nullString(job.ExportType), textArray(job.StoryIDs),
		job.Progress, textArray(job.Artifacts), job.CreatedAt,
	)
	return err
}

// Update updates job status, counters, progress and artifacts
func (r *jobRepo) Update(ctx context.Context, job *models.Job) error {
	query := `
		UPDATE jobs SET
			status = $1, total_records = $2, processed_count = $3, successful_count = $4,
			failed_count = $5, duration_ms = $6, rows_per_sec = $7, progress = $8,
			artifacts = $9, error_message = $10, started_at = $11, completed_at = $12
		WHERE id = $13
	`
	_, err := r.db.ExecContext(ctx, query,
		job.Status, job.TotalRecords, job.ProcessedCount, job.SuccessfulCount,
		job.FailedCount, job.DurationMs, job.RowsPerSec, job.Progress,
		textArray(job.Artifacts), nullString(job.ErrorMessage), job.StartedAt, job.CompletedAt, job.ID,
	)
	return err
}

// UpdateProgress records export progress without touching other columns
func (r *jobRepo) UpdateProgress(ctx context.Context, jobID string, progress int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE jobs SET progress = $1 WHERE id = $2`, progress, jobID)
	return err
}

// GetByID retrieves a job by ID
func (r *jobRepo) GetByID(ctx context.Context, id string) (*models.Job, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	return scanJob(row)
}

// GetByIdempotencyKey retrieves a job by idempotency key
func (r *jobRepo) GetByIdempotencyKey(ctx context.Context, key string) (*models.Job, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE idempotency_key = $1`, key)
	return scanJob(row)
}

// GetPendingJobs retrieves all pending jobs
func (r *jobRepo) GetPendingJobs(ctx context.Context) ([]*models.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM jobs WHERE status = 'pending'
		ORDER BY created_at
		FOR UPDATE SKIP LOCKED
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil || job == nil {
			continue
		}
		jobs = append(jobs, job)
	}

	return jobs, rows.Err()
}

// MarkJobAsProcessing atomically marks a pending job as processing
func (r *jobRepo) MarkJobAsProcessing(ctx context.Context, jobID string) (bool, error) {
	query := `
		UPDATE jobs SET status = 'processing', started_at = $1
		WHERE id = $2 AND status = 'pending'
	`
	result, err := r.db.ExecContext(ctx, query, time.Now(), jobID)
	if err != nil {
		return false, err
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// CountByStatus returns the number of jobs per status
func (r *jobRepo) CountByStatus(ctx context.Context) (map[models.JobStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.JobStatus]int)
	for rows.Next() {
		var status models.JobStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// AddError adds a validation error to the job
func (r *jobRepo) AddError(ctx context.Context, jobID string, err *models.ValidationError) error {
	query := `INSERT INTO job_errors (job_id, line_number, field, message, value) VALUES ($1, $2, $3, $4, $5)`
	_, dbErr := r.db.ExecContext(ctx, query, jobID, err.Line, err.Field, err.Message, errorValue(err.Value))
	return dbErr
}

// AddErrors adds multiple validation errors using the COPY protocol
func (r *jobRepo) AddErrors(ctx context.Context, jobID string, errors []models.ValidationError) error {
	if len(errors) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("job_errors",
		"job_id", "line_number", "field", "message", "value",
	))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range errors {
		if _, err := stmt.ExecContext(ctx, jobID, e.Line, e.Field, e.Message, errorValue(e.Value)); err != nil {
			return err
		}
	}

	// Flush the COPY buffer
	if _, err := stmt.ExecContext(ctx); err != nil {
		return err
	}

	return tx.Commit()
}

// GetErrors retrieves validation errors for a job
func (r *jobRepo) GetErrors(ctx context.Context, jobID string, limit int) ([]models.ValidationError, error) {
	query := `SELECT line_number, field, message, value FROM job_errors WHERE job_id = $1 ORDER BY line_number, id`
	args := []interface{}{jobID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var errors []models.ValidationError
	for rows.Next() {
		var e models.ValidationError
		var field, value sql.NullString
		if err := rows.Scan(&e.Line, &field, &e.Message, &value); err != nil {
			continue
		}
		e.Field = field.String
		if value.Valid && value.String != "" {
			e.Value = value.String
		}
		errors = append(errors, e)
	}

	return errors, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*models.Job, error) {
	var job models.Job
	var idempotencyKey, filePath, mode, template, printProfile, exportType, errorMessage sql.NullString
	var startedAt, completedAt sql.NullTime

	err := row.Scan(
		&job.ID, &job.Type, &job.Resource, &job.Status, &idempotencyKey,
		&job.TotalRecords, &job.ProcessedCount, &job.SuccessfulCount, &job.FailedCount,
		&job.DurationMs, &job.RowsPerSec, &filePath,
		&mode, &template, &printProfile, &exportType, pq.Array(&job.StoryIDs), &job.Progress,
		pq.Array(&job.Artifacts), &errorMessage, &job.CreatedAt, &startedAt, &completedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	job.IdempotencyKey = idempotencyKey.String
	job.FilePath = filePath.String
	job.Mode = models.ExportMode(mode.String)
	job.ExportType = exportType.String
	job.ErrorMessage = errorMessage.String
	if job.Template, err = templates.ParseTemplateID(template.String); err != nil {
		return nil, fmt.Errorf("job %s: %w", job.ID, err)
	}
	if job.PrintProfile, err = templates.ParsePrintProfileID(printProfile.String); err != nil {
		return nil, fmt.Errorf("job %s: %w", job.ID, err)
	}
	if startedAt.Valid {
		job.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		job.CompletedAt = &completedAt.Time
	}

	return &job, nil
}

// exportOption stores rendering options only on export jobs
func exportOption(job *models.Job, value string) sql.NullString {
	if job.Type != models.JobTypeExport {
		return sql.NullString{}
	}
	return nullString(value)
}

func errorValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	}
	return fmt.Sprint(v)
}
