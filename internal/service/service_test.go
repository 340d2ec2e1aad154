package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/pixel-tales-export-api/internal/mocks"
	"github.com/pixel-tales-export-api/internal/models"
	"github.com/pixel-tales-export-api/internal/service"
)

func TestJobService_GetImportJob(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	testJob := &models.Job{
		ID:              "test-job-123",
		Type:            models.JobTypeImport,
		Resource:        models.ResourceStories,
		Status:          models.JobStatusCompleted,
		TotalRecords:    1000,
		SuccessfulCount: 950,
		FailedCount:     50,
		DurationMs:      5000,
		RowsPerSec:      200.0,
		CreatedAt:       time.Now(),
	}
	h.jobRepo.Create(ctx, testJob)
	h.jobRepo.AddErrors(ctx, testJob.ID, []models.ValidationError{
		{Line: 10, Field: "id", Message: "invalid UUID format"},
		{Line: 25, Field: "language", Message: "unsupported language"},
	})

	resp, err := h.services.Job.GetJob(ctx, testJob.ID)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if resp == nil {
		t.Fatal("Job should be found")
	}
	if resp.TotalRecords != 1000 || resp.RowsPerSec != 200.0 {
		t.Errorf("metrics not carried over: %+v", resp.Job)
	}
	if len(resp.Errors) != 2 || resp.ErrorCount != 50 {
		t.Errorf("Expected 2 errors and count 50, got %d / %d", len(resp.Errors), resp.ErrorCount)
	}
	if resp.ErrorReport != "/v1/stories/import/test-job-123/errors" {
		t.Errorf("unexpected error report url %q", resp.ErrorReport)
	}
	if len(resp.Downloads) != 0 {
		t.Error("import jobs have no downloads")
	}

	all, err := h.services.Job.GetJobErrors(ctx, testJob.ID)
	if err != nil || len(all) != 2 {
		t.Errorf("GetJobErrors = %d, %v", len(all), err)
	}
}

func TestJobService_GetJobLimitsInlineErrors(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	h.jobRepo.Create(ctx, &models.Job{ID: "noisy", Type: models.JobTypeImport, FailedCount: 150})
	errs := make([]models.ValidationError, 150)
	for i := range errs {
		errs[i] = models.ValidationError{Line: i + 1, Field: "id", Message: "id is required"}
	}
	h.jobRepo.AddErrors(ctx, "noisy", errs)

	resp, _ := h.services.Job.GetJob(ctx, "noisy")
	if len(resp.Errors) != 100 {
		t.Errorf("Expected 100 inline errors, got %d", len(resp.Errors))
	}
}

func TestJobService_GetJobFailedExportHasNoDownloads(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	h.jobRepo.Create(ctx, &models.Job{
		ID:           "export-failed",
		Type:         models.JobTypeExport,
		Status:       models.JobStatusFailed,
		Artifacts:    []string{"exports/export-failed/a.pdf"},
		ErrorMessage: "export failed: boom",
	})

	resp, err := h.services.Job.GetJob(ctx, "export-failed")
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Downloads) != 0 {
		t.Errorf("failed export should expose no downloads, got %+v", resp.Downloads)
	}
	if resp.ErrorMessage != "export failed: boom" {
		t.Errorf("unexpected error message %q", resp.ErrorMessage)
	}
}

func TestJobService_GetJobMissing(t *testing.T) {
	h := newTestHarness(t)
	resp, err := h.services.Job.GetJob(context.Background(), "nope")
	if err != nil || resp != nil {
		t.Errorf("Expected nil, nil; got %v, %v", resp, err)
	}
}

func TestJobService_CountByStatus(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()
	for i, status := range []models.JobStatus{
		models.JobStatusPending, models.JobStatusCompleted, models.JobStatusCompleted, models.JobStatusFailed,
	} {
		h.jobRepo.Create(ctx, &models.Job{ID: fmt.Sprintf("job-%d", i), Status: status})
	}

	counts, err := h.services.Job.CountByStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts[models.JobStatusCompleted] != 2 || counts[models.JobStatusPending] != 1 || counts[models.JobStatusFailed] != 1 {
		t.Errorf("unexpected counts %v", counts)
	}
}

func TestStoryService_ListInLibraryOrder(t *testing.T) {
	h := newTestHarness(t, exportLibrary()...)
	ctx := context.Background()

	list, err := h.services.Story.ListStories(ctx, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{dragonID, bituinID, picnicID}
	if len(list) != len(want) {
		t.Fatalf("Expected %d stories, got %d", len(want), len(list))
	}
	for i, s := range list {
		if s.ID != want[i] {
			t.Errorf("position %d: got %s, want %s", i, s.ID, want[i])
		}
	}
	if list[0].PageCount != 2 || list[2].PageCount != 0 {
		t.Errorf("unexpected page counts %d / %d", list[0].PageCount, list[2].PageCount)
	}

	page, _ := h.services.Story.ListStories(ctx, 1, 1)
	if len(page) != 1 || page[0].ID != bituinID {
		t.Errorf("limit/offset: got %+v", page)
	}

	count, _ := h.services.Story.CountStories(ctx)
	if count != 3 {
		t.Errorf("Expected 3 stories, got %d", count)
	}
}

func TestStoryService_GetStory(t *testing.T) {
	h := newTestHarness(t, exportLibrary()...)
	ctx := context.Background()

	story, err := h.services.Story.GetStory(ctx, dragonID)
	if err != nil || story.Title != "The Dragon's Tale" {
		t.Errorf("GetStory = %v, %v", story, err)
	}

	if _, err := h.services.Story.GetStory(ctx, unusedID); !errors.Is(err, service.ErrStoryNotFound) {
		t.Errorf("Expected ErrStoryNotFound, got %v", err)
	}

	h.storyRepo.GetError = errors.New("db down")
	if _, err := h.services.Story.GetStory(ctx, dragonID); err == nil || errors.Is(err, service.ErrStoryNotFound) {
		t.Errorf("repository errors should pass through, got %v", err)
	}
}

func TestMockImportService_CreateAndProcess(t *testing.T) {
	mockImportService := mocks.NewMockImportService()
	ctx := context.Background()

	req := &models.ImportRequest{
		Resource:       models.ResourceStories,
		IdempotencyKey: "test-key-123",
	}

	job, err := mockImportService.CreateImportJob(ctx, req, "/path/to/stories.ndjson")
	if err != nil {
		t.Fatalf("CreateImportJob failed: %v", err)
	}
	if job.Resource != models.ResourceStories {
		t.Errorf("Expected resource 'stories', got '%s'", job.Resource)
	}
	if len(mockImportService.CreatedJobs) != 1 {
		t.Errorf("Expected 1 created job, got %d", len(mockImportService.CreatedJobs))
	}

	if err := mockImportService.ProcessImport(ctx, job); err != nil {
		t.Fatalf("ProcessImport failed: %v", err)
	}
	if job.Status != models.JobStatusCompleted {
		t.Errorf("Expected status Completed, got %s", job.Status)
	}
}

func TestMockJobService_IdempotencyKey(t *testing.T) {
	mockJobService := mocks.NewMockJobService()
	mockJobService.Jobs["existing-job"] = &models.JobResponse{
		Job: models.Job{
			ID:             "existing-job",
			Resource:       models.ResourceStories,
			Status:         models.JobStatusCompleted,
			IdempotencyKey: "idempotent-key-123",
		},
	}

	ctx := context.Background()

	found, err := mockJobService.GetJobByIdempotencyKey(ctx, "idempotent-key-123")
	if err != nil {
		t.Fatalf("GetJobByIdempotencyKey failed: %v", err)
	}
	if found == nil || found.ID != "existing-job" {
		t.Fatalf("Should find job by idempotency key, got %v", found)
	}

	found, _ = mockJobService.GetJobByIdempotencyKey(ctx, "nonexistent")
	if found != nil {
		t.Error("Should not find job with nonexistent key")
	}
}
