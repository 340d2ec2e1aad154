package service_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pixel-tales-export-api/internal/models"
	"github.com/pixel-tales-export-api/internal/service"
	"github.com/pixel-tales-export-api/internal/storage"
	"github.com/pixel-tales-export-api/internal/templates"
	"github.com/rs/zerolog"
)

const (
	dragonID = "0b6f7a2e-8c59-4f0e-9d0b-6a3c1f2e4d51"
	bituinID = "1c7e8b3f-9d6a-4a1f-8e1c-7b4d2a3f5e62"
	picnicID = "2d8f9c4a-ae7b-4b2a-9f2d-8c5e3b4a6f73"
	unusedID = "5abc2f7d-d1ae-4e5d-825a-bf8b6e7d9ca6"
)

func exportLibrary() []*models.Story {
	base := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	return []*models.Story{
		{ID: dragonID, Title: "The Dragon's Tale", Author: "Ada", CreatedAt: base,
			Pages: []models.Page{{Text: "A dragon woke up."}, {Text: "It was hungry."}}},
		{ID: bituinID, Title: "Ang Munting Bituin", Language: "tl", CreatedAt: base.Add(24 * time.Hour),
			Pages: []models.Page{{Text: "Kumikislap ang bituin."}}},
		{ID: picnicID, Title: "Robot Picnic", CreatedAt: base.Add(72 * time.Hour)},
	}
}

func TestCreateExportJob_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  models.ExportRequest
		want error
	}{
		{"no stories", models.ExportRequest{}, service.ErrNoStoriesSelected},
		{"only blanks", models.ExportRequest{StoryIDs: []string{" "}}, service.ErrInvalidRequest},
		{"not a uuid", models.ExportRequest{StoryIDs: []string{"dragon"}}, service.ErrInvalidRequest},
		{"bad mode", models.ExportRequest{StoryIDs: []string{dragonID}, Mode: "zip"}, service.ErrInvalidRequest},
		{"overlong export type", models.ExportRequest{StoryIDs: []string{dragonID}, ExportType: strings.Repeat("x", 21)}, service.ErrInvalidRequest},
		{"unknown story", models.ExportRequest{StoryIDs: []string{dragonID, unusedID}}, service.ErrStoryNotFound},
		{"too many", models.ExportRequest{StoryIDs: []string{
			"00000000-0000-0000-0000-000000000001", "00000000-0000-0000-0000-000000000002",
			"00000000-0000-0000-0000-000000000003", "00000000-0000-0000-0000-000000000004",
			"00000000-0000-0000-0000-000000000005", "00000000-0000-0000-0000-000000000006",
		}}, service.ErrInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHarness(t, exportLibrary()...)
			job, err := h.services.Export.CreateExportJob(context.Background(), &tt.req)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, err)
			}
			if job != nil {
				t.Error("No job should be returned")
			}
			if len(h.jobRepo.Jobs) != 0 {
				t.Error("No job should be stored")
			}
		})
	}
}

func TestCreateExportJob_DefaultsAndDedupe(t *testing.T) {
	h := newTestHarness(t, exportLibrary()...)

	job, err := h.services.Export.CreateExportJob(context.Background(), &models.ExportRequest{
		StoryIDs:       []string{dragonID, bituinID, dragonID},
		IdempotencyKey: "export-1",
	})
	if err != nil {
		t.Fatalf("CreateExportJob failed: %v", err)
	}

	if job.Type != models.JobTypeExport || job.Status != models.JobStatusPending {
		t.Errorf("unexpected job %+v", job)
	}
	if job.Mode != models.ExportModeIndividual {
		t.Errorf("mode should default to individual, got %q", job.Mode)
	}
	if job.Template != templates.Classic || job.PrintProfile != templates.Screen {
		t.Errorf("defaults not applied: %v/%v", job.Template, job.PrintProfile)
	}
	if len(job.StoryIDs) != 2 || job.TotalRecords != 2 {
		t.Errorf("duplicates should collapse, got %v", job.StoryIDs)
	}
	if stored, _ := h.jobRepo.GetByIdempotencyKey(context.Background(), "export-1"); stored == nil {
		t.Error("job should be stored with its idempotency key")
	}
}

func TestProcessExport_Individual(t *testing.T) {
	h := newTestHarness(t, exportLibrary()...)
	ctx := context.Background()

	job, err := h.services.Export.CreateExportJob(ctx, &models.ExportRequest{
		StoryIDs:     []string{picnicID, dragonID},
		Template:     templates.Children,
		PrintProfile: templates.Print,
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := h.services.Export.ProcessExport(ctx, job); err != nil {
		t.Fatalf("ProcessExport failed: %v", err)
	}

	if job.Status != models.JobStatusCompleted || job.Progress != 100 {
		t.Errorf("Expected completed at 100%%, got %s at %d", job.Status, job.Progress)
	}
	if job.SuccessfulCount != 2 || job.CompletedAt == nil {
		t.Errorf("unexpected counters %+v", job)
	}

	// library order, not request order
	wantNames := []string{"the_dragon_s_tale.pdf", "robot_picnic.pdf"}
	if len(job.Artifacts) != len(wantNames) {
		t.Fatalf("Expected %d artifacts, got %v", len(wantNames), job.Artifacts)
	}
	for i, key := range job.Artifacts {
		if key != storage.ArtifactKey(job.ID, wantNames[i]) {
			t.Errorf("artifact %d = %q, want %q", i, key, wantNames[i])
		}
	}

	if got := h.jobRepo.Progress(job.ID); len(got) != 2 || got[0] != 50 || got[1] != 100 {
		t.Errorf("progress updates = %v, want [50 100]", got)
	}

	data, err := h.services.Export.GetArtifact(ctx, job.ID, "robot_picnic.pdf")
	if err != nil {
		t.Fatalf("GetArtifact failed: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Error("artifact should be a PDF")
	}

	if _, err := h.services.Export.GetArtifact(ctx, job.ID, "other.pdf"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("unlisted artifact: got %v", err)
	}
	if _, err := h.services.Export.GetArtifact(ctx, "missing-job", "robot_picnic.pdf"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("unknown job: got %v", err)
	}

	resp, err := h.services.Job.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Downloads) != 2 || resp.Downloads[0].URL != "/v1/exports/"+job.ID+"/artifacts/the_dragon_s_tale.pdf" {
		t.Errorf("unexpected downloads %+v", resp.Downloads)
	}
	if resp.ErrorReport != "" {
		t.Error("export jobs have no error report")
	}
}

func TestProcessExport_Combined(t *testing.T) {
	h := newTestHarness(t, exportLibrary()...)
	ctx := context.Background()

	job, err := h.services.Export.CreateExportJob(ctx, &models.ExportRequest{
		StoryIDs:   []string{dragonID, bituinID, picnicID},
		Mode:       models.ExportModeCombined,
		ExportType: "drafts",
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := h.services.Export.ProcessExport(ctx, job); err != nil {
		t.Fatalf("ProcessExport failed: %v", err)
	}

	if len(job.Artifacts) != 1 || path.Base(job.Artifacts[0]) != "draft_stories_collection.pdf" {
		t.Errorf("unexpected artifacts %v", job.Artifacts)
	}
	if got := h.jobRepo.Progress(job.ID); len(got) != 1 || got[0] != 100 {
		t.Errorf("progress updates = %v, want [100]", got)
	}
}

func TestProcessExport_CombinedUnknownExportType(t *testing.T) {
	h := newTestHarness(t, exportLibrary()...)
	ctx := context.Background()

	job, err := h.services.Export.CreateExportJob(ctx, &models.ExportRequest{
		StoryIDs:   []string{dragonID, picnicID},
		Mode:       models.ExportModeCombined,
		ExportType: "trash",
	})
	if err != nil {
		t.Fatalf("unknown export types should be accepted, got %v", err)
	}
	if err := h.services.Export.ProcessExport(ctx, job); err != nil {
		t.Fatalf("ProcessExport failed: %v", err)
	}

	if len(job.Artifacts) != 1 || path.Base(job.Artifacts[0]) != "stories_collection.pdf" {
		t.Errorf("unexpected artifacts %v", job.Artifacts)
	}
}

func TestProcessExport_DuplicateTitlesGetDistinctNames(t *testing.T) {
	lib := exportLibrary()
	lib[1].Title = lib[0].Title
	h := newTestHarness(t, lib...)
	ctx := context.Background()

	job, err := h.services.Export.CreateExportJob(ctx, &models.ExportRequest{StoryIDs: []string{dragonID, bituinID}})
	if err != nil {
		t.Fatal(err)
	}
	if err := h.services.Export.ProcessExport(ctx, job); err != nil {
		t.Fatal(err)
	}

	if len(job.Artifacts) != 2 || path.Base(job.Artifacts[1]) != "the_dragon_s_tale_2.pdf" {
		t.Errorf("unexpected artifacts %v", job.Artifacts)
	}
}

// flakyStore fails every Put after the first n
type flakyStore struct {
	storage.ArtifactStore
	mu      sync.Mutex
	allowed int
	deleted []string
}

func (f *flakyStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	f.mu.Lock()
	if f.allowed == 0 {
		f.mu.Unlock()
		return errors.New("bucket unavailable")
	}
	f.allowed--
	f.mu.Unlock()
	return f.ArtifactStore.Put(ctx, key, data, contentType)
}

func (f *flakyStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	f.deleted = append(f.deleted, key)
	f.mu.Unlock()
	return f.ArtifactStore.Delete(ctx, key)
}

func TestProcessExport_FailureRemovesPartialArtifacts(t *testing.T) {
	dir := t.TempDir()
	local, err := storage.NewLocalStore(dir, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	store := &flakyStore{ArtifactStore: local, allowed: 1}
	h := newTestHarnessWithStore(t, store, dir, exportLibrary()...)
	ctx := context.Background()

	job, err := h.services.Export.CreateExportJob(ctx, &models.ExportRequest{StoryIDs: []string{dragonID, bituinID, picnicID}})
	if err != nil {
		t.Fatal(err)
	}

	err = h.services.Export.ProcessExport(ctx, job)
	if !errors.Is(err, service.ErrExportFailed) {
		t.Fatalf("Expected ErrExportFailed, got %v", err)
	}

	if job.Status != models.JobStatusFailed || job.Progress != 0 || job.ErrorMessage == "" {
		t.Errorf("unexpected failed job state %+v", job)
	}
	if len(job.Artifacts) != 0 {
		t.Errorf("failed job should list no artifacts, got %v", job.Artifacts)
	}

	first := storage.ArtifactKey(job.ID, "the_dragon_s_tale.pdf")
	if len(store.deleted) != 1 || store.deleted[0] != first {
		t.Errorf("deleted = %v, want [%s]", store.deleted, first)
	}
	if _, err := local.Get(ctx, first); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("partial artifact should be gone, got %v", err)
	}

	progress := h.jobRepo.Progress(job.ID)
	if len(progress) == 0 || progress[len(progress)-1] != 0 {
		t.Errorf("progress should end at 0, got %v", progress)
	}

	if _, err := h.services.Export.GetArtifact(ctx, job.ID, "the_dragon_s_tale.pdf"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("failed job artifacts should not be served, got %v", err)
	}
}

func TestProcessExport_StoriesDeletedBeforeRun(t *testing.T) {
	h := newTestHarness(t, exportLibrary()...)
	ctx := context.Background()

	job, err := h.services.Export.CreateExportJob(ctx, &models.ExportRequest{StoryIDs: []string{dragonID}})
	if err != nil {
		t.Fatal(err)
	}
	delete(h.storyRepo.Stories, dragonID)

	if err := h.services.Export.ProcessExport(ctx, job); !errors.Is(err, service.ErrNoStoriesSelected) {
		t.Fatalf("Expected ErrNoStoriesSelected, got %v", err)
	}
	if job.Status != models.JobStatusFailed {
		t.Errorf("Expected failed, got %s", job.Status)
	}
}

func TestRenderStory(t *testing.T) {
	h := newTestHarness(t, exportLibrary()...)
	ctx := context.Background()

	artifact, err := h.services.Export.RenderStory(ctx, dragonID, templates.Modern, templates.Professional)
	if err != nil {
		t.Fatalf("RenderStory failed: %v", err)
	}
	if artifact.FileName != "the_dragon_s_tale.pdf" || artifact.Pages != 4 {
		t.Errorf("unexpected artifact %s with %d pages", artifact.FileName, artifact.Pages)
	}

	if _, err := h.services.Export.RenderStory(ctx, unusedID, templates.TemplateID{}, templates.PrintProfileID{}); !errors.Is(err, service.ErrStoryNotFound) {
		t.Errorf("Expected ErrStoryNotFound, got %v", err)
	}
}

func TestConfiguredDefaults_ApplyToUnsetOptions(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewLocalStore(dir, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	cfg := testConfig(dir)
	cfg.Export.DefaultTemplate = "elegant"
	cfg.Export.DefaultPrintProfile = "professional"
	h := newTestHarnessWithConfig(t, store, cfg, exportLibrary()...)
	ctx := context.Background()

	tpl, _ := templates.ParseTemplateID("")
	profile, _ := templates.ParsePrintProfileID("")
	unset, err := h.services.Export.RenderStory(ctx, dragonID, tpl, profile)
	if err != nil {
		t.Fatalf("RenderStory failed: %v", err)
	}
	explicit, err := h.services.Export.RenderStory(ctx, dragonID, templates.Elegant, templates.Professional)
	if err != nil {
		t.Fatalf("RenderStory failed: %v", err)
	}
	baseline, err := h.services.Export.RenderStory(ctx, dragonID, templates.Classic, templates.Screen)
	if err != nil {
		t.Fatalf("RenderStory failed: %v", err)
	}
	if !bytes.Equal(unset.Data, explicit.Data) {
		t.Error("unset options should render with the configured elegant/professional defaults")
	}
	if bytes.Equal(unset.Data, baseline.Data) {
		t.Error("unset options should not render with classic/screen")
	}

	var req models.ExportRequest
	if err := json.Unmarshal([]byte(`{"story_ids":["`+dragonID+`"],"template":"","print_profile":""}`), &req); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	job, err := h.services.Export.CreateExportJob(ctx, &req)
	if err != nil {
		t.Fatalf("CreateExportJob failed: %v", err)
	}
	if job.Template != templates.Elegant || job.PrintProfile != templates.Professional {
		t.Errorf("Expected elegant/professional, got %s/%s", job.Template, job.PrintProfile)
	}
}

func TestJobProcessor_RunsPendingExport(t *testing.T) {
	h := newTestHarness(t, exportLibrary()...)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	job, err := h.services.Export.CreateExportJob(ctx, &models.ExportRequest{StoryIDs: []string{bituinID}})
	if err != nil {
		t.Fatal(err)
	}

	go h.services.Job.StartProcessor(ctx)
	defer h.services.Job.StopProcessor()

	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := h.services.Job.GetJob(ctx, job.ID)
		if err != nil {
			t.Fatal(err)
		}
		if resp.Status == models.JobStatusCompleted {
			if len(resp.Downloads) != 1 || resp.Downloads[0].Name != "ang_munting_bituin.pdf" {
				t.Errorf("unexpected downloads %+v", resp.Downloads)
			}
			return
		}
		if resp.Status == models.JobStatusFailed {
			t.Fatalf("export failed: %s", resp.ErrorMessage)
		}
		if time.Now().After(deadline) {
			t.Fatalf("job still %s after 5s", resp.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
