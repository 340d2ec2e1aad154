package service_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/pixel-tales-export-api/internal/models"
	"github.com/pixel-tales-export-api/internal/render"
	"github.com/pixel-tales-export-api/internal/service"
	"github.com/pixel-tales-export-api/internal/templates"
	"github.com/rs/zerolog"
)

// fakeAssembler records what it was asked to render
type fakeAssembler struct {
	mu          sync.Mutex
	stories     []string
	collections [][]string
	names       []string
	opts        []render.Options
	failOn      string
	block       chan struct{}
}

func (f *fakeAssembler) ExportStory(ctx context.Context, story *models.Story, opts render.Options) (*render.Artifact, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if story.ID == f.failOn {
		return nil, fmt.Errorf("%w: boom", render.ErrExportFailed)
	}
	f.stories = append(f.stories, story.ID)
	f.opts = append(f.opts, opts)
	return &render.Artifact{
		FileName: render.StoryFileName(story.Title),
		Data:     []byte("%PDF-" + story.ID),
		StoryIDs: []string{story.ID},
	}, nil
}

func (f *fakeAssembler) ExportCollection(ctx context.Context, stories []*models.Story, fileName string, opts render.Options) (*render.Artifact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, len(stories))
	for i, s := range stories {
		ids[i] = s.ID
		if s.ID == f.failOn {
			return nil, errors.New("collection boom")
		}
	}
	f.collections = append(f.collections, ids)
	f.names = append(f.names, fileName)
	f.opts = append(f.opts, opts)
	return &render.Artifact{FileName: render.CollectionFileName(fileName), Data: []byte("%PDF-all"), StoryIDs: ids}, nil
}

type recordingSink struct {
	mu    sync.Mutex
	names []string
	err   error
}

func (r *recordingSink) Save(ctx context.Context, a *render.Artifact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.names = append(r.names, a.FileName)
	return nil
}

func library(n int) []*models.Story {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]*models.Story, n)
	for i := range out {
		out[i] = &models.Story{
			ID:        fmt.Sprintf("story-%d", i+1),
			Title:     fmt.Sprintf("Story %d", i+1),
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
			Pages:     []models.Page{{Text: "Once upon a time"}},
		}
	}
	return out
}

func newSession(lib []*models.Story, a *fakeAssembler, sink service.ArtifactSink) (*service.ExportSession, *[]int) {
	s := service.NewExportSession(lib, a, sink, zerolog.Nop())
	var progress []int
	var mu sync.Mutex
	s.OnProgress(func(p int) {
		mu.Lock()
		progress = append(progress, p)
		mu.Unlock()
	})
	return s, &progress
}

func TestExportSession_NothingSelected(t *testing.T) {
	a := &fakeAssembler{}
	s, progress := newSession(library(2), a, &recordingSink{})

	err := s.Begin(context.Background())
	if !errors.Is(err, service.ErrNoStoriesSelected) {
		t.Fatalf("Expected ErrNoStoriesSelected, got %v", err)
	}
	if len(a.stories) != 0 || len(*progress) != 0 {
		t.Error("Nothing should render or report progress")
	}
	if s.Snapshot().Closed {
		t.Error("Session should stay open")
	}
}

func TestExportSession_ToggleAndSelectionOrder(t *testing.T) {
	s, _ := newSession(library(3), &fakeAssembler{}, &recordingSink{})

	s.Toggle("story-3")
	s.Toggle("story-1")
	s.Toggle("unknown")
	if got, want := s.Selected(), []string{"story-1", "story-3"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Selected() = %v, want %v", got, want)
	}

	s.Toggle("story-3")
	if got := s.Selected(); !reflect.DeepEqual(got, []string{"story-1"}) {
		t.Errorf("Toggle twice should deselect, got %v", got)
	}

	s.ToggleAll()
	if got := len(s.Selected()); got != 3 {
		t.Errorf("ToggleAll should select all 3, got %d", got)
	}
	s.ToggleAll()
	if got := len(s.Selected()); got != 0 {
		t.Errorf("ToggleAll on full selection should clear, got %d", got)
	}
}

func TestExportSession_IndividualProgress(t *testing.T) {
	a := &fakeAssembler{}
	sink := &recordingSink{}
	s, progress := newSession(library(3), a, sink)
	s.ToggleAll()
	if err := s.SetTemplate(templates.Elegant); err != nil {
		t.Fatal(err)
	}
	if err := s.SetPrintProfile(templates.Professional); err != nil {
		t.Fatal(err)
	}

	if err := s.Begin(context.Background()); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}

	if want := []int{33, 67, 100}; !reflect.DeepEqual(*progress, want) {
		t.Errorf("progress = %v, want %v", *progress, want)
	}
	if want := []string{"story-1", "story-2", "story-3"}; !reflect.DeepEqual(a.stories, want) {
		t.Errorf("render order = %v, want %v", a.stories, want)
	}
	if want := []string{"story_1.pdf", "story_2.pdf", "story_3.pdf"}; !reflect.DeepEqual(sink.names, want) {
		t.Errorf("saved = %v, want %v", sink.names, want)
	}
	for _, o := range a.opts {
		if o.Template != templates.Elegant || o.PrintProfile != templates.Professional {
			t.Errorf("unexpected options %v/%v", o.Template, o.PrintProfile)
		}
	}

	snap := s.Snapshot()
	if !snap.Closed || snap.InFlight || snap.Selected != 0 || snap.Progress != 100 {
		t.Errorf("unexpected snapshot after success: %+v", snap)
	}

	if err := s.Begin(context.Background()); err == nil {
		t.Error("A closed session should not export again")
	}
}

func TestExportSession_Combined(t *testing.T) {
	a := &fakeAssembler{}
	sink := &recordingSink{}
	s, progress := newSession(library(3), a, sink)
	s.Toggle("story-2")
	s.Toggle("story-1")
	s.SetMode(models.ExportModeCombined)
	s.SetExportType("offline")

	if err := s.Begin(context.Background()); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}

	if len(a.collections) != 1 || !reflect.DeepEqual(a.collections[0], []string{"story-1", "story-2"}) {
		t.Errorf("collections = %v", a.collections)
	}
	if a.names[0] != "offline-stories-collection" {
		t.Errorf("collection name = %q", a.names[0])
	}
	if !reflect.DeepEqual(sink.names, []string{"offline_stories_collection.pdf"}) {
		t.Errorf("saved = %v", sink.names)
	}
	if !reflect.DeepEqual(*progress, []int{100}) {
		t.Errorf("progress = %v, want [100]", *progress)
	}
}

func TestExportSession_UnknownModeIsIndividual(t *testing.T) {
	a := &fakeAssembler{}
	s, _ := newSession(library(2), a, &recordingSink{})
	s.ToggleAll()
	s.SetMode("zip")

	if err := s.Begin(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(a.stories) != 2 || len(a.collections) != 0 {
		t.Errorf("expected two individual renders, got %d stories and %d collections", len(a.stories), len(a.collections))
	}
}

func TestExportSession_FailureKeepsSelection(t *testing.T) {
	tests := []struct {
		name string
		mode models.ExportMode
		a    *fakeAssembler
		sink *recordingSink
	}{
		{"individual render error", models.ExportModeIndividual, &fakeAssembler{failOn: "story-2"}, &recordingSink{}},
		{"combined render error", models.ExportModeCombined, &fakeAssembler{failOn: "story-2"}, &recordingSink{}},
		{"sink error", models.ExportModeIndividual, &fakeAssembler{}, &recordingSink{err: errors.New("disk full")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, progress := newSession(library(3), tt.a, tt.sink)
			s.ToggleAll()
			s.SetMode(tt.mode)

			err := s.Begin(context.Background())
			if !errors.Is(err, service.ErrExportFailed) {
				t.Fatalf("Expected ErrExportFailed, got %v", err)
			}

			p := *progress
			if len(p) == 0 || p[len(p)-1] != 0 {
				t.Errorf("progress should end at 0, got %v", p)
			}
			snap := s.Snapshot()
			if snap.Closed || snap.InFlight || snap.Progress != 0 || snap.Selected != 3 {
				t.Errorf("unexpected snapshot after failure: %+v", snap)
			}
		})
	}
}

func TestExportSession_RetryAfterFailure(t *testing.T) {
	a := &fakeAssembler{failOn: "story-1"}
	s, _ := newSession(library(1), a, &recordingSink{})
	s.ToggleAll()

	if err := s.Begin(context.Background()); err == nil {
		t.Fatal("first attempt should fail")
	}
	a.failOn = ""
	if err := s.Begin(context.Background()); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
}

func TestExportSession_InFlightGuards(t *testing.T) {
	a := &fakeAssembler{block: make(chan struct{})}
	s, _ := newSession(library(1), a, &recordingSink{})
	s.ToggleAll()

	done := make(chan error, 1)
	go func() { done <- s.Begin(context.Background()) }()

	deadline := time.Now().Add(2 * time.Second)
	for !s.Snapshot().InFlight {
		if time.Now().After(deadline) {
			t.Fatal("export never started")
		}
		time.Sleep(time.Millisecond)
	}

	if err := s.SetTemplate(templates.Modern); !errors.Is(err, service.ErrExportInFlight) {
		t.Errorf("SetTemplate during export: got %v", err)
	}
	if err := s.SetPrintProfile(templates.Print); !errors.Is(err, service.ErrExportInFlight) {
		t.Errorf("SetPrintProfile during export: got %v", err)
	}
	if err := s.Begin(context.Background()); !errors.Is(err, service.ErrExportInFlight) {
		t.Errorf("second Begin during export: got %v", err)
	}

	close(a.block)
	if err := <-done; err != nil {
		t.Fatalf("export failed: %v", err)
	}
}
