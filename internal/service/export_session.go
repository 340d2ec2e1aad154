package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/pixel-tales-export-api/internal/models"
	"github.com/pixel-tales-export-api/internal/render"
	"github.com/pixel-tales-export-api/internal/templates"
	"github.com/rs/zerolog"
)

// DocumentAssembler renders stories into documents
type DocumentAssembler interface {
	ExportStory(ctx context.Context, story *models.Story, opts render.Options) (*render.Artifact, error)
	ExportCollection(ctx context.Context, stories []*models.Story, fileName string, opts render.Options) (*render.Artifact, error)
}

// ArtifactSink receives each finished document as soon as it is rendered
type ArtifactSink interface {
	Save(ctx context.Context, artifact *render.Artifact) error
}

// ArtifactSinkFunc adapts a function to ArtifactSink
type ArtifactSinkFunc func(ctx context.Context, artifact *render.Artifact) error

func (f ArtifactSinkFunc) Save(ctx context.Context, artifact *render.Artifact) error {
	return f(ctx, artifact)
}

// SessionSnapshot is a point-in-time view of a session for polling
type SessionSnapshot struct {
	Progress int               `json:"progress"`
	InFlight bool              `json:"in_flight"`
	Closed   bool              `json:"closed"`
	Selected int               `json:"selected"`
	Mode     models.ExportMode `json:"mode"`
}

// ExportSession tracks a story selection and drives one export run over it.
// It is safe for concurrent use; the render itself runs on the goroutine
// that calls Begin.
type ExportSession struct {
	mu sync.Mutex

	library    []*models.Story
	assembler  DocumentAssembler
	sink       ArtifactSink
	onProgress func(int)
	log        zerolog.Logger

	selected   map[string]bool
	mode       models.ExportMode
	opts       render.Options
	exportType string
	progress   int
	inFlight   bool
	closed     bool
}

// NewExportSession creates a session over library, which must already be in
// library order. Nothing is selected initially and the mode is individual.
func NewExportSession(library []*models.Story, assembler DocumentAssembler, sink ArtifactSink, log zerolog.Logger) *ExportSession {
	return &ExportSession{
		library:   library,
		assembler: assembler,
		sink:      sink,
		log:       log.With().Str("component", "export_session").Logger(),
		selected:  make(map[string]bool),
		mode:      models.ExportModeIndividual,
	}
}

// OnProgress registers a callback invoked with each new progress value
func (s *ExportSession) OnProgress(fn func(progress int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onProgress = fn
}

// Toggle flips the selection of one story. Unknown IDs are ignored.
func (s *ExportSession) Toggle(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.inLibrary(id) {
		return
	}
	if s.selected[id] {
		delete(s.selected, id)
		return
	}
	s.selected[id] = true
}

// ToggleAll selects every story unless all are already selected, in which
// case it clears the selection.
func (s *ExportSession) ToggleAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.selected) == len(s.library) {
		s.selected = make(map[string]bool)
		return
	}
	for _, story := range s.library {
		s.selected[story.ID] = true
	}
}

// SetMode switches between individual and combined export
func (s *ExportSession) SetMode(mode models.ExportMode) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if mode != models.ExportModeCombined {
		mode = models.ExportModeIndividual
	}
	s.mode = mode
}

// SetExportType chooses the default name of a combined document
func (s *ExportSession) SetExportType(exportType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exportType = exportType
}

// SetTemplate changes the template for the next export
func (s *ExportSession) SetTemplate(id templates.TemplateID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inFlight {
		return ErrExportInFlight
	}
	s.opts.Template = id
	return nil
}

// SetPrintProfile changes the print profile for the next export
func (s *ExportSession) SetPrintProfile(id templates.PrintProfileID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inFlight {
		return ErrExportInFlight
	}
	s.opts.PrintProfile = id
	return nil
}

// Selected lists the selected story IDs in library order
func (s *ExportSession) Selected() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.selected))
	for _, story := range s.library {
		if s.selected[story.ID] {
			ids = append(ids, story.ID)
		}
	}
	return ids
}

// Snapshot returns the current state for polling
func (s *ExportSession) Snapshot() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return SessionSnapshot{
		Progress: s.progress,
		InFlight: s.inFlight,
		Closed:   s.closed,
		Selected: len(s.selected),
		Mode:     s.mode,
	}
}

// Begin renders the selected stories and hands every document to the sink.
// On success the selection is cleared and the session closes. On failure
// progress resets to zero and the selection is kept for a retry.
func (s *ExportSession) Begin(ctx context.Context) error {
	s.mu.Lock()
	if len(s.selected) == 0 {
		s.mu.Unlock()
		s.log.Warn().Msg("Export requested with no stories selected")
		return ErrNoStoriesSelected
	}
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.inFlight {
		s.mu.Unlock()
		return ErrExportInFlight
	}

	s.inFlight = true
	s.progress = 0
	stories := make([]*models.Story, 0, len(s.selected))
	for _, story := range s.library {
		if s.selected[story.ID] {
			stories = append(stories, story)
		}
	}
	mode, opts, exportType := s.mode, s.opts, s.exportType
	s.mu.Unlock()

	log := s.log.With().
		Str("mode", string(mode)).
		Int("stories", len(stories)).
		Str("template", opts.Template.String()).
		Str("print_profile", opts.PrintProfile.String()).
		Logger()
	log.Info().Msg("Export started")

	var err error
	if mode == models.ExportModeCombined {
		err = s.runCombined(ctx, stories, exportType, opts)
	} else {
		err = s.runIndividual(ctx, stories, opts)
	}

	s.mu.Lock()
	s.inFlight = false
	if err != nil {
		s.progress = 0
	} else {
		s.selected = make(map[string]bool)
		s.closed = true
	}
	s.mu.Unlock()

	if err != nil {
		s.reportProgress(0)
		log.Error().Err(err).Msg("Export failed")
		if errors.Is(err, ErrExportFailed) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrExportFailed, err)
	}

	log.Info().Msg("Export finished")
	return nil
}

func (s *ExportSession) runIndividual(ctx context.Context, stories []*models.Story, opts render.Options) error {
	n := len(stories)
	for i, story := range stories {
		artifact, err := s.assembler.ExportStory(ctx, story, opts)
		if err != nil {
			return fmt.Errorf("story %s: %w", story.ID, err)
		}
		if err := s.sink.Save(ctx, artifact); err != nil {
			return fmt.Errorf("save %s: %w", artifact.FileName, err)
		}
		s.setProgress(int(math.Round(float64(i+1) / float64(n) * 100)))
	}
	return nil
}

// runCombined reports no intermediate progress; the single document is the
// only unit of work.
func (s *ExportSession) runCombined(ctx context.Context, stories []*models.Story, exportType string, opts render.Options) error {
	artifact, err := s.assembler.ExportCollection(ctx, stories, render.CollectionBaseName(exportType), opts)
	if err != nil {
		return err
	}
	if err := s.sink.Save(ctx, artifact); err != nil {
		return fmt.Errorf("save %s: %w", artifact.FileName, err)
	}
	s.setProgress(100)
	return nil
}

func (s *ExportSession) setProgress(p int) {
	s.mu.Lock()
	s.progress = p
	s.mu.Unlock()
	s.reportProgress(p)
}

func (s *ExportSession) reportProgress(p int) {
	s.mu.Lock()
	fn := s.onProgress
	s.mu.Unlock()
	if fn != nil {
		fn(p)
	}
}

func (s *ExportSession) inLibrary(id string) bool {
	for _, story := range s.library {
		if story.ID == id {
			return true
		}
	}
	return false
}
