package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jung-kurt/gofpdf"
	"github.com/pixel-tales-export-api/internal/models"
	"github.com/pixel-tales-export-api/internal/templates"
	"github.com/rs/zerolog"
)

// ErrExportFailed wraps every fatal assembly error
var ErrExportFailed = errors.New("export failed")

const (
	documentCreator  = "Pixel Tales"
	colorModeKeyword = "color-mode:"
)

// Options selects the presentation of an export. The zero value renders the
// classic template on the screen profile.
type Options struct {
	Template     templates.TemplateID
	PrintProfile templates.PrintProfileID

	// CreationDate is written to the document metadata. When zero it is
	// derived from the story timestamps.
	CreationDate time.Time

	// Random drives randomized ornaments. Nil uses a time-seeded source.
	Random RandomSource
}

// Artifact is a finished document ready for delivery
type Artifact struct {
	FileName string
	Data     []byte
	Pages    int
	StoryIDs []string
}

// ContentType is the MIME type of every artifact.
func (a *Artifact) ContentType() string {
	return "application/pdf"
}

// Assembler builds single-story and combined documents
type Assembler struct {
	images ImageSource
	log    zerolog.Logger
}

// NewAssembler creates an Assembler. A nil image source renders every page
// without illustrations.
func NewAssembler(images ImageSource, log zerolog.Logger) *Assembler {
	return &Assembler{
		images: images,
		log:    log.With().Str("component", "assembler").Logger(),
	}
}

// ExportStory renders cover, title page and one page per story page.
func (a *Assembler) ExportStory(ctx context.Context, story *models.Story, opts Options) (*Artifact, error) {
	if story == nil {
		return nil, fmt.Errorf("%w: no story", ErrExportFailed)
	}

	log := a.log.With().Str("story_id", story.ID).Logger()
	pdf := newDocument(opts, creationDate(opts, story))
	pdf.SetTitle(story.Title, true)
	if story.Author != "" {
		pdf.SetAuthor(story.Author, true)
	}

	c := newComposer(ctx, pdf, opts, a.images, log)

	c.fullCover(story, coverImageName(0))
	c.titlePage(story)
	for i, page := range story.Pages {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrExportFailed, err)
		}
		block := c.storyPage(page, pageImageName(0, i), i+1, len(story.Pages))
		if block.Truncated {
			log.Debug().Int("page", i+1).Msg("Page text truncated to fit")
		}
	}

	artifact, err := finish(pdf, StoryFileName(story.Title))
	if err != nil {
		return nil, err
	}
	artifact.StoryIDs = []string{story.ID}

	log.Info().
		Str("file", artifact.FileName).
		Int("pages", artifact.Pages).
		Str("size", humanize.Bytes(uint64(len(artifact.Data)))).
		Str("template", opts.Template.String()).
		Str("print_profile", opts.PrintProfile.String()).
		Msg("Story exported")

	return artifact, nil
}

// ExportCollection renders a table of contents followed by separator,
// cover, story pages and metadata page for each story in order.
func (a *Assembler) ExportCollection(ctx context.Context, stories []*models.Story, fileName string, opts Options) (*Artifact, error) {
	if len(stories) == 0 {
		return nil, fmt.Errorf("%w: no stories", ErrExportFailed)
	}

	pdf := newDocument(opts, creationDate(opts, stories...))
	pdf.SetTitle(fileName, true)

	c := newComposer(ctx, pdf, opts, a.images, a.log)

	tocPages := c.tableOfContents(stories)
	ids := make([]string, 0, len(stories))

	for si, story := range stories {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrExportFailed, err)
		}
		c.log = a.log.With().Str("story_id", story.ID).Logger()

		c.separator(story, si+1, len(stories))
		c.legacyCover(story, coverImageName(si))
		for i, page := range story.Pages {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrExportFailed, err)
			}
			c.storyPage(page, pageImageName(si, i), i+1, len(story.Pages))
		}
		c.metadataPage(story)
		ids = append(ids, story.ID)
	}

	artifact, err := finish(pdf, CollectionFileName(fileName))
	if err != nil {
		return nil, err
	}
	artifact.StoryIDs = ids

	a.log.Info().
		Str("file", artifact.FileName).
		Int("stories", len(stories)).
		Int("toc_pages", tocPages).
		Int("pages", artifact.Pages).
		Str("size", humanize.Bytes(uint64(len(artifact.Data)))).
		Msg("Collection exported")

	return artifact, nil
}

func newDocument(opts Options, created time.Time) *gofpdf.Fpdf {
	profile := templates.GetPrintProfile(opts.PrintProfile)

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(created)
	pdf.SetModificationDate(created)
	pdf.SetCreator(documentCreator, true)
	pdf.SetKeywords(colorModeKeyword+string(profile.ColorMode), true)
	return pdf
}

func finish(pdf *gofpdf.Fpdf, fileName string) (*Artifact, error) {
	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExportFailed, err)
	}
	pages := pdf.PageNo()

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExportFailed, err)
	}

	return &Artifact{
		FileName: fileName,
		Data:     buf.Bytes(),
		Pages:    pages,
	}, nil
}

// creationDate pins the document timestamp so identical input yields
// identical bytes.
func creationDate(opts Options, stories ...*models.Story) time.Time {
	if !opts.CreationDate.IsZero() {
		return opts.CreationDate.UTC()
	}
	var latest time.Time
	for _, s := range stories {
		if s.LastModified != nil && s.LastModified.After(latest) {
			latest = *s.LastModified
		}
		if s.CreatedAt.After(latest) {
			latest = s.CreatedAt
		}
	}
	if latest.IsZero() {
		return time.Unix(0, 0).UTC()
	}
	return latest.UTC()
}

func coverImageName(story int) string {
	return fmt.Sprintf("cover-%d", story)
}

func pageImageName(story, page int) string {
	return fmt.Sprintf("page-%d-%d", story, page)
}
