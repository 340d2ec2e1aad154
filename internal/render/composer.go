package render

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"github.com/pixel-tales-export-api/internal/models"
	"github.com/pixel-tales-export-api/internal/templates"
	"github.com/rs/zerolog"
)

const (
	bodyFontSize      = 30.0
	bodyLineHeight    = bodyFontSize * 0.5
	footerReserve     = 15.0
	illustrationShare = 0.65
	fullCoverShare    = 0.85
	legacyCoverBox    = 140.0
	tocTitleLimit     = 50
	watermarkText     = "Generated by Pixel Tales - Story Creator"
	metadataDateFmt   = "1/2/2006"
)

// composer renders individual pages into a shared gofpdf document. It is
// owned by a single export call and never used concurrently.
type composer struct {
	ctx     context.Context
	pdf     *gofpdf.Fpdf
	tpl     templates.TemplateConfig
	profile templates.PrintProfile
	images  ImageSource
	rnd     RandomSource
	log     zerolog.Logger
	tr      func(string) string

	margin       float64
	contentWidth float64
}

func newComposer(ctx context.Context, pdf *gofpdf.Fpdf, opts Options, images ImageSource, log zerolog.Logger) *composer {
	profile := templates.GetPrintProfile(opts.PrintProfile)
	rnd := opts.Random
	if rnd == nil {
		rnd = newDefaultRandom()
	}
	return &composer{
		ctx:          ctx,
		pdf:          pdf,
		tpl:          templates.Get(opts.Template),
		profile:      profile,
		images:       images,
		rnd:          rnd,
		log:          log,
		tr:           pdf.UnicodeTranslatorFromDescriptor(""),
		margin:       profile.Margins.Left,
		contentWidth: PageWidth - profile.Margins.Left - profile.Margins.Right,
	}
}

// page starts a new page and renders it inside a scoped graphics state.
func (c *composer) page(render func()) {
	c.pdf.AddPage()
	c.resetState()
	defer c.resetState()
	render()
}

func (c *composer) resetState() {
	c.pdf.SetTextColor(0, 0, 0)
	c.pdf.SetDrawColor(0, 0, 0)
	c.pdf.SetFillColor(0, 0, 0)
	c.pdf.SetLineWidth(defaultLineWidth)
}

func fontStyle(s templates.FontStyle) string {
	switch s {
	case templates.StyleBold:
		return "B"
	case templates.StyleItalic:
		return "I"
	}
	return ""
}

func (c *composer) setFont(f templates.Font, size float64) {
	c.pdf.SetFont(f.Family, fontStyle(f.Style), size)
}

func (c *composer) setTextColor(col templates.Color) {
	c.pdf.SetTextColor(int(col.R), int(col.G), int(col.B))
}

// wrap translates s to the document code page and splits it to width.
func (c *composer) wrap(s string, width float64) []string {
	return WrapText(c.pdf, c.tr(s), width)
}

func (c *composer) text(x, y float64, s string) {
	c.pdf.Text(x, y, c.tr(s))
}

func (c *composer) centered(y float64, s string) {
	c.centeredLine(y, c.tr(s))
}

// centeredLine draws an already translated line centered on the page.
func (c *composer) centeredLine(y float64, line string) {
	w := c.pdf.GetStringWidth(line)
	c.pdf.Text(PageWidth/2-w/2, y, line)
}

// loadImage resolves ref and registers it with the document under name. Any
// failure is logged and reported as false so the caller can fall back.
func (c *composer) loadImage(name, ref string) (*Image, bool) {
	if ref == "" || c.images == nil {
		return nil, false
	}
	img, err := c.images.Load(c.ctx, ref, c.profile.ImageQuality)
	if err != nil {
		c.log.Warn().Err(err).Str("image", name).Msg("Image unavailable, rendering without it")
		return nil, false
	}

	c.pdf.RegisterImageOptionsReader(name, gofpdf.ImageOptions{ImageType: img.Format}, bytes.NewReader(img.Data))
	if !c.pdf.Ok() {
		err := c.pdf.Error()
		c.pdf.ClearError()
		c.log.Warn().Err(err).Str("image", name).Msg("Image rejected by document, rendering without it")
		return nil, false
	}
	return img, true
}

func (c *composer) drawImage(name string, img *Image, x, y, w, h float64) {
	c.pdf.ImageOptions(name, x, y, w, h, false, gofpdf.ImageOptions{ImageType: img.Format}, 0, "")
}

// fullCover is the first page of a single-story document.
func (c *composer) fullCover(story *models.Story, imageName string) {
	c.page(func() {
		if c.profile.CropMarks {
			DrawCropMarks(c.pdf, PageWidth, PageHeight)
		}
		if img, ok := c.loadImage(imageName, story.CoverImage); ok {
			w, h := FitImage(float64(img.Width), float64(img.Height), PageWidth*fullCoverShare, PageHeight*fullCoverShare)
			c.drawImage(imageName, img, (PageWidth-w)/2, (PageHeight-h)/2, w, h)
			return
		}
		c.textCover(story)
	})
}

func (c *composer) textCover(story *models.Story) {
	fonts := c.tpl.Fonts
	DrawDecorations(c.pdf, c.tpl.ID, PageWidth, PageHeight, RoleCover, c.rnd)

	c.setTextColor(c.tpl.Colors.Primary)
	c.setFont(fonts.Title, fonts.Title.Size+8)
	lines := c.wrap(story.Title, c.contentWidth)
	startY := PageHeight/2 - float64(len(lines))*15/2
	for i, line := range lines {
		c.centeredLine(startY+float64(i)*15, line)
	}

	if story.Author != "" {
		c.setTextColor(c.tpl.Colors.Secondary)
		c.setFont(fonts.Author, fonts.Author.Size+4)
		c.centered(startY+float64(len(lines))*15+20, "by "+story.Author)
	}
}

// titlePage is the second page of a single-story document.
func (c *composer) titlePage(story *models.Story) {
	c.page(func() {
		fonts := c.tpl.Fonts
		y := 80.0

		DrawDecorations(c.pdf, c.tpl.ID, PageWidth, PageHeight, RoleCover, c.rnd)

		c.setTextColor(c.tpl.Colors.Primary)
		c.setFont(fonts.Title, fonts.Title.Size+4)
		lines := c.wrap(story.Title, c.contentWidth-20)
		for i, line := range lines {
			c.centeredLine(y+float64(i)*14, line)
		}
		y += float64(len(lines))*14 + 25

		if story.Author != "" {
			c.setTextColor(c.tpl.Colors.Secondary)
			c.setFont(fonts.Author, fonts.Author.Size+2)
			c.centered(y, "by "+story.Author)
			y += 30
		}

		if c.tpl.Decoration.UseBorders {
			setDraw(c.pdf, c.tpl.Colors.Accent)
			c.pdf.SetLineWidth(0.5)
			c.pdf.Line(PageWidth/2-30, y, PageWidth/2+30, y)
			y += 25
		}

		c.setTextColor(c.tpl.Colors.Text)
		c.setFont(fonts.Metadata, fonts.Metadata.Size+2)
		if story.Category != "" {
			c.centered(y, "Category: "+story.Category)
			y += 10
		}
		if len(story.Genres) > 0 {
			c.centered(y, "Genres: "+strings.Join(story.Genres, ", "))
			y += 10
		}
		if story.Language != "" {
			c.centered(y, "Language: "+story.Language)
		}
	})
}

// legacyCover is the reduced-scale cover used inside combined documents.
func (c *composer) legacyCover(story *models.Story, imageName string) {
	c.page(func() {
		fonts := c.tpl.Fonts
		y := 60.0

		DrawDecorations(c.pdf, c.tpl.ID, PageWidth, PageHeight, RoleCover, c.rnd)
		if c.profile.CropMarks {
			DrawCropMarks(c.pdf, PageWidth, PageHeight)
		}

		if img, ok := c.loadImage(imageName, story.CoverImage); ok {
			w, h := FitImage(float64(img.Width), float64(img.Height), legacyCoverBox, legacyCoverBox)
			c.drawImage(imageName, img, (PageWidth-w)/2, 30, w, h)
			y = 30 + h + 20
		}

		c.setTextColor(c.tpl.Colors.Primary)
		c.setFont(fonts.Title, fonts.Title.Size)
		lines := c.wrap(story.Title, c.contentWidth-40)
		for i, line := range lines {
			c.centeredLine(y+float64(i)*12, line)
		}
		y += float64(len(lines))*12 + c.tpl.Spacing.TitleMargin

		if story.Author != "" {
			c.setTextColor(c.tpl.Colors.Secondary)
			c.setFont(fonts.Author, fonts.Author.Size)
			c.centered(y, "by "+story.Author)
			y += 15
		}

		c.setTextColor(c.tpl.Colors.Text)
		c.setFont(fonts.Metadata, fonts.Metadata.Size)
		if story.Category != "" {
			c.centered(y, "Category: "+story.Category)
			y += 8
		}
		if len(story.Genres) > 0 {
			c.centered(y, "Genres: "+strings.Join(story.Genres, ", "))
		}

		if c.tpl.Decoration.UseBorders {
			setDraw(c.pdf, c.tpl.Colors.Accent)
			c.pdf.SetLineWidth(0.5)
			c.pdf.Line(c.margin, PageHeight-30, PageWidth-c.margin, PageHeight-30)
		}
	})
}

// storyPage renders one story page: illustration, body text and footer.
func (c *composer) storyPage(page models.Page, imageName string, number, total int) TextBlock {
	var block TextBlock
	c.page(func() {
		fonts := c.tpl.Fonts
		margins := c.profile.Margins

		DrawDecorations(c.pdf, c.tpl.ID, PageWidth, PageHeight, RoleContent, c.rnd)
		if c.profile.CropMarks {
			DrawCropMarks(c.pdf, PageWidth, PageHeight)
		}

		imageHeight := 0.0
		if img, ok := c.loadImage(imageName, page.CanvasData); ok {
			boxH := (PageHeight - margins.Top - margins.Bottom) * illustrationShare
			w, h := FitImage(float64(img.Width), float64(img.Height), c.contentWidth, boxH)
			c.drawImage(imageName, img, c.margin+(c.contentWidth-w)/2, margins.Top, w, h)
			imageHeight = h
		}

		if page.Text != "" {
			textY := margins.Top + 20
			if page.CanvasData != "" {
				textY = margins.Top + imageHeight + 20
			}
			maxTextHeight := PageHeight - textY - margins.Bottom - footerReserve

			c.setTextColor(c.tpl.Colors.Text)
			c.setFont(fonts.Body, bodyFontSize)
			block = FlowText(c.pdf, c.tr(page.Text), c.contentWidth, bodyLineHeight, maxTextHeight)
			for i, line := range block.Lines {
				c.pdf.Text(c.margin, textY+float64(i)*bodyLineHeight, line)
			}
		}

		c.setTextColor(c.tpl.Colors.Secondary)
		c.setFont(fonts.Metadata, fonts.Metadata.Size)
		c.centered(PageHeight-10, fmt.Sprintf("Page %d of %d", number, total))
	})
	return block
}

// metadataPage closes each story inside a combined document.
func (c *composer) metadataPage(story *models.Story) {
	c.page(func() {
		y := c.margin + 10

		c.pdf.SetFont("helvetica", "B", 20)
		c.text(c.margin, y, "Story Information")
		y += 15

		c.pdf.SetLineWidth(0.3)
		c.pdf.Line(c.margin, y, PageWidth-c.margin, y)
		y += 10

		for _, item := range storyFacts(story) {
			c.pdf.SetFont("helvetica", "B", 12)
			c.text(c.margin, y, item.label+":")
			c.pdf.SetFont("helvetica", "", 12)
			c.text(c.margin+40, y, item.value)
			y += 8
		}

		c.pdf.SetFont("helvetica", "I", 10)
		c.pdf.SetTextColor(150, 150, 150)
		c.centered(PageHeight-30, watermarkText)
	})
}

type fact struct {
	label string
	value string
}

func storyFacts(story *models.Story) []fact {
	orDefault := func(v, def string) string {
		if v == "" {
			return def
		}
		return v
	}
	created := "N/A"
	if !story.CreatedAt.IsZero() {
		created = story.CreatedAt.Format(metadataDateFmt)
	}
	modified := "N/A"
	if story.LastModified != nil && !story.LastModified.IsZero() {
		modified = story.LastModified.Format(metadataDateFmt)
	}
	return []fact{
		{"Title", story.Title},
		{"Author", orDefault(story.Author, "Unknown")},
		{"Category", orDefault(story.Category, "N/A")},
		{"Genres", orDefault(strings.Join(story.Genres, ", "), "N/A")},
		{"Language", orDefault(story.Language, "N/A")},
		{"Pages", strconv.Itoa(len(story.Pages))},
		{"Created", created},
		{"Last Modified", modified},
	}
}

// tableOfContents lists every story of a combined document, adding pages
// when the list runs past the bottom margin. It returns the pages used.
func (c *composer) tableOfContents(stories []*models.Story) int {
	pages := 1
	c.pdf.AddPage()
	c.resetState()
	defer c.resetState()

	y := c.margin + 10
	c.pdf.SetFont("helvetica", "B", 24)
	c.text(c.margin, y, "Table of Contents")
	y += 15

	c.pdf.SetLineWidth(0.3)
	c.pdf.Line(c.margin, y, PageWidth-c.margin, y)
	y += 10

	limit := PageHeight - c.margin - 20
	for i, story := range stories {
		c.pdf.SetFont("helvetica", "B", 12)
		c.text(c.margin, y, fmt.Sprintf("%d.", i+1))

		c.pdf.SetFont("helvetica", "", 12)
		c.text(c.margin+10, y, tocTitle(story.Title))

		if story.Author != "" {
			c.pdf.SetFont("helvetica", "I", 12)
			c.text(c.margin+15, y+5, "by "+story.Author)
		}
		y += 12

		if y > limit && i < len(stories)-1 {
			c.pdf.AddPage()
			c.resetState()
			pages++
			y = c.margin + 10
		}
	}
	return pages
}

func tocTitle(title string) string {
	runes := []rune(title)
	if len(runes) > tocTitleLimit {
		return string(runes[:tocTitleLimit-3]) + ellipsis
	}
	return title
}

// separator introduces each story inside a combined document.
func (c *composer) separator(story *models.Story, number, total int) {
	c.page(func() {
		centerY := PageHeight / 2

		c.pdf.SetFont("helvetica", "B", 16)
		c.centered(centerY-10, fmt.Sprintf("Story %d of %d", number, total))

		c.pdf.SetFont("helvetica", "B", 20)
		for i, line := range c.wrap(story.Title, c.contentWidth-40) {
			c.centeredLine(centerY+5+float64(i)*10, line)
		}
	})
}
