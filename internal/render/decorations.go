package render

import (
	"github.com/pixel-tales-export-api/internal/templates"
)

const (
	cropMarkLength = 5.0
	cropMarkOffset = 5.0
	cropMarkWidth  = 0.1

	decorationLineWidth = 0.5
	confettiCount       = 8
	confettiRadius      = 2.0
)

// DrawDecorations paints the ornaments of a template onto a page. Every
// template currently decorates cover pages only. A nil rnd falls back to a
// time-seeded source.
func DrawDecorations(c Canvas, id templates.TemplateID, pageWidth, pageHeight float64, role PageRole, rnd RandomSource) {
	cfg := templates.Get(id)
	if !cfg.Decoration.UseDecorations || role != RoleCover {
		return
	}

	accent := cfg.Colors.Accent
	setDraw(c, accent)
	c.SetLineWidth(decorationLineWidth)

	w, h := pageWidth, pageHeight

	switch cfg.ID {
	case templates.Classic:
		// corner brackets
		c.Line(10, 10, 30, 10)
		c.Line(10, 10, 10, 30)
		c.Line(w-30, 10, w-10, 10)
		c.Line(w-10, 10, w-10, 30)
		c.Line(10, h-30, 10, h-10)
		c.Line(10, h-10, 30, h-10)
		c.Line(w-10, h-30, w-10, h-10)
		c.Line(w-30, h-10, w-10, h-10)

	case templates.Modern:
		for i := 0; i < 5; i++ {
			fi := float64(i)
			c.SetLineWidth(2 - fi*0.3)
			c.Line(20+fi*2, h-40, w-20-fi*2, h-40)
		}

	case templates.Elegant:
		c.SetLineWidth(0.3)
		c.Rect(15, 15, w-30, h-30, "D")
		c.SetLineWidth(0.5)
		c.Rect(17, 17, w-34, h-34, "D")

	case templates.Children:
		if rnd == nil {
			rnd = newDefaultRandom()
		}
		palette := []templates.Color{cfg.Colors.Primary, cfg.Colors.Secondary, cfg.Colors.Accent}
		for i := 0; i < confettiCount; i++ {
			x := 15 + rnd.Float64()*(w-30)
			y := 15 + rnd.Float64()*40
			setFill(c, palette[i%len(palette)])
			c.Circle(x, y, confettiRadius, "F")
		}
	}
}

// DrawCropMarks draws trim registration lines at the four page corners.
func DrawCropMarks(c Canvas, pageWidth, pageHeight float64) {
	w, h := pageWidth, pageHeight
	l, o := cropMarkLength, cropMarkOffset

	c.SetDrawColor(0, 0, 0)
	c.SetLineWidth(cropMarkWidth)

	// top-left
	c.Line(0, o, l, o)
	c.Line(o, 0, o, l)
	// top-right
	c.Line(w-l, o, w, o)
	c.Line(w-o, 0, w-o, l)
	// bottom-left
	c.Line(0, h-o, l, h-o)
	c.Line(o, h-l, o, h)
	// bottom-right
	c.Line(w-l, h-o, w, h-o)
	c.Line(w-o, h-l, w-o, h)
}

func setDraw(c Canvas, col templates.Color) {
	c.SetDrawColor(int(col.R), int(col.G), int(col.B))
}

func setFill(c Canvas, col templates.Color) {
	c.SetFillColor(int(col.R), int(col.G), int(col.B))
}
