package render

import (
	"math/rand"
	"time"
)

// Page geometry in mm (A4 portrait)
const (
	PageWidth  = 210.0
	PageHeight = 297.0

	defaultLineWidth = 0.2
)

// PageRole conditions which ornaments a page receives
type PageRole int

const (
	RoleCover PageRole = iota
	RoleContent
	RoleMetadata
)

func (r PageRole) String() string {
	switch r {
	case RoleCover:
		return "cover"
	case RoleContent:
		return "content"
	case RoleMetadata:
		return "metadata"
	}
	return "unknown"
}

// Canvas is the subset of drawing primitives used by the decoration renderer.
// *gofpdf.Fpdf satisfies it.
type Canvas interface {
	SetDrawColor(r, g, b int)
	SetFillColor(r, g, b int)
	SetLineWidth(width float64)
	Line(x1, y1, x2, y2 float64)
	Rect(x, y, w, h float64, styleStr string)
	Circle(x, y, r float64, styleStr string)
}

// Measurer reports the rendered width of a string in the current font.
type Measurer interface {
	GetStringWidth(s string) float64
}

// RandomSource yields values in [0, 1). *rand.Rand satisfies it.
type RandomSource interface {
	Float64() float64
}

func newDefaultRandom() RandomSource {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}
