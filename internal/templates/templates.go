// Package templates holds the static catalog of visual templates and print
// profiles used by the PDF export pipeline.
package templates

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrUnknownTemplate     = errors.New("unknown template")
	ErrUnknownPrintProfile = errors.New("unknown print profile")
)

// TemplateID identifies one of the five visual templates. The zero value
// resolves to Classic.
type TemplateID struct {
	key string
}

var (
	Classic    = TemplateID{"classic"}
	Modern     = TemplateID{"modern"}
	Minimalist = TemplateID{"minimalist"}
	Elegant    = TemplateID{"elegant"}
	Children   = TemplateID{"children"}
)

var templateOrder = []TemplateID{Classic, Modern, Minimalist, Elegant, Children}

func (id TemplateID) resolve() TemplateID {
	if id.key == "" {
		return Classic
	}
	return id
}

func (id TemplateID) String() string {
	return id.resolve().key
}

func (id TemplateID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *TemplateID) UnmarshalText(text []byte) error {
	parsed, err := ParseTemplateID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseTemplateID maps a case-insensitive name to its TemplateID. An empty
// name yields the zero TemplateID, leaving the choice of default to the caller.
func ParseTemplateID(s string) (TemplateID, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return TemplateID{}, nil
	}
	for _, id := range templateOrder {
		if id.key == s {
			return id, nil
		}
	}
	return TemplateID{}, fmt.Errorf("%w: %q", ErrUnknownTemplate, s)
}

// TemplateIDs returns every template identifier in catalog order.
func TemplateIDs() []TemplateID {
	out := make([]TemplateID, len(templateOrder))
	copy(out, templateOrder)
	return out
}

// PrintProfileID identifies one of the three print profiles. The zero value
// resolves to Screen.
type PrintProfileID struct {
	key string
}

var (
	Screen       = PrintProfileID{"screen"}
	Print        = PrintProfileID{"print"}
	Professional = PrintProfileID{"professional"}
)

var profileOrder = []PrintProfileID{Screen, Print, Professional}

func (id PrintProfileID) resolve() PrintProfileID {
	if id.key == "" {
		return Screen
	}
	return id
}

func (id PrintProfileID) String() string {
	return id.resolve().key
}

func (id PrintProfileID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *PrintProfileID) UnmarshalText(text []byte) error {
	parsed, err := ParsePrintProfileID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParsePrintProfileID maps a case-insensitive name to its PrintProfileID. An
// empty name yields the zero PrintProfileID.
func ParsePrintProfileID(s string) (PrintProfileID, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return PrintProfileID{}, nil
	}
	for _, id := range profileOrder {
		if id.key == s {
			return id, nil
		}
	}
	return PrintProfileID{}, fmt.Errorf("%w: %q", ErrUnknownPrintProfile, s)
}

// PrintProfileIDs returns every print profile identifier in catalog order.
func PrintProfileIDs() []PrintProfileID {
	out := make([]PrintProfileID, len(profileOrder))
	copy(out, profileOrder)
	return out
}

// FontStyle is the weight/slant of a font role
type FontStyle string

const (
	StyleNormal FontStyle = "normal"
	StyleBold   FontStyle = "bold"
	StyleItalic FontStyle = "italic"
)

// Font describes one typographic role
type Font struct {
	Family string    `json:"family"`
	Size   float64   `json:"size"`
	Style  FontStyle `json:"style"`
}

// Fonts groups the four font roles of a template
type Fonts struct {
	Title    Font `json:"title"`
	Author   Font `json:"author"`
	Body     Font `json:"body"`
	Metadata Font `json:"metadata"`
}

// Color is an RGB triple
type Color struct {
	R, G, B uint8
}

// Hex renders the color as #RRGGBB.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.Hex()), nil
}

// ParseColor parses a #RRGGBB string.
func ParseColor(s string) (Color, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return Color{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

func mustColor(s string) Color {
	c, err := ParseColor(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Palette is the four-color scheme of a template
type Palette struct {
	Primary   Color `json:"primary"`
	Secondary Color `json:"secondary"`
	Text      Color `json:"text"`
	Accent    Color `json:"accent"`
}

// Spacing holds vertical rhythm constants in mm
type Spacing struct {
	TitleMargin      float64 `json:"title_margin"`
	ParagraphSpacing float64 `json:"paragraph_spacing"`
	SectionSpacing   float64 `json:"section_spacing"`
}

// Decoration holds the ornament toggles
type Decoration struct {
	UseBorders            bool `json:"use_borders"`
	UseDecorations        bool `json:"use_decorations"`
	UseBackgroundPatterns bool `json:"use_background_patterns"`
}

// TemplateConfig is the full visual configuration of a template
type TemplateConfig struct {
	ID          TemplateID `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Fonts       Fonts      `json:"fonts"`
	Colors      Palette    `json:"colors"`
	Spacing     Spacing    `json:"spacing"`
	Decoration  Decoration `json:"decoration"`
}

// ColorMode is the output color model of a print profile
type ColorMode string

const (
	ColorModeRGB  ColorMode = "rgb"
	ColorModeCMYK ColorMode = "cmyk"
)

// Margins are page margins in mm
type Margins struct {
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
}

// PrintProfile is a print-optimization preset
type PrintProfile struct {
	ID           PrintProfileID `json:"id"`
	Name         string         `json:"name"`
	Margins      Margins        `json:"margins"`
	Bleed        bool           `json:"bleed"`
	ColorMode    ColorMode      `json:"color_mode"`
	ImageQuality float64        `json:"image_quality"`
	CropMarks    bool           `json:"crop_marks"`
}

var templateRegistry = map[TemplateID]TemplateConfig{
	Classic: {
		ID:          Classic,
		Name:        "Classic",
		Description: "Traditional book layout with serif fonts",
		Fonts: Fonts{
			Title:    Font{Family: "times", Size: 28, Style: StyleBold},
			Author:   Font{Family: "times", Size: 16, Style: StyleItalic},
			Body:     Font{Family: "times", Size: 12, Style: StyleNormal},
			Metadata: Font{Family: "times", Size: 10, Style: StyleNormal},
		},
		Colors: Palette{
			Primary:   mustColor("#2C3E50"),
			Secondary: mustColor("#7F8C8D"),
			Text:      mustColor("#000000"),
			Accent:    mustColor("#8B4513"),
		},
		Spacing:    Spacing{TitleMargin: 20, ParagraphSpacing: 7, SectionSpacing: 15},
		Decoration: Decoration{UseBorders: true, UseDecorations: true},
	},
	Modern: {
		ID:          Modern,
		Name:        "Modern",
		Description: "Clean, contemporary design with sans-serif fonts",
		Fonts: Fonts{
			Title:    Font{Family: "helvetica", Size: 32, Style: StyleBold},
			Author:   Font{Family: "helvetica", Size: 18, Style: StyleNormal},
			Body:     Font{Family: "helvetica", Size: 11, Style: StyleNormal},
			Metadata: Font{Family: "helvetica", Size: 9, Style: StyleNormal},
		},
		Colors: Palette{
			Primary:   mustColor("#6366F1"),
			Secondary: mustColor("#A5B4FC"),
			Text:      mustColor("#1F2937"),
			Accent:    mustColor("#EC4899"),
		},
		Spacing:    Spacing{TitleMargin: 25, ParagraphSpacing: 6, SectionSpacing: 20},
		Decoration: Decoration{UseDecorations: true},
	},
	Minimalist: {
		ID:          Minimalist,
		Name:        "Minimalist",
		Description: "Simple, clean design with maximum readability",
		Fonts: Fonts{
			Title:    Font{Family: "helvetica", Size: 24, Style: StyleBold},
			Author:   Font{Family: "helvetica", Size: 14, Style: StyleNormal},
			Body:     Font{Family: "helvetica", Size: 12, Style: StyleNormal},
			Metadata: Font{Family: "helvetica", Size: 10, Style: StyleNormal},
		},
		Colors: Palette{
			Primary:   mustColor("#000000"),
			Secondary: mustColor("#666666"),
			Text:      mustColor("#333333"),
			Accent:    mustColor("#000000"),
		},
		Spacing: Spacing{TitleMargin: 15, ParagraphSpacing: 7, SectionSpacing: 12},
	},
	Elegant: {
		ID:          Elegant,
		Name:        "Elegant",
		Description: "Sophisticated design with refined typography",
		Fonts: Fonts{
			Title:    Font{Family: "times", Size: 30, Style: StyleBold},
			Author:   Font{Family: "times", Size: 16, Style: StyleItalic},
			Body:     Font{Family: "times", Size: 11, Style: StyleNormal},
			Metadata: Font{Family: "times", Size: 9, Style: StyleItalic},
		},
		Colors: Palette{
			Primary:   mustColor("#1A1A1A"),
			Secondary: mustColor("#8B7355"),
			Text:      mustColor("#2C2C2C"),
			Accent:    mustColor("#B8860B"),
		},
		Spacing:    Spacing{TitleMargin: 22, ParagraphSpacing: 8, SectionSpacing: 18},
		Decoration: Decoration{UseBorders: true, UseDecorations: true},
	},
	Children: {
		ID:          Children,
		Name:        "Children's Book",
		Description: "Fun, colorful design perfect for kids stories",
		Fonts: Fonts{
			Title:    Font{Family: "helvetica", Size: 32, Style: StyleBold},
			Author:   Font{Family: "helvetica", Size: 18, Style: StyleBold},
			Body:     Font{Family: "helvetica", Size: 13, Style: StyleNormal},
			Metadata: Font{Family: "helvetica", Size: 10, Style: StyleNormal},
		},
		Colors: Palette{
			Primary:   mustColor("#FF6B6B"),
			Secondary: mustColor("#4ECDC4"),
			Text:      mustColor("#2C3E50"),
			Accent:    mustColor("#FFD93D"),
		},
		Spacing:    Spacing{TitleMargin: 20, ParagraphSpacing: 9, SectionSpacing: 15},
		Decoration: Decoration{UseBorders: true, UseDecorations: true, UseBackgroundPatterns: true},
	},
}

var profileRegistry = map[PrintProfileID]PrintProfile{
	Screen: {
		ID:           Screen,
		Name:         "Screen Viewing",
		Margins:      Margins{Top: 20, Right: 20, Bottom: 20, Left: 20},
		ColorMode:    ColorModeRGB,
		ImageQuality: 0.85,
	},
	Print: {
		ID:           Print,
		Name:         "Home Printing",
		Margins:      Margins{Top: 25, Right: 20, Bottom: 25, Left: 20},
		ColorMode:    ColorModeRGB,
		ImageQuality: 0.92,
	},
	Professional: {
		ID:           Professional,
		Name:         "Professional Print",
		Margins:      Margins{Top: 30, Right: 25, Bottom: 30, Left: 30},
		Bleed:        true,
		ColorMode:    ColorModeCMYK,
		ImageQuality: 1.0,
		CropMarks:    true,
	},
}

// Get returns the configuration for a template.
func Get(id TemplateID) TemplateConfig {
	return templateRegistry[id.resolve()]
}

// GetPrintProfile returns the configuration for a print profile.
func GetPrintProfile(id PrintProfileID) PrintProfile {
	return profileRegistry[id.resolve()]
}

// Templates lists every template configuration in catalog order.
func Templates() []TemplateConfig {
	out := make([]TemplateConfig, 0, len(templateOrder))
	for _, id := range templateOrder {
		out = append(out, templateRegistry[id])
	}
	return out
}

// PrintProfiles lists every print profile in catalog order.
func PrintProfiles() []PrintProfile {
	out := make([]PrintProfile, 0, len(profileOrder))
	for _, id := range profileOrder {
		out = append(out, profileRegistry[id])
	}
	return out
}
