package models

import (
	"time"
)

// Story is an illustrated story with ordered pages
type Story struct {
	ID           string     `json:"id" db:"id"`
	Title        string     `json:"title" db:"title"`
	Author       string     `json:"author,omitempty" db:"author"`
	Category     string     `json:"category,omitempty" db:"category"`
	Genres       []string   `json:"genres,omitempty" db:"genres"`
	Language     string     `json:"language,omitempty" db:"language"`
	Pages        []Page     `json:"pages"`
	CoverImage   string     `json:"cover_image,omitempty" db:"cover_image"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	LastModified *time.Time `json:"last_modified,omitempty" db:"last_modified"`
}

// Page is one page of a story. Text and illustration are independent.
type Page struct {
	Text            string `json:"text" db:"text"`
	CanvasData      string `json:"canvas_data,omitempty" db:"canvas_data"`
	BackgroundImage string `json:"background_image,omitempty" db:"background_image"`
}

// StorySummary is the listing view of a story
type StorySummary struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Author       string     `json:"author,omitempty"`
	Category     string     `json:"category,omitempty"`
	Language     string     `json:"language,omitempty"`
	PageCount    int        `json:"page_count"`
	HasCover     bool       `json:"has_cover"`
	CreatedAt    time.Time  `json:"created_at"`
	LastModified *time.Time `json:"last_modified,omitempty"`
}

// Summary builds the listing view of s.
func (s *Story) Summary() StorySummary {
	return StorySummary{
		ID:           s.ID,
		Title:        s.Title,
		Author:       s.Author,
		Category:     s.Category,
		Language:     s.Language,
		PageCount:    len(s.Pages),
		HasCover:     s.CoverImage != "",
		CreatedAt:    s.CreatedAt,
		LastModified: s.LastModified,
	}
}

// StoryNDJSON represents a story record in an NDJSON import file
type StoryNDJSON struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Author       string     `json:"author"`
	Category     string     `json:"category"`
	Genres       []string   `json:"genres"`
	Language     string     `json:"language"`
	Pages        []PageJSON `json:"pages"`
	CoverImage   string     `json:"cover_image"`
	CreatedAt    string     `json:"created_at"`
	LastModified string     `json:"last_modified"`
}

// PageJSON represents a page inside an imported story record
type PageJSON struct {
	Text            string `json:"text"`
	CanvasData      string `json:"canvas_data"`
	BackgroundImage string `json:"background_image"`
}

// ValidCategories are the accepted story categories
var ValidCategories = map[string]bool{
	"adventure":   true,
	"fantasy":     true,
	"mystery":     true,
	"action":      true,
	"friendship":  true,
	"scifi":       true,
	"comedy":      true,
	"sci_fi":      true,
	"fairy_tale":  true,
	"educational": true,
	"animal":      true,
	"other":       true,
}

// ValidLanguages are the accepted story languages
var ValidLanguages = map[string]bool{
	"en": true,
	"tl": true,
}
