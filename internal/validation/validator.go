package validation

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/pixel-tales-export-api/internal/models"
)

const (
	MaxTitleLength  = 200
	MaxAuthorLength = 200
	MaxGenreLength  = 50
	MaxPages        = 500
)

// ValidationError represents a single validation error
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// Validator provides validation methods
type Validator struct {
	storyIDCache map[string]bool
}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{
		storyIDCache: make(map[string]bool),
	}
}

// SetStoryIDCache seeds the uniqueness cache with stories already stored
func (v *Validator) SetStoryIDCache(ids []string) {
	for _, id := range ids {
		v.storyIDCache[strings.ToLower(id)] = true
	}
}

// AddStoryID adds an accepted story ID to the uniqueness cache
func (v *Validator) AddStoryID(id string) {
	v.storyIDCache[strings.ToLower(id)] = true
}

// ValidateStory validates a story record
func (v *Validator) ValidateStory(story *models.StoryNDJSON, lineNum int) []ValidationError {
	var errors []ValidationError

	// Validate ID
	if story.ID == "" {
		errors = append(errors, ValidationError{Field: "id", Message: "id is required"})
	} else if !isValidUUID(story.ID) {
		errors = append(errors, ValidationError{Field: "id", Message: "invalid UUID format", Value: story.ID})
	} else if v.storyIDCache[strings.ToLower(story.ID)] {
		errors = append(errors, ValidationError{Field: "id", Message: "duplicate story id", Value: story.ID})
	}

	// Validate title
	if strings.TrimSpace(story.Title) == "" {
		errors = append(errors, ValidationError{Field: "title", Message: "title is required"})
	} else if n := utf8.RuneCountInString(story.Title); n > MaxTitleLength {
		errors = append(errors, ValidationError{
			Field:   "title",
			Message: fmt.Sprintf("title exceeds maximum of %d characters (has %d)", MaxTitleLength, n),
		})
	}

	if utf8.RuneCountInString(story.Author) > MaxAuthorLength {
		errors = append(errors, ValidationError{
			Field:   "author",
			Message: fmt.Sprintf("author exceeds maximum of %d characters", MaxAuthorLength),
		})
	}

	if story.Category != "" && !models.ValidCategories[story.Category] {
		errors = append(errors, ValidationError{Field: "category", Message: "invalid category", Value: story.Category})
	}

	if story.Language != "" && !models.ValidLanguages[story.Language] {
		errors = append(errors, ValidationError{
			Field:   "language",
			Message: "invalid language, must be one of: en, tl",
			Value:   story.Language,
		})
	}

	for i, g := range story.Genres {
		if strings.TrimSpace(g) == "" || utf8.RuneCountInString(g) > MaxGenreLength {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("genres[%d]", i),
				Message: fmt.Sprintf("genre must be 1 to %d characters", MaxGenreLength),
				Value:   g,
			})
		}
	}

	if story.CoverImage != "" && !isImageRef(story.CoverImage) {
		errors = append(errors, ValidationError{Field: "cover_image", Message: "image must be a data URI or http(s) URL"})
	}

	if len(story.Pages) > MaxPages {
		errors = append(errors, ValidationError{
			Field:   "pages",
			Message: fmt.Sprintf("story exceeds maximum of %d pages (has %d)", MaxPages, len(story.Pages)),
		})
	}
	for i, p := range story.Pages {
		if p.CanvasData != "" && !isImageRef(p.CanvasData) {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("pages[%d].canvas_data", i),
				Message: "image must be a data URI or http(s) URL",
			})
		}
		if p.BackgroundImage != "" && !isImageRef(p.BackgroundImage) {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("pages[%d].background_image", i),
				Message: "image must be a data URI or http(s) URL",
			})
		}
	}

	// Validate timestamps
	var createdAt time.Time
	if story.CreatedAt != "" {
		t, err := time.Parse(time.RFC3339, story.CreatedAt)
		if err != nil {
			errors = append(errors, ValidationError{Field: "created_at", Message: "invalid ISO 8601 date format", Value: story.CreatedAt})
		}
		createdAt = t
	}
	if story.LastModified != "" {
		t, err := time.Parse(time.RFC3339, story.LastModified)
		if err != nil {
			errors = append(errors, ValidationError{Field: "last_modified", Message: "invalid ISO 8601 date format", Value: story.LastModified})
		} else if !createdAt.IsZero() && t.Before(createdAt) {
			errors = append(errors, ValidationError{Field: "last_modified", Message: "last_modified must not be before created_at", Value: story.LastModified})
		}
	}

	return errors
}

// isValidUUID checks if a string is a valid UUID
func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

func isImageRef(ref string) bool {
	lower := strings.ToLower(ref)
	return strings.HasPrefix(lower, "data:") ||
		strings.HasPrefix(lower, "http://") ||
		strings.HasPrefix(lower, "https://")
}
