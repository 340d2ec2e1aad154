package render

import (
	"regexp"
	"strings"
)

const (
	pdfExtension        = ".pdf"
	defaultStoryName    = "story"
	defaultCollection   = "stories-collection"
	underscoreCharacter = "_"
)

var (
	nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9]`)
	underscoreRuns  = regexp.MustCompile(`_+`)
)

// collectionNames maps the library tab an export was started from to the
// combined document's base name.
var collectionNames = map[string]string{
	"works":   "my-stories-collection",
	"offline": "offline-stories-collection",
	"saved":   "saved-stories-collection",
	"drafts":  "draft-stories-collection",
}

// SanitizeFileName replaces every non-alphanumeric character with an
// underscore, collapses underscore runs and lower-cases the result.
func SanitizeFileName(name string) string {
	name = nonAlphanumeric.ReplaceAllString(name, underscoreCharacter)
	name = underscoreRuns.ReplaceAllString(name, underscoreCharacter)
	return strings.ToLower(name)
}

// StoryFileName derives the document name for a single-story export.
func StoryFileName(title string) string {
	stem := SanitizeFileName(title)
	if strings.Trim(stem, underscoreCharacter) == "" {
		stem = defaultStoryName
	}
	return stem + pdfExtension
}

// CollectionBaseName returns the default combined file name for an export type.
func CollectionBaseName(exportType string) string {
	if name, ok := collectionNames[strings.ToLower(strings.TrimSpace(exportType))]; ok {
		return name
	}
	return defaultCollection
}

// CollectionFileName sanitizes a caller-supplied combined file name, keeping
// a trailing .pdf extension intact.
func CollectionFileName(name string) string {
	stem := name
	if strings.HasSuffix(strings.ToLower(stem), pdfExtension) {
		stem = stem[:len(stem)-len(pdfExtension)]
	}
	stem = SanitizeFileName(stem)
	if strings.Trim(stem, underscoreCharacter) == "" {
		stem = SanitizeFileName(defaultCollection)
	}
	return stem + pdfExtension
}
