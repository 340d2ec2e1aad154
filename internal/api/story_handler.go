package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/pixel-tales-export-api/internal/service"
	"github.com/pixel-tales-export-api/internal/templates"
	"github.com/rs/zerolog"
)

// renderTimeout bounds a synchronous single-story render
const renderTimeout = 2 * time.Minute

// StoryHandler handles story library endpoints
type StoryHandler struct {
	services *service.Services
	log      zerolog.Logger
}

// NewStoryHandler creates a new StoryHandler
func NewStoryHandler(services *service.Services, log zerolog.Logger) *StoryHandler {
	return &StoryHandler{
		services: services,
		log:      log.With().Str("handler", "story").Logger(),
	}
}

// ListStories handles GET /v1/stories?limit=&offset=
func (h *StoryHandler) ListStories(c *gin.Context) {
	limit, err := queryInt(c, "limit", 100)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "offset must be an integer"})
		return
	}

	stories, err := h.services.Story.ListStories(c.Request.Context(), limit, offset)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list stories")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list stories"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":   len(stories),
		"limit":   limit,
		"offset":  offset,
		"stories": stories,
	})
}

// GetStory handles GET /v1/stories/:id
func (h *StoryHandler) GetStory(c *gin.Context) {
	id := c.Param("id")

	story, err := h.services.Story.GetStory(c.Request.Context(), id)
	if errors.Is(err, service.ErrStoryNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "story not found"})
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("story_id", id).Msg("Failed to get story")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get story"})
		return
	}

	c.JSON(http.StatusOK, story)
}

// RenderPDF handles GET /v1/stories/:id/pdf?template=&print_profile=
// Renders synchronously and streams the document.
func (h *StoryHandler) RenderPDF(c *gin.Context) {
	id := c.Param("id")

	tpl, err := templates.ParseTemplateID(c.Query("template"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	profile, err := templates.ParsePrintProfileID(c.Query("print_profile"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := contextWithTimeout(c, renderTimeout)
	defer cancel()

	artifact, err := h.services.Export.RenderStory(ctx, id, tpl, profile)
	switch {
	case errors.Is(err, service.ErrStoryNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "story not found"})
		return
	case err != nil:
		h.log.Error().Err(err).Str("story_id", id).Msg("Render failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to render story"})
		return
	}

	h.log.Info().
		Str("story_id", id).
		Str("file", artifact.FileName).
		Int("pages", artifact.Pages).
		Str("size", humanize.Bytes(uint64(len(artifact.Data)))).
		Msg("Story rendered")

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", artifact.FileName))
	c.Data(http.StatusOK, artifact.ContentType(), artifact.Data)
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
