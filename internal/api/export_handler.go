package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pixel-tales-export-api/internal/models"
	"github.com/pixel-tales-export-api/internal/service"
	"github.com/pixel-tales-export-api/internal/storage"
	"github.com/pixel-tales-export-api/internal/templates"
	"github.com/rs/zerolog"
)

// ExportHandler handles PDF export endpoints
type ExportHandler struct {
	services *service.Services
	log      zerolog.Logger
}

// NewExportHandler creates a new ExportHandler
func NewExportHandler(services *service.Services, log zerolog.Logger) *ExportHandler {
	return &ExportHandler{
		services: services,
		log:      log.With().Str("handler", "export").Logger(),
	}
}

// CreateExport handles POST /v1/exports
// Queues an export job for the selected stories
func (h *ExportHandler) CreateExport(c *gin.Context) {
	ctx := c.Request.Context()
	idempotencyKey := c.GetHeader("Idempotency-Key")

	if idempotencyKey != "" {
		existingJob, err := h.services.Job.GetJobByIdempotencyKey(ctx, idempotencyKey)
		if err != nil {
			h.log.Error().Err(err).Msg("Failed to check idempotency key")
		}
		if existingJob != nil {
			h.log.Info().Str("job_id", existingJob.ID).Msg("Returning existing job for idempotency key")
			c.JSON(http.StatusOK, existingJob)
			return
		}
	}

	var req models.ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if errors.Is(err, templates.ErrUnknownTemplate) || errors.Is(err, templates.ErrUnknownPrintProfile) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	req.IdempotencyKey = idempotencyKey

	job, err := h.services.Export.CreateExportJob(ctx, &req)
	switch {
	case errors.Is(err, service.ErrNoStoriesSelected):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"warning": "Please select at least one story to export"})
		return
	case errors.Is(err, service.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, service.ErrStoryNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	case err != nil:
		h.log.Error().Err(err).Msg("Failed to create export job")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create export job"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"job_id":        job.ID,
		"status":        job.Status,
		"mode":          job.Mode,
		"template":      job.Template,
		"print_profile": job.PrintProfile,
		"total_records": job.TotalRecords,
		"status_url":    "/v1/exports/" + job.ID,
		"message":       "Export job created and queued for processing",
	})
}

// GetExportStatus handles GET /v1/exports/:job_id
func (h *ExportHandler) GetExportStatus(c *gin.Context) {
	ctx := c.Request.Context()
	jobID := c.Param("job_id")
	if jobID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "job_id is required"})
		return
	}

	job, err := h.services.Job.GetJob(ctx, jobID)
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get job status"})
		return
	}
	if job == nil || job.Type != models.JobTypeExport {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	c.JSON(http.StatusOK, job)
}

// DownloadArtifact handles GET /v1/exports/:job_id/artifacts/:name
func (h *ExportHandler) DownloadArtifact(c *gin.Context) {
	ctx := c.Request.Context()
	jobID := c.Param("job_id")
	name := c.Param("name")

	data, err := h.services.Export.GetArtifact(ctx, jobID, name)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "artifact not found"})
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Str("name", name).Msg("Failed to read artifact")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read artifact"})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", name))
	c.Data(http.StatusOK, "application/pdf", data)
}
