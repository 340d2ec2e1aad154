package api

import (
	"encoding/csv"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pixel-tales-export-api/internal/config"
	"github.com/pixel-tales-export-api/internal/models"
	"github.com/pixel-tales-export-api/internal/service"
	"github.com/rs/zerolog"
)

var importExtensions = map[string]bool{
	".ndjson": true,
	".jsonl":  true,
	".json":   true,
}

// ImportHandler handles story import endpoints
type ImportHandler struct {
	services *service.Services
	cfg      *config.Config
	log      zerolog.Logger
}

// NewImportHandler creates a new ImportHandler
func NewImportHandler(services *service.Services, cfg *config.Config, log zerolog.Logger) *ImportHandler {
	return &ImportHandler{
		services: services,
		cfg:      cfg,
		log:      log.With().Str("handler", "import").Logger(),
	}
}

// CreateImport handles POST /v1/stories/import
// Accepts a multipart NDJSON upload, one story per line
func (h *ImportHandler) CreateImport(c *gin.Context) {
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

	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file upload is required"})
		return
	}
	if msg := h.checkUpload(header); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	filePath, err := h.saveUpload(c, header)
	if err != nil {
		h.log.Error().Err(err).Str("file", header.Filename).Msg("Failed to save upload")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save file"})
		return
	}

	req := &models.ImportRequest{
		Resource:       models.ResourceStories,
		IdempotencyKey: idempotencyKey,
	}

	job, err := h.services.Import.CreateImportJob(ctx, req, filePath)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to create import job")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create import job"})
		return
	}

	h.log.Info().
		Str("job_id", job.ID).
		Str("file", header.Filename).
		Int64("size_bytes", header.Size).
		Msg("Import job created")

	c.JSON(http.StatusAccepted, gin.H{
		"job_id":     job.ID,
		"status":     job.Status,
		"resource":   job.Resource,
		"status_url": "/v1/stories/import/" + job.ID,
		"message":    "Import job created and queued for processing",
	})
}

// checkUpload returns a client-facing reason the upload is rejected, or "".
func (h *ImportHandler) checkUpload(header *multipart.FileHeader) string {
	switch {
	case header.Size == 0:
		return "uploaded file is empty"
	case header.Size > h.cfg.Import.MaxUploadSize:
		return fmt.Sprintf("file too large, max size is %d MB", h.cfg.Import.MaxUploadSize/(1024*1024))
	case !importExtensions[strings.ToLower(filepath.Ext(header.Filename))]:
		return "stories import requires an NDJSON file"
	}
	return ""
}

// saveUpload stores the upload as stories_<id>.<ext> under the upload dir
func (h *ImportHandler) saveUpload(c *gin.Context, header *multipart.FileHeader) (string, error) {
	if err := os.MkdirAll(h.cfg.Import.UploadDir, 0755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(header.Filename))
	name := fmt.Sprintf("%s_%s%s", models.ResourceStories, uuid.New().String()[:8], ext)
	dst := filepath.Join(h.cfg.Import.UploadDir, name)
	if err := c.SaveUploadedFile(header, dst); err != nil {
		return "", err
	}
	return dst, nil
}

// GetImportStatus handles GET /v1/stories/import/:job_id
func (h *ImportHandler) GetImportStatus(c *gin.Context) {
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
	if job == nil || job.Type != models.JobTypeImport {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	c.JSON(http.StatusOK, job)
}

// GetImportErrors handles GET /v1/stories/import/:job_id/errors
func (h *ImportHandler) GetImportErrors(c *gin.Context) {
	ctx := c.Request.Context()
	jobID := c.Param("job_id")
	if jobID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "job_id is required"})
		return
	}

	errors, err := h.services.Job.GetJobErrors(ctx, jobID)
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job errors")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get errors"})
		return
	}

	format := strings.ToLower(c.DefaultQuery("format", "json"))
	if format == "csv" {
		c.Header("Content-Type", "text/csv")
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=import_errors_%s.csv", jobID))
		if err := writeErrorsCSV(c.Writer, errors); err != nil {
			h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to write error report")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"job_id":      jobID,
		"error_count": len(errors),
		"errors":      errors,
	})
}

func writeErrorsCSV(w io.Writer, errs []models.ValidationError) error {
	writer := csv.NewWriter(w)
	writer.Write([]string{"line", "field", "message", "value"})
	for _, e := range errs {
		value := ""
		if e.Value != nil {
			value = fmt.Sprintf("%v", e.Value)
		}
		writer.Write([]string{strconv.Itoa(e.Line), e.Field, e.Message, value})
	}
	writer.Flush()
	return writer.Error()
}
