package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pixel-tales-export-api/internal/config"
	"github.com/pixel-tales-export-api/internal/service"
	"github.com/rs/zerolog"
)

const serviceName = "pixel-tales-export-api"

// HealthChecker reports whether a backing dependency is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type poolReporter interface {
	PoolStats() map[string]int
}

// NewRouter creates and configures the Gin router. db may be nil.
func NewRouter(services *service.Services, db HealthChecker, cfg *config.Config, log zerolog.Logger) *gin.Engine {
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(recoveryMiddleware(log))
	router.Use(loggingMiddleware(log))
	router.Use(corsMiddleware())

	importHandler := NewImportHandler(services, cfg, log)
	exportHandler := NewExportHandler(services, log)
	storyHandler := NewStoryHandler(services, log)

	router.GET("/health", healthCheck(db))
	router.GET("/metrics", metricsHandler(services, db, log))

	v1 := router.Group("/v1")
	{
		v1.GET("/templates", listTemplates)
		v1.GET("/print-profiles", listPrintProfiles)

		stories := v1.Group("/stories")
		{
			stories.POST("/import", importHandler.CreateImport)
			stories.GET("/import/:job_id", importHandler.GetImportStatus)
			stories.GET("/import/:job_id/errors", importHandler.GetImportErrors)

			stories.GET("", storyHandler.ListStories)
			stories.GET("/:id", storyHandler.GetStory)
			stories.GET("/:id/pdf", storyHandler.RenderPDF)
		}

		exports := v1.Group("/exports")
		{
			exports.POST("", exportHandler.CreateExport)
			exports.GET("/:job_id", exportHandler.GetExportStatus)
			exports.GET("/:job_id/artifacts/:name", exportHandler.DownloadArtifact)
		}
	}

	return router
}

// healthCheck reports healthy unless the database ping fails
func healthCheck(db HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		body := gin.H{
			"status":    "healthy",
			"timestamp": time.Now().Format(time.RFC3339),
			"service":   serviceName,
		}

		if db != nil {
			ctx, cancel := contextWithTimeout(c, 2*time.Second)
			defer cancel()
			if err := db.HealthCheck(ctx); err != nil {
				body["status"] = "unhealthy"
				body["database"] = err.Error()
				c.JSON(http.StatusServiceUnavailable, body)
				return
			}
			body["database"] = "ok"
		}

		c.JSON(http.StatusOK, body)
	}
}

// metricsHandler returns story and job counts, plus pool stats when db reports them
func metricsHandler(services *service.Services, db HealthChecker, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		storyCount, err := services.Story.CountStories(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Failed to count stories")
		}
		jobCounts, err := services.Job.CountByStatus(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Failed to count jobs")
		}

		jobs := gin.H{}
		for status, n := range jobCounts {
			jobs[string(status)] = n
		}

		database := gin.H{"stories": storyCount}
		if pool, ok := db.(poolReporter); ok {
			database["pool"] = pool.PoolStats()
		}

		c.JSON(http.StatusOK, gin.H{
			"database":  database,
			"jobs":      jobs,
			"timestamp": time.Now().Format(time.RFC3339),
		})
	}
}

// recoveryMiddleware handles panics
func recoveryMiddleware(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Error().Interface("error", err).Str("path", c.Request.URL.Path).Msg("Panic recovered")
				c.JSON(http.StatusInternalServerError, gin.H{
					"error": "Internal server error",
				})
				c.Abort()
			}
		}()
		c.Next()
	}
}

// loggingMiddleware logs requests
func loggingMiddleware(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()

		event := log.Info()
		if statusCode >= 400 {
			event = log.Warn()
		}
		if statusCode >= 500 {
			event = log.Error()
		}

		event.
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", statusCode).
			Int("bytes", c.Writer.Size()).
			Dur("duration", duration).
			Str("client_ip", c.ClientIP()).
			Msg("Request completed")
	}
}

// corsMiddleware handles CORS
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Idempotency-Key")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Disposition")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// contextWithTimeout creates a context with timeout for handlers
func contextWithTimeout(c *gin.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), timeout)
}
