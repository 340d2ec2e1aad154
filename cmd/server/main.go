package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pixel-tales-export-api/internal/api"
	"github.com/pixel-tales-export-api/internal/config"
	"github.com/pixel-tales-export-api/internal/database"
	"github.com/pixel-tales-export-api/internal/render"
	"github.com/pixel-tales-export-api/internal/repository"
	"github.com/pixel-tales-export-api/internal/service"
	"github.com/pixel-tales-export-api/internal/storage"
	"github.com/pixel-tales-export-api/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		boot := logger.New(config.LogConfig{})
		boot.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(cfg.Log)
	log.Info().Msg("Starting Pixel Tales export API server...")

	// Initialize database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if err := db.RunMigrations(cfg.Database.MigrationsPath); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	repos := repository.New(db)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	store, err := storage.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Storage.Backend).Msg("Failed to initialize artifact storage")
	}

	images := render.NewImageLoader(render.ImageLoaderConfig{
		FetchTimeout: cfg.Export.ImageFetchTimeout,
		CacheTTL:     cfg.Export.ImageCacheTTL,
		MaxBytes:     cfg.Export.ImageMaxBytes,
	}, log)

	services := service.NewServices(repos, store, images, cfg, log)

	// Start background job processor
	go services.Job.StartProcessor(ctx)
	log.Info().Msg("Background job processor started")

	router := api.NewRouter(services, db, cfg, log)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.ReadTimeout,
	}

	go func() {
		log.Info().Str("port", cfg.Server.Port).Str("storage", cfg.Storage.Backend).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	services.Job.StopProcessor()
	stop()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited gracefully")
}
