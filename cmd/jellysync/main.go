package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/amaumene/jellysync/internal/api"
	"github.com/amaumene/jellysync/internal/config"
	"github.com/amaumene/jellysync/internal/controllers"
	"github.com/amaumene/jellysync/internal/models"
	"github.com/amaumene/jellysync/internal/scheduler"
	"github.com/amaumene/jellysync/internal/services/jellyfin"
	"github.com/amaumene/jellysync/internal/utils"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// 2. Setup logger
	logger := utils.NewLogger(cfg.LogLevel)
	logger.Info("Starting Jellysync")
	logger.WithField("config_dir", filepath.Dir(cfg.DatabaseFile)).Info("Configuration loaded")

	// 3. Initialize database
	db, err := models.NewDatabase(cfg.DatabaseFile)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()
	logger.Info("Database initialized")

	// 4. Initialize session store and catalog client
	sessionStore, err := jellyfin.NewFileSessionStore(cfg.SessionFile)
	if err != nil {
		return fmt.Errorf("failed to create session store: %w", err)
	}
	if _, err := sessionStore.GetSession(); err != nil {
		return fmt.Errorf("no usable session (%s): %w", cfg.SessionFile, err)
	}

	client := jellyfin.NewClient(sessionStore, logger)
	logger.Info("Catalog client initialized")

	// 5. Initialize controllers
	syncCtrl := controllers.NewSyncController(db, client, logger)
	playbackCtrl := controllers.NewPlaybackController(db, sessionStore, utils.NewDefaultCodecSupport(), logger)
	logger.Info("Controllers initialized")

	// 6. Initialize scheduler
	homeQueries := []models.Query{
		models.ResumeQuery(cfg.ResumeLimit),
		models.NextUpQuery("", cfg.NextUpLimit),
	}
	throttle := utils.NewRefreshThrottle(utils.SystemClock())
	sched := scheduler.NewScheduler(
		syncCtrl,
		throttle,
		homeQueries,
		time.Duration(cfg.RefreshWindowMinutes)*time.Minute,
		time.Duration(cfg.RefreshIntervalMinutes)*time.Minute,
		logger,
	)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer sched.Stop()

	// 7. Initialize HTTP server
	server := api.NewServer(cfg, db, playbackCtrl, sched, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverErrChan := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil {
			serverErrChan <- err
		}
	}()

	// 8. Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Jellysync is running")

	select {
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		logger.WithField("signal", sig).Info("Received shutdown signal")
		cancel()
		if err := server.Shutdown(context.Background()); err != nil {
			logger.WithError(err).Error("Error during server shutdown")
		}
	}

	logger.Info("Jellysync stopped")
	return nil
}
