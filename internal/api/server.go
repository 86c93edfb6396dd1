package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/amaumene/jellysync/internal/api/handlers"
	"github.com/amaumene/jellysync/internal/api/middleware"
	"github.com/amaumene/jellysync/internal/config"
	"github.com/amaumene/jellysync/internal/controllers"
	"github.com/amaumene/jellysync/internal/models"
	"github.com/amaumene/jellysync/internal/scheduler"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Server represents the admin HTTP server
type Server struct {
	server       *http.Server
	db           *models.Database
	playbackCtrl *controllers.PlaybackController
	sched        *scheduler.Scheduler
	logger       *logrus.Logger
}

// NewServer creates a new admin HTTP server
func NewServer(cfg *config.Config, db *models.Database, playbackCtrl *controllers.PlaybackController, sched *scheduler.Scheduler, logger *logrus.Logger) *Server {
	s := &Server{
		db:           db,
		playbackCtrl: playbackCtrl,
		sched:        sched,
		logger:       logger,
	}

	mux := http.NewServeMux()
	s.setupRoutes(mux)

	s.server = &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      middleware.Logging(mux, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(mux *http.ServeMux) {
	healthHandler := handlers.NewHealthHandler(s.db, s.logger)
	mux.HandleFunc("/health", healthHandler.ServeHTTP)

	statusHandler := handlers.NewStatusHandler(s.db, s.logger)
	mux.HandleFunc("/status", statusHandler.ServeHTTP)

	refreshHandler := handlers.NewRefreshHandler(s.sched, s.logger)
	mux.HandleFunc("/refresh", refreshHandler.ServeHTTP)

	playHandler := handlers.NewPlayHandler(s.playbackCtrl, s.logger)
	mux.HandleFunc("/play/", playHandler.ServeHTTP)

	mux.Handle("/metrics", promhttp.Handler())
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	s.logger.WithField("addr", s.server.Addr).Info("Starting HTTP server")

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}
