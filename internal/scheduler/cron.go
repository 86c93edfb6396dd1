package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/amaumene/jellysync/internal/controllers"
	"github.com/amaumene/jellysync/internal/metrics"
	"github.com/amaumene/jellysync/internal/models"
	"github.com/amaumene/jellysync/internal/utils"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Scheduler keeps the home-screen lists fresh: a cron job attempts a refresh
// through the throttle, and ForceRefresh bypasses the window for explicit
// user-initiated refresh.
type Scheduler struct {
	cron     *cron.Cron
	syncCtrl *controllers.SyncController
	throttle *utils.RefreshThrottle
	queries  []models.Query
	window   time.Duration
	interval time.Duration
	logger   *logrus.Logger
}

// NewScheduler creates a new scheduler. queries are the lists refreshed on
// every run; window is the throttle window for automatic refresh; interval is
// how often the cron job attempts one.
func NewScheduler(
	syncCtrl *controllers.SyncController,
	throttle *utils.RefreshThrottle,
	queries []models.Query,
	window time.Duration,
	interval time.Duration,
	logger *logrus.Logger,
) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		syncCtrl: syncCtrl,
		throttle: throttle,
		queries:  queries,
		window:   window,
		interval: interval,
		logger:   logger,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.logger.Info("Starting scheduler")

	spec := fmt.Sprintf("@every %s", s.interval)
	_, err := s.cron.AddFunc(spec, s.runThrottled)
	if err != nil {
		return fmt.Errorf("failed to add refresh job: %w", err)
	}

	s.cron.Start()
	s.logger.Info("Scheduler started")

	// Populate the cache immediately on startup
	go s.runThrottled()

	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	s.cron.Stop()
}

// ForceRefresh runs a refresh regardless of the window and resets it.
func (s *Scheduler) ForceRefresh() {
	s.logger.Info("Forced refresh requested")
	s.throttle.Force(s.refresh)
}

func (s *Scheduler) runThrottled() {
	if !s.throttle.Attempt(s.window, s.refresh) {
		s.logger.Debug("Refresh window not elapsed, skipping")
		metrics.RefreshSkipped.Inc()
	}
}

// refresh syncs the user's views first, then the home lists plus a latest
// list per view.
func (s *Scheduler) refresh() {
	ctx := context.Background()

	queries := make([]models.Query, len(s.queries))
	copy(queries, s.queries)
	if err := s.syncCtrl.RefreshList(ctx, models.UserViewsQuery()); err != nil {
		s.logger.WithError(err).Error("Failed to refresh user views")
	} else {
		queries = append(queries, s.latestQueries()...)
	}

	if err := s.syncCtrl.RefreshLists(ctx, queries); err != nil {
		s.logger.WithError(err).Error("Refresh failed")
		metrics.RefreshRuns.WithLabelValues("error").Inc()
		return
	}

	s.logger.WithField("lists", len(queries)).Info("Refresh completed")
	metrics.RefreshRuns.WithLabelValues("success").Inc()
}

// latestQueries derives one recently-added list per cached library view.
func (s *Scheduler) latestQueries() []models.Query {
	views, err := s.syncCtrl.GetList(models.UserViewsQuery().CacheKey())
	if err != nil {
		s.logger.WithError(err).Warn("Failed to read cached views")
		return nil
	}

	queries := make([]models.Query, 0, len(views))
	for _, view := range views {
		queries = append(queries, models.LatestQuery(view.ID, "", 16))
	}
	return queries
}
