package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/amaumene/jellysync/internal/scheduler"
	"github.com/sirupsen/logrus"
)

// RefreshHandler triggers a forced refresh of the home lists, bypassing the
// throttle window.
type RefreshHandler struct {
	sched  *scheduler.Scheduler
	logger *logrus.Logger
}

// NewRefreshHandler creates a new refresh handler
func NewRefreshHandler(sched *scheduler.Scheduler, logger *logrus.Logger) *RefreshHandler {
	return &RefreshHandler{
		sched:  sched,
		logger: logger,
	}
}

// ServeHTTP handles the refresh endpoint
func (h *RefreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	go h.sched.ForceRefresh()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "refresh started"})
}
