package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/amaumene/jellysync/internal/models"
	"github.com/sirupsen/logrus"
)

// HealthHandler reports process liveness and cache store reachability.
type HealthHandler struct {
	db     *models.Database
	logger *logrus.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *models.Database, logger *logrus.Logger) *HealthHandler {
	return &HealthHandler{
		db:     db,
		logger: logger,
	}
}

// ServeHTTP handles the health check endpoint
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if err := h.db.Ping(); err != nil {
		h.logger.WithError(err).Error("Cache store unreachable")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "degraded",
			"cache":  "unreachable",
		})
		return
	}

	json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
		"cache":  "ok",
	})
}
