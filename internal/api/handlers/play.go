package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/amaumene/jellysync/internal/controllers"
	"github.com/amaumene/jellysync/internal/models"
	"github.com/sirupsen/logrus"
)

// PlayHandler negotiates playback for a cached entry and returns the
// resulting stream locator.
type PlayHandler struct {
	playbackCtrl *controllers.PlaybackController
	logger       *logrus.Logger
}

// NewPlayHandler creates a new play handler
func NewPlayHandler(playbackCtrl *controllers.PlaybackController, logger *logrus.Logger) *PlayHandler {
	return &PlayHandler{
		playbackCtrl: playbackCtrl,
		logger:       logger,
	}
}

// ServeHTTP handles GET /play/{itemId}. Optional audioStreamIndex and
// subtitleStreamIndex query parameters select tracks.
func (h *PlayHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	entryID := strings.TrimPrefix(r.URL.Path, "/play/")
	if entryID == "" || strings.Contains(entryID, "/") {
		http.Error(w, "Missing item id", http.StatusBadRequest)
		return
	}

	opts := controllers.PlaybackOptions{
		AudioStreamIndex:    parseIndex(r.URL.Query().Get("audioStreamIndex")),
		SubtitleStreamIndex: parseIndex(r.URL.Query().Get("subtitleStreamIndex")),
	}

	decision, err := h.playbackCtrl.Negotiate(entryID, opts)
	if err != nil {
		h.logger.WithError(err).WithField("entry_id", entryID).Warn("Playback negotiation failed")
		switch err.(type) {
		case *models.ItemNotFoundError:
			http.Error(w, err.Error(), http.StatusNotFound)
		case *models.AuthError:
			http.Error(w, err.Error(), http.StatusUnauthorized)
		case *models.UnknownError:
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(decision)
}

func parseIndex(value string) *int {
	if value == "" {
		return nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return nil
	}
	return &n
}
