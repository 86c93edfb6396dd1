package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/amaumene/jellysync/internal/controllers"
	"github.com/amaumene/jellysync/internal/models"
	"github.com/amaumene/jellysync/internal/services/jellyfin"
	"github.com/amaumene/jellysync/internal/utils"
	"github.com/sirupsen/logrus"
)

type staticSessionStore struct {
	sess *jellyfin.Session
}

func (s *staticSessionStore) GetSession() (*jellyfin.Session, error) {
	return s.sess, nil
}

func newPlayHandler(t *testing.T) *PlayHandler {
	t.Helper()
	db, err := models.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.UpsertEntry(&models.Entry{ID: "ep1", Type: models.ItemTypeEpisode}); err != nil {
		t.Fatalf("UpsertEntry failed: %v", err)
	}
	err = db.ReplaceDetail("ep1", &models.Detail{},
		[]*models.Source{{ID: "src1", Container: "mkv", SupportsDirectPlay: true, SupportsTranscoding: true}},
		map[string][]*models.Stream{"src1": {
			{Index: 0, Type: models.StreamTypeVideo, Codec: "h264"},
			{Index: 1, Type: models.StreamTypeAudio, Codec: "aac"},
		}})
	if err != nil {
		t.Fatalf("ReplaceDetail failed: %v", err)
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	session := &staticSessionStore{sess: &jellyfin.Session{
		ServerURL:   "http://srv",
		AccessToken: "tok",
		UserID:      "u1",
	}}
	ctrl := controllers.NewPlaybackController(db, session, utils.NewDefaultCodecSupport(), logger)
	return NewPlayHandler(ctrl, logger)
}

func TestPlayHandlerReturnsDecision(t *testing.T) {
	handler := newPlayHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/play/ep1", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var decision controllers.PlaybackDecision
	if err := json.NewDecoder(rec.Body).Decode(&decision); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if decision.Method != models.DeliveryDirectPlay {
		t.Errorf("expected direct play, got %q", decision.Method)
	}
	if decision.URL == "" {
		t.Error("expected a stream locator in the response")
	}
}

func TestPlayHandlerUnknownItem(t *testing.T) {
	handler := newPlayHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/play/nope", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestPlayHandlerRejectsNonGet(t *testing.T) {
	handler := newPlayHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/play/ep1", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}

func TestPlayHandlerMissingID(t *testing.T) {
	handler := newPlayHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/play/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}
