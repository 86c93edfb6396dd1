package jellyfin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/amaumene/jellysync/internal/models"
	"github.com/sirupsen/logrus"
)

func newTestClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	store, err := NewFileSessionStore(filepath.Join(t.TempDir(), "session.json"))
	if err != nil {
		t.Fatalf("failed to create session store: %v", err)
	}
	err = store.SaveSession(&Session{
		ServerURL:   serverURL,
		AccessToken: "tok",
		UserID:      "u1",
	})
	if err != nil {
		t.Fatalf("failed to save session: %v", err)
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewClient(store, logger)
}

func TestFetchBatchResolvesAllQueries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Emby-Token") != "tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/Users/u1/Items/Resume":
			fmt.Fprint(w, `{"Items":[{"Id":"r1"},{"Id":"r2"}],"TotalRecordCount":2}`)
		case "/Shows/NextUp":
			fmt.Fprint(w, `{"Items":[{"Id":"n1"}],"TotalRecordCount":1}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	resume := models.ResumeQuery(10)
	nextUp := models.NextUpQuery("", 10)

	results, err := client.FetchBatch(context.Background(), []models.Query{resume, nextUp})
	if err != nil {
		t.Fatalf("FetchBatch failed: %v", err)
	}

	if items := results[resume]; len(items) != 2 || items[0].ID != "r1" || items[1].ID != "r2" {
		t.Errorf("unexpected resume items: %+v", items)
	}
	if items := results[nextUp]; len(items) != 1 || items[0].ID != "n1" {
		t.Errorf("unexpected nextup items: %+v", items)
	}
}

func TestFetchBatchRequiresSessionBeforeNetwork(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		fmt.Fprint(w, `{"Items":[]}`)
	}))
	defer server.Close()

	store, err := NewFileSessionStore(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("failed to create session store: %v", err)
	}
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	client := NewClient(store, logger)

	_, err = client.FetchBatch(context.Background(), []models.Query{models.ResumeQuery(10)})
	var authErr *models.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError, got %v", err)
	}
	if got := requests.Load(); got != 0 {
		t.Errorf("expected no network calls without a session, got %d", got)
	}
}

func TestFetchBatchSingleFailureFailsWholeBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/Users/u1/Items/Resume":
			fmt.Fprint(w, `{"Items":[{"Id":"r1"}]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	queries := []models.Query{models.ResumeQuery(10), models.NextUpQuery("", 10)}

	results, err := client.FetchBatch(context.Background(), queries)
	var httpErr *models.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	if httpErr.StatusCode != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", httpErr.StatusCode)
	}
	if results != nil {
		t.Errorf("a failed batch must not return partial results, got %+v", results)
	}
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"Items":[{"Id":"r1"}]}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	resume := models.ResumeQuery(10)

	results, err := client.FetchBatch(context.Background(), []models.Query{resume})
	if err != nil {
		t.Fatalf("FetchBatch failed after transient errors: %v", err)
	}
	if items := results[resume]; len(items) != 1 || items[0].ID != "r1" {
		t.Errorf("unexpected items: %+v", items)
	}
	if got := requests.Load(); got != 3 {
		t.Errorf("expected 2 retried requests plus the success, got %d total", got)
	}
}

func TestFetchDoesNotRetryClientErrors(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	_, err := client.FetchBatch(context.Background(), []models.Query{models.ResumeQuery(10)})
	var httpErr *models.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	if got := requests.Load(); got != 1 {
		t.Errorf("a 404 must not be retried, got %d requests", got)
	}
}

func TestFetchBatchEmptyQueries(t *testing.T) {
	client := newTestClient(t, "http://unused")

	results, err := client.FetchBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("FetchBatch failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected empty result map, got %+v", results)
	}
}

func TestFetchLatestParsesBareArray(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Users/u1/Items/Latest" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("ParentId") != "view-1" {
			t.Errorf("expected ParentId=view-1, got %q", r.URL.Query().Get("ParentId"))
		}
		fmt.Fprint(w, `[{"Id":"l1"},{"Id":"l2"}]`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	latest := models.LatestQuery("view-1", "Movie", 16)

	results, err := client.FetchBatch(context.Background(), []models.Query{latest})
	if err != nil {
		t.Fatalf("FetchBatch failed: %v", err)
	}
	if items := results[latest]; len(items) != 2 || items[0].ID != "l1" {
		t.Errorf("unexpected latest items: %+v", items)
	}
}

func TestFetchUserViewsIsMemoized(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Users/u1/Views" {
			http.NotFound(w, r)
			return
		}
		requests.Add(1)
		fmt.Fprint(w, `{"Items":[{"Id":"view-1","Name":"Movies"}]}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	views := models.UserViewsQuery()

	for i := 0; i < 2; i++ {
		results, err := client.FetchBatch(context.Background(), []models.Query{views})
		if err != nil {
			t.Fatalf("FetchBatch failed: %v", err)
		}
		if items := results[views]; len(items) != 1 || items[0].ID != "view-1" {
			t.Errorf("unexpected views: %+v", items)
		}
	}

	if got := requests.Load(); got != 1 {
		t.Errorf("expected views to be served from the memo on repeat, got %d requests", got)
	}
}

func TestFetchDetailsParsesTopology(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Users/u1/Items/ep1" {
			http.NotFound(w, r)
			return
		}
		if fields := r.URL.Query().Get("Fields"); fields != "Overview,Taglines,MediaSources,MediaStreams" {
			t.Errorf("unexpected Fields parameter %q", fields)
		}
		fmt.Fprint(w, `{
			"Id": "ep1",
			"Name": "Pilot",
			"Type": "Episode",
			"Overview": "An overview",
			"Container": "mkv",
			"MediaSources": [{
				"Id": "src-1",
				"Container": "mkv",
				"SupportsDirectPlay": true,
				"SupportsTranscoding": true,
				"MediaStreams": [
					{"Index": 0, "Type": "Video", "Codec": "h264", "Width": 1920, "Height": 1080},
					{"Index": 1, "Type": "Audio", "Codec": "aac", "Channels": 6}
				]
			}]
		}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	detail, err := client.FetchDetails(context.Background(), "ep1")
	if err != nil {
		t.Fatalf("FetchDetails failed: %v", err)
	}

	if detail.ID != "ep1" || detail.Overview != "An overview" {
		t.Errorf("unexpected detail: %+v", detail)
	}
	if len(detail.MediaSources) != 1 {
		t.Fatalf("expected 1 media source, got %d", len(detail.MediaSources))
	}
	source := detail.MediaSources[0]
	if source.ID != "src-1" || !source.SupportsDirectPlay {
		t.Errorf("unexpected source: %+v", source)
	}
	if len(source.MediaStreams) != 2 || source.MediaStreams[0].Codec != "h264" {
		t.Errorf("unexpected streams: %+v", source.MediaStreams)
	}
}

func TestFetchDetailsEmptyBodyIsNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.FetchDetails(context.Background(), "gone")
	var notFound *models.ItemNotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("expected ItemNotFoundError on empty body, got %v", err)
	}
}
