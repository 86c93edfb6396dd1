package scheduler

import (
	"context"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/amaumene/jellysync/internal/controllers"
	"github.com/amaumene/jellysync/internal/models"
	"github.com/amaumene/jellysync/internal/services/jellyfin"
	"github.com/amaumene/jellysync/internal/utils"
	"github.com/sirupsen/logrus"
)

type stubFetcher struct {
	mu      sync.Mutex
	batches int
	items   map[string][]jellyfin.RawItem // keyed by cache key
}

func (f *stubFetcher) FetchBatch(ctx context.Context, queries []models.Query) (map[models.Query][]jellyfin.RawItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches++
	results := make(map[models.Query][]jellyfin.RawItem, len(queries))
	for _, q := range queries {
		results[q] = f.items[q.CacheKey()]
	}
	return results, nil
}

func (f *stubFetcher) FetchDetails(ctx context.Context, entryID string) (*jellyfin.RawItemDetail, error) {
	return &jellyfin.RawItemDetail{RawItem: jellyfin.RawItem{ID: entryID}}, nil
}

func (f *stubFetcher) batchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.batches
}

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestScheduler(t *testing.T, fetcher *stubFetcher, clock utils.Clock) (*Scheduler, *models.Database) {
	t.Helper()
	db, err := models.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	syncCtrl := controllers.NewSyncController(db, fetcher, logger)
	throttle := utils.NewRefreshThrottle(clock)
	queries := []models.Query{models.ResumeQuery(12), models.NextUpQuery("", 24)}
	return NewScheduler(syncCtrl, throttle, queries, 10*time.Minute, 5*time.Minute, logger), db
}

func TestForceRefreshPopulatesHomeAndLatestLists(t *testing.T) {
	fetcher := &stubFetcher{items: map[string][]jellyfin.RawItem{
		"views":         {{ID: "view-1", Name: "Movies", Type: "CollectionFolder"}},
		"resume":        {{ID: "r1"}},
		"nextup":        {{ID: "n1"}},
		"latest:view-1": {{ID: "l1"}},
	}}
	sched, db := newTestScheduler(t, fetcher, nil)

	sched.ForceRefresh()

	for key, wantID := range map[string]string{
		"views":         "view-1",
		"resume":        "r1",
		"nextup":        "n1",
		"latest:view-1": "l1",
	} {
		entries, err := db.GetList(key)
		if err != nil {
			t.Fatalf("GetList(%q) failed: %v", key, err)
		}
		if len(entries) != 1 || entries[0].ID != wantID {
			t.Errorf("list %q: expected [%s], got %+v", key, wantID, entries)
		}
	}
}

func TestRunThrottledSkipsWithinWindow(t *testing.T) {
	fetcher := &stubFetcher{items: map[string][]jellyfin.RawItem{}}
	clock := &manualClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	sched, _ := newTestScheduler(t, fetcher, clock)

	sched.runThrottled()
	after := fetcher.batchCount()
	if after == 0 {
		t.Fatal("first throttled run should refresh")
	}

	clock.advance(time.Minute)
	sched.runThrottled()
	if fetcher.batchCount() != after {
		t.Error("run within the window should be skipped")
	}

	clock.advance(15 * time.Minute)
	sched.runThrottled()
	if fetcher.batchCount() <= after {
		t.Error("run after the window elapsed should refresh")
	}
}

func TestForceRefreshResetsAutomaticWindow(t *testing.T) {
	fetcher := &stubFetcher{items: map[string][]jellyfin.RawItem{}}
	clock := &manualClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	sched, _ := newTestScheduler(t, fetcher, clock)

	sched.ForceRefresh()
	after := fetcher.batchCount()

	clock.advance(time.Minute)
	sched.runThrottled()
	if fetcher.batchCount() != after {
		t.Error("automatic run right after a forced refresh should be throttled")
	}
}
