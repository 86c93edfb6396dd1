package controllers

import (
	"context"
	"sync"

	"github.com/amaumene/jellysync/internal/models"
	"github.com/amaumene/jellysync/internal/services/jellyfin"
	"github.com/sirupsen/logrus"
)

// fetcher abstracts the remote catalog fetch surface (consumer-defined
// interface, satisfied by *jellyfin.Client).
type fetcher interface {
	FetchBatch(ctx context.Context, queries []models.Query) (map[models.Query][]jellyfin.RawItem, error)
	FetchDetails(ctx context.Context, entryID string) (*jellyfin.RawItemDetail, error)
}

// SyncController orchestrates observation (cache to domain stream) and
// synchronization (remote to cache). Reads are served from the local store;
// refresh operations reconcile it against the remote catalog.
type SyncController struct {
	db      *models.Database
	fetcher fetcher
	logger  *logrus.Logger
}

// NewSyncController creates a new sync controller
func NewSyncController(db *models.Database, fetcher fetcher, logger *logrus.Logger) *SyncController {
	return &SyncController{
		db:      db,
		fetcher: fetcher,
		logger:  logger,
	}
}

// ObserveItems returns a live view of the query's cached result list.
func (c *SyncController) ObserveItems(query models.Query) *models.Subscription[[]*models.Entry] {
	return c.db.ObserveList(query.CacheKey())
}

// ObserveItem returns a live view of one cached entry.
func (c *SyncController) ObserveItem(id string) *models.Subscription[*models.Entry] {
	return c.db.ObserveEntry(id)
}

// RefreshList fetches one query and transactionally replaces its cached list.
func (c *SyncController) RefreshList(ctx context.Context, query models.Query) error {
	return c.RefreshLists(ctx, []models.Query{query})
}

// RefreshLists fetches all queries in one concurrent batch and then replaces
// each cached list. A fetch failure aborts before any cache write. Each
// list's replace is its own transaction: one list failing to write does not
// roll back siblings already written; the first write error is reported after
// the remaining lists have been attempted.
func (c *SyncController) RefreshLists(ctx context.Context, queries []models.Query) error {
	results, err := c.fetcher.FetchBatch(ctx, queries)
	if err != nil {
		return wrapError(err)
	}

	var firstErr error
	for _, query := range queries {
		items := results[query]
		entries := make([]*models.Entry, 0, len(items))
		for _, item := range items {
			entries = append(entries, rawToEntry(item))
		}

		if err := c.db.ReplaceList(query.CacheKey(), entries); err != nil {
			c.logger.WithError(err).WithField("cache_key", query.CacheKey()).Error("Failed to replace list")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		c.logger.WithFields(logrus.Fields{
			"cache_key": query.CacheKey(),
			"count":     len(entries),
		}).Debug("List refreshed")
	}
	return firstErr
}

// RefreshItem fetches one entry at detail level and replaces its detail and
// source/stream topology.
func (c *SyncController) RefreshItem(ctx context.Context, entryID string) error {
	detail, err := c.fetcher.FetchDetails(ctx, entryID)
	if err != nil {
		return wrapError(err)
	}

	if err := c.db.UpsertEntry(rawToEntry(detail.RawItem)); err != nil {
		return err
	}

	d, sources, streamsBySource := rawDetailToRecords(detail)
	if err := c.db.ReplaceDetail(entryID, d, sources, streamsBySource); err != nil {
		return err
	}

	c.logger.WithFields(logrus.Fields{
		"entry_id": entryID,
		"sources":  len(sources),
	}).Debug("Item refreshed")
	return nil
}

// GetList returns the current cached entries of a named list.
func (c *SyncController) GetList(cacheKey string) ([]*models.Entry, error) {
	return c.db.GetList(cacheKey)
}

// GetSource looks up one cached source; nil when absent.
func (c *SyncController) GetSource(sourceID string) (*models.Source, error) {
	return c.db.GetSourceByID(sourceID)
}

// StreamOptionsSubscription tracks the stream list of an entry's current
// primary source.
type StreamOptionsSubscription struct {
	ch   chan []*models.Stream
	done chan struct{}
	once sync.Once
}

// Updates is the snapshot channel of the primary source's streams.
func (s *StreamOptionsSubscription) Updates() <-chan []*models.Stream { return s.ch }

// Close detaches the subscription and stops the tracking goroutine.
func (s *StreamOptionsSubscription) Close() {
	s.once.Do(func() { close(s.done) })
}

// ObserveStreamOptionsForEntry follows the entry's primary source and emits
// that source's streams. When the primary source's id changes, the old
// stream subscription is abandoned and a new one adopted, so the sequence
// tracks whichever source is currently primary without the caller
// resubscribing.
func (c *SyncController) ObserveStreamOptionsForEntry(entryID string) *StreamOptionsSubscription {
	sub := &StreamOptionsSubscription{
		ch:   make(chan []*models.Stream, 1),
		done: make(chan struct{}),
	}
	go c.trackPrimarySource(entryID, sub)
	return sub
}

func (c *SyncController) trackPrimarySource(entryID string, sub *StreamOptionsSubscription) {
	sources := c.db.ObserveSourcesForEntry(entryID)
	defer sources.Close()

	var (
		currentID string
		inner     *models.Subscription[[]*models.Stream]
	)
	defer func() {
		if inner != nil {
			inner.Close()
		}
	}()

	// A nil inner channel blocks its select case until a primary source
	// exists.
	innerUpdates := func() <-chan []*models.Stream {
		if inner == nil {
			return nil
		}
		return inner.Updates()
	}

	for {
		select {
		case <-sub.done:
			return

		case snapshot := <-sources.Updates():
			primary := ""
			if len(snapshot) > 0 {
				primary = snapshot[0].ID
			}
			if primary == currentID && (inner != nil || primary == "") {
				continue
			}
			currentID = primary
			if inner != nil {
				inner.Close()
				inner = nil
			}
			if primary == "" {
				pushLatest(sub.ch, nil)
				continue
			}
			inner = c.db.ObserveStreamsForSource(primary)

		case streams := <-innerUpdates():
			pushLatest(sub.ch, streams)
		}
	}
}

// pushLatest delivers with latest-wins semantics: an undrained snapshot is
// replaced rather than blocking the producer.
func pushLatest(ch chan []*models.Stream, v []*models.Stream) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// wrapError folds collaborator errors into the typed taxonomy so callers can
// match on error kind without knowing collaborator internals.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	switch err.(type) {
	case *models.AuthError, *models.HTTPError, *models.NetworkError,
		*models.DatabaseError, *models.ItemNotFoundError, *models.UnknownError:
		return err
	default:
		return &models.UnknownError{Message: "refresh failed", Err: err}
	}
}
