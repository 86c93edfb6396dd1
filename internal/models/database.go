package models

import (
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/timshannon/bolthold"
	"go.etcd.io/bbolt"
)

// Database wraps the bolthold store holding the mirrored catalog. All
// mutations go through it; multi-row writes run inside a single bolt
// transaction so readers observe either the pre-write or the fully
// post-write state, never an interleaving.
type Database struct {
	store    *bolthold.Store
	notifier *notifier
}

// NewDatabase opens (or creates) the catalog cache at path.
func NewDatabase(path string) (*Database, error) {
	store, err := bolthold.Open(path, 0600, &bolthold.Options{
		Options: &bbolt.Options{
			Timeout: 1 * time.Second,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Database{store: store, notifier: newNotifier()}, nil
}

// Close closes the database connection and stops all observation watchers.
func (db *Database) Close() error {
	db.notifier.closeAll()
	return db.store.Close()
}

// Ping verifies the underlying store is still reachable.
func (db *Database) Ping() error {
	return db.store.Bolt().View(func(*bbolt.Tx) error { return nil })
}

// UpsertEntry inserts or updates an entry's core fields by id. Detail,
// Source and Stream rows are separate records and are never touched here.
func (db *Database) UpsertEntry(entry *Entry) error {
	var changed bool
	err := db.store.Bolt().Update(func(tx *bbolt.Tx) error {
		var err error
		changed, err = db.txUpsertEntry(tx, entry)
		return err
	})
	if err != nil {
		return &DatabaseError{Op: "upsert entry", Err: err}
	}

	if changed {
		db.notifier.notify(entryTopic(entry.ID))
		db.notifier.notifyPrefix(topicListPrefix)
	}
	return nil
}

// UpsertDetail inserts or updates an entry's detail record.
func (db *Database) UpsertDetail(detail *Detail) error {
	detail.UpdatedAt = time.Now()
	if err := db.store.Upsert(detail.EntryID, detail); err != nil {
		return &DatabaseError{Op: "upsert detail", Err: err}
	}
	db.notifier.notify(entryTopic(detail.EntryID))
	return nil
}

// UpsertSource inserts or updates a single source row.
func (db *Database) UpsertSource(source *Source) error {
	if err := db.store.Upsert(source.ID, source); err != nil {
		return &DatabaseError{Op: "upsert source", Err: err}
	}
	db.notifier.notify(sourcesTopic(source.EntryID))
	return nil
}

// UpsertStream inserts or updates a single stream row.
func (db *Database) UpsertStream(stream *Stream) error {
	stream.Key = streamKey(stream.SourceID, stream.Index)
	if err := db.store.Upsert(stream.Key, stream); err != nil {
		return &DatabaseError{Op: "upsert stream", Err: err}
	}
	db.notifier.notify(streamsTopic(stream.SourceID))
	return nil
}

// ReplaceList atomically replaces the membership of the named list: every
// supplied entry's core fields are upserted, membership rows are written with
// their fetch-result position, and memberships for that cacheKey absent from
// the new set are removed. Entries that fall out of their last remaining list
// are swept from the store entirely; entries still referenced by another list
// are preserved.
func (db *Database) ReplaceList(cacheKey string, entries []*Entry) error {
	var (
		changedAny   bool
		sweptEntries []string
		sweptSources []string
	)

	err := db.store.Bolt().Update(func(tx *bbolt.Tx) error {
		keep := make(map[string]struct{}, len(entries))
		for pos, entry := range entries {
			changed, err := db.txUpsertEntry(tx, entry)
			if err != nil {
				return err
			}
			if changed {
				changedAny = true
			}
			m := &ListMembership{
				Key:      membershipKey(cacheKey, entry.ID),
				CacheKey: cacheKey,
				EntryID:  entry.ID,
				Position: pos,
			}
			if err := db.store.TxUpsert(tx, m.Key, m); err != nil {
				return err
			}
			keep[entry.ID] = struct{}{}
		}

		var existing []*ListMembership
		if err := db.store.TxFind(tx, &existing, bolthold.Where("CacheKey").Eq(cacheKey)); err != nil {
			return err
		}
		for _, m := range existing {
			if _, ok := keep[m.EntryID]; ok {
				continue
			}
			if err := db.store.TxDelete(tx, m.Key, &ListMembership{}); err != nil {
				return err
			}
			sourceIDs, swept, err := db.txSweepOrphan(tx, m.EntryID)
			if err != nil {
				return err
			}
			if swept {
				sweptEntries = append(sweptEntries, m.EntryID)
				sweptSources = append(sweptSources, sourceIDs...)
			}
		}
		return nil
	})
	if err != nil {
		return &DatabaseError{Op: "replace list", Err: err}
	}

	db.notifier.notify(listTopic(cacheKey))
	for _, entry := range entries {
		db.notifier.notify(entryTopic(entry.ID))
	}
	for _, id := range sweptEntries {
		db.notifier.notify(entryTopic(id), sourcesTopic(id))
	}
	for _, id := range sweptSources {
		db.notifier.notify(streamsTopic(id))
	}
	// Core-field updates are visible through every list the entry belongs
	// to, not just the one being replaced.
	if changedAny {
		db.notifier.notifyPrefix(topicListPrefix)
	}
	return nil
}

// ReplaceDetail atomically upserts an entry's detail record and replaces its
// full source/stream topology: old Source rows and their Streams are deleted,
// then the new rows are inserted, all in one transaction.
func (db *Database) ReplaceDetail(entryID string, detail *Detail, sources []*Source, streamsBySource map[string][]*Stream) error {
	var oldSourceIDs []string

	err := db.store.Bolt().Update(func(tx *bbolt.Tx) error {
		detail.EntryID = entryID
		detail.UpdatedAt = time.Now()
		if err := db.store.TxUpsert(tx, entryID, detail); err != nil {
			return err
		}

		var old []*Source
		if err := db.store.TxFind(tx, &old, bolthold.Where("EntryID").Eq(entryID)); err != nil {
			return err
		}
		for _, src := range old {
			oldSourceIDs = append(oldSourceIDs, src.ID)
			if err := db.store.TxDeleteMatching(tx, &Stream{}, bolthold.Where("SourceID").Eq(src.ID)); err != nil {
				return err
			}
			if err := db.store.TxDelete(tx, src.ID, &Source{}); err != nil {
				return err
			}
		}

		for ord, src := range sources {
			src.EntryID = entryID
			src.Ordinal = ord
			if err := db.store.TxUpsert(tx, src.ID, src); err != nil {
				return err
			}
			for _, st := range streamsBySource[src.ID] {
				st.SourceID = src.ID
				st.Key = streamKey(src.ID, st.Index)
				if err := db.store.TxUpsert(tx, st.Key, st); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return &DatabaseError{Op: "replace detail", Err: err}
	}

	db.notifier.notify(entryTopic(entryID))
	db.notifier.notify(sourcesTopic(entryID))
	for _, id := range oldSourceIDs {
		db.notifier.notify(streamsTopic(id))
	}
	for _, src := range sources {
		db.notifier.notify(streamsTopic(src.ID))
	}
	return nil
}

// Wipe clears every table in one transaction. Used on logout.
func (db *Database) Wipe() error {
	err := db.store.Bolt().Update(func(tx *bbolt.Tx) error {
		for _, dataType := range []interface{}{&ListMembership{}, &Stream{}, &Source{}, &Detail{}, &Entry{}} {
			if err := db.store.TxDeleteMatching(tx, dataType, &bolthold.Query{}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &DatabaseError{Op: "wipe", Err: err}
	}
	db.notifier.notifyAll()
	return nil
}

// GetEntry retrieves one entry by id.
func (db *Database) GetEntry(id string) (*Entry, error) {
	var entry Entry
	err := db.store.Get(id, &entry)
	if errors.Is(err, bolthold.ErrNotFound) {
		return nil, &ItemNotFoundError{ID: id}
	}
	if err != nil {
		return nil, &DatabaseError{Op: "get entry", Err: err}
	}
	return &entry, nil
}

// GetDetail retrieves an entry's detail record, or nil if the entry has not
// been fetched at detail level yet.
func (db *Database) GetDetail(entryID string) (*Detail, error) {
	var detail Detail
	err := db.store.Get(entryID, &detail)
	if errors.Is(err, bolthold.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &DatabaseError{Op: "get detail", Err: err}
	}
	return &detail, nil
}

// GetList returns the current entries of the named list in stored order.
func (db *Database) GetList(cacheKey string) ([]*Entry, error) {
	entries, err := db.loadList(cacheKey)
	if err != nil {
		return nil, &DatabaseError{Op: "get list", Err: err}
	}
	return entries, nil
}

// GetSourcesForEntry returns the sources of an entry in server order; the
// first one is the primary playback candidate.
func (db *Database) GetSourcesForEntry(entryID string) ([]*Source, error) {
	sources, err := db.loadSources(entryID)
	if err != nil {
		return nil, &DatabaseError{Op: "get sources", Err: err}
	}
	return sources, nil
}

// GetStreamsForSource returns the streams of a source ordered by track index.
func (db *Database) GetStreamsForSource(sourceID string) ([]*Stream, error) {
	streams, err := db.loadStreams(sourceID)
	if err != nil {
		return nil, &DatabaseError{Op: "get streams", Err: err}
	}
	return streams, nil
}

// GetSourceByID retrieves one source, or nil if it does not exist.
func (db *Database) GetSourceByID(id string) (*Source, error) {
	var source Source
	err := db.store.Get(id, &source)
	if errors.Is(err, bolthold.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &DatabaseError{Op: "get source", Err: err}
	}
	return &source, nil
}

// Stats summarizes row counts for the status endpoint.
type Stats struct {
	Entries     int            `json:"entries"`
	Details     int            `json:"details"`
	Sources     int            `json:"sources"`
	Streams     int            `json:"streams"`
	Memberships int            `json:"memberships"`
	Lists       map[string]int `json:"lists"`
}

// GetStats counts rows per table and per named list.
func (db *Database) GetStats() (*Stats, error) {
	stats := &Stats{Lists: make(map[string]int)}

	counts := []struct {
		dataType interface{}
		dst      *int
	}{
		{&Entry{}, &stats.Entries},
		{&Detail{}, &stats.Details},
		{&Source{}, &stats.Sources},
		{&Stream{}, &stats.Streams},
	}
	for _, c := range counts {
		n, err := db.store.Count(c.dataType, &bolthold.Query{})
		if err != nil {
			return nil, &DatabaseError{Op: "count rows", Err: err}
		}
		*c.dst = n
	}

	var memberships []*ListMembership
	if err := db.store.Find(&memberships, &bolthold.Query{}); err != nil {
		return nil, &DatabaseError{Op: "count memberships", Err: err}
	}
	stats.Memberships = len(memberships)
	for _, m := range memberships {
		stats.Lists[m.CacheKey]++
	}
	return stats, nil
}

// txUpsertEntry writes an entry's core fields, preserving CreatedAt across
// updates, and reports whether anything was written. Re-writing identical
// core fields is a no-op so that repeated refreshes with unchanged data leave
// stored rows byte-identical.
func (db *Database) txUpsertEntry(tx *bbolt.Tx, entry *Entry) (bool, error) {
	now := time.Now()
	var existing Entry
	err := db.store.TxGet(tx, entry.ID, &existing)
	switch {
	case err == nil:
		entry.CreatedAt = existing.CreatedAt
		entry.UpdatedAt = existing.UpdatedAt
		if reflect.DeepEqual(*entry, existing) {
			return false, nil
		}
	case errors.Is(err, bolthold.ErrNotFound):
		entry.CreatedAt = now
	default:
		return false, err
	}
	entry.UpdatedAt = now
	return true, db.store.TxUpsert(tx, entry.ID, entry)
}

// txSweepOrphan deletes an entry, and everything hanging off it, once it no
// longer belongs to any list. It returns the ids of the deleted sources and
// whether the entry was swept, so the caller can notify their observers after
// the transaction commits.
func (db *Database) txSweepOrphan(tx *bbolt.Tx, entryID string) ([]string, bool, error) {
	var remaining []*ListMembership
	if err := db.store.TxFind(tx, &remaining, bolthold.Where("EntryID").Eq(entryID)); err != nil {
		return nil, false, err
	}
	if len(remaining) > 0 {
		return nil, false, nil
	}

	var sources []*Source
	if err := db.store.TxFind(tx, &sources, bolthold.Where("EntryID").Eq(entryID)); err != nil {
		return nil, false, err
	}
	sourceIDs := make([]string, 0, len(sources))
	for _, src := range sources {
		sourceIDs = append(sourceIDs, src.ID)
		if err := db.store.TxDeleteMatching(tx, &Stream{}, bolthold.Where("SourceID").Eq(src.ID)); err != nil {
			return nil, false, err
		}
		if err := db.store.TxDelete(tx, src.ID, &Source{}); err != nil {
			return nil, false, err
		}
	}

	err := db.store.TxDelete(tx, entryID, &Detail{})
	if err != nil && !errors.Is(err, bolthold.ErrNotFound) {
		return nil, false, err
	}
	err = db.store.TxDelete(tx, entryID, &Entry{})
	if err != nil && !errors.Is(err, bolthold.ErrNotFound) {
		return nil, false, err
	}
	return sourceIDs, true, nil
}

// Read helpers shared by point reads and observation watchers. They return
// raw errors; the exported wrappers attach the DatabaseError taxonomy.

func (db *Database) loadList(cacheKey string) ([]*Entry, error) {
	var memberships []*ListMembership
	err := db.store.Find(&memberships, bolthold.Where("CacheKey").Eq(cacheKey).SortBy("Position"))
	if err != nil {
		return nil, err
	}

	entries := make([]*Entry, 0, len(memberships))
	for _, m := range memberships {
		var entry Entry
		err := db.store.Get(m.EntryID, &entry)
		if errors.Is(err, bolthold.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, &entry)
	}
	return entries, nil
}

func (db *Database) loadEntry(id string) (*Entry, error) {
	var entry Entry
	err := db.store.Get(id, &entry)
	if errors.Is(err, bolthold.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (db *Database) loadSources(entryID string) ([]*Source, error) {
	var sources []*Source
	err := db.store.Find(&sources, bolthold.Where("EntryID").Eq(entryID).SortBy("Ordinal"))
	if err != nil {
		return nil, err
	}
	return sources, nil
}

func (db *Database) loadStreams(sourceID string) ([]*Stream, error) {
	var streams []*Stream
	err := db.store.Find(&streams, bolthold.Where("SourceID").Eq(sourceID).SortBy("Index"))
	if err != nil {
		return nil, err
	}
	return streams, nil
}
