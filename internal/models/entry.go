package models

import "time"

// Entry is the merged domain representation of one catalog item. Core fields
// are written on every list or detail fetch; Detail, Source and Stream rows
// only exist after a detail fetch.
type Entry struct {
	ID   string `boltholdKey:"ID"`
	Type ItemType

	Name     string
	SortName string

	// Relational fields (episodes and seasons)
	ParentID      string
	SeriesID      string `boltholdIndex:"SeriesID"`
	SeriesName    string
	SeasonID      string
	SeasonNumber  *int // nil for movies and series
	EpisodeNumber *int // nil for everything but episodes

	ProductionYear int
	PremiereDate   *time.Time
	EndDate        *time.Time

	Images   ImageTagSet
	UserData UserData

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ImageTagSet holds image tag strings per role. The parent/series tags are
// fallbacks inherited from the owning season or series when an episode has no
// artwork of its own.
type ImageTagSet struct {
	Primary  string
	Thumb    string
	Backdrop string
	Logo     string

	ParentThumb   string
	SeriesPrimary string
}

// UserData is the per-user state embedded in an entry.
type UserData struct {
	Played                bool
	PlayCount             int
	IsFavorite            bool
	PlaybackPositionTicks int64 // resume position in 100ns ticks
}

// ResumePositionMs converts the stored resume ticks to milliseconds.
func (u UserData) ResumePositionMs() int64 {
	return u.PlaybackPositionTicks / TicksPerMillisecond
}

// Detail is the nested detail record for an entry, absent until the entry has
// been fetched at detail level.
type Detail struct {
	EntryID string `boltholdKey:"EntryID"`

	Overview        string
	Tagline         string
	CommunityRating float64
	OfficialRating  string
	RunTimeTicks    int64
	Container       string

	UpdatedAt time.Time
}

// ListMembership associates an entry with a named list at an ordinal
// position. It is how a query's result ordering is persisted and replayed.
type ListMembership struct {
	Key      string `boltholdKey:"Key"` // cacheKey + "/" + entryID
	CacheKey string `boltholdIndex:"CacheKey"`
	EntryID  string `boltholdIndex:"EntryID"`
	Position int
}

func membershipKey(cacheKey, entryID string) string {
	return cacheKey + "/" + entryID
}
