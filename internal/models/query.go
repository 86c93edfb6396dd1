package models

import "strings"

// QueryKind identifies one variant of the query union.
type QueryKind string

const (
	QueryResume    QueryKind = "resume"
	QueryNextUp    QueryKind = "nextup"
	QueryLatest    QueryKind = "latest"
	QueryBrowse    QueryKind = "browse"
	QueryUserViews QueryKind = "views"
	QueryChildren  QueryKind = "children"
)

// Query identifies what to fetch from the remote catalog. It carries only
// comparable fields so that two queries of the same shape compare equal and a
// Query can be used directly as a map key.
type Query struct {
	Kind QueryKind

	ParentID     string
	SeriesID     string
	IncludeTypes string // comma-separated item types
	ExcludeTypes string
	Filters      string
	SortBy       string
	SortOrder    string
	Recursive    bool
	Limit        int
}

// CacheKey is the stable string naming the result list of this query in the
// local cache. Queries that differ only in Limit share a key: they are views
// of the same list.
func (q Query) CacheKey() string {
	switch q.Kind {
	case QueryResume:
		return "resume"
	case QueryNextUp:
		if q.SeriesID != "" {
			return "nextup:" + q.SeriesID
		}
		return "nextup"
	case QueryLatest:
		return "latest:" + q.ParentID
	case QueryUserViews:
		return "views"
	case QueryChildren:
		return "children:" + q.ParentID
	case QueryBrowse:
		parts := []string{"browse", q.ParentID}
		if q.IncludeTypes != "" {
			parts = append(parts, q.IncludeTypes)
		}
		if q.Filters != "" {
			parts = append(parts, q.Filters)
		}
		if q.SortBy != "" {
			parts = append(parts, q.SortBy+":"+q.SortOrder)
		}
		return strings.Join(parts, ":")
	default:
		return string(q.Kind)
	}
}

// ResumeQuery fetches the user's in-progress items.
func ResumeQuery(limit int) Query {
	return Query{Kind: QueryResume, Limit: limit}
}

// NextUpQuery fetches the next unwatched episodes across series, or for a
// single series when seriesID is non-empty.
func NextUpQuery(seriesID string, limit int) Query {
	return Query{Kind: QueryNextUp, SeriesID: seriesID, Limit: limit}
}

// LatestQuery fetches the most recently added items of a library view.
func LatestQuery(parentID, includeTypes string, limit int) Query {
	return Query{Kind: QueryLatest, ParentID: parentID, IncludeTypes: includeTypes, Limit: limit}
}

// UserViewsQuery fetches the user's top-level library views.
func UserViewsQuery() Query {
	return Query{Kind: QueryUserViews}
}

// ChildrenQuery fetches the direct children of an item (seasons of a series,
// episodes of a season).
func ChildrenQuery(parentID string) Query {
	return Query{Kind: QueryChildren, ParentID: parentID, SortBy: "SortName", SortOrder: "Ascending"}
}

// BrowseQuery fetches a filtered, sorted slice of a library view.
func BrowseQuery(parentID, includeTypes, sortBy, sortOrder string, recursive bool, limit int) Query {
	return Query{
		Kind:         QueryBrowse,
		ParentID:     parentID,
		IncludeTypes: includeTypes,
		SortBy:       sortBy,
		SortOrder:    sortOrder,
		Recursive:    recursive,
		Limit:        limit,
	}
}
