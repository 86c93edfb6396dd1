package jellyfin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"github.com/amaumene/jellysync/internal/models"
)

// FetchBatch resolves every query concurrently and returns per-query result
// sets. It requires an authenticated session before any network call is
// made. A single query failure fails the whole batch and cancels the
// remaining requests; no partial result is returned.
func (c *Client) FetchBatch(ctx context.Context, queries []models.Query) (map[models.Query][]RawItem, error) {
	results := make(map[models.Query][]RawItem, len(queries))
	if len(queries) == 0 {
		return results, nil
	}

	sess, err := c.session.GetSession()
	if err != nil {
		return nil, &models.AuthError{Reason: err.Error()}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)

	for _, query := range queries {
		wg.Add(1)
		go func(q models.Query) {
			defer wg.Done()

			items, err := c.fetchQuery(ctx, sess, q)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
					cancel()
				}
				return
			}
			results[q] = items
		}(query)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

// FetchDetails returns the full detail of one item, including its complete
// source/stream topology.
func (c *Client) FetchDetails(ctx context.Context, entryID string) (*RawItemDetail, error) {
	sess, err := c.session.GetSession()
	if err != nil {
		return nil, &models.AuthError{Reason: err.Error()}
	}

	query := url.Values{}
	query.Set("Fields", "Overview,Taglines,MediaSources,MediaStreams")

	path := fmt.Sprintf("/Users/%s/Items/%s", sess.UserID, entryID)
	body, err := c.get(ctx, sess, path, query)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, &models.ItemNotFoundError{ID: entryID}
	}

	var detail RawItemDetail
	if err := json.Unmarshal(body, &detail); err != nil {
		return nil, fmt.Errorf("failed to parse detail response: %w", err)
	}
	return &detail, nil
}

// fetchQuery maps one query variant onto its endpoint and returns the items
// in server order.
func (c *Client) fetchQuery(ctx context.Context, sess *Session, q models.Query) ([]RawItem, error) {
	switch q.Kind {
	case models.QueryResume:
		query := url.Values{}
		query.Set("MediaTypes", "Video")
		setLimit(query, q.Limit)
		return c.getItems(ctx, sess, fmt.Sprintf("/Users/%s/Items/Resume", sess.UserID), query)

	case models.QueryNextUp:
		query := url.Values{}
		query.Set("UserId", sess.UserID)
		if q.SeriesID != "" {
			query.Set("SeriesId", q.SeriesID)
		}
		setLimit(query, q.Limit)
		return c.getItems(ctx, sess, "/Shows/NextUp", query)

	case models.QueryLatest:
		// The Latest endpoint returns a bare item array, not the usual
		// paginated envelope.
		query := url.Values{}
		query.Set("ParentId", q.ParentID)
		if q.IncludeTypes != "" {
			query.Set("IncludeItemTypes", q.IncludeTypes)
		}
		setLimit(query, q.Limit)
		body, err := c.get(ctx, sess, fmt.Sprintf("/Users/%s/Items/Latest", sess.UserID), query)
		if err != nil {
			return nil, err
		}
		var items []RawItem
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, fmt.Errorf("failed to parse latest response: %w", err)
		}
		return items, nil

	case models.QueryUserViews:
		if cached, ok := c.memo.Get(viewsCacheKey); ok {
			return cached.([]RawItem), nil
		}
		items, err := c.getItems(ctx, sess, fmt.Sprintf("/Users/%s/Views", sess.UserID), nil)
		if err != nil {
			return nil, err
		}
		c.memo.Set(viewsCacheKey, items, viewsCacheTTL)
		return items, nil

	case models.QueryChildren:
		query := url.Values{}
		query.Set("ParentId", q.ParentID)
		setSort(query, q.SortBy, q.SortOrder)
		return c.getItems(ctx, sess, fmt.Sprintf("/Users/%s/Items", sess.UserID), query)

	case models.QueryBrowse:
		query := url.Values{}
		query.Set("ParentId", q.ParentID)
		if q.IncludeTypes != "" {
			query.Set("IncludeItemTypes", q.IncludeTypes)
		}
		if q.ExcludeTypes != "" {
			query.Set("ExcludeItemTypes", q.ExcludeTypes)
		}
		if q.Filters != "" {
			query.Set("Filters", q.Filters)
		}
		if q.Recursive {
			query.Set("Recursive", "true")
		}
		setSort(query, q.SortBy, q.SortOrder)
		setLimit(query, q.Limit)
		return c.getItems(ctx, sess, fmt.Sprintf("/Users/%s/Items", sess.UserID), query)

	default:
		return nil, &models.UnknownError{Message: fmt.Sprintf("unsupported query kind %q", q.Kind)}
	}
}

// getItems fetches and unwraps the standard paginated items envelope.
func (c *Client) getItems(ctx context.Context, sess *Session, path string, query url.Values) ([]RawItem, error) {
	body, err := c.get(ctx, sess, path, query)
	if err != nil {
		return nil, err
	}

	var resp itemsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse items response: %w", err)
	}
	return resp.Items, nil
}

func setLimit(query url.Values, limit int) {
	if limit > 0 {
		query.Set("Limit", strconv.Itoa(limit))
	}
}

func setSort(query url.Values, sortBy, sortOrder string) {
	if sortBy != "" {
		query.Set("SortBy", sortBy)
		if sortOrder != "" {
			query.Set("SortOrder", sortOrder)
		}
	}
}
