package jellyfin

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/amaumene/jellysync/internal/models"
	"github.com/cenkalti/backoff/v4"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

const (
	requestTimeout = 30 * time.Second
	maxRetries     = 3

	viewsCacheKey = "user-views"
	viewsCacheTTL = 1 * time.Minute
)

// Client handles communication with the catalog API
type Client struct {
	session    SessionStore
	httpClient *http.Client
	memo       *cache.Cache
	logger     *logrus.Logger
}

// NewClient creates a new catalog API client
func NewClient(session SessionStore, logger *logrus.Logger) *Client {
	return &Client{
		session:    session,
		httpClient: &http.Client{Timeout: requestTimeout},
		memo:       cache.New(viewsCacheTTL, 5*time.Minute),
		logger:     logger,
	}
}

// get performs an authenticated GET against the catalog API and returns the
// response body. 5xx responses are retried with exponential backoff;
// transport failures, auth rejections and other non-2xx responses are not.
func (c *Client) get(ctx context.Context, sess *Session, path string, query url.Values) ([]byte, error) {
	reqURL := sess.ServerURL + path
	if query != nil {
		reqURL += "?" + query.Encode()
	}

	c.logger.WithField("url", reqURL).Debug("Making catalog API request")

	var body []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Emby-Token", sess.AccessToken)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return backoff.Permanent(&models.NetworkError{Err: err})
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return backoff.Permanent(&models.NetworkError{Err: err})
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			return backoff.Permanent(&models.AuthError{Reason: "session rejected by server"})
		case resp.StatusCode >= 500:
			return &models.HTTPError{StatusCode: resp.StatusCode, Body: string(data)}
		case resp.StatusCode != http.StatusOK:
			return backoff.Permanent(&models.HTTPError{StatusCode: resp.StatusCode, Body: string(data)})
		}

		body = data
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		c.logger.WithError(err).WithField("path", path).Warn("Catalog API request failed")
		return nil, err
	}
	return body, nil
}
