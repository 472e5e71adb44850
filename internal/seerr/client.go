// Package seerr reads media requests from Seerr or Overseerr and resets the
// status of deleted media so it can be requested again.
package seerr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/deleterr/deleterr/internal/media"
	"github.com/deleterr/deleterr/internal/resilience"
)

const pageSize = 100

// ErrNotFound is returned when Seerr answers 404.
var ErrNotFound = errors.New("not found in seerr")

// RequestStatus is the Seerr request state.
type RequestStatus int

const (
	StatusPending  RequestStatus = 1
	StatusApproved RequestStatus = 2
	StatusDeclined RequestStatus = 3
)

func (s RequestStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusApproved:
		return "approved"
	case StatusDeclined:
		return "declined"
	default:
		return "unknown"
	}
}

// ParseStatus maps a configured status name to its value.
func ParseStatus(name string) (RequestStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "pending":
		return StatusPending, true
	case "approved":
		return StatusApproved, true
	case "declined":
		return StatusDeclined, true
	default:
		return 0, false
	}
}

// User is a Seerr account.
type User struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	PlexUsername string `json:"plexUsername"`
	DisplayName  string `json:"displayName"`
}

// Names returns every non-empty name the user is known by.
func (u User) Names() []string {
	var out []string
	for _, n := range []string{u.Username, u.Email, u.PlexUsername, u.DisplayName} {
		if n != "" && !media.ContainsFold(out, n) {
			out = append(out, n)
		}
	}
	return out
}

// Request is the most recent request for one media item.
type Request struct {
	ID          int64
	Status      RequestStatus
	MediaType   string
	RequestedBy User
	CreatedAt   time.Time
	MediaID     int64
	TmdbID      int64
}

// Age returns how long ago the request was made.
func (r *Request) Age(now time.Time) time.Duration {
	if r.CreatedAt.IsZero() {
		return 0
	}
	return now.Sub(r.CreatedAt)
}

// RequestedByAny reports whether the requester matches one of the names by
// username, email or Plex username. An empty list matches everyone.
func (r *Request) RequestedByAny(users []string) bool {
	if len(users) == 0 {
		return true
	}
	for _, name := range []string{r.RequestedBy.Username, r.RequestedBy.Email, r.RequestedBy.PlexUsername} {
		if name != "" && media.ContainsFold(users, name) {
			return true
		}
	}
	return false
}

type requestKey struct {
	mediaType string
	tmdbID    int64
}

// mediaType maps a record kind to the Seerr media type.
func mediaType(kind media.Kind) string {
	if kind == media.KindShow {
		return "tv"
	}
	return "movie"
}

// Client talks to the Seerr v1 API. Requests are fetched once and cached
// until Reset or a successful MarkDeleted.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	retry      resilience.RetryPolicy
	logger     zerolog.Logger

	mu       sync.Mutex
	requests map[requestKey]*Request
}

// NewClient creates a Seerr client.
func NewClient(baseURL, apiKey string, httpClient *http.Client, logger zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
		retry:      resilience.DefaultRetryPolicy(),
		logger:     logger.With().Str("component", "seerr").Logger(),
	}
}

// Reset drops the cached requests.
func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = nil
}

// Ping checks the server is reachable and logs its version.
func (c *Client) Ping(ctx context.Context) error {
	var status struct {
		Version string `json:"version"`
	}
	if err := c.get(ctx, "/status", nil, &status); err != nil {
		return fmt.Errorf("failed to validate connection: %w", err)
	}
	c.logger.Debug().Str("version", status.Version).Msg("Connected to Seerr")
	return nil
}

// Request returns the most recent request for the item, or nil when it was
// never requested.
func (c *Client) Request(ctx context.Context, kind media.Kind, tmdbID int64) (*Request, error) {
	if tmdbID == 0 {
		return nil, nil
	}
	all, err := c.allRequests(ctx)
	if err != nil {
		return nil, err
	}
	return all[requestKey{mediaType: mediaType(kind), tmdbID: tmdbID}], nil
}

type requestPage struct {
	PageInfo struct {
		Pages   int `json:"pages"`
		Page    int `json:"page"`
		Results int `json:"results"`
	} `json:"pageInfo"`
	Results []struct {
		ID          int64     `json:"id"`
		Status      int       `json:"status"`
		Type        string    `json:"type"`
		CreatedAt   time.Time `json:"createdAt"`
		RequestedBy User      `json:"requestedBy"`
		Media       struct {
			ID     int64 `json:"id"`
			TmdbID int64 `json:"tmdbId"`
		} `json:"media"`
	} `json:"results"`
}

func (c *Client) allRequests(ctx context.Context) (map[requestKey]*Request, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.requests != nil {
		return c.requests, nil
	}

	requests := make(map[requestKey]*Request)
	for page := 1; ; page++ {
		params := url.Values{
			"take": {strconv.Itoa(pageSize)},
			"skip": {strconv.Itoa((page - 1) * pageSize)},
			"sort": {"added"},
		}
		var resp requestPage
		if err := c.get(ctx, "/request", params, &resp); err != nil {
			return nil, fmt.Errorf("failed to fetch requests: %w", err)
		}
		if len(resp.Results) == 0 {
			break
		}

		// newest first, so the first request seen per item is the latest one
		for _, r := range resp.Results {
			if r.Media.TmdbID == 0 {
				continue
			}
			key := requestKey{mediaType: r.Type, tmdbID: r.Media.TmdbID}
			if _, ok := requests[key]; ok {
				continue
			}
			requests[key] = &Request{
				ID:          r.ID,
				Status:      RequestStatus(r.Status),
				MediaType:   r.Type,
				RequestedBy: r.RequestedBy,
				CreatedAt:   r.CreatedAt,
				MediaID:     r.Media.ID,
				TmdbID:      r.Media.TmdbID,
			}
		}

		if page >= resp.PageInfo.Pages {
			break
		}
	}

	c.requests = requests
	c.logger.Debug().Int("requests", len(requests)).Msg("Fetched Seerr requests")
	return requests, nil
}

// MarkDeleted removes the media entry from Seerr so the item shows as
// requestable again. It returns false when Seerr does not know the item.
func (c *Client) MarkDeleted(ctx context.Context, kind media.Kind, tmdbID int64) (bool, error) {
	mediaID, err := c.mediaID(ctx, kind, tmdbID)
	if err != nil {
		return false, err
	}
	if mediaID == 0 {
		c.logger.Debug().Int64("tmdbId", tmdbID).Msg("Media not found in Seerr")
		return false, nil
	}

	if _, err := c.doRequest(ctx, http.MethodDelete, "/media/"+strconv.FormatInt(mediaID, 10), nil); err != nil {
		return false, fmt.Errorf("failed to reset media %d: %w", mediaID, err)
	}
	c.Reset()
	c.logger.Debug().Int64("mediaId", mediaID).Int64("tmdbId", tmdbID).Msg("Reset Seerr media status")
	return true, nil
}

func (c *Client) mediaID(ctx context.Context, kind media.Kind, tmdbID int64) (int64, error) {
	if tmdbID == 0 {
		return 0, nil
	}
	if req, err := c.Request(ctx, kind, tmdbID); err == nil && req != nil && req.MediaID != 0 {
		return req.MediaID, nil
	}

	var details struct {
		MediaInfo *struct {
			ID int64 `json:"id"`
		} `json:"mediaInfo"`
	}
	err := c.get(ctx, fmt.Sprintf("/%s/%d", mediaType(kind), tmdbID), nil, &details)
	switch {
	case errors.Is(err, ErrNotFound):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("failed to look up media: %w", err)
	case details.MediaInfo == nil:
		return 0, nil
	default:
		return details.MediaInfo.ID, nil
	}
}

// statusError is a non-success answer other than 404.
type statusError struct {
	status int
	path   string
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.path, e.status, e.body)
}

func (e *statusError) Retryable() bool {
	return e.status >= http.StatusInternalServerError || e.status == http.StatusTooManyRequests
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	if len(params) > 0 {
		path += "?" + params.Encode()
	}
	data, err := resilience.Retry(ctx, c.retry, "GET "+path, c.logger, func() ([]byte, error) {
		return c.doRequest(ctx, http.MethodGet, path, nil)
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response from %s: %w", path, err)
	}
	return nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	if body == nil {
		body = http.NoBody
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/api/v1"+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &statusError{status: resp.StatusCode, path: path, body: strings.TrimSpace(string(data))}
	}
	return data, nil
}
