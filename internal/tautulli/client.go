package tautulli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
	"golang.org/x/time/rate"

	"github.com/deleterr/deleterr/internal/config"
	"github.com/deleterr/deleterr/internal/media"
	"github.com/deleterr/deleterr/internal/resilience"
)

const (
	historyPageSize    = 300
	maxMetadataWorkers = 10
)

// Client reads watch history from Tautulli.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      resilience.RetryPolicy
	logger     zerolog.Logger
	now        func() time.Time
}

// NewClient creates a Tautulli client.
func NewClient(baseURL, apiKey string, httpClient *http.Client, logger zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(25), maxMetadataWorkers),
		retry:      resilience.DefaultRetryPolicy(),
		logger:     logger.With().Str("component", "tautulli").Logger(),
		now:        time.Now,
	}
}

// Ping checks the URL and API key.
func (c *Client) Ping(ctx context.Context) error {
	return c.call(ctx, "status", nil, nil)
}

// RefreshLibrary asks Tautulli to refresh its media info for a section.
func (c *Client) RefreshLibrary(ctx context.Context, sectionKey string) error {
	params := url.Values{"section_id": {sectionKey}, "refresh": {"true"}}
	if err := c.call(ctx, "get_library_media_info", params, nil); err != nil {
		return fmt.Errorf("failed to refresh tautulli library %s: %w", sectionKey, err)
	}
	return nil
}

// Activity returns the most recent watch of every item of a library section,
// keyed by the item's GUID. Only history newer than the library's widest
// threshold is read; without thresholds the whole history is read.
func (c *Client) Activity(ctx context.Context, lib *config.Library, sectionKey string) (*media.History, error) {
	after := c.minDate(lib)
	if !after.IsZero() {
		c.logger.Debug().Str("library", lib.Name).Time("since", after).Msg("Fetching watch history")
	}

	entries, err := c.history(ctx, sectionKey, after)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return media.NewHistory(nil), nil
	}

	latest, users := mostRecent(entries)
	activities := c.resolveMetadata(ctx, latest, users)
	return media.NewHistory(activities), nil
}

func (c *Client) minDate(lib *config.Library) time.Time {
	days := -1
	for _, t := range []*int{lib.LastWatchedThreshold, lib.AddedAtThreshold} {
		if t != nil && *t > days {
			days = *t
		}
	}
	if days < 0 {
		return time.Time{}
	}
	return c.now().AddDate(0, 0, -days)
}

func (c *Client) history(ctx context.Context, sectionKey string, after time.Time) ([]historyEntry, error) {
	var all []historyEntry
	for start := 0; ; {
		params := url.Values{
			"section_id":       {sectionKey},
			"order_column":     {"date"},
			"order_dir":        {"asc"},
			"start":            {strconv.Itoa(start)},
			"length":           {strconv.Itoa(historyPageSize)},
			"include_activity": {"1"},
		}
		if !after.IsZero() {
			params.Set("after", after.Format("2006-01-02"))
		}

		var page historyPage
		if err := c.call(ctx, "get_history", params, &page); err != nil {
			return nil, fmt.Errorf("failed to fetch history: %w", err)
		}
		if len(page.Data) == 0 {
			break
		}
		all = append(all, page.Data...)
		start += len(page.Data)
	}

	c.logger.Debug().Int("entries", len(all)).Msg("Fetched history entries")
	return all, nil
}

// mostRecent keeps the latest entry per item and collects who watched each item.
func mostRecent(entries []historyEntry) ([]historyEntry, map[string][]string) {
	latest := make(map[string]historyEntry)
	var order []string
	users := make(map[string][]string)

	for _, e := range entries {
		key := e.key()
		if key == "" {
			continue
		}
		prev, ok := latest[key]
		if !ok {
			order = append(order, key)
		}
		if !ok || e.Stopped > prev.Stopped {
			latest[key] = e
		}
		if e.User != "" && !media.ContainsFold(users[key], e.User) {
			users[key] = append(users[key], e.User)
		}
	}

	out := make([]historyEntry, 0, len(order))
	for _, key := range order {
		out = append(out, latest[key])
	}
	return out, users
}

type metadataResult struct {
	activity media.Activity
	err      error
	key      string
}

func (c *Client) resolveMetadata(ctx context.Context, entries []historyEntry, users map[string][]string) []media.Activity {
	p := pool.NewWithResults[metadataResult]().WithMaxGoroutines(maxMetadataWorkers)
	for _, e := range entries {
		entry := e
		p.Go(func() metadataResult {
			key := entry.key()
			if err := c.limiter.Wait(ctx); err != nil {
				return metadataResult{key: key, err: err}
			}
			var md metadata
			if err := c.call(ctx, "get_metadata", url.Values{"rating_key": {key}}, &md); err != nil {
				return metadataResult{key: key, err: err}
			}
			return metadataResult{key: key, activity: media.Activity{
				GUID:        md.GUID,
				LastWatched: time.Unix(entry.Stopped, 0).UTC(),
				Title:       md.Title,
				Year:        int(md.Year),
				Users:       users[key],
			}}
		})
	}

	var activities []media.Activity
	for _, r := range p.Wait() {
		switch {
		case r.err != nil:
			c.logger.Warn().Err(r.err).Str("ratingKey", r.key).Msg("Failed to fetch metadata")
		case r.activity.GUID == "":
			c.logger.Debug().Str("ratingKey", r.key).Msg("Item no longer exists, skipping history")
		default:
			activities = append(activities, r.activity)
		}
	}

	sort.SliceStable(activities, func(i, j int) bool {
		return activities[i].GUID < activities[j].GUID
	})
	return activities
}

func (c *Client) call(ctx context.Context, cmd string, params url.Values, out any) error {
	query := url.Values{}
	for k, v := range params {
		query[k] = v
	}
	query.Set("apikey", c.apiKey)
	query.Set("cmd", cmd)
	u := c.baseURL + "/api/v2?" + query.Encode()

	data, err := resilience.Retry(ctx, c.retry, cmd, c.logger, func() ([]byte, error) {
		return c.doRequest(ctx, u)
	})
	if err != nil {
		return err
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", cmd, err)
	}
	if env.Response.Result != "success" {
		msg := "unknown error"
		if env.Response.Message != nil {
			msg = *env.Response.Message
		}
		return fmt.Errorf("tautulli %s failed: %s", cmd, msg)
	}
	if out == nil || len(env.Response.Data) == 0 || string(env.Response.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Response.Data, out); err != nil {
		return fmt.Errorf("failed to decode %s data: %w", cmd, err)
	}
	return nil
}

type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("tautulli returned status %d: %s", e.status, e.body)
}

func (e *statusError) Retryable() bool { return e.status >= http.StatusInternalServerError }

func (c *Client) doRequest(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{status: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}
	return body, nil
}
