// Package mdblist reads MDBList lists for list-based exclusions.
package mdblist

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/deleterr/deleterr/internal/lists"
	"github.com/deleterr/deleterr/internal/media"
	"github.com/deleterr/deleterr/internal/resilience"
)

const (
	DefaultBaseURL  = "https://api.mdblist.com"
	DefaultMaxItems = 1000
	pageSize        = 1000
)

// ErrInvalidURL is returned for URLs that do not point at an MDBList list.
var ErrInvalidURL = errors.New("invalid mdblist list url")

var listPattern = regexp.MustCompile(`^https?://(?:www\.)?mdblist\.com/lists/([^?#]+)`)

// ListPath extracts "user/list" from a mdblist.com list URL.
func ListPath(raw string) (string, error) {
	m := listPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidURL, raw)
	}
	path := strings.Trim(m[1], "/")
	if path == "" {
		return "", fmt.Errorf("%w: %s", ErrInvalidURL, raw)
	}
	return path, nil
}

type listItem struct {
	ID     json.Number `json:"id"`
	Title  string      `json:"title"`
	TmdbID json.Number `json:"tmdbid"`
	TvdbID json.Number `json:"tvdbid"`
}

func (i listItem) key(kind media.Kind) int64 {
	raw := i.TvdbID
	if kind == media.KindMovie {
		raw = i.TmdbID
		if raw == "" {
			raw = i.ID
		}
	}
	id, err := raw.Int64()
	if err != nil {
		return 0
	}
	return id
}

// page decodes either a bare array or the {"movies": [...], "shows": [...]} form.
type page []listItem

func (p *page) UnmarshalJSON(data []byte) error {
	var arr []listItem
	if err := json.Unmarshal(data, &arr); err == nil {
		*p = arr
		return nil
	}
	var split struct {
		Movies []listItem `json:"movies"`
		Shows  []listItem `json:"shows"`
	}
	if err := json.Unmarshal(data, &split); err != nil {
		return err
	}
	*p = append(split.Movies, split.Shows...)
	return nil
}

// Client reads MDBList lists.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	retry      resilience.RetryPolicy
	logger     zerolog.Logger
}

// NewClient creates an MDBList client.
func NewClient(apiKey string, httpClient *http.Client, logger zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		httpClient: httpClient,
		retry:      resilience.DefaultRetryPolicy(),
		logger:     logger.With().Str("component", "mdblist").Logger(),
	}
}

// SetBaseURL points the client at another API host.
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = strings.TrimRight(baseURL, "/")
}

// Items reads every list and indexes the entries by TMDB id for movies and
// TVDB id for shows. A list that fails is logged and skipped.
func (c *Client) Items(ctx context.Context, kind media.Kind, urls []string, maxItems int) (lists.Set, error) {
	if kind != media.KindMovie && kind != media.KindShow {
		return nil, fmt.Errorf("invalid media type %q", kind)
	}
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}

	set := lists.Set{}
	var errs []error
	for _, raw := range urls {
		items, err := c.listItems(ctx, raw, maxItems)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Error().Err(err).Str("list", raw).Msg("Failed to fetch MDBList list")
			errs = append(errs, err)
			continue
		}
		for _, it := range items {
			id := it.key(kind)
			if id == 0 {
				c.logger.Debug().Str("title", it.Title).Msg("List entry has no usable id")
				continue
			}
			if _, ok := set[id]; !ok {
				set[id] = raw
			}
		}
	}

	if len(set) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return set, nil
}

func (c *Client) listItems(ctx context.Context, raw string, maxItems int) ([]listItem, error) {
	path, err := ListPath(raw)
	if err != nil {
		return nil, err
	}

	var all []listItem
	for offset := 0; len(all) < maxItems; offset += pageSize {
		params := url.Values{
			"apikey": {c.apiKey},
			"limit":  {strconv.Itoa(pageSize)},
			"offset": {strconv.Itoa(offset)},
		}
		var items page
		header, err := lists.Do(ctx, c.httpClient, c.retry, c.logger, lists.Request{
			URL: fmt.Sprintf("%s/lists/%s/items/?%s", c.baseURL, path, params.Encode()),
		}, &items)
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			break
		}
		all = append(all, items...)
		if !strings.EqualFold(header.Get("X-Has-More"), "true") {
			break
		}
	}

	if len(all) > maxItems {
		all = all[:maxItems]
	}
	c.logger.Debug().Str("list", raw).Int("items", len(all)).Msg("Fetched MDBList list")
	return all, nil
}
