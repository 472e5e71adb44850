// Package trakt reads public Trakt lists for list-based exclusions.
package trakt

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

	"github.com/rs/zerolog"

	"github.com/deleterr/deleterr/internal/lists"
	"github.com/deleterr/deleterr/internal/media"
	"github.com/deleterr/deleterr/internal/resilience"
)

const (
	// DefaultBaseURL is the Trakt API endpoint.
	DefaultBaseURL = "https://api.trakt.tv"
	// DefaultMaxItems caps how many items are read from each list.
	DefaultMaxItems = 100
)

// ErrUnsupportedList is returned for list URLs that cannot be read.
var ErrUnsupportedList = errors.New("unsupported trakt list url")

var (
	periodPattern    = regexp.MustCompile(`^https://trakt\.tv/(movies|shows)/(favorited|watched|collected|played)/(daily|weekly|monthly|yearly|all)`)
	generalPattern   = regexp.MustCompile(`^https://trakt\.tv/(movies|shows)/(trending|popular|anticipated|boxoffice)`)
	watchlistPattern = regexp.MustCompile(`^https://trakt\.tv/users/([^/]+)/(watchlist|favorites)`)
	userListPattern  = regexp.MustCompile(`^https://trakt\.tv/users/([^/]+)/lists/([^/?#]+)`)
)

// ListRef is a parsed Trakt list URL.
type ListRef struct {
	Username string
	ListName string
	Period   string
}

// ParseURL extracts the user, list and period from a trakt.tv URL.
func ParseURL(raw string) (ListRef, error) {
	raw = strings.TrimSpace(raw)
	if m := periodPattern.FindStringSubmatch(raw); m != nil {
		return ListRef{ListName: m[2], Period: m[3]}, nil
	}
	if m := generalPattern.FindStringSubmatch(raw); m != nil {
		return ListRef{ListName: m[2]}, nil
	}
	if m := watchlistPattern.FindStringSubmatch(raw); m != nil {
		return ListRef{Username: m[1], ListName: m[2]}, nil
	}
	if m := userListPattern.FindStringSubmatch(raw); m != nil {
		return ListRef{Username: m[1], ListName: m[2]}, nil
	}
	return ListRef{}, fmt.Errorf("%w: %s", ErrUnsupportedList, raw)
}

// path returns the API path of the list for the given media type.
func (r ListRef) path(kind media.Kind) (string, error) {
	plural := string(kind) + "s"
	switch {
	case r.Username != "" && r.ListName == "watchlist":
		return fmt.Sprintf("/users/%s/watchlist/%s", url.PathEscape(r.Username), plural), nil
	case r.Username != "" && r.ListName == "favorites":
		return fmt.Sprintf("/users/%s/favorites/%s", url.PathEscape(r.Username), plural), nil
	case r.Username != "":
		return fmt.Sprintf("/users/%s/lists/%s/items/%s", url.PathEscape(r.Username), url.PathEscape(r.ListName), plural), nil
	case r.Period != "":
		return fmt.Sprintf("/%s/%s/%s", plural, r.ListName, r.Period), nil
	case r.ListName == "boxoffice" && kind != media.KindMovie:
		return "", fmt.Errorf("%w: box office only exists for movies", ErrUnsupportedList)
	case r.ListName != "":
		return fmt.Sprintf("/%s/%s", plural, r.ListName), nil
	default:
		return "", ErrUnsupportedList
	}
}

type ids struct {
	Trakt int64  `json:"trakt"`
	Tmdb  int64  `json:"tmdb"`
	Tvdb  int64  `json:"tvdb"`
	Imdb  string `json:"imdb"`
}

type entry struct {
	Title string `json:"title"`
	Year  int    `json:"year"`
	IDs   ids    `json:"ids"`
}

// item covers both bare entries (popular) and wrapped ones (trending, lists).
type item struct {
	IDs   *ids   `json:"ids"`
	Movie *entry `json:"movie"`
	Show  *entry `json:"show"`
}

func (i item) ids() *ids {
	switch {
	case i.Movie != nil:
		return &i.Movie.IDs
	case i.Show != nil:
		return &i.Show.IDs
	default:
		return i.IDs
	}
}

// Client reads Trakt lists.
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	retry        resilience.RetryPolicy
	logger       zerolog.Logger
}

// NewClient creates a Trakt client for the given API application.
func NewClient(clientID, clientSecret string, httpClient *http.Client, logger zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:      DefaultBaseURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   httpClient,
		retry:        resilience.DefaultRetryPolicy(),
		logger:       logger.With().Str("component", "trakt").Logger(),
	}
}

// SetBaseURL points the client at another API host.
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = strings.TrimRight(baseURL, "/")
}

// Ping verifies the client id by reading one trending list.
func (c *Client) Ping(ctx context.Context) error {
	var out []map[string]any
	return c.get(ctx, "/lists/trending", url.Values{"limit": {"1"}}, &out)
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
		found, err := c.listItems(ctx, kind, raw, maxItems)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Error().Err(err).Str("list", raw).Msg("Failed to fetch Trakt list")
			errs = append(errs, err)
			continue
		}
		for _, id := range found {
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

func (c *Client) listItems(ctx context.Context, kind media.Kind, raw string, maxItems int) ([]int64, error) {
	ref, err := ParseURL(raw)
	if err != nil {
		return nil, err
	}
	path, err := ref.path(kind)
	if err != nil {
		return nil, err
	}

	var items []item
	params := url.Values{"limit": {strconv.Itoa(maxItems)}, "page": {"1"}}
	if err := c.get(ctx, path, params, &items); err != nil {
		return nil, err
	}

	out := make([]int64, 0, len(items))
	for _, it := range items {
		id := it.ids()
		if id == nil {
			continue
		}
		key := id.Tmdb
		if kind == media.KindShow {
			key = id.Tvdb
		}
		if key == 0 {
			c.logger.Debug().Str("list", raw).Int64("trakt", id.Trakt).Msg("List entry has no usable id")
			continue
		}
		out = append(out, key)
	}

	c.logger.Debug().Str("list", raw).Int("items", len(out)).Msg("Fetched Trakt list")
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	_, err := lists.Do(ctx, c.httpClient, c.retry, c.logger, lists.Request{
		URL: u,
		Headers: map[string]string{
			"trakt-api-version": "2",
			"trakt-api-key":     c.clientID,
		},
	}, out)
	return err
}
