// Package justwatch looks up streaming availability on JustWatch.
package justwatch

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/deleterr/deleterr/internal/lists"
	"github.com/deleterr/deleterr/internal/media"
	"github.com/deleterr/deleterr/internal/resilience"
)

const (
	DefaultEndpoint = "https://apis.justwatch.com/graphql"
	// AnyProvider matches a title that has at least one offer.
	AnyProvider = "any"
	maxResults  = 5
)

const searchQuery = `query GetSearchTitles($searchTitlesFilter: TitleFilter!, $country: Country!, $language: Language!, $first: Int!) {
  popularTitles(country: $country, filter: $searchTitlesFilter, first: $first, sortBy: POPULAR, sortRandomSeed: 0) {
    edges {
      node {
        objectId
        objectType
        content(country: $country, language: $language) {
          title
          originalReleaseYear
        }
        offers(country: $country, platform: WEB) {
          monetizationType
          package {
            packageId
            clearName
            technicalName
          }
        }
      }
    }
  }
}`

// Offer is one way to stream a title.
type Offer struct {
	MonetizationType string
	Provider         string
	ProviderName     string
}

// Title is a JustWatch search hit.
type Title struct {
	ObjectID int64
	Type     string
	Title    string
	Year     int
	Offers   []Offer
}

type searchResponse struct {
	Data struct {
		PopularTitles struct {
			Edges []struct {
				Node struct {
					ObjectID   int64  `json:"objectId"`
					ObjectType string `json:"objectType"`
					Content    struct {
						Title               string `json:"title"`
						OriginalReleaseYear int    `json:"originalReleaseYear"`
					} `json:"content"`
					Offers []struct {
						MonetizationType string `json:"monetizationType"`
						Package          struct {
							ClearName     string `json:"clearName"`
							TechnicalName string `json:"technicalName"`
						} `json:"package"`
					} `json:"offers"`
				} `json:"node"`
			} `json:"edges"`
		} `json:"popularTitles"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type cacheKey struct {
	country  string
	language string
	kind     media.Kind
	title    string
	year     int
}

// Client searches JustWatch. Lookups are cached until Reset.
type Client struct {
	endpoint   string
	country    string
	language   string
	httpClient *http.Client
	retry      resilience.RetryPolicy
	logger     zerolog.Logger

	cache *titleCache
}

type titleCache struct {
	mu      sync.Mutex
	entries map[cacheKey]*Title
}

// NewClient creates a JustWatch client with a default locale.
func NewClient(country, language string, httpClient *http.Client, logger zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if language == "" {
		language = "en"
	}
	return &Client{
		endpoint:   DefaultEndpoint,
		country:    country,
		language:   language,
		httpClient: httpClient,
		retry:      resilience.DefaultRetryPolicy(),
		logger:     logger.With().Str("component", "justwatch").Logger(),
		cache:      &titleCache{entries: make(map[cacheKey]*Title)},
	}
}

// SetEndpoint points the client at another GraphQL endpoint.
func (c *Client) SetEndpoint(endpoint string) {
	c.endpoint = endpoint
}

// Reset drops cached lookups of every locale.
func (c *Client) Reset() {
	c.cache.mu.Lock()
	defer c.cache.mu.Unlock()
	c.cache.entries = make(map[cacheKey]*Title)
}

// Locale returns a client bound to another country and language that shares
// the HTTP client and cache. Empty values keep the current locale.
func (c *Client) Locale(country, language string) *Client {
	if (country == "" || strings.EqualFold(country, c.country)) && (language == "" || language == c.language) {
		return c
	}
	clone := *c
	if country != "" {
		clone.country = country
	}
	if language != "" {
		clone.language = language
	}
	return &clone
}

// Find returns the search hit whose title and release year match exactly,
// or nil when there is none.
func (c *Client) Find(ctx context.Context, title string, year int, kind media.Kind) (*Title, error) {
	key := cacheKey{country: strings.ToUpper(c.country), language: c.language, kind: kind, title: strings.ToLower(title), year: year}
	c.cache.mu.Lock()
	if hit, ok := c.cache.entries[key]; ok {
		c.cache.mu.Unlock()
		return hit, nil
	}
	c.cache.mu.Unlock()

	results, err := c.Search(ctx, title, kind)
	if err != nil {
		return nil, err
	}

	var found *Title
	for i := range results {
		if strings.EqualFold(results[i].Title, title) && results[i].Year == year {
			found = &results[i]
			break
		}
	}

	c.cache.mu.Lock()
	c.cache.entries[key] = found
	c.cache.mu.Unlock()
	return found, nil
}

// Search runs a title search limited to the given media type.
func (c *Client) Search(ctx context.Context, title string, kind media.Kind) ([]Title, error) {
	filter := map[string]any{"searchQuery": title}
	switch kind {
	case media.KindMovie:
		filter["objectTypes"] = []string{"MOVIE"}
	case media.KindShow:
		filter["objectTypes"] = []string{"SHOW"}
	}

	body := map[string]any{
		"operationName": "GetSearchTitles",
		"query":         searchQuery,
		"variables": map[string]any{
			"searchTitlesFilter": filter,
			"country":            strings.ToUpper(c.country),
			"language":           c.language,
			"first":              maxResults,
		},
	}

	var resp searchResponse
	if _, err := lists.Do(ctx, c.httpClient, c.retry, c.logger, lists.Request{
		Method: http.MethodPost,
		URL:    c.endpoint,
		Body:   body,
	}, &resp); err != nil {
		return nil, fmt.Errorf("justwatch search failed: %w", err)
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("justwatch search failed: %s", resp.Errors[0].Message)
	}

	titles := make([]Title, 0, len(resp.Data.PopularTitles.Edges))
	for _, edge := range resp.Data.PopularTitles.Edges {
		n := edge.Node
		t := Title{ObjectID: n.ObjectID, Type: n.ObjectType, Title: n.Content.Title, Year: n.Content.OriginalReleaseYear}
		for _, o := range n.Offers {
			t.Offers = append(t.Offers, Offer{
				MonetizationType: o.MonetizationType,
				Provider:         o.Package.TechnicalName,
				ProviderName:     o.Package.ClearName,
			})
		}
		titles = append(titles, t)
	}
	return titles, nil
}

// AvailableOn reports whether the title is offered by one of the providers,
// matched on JustWatch technical names. "any" matches any offer. A title that
// cannot be found is not available anywhere.
func (c *Client) AvailableOn(ctx context.Context, title string, year int, kind media.Kind, providers []string) (bool, error) {
	found, err := c.Find(ctx, title, year, kind)
	if err != nil {
		return false, err
	}
	if found == nil {
		c.logger.Debug().Str("title", title).Int("year", year).Msg("No JustWatch match")
		return false, nil
	}

	if media.ContainsFold(providers, AnyProvider) && len(found.Offers) > 0 {
		return true, nil
	}
	for _, offer := range found.Offers {
		if media.ContainsFold(providers, offer.Provider) {
			c.logger.Debug().Str("title", title).Str("provider", offer.Provider).Msg("Title is streaming")
			return true, nil
		}
	}
	return false, nil
}
