package arr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/deleterr/deleterr/internal/media"
	"github.com/deleterr/deleterr/internal/resilience"
)

// Kind identifies the arr application behind a Client.
type Kind string

const (
	KindRadarr Kind = "radarr"
	KindSonarr Kind = "sonarr"
)

var (
	// ErrNotFound is returned when the arr API answers 404.
	ErrNotFound = errors.New("not found")
	// ErrUnsupported is returned when a call does not apply to the client's kind.
	ErrUnsupported = errors.New("operation not supported by this instance")
)

// ServerError is a non-success answer other than 404.
type ServerError struct {
	Status int
	Method string
	Path   string
	Body   string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("%s %s returned status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// InUse reports whether the server refused because a file is in use or locked.
func (e *ServerError) InUse() bool {
	body := strings.ToLower(e.Body)
	return strings.Contains(body, "in use") || strings.Contains(body, "locked")
}

// Retryable reports whether repeating the request may succeed.
func (e *ServerError) Retryable() bool {
	return e.Status >= http.StatusInternalServerError || e.Status == http.StatusTooManyRequests
}

// Settings identifies one Radarr or Sonarr instance.
type Settings struct {
	Name   string
	URL    string
	APIKey string
}

// Client talks to the Radarr or Sonarr v3 API.
type Client struct {
	name       string
	kind       Kind
	baseURL    string
	apiKey     string
	httpClient *http.Client
	retry      resilience.RetryPolicy
	logger     zerolog.Logger

	mu       sync.Mutex
	tags     []media.Tag
	profiles []media.QualityProfile
}

// New creates a client. A nil httpClient gets a default with a 60s timeout.
func New(kind Kind, settings Settings, httpClient *http.Client, logger zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		name:       settings.Name,
		kind:       kind,
		baseURL:    strings.TrimRight(settings.URL, "/"),
		apiKey:     settings.APIKey,
		httpClient: httpClient,
		retry:      resilience.DefaultRetryPolicy(),
		logger:     logger.With().Str("component", string(kind)).Str("instance", settings.Name).Logger(),
	}
}

// SetRetryPolicy overrides the retry policy used for reads.
func (c *Client) SetRetryPolicy(p resilience.RetryPolicy) {
	c.retry = p
}

// Name returns the configured instance name.
func (c *Client) Name() string { return c.name }

// Kind returns the media kind this instance manages.
func (c *Client) Kind() media.Kind {
	if c.kind == KindSonarr {
		return media.KindShow
	}
	return media.KindMovie
}

// ResetCache drops cached tags and quality profiles so the next run refetches them.
func (c *Client) ResetCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tags = nil
	c.profiles = nil
}

// Ping verifies the URL and API key point at the expected application.
func (c *Client) Ping(ctx context.Context) error {
	var status struct {
		AppName string `json:"appName"`
		Version string `json:"version"`
	}
	if err := c.get(ctx, "/api/v3/system/status", &status); err != nil {
		return fmt.Errorf("failed to validate connection: %w", err)
	}

	expected := "Radarr"
	if c.kind == KindSonarr {
		expected = "Sonarr"
	}
	if !strings.EqualFold(status.AppName, expected) {
		return fmt.Errorf("expected %s but connected to %s", expected, status.AppName)
	}
	return nil
}

// DiskSpace returns the free space of every path the instance reports.
func (c *Client) DiskSpace(ctx context.Context) ([]media.DiskSpace, error) {
	var resp []struct {
		Path       string `json:"path"`
		Label      string `json:"label"`
		FreeSpace  int64  `json:"freeSpace"`
		TotalSpace int64  `json:"totalSpace"`
	}
	if err := c.get(ctx, "/api/v3/diskspace", &resp); err != nil {
		return nil, fmt.Errorf("failed to get disk space: %w", err)
	}

	out := make([]media.DiskSpace, len(resp))
	for i, d := range resp {
		out[i] = media.DiskSpace{Path: d.Path, Label: d.Label, FreeSpace: d.FreeSpace, TotalSpace: d.TotalSpace}
	}
	return out, nil
}

// Tags returns the instance's tags, cached until ResetCache.
func (c *Client) Tags(ctx context.Context) ([]media.Tag, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tags != nil {
		return c.tags, nil
	}

	var resp []struct {
		ID    int64  `json:"id"`
		Label string `json:"label"`
	}
	if err := c.get(ctx, "/api/v3/tag", &resp); err != nil {
		return nil, fmt.Errorf("failed to get tags: %w", err)
	}

	tags := make([]media.Tag, len(resp))
	for i, t := range resp {
		tags[i] = media.Tag{ID: t.ID, Label: t.Label}
	}
	c.tags = tags
	return tags, nil
}

// QualityProfiles returns the instance's quality profiles, cached until ResetCache.
func (c *Client) QualityProfiles(ctx context.Context) ([]media.QualityProfile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.profiles != nil {
		return c.profiles, nil
	}

	var resp []struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}
	if err := c.get(ctx, "/api/v3/qualityprofile", &resp); err != nil {
		return nil, fmt.Errorf("failed to get quality profiles: %w", err)
	}

	profiles := make([]media.QualityProfile, len(resp))
	for i, p := range resp {
		profiles[i] = media.QualityProfile{ID: p.ID, Name: p.Name}
	}
	c.profiles = profiles
	return profiles, nil
}

// get performs an idempotent read with bounded retry and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, path string, out any) error {
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

// send performs a mutating request once.
func (c *Client) send(ctx context.Context, method, path string, body any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}
	_, err := c.doRequest(ctx, method, path, payload)
	return err
}

func (c *Client) doRequest(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var body io.Reader = http.NoBody
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

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
		return nil, fmt.Errorf("%s %s: %w", method, path, ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &ServerError{Status: resp.StatusCode, Method: method, Path: path, Body: strings.TrimSpace(string(data))}
	}
	return data, nil
}
