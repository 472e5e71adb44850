package plex

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"runtime"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/deleterr/deleterr/internal/config"
	"github.com/deleterr/deleterr/internal/resilience"
)

const (
	product  = "Deleterr"
	pageSize = 200
)

// ErrLibraryNotFound is returned when no library section has the requested name.
var ErrLibraryNotFound = errors.New("plex library not found")

// StatusError is a non-success answer from the server.
type StatusError struct {
	Status int
	Path   string
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("plex %s returned status %d: %s", e.Path, e.Status, e.Body)
}

func (e *StatusError) Retryable() bool {
	return e.Status >= http.StatusInternalServerError || e.Status == http.StatusTooManyRequests
}

// Client handles communication with a Plex Media Server.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     zerolog.Logger
	clientID   string
	retry      resilience.RetryPolicy

	mu        sync.Mutex
	machineID string
}

// NewClient creates a new Plex Media Server client.
func NewClient(baseURL, token string, httpClient *http.Client, logger zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: httpClient,
		logger:     logger.With().Str("component", "plex").Logger(),
		clientID:   uuid.New().String(),
		retry:      resilience.DefaultRetryPolicy(),
	}
}

func (c *Client) headers() map[string]string {
	return map[string]string{
		"X-Plex-Client-Identifier": c.clientID,
		"X-Plex-Product":           product,
		"X-Plex-Version":           config.Version,
		"X-Plex-Platform":          runtime.GOOS,
		"X-Plex-Device-Name":       product,
		"X-Plex-Token":             c.token,
		"Accept":                   "application/json",
	}
}

func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range c.headers() {
		req.Header.Set(key, value)
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
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Status: resp.StatusCode, Path: path, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}

// get reads a MediaContainer with bounded retry.
func (c *Client) get(ctx context.Context, path string, query url.Values) (*mediaContainer, error) {
	data, err := resilience.Retry(ctx, c.retry, "GET "+path, c.logger, func() ([]byte, error) {
		return c.doRequest(ctx, http.MethodGet, path, query)
	})
	if err != nil {
		return nil, err
	}

	var resp containerResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return &resp.MediaContainer, nil
}

// Ping checks the server answers with the configured token.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.machineIdentifier(ctx)
	return err
}

func (c *Client) machineIdentifier(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.machineID != "" {
		return c.machineID, nil
	}

	mc, err := c.get(ctx, "/identity", nil)
	if err != nil {
		return "", fmt.Errorf("failed to get server identity: %w", err)
	}
	if mc.MachineIdentifier == "" {
		return "", errors.New("plex server did not report a machine identifier")
	}
	c.machineID = mc.MachineIdentifier
	return c.machineID, nil
}

func (c *Client) itemsURI(ctx context.Context, ratingKeys []string) (string, error) {
	machineID, err := c.machineIdentifier(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("server://%s/com.plexapp.plugins.library/library/metadata/%s",
		machineID, strings.Join(ratingKeys, ",")), nil
}
