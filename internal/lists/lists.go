// Package lists holds what the external list providers have in common.
package lists

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/deleterr/deleterr/internal/resilience"
)

// Set maps a TMDB (movies) or TVDB (shows) id to the list URL it was found on.
type Set map[int64]string

// Contains reports whether id is on any list and returns that list.
func (s Set) Contains(id int64) (string, bool) {
	if id == 0 {
		return "", false
	}
	list, ok := s[id]
	return list, ok
}

// Merge adds every id of other that is not yet present.
func (s Set) Merge(other Set) {
	for id, list := range other {
		if _, ok := s[id]; !ok {
			s[id] = list
		}
	}
}

// StatusError is a non-success answer from a list provider.
type StatusError struct {
	Status int
	URL    string
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.URL, e.Status, e.Body)
}

// Retryable reports whether repeating the request may succeed.
func (e *StatusError) Retryable() bool {
	return e.Status >= http.StatusInternalServerError || e.Status == http.StatusTooManyRequests
}

// Request describes a read-only call to a provider.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    any
}

// Do performs req with retries and decodes the JSON answer into out.
// The response headers are returned for providers that page through them.
func Do(ctx context.Context, httpClient *http.Client, policy resilience.RetryPolicy, logger zerolog.Logger, req Request, out any) (http.Header, error) {
	var payload []byte
	if req.Body != nil {
		var err error
		if payload, err = json.Marshal(req.Body); err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	type answer struct {
		header http.Header
		body   []byte
	}
	res, err := resilience.Retry(ctx, policy, method+" "+redact(req.URL), logger, func() (answer, error) {
		var body io.Reader = http.NoBody
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
		if err != nil {
			return answer{}, fmt.Errorf("failed to create request: %w", err)
		}
		httpReq.Header.Set("Accept", "application/json")
		if payload != nil {
			httpReq.Header.Set("Content-Type", "application/json")
		}
		for k, v := range req.Headers {
			httpReq.Header.Set(k, v)
		}

		resp, err := httpClient.Do(httpReq)
		if err != nil {
			return answer{}, fmt.Errorf("HTTP request failed: %w", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return answer{}, fmt.Errorf("failed to read response: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return answer{}, &StatusError{Status: resp.StatusCode, URL: redact(req.URL), Body: strings.TrimSpace(string(data))}
		}
		return answer{header: resp.Header, body: data}, nil
	})
	if err != nil {
		return nil, err
	}

	if out != nil && len(bytes.TrimSpace(res.body)) > 0 {
		if err := json.Unmarshal(res.body, out); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return res.header, nil
}

// redact drops the query string, which may carry API keys.
func redact(u string) string {
	if i := strings.IndexByte(u, '?'); i >= 0 {
		return u[:i]
	}
	return u
}
