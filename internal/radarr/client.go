// Kometa-AI - AI-Powered Collection Management for Radarr
// Copyright 2026 tikibozo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tikibozo/kometa-ai

// Package radarr provides a client for the Radarr v3 REST API.
//
// The client covers the endpoints Kometa-AI needs: movie listing, tag
// management, per-movie tag updates and the system status probe. It
// retries transient failures with exponential backoff and honors
// HTTP 429 Retry-After. Wrap it in a Breaker for circuit protection.
package radarr

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tikibozo/kometa-ai/internal/config"
	"github.com/tikibozo/kometa-ai/internal/logging"
	"github.com/tikibozo/kometa-ai/internal/metrics"
)

// maxErrorBodySize caps the response body read for error reporting.
const maxErrorBodySize = 16 * 1024

// Interface defines the Radarr operations used by the rest of the
// application. Implemented by Client for production and by fakes in tests.
type Interface interface {
	Ping(ctx context.Context) error
	GetMovies(ctx context.Context) ([]*Movie, error)
	GetTags(ctx context.Context) ([]Tag, error)
	CreateTag(ctx context.Context, label string) (Tag, error)
	UpdateMovieTags(ctx context.Context, movie *Movie, tags []int) error
}

// Client communicates with a single Radarr instance.
//
// Thread safety: safe for concurrent use; every call builds its own request.
type Client struct {
	baseURL        string
	apiKey         string
	client         *http.Client
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewClient creates a Radarr client from configuration.
func NewClient(cfg config.RadarrConfig) *Client {
	retries := cfg.RetryAttempts
	if retries <= 0 {
		retries = 5
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:        strings.TrimRight(cfg.URL, "/"),
		apiKey:         cfg.APIKey,
		client:         &http.Client{Timeout: timeout},
		maxRetries:     retries,
		retryBaseDelay: time.Second,
	}
}

// Ping verifies connectivity and credentials via /api/v3/system/status.
func (c *Client) Ping(ctx context.Context) error {
	var status SystemStatus
	if err := c.doJSON(ctx, http.MethodGet, "/api/v3/system/status", nil, &status); err != nil {
		return fmt.Errorf("radarr ping: %w", err)
	}
	logging.Debug().Str("app", status.AppName).Str("version", status.Version).Msg("radarr reachable")
	return nil
}

// GetMovies returns the full movie catalog. Each Movie keeps the raw
// document so tag updates can send the complete record back.
func (c *Client) GetMovies(ctx context.Context) ([]*Movie, error) {
	started := time.Now()
	body, err := c.doRaw(ctx, http.MethodGet, "/api/v3/movie", nil)
	metrics.RecordRadarrRequest("get_movies", time.Since(started), err)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch movies: %w", err)
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(body, &raws); err != nil {
		return nil, fmt.Errorf("failed to decode movie list: %w", err)
	}

	movies := make([]*Movie, 0, len(raws))
	for _, raw := range raws {
		m := &Movie{}
		if err := json.Unmarshal(raw, m); err != nil {
			return nil, fmt.Errorf("failed to decode movie: %w", err)
		}
		if err := json.Unmarshal(raw, &m.Raw); err != nil {
			return nil, fmt.Errorf("failed to decode movie document: %w", err)
		}
		movies = append(movies, m)
	}
	return movies, nil
}

// GetTags returns all tags defined in Radarr.
func (c *Client) GetTags(ctx context.Context) ([]Tag, error) {
	started := time.Now()
	var tags []Tag
	err := c.doJSON(ctx, http.MethodGet, "/api/v3/tag", nil, &tags)
	metrics.RecordRadarrRequest("get_tags", time.Since(started), err)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tags: %w", err)
	}
	return tags, nil
}

// CreateTag creates a tag with the given label and returns the record.
// Radarr treats labels case-insensitively; creating an existing label
// returns the existing tag.
func (c *Client) CreateTag(ctx context.Context, label string) (Tag, error) {
	started := time.Now()
	var tag Tag
	err := c.doJSON(ctx, http.MethodPost, "/api/v3/tag", map[string]string{"label": label}, &tag)
	metrics.RecordRadarrRequest("create_tag", time.Since(started), err)
	if err != nil {
		return Tag{}, fmt.Errorf("failed to create tag %q: %w", label, err)
	}
	metrics.TagsCreated.Inc()
	return tag, nil
}

// UpdateMovieTags replaces the movie's tag set via a full-record PUT.
// The raw document is sent back with only the tags field changed so
// unmodeled fields survive.
func (c *Client) UpdateMovieTags(ctx context.Context, movie *Movie, tags []int) error {
	doc := movie.Raw
	if doc == nil {
		return fmt.Errorf("movie %d has no raw document, refusing partial update", movie.ID)
	}
	if tags == nil {
		tags = []int{}
	}
	doc["tags"] = tags

	started := time.Now()
	path := fmt.Sprintf("/api/v3/movie/%d", movie.ID)
	err := c.doJSON(ctx, http.MethodPut, path, doc, nil)
	metrics.RecordRadarrRequest("update_movie", time.Since(started), err)
	if err != nil {
		return fmt.Errorf("failed to update tags for movie %d: %w", movie.ID, err)
	}
	movie.Tags = tags
	return nil
}

// doJSON performs a request with an optional JSON body and decodes the
// JSON response into result (when result is non-nil).
func (c *Client) doJSON(ctx context.Context, method, path string, payload, result interface{}) error {
	body, err := c.doRaw(ctx, method, path, payload)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// doRaw performs a request with retry. Connection errors and HTTP 5xx
// are retried with exponential backoff capped per attempt; HTTP 429
// honors Retry-After. 4xx responses other than 429 fail immediately.
func (c *Client) doRaw(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	var encoded []byte
	if payload != nil {
		var err error
		encoded, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	var lastErr error
	skipBackoff := false
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt > 0 && !skipBackoff {
			delay := c.backoff(attempt)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		skipBackoff = false

		var reqBody io.Reader = http.NoBody
		if encoded != nil {
			reqBody = bytes.NewReader(encoded)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("X-Api-Key", c.apiKey)
		if encoded != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			logging.Warn().Err(err).Str("path", path).Int("attempt", attempt+1).Msg("radarr request failed, will retry")
			continue
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			body, readErr := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			if readErr != nil {
				lastErr = fmt.Errorf("failed to read response: %w", readErr)
				continue
			}
			return body, nil

		case resp.StatusCode == http.StatusTooManyRequests:
			_ = resp.Body.Close()
			lastErr = fmt.Errorf("rate limited (HTTP 429)")
			if d, ok := parseRetryAfter(resp.Header.Get("Retry-After")); ok {
				select {
				case <-time.After(d):
				case <-ctx.Done():
					return nil, ctx.Err()
				}
				// The server named its own wait; no extra backoff on top.
				skipBackoff = true
			}
			continue

		case resp.StatusCode >= 500:
			errBody := readBodyForError(resp.Body)
			_ = resp.Body.Close()
			lastErr = fmt.Errorf("server error (HTTP %d): %s", resp.StatusCode, errBody)
			logging.Warn().Int("status", resp.StatusCode).Str("path", path).Int("attempt", attempt+1).Msg("radarr server error, will retry")
			continue

		default:
			errBody := readBodyForError(resp.Body)
			_ = resp.Body.Close()
			return nil, fmt.Errorf("unexpected status %d for %s %s: %s", resp.StatusCode, method, path, errBody)
		}
	}

	return nil, fmt.Errorf("radarr request exhausted %d retries: %w", c.maxRetries, lastErr)
}

// backoff returns the delay before the given attempt, doubling each time
// and capped at 30 seconds.
func (c *Client) backoff(attempt int) time.Duration {
	delay := c.retryBaseDelay * time.Duration(1<<uint(attempt-1))
	if delay > 30*time.Second {
		delay = 30 * time.Second
	}
	return delay
}

// parseRetryAfter reads a Retry-After header as either delay seconds or
// an HTTP date.
func parseRetryAfter(value string) (time.Duration, bool) {
	if value == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(value); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d, true
		}
		return 0, true
	}
	return 0, false
}

// readBodyForError reads a bounded amount of the response body for error
// messages.
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	return body
}
