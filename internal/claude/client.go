// Kometa-AI - AI-Powered Collection Management for Radarr
// Copyright 2026 tikibozo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tikibozo/kometa-ai

// Package claude talks to the Anthropic Messages API to classify movies
// against collection criteria.
//
// Resilience mechanisms:
//   - Retries: up to 5 attempts for rate limits, timeouts, 5xx responses
//     and unparseable replies, with exponential backoff capped at 30s
//   - Rate limiting: optional requests-per-minute cap via x/time/rate
//   - Cost tracking: token usage and estimated spend accumulate per run
package claude

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

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tikibozo/kometa-ai/internal/config"
	"github.com/tikibozo/kometa-ai/internal/logging"
	"github.com/tikibozo/kometa-ai/internal/metrics"
)

const (
	defaultBaseURL   = "https://api.anthropic.com"
	messagesPath     = "/v1/messages"
	apiVersion       = "2023-06-01"
	maxRetries       = 10
	maxBackoff       = 30 * time.Second
	batchMaxTokens   = 4000
	refineMaxTokens  = 2000
	temperature      = 0.1
	maxErrorBodySize = 16 * 1024
)

// Decision is Claude's verdict for one movie against one collection.
type Decision struct {
	MovieID    int     `json:"movie_id"`
	Title      string  `json:"title"`
	Include    bool    `json:"include"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

// BatchResult is the parsed response for one classification batch.
type BatchResult struct {
	CollectionName string     `json:"collection_name"`
	Decisions      []Decision `json:"decisions"`
}

// Usage accumulates token consumption and estimated cost.
type Usage struct {
	InputTokens  int       `json:"total_input_tokens"`
	OutputTokens int       `json:"total_output_tokens"`
	Cost         float64   `json:"total_cost"`
	Requests     int       `json:"requests"`
	StartTime    time.Time `json:"start_time"`
}

// Oracle is the classification interface used by the planner and runner.
// Implemented by Client for production and by fakes in tests.
type Oracle interface {
	ClassifyBatch(ctx context.Context, systemPrompt, userPrompt string) (*BatchResult, error)
	AnalyzeMovie(ctx context.Context, systemPrompt, userPrompt string) (*Decision, error)
	UsageStats() Usage
	ResetUsageStats()
}

// Client is an Anthropic Messages API client.
//
// Thread safety: safe for concurrent use; usage tracking is mutex guarded.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	inputPrice  float64
	outputPrice float64
	client      *http.Client
	limiter     *rate.Limiter
	backoffBase time.Duration

	mu    sync.Mutex
	usage Usage
}

// NewClient creates a Claude client from configuration.
func NewClient(cfg config.ClaudeConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), 1)
	}

	c := &Client{
		baseURL:     defaultBaseURL,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		inputPrice:  cfg.InputPricePerMillion,
		outputPrice: cfg.OutputPricePerMillion,
		client:      &http.Client{Timeout: timeout},
		limiter:     limiter,
		backoffBase: time.Second,
	}
	c.ResetUsageStats()
	logging.Info().Str("model", c.model).Msg("initialized claude client")
	return c
}

// messagesRequest is the Anthropic Messages API request body.
type messagesRequest struct {
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// messagesResponse is the subset of the response body the client reads.
type messagesResponse struct {
	Content []contentBlock `json:"content"`
	Usage   tokenUsage     `json:"usage"`
	Error   *apiError      `json:"error,omitempty"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type tokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ClassifyBatch sends one classification batch and parses the JSON reply.
// Unparseable replies are retried like transient API failures.
func (c *Client) ClassifyBatch(ctx context.Context, systemPrompt, userPrompt string) (*BatchResult, error) {
	started := time.Now()

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			metrics.ClaudeRetries.Inc()
			if err := c.waitBackoff(ctx, attempt); err != nil {
				return nil, err
			}
		}

		text, err := c.complete(ctx, systemPrompt, userPrompt, batchMaxTokens)
		if err != nil {
			if !isRetryable(err) {
				metrics.RecordClaudeBatch(time.Since(started), "api_error")
				return nil, err
			}
			lastErr = err
			logging.Warn().Err(err).Int("attempt", attempt+1).Msg("claude request failed, will retry")
			continue
		}

		result, err := ParseBatchResponse(text)
		if err != nil {
			lastErr = fmt.Errorf("failed to parse claude response: %w", err)
			logging.Warn().Err(err).Int("attempt", attempt+1).Msg("claude response unparseable, will retry")
			continue
		}

		metrics.RecordClaudeBatch(time.Since(started), "success")
		return result, nil
	}

	metrics.RecordClaudeBatch(time.Since(started), "parse_error")
	return nil, fmt.Errorf("claude batch failed after %d attempts: %w", maxRetries, lastErr)
}

// AnalyzeMovie asks for a detailed verdict on a single borderline movie.
// A parse failure returns a conservative exclude decision rather than an
// error so refinement cannot sink a whole collection pass.
func (c *Client) AnalyzeMovie(ctx context.Context, systemPrompt, userPrompt string) (*Decision, error) {
	text, err := c.complete(ctx, systemPrompt, userPrompt, refineMaxTokens)
	if err != nil {
		return nil, err
	}

	decision, err := ParseDecisionResponse(text)
	if err != nil {
		logging.Err(err).Msg("failed to parse single-movie analysis, excluding conservatively")
		return &Decision{
			Include:    false,
			Confidence: 0,
			Reasoning:  fmt.Sprintf("analysis response unparseable: %v", err),
		}, nil
	}
	return decision, nil
}

// Ping sends a minimal completion to verify credentials and reachability.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.complete(ctx, "", "Reply with the single word: OK", 10); err != nil {
		return fmt.Errorf("claude connection test failed: %w", err)
	}
	return nil
}

// complete performs one Messages API call and returns the text content.
func (c *Client) complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	reqBody := messagesRequest{
		Model:       c.model,
		System:      systemPrompt,
		Messages:    []message{{Role: "user", Content: userPrompt}},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}
	encoded, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+messagesPath, bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &transientError{fmt.Errorf("request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", &transientError{fmt.Errorf("failed to read response: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return "", &transientError{fmt.Errorf("claude api status %d: %s", resp.StatusCode, truncate(body))}
	case resp.StatusCode != http.StatusOK:
		var decoded messagesResponse
		if json.Unmarshal(body, &decoded) == nil && decoded.Error != nil {
			return "", classifyAPIError(resp.StatusCode, decoded.Error)
		}
		return "", fmt.Errorf("claude api status %d: %s", resp.StatusCode, truncate(body))
	}

	var decoded messagesResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", &transientError{fmt.Errorf("failed to decode response: %w", err)}
	}
	if len(decoded.Content) == 0 || decoded.Content[0].Text == "" {
		return "", &transientError{fmt.Errorf("claude returned empty response")}
	}

	c.trackUsage(decoded.Usage)
	return decoded.Content[0].Text, nil
}

// classifyAPIError turns permanent API errors into actionable messages.
func classifyAPIError(status int, apiErr *apiError) error {
	switch {
	case containsFold(apiErr.Message, "token limit"), containsFold(apiErr.Message, "token_limit"):
		return fmt.Errorf("claude input too large, reduce batch size: %s", apiErr.Message)
	case containsFold(apiErr.Message, "content policy"):
		return fmt.Errorf("claude content policy violation: %s", apiErr.Message)
	default:
		return fmt.Errorf("claude api error (%d, %s): %s", status, apiErr.Type, apiErr.Message)
	}
}

// transientError marks failures worth retrying.
type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func isRetryable(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}

// waitBackoff sleeps for min(base*2^attempt, 30s) or until the context ends.
func (c *Client) waitBackoff(ctx context.Context, attempt int) error {
	delay := c.backoffBase * time.Duration(1<<uint(attempt))
	if delay > maxBackoff {
		delay = maxBackoff
	}
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) trackUsage(u tokenUsage) {
	cost := c.calculateCost(u.InputTokens, u.OutputTokens)

	c.mu.Lock()
	c.usage.InputTokens += u.InputTokens
	c.usage.OutputTokens += u.OutputTokens
	c.usage.Cost += cost
	c.usage.Requests++
	c.mu.Unlock()

	metrics.RecordClaudeUsage(u.InputTokens, u.OutputTokens, cost)
	logging.Info().
		Int("input_tokens", u.InputTokens).
		Int("output_tokens", u.OutputTokens).
		Float64("cost_usd", cost).
		Msg("claude api usage")
}

func (c *Client) calculateCost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)/1_000_000*c.inputPrice +
		float64(outputTokens)/1_000_000*c.outputPrice
}

// UsageStats returns a snapshot of accumulated usage.
func (c *Client) UsageStats() Usage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usage
}

// ResetUsageStats clears accumulated usage, typically at run start.
func (c *Client) ResetUsageStats() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.usage = Usage{StartTime: time.Now().UTC()}
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func truncate(body []byte) string {
	if len(body) > 500 {
		return string(body[:500]) + "..."
	}
	return string(body)
}
