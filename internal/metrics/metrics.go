// Kometa-AI - AI-Powered Collection Management for Radarr
// Copyright 2026 tikibozo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tikibozo/kometa-ai

package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for:
// - Run outcomes and duration
// - Claude batch calls, token usage and cost
// - Radarr API latency and circuit breaker state
// - Decision reuse vs re-evaluation
// - Tag mutations

var (
	// Run Metrics
	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kometa_ai_run_duration_seconds",
			Help:    "Duration of reconciliation runs in seconds",
			Buckets: []float64{10, 30, 60, 120, 300, 600, 1800, 3600},
		},
	)

	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kometa_ai_runs_total",
			Help: "Total number of reconciliation runs",
		},
		[]string{"result"}, // "success", "partial", "failure"
	)

	RunLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kometa_ai_run_last_success_timestamp",
			Help: "Unix timestamp of last successful run",
		},
	)

	MoviesProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kometa_ai_movies_processed_total",
			Help: "Total number of movie evaluations performed",
		},
	)

	CollectionsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kometa_ai_collections_processed_total",
			Help: "Total number of collection passes",
		},
		[]string{"result"}, // "success", "error"
	)

	// Claude Metrics
	ClaudeBatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kometa_ai_claude_batches_total",
			Help: "Total number of Claude batch requests",
		},
		[]string{"result"}, // "success", "parse_error", "api_error"
	)

	ClaudeBatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kometa_ai_claude_batch_duration_seconds",
			Help:    "Duration of Claude batch calls in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		},
	)

	ClaudeTokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kometa_ai_claude_tokens_total",
			Help: "Total Claude tokens consumed",
		},
		[]string{"direction"}, // "input", "output"
	)

	ClaudeCostDollars = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kometa_ai_claude_cost_dollars_total",
			Help: "Estimated cumulative Claude API cost in USD",
		},
	)

	ClaudeRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kometa_ai_claude_retries_total",
			Help: "Total number of Claude request retries",
		},
	)

	// Decision Reuse Metrics
	DecisionsReused = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kometa_ai_decisions_reused_total",
			Help: "Total number of decisions reused from state without a Claude call",
		},
	)

	DecisionsEvaluated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kometa_ai_decisions_evaluated_total",
			Help: "Total number of decisions freshly evaluated by Claude",
		},
	)

	DecisionsRefined = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kometa_ai_decisions_refined_total",
			Help: "Total number of borderline decisions re-examined individually",
		},
	)

	// Radarr Metrics
	RadarrRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kometa_ai_radarr_request_duration_seconds",
			Help:    "Radarr API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	RadarrRequestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kometa_ai_radarr_request_errors_total",
			Help: "Total number of Radarr API errors",
		},
		[]string{"operation", "error_type"},
	)

	// Tag Metrics
	TagMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kometa_ai_tag_mutations_total",
			Help: "Total number of tag additions and removals applied to Radarr",
		},
		[]string{"action"}, // "add", "remove"
	)

	TagsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kometa_ai_tags_created_total",
			Help: "Total number of tags created in Radarr",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kometa_ai_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kometa_ai_circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// State Store Metrics
	StateSaves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kometa_ai_state_saves_total",
			Help: "Total number of state persistence operations",
		},
		[]string{"result"}, // "success", "failure"
	)

	StateDecisions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kometa_ai_state_decisions",
			Help: "Current number of movie decision records in state",
		},
	)

	// Notification Metrics
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kometa_ai_notifications_sent_total",
			Help: "Total number of email notifications sent",
		},
		[]string{"result"}, // "success", "failure", "suppressed"
	)
)

// RecordRun records the outcome and duration of a reconciliation run.
func RecordRun(duration time.Duration, result string) {
	RunDuration.Observe(duration.Seconds())
	RunsTotal.WithLabelValues(result).Inc()
	if result == "success" {
		RunLastSuccess.SetToCurrentTime()
	}
}

// RecordClaudeBatch records a Claude batch call outcome.
func RecordClaudeBatch(duration time.Duration, result string) {
	ClaudeBatchDuration.Observe(duration.Seconds())
	ClaudeBatchesTotal.WithLabelValues(result).Inc()
}

// RecordClaudeUsage records token consumption and the estimated cost of a call.
func RecordClaudeUsage(inputTokens, outputTokens int, cost float64) {
	ClaudeTokens.WithLabelValues("input").Add(float64(inputTokens))
	ClaudeTokens.WithLabelValues("output").Add(float64(outputTokens))
	ClaudeCostDollars.Add(cost)
}

// RecordRadarrRequest records a Radarr API call.
func RecordRadarrRequest(operation string, duration time.Duration, err error) {
	RadarrRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		RadarrRequestErrors.WithLabelValues(operation, classifyError(err)).Inc()
	}
}

// RecordTagMutation records a tag add or remove applied to a movie.
func RecordTagMutation(action string) {
	TagMutations.WithLabelValues(action).Inc()
}

// RecordNotification records an email delivery attempt.
func RecordNotification(err error) {
	if err != nil {
		NotificationsSent.WithLabelValues("failure").Inc()
		return
	}
	NotificationsSent.WithLabelValues("success").Inc()
}

// RecordStateSave records a state persistence attempt.
func RecordStateSave(err error) {
	if err != nil {
		StateSaves.WithLabelValues("failure").Inc()
		return
	}
	StateSaves.WithLabelValues("success").Inc()
}

// classifyError buckets errors into coarse categories for metric labels.
func classifyError(err error) string {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline"):
		return "timeout"
	case strings.Contains(msg, "connection"), strings.Contains(msg, "refused"), strings.Contains(msg, "no such host"):
		return "connection"
	case strings.Contains(msg, "401"), strings.Contains(msg, "403"):
		return "auth"
	case strings.Contains(msg, "circuit breaker"):
		return "breaker_open"
	default:
		return "other"
	}
}
