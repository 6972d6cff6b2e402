// Kometa-AI - AI-Powered Collection Management for Radarr
// Copyright 2026 tikibozo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tikibozo/kometa-ai

package planner

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-json"

	"github.com/tikibozo/kometa-ai/internal/claude"
	"github.com/tikibozo/kometa-ai/internal/kometa"
	"github.com/tikibozo/kometa-ai/internal/logging"
	"github.com/tikibozo/kometa-ai/internal/radarr"
	"github.com/tikibozo/kometa-ai/internal/state"
)

// sweepSizes are the batch sizes tried by the optimizer.
var sweepSizes = []int{50, 100, 150, 200, 250, 300}

// SizeResult records one batch-size trial.
type SizeResult struct {
	BatchSize       int     `json:"batch_size"`
	DurationSeconds float64 `json:"duration_seconds"`
	Included        int     `json:"included"`
	Excluded        int     `json:"excluded"`
	InputTokens     int     `json:"input_tokens"`
	OutputTokens    int     `json:"output_tokens"`
	Cost            float64 `json:"cost"`
	CostPerMovie    float64 `json:"cost_per_movie"`
	MoviesPerSecond float64 `json:"movies_per_second"`
	Efficiency      float64 `json:"efficiency"`
	Error           string  `json:"error,omitempty"`
}

// OptimizationReport is the full sweep outcome.
type OptimizationReport struct {
	CollectionName   string       `json:"collection_name"`
	MovieCount       int          `json:"movie_count"`
	Timestamp        string       `json:"timestamp"`
	Results          []SizeResult `json:"results"`
	OptimalBatchSize int          `json:"optimal_batch_size"`
}

// OptimizeBatchSize runs the same collection at each candidate batch
// size with caching disabled, scores each trial as throughput per
// dollar, and writes the full report to outputPath as indented JSON.
//
// Every trial costs real API tokens; this is a deliberate tuning tool,
// not part of normal runs.
func OptimizeBatchSize(ctx context.Context, oracle claude.Oracle, store *state.Store, c *kometa.Collection, movies []*radarr.Movie, outputPath string) (*OptimizationReport, error) {
	if outputPath == "" {
		outputPath = "batch_size_optimization.json"
	}

	report := &OptimizationReport{
		CollectionName: c.Name,
		MovieCount:     len(movies),
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
	}

	for _, size := range sweepSizes {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		logging.Info().Str("collection", c.Name).Int("batch_size", size).Msg("starting batch size trial")
		oracle.ResetUsageStats()

		p := New(oracle, store, size, true)
		started := time.Now()
		included, excluded, _, err := p.ProcessCollection(ctx, c, movies)
		elapsed := time.Since(started)

		result := SizeResult{
			BatchSize:       size,
			DurationSeconds: elapsed.Seconds(),
		}
		if err != nil {
			result.Error = err.Error()
			report.Results = append(report.Results, result)
			logging.Err(err).Int("batch_size", size).Msg("trial failed")
			continue
		}

		usage := oracle.UsageStats()
		result.Included = len(included)
		result.Excluded = len(excluded)
		result.InputTokens = usage.InputTokens
		result.OutputTokens = usage.OutputTokens
		result.Cost = usage.Cost
		if len(movies) > 0 {
			result.CostPerMovie = usage.Cost / float64(len(movies))
		}
		if elapsed > 0 {
			result.MoviesPerSecond = float64(len(movies)) / elapsed.Seconds()
		}
		if usage.Cost > 0 {
			result.Efficiency = result.MoviesPerSecond / usage.Cost
		}
		report.Results = append(report.Results, result)

		logging.Info().
			Int("batch_size", size).
			Float64("cost_usd", result.Cost).
			Float64("movies_per_second", result.MoviesPerSecond).
			Float64("efficiency", result.Efficiency).
			Msg("trial complete")
	}

	best := 0.0
	for _, r := range report.Results {
		if r.Error == "" && r.Efficiency > best {
			best = r.Efficiency
			report.OptimalBatchSize = r.BatchSize
		}
	}

	encoded, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return report, fmt.Errorf("failed to encode optimization report: %w", err)
	}
	if err := os.WriteFile(outputPath, encoded, 0o644); err != nil {
		return report, fmt.Errorf("failed to write optimization report: %w", err)
	}

	logging.Info().
		Int("optimal_batch_size", report.OptimalBatchSize).
		Str("file", outputPath).
		Msg("batch size optimization complete")
	return report, nil
}
