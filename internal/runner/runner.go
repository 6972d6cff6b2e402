// Kometa-AI - AI-Powered Collection Management for Radarr
// Copyright 2026 tikibozo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tikibozo/kometa-ai

// Package runner orchestrates one end-to-end reconciliation run:
// parse rubrics, snapshot the catalog, classify, reconcile tags,
// persist state, summarize.
package runner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tikibozo/kometa-ai/internal/claude"
	"github.com/tikibozo/kometa-ai/internal/config"
	"github.com/tikibozo/kometa-ai/internal/kometa"
	"github.com/tikibozo/kometa-ai/internal/logging"
	"github.com/tikibozo/kometa-ai/internal/metrics"
	"github.com/tikibozo/kometa-ai/internal/planner"
	"github.com/tikibozo/kometa-ai/internal/radarr"
	"github.com/tikibozo/kometa-ai/internal/state"
	"github.com/tikibozo/kometa-ai/internal/tags"
)

// Options modify a single run.
type Options struct {
	DryRun           bool
	CollectionFilter string
	BatchSize        int
	ForceRefresh     bool
}

// Summary is the outcome of one run.
type Summary struct {
	RunID                string                    `json:"run_id"`
	StartedAt            time.Time                 `json:"started_at"`
	Duration             time.Duration             `json:"duration"`
	DryRun               bool                      `json:"dry_run"`
	CollectionsProcessed int                       `json:"collections_processed"`
	CollectionsFailed    int                       `json:"collections_failed"`
	CollectionsSkipped   int                       `json:"collections_skipped"`
	MovieCount           int                       `json:"movie_count"`
	Changes              []tags.Change             `json:"changes"`
	Stats                []planner.CollectionStats `json:"stats"`
	Usage                claude.Usage              `json:"usage"`
}

// Runner wires the pipeline together over injected collaborators.
type Runner struct {
	cfg    *config.Config
	radarr radarr.Interface
	oracle claude.Oracle
	store  *state.Store
}

// New creates a runner.
func New(cfg *config.Config, rc radarr.Interface, oracle claude.Oracle, store *state.Store) *Runner {
	return &Runner{cfg: cfg, radarr: rc, oracle: oracle, store: store}
}

// Run executes one full reconciliation pass. Collection-level failures
// are recorded and skipped; the run itself fails only when nothing can
// proceed (no rubrics, catalog unreachable, state unloadable).
func (r *Runner) Run(ctx context.Context, opts Options) (*Summary, error) {
	started := time.Now()
	summary := &Summary{
		RunID:     uuid.NewString(),
		StartedAt: started.UTC(),
		DryRun:    opts.DryRun,
	}
	log := logging.With().Str("run_id", summary.RunID).Logger()

	result := "success"
	defer func() {
		summary.Duration = time.Since(started)
		metrics.RecordRun(summary.Duration, result)
	}()

	if err := r.store.Load(); err != nil {
		result = "failure"
		return summary, fmt.Errorf("failed to load state: %w", err)
	}

	collections, err := r.loadCollections(opts.CollectionFilter)
	if err != nil {
		result = "failure"
		return summary, err
	}
	if len(collections) == 0 {
		log.Warn().Msg("no enabled collections to process")
		return summary, nil
	}

	log.Info().Int("collections", len(collections)).Bool("dry_run", opts.DryRun).Msg("run starting")

	movies, err := r.radarr.GetMovies(ctx)
	if err != nil {
		result = "failure"
		r.store.LogError("radarr", err.Error())
		return summary, fmt.Errorf("failed to fetch movies: %w", err)
	}
	summary.MovieCount = len(movies)
	log.Info().Int("movies", len(movies)).Msg("catalog snapshot fetched")

	reconciler := tags.NewReconciler(r.radarr, r.store, opts.DryRun)
	if err := reconciler.RefreshTagCache(ctx); err != nil {
		result = "failure"
		r.store.LogError("radarr", err.Error())
		return summary, err
	}

	plan := planner.New(r.oracle, r.store, opts.BatchSize, opts.ForceRefresh)
	usageBefore := r.oracle.UsageStats()

	for _, c := range collections {
		if err := ctx.Err(); err != nil {
			result = "failure"
			return summary, err
		}

		if !r.verifyTaglist(c) {
			summary.CollectionsSkipped++
			continue
		}

		if err := r.processOne(ctx, plan, reconciler, c, movies, summary); err != nil {
			summary.CollectionsFailed++
			metrics.CollectionsProcessed.WithLabelValues("failure").Inc()
			r.store.LogError("collection:"+c.Name, err.Error())
			log.Err(err).Str("collection", c.Name).Msg("collection failed, continuing")
			continue
		}
		summary.CollectionsProcessed++
		metrics.CollectionsProcessed.WithLabelValues("success").Inc()
	}

	usageAfter := r.oracle.UsageStats()
	summary.Usage = claude.Usage{
		InputTokens:  usageAfter.InputTokens - usageBefore.InputTokens,
		OutputTokens: usageAfter.OutputTokens - usageBefore.OutputTokens,
		Cost:         usageAfter.Cost - usageBefore.Cost,
		Requests:     usageAfter.Requests - usageBefore.Requests,
	}

	if err := r.store.Save(); err != nil {
		result = "failure"
		return summary, fmt.Errorf("failed to save state: %w", err)
	}

	if summary.CollectionsFailed > 0 && summary.CollectionsProcessed == 0 {
		result = "failure"
	}

	log.Info().
		Int("collections_processed", summary.CollectionsProcessed).
		Int("collections_failed", summary.CollectionsFailed).
		Int("changes", len(summary.Changes)).
		Float64("cost_usd", summary.Usage.Cost).
		Dur("duration", time.Since(started)).
		Msg("run complete")
	return summary, nil
}

// processOne classifies and reconciles a single collection.
func (r *Runner) processOne(ctx context.Context, plan *planner.Planner, reconciler *tags.Reconciler, c *kometa.Collection, movies []*radarr.Movie, summary *Summary) error {
	included, _, stats, err := plan.ProcessCollection(ctx, c, movies)
	if err != nil {
		return err
	}
	summary.Stats = append(summary.Stats, *stats)

	changes, err := reconciler.Apply(ctx, c, movies, included)
	if err != nil {
		return err
	}
	summary.Changes = append(summary.Changes, changes...)
	return nil
}

// verifyTaglist checks the rubric's radarr_taglist against the tag
// derived from its name, repairing a mismatch when fix mode is enabled.
// A definition with no radarr_taglist scalar at all is skipped: Kometa
// would never populate the collection, so tagging for it is pointless.
func (r *Runner) verifyTaglist(c *kometa.Collection) bool {
	ok, current, err := kometa.CheckTaglist(c.SourceFile, c.Name)
	if err != nil {
		logging.Warn().Err(err).Str("collection", c.Name).Msg("could not verify radarr_taglist")
		return true
	}
	if ok {
		return true
	}

	if current == "" {
		logging.Warn().
			Str("collection", c.Name).
			Str("file", c.SourceFile).
			Msg("collection has no radarr_taglist entry, skipping")
		return false
	}

	if !r.cfg.Kometa.FixTags {
		logging.Warn().
			Str("collection", c.Name).
			Str("current", current).
			Str("expected", c.Tag()).
			Msg("radarr_taglist does not match collection tag")
		return true
	}

	if err := kometa.FixTaglist(c.SourceFile, c.Name); err != nil {
		logging.Err(err).Str("collection", c.Name).Msg("failed to fix radarr_taglist")
		return true
	}
	logging.Info().Str("collection", c.Name).Str("tag", c.Tag()).Msg("radarr_taglist fixed")
	return true
}

// loadCollections parses rubrics and applies the optional name filter.
func (r *Runner) loadCollections(filter string) ([]*kometa.Collection, error) {
	parser := kometa.NewParser(r.cfg.Kometa.ConfigDir)
	collections, err := parser.ParseCollections()
	if err != nil {
		return nil, fmt.Errorf("failed to parse collections: %w", err)
	}

	if filter == "" {
		return collections, nil
	}
	for _, c := range collections {
		if strings.EqualFold(c.Name, filter) {
			return []*kometa.Collection{c}, nil
		}
	}
	return nil, fmt.Errorf("collection %q not found or not enabled", filter)
}
