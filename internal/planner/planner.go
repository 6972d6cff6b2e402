// Kometa-AI - AI-Powered Collection Management for Radarr
// Copyright 2026 tikibozo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tikibozo/kometa-ai

// Package planner decides which movies need a fresh Claude evaluation
// and drives the batched classification of one collection.
//
// A stored decision is reused when the movie's metadata fingerprint is
// unchanged and its confidence is not near the collection threshold.
// Everything else is re-asked in stable batches, with state checkpointed
// after every batch so a crash never loses paid-for answers.
package planner

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/tikibozo/kometa-ai/internal/claude"
	"github.com/tikibozo/kometa-ai/internal/fingerprint"
	"github.com/tikibozo/kometa-ai/internal/kometa"
	"github.com/tikibozo/kometa-ai/internal/logging"
	"github.com/tikibozo/kometa-ai/internal/metrics"
	"github.com/tikibozo/kometa-ai/internal/radarr"
	"github.com/tikibozo/kometa-ai/internal/state"
)

// thresholdBuffer is the confidence band around the collection threshold
// that forces re-evaluation even when metadata is unchanged.
const thresholdBuffer = 0.15

// CollectionStats summarizes one collection pass for reporting.
type CollectionStats struct {
	CollectionName string  `json:"collection_name"`
	MovieCount     int     `json:"movie_count"`
	Processed      int     `json:"processed"`
	FromCache      int     `json:"from_cache"`
	Batches        int     `json:"batches"`
	Refined        int     `json:"refined"`
	Included       int     `json:"included"`
	Excluded       int     `json:"excluded"`
	InputTokens    int     `json:"input_tokens"`
	OutputTokens   int     `json:"output_tokens"`
	Cost           float64 `json:"cost"`
	BatchErrors    int     `json:"batch_errors"`
}

// Planner classifies movies for collections.
type Planner struct {
	oracle       claude.Oracle
	store        *state.Store
	batchSize    int
	forceRefresh bool
}

// New creates a planner. batchSize <= 0 falls back to 150.
func New(oracle claude.Oracle, store *state.Store, batchSize int, forceRefresh bool) *Planner {
	if batchSize <= 0 {
		batchSize = 150
	}
	return &Planner{
		oracle:       oracle,
		store:        store,
		batchSize:    batchSize,
		forceRefresh: forceRefresh,
	}
}

// ProcessCollection evaluates all movies against one collection and
// returns the included and excluded movie ID sets.
//
// Batch failures are isolated: the error is recorded and remaining
// batches continue, so one bad batch cannot sink the collection.
func (p *Planner) ProcessCollection(ctx context.Context, c *kometa.Collection, movies []*radarr.Movie) ([]int, []int, *CollectionStats, error) {
	stats := &CollectionStats{CollectionName: c.Name, MovieCount: len(movies)}
	usageBefore := p.oracle.UsageStats()

	toProcess, reuseIncluded, reuseExcluded := p.partition(c, movies)
	stats.FromCache = len(movies) - len(toProcess)
	metrics.DecisionsReused.Add(float64(stats.FromCache))

	logging.Info().
		Str("collection", c.Name).
		Int("total", len(movies)).
		Int("to_process", len(toProcess)).
		Int("from_cache", stats.FromCache).
		Msg("processing collection")

	included := append([]int(nil), reuseIncluded...)
	excluded := append([]int(nil), reuseExcluded...)

	for start := 0; start < len(toProcess); start += p.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, nil, stats, err
		}
		end := min(start+p.batchSize, len(toProcess))
		batch := toProcess[start:end]
		batchNum := start/p.batchSize + 1

		logging.Info().
			Str("collection", c.Name).
			Int("batch", batchNum).
			Int("movies", len(batch)).
			Msg("classifying batch")

		batchIncluded, batchExcluded, refined, err := p.processBatch(ctx, c, batch)
		if err != nil {
			stats.BatchErrors++
			p.store.LogError(
				fmt.Sprintf("collection:%s,batch:%d", c.Name, batchNum),
				err.Error(),
			)
			logging.Err(err).Str("collection", c.Name).Int("batch", batchNum).Msg("batch failed, continuing")
			// The stored verdicts still stand; without this a failed
			// re-ask would strip labels the state file justifies.
			included, excluded = p.fallbackToStored(c, batch, nil, included, excluded)
			continue
		}

		included = append(included, batchIncluded...)
		excluded = append(excluded, batchExcluded...)
		stats.Batches++
		stats.Processed += len(batch)
		stats.Refined += refined
		metrics.DecisionsEvaluated.Add(float64(len(batch)))
		metrics.MoviesProcessed.Add(float64(len(batch)))

		// Checkpoint so a crash cannot lose paid-for decisions.
		if err := p.store.Save(); err != nil {
			logging.Err(err).Msg("state checkpoint failed")
		}
	}

	included = dedupe(included)
	excluded = subtract(dedupe(excluded), included)
	stats.Included = len(included)
	stats.Excluded = len(excluded)

	usageAfter := p.oracle.UsageStats()
	stats.InputTokens = usageAfter.InputTokens - usageBefore.InputTokens
	stats.OutputTokens = usageAfter.OutputTokens - usageBefore.OutputTokens
	stats.Cost = usageAfter.Cost - usageBefore.Cost

	logging.Info().
		Str("collection", c.Name).
		Int("included", stats.Included).
		Int("excluded", stats.Excluded).
		Float64("cost_usd", stats.Cost).
		Msg("collection processing complete")

	return included, excluded, stats, nil
}

// partition splits movies into those needing evaluation and reusable
// verdicts. Reused verdicts map directly into include/exclude sets.
func (p *Planner) partition(c *kometa.Collection, movies []*radarr.Movie) (toProcess []*radarr.Movie, included, excluded []int) {
	for _, m := range movies {
		if p.forceRefresh {
			toProcess = append(toProcess, m)
			continue
		}

		decision := p.store.GetDecision(m.ID, c.Name)
		reason := ""
		switch {
		case decision == nil:
			reason = "no previous decision"
		case p.store.GetMetadataHash(m.ID) != fingerprint.Movie(m):
			reason = "metadata changed"
		case abs(decision.Confidence-c.ConfidenceThreshold) < thresholdBuffer:
			reason = "near threshold confidence"
		}

		if reason != "" {
			logging.Debug().Int("movie_id", m.ID).Str("title", m.Title).Str("reason", reason).Msg("re-evaluating")
			toProcess = append(toProcess, m)
			continue
		}

		if decision.Include && decision.Confidence >= c.ConfidenceThreshold {
			included = append(included, m.ID)
		} else {
			excluded = append(excluded, m.ID)
		}
	}

	// Stable order so batch composition is deterministic run to run.
	sort.Slice(toProcess, func(i, j int) bool { return toProcess[i].ID < toProcess[j].ID })
	return toProcess, included, excluded
}

// processBatch sends one batch, refines borderline verdicts when enabled,
// and persists every decision.
func (p *Planner) processBatch(ctx context.Context, c *kometa.Collection, batch []*radarr.Movie) (included, excluded []int, refined int, err error) {
	userPrompt, err := claude.FormatBatchPrompt(c, batch)
	if err != nil {
		return nil, nil, 0, err
	}

	result, err := p.oracle.ClassifyBatch(ctx, claude.SystemPrompt, userPrompt)
	if err != nil {
		return nil, nil, 0, err
	}

	movieMap := make(map[int]*radarr.Movie, len(batch))
	for _, m := range batch {
		movieMap[m.ID] = m
	}
	answered := make(map[int]bool, len(batch))

	for _, d := range result.Decisions {
		m, ok := movieMap[d.MovieID]
		if !ok {
			logging.Warn().Int("movie_id", d.MovieID).Msg("decision for unknown movie, ignoring")
			continue
		}
		answered[m.ID] = true

		detailed := ""
		if c.UseIterativeRefinement && abs(d.Confidence-c.ConfidenceThreshold) < c.RefinementThreshold {
			if better, rerr := p.refine(ctx, c, m, d); rerr == nil {
				detailed = better.Reasoning
				d.Include = better.Include
				d.Confidence = better.Confidence
				refined++
				metrics.DecisionsRefined.Inc()
			} else {
				logging.Err(rerr).Int("movie_id", m.ID).Msg("refinement failed, keeping batch verdict")
			}
		}

		p.store.SetDecision(state.DecisionRecord{
			MovieID:          m.ID,
			CollectionName:   c.Name,
			Include:          d.Include,
			Confidence:       d.Confidence,
			MetadataHash:     fingerprint.Movie(m),
			Tag:              c.Tag(),
			Timestamp:        time.Now().UTC().Format(time.RFC3339),
			Reasoning:        d.Reasoning,
			DetailedAnalysis: detailed,
		})

		if d.Include && d.Confidence >= c.ConfidenceThreshold {
			included = append(included, m.ID)
		} else {
			excluded = append(excluded, m.ID)
		}
	}

	// Movies the reply left out keep their stored verdicts.
	included, excluded = p.fallbackToStored(c, batch, answered, included, excluded)

	return included, excluded, refined, nil
}

// fallbackToStored folds the persisted verdict of every unanswered movie
// into the include/exclude sets. A failed or partial oracle reply must
// not flip a movie's membership while its stored decision still stands.
func (p *Planner) fallbackToStored(c *kometa.Collection, batch []*radarr.Movie, answered map[int]bool, included, excluded []int) ([]int, []int) {
	for _, m := range batch {
		if answered[m.ID] {
			continue
		}
		rec := p.store.GetDecision(m.ID, c.Name)
		if rec == nil {
			continue
		}
		if rec.Include && rec.Confidence >= c.ConfidenceThreshold {
			included = append(included, m.ID)
		} else {
			excluded = append(excluded, m.ID)
		}
	}
	return included, excluded
}

// refine re-examines one borderline movie in isolation.
func (p *Planner) refine(ctx context.Context, c *kometa.Collection, m *radarr.Movie, previous claude.Decision) (*claude.Decision, error) {
	prompt, err := claude.FormatRefinementPrompt(c, m, previous)
	if err != nil {
		return nil, err
	}
	d, err := p.oracle.AnalyzeMovie(ctx, claude.SystemPrompt, prompt)
	if err != nil {
		return nil, err
	}
	d.MovieID = m.ID
	if d.Title == "" {
		d.Title = m.Title
	}
	return d, nil
}

func dedupe(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

func subtract(ids, remove []int) []int {
	drop := make(map[int]struct{}, len(remove))
	for _, id := range remove {
		drop[id] = struct{}{}
	}
	out := ids[:0]
	for _, id := range ids {
		if _, ok := drop[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
