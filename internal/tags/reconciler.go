// Kometa-AI - AI-Powered Collection Management for Radarr
// Copyright 2026 tikibozo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tikibozo/kometa-ai

// Package tags reconciles collection membership onto Radarr via tags.
//
// Only tags carrying the KAI- prefix are ever added or removed; every
// other tag on a movie is preserved. Reconciliation is idempotent:
// unchanged decisions produce no writes.
package tags

import (
	"context"
	"fmt"
	"strings"

	"github.com/tikibozo/kometa-ai/internal/kometa"
	"github.com/tikibozo/kometa-ai/internal/logging"
	"github.com/tikibozo/kometa-ai/internal/metrics"
	"github.com/tikibozo/kometa-ai/internal/radarr"
	"github.com/tikibozo/kometa-ai/internal/state"
)

// Change is one applied (or, in dry-run, intended) tag mutation.
type Change struct {
	MovieID int    `json:"movie_id"`
	Title   string `json:"title"`
	Action  string `json:"action"` // "added" or "removed"
	Tag     string `json:"tag"`
}

// Reconciler applies collection membership decisions as tag mutations.
type Reconciler struct {
	radarr  radarr.Interface
	store   *state.Store
	dryRun  bool
	byLabel map[string]int // lowercased label -> tag ID
}

// NewReconciler creates a reconciler. In dry-run mode diffs are computed
// and logged but no tags are created or written.
func NewReconciler(rc radarr.Interface, store *state.Store, dryRun bool) *Reconciler {
	return &Reconciler{
		radarr:  rc,
		store:   store,
		dryRun:  dryRun,
		byLabel: map[string]int{},
	}
}

// RefreshTagCache reloads the label-to-ID mapping from Radarr. Called
// once per run before any collection is reconciled.
func (r *Reconciler) RefreshTagCache(ctx context.Context) error {
	tags, err := r.radarr.GetTags(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch tags: %w", err)
	}
	r.byLabel = make(map[string]int, len(tags))
	for _, t := range tags {
		r.byLabel[strings.ToLower(t.Label)] = t.ID
	}
	logging.Debug().Int("tags", len(tags)).Msg("tag cache refreshed")
	return nil
}

// tagID resolves a label to its Radarr ID, creating the tag on first use.
// In dry-run mode a missing tag is reported as 0 without creation.
func (r *Reconciler) tagID(ctx context.Context, label string) (int, error) {
	if id, ok := r.byLabel[strings.ToLower(label)]; ok {
		return id, nil
	}
	if r.dryRun {
		return 0, nil
	}
	tag, err := r.radarr.CreateTag(ctx, label)
	if err != nil {
		return 0, fmt.Errorf("failed to create tag %q: %w", label, err)
	}
	r.byLabel[strings.ToLower(tag.Label)] = tag.ID
	metrics.TagsCreated.Inc()
	logging.Info().Str("tag", tag.Label).Int("id", tag.ID).Msg("created tag")
	return tag.ID, nil
}

// gateIDs resolves gate labels to tag IDs. Labels unknown to Radarr
// match no movie and are dropped with a warning.
func (r *Reconciler) gateIDs(labels []string) map[int]struct{} {
	ids := make(map[int]struct{}, len(labels))
	for _, label := range labels {
		if id, ok := r.byLabel[strings.ToLower(label)]; ok {
			ids[id] = struct{}{}
		} else {
			logging.Warn().Str("tag", label).Msg("gate tag not defined in Radarr, ignoring")
		}
	}
	return ids
}

// Apply reconciles one collection's membership against the catalog.
//
// A movie carries the collection tag afterwards iff it was classified in
// with sufficient confidence, has none of the collection's exclude tags,
// and matches the include-tag gate (vacuous when no include tags are
// configured). Gated-out movies that already carry the tag lose it.
// Mutations are reflected into the in-memory movie so collections
// reconciled later in the same run observe them.
func (r *Reconciler) Apply(ctx context.Context, c *kometa.Collection, movies []*radarr.Movie, includedIDs []int) ([]Change, error) {
	label := c.Tag()
	tagID, err := r.tagID(ctx, label)
	if err != nil {
		return nil, err
	}

	included := make(map[int]struct{}, len(includedIDs))
	for _, id := range includedIDs {
		included[id] = struct{}{}
	}
	excludeGate := r.gateIDs(c.ExcludeTags)
	includeGate := r.gateIDs(c.IncludeTags)

	var changes []Change
	for _, m := range movies {
		if err := ctx.Err(); err != nil {
			return changes, err
		}

		_, wanted := included[m.ID]
		intended := wanted && passesGates(m, excludeGate, includeGate, len(c.IncludeTags))
		current := tagID != 0 && m.HasTag(tagID)

		var action string
		switch {
		case intended && !current:
			action = "added"
		case current && !intended:
			action = "removed"
		default:
			continue
		}

		if r.dryRun {
			logging.Info().
				Int("movie_id", m.ID).
				Str("title", m.Title).
				Str("tag", label).
				Str("action", action).
				Msg("dry run, not applying")
			changes = append(changes, Change{MovieID: m.ID, Title: m.Title, Action: action, Tag: label})
			continue
		}

		newTags := mutateTags(m.Tags, tagID, action == "added")
		if err := r.radarr.UpdateMovieTags(ctx, m, newTags); err != nil {
			return changes, fmt.Errorf("failed to update tags for movie %d: %w", m.ID, err)
		}
		m.Tags = newTags

		r.store.LogChange(m.ID, m.Title, c.Name, action, label)
		metrics.RecordTagMutation(action)
		changes = append(changes, Change{MovieID: m.ID, Title: m.Title, Action: action, Tag: label})

		logging.Debug().
			Int("movie_id", m.ID).
			Str("title", m.Title).
			Str("tag", label).
			Str("action", action).
			Msg("tag updated")
	}

	logging.Info().
		Str("collection", c.Name).
		Int("changes", len(changes)).
		Bool("dry_run", r.dryRun).
		Msg("reconciliation complete")
	return changes, nil
}

// passesGates checks the exclude and include tag gates for one movie.
func passesGates(m *radarr.Movie, exclude, include map[int]struct{}, includeConfigured int) bool {
	for _, id := range m.Tags {
		if _, blocked := exclude[id]; blocked {
			return false
		}
	}
	if includeConfigured == 0 {
		return true
	}
	for _, id := range m.Tags {
		if _, ok := include[id]; ok {
			return true
		}
	}
	return false
}

// mutateTags returns the movie's tag list with tagID added or removed,
// leaving every other tag in place.
func mutateTags(tags []int, tagID int, add bool) []int {
	out := make([]int, 0, len(tags)+1)
	for _, id := range tags {
		if id != tagID {
			out = append(out, id)
		}
	}
	if add {
		out = append(out, tagID)
	}
	return out
}
