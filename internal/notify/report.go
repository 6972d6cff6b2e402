// Kometa-AI - AI-Powered Collection Management for Radarr
// Copyright 2026 tikibozo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tikibozo/kometa-ai

package notify

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tikibozo/kometa-ai/internal/planner"
	"github.com/tikibozo/kometa-ai/internal/state"
)

// Report is the material a run hands to the formatter.
type Report struct {
	Version string
	RunID   string
	DryRun  bool
	Changes []state.ChangeRecord
	Errors  []state.ErrorRecord
	Stats   []planner.CollectionStats
	NextRun time.Time
}

// HasChanges reports whether any tag mutations occurred.
func (r *Report) HasChanges() bool { return len(r.Changes) > 0 }

// HasErrors reports whether any errors were recorded.
func (r *Report) HasErrors() bool { return len(r.Errors) > 0 }

// Subject builds the email subject line.
func (r *Report) Subject() string {
	switch {
	case r.HasErrors():
		return fmt.Sprintf("Kometa-AI: %d changes, %d errors", len(r.Changes), len(r.Errors))
	case r.HasChanges():
		return fmt.Sprintf("Kometa-AI: %d changes applied", len(r.Changes))
	default:
		return "Kometa-AI: no changes"
	}
}

// Format renders the full markdown report body.
func (r *Report) Format() string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Kometa-AI Summary (v%s)\n\n", r.Version)

	b.WriteString("## Overview\n\n")
	fmt.Fprintf(&b, "- Run ID: %s\n", r.RunID)
	fmt.Fprintf(&b, "- Total changes: %d\n", len(r.Changes))
	fmt.Fprintf(&b, "- Errors: %d\n", len(r.Errors))
	if r.DryRun {
		b.WriteString("- Mode: dry run (no changes applied)\n")
	}
	if !r.NextRun.IsZero() {
		fmt.Fprintf(&b, "- Next scheduled run: %s\n", r.NextRun.Format("2006-01-02 15:04:05 MST"))
	}
	b.WriteString("\n")

	r.writeChanges(&b)
	r.writeErrors(&b)
	r.writeStats(&b)

	return b.String()
}

func (r *Report) writeChanges(b *strings.Builder) {
	if !r.HasChanges() {
		b.WriteString("## Changes\n\nNo changes were made in this run\n\n")
		return
	}

	b.WriteString("## Changes by Collection\n\n")

	byCollection := map[string][]state.ChangeRecord{}
	for _, ch := range r.Changes {
		byCollection[ch.Collection] = append(byCollection[ch.Collection], ch)
	}
	names := make([]string, 0, len(byCollection))
	for name := range byCollection {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fmt.Fprintf(b, "### %s\n\n", name)

		var added, removed []state.ChangeRecord
		for _, ch := range byCollection[name] {
			if ch.Action == "added" {
				added = append(added, ch)
			} else {
				removed = append(removed, ch)
			}
		}

		if len(added) > 0 {
			fmt.Fprintf(b, "**Added**: %d\n", len(added))
			for _, ch := range added {
				fmt.Fprintf(b, "- %s (%d)\n", ch.Title, ch.MovieID)
			}
			b.WriteString("\n")
		}
		if len(removed) > 0 {
			fmt.Fprintf(b, "**Removed**: %d\n", len(removed))
			for _, ch := range removed {
				fmt.Fprintf(b, "- %s (%d)\n", ch.Title, ch.MovieID)
			}
			b.WriteString("\n")
		}
	}
}

func (r *Report) writeErrors(b *strings.Builder) {
	b.WriteString("## Errors\n\n")
	if !r.HasErrors() {
		b.WriteString("No errors encountered\n\n")
		return
	}

	byContext := map[string][]state.ErrorRecord{}
	var order []string
	for _, e := range r.Errors {
		if _, seen := byContext[e.Context]; !seen {
			order = append(order, e.Context)
		}
		byContext[e.Context] = append(byContext[e.Context], e)
	}

	for _, context := range order {
		fmt.Fprintf(b, "### %s\n\n", context)
		for _, e := range byContext[context] {
			date, _, _ := strings.Cut(e.Timestamp, "T")
			fmt.Fprintf(b, "- %s: %s\n", date, e.Message)
		}
		b.WriteString("\n")
	}
}

func (r *Report) writeStats(b *strings.Builder) {
	if len(r.Stats) == 0 {
		return
	}

	var processed, fromCache, inputTokens, outputTokens int
	var cost float64
	for _, s := range r.Stats {
		processed += s.Processed
		fromCache += s.FromCache
		inputTokens += s.InputTokens
		outputTokens += s.OutputTokens
		cost += s.Cost
	}

	b.WriteString("## Processing Statistics\n\n")
	b.WriteString("### Summary\n")
	fmt.Fprintf(b, "- Total processed: %d movies\n", processed)
	fmt.Fprintf(b, "- From cache: %d movies\n", fromCache)
	fmt.Fprintf(b, "- Collections processed: %d\n", len(r.Stats))
	fmt.Fprintf(b, "- Total tokens: %d\n", inputTokens+outputTokens)
	fmt.Fprintf(b, "- Total cost: $%.4f\n\n", cost)

	for _, s := range r.Stats {
		fmt.Fprintf(b, "### %s\n", s.CollectionName)
		fmt.Fprintf(b, "- Processed: %d movies\n", s.Processed)
		fmt.Fprintf(b, "- From cache: %d movies\n", s.FromCache)
		fmt.Fprintf(b, "- API cost: $%.4f\n\n", s.Cost)
	}
}
