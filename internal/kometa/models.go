// Kometa-AI - AI-Powered Collection Management for Radarr
// Copyright 2026 tikibozo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tikibozo/kometa-ai

// Package kometa reads AI collection definitions out of Kometa
// configuration files.
//
// Definitions live in comment blocks so Kometa itself never sees them:
//
//	# === KOMETA-AI ===
//	# enabled: true
//	# confidence_threshold: 0.7
//	# prompt: |
//	#   Identify film noir movies.
//	# === END KOMETA-AI ===
//	Film Noir:
//	  radarr_taglist: KAI-film-noir
//
// The collection name is taken from the first YAML mapping key after the
// block. The derived Radarr tag is KAI-<slug> of that name.
package kometa

import (
	"regexp"
	"strings"
)

// TagPrefix is the namespace prefix for all tags owned by Kometa-AI.
const TagPrefix = "KAI-"

// Collection is one AI-managed collection definition.
type Collection struct {
	// Name is the collection name as it appears in the Kometa config.
	Name string

	// Slug is the slugified name used to derive the Radarr tag.
	Slug string

	// SourceFile is the config file the definition came from.
	SourceFile string

	Enabled             bool
	Prompt              string
	ConfidenceThreshold float64
	Priority            int

	// ExcludeTags and IncludeTags gate which movies are eligible. A movie
	// carrying any exclude tag is never a member; when include tags are
	// set, only movies carrying at least one are considered.
	ExcludeTags []string
	IncludeTags []string

	// ExampleInclusions and ExampleExclusions are literal exemplars
	// carried into the prompt for guidance.
	ExampleInclusions []string
	ExampleExclusions []string

	// UseIterativeRefinement re-examines borderline scores individually.
	UseIterativeRefinement bool

	// RefinementThreshold is the half-width of the confidence band around
	// ConfidenceThreshold that triggers refinement.
	RefinementThreshold float64
}

// Tag returns the Radarr tag label owned by this collection.
func (c *Collection) Tag() string {
	return TagPrefix + c.Slug
}

var (
	slugSpaces  = regexp.MustCompile(`\s+`)
	slugInvalid = regexp.MustCompile(`[^a-z0-9-]`)
	slugDashes  = regexp.MustCompile(`-+`)
)

// Slugify converts a collection name to its tag slug: lowercase, spaces
// to hyphens, non-alphanumerics dropped, runs of hyphens collapsed.
func Slugify(text string) string {
	text = strings.ToLower(text)
	text = slugSpaces.ReplaceAllString(text, "-")
	text = slugInvalid.ReplaceAllString(text, "")
	text = slugDashes.ReplaceAllString(text, "-")
	return strings.Trim(text, "-")
}
