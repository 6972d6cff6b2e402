// Kometa-AI - AI-Powered Collection Management for Radarr
// Copyright 2026 tikibozo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tikibozo/kometa-ai

package state

import "time"

// formatVersion is the on-disk state schema version. Loading a file with
// a different version logs a warning; no migration is performed.
const formatVersion = 1

// DecisionRecord is the stored verdict for one movie/collection pair.
type DecisionRecord struct {
	MovieID        int     `json:"movie_id,omitempty"`
	CollectionName string  `json:"collection_name,omitempty"`
	Include        bool    `json:"include"`
	Confidence     float64 `json:"confidence"`
	MetadataHash   string  `json:"metadata_hash"`
	Tag            string  `json:"tag"`
	Timestamp      string  `json:"timestamp"`
	Reasoning      string  `json:"reasoning,omitempty"`

	// DetailedAnalysis is the single-movie refinement text, kept apart
	// from the batch reasoning it supersedes.
	DetailedAnalysis string `json:"detailed_analysis,omitempty"`
}

// ChangeRecord is one applied tag mutation, kept in a bounded ring for
// reporting.
type ChangeRecord struct {
	Timestamp  string `json:"timestamp"`
	MovieID    int    `json:"movie_id"`
	Title      string `json:"title"`
	Collection string `json:"collection"`
	Action     string `json:"action"` // "added" or "removed"
	Tag        string `json:"tag"`
}

// ErrorRecord is one run error, kept in a bounded ring for reporting.
type ErrorRecord struct {
	Timestamp string `json:"timestamp"`
	Context   string `json:"context"`
	Message   string `json:"message"`
}

// movieState groups a movie's decisions with the metadata hash they were
// computed against.
type movieState struct {
	Collections  map[string]*DecisionRecord `json:"collections"`
	MetadataHash string                     `json:"metadata_hash,omitempty"`
}

// document is the full on-disk state file.
type document struct {
	Version             string                 `json:"version"`
	StateFormatVersion  int                    `json:"state_format_version"`
	LastUpdate          string                 `json:"last_update"`
	Decisions           map[string]*movieState `json:"decisions"`
	Changes             []ChangeRecord         `json:"changes"`
	Errors              []ErrorRecord          `json:"errors"`
}

func emptyDocument(appVersion string) *document {
	return &document{
		Version:            appVersion,
		StateFormatVersion: formatVersion,
		LastUpdate:         time.Now().UTC().Format(time.RFC3339),
		Decisions:          map[string]*movieState{},
		Changes:            []ChangeRecord{},
		Errors:             []ErrorRecord{},
	}
}
