// Kometa-AI - AI-Powered Collection Management for Radarr
// Copyright 2026 tikibozo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tikibozo/kometa-ai

package claude

import (
	"testing"
)

const validJSON = `{
  "collection_name": "Film Noir",
  "decisions": [
    {"movie_id": 1, "title": "Double Indemnity", "include": true, "confidence": 0.97},
    {"movie_id": 2, "title": "Toy Story", "include": false, "confidence": 0.99}
  ]
}`

func TestParseBatchResponseDirect(t *testing.T) {
	result, err := ParseBatchResponse(validJSON)
	if err != nil {
		t.Fatalf("ParseBatchResponse() error = %v", err)
	}
	if result.CollectionName != "Film Noir" {
		t.Errorf("collection = %q", result.CollectionName)
	}
	if len(result.Decisions) != 2 {
		t.Fatalf("got %d decisions", len(result.Decisions))
	}
	if !result.Decisions[0].Include || result.Decisions[0].Confidence != 0.97 {
		t.Errorf("decision[0] = %+v", result.Decisions[0])
	}
}

func TestParseBatchResponseCodeBlock(t *testing.T) {
	text := "Here is my evaluation:\n```json\n" + validJSON + "\n```\nLet me know if you need more."
	result, err := ParseBatchResponse(text)
	if err != nil {
		t.Fatalf("ParseBatchResponse() error = %v", err)
	}
	if len(result.Decisions) != 2 {
		t.Errorf("got %d decisions", len(result.Decisions))
	}
}

func TestParseBatchResponseLeadingProse(t *testing.T) {
	text := "I evaluated each movie against the criteria.\n\n" + validJSON
	result, err := ParseBatchResponse(text)
	if err != nil {
		t.Fatalf("ParseBatchResponse() error = %v", err)
	}
	if result.CollectionName != "Film Noir" {
		t.Errorf("collection = %q", result.CollectionName)
	}
}

func TestParseBatchResponseTrailingCommas(t *testing.T) {
	text := `Result: {
  "collection_name": "Westerns",
  "decisions": [
    {"movie_id": 5, "title": "Shane", "include": true, "confidence": 0.9},
  ],
}`
	result, err := ParseBatchResponse(text)
	if err != nil {
		t.Fatalf("ParseBatchResponse() error = %v", err)
	}
	if len(result.Decisions) != 1 || result.Decisions[0].MovieID != 5 {
		t.Errorf("decisions = %+v", result.Decisions)
	}
}

func TestParseBatchResponseComments(t *testing.T) {
	text := `{
  "collection_name": "Westerns", // the requested collection
  "decisions": [
    {"movie_id": 5, "title": "Shane", "include": true, "confidence": 0.9}
  ]
}`
	result, err := ParseBatchResponse(text)
	if err != nil {
		t.Fatalf("ParseBatchResponse() error = %v", err)
	}
	if result.CollectionName != "Westerns" {
		t.Errorf("collection = %q", result.CollectionName)
	}
}

func TestParseBatchResponseSalvageIndividualDecisions(t *testing.T) {
	text := `"collection_name": "Musicals" and then some broken text
	{"movie_id": 7, "title": "Singin in the Rain", "include": true, "confidence": 0.95}
	garbage here
	{"movie_id": 8, "title": "Heat", "include": false, "confidence": 0.98}`

	result, err := ParseBatchResponse(text)
	if err != nil {
		t.Fatalf("ParseBatchResponse() error = %v", err)
	}
	if result.CollectionName != "Musicals" {
		t.Errorf("collection = %q", result.CollectionName)
	}
	if len(result.Decisions) != 2 {
		t.Errorf("salvaged %d decisions, want 2", len(result.Decisions))
	}
}

func TestParseBatchResponseUnparseable(t *testing.T) {
	if _, err := ParseBatchResponse("I cannot evaluate these movies."); err == nil {
		t.Fatal("expected error for prose-only response")
	}
}

func TestParseBatchResponseMissingFields(t *testing.T) {
	if _, err := ParseBatchResponse(`{"foo": "bar"}`); err == nil {
		t.Fatal("expected error for JSON without required fields")
	}
}

func TestParseDecisionResponse(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"direct", `{"movie_id": 3, "title": "Blow Out", "include": true, "confidence": 0.82}`},
		{"code block", "```json\n{\"movie_id\": 3, \"include\": true, \"confidence\": 0.82}\n```"},
		{"prose prefix", "After careful review:\n{\"movie_id\": 3, \"include\": true, \"confidence\": 0.82}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := ParseDecisionResponse(tt.text)
			if err != nil {
				t.Fatalf("ParseDecisionResponse() error = %v", err)
			}
			if d.MovieID != 3 || !d.Include || d.Confidence != 0.82 {
				t.Errorf("decision = %+v", d)
			}
		})
	}
}

func TestParseDecisionResponseUnparseable(t *testing.T) {
	if _, err := ParseDecisionResponse("no json here"); err == nil {
		t.Fatal("expected error")
	}
}
