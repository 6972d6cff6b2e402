// Kometa-AI - AI-Powered Collection Management for Radarr
// Copyright 2026 tikibozo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tikibozo/kometa-ai

package fingerprint

import (
	"testing"

	"github.com/tikibozo/kometa-ai/internal/radarr"
)

func baseMovie() *radarr.Movie {
	return &radarr.Movie{
		ID:       1,
		Title:    "Blade Runner",
		Year:     1982,
		Overview: "A blade runner must pursue and terminate four replicants.",
		Genres:   []string{"Science Fiction", "Drama"},
		Studio:   "Warner Bros.",
	}
}

func TestMovieDeterministic(t *testing.T) {
	a := Movie(baseMovie())
	b := Movie(baseMovie())
	if a != b {
		t.Errorf("same movie produced different fingerprints: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("fingerprint length = %d, want 64 hex chars", len(a))
	}
}

func TestMovieGenreOrderInvariant(t *testing.T) {
	m1 := baseMovie()
	m2 := baseMovie()
	m2.Genres = []string{"Drama", "Science Fiction"}

	if Movie(m1) != Movie(m2) {
		t.Error("genre reordering changed the fingerprint")
	}
}

func TestMovieAlternativeTitleOrderInvariant(t *testing.T) {
	m1 := baseMovie()
	m1.AlternativeTitles = []radarr.AlternativeTitle{{Title: "B"}, {Title: "A"}}
	m2 := baseMovie()
	m2.AlternativeTitles = []radarr.AlternativeTitle{{Title: "A"}, {Title: "B"}}

	if Movie(m1) != Movie(m2) {
		t.Error("alternative title reordering changed the fingerprint")
	}
}

func TestMovieSensitiveToClassificationFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*radarr.Movie)
	}{
		{"title", func(m *radarr.Movie) { m.Title = "Blade Runner 2049" }},
		{"year", func(m *radarr.Movie) { m.Year = 2017 }},
		{"overview", func(m *radarr.Movie) { m.Overview = "different" }},
		{"genres", func(m *radarr.Movie) { m.Genres = append(m.Genres, "Thriller") }},
		{"studio", func(m *radarr.Movie) { m.Studio = "Other" }},
		{"collection", func(m *radarr.Movie) { m.Collection = &radarr.Collection{Title: "Blade Runner Collection"} }},
	}

	base := Movie(baseMovie())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := baseMovie()
			tt.mutate(m)
			if Movie(m) == base {
				t.Errorf("changing %s did not change the fingerprint", tt.name)
			}
		})
	}
}

func TestMovieIgnoresNonClassificationFields(t *testing.T) {
	m := baseMovie()
	m.Tags = []int{1, 2, 3}
	m.Monitored = true
	m.Path = "/movies/blade-runner"
	m.HasFile = true

	if Movie(m) != Movie(baseMovie()) {
		t.Error("non-classification fields leaked into the fingerprint")
	}
}

func TestHashSortsMapKeys(t *testing.T) {
	a := Hash(map[string]interface{}{"b": 2, "a": 1})
	b := Hash(map[string]interface{}{"a": 1, "b": 2})
	if a != b {
		t.Error("map key order changed the hash")
	}
}

func TestHashDistinguishesValues(t *testing.T) {
	if Hash(map[string]interface{}{"a": 1}) == Hash(map[string]interface{}{"a": 2}) {
		t.Error("different values hashed identically")
	}
}
