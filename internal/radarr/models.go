// Kometa-AI - AI-Powered Collection Management for Radarr
// Copyright 2026 tikibozo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tikibozo/kometa-ai

package radarr

// Movie is a Radarr v3 movie record. Only the fields Kometa-AI reads or
// writes are modeled; unknown fields are preserved by Radarr on update
// because updates send the full record back.
type Movie struct {
	ID               int            `json:"id"`
	Title            string         `json:"title"`
	OriginalTitle    string         `json:"originalTitle,omitempty"`
	SortTitle        string         `json:"sortTitle,omitempty"`
	Year             int            `json:"year"`
	Overview         string         `json:"overview,omitempty"`
	Genres           []string       `json:"genres,omitempty"`
	Studio           string         `json:"studio,omitempty"`
	Runtime          int            `json:"runtime,omitempty"`
	ImdbID           string         `json:"imdbId,omitempty"`
	TmdbID           int            `json:"tmdbId,omitempty"`
	OriginalLanguage *Language      `json:"originalLanguage,omitempty"`
	Ratings          map[string]any `json:"ratings,omitempty"`
	YouTubeTrailerID string         `json:"youTubeTrailerId,omitempty"`
	Collection       *Collection    `json:"collection,omitempty"`
	AlternativeTitles []AlternativeTitle `json:"alternativeTitles,omitempty"`
	TitleSlug        string         `json:"titleSlug,omitempty"`
	Path             string         `json:"path,omitempty"`
	Monitored        bool           `json:"monitored"`
	HasFile          bool           `json:"hasFile"`
	QualityProfileID int            `json:"qualityProfileId,omitempty"`
	MinimumAvailability string      `json:"minimumAvailability,omitempty"`
	Tags             []int          `json:"tags"`

	// Raw holds the complete movie document as returned by Radarr.
	// Updates are issued against Raw with only the tags field replaced,
	// so fields this struct does not model survive the round trip.
	Raw map[string]any `json:"-"`
}

// HasTag reports whether the movie carries the given tag ID.
func (m *Movie) HasTag(tagID int) bool {
	for _, id := range m.Tags {
		if id == tagID {
			return true
		}
	}
	return false
}

// Collection is Radarr's TMDB collection membership descriptor.
type Collection struct {
	Title  string `json:"title,omitempty"`
	TmdbID int    `json:"tmdbId,omitempty"`
}

// AlternativeTitle is an alternate release title for a movie.
type AlternativeTitle struct {
	Title string `json:"title"`
}

// Language is a Radarr language descriptor.
type Language struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Tag is a Radarr tag record.
type Tag struct {
	ID    int    `json:"id"`
	Label string `json:"label"`
}

// SystemStatus is the subset of /api/v3/system/status used by health checks.
type SystemStatus struct {
	AppName string `json:"appName"`
	Version string `json:"version"`
}
