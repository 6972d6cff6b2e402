// Kometa-AI - AI-Powered Collection Management for Radarr
// Copyright 2026 tikibozo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tikibozo/kometa-ai

// Package fingerprint derives deterministic digests of the movie metadata
// that feeds classification. A stored decision is reusable only while the
// movie's fingerprint is unchanged.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/goccy/go-json"

	"github.com/tikibozo/kometa-ai/internal/radarr"
)

// Movie computes the metadata fingerprint for a movie.
//
// The digest is SHA-256 over a canonical JSON encoding with sorted map
// keys. List-valued fields that carry no meaningful order (genres,
// alternative titles) are sorted first so reordering upstream does not
// invalidate stored decisions. Fields outside the classification surface
// (file paths, monitoring flags, tag sets) are deliberately excluded.
func Movie(m *radarr.Movie) string {
	genres := append([]string(nil), m.Genres...)
	sort.Strings(genres)

	altTitles := make([]string, 0, len(m.AlternativeTitles))
	for _, at := range m.AlternativeTitles {
		altTitles = append(altTitles, at.Title)
	}
	sort.Strings(altTitles)

	metadata := map[string]interface{}{
		"title":              m.Title,
		"original_title":     m.OriginalTitle,
		"year":               m.Year,
		"overview":           m.Overview,
		"genres":             genres,
		"studio":             m.Studio,
		"youtube_trailer_id": m.YouTubeTrailerID,
		"alternative_titles": altTitles,
	}
	if m.Collection != nil && m.Collection.Title != "" {
		metadata["collection"] = m.Collection.Title
	}

	return Hash(metadata)
}

// Hash computes the SHA-256 hex digest of the canonical JSON encoding of v.
// Map keys are emitted in sorted order so equal values always produce
// equal digests.
func Hash(v interface{}) string {
	canonical, err := canonicalize(v)
	if err != nil {
		// Inputs are plain maps, slices and scalars; encoding cannot fail
		// for the types this package is given.
		panic(fmt.Sprintf("fingerprint: unencodable value: %v", err))
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}

// canonicalize produces deterministic JSON: objects with sorted keys,
// arrays in given order.
func canonicalize(v interface{}) ([]byte, error) {
	switch val := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf := []byte{'{'}
		for i, k := range keys {
			if i > 0 {
				buf = append(buf, ',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			vb, err := canonicalize(val[k])
			if err != nil {
				return nil, err
			}
			buf = append(buf, kb...)
			buf = append(buf, ':')
			buf = append(buf, vb...)
		}
		return append(buf, '}'), nil

	case []interface{}:
		buf := []byte{'['}
		for i, item := range val {
			if i > 0 {
				buf = append(buf, ',')
			}
			ib, err := canonicalize(item)
			if err != nil {
				return nil, err
			}
			buf = append(buf, ib...)
		}
		return append(buf, ']'), nil

	case []string:
		items := make([]interface{}, len(val))
		for i, s := range val {
			items[i] = s
		}
		return canonicalize(items)

	default:
		return json.Marshal(v)
	}
}
