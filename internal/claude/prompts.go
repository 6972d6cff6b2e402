// Kometa-AI - AI-Powered Collection Management for Radarr
// Copyright 2026 tikibozo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tikibozo/kometa-ai

package claude

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tikibozo/kometa-ai/internal/kometa"
	"github.com/tikibozo/kometa-ai/internal/logging"
	"github.com/tikibozo/kometa-ai/internal/radarr"
)

// SystemPrompt instructs Claude how to evaluate movies against a
// collection. It pins the output contract to a strict JSON shape.
const SystemPrompt = `
You are a film expert tasked with categorizing movies for a Plex media server. Your job is to determine which movies belong in a specific collection based on the provided criteria.

Guidelines:
1. Focus ONLY on the specific collection definition and criteria provided
2. Consider all relevant movie attributes (title, year, genres, plot, directors, actors, etc.)
3. Apply the collection criteria consistently across all movies
4. Provide a confidence score (0.0-1.0) for each decision
5. Include reasoning ONLY for borderline cases (confidence between 0.4-0.8)
6. Return answers in valid JSON format only
7. Do not consider personal preferences or subjective quality judgments

When evaluating movies:
- Be objective and follow the criteria exactly
- Do not artificially limit the number of movies in a collection
- Include a movie if it fits the criteria, regardless of how many you've already included
- Exclude a movie if it doesn't fit the criteria, even if the collection would be empty
- For movies with little information, use your knowledge about films to supplement the data
- Evaluate the movie's actual content and themes, not just what's mentioned in the overview
- Be cautious about superficial similarities and lookout for mismatches between overview and actual film content
- Be discriminating: a movie containing elements of a genre doesn't necessarily mean it belongs in that collection
- Consider the movie's primary themes and genres, not incidental elements

IMPORTANT: For collections based on themes or genres, focus on whether the movie is primarily about that theme/genre, not whether it contains elements of it. For example:
- A movie with one heist scene is not necessarily a "Heist Movie"
- A movie set partly in space is not necessarily a "Space Movie"
- A movie with some comedy is not necessarily a "Comedy Movie"

Your response must follow this exact JSON format:
{
  "collection_name": "Name of the collection",
  "decisions": [
    {
      "movie_id": 123,
      "title": "Movie Title",
      "include": true,
      "confidence": 0.95,
      "reasoning": "Optional explanation for borderline cases"
    }
  ]
}

IMPORTANT: Return valid JSON only. Do not include markdown formatting or explanatory text outside the JSON structure.
`

// FormatCollectionPrompt builds the collection-specific instruction text.
func FormatCollectionPrompt(c *kometa.Collection) string {
	criteria := strings.TrimSpace(c.Prompt)
	if criteria == "" {
		logging.Warn().Str("collection", c.Name).Msg("collection has an empty prompt")
	}

	singular := strings.TrimSuffix(c.Name, "s")

	var exemplars strings.Builder
	if len(c.ExampleInclusions) > 0 {
		exemplars.WriteString("EXAMPLES THAT BELONG IN THIS COLLECTION:\n")
		for _, ex := range c.ExampleInclusions {
			fmt.Fprintf(&exemplars, "- %s\n", ex)
		}
		exemplars.WriteString("\n")
	}
	if len(c.ExampleExclusions) > 0 {
		exemplars.WriteString("EXAMPLES THAT DO NOT BELONG IN THIS COLLECTION:\n")
		for _, ex := range c.ExampleExclusions {
			fmt.Fprintf(&exemplars, "- %s\n", ex)
		}
		exemplars.WriteString("\n")
	}

	return fmt.Sprintf(`
I need you to categorize movies for the %q collection.

COLLECTION DEFINITION AND CRITERIA:
%s

%sFor each movie in the provided list, evaluate whether it belongs in the %s collection based on these criteria. Provide your decision and a confidence level (0.0-1.0) for each movie.

The minimum confidence threshold for inclusion is %g. For movies with confidence below this threshold, they will not be included in the collection, so be careful not to underestimate your confidence if you believe a movie should be included.

IMPORTANT CONSIDERATIONS FOR THIS COLLECTION:
- You should only include movies that strongly match the collection's theme/genre
- A movie that contains minor elements or scenes related to the collection theme should NOT be included
- Focus on the movie's primary themes and content, not secondary elements
- When evaluating movies, use your knowledge of cinema to supplement the data provided
- Consider whether a typical viewer would categorize this movie primarily as a %s film

Return your evaluation in the required JSON format ONLY, with no additional text or explanations outside the JSON structure.
`, c.Name, criteria, exemplars.String(), c.Name, c.ConfidenceThreshold, singular)
}

// FormatBatchPrompt assembles the full user message for a batch.
func FormatBatchPrompt(c *kometa.Collection, movies []*radarr.Movie) (string, error) {
	moviesData, err := FormatMoviesData(movies)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s\n\nMOVIES TO EVALUATE:\n%s\n\nIMPORTANT: Respond ONLY with a valid JSON object containing 'collection_name' and 'decisions' fields.",
		FormatCollectionPrompt(c), moviesData), nil
}

// FormatMoviesData renders the movie list as indented JSON for the prompt.
// Optional metadata is included only when present to keep token usage down.
func FormatMoviesData(movies []*radarr.Movie) (string, error) {
	data := make([]map[string]interface{}, 0, len(movies))
	for _, m := range movies {
		entry := map[string]interface{}{
			"movie_id": m.ID,
			"title":    m.Title,
			"year":     m.Year,
			"genres":   m.Genres,
			"overview": m.Overview,
		}
		if m.ImdbID != "" {
			entry["imdb_id"] = m.ImdbID
		}
		if m.TmdbID != 0 {
			entry["tmdb_id"] = m.TmdbID
		}
		if m.Studio != "" {
			entry["studio"] = m.Studio
		}
		if m.Runtime != 0 {
			entry["runtime_minutes"] = m.Runtime
		}
		if m.OriginalTitle != "" && m.OriginalTitle != m.Title {
			entry["original_title"] = m.OriginalTitle
		}
		if len(m.AlternativeTitles) > 0 {
			titles := make([]string, 0, len(m.AlternativeTitles))
			for _, at := range m.AlternativeTitles {
				titles = append(titles, at.Title)
			}
			entry["alternative_titles"] = titles
		}
		if m.Collection != nil && m.Collection.Title != "" {
			entry["collection"] = m.Collection.Title
		}
		data = append(data, entry)
	}

	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode movie data: %w", err)
	}
	return string(encoded), nil
}

// FormatRefinementPrompt builds the single-movie re-examination message
// for a borderline decision.
func FormatRefinementPrompt(c *kometa.Collection, m *radarr.Movie, previous Decision) (string, error) {
	movieData, err := FormatMoviesData([]*radarr.Movie{m})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`
A previous batch evaluation for the %q collection scored this movie at confidence %.2f (threshold %g), which is borderline. Re-examine it carefully in isolation.

COLLECTION DEFINITION AND CRITERIA:
%s

MOVIE:
%s

Respond ONLY with a single JSON object of the form:
{"movie_id": %d, "title": %q, "include": true, "confidence": 0.95, "reasoning": "..."}
`, c.Name, previous.Confidence, c.ConfidenceThreshold, strings.TrimSpace(c.Prompt), movieData, m.ID, m.Title), nil
}
