// Kometa-AI - AI-Powered Collection Management for Radarr
// Copyright 2026 tikibozo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tikibozo/kometa-ai

package claude

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tikibozo/kometa-ai/internal/logging"
)

var (
	codeBlockRe    = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)\\s*```")
	trailingObjRe  = regexp.MustCompile(`(\{[\s\S]*\})\s*$`)
	lineCommentRe  = regexp.MustCompile(`(?m)//.*?$`)
	blockCommentRe = regexp.MustCompile(`(?s)/\*.*?\*/`)
	trailingComma  = regexp.MustCompile(`,\s*([}\]])`)
	collectionRe   = regexp.MustCompile(`"collection_name"\s*:\s*"([^"]+)"`)
	decisionsRe    = regexp.MustCompile(`"decisions"\s*:\s*(\[[\s\S]*?\])`)
	decisionObjRe  = regexp.MustCompile(`(\{\s*"movie_id"\s*:\s*\d+[^}]+\})`)
	bareKeyRe      = regexp.MustCompile(`(\w+)\s*:`)
)

// ParseBatchResponse parses a classification reply, salvaging common
// deviations from the JSON contract in order of increasing aggression:
//
//  1. the whole reply as JSON
//  2. a markdown code block
//  3. the trailing JSON object, with comment and trailing-comma cleanup
//  4. reconstructing from collection_name and decisions fragments
//  5. harvesting individual decision objects
func ParseBatchResponse(text string) (*BatchResult, error) {
	// Strategy 1: whole reply.
	if result, err := decodeBatch(text); err == nil {
		return result, nil
	}

	// Strategy 2: markdown code block.
	if m := codeBlockRe.FindStringSubmatch(text); m != nil {
		if result, err := decodeBatch(m[1]); err == nil {
			return result, nil
		}
	}

	// Strategy 3: trailing object, then with comment cleanup.
	if m := trailingObjRe.FindStringSubmatch(text); m != nil {
		if result, err := decodeBatch(m[1]); err == nil {
			return result, nil
		}
		cleaned := lineCommentRe.ReplaceAllString(m[1], "")
		cleaned = blockCommentRe.ReplaceAllString(cleaned, "")
		cleaned = trailingComma.ReplaceAllString(cleaned, "$1")
		if result, err := decodeBatch(cleaned); err == nil {
			return result, nil
		}
	}

	// Strategy 4: rebuild from fragments.
	if cm, dm := collectionRe.FindStringSubmatch(text), decisionsRe.FindStringSubmatch(text); cm != nil && dm != nil {
		decisionsStr := trailingComma.ReplaceAllString(dm[1], "$1")
		var decisions []Decision
		if err := json.Unmarshal([]byte(decisionsStr), &decisions); err == nil {
			return &BatchResult{CollectionName: cm[1], Decisions: decisions}, nil
		}
	}

	// Strategy 5: harvest individual decisions.
	if objs := decisionObjRe.FindAllString(text, -1); len(objs) > 0 {
		name := "Unknown Collection"
		if cm := collectionRe.FindStringSubmatch(text); cm != nil {
			name = cm[1]
		}

		var decisions []Decision
		for _, obj := range objs {
			fixed := bareKeyRe.ReplaceAllString(obj, `"$1":`)
			var d Decision
			if err := json.Unmarshal([]byte(fixed), &d); err == nil {
				decisions = append(decisions, d)
			}
		}
		if len(decisions) > 0 {
			logging.Warn().Int("salvaged", len(decisions)).Msg("salvaged decisions from malformed claude response")
			return &BatchResult{CollectionName: name, Decisions: decisions}, nil
		}
	}

	return nil, fmt.Errorf("no parseable JSON in response (preview: %s)", preview(text))
}

// decodeBatch decodes and validates one candidate JSON document.
func decodeBatch(s string) (*BatchResult, error) {
	var result BatchResult
	if err := json.Unmarshal([]byte(s), &result); err != nil {
		return nil, err
	}
	if result.CollectionName == "" {
		return nil, fmt.Errorf("response missing collection_name")
	}
	if result.Decisions == nil {
		return nil, fmt.Errorf("response missing decisions")
	}
	return &result, nil
}

// ParseDecisionResponse parses a single-movie analysis reply.
func ParseDecisionResponse(text string) (*Decision, error) {
	candidates := []string{text}
	if m := codeBlockRe.FindStringSubmatch(text); m != nil {
		candidates = append(candidates, m[1])
	}
	if m := trailingObjRe.FindStringSubmatch(text); m != nil {
		candidates = append(candidates, m[1])
	}

	for _, candidate := range candidates {
		var d Decision
		if err := json.Unmarshal([]byte(strings.TrimSpace(candidate)), &d); err == nil {
			return &d, nil
		}
	}
	return nil, fmt.Errorf("no parseable decision in response (preview: %s)", preview(text))
}

func preview(text string) string {
	text = strings.TrimSpace(text)
	if len(text) > 200 {
		return text[:200] + "..."
	}
	return text
}
