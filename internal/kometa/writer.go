// Kometa-AI - AI-Powered Collection Management for Radarr
// Copyright 2026 tikibozo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tikibozo/kometa-ai

package kometa

import (
	"fmt"
	"os"
	"strings"

	"github.com/tikibozo/kometa-ai/internal/logging"
)

// CheckTaglist verifies that the collection's radarr_taglist entry in the
// given file matches the tag derived from the collection name. It returns
// the value currently in the file. A missing radarr_taglist is reported
// as not ok with an empty current value.
func CheckTaglist(path, collectionName string) (ok bool, current string, err error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return false, "", fmt.Errorf("failed to read %s: %w", path, err)
	}

	expected := TagPrefix + Slugify(collectionName)
	current = findTaglist(string(raw), collectionName)
	if current == "" {
		return false, "", nil
	}
	return current == expected, current, nil
}

// FixTaglist rewrites the collection's radarr_taglist value to the tag
// derived from the collection name. Only the value itself changes; every
// other byte of the file is preserved.
func FixTaglist(path, collectionName string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	content := string(raw)

	expected := TagPrefix + Slugify(collectionName)
	current := findTaglist(content, collectionName)
	if current == "" {
		return fmt.Errorf("no radarr_taglist found for collection %q in %s", collectionName, path)
	}
	if current == expected {
		return nil
	}

	fixed := replaceTaglist(content, collectionName, current, expected)
	if fixed == content {
		return fmt.Errorf("failed to rewrite radarr_taglist for collection %q in %s", collectionName, path)
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(fixed), info.Mode()); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	logging.Info().
		Str("collection", collectionName).
		Str("from", current).
		Str("to", expected).
		Str("file", path).
		Msg("fixed radarr_taglist")
	return nil
}

// findTaglist returns the radarr_taglist value inside the named
// collection's mapping, or empty string if absent.
func findTaglist(content, collectionName string) string {
	lines := strings.Split(content, "\n")
	inCollection := false
	collectionIndent := -1

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		indent := len(line) - len(strings.TrimLeft(line, " \t"))

		if !inCollection {
			if strings.HasPrefix(trimmed, collectionName+":") {
				inCollection = true
				collectionIndent = indent
			}
			continue
		}

		// A line at or above the collection's indent starts a new mapping.
		if indent <= collectionIndent {
			return ""
		}
		if strings.HasPrefix(trimmed, "radarr_taglist:") {
			return strings.TrimSpace(strings.TrimPrefix(trimmed, "radarr_taglist:"))
		}
	}
	return ""
}

// replaceTaglist rewrites only the taglist value line inside the named
// collection's mapping.
func replaceTaglist(content, collectionName, current, expected string) string {
	lines := strings.Split(content, "\n")
	inCollection := false
	collectionIndent := -1

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		indent := len(line) - len(strings.TrimLeft(line, " \t"))

		if !inCollection {
			if strings.HasPrefix(trimmed, collectionName+":") {
				inCollection = true
				collectionIndent = indent
			}
			continue
		}
		if indent <= collectionIndent {
			break
		}
		if strings.HasPrefix(trimmed, "radarr_taglist:") {
			lines[i] = strings.Replace(line, current, expected, 1)
			break
		}
	}
	return strings.Join(lines, "\n")
}
