// Kometa-AI - AI-Powered Collection Management for Radarr
// Copyright 2026 tikibozo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tikibozo/kometa-ai

package kometa

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/tikibozo/kometa-ai/internal/logging"
)

var (
	startMarker = regexp.MustCompile(`(?m)^\s*#\s*===\s*KOMETA-AI\s*===\s*$`)
	endMarker   = regexp.MustCompile(`(?m)^\s*#\s*===\s*END\s*KOMETA-AI\s*===\s*$`)

	collectionNameRe = regexp.MustCompile(`^([^:]+):`)
)

// recognizedKeys are configuration keys that must never be swallowed
// into a multi-line prompt when the block omits proper indentation.
var recognizedKeys = []string{
	"confidence_threshold:",
	"priority:",
	"enabled:",
	"use_iterative_refinement:",
	"refinement_threshold:",
	"exclude_tags:",
	"include_tags:",
	"example_inclusions:",
	"example_exclusions:",
}

// Parser extracts AI collection definitions from a Kometa config tree.
type Parser struct {
	configDir string
}

// NewParser creates a parser rooted at the Kometa config directory.
func NewParser(configDir string) *Parser {
	return &Parser{configDir: configDir}
}

// FindYAMLFiles returns all YAML files under the config directory,
// skipping files whose name starts with an underscore or dot.
func (p *Parser) FindYAMLFiles() ([]string, error) {
	var files []string
	err := filepath.WalkDir(p.configDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".") {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(name))
		if ext == ".yml" || ext == ".yaml" {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan config directory %s: %w", p.configDir, err)
	}
	sort.Strings(files)
	logging.Info().Int("count", len(files)).Str("dir", p.configDir).Msg("found kometa config files")
	return files, nil
}

// ParseCollections parses all enabled collection definitions, ordered by
// priority descending. Per-file parse errors are logged and skipped so a
// single broken file does not take out the run.
func (p *Parser) ParseCollections() ([]*Collection, error) {
	files, err := p.FindYAMLFiles()
	if err != nil {
		return nil, err
	}

	byName := map[string]*Collection{}
	var order []string
	for _, path := range files {
		collections, err := p.parseFile(path)
		if err != nil {
			logging.Err(err).Str("file", path).Msg("failed to parse config file, skipping")
			continue
		}
		for _, c := range collections {
			if _, seen := byName[c.Name]; seen {
				logging.Warn().Str("collection", c.Name).Str("file", path).
					Msg("collection defined in multiple files, later definition wins")
			} else {
				order = append(order, c.Name)
			}
			byName[c.Name] = c
		}
	}

	var enabled []*Collection
	tagOwner := map[string]string{}
	for _, name := range order {
		c := byName[name]
		if !c.Enabled {
			continue
		}
		if strings.TrimSpace(c.Prompt) == "" {
			logging.Warn().Str("collection", c.Name).Str("file", c.SourceFile).
				Msg("enabled collection has no prompt, skipping")
			continue
		}
		if owner, taken := tagOwner[c.Tag()]; taken {
			logging.Warn().Str("collection", c.Name).Str("tag", c.Tag()).Str("owned_by", owner).
				Msg("collections share a tag, skipping duplicate")
			continue
		}
		tagOwner[c.Tag()] = c.Name
		enabled = append(enabled, c)
	}
	logging.Info().Int("enabled", len(enabled)).Int("total", len(order)).Msg("parsed ai collections")

	// Higher priority first, name breaks ties.
	sort.SliceStable(enabled, func(i, j int) bool {
		if enabled[i].Priority != enabled[j].Priority {
			return enabled[i].Priority > enabled[j].Priority
		}
		return enabled[i].Name < enabled[j].Name
	})
	return enabled, nil
}

// parseFile extracts every AI block in one file.
func (p *Parser) parseFile(path string) ([]*Collection, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	content := string(raw)

	var collections []*Collection
	offset := 0
	for {
		rest := content[offset:]
		start := startMarker.FindStringIndex(rest)
		if start == nil {
			break
		}
		end := endMarker.FindStringIndex(rest[start[1]:])
		if end == nil {
			logging.Warn().Str("file", path).Msg("unterminated ai block, ignoring")
			break
		}

		blockText := rest[start[1] : start[1]+end[0]]
		afterBlock := rest[start[1]+end[1]:]
		offset += start[1] + end[1]

		name := collectionNameAfter(afterBlock)
		if name == "" {
			logging.Warn().Str("file", path).Msg("could not determine collection name for ai block")
			continue
		}

		c := parseBlock(blockText)
		c.Name = name
		c.Slug = Slugify(name)
		c.SourceFile = path
		collections = append(collections, c)
	}
	return collections, nil
}

// collectionNameAfter finds the first non-comment, non-empty line after a
// block and returns its YAML mapping key.
func collectionNameAfter(content string) string {
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if m := collectionNameRe.FindStringSubmatch(trimmed); m != nil {
			return strings.TrimSpace(m[1])
		}
		return ""
	}
	return ""
}

// parseBlock reads the commented key-value pairs of one block. A prompt
// given as a pipe literal collects following comment lines until a
// recognized configuration key appears.
func parseBlock(blockText string) *Collection {
	c := &Collection{
		ConfidenceThreshold: 0.7,
		RefinementThreshold: 0.15,
	}

	var promptLines []string
	inPrompt := false
	promptIndent := -1

	for _, line := range strings.Split(blockText, "\n") {
		stripped := strings.TrimSpace(line)
		if stripped == "" || !strings.HasPrefix(stripped, "#") {
			continue
		}
		cleaned := strings.TrimPrefix(stripped, "#")
		cleaned = strings.TrimPrefix(cleaned, " ")

		if inPrompt {
			indent := len(cleaned) - len(strings.TrimLeft(cleaned, " "))
			// Only a key at the block's base indent ends the prompt;
			// indented lines that happen to look like keys are text.
			if indent == 0 && isRecognizedKey(cleaned) {
				inPrompt = false
				applyKeyValue(c, cleaned)
				continue
			}
			if promptIndent < 0 && strings.TrimSpace(cleaned) != "" {
				promptIndent = indent
			}
			promptLines = append(promptLines, dedent(cleaned, promptIndent))
			continue
		}

		if key, value, ok := splitKeyValue(cleaned); ok && strings.EqualFold(key, "prompt") {
			if value == "|" {
				inPrompt = true
			} else {
				c.Prompt = value
			}
			continue
		}

		applyKeyValue(c, cleaned)
	}

	if len(promptLines) > 0 {
		c.Prompt = strings.Join(promptLines, "\n")
	}
	return c
}

// dedent strips up to n leading spaces, the way a YAML block scalar
// drops the indentation established by its first line.
func dedent(line string, n int) string {
	for i := 0; i < n && strings.HasPrefix(line, " "); i++ {
		line = line[1:]
	}
	return line
}

func isRecognizedKey(line string) bool {
	trimmed := strings.TrimSpace(line)
	for _, key := range recognizedKeys {
		if strings.HasPrefix(trimmed, key) {
			return true
		}
	}
	return false
}

func splitKeyValue(line string) (key, value string, ok bool) {
	idx := strings.Index(line, ":")
	if idx < 0 {
		return "", "", false
	}
	return strings.TrimSpace(line[:idx]), strings.TrimSpace(line[idx+1:]), true
}

func applyKeyValue(c *Collection, line string) {
	key, value, ok := splitKeyValue(line)
	if !ok {
		return
	}

	switch strings.ToLower(key) {
	case "enabled":
		c.Enabled = parseBool(value)
	case "confidence_threshold":
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			c.ConfidenceThreshold = f
		}
	case "priority":
		if n, err := strconv.Atoi(value); err == nil {
			c.Priority = n
		}
	case "use_iterative_refinement":
		c.UseIterativeRefinement = parseBool(value)
	case "refinement_threshold":
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			c.RefinementThreshold = f
		}
	case "exclude_tags":
		c.ExcludeTags = parseTagList(value)
	case "include_tags":
		c.IncludeTags = parseTagList(value)
	case "example_inclusions":
		c.ExampleInclusions = parseTagList(value)
	case "example_exclusions":
		c.ExampleExclusions = parseTagList(value)
	}
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "yes", "1":
		return true
	default:
		return false
	}
}

// parseTagList accepts a YAML flow sequence ("[a, b]") or a bare
// comma-separated list.
func parseTagList(value string) []string {
	value = strings.TrimSpace(value)
	value = strings.TrimPrefix(value, "[")
	value = strings.TrimSuffix(value, "]")
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(strings.TrimSpace(p), `"'`)
		if p != "" {
			tags = append(tags, p)
		}
	}
	return tags
}
