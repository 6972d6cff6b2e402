// Kometa-AI - AI-Powered Collection Management for Radarr
// Copyright 2026 tikibozo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tikibozo/kometa-ai

package config

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// secretKeyMarkers identifies config keys whose values must never be
// printed in full.
var secretKeyMarkers = []string{"api_key", "password", "secret", "token"}

// maskSecret keeps the first and last two characters of a secret so the
// operator can confirm which credential is loaded without exposing it.
func maskSecret(value string) string {
	if value == "" {
		return ""
	}
	if len(value) <= 8 {
		return "********"
	}
	return value[:2] + strings.Repeat("*", len(value)-4) + value[len(value)-2:]
}

func isSecretKey(key string) bool {
	lower := strings.ToLower(key)
	for _, marker := range secretKeyMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// Dump renders the effective configuration as indented JSON with secret
// values masked. Used by the --dump-config CLI flag.
func (c *Config) Dump() (string, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to marshal configuration: %w", err)
	}

	var tree map[string]interface{}
	if err := json.Unmarshal(raw, &tree); err != nil {
		return "", fmt.Errorf("failed to decode configuration: %w", err)
	}
	maskTree(tree)

	out, err := json.MarshalIndent(tree, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to render configuration: %w", err)
	}
	return string(out), nil
}

func maskTree(node map[string]interface{}) {
	for key, val := range node {
		switch v := val.(type) {
		case map[string]interface{}:
			maskTree(v)
		case string:
			if isSecretKey(key) {
				node[key] = maskSecret(v)
			}
		}
	}
}
