// Kometa-AI - AI-Powered Collection Management for Radarr
// Copyright 2026 tikibozo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tikibozo/kometa-ai

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for a config file, in order.
// The first file found is used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/kometa-ai/config.yaml",
	"/etc/kometa-ai/config.yml",
}

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "CONFIG_PATH"

// Load loads configuration using Koanf v2 with layered sources:
//  1. Defaults: built-in sensible defaults
//  2. Config file: optional YAML file (if present)
//  3. Environment variables: override any setting
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first config file found, or empty string.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths defines config paths parsed as comma-separated slices
// when supplied via environment variables.
var sliceConfigPaths = []string{
	"notify.recipients",
}

// processSliceFields converts comma-separated strings to slices for known
// slice fields. Env vars arrive as strings; the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps recognized environment variable names to koanf
// config paths. Unmapped keys return empty string and are skipped, which
// prevents unrelated environment variables from polluting the config.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Radarr
		"radarr_url":            "radarr.url",
		"radarr_api_key":        "radarr.api_key",
		"radarr_timeout":        "radarr.timeout",
		"radarr_retry_attempts": "radarr.retry_attempts",

		// Claude
		"claude_api_key":             "claude.api_key",
		"claude_model":               "claude.model",
		"claude_timeout":             "claude.timeout",
		"claude_input_price":         "claude.input_price_per_million",
		"claude_output_price":        "claude.output_price_per_million",
		"claude_requests_per_minute": "claude.requests_per_minute",

		// SMTP
		"smtp_server":   "smtp.server",
		"smtp_port":     "smtp.port",
		"smtp_username": "smtp.username",
		"smtp_password": "smtp.password",
		"smtp_use_tls":  "smtp.use_tls",
		"smtp_use_ssl":  "smtp.use_ssl",

		// Notifications
		"notification_recipients": "notify.recipients",
		"notification_from":       "notify.from",
		"notification_reply_to":   "notify.reply_to",
		"notify_on_no_changes":    "notify.on_no_changes",
		"notify_on_errors_only":   "notify.on_errors_only",

		// Schedule
		"schedule_interval":   "schedule.interval",
		"schedule_start_time": "schedule.start_time",
		"tz":                  "schedule.timezone",

		// Kometa
		"kometa_config_dir": "kometa.config_dir",
		"kometa_fix_tags":   "kometa.fix_tags",

		// State
		"state_dir": "state.dir",

		// Batching
		"batch_size": "batch.size",

		// Logging
		"log_level":     "logging.level",
		"log_format":    "logging.format",
		"log_caller":    "logging.caller",
		"debug_logging": "logging.debug",

		// Metrics
		"metrics_port": "metrics.port",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
