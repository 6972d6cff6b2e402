// Kometa-AI - AI-Powered Collection Management for Radarr
// Copyright 2026 tikibozo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tikibozo/kometa-ai

// Package config loads and validates application configuration.
//
// Configuration is layered via Koanf v2 (highest priority wins):
//  1. Built-in defaults
//  2. Optional YAML config file
//  3. Environment variables
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration for Kometa-AI.
type Config struct {
	Radarr   RadarrConfig   `koanf:"radarr" json:"radarr"`
	Claude   ClaudeConfig   `koanf:"claude" json:"claude"`
	SMTP     SMTPConfig     `koanf:"smtp" json:"smtp"`
	Notify   NotifyConfig   `koanf:"notify" json:"notify"`
	Schedule ScheduleConfig `koanf:"schedule" json:"schedule"`
	Kometa   KometaConfig   `koanf:"kometa" json:"kometa"`
	State    StateConfig    `koanf:"state" json:"state"`
	Batch    BatchConfig    `koanf:"batch" json:"batch"`
	Logging  LoggingConfig  `koanf:"logging" json:"logging"`
	Metrics  MetricsConfig  `koanf:"metrics" json:"metrics"`
}

// RadarrConfig holds connection settings for the Radarr instance.
type RadarrConfig struct {
	URL           string        `koanf:"url" json:"url"`
	APIKey        string        `koanf:"api_key" json:"api_key"`
	Timeout       time.Duration `koanf:"timeout" json:"timeout"`
	RetryAttempts int           `koanf:"retry_attempts" json:"retry_attempts"`
}

// ClaudeConfig holds settings for the Claude API.
type ClaudeConfig struct {
	APIKey  string        `koanf:"api_key" json:"api_key"`
	Model   string        `koanf:"model" json:"model"`
	Timeout time.Duration `koanf:"timeout" json:"timeout"`

	// Pricing constants used for cost accounting, in USD per million tokens.
	InputPricePerMillion  float64 `koanf:"input_price_per_million" json:"input_price_per_million"`
	OutputPricePerMillion float64 `koanf:"output_price_per_million" json:"output_price_per_million"`

	// RequestsPerMinute caps the outbound request rate. 0 disables the limiter.
	RequestsPerMinute int `koanf:"requests_per_minute" json:"requests_per_minute"`
}

// SMTPConfig holds SMTP delivery settings for run reports.
type SMTPConfig struct {
	Server   string `koanf:"server" json:"server"`
	Port     int    `koanf:"port" json:"port"`
	Username string `koanf:"username" json:"username"`
	Password string `koanf:"password" json:"password"`
	UseTLS   bool   `koanf:"use_tls" json:"use_tls"`
	UseSSL   bool   `koanf:"use_ssl" json:"use_ssl"`
}

// NotifyConfig controls when and to whom run reports are sent.
type NotifyConfig struct {
	Recipients   []string `koanf:"recipients" json:"recipients"`
	From         string   `koanf:"from" json:"from"`
	ReplyTo      string   `koanf:"reply_to" json:"reply_to"`
	OnNoChanges  bool     `koanf:"on_no_changes" json:"on_no_changes"`
	OnErrorsOnly bool     `koanf:"on_errors_only" json:"on_errors_only"`
}

// ScheduleConfig describes the recurring activation schedule.
type ScheduleConfig struct {
	// Interval between runs: <N>{h|d|w|mo}, e.g. "1d", "12h".
	Interval string `koanf:"interval" json:"interval"`

	// StartTime is the wall-clock activation time, HH:MM.
	StartTime string `koanf:"start_time" json:"start_time"`

	// Timezone for StartTime. Default UTC.
	Timezone string `koanf:"timezone" json:"timezone"`
}

// KometaConfig locates the Kometa collection definitions.
type KometaConfig struct {
	// ConfigDir is the directory scanned for Kometa YAML files.
	ConfigDir string `koanf:"config_dir" json:"config_dir"`

	// FixTags rewrites radarr_taglist values that disagree with the
	// tag derived from the collection name.
	FixTags bool `koanf:"fix_tags" json:"fix_tags"`
}

// StateConfig locates the persistent decision state.
type StateConfig struct {
	Dir string `koanf:"dir" json:"dir"`
}

// BatchConfig controls oracle batch sizing.
type BatchConfig struct {
	Size int `koanf:"size" json:"size"`
}

// LoggingConfig mirrors logging.Config for koanf unmarshaling.
type LoggingConfig struct {
	Level  string `koanf:"level" json:"level"`
	Format string `koanf:"format" json:"format"`
	Caller bool   `koanf:"caller" json:"caller"`
	Debug  bool   `koanf:"debug" json:"debug"`
}

// MetricsConfig controls the optional Prometheus listener.
type MetricsConfig struct {
	// Port for the /metrics and /healthz listener. 0 disables it.
	Port int `koanf:"port" json:"port"`
}

// defaultConfig returns a Config with all default values applied.
// Defaults are overridden by the config file and environment variables.
func defaultConfig() *Config {
	return &Config{
		Radarr: RadarrConfig{
			URL:           "",
			APIKey:        "",
			Timeout:       30 * time.Second,
			RetryAttempts: 5,
		},
		Claude: ClaudeConfig{
			APIKey:  "",
			Model:   "claude-3-7-sonnet-latest",
			Timeout: 120 * time.Second,
			// Claude Sonnet list pricing.
			InputPricePerMillion:  3.0,
			OutputPricePerMillion: 15.0,
			RequestsPerMinute:     0,
		},
		SMTP: SMTPConfig{
			Server: "",
			Port:   25,
			UseTLS: false,
			UseSSL: false,
		},
		Notify: NotifyConfig{
			Recipients:   nil,
			From:         "kometa-ai@localhost",
			OnNoChanges:  false,
			OnErrorsOnly: false,
		},
		Schedule: ScheduleConfig{
			Interval:  "1d",
			StartTime: "03:00",
			Timezone:  "UTC",
		},
		Kometa: KometaConfig{
			ConfigDir: "kometa-config",
			FixTags:   false,
		},
		State: StateConfig{
			Dir: "state",
		},
		Batch: BatchConfig{
			Size: 150,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Metrics: MetricsConfig{
			Port: 0,
		},
	}
}

// Validate checks that required settings are present and well-formed.
// A validation failure is a fatal configuration error: the process must
// exit before any mutation.
func (c *Config) Validate() error {
	var missing []string
	if c.Radarr.URL == "" {
		missing = append(missing, "RADARR_URL")
	}
	if c.Radarr.APIKey == "" {
		missing = append(missing, "RADARR_API_KEY")
	}
	if c.Claude.APIKey == "" {
		missing = append(missing, "CLAUDE_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if c.Batch.Size <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.Batch.Size)
	}
	if !strings.HasPrefix(c.Radarr.URL, "http://") && !strings.HasPrefix(c.Radarr.URL, "https://") {
		return fmt.Errorf("radarr url must start with http:// or https://, got %q", c.Radarr.URL)
	}
	if c.Claude.InputPricePerMillion < 0 || c.Claude.OutputPricePerMillion < 0 {
		return fmt.Errorf("claude pricing constants must be non-negative")
	}
	return nil
}

// LogLevel returns the effective log level, honoring the DEBUG_LOGGING
// escape hatch over the configured level.
func (c *Config) LogLevel() string {
	if c.Logging.Debug {
		return "debug"
	}
	return c.Logging.Level
}
