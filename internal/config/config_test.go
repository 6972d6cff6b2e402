// Kometa-AI - AI-Powered Collection Management for Radarr
// Copyright 2026 tikibozo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tikibozo/kometa-ai

package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Radarr.URL = "http://radarr:7878"
	cfg.Radarr.APIKey = "radarr-key"
	cfg.Claude.APIKey = "sk-ant-test"
	return cfg
}

func TestDefaults(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Batch.Size != 150 {
		t.Errorf("default batch size = %d, want 150", cfg.Batch.Size)
	}
	if cfg.Schedule.Interval != "1d" {
		t.Errorf("default interval = %q, want 1d", cfg.Schedule.Interval)
	}
	if cfg.Schedule.StartTime != "03:00" {
		t.Errorf("default start time = %q, want 03:00", cfg.Schedule.StartTime)
	}
	if cfg.Radarr.Timeout != 30*time.Second {
		t.Errorf("default radarr timeout = %v, want 30s", cfg.Radarr.Timeout)
	}
	if cfg.Claude.InputPricePerMillion != 3.0 || cfg.Claude.OutputPricePerMillion != 15.0 {
		t.Errorf("default pricing = %v/%v, want 3.0/15.0",
			cfg.Claude.InputPricePerMillion, cfg.Claude.OutputPricePerMillion)
	}
	if cfg.Radarr.RetryAttempts != 5 {
		t.Errorf("default retry attempts = %d, want 5", cfg.Radarr.RetryAttempts)
	}
}

func TestValidateMissingRequired(t *testing.T) {
	cfg := defaultConfig()
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error for empty config")
	}
	for _, want := range []string{"RADARR_URL", "RADARR_API_KEY", "CLAUDE_API_KEY"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %s", err.Error(), want)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"zero batch size", func(c *Config) { c.Batch.Size = 0 }, true},
		{"negative batch size", func(c *Config) { c.Batch.Size = -10 }, true},
		{"bad url scheme", func(c *Config) { c.Radarr.URL = "radarr:7878" }, true},
		{"https url", func(c *Config) { c.Radarr.URL = "https://radarr.example.com" }, false},
		{"negative input price", func(c *Config) { c.Claude.InputPricePerMillion = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEnvTransform(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{"RADARR_URL", "radarr.url"},
		{"RADARR_API_KEY", "radarr.api_key"},
		{"CLAUDE_API_KEY", "claude.api_key"},
		{"CLAUDE_MODEL", "claude.model"},
		{"SMTP_USE_SSL", "smtp.use_ssl"},
		{"NOTIFICATION_RECIPIENTS", "notify.recipients"},
		{"NOTIFY_ON_NO_CHANGES", "notify.on_no_changes"},
		{"SCHEDULE_INTERVAL", "schedule.interval"},
		{"TZ", "schedule.timezone"},
		{"BATCH_SIZE", "batch.size"},
		{"KOMETA_FIX_TAGS", "kometa.fix_tags"},
		{"DEBUG_LOGGING", "logging.debug"},
		{"PATH", ""},
		{"HOME", ""},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			if got := envTransformFunc(tt.env); got != tt.want {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.env, got, tt.want)
			}
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("RADARR_URL", "http://radarr:7878")
	t.Setenv("RADARR_API_KEY", "radarr-key")
	t.Setenv("CLAUDE_API_KEY", "sk-ant-test")
	t.Setenv("BATCH_SIZE", "200")
	t.Setenv("SCHEDULE_INTERVAL", "12h")
	t.Setenv("NOTIFICATION_RECIPIENTS", "a@example.com, b@example.com")
	t.Setenv("KOMETA_FIX_TAGS", "true")
	t.Setenv(ConfigPathEnvVar, "/nonexistent/config.yaml")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Radarr.URL != "http://radarr:7878" {
		t.Errorf("radarr url = %q", cfg.Radarr.URL)
	}
	if cfg.Batch.Size != 200 {
		t.Errorf("batch size = %d, want 200", cfg.Batch.Size)
	}
	if cfg.Schedule.Interval != "12h" {
		t.Errorf("interval = %q, want 12h", cfg.Schedule.Interval)
	}
	if !cfg.Kometa.FixTags {
		t.Error("fix tags should be enabled")
	}
	want := []string{"a@example.com", "b@example.com"}
	if len(cfg.Notify.Recipients) != len(want) {
		t.Fatalf("recipients = %v, want %v", cfg.Notify.Recipients, want)
	}
	for i := range want {
		if cfg.Notify.Recipients[i] != want[i] {
			t.Errorf("recipient[%d] = %q, want %q", i, cfg.Notify.Recipients[i], want[i])
		}
	}
}

func TestLoadValidationFailure(t *testing.T) {
	t.Setenv("RADARR_URL", "")
	t.Setenv("RADARR_API_KEY", "")
	t.Setenv("CLAUDE_API_KEY", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected Load() to fail without required settings")
	}
}

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", ""},
		{"short", "********"},
		{"12345678", "********"},
		{"sk-ant-api-key-value", "sk****************ue"},
	}

	for _, tt := range tests {
		if got := maskSecret(tt.input); got != tt.want {
			t.Errorf("maskSecret(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestDumpMasksSecrets(t *testing.T) {
	cfg := validConfig()
	cfg.Claude.APIKey = "sk-ant-very-secret-value"
	cfg.SMTP.Password = "smtp-password-123"

	out, err := cfg.Dump()
	if err != nil {
		t.Fatalf("Dump() error = %v", err)
	}
	if strings.Contains(out, "sk-ant-very-secret-value") {
		t.Error("dump leaked claude api key")
	}
	if strings.Contains(out, "smtp-password-123") {
		t.Error("dump leaked smtp password")
	}
	if !strings.Contains(out, "http://radarr:7878") {
		t.Error("dump missing non-secret value")
	}
}
