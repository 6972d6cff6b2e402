// Kometa-AI - AI-Powered Collection Management for Radarr
// Copyright 2026 tikibozo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tikibozo/kometa-ai

// Package health verifies outward connectivity and configuration before
// a deployment is considered live.
package health

import (
	"context"
	"fmt"
	"os"

	"github.com/tikibozo/kometa-ai/internal/config"
	"github.com/tikibozo/kometa-ai/internal/kometa"
	"github.com/tikibozo/kometa-ai/internal/logging"
)

// Pinger is a connectivity test on an upstream service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Probe bundles the checks run by --health-check and container health
// probes.
type Probe struct {
	cfg    *config.Config
	radarr Pinger
	claude Pinger
}

// NewProbe builds a probe over the given upstream clients.
func NewProbe(cfg *config.Config, radarr, claude Pinger) *Probe {
	return &Probe{cfg: cfg, radarr: radarr, claude: claude}
}

// Run executes every check and returns the first hard failure. Soft
// findings (missing optional config) are logged as warnings only.
func (p *Probe) Run(ctx context.Context) error {
	logging.Info().Msg("checking Radarr connectivity")
	if err := p.radarr.Ping(ctx); err != nil {
		return fmt.Errorf("radarr check failed: %w", err)
	}
	logging.Info().Msg("Radarr reachable")

	logging.Info().Msg("checking Claude API connectivity")
	if err := p.claude.Ping(ctx); err != nil {
		return fmt.Errorf("claude check failed: %w", err)
	}
	logging.Info().Msg("Claude API reachable")

	logging.Info().Msg("checking Kometa configuration directory")
	if err := p.checkKometaConfig(); err != nil {
		return err
	}

	logging.Info().Msg("checking state directory")
	if err := os.MkdirAll(p.cfg.State.Dir, 0o755); err != nil {
		return fmt.Errorf("state directory not writable: %w", err)
	}

	if p.cfg.SMTP.Server == "" {
		logging.Warn().Msg("smtp server not configured, email notifications disabled")
	}
	if p.cfg.Schedule.Interval == "" {
		logging.Warn().Msg("schedule interval not configured")
	}

	logging.Info().Msg("all health checks passed")
	return nil
}

// checkKometaConfig verifies the rubric directory is readable and its
// collection definitions parse.
func (p *Probe) checkKometaConfig() error {
	info, err := os.Stat(p.cfg.Kometa.ConfigDir)
	if err != nil {
		return fmt.Errorf("kometa config directory not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("kometa config path %s is not a directory", p.cfg.Kometa.ConfigDir)
	}

	parser := kometa.NewParser(p.cfg.Kometa.ConfigDir)
	collections, err := parser.ParseCollections()
	if err != nil {
		return fmt.Errorf("kometa configuration unparseable: %w", err)
	}
	logging.Info().Int("collections", len(collections)).Msg("Kometa configuration parsed")
	return nil
}
