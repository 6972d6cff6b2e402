// Kometa-AI - AI-Powered Collection Management for Radarr
// Copyright 2026 tikibozo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tikibozo/kometa-ai

package health

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tikibozo/kometa-ai/internal/config"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	kometaDir := t.TempDir()
	content := "collections:\n" +
		"  # === KOMETA-AI ===\n" +
		"  # enabled: true\n" +
		"  # prompt: Film noir movies.\n" +
		"  # === END KOMETA-AI ===\n" +
		"  Film Noir:\n" +
		"    radarr_taglist: KAI-film-noir\n"
	if err := os.WriteFile(filepath.Join(kometaDir, "collections.yml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{}
	cfg.Kometa.ConfigDir = kometaDir
	cfg.State.Dir = filepath.Join(t.TempDir(), "state")
	return cfg
}

func TestProbeAllHealthy(t *testing.T) {
	p := NewProbe(testConfig(t), fakePinger{}, fakePinger{})
	if err := p.Run(context.Background()); err != nil {
		t.Errorf("Run() error = %v", err)
	}
}

func TestProbeRadarrDown(t *testing.T) {
	p := NewProbe(testConfig(t), fakePinger{err: errors.New("connection refused")}, fakePinger{})
	err := p.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "radarr") {
		t.Errorf("Run() error = %v, want radarr failure", err)
	}
}

func TestProbeClaudeDown(t *testing.T) {
	p := NewProbe(testConfig(t), fakePinger{}, fakePinger{err: errors.New("401 unauthorized")})
	err := p.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "claude") {
		t.Errorf("Run() error = %v, want claude failure", err)
	}
}

func TestProbeMissingKometaDir(t *testing.T) {
	cfg := testConfig(t)
	cfg.Kometa.ConfigDir = filepath.Join(t.TempDir(), "does-not-exist")

	err := NewProbe(cfg, fakePinger{}, fakePinger{}).Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "kometa config directory") {
		t.Errorf("Run() error = %v, want config directory failure", err)
	}
}

func TestProbeCreatesStateDir(t *testing.T) {
	cfg := testConfig(t)
	if err := NewProbe(cfg, fakePinger{}, fakePinger{}).Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(cfg.State.Dir); err != nil {
		t.Errorf("state dir not created: %v", err)
	}
}
