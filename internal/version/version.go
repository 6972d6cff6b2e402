// Kometa-AI - AI-Powered Collection Management for Radarr
// Copyright 2026 tikibozo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tikibozo/kometa-ai

// Package version holds the application version string.
package version

// Version is the application version. Overridden at build time via
// -ldflags "-X github.com/tikibozo/kometa-ai/internal/version.Version=…".
var Version = "0.9.0-dev"
