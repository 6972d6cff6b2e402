// Kometa-AI - AI-Powered Collection Management for Radarr
// Copyright 2026 tikibozo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tikibozo/kometa-ai

// Package metrics provides Prometheus instrumentation for Kometa-AI.
//
// Metrics are registered via promauto at package init and exposed by the
// optional HTTP listener (see Server). The listener also serves liveness
// and readiness probes for container orchestration.
package metrics
