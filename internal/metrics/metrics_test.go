// Kometa-AI - AI-Powered Collection Management for Radarr
// Copyright 2026 tikibozo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tikibozo/kometa-ai

package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordRun(t *testing.T) {
	before := testutil.ToFloat64(RunsTotal.WithLabelValues("success"))
	RecordRun(90*time.Second, "success")
	after := testutil.ToFloat64(RunsTotal.WithLabelValues("success"))
	if after != before+1 {
		t.Errorf("runs_total success = %v, want %v", after, before+1)
	}
	if testutil.ToFloat64(RunLastSuccess) == 0 {
		t.Error("last success timestamp not set")
	}
}

func TestRecordClaudeUsage(t *testing.T) {
	beforeIn := testutil.ToFloat64(ClaudeTokens.WithLabelValues("input"))
	beforeCost := testutil.ToFloat64(ClaudeCostDollars)

	RecordClaudeUsage(1000, 200, 0.006)

	if got := testutil.ToFloat64(ClaudeTokens.WithLabelValues("input")); got != beforeIn+1000 {
		t.Errorf("input tokens = %v, want %v", got, beforeIn+1000)
	}
	gotCost := testutil.ToFloat64(ClaudeCostDollars)
	if gotCost < beforeCost+0.0059 || gotCost > beforeCost+0.0061 {
		t.Errorf("cost = %v, want ~%v", gotCost, beforeCost+0.006)
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"timeout", errors.New("context deadline exceeded"), "timeout"},
		{"connection", errors.New("dial tcp: connection refused"), "connection"},
		{"auth", errors.New("unexpected status 401"), "auth"},
		{"breaker", errors.New("circuit breaker is open"), "breaker_open"},
		{"other", errors.New("something odd"), "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyError(tt.err); got != tt.want {
				t.Errorf("classifyError(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestServerRoutes(t *testing.T) {
	srv := NewServer(0)
	handler := srv.Router()

	tests := []struct {
		path       string
		ready      bool
		wantStatus int
	}{
		{"/healthz", false, http.StatusOK},
		{"/readyz", false, http.StatusServiceUnavailable},
		{"/readyz", true, http.StatusOK},
		{"/metrics", false, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			srv.SetReady(tt.ready)
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Errorf("GET %s = %d, want %d", tt.path, rec.Code, tt.wantStatus)
			}
		})
	}
}
