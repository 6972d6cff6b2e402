// Kometa-AI - AI-Powered Collection Management for Radarr
// Copyright 2026 tikibozo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tikibozo/kometa-ai

package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tikibozo/kometa-ai/internal/logging"
)

// Server exposes /metrics and health probes on a dedicated listener.
// It implements suture.Service so it can run under the supervisor.
type Server struct {
	addr            string
	shutdownTimeout time.Duration

	// ready flips to true once the first run cycle has completed startup
	// checks. /readyz reports 503 until then.
	ready atomic.Bool
}

// NewServer creates a metrics server listening on the given port.
func NewServer(port int) *Server {
	return &Server{
		addr:            fmt.Sprintf(":%d", port),
		shutdownTimeout: 10 * time.Second,
	}
}

// SetReady marks the process ready for the readiness probe.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// Router builds the chi router serving metrics and probes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)

	r.Handle("/metrics", promhttp.Handler())

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if !s.ready.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("starting\n"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	})

	return r
}

// Serve implements suture.Service. It blocks until the context is
// canceled, then shuts the listener down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", s.addr).Msg("metrics listener starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("metrics listener failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics listener shutdown: %w", err)
		}
		return ctx.Err()
	}
}

func (s *Server) String() string {
	return "metrics-server"
}
