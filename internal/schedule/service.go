// Kometa-AI - AI-Powered Collection Management for Radarr
// Copyright 2026 tikibozo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tikibozo/kometa-ai

package schedule

import (
	"context"
	"time"

	"github.com/tikibozo/kometa-ai/internal/logging"
)

// maxSleep bounds each sleep tranche so shutdown signals are honored
// within a minute.
const maxSleep = 60 * time.Second

// RunFunc executes one scheduled run.
type RunFunc func(ctx context.Context) error

// Service runs the scheduler loop. It implements suture.Service.
type Service struct {
	plan *Plan
	run  RunFunc
	now  func() time.Time
}

// NewService wraps a run function in the scheduler loop.
func NewService(plan *Plan, run RunFunc) *Service {
	return &Service{plan: plan, run: run, now: time.Now}
}

// NextActivation reports the upcoming activation, for logging and
// reporting.
func (s *Service) NextActivation() time.Time {
	return s.plan.Next(s.now())
}

// Serve sleeps until each activation and invokes the run synchronously.
// Run failures are logged and the loop continues to the next activation.
func (s *Service) Serve(ctx context.Context) error {
	for {
		next := s.plan.Next(s.now())
		logging.Info().Time("next_run", next).Msg("scheduler waiting")

		if err := s.sleepUntil(ctx, next); err != nil {
			return err
		}

		logging.Info().Msg("scheduled run starting")
		if err := s.run(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logging.Err(err).Msg("scheduled run failed")
		}
	}
}

// sleepUntil blocks until target, waking at least once a minute to
// observe cancellation.
func (s *Service) sleepUntil(ctx context.Context, target time.Time) error {
	for {
		remaining := target.Sub(s.now())
		if remaining <= 0 {
			return nil
		}
		timer := time.NewTimer(min(remaining, maxSleep))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (s *Service) String() string { return "scheduler" }
