// Kometa-AI - AI-Powered Collection Management for Radarr
// Copyright 2026 tikibozo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tikibozo/kometa-ai

package radarr

import (
	"context"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tikibozo/kometa-ai/internal/logging"
	"github.com/tikibozo/kometa-ai/internal/metrics"
)

// Breaker wraps a Radarr client with a circuit breaker so a dead or
// flapping Radarr fails fast instead of stalling a run on every call.
//
// The breaker uses real time for its interval and timeout windows. Tests
// should exercise the wrapped client directly.
type Breaker struct {
	inner Interface
	cb    *gobreaker.CircuitBreaker[interface{}]
	name  string
}

// NewBreaker wraps the given client with circuit breaker protection.
// The circuit opens at a 60% failure rate over at least 10 requests,
// stays open for 2 minutes, then admits up to 3 probe requests.
func NewBreaker(inner Interface) *Breaker {
	cbName := "radarr-api"
	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0)

	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			if failureRatio >= 0.6 {
				logging.Warn().
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("radarr circuit breaker opening")
				return true
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)
			logging.Info().Str("from", fromStr).Str("to", toStr).Msg("radarr circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &Breaker{inner: inner, cb: cb, name: cbName}
}

func (b *Breaker) execute(fn func() (interface{}, error)) (interface{}, error) {
	return b.cb.Execute(fn)
}

// Ping implements Interface.
func (b *Breaker) Ping(ctx context.Context) error {
	_, err := b.execute(func() (interface{}, error) {
		return nil, b.inner.Ping(ctx)
	})
	return err
}

// GetMovies implements Interface.
func (b *Breaker) GetMovies(ctx context.Context) ([]*Movie, error) {
	result, err := b.execute(func() (interface{}, error) {
		return b.inner.GetMovies(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.([]*Movie), nil
}

// GetTags implements Interface.
func (b *Breaker) GetTags(ctx context.Context) ([]Tag, error) {
	result, err := b.execute(func() (interface{}, error) {
		return b.inner.GetTags(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.([]Tag), nil
}

// CreateTag implements Interface.
func (b *Breaker) CreateTag(ctx context.Context, label string) (Tag, error) {
	result, err := b.execute(func() (interface{}, error) {
		return b.inner.CreateTag(ctx, label)
	})
	if err != nil {
		return Tag{}, err
	}
	return result.(Tag), nil
}

// UpdateMovieTags implements Interface.
func (b *Breaker) UpdateMovieTags(ctx context.Context, movie *Movie, tags []int) error {
	_, err := b.execute(func() (interface{}, error) {
		return nil, b.inner.UpdateMovieTags(ctx, movie, tags)
	})
	return err
}

func stateToString(s gobreaker.State) string {
	switch s {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
