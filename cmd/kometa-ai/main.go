// Kometa-AI - AI-Powered Collection Management for Radarr
// Copyright 2026 tikibozo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tikibozo/kometa-ai

// Command kometa-ai classifies a Radarr library into Kometa collections
// using Claude, applying membership as KAI- prefixed tags.
//
// Exit codes: 0 success, 1 fatal configuration error, 2 health-check
// failure, 3 unrecoverable runtime error.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/thejerf/suture/v4"

	"github.com/tikibozo/kometa-ai/internal/claude"
	"github.com/tikibozo/kometa-ai/internal/config"
	"github.com/tikibozo/kometa-ai/internal/health"
	"github.com/tikibozo/kometa-ai/internal/kometa"
	"github.com/tikibozo/kometa-ai/internal/logging"
	"github.com/tikibozo/kometa-ai/internal/metrics"
	"github.com/tikibozo/kometa-ai/internal/notify"
	"github.com/tikibozo/kometa-ai/internal/planner"
	"github.com/tikibozo/kometa-ai/internal/radarr"
	"github.com/tikibozo/kometa-ai/internal/runner"
	"github.com/tikibozo/kometa-ai/internal/schedule"
	"github.com/tikibozo/kometa-ai/internal/state"
	"github.com/tikibozo/kometa-ai/internal/version"
)

const (
	exitOK      = 0
	exitConfig  = 1
	exitHealth  = 2
	exitRuntime = 3
)

// startupRetries bounds the Radarr connectivity wait at container start.
const startupRetries = 12

type cliFlags struct {
	runNow            bool
	dryRun            bool
	collection        string
	batchSize         int
	forceRefresh      bool
	healthCheck       bool
	dumpConfig        bool
	dumpState         bool
	resetState        bool
	optimizeBatchSize bool
	sendTestEmail     bool
	showVersion       bool
}

func main() {
	os.Exit(run())
}

func run() int {
	flags := &cliFlags{}
	exitCode := exitOK

	rootCmd := &cobra.Command{
		Use:           "kometa-ai",
		Short:         "AI-powered collection management for Radarr",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			exitCode = execute(cmd.Context(), flags)
			return nil
		},
	}

	fs := rootCmd.Flags()
	fs.BoolVar(&flags.runNow, "run-now", false, "run immediately instead of waiting for the schedule")
	fs.BoolVar(&flags.dryRun, "dry-run", false, "compute actions without mutating Radarr")
	fs.StringVar(&flags.collection, "collection", "", "restrict the run to one collection")
	fs.IntVar(&flags.batchSize, "batch-size", 0, "override the configured batch size")
	fs.BoolVar(&flags.forceRefresh, "force-refresh", false, "re-evaluate every movie, ignoring cached decisions")
	fs.BoolVar(&flags.healthCheck, "health-check", false, "run connectivity and config checks, then exit")
	fs.BoolVar(&flags.dumpConfig, "dump-config", false, "print the effective configuration (secrets masked)")
	fs.BoolVar(&flags.dumpState, "dump-state", false, "print the decision state as JSON")
	fs.BoolVar(&flags.resetState, "reset-state", false, "discard all stored decisions")
	fs.BoolVar(&flags.optimizeBatchSize, "optimize-batch-size", false, "sweep batch sizes and report the most efficient")
	fs.BoolVar(&flags.sendTestEmail, "send-test-email", false, "send a configuration-verification email")
	fs.BoolVar(&flags.showVersion, "version", false, "print the version and exit")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitConfig
	}
	return exitCode
}

func execute(ctx context.Context, flags *cliFlags) int {
	if flags.showVersion {
		fmt.Printf("kometa-ai %s\n", version.Version)
		return exitOK
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitConfig
	}

	logging.Init(logging.Config{
		Level:  cfg.LogLevel(),
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
		Output: os.Stderr,
	})
	logging.Info().Str("version", version.Version).Msg("kometa-ai starting")

	if flags.dumpConfig {
		out, err := cfg.Dump()
		if err != nil {
			logging.Err(err).Msg("failed to dump configuration")
			return exitRuntime
		}
		fmt.Println(out)
		return exitOK
	}

	radarrClient := radarr.NewBreaker(radarr.NewClient(cfg.Radarr))
	claudeClient := claude.NewClient(cfg.Claude)

	if flags.healthCheck {
		probe := health.NewProbe(cfg, radarrClient, claudeClient)
		if err := probe.Run(ctx); err != nil {
			logging.Err(err).Msg("health check failed")
			return exitHealth
		}
		return exitOK
	}

	if flags.sendTestEmail {
		mailer := notify.NewMailer(cfg.SMTP, cfg.Notify)
		if err := mailer.SendTest(); err != nil {
			logging.Err(err).Msg("test email failed")
			return exitRuntime
		}
		logging.Info().Msg("test email sent")
		return exitOK
	}

	store, err := state.NewStore(cfg.State.Dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "state directory error: %v\n", err)
		return exitConfig
	}

	if flags.dumpState {
		if err := store.Load(); err != nil {
			logging.Err(err).Msg("failed to load state")
			return exitRuntime
		}
		out, err := store.Dump()
		if err != nil {
			logging.Err(err).Msg("failed to dump state")
			return exitRuntime
		}
		fmt.Println(out)
		return exitOK
	}

	if flags.resetState {
		if err := store.Reset(); err != nil {
			logging.Err(err).Msg("failed to reset state")
			return exitRuntime
		}
		logging.Info().Msg("state reset")
		return exitOK
	}

	// Everything past here mutates state; hold the directory lock.
	lock, err := state.AcquireLock(cfg.State.Dir)
	if err != nil {
		logging.Err(err).Msg("could not acquire state lock")
		return exitRuntime
	}
	defer lock.Release()

	if err := waitForRadarr(ctx, radarrClient); err != nil {
		logging.Err(err).Msg("radarr unreachable")
		return exitRuntime
	}

	if flags.optimizeBatchSize {
		return optimizeBatchSize(ctx, cfg, radarrClient, claudeClient, store, flags.collection)
	}

	r := runner.New(cfg, radarrClient, claudeClient, store)
	opts := runner.Options{
		DryRun:           flags.dryRun,
		CollectionFilter: flags.collection,
		BatchSize:        pickBatchSize(flags.batchSize, cfg.Batch.Size),
		ForceRefresh:     flags.forceRefresh,
	}

	if flags.runNow {
		summary, err := r.Run(ctx, opts)
		if err != nil {
			logging.Err(err).Msg("run failed")
			return exitRuntime
		}
		sendReport(cfg, store, summary, time.Time{})
		return exitOK
	}

	return serveScheduled(ctx, cfg, r, store, opts)
}

// serveScheduled runs the scheduler loop and metrics listener under a
// supervisor until the context is cancelled.
func serveScheduled(ctx context.Context, cfg *config.Config, r *runner.Runner, store *state.Store, opts runner.Options) int {
	plan, err := schedule.NewPlan(cfg.Schedule.Interval, cfg.Schedule.StartTime, cfg.Schedule.Timezone)
	if err != nil {
		fmt.Fprintf(os.Stderr, "schedule error: %v\n", err)
		return exitConfig
	}

	var scheduler *schedule.Service
	scheduler = schedule.NewService(plan, func(ctx context.Context) error {
		summary, err := r.Run(ctx, opts)
		if err != nil {
			return err
		}
		sendReport(cfg, store, summary, scheduler.NextActivation())
		return nil
	})

	supervisor := suture.New("kometa-ai", suture.Spec{
		EventHook: func(e suture.Event) {
			logging.Warn().Str("event", e.String()).Msg("supervisor event")
		},
	})
	supervisor.Add(scheduler)

	var metricsServer *metrics.Server
	if cfg.Metrics.Port > 0 {
		metricsServer = metrics.NewServer(cfg.Metrics.Port)
		supervisor.Add(metricsServer)
	}

	logging.Info().
		Str("interval", cfg.Schedule.Interval).
		Str("start_time", cfg.Schedule.StartTime).
		Time("next_run", scheduler.NextActivation()).
		Msg("scheduler started")
	if metricsServer != nil {
		metricsServer.SetReady(true)
	}

	err = supervisor.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		logging.Err(err).Msg("supervisor terminated")
		return exitRuntime
	}
	logging.Info().Msg("shutdown complete")
	return exitOK
}

// optimizeBatchSize runs the batch-size sweep for one collection.
func optimizeBatchSize(ctx context.Context, cfg *config.Config, rc radarr.Interface, oracle claude.Oracle, store *state.Store, collectionName string) int {
	if collectionName == "" {
		fmt.Fprintln(os.Stderr, "--optimize-batch-size requires --collection")
		return exitConfig
	}

	collections, err := kometa.NewParser(cfg.Kometa.ConfigDir).ParseCollections()
	if err != nil {
		logging.Err(err).Msg("failed to parse collections")
		return exitRuntime
	}
	var target *kometa.Collection
	for _, c := range collections {
		if c.Name == collectionName {
			target = c
			break
		}
	}
	if target == nil {
		fmt.Fprintf(os.Stderr, "collection %q not found or not enabled\n", collectionName)
		return exitConfig
	}

	if err := store.Load(); err != nil {
		logging.Err(err).Msg("failed to load state")
		return exitRuntime
	}
	movies, err := rc.GetMovies(ctx)
	if err != nil {
		logging.Err(err).Msg("failed to fetch movies")
		return exitRuntime
	}

	report, err := planner.OptimizeBatchSize(ctx, oracle, store, target, movies, "")
	if err != nil {
		logging.Err(err).Msg("batch size optimization failed")
		return exitRuntime
	}
	fmt.Printf("optimal batch size for %q: %d\n", collectionName, report.OptimalBatchSize)
	return exitOK
}

// waitForRadarr retries the connection test with backoff so container
// start ordering does not kill the process.
func waitForRadarr(ctx context.Context, rc radarr.Interface) error {
	delay := time.Second
	var err error
	for attempt := 1; attempt <= startupRetries; attempt++ {
		if err = rc.Ping(ctx); err == nil {
			return nil
		}
		logging.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", delay).Msg("waiting for radarr")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		if delay < 30*time.Second {
			delay *= 2
		}
	}
	return fmt.Errorf("radarr not reachable after %d attempts: %w", startupRetries, err)
}

// sendReport emails the run summary when the notification gates allow,
// then clears the reported rings.
func sendReport(cfg *config.Config, store *state.Store, summary *runner.Summary, nextRun time.Time) {
	mailer := notify.NewMailer(cfg.SMTP, cfg.Notify)
	if !mailer.CanSend() {
		return
	}

	report := &notify.Report{
		Version: version.Version,
		RunID:   summary.RunID,
		DryRun:  summary.DryRun,
		Changes: store.Changes(),
		Errors:  store.Errors(),
		Stats:   summary.Stats,
		NextRun: nextRun,
	}
	if !mailer.ShouldSend(report.HasChanges(), report.HasErrors()) {
		logging.Info().Msg("nothing to report, notification suppressed")
		return
	}

	if err := mailer.Send(report.Subject(), report.Format()); err != nil {
		logging.Err(err).Msg("failed to send run report")
		return
	}
	store.ClearChanges()
	store.ClearErrors()
	if err := store.Save(); err != nil {
		logging.Err(err).Msg("failed to persist cleared report rings")
	}
}

func pickBatchSize(override, configured int) int {
	if override > 0 {
		return override
	}
	return configured
}
