package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/workforcesim/workforcesim/pkg/config"
	"github.com/workforcesim/workforcesim/pkg/engine"
	"github.com/workforcesim/workforcesim/pkg/orchestrator"
)

// runOptions are the run flags. Flags left unset keep the configured value.
type runOptions struct {
	years             string
	optimizationLevel string
	threads           int
	fullRefresh       bool
	enableCompression bool
	failFast          bool
	cleanOrphans      bool
	watch             bool
	maxRetries        int
	telemetry         telemetryOptions
}

func newRunCommand() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the simulation over a year range",
		Long: `Run the simulation year by year.

Each year is deleted and regenerated, so reruns are idempotent. A year is
persisted only after its transition from the previous year validates. When a
year fails, the run stops (--fail-fast) or continues from the last year that
passed. The command exits non-zero if any requested year failed.`,
		Example: `  # Run the configured years
  wfsim run

  # Rerun 2026-2028 from scratch with all cores
  wfsim run --years 2026-2028 --full-refresh --optimization-level high

  # Stop at the first failed year and export metrics
  wfsim run --fail-fast --metrics-file wfsim.prom

  # Rerun whenever the configuration changes
  wfsim run --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			err := simulate(ctx, cmd, opts)
			if !opts.watch {
				return err
			}
			if err != nil {
				log.Error().Err(err).Msg("Simulation failed, waiting for changes")
			}
			return watchAndRerun(ctx, cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.years, "years", "", "year range to simulate, e.g. 2025-2029")
	cmd.Flags().StringVar(&opts.optimizationLevel, "optimization-level", "", "low, medium or high")
	cmd.Flags().IntVar(&opts.threads, "threads", 0, "generation workers (overrides the optimization level)")
	cmd.Flags().BoolVar(&opts.fullRefresh, "full-refresh", false, "delete all stored years before running")
	cmd.Flags().BoolVar(&opts.enableCompression, "enable-compression", false, "compact the store after the run")
	cmd.Flags().BoolVar(&opts.failFast, "fail-fast", false, "stop at the first failed year")
	cmd.Flags().BoolVar(&opts.cleanOrphans, "clean-orphans", false, "delete stored years outside the range")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "rerun when the config file changes")
	cmd.Flags().IntVar(&opts.maxRetries, "max-retries", orchestrator.DefaultMaxRetries, "retries for transient store errors")
	cmd.Flags().StringVar(&opts.telemetry.metricsFile, "metrics-file", "", "write Prometheus metrics to this file")
	cmd.Flags().StringVar(&opts.telemetry.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	cmd.Flags().StringVar(&opts.telemetry.traceExporter, "trace-exporter", "none", "trace exporter: none, stdout or otlp")
	cmd.Flags().StringVar(&opts.telemetry.otlpEndpoint, "otlp-endpoint", "", "OTLP collector address")

	return cmd
}

// apply overrides f with the flags the user set.
func (o *runOptions) apply(cmd *cobra.Command, f *config.File) error {
	flags := cmd.Flags()
	if flags.Changed("years") {
		start, end, err := parseYears(o.years)
		if err != nil {
			return err
		}
		f.Simulation.StartYear, f.Simulation.EndYear = start, end
	}
	if flags.Changed("optimization-level") {
		f.Runtime.OptimizationLevel = o.optimizationLevel
	}
	if flags.Changed("threads") {
		f.Runtime.Threads = o.threads
	}
	if flags.Changed("fail-fast") {
		f.Simulation.FailFast = o.failFast
	}
	if o.telemetry.metricsFile == "" {
		o.telemetry.metricsFile = f.Runtime.MetricsFile
	}

	if errs := config.NewLoader().Validate(f); len(errs) > 0 {
		return engine.NewConfigurationError(fmt.Sprintf("invalid run options: %v", errs))
	}
	return nil
}

// simulate loads the configuration and runs it once.
func simulate(ctx context.Context, cmd *cobra.Command, opts *runOptions) error {
	f, _, _, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	if err := opts.apply(cmd, f); err != nil {
		return err
	}

	cfg, err := f.ToEngineConfig()
	if err != nil {
		return err
	}
	limits, err := loadLimits(f)
	if err != nil {
		return err
	}

	tel, err := newTelemetry(opts.telemetry)
	if err != nil {
		return err
	}
	defer func() {
		if err := tel.Shutdown(context.WithoutCancel(ctx)); err != nil {
			log.Warn().Err(err).Msg("Telemetry shutdown failed")
		}
	}()

	s, err := openStore(ctx, f)
	if err != nil {
		return err
	}
	defer s.Close()

	var policies engine.PolicyEvaluator
	eng, err := newPolicyEngine(ctx, f)
	if err != nil {
		return err
	}
	if eng != nil {
		policies = eng
	}

	log.Info().
		Int("start_year", cfg.StartYear).
		Int("end_year", cfg.EndYear).
		Int64("seed", cfg.RandomSeed).
		Int("workers", cfg.Workers).
		Str("store", f.Storage.Driver).
		Msg("Starting simulation")

	orch := orchestrator.New(cfg, s, censusSource(f, cfg), limits, log.Logger, orchestrator.Options{
		FullRefresh:  opts.fullRefresh,
		CleanOrphans: opts.cleanOrphans,
		Compact:      opts.enableCompression,
		MaxRetries:   opts.maxRetries,
		ConfigDigest: f.Digest(),
		Policies:     policies,
		Telemetry:    tel,
	})

	summary, runErr := orch.Run(ctx)
	if summary != nil {
		if err := printSummary(cmd.OutOrStdout(), summary); err != nil {
			return err
		}
	}
	if runErr != nil {
		return runErr
	}
	if summary.Failed() {
		return fmt.Errorf("run %s finished %s", summary.Run.ID, summary.Run.Status)
	}
	return nil
}

// watchAndRerun reruns the simulation after every change to the config file
// until ctx is done.
func watchAndRerun(ctx context.Context, cmd *cobra.Command, opts *runOptions) error {
	_, path, _, err := loadSettings(cmd)
	if path == "" {
		return err
	}

	changed := make(chan struct{}, 1)
	err = config.Watch(ctx, path, config.DefaultWatchDelay, log.Logger, func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changed:
			log.Info().Str("config", path).Msg("Configuration changed, rerunning")
			if err := simulate(ctx, cmd, opts); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("Simulation failed, waiting for changes")
			}
		}
	}
}

func printSummary(w io.Writer, summary *orchestrator.Summary) error {
	if jsonOutput {
		return writeJSON(w, summary)
	}

	run := summary.Run
	fmt.Fprintf(w, "Run %s: %s (%d-%d, seed %d)\n\n", run.ID, run.Status, run.StartYear, run.EndYear, run.RandomSeed)
	if err := printTransitions(w, summary.Transitions); err != nil {
		return err
	}
	printFailedChecks(w, summary.Transitions)
	return nil
}
