package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/workforcesim/workforcesim/pkg/engine"
	"github.com/workforcesim/workforcesim/pkg/generators"
	"github.com/workforcesim/workforcesim/pkg/irs"
	"github.com/workforcesim/workforcesim/pkg/telemetry"
)

const (
	// DefaultMaxRetries is the number of retries of a transient store failure.
	DefaultMaxRetries = 3

	// DefaultRetryBackoff is the delay before the first retry.
	DefaultRetryBackoff = 200 * time.Millisecond

	maxRetryBackoff = 10 * time.Second
)

// Options controls a run.
type Options struct {
	// FullRefresh removes all stored simulation data before the first year.
	FullRefresh bool

	// CleanOrphans removes stored years outside [StartYear-1, EndYear]. The
	// year before the range is kept as the seed snapshot of a sub-range run.
	CleanOrphans bool

	// Compact reclaims storage after the run.
	Compact bool

	MaxRetries   int
	RetryBackoff time.Duration

	// ConfigDigest identifies the configuration in the run record.
	ConfigDigest string

	// Stages replaces the default generator pipeline.
	Stages []engine.Stage

	// Policies are evaluated after the built-in transition checks.
	Policies engine.PolicyEvaluator

	Telemetry *telemetry.Telemetry
}

// Orchestrator drives the year-by-year simulation loop. Years run strictly in
// order: each year starts from the last snapshot that passed validation.
type Orchestrator struct {
	cfg    *engine.SimulationConfig
	store  engine.Store
	census engine.CensusSource
	limits *irs.Table
	opts   Options
	tel    *telemetry.Telemetry
	logger zerolog.Logger
}

// New creates an orchestrator. The store must already be initialized.
func New(cfg *engine.SimulationConfig, store engine.Store, census engine.CensusSource, limits *irs.Table, logger zerolog.Logger, opts Options) *Orchestrator {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = DefaultRetryBackoff
	}
	if opts.Stages == nil {
		opts.Stages = generators.DefaultStages()
	}
	tel := opts.Telemetry
	if tel == nil {
		tel = telemetry.Nop()
	}

	return &Orchestrator{
		cfg:    cfg,
		store:  store,
		census: census,
		limits: limits,
		opts:   opts,
		tel:    tel,
		logger: logger.With().Str("component", "orchestrator").Logger(),
	}
}

// Summary is the outcome of a run.
type Summary struct {
	Run         *engine.Run
	Transitions []*engine.TransitionResult
}

// Failed reports whether any requested year failed.
func (s *Summary) Failed() bool {
	return s.Run.Status != engine.RunStatusSucceeded
}

// YearFailure is one failed simulation year.
type YearFailure struct {
	Year int
	Err  error
}

// RunError reports the failed years of a run.
type RunError struct {
	RunID    string
	Aborted  bool
	Failures []YearFailure
}

// Error implements the error interface.
func (e *RunError) Error() string {
	msg := fmt.Sprintf("run %s: %d year(s) failed", e.RunID, len(e.Failures))
	if e.Aborted {
		msg += " (aborted)"
	}
	for _, f := range e.Failures {
		msg += fmt.Sprintf("; %d: %v", f.Year, f.Err)
	}
	return msg
}

// Unwrap returns the per-year errors.
func (e *RunError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// storeFailure marks a persistence error. It aborts the run regardless of
// the fail-fast setting.
type storeFailure struct {
	op  string
	err error
}

func (e *storeFailure) Error() string { return fmt.Sprintf("failed to %s: %v", e.op, e.err) }
func (e *storeFailure) Unwrap() error { return e.err }

// Run simulates every configured year. It returns a *RunError when any year
// failed; the summary is returned whenever the run record was created.
func (o *Orchestrator) Run(ctx context.Context) (*Summary, error) {
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}
	if o.limits == nil {
		return nil, engine.NewConfigurationError("IRS limit table is required")
	}

	pipeline, err := engine.NewPipeline(o.opts.Stages, o.stageHooks())
	if err != nil {
		return nil, err
	}

	run := &engine.Run{
		ID:           uuid.NewString(),
		Status:       engine.RunStatusPending,
		StartYear:    o.cfg.StartYear,
		EndYear:      o.cfg.EndYear,
		RandomSeed:   o.cfg.RandomSeed,
		ConfigDigest: o.opts.ConfigDigest,
		StartedAt:    time.Now().UTC(),
	}
	logger := o.logger.With().Str("run_id", run.ID).Logger()
	ctx = o.tel.WithContext(ctx)

	if err := o.withRetry(ctx, "save run", func(ctx context.Context) error { return o.store.SaveRun(ctx, run) }); err != nil {
		return nil, &storeFailure{op: "save run", err: err}
	}

	summary := &Summary{Run: run}
	runErr := &RunError{RunID: run.ID}

	prior, err := o.prepare(ctx, run)
	if err != nil {
		runErr.Aborted = true
		runErr.Failures = append(runErr.Failures, YearFailure{Year: o.cfg.StartYear, Err: err})
		o.finish(ctx, run, err)
		return summary, runErr
	}

	run.Status = engine.RunStatusRunning
	if err := o.store.SaveRun(ctx, run); err != nil {
		logger.Warn().Err(err).Msg("failed to record run start")
	}
	o.tel.Metrics.RecordRunStarted()
	o.notify(o.tel.Events.RunStarted(run.ID, run.StartYear, run.EndYear))

	runCtx, runSpan := o.tel.Tracer.StartRunSpan(ctx, run.ID, run.StartYear, run.EndYear)

	logger.Info().
		Int("start_year", run.StartYear).
		Int("end_year", run.EndYear).
		Int64("seed", run.RandomSeed).
		Int("starting_active", prior.ActiveCount()).
		Msg("simulation run started")

	for _, year := range o.cfg.Years() {
		next, result, err := o.processYear(runCtx, pipeline, run.ID, year, prior)
		if result != nil {
			summary.Transitions = append(summary.Transitions, result)
		}

		if err == nil {
			run.CompletedYears = append(run.CompletedYears, year)
			prior = next
			continue
		}

		run.FailedYears = append(run.FailedYears, year)
		runErr.Failures = append(runErr.Failures, YearFailure{Year: year, Err: err})
		if result == nil && !isInfrastructure(err) {
			result = o.recordFailedTransition(runCtx, run.ID, year, err)
			summary.Transitions = append(summary.Transitions, result)
		}

		if o.cfg.FailFast || isInfrastructure(err) {
			runErr.Aborted = true
			logger.Error().Err(err).Int("simulation_year", year).Msg("aborting run")
			break
		}
		logger.Warn().
			Err(err).
			Int("simulation_year", year).
			Int("prior_year", prior.Year).
			Msg("year failed, continuing from last good snapshot")
		if err := o.store.SaveRun(ctx, run); err != nil {
			logger.Warn().Err(err).Msg("failed to record run progress")
		}
	}

	var finalErr error
	if len(runErr.Failures) > 0 {
		finalErr = runErr
	}
	telemetry.EndSpan(runSpan, finalErr)

	if o.opts.Compact && !runErr.Aborted {
		if err := o.store.Compact(ctx); err != nil {
			logger.Warn().Err(err).Msg("compaction failed")
		}
	}

	o.finish(ctx, run, finalErr)
	return summary, finalErr
}

// prepare applies the refresh and cleanup options and loads the snapshot the
// first year starts from.
func (o *Orchestrator) prepare(ctx context.Context, run *engine.Run) (*engine.Snapshot, error) {
	if o.opts.FullRefresh {
		if err := o.withRetry(ctx, "delete all years", o.store.DeleteAll); err != nil {
			return nil, &storeFailure{op: "delete all years", err: err}
		}
		o.logger.Info().Msg("removed all stored simulation years")
	}

	if o.opts.CleanOrphans {
		var removed int
		err := o.withRetry(ctx, "clean orphaned years", func(ctx context.Context) error {
			var err error
			removed, err = o.store.DeleteOutsideRange(ctx, run.StartYear-1, run.EndYear)
			return err
		})
		if err != nil {
			return nil, &storeFailure{op: "clean orphaned years", err: err}
		}
		if removed > 0 {
			o.logger.Info().Int("years_removed", removed).Msg("removed orphaned years")
			o.notify(o.tel.Events.OrphansRemoved(run.ID, removed))
		}
	}

	baseline := run.StartYear - 1
	prior, err := o.store.LoadSnapshot(ctx, baseline)
	switch {
	case err == nil:
		o.logger.Info().Int("year", baseline).Msg("starting from stored snapshot")
		return prior, nil
	case !errors.Is(err, engine.ErrNotFound):
		return nil, &storeFailure{op: "load starting snapshot", err: err}
	}

	if o.census == nil {
		return nil, engine.NewConfigurationError(fmt.Sprintf("no snapshot for %d and no census configured", baseline))
	}
	op := telemetry.StartOperation(ctx, "census.load", telemetry.AttrYear.Int(baseline))
	prior, err = o.census.Load(op.Ctx, baseline)
	op.End(err)
	if err != nil {
		return nil, fmt.Errorf("failed to load census: %w", err)
	}
	op.Logger.Debug("census loaded in " + op.Timer.Duration().String())
	o.logger.Info().Int("year", baseline).Int("active", prior.ActiveCount()).Msg("starting from census")
	return prior, nil
}

// processYear regenerates one year from prior. Stale data for the year is
// removed first so a re-run never appends duplicates.
func (o *Orchestrator) processYear(ctx context.Context, pipeline *engine.Pipeline, runID string, year int, prior *engine.Snapshot) (next *engine.Snapshot, result *engine.TransitionResult, err error) {
	ctx, span := o.tel.Tracer.StartYearSpan(ctx, runID, year)
	start := time.Now()
	logger := o.logger.With().Str("run_id", runID).Int("simulation_year", year).Logger()

	defer func() {
		outcome := "succeeded"
		if err != nil {
			outcome = "failed"
			o.recordError(err)
			o.notify(o.tel.Events.YearFailed(runID, year, err.Error()))
			logger.Error().Err(err).Str("error_code", engine.ErrorCode(err)).Msg("year failed")
		}
		o.tel.Metrics.RecordYear(outcome, time.Since(start))
		telemetry.EndSpan(span, err)
	}()

	logger.Info().Int("starting_active", prior.ActiveCount()).Msg("year started")

	if err := o.withRetry(ctx, "delete year", func(ctx context.Context) error { return o.store.DeleteYear(ctx, year) }); err != nil {
		return nil, nil, &storeFailure{op: "delete year", err: err}
	}

	events, err := pipeline.Run(ctx, year, o.cfg, o.limits, prior)
	if err != nil {
		return nil, nil, err
	}

	events, err = engine.NewSequencer(year, prior).Sequence(events)
	if err != nil {
		return nil, nil, err
	}
	engine.AssignEventIDs(o.cfg.RandomSeed, events)

	next, err = engine.NewMaterializer(year, o.limits).Materialize(prior, events)
	if err != nil {
		return nil, nil, err
	}

	result, err = engine.NewTransitionValidator(year, o.cfg, o.limits, o.opts.Policies).Validate(ctx, prior, events, next)
	if result != nil {
		result.RunID = runID
		o.reportChecks(runID, result)
	}
	if err != nil {
		if result != nil {
			if serr := o.store.SaveTransition(ctx, result); serr != nil {
				logger.Warn().Err(serr).Msg("failed to record failed transition")
			}
		}
		return nil, result, err
	}
	logger.Info().
		Str("state", string(result.State)).
		Int("ending_active", result.Metrics.EndingActive).
		Int("events", len(events)).
		Msg("transition validated")

	yr := &engine.YearResult{RunID: runID, Snapshot: next, Events: events, Transition: result}
	if err := o.withRetry(ctx, "save year", func(ctx context.Context) error { return o.store.SaveYear(ctx, yr) }); err != nil {
		return nil, result, &storeFailure{op: "save year", err: err}
	}

	counts := make(map[string]int)
	for t, n := range engine.EventCounts(events) {
		counts[t.String()] = n
	}
	o.tel.Metrics.RecordEvents(counts)
	o.tel.Metrics.SetActiveWorkforce(next.ActiveCount())
	o.tel.Metrics.RecordIRSLimitsApplied(result.Metrics.CappedContributions)
	span.SetAttributes(telemetry.AttrEventCount.Int(len(events)), telemetry.AttrHeadcount.Int(next.ActiveCount()))
	o.notify(o.tel.Events.YearCompleted(runID, year, next.ActiveCount(), len(events)))

	logger.Info().
		Int("rows", len(next.Rows)).
		Int("contributions", len(next.Contributions)).
		Dur("elapsed", time.Since(start)).
		Msg("year persisted")
	return next, result, nil
}

// recordFailedTransition persists a failed transition for a year that did not
// reach validation.
func (o *Orchestrator) recordFailedTransition(ctx context.Context, runID string, year int, cause error) *engine.TransitionResult {
	result := &engine.TransitionResult{
		RunID:       runID,
		Year:        year,
		State:       engine.TransitionFailed,
		Error:       cause.Error(),
		ValidatedAt: time.Now().UTC(),
	}
	if err := o.store.SaveTransition(ctx, result); err != nil {
		o.logger.Warn().Err(err).Int("simulation_year", year).Msg("failed to record failed transition")
	}
	return result
}

func (o *Orchestrator) reportChecks(runID string, result *engine.TransitionResult) {
	for _, c := range result.Checks {
		o.tel.Metrics.RecordCheck(c.Name, c.Passed)
	}
	for _, c := range result.Warnings() {
		o.logger.Warn().
			Int("simulation_year", result.Year).
			Str("check", c.Name).
			Str("expected", c.Expected).
			Str("actual", c.Actual).
			Msg("transition warning")
		o.notify(o.tel.Events.TransitionWarning(runID, result.Year, c.Name, c.Message))
	}
}

// finish stores the final run status: succeeded when every year passed,
// partial when the run continued past failures, failed otherwise.
func (o *Orchestrator) finish(ctx context.Context, run *engine.Run, err error) {
	var runErr *RunError
	switch {
	case err == nil:
		run.Status = engine.RunStatusSucceeded
	case errors.As(err, &runErr) && !runErr.Aborted && len(run.CompletedYears) > 0:
		run.Status = engine.RunStatusPartial
	default:
		run.Status = engine.RunStatusFailed
	}
	if err != nil {
		run.Error = err.Error()
	}

	now := time.Now().UTC()
	run.CompletedAt = &now
	run.Duration = now.Sub(run.StartedAt)

	// A cancelled run still records its outcome.
	saveCtx := context.WithoutCancel(ctx)
	if serr := o.withRetry(saveCtx, "save run", func(ctx context.Context) error { return o.store.SaveRun(ctx, run) }); serr != nil {
		o.logger.Error().Err(serr).Str("run_id", run.ID).Msg("failed to record run outcome")
	}

	o.tel.Metrics.RecordRunCompleted(string(run.Status), run.Duration)
	o.notify(o.tel.Events.RunCompleted(run.ID, string(run.Status), run.Duration))
	o.logger.Info().
		Str("run_id", run.ID).
		Str("status", string(run.Status)).
		Ints("completed_years", run.CompletedYears).
		Ints("failed_years", run.FailedYears).
		Dur("duration", run.Duration).
		Msg("simulation run finished")
}

func (o *Orchestrator) stageHooks() engine.StageHooks {
	return engine.StageHooks{
		OnStart: func(ctx context.Context, year int, stage string) context.Context {
			ctx, _ = o.tel.Tracer.StartStageSpan(ctx, year, stage)
			return telemetry.FromContext(ctx).WithYear(year).WithStage(stage).WithContext(ctx)
		},
		OnDone: func(ctx context.Context, year int, stage string, events int, elapsed time.Duration, err error) {
			span := trace.SpanFromContext(ctx)
			span.SetAttributes(telemetry.AttrEventCount.Int(events))
			telemetry.EndSpan(span, err)

			outcome := "succeeded"
			if err != nil {
				outcome = "failed"
			}
			o.tel.Metrics.RecordStage(stage, outcome, elapsed)
			if err != nil {
				telemetry.FromContext(ctx).WithError(err).Warn("stage failed")
			}
			o.logger.Debug().
				Int("simulation_year", year).
				Str("stage", stage).
				Int("events", events).
				Dur("elapsed", elapsed).
				Msg("stage finished")
		},
	}
}

// withRetry runs fn, retrying transient failures with exponential backoff.
func (o *Orchestrator) withRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	var err error
	for attempt := 0; attempt <= o.opts.MaxRetries; attempt++ {
		err = fn(ctx)
		if err == nil || !engine.IsTransient(err) {
			return err
		}
		if attempt == o.opts.MaxRetries {
			break
		}

		delay := backoff(o.opts.RetryBackoff, attempt)
		o.logger.Warn().
			Err(err).
			Str("operation", op).
			Int("attempt", attempt+1).
			Dur("backoff", delay).
			Msg("retrying transient store failure")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// backoff doubles base per attempt, capped, plus a fixed eighth of jitter.
func backoff(base time.Duration, attempt int) time.Duration {
	delay := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	if delay > maxRetryBackoff {
		delay = maxRetryBackoff
	}
	return delay + delay/8
}

// isInfrastructure reports failures outside the simulated year: persistence,
// cancellation and configuration. They abort the run even when fail-fast is off.
func isInfrastructure(err error) bool {
	var sf *storeFailure
	if errors.As(err, &sf) {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return errors.Is(err, engine.ErrConfiguration)
}

func (o *Orchestrator) recordError(err error) {
	class := string(engine.ErrorClassPermanent)
	var ee *engine.EngineError
	if errors.As(err, &ee) {
		class = string(ee.Class)
	} else if engine.IsRecoverable(err) {
		class = string(engine.ErrorClassRecoverable)
	}
	o.tel.Metrics.RecordError(class, engine.ErrorCode(err))
}

func (o *Orchestrator) notify(err error) {
	if err != nil {
		o.logger.Debug().Err(err).Msg("notification dropped")
	}
}
