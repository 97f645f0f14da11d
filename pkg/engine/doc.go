// Package engine provides the core types and the per-year state machinery of
// the workforce simulation.
//
// # Overview
//
// Each simulation year moves the workforce forward in four steps:
//
//  1. Generate - run the generator stages (Pipeline) against the prior snapshot
//  2. Sequence - order events canonically and reject causal violations (Sequencer)
//  3. Materialize - apply events to the prior snapshot (Materializer)
//  4. Validate - check growth, compounding and IRS compliance (TransitionValidator)
//
// Data flows strictly forward: Snapshot(N-1) + Config -> Events(N) -> Snapshot(N).
// Only the sequencer and the validator see events and snapshots together.
//
// # Core Domain Types
//
//   - SnapshotRow: one employee at the end of one year
//   - Snapshot: the immutable year-end state of the workforce
//   - Event: an immutable workforce change with a closed EventType
//   - TransitionResult: the outcome of validating one year
//   - Run: one invocation of the multi-year loop
//
// # Compensation Proration
//
// BuildTimeline splits an employee's year into sequential, non-overlapping
// periods bounded by the effective dates of rate changes. Prorated
// compensation is the day-weighted sum of the period rates:
//
//	prorated = Σ (period_days / days_in_year) × period_rate
//
// The same periods weight deferral rates when computing contributions, so the
// contribution stage and the materializer always agree.
//
// # Pipeline
//
// Generator stages declare the stages whose events they consume. The pipeline
// orders them into levels and runs each level concurrently:
//
//	pipeline, err := engine.NewPipeline(stages, engine.StageHooks{})
//	events, err := pipeline.Run(ctx, 2025, cfg, limits, prior)
//
// # Error Handling
//
// Errors are classified as transient, recoverable or permanent. Recoverable
// errors are confined to one simulation year; the orchestration loop skips
// the year when fail-fast is disabled:
//
//	if engine.IsRecoverable(err) && !cfg.FailFast {
//	    // record the failed year and continue from the last good snapshot
//	}
//
// Use errors.Is with the sentinel values (ErrConfiguration,
// ErrEventConsistency, ...) to test for a specific kind.
package engine
