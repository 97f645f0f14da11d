// Package telemetry provides observability for simulation runs.
//
// It combines structured logging (zerolog), tracing (OpenTelemetry), metrics
// (Prometheus) and in-process lifecycle notifications behind one Telemetry
// value that is created at startup and carried through the context:
//
//	tel, err := telemetry.NewTelemetry(telemetry.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//	ctx = tel.WithContext(ctx)
//
// # Logging
//
// Loggers are derived per component and enriched with simulation fields:
//
//	logger := tel.Logger.NewComponentLogger("orchestrator").WithRunID(runID).WithYear(2025)
//	logger.Info("year materialized")
//
// # Tracing
//
// A run produces one simulation.run span, a simulation.year child per year and
// a stage.<name> span per generator stage. Exporters: otlp (gRPC), stdout, none.
//
// # Metrics
//
// Key metrics, prefixed with the configured namespace:
//
//   - runs_started_total, runs_completed_total{status}, run_duration_seconds{status}
//   - years_processed_total{outcome}, year_duration_seconds
//   - stage_duration_seconds{stage,outcome}
//   - events_emitted_total{event_type}
//   - active_workforce, irs_limits_applied_total
//   - transition_checks_total{check,result}
//   - errors_by_class_total{class}, errors_by_code_total{code}
//
// Metrics are served over HTTP only when MetricsConfig.ListenAddress is set.
//
// # Notifications
//
// The Publisher delivers run.started, run.completed, year.completed,
// year.failed, transition.warning and storage.orphans_removed notifications to
// subscribers, optionally filtered with FilterByLevel or FilterByType.
package telemetry
