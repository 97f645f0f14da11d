// Package orchestrator runs a simulation over a range of years.
//
// For each year the loop deletes any stored data for that year, runs the
// generator pipeline, sequences and materializes the events, validates the
// transition and saves the year in one store transaction. With fail-fast off
// a failed year is recorded and the next year starts from the last snapshot
// that passed; persistence failures always abort the run.
//
//	orch := orchestrator.New(cfg, store, census, limits, logger, orchestrator.Options{})
//	summary, err := orch.Run(ctx)
package orchestrator
