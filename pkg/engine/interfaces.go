package engine

import (
	"context"
)

// Store persists runs, snapshots, events and transition results. A year is
// written in one transaction by SaveYear; only one writer may target a store.
type Store interface {
	// Init prepares the schema.
	Init(ctx context.Context) error

	// Close releases resources.
	Close() error

	// SaveRun inserts or updates a run record.
	SaveRun(ctx context.Context, run *Run) error

	// GetRun returns a run by ID, or an error matching ErrNotFound.
	GetRun(ctx context.Context, id string) (*Run, error)

	// ListRuns returns the most recent runs first.
	ListRuns(ctx context.Context, limit int) ([]*Run, error)

	// SaveYear atomically replaces the snapshot, events, contributions and
	// transition result of result.Snapshot.Year.
	SaveYear(ctx context.Context, result *YearResult) error

	// SaveTransition records a transition result without snapshot data, as
	// for failed years.
	SaveTransition(ctx context.Context, result *TransitionResult) error

	// ListTransitions returns the transition results of a run in year order.
	ListTransitions(ctx context.Context, runID string) ([]*TransitionResult, error)

	// LoadSnapshot returns a year-end snapshot, or an error matching ErrNotFound.
	LoadSnapshot(ctx context.Context, year int) (*Snapshot, error)

	// LoadEvents returns a year's events in canonical order.
	LoadEvents(ctx context.Context, year int) ([]Event, error)

	// Years returns the years that have a stored snapshot, ascending.
	Years(ctx context.Context) ([]int, error)

	// DeleteYear removes every event, snapshot row and contribution for year.
	DeleteYear(ctx context.Context, year int) error

	// DeleteOutsideRange removes simulation data for years outside
	// [start, end] and returns the number of years removed.
	DeleteOutsideRange(ctx context.Context, start, end int) (int, error)

	// DeleteAll removes all simulation data. Run history is kept.
	DeleteAll(ctx context.Context) error

	// Compact reclaims storage.
	Compact(ctx context.Context) error
}

// CensusSource supplies the baseline workforce when no prior snapshot exists.
type CensusSource interface {
	// Load returns the active workforce as a snapshot for year, the year
	// before the first simulated year.
	Load(ctx context.Context, year int) (*Snapshot, error)
}

// PolicyEvaluator evaluates additional rules against a validated transition.
// Returned checks with SeverityError fail the transition.
type PolicyEvaluator interface {
	EvaluateTransition(ctx context.Context, result *TransitionResult) ([]CheckResult, error)
}
