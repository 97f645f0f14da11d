package postgres

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/workforcesim/workforcesim/pkg/engine"
	"github.com/workforcesim/workforcesim/pkg/irs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Pool is the subset of *pgxpool.Pool used by Store.
type Pool interface {
	Queryer
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// Store implements engine.Store on PostgreSQL. Years are written with COPY
// inside a single read-write transaction.
type Store struct {
	pool   Pool
	tm     *TransactionManager
	dsn    string
	logger zerolog.Logger
}

var _ engine.Store = (*Store)(nil)

// New creates a Store over an existing pool. Migrations are not applied.
func New(pool Pool, logger zerolog.Logger) *Store {
	return &Store{
		pool:   pool,
		tm:     NewTransactionManager(pool),
		logger: logger.With().Str("component", "postgres_store").Logger(),
	}
}

// Open connects to cfg.DSN. Init applies migrations.
func Open(ctx context.Context, cfg Config, logger zerolog.Logger) (*Store, error) {
	if cfg.DSN == "" {
		return nil, engine.NewConfigurationError("postgres dsn is required")
	}
	pool, err := NewPool(ctx, cfg)
	if err != nil {
		return nil, engine.NewTransientError("failed to connect to postgres", err).WithCode(engine.ErrCodeStoreUnavailable)
	}
	s := New(pool, logger)
	s.dsn = cfg.DSN
	return s, nil
}

// Init verifies connectivity and applies migrations when the store was opened
// from a DSN.
func (s *Store) Init(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return classify("ping", err)
	}
	if s.dsn == "" {
		return nil
	}
	return s.Migrate()
}

// Migrate applies the embedded schema migrations.
func (s *Store) Migrate() error {
	url, err := migrationURL(s.dsn)
	if err != nil {
		return engine.NewConfigurationError(err.Error())
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, url)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// HealthCheck verifies the database is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const runColumns = `id, status, start_year, end_year, random_seed, config_digest, started_at,
	completed_at, duration_ms, completed_years, failed_years, error`

// SaveRun inserts or updates a run record.
func (s *Store) SaveRun(ctx context.Context, run *engine.Run) error {
	q := QueryerFromContext(ctx, s.pool)
	_, err := q.Exec(ctx, `
		INSERT INTO runs (`+runColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			completed_at = EXCLUDED.completed_at,
			duration_ms = EXCLUDED.duration_ms,
			completed_years = EXCLUDED.completed_years,
			failed_years = EXCLUDED.failed_years,
			error = EXCLUDED.error`,
		run.ID,
		string(run.Status),
		run.StartYear,
		run.EndYear,
		run.RandomSeed,
		run.ConfigDigest,
		run.StartedAt,
		run.CompletedAt,
		run.Duration.Milliseconds(),
		nonNilInts(run.CompletedYears),
		nonNilInts(run.FailedYears),
		run.Error,
	)
	if err != nil {
		return classify("save run", err)
	}
	return nil
}

func scanRun(row pgx.Row) (*engine.Run, error) {
	var (
		run        engine.Run
		status     string
		durationMs int64
	)
	if err := row.Scan(&run.ID, &status, &run.StartYear, &run.EndYear, &run.RandomSeed,
		&run.ConfigDigest, &run.StartedAt, &run.CompletedAt, &durationMs,
		&run.CompletedYears, &run.FailedYears, &run.Error); err != nil {
		return nil, err
	}
	run.Status = engine.RunStatus(status)
	run.Duration = time.Duration(durationMs) * time.Millisecond
	return &run, nil
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (*engine.Run, error) {
	q := QueryerFromContext(ctx, s.pool)
	run, err := scanRun(q.QueryRow(ctx, `SELECT `+runColumns+` FROM runs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, engine.NewNotFoundError(fmt.Sprintf("run not found: %s", id))
	}
	if err != nil {
		return nil, classify("get run", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*engine.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	q := QueryerFromContext(ctx, s.pool)
	rows, err := q.Query(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, id LIMIT $1`, limit)
	if err != nil {
		return nil, classify("list runs", err)
	}
	runs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*engine.Run, error) {
		return scanRun(row)
	})
	if err != nil {
		return nil, classify("list runs", err)
	}
	return runs, nil
}

var (
	eventColumns = []string{"event_id", "run_id", "employee_id", "simulation_year", "event_type",
		"effective_date", "event_sequence", "compensation_amount", "previous_compensation", "level_id",
		"previous_level_id", "deferral_rate", "previous_deferral_rate", "contribution_amount",
		"birth_date", "reason"}

	snapshotColumns = []string{"simulation_year", "employee_id", "run_id", "birth_date", "hire_date",
		"termination_date", "employment_status", "detailed_status_code", "level_id",
		"starting_compensation", "current_compensation", "full_year_equivalent_compensation",
		"prorated_annual_compensation", "current_age", "current_tenure", "age_band", "tenure_band",
		"enrolled", "enrollment_date", "deferral_rate"}

	contributionColumns = []string{"simulation_year", "employee_id", "run_id", "age", "compensation",
		"deferral_rate", "requested_contribution", "applicable_limit", "actual_contribution",
		"irs_limit_applied", "amount_capped"}

	yearTables = []string{"workforce_events", "workforce_snapshots", "employee_contributions"}
)

// SaveYear atomically replaces everything stored for the snapshot's year.
func (s *Store) SaveYear(ctx context.Context, result *engine.YearResult) error {
	if result == nil || result.Snapshot == nil {
		return engine.NewPermanentError("year result has no snapshot", nil)
	}
	year := result.Snapshot.Year
	start := time.Now()

	err := s.tm.WithinReadWrite(ctx, func(ctx context.Context) error {
		q := QueryerFromContext(ctx, s.pool)
		if err := deleteYear(ctx, q, year); err != nil {
			return err
		}
		if err := copyEvents(ctx, q, result.RunID, result.Events); err != nil {
			return err
		}
		if err := copySnapshot(ctx, q, result.RunID, result.Snapshot); err != nil {
			return err
		}
		if err := copyContributions(ctx, q, result.RunID, year, result.Snapshot.Contributions); err != nil {
			return err
		}
		if result.Transition != nil {
			t := *result.Transition
			t.RunID = result.RunID
			return upsertTransition(ctx, q, &t)
		}
		return nil
	})
	if err != nil {
		return classify("save year", err)
	}

	s.logger.Debug().
		Int("simulation_year", year).
		Int("events", len(result.Events)).
		Int("snapshot_rows", len(result.Snapshot.Rows)).
		Dur("elapsed", time.Since(start)).
		Msg("year persisted")
	return nil
}

func deleteYear(ctx context.Context, q Queryer, year int) error {
	for _, table := range yearTables {
		if _, err := q.Exec(ctx, `DELETE FROM `+table+` WHERE simulation_year = $1`, year); err != nil {
			return classify("delete "+table, err)
		}
	}
	return nil
}

func copyEvents(ctx context.Context, q Queryer, runID string, events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}
	_, err := q.CopyFrom(ctx, pgx.Identifier{"workforce_events"}, eventColumns,
		pgx.CopyFromSlice(len(events), func(i int) ([]any, error) {
			e := &events[i]
			return []any{
				e.ID, runID, e.EmployeeID, e.SimulationYear, e.Type.String(),
				e.EffectiveDate, e.Sequence, e.Compensation, e.PreviousCompensation,
				e.LevelID, e.PreviousLevelID, e.DeferralRate, e.PreviousDeferralRate,
				e.ContributionAmount, e.BirthDate, e.Reason,
			}, nil
		}))
	if err != nil {
		return classify("copy events", err)
	}
	return nil
}

func copySnapshot(ctx context.Context, q Queryer, runID string, snap *engine.Snapshot) error {
	if len(snap.Rows) == 0 {
		return nil
	}
	_, err := q.CopyFrom(ctx, pgx.Identifier{"workforce_snapshots"}, snapshotColumns,
		pgx.CopyFromSlice(len(snap.Rows), func(i int) ([]any, error) {
			r := &snap.Rows[i]
			return []any{
				snap.Year, r.EmployeeID, runID, r.BirthDate, r.HireDate, r.TerminationDate,
				string(r.Status), string(r.DetailedStatus), r.LevelID,
				r.StartingCompensation, r.CurrentCompensation, r.FullYearEquivalentCompensation,
				r.ProratedAnnualCompensation, r.CurrentAge, r.CurrentTenure, r.AgeBand, r.TenureBand,
				r.Enrolled, r.EnrollmentDate, r.DeferralRate,
			}, nil
		}))
	if err != nil {
		return classify("copy snapshot", err)
	}
	return nil
}

func copyContributions(ctx context.Context, q Queryer, runID string, year int, recs []irs.ContributionRecord) error {
	if len(recs) == 0 {
		return nil
	}
	_, err := q.CopyFrom(ctx, pgx.Identifier{"employee_contributions"}, contributionColumns,
		pgx.CopyFromSlice(len(recs), func(i int) ([]any, error) {
			c := &recs[i]
			return []any{
				year, c.EmployeeID, runID, c.Age,
				c.Compensation.String(), c.DeferralRate.String(), c.RequestedContribution.String(),
				c.ApplicableLimit.String(), c.ActualContribution.String(),
				c.IRSLimitApplied, c.AmountCapped.String(),
			}, nil
		}))
	if err != nil {
		return classify("copy contributions", err)
	}
	return nil
}

func upsertTransition(ctx context.Context, q Queryer, t *engine.TransitionResult) error {
	checks, err := json.Marshal(nonNilChecks(t.Checks))
	if err != nil {
		return fmt.Errorf("failed to encode checks: %w", err)
	}
	metrics, err := json.Marshal(t.Metrics)
	if err != nil {
		return fmt.Errorf("failed to encode metrics: %w", err)
	}
	validatedAt := t.ValidatedAt
	if validatedAt.IsZero() {
		validatedAt = time.Now().UTC()
	}

	_, err = q.Exec(ctx, `
		INSERT INTO year_transitions (run_id, simulation_year, state, checks, metrics, error, validated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (run_id, simulation_year) DO UPDATE SET
			state = EXCLUDED.state,
			checks = EXCLUDED.checks,
			metrics = EXCLUDED.metrics,
			error = EXCLUDED.error,
			validated_at = EXCLUDED.validated_at`,
		t.RunID, t.Year, string(t.State), checks, metrics, t.Error, validatedAt)
	if err != nil {
		return classify("save transition", err)
	}
	return nil
}

// SaveTransition records a transition result on its own.
func (s *Store) SaveTransition(ctx context.Context, result *engine.TransitionResult) error {
	return upsertTransition(ctx, QueryerFromContext(ctx, s.pool), result)
}

// ListTransitions returns a run's transition results in year order.
func (s *Store) ListTransitions(ctx context.Context, runID string) ([]*engine.TransitionResult, error) {
	q := QueryerFromContext(ctx, s.pool)
	rows, err := q.Query(ctx, `
		SELECT run_id, simulation_year, state, checks, metrics, error, validated_at
		FROM year_transitions WHERE run_id = $1 ORDER BY simulation_year`, runID)
	if err != nil {
		return nil, classify("list transitions", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*engine.TransitionResult, error) {
		var (
			t       engine.TransitionResult
			state   string
			checks  []byte
			metrics []byte
		)
		if err := row.Scan(&t.RunID, &t.Year, &state, &checks, &metrics, &t.Error, &t.ValidatedAt); err != nil {
			return nil, err
		}
		t.State = engine.TransitionState(state)
		if err := json.Unmarshal(checks, &t.Checks); err != nil {
			return nil, fmt.Errorf("failed to decode checks: %w", err)
		}
		if err := json.Unmarshal(metrics, &t.Metrics); err != nil {
			return nil, fmt.Errorf("failed to decode metrics: %w", err)
		}
		return &t, nil
	})
	if err != nil {
		return nil, classify("list transitions", err)
	}
	return out, nil
}

// LoadSnapshot returns the year-end snapshot for year with its contributions.
func (s *Store) LoadSnapshot(ctx context.Context, year int) (*engine.Snapshot, error) {
	q := QueryerFromContext(ctx, s.pool)
	rows, err := q.Query(ctx, `
		SELECT `+joinColumns(snapshotColumns[1:2], snapshotColumns[3:])+`
		FROM workforce_snapshots WHERE simulation_year = $1 ORDER BY employee_id`, year)
	if err != nil {
		return nil, classify("load snapshot", err)
	}
	snapRows, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (engine.SnapshotRow, error) {
		r := engine.SnapshotRow{SimulationYear: year}
		var status, detailed string
		err := row.Scan(&r.EmployeeID, &r.BirthDate, &r.HireDate, &r.TerminationDate,
			&status, &detailed, &r.LevelID,
			&r.StartingCompensation, &r.CurrentCompensation, &r.FullYearEquivalentCompensation,
			&r.ProratedAnnualCompensation, &r.CurrentAge, &r.CurrentTenure, &r.AgeBand, &r.TenureBand,
			&r.Enrolled, &r.EnrollmentDate, &r.DeferralRate)
		r.Status = engine.EmploymentStatus(status)
		r.DetailedStatus = engine.DetailedStatus(detailed)
		return r, err
	})
	if err != nil {
		return nil, classify("load snapshot", err)
	}
	if len(snapRows) == 0 {
		return nil, engine.NewNotFoundError(fmt.Sprintf("no snapshot stored for %d", year)).WithYear(year)
	}

	contributions, err := s.loadContributions(ctx, q, year)
	if err != nil {
		return nil, err
	}
	return engine.NewSnapshot(year, snapRows, contributions), nil
}

func (s *Store) loadContributions(ctx context.Context, q Queryer, year int) ([]irs.ContributionRecord, error) {
	rows, err := q.Query(ctx, `
		SELECT employee_id, age, compensation, deferral_rate, requested_contribution,
			applicable_limit, actual_contribution, irs_limit_applied, amount_capped
		FROM employee_contributions WHERE simulation_year = $1 ORDER BY employee_id`, year)
	if err != nil {
		return nil, classify("load contributions", err)
	}
	recs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (irs.ContributionRecord, error) {
		c := irs.ContributionRecord{PlanYear: year}
		var amounts [6]string
		if err := row.Scan(&c.EmployeeID, &c.Age, &amounts[0], &amounts[1], &amounts[2],
			&amounts[3], &amounts[4], &c.IRSLimitApplied, &amounts[5]); err != nil {
			return c, err
		}
		dst := []*decimal.Decimal{&c.Compensation, &c.DeferralRate, &c.RequestedContribution,
			&c.ApplicableLimit, &c.ActualContribution, &c.AmountCapped}
		for i, text := range amounts {
			d, err := decimal.NewFromString(text)
			if err != nil {
				return c, fmt.Errorf("invalid stored amount %q: %w", text, err)
			}
			*dst[i] = d
		}
		return c, nil
	})
	if err != nil {
		return nil, classify("load contributions", err)
	}
	return recs, nil
}

// LoadEvents returns a year's events ordered by employee and sequence.
func (s *Store) LoadEvents(ctx context.Context, year int) ([]engine.Event, error) {
	q := QueryerFromContext(ctx, s.pool)
	rows, err := q.Query(ctx, `
		SELECT `+joinColumns(eventColumns[:1], eventColumns[2:])+`
		FROM workforce_events WHERE simulation_year = $1
		ORDER BY employee_id, event_sequence`, year)
	if err != nil {
		return nil, classify("load events", err)
	}
	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (engine.Event, error) {
		var (
			e         engine.Event
			eventType string
		)
		if err := row.Scan(&e.ID, &e.EmployeeID, &e.SimulationYear, &eventType, &e.EffectiveDate,
			&e.Sequence, &e.Compensation, &e.PreviousCompensation, &e.LevelID, &e.PreviousLevelID,
			&e.DeferralRate, &e.PreviousDeferralRate, &e.ContributionAmount, &e.BirthDate, &e.Reason); err != nil {
			return e, err
		}
		t, err := engine.ParseEventType(eventType)
		if err != nil {
			return e, err
		}
		e.Type = t
		return e, nil
	})
	if err != nil {
		return nil, classify("load events", err)
	}
	return events, nil
}

// Years returns the years that have a stored snapshot, ascending.
func (s *Store) Years(ctx context.Context) ([]int, error) {
	return s.years(ctx, `SELECT DISTINCT simulation_year FROM workforce_snapshots ORDER BY simulation_year`)
}

func (s *Store) years(ctx context.Context, query string, args ...any) ([]int, error) {
	rows, err := QueryerFromContext(ctx, s.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, classify("list years", err)
	}
	years, err := pgx.CollectRows(rows, pgx.RowTo[int])
	if err != nil {
		return nil, classify("list years", err)
	}
	return years, nil
}

// DeleteYear removes every event, snapshot row and contribution for year.
func (s *Store) DeleteYear(ctx context.Context, year int) error {
	return s.tm.WithinReadWrite(ctx, func(ctx context.Context) error {
		return deleteYear(ctx, QueryerFromContext(ctx, s.pool), year)
	})
}

// DeleteOutsideRange removes simulation data for years outside [start, end].
func (s *Store) DeleteOutsideRange(ctx context.Context, start, end int) (int, error) {
	years, err := s.years(ctx, `
		SELECT simulation_year FROM workforce_snapshots WHERE simulation_year NOT BETWEEN $1 AND $2
		UNION SELECT simulation_year FROM workforce_events WHERE simulation_year NOT BETWEEN $1 AND $2
		UNION SELECT simulation_year FROM employee_contributions WHERE simulation_year NOT BETWEEN $1 AND $2
		ORDER BY 1`, start, end)
	if err != nil {
		return 0, err
	}
	if len(years) == 0 {
		return 0, nil
	}

	err = s.tm.WithinReadWrite(ctx, func(ctx context.Context) error {
		q := QueryerFromContext(ctx, s.pool)
		for _, table := range yearTables {
			if _, err := q.Exec(ctx, `DELETE FROM `+table+` WHERE simulation_year NOT BETWEEN $1 AND $2`, start, end); err != nil {
				return classify("delete "+table, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, classify("delete outside range", err)
	}

	s.logger.Info().Ints("years", years).Msg("removed orphaned years")
	return len(years), nil
}

// DeleteAll removes all simulation data. Runs and transitions are kept.
func (s *Store) DeleteAll(ctx context.Context) error {
	if _, err := QueryerFromContext(ctx, s.pool).Exec(ctx,
		`TRUNCATE workforce_events, workforce_snapshots, employee_contributions`); err != nil {
		return classify("truncate", err)
	}
	return nil
}

// Compact vacuums and analyzes the simulation tables. It cannot run inside a
// transaction.
func (s *Store) Compact(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx,
		`VACUUM (ANALYZE) workforce_events, workforce_snapshots, employee_contributions, year_transitions`); err != nil {
		return classify("vacuum", err)
	}
	return nil
}

func joinColumns(groups ...[]string) string {
	var out string
	for _, g := range groups {
		for _, c := range g {
			if out != "" {
				out += ", "
			}
			out += c
		}
	}
	return out
}

func nonNilInts(v []int) []int {
	if v == nil {
		return []int{}
	}
	return v
}

func nonNilChecks(v []engine.CheckResult) []engine.CheckResult {
	if v == nil {
		return []engine.CheckResult{}
	}
	return v
}

// Transient PostgreSQL error classes.
const (
	serializationFailure = "40001"
	deadlockDetected     = "40P01"
	lockNotAvailable     = "55P03"
	adminShutdown        = "57P01"
	cannotConnectNow     = "57P03"
)

// classify wraps a database error, marking conflicts and connection loss as
// transient so the caller may retry.
func classify(op string, err error) error {
	var engErr *engine.EngineError
	if errors.As(err, &engErr) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case serializationFailure, deadlockDetected, lockNotAvailable, adminShutdown, cannotConnectNow:
			return engine.NewTransientError(fmt.Sprintf("database conflict during %s", op), err).WithOperation(op)
		}
		if strings.HasPrefix(pgErr.Code, "08") {
			return engine.NewTransientError(fmt.Sprintf("connection lost during %s", op), err).WithOperation(op)
		}
	}
	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return engine.NewTransientError(fmt.Sprintf("database unavailable during %s", op), err).WithOperation(op)
	}
	return engine.NewPermanentError(fmt.Sprintf("failed to %s", op), err).WithCode(engine.ErrCodeStoreUnavailable).WithOperation(op)
}
