package stores

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/workforcesim/workforcesim/pkg/engine"
	"github.com/workforcesim/workforcesim/pkg/irs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements engine.Store on SQLite. Each year is written in a
// single immediate transaction.
type SQLiteStore struct {
	db     *sql.DB
	cfg    Config
	logger zerolog.Logger
}

// NewSQLiteStore creates a new SQLite store instance.
func NewSQLiteStore(cfg Config, logger zerolog.Logger) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, engine.NewConfigurationError("database path is required")
	}

	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 4
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 2
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	// Every connection to :memory: opens a separate database.
	if cfg.Path == ":memory:" {
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
		cfg.ConnMaxLifetime = 0
	}

	return &SQLiteStore{
		cfg:    cfg,
		logger: logger.With().Str("component", "sqlite_store").Logger(),
	}, nil
}

func (s *SQLiteStore) dsn() string {
	if s.cfg.Path == ":memory:" {
		return ":memory:?_pragma=foreign_keys(1)&_txlock=immediate"
	}
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)&_txlock=immediate", s.cfg.Path)
}

// Init opens the database and applies migrations.
func (s *SQLiteStore) Init(ctx context.Context) error {
	db, err := sql.Open("sqlite", s.dsn())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return classify("ping database", err)
	}

	s.db = db
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		s.db = nil
		return err
	}

	s.logger.Debug().Str("path", s.cfg.Path).Msg("store initialized")
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate applies the embedded schema migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// HealthCheck verifies the database is reachable.
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}
	return s.db.PingContext(ctx)
}

// SaveRun inserts or updates a run record.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *engine.Run) error {
	completed, err := encodeJSON(nonNilInts(run.CompletedYears))
	if err != nil {
		return err
	}
	failed, err := encodeJSON(nonNilInts(run.FailedYears))
	if err != nil {
		return err
	}
	var completedAt sql.NullString
	if run.CompletedAt != nil {
		completedAt = sql.NullString{String: formatTimestamp(*run.CompletedAt), Valid: true}
	}

	query := `
		INSERT INTO runs (id, status, start_year, end_year, random_seed, config_digest, started_at,
			completed_at, duration_ms, completed_years, failed_years, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			completed_at = excluded.completed_at,
			duration_ms = excluded.duration_ms,
			completed_years = excluded.completed_years,
			failed_years = excluded.failed_years,
			error = excluded.error
	`
	_, err = s.db.ExecContext(ctx, query,
		run.ID,
		string(run.Status),
		run.StartYear,
		run.EndYear,
		run.RandomSeed,
		run.ConfigDigest,
		formatTimestamp(run.StartedAt),
		completedAt,
		run.Duration.Milliseconds(),
		completed,
		failed,
		run.Error,
	)
	if err != nil {
		return classify("save run", err)
	}
	return nil
}

const runColumns = `id, status, start_year, end_year, random_seed, config_digest, started_at,
	completed_at, duration_ms, completed_years, failed_years, error`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*engine.Run, error) {
	var (
		run         engine.Run
		status      string
		startedAt   string
		completedAt sql.NullString
		durationMs  int64
		completed   string
		failed      string
	)
	if err := row.Scan(&run.ID, &status, &run.StartYear, &run.EndYear, &run.RandomSeed,
		&run.ConfigDigest, &startedAt, &completedAt, &durationMs, &completed, &failed, &run.Error); err != nil {
		return nil, err
	}

	run.Status = engine.RunStatus(status)
	run.Duration = time.Duration(durationMs) * time.Millisecond

	var err error
	if run.StartedAt, err = parseTimestamp(startedAt); err != nil {
		return nil, err
	}
	if completedAt.Valid {
		t, err := parseTimestamp(completedAt.String)
		if err != nil {
			return nil, err
		}
		run.CompletedAt = &t
	}
	if err := decodeJSON(completed, &run.CompletedYears); err != nil {
		return nil, err
	}
	if err := decodeJSON(failed, &run.FailedYears); err != nil {
		return nil, err
	}
	return &run, nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*engine.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, engine.NewNotFoundError(fmt.Sprintf("run not found: %s", id))
	}
	if err != nil {
		return nil, classify("get run", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*engine.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, classify("list runs", err)
	}
	defer rows.Close()

	var runs []*engine.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// SaveYear replaces every row of the result's year in one transaction.
func (s *SQLiteStore) SaveYear(ctx context.Context, result *engine.YearResult) (err error) {
	if result == nil || result.Snapshot == nil {
		return engine.NewPermanentError("year result has no snapshot", nil)
	}
	year := result.Snapshot.Year
	timer := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("begin transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = deleteYear(ctx, tx, year); err != nil {
		return err
	}
	if err = s.insertEvents(ctx, tx, result.RunID, result.Events); err != nil {
		return err
	}
	if err = s.insertSnapshot(ctx, tx, result.RunID, result.Snapshot); err != nil {
		return err
	}
	if err = s.insertContributions(ctx, tx, result.RunID, year, result.Snapshot.Contributions); err != nil {
		return err
	}
	if result.Transition != nil {
		t := *result.Transition
		t.RunID = result.RunID
		if err = upsertTransition(ctx, tx, &t); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return classify("commit year", err)
	}

	s.logger.Debug().
		Int("simulation_year", year).
		Int("events", len(result.Events)).
		Int("snapshot_rows", len(result.Snapshot.Rows)).
		Int("contributions", len(result.Snapshot.Contributions)).
		Dur("elapsed", time.Since(timer)).
		Msg("year persisted")
	return nil
}

const eventColumnCount = 16

func (s *SQLiteStore) insertEvents(ctx context.Context, tx *sql.Tx, runID string, events []engine.Event) error {
	for _, span := range chunk(len(events), s.cfg.BatchSize, eventColumnCount) {
		batch := events[span[0]:span[1]]
		args := make([]interface{}, 0, len(batch)*eventColumnCount)
		for i := range batch {
			e := &batch[i]
			args = append(args,
				e.ID, runID, e.EmployeeID, e.SimulationYear, e.Type.String(),
				formatDate(e.EffectiveDate), e.Sequence,
				e.Compensation, e.PreviousCompensation, e.LevelID, e.PreviousLevelID,
				e.DeferralRate, e.PreviousDeferralRate, e.ContributionAmount,
				nullDate(e.BirthDate), e.Reason,
			)
		}
		query := `INSERT INTO workforce_events (event_id, run_id, employee_id, simulation_year, event_type,
			effective_date, event_sequence, compensation_amount, previous_compensation, level_id,
			previous_level_id, deferral_rate, previous_deferral_rate, contribution_amount, birth_date, reason)
			VALUES ` + placeholders(len(batch), eventColumnCount)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return classify("insert events", err)
		}
	}
	return nil
}

const snapshotColumnCount = 20

func (s *SQLiteStore) insertSnapshot(ctx context.Context, tx *sql.Tx, runID string, snap *engine.Snapshot) error {
	for _, span := range chunk(len(snap.Rows), s.cfg.BatchSize, snapshotColumnCount) {
		batch := snap.Rows[span[0]:span[1]]
		args := make([]interface{}, 0, len(batch)*snapshotColumnCount)
		for i := range batch {
			r := &batch[i]
			args = append(args,
				snap.Year, r.EmployeeID, runID, formatDate(r.BirthDate), formatDate(r.HireDate),
				nullDate(r.TerminationDate), string(r.Status), string(r.DetailedStatus), r.LevelID,
				r.StartingCompensation, r.CurrentCompensation, r.FullYearEquivalentCompensation,
				r.ProratedAnnualCompensation, r.CurrentAge, r.CurrentTenure, r.AgeBand, r.TenureBand,
				boolInt(r.Enrolled), nullDate(r.EnrollmentDate), r.DeferralRate,
			)
		}
		query := `INSERT INTO workforce_snapshots (simulation_year, employee_id, run_id, birth_date, hire_date,
			termination_date, employment_status, detailed_status_code, level_id, starting_compensation,
			current_compensation, full_year_equivalent_compensation, prorated_annual_compensation,
			current_age, current_tenure, age_band, tenure_band, enrolled, enrollment_date, deferral_rate)
			VALUES ` + placeholders(len(batch), snapshotColumnCount)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return classify("insert snapshot", err)
		}
	}
	return nil
}

const contributionColumnCount = 11

func (s *SQLiteStore) insertContributions(ctx context.Context, tx *sql.Tx, runID string, year int, recs []irs.ContributionRecord) error {
	for _, span := range chunk(len(recs), s.cfg.BatchSize, contributionColumnCount) {
		batch := recs[span[0]:span[1]]
		args := make([]interface{}, 0, len(batch)*contributionColumnCount)
		for i := range batch {
			c := &batch[i]
			args = append(args,
				year, c.EmployeeID, runID, c.Age,
				c.Compensation.String(), c.DeferralRate.String(), c.RequestedContribution.String(),
				c.ApplicableLimit.String(), c.ActualContribution.String(),
				boolInt(c.IRSLimitApplied), c.AmountCapped.String(),
			)
		}
		query := `INSERT INTO employee_contributions (simulation_year, employee_id, run_id, age, compensation,
			deferral_rate, requested_contribution, applicable_limit, actual_contribution,
			irs_limit_applied, amount_capped)
			VALUES ` + placeholders(len(batch), contributionColumnCount)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return classify("insert contributions", err)
		}
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func upsertTransition(ctx context.Context, db execer, t *engine.TransitionResult) error {
	checks, err := encodeJSON(t.Checks)
	if err != nil {
		return err
	}
	metrics, err := encodeJSON(t.Metrics)
	if err != nil {
		return err
	}
	validatedAt := t.ValidatedAt
	if validatedAt.IsZero() {
		validatedAt = time.Now()
	}

	query := `
		INSERT INTO year_transitions (run_id, simulation_year, state, checks, metrics, error, validated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, simulation_year) DO UPDATE SET
			state = excluded.state,
			checks = excluded.checks,
			metrics = excluded.metrics,
			error = excluded.error,
			validated_at = excluded.validated_at
	`
	if _, err := db.ExecContext(ctx, query, t.RunID, t.Year, string(t.State), checks, metrics,
		t.Error, formatTimestamp(validatedAt)); err != nil {
		return classify("save transition", err)
	}
	return nil
}

// SaveTransition records a transition result on its own.
func (s *SQLiteStore) SaveTransition(ctx context.Context, result *engine.TransitionResult) error {
	return upsertTransition(ctx, s.db, result)
}

// ListTransitions returns a run's transition results in year order.
func (s *SQLiteStore) ListTransitions(ctx context.Context, runID string) ([]*engine.TransitionResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, simulation_year, state, checks, metrics, error, validated_at
		FROM year_transitions WHERE run_id = ? ORDER BY simulation_year`, runID)
	if err != nil {
		return nil, classify("list transitions", err)
	}
	defer rows.Close()

	var out []*engine.TransitionResult
	for rows.Next() {
		var (
			t                      engine.TransitionResult
			state, checks, metrics string
			validatedAt            string
		)
		if err := rows.Scan(&t.RunID, &t.Year, &state, &checks, &metrics, &t.Error, &validatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}
		t.State = engine.TransitionState(state)
		if err := decodeJSON(checks, &t.Checks); err != nil {
			return nil, err
		}
		if err := decodeJSON(metrics, &t.Metrics); err != nil {
			return nil, err
		}
		if t.ValidatedAt, err = parseTimestamp(validatedAt); err != nil {
			return nil, err
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

// LoadSnapshot returns a year-end snapshot with its contribution records.
func (s *SQLiteStore) LoadSnapshot(ctx context.Context, year int) (*engine.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT employee_id, birth_date, hire_date, termination_date, employment_status,
			detailed_status_code, level_id, starting_compensation, current_compensation,
			full_year_equivalent_compensation, prorated_annual_compensation, current_age,
			current_tenure, age_band, tenure_band, enrolled, enrollment_date, deferral_rate
		FROM workforce_snapshots WHERE simulation_year = ? ORDER BY employee_id`, year)
	if err != nil {
		return nil, classify("load snapshot", err)
	}
	defer rows.Close()

	var out []engine.SnapshotRow
	for rows.Next() {
		var (
			r                engine.SnapshotRow
			birth, hire      string
			term, enrollDate sql.NullString
			status, detailed string
			enrolled         int
		)
		if err := rows.Scan(&r.EmployeeID, &birth, &hire, &term, &status, &detailed, &r.LevelID,
			&r.StartingCompensation, &r.CurrentCompensation, &r.FullYearEquivalentCompensation,
			&r.ProratedAnnualCompensation, &r.CurrentAge, &r.CurrentTenure, &r.AgeBand, &r.TenureBand,
			&enrolled, &enrollDate, &r.DeferralRate); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		r.SimulationYear = year
		r.Status = engine.EmploymentStatus(status)
		r.DetailedStatus = engine.DetailedStatus(detailed)
		r.Enrolled = enrolled != 0
		if r.BirthDate, err = parseDate(birth); err != nil {
			return nil, err
		}
		if r.HireDate, err = parseDate(hire); err != nil {
			return nil, err
		}
		if r.TerminationDate, err = parseNullDate(term); err != nil {
			return nil, err
		}
		if r.EnrollmentDate, err = parseNullDate(enrollDate); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("load snapshot", err)
	}
	if len(out) == 0 {
		return nil, engine.NewNotFoundError(fmt.Sprintf("no snapshot for year %d", year)).WithYear(year)
	}

	contributions, err := s.loadContributions(ctx, year)
	if err != nil {
		return nil, err
	}
	return engine.NewSnapshot(year, out, contributions), nil
}

func (s *SQLiteStore) loadContributions(ctx context.Context, year int) ([]irs.ContributionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT employee_id, age, compensation, deferral_rate, requested_contribution,
			applicable_limit, actual_contribution, irs_limit_applied, amount_capped
		FROM employee_contributions WHERE simulation_year = ? ORDER BY employee_id`, year)
	if err != nil {
		return nil, classify("load contributions", err)
	}
	defer rows.Close()

	var out []irs.ContributionRecord
	for rows.Next() {
		c := irs.ContributionRecord{PlanYear: year}
		var applied int
		if err := rows.Scan(&c.EmployeeID, &c.Age, &c.Compensation, &c.DeferralRate,
			&c.RequestedContribution, &c.ApplicableLimit, &c.ActualContribution, &applied,
			&c.AmountCapped); err != nil {
			return nil, fmt.Errorf("failed to scan contribution: %w", err)
		}
		c.IRSLimitApplied = applied != 0
		out = append(out, c)
	}
	return out, rows.Err()
}

// LoadEvents returns a year's events ordered by employee and sequence.
func (s *SQLiteStore) LoadEvents(ctx context.Context, year int) ([]engine.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, employee_id, event_type, effective_date, event_sequence,
			compensation_amount, previous_compensation, level_id, previous_level_id,
			deferral_rate, previous_deferral_rate, contribution_amount, birth_date, reason
		FROM workforce_events WHERE simulation_year = ?
		ORDER BY employee_id, event_sequence`, year)
	if err != nil {
		return nil, classify("load events", err)
	}
	defer rows.Close()

	var out []engine.Event
	for rows.Next() {
		var (
			e         engine.Event
			typ, date string
			birth     sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.EmployeeID, &typ, &date, &e.Sequence,
			&e.Compensation, &e.PreviousCompensation, &e.LevelID, &e.PreviousLevelID,
			&e.DeferralRate, &e.PreviousDeferralRate, &e.ContributionAmount, &birth, &e.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.SimulationYear = year
		if e.Type, err = engine.ParseEventType(typ); err != nil {
			return nil, err
		}
		if e.EffectiveDate, err = parseDate(date); err != nil {
			return nil, err
		}
		if e.BirthDate, err = parseNullDate(birth); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Years returns the years with a stored snapshot.
func (s *SQLiteStore) Years(ctx context.Context) ([]int, error) {
	return s.years(ctx, `SELECT DISTINCT simulation_year FROM workforce_snapshots ORDER BY simulation_year`)
}

func (s *SQLiteStore) years(ctx context.Context, query string, args ...interface{}) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("list years", err)
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var y int
		if err := rows.Scan(&y); err != nil {
			return nil, err
		}
		out = append(out, y)
	}
	return out, rows.Err()
}

var yearTables = []string{"workforce_events", "workforce_snapshots", "employee_contributions"}

func deleteYear(ctx context.Context, db execer, year int) error {
	for _, table := range yearTables {
		if _, err := db.ExecContext(ctx, `DELETE FROM `+table+` WHERE simulation_year = ?`, year); err != nil {
			return classify("delete "+table, err)
		}
	}
	return nil
}

// DeleteYear removes every event, snapshot row and contribution for year.
func (s *SQLiteStore) DeleteYear(ctx context.Context, year int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("begin transaction", err)
	}
	if err := deleteYear(ctx, tx, year); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return classify("commit delete", err)
	}
	return nil
}

// DeleteOutsideRange removes simulation data for years outside [start, end].
func (s *SQLiteStore) DeleteOutsideRange(ctx context.Context, start, end int) (int, error) {
	years, err := s.years(ctx, `
		SELECT simulation_year FROM workforce_snapshots WHERE simulation_year < ? OR simulation_year > ?
		UNION SELECT simulation_year FROM workforce_events WHERE simulation_year < ? OR simulation_year > ?
		UNION SELECT simulation_year FROM employee_contributions WHERE simulation_year < ? OR simulation_year > ?
		ORDER BY 1`, start, end, start, end, start, end)
	if err != nil {
		return 0, err
	}
	if len(years) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, classify("begin transaction", err)
	}
	for _, y := range years {
		if err := deleteYear(ctx, tx, y); err != nil {
			_ = tx.Rollback()
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, classify("commit cleanup", err)
	}

	s.logger.Info().Ints("years", years).Msg("removed orphaned years")
	return len(years), nil
}

// DeleteAll removes all simulation data. Runs and transitions are kept.
func (s *SQLiteStore) DeleteAll(ctx context.Context) error {
	for _, table := range yearTables {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return classify("clear "+table, err)
		}
	}
	return nil
}

// Compact rebuilds the database file.
func (s *SQLiteStore) Compact(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
		return classify("vacuum", err)
	}
	return nil
}

func placeholders(rows, cols int) string {
	row := "(" + strings.TrimSuffix(strings.Repeat("?, ", cols), ", ") + ")"
	var sb strings.Builder
	for i := 0; i < rows; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(row)
	}
	return sb.String()
}

func nonNilInts(v []int) []int {
	if v == nil {
		return []int{}
	}
	return v
}

func decodeJSON(s string, v interface{}) error {
	if s == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(s), v); err != nil {
		return fmt.Errorf("failed to decode stored JSON: %w", err)
	}
	return nil
}

// classify wraps a database error, marking busy and locked conditions as
// transient so the caller may retry.
func classify(op string, err error) error {
	var serr *sqlite.Error
	if errors.As(err, &serr) {
		switch serr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return engine.NewTransientError(fmt.Sprintf("database busy during %s", op), err).WithOperation(op)
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return engine.NewPermanentError(fmt.Sprintf("failed to %s", op), err).WithCode(engine.ErrCodeStoreUnavailable).WithOperation(op)
}
