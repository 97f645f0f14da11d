package engine

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/workforcesim/workforcesim/pkg/irs"
)

// EmploymentStatus is the year-end employment state of an employee.
type EmploymentStatus string

const (
	// StatusActive indicates the employee is employed at year end.
	StatusActive EmploymentStatus = "active"

	// StatusTerminated indicates the employee left during the year.
	StatusTerminated EmploymentStatus = "terminated"
)

// DetailedStatus combines hire cohort and employment outcome for the year.
type DetailedStatus string

const (
	DetailedNewHireActive          DetailedStatus = "new_hire_active"
	DetailedNewHireTermination     DetailedStatus = "new_hire_termination"
	DetailedContinuousActive       DetailedStatus = "continuous_active"
	DetailedExperiencedTermination DetailedStatus = "experienced_termination"
)

// detailedStatusFor derives the detailed status from cohort and outcome.
func detailedStatusFor(newHire, terminated bool) DetailedStatus {
	switch {
	case newHire && terminated:
		return DetailedNewHireTermination
	case newHire:
		return DetailedNewHireActive
	case terminated:
		return DetailedExperiencedTermination
	default:
		return DetailedContinuousActive
	}
}

// SnapshotRow is the state of one employee at the end of one simulation year.
type SnapshotRow struct {
	// EmployeeID is unique within a year.
	EmployeeID string `json:"employee_id"`

	// SimulationYear is the year this row describes.
	SimulationYear int `json:"simulation_year"`

	BirthDate       time.Time  `json:"birth_date"`
	HireDate        time.Time  `json:"hire_date"`
	TerminationDate *time.Time `json:"termination_date,omitempty"`

	Status         EmploymentStatus `json:"employment_status"`
	DetailedStatus DetailedStatus   `json:"detailed_status_code"`

	// LevelID is the job level at year end.
	LevelID int `json:"level_id"`

	// StartingCompensation is the rate in effect on January 1, or on the hire
	// date for new hires.
	StartingCompensation float64 `json:"starting_compensation"`

	// CurrentCompensation is the rate in effect at the end of the reporting
	// period. It becomes next year's starting rate.
	CurrentCompensation float64 `json:"current_compensation"`

	// FullYearEquivalentCompensation is the annualized rate at year end.
	FullYearEquivalentCompensation float64 `json:"full_year_equivalent_compensation"`

	// ProratedAnnualCompensation is the time-weighted compensation earned in the year.
	ProratedAnnualCompensation float64 `json:"prorated_annual_compensation"`

	// CurrentAge and CurrentTenure are measured at year end, or at the
	// termination date for terminated employees.
	CurrentAge    int    `json:"current_age"`
	CurrentTenure int    `json:"current_tenure"`
	AgeBand       string `json:"age_band"`
	TenureBand    string `json:"tenure_band"`

	// Enrolled reports plan participation at year end.
	Enrolled       bool       `json:"enrolled"`
	EnrollmentDate *time.Time `json:"enrollment_date,omitempty"`

	// DeferralRate is the elective deferral rate in effect at year end.
	DeferralRate float64 `json:"deferral_rate"`
}

// IsActive reports whether the employee is employed at year end.
func (r *SnapshotRow) IsActive() bool {
	return r.Status == StatusActive
}

// Snapshot is the immutable year-end state of the whole workforce. Rows are
// ordered by employee ID.
type Snapshot struct {
	Year          int                      `json:"year"`
	Rows          []SnapshotRow            `json:"rows"`
	Contributions []irs.ContributionRecord `json:"contributions,omitempty"`
}

// NewSnapshot builds a snapshot and sorts its rows by employee ID.
func NewSnapshot(year int, rows []SnapshotRow, contributions []irs.ContributionRecord) *Snapshot {
	sort.Slice(rows, func(i, j int) bool { return rows[i].EmployeeID < rows[j].EmployeeID })
	sort.Slice(contributions, func(i, j int) bool { return contributions[i].EmployeeID < contributions[j].EmployeeID })
	return &Snapshot{Year: year, Rows: rows, Contributions: contributions}
}

// Active returns the rows of employees active at year end.
func (s *Snapshot) Active() []SnapshotRow {
	if s == nil {
		return nil
	}
	out := make([]SnapshotRow, 0, len(s.Rows))
	for _, r := range s.Rows {
		if r.IsActive() {
			out = append(out, r)
		}
	}
	return out
}

// ActiveCount returns the number of employees active at year end.
func (s *Snapshot) ActiveCount() int {
	if s == nil {
		return 0
	}
	n := 0
	for i := range s.Rows {
		if s.Rows[i].IsActive() {
			n++
		}
	}
	return n
}

// Find returns the row for employeeID, or nil.
func (s *Snapshot) Find(employeeID string) *SnapshotRow {
	if s == nil {
		return nil
	}
	i := sort.Search(len(s.Rows), func(i int) bool { return s.Rows[i].EmployeeID >= employeeID })
	if i < len(s.Rows) && s.Rows[i].EmployeeID == employeeID {
		return &s.Rows[i]
	}
	return nil
}

// IsEmpty reports whether the snapshot has no rows.
func (s *Snapshot) IsEmpty() bool {
	return s == nil || len(s.Rows) == 0
}

// Event is an immutable record of a single workforce change.
type Event struct {
	// ID is deterministic for a given seed, year, employee and position.
	ID string `json:"event_id"`

	EmployeeID     string    `json:"employee_id"`
	SimulationYear int       `json:"simulation_year"`
	Type           EventType `json:"event_type"`
	EffectiveDate  time.Time `json:"effective_date"`

	// Sequence orders the employee's events within the year, starting at 1.
	Sequence int `json:"event_sequence"`

	// Compensation and PreviousCompensation are set on compensation-changing events.
	Compensation         float64 `json:"compensation_amount,omitempty"`
	PreviousCompensation float64 `json:"previous_compensation,omitempty"`

	// LevelID is the level after the event; PreviousLevelID is set on promotions.
	LevelID         int `json:"level_id,omitempty"`
	PreviousLevelID int `json:"previous_level_id,omitempty"`

	// DeferralRate and PreviousDeferralRate are set on enrollment events.
	DeferralRate         float64 `json:"deferral_rate,omitempty"`
	PreviousDeferralRate float64 `json:"previous_deferral_rate,omitempty"`

	// ContributionAmount is the capped annual deferral on contribution events.
	ContributionAmount float64 `json:"contribution_amount,omitempty"`

	// BirthDate is set on hire events.
	BirthDate *time.Time `json:"birth_date,omitempty"`

	// Reason is a short free-form qualifier, such as "auto_enrollment" or "merit".
	Reason string `json:"reason,omitempty"`
}

// RunStatus represents the overall status of a multi-year simulation run.
type RunStatus string

const (
	// RunStatusPending indicates the run is recorded but not yet started.
	RunStatusPending RunStatus = "pending"

	// RunStatusRunning indicates the run is processing years.
	RunStatusRunning RunStatus = "running"

	// RunStatusSucceeded indicates every requested year passed.
	RunStatusSucceeded RunStatus = "succeeded"

	// RunStatusPartial indicates some years failed and the run continued.
	RunStatusPartial RunStatus = "partial"

	// RunStatusFailed indicates the run aborted or no year passed.
	RunStatusFailed RunStatus = "failed"
)

// IsTerminal returns true if the run status represents a final state.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusSucceeded || s == RunStatusFailed || s == RunStatusPartial
}

// Run records one invocation of the orchestration loop.
type Run struct {
	ID           string        `json:"id"`
	Status       RunStatus     `json:"status"`
	StartYear    int           `json:"start_year"`
	EndYear      int           `json:"end_year"`
	RandomSeed   int64         `json:"random_seed"`
	ConfigDigest string        `json:"config_digest,omitempty"`
	StartedAt    time.Time     `json:"started_at"`
	CompletedAt  *time.Time    `json:"completed_at,omitempty"`
	Duration     time.Duration `json:"duration"`

	// CompletedYears and FailedYears are in processing order.
	CompletedYears []int  `json:"completed_years,omitempty"`
	FailedYears    []int  `json:"failed_years,omitempty"`
	Error          string `json:"error,omitempty"`
}

// YearResult bundles everything persisted for one successfully processed year.
type YearResult struct {
	RunID      string
	Snapshot   *Snapshot
	Events     []Event
	Transition *TransitionResult
}

// EventCounts tallies events by type.
func EventCounts(events []Event) map[EventType]int {
	counts := make(map[EventType]int, len(AllEventTypes))
	for i := range events {
		counts[events[i].Type]++
	}
	return counts
}

func roundCents(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}
