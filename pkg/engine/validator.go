package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/workforcesim/workforcesim/pkg/irs"
)

// TransitionState is the state of one year transition validation.
type TransitionState string

const (
	TransitionPending    TransitionState = "PENDING"
	TransitionValidating TransitionState = "VALIDATING"
	TransitionPassed     TransitionState = "PASSED"
	TransitionFailed     TransitionState = "FAILED"
)

// Severity grades a check. Only failed error-severity checks fail a transition.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Built-in check names.
const (
	CheckSnapshotPresent         = "snapshot_present"
	CheckEventsPresent           = "events_present"
	CheckGrowthRate              = "growth_rate"
	CheckCompensationCompounding = "compensation_compounding"
	CheckIRSCompliance           = "irs_compliance"
	CheckProrationBound          = "proration_bound"
)

// CheckResult is the outcome of one transition check.
type CheckResult struct {
	Name     string   `json:"name"`
	Passed   bool     `json:"passed"`
	Severity Severity `json:"severity"`
	Expected string   `json:"expected"`
	Actual   string   `json:"actual"`
	Message  string   `json:"message,omitempty"`

	// Employees lists offending employee IDs, capped at a small sample.
	Employees []string `json:"employees,omitempty"`
}

// TransitionMetrics summarise a year for reporting and policy evaluation.
type TransitionMetrics struct {
	StartingActive          int `json:"starting_active"`
	EndingActive            int `json:"ending_active"`
	ExpectedEndingActive    int `json:"expected_ending_active"`
	Hires                   int `json:"hires"`
	ExperiencedTerminations int `json:"experienced_terminations"`
	NewHireTerminations     int `json:"new_hire_terminations"`
	Promotions              int `json:"promotions"`
	Raises                  int `json:"raises"`
	Enrollments             int `json:"enrollments"`
	EnrollmentChanges       int `json:"enrollment_changes"`
	Contributions           int `json:"contributions"`
	CappedContributions     int `json:"capped_contributions"`

	TargetGrowthRate      float64 `json:"target_growth_rate"`
	ActualGrowthRate      float64 `json:"actual_growth_rate"`
	TargetTerminationRate float64 `json:"target_termination_rate"`
	ActualTerminationRate float64 `json:"actual_termination_rate"`

	TotalProratedCompensation float64 `json:"total_prorated_compensation"`
	AverageCompensation       float64 `json:"average_compensation"`
	PriorAverageCompensation  float64 `json:"prior_average_compensation"`
	CompensationGrowth        float64 `json:"compensation_growth"`
	ParticipationRate         float64 `json:"participation_rate"`
	TotalContributions        float64 `json:"total_contributions"`
}

// TransitionResult is the persisted outcome of a year transition.
type TransitionResult struct {
	RunID       string            `json:"run_id,omitempty"`
	Year        int               `json:"year"`
	State       TransitionState   `json:"state"`
	Checks      []CheckResult     `json:"checks"`
	Metrics     TransitionMetrics `json:"metrics"`
	Error       string            `json:"error,omitempty"`
	ValidatedAt time.Time         `json:"validated_at"`
}

// FailedChecks returns the failed error-severity checks.
func (r *TransitionResult) FailedChecks() []CheckResult {
	var out []CheckResult
	for _, c := range r.Checks {
		if !c.Passed && c.Severity == SeverityError {
			out = append(out, c)
		}
	}
	return out
}

// Warnings returns failed checks below error severity.
func (r *TransitionResult) Warnings() []CheckResult {
	var out []CheckResult
	for _, c := range r.Checks {
		if !c.Passed && c.Severity != SeverityError {
			out = append(out, c)
		}
	}
	return out
}

const maxReportedEmployees = 10

// TransitionValidator validates one year transition. It is single-use:
// PENDING -> VALIDATING -> PASSED or FAILED.
type TransitionValidator struct {
	year     int
	cfg      *SimulationConfig
	limits   *irs.Table
	policies PolicyEvaluator
	state    TransitionState
}

// NewTransitionValidator returns a validator in the PENDING state. policies may be nil.
func NewTransitionValidator(year int, cfg *SimulationConfig, limits *irs.Table, policies PolicyEvaluator) *TransitionValidator {
	return &TransitionValidator{
		year:     year,
		cfg:      cfg,
		limits:   limits,
		policies: policies,
		state:    TransitionPending,
	}
}

// State returns the current validation state.
func (v *TransitionValidator) State() TransitionState {
	return v.state
}

// Validate checks the transition from prior (the starting workforce) to next
// (the year-end snapshot) given the year's events. On failure it returns the
// result together with a *TransitionValidationError.
func (v *TransitionValidator) Validate(ctx context.Context, prior *Snapshot, events []Event, next *Snapshot) (*TransitionResult, error) {
	if v.state != TransitionPending {
		return nil, NewPermanentError(fmt.Sprintf("transition validator for %d already %s", v.year, v.state), nil)
	}
	v.state = TransitionValidating

	result := &TransitionResult{
		Year:        v.year,
		State:       TransitionValidating,
		ValidatedAt: time.Now().UTC(),
	}

	result.Checks = append(result.Checks, v.checkPresence(prior, events, next)...)
	if len(result.FailedChecks()) == 0 {
		result.Metrics = v.metrics(prior, events, next)
		result.Checks = append(result.Checks,
			v.checkGrowth(result.Metrics),
			v.checkCompounding(prior, next),
			v.checkIRS(next),
			v.checkProration(next),
		)

		if v.policies != nil {
			policyChecks, err := v.policies.EvaluateTransition(ctx, result)
			if err != nil {
				v.state = TransitionFailed
				result.State = TransitionFailed
				result.Error = err.Error()
				return result, fmt.Errorf("failed to evaluate transition policies: %w", err)
			}
			result.Checks = append(result.Checks, policyChecks...)
		}
	}

	if failed := result.FailedChecks(); len(failed) > 0 {
		v.state = TransitionFailed
		result.State = TransitionFailed
		verr := &TransitionValidationError{Year: v.year, Failed: failed}
		result.Error = verr.Error()
		return result, verr
	}

	v.state = TransitionPassed
	result.State = TransitionPassed
	return result, nil
}

func (v *TransitionValidator) checkPresence(prior *Snapshot, events []Event, next *Snapshot) []CheckResult {
	snap := CheckResult{Name: CheckSnapshotPresent, Severity: SeverityError, Expected: "non-empty", Passed: true, Actual: "non-empty"}
	switch {
	case prior.IsEmpty():
		snap.Passed, snap.Actual, snap.Message = false, "empty", fmt.Sprintf("starting snapshot for %d is missing", v.year)
	case next.IsEmpty():
		snap.Passed, snap.Actual, snap.Message = false, "empty", fmt.Sprintf("year-end snapshot for %d is missing", v.year)
	}

	ev := CheckResult{Name: CheckEventsPresent, Severity: SeverityError, Expected: "> 0", Actual: fmt.Sprint(len(events)), Passed: len(events) > 0}
	if !ev.Passed {
		ev.Message = fmt.Sprintf("no events were generated for %d", v.year)
	}
	return []CheckResult{snap, ev}
}

func (v *TransitionValidator) checkGrowth(m TransitionMetrics) CheckResult {
	tol := v.cfg.Tolerances.GrowthEmployees
	diff := m.EndingActive - m.ExpectedEndingActive
	c := CheckResult{
		Name:     CheckGrowthRate,
		Severity: SeverityError,
		Expected: fmt.Sprintf("%d ± %d", m.ExpectedEndingActive, tol),
		Actual:   fmt.Sprint(m.EndingActive),
		Passed:   diff >= -tol && diff <= tol,
	}
	if !c.Passed {
		c.Message = fmt.Sprintf("ending active headcount deviates from target by %d", diff)
	}
	return c
}

func (v *TransitionValidator) checkCompounding(prior, next *Snapshot) CheckResult {
	tol := v.cfg.Tolerances.Compensation
	c := CheckResult{
		Name:     CheckCompensationCompounding,
		Severity: SeverityError,
		Expected: fmt.Sprintf("starting compensation = prior full-year equivalent ± %.2f", tol),
		Passed:   true,
	}

	checked, mismatched := 0, 0
	worst := 0.0
	for i := range next.Rows {
		row := &next.Rows[i]
		if row.DetailedStatus == DetailedNewHireActive || row.DetailedStatus == DetailedNewHireTermination {
			continue
		}
		was := prior.Find(row.EmployeeID)
		if was == nil || !was.IsActive() {
			continue
		}
		checked++
		diff := math.Abs(row.StartingCompensation - was.FullYearEquivalentCompensation)
		if diff > tol+1e-9 {
			mismatched++
			worst = math.Max(worst, diff)
			if len(c.Employees) < maxReportedEmployees {
				c.Employees = append(c.Employees, row.EmployeeID)
			}
		}
	}

	c.Actual = fmt.Sprintf("%d of %d continuing employees mismatched", mismatched, checked)
	if mismatched > 0 {
		c.Passed = false
		c.Message = fmt.Sprintf("largest compounding gap %.2f", worst)
	}
	return c
}

func (v *TransitionValidator) checkIRS(next *Snapshot) CheckResult {
	c := CheckResult{
		Name:     CheckIRSCompliance,
		Severity: SeverityError,
		Expected: "0 contributions above limit",
		Passed:   true,
	}

	violations := 0
	for _, rec := range next.Contributions {
		limit := v.limits.ApplicableLimit(v.year, rec.Age)
		if rec.ActualContribution.GreaterThan(limit) {
			violations++
			if len(c.Employees) < maxReportedEmployees {
				c.Employees = append(c.Employees, rec.EmployeeID)
			}
		}
	}

	c.Actual = fmt.Sprintf("%d contributions above limit", violations)
	if violations > 0 {
		c.Passed = false
		c.Message = "contributions exceed the applicable 402(g) limit"
	}
	return c
}

func (v *TransitionValidator) checkProration(next *Snapshot) CheckResult {
	c := CheckResult{
		Name:     CheckProrationBound,
		Severity: SeverityError,
		Expected: "prorated <= full-year equivalent",
		Passed:   true,
	}

	violations := 0
	for i := range next.Rows {
		row := &next.Rows[i]
		if row.ProratedAnnualCompensation > row.FullYearEquivalentCompensation+compensationEpsilon {
			violations++
			if len(c.Employees) < maxReportedEmployees {
				c.Employees = append(c.Employees, row.EmployeeID)
			}
		}
	}

	c.Actual = fmt.Sprintf("%d rows above full-year equivalent", violations)
	if violations > 0 {
		c.Passed = false
	}
	return c
}

func (v *TransitionValidator) metrics(prior *Snapshot, events []Event, next *Snapshot) TransitionMetrics {
	m := TransitionMetrics{
		StartingActive:        prior.ActiveCount(),
		EndingActive:          next.ActiveCount(),
		TargetGrowthRate:      v.cfg.TargetGrowthRate,
		TargetTerminationRate: v.cfg.TotalTerminationRate,
	}
	m.ExpectedEndingActive = int(math.Round(float64(m.StartingActive) * (1 + v.cfg.TargetGrowthRate)))

	hired := make(map[string]bool)
	for i := range events {
		if events[i].Type == EventTypeHire {
			hired[events[i].EmployeeID] = true
		}
	}
	for i := range events {
		e := &events[i]
		switch e.Type {
		case EventTypeHire:
			m.Hires++
		case EventTypeTermination:
			if hired[e.EmployeeID] {
				m.NewHireTerminations++
			} else {
				m.ExperiencedTerminations++
			}
		case EventTypePromotion:
			m.Promotions++
		case EventTypeRaise:
			m.Raises++
		case EventTypeEnrollment:
			m.Enrollments++
		case EventTypeEnrollmentChange:
			m.EnrollmentChanges++
		case EventTypeContribution:
			m.Contributions++
		case EventTypeUnknown:
		}
	}

	if m.StartingActive > 0 {
		m.ActualGrowthRate = float64(m.EndingActive-m.StartingActive) / float64(m.StartingActive)
		m.ActualTerminationRate = float64(m.ExperiencedTerminations) / float64(m.StartingActive)
	}

	m.AverageCompensation = averageActiveCompensation(next)
	m.PriorAverageCompensation = averageActiveCompensation(prior)
	if m.PriorAverageCompensation > 0 {
		m.CompensationGrowth = m.AverageCompensation/m.PriorAverageCompensation - 1
	}

	enrolled := 0
	total := 0.0
	for i := range next.Rows {
		row := &next.Rows[i]
		total += row.ProratedAnnualCompensation
		if row.IsActive() && row.Enrolled {
			enrolled++
		}
	}
	m.TotalProratedCompensation = roundCents(total)
	if m.EndingActive > 0 {
		m.ParticipationRate = float64(enrolled) / float64(m.EndingActive)
	}

	contributed := 0.0
	for _, rec := range next.Contributions {
		if rec.IRSLimitApplied {
			m.CappedContributions++
		}
		f, _ := rec.ActualContribution.Float64()
		contributed += f
	}
	m.TotalContributions = roundCents(contributed)
	return m
}

func averageActiveCompensation(s *Snapshot) float64 {
	if s == nil {
		return 0
	}
	total, n := 0.0, 0
	for i := range s.Rows {
		if s.Rows[i].IsActive() {
			total += s.Rows[i].FullYearEquivalentCompensation
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return roundCents(total / float64(n))
}
