package generators

import (
	"context"
	"math"
	"time"

	"github.com/workforcesim/workforcesim/pkg/engine"
)

// EnrollmentStage generates plan enrollment and deferral-rate events:
//
//   - automatic enrollment of new hires after the enrollment window, unless they opt out
//   - voluntary enrollment of starting employees who do not participate
//   - automatic escalation of participants hired on or after the cutoff
type EnrollmentStage struct{}

// Name implements engine.Stage.
func (EnrollmentStage) Name() string { return StageEnrollment }

// Requires implements engine.Stage.
func (EnrollmentStage) Requires() []string {
	return []string{StageTermination, StageHiring, StageNewHireTermination}
}

// EscalationEligible reports whether an employee hired on hireDate is subject
// to automatic escalation. The cutoff is inclusive; a zero cutoff admits everyone.
func EscalationEligible(hireDate, cutoff time.Time) bool {
	if cutoff.IsZero() {
		return true
	}
	return !engine.Day(hireDate).Before(engine.Day(cutoff))
}

// Generate implements engine.Stage.
func (EnrollmentStage) Generate(ctx context.Context, in *engine.StageInput) ([]engine.Event, error) {
	terms := terminationDates(in, StageTermination, StageNewHireTermination)

	starting, err := forEach(ctx, workers(in), startingActive(in), func(row engine.SnapshotRow) ([]engine.Event, error) {
		if row.Enrolled {
			return escalate(in, row, terms), nil
		}
		return enrollVoluntarily(in, row, terms), nil
	})
	if err != nil {
		return nil, err
	}

	hired, err := forEach(ctx, workers(in), in.Upstream(StageHiring), func(hire engine.Event) ([]engine.Event, error) {
		return autoEnroll(in, hire, terms), nil
	})
	if err != nil {
		return nil, err
	}

	return append(starting, hired...), nil
}

func autoEnroll(in *engine.StageInput, hire engine.Event, terms map[string]time.Time) []engine.Event {
	ec := in.Config.Enrollment
	if !ec.AutoEnroll || ec.DefaultDeferralRate <= 0 {
		return nil
	}

	date := engine.Day(hire.EffectiveDate).AddDate(0, 0, ec.WindowDays)
	if date.Year() != in.Year {
		return nil
	}
	if t, ok := terms[hire.EmployeeID]; ok && !date.Before(t) {
		return nil
	}

	r := in.Streams.For(in.Year, StageEnrollment, hire.EmployeeID)
	if r.Float64() < ec.OptOutRate {
		return nil
	}

	return []engine.Event{{
		EmployeeID:     hire.EmployeeID,
		SimulationYear: in.Year,
		Type:           engine.EventTypeEnrollment,
		EffectiveDate:  date,
		DeferralRate:   ec.DefaultDeferralRate,
		Reason:         "auto_enrollment",
	}}
}

func enrollVoluntarily(in *engine.StageInput, row engine.SnapshotRow, terms map[string]time.Time) []engine.Event {
	ec := in.Config.Enrollment
	if ec.VoluntaryRate <= 0 || len(ec.VoluntaryDeferralRates) == 0 {
		return nil
	}

	r := in.Streams.For(in.Year, StageEnrollment, row.EmployeeID)
	if r.Float64() >= ec.VoluntaryRate {
		return nil
	}

	date := randomDate(r, engine.YearStart(in.Year), engine.YearEnd(in.Year))
	if t, ok := terms[row.EmployeeID]; ok && !date.Before(t) {
		return nil
	}
	rate := ec.VoluntaryDeferralRates[r.IntN(len(ec.VoluntaryDeferralRates))]
	if rate <= 0 {
		return nil
	}

	return []engine.Event{{
		EmployeeID:     row.EmployeeID,
		SimulationYear: in.Year,
		Type:           engine.EventTypeEnrollment,
		EffectiveDate:  date,
		DeferralRate:   rate,
		Reason:         "voluntary",
	}}
}

func escalate(in *engine.StageInput, row engine.SnapshotRow, terms map[string]time.Time) []engine.Event {
	esc := in.Config.Enrollment.Escalation
	if !esc.Enabled || esc.Increment <= 0 {
		return nil
	}
	if !EscalationEligible(row.HireDate, esc.HireDateCutoff) {
		return nil
	}
	if row.DeferralRate >= esc.Cap {
		return nil
	}

	date := esc.EffectiveDate.In(in.Year)
	if t, ok := terms[row.EmployeeID]; ok && t.Before(date) {
		return nil
	}

	next := roundRate(math.Min(row.DeferralRate+esc.Increment, esc.Cap))
	if next <= row.DeferralRate {
		return nil
	}
	return []engine.Event{{
		EmployeeID:           row.EmployeeID,
		SimulationYear:       in.Year,
		Type:                 engine.EventTypeEnrollmentChange,
		EffectiveDate:        date,
		PreviousDeferralRate: row.DeferralRate,
		DeferralRate:         next,
		Reason:               "auto_escalation",
	}}
}
