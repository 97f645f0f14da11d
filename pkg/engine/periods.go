package engine

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/workforcesim/workforcesim/pkg/irs"
	"github.com/workforcesim/workforcesim/pkg/tenure"
)

// EmployeeStart is the state an employee enters the simulation year with.
type EmployeeStart struct {
	EmployeeID     string
	BirthDate      time.Time
	HireDate       time.Time
	LevelID        int
	Compensation   float64
	Enrolled       bool
	EnrollmentDate *time.Time
	DeferralRate   float64

	// NewHire is set when the employee is hired during the year.
	NewHire bool
}

// StartFromRow carries a prior year-end row into the next year.
func StartFromRow(row *SnapshotRow) EmployeeStart {
	return EmployeeStart{
		EmployeeID:     row.EmployeeID,
		BirthDate:      row.BirthDate,
		HireDate:       row.HireDate,
		LevelID:        row.LevelID,
		Compensation:   row.CurrentCompensation,
		Enrolled:       row.Enrolled,
		EnrollmentDate: row.EnrollmentDate,
		DeferralRate:   row.DeferralRate,
	}
}

// StartFromHire derives the starting state of a new hire from its hire event.
func StartFromHire(e *Event) EmployeeStart {
	s := EmployeeStart{
		EmployeeID:   e.EmployeeID,
		HireDate:     Day(e.EffectiveDate),
		LevelID:      e.LevelID,
		Compensation: e.Compensation,
		NewHire:      true,
	}
	if e.BirthDate != nil {
		s.BirthDate = *e.BirthDate
	}
	return s
}

// Period is a span of consecutive days with constant compensation and deferral
// rates. Start and End are both included.
type Period struct {
	Start        time.Time
	End          time.Time
	Rate         float64
	DeferralRate float64
}

// Days returns the number of days in the period.
func (p Period) Days() int {
	return DaysInclusive(p.Start, p.End)
}

// Timeline is an employee's year reconstructed from its starting state and
// ordered events.
type Timeline struct {
	Year  int
	Start EmployeeStart

	// From and Through bound the employed part of the year.
	From    time.Time
	Through time.Time

	Periods []Period

	LevelID         int
	FinalRate       float64
	Terminated      bool
	TerminationDate *time.Time
	Enrolled        bool
	EnrollmentDate  *time.Time
	DeferralRate    float64

	// Contribution is the employee's contribution event, if any.
	Contribution *Event
}

// BuildTimeline splits the employed part of the year into sequential,
// non-overlapping periods whose boundaries are the effective dates of rate
// changes. events must belong to start.EmployeeID and be in canonical order.
func BuildTimeline(year int, start EmployeeStart, events []Event) (*Timeline, error) {
	tl := &Timeline{
		Year:           year,
		Start:          start,
		From:           YearStart(year),
		Through:        YearEnd(year),
		LevelID:        start.LevelID,
		FinalRate:      start.Compensation,
		Enrolled:       start.Enrolled,
		EnrollmentDate: start.EnrollmentDate,
	}
	if start.Enrolled {
		tl.DeferralRate = start.DeferralRate
	}
	if start.NewHire {
		tl.From = start.HireDate
	}

	cursor := tl.From
	for i := range events {
		e := &events[i]
		date := Day(e.EffectiveDate)

		if e.Type == EventTypeHire {
			continue
		}
		if date.Before(tl.From) {
			return nil, NewEventConsistencyError(year, start.EmployeeID,
				fmt.Sprintf("%s event dated %s precedes employment start %s",
					e.Type, date.Format(time.DateOnly), tl.From.Format(time.DateOnly)), nil, e)
		}

		switch e.Type {
		case EventTypePromotion, EventTypeRaise:
			if date.After(cursor) {
				tl.Periods = append(tl.Periods, Period{Start: cursor, End: date.AddDate(0, 0, -1), Rate: tl.FinalRate, DeferralRate: tl.DeferralRate})
				cursor = date
			}
			tl.FinalRate = e.Compensation
			if e.LevelID != 0 {
				tl.LevelID = e.LevelID
			}
		case EventTypeEnrollment, EventTypeEnrollmentChange:
			if date.After(cursor) {
				tl.Periods = append(tl.Periods, Period{Start: cursor, End: date.AddDate(0, 0, -1), Rate: tl.FinalRate, DeferralRate: tl.DeferralRate})
				cursor = date
			}
			tl.DeferralRate = e.DeferralRate
			if e.Type == EventTypeEnrollment {
				tl.Enrolled = true
				d := date
				tl.EnrollmentDate = &d
			}
		case EventTypeContribution:
			tl.Contribution = e
		case EventTypeTermination:
			d := date
			tl.Terminated = true
			tl.TerminationDate = &d
			tl.Through = date
		case EventTypeHire, EventTypeUnknown:
		}
	}

	if !cursor.After(tl.Through) {
		tl.Periods = append(tl.Periods, Period{Start: cursor, End: tl.Through, Rate: tl.FinalRate, DeferralRate: tl.DeferralRate})
	}

	if err := AssertSequential(tl.Periods, tl.From, tl.Through); err != nil {
		return nil, NewEventConsistencyError(year, start.EmployeeID, err.Error(), nil, nil)
	}
	return tl, nil
}

// AssertSequential checks that periods tile [from, through] exactly: each
// period is non-empty and starts the day after its predecessor ends.
func AssertSequential(periods []Period, from, through time.Time) error {
	if len(periods) == 0 {
		return fmt.Errorf("no compensation periods between %s and %s",
			from.Format(time.DateOnly), through.Format(time.DateOnly))
	}
	if !periods[0].Start.Equal(from) {
		return fmt.Errorf("first period starts %s, expected %s",
			periods[0].Start.Format(time.DateOnly), from.Format(time.DateOnly))
	}
	for i, p := range periods {
		if p.End.Before(p.Start) {
			return fmt.Errorf("period %d ends %s before it starts %s",
				i, p.End.Format(time.DateOnly), p.Start.Format(time.DateOnly))
		}
		if i > 0 && !p.Start.Equal(periods[i-1].End.AddDate(0, 0, 1)) {
			return fmt.Errorf("period %d starting %s overlaps or leaves a gap after %s",
				i, p.Start.Format(time.DateOnly), periods[i-1].End.Format(time.DateOnly))
		}
	}
	if last := periods[len(periods)-1]; !last.End.Equal(through) {
		return fmt.Errorf("last period ends %s, expected %s",
			last.End.Format(time.DateOnly), through.Format(time.DateOnly))
	}
	return nil
}

// ProratedCompensation returns Σ (period_days / days_in_year) × period_rate,
// rounded to cents.
func (tl *Timeline) ProratedCompensation() float64 {
	diy := decimal.NewFromInt(int64(DaysInYear(tl.Year)))
	total := decimal.Zero
	for _, p := range tl.Periods {
		share := decimal.NewFromInt(int64(p.Days())).Div(diy)
		total = total.Add(share.Mul(decimal.NewFromFloat(p.Rate)))
	}
	f, _ := total.Round(2).Float64()
	return f
}

// RequestedContribution returns the deferral owed across the year, weighting
// each period's compensation by its deferral rate.
func (tl *Timeline) RequestedContribution() decimal.Decimal {
	diy := decimal.NewFromInt(int64(DaysInYear(tl.Year)))
	total := decimal.Zero
	for _, p := range tl.Periods {
		if p.DeferralRate == 0 {
			continue
		}
		share := decimal.NewFromInt(int64(p.Days())).Div(diy)
		total = total.Add(share.Mul(decimal.NewFromFloat(p.Rate)).Mul(decimal.NewFromFloat(p.DeferralRate)))
	}
	return total
}

// Participated reports whether the employee was enrolled at any point in the year.
func (tl *Timeline) Participated() bool {
	for _, p := range tl.Periods {
		if p.DeferralRate > 0 {
			return true
		}
	}
	return false
}

// AsOf returns the reference date for age and tenure: the termination date for
// terminated employees, otherwise December 31.
func (tl *Timeline) AsOf() time.Time {
	if tl.TerminationDate != nil {
		return *tl.TerminationDate
	}
	return YearEnd(tl.Year)
}

// Age returns the employee's age at AsOf.
func (tl *Timeline) Age() int {
	return tenure.Age(tl.Start.BirthDate, tl.AsOf())
}

// ContributionRecord caps the requested contribution at the limit for the
// employee's age in entry's plan year.
func (tl *Timeline) ContributionRecord(entry irs.Entry) irs.ContributionRecord {
	rec := irs.Cap(tl.Start.EmployeeID, entry, tl.Age(), tl.RequestedContribution())
	rec.PlanYear = tl.Year
	rec.Compensation = decimal.NewFromFloat(tl.ProratedCompensation())
	rec.DeferralRate = decimal.NewFromFloat(tl.DeferralRate)
	return rec
}
