// Package census supplies the baseline workforce of a simulation: a CSV
// census file or a seeded synthetic population.
package census

import (
	"time"

	"github.com/workforcesim/workforcesim/pkg/engine"
	"github.com/workforcesim/workforcesim/pkg/tenure"
)

// Record is one employee of a census.
type Record struct {
	EmployeeID   string
	BirthDate    time.Time
	HireDate     time.Time
	LevelID      int
	Compensation float64
	DeferralRate float64
}

// Row converts the record to an active year-end snapshot row for year.
func (r Record) Row(year int) engine.SnapshotRow {
	asOf := engine.YearEnd(year)
	age := tenure.Age(r.BirthDate, asOf)
	years := tenure.Tenure(r.HireDate, asOf)

	return engine.SnapshotRow{
		EmployeeID:                     r.EmployeeID,
		SimulationYear:                 year,
		BirthDate:                      r.BirthDate,
		HireDate:                       r.HireDate,
		Status:                         engine.StatusActive,
		DetailedStatus:                 engine.DetailedContinuousActive,
		LevelID:                        r.LevelID,
		StartingCompensation:           r.Compensation,
		CurrentCompensation:            r.Compensation,
		FullYearEquivalentCompensation: r.Compensation,
		ProratedAnnualCompensation:     r.Compensation,
		CurrentAge:                     age,
		CurrentTenure:                  years,
		AgeBand:                        tenure.AgeBand(age),
		TenureBand:                     tenure.TenureBand(years),
		Enrolled:                       r.DeferralRate > 0,
		DeferralRate:                   r.DeferralRate,
	}
}

// Snapshot builds the baseline snapshot of year from records.
func Snapshot(year int, records []Record) *engine.Snapshot {
	rows := make([]engine.SnapshotRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, r.Row(year))
	}
	return engine.NewSnapshot(year, rows, nil)
}
