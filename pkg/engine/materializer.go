package engine

import (
	"fmt"
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/workforcesim/workforcesim/pkg/irs"
	"github.com/workforcesim/workforcesim/pkg/tenure"
)

// Materializer applies a year's sequenced events to the prior snapshot. It runs
// single-threaded over the complete event set.
type Materializer struct {
	year   int
	limits *irs.Table
}

// NewMaterializer returns a materializer for year using the given limit table.
func NewMaterializer(year int, limits *irs.Table) *Materializer {
	return &Materializer{year: year, limits: limits}
}

// Materialize builds the year-end snapshot. events must come from
// Sequencer.Sequence. No partial snapshot is returned on error.
func (m *Materializer) Materialize(prior *Snapshot, events []Event) (*Snapshot, error) {
	byEmployee := make(map[string][]Event)
	for _, g := range GroupByEmployee(events) {
		byEmployee[g.EmployeeID] = g.Events
	}

	starts := make(map[string]EmployeeStart)
	if prior != nil {
		for i := range prior.Rows {
			if prior.Rows[i].IsActive() {
				starts[prior.Rows[i].EmployeeID] = StartFromRow(&prior.Rows[i])
			}
		}
	}

	ids := make([]string, 0, len(starts)+len(byEmployee))
	for id := range starts {
		ids = append(ids, id)
	}
	for id, evs := range byEmployee {
		if _, ok := starts[id]; ok {
			continue
		}
		first := &evs[0]
		if first.Type != EventTypeHire {
			return nil, NewOrphanedEventError(m.year, first)
		}
		starts[id] = StartFromHire(first)
		ids = append(ids, id)
	}
	sort.Strings(ids)

	entry := m.limits.Get(m.year)
	rows := make([]SnapshotRow, 0, len(ids))
	var contributions []irs.ContributionRecord

	for _, id := range ids {
		tl, err := BuildTimeline(m.year, starts[id], byEmployee[id])
		if err != nil {
			return nil, err
		}

		row := m.row(tl)

		if tl.Participated() {
			rec := tl.ContributionRecord(entry)
			if rec.ActualContribution.GreaterThan(rec.ApplicableLimit) {
				return nil, NewIRSComplianceError(m.year, id, rec.ActualContribution.String(), rec.ApplicableLimit.String())
			}
			if err := m.crossCheck(tl, rec.ActualContribution); err != nil {
				return nil, err
			}
			contributions = append(contributions, rec)
		} else if err := m.crossCheck(tl, decimal.Zero); err != nil {
			return nil, err
		}

		rows = append(rows, row)
	}

	return NewSnapshot(m.year, rows, contributions), nil
}

func (m *Materializer) row(tl *Timeline) SnapshotRow {
	asOf := tl.AsOf()
	age := tenure.Age(tl.Start.BirthDate, asOf)
	years := tenure.Tenure(tl.Start.HireDate, asOf)

	row := SnapshotRow{
		EmployeeID:                     tl.Start.EmployeeID,
		SimulationYear:                 m.year,
		BirthDate:                      tl.Start.BirthDate,
		HireDate:                       tl.Start.HireDate,
		TerminationDate:                tl.TerminationDate,
		Status:                         StatusActive,
		DetailedStatus:                 detailedStatusFor(tl.Start.NewHire, tl.Terminated),
		LevelID:                        tl.LevelID,
		StartingCompensation:           roundCents(tl.Start.Compensation),
		CurrentCompensation:            roundCents(tl.FinalRate),
		FullYearEquivalentCompensation: roundCents(tl.FinalRate),
		ProratedAnnualCompensation:     tl.ProratedCompensation(),
		CurrentAge:                     age,
		CurrentTenure:                  years,
		AgeBand:                        tenure.AgeBand(age),
		TenureBand:                     tenure.TenureBand(years),
		Enrolled:                       tl.Enrolled,
		EnrollmentDate:                 tl.EnrollmentDate,
		DeferralRate:                   tl.DeferralRate,
	}
	if tl.Terminated {
		row.Status = StatusTerminated
	}
	return row
}

// crossCheck compares a generated contribution event with the materialized amount.
func (m *Materializer) crossCheck(tl *Timeline, actual decimal.Decimal) error {
	if tl.Contribution == nil {
		return nil
	}
	want, _ := actual.Float64()
	if math.Abs(tl.Contribution.ContributionAmount-want) > 0.01 {
		return NewEventConsistencyError(m.year, tl.Start.EmployeeID,
			fmt.Sprintf("contribution event amount %.2f differs from materialized contribution %.2f",
				tl.Contribution.ContributionAmount, want), nil, tl.Contribution)
	}
	return nil
}
