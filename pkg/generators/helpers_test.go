package generators

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/workforcesim/workforcesim/pkg/engine"
	"github.com/workforcesim/workforcesim/pkg/irs"
	"github.com/workforcesim/workforcesim/pkg/tenure"
)

func testConfig() *engine.SimulationConfig {
	return &engine.SimulationConfig{
		StartYear:               2025,
		EndYear:                 2027,
		RandomSeed:              20250101,
		TargetGrowthRate:        0.03,
		TotalTerminationRate:    0.12,
		NewHireTerminationRate:  0.25,
		NewHireSalaryAdjustment: 1.1,
		NewHireMinAge:           22,
		NewHireMaxAge:           45,
		TerminationTenureMultipliers: map[string]float64{
			"<2":  1.5,
			"20+": 0.5,
		},
		Levels: []engine.LevelConfig{
			{ID: 1, Name: "Associate", MinCompensation: 45000, MaxCompensation: 65000, PromotionRate: 0.12, MeritRate: 0.035, HireWeight: 0.6},
			{ID: 2, Name: "Professional", MinCompensation: 60000, MaxCompensation: 90000, PromotionRate: 0.08, MeritRate: 0.03, HireWeight: 0.3},
			{ID: 3, Name: "Manager", MinCompensation: 85000, MaxCompensation: 140000, PromotionRate: 0.05, MeritRate: 0.03, HireWeight: 0.1},
		},
		COLARate:           0.01,
		PromotionIncrease:  0.12,
		PromotionMinTenure: 1,
		PromotionDate:      engine.MustMonthDay("02-01"),
		MeritDate:          engine.MustMonthDay("07-15"),
		Enrollment: engine.EnrollmentConfig{
			AutoEnroll:             true,
			DefaultDeferralRate:    0.06,
			WindowDays:             30,
			OptOutRate:             0.1,
			VoluntaryRate:          0.15,
			VoluntaryDeferralRates: []float64{0.03, 0.06, 0.10},
			Escalation: engine.EscalationConfig{
				Enabled:        true,
				Increment:      0.01,
				Cap:            0.10,
				HireDateCutoff: engine.Date(2010, 1, 1),
				EffectiveDate:  engine.MustMonthDay("01-01"),
			},
		},
		Tolerances: engine.DefaultTolerances(),
		Workers:    4,
	}
}

func mustLimits(t *testing.T) *irs.Table {
	t.Helper()
	table, err := irs.Default()
	if err != nil {
		t.Fatalf("failed to load IRS limits: %v", err)
	}
	return table
}

// workforce returns n active employees at the end of year.
func workforce(n, year int) *engine.Snapshot {
	rows := make([]engine.SnapshotRow, 0, n)
	asOf := engine.YearEnd(year)
	for i := 0; i < n; i++ {
		hire := engine.Date(year-1-i%25, time.Month(1+i%12), 1+i%28)
		birth := engine.Date(year-25-i%35, time.Month(1+(i*7)%12), 1+(i*3)%28)
		level := 1 + i%3
		comp := float64(45000 + (i%40)*1500 + (level-1)*20000)
		years := tenure.Tenure(hire, asOf)
		age := tenure.Age(birth, asOf)

		row := engine.SnapshotRow{
			EmployeeID:                     fmt.Sprintf("E%05d", i),
			SimulationYear:                 year,
			BirthDate:                      birth,
			HireDate:                       hire,
			Status:                         engine.StatusActive,
			DetailedStatus:                 engine.DetailedContinuousActive,
			LevelID:                        level,
			StartingCompensation:           comp,
			CurrentCompensation:            comp,
			FullYearEquivalentCompensation: comp,
			ProratedAnnualCompensation:     comp,
			CurrentAge:                     age,
			CurrentTenure:                  years,
			AgeBand:                        tenure.AgeBand(age),
			TenureBand:                     tenure.TenureBand(years),
		}
		if i%2 == 0 {
			row.Enrolled = true
			row.DeferralRate = 0.04 + float64(i%5)*0.01
		}
		rows = append(rows, row)
	}
	return engine.NewSnapshot(year, rows, nil)
}

// runYear runs the default pipeline, sequences and materializes one year.
func runYear(t *testing.T, cfg *engine.SimulationConfig, prior *engine.Snapshot, year int) ([]engine.Event, *engine.Snapshot) {
	t.Helper()
	limits := mustLimits(t)

	p, err := NewPipeline(engine.StageHooks{})
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}
	events, err := p.Run(context.Background(), year, cfg, limits, prior)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	seq, err := engine.NewSequencer(year, prior).Sequence(events)
	if err != nil {
		t.Fatalf("Sequence() error = %v", err)
	}
	engine.AssignEventIDs(cfg.RandomSeed, seq)

	snap, err := engine.NewMaterializer(year, limits).Materialize(prior, seq)
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	return seq, snap
}
