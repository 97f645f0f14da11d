package engine

import (
	"context"
	"testing"

	"github.com/workforcesim/workforcesim/pkg/irs"
)

func testConfig() *SimulationConfig {
	return &SimulationConfig{
		StartYear:               2025,
		EndYear:                 2027,
		RandomSeed:              42,
		TargetGrowthRate:        0.03,
		TotalTerminationRate:    0.12,
		NewHireTerminationRate:  0.25,
		NewHireSalaryAdjustment: 1.0,
		NewHireMinAge:           22,
		NewHireMaxAge:           45,
		Levels: []LevelConfig{
			{ID: 1, Name: "Staff", MinCompensation: 50000, MaxCompensation: 70000, PromotionRate: 0.1, MeritRate: 0.03, HireWeight: 1},
			{ID: 2, Name: "Senior", MinCompensation: 65000, MaxCompensation: 95000, PromotionRate: 0.05, MeritRate: 0.03},
		},
		COLARate:           0.01,
		PromotionIncrease:  0.15,
		PromotionMinTenure: 1,
		PromotionDate:      MustMonthDay("02-01"),
		MeritDate:          MustMonthDay("07-15"),
		Enrollment: EnrollmentConfig{
			AutoEnroll:          true,
			DefaultDeferralRate: 0.06,
			WindowDays:          30,
		},
		Tolerances: DefaultTolerances(),
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

func activeRow(id string, year int, comp float64) SnapshotRow {
	return SnapshotRow{
		EmployeeID:                     id,
		SimulationYear:                 year,
		BirthDate:                      Date(1980, 3, 10),
		HireDate:                       Date(2015, 4, 1),
		Status:                         StatusActive,
		DetailedStatus:                 DetailedContinuousActive,
		LevelID:                        1,
		StartingCompensation:           comp,
		CurrentCompensation:            comp,
		FullYearEquivalentCompensation: comp,
		ProratedAnnualCompensation:     comp,
	}
}

// fakeStage emits a fixed set of events and records what it saw upstream.
type fakeStage struct {
	name     string
	requires []string
	emit     func(in *StageInput) []Event
	err      error
	seen     map[string]int
}

func (s *fakeStage) Name() string       { return s.name }
func (s *fakeStage) Requires() []string { return s.requires }

func (s *fakeStage) Generate(_ context.Context, in *StageInput) ([]Event, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.seen = make(map[string]int)
	for _, dep := range s.requires {
		s.seen[dep] = len(in.Upstream(dep))
	}
	if s.emit == nil {
		return nil, nil
	}
	return s.emit(in), nil
}

type fakePolicies struct {
	checks []CheckResult
	err    error
}

func (p *fakePolicies) EvaluateTransition(_ context.Context, _ *TransitionResult) ([]CheckResult, error) {
	return p.checks, p.err
}
