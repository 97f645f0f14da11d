package config

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"runtime"
	"time"

	"github.com/workforcesim/workforcesim/pkg/engine"
	"github.com/workforcesim/workforcesim/pkg/stores"
)

// ToEngineConfig converts the file to a simulation configuration and
// validates it.
func (f *File) ToEngineConfig() (*engine.SimulationConfig, error) {
	promotion, err := engine.ParseMonthDay(f.Compensation.PromotionDate)
	if err != nil {
		return nil, engine.NewConfigurationError(fmt.Sprintf("compensation.promotion_date: %v", err))
	}
	merit, err := engine.ParseMonthDay(f.Compensation.MeritDate)
	if err != nil {
		return nil, engine.NewConfigurationError(fmt.Sprintf("compensation.merit_date: %v", err))
	}

	esc := f.Enrollment.Escalation
	escalation := engine.EscalationConfig{
		Enabled:   esc.Enabled,
		Increment: esc.Increment,
		Cap:       esc.Cap,
	}
	if esc.EffectiveDate != "" {
		if escalation.EffectiveDate, err = engine.ParseMonthDay(esc.EffectiveDate); err != nil {
			return nil, engine.NewConfigurationError(fmt.Sprintf("enrollment.escalation.effective_date: %v", err))
		}
	}
	if esc.HireDateCutoff != "" {
		if escalation.HireDateCutoff, err = time.ParseInLocation(time.DateOnly, esc.HireDateCutoff, time.UTC); err != nil {
			return nil, engine.NewConfigurationError(fmt.Sprintf("enrollment.escalation.hire_date_cutoff: %v", err))
		}
	}

	levels := make([]engine.LevelConfig, len(f.Levels))
	for i, l := range f.Levels {
		levels[i] = engine.LevelConfig{
			ID:              l.ID,
			Name:            l.Name,
			MinCompensation: l.MinCompensation,
			MaxCompensation: l.MaxCompensation,
			PromotionRate:   l.PromotionRate,
			MeritRate:       l.MeritRate,
			HireWeight:      l.HireWeight,
		}
	}

	cfg := &engine.SimulationConfig{
		StartYear:                    f.Simulation.StartYear,
		EndYear:                      f.Simulation.EndYear,
		RandomSeed:                   f.Simulation.RandomSeed,
		FailFast:                     f.Simulation.FailFast,
		TargetGrowthRate:             f.Workforce.TargetGrowthRate,
		TotalTerminationRate:         f.Workforce.TotalTerminationRate,
		NewHireTerminationRate:       f.Workforce.NewHireTerminationRate,
		NewHireSalaryAdjustment:      f.Workforce.NewHireSalaryAdjustment,
		NewHireMinAge:                f.Workforce.NewHireMinAge,
		NewHireMaxAge:                f.Workforce.NewHireMaxAge,
		TerminationTenureMultipliers: f.Workforce.TerminationTenureMultipliers,
		Levels:                       levels,
		COLARate:                     f.Compensation.COLARate,
		PromotionIncrease:            f.Compensation.PromotionIncrease,
		PromotionMinTenure:           f.Compensation.PromotionMinTenure,
		PromotionDate:                promotion,
		MeritDate:                    merit,
		Enrollment: engine.EnrollmentConfig{
			AutoEnroll:             f.Enrollment.AutoEnroll,
			DefaultDeferralRate:    f.Enrollment.DefaultDeferralRate,
			WindowDays:             f.Enrollment.WindowDays,
			OptOutRate:             f.Enrollment.OptOutRate,
			VoluntaryRate:          f.Enrollment.VoluntaryRate,
			VoluntaryDeferralRates: f.Enrollment.VoluntaryDeferralRates,
			Escalation:             escalation,
		},
		Tolerances: engine.Tolerances{
			Compensation:    f.Tolerances.Compensation,
			GrowthEmployees: f.Tolerances.GrowthEmployees,
		},
		Workers: f.Workers(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Workers returns the generation worker count: the explicit thread count, or
// one derived from the optimization level.
func (f *File) Workers() int {
	if f.Runtime.Threads > 0 {
		return f.Runtime.Threads
	}
	switch f.Runtime.OptimizationLevel {
	case "low":
		return 1
	case "high":
		return runtime.NumCPU()
	default:
		return max(1, runtime.NumCPU()/2)
	}
}

// BatchSize returns the store insert batch size for the optimization level
// unless storage.batch_size is set.
func (f *File) BatchSize() int {
	if f.Storage.BatchSize > 0 {
		return f.Storage.BatchSize
	}
	switch f.Runtime.OptimizationLevel {
	case "low":
		return stores.DefaultBatchSize / 2
	case "high":
		return stores.DefaultBatchSize * 4
	default:
		return stores.DefaultBatchSize
	}
}

// Digest identifies the simulation inputs. Runtime and storage settings do
// not take part, so the same scenario run elsewhere has the same digest.
func (f *File) Digest() string {
	scenario := struct {
		Simulation   SimulationSection   `json:"simulation"`
		Workforce    WorkforceSection    `json:"workforce"`
		Levels       []LevelSection      `json:"levels"`
		Compensation CompensationSection `json:"compensation"`
		Enrollment   EnrollmentSection   `json:"enrollment"`
		Tolerances   TolerancesSection   `json:"tolerances"`
		Census       CensusSection       `json:"census"`
		IRS          IRSSection          `json:"irs"`
	}{f.Simulation, f.Workforce, f.Levels, f.Compensation, f.Enrollment, f.Tolerances, f.Census, f.IRS}

	// Map keys are sorted by encoding/json, so the encoding is stable.
	data, _ := json.Marshal(scenario)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}
