package engine

import (
	"fmt"
	"time"
)

// LevelConfig holds the per-level compensation band and event rates.
type LevelConfig struct {
	ID              int
	Name            string
	MinCompensation float64
	MaxCompensation float64

	// PromotionRate is the annual probability of promotion to the next level.
	PromotionRate float64

	// MeritRate is the annual merit increase, applied on top of COLA.
	MeritRate float64

	// HireWeight is the relative share of new hires placed at this level.
	HireWeight float64
}

// EscalationConfig controls annual automatic deferral increases.
type EscalationConfig struct {
	Enabled   bool
	Increment float64
	Cap       float64

	// HireDateCutoff restricts escalation to employees hired on or after it.
	// The zero value makes everyone eligible.
	HireDateCutoff time.Time

	// EffectiveDate is when the increase takes effect each year.
	EffectiveDate MonthDay
}

// EnrollmentConfig controls plan enrollment behaviour.
type EnrollmentConfig struct {
	AutoEnroll          bool
	DefaultDeferralRate float64

	// WindowDays is the delay between hire and automatic enrollment.
	WindowDays int

	// OptOutRate is the probability a new hire declines automatic enrollment.
	OptOutRate float64

	// VoluntaryRate is the annual probability a non-participant enrolls.
	VoluntaryRate float64

	// VoluntaryDeferralRates are the rates a voluntary enrollee picks from.
	VoluntaryDeferralRates []float64

	Escalation EscalationConfig
}

// Tolerances bound the year transition checks.
type Tolerances struct {
	// Compensation is the absolute compounding tolerance in currency units.
	Compensation float64

	// GrowthEmployees is the allowed headcount deviation from target.
	GrowthEmployees int
}

// SimulationConfig is the validated input of a simulation run.
type SimulationConfig struct {
	StartYear  int
	EndYear    int
	RandomSeed int64
	FailFast   bool

	TargetGrowthRate       float64
	TotalTerminationRate   float64
	NewHireTerminationRate float64

	// NewHireSalaryAdjustment multiplies the sampled level compensation for new hires.
	NewHireSalaryAdjustment float64
	NewHireMinAge           int
	NewHireMaxAge           int

	// TerminationTenureMultipliers weight experienced-termination selection by tenure band.
	TerminationTenureMultipliers map[string]float64

	Levels []LevelConfig

	COLARate           float64
	PromotionIncrease  float64
	PromotionMinTenure int
	PromotionDate      MonthDay
	MeritDate          MonthDay

	Enrollment EnrollmentConfig
	Tolerances Tolerances

	// Workers bounds per-employee generation parallelism. Zero means one.
	Workers int
}

// DefaultTolerances returns the standard transition tolerances.
func DefaultTolerances() Tolerances {
	return Tolerances{Compensation: 0.01, GrowthEmployees: 2}
}

// Years returns the simulated years in order.
func (c *SimulationConfig) Years() []int {
	years := make([]int, 0, c.EndYear-c.StartYear+1)
	for y := c.StartYear; y <= c.EndYear; y++ {
		years = append(years, y)
	}
	return years
}

// Level returns the configuration of level id.
func (c *SimulationConfig) Level(id int) (LevelConfig, bool) {
	for _, l := range c.Levels {
		if l.ID == id {
			return l, true
		}
	}
	return LevelConfig{}, false
}

// MaxLevel returns the highest configured level ID.
func (c *SimulationConfig) MaxLevel() int {
	maxID := 0
	for _, l := range c.Levels {
		if l.ID > maxID {
			maxID = l.ID
		}
	}
	return maxID
}

// Validate checks every parameter range and returns a ConfigurationError on
// the first violation.
func (c *SimulationConfig) Validate() error {
	if c.StartYear <= 0 || c.EndYear < c.StartYear {
		return NewConfigurationError(fmt.Sprintf("invalid year range %d-%d", c.StartYear, c.EndYear))
	}

	rates := []struct {
		name  string
		value float64
		upper float64
		open  bool
	}{
		{"target_growth_rate", c.TargetGrowthRate, 1, false},
		{"total_termination_rate", c.TotalTerminationRate, 1, true},
		{"new_hire_termination_rate", c.NewHireTerminationRate, 1, true},
		{"cola_rate", c.COLARate, 1, false},
		{"promotion_increase", c.PromotionIncrease, 1, false},
		{"enrollment.default_deferral_rate", c.Enrollment.DefaultDeferralRate, 1, false},
		{"enrollment.opt_out_rate", c.Enrollment.OptOutRate, 1, false},
		{"enrollment.voluntary_rate", c.Enrollment.VoluntaryRate, 1, false},
		{"enrollment.escalation.increment", c.Enrollment.Escalation.Increment, 1, false},
		{"enrollment.escalation.cap", c.Enrollment.Escalation.Cap, 1, false},
	}
	for _, r := range rates {
		if err := checkRate(r.name, r.value, r.upper, r.open); err != nil {
			return err
		}
	}

	if c.NewHireSalaryAdjustment <= 0 {
		return NewConfigurationError(fmt.Sprintf("new_hire_salary_adjustment must be positive, got %g", c.NewHireSalaryAdjustment)).
			WithDetail("field", "new_hire_salary_adjustment")
	}
	if c.NewHireMinAge <= 0 || c.NewHireMaxAge < c.NewHireMinAge {
		return NewConfigurationError(fmt.Sprintf("invalid new hire age range %d-%d", c.NewHireMinAge, c.NewHireMaxAge))
	}
	if c.PromotionMinTenure < 0 {
		return NewConfigurationError("promotion_min_tenure must not be negative")
	}
	if c.PromotionDate.IsZero() || c.MeritDate.IsZero() {
		return NewConfigurationError("promotion_date and merit_date are required")
	}
	if !c.PromotionDate.Before(c.MeritDate) {
		return NewConfigurationError(fmt.Sprintf("promotion_date %s must precede merit_date %s", c.PromotionDate, c.MeritDate))
	}

	for band, m := range c.TerminationTenureMultipliers {
		if m < 0 {
			return NewConfigurationError(fmt.Sprintf("termination multiplier for band %q must not be negative", band))
		}
	}

	if err := c.validateLevels(); err != nil {
		return err
	}

	for _, r := range c.Enrollment.VoluntaryDeferralRates {
		if err := checkRate("enrollment.voluntary_deferral_rates", r, 1, false); err != nil {
			return err
		}
	}
	if c.Enrollment.VoluntaryRate > 0 && len(c.Enrollment.VoluntaryDeferralRates) == 0 {
		return NewConfigurationError("enrollment.voluntary_deferral_rates is required when voluntary_rate is set")
	}
	if c.Enrollment.WindowDays < 0 {
		return NewConfigurationError("enrollment.window_days must not be negative")
	}
	esc := c.Enrollment.Escalation
	if esc.Enabled {
		if esc.EffectiveDate.IsZero() {
			return NewConfigurationError("enrollment.escalation.effective_date is required")
		}
		if esc.Cap < c.Enrollment.DefaultDeferralRate {
			return NewConfigurationError(fmt.Sprintf("escalation cap %g is below the default deferral rate %g",
				esc.Cap, c.Enrollment.DefaultDeferralRate))
		}
	}

	if c.Tolerances.Compensation < 0 || c.Tolerances.GrowthEmployees < 0 {
		return NewConfigurationError("tolerances must not be negative")
	}
	if c.Workers < 0 {
		return NewConfigurationError("workers must not be negative")
	}

	return nil
}

func (c *SimulationConfig) validateLevels() error {
	if len(c.Levels) == 0 {
		return NewConfigurationError("at least one job level is required")
	}

	seen := make(map[int]bool, len(c.Levels))
	totalWeight := 0.0
	for _, l := range c.Levels {
		if l.ID <= 0 {
			return NewConfigurationError(fmt.Sprintf("level id must be positive, got %d", l.ID))
		}
		if seen[l.ID] {
			return NewConfigurationError(fmt.Sprintf("duplicate level id %d", l.ID))
		}
		seen[l.ID] = true

		if l.MinCompensation <= 0 || l.MaxCompensation < l.MinCompensation {
			return NewConfigurationError(fmt.Sprintf("level %d has invalid compensation band %g-%g",
				l.ID, l.MinCompensation, l.MaxCompensation))
		}
		if err := checkRate(fmt.Sprintf("levels[%d].promotion_rate", l.ID), l.PromotionRate, 1, false); err != nil {
			return err
		}
		if err := checkRate(fmt.Sprintf("levels[%d].merit_rate", l.ID), l.MeritRate, 1, false); err != nil {
			return err
		}
		if l.HireWeight < 0 {
			return NewConfigurationError(fmt.Sprintf("level %d hire weight must not be negative", l.ID))
		}
		totalWeight += l.HireWeight
	}
	if totalWeight <= 0 {
		return NewConfigurationError("at least one level needs a positive hire weight")
	}
	return nil
}

// checkRate enforces value in [0, upper], or [0, upper) when open is set.
func checkRate(name string, value, upper float64, open bool) error {
	if value < 0 {
		return NewConfigurationError(fmt.Sprintf("%s must not be negative, got %g", name, value)).
			WithDetail("field", name)
	}
	if open && value >= upper {
		return NewConfigurationError(fmt.Sprintf("%s must be below %g, got %g", name, upper, value)).
			WithDetail("field", name)
	}
	if value > upper {
		return NewConfigurationError(fmt.Sprintf("%s must not exceed %g, got %g", name, upper, value)).
			WithDetail("field", name)
	}
	return nil
}
