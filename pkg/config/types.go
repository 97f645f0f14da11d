package config

import (
	"fmt"
	"strings"
)

// File is the simulation configuration file.
type File struct {
	Simulation   SimulationSection   `yaml:"simulation" json:"simulation"`
	Workforce    WorkforceSection    `yaml:"workforce" json:"workforce"`
	Levels       []LevelSection      `yaml:"levels" json:"levels" validate:"required,min=1,dive"`
	Compensation CompensationSection `yaml:"compensation" json:"compensation"`
	Enrollment   EnrollmentSection   `yaml:"enrollment" json:"enrollment"`
	Tolerances   TolerancesSection   `yaml:"tolerances" json:"tolerances"`
	Census       CensusSection       `yaml:"census" json:"census"`
	Storage      StorageSection      `yaml:"storage" json:"storage"`
	Policy       PolicySection       `yaml:"policy" json:"policy"`
	IRS          IRSSection          `yaml:"irs" json:"irs"`
	Runtime      RuntimeSection      `yaml:"runtime" json:"runtime"`
}

// SimulationSection selects the simulated years.
type SimulationSection struct {
	StartYear  int   `yaml:"start_year" json:"start_year" validate:"required,gte=1900,lte=2200"`
	EndYear    int   `yaml:"end_year" json:"end_year" validate:"required,gtefield=StartYear,lte=2200"`
	RandomSeed int64 `yaml:"random_seed" json:"random_seed"`
	FailFast   bool  `yaml:"fail_fast" json:"fail_fast"`
}

// WorkforceSection holds the growth and turnover assumptions.
type WorkforceSection struct {
	TargetGrowthRate        float64 `yaml:"target_growth_rate" json:"target_growth_rate" validate:"gte=0,lte=1"`
	TotalTerminationRate    float64 `yaml:"total_termination_rate" json:"total_termination_rate" validate:"gte=0,lt=1"`
	NewHireTerminationRate  float64 `yaml:"new_hire_termination_rate" json:"new_hire_termination_rate" validate:"gte=0,lt=1"`
	NewHireSalaryAdjustment float64 `yaml:"new_hire_salary_adjustment" json:"new_hire_salary_adjustment" validate:"gt=0,lte=5"`
	NewHireMinAge           int     `yaml:"new_hire_min_age" json:"new_hire_min_age" validate:"gte=14"`
	NewHireMaxAge           int     `yaml:"new_hire_max_age" json:"new_hire_max_age" validate:"gtefield=NewHireMinAge,lte=100"`

	// TerminationTenureMultipliers weight termination selection by tenure band label.
	TerminationTenureMultipliers map[string]float64 `yaml:"termination_tenure_multipliers,omitempty" json:"termination_tenure_multipliers,omitempty" validate:"dive,keys,tenureband,endkeys,gte=0"`
}

// LevelSection is one job level.
type LevelSection struct {
	ID              int     `yaml:"id" json:"id" validate:"required,gt=0"`
	Name            string  `yaml:"name" json:"name" validate:"required"`
	MinCompensation float64 `yaml:"min_compensation" json:"min_compensation" validate:"gt=0"`
	MaxCompensation float64 `yaml:"max_compensation" json:"max_compensation" validate:"gtefield=MinCompensation"`
	PromotionRate   float64 `yaml:"promotion_rate" json:"promotion_rate" validate:"gte=0,lte=1"`
	MeritRate       float64 `yaml:"merit_rate" json:"merit_rate" validate:"gte=0,lte=1"`
	HireWeight      float64 `yaml:"hire_weight" json:"hire_weight" validate:"gte=0"`
}

// CompensationSection holds the annual compensation events.
type CompensationSection struct {
	COLARate           float64 `yaml:"cola_rate" json:"cola_rate" validate:"gte=0,lte=1"`
	PromotionIncrease  float64 `yaml:"promotion_increase" json:"promotion_increase" validate:"gte=0,lte=1"`
	PromotionMinTenure int     `yaml:"promotion_min_tenure" json:"promotion_min_tenure" validate:"gte=0"`

	// PromotionDate and MeritDate are MM-DD.
	PromotionDate string `yaml:"promotion_date" json:"promotion_date" validate:"required,monthday"`
	MeritDate     string `yaml:"merit_date" json:"merit_date" validate:"required,monthday"`
}

// EnrollmentSection holds the retirement plan participation model.
type EnrollmentSection struct {
	AutoEnroll             bool                `yaml:"auto_enroll" json:"auto_enroll"`
	DefaultDeferralRate    float64             `yaml:"default_deferral_rate" json:"default_deferral_rate" validate:"gte=0,lte=1"`
	WindowDays             int                 `yaml:"window_days" json:"window_days" validate:"gte=0,lte=365"`
	OptOutRate             float64             `yaml:"opt_out_rate" json:"opt_out_rate" validate:"gte=0,lte=1"`
	VoluntaryRate          float64             `yaml:"voluntary_rate" json:"voluntary_rate" validate:"gte=0,lte=1"`
	VoluntaryDeferralRates []float64           `yaml:"voluntary_deferral_rates,omitempty" json:"voluntary_deferral_rates,omitempty" validate:"dive,gte=0,lte=1"`
	Escalation             EscalationSection   `yaml:"escalation" json:"escalation"`
}

// EscalationSection holds the automatic deferral increase.
type EscalationSection struct {
	Enabled   bool    `yaml:"enabled" json:"enabled"`
	Increment float64 `yaml:"increment" json:"increment" validate:"gte=0,lte=1"`
	Cap       float64 `yaml:"cap" json:"cap" validate:"gte=0,lte=1"`

	// HireDateCutoff is YYYY-MM-DD; employees hired on or after it escalate.
	HireDateCutoff string `yaml:"hire_date_cutoff,omitempty" json:"hire_date_cutoff,omitempty" validate:"omitempty,datetime=2006-01-02"`
	EffectiveDate  string `yaml:"effective_date" json:"effective_date" validate:"omitempty,monthday"`
}

// TolerancesSection bounds the year transition checks.
type TolerancesSection struct {
	Compensation    float64 `yaml:"compensation" json:"compensation" validate:"gte=0"`
	GrowthEmployees int     `yaml:"growth_employees" json:"growth_employees" validate:"gte=0"`
}

// CensusSection selects the baseline workforce.
type CensusSection struct {
	// Path is a CSV census. When empty a synthetic census of SyntheticSize is generated.
	Path          string `yaml:"path,omitempty" json:"path,omitempty" validate:"required_without=SyntheticSize"`
	SyntheticSize int    `yaml:"synthetic_size,omitempty" json:"synthetic_size,omitempty" validate:"gte=0"`
}

// StorageSection selects the store.
type StorageSection struct {
	Driver    string `yaml:"driver" json:"driver" validate:"oneof=sqlite postgres"`
	Path      string `yaml:"path,omitempty" json:"path,omitempty" validate:"required_if=Driver sqlite"`
	DSN       string `yaml:"dsn,omitempty" json:"dsn,omitempty" validate:"required_if=Driver postgres"`
	BatchSize int    `yaml:"batch_size,omitempty" json:"batch_size,omitempty" validate:"gte=0"`
	MaxConns  int32  `yaml:"max_conns,omitempty" json:"max_conns,omitempty" validate:"gte=0"`
}

// PolicySection configures transition policies.
type PolicySection struct {
	Enabled  bool     `yaml:"enabled" json:"enabled"`
	Builtins bool     `yaml:"builtins" json:"builtins"`
	Paths    []string `yaml:"paths,omitempty" json:"paths,omitempty"`
}

// IRSSection selects the contribution limit table.
type IRSSection struct {
	// LimitsPath replaces the embedded table when set.
	LimitsPath string `yaml:"limits_path,omitempty" json:"limits_path,omitempty"`
}

// RuntimeSection holds execution settings.
type RuntimeSection struct {
	// Threads overrides the worker count chosen by OptimizationLevel.
	Threads           int    `yaml:"threads,omitempty" json:"threads,omitempty" validate:"gte=0,lte=256"`
	OptimizationLevel string `yaml:"optimization_level" json:"optimization_level" validate:"oneof=low medium high"`
	MetricsFile       string `yaml:"metrics_file,omitempty" json:"metrics_file,omitempty"`
}

// ValidationError represents a validation error with location information.
type ValidationError struct {
	// File is the source file path.
	File string `json:"file,omitempty"`

	// Line is the line number (1-indexed).
	Line int `json:"line,omitempty"`

	// Path is the dotted field path, such as "workforce.total_termination_rate".
	Path string `json:"path,omitempty"`

	Message string `json:"message"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	var b strings.Builder
	if e.File != "" {
		b.WriteString(e.File)
		if e.Line > 0 {
			fmt.Fprintf(&b, ":%d", e.Line)
		}
		b.WriteString(": ")
	}
	if e.Path != "" {
		b.WriteString(e.Path)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	return b.String()
}

// ValidationErrors collects every problem found in a file.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (errs ValidationErrors) Error() string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}
