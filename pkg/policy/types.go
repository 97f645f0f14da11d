package policy

import (
	"time"

	"github.com/workforcesim/workforcesim/pkg/engine"
)

// Severity grades a policy violation. The values match engine severities so a
// violation maps directly onto a transition check.
type Severity = engine.Severity

const (
	// SeverityInfo is for informational findings.
	SeverityInfo = engine.SeverityInfo

	// SeverityWarning is for findings that should be reviewed.
	SeverityWarning = engine.SeverityWarning

	// SeverityError fails the year transition.
	SeverityError = engine.SeverityError
)

// CheckPrefix prefixes the check name of every policy result.
const CheckPrefix = "policy."

// Policy represents a policy rule with its Rego code.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego module. Violations are read from its deny set.
	Rego string `json:"rego"`

	// Severity is the default severity for violations.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled"`

	// Builtin marks policies shipped with wfsim.
	Builtin bool `json:"builtin,omitempty"`

	// Tags are labels for organizing policies.
	Tags []string `json:"tags,omitempty"`

	// Metadata contains additional policy metadata, such as the source file.
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Violation is one element of a policy's deny set.
type Violation struct {
	Policy   string   `json:"policy"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
	Expected string   `json:"expected,omitempty"`
	Actual   string   `json:"actual,omitempty"`
}

// Check converts the violation to a failed transition check.
func (v Violation) Check() engine.CheckResult {
	return engine.CheckResult{
		Name:     CheckPrefix + v.Policy,
		Passed:   false,
		Severity: v.Severity,
		Expected: v.Expected,
		Actual:   v.Actual,
		Message:  v.Message,
	}
}

// Input is the document policies see as input.
type Input struct {
	RunID   string                   `json:"run_id,omitempty"`
	Year    int                      `json:"year"`
	Metrics engine.TransitionMetrics `json:"metrics"`

	// Checks are the built-in transition checks evaluated before policies.
	Checks []engine.CheckResult `json:"checks"`

	Context *Context `json:"context"`
}

// Context provides evaluation context.
type Context struct {
	Timestamp time.Time `json:"timestamp"`
	Operation string    `json:"operation,omitempty"`
}

// Params are thresholds exposed to policies as data.wfsim.params.
type Params struct {
	// TerminationDriftTolerance bounds |actual - target| experienced termination rate.
	TerminationDriftTolerance float64 `json:"termination_drift_tolerance"`

	// MaxCompensationGrowth bounds year-over-year growth of average compensation.
	MaxCompensationGrowth float64 `json:"max_compensation_growth"`

	// MinParticipationRate is the participation floor.
	MinParticipationRate float64 `json:"min_participation_rate"`
}

// DefaultParams returns the thresholds used by the built-in policies.
func DefaultParams() Params {
	return Params{
		TerminationDriftTolerance: 0.05,
		MaxCompensationGrowth:     0.25,
		MinParticipationRate:      0.5,
	}
}

func (p Params) data() map[string]interface{} {
	return map[string]interface{}{
		"wfsim": map[string]interface{}{
			"params": map[string]interface{}{
				"termination_drift_tolerance": p.TerminationDriftTolerance,
				"max_compensation_growth":     p.MaxCompensationGrowth,
				"min_participation_rate":      p.MinParticipationRate,
			},
		},
	}
}

// Bundle represents a collection of related policies shipped as one JSON file.
type Bundle struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	Policies    []Policy `json:"policies"`
}
