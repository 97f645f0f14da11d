package policy

import (
	"time"
)

// Built-in policy names.
const (
	PolicyTerminationDrift          = "termination-drift"
	PolicyCompensationGrowthCeiling = "compensation-growth-ceiling"
	PolicyParticipationFloor        = "participation-floor"
)

// GetBuiltinPolicies returns all built-in policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		terminationDriftPolicy(),
		compensationGrowthCeilingPolicy(),
		participationFloorPolicy(),
	}
}

func builtin(name, description string, severity Severity, tags []string, rego string) Policy {
	now := time.Now()
	return Policy{
		Name:        name,
		Description: description,
		Rego:        rego,
		Severity:    severity,
		Enabled:     true,
		Builtin:     true,
		Tags:        tags,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// terminationDriftPolicy warns when the experienced termination rate moves
// away from the configured rate.
func terminationDriftPolicy() Policy {
	return builtin(PolicyTerminationDrift,
		"Warns when the experienced termination rate drifts from its target",
		SeverityWarning,
		[]string{"terminations", "drift"},
		`package wfsim.termination_drift

deny contains violation if {
	m := input.metrics
	m.starting_active > 0
	tolerance := data.wfsim.params.termination_drift_tolerance
	drift := abs(m.actual_termination_rate - m.target_termination_rate)
	drift > tolerance
	violation := {
		"message": sprintf("experienced termination rate in %d drifted by %v", [input.year, drift]),
		"expected": sprintf("%v +/- %v", [m.target_termination_rate, tolerance]),
		"actual": sprintf("%v", [m.actual_termination_rate]),
	}
}`)
}

// compensationGrowthCeilingPolicy fails a year whose average compensation
// grows faster than the ceiling.
func compensationGrowthCeilingPolicy() Policy {
	return builtin(PolicyCompensationGrowthCeiling,
		"Fails a year whose average compensation grows beyond the ceiling",
		SeverityError,
		[]string{"compensation"},
		`package wfsim.compensation_growth_ceiling

deny contains violation if {
	m := input.metrics
	m.prior_average_compensation > 0
	ceiling := data.wfsim.params.max_compensation_growth
	m.compensation_growth > ceiling
	violation := {
		"message": sprintf("average compensation grew from %v to %v in %d", [m.prior_average_compensation, m.average_compensation, input.year]),
		"expected": sprintf("<= %v", [ceiling]),
		"actual": sprintf("%v", [m.compensation_growth]),
	}
}`)
}

// participationFloorPolicy reports low plan participation.
func participationFloorPolicy() Policy {
	return builtin(PolicyParticipationFloor,
		"Reports plan participation below the floor",
		SeverityInfo,
		[]string{"enrollment"},
		`package wfsim.participation_floor

deny contains violation if {
	m := input.metrics
	m.ending_active > 0
	min_rate := data.wfsim.params.min_participation_rate
	m.participation_rate < min_rate
	violation := {
		"message": sprintf("participation in %d is below the floor", [input.year]),
		"expected": sprintf(">= %v", [min_rate]),
		"actual": sprintf("%v", [m.participation_rate]),
	}
}`)
}
