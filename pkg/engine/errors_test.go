package engine

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestEngineError_Is(t *testing.T) {
	err := fmt.Errorf("stage termination: %w", NewInsufficientPopulationError(2025, "termination", 0, 12))

	if !errors.Is(err, ErrInsufficientPopulation) {
		t.Error("expected errors.Is to match ErrInsufficientPopulation")
	}
	if errors.Is(err, ErrConfiguration) {
		t.Error("did not expect a configuration error match")
	}

	var ee *EngineError
	if !errors.As(err, &ee) {
		t.Fatal("expected errors.As to find an EngineError")
	}
	if ee.Year != 2025 || ee.Details["requested"] != 12 {
		t.Errorf("unexpected error context: %+v", ee)
	}
}

func TestIsRecoverable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"configuration", NewConfigurationError("bad rate"), false},
		{"insufficient population", NewInsufficientPopulationError(2025, "hiring", 0, 1), true},
		{"event consistency", NewEventConsistencyError(2025, "E1", "bad", nil, nil), true},
		{"orphaned", NewOrphanedEventError(2025, &Event{EmployeeID: "E1", Type: EventTypeRaise}), true},
		{"irs compliance", NewIRSComplianceError(2025, "E1", "40000", "31000"), false},
		{"transition", &TransitionValidationError{Year: 2025}, true},
		{"plain", errors.New("boom"), false},
		{"transient", NewTransientError("database is locked", nil), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRecoverable(tt.err); got != tt.want {
				t.Errorf("IsRecoverable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEventConsistencyError_CarriesEventPair(t *testing.T) {
	term := &Event{ID: "t1", EmployeeID: "E7", Type: EventTypeTermination, EffectiveDate: Date(2025, 3, 1), Sequence: 1}
	raise := &Event{ID: "r1", EmployeeID: "E7", Type: EventTypeRaise, EffectiveDate: Date(2025, 7, 15), Sequence: 2}

	err := NewEventConsistencyError(2025, "E7", "raise event after termination", term, raise)

	if err.EmployeeID != "E7" {
		t.Errorf("EmployeeID = %q, want E7", err.EmployeeID)
	}
	prior, ok := err.Details["prior_event"].(map[string]interface{})
	if !ok || prior["event_type"] != "termination" {
		t.Errorf("prior_event = %v", err.Details["prior_event"])
	}
	offending, ok := err.Details["offending_event"].(map[string]interface{})
	if !ok || offending["effective_date"] != "2025-07-15" {
		t.Errorf("offending_event = %v", err.Details["offending_event"])
	}
	if !strings.Contains(err.Error(), "employee=E7") {
		t.Errorf("Error() = %q, want employee context", err.Error())
	}
}

func TestTransitionValidationError(t *testing.T) {
	err := &TransitionValidationError{Year: 2026, Failed: []CheckResult{
		{Name: CheckGrowthRate, Expected: "1030 ± 2", Actual: "1020"},
	}}

	if !errors.Is(err, ErrTransitionValidation) {
		t.Error("expected match with ErrTransitionValidation")
	}
	if ErrorCode(fmt.Errorf("year 2026: %w", err)) != ErrCodeTransitionValidation {
		t.Error("expected transition validation code")
	}
	if !strings.Contains(err.Error(), "expected 1030 ± 2, actual 1020") {
		t.Errorf("Error() = %q, want expected and actual values", err.Error())
	}
}
