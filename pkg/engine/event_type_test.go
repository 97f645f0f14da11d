package engine

import (
	"encoding/json"
	"testing"
)

func TestParseEventType_ExactMatch(t *testing.T) {
	for _, et := range AllEventTypes {
		got, err := ParseEventType(et.String())
		if err != nil {
			t.Fatalf("ParseEventType(%q) error = %v", et, err)
		}
		if got != et {
			t.Errorf("ParseEventType(%q) = %v", et, got)
		}
	}

	for _, bad := range []string{"Raise", "RAISE", "merit", "", "unknown", " hire"} {
		if _, err := ParseEventType(bad); err == nil {
			t.Errorf("ParseEventType(%q) expected error", bad)
		}
	}
}

func TestEventType_JSON(t *testing.T) {
	e := Event{EmployeeID: "E1", Type: EventTypeEnrollmentChange}
	data, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded Event
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded.Type != EventTypeEnrollmentChange {
		t.Errorf("decoded type = %v, want enrollment_change", decoded.Type)
	}

	if _, err := json.Marshal(Event{Type: EventType(99)}); err == nil {
		t.Error("expected marshaling an undefined event type to fail")
	}
}

func TestEventType_DayOrderFollowsAllEventTypes(t *testing.T) {
	for i := 1; i < len(AllEventTypes); i++ {
		prev, cur := AllEventTypes[i-1], AllEventTypes[i]
		if prev.DayOrder() >= cur.DayOrder() {
			t.Errorf("%s (%d) should order before %s (%d)", prev, prev.DayOrder(), cur, cur.DayOrder())
		}
	}
	if EventTypeTermination.DayOrder() <= EventTypeContribution.DayOrder() {
		t.Error("termination must close the day")
	}
}

func TestEventType_Classification(t *testing.T) {
	tests := []struct {
		et           EventType
		compensation bool
		deferral     bool
		unique       bool
	}{
		{EventTypeHire, true, false, true},
		{EventTypeTermination, false, false, true},
		{EventTypePromotion, true, false, false},
		{EventTypeRaise, true, false, false},
		{EventTypeEnrollment, false, true, true},
		{EventTypeEnrollmentChange, false, true, false},
		{EventTypeContribution, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.et.String(), func(t *testing.T) {
			if got := tt.et.ChangesCompensation(); got != tt.compensation {
				t.Errorf("ChangesCompensation() = %v, want %v", got, tt.compensation)
			}
			if got := tt.et.ChangesDeferral(); got != tt.deferral {
				t.Errorf("ChangesDeferral() = %v, want %v", got, tt.deferral)
			}
			if got := tt.et.UniquePerYear(); got != tt.unique {
				t.Errorf("UniquePerYear() = %v, want %v", got, tt.unique)
			}
		})
	}
}
