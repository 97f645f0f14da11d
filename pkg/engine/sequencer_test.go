package engine

import (
	"errors"
	"reflect"
	"testing"
)

func sequencerPrior() *Snapshot {
	e1 := activeRow("E1", 2024, 50000)
	e1.Enrolled = true
	e1.DeferralRate = 0.05
	return NewSnapshot(2024, []SnapshotRow{e1, activeRow("E2", 2024, 70000)}, nil)
}

func TestSequencer_OrdersAndNumbersEvents(t *testing.T) {
	events := []Event{
		{EmployeeID: "E1", SimulationYear: 2025, Type: EventTypeTermination, EffectiveDate: Date(2025, 12, 31)},
		{EmployeeID: "E1", SimulationYear: 2025, Type: EventTypeContribution, EffectiveDate: Date(2025, 12, 31), ContributionAmount: 2500},
		{EmployeeID: "E1", SimulationYear: 2025, Type: EventTypeRaise, EffectiveDate: Date(2025, 7, 15), PreviousCompensation: 57500, Compensation: 59225},
		{EmployeeID: "E1", SimulationYear: 2025, Type: EventTypePromotion, EffectiveDate: Date(2025, 2, 1), PreviousCompensation: 50000, Compensation: 57500},
		{EmployeeID: "E2", SimulationYear: 2025, Type: EventTypeRaise, EffectiveDate: Date(2025, 7, 15), PreviousCompensation: 70000, Compensation: 72800},
	}

	seq, err := NewSequencer(2025, sequencerPrior()).Sequence(events)
	if err != nil {
		t.Fatalf("Sequence() error = %v", err)
	}

	var got []string
	for _, e := range seq {
		got = append(got, e.EmployeeID+":"+e.Type.String())
	}
	want := []string{"E1:promotion", "E1:raise", "E1:contribution", "E1:termination", "E2:raise"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}

	wantSeq := []int{1, 2, 3, 4, 1}
	for i, e := range seq {
		if e.Sequence != wantSeq[i] {
			t.Errorf("event %d sequence = %d, want %d", i, e.Sequence, wantSeq[i])
		}
	}

	if events[0].Sequence != 0 {
		t.Error("Sequence() must not mutate its input")
	}
}

func TestSequencer_RejectsInconsistentEvents(t *testing.T) {
	tests := []struct {
		name   string
		events []Event
	}{
		{"event after termination", []Event{
			{EmployeeID: "E2", SimulationYear: 2025, Type: EventTypeTermination, EffectiveDate: Date(2025, 3, 1)},
			{EmployeeID: "E2", SimulationYear: 2025, Type: EventTypeRaise, EffectiveDate: Date(2025, 7, 15), PreviousCompensation: 70000, Compensation: 72800},
		}},
		{"broken compensation chain", []Event{
			{EmployeeID: "E2", SimulationYear: 2025, Type: EventTypePromotion, EffectiveDate: Date(2025, 2, 1), PreviousCompensation: 70000, Compensation: 80500},
			{EmployeeID: "E2", SimulationYear: 2025, Type: EventTypeRaise, EffectiveDate: Date(2025, 7, 15), PreviousCompensation: 70000, Compensation: 72800},
		}},
		{"decreasing compensation", []Event{
			{EmployeeID: "E2", SimulationYear: 2025, Type: EventTypeRaise, EffectiveDate: Date(2025, 7, 15), PreviousCompensation: 70000, Compensation: 65000},
		}},
		{"hire for existing employee", []Event{
			{EmployeeID: "E2", SimulationYear: 2025, Type: EventTypeHire, EffectiveDate: Date(2025, 3, 1), Compensation: 60000},
		}},
		{"duplicate hire", []Event{
			{EmployeeID: "N1", SimulationYear: 2025, Type: EventTypeHire, EffectiveDate: Date(2025, 3, 1), Compensation: 60000},
			{EmployeeID: "N1", SimulationYear: 2025, Type: EventTypeHire, EffectiveDate: Date(2025, 5, 1), Compensation: 60000},
		}},
		{"hire not first", []Event{
			{EmployeeID: "N1", SimulationYear: 2025, Type: EventTypeRaise, EffectiveDate: Date(2025, 2, 1), PreviousCompensation: 60000, Compensation: 61000},
			{EmployeeID: "N1", SimulationYear: 2025, Type: EventTypeHire, EffectiveDate: Date(2025, 3, 1), Compensation: 60000},
		}},
		{"double enrollment", []Event{
			{EmployeeID: "E1", SimulationYear: 2025, Type: EventTypeEnrollment, EffectiveDate: Date(2025, 3, 1), DeferralRate: 0.06},
		}},
		{"deferral change for non-participant", []Event{
			{EmployeeID: "E2", SimulationYear: 2025, Type: EventTypeEnrollmentChange, EffectiveDate: Date(2025, 1, 1), PreviousDeferralRate: 0, DeferralRate: 0.04},
		}},
		{"deferral chain mismatch", []Event{
			{EmployeeID: "E1", SimulationYear: 2025, Type: EventTypeEnrollmentChange, EffectiveDate: Date(2025, 1, 1), PreviousDeferralRate: 0.04, DeferralRate: 0.06},
		}},
		{"contribution without enrollment", []Event{
			{EmployeeID: "E2", SimulationYear: 2025, Type: EventTypeContribution, EffectiveDate: Date(2025, 12, 31), ContributionAmount: 100},
		}},
		{"outside simulation year", []Event{
			{EmployeeID: "E2", SimulationYear: 2025, Type: EventTypeRaise, EffectiveDate: Date(2026, 1, 1), PreviousCompensation: 70000, Compensation: 72800},
		}},
		{"wrong simulation year", []Event{
			{EmployeeID: "E2", SimulationYear: 2024, Type: EventTypeRaise, EffectiveDate: Date(2025, 7, 1), PreviousCompensation: 70000, Compensation: 72800},
		}},
		{"unknown type", []Event{
			{EmployeeID: "E2", SimulationYear: 2025, EffectiveDate: Date(2025, 7, 1)},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSequencer(2025, sequencerPrior()).Sequence(tt.events)
			if !errors.Is(err, ErrEventConsistency) {
				t.Fatalf("expected event consistency error, got %v", err)
			}
			var ee *EngineError
			if errors.As(err, &ee) && ee.EmployeeID != tt.events[0].EmployeeID {
				t.Errorf("error employee = %q, want %q", ee.EmployeeID, tt.events[0].EmployeeID)
			}
		})
	}
}

func TestSequencer_SameDayHireAndTermination(t *testing.T) {
	events := []Event{
		{EmployeeID: "N9", SimulationYear: 2025, Type: EventTypeTermination, EffectiveDate: Date(2025, 12, 31)},
		{EmployeeID: "N9", SimulationYear: 2025, Type: EventTypeHire, EffectiveDate: Date(2025, 12, 31), Compensation: 48000},
	}

	seq, err := NewSequencer(2025, sequencerPrior()).Sequence(events)
	if err != nil {
		t.Fatalf("Sequence() error = %v", err)
	}
	if seq[0].Type != EventTypeHire || seq[1].Type != EventTypeTermination {
		t.Errorf("expected hire before termination, got %v then %v", seq[0].Type, seq[1].Type)
	}
}

func TestAssignEventIDs_Deterministic(t *testing.T) {
	base := []Event{
		{EmployeeID: "E1", SimulationYear: 2025, Type: EventTypeRaise, EffectiveDate: Date(2025, 7, 15), Sequence: 1},
		{EmployeeID: "E2", SimulationYear: 2025, Type: EventTypeRaise, EffectiveDate: Date(2025, 7, 15), Sequence: 1},
	}

	a := append([]Event(nil), base...)
	b := append([]Event(nil), base...)
	AssignEventIDs(42, a)
	AssignEventIDs(42, b)

	if a[0].ID == "" || a[0].ID != b[0].ID || a[1].ID != b[1].ID {
		t.Errorf("expected identical IDs for identical input: %q %q", a[0].ID, b[0].ID)
	}
	if a[0].ID == a[1].ID {
		t.Error("expected distinct IDs for distinct employees")
	}

	c := append([]Event(nil), base...)
	AssignEventIDs(43, c)
	if c[0].ID == a[0].ID {
		t.Error("expected the seed to change event IDs")
	}
}
