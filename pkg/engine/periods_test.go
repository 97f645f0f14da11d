package engine

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func TestBuildTimeline_SequentialProration(t *testing.T) {
	start := EmployeeStart{
		EmployeeID:   "E100",
		BirthDate:    Date(1988, 9, 1),
		HireDate:     Date(2019, 5, 6),
		LevelID:      1,
		Compensation: 53742,
	}
	events := []Event{
		{EmployeeID: "E100", SimulationYear: 2026, Type: EventTypePromotion, EffectiveDate: Date(2026, 2, 1),
			PreviousCompensation: 53742, Compensation: 64974.08, PreviousLevelID: 1, LevelID: 2},
		{EmployeeID: "E100", SimulationYear: 2026, Type: EventTypeRaise, EffectiveDate: Date(2026, 7, 15),
			PreviousCompensation: 64974.08, Compensation: 69197.40, LevelID: 2},
	}

	tl, err := BuildTimeline(2026, start, events)
	if err != nil {
		t.Fatalf("BuildTimeline() error = %v", err)
	}

	wantDays := []int{31, 164, 170}
	if len(tl.Periods) != len(wantDays) {
		t.Fatalf("expected %d periods, got %d", len(wantDays), len(tl.Periods))
	}
	for i, p := range tl.Periods {
		if p.Days() != wantDays[i] {
			t.Errorf("period %d has %d days, want %d", i, p.Days(), wantDays[i])
		}
	}

	// (31×53742 + 164×64974.08 + 170×69197.40) / 365
	prorated := tl.ProratedCompensation()
	if math.Abs(prorated-65987.15) > 0.011 {
		t.Errorf("ProratedCompensation() = %.2f, want 65987.15", prorated)
	}
	if prorated < 64000 || prorated > 68000 {
		t.Errorf("ProratedCompensation() = %.2f, outside the sequential-period range", prorated)
	}
	if tl.FinalRate != 69197.40 {
		t.Errorf("FinalRate = %.2f, want 69197.40", tl.FinalRate)
	}
	if prorated > tl.FinalRate {
		t.Errorf("prorated %.2f exceeds full-year equivalent %.2f", prorated, tl.FinalRate)
	}
	if tl.LevelID != 2 {
		t.Errorf("LevelID = %d, want 2", tl.LevelID)
	}
}

func TestBuildTimeline_NewHireAndTermination(t *testing.T) {
	birth := Date(1995, 5, 5)
	hire := Event{EmployeeID: "NH_2026_000001", SimulationYear: 2026, Type: EventTypeHire,
		EffectiveDate: Date(2026, 4, 1), Compensation: 50000, LevelID: 1, BirthDate: &birth}
	term := Event{EmployeeID: "NH_2026_000001", SimulationYear: 2026, Type: EventTypeTermination,
		EffectiveDate: Date(2026, 9, 30)}

	tl, err := BuildTimeline(2026, StartFromHire(&hire), []Event{hire, term})
	if err != nil {
		t.Fatalf("BuildTimeline() error = %v", err)
	}

	if !tl.From.Equal(Date(2026, 4, 1)) || !tl.Through.Equal(Date(2026, 9, 30)) {
		t.Errorf("employment span = %s..%s", tl.From, tl.Through)
	}
	if !tl.Terminated {
		t.Error("expected terminated timeline")
	}
	// Apr 1 through Sep 30 is 183 days.
	want := 183.0 / 365.0 * 50000
	if got := tl.ProratedCompensation(); math.Abs(got-want) > 0.01 {
		t.Errorf("ProratedCompensation() = %.2f, want %.2f", got, want)
	}
	if !tl.AsOf().Equal(Date(2026, 9, 30)) {
		t.Errorf("AsOf() = %s, want termination date", tl.AsOf())
	}
}

func TestBuildTimeline_ContributionWeightsDeferralPeriods(t *testing.T) {
	start := EmployeeStart{EmployeeID: "E5", BirthDate: Date(1970, 1, 1), HireDate: Date(2010, 1, 1), Compensation: 100000}
	events := []Event{
		{EmployeeID: "E5", SimulationYear: 2025, Type: EventTypeEnrollment, EffectiveDate: Date(2025, 7, 1), DeferralRate: 0.10},
	}

	tl, err := BuildTimeline(2025, start, events)
	if err != nil {
		t.Fatalf("BuildTimeline() error = %v", err)
	}

	// Jul 1 through Dec 31 is 184 days at 10% of 100,000.
	got := tl.RequestedContribution().Round(2)
	if !got.Equal(decimal.RequireFromString("5041.10")) {
		t.Errorf("RequestedContribution() = %s, want 5041.10", got)
	}
	if !tl.Participated() || !tl.Enrolled {
		t.Error("expected participation")
	}
	if tl.EnrollmentDate == nil || !tl.EnrollmentDate.Equal(Date(2025, 7, 1)) {
		t.Errorf("EnrollmentDate = %v", tl.EnrollmentDate)
	}
	if tl.ProratedCompensation() != 100000 {
		t.Errorf("ProratedCompensation() = %.2f, want 100000", tl.ProratedCompensation())
	}
}

func TestBuildTimeline_EventBeforeHireRejected(t *testing.T) {
	hire := Event{EmployeeID: "N1", SimulationYear: 2025, Type: EventTypeHire, EffectiveDate: Date(2025, 6, 1), Compensation: 50000}
	raise := Event{EmployeeID: "N1", SimulationYear: 2025, Type: EventTypeRaise, EffectiveDate: Date(2025, 3, 1),
		PreviousCompensation: 50000, Compensation: 52000}

	_, err := BuildTimeline(2025, StartFromHire(&hire), []Event{raise, hire})
	if err == nil {
		t.Fatal("expected an error for an event before the hire date")
	}
}

func TestAssertSequential(t *testing.T) {
	from, through := Date(2025, 1, 1), Date(2025, 12, 31)

	ok := []Period{
		{Start: Date(2025, 1, 1), End: Date(2025, 6, 30)},
		{Start: Date(2025, 7, 1), End: Date(2025, 12, 31)},
	}
	if err := AssertSequential(ok, from, through); err != nil {
		t.Errorf("AssertSequential(ok) error = %v", err)
	}

	overlapping := []Period{
		{Start: Date(2025, 1, 1), End: Date(2025, 12, 31)},
		{Start: Date(2025, 7, 1), End: Date(2025, 12, 31)},
	}
	if err := AssertSequential(overlapping, from, through); err == nil {
		t.Error("expected overlapping periods to be rejected")
	}

	gap := []Period{
		{Start: Date(2025, 1, 1), End: Date(2025, 6, 29)},
		{Start: Date(2025, 7, 1), End: Date(2025, 12, 31)},
	}
	if err := AssertSequential(gap, from, through); err == nil {
		t.Error("expected a gap to be rejected")
	}

	if err := AssertSequential(nil, from, through); err == nil {
		t.Error("expected empty periods to be rejected")
	}
}

func TestDates(t *testing.T) {
	if DaysInYear(2024) != 366 || DaysInYear(2025) != 365 {
		t.Error("DaysInYear() mismatch")
	}
	if DaysInclusive(Date(2025, 1, 1), Date(2025, 12, 31)) != 365 {
		t.Error("DaysInclusive() should count both endpoints")
	}
	if DaysInclusive(Date(2025, 2, 1), Date(2025, 1, 31)) != 0 {
		t.Error("DaysInclusive() should be 0 for reversed ranges")
	}

	md := MustMonthDay("02-29")
	if got := md.In(2025); !got.Equal(Date(2025, 2, 28)) {
		t.Errorf("02-29 in 2025 = %s, want 2025-02-28", got)
	}
	if _, err := ParseMonthDay("13-01"); err == nil {
		t.Error("expected invalid month-day to fail")
	}
	if !MustMonthDay("02-01").Before(MustMonthDay("07-15")) {
		t.Error("02-01 should be before 07-15")
	}
}
