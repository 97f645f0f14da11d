package irs

import (
	"math/rand/v2"
	"testing"

	"github.com/shopspring/decimal"
)

func TestContributeScenarios(t *testing.T) {
	e := mustDefault(t).Get(2025)

	tests := []struct {
		name      string
		comp      string
		rate      string
		age       int
		requested string
		actual    string
		capped    string
		applied   bool
	}{
		{"catch-up cap", "300000", "0.15", 55, "45000", "31000", "14000", true},
		{"base cap", "300000", "0.15", 45, "45000", "23500", "21500", true},
		{"under limit", "80000", "0.06", 35, "4800", "4800", "0", false},
		{"exactly at limit", "235000", "0.10", 40, "23500", "23500", "0", false},
		{"zero rate", "120000", "0", 60, "0", "0", "0", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := Contribute("EMP_1", e, tt.age,
				decimal.RequireFromString(tt.comp), decimal.RequireFromString(tt.rate))

			if !rec.RequestedContribution.Equal(decimal.RequireFromString(tt.requested)) {
				t.Errorf("requested = %s, want %s", rec.RequestedContribution, tt.requested)
			}
			if !rec.ActualContribution.Equal(decimal.RequireFromString(tt.actual)) {
				t.Errorf("actual = %s, want %s", rec.ActualContribution, tt.actual)
			}
			if !rec.AmountCapped.Equal(decimal.RequireFromString(tt.capped)) {
				t.Errorf("capped = %s, want %s", rec.AmountCapped, tt.capped)
			}
			if rec.IRSLimitApplied != tt.applied {
				t.Errorf("applied = %v, want %v", rec.IRSLimitApplied, tt.applied)
			}
			if rec.PlanYear != 2025 {
				t.Errorf("plan year = %d, want 2025", rec.PlanYear)
			}
		})
	}
}

func TestContributionProperties(t *testing.T) {
	table := mustDefault(t)
	r := rand.New(rand.NewPCG(7, 11))

	for i := 0; i < 5000; i++ {
		year := 2020 + r.IntN(7)
		age := 18 + r.IntN(55)
		comp := decimal.NewFromInt(int64(20000 + r.IntN(480000)))
		rate := decimal.NewFromInt(int64(r.IntN(101))).Div(decimal.NewFromInt(100))

		rec := Contribute("EMP", table.Get(year), age, comp, rate)

		if rec.ActualContribution.GreaterThan(rec.ApplicableLimit) {
			t.Fatalf("actual %s exceeds limit %s", rec.ActualContribution, rec.ApplicableLimit)
		}
		if rec.IRSLimitApplied != rec.RequestedContribution.GreaterThan(rec.ApplicableLimit) {
			t.Fatalf("limit flag %v inconsistent with requested %s and limit %s",
				rec.IRSLimitApplied, rec.RequestedContribution, rec.ApplicableLimit)
		}
		if !rec.RequestedContribution.Sub(rec.ActualContribution).Equal(rec.AmountCapped) {
			t.Fatalf("requested - actual = %s, amount capped = %s",
				rec.RequestedContribution.Sub(rec.ActualContribution), rec.AmountCapped)
		}
		if rec.AmountCapped.IsNegative() {
			t.Fatalf("negative amount capped %s", rec.AmountCapped)
		}
	}
}

func TestCapRoundsAndClampsNegative(t *testing.T) {
	e := mustDefault(t).Get(2024)

	rec := Cap("EMP", e, 30, decimal.RequireFromString("1234.567"))
	if !rec.RequestedContribution.Equal(decimal.RequireFromString("1234.57")) {
		t.Errorf("requested = %s, want 1234.57", rec.RequestedContribution)
	}

	rec = Cap("EMP", e, 30, decimal.NewFromInt(-5))
	if !rec.RequestedContribution.IsZero() || !rec.ActualContribution.IsZero() {
		t.Errorf("negative request not clamped: %+v", rec)
	}
}
