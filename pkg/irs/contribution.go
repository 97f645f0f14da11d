package irs

import (
	"github.com/shopspring/decimal"
)

const cents = 2

// ContributionRecord is the per-employee, per-year contribution outcome after
// applying the IRS limit.
type ContributionRecord struct {
	EmployeeID            string          `json:"employee_id"`
	PlanYear              int             `json:"plan_year"`
	Age                   int             `json:"age"`
	Compensation          decimal.Decimal `json:"compensation"`
	DeferralRate          decimal.Decimal `json:"deferral_rate"`
	RequestedContribution decimal.Decimal `json:"requested_contribution"`
	ApplicableLimit       decimal.Decimal `json:"applicable_limit"`
	ActualContribution    decimal.Decimal `json:"actual_contribution"`
	IRSLimitApplied       bool            `json:"irs_limit_applied"`
	AmountCapped          decimal.Decimal `json:"amount_capped"`
}

// Contribute computes the requested contribution as compensation times the
// deferral rate and caps it at the limit applicable to age.
func Contribute(employeeID string, entry Entry, age int, compensation, deferralRate decimal.Decimal) ContributionRecord {
	requested := compensation.Mul(deferralRate)
	rec := Cap(employeeID, entry, age, requested)
	rec.Compensation = compensation.Round(cents)
	rec.DeferralRate = deferralRate
	return rec
}

// Cap applies the limit to an already-computed requested amount. Amounts are
// rounded to cents before comparison, and negative requests are treated as zero.
func Cap(employeeID string, entry Entry, age int, requested decimal.Decimal) ContributionRecord {
	requested = requested.Round(cents)
	if requested.IsNegative() {
		requested = decimal.Zero
	}
	limit := entry.ApplicableLimit(age)
	actual := decimal.Min(requested, limit)

	return ContributionRecord{
		EmployeeID:            employeeID,
		PlanYear:              entry.PlanYear,
		Age:                   age,
		RequestedContribution: requested,
		ApplicableLimit:       limit,
		ActualContribution:    actual,
		IRSLimitApplied:       requested.GreaterThan(limit),
		AmountCapped:          requested.Sub(actual),
	}
}
