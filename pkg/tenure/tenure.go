// Package tenure converts dates into whole years of service or age and
// maps those years onto reporting bands.
package tenure

import (
	"math"
	"time"
)

// DaysPerYear is the average calendar year length used for truncation.
const DaysPerYear = 365.25

// Years returns floor(days_between(asOf, from) / 365.25).
//
// A zero from date yields 0, as does a from date after asOf (not yet
// effective). Callers choose asOf: December 31 of the simulation year for
// active employees, the termination date for terminated ones.
func Years(from, asOf time.Time) int {
	if from.IsZero() {
		return 0
	}
	from = truncateDay(from)
	asOf = truncateDay(asOf)
	if from.After(asOf) {
		return 0
	}
	days := asOf.Sub(from).Hours() / 24
	return int(math.Floor(math.Round(days) / DaysPerYear))
}

// Tenure returns completed years of service as of asOf.
func Tenure(hireDate, asOf time.Time) int {
	return Years(hireDate, asOf)
}

// Age returns completed years of age as of asOf.
func Age(birthDate, asOf time.Time) int {
	return Years(birthDate, asOf)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
