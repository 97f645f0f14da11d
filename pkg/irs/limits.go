// Package irs holds the versioned table of annual elective deferral limits
// and the contribution capping rules applied to every participant.
package irs

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed data/irs_limits.yaml
var defaultLimitsYAML []byte

// ErrInvalidTable is returned when a limit table violates a load-time invariant.
var ErrInvalidTable = errors.New("invalid IRS limit table")

// Entry is the set of limits for one plan year.
type Entry struct {
	// PlanYear is the calendar plan year the limits apply to.
	PlanYear int `json:"plan_year"`

	// BaseLimit is the elective deferral limit below the catch-up age.
	BaseLimit decimal.Decimal `json:"base_limit"`

	// CatchUpLimit is the total limit at or above the catch-up age.
	CatchUpLimit decimal.Decimal `json:"catch_up_limit"`

	// CatchUpAgeThreshold is the age at which CatchUpLimit applies (inclusive).
	CatchUpAgeThreshold int `json:"catch_up_age_threshold"`
}

// ApplicableLimit returns the limit that applies to a participant of the given age.
func (e Entry) ApplicableLimit(age int) decimal.Decimal {
	if age >= e.CatchUpAgeThreshold {
		return e.CatchUpLimit
	}
	return e.BaseLimit
}

// Table is an immutable, year-ordered set of limit entries. It is safe for
// concurrent use once constructed.
type Table struct {
	version string
	source  string
	entries []Entry
}

type rawTable struct {
	Version string `yaml:"version"`
	Source  string `yaml:"source"`
	Limits  []struct {
		PlanYear            int     `yaml:"plan_year"`
		BaseLimit           float64 `yaml:"base_limit"`
		CatchUpLimit        float64 `yaml:"catch_up_limit"`
		CatchUpAgeThreshold int     `yaml:"catch_up_age_threshold"`
	} `yaml:"limits"`
}

// NewTable validates entries and returns a table sorted by plan year.
func NewTable(version string, entries []Entry) (*Table, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no entries", ErrInvalidTable)
	}

	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PlanYear < sorted[j].PlanYear })

	for i, e := range sorted {
		if i > 0 && sorted[i-1].PlanYear == e.PlanYear {
			return nil, fmt.Errorf("%w: duplicate plan year %d", ErrInvalidTable, e.PlanYear)
		}
		if !e.BaseLimit.IsPositive() {
			return nil, fmt.Errorf("%w: plan year %d base limit must be positive", ErrInvalidTable, e.PlanYear)
		}
		if !e.CatchUpLimit.GreaterThan(e.BaseLimit) {
			return nil, fmt.Errorf("%w: plan year %d catch-up limit %s must exceed base limit %s",
				ErrInvalidTable, e.PlanYear, e.CatchUpLimit, e.BaseLimit)
		}
		if e.CatchUpAgeThreshold <= 0 {
			return nil, fmt.Errorf("%w: plan year %d catch-up age threshold must be positive", ErrInvalidTable, e.PlanYear)
		}
	}

	return &Table{version: version, entries: sorted}, nil
}

// Parse decodes a YAML limit table.
func Parse(data []byte) (*Table, error) {
	var raw rawTable
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTable, err)
	}

	entries := make([]Entry, 0, len(raw.Limits))
	for _, l := range raw.Limits {
		entries = append(entries, Entry{
			PlanYear:            l.PlanYear,
			BaseLimit:           decimal.NewFromFloat(l.BaseLimit),
			CatchUpLimit:        decimal.NewFromFloat(l.CatchUpLimit),
			CatchUpAgeThreshold: l.CatchUpAgeThreshold,
		})
	}

	table, err := NewTable(raw.Version, entries)
	if err != nil {
		return nil, err
	}
	table.source = raw.Source
	return table, nil
}

// Load reads a limit table from path, or the embedded default table when path is empty.
func Load(path string) (*Table, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read IRS limit table: %w", err)
	}
	return Parse(data)
}

// Default returns the embedded limit table.
func Default() (*Table, error) {
	return Parse(defaultLimitsYAML)
}

// Version returns the table version label.
func (t *Table) Version() string {
	return t.version
}

// Source returns the table provenance note.
func (t *Table) Source() string {
	return t.source
}

// Entries returns a copy of the entries in plan-year order.
func (t *Table) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Get returns the entry for planYear. When the year is absent the entry of the
// nearest available year is returned, ties going to the lower year. Get never fails.
func (t *Table) Get(planYear int) Entry {
	idx := sort.Search(len(t.entries), func(i int) bool { return t.entries[i].PlanYear >= planYear })
	switch {
	case idx < len(t.entries) && t.entries[idx].PlanYear == planYear:
		return t.entries[idx]
	case idx == 0:
		return t.entries[0]
	case idx == len(t.entries):
		return t.entries[len(t.entries)-1]
	}

	lower, upper := t.entries[idx-1], t.entries[idx]
	if upper.PlanYear-planYear < planYear-lower.PlanYear {
		return upper
	}
	return lower
}

// ApplicableLimit returns the limit for a participant of age in planYear.
func (t *Table) ApplicableLimit(planYear, age int) decimal.Decimal {
	return t.Get(planYear).ApplicableLimit(age)
}
