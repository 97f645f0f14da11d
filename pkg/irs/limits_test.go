package irs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
)

func mustDefault(t *testing.T) *Table {
	t.Helper()
	table, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	return table
}

func TestDefaultTable(t *testing.T) {
	table := mustDefault(t)

	if table.Version() == "" {
		t.Error("expected embedded table to carry a version")
	}

	tests := []struct {
		year    int
		base    int64
		catchUp int64
	}{
		{2020, 19500, 26000},
		{2021, 19500, 26000},
		{2022, 20500, 27000},
		{2023, 22500, 30000},
		{2024, 23000, 30500},
		{2025, 23500, 31000},
		{2026, 24500, 32500},
	}

	for _, tt := range tests {
		e := table.Get(tt.year)
		if e.PlanYear != tt.year {
			t.Errorf("Get(%d).PlanYear = %d", tt.year, e.PlanYear)
		}
		if !e.BaseLimit.Equal(decimal.NewFromInt(tt.base)) {
			t.Errorf("Get(%d).BaseLimit = %s, want %d", tt.year, e.BaseLimit, tt.base)
		}
		if !e.CatchUpLimit.Equal(decimal.NewFromInt(tt.catchUp)) {
			t.Errorf("Get(%d).CatchUpLimit = %s, want %d", tt.year, e.CatchUpLimit, tt.catchUp)
		}
		if e.CatchUpAgeThreshold != 50 {
			t.Errorf("Get(%d).CatchUpAgeThreshold = %d, want 50", tt.year, e.CatchUpAgeThreshold)
		}
	}
}

func TestGetOutOfRange(t *testing.T) {
	table := mustDefault(t)
	entries := table.Entries()
	first, last := entries[0], entries[len(entries)-1]

	if got := table.Get(1990).PlanYear; got != first.PlanYear {
		t.Errorf("Get(1990) = %d, want earliest %d", got, first.PlanYear)
	}
	if got := table.Get(2040).PlanYear; got != last.PlanYear {
		t.Errorf("Get(2040) = %d, want latest %d", got, last.PlanYear)
	}
}

func TestGetNearestTiesToLower(t *testing.T) {
	table, err := NewTable("test", []Entry{
		{PlanYear: 2030, BaseLimit: decimal.NewFromInt(30000), CatchUpLimit: decimal.NewFromInt(40000), CatchUpAgeThreshold: 50},
		{PlanYear: 2020, BaseLimit: decimal.NewFromInt(20000), CatchUpLimit: decimal.NewFromInt(26000), CatchUpAgeThreshold: 50},
	})
	if err != nil {
		t.Fatalf("NewTable() error = %v", err)
	}

	tests := []struct {
		year int
		want int
	}{
		{2020, 2020},
		{2024, 2020},
		{2025, 2020}, // equidistant
		{2026, 2030},
		{2030, 2030},
	}
	for _, tt := range tests {
		if got := table.Get(tt.year).PlanYear; got != tt.want {
			t.Errorf("Get(%d) = %d, want %d", tt.year, got, tt.want)
		}
	}
}

func TestApplicableLimitThreshold(t *testing.T) {
	e := mustDefault(t).Get(2025)

	tests := []struct {
		age  int
		want int64
	}{
		{49, 23500},
		{50, 31000},
		{51, 31000},
	}
	for _, tt := range tests {
		if got := e.ApplicableLimit(tt.age); !got.Equal(decimal.NewFromInt(tt.want)) {
			t.Errorf("ApplicableLimit(%d) = %s, want %d", tt.age, got, tt.want)
		}
	}
}

func TestNewTableRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		entries []Entry
	}{
		{"empty", nil},
		{"catch-up not above base", []Entry{
			{PlanYear: 2025, BaseLimit: decimal.NewFromInt(23500), CatchUpLimit: decimal.NewFromInt(23500), CatchUpAgeThreshold: 50},
		}},
		{"duplicate year", []Entry{
			{PlanYear: 2025, BaseLimit: decimal.NewFromInt(23500), CatchUpLimit: decimal.NewFromInt(31000), CatchUpAgeThreshold: 50},
			{PlanYear: 2025, BaseLimit: decimal.NewFromInt(23500), CatchUpLimit: decimal.NewFromInt(31000), CatchUpAgeThreshold: 50},
		}},
		{"zero threshold", []Entry{
			{PlanYear: 2025, BaseLimit: decimal.NewFromInt(23500), CatchUpLimit: decimal.NewFromInt(31000)},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTable("v", tt.entries)
			if !errors.Is(err, ErrInvalidTable) {
				t.Errorf("NewTable() error = %v, want ErrInvalidTable", err)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "limits.yaml")
	content := `version: "custom"
limits:
  - plan_year: 2027
    base_limit: 25000
    catch_up_limit: 33000
    catch_up_age_threshold: 50
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write table: %v", err)
	}

	table, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if table.Version() != "custom" {
		t.Errorf("Version() = %q, want custom", table.Version())
	}
	if got := table.ApplicableLimit(2027, 30); !got.Equal(decimal.NewFromInt(25000)) {
		t.Errorf("ApplicableLimit() = %s, want 25000", got)
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("limits:\n  - plan_year: 2027\n    base_limit: 30000\n    catch_up_limit: 20000\n    catch_up_age_threshold: 50\n"), 0o644); err != nil {
		t.Fatalf("failed to write table: %v", err)
	}
	if _, err := Load(bad); !errors.Is(err, ErrInvalidTable) {
		t.Errorf("Load(bad) error = %v, want ErrInvalidTable", err)
	}
}
