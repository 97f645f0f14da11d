package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/workforcesim/workforcesim/pkg/config"
	"github.com/workforcesim/workforcesim/pkg/engine"
	"github.com/workforcesim/workforcesim/pkg/generators"
	"github.com/workforcesim/workforcesim/pkg/irs"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand("test", "none", "today")
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--env-file", filepath.Join(t.TempDir(), "missing.env")))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestParseYears(t *testing.T) {
	tests := []struct {
		in         string
		start, end int
		wantErr    bool
	}{
		{in: "2025-2029", start: 2025, end: 2029},
		{in: "2025", start: 2025, end: 2025},
		{in: " 2026 - 2027 ", start: 2026, end: 2027},
		{in: "2029-2025", wantErr: true},
		{in: "twenty", wantErr: true},
		{in: "2025-", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			start, end, err := parseYears(tt.in)
			if tt.wantErr {
				if !errors.Is(err, engine.ErrConfiguration) {
					t.Fatalf("parseYears(%q) error = %v, want configuration error", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseYears(%q) error = %v", tt.in, err)
			}
			if start != tt.start || end != tt.end {
				t.Errorf("parseYears(%q) = %d, %d, want %d, %d", tt.in, start, end, tt.start, tt.end)
			}
		})
	}
}

func TestExitCode(t *testing.T) {
	if got := ExitCode(engine.NewConfigurationError("bad")); got != ExitConfiguration {
		t.Errorf("configuration error exit code = %d", got)
	}
	wrapped := fmt.Errorf("loading: %w", engine.NewConfigurationError("bad"))
	if got := ExitCode(wrapped); got != ExitConfiguration {
		t.Errorf("wrapped configuration error exit code = %d", got)
	}
	if got := ExitCode(errors.New("run abc finished partial")); got != ExitFailure {
		t.Errorf("failure exit code = %d", got)
	}
}

func TestBuildReport(t *testing.T) {
	term := engine.Date(2026, 3, 1)
	snap := engine.NewSnapshot(2026, []engine.SnapshotRow{
		{EmployeeID: "E1", Status: engine.StatusActive, DetailedStatus: engine.DetailedContinuousActive, LevelID: 2, ProratedAnnualCompensation: 80000, TenureBand: "5-9", AgeBand: "35-44", Enrolled: true, DeferralRate: 0.06},
		{EmployeeID: "E2", Status: engine.StatusActive, DetailedStatus: engine.DetailedNewHireActive, LevelID: 1, ProratedAnnualCompensation: 25000, TenureBand: "<2", AgeBand: "<25", Enrolled: true, DeferralRate: 0.04},
		{EmployeeID: "E3", Status: engine.StatusActive, DetailedStatus: engine.DetailedContinuousActive, LevelID: 1, ProratedAnnualCompensation: 50000, TenureBand: "2-4", AgeBand: "25-34"},
		{EmployeeID: "E4", Status: engine.StatusTerminated, DetailedStatus: engine.DetailedExperiencedTermination, TerminationDate: &term, LevelID: 1, ProratedAnnualCompensation: 8000, TenureBand: "10-19", AgeBand: "45-54"},
	}, []irs.ContributionRecord{
		{EmployeeID: "E1", RequestedContribution: decimal.NewFromInt(4800), ActualContribution: decimal.NewFromInt(4800)},
		{EmployeeID: "E2", RequestedContribution: decimal.NewFromInt(1000), ActualContribution: decimal.NewFromInt(1000)},
	})

	r := buildReport(snap)

	if r.Employees != 4 || r.Active != 3 || r.Enrolled != 2 {
		t.Errorf("employees/active/enrolled = %d/%d/%d, want 4/3/2", r.Employees, r.Active, r.Enrolled)
	}
	if !r.AvgDeferral.Equal(decimal.RequireFromString("0.05")) {
		t.Errorf("average deferral = %s, want 0.05", r.AvgDeferral)
	}
	if len(r.ByStatus) != 3 {
		t.Errorf("status groups = %d, want 3", len(r.ByStatus))
	}

	if len(r.ByLevel) != 2 || r.ByLevel[0].Group != "level 1" || r.ByLevel[0].Count != 2 {
		t.Fatalf("by level = %+v", r.ByLevel)
	}
	if !r.ByLevel[0].Compensation.Equal(decimal.NewFromInt(75000)) {
		t.Errorf("level 1 compensation = %s, want 75000", r.ByLevel[0].Compensation)
	}

	var tenureOrder []string
	for _, l := range r.ByTenure {
		tenureOrder = append(tenureOrder, l.Group)
	}
	if got := strings.Join(tenureOrder, ","); got != "<2,2-4,5-9" {
		t.Errorf("tenure order = %s", got)
	}

	if r.Contributions.Participants != 2 || !r.Contributions.Actual.Equal(decimal.NewFromInt(5800)) {
		t.Errorf("contributions = %+v", r.Contributions)
	}

	var out bytes.Buffer
	if err := r.print(&out); err != nil {
		t.Fatalf("print() error = %v", err)
	}
	if !strings.Contains(out.String(), "Year 2026: 4 employees, 3 active, 2 enrolled") {
		t.Errorf("unexpected report header:\n%s", out.String())
	}
}

func TestInitAndValidate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sims", "wfsim.yaml")

	out, err := execute(t, "init", "--config", path)
	if err != nil {
		t.Fatalf("init error = %v\n%s", err, out)
	}
	written, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if !bytes.Equal(written, config.Sample()) {
		t.Error("written config differs from the sample")
	}

	if _, err := execute(t, "init", "--config", path); err == nil {
		t.Error("init over an existing file should fail without --force")
	}
	if out, err := execute(t, "init", "--config", path, "--force"); err != nil {
		t.Errorf("init --force error = %v\n%s", err, out)
	}

	out, err = execute(t, "validate", "--config", path)
	if err != nil {
		t.Fatalf("validate error = %v\n%s", err, out)
	}
	if !strings.Contains(out, "✓ Configuration") || !strings.Contains(out, "Digest:") {
		t.Errorf("unexpected validate output:\n%s", out)
	}

	out, err = execute(t, "validate", "--config", path, "--json")
	if err != nil {
		t.Fatalf("validate --json error = %v", err)
	}
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("validate --json output is not JSON: %v\n%s", err, out)
	}
	if result["valid"] != true {
		t.Errorf("valid = %v", result["valid"])
	}
}

func TestValidateGraph(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wfsim.yaml")
	if err := os.WriteFile(path, config.Sample(), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "validate", "--config", path, "--graph")
	if err != nil {
		t.Fatalf("validate --graph error = %v\n%s", err, out)
	}
	if !strings.HasPrefix(out, "digraph Pipeline {") {
		t.Errorf("output is not a DOT graph:\n%s", out)
	}
	for _, want := range []string{generators.StageHiring, generators.StageContribution, "->"} {
		if !strings.Contains(out, want) {
			t.Errorf("graph missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Digest:") {
		t.Error("graph output should not include the validation summary")
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wfsim.yaml")
	bad := strings.Replace(string(config.Sample()), "synthetic_size: 1000", "synthetic_size: 0", 1)
	if err := os.WriteFile(path, []byte(bad), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "validate", "--config", path)
	if err == nil {
		t.Fatal("validate should fail")
	}
	if ExitCode(err) != ExitConfiguration {
		t.Errorf("exit code = %d, want %d", ExitCode(err), ExitConfiguration)
	}
	if !strings.Contains(out, "is invalid") || !strings.Contains(out, "census.path") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestLimits(t *testing.T) {
	out, err := execute(t, "limits")
	if err != nil {
		t.Fatalf("limits error = %v", err)
	}
	if !strings.Contains(out, "PLAN YEAR") {
		t.Errorf("unexpected output:\n%s", out)
	}

	if _, err := execute(t, "limits", "--file", filepath.Join(t.TempDir(), "none.yaml")); err == nil {
		t.Error("missing limit file should fail")
	}
}

func TestCleanRequiresOneMode(t *testing.T) {
	if _, err := execute(t, "clean"); err == nil {
		t.Error("clean without --years or --all should fail")
	}
	if _, err := execute(t, "clean", "--all", "--years", "2025-2026"); err == nil {
		t.Error("clean with both --years and --all should fail")
	}
}
