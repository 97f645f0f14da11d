package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/workforcesim/workforcesim/pkg/engine"
)

func newTestEngine(t *testing.T, params Params) *Engine {
	t.Helper()
	eng, err := NewEngine(zerolog.Nop(), params, true)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	return eng
}

func healthyMetrics() engine.TransitionMetrics {
	return engine.TransitionMetrics{
		StartingActive:           100,
		EndingActive:             103,
		ExperiencedTerminations:  12,
		TargetTerminationRate:    0.12,
		ActualTerminationRate:    0.12,
		PriorAverageCompensation: 60000,
		AverageCompensation:      62000,
		CompensationGrowth:       62000.0/60000.0 - 1,
		ParticipationRate:        0.7,
	}
}

func failedChecks(checks []engine.CheckResult) map[string]engine.CheckResult {
	out := make(map[string]engine.CheckResult)
	for _, c := range checks {
		if !c.Passed {
			out[c.Name] = c
		}
	}
	return out
}

func TestNewEngine(t *testing.T) {
	eng := newTestEngine(t, DefaultParams())

	policies := eng.ListPolicies()
	want := []string{PolicyCompensationGrowthCeiling, PolicyParticipationFloor, PolicyTerminationDrift}
	if len(policies) != len(want) {
		t.Fatalf("Expected %d built-in policies, got %d", len(want), len(policies))
	}
	for i, p := range policies {
		if p.Name != want[i] || !p.Builtin || !p.Enabled {
			t.Errorf("policy %d = %+v, want built-in %s", i, p, want[i])
		}
	}

	none, err := NewEngine(zerolog.Nop(), DefaultParams(), false)
	if err != nil {
		t.Fatal(err)
	}
	if len(none.ListPolicies()) != 0 {
		t.Error("built-ins loaded although disabled")
	}
}

func TestEvaluateTransition_Builtins(t *testing.T) {
	eng := newTestEngine(t, DefaultParams())

	tests := []struct {
		name     string
		mutate   func(m *engine.TransitionMetrics)
		wantName string
		wantSev  Severity
	}{
		{name: "healthy year"},
		{
			name:     "termination drift",
			mutate:   func(m *engine.TransitionMetrics) { m.ActualTerminationRate = 0.3 },
			wantName: CheckPrefix + PolicyTerminationDrift,
			wantSev:  SeverityWarning,
		},
		{
			name:     "compensation growth above ceiling",
			mutate:   func(m *engine.TransitionMetrics) { m.AverageCompensation, m.CompensationGrowth = 84000, 0.4 },
			wantName: CheckPrefix + PolicyCompensationGrowthCeiling,
			wantSev:  SeverityError,
		},
		{
			name:     "participation below floor",
			mutate:   func(m *engine.TransitionMetrics) { m.ParticipationRate = 0.2 },
			wantName: CheckPrefix + PolicyParticipationFloor,
			wantSev:  SeverityInfo,
		},
		{
			name:   "first year has no prior average",
			mutate: func(m *engine.TransitionMetrics) { m.PriorAverageCompensation, m.CompensationGrowth = 0, 0 },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := healthyMetrics()
			if tt.mutate != nil {
				tt.mutate(&m)
			}

			checks, err := eng.EvaluateTransition(context.Background(), &engine.TransitionResult{Year: 2026, Metrics: m})
			if err != nil {
				t.Fatalf("EvaluateTransition() error = %v", err)
			}
			if len(checks) != 3 {
				t.Errorf("Expected one check per policy, got %d", len(checks))
			}

			failed := failedChecks(checks)
			if tt.wantName == "" {
				if len(failed) != 0 {
					t.Errorf("Unexpected failed checks: %+v", failed)
				}
				return
			}
			if len(failed) != 1 {
				t.Fatalf("Expected 1 failed check, got %+v", failed)
			}
			c, ok := failed[tt.wantName]
			if !ok {
				t.Fatalf("Expected %s to fail, got %+v", tt.wantName, failed)
			}
			if c.Severity != tt.wantSev || c.Expected == "" || c.Actual == "" || c.Message == "" {
				t.Errorf("check = %+v", c)
			}
		})
	}
}

func TestEvaluateTransition_Params(t *testing.T) {
	params := DefaultParams()
	params.MaxCompensationGrowth = 0.01
	eng := newTestEngine(t, params)

	checks, err := eng.EvaluateTransition(context.Background(), &engine.TransitionResult{Year: 2026, Metrics: healthyMetrics()})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := failedChecks(checks)[CheckPrefix+PolicyCompensationGrowthCeiling]; !ok {
		t.Errorf("Expected the lowered ceiling to fail, got %+v", checks)
	}
}

func TestEvaluateTransition_CustomPolicy(t *testing.T) {
	dir := t.TempDir()
	rego := `# Headcount must not fall below 100.
# severity: error
package wfsim.headcount

deny contains violation if {
	input.metrics.ending_active < 100
	violation := {
		"message": sprintf("headcount %d below 100 in %d", [input.metrics.ending_active, input.year]),
		"expected": ">= 100",
		"actual": sprintf("%d", [input.metrics.ending_active]),
	}
}
`
	if err := os.WriteFile(filepath.Join(dir, "headcount.rego"), []byte(rego), 0o644); err != nil {
		t.Fatal(err)
	}

	eng := newTestEngine(t, DefaultParams())
	if err := eng.LoadPolicies(context.Background(), []string{dir}); err != nil {
		t.Fatalf("LoadPolicies() error = %v", err)
	}

	m := healthyMetrics()
	m.EndingActive = 50
	checks, err := eng.EvaluateTransition(context.Background(), &engine.TransitionResult{Year: 2027, Metrics: m})
	if err != nil {
		t.Fatal(err)
	}

	c, ok := failedChecks(checks)[CheckPrefix+"headcount"]
	if !ok {
		t.Fatalf("Expected headcount violation, got %+v", checks)
	}
	if c.Severity != SeverityError || c.Expected != ">= 100" || c.Actual != "50" {
		t.Errorf("check = %+v", c)
	}
	if c.Message != "headcount 50 below 100 in 2027" {
		t.Errorf("message = %q", c.Message)
	}

	if err := eng.DisablePolicy("headcount"); err != nil {
		t.Fatal(err)
	}
	checks, _ = eng.EvaluateTransition(context.Background(), &engine.TransitionResult{Year: 2027, Metrics: m})
	if _, ok := failedChecks(checks)[CheckPrefix+"headcount"]; ok {
		t.Error("Disabled policy was evaluated")
	}
	if err := eng.EnablePolicy("missing"); err == nil {
		t.Error("Expected error enabling unknown policy")
	}
}

func TestLoadPolicies_CompileError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.rego")
	if err := os.WriteFile(path, []byte("package wfsim.broken\n\ndeny contains x if {"), 0o644); err != nil {
		t.Fatal(err)
	}

	eng := newTestEngine(t, DefaultParams())
	if err := eng.LoadPolicies(context.Background(), []string{path}); err == nil {
		t.Fatal("Expected compile error")
	}
	if len(eng.ListPolicies()) != 3 {
		t.Error("Broken policy changed the loaded set")
	}
}

func TestReplacePolicies(t *testing.T) {
	eng := newTestEngine(t, DefaultParams())
	ctx := context.Background()

	custom := Policy{Name: "always", Severity: SeverityInfo, Enabled: true, Rego: `package wfsim.always

deny contains "always reported"
`}
	if err := eng.ReplacePolicies(ctx, []Policy{custom}); err != nil {
		t.Fatalf("ReplacePolicies() error = %v", err)
	}
	if _, err := eng.GetPolicy("always"); err != nil {
		t.Fatal(err)
	}

	checks, err := eng.EvaluateTransition(ctx, &engine.TransitionResult{Year: 2026, Metrics: healthyMetrics()})
	if err != nil {
		t.Fatal(err)
	}
	if c := failedChecks(checks)[CheckPrefix+"always"]; c.Message != "always reported" || c.Severity != SeverityInfo {
		t.Errorf("check = %+v", c)
	}

	broken := Policy{Name: "broken", Enabled: true, Rego: "package"}
	if err := eng.ReplacePolicies(ctx, []Policy{broken}); err == nil {
		t.Fatal("Expected compile error")
	}
	if _, err := eng.GetPolicy("always"); err != nil {
		t.Error("Failed replacement dropped the previous policies")
	}

	if err := eng.ReplacePolicies(ctx, nil); err != nil {
		t.Fatal(err)
	}
	if len(eng.ListPolicies()) != 3 {
		t.Errorf("Expected only built-ins, got %d policies", len(eng.ListPolicies()))
	}
}
