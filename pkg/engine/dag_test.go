package engine

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func stages(decls map[string][]string) []Stage {
	out := make([]Stage, 0, len(decls))
	for name, req := range decls {
		out = append(out, &fakeStage{name: name, requires: req})
	}
	return out
}

func TestBuildStageGraph_Levels(t *testing.T) {
	graph, err := BuildStageGraph(stages(map[string][]string{
		"termination":          nil,
		"hiring":               {"termination"},
		"new_hire_termination": {"hiring"},
		"promotion":            {"termination"},
		"merit":                {"promotion"},
		"contribution":         {"new_hire_termination", "merit"},
	}))
	if err != nil {
		t.Fatalf("BuildStageGraph() error = %v", err)
	}

	want := [][]string{
		{"termination"},
		{"hiring", "promotion"},
		{"merit", "new_hire_termination"},
		{"contribution"},
	}
	if got := graph.Levels(); !reflect.DeepEqual(got, want) {
		t.Errorf("Levels() = %v, want %v", got, want)
	}

	ancestors := graph.Ancestors("contribution")
	wantAncestors := []string{"hiring", "merit", "new_hire_termination", "promotion", "termination"}
	if !reflect.DeepEqual(ancestors, wantAncestors) {
		t.Errorf("Ancestors() = %v, want %v", ancestors, wantAncestors)
	}
}

func TestBuildStageGraph_CycleDetected(t *testing.T) {
	_, err := BuildStageGraph(stages(map[string][]string{
		"a": {"c"},
		"b": {"a"},
		"c": {"b"},
	}))
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if !strings.Contains(err.Error(), "circular") {
		t.Errorf("error = %q, want cycle description", err.Error())
	}
}

func TestBuildStageGraph_InvalidDeclarations(t *testing.T) {
	tests := []struct {
		name   string
		stages []Stage
	}{
		{"unknown requirement", []Stage{&fakeStage{name: "merit", requires: []string{"promotion"}}}},
		{"duplicate name", []Stage{&fakeStage{name: "hiring"}, &fakeStage{name: "hiring"}}},
		{"empty name", []Stage{&fakeStage{name: ""}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := BuildStageGraph(tt.stages); !errors.Is(err, ErrConfiguration) {
				t.Errorf("expected configuration error, got %v", err)
			}
		})
	}
}

func TestStageGraph_ToDOT(t *testing.T) {
	graph, err := BuildStageGraph(stages(map[string][]string{
		"termination": nil,
		"hiring":      {"termination"},
	}))
	if err != nil {
		t.Fatalf("BuildStageGraph() error = %v", err)
	}

	dot := graph.ToDOT()
	for _, want := range []string{"digraph Pipeline", `"termination" -> "hiring";`, "Level 1"} {
		if !strings.Contains(dot, want) {
			t.Errorf("ToDOT() missing %q:\n%s", want, dot)
		}
	}
}
