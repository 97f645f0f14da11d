package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestPipeline_RunPassesUpstreamEvents(t *testing.T) {
	cfg := testConfig()
	limits := mustLimits(t)
	prior := NewSnapshot(2024, []SnapshotRow{activeRow("E1", 2024, 50000), activeRow("E2", 2024, 60000)}, nil)

	first := &fakeStage{name: "first", emit: func(in *StageInput) []Event {
		var out []Event
		for _, row := range in.Prior.Active() {
			out = append(out, Event{EmployeeID: row.EmployeeID, SimulationYear: in.Year, Type: EventTypeRaise})
		}
		return out
	}}
	second := &fakeStage{name: "second", requires: []string{"first"}, emit: func(in *StageInput) []Event {
		return []Event{{EmployeeID: "E1", SimulationYear: in.Year, Type: EventTypeContribution}}
	}}
	third := &fakeStage{name: "third", requires: []string{"second"}}

	var (
		mu    sync.Mutex
		order []string
	)
	hooks := StageHooks{
		OnDone: func(_ context.Context, year int, stage string, events int, _ time.Duration, err error) {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, stage)
		},
	}

	p, err := NewPipeline([]Stage{third, second, first}, hooks)
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}

	events, err := p.Run(context.Background(), 2025, cfg, limits, prior)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[2].Type != EventTypeContribution {
		t.Errorf("events are not in stage order: %+v", events)
	}
	if second.seen["first"] != 2 {
		t.Errorf("second saw %d upstream events from first, want 2", second.seen["first"])
	}
	if len(order) != 3 || order[0] != "first" || order[2] != "third" {
		t.Errorf("stage completion order = %v", order)
	}
}

func TestPipeline_StageErrorStopsRun(t *testing.T) {
	boom := NewInsufficientPopulationError(2025, "termination", 0, 5)
	p, err := NewPipeline([]Stage{
		&fakeStage{name: "termination", err: boom},
		&fakeStage{name: "hiring", requires: []string{"termination"}},
	}, StageHooks{})
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}

	_, err = p.Run(context.Background(), 2025, testConfig(), mustLimits(t), &Snapshot{Year: 2024})
	if !errors.Is(err, ErrInsufficientPopulation) {
		t.Fatalf("expected insufficient population error, got %v", err)
	}
}
