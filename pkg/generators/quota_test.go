package generators

import (
	"errors"
	"testing"

	"github.com/workforcesim/workforcesim/pkg/engine"
)

func TestTerminationCount(t *testing.T) {
	tests := []struct {
		active int
		rate   float64
		want   int
	}{
		{1000, 0.12, 120},
		{10, 0.15, 2},
		{7, 0.1, 1},
		{0, 0.12, 0},
		{500, 0, 0},
	}
	for _, tt := range tests {
		if got := TerminationCount(tt.active, tt.rate); got != tt.want {
			t.Errorf("TerminationCount(%d, %g) = %d, want %d", tt.active, tt.rate, got, tt.want)
		}
	}
}

func TestHiresNeeded(t *testing.T) {
	tests := []struct {
		terms, workforce int
		growth, nhRate   float64
		want             int
	}{
		{120, 1000, 0.03, 0.25, 200},
		{1, 10, 0.05, 0.1, 2},
		{0, 100, 0, 0, 0},
		{12, 100, 0, 0, 12},
		{5, 100, -0.1, 0, 0},
	}
	for _, tt := range tests {
		got, err := HiresNeeded(tt.terms, tt.workforce, tt.growth, tt.nhRate)
		if err != nil {
			t.Fatalf("HiresNeeded() error = %v", err)
		}
		if got != tt.want {
			t.Errorf("HiresNeeded(%d, %d, %g, %g) = %d, want %d",
				tt.terms, tt.workforce, tt.growth, tt.nhRate, got, tt.want)
		}
	}
}

func TestHiresNeeded_RejectsFullNewHireAttrition(t *testing.T) {
	for _, rate := range []float64{1.0, 1.2, -0.1} {
		if _, err := HiresNeeded(10, 100, 0.03, rate); !errors.Is(err, engine.ErrConfiguration) {
			t.Errorf("HiresNeeded(rate=%g) error = %v, want configuration error", rate, err)
		}
	}
}

func TestNewHireTerminationCount(t *testing.T) {
	if got := NewHireTerminationCount(200, 0.25); got != 50 {
		t.Errorf("NewHireTerminationCount(200, 0.25) = %d, want 50", got)
	}
	if got := NewHireTerminationCount(3, 0.5); got != 2 {
		t.Errorf("NewHireTerminationCount(3, 0.5) = %d, want 2", got)
	}
}
