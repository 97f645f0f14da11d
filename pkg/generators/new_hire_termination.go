package generators

import (
	"context"

	"github.com/workforcesim/workforcesim/pkg/engine"
)

// NewHireTerminationStage terminates round(hires × new_hire_termination_rate)
// of the year's hires, each between its hire date and December 31.
type NewHireTerminationStage struct{}

// Name implements engine.Stage.
func (NewHireTerminationStage) Name() string { return StageNewHireTermination }

// Requires implements engine.Stage.
func (NewHireTerminationStage) Requires() []string { return []string{StageHiring} }

// Generate implements engine.Stage.
func (NewHireTerminationStage) Generate(ctx context.Context, in *engine.StageInput) ([]engine.Event, error) {
	hires := in.Upstream(StageHiring)
	count := NewHireTerminationCount(len(hires), in.Config.NewHireTerminationRate)
	if count == 0 {
		return nil, nil
	}

	ids := make([]string, len(hires))
	for i, h := range hires {
		ids[i] = h.EmployeeID
	}
	draw := func(id string) float64 {
		return unitDraw(in.Streams.For(in.Year, StageNewHireTermination+".select", id))
	}
	selected := selectWeighted(ids, func(string) float64 { return 1 }, draw, count)

	yearEnd := engine.YearEnd(in.Year)
	return forEach(ctx, workers(in), hires, func(hire engine.Event) ([]engine.Event, error) {
		if !selected[hire.EmployeeID] {
			return nil, nil
		}
		r := in.Streams.For(in.Year, StageNewHireTermination, hire.EmployeeID)
		return []engine.Event{{
			EmployeeID:     hire.EmployeeID,
			SimulationYear: in.Year,
			Type:           engine.EventTypeTermination,
			EffectiveDate:  randomDate(r, hire.EffectiveDate, yearEnd),
			LevelID:        hire.LevelID,
			Reason:         "new_hire",
		}}, nil
	})
}
