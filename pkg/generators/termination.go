package generators

import (
	"context"

	"github.com/workforcesim/workforcesim/pkg/engine"
	"github.com/workforcesim/workforcesim/pkg/tenure"
)

// TerminationStage terminates ceil(active × total_termination_rate) employees
// of the starting workforce, weighted by tenure band.
type TerminationStage struct{}

// Name implements engine.Stage.
func (TerminationStage) Name() string { return StageTermination }

// Requires implements engine.Stage.
func (TerminationStage) Requires() []string { return nil }

// Generate implements engine.Stage.
func (TerminationStage) Generate(ctx context.Context, in *engine.StageInput) ([]engine.Event, error) {
	active := startingActive(in)
	rate := in.Config.TotalTerminationRate

	if len(active) == 0 {
		if rate > 0 {
			return nil, engine.NewInsufficientPopulationError(in.Year, StageTermination, 0, 1)
		}
		return nil, nil
	}

	count := TerminationCount(len(active), rate)
	if count == 0 {
		return nil, nil
	}

	ids := make([]string, len(active))
	bands := make(map[string]string, len(active))
	for i, row := range active {
		ids[i] = row.EmployeeID
		bands[row.EmployeeID] = tenure.TenureBand(row.CurrentTenure)
	}

	multipliers := in.Config.TerminationTenureMultipliers
	weight := func(id string) float64 {
		if m, ok := multipliers[bands[id]]; ok {
			return m
		}
		return 1
	}
	draw := func(id string) float64 {
		return unitDraw(in.Streams.For(in.Year, StageTermination+".select", id))
	}
	selected := selectWeighted(ids, weight, draw, count)

	from, through := engine.YearStart(in.Year), engine.YearEnd(in.Year)
	return forEach(ctx, workers(in), active, func(row engine.SnapshotRow) ([]engine.Event, error) {
		if !selected[row.EmployeeID] {
			return nil, nil
		}
		r := in.Streams.For(in.Year, StageTermination, row.EmployeeID)
		return []engine.Event{{
			EmployeeID:     row.EmployeeID,
			SimulationYear: in.Year,
			Type:           engine.EventTypeTermination,
			EffectiveDate:  randomDate(r, from, through),
			LevelID:        row.LevelID,
			Reason:         "experienced",
		}}, nil
	})
}
