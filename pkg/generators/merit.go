package generators

import (
	"context"

	"github.com/workforcesim/workforcesim/pkg/engine"
)

// MeritStage applies the annual merit and COLA increase on the merit date.
// For employees promoted earlier in the year the increase compounds on the
// post-promotion rate and uses the new level's merit rate.
type MeritStage struct{}

// Name implements engine.Stage.
func (MeritStage) Name() string { return StageMerit }

// Requires implements engine.Stage.
func (MeritStage) Requires() []string { return []string{StageTermination, StagePromotion} }

// Generate implements engine.Stage.
func (MeritStage) Generate(ctx context.Context, in *engine.StageInput) ([]engine.Event, error) {
	cfg := in.Config
	date := cfg.MeritDate.In(in.Year)
	terms := terminationDates(in, StageTermination)

	promoted := make(map[string]engine.Event)
	for _, e := range in.Upstream(StagePromotion) {
		promoted[e.EmployeeID] = e
	}

	return forEach(ctx, workers(in), startingActive(in), func(row engine.SnapshotRow) ([]engine.Event, error) {
		if terminatedBy(terms, row.EmployeeID, date) {
			return nil, nil
		}

		comp, levelID := row.CurrentCompensation, row.LevelID
		if p, ok := promoted[row.EmployeeID]; ok {
			comp, levelID = p.Compensation, p.LevelID
		}

		level, ok := cfg.Level(levelID)
		if !ok {
			return nil, nil
		}
		increase := level.MeritRate + cfg.COLARate
		if increase <= 0 {
			return nil, nil
		}

		next := roundCents(comp * (1 + increase))
		if next <= comp {
			return nil, nil
		}
		return []engine.Event{{
			EmployeeID:           row.EmployeeID,
			SimulationYear:       in.Year,
			Type:                 engine.EventTypeRaise,
			EffectiveDate:        date,
			PreviousCompensation: comp,
			Compensation:         next,
			LevelID:              levelID,
			Reason:               "merit",
		}}, nil
	})
}
