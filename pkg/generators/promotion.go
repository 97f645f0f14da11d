package generators

import (
	"context"
	"math"

	"github.com/workforcesim/workforcesim/pkg/engine"
	"github.com/workforcesim/workforcesim/pkg/tenure"
)

// PromotionStage promotes eligible employees with their level's probability.
// The new rate is the larger of the promotion increase and the next level's
// minimum. Employees leaving on or before the promotion date are skipped.
type PromotionStage struct{}

// Name implements engine.Stage.
func (PromotionStage) Name() string { return StagePromotion }

// Requires implements engine.Stage.
func (PromotionStage) Requires() []string { return []string{StageTermination} }

// Generate implements engine.Stage.
func (PromotionStage) Generate(ctx context.Context, in *engine.StageInput) ([]engine.Event, error) {
	cfg := in.Config
	date := cfg.PromotionDate.In(in.Year)
	terms := terminationDates(in, StageTermination)

	return forEach(ctx, workers(in), startingActive(in), func(row engine.SnapshotRow) ([]engine.Event, error) {
		if terminatedBy(terms, row.EmployeeID, date) {
			return nil, nil
		}
		if tenure.Tenure(row.HireDate, date) < cfg.PromotionMinTenure {
			return nil, nil
		}
		level, ok := cfg.Level(row.LevelID)
		if !ok || level.PromotionRate <= 0 {
			return nil, nil
		}
		next, ok := cfg.Level(row.LevelID + 1)
		if !ok {
			return nil, nil
		}

		r := in.Streams.For(in.Year, StagePromotion, row.EmployeeID)
		if r.Float64() >= level.PromotionRate {
			return nil, nil
		}

		prev := row.CurrentCompensation
		comp := roundCents(math.Max(prev*(1+cfg.PromotionIncrease), next.MinCompensation))
		if comp < prev {
			comp = prev
		}
		return []engine.Event{{
			EmployeeID:           row.EmployeeID,
			SimulationYear:       in.Year,
			Type:                 engine.EventTypePromotion,
			EffectiveDate:        date,
			PreviousCompensation: prev,
			Compensation:         comp,
			PreviousLevelID:      row.LevelID,
			LevelID:              next.ID,
			Reason:               "promotion",
		}}, nil
	})
}
