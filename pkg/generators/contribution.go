package generators

import (
	"context"

	"github.com/workforcesim/workforcesim/pkg/engine"
)

// ContributionStage computes each participant's capped annual deferral from
// the compensation and deferral rates produced upstream, dated at year end or
// at termination.
type ContributionStage struct{}

// Name implements engine.Stage.
func (ContributionStage) Name() string { return StageContribution }

// Requires implements engine.Stage.
func (ContributionStage) Requires() []string {
	return []string{StageTermination, StageHiring, StageNewHireTermination, StagePromotion, StageMerit, StageEnrollment}
}

// Generate implements engine.Stage.
func (ContributionStage) Generate(ctx context.Context, in *engine.StageInput) ([]engine.Event, error) {
	byEmployee := make(map[string][]engine.Event)
	for _, e := range in.UpstreamAll() {
		byEmployee[e.EmployeeID] = append(byEmployee[e.EmployeeID], e)
	}

	var starts []engine.EmployeeStart
	for _, row := range startingActive(in) {
		starts = append(starts, engine.StartFromRow(&row))
	}
	for _, hire := range in.Upstream(StageHiring) {
		starts = append(starts, engine.StartFromHire(&hire))
	}

	entry := in.Limits.Get(in.Year)
	return forEach(ctx, workers(in), starts, func(start engine.EmployeeStart) ([]engine.Event, error) {
		events := append([]engine.Event(nil), byEmployee[start.EmployeeID]...)
		engine.SortEvents(events)

		tl, err := engine.BuildTimeline(in.Year, start, events)
		if err != nil {
			return nil, err
		}
		if !tl.Participated() {
			return nil, nil
		}

		rec := tl.ContributionRecord(entry)
		amount, _ := rec.ActualContribution.Float64()
		reason := ""
		if rec.IRSLimitApplied {
			reason = "irs_limit_applied"
		}
		return []engine.Event{{
			EmployeeID:         start.EmployeeID,
			SimulationYear:     in.Year,
			Type:               engine.EventTypeContribution,
			EffectiveDate:      tl.AsOf(),
			DeferralRate:       tl.DeferralRate,
			ContributionAmount: amount,
			Reason:             reason,
		}}, nil
	})
}
