package generators

import (
	"context"
	"fmt"

	"github.com/workforcesim/workforcesim/pkg/engine"
)

// HiringStage sizes the hiring quota from the experienced terminations and the
// growth target, then draws each hire's level, compensation, birth date and
// hire date.
type HiringStage struct{}

// Name implements engine.Stage.
func (HiringStage) Name() string { return StageHiring }

// Requires implements engine.Stage.
func (HiringStage) Requires() []string { return []string{StageTermination} }

// Generate implements engine.Stage.
func (HiringStage) Generate(ctx context.Context, in *engine.StageInput) ([]engine.Event, error) {
	cfg := in.Config
	workforce := len(startingActive(in))

	if workforce == 0 && cfg.TargetGrowthRate > 0 {
		return nil, engine.NewInsufficientPopulationError(in.Year, StageHiring, 0, 1)
	}

	terminations := len(in.Upstream(StageTermination))
	hires, err := HiresNeeded(terminations, workforce, cfg.TargetGrowthRate, cfg.NewHireTerminationRate)
	if err != nil {
		return nil, err
	}

	ids := newHireIDs(in, hires)
	return forEach(ctx, workers(in), ids, func(id string) ([]engine.Event, error) {
		return []engine.Event{drawHire(in, id)}, nil
	})
}

// newHireIDs returns n IDs of the form NH_<year>_<seq> that do not collide
// with any employee in the prior snapshot.
func newHireIDs(in *engine.StageInput, n int) []string {
	taken := make(map[string]bool)
	if in.Prior != nil {
		for _, row := range in.Prior.Rows {
			taken[row.EmployeeID] = true
		}
	}

	ids := make([]string, 0, n)
	for seq := 1; len(ids) < n; seq++ {
		id := fmt.Sprintf("NH_%d_%06d", in.Year, seq)
		if taken[id] {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func drawHire(in *engine.StageInput, id string) engine.Event {
	cfg := in.Config
	r := in.Streams.For(in.Year, StageHiring, id)

	level := pickLevel(cfg.Levels, r.Float64())
	base := level.MinCompensation + r.Float64()*(level.MaxCompensation-level.MinCompensation)
	comp := roundCents(base * cfg.NewHireSalaryAdjustment)

	hireDate := randomDate(r, engine.YearStart(in.Year), engine.YearEnd(in.Year))

	age := cfg.NewHireMinAge + r.IntN(cfg.NewHireMaxAge-cfg.NewHireMinAge+1)
	birth := hireDate.AddDate(-age, 0, -r.IntN(365))

	return engine.Event{
		EmployeeID:     id,
		SimulationYear: in.Year,
		Type:           engine.EventTypeHire,
		EffectiveDate:  hireDate,
		Compensation:   comp,
		LevelID:        level.ID,
		BirthDate:      &birth,
		Reason:         "new_hire",
	}
}

// pickLevel maps u in [0, 1) onto levels proportionally to their hire weight.
func pickLevel(levels []engine.LevelConfig, u float64) engine.LevelConfig {
	total := 0.0
	for _, l := range levels {
		total += l.HireWeight
	}
	target := u * total
	acc := 0.0
	last := levels[0]
	for _, l := range levels {
		if l.HireWeight <= 0 {
			continue
		}
		acc += l.HireWeight
		last = l
		if target < acc {
			return l
		}
	}
	return last
}
