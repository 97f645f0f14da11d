package generators

import (
	"time"

	"github.com/workforcesim/workforcesim/pkg/engine"
)

// Stage names.
const (
	StageTermination        = "termination"
	StageHiring             = "hiring"
	StageNewHireTermination = "new_hire_termination"
	StagePromotion          = "promotion"
	StageMerit              = "merit"
	StageEnrollment         = "enrollment"
	StageContribution       = "contribution"
)

// DefaultStages returns the full generator pipeline.
func DefaultStages() []engine.Stage {
	return []engine.Stage{
		TerminationStage{},
		HiringStage{},
		NewHireTerminationStage{},
		PromotionStage{},
		MeritStage{},
		EnrollmentStage{},
		ContributionStage{},
	}
}

// NewPipeline builds the default pipeline.
func NewPipeline(hooks engine.StageHooks) (*engine.Pipeline, error) {
	return engine.NewPipeline(DefaultStages(), hooks)
}

// startingActive returns the active rows of the prior snapshot.
func startingActive(in *engine.StageInput) []engine.SnapshotRow {
	return in.Prior.Active()
}

// terminationDates indexes termination events from the given stages by employee.
func terminationDates(in *engine.StageInput, stages ...string) map[string]time.Time {
	out := make(map[string]time.Time)
	for _, s := range stages {
		for _, e := range in.Upstream(s) {
			if e.Type == engine.EventTypeTermination {
				out[e.EmployeeID] = engine.Day(e.EffectiveDate)
			}
		}
	}
	return out
}

// terminatedBy reports whether the employee leaves on or before date.
func terminatedBy(terms map[string]time.Time, id string, date time.Time) bool {
	t, ok := terms[id]
	return ok && !t.After(date)
}

func workers(in *engine.StageInput) int {
	if in.Config.Workers < 1 {
		return 1
	}
	return in.Config.Workers
}
