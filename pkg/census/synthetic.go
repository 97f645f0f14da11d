package census

import (
	"context"
	"fmt"
	"math"

	"github.com/workforcesim/workforcesim/pkg/engine"
)

const syntheticStream = "census"

// participationRates are the deferral rates synthetic participants choose from.
var participationRates = []float64{0.03, 0.04, 0.06, 0.08, 0.10}

// SyntheticSource generates a reproducible population for demos and tests.
type SyntheticSource struct {
	Size   int
	Seed   int64
	Levels []engine.LevelConfig

	// ParticipationRate is the share of employees enrolled in the plan.
	ParticipationRate float64
}

var _ engine.CensusSource = (*SyntheticSource)(nil)

// NewSyntheticSource creates a synthetic census of size employees spread over
// levels by hire weight.
func NewSyntheticSource(size int, seed int64, levels []engine.LevelConfig) *SyntheticSource {
	return &SyntheticSource{Size: size, Seed: seed, Levels: levels, ParticipationRate: 0.6}
}

// Load generates the population as the year-end snapshot of year.
func (s *SyntheticSource) Load(_ context.Context, year int) (*engine.Snapshot, error) {
	records, err := s.Records(year)
	if err != nil {
		return nil, err
	}
	return Snapshot(year, records), nil
}

// Records generates the census records for year.
func (s *SyntheticSource) Records(year int) ([]Record, error) {
	if s.Size <= 0 {
		return nil, engine.NewConfigurationError(fmt.Sprintf("synthetic census size must be positive, got %d", s.Size))
	}
	if len(s.Levels) == 0 {
		return nil, engine.NewConfigurationError("synthetic census needs at least one level")
	}
	total := 0.0
	for _, l := range s.Levels {
		total += l.HireWeight
	}
	if total <= 0 {
		return nil, engine.NewConfigurationError("synthetic census needs a positive level weight")
	}

	rng := engine.NewStreams(s.Seed).For(year, syntheticStream, "population")
	yearEnd := engine.YearEnd(year)
	records := make([]Record, 0, s.Size)

	for i := 0; i < s.Size; i++ {
		level := s.Levels[len(s.Levels)-1]
		pick := rng.Float64() * total
		for _, l := range s.Levels {
			if pick < l.HireWeight {
				level = l
				break
			}
			pick -= l.HireWeight
		}

		age := 22 + rng.IntN(43)
		birth := yearEnd.AddDate(-age, 0, -rng.IntN(365))
		maxTenure := min(age-18, 35)
		hire := yearEnd.AddDate(-rng.IntN(maxTenure+1), 0, -rng.IntN(365))
		if !hire.After(birth) {
			hire = birth.AddDate(18, 0, 0)
		}

		comp := level.MinCompensation + rng.Float64()*(level.MaxCompensation-level.MinCompensation)
		rec := Record{
			EmployeeID:   fmt.Sprintf("EMP%06d", i+1),
			BirthDate:    engine.Day(birth),
			HireDate:     engine.Day(hire),
			LevelID:      level.ID,
			Compensation: math.Round(comp*100) / 100,
		}
		if rng.Float64() < s.ParticipationRate {
			rec.DeferralRate = participationRates[rng.IntN(len(participationRates))]
		}
		records = append(records, rec)
	}
	return records, nil
}
