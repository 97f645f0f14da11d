package generators

import (
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/workforcesim/workforcesim/pkg/engine"
)

type candidate struct {
	id  string
	key float64
}

// selectWeighted picks k IDs without replacement, favouring higher weights.
// Each candidate's key is log(u)/w with u drawn from its own stream
// (Efraimidis-Spirakis), so the selection does not depend on iteration order.
// Zero-weight candidates are only picked once every weighted one is taken.
func selectWeighted(ids []string, weight func(id string) float64, draw func(id string) float64, k int) map[string]bool {
	if k <= 0 {
		return map[string]bool{}
	}

	cands := make([]candidate, len(ids))
	for i, id := range ids {
		w := weight(id)
		u := draw(id)
		key := math.Inf(-1)
		if w > 0 {
			key = math.Log(u) / w
		}
		cands[i] = candidate{id: id, key: key}
	}

	sort.Slice(cands, func(i, j int) bool {
		if cands[i].key != cands[j].key {
			return cands[i].key > cands[j].key
		}
		return cands[i].id < cands[j].id
	})

	if k > len(cands) {
		k = len(cands)
	}
	picked := make(map[string]bool, k)
	for _, c := range cands[:k] {
		picked[c.id] = true
	}
	return picked
}

// unitDraw returns u in (0, 1].
func unitDraw(r *rand.Rand) float64 {
	return 1 - r.Float64()
}

// randomDate returns a uniformly drawn day in [from, through].
func randomDate(r *rand.Rand, from, through time.Time) time.Time {
	days := engine.DaysInclusive(from, through)
	if days <= 1 {
		return engine.Day(from)
	}
	return engine.Day(from).AddDate(0, 0, r.IntN(days))
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

func roundRate(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
