package engine

import (
	"hash/fnv"
	"math/rand/v2"
	"strconv"
)

// Streams derives independent, reproducible random streams from the run seed.
// A stream is keyed by year, stage and an arbitrary key (usually an employee
// ID), so the draws an employee receives do not depend on how work is split
// across goroutines.
type Streams struct {
	seed int64
}

// NewStreams returns the stream family for seed.
func NewStreams(seed int64) Streams {
	return Streams{seed: seed}
}

// Seed returns the run seed.
func (s Streams) Seed() int64 {
	return s.seed
}

// For returns a new generator for (year, stage, key). The generator is not
// safe for concurrent use; callers take one per goroutine.
func (s Streams) For(year int, stage, key string) *rand.Rand {
	hi := s.hash(year, stage, key, "hi")
	lo := s.hash(year, stage, key, "lo")
	return rand.New(rand.NewPCG(hi, lo))
}

func (s Streams) hash(year int, stage, key, salt string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(strconv.FormatInt(s.seed, 10)))
	h.Write([]byte{'|'})
	h.Write([]byte(strconv.Itoa(year)))
	h.Write([]byte{'|'})
	h.Write([]byte(stage))
	h.Write([]byte{'|'})
	h.Write([]byte(key))
	h.Write([]byte{'|'})
	h.Write([]byte(salt))
	return h.Sum64()
}
