package genetics

import "math/rand/v2"

// NewRand returns the run's deterministic generator for a seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// UniformInt draws an integer from the inclusive range [lo, hi].
func UniformInt(rng *rand.Rand, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + rng.IntN(hi-lo+1)
}

// Choice returns a uniformly random element of items.
func Choice[T any](rng *rand.Rand, items []T) T {
	return items[rng.IntN(len(items))]
}

// Shuffled returns a shuffled copy of items.
func Shuffled[T any](rng *rand.Rand, items []T) []T {
	out := make([]T, len(items))
	copy(out, items)
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}
