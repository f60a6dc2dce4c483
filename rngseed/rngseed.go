// Package rngseed seeds a set of independently owned random number
// generators in one call, for reproducible experiments.
//
// There is no global state here: callers construct their generator handles
// (general-purpose, array-numeric, tensor-numeric or whatever the experiment
// uses), own their lifecycle and pass them in explicitly.
package rngseed

// Source is any random number generator that can be re-seeded.
// *math/rand.Rand satisfies it directly.
type Source interface {
	Seed(seed int64)
}

// Func adapts a plain function to the Source interface, for generators whose
// seeding entry point is not a method.
type Func func(seed int64)

// Seed calls f.
func (f Func) Seed(seed int64) { f(seed) }

// All seeds every given source with the same seed. Nil sources are skipped,
// so callers can pass optional handles unconditionally.
func All(seed int64, sources ...Source) {
	for _, src := range sources {
		if src != nil {
			src.Seed(seed)
		}
	}
}
