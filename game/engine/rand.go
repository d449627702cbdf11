package engine

import "lukechampine.com/frand"

// RandSource supplies the randomness used for tile spawning. *math/rand.Rand
// and *frand.RNG both satisfy it, so tests can inject a seeded source.
type RandSource interface {
	Intn(n int) int
	Float64() float64
}

// frandSource forwards to frand's package-level generator, which is safe for
// concurrent use.
type frandSource struct{}

func (frandSource) Intn(n int) int   { return frand.Intn(n) }
func (frandSource) Float64() float64 { return frand.Float64() }

// DefaultRand returns the process-wide random source
func DefaultRand() RandSource {
	return frandSource{}
}
