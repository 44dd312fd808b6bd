package pipeline

import "math/rand/v2"

const (
	synthCeiling = 0.99
	synthMinStep = 0.04
	synthMaxStep = 0.18
)

// Synthesizer produces a plausible progress curve for units that cannot
// measure their own. Each step covers a random share of the remaining gap to
// 99%, so the value keeps rising without ever reaching completion.
type Synthesizer struct {
	rng   *rand.Rand
	value float64
}

// NewSynthesizer returns a synthesizer drawing from rng. A nil rng uses the
// package-level source.
func NewSynthesizer(rng *rand.Rand) *Synthesizer {
	return &Synthesizer{rng: rng}
}

// Next advances and returns the synthesized fraction.
func (s *Synthesizer) Next() float64 {
	gap := synthCeiling - s.value
	if gap <= 0 {
		return s.value
	}
	share := synthMinStep + s.float()*(synthMaxStep-synthMinStep)
	s.value += gap * share
	if s.value > synthCeiling {
		s.value = synthCeiling
	}
	return s.value
}

// Value returns the last synthesized fraction.
func (s *Synthesizer) Value() float64 {
	return s.value
}

// Reset starts the curve over for the next job.
func (s *Synthesizer) Reset() {
	s.value = 0
}

func (s *Synthesizer) float() float64 {
	if s.rng == nil {
		return rand.Float64()
	}
	return s.rng.Float64()
}
