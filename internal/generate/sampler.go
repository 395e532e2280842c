package generate

import (
	"math/rand"
	"time"

	"takevault/internal/jobs"
	"takevault/internal/synth"
)

// Sampler draws per-take synthesis parameters uniformly at random from
// configured ranges. The random source is injected so tests can make
// sampling deterministic.
type Sampler struct {
	rng *rand.Rand
}

// NewSampler constructs a sampler seeded from the current time.
func NewSampler() *Sampler {
	return NewSamplerWithSource(rand.NewSource(time.Now().UnixNano()))
}

// NewSamplerWithSource constructs a sampler with an explicit random source.
func NewSamplerWithSource(source rand.Source) *Sampler {
	return &Sampler{rng: rand.New(source)}
}

// SampleParams draws one value from each configured range.
func (s *Sampler) SampleParams(ranges jobs.ParamRanges) synth.Params {
	return synth.Params{
		Stability:  s.sampleWithinRange(ranges.Stability),
		Similarity: s.sampleWithinRange(ranges.Similarity),
		Style:      s.sampleWithinRange(ranges.Style),
		Speed:      s.sampleWithinRange(ranges.Speed),
	}
}

// sampleWithinRange returns a uniform value in [r.Min, r.Max]. A degenerate
// or inverted range collapses to r.Min.
func (s *Sampler) sampleWithinRange(r jobs.Range) float64 {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + s.rng.Float64()*(r.Max-r.Min)
}
