package sensor

import (
	"github.com/muurk/wstelemetry/internal/clock"
)

type scheduled struct {
	src      Source
	interval uint32
	last     uint32
	sampled  bool
}

// Sampler polls sources at their own intervals. It is driven from the host
// loop and never blocks.
type Sampler struct {
	clock   clock.Monotonic
	entries []*scheduled
}

// NewSampler creates a sampler using c for scheduling.
func NewSampler(c clock.Monotonic) *Sampler {
	return &Sampler{clock: c}
}

// Add schedules src every intervalMs milliseconds. The first Poll samples it
// immediately.
func (s *Sampler) Add(src Source, intervalMs uint32) {
	s.entries = append(s.entries, &scheduled{src: src, interval: intervalMs})
}

// Len returns the number of scheduled sources.
func (s *Sampler) Len() int { return len(s.entries) }

// Poll samples every source whose interval has elapsed and returns how many
// were sampled.
func (s *Sampler) Poll() int {
	now := s.clock.Millis()
	n := 0
	for _, e := range s.entries {
		if e.sampled && !clock.Elapsed(now, e.last, e.interval) {
			continue
		}
		e.sampled = true
		e.last = now
		e.src.Sample()
		n++
	}
	return n
}
