package sensor

import (
	"math"
	"math/rand"
)

// Simulated is a random walk bounded by [Min, Max]. Each Sample moves the
// value by at most Step in either direction.
type Simulated struct {
	Notifier
	meta  Metadata
	min   float64
	max   float64
	step  float64
	value float64
	rng   *rand.Rand
}

// NewSimulated creates a random-walk sensor starting at the midpoint of the
// range. seed makes the walk reproducible.
func NewSimulated(meta Metadata, min, max, step float64, seed int64) *Simulated {
	if max < min {
		min, max = max, min
	}
	return &Simulated{
		meta:  meta,
		min:   min,
		max:   max,
		step:  math.Abs(step),
		value: min + (max-min)/2,
		rng:   rand.New(rand.NewSource(seed)),
	}
}

// Metadata returns the sensor description
func (s *Simulated) Metadata() Metadata { return s.meta }

// Sample advances the walk and publishes the new value.
func (s *Simulated) Sample() {
	delta := (s.rng.Float64()*2 - 1) * s.step
	s.value = math.Min(s.max, math.Max(s.min, s.value+delta))
	s.Publish(s.value)
}

// Value returns the current walk position.
func (s *Simulated) Value() float64 { return s.value }
