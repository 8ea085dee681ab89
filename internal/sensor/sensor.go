package sensor

import (
	"math"
	"sync"
)

// Metadata describes a sensor to telemetry consumers
type Metadata struct {
	ID   string // stable identifier, reported as sensor_id
	Name string // display name
	Unit string // unit of measurement, may be empty
}

// Sensor is a source of value-change notifications.
type Sensor interface {
	Metadata() Metadata
	Subscribe(fn func(value float64)) Subscription
}

// Subscription is a handle returned by Subscribe. Cancel stops delivery and
// may be called more than once.
type Subscription interface {
	Cancel()
}

// Source is a Sensor that produces a new reading when sampled.
type Source interface {
	Sensor
	Sample()
}

// Notifier fans a value out to subscribers. Embed it to implement Subscribe.
type Notifier struct {
	mu   sync.Mutex
	next int
	subs map[int]func(float64)
}

// Subscribe registers fn and returns a handle that removes it.
func (n *Notifier) Subscribe(fn func(value float64)) Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.subs == nil {
		n.subs = make(map[int]func(float64))
	}
	id := n.next
	n.next++
	n.subs[id] = fn
	return &subscription{n: n, id: id}
}

// Publish delivers value to every current subscriber, in subscription order.
func (n *Notifier) Publish(value float64) {
	n.mu.Lock()
	fns := make([]func(float64), 0, len(n.subs))
	for id := 0; id < n.next; id++ {
		if fn, ok := n.subs[id]; ok {
			fns = append(fns, fn)
		}
	}
	n.mu.Unlock()

	for _, fn := range fns {
		fn(value)
	}
}

// Subscribers returns the number of active subscriptions.
func (n *Notifier) Subscribers() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs)
}

type subscription struct {
	once sync.Once
	n    *Notifier
	id   int
}

func (s *subscription) Cancel() {
	s.once.Do(func() {
		s.n.mu.Lock()
		delete(s.n.subs, s.id)
		s.n.mu.Unlock()
	})
}

// Static is a sensor whose value is set by hand. Set publishes immediately.
type Static struct {
	Notifier
	meta  Metadata
	value float64
}

// NewStatic creates a manual sensor with no reading (NaN).
func NewStatic(meta Metadata) *Static {
	return &Static{meta: meta, value: math.NaN()}
}

// Metadata returns the sensor description
func (s *Static) Metadata() Metadata { return s.meta }

// Set records and publishes value.
func (s *Static) Set(value float64) {
	s.value = value
	s.Publish(value)
}

// Value returns the last value set.
func (s *Static) Value() float64 { return s.value }
