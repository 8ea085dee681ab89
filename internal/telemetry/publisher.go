package telemetry

import (
	"math"

	"github.com/muurk/wstelemetry/internal/logging"
	"github.com/muurk/wstelemetry/internal/sensor"
	"go.uber.org/zap"
)

// ChangeThreshold is the minimum absolute change between reported values
const ChangeThreshold = 0.01

// Link is the connection the publisher sends through.
type Link interface {
	// Send writes one text message. It fails when the connection is not open
	// or the write did not complete.
	Send(payload []byte) error
	// IsOpen reports whether the connection is open for application messages
	IsOpen() bool
}

// Binding tracks one registered sensor.
type Binding struct {
	Name     string
	SensorID string
	Unit     string

	last float64
	sub  sensor.Subscription
}

// LastReported returns the last value successfully sent, or NaN.
func (b *Binding) LastReported() float64 {
	return b.last
}

// changed applies the NaN and change-threshold rules against ref, the
// value the server will have seen last. NaN ref means nothing yet.
func changed(value, ref float64) bool {
	if math.IsNaN(value) {
		return false
	}
	return math.IsNaN(ref) || math.Abs(value-ref) > ChangeThreshold
}

type queued struct {
	binding *Binding
	value   float64
	payload []byte
}

// Stats counts publisher outcomes
type Stats struct {
	Sent       uint64
	Suppressed uint64
	Dropped    uint64
	Queued     uint64
	Failed     uint64
}

// Publisher turns sensor notifications into sensor_data messages.
type Publisher struct {
	link      Link
	msgs      *Builder
	bindings  []*Binding
	queue     []queued
	queueSize int
	stats     Stats
}

// NewPublisher creates a publisher sending through link. queueSize > 0
// keeps up to that many readings while the link is not open.
func NewPublisher(link Link, msgs *Builder, queueSize int) *Publisher {
	if queueSize < 0 {
		queueSize = 0
	}
	return &Publisher{link: link, msgs: msgs, queueSize: queueSize}
}

// Register subscribes to s under the given display name. The subscription is
// released by Close.
func (p *Publisher) Register(s sensor.Sensor, name string) *Binding {
	meta := s.Metadata()
	if name == "" {
		name = meta.Name
	}
	b := &Binding{
		Name:     name,
		SensorID: meta.ID,
		Unit:     meta.Unit,
		last:     math.NaN(),
	}
	b.sub = s.Subscribe(func(value float64) {
		p.OnValue(b, value)
	})
	p.bindings = append(p.bindings, b)

	logging.Debug("Sensor registered",
		zap.String("sensor_name", name),
		zap.String("sensor_id", meta.ID),
		zap.String("unit", meta.Unit),
	)
	return b
}

// Bindings returns the registered sensors in registration order.
func (p *Publisher) Bindings() []*Binding {
	return p.bindings
}

// Stats returns a copy of the counters.
func (p *Publisher) Stats() Stats {
	return p.stats
}

// QueueLen returns the number of readings waiting for a connection.
func (p *Publisher) QueueLen() int {
	return len(p.queue)
}

// OnValue handles a notification for b and reports whether a message was
// sent.
func (p *Publisher) OnValue(b *Binding, value float64) bool {
	logging.Debug("Sensor value received",
		zap.String("sensor_name", b.Name),
		zap.Float64("value", value),
	)

	if !changed(value, p.reference(b)) {
		p.stats.Suppressed++
		return false
	}

	payload, err := p.msgs.SensorData(b.Name, b.SensorID, b.Unit, value)
	if err != nil {
		logging.Error("Failed to encode sensor data",
			zap.String("sensor_name", b.Name),
			zap.Error(err),
		)
		p.stats.Failed++
		return false
	}

	if !p.link.IsOpen() {
		p.hold(b, value, payload)
		return false
	}

	return p.send(b, value, payload)
}

// reference is the newest queued value for b, or its last sent value when
// nothing is queued.
func (p *Publisher) reference(b *Binding) float64 {
	for i := len(p.queue) - 1; i >= 0; i-- {
		if p.queue[i].binding == b {
			return p.queue[i].value
		}
	}
	return b.last
}

func (p *Publisher) send(b *Binding, value float64, payload []byte) bool {
	if err := p.link.Send(payload); err != nil {
		logging.Warn("Failed to send sensor data",
			zap.String("sensor_name", b.Name),
			zap.Error(err),
		)
		p.stats.Failed++
		return false
	}

	b.last = value
	p.stats.Sent++
	logging.Info("Sensor data sent",
		zap.String("sensor_name", b.Name),
		zap.Float64("value", value),
	)
	return true
}

func (p *Publisher) hold(b *Binding, value float64, payload []byte) {
	if p.queueSize == 0 {
		p.stats.Dropped++
		logging.Debug("Connection not open, dropping sensor data",
			zap.String("sensor_name", b.Name),
		)
		return
	}

	if len(p.queue) == p.queueSize {
		p.queue = p.queue[1:]
		p.stats.Dropped++
	}
	p.queue = append(p.queue, queued{binding: b, value: value, payload: payload})
	p.stats.Queued++
}

// Flush sends held readings in arrival order. It stops at the first failure
// and keeps the unsent remainder. It returns the number sent.
func (p *Publisher) Flush() int {
	sent := 0
	for len(p.queue) > 0 && p.link.IsOpen() {
		q := p.queue[0]
		if !p.send(q.binding, q.value, q.payload) {
			break
		}
		p.queue = p.queue[1:]
		sent++
	}
	if sent > 0 {
		logging.Info("Flushed queued sensor data", zap.Int("count", sent))
	}
	return sent
}

// Close cancels every sensor subscription and drops queued readings.
func (p *Publisher) Close() {
	for _, b := range p.bindings {
		if b.sub != nil {
			b.sub.Cancel()
			b.sub = nil
		}
	}
	p.queue = nil
}
