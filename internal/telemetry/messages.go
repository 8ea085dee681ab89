package telemetry

import (
	"encoding/json"

	"github.com/muurk/wstelemetry/internal/clock"
	"github.com/muurk/wstelemetry/internal/device"
	"github.com/muurk/wstelemetry/internal/logging"
)

// Message types
const (
	TypeConnection = "connection"
	TypeSensorData = "sensor_data"
	TypeHeartbeat  = "heartbeat"
)

// Connection is the first message sent on every new connection
type Connection struct {
	Type      string `json:"type"`
	DeviceID  string `json:"device_id"`
	Timestamp int64  `json:"timestamp"`
}

// SensorData reports one sensor reading
type SensorData struct {
	Type       string  `json:"type"`
	DeviceID   string  `json:"device_id"`
	SensorName string  `json:"sensor_name"`
	SensorID   string  `json:"sensor_id"`
	Value      float64 `json:"value"`
	Unit       string  `json:"unit"`
	Timestamp  int64   `json:"timestamp"`
}

// Heartbeat reports liveness
type Heartbeat struct {
	Type      string `json:"type"`
	DeviceID  string `json:"device_id"`
	Timestamp int64  `json:"timestamp"`
	Uptime    uint32 `json:"uptime"`
	FreeHeap  uint64 `json:"free_heap"`
}

// Envelope is the part shared by all messages, used to dispatch on type
type Envelope struct {
	Type     string `json:"type"`
	DeviceID string `json:"device_id"`
}

// Builder stamps and encodes messages for one device.
type Builder struct {
	device device.Context
	mono   clock.Monotonic
	wall   clock.Wall

	warnedUnsynced bool
}

// NewBuilder creates a message builder. wall may be nil.
func NewBuilder(dev device.Context, mono clock.Monotonic, wall clock.Wall) *Builder {
	return &Builder{device: dev, mono: mono, wall: wall}
}

// DeviceID returns the device identifier stamped on messages.
func (b *Builder) DeviceID() string {
	return b.device.ID
}

// Timestamp returns Unix seconds from the wall clock, or the millisecond
// counter when the wall clock is missing or not synchronised.
func (b *Builder) Timestamp() int64 {
	if b.wall != nil {
		if secs, ok := b.wall.Unix(); ok {
			b.warnedUnsynced = false
			return secs
		}
	}
	if !b.warnedUnsynced {
		logging.Warn("Wall clock not synchronised, using uptime milliseconds as timestamp")
		b.warnedUnsynced = true
	}
	return int64(b.mono.Millis())
}

// Connection encodes a connection message.
func (b *Builder) Connection() ([]byte, error) {
	return json.Marshal(Connection{
		Type:      TypeConnection,
		DeviceID:  b.device.ID,
		Timestamp: b.Timestamp(),
	})
}

// SensorData encodes a reading for the given sensor.
func (b *Builder) SensorData(name, sensorID, unit string, value float64) ([]byte, error) {
	return json.Marshal(SensorData{
		Type:       TypeSensorData,
		DeviceID:   b.device.ID,
		SensorName: name,
		SensorID:   sensorID,
		Value:      value,
		Unit:       unit,
		Timestamp:  b.Timestamp(),
	})
}

// Heartbeat encodes a heartbeat with the current uptime and free memory.
func (b *Builder) Heartbeat() ([]byte, error) {
	return json.Marshal(Heartbeat{
		Type:      TypeHeartbeat,
		DeviceID:  b.device.ID,
		Timestamp: b.Timestamp(),
		Uptime:    b.mono.Millis(),
		FreeHeap:  b.device.Free(),
	})
}

// Peek decodes the envelope of an encoded message.
func Peek(data []byte) (Envelope, error) {
	var env Envelope
	err := json.Unmarshal(data, &env)
	return env, err
}
