package client

import (
	"io"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/muurk/wstelemetry/internal/clock"
	"github.com/muurk/wstelemetry/internal/device"
	"github.com/muurk/wstelemetry/internal/protocol"
	"github.com/muurk/wstelemetry/internal/transport"
)

const (
	// DefaultReconnectInterval is the minimum time between connection attempts
	DefaultReconnectInterval = 5000

	// DefaultHeartbeatInterval is the time between heartbeats while open
	DefaultHeartbeatInterval = 30000

	// DefaultHandshakeTimeout abandons a connection that does not open in time
	DefaultHandshakeTimeout = 10000

	// DefaultMaxBackoff caps the exponential reconnect interval
	DefaultMaxBackoff = 60000

	// DefaultReadsPerTick bounds inbound reads serviced in one tick
	DefaultReadsPerTick = 16

	readBufferSize = 4096
)

// Backoff strategies
const (
	BackoffFixed       = "fixed"
	BackoffExponential = "exponential"
)

// Options are the collaborators and tunables of a Client. Zero values select
// the host implementations and defaults.
type Options struct {
	Dialer transport.Dialer
	Link   transport.Link
	Clock  clock.Monotonic
	Wall   clock.Wall
	Device device.Context

	// Rand supplies handshake keys and frame masks. Nil means crypto/rand.
	Rand io.Reader

	AcceptPolicy protocol.AcceptPolicy

	// HandshakeTimeoutMs bounds Connecting plus HandshakePending. Zero
	// selects DefaultHandshakeTimeout, a negative value disables it.
	HandshakeTimeoutMs int

	MaxHeaderBytes  int
	MaxMessageBytes int

	// QueueSize > 0 holds readings while not open and flushes them after
	// the connection message.
	QueueSize int

	// Backoff is BackoffFixed (default) or BackoffExponential.
	Backoff      string
	MaxBackoffMs uint32

	ReadsPerTick int

	// OnOpen is called after the connection message was sent
	OnOpen func()
	// OnClose is called when an open connection ends, with the cause
	OnClose func(err error)
	// OnMessage receives text and binary messages from the server
	OnMessage func(opcode protocol.Opcode, payload []byte)
}

func (o *Options) setDefaults() {
	if o.Dialer == nil {
		o.Dialer = transport.NewTCPDialer(nil)
	}
	if o.Link == nil {
		o.Link = transport.Always{}
	}
	if o.Clock == nil {
		o.Clock = clock.NewSystem()
	}
	if o.Device.ID == "" {
		o.Device.ID = device.Hostname()
	}
	if o.HandshakeTimeoutMs == 0 {
		o.HandshakeTimeoutMs = DefaultHandshakeTimeout
	}
	if o.MaxHeaderBytes <= 0 {
		o.MaxHeaderBytes = protocol.DefaultMaxHeaderBytes
	}
	if o.MaxMessageBytes <= 0 {
		o.MaxMessageBytes = protocol.DefaultMaxMessageSize
	}
	if o.Backoff == "" {
		o.Backoff = BackoffFixed
	}
	if o.MaxBackoffMs == 0 {
		o.MaxBackoffMs = DefaultMaxBackoff
	}
	if o.ReadsPerTick <= 0 {
		o.ReadsPerTick = DefaultReadsPerTick
	}
}

// newBackOff builds the reconnect policy. Fixed waits the reconnect interval
// every time; exponential grows from it with jitter up to maxMs.
func newBackOff(strategy string, reconnectMs, maxMs uint32) backoff.BackOff {
	interval := time.Duration(reconnectMs) * time.Millisecond
	if strategy != BackoffExponential {
		return backoff.NewConstantBackOff(interval)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = interval
	b.MaxInterval = time.Duration(maxMs) * time.Millisecond
	if b.MaxInterval < interval {
		b.MaxInterval = interval
	}
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// delayMillis converts a backoff step to milliseconds within
// [floorMs, capMs]. Stop is treated as the cap so the client never gives up.
func delayMillis(d time.Duration, floorMs, capMs uint32) uint32 {
	if d == backoff.Stop || d < 0 {
		return capMs
	}
	ms := d.Milliseconds()
	if ms < int64(floorMs) {
		return floorMs
	}
	if ms > int64(capMs) {
		return capMs
	}
	return uint32(ms)
}
