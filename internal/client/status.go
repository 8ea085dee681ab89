package client

import (
	"fmt"
	"math"
	"strings"

	"github.com/muurk/wstelemetry/internal/clock"
	"github.com/muurk/wstelemetry/internal/telemetry"
	"github.com/muurk/wstelemetry/internal/urls"
)

// Stats counts connection activity
type Stats struct {
	Attempts       uint64
	Connects       uint64
	Failures       uint64
	MessagesSent   uint64
	Heartbeats     uint64
	EventsReceived uint64
	BytesSent      uint64
	LastError      string
}

// SensorStatus describes one registered sensor
type SensorStatus struct {
	Name         string
	SensorID     string
	Unit         string
	LastReported float64
}

// Snapshot is a point-in-time view of the client for status displays
type Snapshot struct {
	URL         string
	Endpoint    urls.Endpoint
	Configured  bool
	ConfigError string

	State       State
	ReconnectMs uint32
	HeartbeatMs uint32
	RetryInMs   uint32 // Disconnected only
	OpenForMs   uint32 // Open only

	Stats     Stats
	Publisher telemetry.Stats
	QueueLen  int
	Sensors   []SensorStatus
}

// Snapshot returns the current status.
func (c *Client) Snapshot() Snapshot {
	now := c.opts.Clock.Millis()
	s := Snapshot{
		URL:         c.url,
		Endpoint:    c.endpoint,
		Configured:  c.configured,
		State:       c.state,
		ReconnectMs: c.reconnectMs,
		HeartbeatMs: c.heartbeatMs,
		Stats:       c.stats,
		Publisher:   c.publisher.Stats(),
		QueueLen:    c.publisher.QueueLen(),
	}
	if c.configErr != nil {
		s.ConfigError = c.configErr.Error()
	}

	switch c.state {
	case Disconnected:
		if c.configured && c.attempted {
			elapsed := clock.Since(now, c.lastAttempt)
			if elapsed < c.retryDelay {
				s.RetryInMs = c.retryDelay - elapsed
			}
		}
	case Open:
		s.OpenForMs = clock.Since(now, c.openedAt)
	}

	for _, b := range c.publisher.Bindings() {
		s.Sensors = append(s.Sensors, SensorStatus{
			Name:         b.Name,
			SensorID:     b.SensorID,
			Unit:         b.Unit,
			LastReported: b.LastReported(),
		})
	}
	return s
}

// DumpStatus returns a multi-line diagnostic description of the client.
func (c *Client) DumpStatus() string {
	return c.Snapshot().String()
}

// String formats the snapshot as indented text.
func (s Snapshot) String() string {
	var b strings.Builder

	b.WriteString("WebSocket Client:\n")
	fmt.Fprintf(&b, "  URL: %s\n", s.URL)
	if s.ConfigError != "" {
		fmt.Fprintf(&b, "  Config Error: %s\n", s.ConfigError)
	} else if s.Configured {
		fmt.Fprintf(&b, "  Host: %s\n", s.Endpoint.Host)
		fmt.Fprintf(&b, "  Port: %d\n", s.Endpoint.Port)
		fmt.Fprintf(&b, "  Path: %s\n", s.Endpoint.Path)
		fmt.Fprintf(&b, "  SSL: %s\n", yesNo(s.Endpoint.Secure()))
	}
	fmt.Fprintf(&b, "  Reconnect Interval: %d ms\n", s.ReconnectMs)
	fmt.Fprintf(&b, "  Heartbeat Interval: %d ms\n", s.HeartbeatMs)

	fmt.Fprintf(&b, "  State: %s", s.State)
	switch {
	case s.State == Open:
		fmt.Fprintf(&b, " (for %d ms)", s.OpenForMs)
	case s.State == Disconnected && s.RetryInMs > 0:
		fmt.Fprintf(&b, " (retry in %d ms)", s.RetryInMs)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "  Attempts: %d, Connects: %d, Failures: %d\n",
		s.Stats.Attempts, s.Stats.Connects, s.Stats.Failures)
	fmt.Fprintf(&b, "  Messages Sent: %d (heartbeats %d), Bytes Sent: %d\n",
		s.Stats.MessagesSent, s.Stats.Heartbeats, s.Stats.BytesSent)
	fmt.Fprintf(&b, "  Readings: sent %d, suppressed %d, dropped %d, queued %d\n",
		s.Publisher.Sent, s.Publisher.Suppressed, s.Publisher.Dropped, s.QueueLen)
	if s.Stats.LastError != "" {
		fmt.Fprintf(&b, "  Last Error: %s\n", s.Stats.LastError)
	}

	b.WriteString("  Sensors:\n")
	if len(s.Sensors) == 0 {
		b.WriteString("    (none)\n")
	}
	for _, sensor := range s.Sensors {
		fmt.Fprintf(&b, "    - %s (%s)", sensor.Name, sensor.SensorID)
		if !math.IsNaN(sensor.LastReported) {
			fmt.Fprintf(&b, " last=%.2f%s", sensor.LastReported, sensor.Unit)
		}
		b.WriteString("\n")
	}

	return b.String()
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
