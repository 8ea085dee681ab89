package discovery

import (
	"fmt"
	"strings"
	"time"
)

// Collector represents a telemetry endpoint found on the network
type Collector struct {
	// Instance is the advertised service instance name
	Instance string

	// Hostname is the mDNS hostname (e.g., "collector.local.")
	Hostname string

	// IP is the address to connect to, IPv4 preferred
	IP string

	// Port is the TCP port of the WebSocket endpoint
	Port int

	// Path is the request path from the "path" TXT record
	Path string

	// Secure is set by the "tls=1" TXT record
	Secure bool

	// Metadata contains all mDNS TXT record data
	Metadata map[string]string

	// DiscoveredAt is when the collector was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the collector
func (c *Collector) String() string {
	return fmt.Sprintf("%s (%s) at %s", c.Instance, c.Hostname, c.URL())
}

// URL returns the ws:// or wss:// URL for the collector.
func (c *Collector) URL() string {
	scheme := "ws"
	if c.Secure {
		scheme = "wss"
	}
	path := c.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return fmt.Sprintf("%s://%s:%d%s", scheme, c.IP, c.Port, path)
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (c *Collector) GetMetadata(key string) string {
	if c.Metadata == nil {
		return ""
	}
	return c.Metadata[key]
}

// TXTRecords builds the TXT records advertising path and TLS.
func TXTRecords(path string, secure bool) []string {
	if path == "" {
		path = "/"
	}
	txt := []string{"path=" + path}
	if secure {
		txt = append(txt, "tls=1")
	}
	return txt
}
