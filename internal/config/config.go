package config

import (
	"fmt"

	"github.com/muurk/wstelemetry/internal/protocol"
	"github.com/muurk/wstelemetry/internal/urls"
	"github.com/muurk/wstelemetry/internal/wserr"
	"go.uber.org/multierr"
)

// CurrentVersion is the config file format version
const CurrentVersion = 1

// Defaults
const (
	DefaultReconnectIntervalMs = 5000
	DefaultHeartbeatIntervalMs = 30000
	DefaultHandshakeTimeoutMs  = 10000
	DefaultTickIntervalMs      = 100
	DefaultMaxHeaderBytes      = 4096
	DefaultMaxMessageBytes     = 65536
	DefaultMaxBackoffMs        = 60000
	DefaultSensorIntervalMs    = 10000
)

// Sensor kinds
const (
	SensorSimulated = "sim"
	SensorFile      = "file"
)

// Config is the client configuration file.
type Config struct {
	Version  int    `yaml:"version"`
	URL      string `yaml:"url"`
	DeviceID string `yaml:"device_id,omitempty"` // defaults to the hostname

	ReconnectIntervalMs uint32 `yaml:"reconnect_interval_ms"`
	HeartbeatIntervalMs uint32 `yaml:"heartbeat_interval_ms"`
	HandshakeTimeoutMs  int    `yaml:"handshake_timeout_ms"` // negative disables
	TickIntervalMs      uint32 `yaml:"tick_interval_ms"`

	MaxHeaderBytes  int `yaml:"max_header_bytes"`
	MaxMessageBytes int `yaml:"max_message_bytes"`

	AcceptKey    string `yaml:"accept_key"` // strict, lenient or off
	Backoff      string `yaml:"backoff"`    // fixed or exponential
	MaxBackoffMs uint32 `yaml:"max_backoff_ms"`
	QueueSize    int    `yaml:"queue_size"`
	Link         string `yaml:"link"` // auto or always

	LogLevel string `yaml:"log_level,omitempty"`
	Discover bool   `yaml:"discover,omitempty"` // find the endpoint via mDNS when url is empty

	TLS     TLS      `yaml:"tls,omitempty"`
	Sensors []Sensor `yaml:"sensors,omitempty"`
}

// TLS configures wss endpoints
type TLS struct {
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify,omitempty"`
	CAFile             string `yaml:"ca_file,omitempty"`
	ServerName         string `yaml:"server_name,omitempty"`
}

// Sensor declares one value source to report
type Sensor struct {
	ID         string  `yaml:"id"`
	Name       string  `yaml:"name"`
	Kind       string  `yaml:"kind"` // sim or file
	Unit       string  `yaml:"unit,omitempty"`
	Path       string  `yaml:"path,omitempty"`  // file sensors
	Scale      float64 `yaml:"scale,omitempty"` // file sensors, 0 means 1
	IntervalMs uint32  `yaml:"interval_ms,omitempty"`
	Min        float64 `yaml:"min,omitempty"`  // sim sensors
	Max        float64 `yaml:"max,omitempty"`  // sim sensors
	Step       float64 `yaml:"step,omitempty"` // sim sensors
}

// Default returns a configuration with every default filled in and no URL.
func Default() *Config {
	c := &Config{Version: CurrentVersion}
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Version == 0 {
		c.Version = CurrentVersion
	}
	if c.ReconnectIntervalMs == 0 {
		c.ReconnectIntervalMs = DefaultReconnectIntervalMs
	}
	if c.HeartbeatIntervalMs == 0 {
		c.HeartbeatIntervalMs = DefaultHeartbeatIntervalMs
	}
	if c.HandshakeTimeoutMs == 0 {
		c.HandshakeTimeoutMs = DefaultHandshakeTimeoutMs
	}
	if c.TickIntervalMs == 0 {
		c.TickIntervalMs = DefaultTickIntervalMs
	}
	if c.MaxHeaderBytes == 0 {
		c.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if c.MaxMessageBytes == 0 {
		c.MaxMessageBytes = DefaultMaxMessageBytes
	}
	if c.AcceptKey == "" {
		c.AcceptKey = protocol.AcceptLenient.String()
	}
	if c.Backoff == "" {
		c.Backoff = "fixed"
	}
	if c.MaxBackoffMs == 0 {
		c.MaxBackoffMs = DefaultMaxBackoffMs
	}
	if c.Link == "" {
		c.Link = "auto"
	}
	for i := range c.Sensors {
		s := &c.Sensors[i]
		if s.Kind == "" {
			s.Kind = SensorSimulated
		}
		if s.IntervalMs == 0 {
			s.IntervalMs = DefaultSensorIntervalMs
		}
		if s.Name == "" {
			s.Name = s.ID
		}
		if s.Kind == SensorSimulated && s.Min == 0 && s.Max == 0 {
			s.Max = 100
		}
		if s.Kind == SensorSimulated && s.Step == 0 {
			s.Step = 1
		}
	}
}

// AcceptPolicy returns the parsed accept-key policy.
func (c *Config) AcceptPolicy() (protocol.AcceptPolicy, error) {
	return protocol.ParseAcceptPolicy(c.AcceptKey)
}

// Validate reports every problem in the configuration at once. An empty URL
// is accepted only when discovery is enabled.
func (c *Config) Validate() error {
	var errs error
	add := func(format string, args ...interface{}) {
		errs = multierr.Append(errs, wserr.NewConfigError("validate_config", fmt.Sprintf(format, args...)))
	}

	if c.Version != CurrentVersion {
		add("unsupported config version: %d (expected %d)", c.Version, CurrentVersion)
	}

	switch {
	case c.URL == "" && !c.Discover:
		add("url is required unless discover is enabled")
	case c.URL != "":
		if _, err := urls.Parse(c.URL); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if _, err := c.AcceptPolicy(); err != nil {
		add("%v", err)
	}
	if c.Backoff != "fixed" && c.Backoff != "exponential" {
		add("unknown backoff %q (expected fixed or exponential)", c.Backoff)
	}
	if c.Link != "auto" && c.Link != "always" {
		add("unknown link mode %q (expected auto or always)", c.Link)
	}
	if c.QueueSize < 0 {
		add("queue_size must not be negative")
	}
	if c.MaxHeaderBytes < 64 {
		add("max_header_bytes %d is too small", c.MaxHeaderBytes)
	}
	if c.MaxMessageBytes < 126 {
		add("max_message_bytes %d is too small", c.MaxMessageBytes)
	}

	seen := make(map[string]bool)
	for i, s := range c.Sensors {
		if s.ID == "" {
			add("sensors[%d]: id is required", i)
		} else if seen[s.ID] {
			add("sensors[%d]: duplicate id %q", i, s.ID)
		}
		seen[s.ID] = true

		switch s.Kind {
		case SensorSimulated:
			if s.Max < s.Min {
				add("sensors[%d]: max %v is below min %v", i, s.Max, s.Min)
			}
		case SensorFile:
			if s.Path == "" {
				add("sensors[%d]: file sensor needs a path", i)
			}
		default:
			add("sensors[%d]: unknown kind %q (expected sim or file)", i, s.Kind)
		}
	}

	return errs
}
