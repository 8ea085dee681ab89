package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// fileMutex serialises writes to config files
var fileMutex sync.Mutex

// Load reads the configuration at path and fills defaults. A missing file
// yields Default(). An empty path selects GetConfigPath().
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := GetConfigPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get config path: %w", err)
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.ApplyDefaults()

	if cfg.Version != CurrentVersion {
		return nil, fmt.Errorf("unsupported config version: %d (expected %d)", cfg.Version, CurrentVersion)
	}

	return &cfg, nil
}

// Save writes the configuration to path atomically. An empty path selects
// GetConfigPath().
func (c *Config) Save(path string) error {
	fileMutex.Lock()
	defer fileMutex.Unlock()

	if path == "" {
		p, err := GetConfigPath()
		if err != nil {
			return fmt.Errorf("failed to get config path: %w", err)
		}
		path = p
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# wstelemetry configuration file
#
# Intervals are in milliseconds. accept_key is one of strict, lenient
# or off; backoff is fixed or exponential; link is auto or always.
#
# Location: ` + path + `

`)
	data = append(header, data...)

	// Write to temporary file first (atomic write)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary config file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to save config file: %w", err)
	}

	return nil
}

// Example returns a configuration with one sensor of each kind, used by
// "config init".
func Example() *Config {
	c := &Config{
		URL: "ws://telemetry.local:8080/ingest",
		Sensors: []Sensor{
			{ID: "room_temp", Name: "Room Temperature", Kind: SensorSimulated, Unit: "°C", Min: 18, Max: 24, Step: 0.05, IntervalMs: 5000},
			{ID: "cpu_temp", Name: "CPU Temperature", Kind: SensorFile, Unit: "°C",
				Path: "/sys/class/thermal/thermal_zone0/temp", Scale: 0.001, IntervalMs: 10000},
		},
	}
	c.ApplyDefaults()
	return c
}
