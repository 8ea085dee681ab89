// Package config loads and saves the wstelemetry client configuration.
//
// The configuration is a YAML file holding the endpoint URL, timing
// intervals, handshake policy, reconnect strategy and the sensors to report.
// It follows OS-specific conventions for storage location.
//
// # Configuration File Location
//
// The configuration file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/wstelemetry/config.yaml or $HOME/.config/wstelemetry/config.yaml
//   - macOS: $HOME/.config/wstelemetry/config.yaml
//   - Windows: %LOCALAPPDATA%\wstelemetry\config.yaml
//
// # Usage Example
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//	    // err combines every problem found; see multierr.Errors
//	    log.Fatal(err)
//	}
//
// # Thread Safety
//
// Config values are plain data. Save is protected by a mutex and writes
// atomically through a temporary file.
package config
