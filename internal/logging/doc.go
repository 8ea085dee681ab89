// Package logging provides structured logging for the telemetry client.
//
// This package wraps a global zap logger with convenience functions for the
// logging patterns used throughout the client, the sink and the CLI.
//
// # Log Levels
//
//   - Debug: raw handshake bytes, frame dumps, ping/pong, heartbeat sends
//   - Info: state transitions, connection events, sensor sends
//   - Warn: dropped readings, send failures, transport loss
//   - Error: configuration errors, startup failures
//
// # Configuration
//
// Initialize logging once at startup:
//
//	if err := logging.Initialize("debug"); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//
// When no level is given and WSTELEMETRY_LOG_LEVEL is unset the logger is a
// no-op, so library code can log unconditionally.
//
// Logs go to stderr so that `wstelemetry status` output on stdout stays clean.
package logging
