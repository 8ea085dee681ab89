// Package client implements the connection state machine of the telemetry
// client.
//
// A Client owns one transport connection and moves it through
//
//	Disconnected -> Connecting -> HandshakePending -> Open
//
// with Closing entered only by an explicit Disconnect. The host calls Tick
// from its control loop; a tick never blocks. In order it:
//
//  1. checks the link and tears the connection down if the link is gone
//  2. starts a connection attempt when disconnected and the backoff allows
//  3. polls the pending connect and writes the upgrade request
//  4. reads and validates the handshake response
//  5. while open, drains inbound frames and sends a heartbeat when due
//
// Any transport, protocol or send failure returns the client to
// Disconnected, resets the frame decoder and schedules the next attempt
// through the configured backoff (fixed by default, exponential with jitter
// optionally). An invalid URL disables connection attempts entirely.
//
// On entering Open the client sends a connection message, flushes any
// queued readings and resets the heartbeat timer. Pings are answered with
// pongs and a close frame from the server is echoed before teardown.
//
// Client is not safe for concurrent use. Sensors registered through
// RegisterSensor must deliver notifications on the goroutine that calls
// Tick.
package client
