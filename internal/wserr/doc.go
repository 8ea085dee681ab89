// Package wserr defines the error taxonomy of the telemetry client.
//
// Every failure the connection lifecycle can produce falls into one of four
// kinds:
//   - Config: bad URL or port. Surfaced once at setup; the client then stays
//     Disconnected for that configuration.
//   - Transport: connect, read or write failure. Triggers Disconnected and the
//     normal backoff-governed retry.
//   - Protocol: malformed handshake or frame. Handled exactly like Transport.
//   - Send: a message did not reach the transport fully. The connection is
//     force-closed so the loss is never silent.
//
// Use the Is* predicates rather than type assertions; they see through
// wrapping with fmt.Errorf("%w").
package wserr
