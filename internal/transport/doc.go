// Package transport provides the byte-stream collaborator used by the
// connection state machine.
//
// The state machine never blocks, so connections here are polled:
//
//	conn, err := dialer.Dial(endpoint) // returns immediately
//	ok, err := conn.Writable()         // false while the dial is in progress
//	n, err := conn.Read(buf)           // ErrWouldBlock when nothing arrived
//
// TCPDialer runs the dial (and the TLS handshake for wss) in a background
// goroutine and feeds received bytes through a read pump, so Read only ever
// copies what is already buffered. Writes are single writes bounded by a
// deadline.
//
// LinkMonitor answers whether the host has a usable network link, the
// signal that gates connection attempts.
package transport
