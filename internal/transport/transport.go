package transport

import (
	"errors"

	"github.com/muurk/wstelemetry/internal/urls"
)

// ErrWouldBlock is returned by Read when no data is available yet
var ErrWouldBlock = errors.New("transport: operation would block")

// ErrNotConnected is returned by I/O on a connection whose dial has not
// completed
var ErrNotConnected = errors.New("transport: not connected")

// Conn is a non-blocking byte stream.
type Conn interface {
	// Writable reports whether the connection is established. It returns
	// false with a nil error while connecting, and an error if the connect
	// failed.
	Writable() (bool, error)

	// Read copies available bytes into p. It returns ErrWouldBlock when
	// none are available and io.EOF when the peer closed the stream.
	Read(p []byte) (int, error)

	// Write writes p in a single call. A short write is reported as an error.
	Write(p []byte) (int, error)

	// Close releases the connection. It is safe to call more than once.
	Close() error
}

// Dialer starts connections. Dial must not block.
type Dialer interface {
	Dial(ep urls.Endpoint) (Conn, error)
}

// Link reports whether the network is available.
type Link interface {
	Available() bool
}

// Always is a Link that is always available
type Always struct{}

// Available returns true
func (Always) Available() bool { return true }
