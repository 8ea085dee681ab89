package client

import "fmt"

// State is the connection lifecycle state
type State int

const (
	// Disconnected has no transport. Attempts are governed by the backoff.
	Disconnected State = iota
	// Connecting has a transport whose connect has not completed
	Connecting
	// HandshakePending has sent the upgrade request and awaits the response
	HandshakePending
	// Open exchanges frames
	Open
	// Closing is entered only by Disconnect and returns to Disconnected
	// within the same call
	Closing
)

// String returns the state name
func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case HandshakePending:
		return "handshake_pending"
	case Open:
		return "open"
	case Closing:
		return "closing"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}
