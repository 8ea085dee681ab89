package wserr

import (
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
)

// Kind represents the category of error that occurred
type Kind int

const (
	// KindConfig indicates a bad URL or port. Fatal for the configuration:
	// no connection attempts are made.
	KindConfig Kind = iota
	// KindTransport indicates a connect, read or write failure of the byte stream.
	KindTransport
	// KindProtocol indicates a malformed handshake response or frame.
	KindProtocol
	// KindSend indicates a well-formed message that did not reach the transport fully.
	KindSend
)

// String returns a human-readable name for the error kind
func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "Config Error"
	case KindTransport:
		return "Transport Error"
	case KindProtocol:
		return "Protocol Error"
	case KindSend:
		return "Send Failure"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Error represents a failure somewhere in the connection lifecycle
type Error struct {
	Kind      Kind   // Category of error
	Op        string // Operation that failed (e.g. "parse_url", "connect", "handshake")
	Message   string // Human-readable error message
	Err       error  // Underlying error (if any)
	Retryable bool   // Whether a later connection attempt may succeed
}

// Error implements the error interface
func (e *Error) Error() string {
	prefix := e.Kind.String()
	if e.Op != "" {
		prefix = fmt.Sprintf("%s [%s]", prefix, e.Op)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", prefix, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

// NewConfigError creates a configuration error. These are never retryable.
func NewConfigError(op, message string) *Error {
	return &Error{
		Kind:      KindConfig,
		Op:        op,
		Message:   message,
		Retryable: false,
	}
}

// NewTransportError creates a transport error wrapping err.
func NewTransportError(op, message string, err error) *Error {
	return &Error{
		Kind:      KindTransport,
		Op:        op,
		Message:   describeNetworkError(message, err),
		Err:       err,
		Retryable: true,
	}
}

// NewProtocolError creates a protocol error. The client cannot tell a
// misbehaving server from transient corruption, so these are retryable.
func NewProtocolError(op, message string) *Error {
	return &Error{
		Kind:      KindProtocol,
		Op:        op,
		Message:   message,
		Retryable: true,
	}
}

// NewSendError creates an application send failure.
func NewSendError(message string, err error) *Error {
	return &Error{
		Kind:      KindSend,
		Op:        "send",
		Message:   message,
		Err:       err,
		Retryable: true,
	}
}

// describeNetworkError refines message with the common net failure causes.
func describeNetworkError(message string, err error) string {
	if err == nil {
		return message
	}

	if os.IsTimeout(err) {
		return message + " (timeout)"
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return fmt.Sprintf("%s (DNS resolution failed for %s)", message, dnsErr.Name)
	}

	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return message + " (connection refused)"
	case errors.Is(err, syscall.EHOSTUNREACH):
		return message + " (host unreachable)"
	case errors.Is(err, syscall.ENETUNREACH):
		return message + " (network unreachable)"
	case errors.Is(err, syscall.ECONNRESET):
		return message + " (connection reset)"
	}

	return message
}

func kindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// IsConfigError checks if an error is a configuration error
func IsConfigError(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindConfig
}

// IsTransportError checks if an error is a transport error
func IsTransportError(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindTransport
}

// IsProtocolError checks if an error is a protocol error
func IsProtocolError(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindProtocol
}

// IsSendError checks if an error is an application send failure
func IsSendError(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindSend
}

// IsRetryable checks if an error should be retried on the next connection
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	// Unknown errors are not retryable by default
	return false
}
