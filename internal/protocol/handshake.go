package protocol

import (
	"bytes"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/muurk/wstelemetry/internal/urls"
	"github.com/muurk/wstelemetry/internal/wserr"
)

// websocketGUID is appended to the client key to derive Sec-WebSocket-Accept
const websocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// DefaultMaxHeaderBytes bounds the buffered handshake response
const DefaultMaxHeaderBytes = 4096

var headerTerminator = []byte("\r\n\r\n")

// AcceptPolicy controls how Sec-WebSocket-Accept in the server response is checked
type AcceptPolicy int

const (
	// AcceptLenient rejects a wrong accept value but tolerates its absence
	AcceptLenient AcceptPolicy = iota
	// AcceptStrict requires a present and correct accept value
	AcceptStrict
	// AcceptOff ignores the header entirely
	AcceptOff
)

// String returns the config-file spelling of the policy
func (p AcceptPolicy) String() string {
	switch p {
	case AcceptLenient:
		return "lenient"
	case AcceptStrict:
		return "strict"
	case AcceptOff:
		return "off"
	default:
		return fmt.Sprintf("AcceptPolicy(%d)", int(p))
	}
}

// ParseAcceptPolicy parses "strict", "lenient" or "off". Empty means lenient.
func ParseAcceptPolicy(s string) (AcceptPolicy, error) {
	switch s {
	case "", "lenient":
		return AcceptLenient, nil
	case "strict":
		return AcceptStrict, nil
	case "off":
		return AcceptOff, nil
	default:
		return AcceptLenient, fmt.Errorf("unknown accept key policy %q (expected strict, lenient or off)", s)
	}
}

// NewKey generates a Sec-WebSocket-Key: 16 random bytes, base64 encoded.
// A new key must be generated for every connection attempt.
func NewKey(r io.Reader) (string, error) {
	if r == nil {
		r = rand.Reader
	}
	var raw [16]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return "", fmt.Errorf("failed to generate handshake key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw[:]), nil
}

// ExpectedAccept derives the Sec-WebSocket-Accept value for key.
func ExpectedAccept(key string) string {
	sum := sha1.Sum([]byte(key + websocketGUID))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// BuildRequest produces the HTTP/1.1 Upgrade request for the endpoint. The
// Host header carries the host only, without the port.
func BuildRequest(ep urls.Endpoint, key string) []byte {
	var b strings.Builder
	b.WriteString("GET " + ep.Path + " HTTP/1.1\r\n")
	b.WriteString("Host: " + ep.Host + "\r\n")
	b.WriteString("Upgrade: websocket\r\n")
	b.WriteString("Connection: Upgrade\r\n")
	b.WriteString("Sec-WebSocket-Key: " + key + "\r\n")
	b.WriteString("Sec-WebSocket-Version: 13\r\n")
	b.WriteString("\r\n")
	return []byte(b.String())
}

// HeaderEnd returns the offset just past the blank line ending the HTTP
// header block in buf, or -1 when the header is not complete yet.
func HeaderEnd(buf []byte) int {
	i := bytes.Index(buf, headerTerminator)
	if i < 0 {
		return -1
	}
	return i + len(headerTerminator)
}

// ValidateResponse checks a complete handshake response header block. It
// returns nil when the response is accepted.
//
// Accepted requires a status line starting "HTTP/1.1 101" and a header line
// exactly equal to "Upgrade: websocket". Sec-WebSocket-Accept is checked
// according to policy.
func ValidateResponse(header []byte, key string, policy AcceptPolicy) error {
	lines := strings.Split(strings.TrimSuffix(string(header), "\r\n\r\n"), "\r\n")
	if len(lines) == 0 || !isSwitchingProtocols(lines[0]) {
		return handshakeError("unexpected status line %q", firstLine(lines))
	}

	upgrade := false
	accept := ""
	hasAccept := false
	for _, line := range lines[1:] {
		if line == "Upgrade: websocket" {
			upgrade = true
			continue
		}
		name, value, ok := strings.Cut(line, ":")
		if ok && strings.EqualFold(strings.TrimSpace(name), "Sec-WebSocket-Accept") {
			accept = strings.TrimSpace(value)
			hasAccept = true
		}
	}

	if !upgrade {
		return handshakeError("missing \"Upgrade: websocket\" header")
	}

	switch policy {
	case AcceptOff:
	case AcceptStrict:
		if !hasAccept {
			return handshakeError("missing Sec-WebSocket-Accept header")
		}
		fallthrough
	case AcceptLenient:
		if hasAccept && accept != ExpectedAccept(key) {
			return handshakeError("Sec-WebSocket-Accept %q does not match key", accept)
		}
	}

	return nil
}

func isSwitchingProtocols(status string) bool {
	const prefix = "HTTP/1.1 101"
	if !strings.HasPrefix(status, prefix) {
		return false
	}
	return len(status) == len(prefix) || status[len(prefix)] == ' '
}

func firstLine(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return lines[0]
}

func handshakeError(format string, args ...interface{}) error {
	return wserr.NewProtocolError("handshake", fmt.Sprintf(format, args...))
}

// ResponseReader accumulates handshake response bytes from a non-blocking
// transport until the header block is complete.
type ResponseReader struct {
	key      string
	policy   AcceptPolicy
	maxBytes int
	buf      []byte
}

// NewResponseReader creates a reader validating against key. maxBytes <= 0
// selects DefaultMaxHeaderBytes.
func NewResponseReader(key string, policy AcceptPolicy, maxBytes int) *ResponseReader {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxHeaderBytes
	}
	return &ResponseReader{key: key, policy: policy, maxBytes: maxBytes}
}

// Feed appends p. It reports done once the header block is complete, in
// which case err tells whether it was accepted and rest holds any bytes that
// followed the header (frame data sent in the same segment).
func (r *ResponseReader) Feed(p []byte) (rest []byte, done bool, err error) {
	r.buf = append(r.buf, p...)

	end := HeaderEnd(r.buf)
	if end < 0 {
		if len(r.buf) >= r.maxBytes {
			return nil, true, handshakeError("no complete response within %d bytes", r.maxBytes)
		}
		return nil, false, nil
	}
	if end > r.maxBytes {
		return nil, true, handshakeError("response header of %d bytes exceeds %d", end, r.maxBytes)
	}

	if err := ValidateResponse(r.buf[:end], r.key, r.policy); err != nil {
		return nil, true, err
	}

	if end < len(r.buf) {
		rest = append([]byte(nil), r.buf[end:]...)
	}
	return rest, true, nil
}

// Header returns the buffered bytes, for logging.
func (r *ResponseReader) Header() []byte {
	return r.buf
}
