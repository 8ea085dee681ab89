package urls

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/muurk/wstelemetry/internal/wserr"
)

// Scheme is the WebSocket URL scheme.
type Scheme string

const (
	SchemeWS  Scheme = "ws"
	SchemeWSS Scheme = "wss"
)

const (
	prefixWS  = "ws://"
	prefixWSS = "wss://"

	// DefaultPortWS is used for ws:// URLs without an explicit port
	DefaultPortWS = 80
	// DefaultPortWSS is used for wss:// URLs without an explicit port
	DefaultPortWSS = 443
)

// Endpoint is a parsed WebSocket URL. It is immutable once parsed.
type Endpoint struct {
	Scheme Scheme
	Host   string
	Port   int
	Path   string
}

// Secure reports whether the endpoint requires an encrypted byte stream.
func (e Endpoint) Secure() bool {
	return e.Scheme == SchemeWSS
}

// Address returns host:port for dialing.
func (e Endpoint) Address() string {
	return fmt.Sprintf("%s:%d", e.Host, e.Port)
}

// String reassembles the endpoint, always with an explicit port.
func (e Endpoint) String() string {
	return fmt.Sprintf("%s://%s:%d%s", e.Scheme, e.Host, e.Port, e.Path)
}

// Parse decomposes a WebSocket URL into scheme, host, port and path.
//
// The scheme is matched by the literal, case-sensitive prefixes "ws://" and
// "wss://". The remainder is split at the first '/': everything before it is
// host[:port], everything from it on is the path ("/" when absent). An
// explicit port is split at the last ':'.
//
// IPv6 literals ("[::1]:8080") are not supported.
func Parse(raw string) (Endpoint, error) {
	var ep Endpoint
	var rest string

	switch {
	case strings.HasPrefix(raw, prefixWSS):
		ep.Scheme = SchemeWSS
		ep.Port = DefaultPortWSS
		rest = raw[len(prefixWSS):]
	case strings.HasPrefix(raw, prefixWS):
		ep.Scheme = SchemeWS
		ep.Port = DefaultPortWS
		rest = raw[len(prefixWS):]
	default:
		return Endpoint{}, wserr.NewConfigError("parse_url",
			fmt.Sprintf("invalid WebSocket URL %q: expected ws:// or wss:// prefix", raw))
	}

	hostPort := rest
	ep.Path = "/"
	if slash := strings.IndexByte(rest, '/'); slash >= 0 {
		hostPort = rest[:slash]
		ep.Path = rest[slash:]
	}

	ep.Host = hostPort
	if colon := strings.LastIndexByte(hostPort, ':'); colon >= 0 {
		ep.Host = hostPort[:colon]
		portStr := hostPort[colon+1:]
		port, err := parsePort(portStr)
		if err != nil {
			return Endpoint{}, wserr.NewConfigError("parse_url",
				fmt.Sprintf("invalid port %q in URL %q: %v", portStr, raw, err))
		}
		ep.Port = port
	}

	if ep.Host == "" {
		return Endpoint{}, wserr.NewConfigError("parse_url",
			fmt.Sprintf("invalid WebSocket URL %q: empty host", raw))
	}

	return ep, nil
}

// parsePort accepts only plain decimal digits in the TCP port range.
func parsePort(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("empty port")
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("port is not numeric")
		}
	}
	port, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("port out of range")
	}
	return port, nil
}
