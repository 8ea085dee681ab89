package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/muurk/wstelemetry/internal/clock"
	"github.com/muurk/wstelemetry/internal/device"
	"github.com/muurk/wstelemetry/internal/protocol"
	"github.com/muurk/wstelemetry/internal/transport"
	"github.com/muurk/wstelemetry/internal/urls"
)

// fakeConn is an in-memory transport with a scripted server behind it.
type fakeConn struct {
	server *fakeServer

	writable    bool
	writableErr error

	inbound []byte
	eof     bool
	readErr error

	writeErr   error
	shortWrite bool

	request       []byte
	handshakeDone bool
	written       []byte

	closed int
}

func (c *fakeConn) Writable() (bool, error) {
	if c.writableErr != nil {
		return false, c.writableErr
	}
	return c.writable, nil
}

func (c *fakeConn) Read(p []byte) (int, error) {
	if len(c.inbound) > 0 {
		n := copy(p, c.inbound)
		c.inbound = c.inbound[n:]
		return n, nil
	}
	if c.readErr != nil {
		return 0, c.readErr
	}
	if c.eof {
		return 0, io.EOF
	}
	return 0, transport.ErrWouldBlock
}

func (c *fakeConn) Write(p []byte) (int, error) {
	if c.writeErr != nil {
		return 0, c.writeErr
	}
	if c.shortWrite {
		return len(p) / 2, nil
	}
	if !c.handshakeDone {
		c.handshakeDone = true
		c.request = append([]byte(nil), p...)
		c.server.respond(c)
		return len(p), nil
	}
	c.written = append(c.written, p...)
	return len(p), nil
}

func (c *fakeConn) Close() error {
	c.closed++
	return nil
}

// push queues server bytes for the client to read.
func (c *fakeConn) push(b []byte) {
	c.inbound = append(c.inbound, b...)
}

// frames decodes everything the client wrote after the handshake.
func (c *fakeConn) frames(t *testing.T) []*protocol.Frame {
	t.Helper()
	r := bytes.NewReader(c.written)
	var out []*protocol.Frame
	for r.Len() > 0 {
		f, err := protocol.ReadFrame(r)
		if err != nil {
			t.Fatalf("client wrote an invalid frame: %v", err)
		}
		if !f.Masked {
			t.Fatal("client frames must be masked")
		}
		out = append(out, f)
	}
	return out
}

// messages returns the JSON text messages the client sent, in order.
func (c *fakeConn) messages(t *testing.T) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, f := range c.frames(t) {
		if f.Opcode != protocol.OpText {
			continue
		}
		var m map[string]interface{}
		if err := json.Unmarshal(f.Payload, &m); err != nil {
			t.Fatalf("client sent non-JSON text: %q", f.Payload)
		}
		out = append(out, m)
	}
	return out
}

func (c *fakeConn) countType(t *testing.T, typ string) int {
	t.Helper()
	n := 0
	for _, m := range c.messages(t) {
		if m["type"] == typ {
			n++
		}
	}
	return n
}

// fakeServer decides how new connections behave.
type fakeServer struct {
	// pending leaves new connections in progress until writable is set
	pending bool
	// response overrides the handshake response; empty means accept
	response string
	// silent sends no handshake response at all
	silent bool
	// trailing is appended right after the handshake response
	trailing []byte
}

func (s *fakeServer) respond(c *fakeConn) {
	if s.silent {
		return
	}
	if s.response != "" {
		c.push([]byte(s.response))
		return
	}
	key := headerValue(string(c.request), "Sec-WebSocket-Key")
	c.push([]byte("HTTP/1.1 101 Switching Protocols\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Accept: " + protocol.ExpectedAccept(key) + "\r\n\r\n"))
	c.push(s.trailing)
}

func headerValue(req, name string) string {
	for _, line := range strings.Split(req, "\r\n") {
		if v, ok := strings.CutPrefix(line, name+": "); ok {
			return v
		}
	}
	return ""
}

type fakeDialer struct {
	server  fakeServer
	dialErr error
	conns   []*fakeConn
	calls   int
}

func (d *fakeDialer) Dial(ep urls.Endpoint) (transport.Conn, error) {
	d.calls++
	if d.dialErr != nil {
		return nil, d.dialErr
	}
	c := &fakeConn{server: &d.server, writable: !d.server.pending}
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) last() *fakeConn {
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

type fakeLink struct {
	up bool
}

func (l *fakeLink) Available() bool { return l.up }

var errBoom = errors.New("boom")

// harness wires a client to fakes with a manual clock.
type harness struct {
	client *Client
	dialer *fakeDialer
	link   *fakeLink
	clock  *clock.Manual
}

func newHarness(t *testing.T, mutate func(*Options)) *harness {
	t.Helper()
	h := &harness{
		dialer: &fakeDialer{},
		link:   &fakeLink{up: true},
		clock:  clock.NewManual(0),
	}
	h.clock.SetWall(1700000000)

	opts := Options{
		Dialer: h.dialer,
		Link:   h.link,
		Clock:  h.clock,
		Wall:   h.clock,
		Device: device.Context{ID: "test-device", FreeMemory: func() uint64 { return 1024 }},
	}
	if mutate != nil {
		mutate(&opts)
	}
	h.client = New(opts)
	if err := h.client.Configure("ws://telemetry.local:8080/ingest", 5000, 30000); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	return h
}

// step advances the clock by ms and ticks once.
func (h *harness) step(ms uint32) {
	h.clock.Advance(ms)
	h.client.Tick()
}

func (h *harness) mustOpen(t *testing.T) *fakeConn {
	t.Helper()
	h.client.Tick()
	if h.client.State() != Open {
		t.Fatalf("state = %s, want open", h.client.State())
	}
	return h.dialer.last()
}

// serverFrame builds an unmasked server frame.
func serverFrame(fin bool, op protocol.Opcode, payload []byte) []byte {
	b0 := byte(op)
	if fin {
		b0 |= 0x80
	}
	return append([]byte{b0, byte(len(payload))}, payload...)
}
