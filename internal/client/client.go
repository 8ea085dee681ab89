package client

import (
	"errors"
	"fmt"
	"io"

	"github.com/cenkalti/backoff"
	"github.com/muurk/wstelemetry/internal/clock"
	"github.com/muurk/wstelemetry/internal/logging"
	"github.com/muurk/wstelemetry/internal/protocol"
	"github.com/muurk/wstelemetry/internal/sensor"
	"github.com/muurk/wstelemetry/internal/telemetry"
	"github.com/muurk/wstelemetry/internal/transport"
	"github.com/muurk/wstelemetry/internal/urls"
	"github.com/muurk/wstelemetry/internal/wserr"
	"go.uber.org/zap"
)

// Client maintains one WebSocket connection to a telemetry endpoint. All
// methods must be called from the same goroutine; Tick never blocks.
type Client struct {
	opts Options

	url         string
	endpoint    urls.Endpoint
	configured  bool
	configErr   error
	reconnectMs uint32
	heartbeatMs uint32

	state      State
	conn       transport.Conn
	key        string
	response   *protocol.ResponseReader
	encoder    *protocol.Encoder
	decoder    *protocol.Decoder
	readBuf    []byte
	stateSince uint32

	backoff     backoff.BackOff
	retryDelay  uint32
	attempted   bool
	lastAttempt uint32

	lastHeartbeat uint32
	openedAt      uint32
	session       bool

	messages  *telemetry.Builder
	publisher *telemetry.Publisher

	stats Stats
}

// New creates a client. Configure must be called before it connects.
func New(opts Options) *Client {
	opts.setDefaults()
	c := &Client{
		opts:        opts,
		reconnectMs: DefaultReconnectInterval,
		heartbeatMs: DefaultHeartbeatInterval,
		encoder:     protocol.NewEncoder(opts.Rand),
		decoder:     protocol.NewDecoder(opts.MaxMessageBytes),
		readBuf:     make([]byte, readBufferSize),
	}
	c.messages = telemetry.NewBuilder(opts.Device, opts.Clock, opts.Wall)
	c.publisher = telemetry.NewPublisher(c, c.messages, opts.QueueSize)
	c.backoff = newBackOff(opts.Backoff, c.reconnectMs, opts.MaxBackoffMs)
	c.retryDelay = c.reconnectMs
	return c
}

// Configure sets the endpoint and timing. Zero intervals select the
// defaults. An invalid URL is returned as a config error and the client
// then never attempts a connection until reconfigured.
func (c *Client) Configure(url string, reconnectMs, heartbeatMs uint32) error {
	if c.state != Disconnected {
		c.teardown(nil, "reconfigured")
	}

	if reconnectMs == 0 {
		reconnectMs = DefaultReconnectInterval
	}
	if heartbeatMs == 0 {
		heartbeatMs = DefaultHeartbeatInterval
	}
	c.url = url
	c.reconnectMs = reconnectMs
	c.heartbeatMs = heartbeatMs
	c.backoff = newBackOff(c.opts.Backoff, reconnectMs, c.opts.MaxBackoffMs)
	c.retryDelay = reconnectMs
	c.attempted = false

	ep, err := urls.Parse(url)
	if err != nil {
		c.configured = false
		c.configErr = err
		c.stats.LastError = err.Error()
		logging.Error("Invalid WebSocket URL, connection disabled",
			zap.String("url", url),
			zap.Error(err),
		)
		return err
	}

	c.endpoint = ep
	c.configured = true
	c.configErr = nil
	logging.Info("WebSocket client configured",
		zap.String("endpoint", ep.String()),
		zap.Uint32("reconnect_interval_ms", reconnectMs),
		zap.Uint32("heartbeat_interval_ms", heartbeatMs),
	)
	return nil
}

// RegisterSensor reports s under name through this connection.
func (c *Client) RegisterSensor(s sensor.Sensor, name string) *telemetry.Binding {
	return c.publisher.Register(s, name)
}

// Publisher returns the telemetry publisher bound to this client.
func (c *Client) Publisher() *telemetry.Publisher {
	return c.publisher
}

// State returns the current connection state.
func (c *Client) State() State {
	return c.state
}

// IsOpen reports whether application messages can be sent.
func (c *Client) IsOpen() bool {
	return c.state == Open
}

// ConfigError returns the error that disabled the client, if any.
func (c *Client) ConfigError() error {
	return c.configErr
}

// Endpoint returns the parsed endpoint.
func (c *Client) Endpoint() urls.Endpoint {
	return c.endpoint
}

// Tick advances the state machine. It must be called regularly from the
// host loop.
func (c *Client) Tick() {
	if !c.configured {
		return
	}
	now := c.opts.Clock.Millis()

	if !c.opts.Link.Available() {
		if c.state != Disconnected {
			c.fail(wserr.NewTransportError("link", "network link unavailable", nil))
		}
		return
	}

	if c.state == Disconnected && c.attemptDue(now) {
		c.connect(now)
	}
	if c.state == Connecting {
		c.serviceConnecting(now)
	}
	if c.state == HandshakePending {
		c.serviceHandshake(now)
	}
	if c.state == Open {
		c.serviceOpen(now)
	}
}

func (c *Client) attemptDue(now uint32) bool {
	return !c.attempted || clock.Elapsed(now, c.lastAttempt, c.retryDelay)
}

func (c *Client) connect(now uint32) {
	c.attempted = true
	c.lastAttempt = now
	c.stats.Attempts++

	logging.Info("Connecting to WebSocket",
		zap.String("endpoint", c.endpoint.String()),
		zap.Uint64("attempt", c.stats.Attempts),
	)

	key, err := protocol.NewKey(c.opts.Rand)
	if err != nil {
		c.fail(wserr.NewTransportError("connect", "failed to generate handshake key", err))
		return
	}

	conn, err := c.opts.Dialer.Dial(c.endpoint)
	if err != nil {
		c.fail(wserr.NewTransportError("connect", "failed to create transport", err))
		return
	}

	c.conn = conn
	c.key = key
	c.stateSince = now
	c.setState(Connecting, "attempt started")
}

func (c *Client) serviceConnecting(now uint32) {
	ok, err := c.conn.Writable()
	if err != nil {
		c.fail(asTransportError("connect", "connect failed", err))
		return
	}
	if !ok {
		c.checkHandshakeTimeout(now)
		return
	}

	req := protocol.BuildRequest(c.endpoint, c.key)
	logging.LogRawBytes("Handshake request", req)
	if err := c.write(req); err != nil {
		c.fail(asTransportError("handshake", "failed to send handshake", err))
		return
	}

	c.response = protocol.NewResponseReader(c.key, c.opts.AcceptPolicy, c.opts.MaxHeaderBytes)
	c.setState(HandshakePending, "handshake sent")
}

func (c *Client) serviceHandshake(now uint32) {
	for i := 0; i < c.opts.ReadsPerTick; i++ {
		n, err := c.conn.Read(c.readBuf)
		if errors.Is(err, transport.ErrWouldBlock) {
			break
		}
		if err != nil {
			c.fail(readError("handshake", err))
			return
		}

		rest, done, err := c.response.Feed(c.readBuf[:n])
		if !done {
			continue
		}
		if err != nil {
			logging.LogRawBytes("Rejected handshake response", c.response.Header())
			c.fail(err)
			return
		}

		c.open(now, rest)
		return
	}
	c.checkHandshakeTimeout(now)
}

func (c *Client) checkHandshakeTimeout(now uint32) {
	if c.opts.HandshakeTimeoutMs < 0 {
		return
	}
	if clock.Elapsed(now, c.stateSince, uint32(c.opts.HandshakeTimeoutMs)) {
		c.fail(wserr.NewTransportError("handshake",
			fmt.Sprintf("connection not open after %d ms", c.opts.HandshakeTimeoutMs), nil))
	}
}

func (c *Client) open(now uint32, rest []byte) {
	c.response = nil
	c.lastHeartbeat = now
	c.openedAt = now
	c.backoff.Reset()
	c.session = true
	c.stats.Connects++
	c.setState(Open, "handshake accepted")

	msg, err := c.messages.Connection()
	if err != nil {
		c.fail(wserr.NewSendError("failed to encode connection message", err))
		return
	}
	if err := c.Send(msg); err != nil {
		return
	}

	c.publisher.Flush()
	if c.state != Open {
		return
	}

	if c.opts.OnOpen != nil {
		c.opts.OnOpen()
	}

	if len(rest) > 0 {
		c.dispatch(c.decoder.Feed(rest))
	}
}

func (c *Client) serviceOpen(now uint32) {
	for i := 0; i < c.opts.ReadsPerTick && c.state == Open; i++ {
		n, err := c.conn.Read(c.readBuf)
		if errors.Is(err, transport.ErrWouldBlock) {
			break
		}
		if err != nil {
			c.fail(readError("read", err))
			return
		}
		logging.LogRawBytes("Received bytes", c.readBuf[:n])
		c.dispatch(c.decoder.Feed(c.readBuf[:n]))
	}

	if c.state != Open {
		return
	}
	if clock.Elapsed(now, c.lastHeartbeat, c.heartbeatMs) {
		c.lastHeartbeat = now
		c.sendHeartbeat()
	}
}

func (c *Client) sendHeartbeat() {
	msg, err := c.messages.Heartbeat()
	if err != nil {
		logging.Error("Failed to encode heartbeat", zap.Error(err))
		return
	}
	if err := c.Send(msg); err != nil {
		logging.Warn("Failed to send heartbeat", zap.Error(err))
		return
	}
	c.stats.Heartbeats++
}

func (c *Client) dispatch(events []protocol.Event) {
	for _, ev := range events {
		if c.state != Open {
			return
		}
		c.stats.EventsReceived++

		switch ev.Kind {
		case protocol.EventMessage:
			logging.LogWebSocketMessage(c.endpoint.Address(), "received", byte(ev.Opcode), ev.Payload)
			if c.opts.OnMessage != nil {
				c.opts.OnMessage(ev.Opcode, ev.Payload)
			}

		case protocol.EventPing:
			logging.Debug("Received ping, sending pong", zap.Int("payload_length", len(ev.Payload)))
			if err := c.writeFrame(protocol.OpPong, ev.Payload); err != nil {
				c.fail(wserr.NewSendError("failed to send pong", err))
			}

		case protocol.EventPong:
			logging.Debug("Received pong", zap.Int("payload_length", len(ev.Payload)))

		case protocol.EventClose:
			logging.Info("Received close frame",
				zap.Uint16("code", ev.CloseCode),
				zap.String("reason", ev.CloseReason),
			)
			var echo []byte
			if ev.CloseCode != protocol.CloseNoStatus {
				echo = protocol.ClosePayload(ev.CloseCode, "")
			}
			_ = c.writeFrame(protocol.OpClose, echo)
			c.fail(wserr.NewTransportError("read",
				fmt.Sprintf("connection closed by server (code %d)", ev.CloseCode), nil))

		case protocol.EventError:
			c.fail(ev.Err)
		}
	}
}

// Send writes payload as a single text frame. A write failure tears the
// connection down so that no message is lost silently.
func (c *Client) Send(payload []byte) error {
	if c.state != Open {
		return wserr.NewSendError("connection not open", nil)
	}

	if err := c.writeFrame(protocol.OpText, payload); err != nil {
		if errors.Is(err, protocol.ErrMessageTooLarge) {
			logging.Warn("Message too large for WebSocket frame", zap.Int("length", len(payload)))
			return wserr.NewSendError("message too large", err)
		}
		sendErr := wserr.NewSendError("failed to send message", err)
		c.fail(sendErr)
		return sendErr
	}

	c.stats.MessagesSent++
	logging.LogWebSocketMessage(c.endpoint.Address(), "sent", byte(protocol.OpText), payload)
	return nil
}

func (c *Client) writeFrame(op protocol.Opcode, payload []byte) error {
	frame, err := c.encoder.Encode(op, payload)
	if err != nil {
		return err
	}
	return c.write(frame)
}

func (c *Client) write(p []byte) error {
	if c.conn == nil {
		return transport.ErrNotConnected
	}
	n, err := c.conn.Write(p)
	if err != nil {
		return err
	}
	if n != len(p) {
		return fmt.Errorf("wrote %d of %d bytes: %w", n, len(p), io.ErrShortWrite)
	}
	c.stats.BytesSent += uint64(n)
	return nil
}

// Disconnect closes the connection from any state. An open connection gets
// a best-effort close frame; nothing is awaited. The next attempt waits for
// the reconnect interval. Calling it while disconnected does nothing.
func (c *Client) Disconnect() {
	if c.state == Disconnected {
		return
	}
	if c.state == Open {
		_ = c.writeFrame(protocol.OpClose, protocol.ClosePayload(protocol.CloseNormal, ""))
	}
	c.setState(Closing, "disconnect requested")
	c.teardown(nil, "disconnected")
	c.lastAttempt = c.opts.Clock.Millis()
	c.attempted = true
}

// Close disconnects and releases sensor subscriptions.
func (c *Client) Close() {
	c.Disconnect()
	c.publisher.Close()
}

// fail records cause and tears the connection down.
func (c *Client) fail(cause error) {
	c.stats.Failures++
	c.stats.LastError = cause.Error()
	c.teardown(cause, cause.Error())
}

// teardown destroys the transport, clears codec state and returns to
// Disconnected.
func (c *Client) teardown(cause error, reason string) {
	wasOpen := c.session
	c.session = false

	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			logging.Debug("Transport close failed", zap.Error(err))
		}
		c.conn = nil
	}
	c.decoder.Reset()
	c.response = nil
	c.key = ""

	c.retryDelay = delayMillis(c.backoff.NextBackOff(), c.reconnectMs, c.maxDelay())
	c.setState(Disconnected, reason)

	if wasOpen && c.opts.OnClose != nil {
		c.opts.OnClose(cause)
	}
}

// maxDelay is the backoff cap, never below the reconnect interval.
func (c *Client) maxDelay() uint32 {
	if c.opts.MaxBackoffMs < c.reconnectMs {
		return c.reconnectMs
	}
	return c.opts.MaxBackoffMs
}

func (c *Client) setState(to State, reason string) {
	from := c.state
	if from == to {
		return
	}
	c.state = to
	logging.LogStateChange(c.endpoint.String(), from.String(), to.String(), reason)
}

func asTransportError(op, msg string, err error) error {
	var we *wserr.Error
	if errors.As(err, &we) {
		return err
	}
	return wserr.NewTransportError(op, msg, err)
}

func readError(op string, err error) error {
	if errors.Is(err, io.EOF) {
		return wserr.NewTransportError(op, "connection closed by peer", err)
	}
	return asTransportError(op, "read failed", err)
}
