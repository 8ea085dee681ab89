package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/muurk/wstelemetry/internal/logging"
	"github.com/muurk/wstelemetry/internal/urls"
	"github.com/muurk/wstelemetry/internal/wserr"
	"go.uber.org/zap"
)

const (
	// DefaultDialTimeout bounds the background dial and TLS handshake
	DefaultDialTimeout = 10 * time.Second

	// DefaultWriteTimeout bounds a single write
	DefaultWriteTimeout = 5 * time.Second

	readChunkSize = 4096
	readQueueLen  = 64
)

// TCPDialer dials ws endpoints over TCP and wss endpoints over TLS.
type TCPDialer struct {
	DialTimeout  time.Duration
	WriteTimeout time.Duration

	// TLS is used for wss endpoints. ServerName defaults to the endpoint host.
	TLS *tls.Config
}

// NewTCPDialer returns a dialer with default timeouts.
func NewTCPDialer(tlsConfig *tls.Config) *TCPDialer {
	return &TCPDialer{
		DialTimeout:  DefaultDialTimeout,
		WriteTimeout: DefaultWriteTimeout,
		TLS:          tlsConfig,
	}
}

type dialResult struct {
	conn net.Conn
	err  error
}

// Dial starts connecting to ep in the background and returns immediately.
func (d *TCPDialer) Dial(ep urls.Endpoint) (Conn, error) {
	timeout := d.DialTimeout
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	writeTimeout := d.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	c := &tcpConn{
		addr:         ep.Address(),
		writeTimeout: writeTimeout,
		dialed:       make(chan dialResult, 1),
		reads:        make(chan []byte, readQueueLen),
		closed:       make(chan struct{}),
		cancel:       cancel,
	}

	var tlsConfig *tls.Config
	if ep.Secure() {
		tlsConfig = d.tlsConfigFor(ep)
	}

	go func() {
		defer cancel()
		conn, err := dial(ctx, c.addr, tlsConfig)
		c.dialed <- dialResult{conn: conn, err: err}
	}()

	logging.Debug("Dial started", zap.String("addr", c.addr), zap.Bool("tls", tlsConfig != nil))
	return c, nil
}

func (d *TCPDialer) tlsConfigFor(ep urls.Endpoint) *tls.Config {
	var cfg *tls.Config
	if d.TLS != nil {
		cfg = d.TLS.Clone()
	} else {
		cfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	if cfg.ServerName == "" {
		cfg.ServerName = ep.Host
	}
	return cfg
}

func dial(ctx context.Context, addr string, tlsConfig *tls.Config) (net.Conn, error) {
	var nd net.Dialer
	raw, err := nd.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, wserr.NewTransportError("connect", fmt.Sprintf("failed to connect to %s", addr), err)
	}
	if tlsConfig == nil {
		return raw, nil
	}

	tlsConn := tls.Client(raw, tlsConfig)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		_ = raw.Close()
		return nil, wserr.NewTransportError("tls_handshake", fmt.Sprintf("TLS handshake with %s failed", addr), err)
	}

	state := tlsConn.ConnectionState()
	logging.Debug("TLS handshake complete",
		zap.String("addr", addr),
		zap.String("version", tls.VersionName(state.Version)),
		zap.String("cipher_suite", tls.CipherSuiteName(state.CipherSuite)),
	)
	return tlsConn, nil
}

// tcpConn is owned by a single goroutine (the state machine). The dial and
// read pump goroutines communicate with it only through channels.
type tcpConn struct {
	addr         string
	writeTimeout time.Duration

	dialed chan dialResult
	cancel context.CancelFunc

	conn    net.Conn
	dialErr error

	reads    chan []byte
	pumpErr  error
	leftover []byte
	eof      bool

	closed    chan struct{}
	closeOnce sync.Once
}

func (c *tcpConn) Writable() (bool, error) {
	if c.conn != nil {
		return true, nil
	}
	if c.dialErr != nil {
		return false, c.dialErr
	}

	select {
	case r := <-c.dialed:
		if r.err != nil {
			c.dialErr = r.err
			return false, r.err
		}
		select {
		case <-c.closed:
			_ = r.conn.Close()
			c.dialErr = ErrNotConnected
			return false, c.dialErr
		default:
		}
		c.conn = r.conn
		go c.pump()
		logging.LogConnection(c.addr, "connected")
		return true, nil
	default:
		return false, nil
	}
}

// pump moves bytes from the socket to the reads channel until the socket
// fails or the connection is closed.
func (c *tcpConn) pump() {
	defer close(c.reads)
	buf := make([]byte, readChunkSize)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case c.reads <- chunk:
			case <-c.closed:
				return
			}
		}
		if err != nil {
			c.pumpErr = err
			return
		}
	}
}

func (c *tcpConn) Read(p []byte) (int, error) {
	if len(c.leftover) > 0 {
		n := copy(p, c.leftover)
		c.leftover = c.leftover[n:]
		return n, nil
	}
	if c.eof {
		return 0, c.readErr()
	}
	if c.conn == nil {
		if c.dialErr != nil {
			return 0, c.dialErr
		}
		return 0, ErrWouldBlock
	}

	select {
	case chunk, ok := <-c.reads:
		if !ok {
			c.eof = true
			return 0, c.readErr()
		}
		n := copy(p, chunk)
		c.leftover = chunk[n:]
		return n, nil
	default:
		return 0, ErrWouldBlock
	}
}

// readErr is only valid once reads has been closed.
func (c *tcpConn) readErr() error {
	if c.pumpErr == nil || c.pumpErr == io.EOF {
		return io.EOF
	}
	return wserr.NewTransportError("read", "read from "+c.addr+" failed", c.pumpErr)
}

func (c *tcpConn) Write(p []byte) (int, error) {
	if c.conn == nil {
		return 0, ErrNotConnected
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return 0, wserr.NewTransportError("write", "failed to set write deadline", err)
	}
	n, err := c.conn.Write(p)
	if err != nil {
		return n, wserr.NewTransportError("write", fmt.Sprintf("wrote %d of %d bytes", n, len(p)), err)
	}
	if n != len(p) {
		return n, wserr.NewTransportError("write", fmt.Sprintf("short write: %d of %d bytes", n, len(p)), io.ErrShortWrite)
	}
	return n, nil
}

func (c *tcpConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		c.cancel()
		if c.conn != nil {
			err = c.conn.Close()
			return
		}
		if c.dialErr != nil {
			return
		}
		// The dial may still complete; release whatever it produces.
		go func() {
			if r := <-c.dialed; r.conn != nil {
				_ = r.conn.Close()
			}
		}()
	})
	return err
}
