package sink

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/muurk/wstelemetry/internal/discovery"
	"github.com/muurk/wstelemetry/internal/logging"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// DefaultPath is the WebSocket endpoint path
const DefaultPath = "/ingest"

// Config holds the sink configuration
type Config struct {
	Host         string
	Port         int
	Path         string        // WebSocket endpoint path (default "/ingest")
	CertPath     string        // Serve wss when set together with KeyPath
	KeyPath      string        //
	AnalysisDir  string        // Directory to write JSONL captures (empty = disabled)
	PingInterval time.Duration // 0 disables server pings
	Advertise    bool          // Register the sink over mDNS
	Instance     string        // mDNS instance name (default hostname)
}

// Message is one data message received from a client
type Message struct {
	RemoteAddr string
	Opcode     int // websocket.TextMessage or websocket.BinaryMessage
	Type       string
	DeviceID   string
	Payload    []byte
}

// Server accepts telemetry clients over WebSocket
type Server struct {
	config    *Config
	tlsConfig *tls.Config
	upgrader  websocket.Upgrader
	capture   *Capture

	httpServer *http.Server
	listener   net.Listener
	advert     *discovery.Advertisement

	wg          sync.WaitGroup
	mu          sync.Mutex
	activeConns map[string]*websocket.Conn
	received    int
	closing     bool

	// OnMessage is called for every text or binary message. It runs on the
	// connection's goroutine.
	OnMessage func(Message)
}

// New creates a new Server instance
func New(config *Config) (*Server, error) {
	if config.Path == "" {
		config.Path = DefaultPath
	}

	s := &Server{
		config:      config,
		activeConns: make(map[string]*websocket.Conn),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}

	if config.CertPath != "" || config.KeyPath != "" {
		tlsConfig, err := NewTLSConfig(config.CertPath, config.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
		s.tlsConfig = tlsConfig
	}

	if config.AnalysisDir != "" {
		capture, err := NewCapture(config.AnalysisDir)
		if err != nil {
			return nil, err
		}
		s.capture = capture
	}

	return s, nil
}

// Handler returns the HTTP handler serving the WebSocket endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.config.Path, s.handleUpgrade)
	return mux
}

// Listen opens the listening socket. Port 0 picks a free port; Addr reports it.
func (s *Server) Listen() error {
	addr := net.JoinHostPort(s.config.Host, fmt.Sprintf("%d", s.config.Port))

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	if s.tlsConfig != nil {
		listener = tls.NewListener(listener, s.tlsConfig)
		logging.Info("TLS Configuration", zap.Any("tls_info", GetTLSInfo(s.tlsConfig)))
	}
	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logging.Info("Telemetry sink listening",
		zap.String("addr", listener.Addr().String()),
		zap.String("path", s.config.Path),
		zap.Bool("tls", s.tlsConfig != nil),
		zap.Bool("capture", s.capture != nil),
	)

	if s.config.Advertise {
		instance := s.config.Instance
		if instance == "" {
			instance, _ = os.Hostname()
		}
		advert, err := discovery.Advertise(instance, s.Port(), s.config.Path, s.tlsConfig != nil)
		if err != nil {
			logging.Warn("mDNS advertisement failed", zap.Error(err))
		} else {
			s.advert = advert
		}
	}

	return nil
}

// Addr returns the listening address, or "" before Listen.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Port returns the listening port, or 0 before Listen.
func (s *Server) Port() int {
	if s.listener == nil {
		return 0
	}
	if tcp, ok := s.listener.Addr().(*net.TCPAddr); ok {
		return tcp.Port
	}
	return 0
}

// Serve accepts connections until Shutdown. It returns nil on a clean shutdown.
func (s *Server) Serve() error {
	if s.httpServer == nil {
		return errors.New("sink: Serve called before Listen")
	}
	if err := s.httpServer.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Start listens and serves, blocking until SIGINT/SIGTERM or a serve error.
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.Serve()
	}()

	select {
	case <-sigChan:
		logging.Info("Shutdown signal received, stopping sink...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.Shutdown(ctx)
	case err := <-errChan:
		return err
	}
}

// Shutdown stops accepting clients, closes active connections and waits for
// their handlers to finish or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down sink...")

	var errs error
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()
	s.advert.Shutdown()

	if s.httpServer != nil {
		errs = multierr.Append(errs, s.httpServer.Shutdown(ctx))
	}

	// Hijacked connections are not tracked by http.Server
	s.mu.Lock()
	for addr, conn := range s.activeConns {
		logging.Info("Closing active connection", zap.String("remote_addr", addr))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "sink shutting down"),
			time.Now().Add(time.Second))
		errs = multierr.Append(errs, ignoreClosed(conn.Close()))
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Info("All connections closed gracefully")
	case <-ctx.Done():
		logging.Warn("Shutdown timeout, forcing close")
	}

	errs = multierr.Append(errs, s.capture.Close())
	logging.Sync()

	return errs
}

// GetActiveConnections returns the number of active connections
func (s *Server) GetActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.activeConns)
}

// Received returns the number of data messages received so far
func (s *Server) Received() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.received
}

func ignoreClosed(err error) error {
	if err == nil || errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
