package sink

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/muurk/wstelemetry/internal/logging"
	"github.com/muurk/wstelemetry/internal/telemetry"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a control message to the peer
	writeWait = 10 * time.Second

	// Maximum message size allowed from peer
	maxMessageSize = 65535
)

// handleUpgrade upgrades one HTTP request and serves the connection until
// it closes.
func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	remoteAddr := r.RemoteAddr

	// Track the handler before upgrading so Shutdown's Wait covers it
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		http.Error(w, "sink shutting down", http.StatusServiceUnavailable)
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error("WebSocket upgrade failed",
			zap.String("remote_addr", remoteAddr),
			zap.Error(err),
		)
		return
	}

	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.activeConns[remoteAddr] = conn
	s.mu.Unlock()

	defer func() {
		_ = conn.Close()
		s.mu.Lock()
		delete(s.activeConns, remoteAddr)
		s.mu.Unlock()
		logging.LogConnection(remoteAddr, "websocket_closed")
	}()

	logging.LogConnection(remoteAddr, "websocket_upgraded")
	s.serveConn(conn, remoteAddr)
}

// serveConn runs the receive loop. A ping writer runs alongside it when
// PingInterval is set.
func (s *Server) serveConn(conn *websocket.Conn, remoteAddr string) {
	conn.SetReadLimit(maxMessageSize)

	conn.SetPongHandler(func(appData string) error {
		logging.Debug("Received pong",
			zap.String("remote_addr", remoteAddr),
			zap.String("data", appData),
		)
		return nil
	})

	stop := make(chan struct{})
	defer close(stop)
	if s.config.PingInterval > 0 {
		go s.pingLoop(conn, remoteAddr, stop)
	}

	messageNum := 0
	for {
		opcode, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Info("Connection closed by client",
					zap.String("remote_addr", remoteAddr),
				)
			} else {
				logging.Info("Connection closed or error reading frame",
					zap.String("remote_addr", remoteAddr),
					zap.Error(err),
				)
			}
			return
		}

		messageNum++
		s.handleMessage(remoteAddr, messageNum, opcode, payload)
	}
}

func (s *Server) handleMessage(remoteAddr string, messageNum, opcode int, payload []byte) {
	logging.LogWebSocketMessage(remoteAddr, "received", byte(opcode), payload)

	msg := Message{
		RemoteAddr: remoteAddr,
		Opcode:     opcode,
		Payload:    payload,
	}

	if opcode == websocket.TextMessage {
		env, err := telemetry.Peek(payload)
		if err != nil {
			logging.Warn("Received non-JSON text message",
				zap.String("remote_addr", remoteAddr),
				zap.Error(err),
			)
		} else {
			msg.Type = env.Type
			msg.DeviceID = env.DeviceID
		}
	}

	switch msg.Type {
	case telemetry.TypeConnection:
		logging.Info("Device connected",
			zap.String("remote_addr", remoteAddr),
			zap.String("device_id", msg.DeviceID),
		)
	case telemetry.TypeSensorData, telemetry.TypeHeartbeat:
		logging.Info("Telemetry received",
			zap.String("remote_addr", remoteAddr),
			zap.String("type", msg.Type),
			zap.String("device_id", msg.DeviceID),
			zap.String("content", string(payload)),
		)
	default:
		logging.Info("Received WebSocket message",
			zap.String("remote_addr", remoteAddr),
			zap.Int("opcode", opcode),
			zap.Int("payload_length", len(payload)),
		)
	}

	s.mu.Lock()
	s.received++
	s.mu.Unlock()

	s.capture.Save(remoteAddr, messageNum, opcode, msg.Type, payload)

	if s.OnMessage != nil {
		s.OnMessage(msg)
	}
}

func (s *Server) pingLoop(conn *websocket.Conn, remoteAddr string, stop <-chan struct{}) {
	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte("sink"), time.Now().Add(writeWait)); err != nil {
				logging.Debug("Ping failed",
					zap.String("remote_addr", remoteAddr),
					zap.Error(err),
				)
				return
			}
		}
	}
}
