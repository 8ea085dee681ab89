package sink

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/muurk/wstelemetry/internal/logging"
	"go.uber.org/zap"
)

// MessageAnalysis represents a captured message for analysis
type MessageAnalysis struct {
	Timestamp    time.Time       `json:"timestamp"`
	MessageNum   int             `json:"message_num"`
	RemoteAddr   string          `json:"remote_addr"`
	Direction    string          `json:"direction"`
	FrameType    string          `json:"frame_type"`
	Opcode       int             `json:"opcode"`
	MessageType  string          `json:"message_type,omitempty"`
	PayloadLen   int             `json:"payload_length"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	PayloadHex   string          `json:"payload_hex,omitempty"`
	PayloadAscii string          `json:"payload_ascii,omitempty"`
}

// Capture appends received messages to a JSON Lines file, one object per
// line. A nil *Capture discards everything.
type Capture struct {
	mu   sync.Mutex
	path string
	file *os.File
}

// NewCapture creates dir if needed and opens capture-<timestamp>.jsonl in it.
func NewCapture(dir string) (*Capture, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create analysis directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("capture-%s.jsonl", time.Now().Format("20060102-150405")))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open analysis file: %w", err)
	}

	logging.Info("Capturing messages", zap.String("filename", path))
	return &Capture{path: path, file: f}, nil
}

// Path returns the capture file path.
func (c *Capture) Path() string {
	if c == nil {
		return ""
	}
	return c.path
}

// Save appends one message. JSON payloads are embedded as-is, anything else
// is stored as hex and ASCII.
func (c *Capture) Save(remoteAddr string, messageNum, opcode int, messageType string, payload []byte) {
	if c == nil {
		return
	}

	analysis := MessageAnalysis{
		Timestamp:   time.Now(),
		MessageNum:  messageNum,
		RemoteAddr:  remoteAddr,
		Direction:   "client->sink",
		FrameType:   frameType(opcode),
		Opcode:      opcode,
		MessageType: messageType,
		PayloadLen:  len(payload),
	}
	if opcode == websocket.TextMessage && json.Valid(payload) {
		analysis.Payload = json.RawMessage(payload)
	} else {
		analysis.PayloadHex = hex.EncodeToString(payload)
		analysis.PayloadAscii = toASCII(payload)
	}

	data, err := json.Marshal(analysis)
	if err != nil {
		logging.Error("Failed to marshal message analysis", zap.Error(err))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.file == nil {
		return
	}
	if _, err := c.file.Write(append(data, '\n')); err != nil {
		logging.Error("Failed to write to analysis file",
			zap.String("filename", c.path),
			zap.Error(err),
		)
		return
	}

	logging.Debug("Saved message to analysis file",
		zap.String("filename", c.path),
		zap.Int("message_num", messageNum),
	)
}

// Close closes the capture file. Safe to call on nil or twice.
func (c *Capture) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.file == nil {
		return nil
	}
	err := c.file.Close()
	c.file = nil
	return err
}

func frameType(opcode int) string {
	switch opcode {
	case websocket.TextMessage:
		return "text"
	case websocket.BinaryMessage:
		return "binary"
	default:
		return fmt.Sprintf("opcode(%d)", opcode)
	}
}

// toASCII converts bytes to ASCII string (non-printable chars become '.')
func toASCII(data []byte) string {
	result := make([]byte, len(data))
	for i, b := range data {
		if b >= 32 && b <= 126 {
			result[i] = b
		} else {
			result[i] = '.'
		}
	}
	return string(result)
}
