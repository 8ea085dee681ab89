package protocol

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Opcode is a WebSocket frame opcode
type Opcode byte

// WebSocket frame opcodes
const (
	OpContinuation Opcode = 0x0
	OpText         Opcode = 0x1
	OpBinary       Opcode = 0x2
	OpClose        Opcode = 0x8
	OpPing         Opcode = 0x9
	OpPong         Opcode = 0xA
)

const (
	// MaxControlPayload is the largest payload a control frame may carry
	MaxControlPayload = 125

	// MaxEncodedPayload is the largest payload Encode accepts. Client frames
	// use at most the 16-bit extended length.
	MaxEncodedPayload = 65535

	finBit  = 0x80
	maskBit = 0x80
	rsvBits = 0x70
)

// Close status codes used by the client
const (
	CloseNormal   uint16 = 1000
	CloseNoStatus uint16 = 1005
)

// ValidCloseCode reports whether code may appear in a received close frame.
// 1004-1006 and 1015 are reserved for local use, 1016-2999 are unassigned.
func ValidCloseCode(code uint16) bool {
	switch {
	case code >= 1000 && code <= 1003:
		return true
	case code >= 1007 && code <= 1014:
		return true
	case code >= 3000 && code <= 4999:
		return true
	}
	return false
}

// ErrMessageTooLarge is returned by Encode for payloads that do not fit the
// 16-bit extended length.
var ErrMessageTooLarge = errors.New("message too large for WebSocket frame")

// IsControl reports whether the opcode is a control opcode (close, ping, pong).
func (o Opcode) IsControl() bool {
	return o&0x8 != 0
}

// IsReserved reports whether the opcode is reserved by RFC 6455.
func (o Opcode) IsReserved() bool {
	switch o {
	case OpContinuation, OpText, OpBinary, OpClose, OpPing, OpPong:
		return false
	}
	return true
}

// String returns a human-readable opcode name
func (o Opcode) String() string {
	switch o {
	case OpContinuation:
		return "continuation"
	case OpText:
		return "text"
	case OpBinary:
		return "binary"
	case OpClose:
		return "close"
	case OpPing:
		return "ping"
	case OpPong:
		return "pong"
	default:
		return fmt.Sprintf("unknown(0x%X)", byte(o))
	}
}

// Frame represents a WebSocket frame
type Frame struct {
	FIN     bool
	RSV1    bool
	RSV2    bool
	RSV3    bool
	Opcode  Opcode
	Masked  bool
	Length  uint64
	MaskKey [4]byte
	Payload []byte
	Raw     []byte // Original frame bytes for debugging
}

// String returns a debug representation of the frame
func (f *Frame) String() string {
	return fmt.Sprintf("Frame{FIN=%v, Opcode=%s, Masked=%v, Length=%d}",
		f.FIN, f.Opcode, f.Masked, f.Length)
}

// Encoder builds masked client frames. A fresh mask is drawn from the random
// source for every frame.
type Encoder struct {
	rand io.Reader
}

// NewEncoder returns an Encoder drawing masks from r, or from crypto/rand
// when r is nil.
func NewEncoder(r io.Reader) *Encoder {
	if r == nil {
		r = rand.Reader
	}
	return &Encoder{rand: r}
}

// Encode returns header ++ mask ++ masked payload for a single final frame.
// The result is meant to be written to the transport in one write.
func (e *Encoder) Encode(op Opcode, payload []byte) ([]byte, error) {
	if op.IsReserved() {
		return nil, fmt.Errorf("cannot encode reserved opcode %s", op)
	}
	if op.IsControl() && len(payload) > MaxControlPayload {
		return nil, fmt.Errorf("%s payload of %d bytes exceeds %d: %w",
			op, len(payload), MaxControlPayload, ErrMessageTooLarge)
	}
	if len(payload) > MaxEncodedPayload {
		return nil, fmt.Errorf("payload of %d bytes: %w", len(payload), ErrMessageTooLarge)
	}

	var mask [4]byte
	if _, err := io.ReadFull(e.rand, mask[:]); err != nil {
		return nil, fmt.Errorf("failed to generate mask key: %w", err)
	}

	headerLen := 2
	if len(payload) >= 126 {
		headerLen += 2
	}

	frame := make([]byte, 0, headerLen+4+len(payload))
	frame = append(frame, finBit|byte(op))

	if len(payload) < 126 {
		frame = append(frame, maskBit|byte(len(payload)))
	} else {
		frame = append(frame, maskBit|126)
		frame = binary.BigEndian.AppendUint16(frame, uint16(len(payload)))
	}

	frame = append(frame, mask[:]...)
	start := len(frame)
	frame = append(frame, payload...)
	maskBytes(frame[start:], mask)

	return frame, nil
}

// EncodeText encodes a text frame.
func (e *Encoder) EncodeText(payload []byte) ([]byte, error) {
	return e.Encode(OpText, payload)
}

// ClosePayload builds the body of a close frame.
func ClosePayload(code uint16, reason string) []byte {
	if len(reason) > MaxControlPayload-2 {
		reason = reason[:MaxControlPayload-2]
	}
	b := make([]byte, 2, 2+len(reason))
	binary.BigEndian.PutUint16(b, code)
	return append(b, reason...)
}

// ReadFrame reads one WebSocket frame from the reader and unmasks it. This
// is the server-side view of the wire: it accepts masked client frames and
// blocks until the whole frame has arrived.
func ReadFrame(r io.Reader) (*Frame, error) {
	frame := &Frame{}

	header := make([]byte, 2)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("failed to read frame header: %w", err)
	}

	frame.Raw = append(frame.Raw, header...)

	frame.FIN = (header[0] & 0x80) != 0
	frame.RSV1 = (header[0] & 0x40) != 0
	frame.RSV2 = (header[0] & 0x20) != 0
	frame.RSV3 = (header[0] & 0x10) != 0
	frame.Opcode = Opcode(header[0] & 0x0F)

	frame.Masked = (header[1] & 0x80) != 0
	payloadLen := uint64(header[1] & 0x7F)

	switch payloadLen {
	case 126:
		extLen := make([]byte, 2)
		if _, err := io.ReadFull(r, extLen); err != nil {
			return nil, fmt.Errorf("failed to read extended length: %w", err)
		}
		frame.Raw = append(frame.Raw, extLen...)
		frame.Length = uint64(binary.BigEndian.Uint16(extLen))
	case 127:
		extLen := make([]byte, 8)
		if _, err := io.ReadFull(r, extLen); err != nil {
			return nil, fmt.Errorf("failed to read extended length: %w", err)
		}
		frame.Raw = append(frame.Raw, extLen...)
		frame.Length = binary.BigEndian.Uint64(extLen)
	default:
		frame.Length = payloadLen
	}

	if frame.Masked {
		if _, err := io.ReadFull(r, frame.MaskKey[:]); err != nil {
			return nil, fmt.Errorf("failed to read mask key: %w", err)
		}
		frame.Raw = append(frame.Raw, frame.MaskKey[:]...)
	}

	if frame.Length > 0 {
		payload := make([]byte, frame.Length)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, fmt.Errorf("failed to read payload: %w", err)
		}
		frame.Raw = append(frame.Raw, payload...)

		if frame.Masked {
			frame.Payload = unmaskPayload(payload, frame.MaskKey)
		} else {
			frame.Payload = payload
		}
	}

	return frame, nil
}

// maskBytes XORs b in place with the mask key. Masking and unmasking are
// the same operation.
func maskBytes(b []byte, key [4]byte) {
	for i := range b {
		b[i] ^= key[i%4]
	}
}

// unmaskPayload returns an unmasked copy of payload
func unmaskPayload(payload []byte, maskKey [4]byte) []byte {
	unmasked := make([]byte, len(payload))
	copy(unmasked, payload)
	maskBytes(unmasked, maskKey)
	return unmasked
}
