package protocol

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	"github.com/muurk/wstelemetry/internal/wserr"
)

// DefaultMaxMessageSize bounds a single frame payload and a reassembled
// fragmented message.
const DefaultMaxMessageSize = 64 * 1024

// EventKind identifies what a decoded Event carries
type EventKind int

const (
	// EventMessage is a complete text or binary message
	EventMessage EventKind = iota
	// EventPing must be answered with a pong echoing the payload
	EventPing
	// EventPong is a pong from the server
	EventPong
	// EventClose signals the server is closing the connection
	EventClose
	// EventError is a protocol violation; the connection must be torn down
	EventError
)

// String returns a human-readable event kind
func (k EventKind) String() string {
	switch k {
	case EventMessage:
		return "message"
	case EventPing:
		return "ping"
	case EventPong:
		return "pong"
	case EventClose:
		return "close"
	case EventError:
		return "protocol_error"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is one result of feeding bytes to the Decoder
type Event struct {
	Kind        EventKind
	Opcode      Opcode // OpText or OpBinary for EventMessage
	Payload     []byte
	CloseCode   uint16 // EventClose only
	CloseReason string // EventClose only
	Err         error  // EventError only
}

// Decoder turns a stream of server bytes into Events. It buffers partial
// frames across Feed calls and reassembles fragmented messages. It never
// blocks; a Feed with too few bytes simply yields nothing.
//
// After an EventError the decoder ignores further input until Reset.
type Decoder struct {
	maxMessage int

	buf []byte

	inMessage bool
	pendingOp Opcode
	pending   []byte

	failed bool
}

// NewDecoder creates a decoder. maxMessage <= 0 selects DefaultMaxMessageSize.
func NewDecoder(maxMessage int) *Decoder {
	if maxMessage <= 0 {
		maxMessage = DefaultMaxMessageSize
	}
	return &Decoder{maxMessage: maxMessage}
}

// Reset drops buffered bytes and any in-progress fragmented message.
func (d *Decoder) Reset() {
	d.buf = nil
	d.inMessage = false
	d.pendingOp = 0
	d.pending = nil
	d.failed = false
}

// Buffered returns the number of bytes held for incomplete frames and
// in-progress messages.
func (d *Decoder) Buffered() int {
	return len(d.buf) + len(d.pending)
}

// Pending reports whether a fragmented message is being reassembled.
func (d *Decoder) Pending() bool {
	return d.inMessage
}

// Feed consumes p and returns the events completed by it, in wire order.
func (d *Decoder) Feed(p []byte) []Event {
	if d.failed {
		return nil
	}
	d.buf = append(d.buf, p...)

	var events []Event
	consumed := 0
	for {
		frame, n, err := parseFrame(d.buf[consumed:], d.maxMessage)
		if err != nil {
			return append(events, d.fail(err))
		}
		if n == 0 {
			break
		}
		consumed += n

		ev, ok, err := d.handle(frame)
		if err != nil {
			return append(events, d.fail(err))
		}
		if ok {
			events = append(events, ev)
		}
	}

	// Compact so the buffer only ever holds one incomplete frame.
	if consumed > 0 {
		remaining := copy(d.buf, d.buf[consumed:])
		d.buf = d.buf[:remaining]
	}

	return events
}

func (d *Decoder) fail(err error) Event {
	d.failed = true
	d.buf = nil
	d.inMessage = false
	d.pending = nil
	return Event{Kind: EventError, Err: err}
}

func (d *Decoder) handle(f *Frame) (Event, bool, error) {
	switch f.Opcode {
	case OpPing:
		return Event{Kind: EventPing, Payload: f.Payload}, true, nil

	case OpPong:
		return Event{Kind: EventPong, Payload: f.Payload}, true, nil

	case OpClose:
		return parseClose(f.Payload)

	case OpText, OpBinary:
		if d.inMessage {
			return Event{}, false, protocolError("new %s frame while a fragmented %s message is pending",
				f.Opcode, d.pendingOp)
		}
		if f.FIN {
			return completeMessage(f.Opcode, f.Payload)
		}
		d.inMessage = true
		d.pendingOp = f.Opcode
		d.pending = append(d.pending[:0], f.Payload...)
		return Event{}, false, nil

	case OpContinuation:
		if !d.inMessage {
			return Event{}, false, protocolError("continuation frame without a pending message")
		}
		if len(d.pending)+len(f.Payload) > d.maxMessage {
			return Event{}, false, protocolError("fragmented message exceeds %d bytes", d.maxMessage)
		}
		d.pending = append(d.pending, f.Payload...)
		if !f.FIN {
			return Event{}, false, nil
		}
		op, payload := d.pendingOp, d.pending
		d.inMessage = false
		d.pending = nil
		return completeMessage(op, payload)
	}

	// parseFrame already rejected reserved opcodes
	return Event{}, false, protocolError("unexpected opcode %s", f.Opcode)
}

func completeMessage(op Opcode, payload []byte) (Event, bool, error) {
	if op == OpText && !utf8.Valid(payload) {
		return Event{}, false, protocolError("text message is not valid UTF-8")
	}
	return Event{Kind: EventMessage, Opcode: op, Payload: payload}, true, nil
}

func parseClose(payload []byte) (Event, bool, error) {
	switch {
	case len(payload) == 0:
		return Event{Kind: EventClose, CloseCode: CloseNoStatus}, true, nil
	case len(payload) == 1:
		return Event{}, false, protocolError("close frame with 1-byte payload")
	}

	code := binary.BigEndian.Uint16(payload[:2])
	if !ValidCloseCode(code) {
		return Event{}, false, protocolError("invalid close code %d", code)
	}
	reason := payload[2:]
	if !utf8.Valid(reason) {
		return Event{}, false, protocolError("close reason is not valid UTF-8")
	}
	return Event{
		Kind:        EventClose,
		CloseCode:   code,
		CloseReason: string(reason),
		Payload:     payload,
	}, true, nil
}

// parseFrame parses one server frame from the start of buf. It returns
// n == 0 when buf does not yet hold a complete frame.
func parseFrame(buf []byte, maxPayload int) (*Frame, int, error) {
	if len(buf) < 2 {
		return nil, 0, nil
	}

	b0, b1 := buf[0], buf[1]
	f := &Frame{
		FIN:    b0&finBit != 0,
		RSV1:   b0&0x40 != 0,
		RSV2:   b0&0x20 != 0,
		RSV3:   b0&0x10 != 0,
		Opcode: Opcode(b0 & 0x0F),
		Masked: b1&maskBit != 0,
	}

	if b0&rsvBits != 0 {
		return nil, 0, protocolError("reserved bits set without a negotiated extension")
	}
	if f.Opcode.IsReserved() {
		return nil, 0, protocolError("reserved opcode %s", f.Opcode)
	}
	if f.Masked {
		return nil, 0, protocolError("masked frame from server")
	}

	headerLen := 2
	length := uint64(b1 & 0x7F)
	switch length {
	case 126:
		if len(buf) < 4 {
			return nil, 0, nil
		}
		headerLen = 4
		length = uint64(binary.BigEndian.Uint16(buf[2:4]))
		if length < 126 {
			return nil, 0, protocolError("non-minimal 16-bit length %d", length)
		}
	case 127:
		if len(buf) < 10 {
			return nil, 0, nil
		}
		headerLen = 10
		length = binary.BigEndian.Uint64(buf[2:10])
		if length&(1<<63) != 0 {
			return nil, 0, protocolError("64-bit length with the most significant bit set")
		}
		if length <= 0xFFFF {
			return nil, 0, protocolError("non-minimal 64-bit length %d", length)
		}
	}

	if f.Opcode.IsControl() {
		if !f.FIN {
			return nil, 0, protocolError("fragmented %s frame", f.Opcode)
		}
		if length > MaxControlPayload {
			return nil, 0, protocolError("%s frame payload of %d bytes exceeds %d", f.Opcode, length, MaxControlPayload)
		}
	}
	if length > uint64(maxPayload) {
		return nil, 0, protocolError("frame payload of %d bytes exceeds %d", length, maxPayload)
	}

	total := headerLen + int(length)
	if len(buf) < total {
		return nil, 0, nil
	}

	f.Length = length
	f.Payload = make([]byte, length)
	copy(f.Payload, buf[headerLen:total])

	return f, total, nil
}

func protocolError(format string, args ...interface{}) error {
	return wserr.NewProtocolError("decode_frame", fmt.Sprintf(format, args...))
}
