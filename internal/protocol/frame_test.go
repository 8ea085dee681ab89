package protocol

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestReadFrame(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr bool
		verify  func(t *testing.T, frame *Frame)
	}{
		{
			name: "simple unmasked text frame",
			data: []byte{
				0x81, // FIN + text opcode
				0x05, // No mask, 5 byte payload
				'H', 'e', 'l', 'l', 'o',
			},
			verify: func(t *testing.T, frame *Frame) {
				if !frame.FIN {
					t.Error("FIN should be true")
				}
				if frame.Opcode != OpText {
					t.Errorf("opcode = %s, want text", frame.Opcode)
				}
				if frame.Masked {
					t.Error("masked should be false")
				}
				if !bytes.Equal(frame.Payload, []byte("Hello")) {
					t.Errorf("payload = %v, want 'Hello'", frame.Payload)
				}
			},
		},
		{
			name: "masked text frame",
			data: func() []byte {
				payload := []byte(`{"a":1}`)
				maskKey := [4]byte{0xAA, 0xBB, 0xCC, 0xDD}
				masked := make([]byte, len(payload))
				for i := range payload {
					masked[i] = payload[i] ^ maskKey[i%4]
				}
				return append([]byte{
					0x81,
					0x80 | byte(len(payload)),
					maskKey[0], maskKey[1], maskKey[2], maskKey[3],
				}, masked...)
			}(),
			verify: func(t *testing.T, frame *Frame) {
				if !frame.Masked {
					t.Error("masked should be true")
				}
				if !bytes.Equal(frame.Payload, []byte(`{"a":1}`)) {
					t.Errorf("payload = %q", frame.Payload)
				}
			},
		},
		{
			name: "frame with extended payload length (16-bit)",
			data: func() []byte {
				payloadSize := 126
				payload := make([]byte, payloadSize)
				for i := range payload {
					payload[i] = byte(i % 256)
				}
				return append([]byte{
					0x82,
					0x7E,
					byte(payloadSize >> 8),
					byte(payloadSize & 0xFF),
				}, payload...)
			}(),
			verify: func(t *testing.T, frame *Frame) {
				if len(frame.Payload) != 126 {
					t.Errorf("payload length = %d, want 126", len(frame.Payload))
				}
			},
		},
		{
			name:    "incomplete frame (truncated header)",
			data:    []byte{0x81},
			wantErr: true,
		},
		{
			name:    "incomplete frame (truncated payload)",
			data:    []byte{0x81, 0x05, 'H', 'i'},
			wantErr: true,
		},
		{
			name:    "incomplete masked frame (missing mask key)",
			data:    []byte{0x82, 0x83},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := ReadFrame(bytes.NewReader(tt.data))

			if (err != nil) != tt.wantErr {
				t.Fatalf("ReadFrame() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && tt.verify != nil {
				tt.verify(t, frame)
			}
		})
	}
}

func TestReadFrame_EOF(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader(nil))
	if !errors.Is(err, io.EOF) {
		t.Errorf("expected wrapped io.EOF, got %v", err)
	}
}

func TestEncode_RoundTrip(t *testing.T) {
	enc := NewEncoder(nil)

	for _, size := range []int{0, 1, 125, 126, 1000, 65535} {
		payload := make([]byte, size)
		for i := range payload {
			payload[i] = byte(i * 7)
		}

		frameBytes, err := enc.Encode(OpText, payload)
		if err != nil {
			t.Fatalf("Encode(len=%d) error = %v", size, err)
		}

		frame, err := ReadFrame(bytes.NewReader(frameBytes))
		if err != nil {
			t.Fatalf("ReadFrame(len=%d) error = %v", size, err)
		}
		if !frame.FIN || frame.Opcode != OpText {
			t.Errorf("len=%d: got %s", size, frame)
		}
		if !frame.Masked {
			t.Errorf("len=%d: client frames must be masked", size)
		}
		if !bytes.Equal(frame.Payload, payload) {
			t.Errorf("len=%d: payload did not round-trip", size)
		}
	}
}

func TestEncode_HeaderLayout(t *testing.T) {
	tests := []struct {
		size       int
		wantHeader []byte
	}{
		{0, []byte{0x81, 0x80}},
		{125, []byte{0x81, 0x80 | 125}},
		{126, []byte{0x81, 0x80 | 126, 0x00, 0x7E}},
		{65535, []byte{0x81, 0x80 | 126, 0xFF, 0xFF}},
	}

	enc := NewEncoder(bytes.NewReader(bytes.Repeat([]byte{0x11, 0x22, 0x33, 0x44}, 8)))
	for _, tt := range tests {
		frame, err := enc.Encode(OpText, make([]byte, tt.size))
		if err != nil {
			t.Fatalf("Encode(len=%d) error = %v", tt.size, err)
		}
		if !bytes.HasPrefix(frame, tt.wantHeader) {
			t.Errorf("len=%d: header = % x, want % x", tt.size, frame[:len(tt.wantHeader)], tt.wantHeader)
		}
		mask := frame[len(tt.wantHeader) : len(tt.wantHeader)+4]
		if !bytes.Equal(mask, []byte{0x11, 0x22, 0x33, 0x44}) {
			t.Errorf("len=%d: mask = % x", tt.size, mask)
		}
		if len(frame) != len(tt.wantHeader)+4+tt.size {
			t.Errorf("len=%d: frame length = %d", tt.size, len(frame))
		}
	}
}

func TestEncode_TooLarge(t *testing.T) {
	enc := NewEncoder(nil)
	_, err := enc.Encode(OpText, make([]byte, 65536))
	if !errors.Is(err, ErrMessageTooLarge) {
		t.Errorf("Encode(65536) error = %v, want ErrMessageTooLarge", err)
	}

	_, err = enc.Encode(OpPing, make([]byte, 126))
	if !errors.Is(err, ErrMessageTooLarge) {
		t.Errorf("Encode(ping, 126) error = %v, want ErrMessageTooLarge", err)
	}
}

func TestEncode_ReservedOpcode(t *testing.T) {
	if _, err := NewEncoder(nil).Encode(Opcode(0x3), nil); err == nil {
		t.Error("expected error for reserved opcode")
	}
}

func TestEncode_FreshMaskPerFrame(t *testing.T) {
	enc := NewEncoder(nil)
	payload := []byte(`{"type":"heartbeat"}`)

	first, err := enc.EncodeText(payload)
	if err != nil {
		t.Fatal(err)
	}
	second, err := enc.EncodeText(payload)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(first, second) {
		t.Error("encoding the same payload twice produced identical frames")
	}
}

func TestEncode_MaskSourceFailure(t *testing.T) {
	enc := NewEncoder(bytes.NewReader([]byte{0x01}))
	if _, err := enc.EncodeText([]byte("x")); err == nil {
		t.Error("expected error when the random source is exhausted")
	}
}

func TestClosePayload(t *testing.T) {
	got := ClosePayload(CloseNormal, "bye")
	want := []byte{0x03, 0xE8, 'b', 'y', 'e'}
	if !bytes.Equal(got, want) {
		t.Errorf("ClosePayload() = % x, want % x", got, want)
	}

	long := ClosePayload(CloseNormal, string(bytes.Repeat([]byte("x"), 200)))
	if len(long) != MaxControlPayload {
		t.Errorf("long close payload = %d bytes, want %d", len(long), MaxControlPayload)
	}
}

func TestUnmaskPayload(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		maskKey [4]byte
		want    []byte
	}{
		{
			name:    "simple unmasking",
			payload: []byte{0xAB, 0xBA, 0xCD, 0xDC},
			maskKey: [4]byte{0xAA, 0xBB, 0xCC, 0xDD},
			want:    []byte{0x01, 0x01, 0x01, 0x01},
		},
		{
			name:    "empty payload",
			payload: []byte{},
			maskKey: [4]byte{0x01, 0x02, 0x03, 0x04},
			want:    []byte{},
		},
		{
			name:    "payload longer than mask key",
			payload: []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08},
			maskKey: [4]byte{0x01, 0x01, 0x01, 0x01},
			want:    []byte{0x00, 0x03, 0x02, 0x05, 0x04, 0x07, 0x06, 0x09},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := append([]byte(nil), tt.payload...)
			got := unmaskPayload(tt.payload, tt.maskKey)
			if !bytes.Equal(got, tt.want) {
				t.Errorf("unmaskPayload() = %v, want %v", got, tt.want)
			}
			if !bytes.Equal(tt.payload, original) {
				t.Error("unmaskPayload() must not modify its input")
			}
		})
	}
}

func TestOpcode_String(t *testing.T) {
	tests := []struct {
		opcode Opcode
		want   string
	}{
		{OpContinuation, "continuation"},
		{OpText, "text"},
		{OpBinary, "binary"},
		{OpClose, "close"},
		{OpPing, "ping"},
		{OpPong, "pong"},
		{Opcode(0x05), "unknown(0x5)"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.opcode.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOpcode_Classes(t *testing.T) {
	for _, op := range []Opcode{OpClose, OpPing, OpPong} {
		if !op.IsControl() {
			t.Errorf("%s should be a control opcode", op)
		}
	}
	for _, op := range []Opcode{OpContinuation, OpText, OpBinary} {
		if op.IsControl() {
			t.Errorf("%s should not be a control opcode", op)
		}
	}
	for _, op := range []Opcode{0x3, 0x7, 0xB, 0xF} {
		if !op.IsReserved() {
			t.Errorf("%s should be reserved", op)
		}
	}
}

func TestFrame_String(t *testing.T) {
	frame := &Frame{FIN: true, Opcode: OpBinary, Masked: true, Length: 3}
	want := "Frame{FIN=true, Opcode=binary, Masked=true, Length=3}"
	if got := frame.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func BenchmarkEncode(b *testing.B) {
	enc := NewEncoder(nil)
	payload := bytes.Repeat([]byte("x"), 256)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = enc.EncodeText(payload)
	}
}
