// Package protocol implements the client side of the WebSocket wire protocol
// used by the telemetry client.
//
// The package is split into three parts:
//   - Frame encoding: masked client frames with a fresh 4-byte mask per frame
//   - Frame decoding: a streaming Decoder for unmasked server frames
//   - Handshake: request construction and response validation
//
// # Frame Encoding
//
// Client frames are always final (FIN=1) and masked. Payloads up to 125
// bytes use the 7-bit length, larger payloads the 16-bit extended length.
// Payloads of 65536 bytes or more are rejected with ErrMessageTooLarge.
//
//	enc := protocol.NewEncoder(nil)
//	frame, err := enc.EncodeText([]byte(`{"type":"heartbeat"}`))
//	if err != nil {
//	    return err
//	}
//	_, err = conn.Write(frame)
//
// # Frame Decoding
//
// The Decoder never blocks. Feed it whatever bytes the transport produced
// and it returns the events those bytes completed. Partial frames are kept
// until the next Feed. Fragmented text and binary messages are reassembled
// into a single EventMessage; control frames may arrive between fragments.
//
//	for _, ev := range dec.Feed(buf[:n]) {
//	    switch ev.Kind {
//	    case protocol.EventPing:
//	        // reply with a pong carrying ev.Payload
//	    case protocol.EventError:
//	        // tear down the connection
//	    }
//	}
//
// The decoder reports EventError for masked server frames, reserved opcodes
// or RSV bits, fragmented or oversized control frames, non-minimal lengths,
// orphan continuations and invalid UTF-8 in text messages or close reasons.
//
// # Handshake
//
// BuildRequest produces the HTTP/1.1 Upgrade request. ResponseReader
// buffers the response until the blank line, bounded by a maximum header
// size, and returns any bytes that followed the header so they can be fed
// to the Decoder. Sec-WebSocket-Accept checking is governed by AcceptPolicy.
//
// # Server Side
//
// ReadFrame is the blocking reader used by the capture sink and tests to
// inspect masked client frames.
//
// # Thread Safety
//
// Encoder is safe for concurrent use if its random source is. Decoder and
// ResponseReader are owned by a single connection and are not safe for
// concurrent use.
package protocol
