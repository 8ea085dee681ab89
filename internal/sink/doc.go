// Package sink implements a development receiver for telemetry clients.
//
// The sink accepts WebSocket connections on a single path, logs every
// message by its "type" field and can append each message to a JSON Lines
// capture file for offline analysis. It optionally pings clients on an
// interval and advertises itself over mDNS so clients with discovery
// enabled can find it.
//
// # Usage Example
//
//	srv, err := sink.New(&sink.Config{Port: 8080, AnalysisDir: "./captures"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := srv.Start(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Capture Format
//
// Each line of capture-<timestamp>.jsonl is one MessageAnalysis record.
// JSON text payloads are embedded under "payload"; anything else is stored
// as "payload_hex" and "payload_ascii". ReadCapture loads a capture back
// and Summarize counts its messages by type and device.
//
// # Thread Safety
//
// Each connection is served on its own goroutine. OnMessage may therefore
// be called concurrently for different clients.
package sink
