package sink

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func receive(t *testing.T, ch <-chan Message) Message {
	t.Helper()
	select {
	case m := <-ch:
		return m
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a message")
		return Message{}
	}
}

func TestCapture(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "captures")
	c, err := NewCapture(dir)
	if err != nil {
		t.Fatalf("NewCapture() error = %v", err)
	}

	c.Save("10.0.0.1:5000", 1, websocket.TextMessage, "heartbeat", []byte(`{"type":"heartbeat"}`))
	c.Save("10.0.0.1:5000", 2, websocket.BinaryMessage, "", []byte{0x01, 'A'})
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	c.Save("10.0.0.1:5000", 3, websocket.TextMessage, "", []byte(`{}`))

	if !strings.HasPrefix(filepath.Base(c.Path()), "capture-") {
		t.Errorf("Path() = %q", c.Path())
	}

	f, err := os.Open(c.Path())
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()

	var records []MessageAnalysis
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec MessageAnalysis
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("invalid JSONL line %q: %v", scanner.Text(), err)
		}
		records = append(records, rec)
	}

	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].FrameType != "text" || records[0].MessageType != "heartbeat" || string(records[0].Payload) != `{"type":"heartbeat"}` {
		t.Errorf("text record = %+v", records[0])
	}
	if records[1].FrameType != "binary" || records[1].PayloadHex != "0141" || records[1].PayloadAscii != ".A" {
		t.Errorf("binary record = %+v", records[1])
	}
}

func TestCapture_Nil(t *testing.T) {
	var c *Capture
	c.Save("x", 1, websocket.TextMessage, "", nil)
	if err := c.Close(); err != nil {
		t.Errorf("Close() on nil = %v", err)
	}
	if c.Path() != "" {
		t.Error("Path() on nil should be empty")
	}
}

func TestToASCII(t *testing.T) {
	if got := toASCII([]byte{'h', 0x00, 'i', 0x7F}); got != "h.i." {
		t.Errorf("toASCII() = %q", got)
	}
}

func TestNewTLSConfig_Errors(t *testing.T) {
	if _, err := NewTLSConfig("", ""); err == nil {
		t.Error("expected error without cert and key")
	}
	if _, err := NewTLSConfig("/nonexistent/cert.pem", "/nonexistent/key.pem"); err == nil {
		t.Error("expected error for missing files")
	}
	if _, err := New(&Config{CertPath: "/nonexistent/cert.pem"}); err == nil {
		t.Error("New() should fail when only a certificate is given")
	}
}

func TestServer_ListenServeShutdown(t *testing.T) {
	srv, err := New(&Config{Host: "127.0.0.1", Port: 0})
	if err != nil {
		t.Fatal(err)
	}
	if err := srv.Serve(); err == nil {
		t.Error("Serve() before Listen() should fail")
	}

	got := make(chan Message, 4)
	srv.OnMessage = func(m Message) { got <- m }

	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	if srv.Port() == 0 {
		t.Fatal("Port() = 0 after Listen")
	}

	served := make(chan error, 1)
	go func() { served <- srv.Serve() }()

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+srv.Addr()+DefaultPath, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer func() { _ = conn.Close() }()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"heartbeat","device_id":"d1"}`)); err != nil {
		t.Fatal(err)
	}
	msg := receive(t, got)
	if msg.Type != "heartbeat" || msg.DeviceID != "d1" {
		t.Errorf("message = %+v", msg)
	}
	if srv.GetActiveConnections() != 1 {
		t.Errorf("GetActiveConnections() = %d, want 1", srv.GetActiveConnections())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}

	select {
	case err := <-served:
		if err != nil {
			t.Errorf("Serve() returned %v after shutdown", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return after Shutdown")
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseGoingAway) && err == nil {
		t.Error("client should see the connection end")
	}
	if srv.GetActiveConnections() != 0 {
		t.Errorf("GetActiveConnections() = %d after shutdown", srv.GetActiveConnections())
	}
}

func TestServer_RejectsUpgradeAfterShutdown(t *testing.T) {
	srv, err := New(&Config{})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, DefaultPath, nil)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	if srv.GetActiveConnections() != 0 {
		t.Errorf("GetActiveConnections() = %d", srv.GetActiveConnections())
	}
}

func TestServer_NonJSONText(t *testing.T) {
	srv, err := New(&Config{})
	if err != nil {
		t.Fatal(err)
	}
	got := make(chan Message, 1)
	srv.OnMessage = func(m Message) { got <- m }

	srv.handleMessage("peer", 1, websocket.TextMessage, []byte("not json"))
	msg := receive(t, got)
	if msg.Type != "" || string(msg.Payload) != "not json" {
		t.Errorf("message = %+v", msg)
	}
	if srv.Received() != 1 {
		t.Errorf("Received() = %d, want 1", srv.Received())
	}
}
