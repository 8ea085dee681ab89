package transport

import (
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/muurk/wstelemetry/internal/urls"
)

func listen(t *testing.T) (net.Listener, urls.Endpoint) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = ln.Close() })
	return ln, urls.Endpoint{
		Scheme: urls.SchemeWS,
		Host:   "127.0.0.1",
		Port:   ln.Addr().(*net.TCPAddr).Port,
		Path:   "/",
	}
}

func waitWritable(t *testing.T, c Conn) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		ok, err := c.Writable()
		if err != nil {
			t.Fatalf("Writable() error = %v", err)
		}
		if ok {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("connection never became writable")
}

func readSome(t *testing.T, c Conn, p []byte) (int, error) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		n, err := c.Read(p)
		if errors.Is(err, ErrWouldBlock) {
			time.Sleep(time.Millisecond)
			continue
		}
		return n, err
	}
	t.Fatal("read timed out")
	return 0, nil
}

func TestTCPConn_EchoAndEOF(t *testing.T) {
	ln, ep := listen(t)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		buf := make([]byte, 5)
		if _, err := io.ReadFull(conn, buf); err == nil {
			_, _ = conn.Write(buf)
		}
		_ = conn.Close()
	}()

	c, err := NewTCPDialer(nil).Dial(ep)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer c.Close()

	if n, err := c.Read(make([]byte, 1)); n != 0 || !(errors.Is(err, ErrWouldBlock) || err == nil) {
		t.Errorf("Read before connect = %d, %v", n, err)
	}

	waitWritable(t, c)
	if _, err := c.Write([]byte("hello")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	var got []byte
	buf := make([]byte, 2)
	for len(got) < 5 {
		n, err := readSome(t, c, buf)
		if err != nil {
			t.Fatalf("Read() error = %v after %q", err, got)
		}
		got = append(got, buf[:n]...)
	}
	if string(got) != "hello" {
		t.Errorf("read %q, want hello", got)
	}

	if _, err := readSome(t, c, buf); !errors.Is(err, io.EOF) {
		t.Errorf("after peer close Read() error = %v, want io.EOF", err)
	}
}

func TestTCPConn_RefusedConnect(t *testing.T) {
	ln, ep := listen(t)
	_ = ln.Close()

	c, err := NewTCPDialer(nil).Dial(ep)
	if err != nil {
		t.Fatalf("Dial() must not fail synchronously: %v", err)
	}
	defer c.Close()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		ok, err := c.Writable()
		if err != nil {
			if _, err := c.Write([]byte("x")); err == nil {
				t.Error("Write on a failed connection should fail")
			}
			return
		}
		if ok {
			t.Fatal("connection to a closed port became writable")
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("refused connection never reported an error")
}

func TestTCPConn_CloseIdempotent(t *testing.T) {
	_, ep := listen(t)
	c, _ := NewTCPDialer(nil).Dial(ep)
	_ = c.Close()
	_ = c.Close()
}

func TestTCPDialer_TLSServerName(t *testing.T) {
	ep := urls.Endpoint{Scheme: urls.SchemeWSS, Host: "telemetry.example.com", Port: 443, Path: "/"}

	cfg := NewTCPDialer(nil).tlsConfigFor(ep)
	if cfg.ServerName != "telemetry.example.com" {
		t.Errorf("ServerName = %q, want the endpoint host", cfg.ServerName)
	}

	custom, err := NewTLSConfig(TLSOptions{ServerName: "override.local"})
	if err != nil {
		t.Fatal(err)
	}
	cfg = NewTCPDialer(custom).tlsConfigFor(ep)
	if cfg.ServerName != "override.local" {
		t.Errorf("ServerName = %q, want override.local", cfg.ServerName)
	}
	if custom.ServerName != "override.local" {
		t.Error("tlsConfigFor must not modify the shared config")
	}
}

func TestNewTLSConfig_CAFile(t *testing.T) {
	if _, err := NewTLSConfig(TLSOptions{CAFile: filepath.Join(t.TempDir(), "missing.pem")}); err == nil {
		t.Error("expected error for missing CA file")
	}

	bad := filepath.Join(t.TempDir(), "bad.pem")
	if err := os.WriteFile(bad, []byte("not a certificate"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewTLSConfig(TLSOptions{CAFile: bad}); err == nil {
		t.Error("expected error for CA file without certificates")
	}
}

func TestTLSInfo(t *testing.T) {
	if TLSInfo(nil)["enabled"] != false {
		t.Error("nil config should report disabled")
	}
	cfg, _ := NewTLSConfig(TLSOptions{InsecureSkipVerify: true})
	info := TLSInfo(cfg)
	if info["min_version"] != "TLS 1.2" || info["insecure_skip_verify"] != true {
		t.Errorf("TLSInfo() = %v", info)
	}
}

func TestLinkMonitor_Caches(t *testing.T) {
	probes := 0
	up := true
	m := NewLinkMonitor(func() bool {
		probes++
		return up
	})
	now := time.Unix(1000, 0)
	m.now = func() time.Time { return now }

	if !m.Available() {
		t.Fatal("first probe should report up")
	}
	up = false
	if !m.Available() {
		t.Error("cached result should be reused within the TTL")
	}
	if probes != 1 {
		t.Errorf("probes = %d, want 1", probes)
	}

	now = now.Add(linkCacheTTL)
	if m.Available() {
		t.Error("stale cache should be refreshed")
	}
	if probes != 2 {
		t.Errorf("probes = %d, want 2", probes)
	}
}

func TestNewLink(t *testing.T) {
	l, err := NewLink("always")
	if err != nil || !l.Available() {
		t.Errorf("always link = %v, %v", l, err)
	}
	if _, err := NewLink("auto"); err != nil {
		t.Errorf("auto link error = %v", err)
	}
	if _, err := NewLink("sometimes"); err == nil {
		t.Error("expected error for unknown mode")
	}
}
