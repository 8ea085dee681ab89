package sink

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gorilla/websocket"
)

func TestReadCaptureAndSummarize(t *testing.T) {
	c, err := NewCapture(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	c.Save("a", 1, websocket.TextMessage, "connection", []byte(`{"type":"connection","device_id":"dev-1"}`))
	c.Save("a", 2, websocket.TextMessage, "heartbeat", []byte(`{"type":"heartbeat","device_id":"dev-1"}`))
	c.Save("b", 1, websocket.TextMessage, "heartbeat", []byte(`{"type":"heartbeat","device_id":"dev-2"}`))
	c.Save("b", 2, websocket.BinaryMessage, "", []byte{0x00, 0x01})
	c.Save("b", 3, websocket.TextMessage, "", []byte(`{"value":1}`))
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}

	f, err := os.OpenFile(c.Path(), os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = f.WriteString("not json\n\n")
	f.Close()

	records, skipped, err := ReadCapture(c.Path())
	if err != nil {
		t.Fatalf("ReadCapture() error = %v", err)
	}
	if len(records) != 5 || skipped != 1 {
		t.Fatalf("got %d records, %d skipped; want 5 and 1", len(records), skipped)
	}

	s := Summarize(records)
	if s.Total != 5 || s.Binary != 1 {
		t.Errorf("Total = %d, Binary = %d", s.Total, s.Binary)
	}
	if s.ByType["heartbeat"] != 2 || s.ByType["connection"] != 1 || s.ByType["unknown"] != 1 {
		t.Errorf("ByType = %v", s.ByType)
	}
	if s.ByDevice["dev-1"] != 2 || s.ByDevice["dev-2"] != 1 {
		t.Errorf("ByDevice = %v", s.ByDevice)
	}
	if s.Last.Before(s.First) {
		t.Errorf("Last %v before First %v", s.Last, s.First)
	}

	d := s.Details()
	if d["Messages"] != "5" || d["type heartbeat"] != "2" || d["device dev-2"] != "1" || d["Non-JSON"] != "1" {
		t.Errorf("Details() = %v", d)
	}
}

func TestReadCapture_Missing(t *testing.T) {
	if _, _, err := ReadCapture(filepath.Join(t.TempDir(), "nope.jsonl")); err == nil {
		t.Error("expected error for a missing file")
	}
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)
	if s.Total != 0 {
		t.Errorf("Total = %d", s.Total)
	}
	if _, ok := s.Details()["Span"]; ok {
		t.Error("empty summary should not report a span")
	}
}
