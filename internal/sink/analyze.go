package sink

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/muurk/wstelemetry/internal/telemetry"
)

// maxCaptureLine bounds a single JSONL record. Payloads are limited to
// maxMessageSize, hex encoding doubles that.
const maxCaptureLine = 4*maxMessageSize + 4096

// ReadCapture loads every record of a capture file written by Capture.
// Lines that fail to parse are counted in skipped and otherwise ignored.
func ReadCapture(path string) (records []MessageAnalysis, skipped int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open capture: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxCaptureLine)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec MessageAnalysis
		if err := json.Unmarshal(line, &rec); err != nil {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return records, skipped, fmt.Errorf("failed to read capture: %w", err)
	}
	return records, skipped, nil
}

// Summary aggregates a capture by message type and device.
type Summary struct {
	Total    int
	Binary   int
	ByType   map[string]int
	ByDevice map[string]int
	Bytes    int
	First    time.Time
	Last     time.Time
}

// Summarize counts records by type and device ID. Records without a JSON
// payload count as binary.
func Summarize(records []MessageAnalysis) Summary {
	s := Summary{
		ByType:   make(map[string]int),
		ByDevice: make(map[string]int),
	}
	for _, rec := range records {
		s.Total++
		s.Bytes += rec.PayloadLen
		if s.First.IsZero() || rec.Timestamp.Before(s.First) {
			s.First = rec.Timestamp
		}
		if rec.Timestamp.After(s.Last) {
			s.Last = rec.Timestamp
		}

		if len(rec.Payload) == 0 {
			s.Binary++
			continue
		}
		env, err := telemetry.Peek(rec.Payload)
		if err != nil || env.Type == "" {
			s.ByType["unknown"]++
			continue
		}
		s.ByType[env.Type]++
		if env.DeviceID != "" {
			s.ByDevice[env.DeviceID]++
		}
	}
	return s
}

// Details flattens the summary for display.
func (s Summary) Details() map[string]string {
	d := map[string]string{
		"Messages": fmt.Sprintf("%d", s.Total),
		"Bytes":    fmt.Sprintf("%d", s.Bytes),
	}
	if s.Binary > 0 {
		d["Non-JSON"] = fmt.Sprintf("%d", s.Binary)
	}
	if s.Total > 0 {
		d["Span"] = s.Last.Sub(s.First).Round(time.Millisecond).String()
	}
	for _, t := range sortedKeys(s.ByType) {
		d["type "+t] = fmt.Sprintf("%d", s.ByType[t])
	}
	for _, id := range sortedKeys(s.ByDevice) {
		d["device "+id] = fmt.Sprintf("%d", s.ByDevice[id])
	}
	return d
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
