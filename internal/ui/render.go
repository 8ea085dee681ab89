package ui

import (
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muurk/wstelemetry/internal/client"
)

func row(key, value string) string {
	return KeyStyle.Render(key) + ValueStyle.Render(value)
}

// RenderStatus renders a client snapshot as a bordered status box. spin is
// shown next to the state while a connection is being established.
func RenderStatus(s client.Snapshot, spin string, width int) string {
	width = clampWidth(width)
	var lines []string

	lines = append(lines, TitleStyle.Render("WEBSOCKET TELEMETRY CLIENT"))
	if s.URL != "" {
		lines = append(lines, SubtitleStyle.Render(s.URL))
	}
	lines = append(lines, RenderHorizontalDivider(width-6, "─"))

	state := StateStyle(s.State).Render(strings.ToUpper(s.State.String()))
	switch s.State {
	case client.Connecting, client.HandshakePending:
		if spin != "" {
			state = spin + " " + state
		}
	case client.Open:
		state += ValueStyle.Render(fmt.Sprintf("  for %s", formatMillis(s.OpenForMs)))
	case client.Disconnected:
		if s.Configured {
			state += ValueStyle.Render(fmt.Sprintf("  retry in %s", formatMillis(s.RetryInMs)))
		}
	}
	lines = append(lines, row("State:", state))

	if !s.Configured {
		msg := "not configured"
		if s.ConfigError != "" {
			msg = s.ConfigError
		}
		lines = append(lines, row("Config:", ErrorMessageStyle.Render(msg)))
	} else {
		tls := "no"
		if s.Endpoint.Secure() {
			tls = "yes"
		}
		lines = append(lines,
			row("Endpoint:", s.Endpoint.Address()+s.Endpoint.Path),
			row("TLS:", tls),
			row("Reconnect:", formatMillis(s.ReconnectMs)),
			row("Heartbeat:", formatMillis(s.HeartbeatMs)),
		)
	}

	lines = append(lines, SectionStyle.Render("Counters"))
	lines = append(lines,
		row("Attempts:", fmt.Sprintf("%d (%d connected, %d failed)", s.Stats.Attempts, s.Stats.Connects, s.Stats.Failures)),
		row("Sent:", fmt.Sprintf("%d messages, %d bytes", s.Stats.MessagesSent, s.Stats.BytesSent)),
		row("Heartbeats:", fmt.Sprintf("%d", s.Stats.Heartbeats)),
		row("Received:", fmt.Sprintf("%d events", s.Stats.EventsReceived)),
		row("Readings:", fmt.Sprintf("%d sent, %d unchanged, %d dropped, %d queued",
			s.Publisher.Sent, s.Publisher.Suppressed, s.Publisher.Dropped, s.QueueLen)),
	)
	if s.Stats.LastError != "" {
		lines = append(lines, row("Last error:", ErrorMessageStyle.Render(s.Stats.LastError)))
	}

	if len(s.Sensors) > 0 {
		lines = append(lines, SectionStyle.Render("Sensors"))
		for _, sensor := range s.Sensors {
			value := IdleMarker
			if !math.IsNaN(sensor.LastReported) {
				value = fmt.Sprintf("%.2f%s", sensor.LastReported, sensor.Unit)
			}
			lines = append(lines, row(sensor.Name, fmt.Sprintf("%s  (%s)", value, sensor.SensorID)))
		}
	}

	return BoxStyle(width).Render(strings.Join(lines, "\n"))
}

// RenderDetails renders a titled list of key/value pairs, sorted by key.
func RenderDetails(title string, details map[string]string, width int) string {
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := []string{SuccessTitleStyle.Render(SuccessMarker + "  " + title)}
	for _, k := range keys {
		lines = append(lines, row(k+":", details[k]))
	}
	return BoxStyle(clampWidth(width)).Render(strings.Join(lines, "\n"))
}

// RenderErrorBox renders an error result box with troubleshooting tips
func RenderErrorBox(title string, err error, troubleshooting []string, width int) string {
	lines := []string{ErrorTitleStyle.Render(FailureMarker + "  FAILED  ─  " + title)}
	if err != nil {
		lines = append(lines, "", ErrorMessageStyle.Render("Error: "+err.Error()))
	}
	if len(troubleshooting) > 0 {
		lines = append(lines, "", SubtitleStyle.Render("Troubleshooting:"))
		for _, tip := range troubleshooting {
			lines = append(lines, SubtitleStyle.Render("  • "+tip))
		}
	}
	return ErrorBoxStyle(clampWidth(width)).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func formatMillis(ms uint32) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	if ms%1000 == 0 {
		return fmt.Sprintf("%ds", ms/1000)
	}
	return fmt.Sprintf("%.1fs", float64(ms)/1000)
}

// Printer writes rendered components to a writer at the terminal width.
type Printer struct {
	out   io.Writer
	width int
}

// NewPrinter creates a new Printer that writes to the given writer.
// If w is nil, os.Stdout is used.
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{
		out:   w,
		width: GetTerminalWidth(),
	}
}

// Width returns the width used by this printer
func (p *Printer) Width() int {
	return p.width
}

// PrintStatus prints a client snapshot
func (p *Printer) PrintStatus(s client.Snapshot) {
	_, _ = fmt.Fprintln(p.out, RenderStatus(s, "", p.width))
}

// PrintDetails prints a titled key/value box
func (p *Printer) PrintDetails(title string, details map[string]string) {
	_, _ = fmt.Fprintln(p.out, RenderDetails(title, details, p.width))
}

// PrintError prints an error result box with troubleshooting tips
func (p *Printer) PrintError(title string, err error, troubleshooting []string) {
	_, _ = fmt.Fprintln(p.out, RenderErrorBox(title, err, troubleshooting, p.width))
}
