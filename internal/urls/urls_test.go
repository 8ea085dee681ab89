package urls

import (
	"testing"

	"github.com/muurk/wstelemetry/internal/wserr"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want Endpoint
	}{
		{
			name: "ws with path",
			url:  "ws://h/p",
			want: Endpoint{Scheme: SchemeWS, Host: "h", Port: 80, Path: "/p"},
		},
		{
			name: "wss with explicit port and no path",
			url:  "wss://h:9443",
			want: Endpoint{Scheme: SchemeWSS, Host: "h", Port: 9443, Path: "/"},
		},
		{
			name: "wss default port",
			url:  "wss://telemetry.example.com/ingest/v1",
			want: Endpoint{Scheme: SchemeWSS, Host: "telemetry.example.com", Port: 443, Path: "/ingest/v1"},
		},
		{
			name: "ws explicit port and path",
			url:  "ws://192.168.1.10:8080/ws",
			want: Endpoint{Scheme: SchemeWS, Host: "192.168.1.10", Port: 8080, Path: "/ws"},
		},
		{
			name: "trailing slash only",
			url:  "ws://h/",
			want: Endpoint{Scheme: SchemeWS, Host: "h", Port: 80, Path: "/"},
		},
		{
			name: "query kept in path",
			url:  "ws://h/p?device=1",
			want: Endpoint{Scheme: SchemeWS, Host: "h", Port: 80, Path: "/p?device=1"},
		},
		{
			name: "colon after first slash belongs to path",
			url:  "ws://h/a:b",
			want: Endpoint{Scheme: SchemeWS, Host: "h", Port: 80, Path: "/a:b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.url)
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.url, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.url, got, tt.want)
			}
		})
	}
}

func TestParse_ConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"missing scheme", "h/p"},
		{"http scheme", "http://h/p"},
		{"uppercase scheme", "WS://h/p"},
		{"non-numeric port", "ws://h:abc/p"},
		{"empty port", "ws://h:/p"},
		{"signed port", "ws://h:+80/p"},
		{"port out of range", "ws://h:70000"},
		{"zero port", "ws://h:0"},
		{"empty host", "ws:///p"},
		{"empty string", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.url)
			if err == nil {
				t.Fatalf("Parse(%q) expected error", tt.url)
			}
			if !wserr.IsConfigError(err) {
				t.Errorf("Parse(%q) error = %v, want a config error", tt.url, err)
			}
			if wserr.IsRetryable(err) {
				t.Error("config errors must not be retryable")
			}
		})
	}
}

func TestEndpoint_Helpers(t *testing.T) {
	ep := Endpoint{Scheme: SchemeWSS, Host: "h", Port: 9443, Path: "/x"}
	if !ep.Secure() {
		t.Error("wss endpoint should be secure")
	}
	if got := ep.Address(); got != "h:9443" {
		t.Errorf("Address() = %q, want %q", got, "h:9443")
	}
	if got := ep.String(); got != "wss://h:9443/x" {
		t.Errorf("String() = %q, want %q", got, "wss://h:9443/x")
	}

	plain := Endpoint{Scheme: SchemeWS, Host: "h", Port: 80, Path: "/"}
	if plain.Secure() {
		t.Error("ws endpoint should not be secure")
	}
}
