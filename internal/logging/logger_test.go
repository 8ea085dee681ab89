package logging

import (
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestInitialize_Silent(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "")
	if err := Initialize(""); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if GetLogger().Core().Enabled(zapcore.ErrorLevel) {
		t.Error("silent logger should not enable any level")
	}
}

func TestInitialize_FromEnv(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "warn")
	if err := InitializeFromEnv(); err != nil {
		t.Fatalf("InitializeFromEnv() error = %v", err)
	}
	defer SetLogger(nil)

	if GetLogger().Core().Enabled(zapcore.InfoLevel) {
		t.Error("info should be disabled at warn level")
	}
	if !GetLogger().Core().Enabled(zapcore.WarnLevel) {
		t.Error("warn should be enabled at warn level")
	}
}

func TestInitialize_UnknownLevel(t *testing.T) {
	err := Initialize("verbose")
	if err == nil {
		t.Fatal("expected error for unknown level")
	}
	if !strings.Contains(err.Error(), "verbose") {
		t.Errorf("error should name the level, got %v", err)
	}
}

func TestSetLogger_NilRestoresNop(t *testing.T) {
	SetLogger(zap.NewExample())
	SetLogger(nil)
	if GetLogger().Core().Enabled(zapcore.ErrorLevel) {
		t.Error("SetLogger(nil) should install a no-op logger")
	}
}

func TestDumps(t *testing.T) {
	tests := []struct {
		name      string
		data      []byte
		wantHex   string
		wantASCII string
	}{
		{"empty", nil, "", ""},
		{"printable", []byte("hi"), "6869", "hi"},
		{"control bytes", []byte{0x81, 'a', 0x00}, "816100", ".a."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hexDump(tt.data); got != tt.wantHex {
				t.Errorf("hexDump() = %q, want %q", got, tt.wantHex)
			}
			if got := asciiDump(tt.data); got != tt.wantASCII {
				t.Errorf("asciiDump() = %q, want %q", got, tt.wantASCII)
			}
		})
	}
}

func TestHexDump_Truncates(t *testing.T) {
	data := make([]byte, 300)
	got := hexDump(data)
	if !strings.HasSuffix(got, "...") {
		t.Error("long dumps should be truncated with ellipsis")
	}
	if len(got) != 512+3 {
		t.Errorf("hexDump length = %d, want %d", len(got), 515)
	}
}

func TestWSMessageTypeName(t *testing.T) {
	tests := []struct {
		opcode byte
		want   string
	}{
		{0, "continuation"},
		{1, "text"},
		{2, "binary"},
		{8, "close"},
		{9, "ping"},
		{10, "pong"},
		{3, "unknown(3)"},
	}
	for _, tt := range tests {
		if got := wsMessageTypeName(tt.opcode); got != tt.want {
			t.Errorf("wsMessageTypeName(%d) = %q, want %q", tt.opcode, got, tt.want)
		}
	}
}
