package logging

import (
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLevelForDebug(t *testing.T) {
	tests := []struct {
		debug int
		want  string
	}{
		{-1, ""},
		{0, ""},
		{1, "warn"},
		{2, "info"},
		{3, "debug"},
		{9, "debug"},
	}

	for _, tt := range tests {
		if got := LevelForDebug(tt.debug); got != tt.want {
			t.Errorf("LevelForDebug(%d) = %q, want %q", tt.debug, got, tt.want)
		}
	}
}

func TestInitialize_SilentByDefault(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "")
	if err := Initialize(""); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if GetLogger().Core().Enabled(zapcore.ErrorLevel) {
		t.Error("logger should be silent when no level is configured")
	}
}

func TestInitialize_EnvOverride(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "debug")
	if err := Initialize(""); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if !GetLogger().Core().Enabled(zapcore.DebugLevel) {
		t.Error("logger should be at debug level from environment")
	}
}

func TestLogDatagram_DumpsAtDebug(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	defer SetLogger(nil)

	LogDatagram("in", "192.168.1.10:48028", []byte("LANLOC/1|Q\n"))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d log entries, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["hex"] == nil {
		t.Error("debug datagram log should include hex dump")
	}
	if ascii, _ := fields["ascii"].(string); !strings.HasPrefix(ascii, "LANLOC/1|Q.") {
		t.Errorf("ascii dump = %q, want newline rendered as '.'", ascii)
	}
}

func TestDumpsAreCapped(t *testing.T) {
	data := []byte(strings.Repeat("x", maxDumpBytes+10))
	if got := asciiDump(data); len(got) != maxDumpBytes {
		t.Errorf("asciiDump() length = %d, want %d", len(got), maxDumpBytes)
	}
	if got := hexDump(data); !strings.HasSuffix(got, "...") {
		t.Error("hexDump() should mark truncated output")
	}
	if hexDump(nil) != "" || asciiDump(nil) != "" {
		t.Error("dumps of empty input should be empty")
	}
}
