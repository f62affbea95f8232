package log

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  LogLevel
	}{
		{name: "debug lower", input: "debug", want: LevelDebug},
		{name: "info upper", input: "INFO", want: LevelInfo},
		{name: "warn mixed", input: "WaRn", want: LevelWarn},
		{name: "error", input: "error", want: LevelError},
		{name: "fatal", input: "fatal", want: LevelFatal},
		{name: "trim spaces", input: "  debug  ", want: LevelDebug},
		{name: "unknown fallback", input: "verbose", want: LevelInfo},
		{name: "empty fallback", input: "", want: LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Fatalf("ParseLevel(%q)=%v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLoggerFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(&buf, LevelWarn)

	l.Info("hidden %d", 1)
	l.Warn("shown %d", 2)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line leaked at warn level: %q", out)
	}
	if !strings.Contains(out, "[WARN]") || !strings.Contains(out, "shown 2") {
		t.Fatalf("warn line missing: %q", out)
	}
	if !strings.Contains(out, "logger_level_test.go") {
		t.Fatalf("caller file missing: %q", out)
	}
}

func TestLevelString(t *testing.T) {
	if LevelError.String() != "ERROR" {
		t.Fatalf("got %q", LevelError.String())
	}
	if LogLevel(42).String() != "LEVEL(42)" {
		t.Fatalf("got %q", LogLevel(42).String())
	}
}
