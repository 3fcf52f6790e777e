package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"dev", zapcore.DebugLevel},
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warning", zapcore.WarnLevel},
		{"prod", zapcore.ErrorLevel},
		{"nonsense", zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Fatalf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestPionFactoryRoutesIntoZap(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	f := NewPionFactory(zap.New(core))

	l := f.NewLogger("ice")
	l.Tracef("dropped %d", 1)
	l.Warnf("candidate %s failed", "host")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].Message != "candidate host failed" {
		t.Fatalf("message = %q", entries[0].Message)
	}
	if entries[0].LoggerName != "pion.ice" {
		t.Fatalf("logger name = %q, want pion.ice", entries[0].LoggerName)
	}
}
