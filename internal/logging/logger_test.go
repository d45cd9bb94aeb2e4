package logging

import (
	"log/slog"
	"os"
	"testing"

	"gopkg.in/natefinch/lumberjack.v2"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"invalid", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSetupWriterStdoutAndStderr(t *testing.T) {
	if w := setupWriter(Config{Output: "stdout"}); w != os.Stdout {
		t.Errorf("expected os.Stdout, got %v", w)
	}
	if w := setupWriter(Config{Output: "stderr"}); w != os.Stderr {
		t.Errorf("expected os.Stderr, got %v", w)
	}
	if w := setupWriter(Config{Output: "unknown"}); w != os.Stdout {
		t.Errorf("expected default os.Stdout, got %v", w)
	}
}

func TestSetupWriterFileWithoutFilenameFallsBackToStdout(t *testing.T) {
	if w := setupWriter(Config{Output: "file"}); w != os.Stdout {
		t.Errorf("expected os.Stdout fallback when filename is empty, got %v", w)
	}
}

func TestSetupWriterFileReturnsLumberjack(t *testing.T) {
	w := setupWriter(Config{Output: "file", Filename: "zac.log", MaxSize: 10, MaxBackups: 2, MaxAge: 7})
	lj, ok := w.(*lumberjack.Logger)
	if !ok {
		t.Fatalf("expected *lumberjack.Logger, got %T", w)
	}
	if lj.Filename != "zac.log" || lj.MaxSize != 10 || lj.MaxBackups != 2 || lj.MaxAge != 7 {
		t.Errorf("lumberjack logger not configured from Config: %+v", lj)
	}
}

func TestNewSelectsHandlerByFormat(t *testing.T) {
	jsonLog := New(Config{Level: "info", Output: "stdout", Format: "json"})
	if _, ok := jsonLog.Handler().(*slog.JSONHandler); !ok {
		t.Errorf("expected *slog.JSONHandler for Format=json, got %T", jsonLog.Handler())
	}

	textLog := New(Config{Level: "info", Output: "stdout", Format: "text"})
	if _, ok := textLog.Handler().(*slog.TextHandler); !ok {
		t.Errorf("expected *slog.TextHandler for Format=text, got %T", textLog.Handler())
	}
}
