package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"WARN":    slog.LevelWarn,
		"unknown": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestModuleAttribute(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, slog.LevelInfo).Module("game")
	l.Info("round started", "round", 7)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}
	if entry["module"] != "game" {
		t.Fatalf("module attr: want game, got %v", entry["module"])
	}
	if entry["msg"] != "round started" {
		t.Fatalf("msg: want %q, got %v", "round started", entry["msg"])
	}
	if entry["round"] != float64(7) {
		t.Fatalf("round attr: want 7, got %v", entry["round"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, slog.LevelWarn)

	l.Debug("hidden")
	l.Info("hidden too")
	if buf.Len() != 0 {
		t.Fatalf("below-level output leaked: %s", buf.String())
	}
	l.Warn("visible")
	if buf.Len() == 0 {
		t.Fatal("warn output missing")
	}
}

func TestSetDefault(t *testing.T) {
	old := Default()
	defer SetDefault(old)

	var buf bytes.Buffer
	SetDefault(NewWithWriter(&buf, slog.LevelInfo))
	Info("via default")
	if buf.Len() == 0 {
		t.Fatal("default logger did not write")
	}

	// A nil argument leaves the default untouched.
	SetDefault(nil)
	if Default() == nil {
		t.Fatal("SetDefault(nil) must keep the previous logger")
	}
}
