package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func newTestLogger(buf *bytes.Buffer, level slog.Level) *slog.Logger {
	levelVar := new(slog.LevelVar)
	levelVar.Set(level)
	return slog.New(newConsoleHandler(buf, levelVar))
}

func TestConsoleHandlerLineShape(t *testing.T) {
	var buf bytes.Buffer
	logger := NewComponentLogger(newTestLogger(&buf, slog.LevelInfo), "ingest")

	logger.Info("file registered", Args(String(FieldPath, "/media/song.mp3"), Int64(FieldFileID, 42))...)

	line := buf.String()
	if !strings.Contains(line, "INFO ingest: file registered") {
		t.Fatalf("unexpected line: %q", line)
	}
	if !strings.Contains(line, "path=/media/song.mp3") {
		t.Fatalf("expected path attr in line: %q", line)
	}
	if !strings.Contains(line, "file_id=42") {
		t.Fatalf("expected file_id attr in line: %q", line)
	}
}

func TestConsoleHandlerQuotesValuesWithSpaces(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf, slog.LevelInfo)

	logger.Info("scan", String("title", "O Sole Mio"))

	if !strings.Contains(buf.String(), `title="O Sole Mio"`) {
		t.Fatalf("expected quoted title, got %q", buf.String())
	}
}

func TestConsoleHandlerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf, slog.LevelWarn)

	logger.Info("should be dropped")
	logger.Warn("kept")

	out := buf.String()
	if strings.Contains(out, "should be dropped") {
		t.Fatalf("info record leaked through warn level: %q", out)
	}
	if !strings.Contains(out, "WARN kept") {
		t.Fatalf("warn record missing: %q", out)
	}
}

func TestConsoleHandlerGroupsFlatten(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf, slog.LevelInfo).WithGroup("db")

	logger.Info("open", String("path", "/tmp/catalog.db"))

	if !strings.Contains(buf.String(), "db.path=/tmp/catalog.db") {
		t.Fatalf("expected flattened group key, got %q", buf.String())
	}
}

func TestErrorAttr(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf, slog.LevelInfo)

	logger.Error("transition failed", Error(errors.New("status conflict")))

	if !strings.Contains(buf.String(), `error="status conflict"`) {
		t.Fatalf("expected error attr, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"unknown": slog.LevelInfo,
	}
	for input, want := range cases {
		if got := parseLevel(input); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := NewNop()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("nop logger should report disabled at every level")
	}
	// Must not panic.
	logger.Error("ignored", Duration("elapsed", time.Second))
}
