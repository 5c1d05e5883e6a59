package catalog_test

import (
	"context"
	"testing"

	"mediacat/internal/catalog"
	"mediacat/internal/testsupport"
)

func TestAppendLogForFile(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	file := testsupport.NewMediaFile(t, store, "/in/a.mp3", "hash-a", 10, catalog.MediaTypeAudio)

	store.AppendLog(ctx, catalog.LogEntry{
		MediaFileID: &file.ID,
		Level:       "info",
		Module:      "fingerprint",
		Message:     "chromaprint extracted",
		Context:     map[string]any{"duration": 187.4},
	})
	store.AppendLog(ctx, catalog.LogEntry{
		MediaFileID:      &file.ID,
		Level:            "error",
		Module:           "metadata",
		Message:          "lookup failed",
		ExceptionType:    "HTTPError",
		ExceptionMessage: "503 service unavailable",
	})

	entries, err := store.LogsForFile(ctx, file.ID, 0)
	if err != nil {
		t.Fatalf("LogsForFile: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(entries))
	}
	if entries[0].Level != "INFO" || entries[0].Module != "fingerprint" {
		t.Fatalf("first entry mangled: %+v", entries[0])
	}
	if entries[0].Context["duration"] != 187.4 {
		t.Fatalf("context not round-tripped: %v", entries[0].Context)
	}
	if entries[1].ExceptionType != "HTTPError" {
		t.Fatalf("exception info not stored: %+v", entries[1])
	}
}

func TestAppendLogGlobalEvent(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	// A nil file id records a file-less global event.
	store.AppendLog(ctx, catalog.LogEntry{
		Level:   "warn",
		Module:  "daemon",
		Message: "input folder missing",
	})

	entries, err := store.RecentLogs(ctx, 10)
	if err != nil {
		t.Fatalf("RecentLogs: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].MediaFileID != nil {
		t.Fatalf("expected file-less entry, got file id %v", *entries[0].MediaFileID)
	}
}

func TestAppendLogNeverFails(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	// Referencing an unknown file violates the foreign key; the append must
	// swallow the failure rather than surface it.
	missing := int64(424242)
	store.AppendLog(ctx, catalog.LogEntry{
		MediaFileID: &missing,
		Level:       "info",
		Module:      "ingest",
		Message:     "orphan event",
	})

	entries, err := store.RecentLogs(ctx, 10)
	if err != nil {
		t.Fatalf("RecentLogs: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("orphan event should not have been written, got %d entries", len(entries))
	}
}
