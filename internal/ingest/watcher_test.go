package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mediacat/internal/catalog"
	"mediacat/internal/logging"
	"mediacat/internal/testsupport"
)

func newTestWatcher(t *testing.T) (*Watcher, *catalog.Store, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	if err := os.MkdirAll(cfg.Paths.InputFolder, 0o755); err != nil {
		t.Fatalf("mkdir input: %v", err)
	}
	scanner := NewScanner(store, cfg, logging.NewNop())
	watcher := NewWatcher(scanner, cfg, logging.NewNop())
	if watcher == nil {
		t.Fatal("watcher construction failed")
	}
	watcher.settle = 50 * time.Millisecond
	return watcher, store, cfg.Paths.InputFolder
}

func waitForFile(t *testing.T, store *catalog.Store, path string) *catalog.MediaFile {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		file, err := store.GetByPath(context.Background(), path)
		if err == nil {
			return file
		}
		if !errors.Is(err, catalog.ErrNotFound) {
			t.Fatalf("lookup %s: %v", path, err)
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("file %s never registered", path)
	return nil
}

func TestWatcherRegistersDroppedFile(t *testing.T) {
	watcher, store, input := newTestWatcher(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := watcher.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer watcher.Stop()
	if !watcher.Running() {
		t.Fatal("watcher should be running after start")
	}

	path := filepath.Join(input, "dropped.mp3")
	testsupport.WriteFile(t, path, 2048)

	file := waitForFile(t, store, path)
	if file.Status != catalog.StatusPending || file.MediaType != catalog.MediaTypeAudio {
		t.Fatalf("unexpected registered row: status=%s type=%s", file.Status, file.MediaType)
	}
}

func TestWatcherIgnoresNonCandidates(t *testing.T) {
	watcher, store, input := newTestWatcher(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := watcher.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer watcher.Stop()

	testsupport.WriteFile(t, filepath.Join(input, "notes.txt"), 64)
	time.Sleep(300 * time.Millisecond)

	stats, err := store.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if len(stats) != 0 {
		t.Fatalf("non-candidate registered: %v", stats)
	}
}

func TestWatcherStopIdempotent(t *testing.T) {
	watcher, _, _ := newTestWatcher(t)

	if err := watcher.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	watcher.Stop()
	watcher.Stop()
	if watcher.Running() {
		t.Fatal("watcher still running after stop")
	}
}
