package daemon

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mediacat/internal/config"
	"mediacat/internal/logging"
	"mediacat/internal/testsupport"
)

func newTestDaemon(t *testing.T) (*Daemon, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	if err := os.MkdirAll(cfg.Paths.InputFolder, 0o755); err != nil {
		t.Fatalf("mkdir input: %v", err)
	}
	d, err := New(cfg, store, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	return d, cfg
}

func TestNewRequiresDependencies(t *testing.T) {
	if _, err := New(nil, nil, nil); err == nil {
		t.Fatal("expected error for missing dependencies")
	}
}

func TestDaemonStartStop(t *testing.T) {
	d, cfg := newTestDaemon(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	status := d.Status()
	if !status.Running {
		t.Fatal("daemon should report running")
	}
	if status.LockFilePath != filepath.Join(cfg.Paths.LogFolder, "mediacat.lock") {
		t.Fatalf("unexpected lock path %s", status.LockFilePath)
	}
	if _, err := os.Stat(status.LockFilePath); err != nil {
		t.Fatalf("lock file missing: %v", err)
	}

	if err := d.Start(ctx); err == nil {
		t.Fatal("second start on a running daemon must fail")
	}

	d.Stop()
	if d.Status().Running {
		t.Fatal("daemon should report stopped")
	}
	d.Stop()
}

func TestDaemonSingleInstance(t *testing.T) {
	first, cfg := newTestDaemon(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("start first: %v", err)
	}
	defer first.Stop()

	store := testsupport.MustOpenStore(t, cfg)
	second, err := New(cfg, store, logging.NewNop())
	if err != nil {
		t.Fatalf("build second daemon: %v", err)
	}
	if err := second.Start(ctx); err == nil {
		second.Stop()
		t.Fatal("second daemon against the same lock must fail to start")
	}
}

func TestDaemonRunStopsOnCancel(t *testing.T) {
	d, _ := newTestDaemon(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- d.Run(ctx)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for !d.Status().Running {
		if time.Now().After(deadline) {
			t.Fatal("daemon never came up")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
	if d.Status().Running {
		t.Fatal("daemon should be stopped after Run returns")
	}
}

func TestDaemonScan(t *testing.T) {
	d, cfg := newTestDaemon(t)
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.InputFolder, "song.mp3"), 1024)

	result, err := d.Scan(context.Background(), nil)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if result.Discovered != 1 {
		t.Fatalf("expected 1 discovered, got %+v", result)
	}
}
