package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mediacat/internal/catalog"
	"mediacat/internal/config"
	"mediacat/internal/logging"
	"mediacat/internal/testsupport"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()

	base := t.TempDir()
	content := fmt.Sprintf(`paths:
  input_folder: %s/input
  output_folder: %s/output
  cache_folder: %s/cache
  models_folder: %s/models
  queue_folder: %s/queue
  log_folder: %s/logs
  database: %s/catalog.db
metadata:
  tmdb:
    api_key: test
`, base, base, base, base, base, base, base)

	path := filepath.Join(base, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(base, "input"), 0o755); err != nil {
		t.Fatalf("mkdir input: %v", err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestVersionFlag(t *testing.T) {
	out, err := runCLI(t, "--version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, "mediacat") {
		t.Fatalf("unexpected version output: %q", out)
	}
}

func TestInitDBIdempotent(t *testing.T) {
	cfgPath := writeTestConfig(t)

	for i := 0; i < 2; i++ {
		out, err := runCLI(t, "--config", cfgPath, "--init-db")
		if err != nil {
			t.Fatalf("init-db run %d: %v", i+1, err)
		}
		if !strings.Contains(out, "catalog initialized") {
			t.Fatalf("unexpected init-db output: %q", out)
		}
	}
}

func TestMissingConfigFails(t *testing.T) {
	_, err := runCLI(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"), "status")
	if err == nil {
		t.Fatal("expected error for missing configuration file")
	}
}

func TestStatusEmptyCatalog(t *testing.T) {
	cfgPath := writeTestConfig(t)

	out, err := runCLI(t, "--config", cfgPath, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "catalog is empty") {
		t.Fatalf("unexpected status output: %q", out)
	}
}

func TestScanThenStatus(t *testing.T) {
	cfgPath := writeTestConfig(t)
	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.InputFolder, "song.mp3"), 2048)

	out, err := runCLI(t, "--config", cfgPath, "scan")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !strings.Contains(out, "1 discovered") {
		t.Fatalf("unexpected scan output: %q", out)
	}

	out, err = runCLI(t, "--config", cfgPath, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "pending") || !strings.Contains(out, "song.mp3") {
		t.Fatalf("unexpected status output: %q", out)
	}
}

func TestReviewListEmpty(t *testing.T) {
	cfgPath := writeTestConfig(t)

	out, err := runCLI(t, "--config", cfgPath, "review", "list")
	if err != nil {
		t.Fatalf("review list: %v", err)
	}
	if !strings.Contains(out, "review queue is empty") {
		t.Fatalf("unexpected review list output: %q", out)
	}
}

func TestReviewApproveFlow(t *testing.T) {
	cfgPath := writeTestConfig(t)
	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	store, err := catalog.Open(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	ctx := context.Background()
	file := testsupport.NewMediaFile(t, store, "/in/song.mp3", "abc123", 2048, catalog.MediaTypeAudio)
	testsupport.AdvanceTo(t, store, file.ID, catalog.StatusMLScoring)
	if _, err := store.EnqueueReview(ctx, file.ID, 0.5, "low confidence", nil); err != nil {
		t.Fatalf("enqueue review: %v", err)
	}
	store.Close()

	out, err := runCLI(t, "--config", cfgPath, "review", "list")
	if err != nil {
		t.Fatalf("review list: %v", err)
	}
	if !strings.Contains(out, "low confidence") {
		t.Fatalf("pending review missing from list: %q", out)
	}

	out, err = runCLI(t, "--config", cfgPath, "review", "approve", fmt.Sprint(file.ID), "--notes", "looks right")
	if err != nil {
		t.Fatalf("review approve: %v", err)
	}
	if !strings.Contains(out, "status is now organizing") {
		t.Fatalf("unexpected approve output: %q", out)
	}

	_, err = runCLI(t, "--config", cfgPath, "review", "approve", fmt.Sprint(file.ID))
	if err == nil {
		t.Fatal("double resolve must fail")
	}
}
