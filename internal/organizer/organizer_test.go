package organizer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"mediacat/internal/catalog"
	"mediacat/internal/config"
	"mediacat/internal/logging"
	"mediacat/internal/testsupport"
)

func newTestOrganizer(t *testing.T) (*Organizer, *catalog.Store, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	if err := os.MkdirAll(cfg.Paths.OutputFolder, 0o755); err != nil {
		t.Fatalf("mkdir output: %v", err)
	}
	return NewOrganizer(cfg, store, logging.NewNop()), store, cfg
}

func stageFile(t *testing.T, store *catalog.Store, cfg *config.Config, name, hash string) *catalog.MediaFile {
	t.Helper()
	src := filepath.Join(cfg.Paths.InputFolder, name)
	testsupport.WriteFile(t, src, 4096)
	file := testsupport.NewMediaFile(t, store, src, hash, 4096, catalog.MediaTypeAudio)
	return testsupport.AdvanceTo(t, store, file.ID, catalog.StatusOrganizing)
}

func TestOrganizeMovesAndCompletes(t *testing.T) {
	org, store, cfg := newTestOrganizer(t)
	ctx := context.Background()

	file := stageFile(t, store, cfg, "song.mp3", "hash-1")
	if _, err := store.AttachMetadata(ctx, file.ID, catalog.MediaMetadata{
		Title: "Song", Artist: "Artist", Album: "Album", MetadataSource: "musicbrainz",
	}); err != nil {
		t.Fatalf("attach metadata: %v", err)
	}

	done, err := org.Organize(ctx, file.ID)
	if err != nil {
		t.Fatalf("organize: %v", err)
	}
	want := filepath.Join(cfg.Paths.OutputFolder, "Music", "Artist", "Album", "Song.mp3")
	if done.Status != catalog.StatusCompleted || done.OutputPath != want {
		t.Fatalf("unexpected row after organize: status=%s output=%s", done.Status, done.OutputPath)
	}
	if done.ProcessedAt == nil {
		t.Fatal("completion must record processed_at")
	}
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("target file missing: %v", err)
	}
	if _, err := os.Stat(file.OriginalPath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("source should be gone, stat returned %v", err)
	}
}

func TestOrganizeWithoutMetadataUsesFilename(t *testing.T) {
	org, store, cfg := newTestOrganizer(t)

	file := stageFile(t, store, cfg, "mystery.mp3", "hash-2")
	done, err := org.Organize(context.Background(), file.ID)
	if err != nil {
		t.Fatalf("organize: %v", err)
	}
	want := filepath.Join(cfg.Paths.OutputFolder, "Music", "Unknown Artist", "Unknown Album", "Mystery.mp3")
	if done.OutputPath != want {
		t.Fatalf("expected fallback layout %s, got %s", want, done.OutputPath)
	}
}

func TestOrganizeUniquifiesCollidingTargets(t *testing.T) {
	org, store, cfg := newTestOrganizer(t)
	ctx := context.Background()

	first := stageFile(t, store, cfg, "a.mp3", "hash-a")
	second := stageFile(t, store, cfg, "b.mp3", "hash-b")
	for _, id := range []int64{first.ID, second.ID} {
		if _, err := store.AttachMetadata(ctx, id, catalog.MediaMetadata{
			Title: "Same", Artist: "Artist", Album: "Album", MetadataSource: "musicbrainz",
		}); err != nil {
			t.Fatalf("attach metadata: %v", err)
		}
	}

	doneA, err := org.Organize(ctx, first.ID)
	if err != nil {
		t.Fatalf("organize first: %v", err)
	}
	doneB, err := org.Organize(ctx, second.ID)
	if err != nil {
		t.Fatalf("organize second: %v", err)
	}
	if doneA.OutputPath == doneB.OutputPath {
		t.Fatalf("colliding targets were not uniquified: %s", doneA.OutputPath)
	}
	wantB := filepath.Join(cfg.Paths.OutputFolder, "Music", "Artist", "Album", "Same (1).mp3")
	if doneB.OutputPath != wantB {
		t.Fatalf("expected %s, got %s", wantB, doneB.OutputPath)
	}
}

func TestOrganizeRejectsWrongState(t *testing.T) {
	org, store, cfg := newTestOrganizer(t)

	src := filepath.Join(cfg.Paths.InputFolder, "pending.mp3")
	testsupport.WriteFile(t, src, 1024)
	file := testsupport.NewMediaFile(t, store, src, "hash-p", 1024, catalog.MediaTypeAudio)

	if _, err := org.Organize(context.Background(), file.ID); !errors.Is(err, catalog.ErrConflict) {
		t.Fatalf("expected ErrConflict for pending file, got %v", err)
	}
	if _, err := os.Stat(src); err != nil {
		t.Fatalf("source must be untouched: %v", err)
	}
}

func TestOrganizeUnknownFile(t *testing.T) {
	org, _, _ := newTestOrganizer(t)
	if _, err := org.Organize(context.Background(), 9999); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
