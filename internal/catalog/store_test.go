package catalog_test

import (
	"context"
	"errors"
	"testing"

	"mediacat/internal/catalog"
	"mediacat/internal/testsupport"
)

func TestOpenIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	file := testsupport.NewMediaFile(t, store, "/in/song.mp3", "abc123", 5242880, catalog.MediaTypeAudio)

	// Reopening the same database must not recreate the schema or lose rows.
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	reopened := testsupport.MustOpenStore(t, cfg)

	got, err := reopened.GetByID(context.Background(), file.ID)
	if err != nil {
		t.Fatalf("GetByID after reopen: %v", err)
	}
	if got.FileHash != "abc123" {
		t.Fatalf("expected row to survive reopen, got hash %q", got.FileHash)
	}
}

func TestUpsertMediaFileRoundTrip(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	file, err := store.UpsertMediaFile(ctx, "/in/song.mp3", "abc123", 5242880, catalog.MediaTypeAudio)
	if err != nil {
		t.Fatalf("UpsertMediaFile: %v", err)
	}
	if file.OriginalPath != "/in/song.mp3" || file.FileHash != "abc123" {
		t.Fatalf("unexpected identity: %+v", file)
	}
	if file.Filename != "song.mp3" {
		t.Errorf("expected derived filename, got %q", file.Filename)
	}
	if file.Status != catalog.StatusPending {
		t.Errorf("expected initial status pending, got %s", file.Status)
	}
	if file.ConfidenceScore != 0.0 {
		t.Errorf("expected zero confidence, got %g", file.ConfidenceScore)
	}

	byPath, err := store.GetByPath(ctx, "/in/song.mp3")
	if err != nil {
		t.Fatalf("GetByPath: %v", err)
	}
	if byPath.ID != file.ID {
		t.Fatalf("path lookup returned different row: %d vs %d", byPath.ID, file.ID)
	}
	byHash, err := store.GetByHash(ctx, "abc123")
	if err != nil {
		t.Fatalf("GetByHash: %v", err)
	}
	if byHash.ID != file.ID {
		t.Fatalf("hash lookup returned different row: %d vs %d", byHash.ID, file.ID)
	}
}

func TestUpsertDuplicateHashConflicts(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	testsupport.NewMediaFile(t, store, "/in/song.mp3", "abc123", 100, catalog.MediaTypeAudio)

	_, err := store.UpsertMediaFile(ctx, "/in/copy-of-song.mp3", "abc123", 100, catalog.MediaTypeAudio)
	if !errors.Is(err, catalog.ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate hash at new path, got %v", err)
	}
}

func TestUpsertSamePathRescan(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	first := testsupport.NewMediaFile(t, store, "/in/song.mp3", "abc123", 100, catalog.MediaTypeAudio)

	// Same path rescanned with new content keeps the row identity.
	second, err := store.UpsertMediaFile(ctx, "/in/song.mp3", "def456", 200, catalog.MediaTypeAudio)
	if err != nil {
		t.Fatalf("rescan upsert: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("rescan created new row: %d vs %d", second.ID, first.ID)
	}
	if second.FileHash != "def456" || second.FileSize != 200 {
		t.Fatalf("rescan did not update fields: %+v", second)
	}
}

func TestUpsertValidation(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	cases := []struct {
		name      string
		path      string
		hash      string
		size      int64
		mediaType catalog.MediaType
	}{
		{"empty path", "", "abc", 1, catalog.MediaTypeAudio},
		{"empty hash", "/in/a.mp3", "", 1, catalog.MediaTypeAudio},
		{"negative size", "/in/a.mp3", "abc", -1, catalog.MediaTypeAudio},
		{"bad media type", "/in/a.mp3", "abc", 1, catalog.MediaType("podcast")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := store.UpsertMediaFile(ctx, tc.path, tc.hash, tc.size, tc.mediaType)
			if !errors.Is(err, catalog.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestGetByIDNotFound(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))

	_, err := store.GetByID(context.Background(), 9999)
	if !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestQueryFilters(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	audio := testsupport.NewMediaFile(t, store, "/in/a.mp3", "hash-a", 10, catalog.MediaTypeAudio)
	video := testsupport.NewMediaFile(t, store, "/in/b.mkv", "hash-b", 20, catalog.MediaTypeVideo)
	testsupport.AdvanceTo(t, store, video.ID, catalog.StatusFingerprinting)

	pending, err := store.Query(ctx, catalog.Filter{Statuses: []catalog.Status{catalog.StatusPending}})
	if err != nil {
		t.Fatalf("Query by status: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != audio.ID {
		t.Fatalf("expected only the audio file pending, got %d rows", len(pending))
	}

	videos, err := store.Query(ctx, catalog.Filter{MediaTypes: []catalog.MediaType{catalog.MediaTypeVideo}})
	if err != nil {
		t.Fatalf("Query by media type: %v", err)
	}
	if len(videos) != 1 || videos[0].ID != video.ID {
		t.Fatalf("expected only the video file, got %d rows", len(videos))
	}

	all, err := store.Query(ctx, catalog.Filter{})
	if err != nil {
		t.Fatalf("Query all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(all))
	}

	min := 0.5
	high, err := store.Query(ctx, catalog.Filter{MinConfidence: &min})
	if err != nil {
		t.Fatalf("Query by confidence: %v", err)
	}
	if len(high) != 0 {
		t.Fatalf("expected no rows above confidence 0.5, got %d", len(high))
	}
}

func TestStats(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))

	testsupport.NewMediaFile(t, store, "/in/a.mp3", "hash-a", 10, catalog.MediaTypeAudio)
	b := testsupport.NewMediaFile(t, store, "/in/b.mp3", "hash-b", 10, catalog.MediaTypeAudio)
	testsupport.AdvanceTo(t, store, b.ID, catalog.StatusFingerprinting)

	stats, err := store.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats[catalog.StatusPending] != 1 || stats[catalog.StatusFingerprinting] != 1 {
		t.Fatalf("unexpected stats: %v", stats)
	}
}

func TestRemoveCascades(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	file := testsupport.NewMediaFile(t, store, "/in/a.mp3", "hash-a", 10, catalog.MediaTypeAudio)
	if _, err := store.AttachFingerprint(ctx, file.ID, catalog.Fingerprint{Chromaprint: "fp"}); err != nil {
		t.Fatalf("AttachFingerprint: %v", err)
	}

	removed, err := store.Remove(ctx, file.ID)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if !removed {
		t.Fatal("expected row to be removed")
	}
	if _, err := store.GetFingerprint(ctx, file.ID); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected fingerprint to cascade away, got %v", err)
	}
}
