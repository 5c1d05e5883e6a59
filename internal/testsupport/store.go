package testsupport

import (
	"context"
	"testing"

	"mediacat/internal/catalog"
	"mediacat/internal/config"
	"mediacat/internal/logging"
)

// MustOpenStore opens a catalog.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *catalog.Store {
	t.Helper()

	store, err := catalog.Open(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewMediaFile registers a media file for tests using the provided store.
func NewMediaFile(t testing.TB, store *catalog.Store, path, hash string, size int64, mediaType catalog.MediaType) *catalog.MediaFile {
	t.Helper()

	file, err := store.UpsertMediaFile(context.Background(), path, hash, size, mediaType)
	if err != nil {
		t.Fatalf("store.UpsertMediaFile: %v", err)
	}
	return file
}

// AdvanceTo walks a media file through the pipeline states up to target,
// following the forward transition path.
func AdvanceTo(t testing.TB, store *catalog.Store, id int64, target catalog.Status) *catalog.MediaFile {
	t.Helper()

	path := []catalog.Status{
		catalog.StatusPending,
		catalog.StatusFingerprinting,
		catalog.StatusMetadataLookup,
		catalog.StatusMLScoring,
		catalog.StatusOrganizing,
		catalog.StatusCompleted,
	}

	file, err := store.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("store.GetByID: %v", err)
	}
	for i := 0; i < len(path)-1; i++ {
		if file.Status == target {
			return file
		}
		if file.Status != path[i] {
			continue
		}
		file, err = store.Transition(context.Background(), id, path[i], path[i+1])
		if err != nil {
			t.Fatalf("transition %s -> %s: %v", path[i], path[i+1], err)
		}
	}
	if file.Status != target {
		t.Fatalf("could not advance file %d to %s, stuck at %s", id, target, file.Status)
	}
	return file
}
