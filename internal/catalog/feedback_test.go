package catalog_test

import (
	"context"
	"errors"
	"testing"

	"mediacat/internal/catalog"
	"mediacat/internal/testsupport"
)

func TestRecordFeedbackAppendOnly(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	file := testsupport.NewMediaFile(t, store, "/in/a.mp3", "hash-a", 10, catalog.MediaTypeAudio)

	first, err := store.RecordFeedback(ctx, file.ID,
		map[string]any{"title": "Volare?"}, 0.6,
		map[string]any{"title": "Volare"}, catalog.FeedbackCorrection)
	if err != nil {
		t.Fatalf("RecordFeedback: %v", err)
	}
	if first.UsedForTraining {
		t.Fatal("new feedback must start unused")
	}
	if first.TrainingWeight != 1.0 {
		t.Fatalf("expected default training weight 1.0, got %g", first.TrainingWeight)
	}

	second, err := store.RecordFeedback(ctx, file.ID,
		map[string]any{"title": "Volare"}, 0.9,
		map[string]any{"title": "Volare"}, catalog.FeedbackConfirmation)
	if err != nil {
		t.Fatalf("second RecordFeedback: %v", err)
	}
	if second.ID == first.ID {
		t.Fatal("feedback must append, never replace")
	}

	records, err := store.FeedbackForFile(ctx, file.ID)
	if err != nil {
		t.Fatalf("FeedbackForFile: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 feedback rows, got %d", len(records))
	}
	if records[0].PredictedMetadata["title"] != "Volare?" {
		t.Fatalf("predicted metadata not round-tripped: %v", records[0].PredictedMetadata)
	}
}

func TestRecordFeedbackValidation(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	file := testsupport.NewMediaFile(t, store, "/in/a.mp3", "hash-a", 10, catalog.MediaTypeAudio)
	payload := map[string]any{"title": "x"}

	if _, err := store.RecordFeedback(ctx, 9999, payload, 0.5, payload, catalog.FeedbackCorrection); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.RecordFeedback(ctx, file.ID, nil, 0.5, payload, catalog.FeedbackCorrection); !errors.Is(err, catalog.ErrValidation) {
		t.Fatalf("expected ErrValidation for missing prediction, got %v", err)
	}
	if _, err := store.RecordFeedback(ctx, file.ID, payload, 0.5, nil, catalog.FeedbackCorrection); !errors.Is(err, catalog.ErrValidation) {
		t.Fatalf("expected ErrValidation for missing truth, got %v", err)
	}
	if _, err := store.RecordFeedback(ctx, file.ID, payload, 1.2, payload, catalog.FeedbackCorrection); !errors.Is(err, catalog.ErrValidation) {
		t.Fatalf("expected ErrValidation for confidence out of range, got %v", err)
	}
	if _, err := store.RecordFeedback(ctx, file.ID, payload, 0.5, payload, catalog.FeedbackType("praise")); !errors.Is(err, catalog.ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown type, got %v", err)
	}
}

func TestFeedbackTrainingConsumption(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	file := testsupport.NewMediaFile(t, store, "/in/a.mp3", "hash-a", 10, catalog.MediaTypeAudio)
	payload := map[string]any{"title": "x"}

	first, err := store.RecordFeedback(ctx, file.ID, payload, 0.5, payload, catalog.FeedbackConfirmation)
	if err != nil {
		t.Fatalf("RecordFeedback: %v", err)
	}
	if _, err := store.RecordFeedback(ctx, file.ID, payload, 0.5, payload, catalog.FeedbackRejection); err != nil {
		t.Fatalf("RecordFeedback: %v", err)
	}

	unused, err := store.UnusedFeedback(ctx, 0)
	if err != nil {
		t.Fatalf("UnusedFeedback: %v", err)
	}
	if len(unused) != 2 {
		t.Fatalf("expected 2 unused rows, got %d", len(unused))
	}

	n, err := store.MarkFeedbackUsed(ctx, first.ID)
	if err != nil {
		t.Fatalf("MarkFeedbackUsed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 row marked, got %d", n)
	}

	unused, err = store.UnusedFeedback(ctx, 0)
	if err != nil {
		t.Fatalf("UnusedFeedback: %v", err)
	}
	if len(unused) != 1 || unused[0].ID == first.ID {
		t.Fatalf("consumed row still listed as unused")
	}
}
