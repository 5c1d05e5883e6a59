package catalog

import (
	"context"
	"errors"
	"fmt"
)

// schemaVersion is the current schema version. Bump this when the schema
// changes; existing databases with an older version are rejected at open.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the
// version this build expects.
var ErrSchemaMismatch = errors.New("schema version mismatch")

const schemaV1 = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
  version INTEGER PRIMARY KEY,
  applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- One row per discovered media file (aggregate root)
CREATE TABLE IF NOT EXISTS media_files (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  original_path TEXT NOT NULL UNIQUE,
  filename TEXT NOT NULL,
  file_size INTEGER NOT NULL,
  file_hash TEXT NOT NULL UNIQUE,
  media_type TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  confidence_score REAL NOT NULL DEFAULT 0.0,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL,
  processed_at TEXT,
  output_path TEXT,
  usb_device_id TEXT,
  is_on_usb INTEGER NOT NULL DEFAULT 0,
  error_message TEXT,
  retry_count INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_media_files_status ON media_files(status);
CREATE INDEX IF NOT EXISTS idx_media_files_media_type ON media_files(media_type);
CREATE INDEX IF NOT EXISTS idx_media_files_file_hash ON media_files(file_hash);

-- Acoustic/perceptual fingerprints (zero-or-one per file)
CREATE TABLE IF NOT EXISTS fingerprints (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  media_file_id INTEGER NOT NULL UNIQUE REFERENCES media_files(id) ON DELETE CASCADE,
  chromaprint_fingerprint TEXT,
  chromaprint_duration REAL,
  acoustid_id TEXT,
  acoustid_score REAL,
  video_hash TEXT,
  scene_hashes TEXT,
  duration REAL,
  bitrate INTEGER,
  sample_rate INTEGER,
  channels INTEGER,
  codec TEXT,
  created_at TEXT NOT NULL
);

-- Enriched descriptive metadata (zero-or-one per file)
CREATE TABLE IF NOT EXISTS media_metadata (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  media_file_id INTEGER NOT NULL UNIQUE REFERENCES media_files(id) ON DELETE CASCADE,
  title TEXT,
  artist TEXT,
  album TEXT,
  year INTEGER,
  genre TEXT,
  musicbrainz_id TEXT,
  musicbrainz_artist_id TEXT,
  musicbrainz_album_id TEXT,
  track_number INTEGER,
  disc_number INTEGER,
  tmdb_id INTEGER,
  imdb_id TEXT,
  season INTEGER,
  episode INTEGER,
  description TEXT,
  language TEXT,
  country TEXT,
  is_italian INTEGER NOT NULL DEFAULT 0,
  italian_confidence REAL,
  artwork_url TEXT,
  artwork_local_path TEXT,
  metadata_source TEXT,
  metadata_quality REAL NOT NULL DEFAULT 0.0,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_media_metadata_artist ON media_metadata(artist);
CREATE INDEX IF NOT EXISTS idx_media_metadata_title ON media_metadata(title);

-- Extracted ML feature arrays (zero-or-one per file)
CREATE TABLE IF NOT EXISTS ml_features (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  media_file_id INTEGER NOT NULL UNIQUE REFERENCES media_files(id) ON DELETE CASCADE,
  mfcc TEXT,
  spectral_centroid TEXT,
  spectral_rolloff TEXT,
  spectral_contrast TEXT,
  zero_crossing_rate TEXT,
  tempo REAL,
  chroma TEXT,
  feature_vector TEXT,
  italian_language_features TEXT,
  created_at TEXT NOT NULL
);

-- Trained model artifacts (independent of media files)
CREATE TABLE IF NOT EXISTS ml_models (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  model_name TEXT NOT NULL,
  model_version TEXT NOT NULL,
  model_type TEXT NOT NULL,
  model_path TEXT NOT NULL,
  accuracy REAL,
  precision REAL,
  recall REAL,
  f1_score REAL,
  training_samples INTEGER NOT NULL DEFAULT 0,
  features_used TEXT,
  hyperparameters TEXT,
  is_active INTEGER NOT NULL DEFAULT 0,
  created_at TEXT NOT NULL,
  trained_at TEXT
);

CREATE INDEX IF NOT EXISTS idx_ml_models_name_type ON ml_models(model_name, model_type);

-- Manual review queue for low-confidence files (zero-or-one per file)
CREATE TABLE IF NOT EXISTS review_queue (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  media_file_id INTEGER NOT NULL UNIQUE REFERENCES media_files(id) ON DELETE CASCADE,
  review_status TEXT NOT NULL DEFAULT 'pending',
  confidence_score REAL NOT NULL,
  reason TEXT,
  suggested_metadata TEXT,
  corrected_metadata TEXT,
  reviewer_notes TEXT,
  created_at TEXT NOT NULL,
  reviewed_at TEXT
);

CREATE INDEX IF NOT EXISTS idx_review_queue_status ON review_queue(review_status);

-- User feedback for ML training (append-only, many per file)
CREATE TABLE IF NOT EXISTS ml_feedback (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  media_file_id INTEGER NOT NULL REFERENCES media_files(id) ON DELETE CASCADE,
  predicted_metadata TEXT NOT NULL,
  predicted_confidence REAL NOT NULL,
  correct_metadata TEXT NOT NULL,
  feedback_type TEXT NOT NULL,
  used_for_training INTEGER NOT NULL DEFAULT 0,
  training_weight REAL NOT NULL DEFAULT 1.0,
  created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ml_feedback_file ON ml_feedback(media_file_id);
CREATE INDEX IF NOT EXISTS idx_ml_feedback_training ON ml_feedback(used_for_training);

-- Append-only audit trail (optionally file-less for global events)
CREATE TABLE IF NOT EXISTS processing_logs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  media_file_id INTEGER REFERENCES media_files(id) ON DELETE CASCADE,
  level TEXT NOT NULL,
  module TEXT NOT NULL,
  message TEXT NOT NULL,
  context TEXT,
  exception_type TEXT,
  exception_message TEXT,
  stack_trace TEXT,
  created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_processing_logs_file ON processing_logs(media_file_id);
CREATE INDEX IF NOT EXISTS idx_processing_logs_level ON processing_logs(level);
`

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return Wrap(ErrStorageUnavailable, "init schema", "check schema_version table", err)
	}

	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	err = s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		return Wrap(ErrStorageUnavailable, "init schema", "read schema version", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d", ErrSchemaMismatch, version, schemaVersion)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Wrap(ErrStorageUnavailable, "init schema", "begin schema tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaV1); err != nil {
		return Wrap(ErrStorageUnavailable, "init schema", "create schema", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return Wrap(ErrStorageUnavailable, "init schema", "record schema version", err)
	}
	if err := tx.Commit(); err != nil {
		return Wrap(ErrStorageUnavailable, "init schema", "commit schema", err)
	}
	return nil
}

// tableNames returns the persistent tables this schema owns, used by health
// checks and init verification.
func tableNames() []string {
	return []string{
		"schema_version",
		"media_files",
		"fingerprints",
		"media_metadata",
		"ml_features",
		"ml_models",
		"review_queue",
		"ml_feedback",
		"processing_logs",
	}
}
