package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"mediacat/internal/catalog"
	"mediacat/internal/config"
	"mediacat/internal/logging"
)

// Scanner walks the input folder and registers discovered media files.
type Scanner struct {
	store   *catalog.Store
	cfg     *config.Config
	logger  *slog.Logger
	limiter *rate.Limiter
}

// Result summarizes one scan pass.
type Result struct {
	SessionID  string
	Discovered int
	Skipped    int
	Duplicates int
	Errors     int
}

// ProgressFunc receives the path of each visited candidate, for UI feedback.
type ProgressFunc func(path string)

// NewScanner builds a scanner bound to the catalog store. A positive
// processing.scan_rate throttles registration to that many files per second.
func NewScanner(store *catalog.Store, cfg *config.Config, logger *slog.Logger) *Scanner {
	var limiter *rate.Limiter
	if cfg.Processing.ScanRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Processing.ScanRate), 1)
	}
	return &Scanner{
		store:   store,
		cfg:     cfg,
		logger:  logging.NewComponentLogger(logger, "ingest"),
		limiter: limiter,
	}
}

// Scan walks root and registers every media candidate found. Already-known
// content at a new path counts as a duplicate and is left to the operator;
// other per-file failures are recorded in the audit log without aborting the
// walk. Each scan carries a session id tying its audit records together.
func (s *Scanner) Scan(ctx context.Context, root string, progress ProgressFunc) (*Result, error) {
	return s.scan(ctx, root, "", progress)
}

// ScanMount walks a mounted removable volume. Registered files carry the
// device identity so they can be matched up when the device reappears.
func (s *Scanner) ScanMount(ctx context.Context, root, deviceID string, progress ProgressFunc) (*Result, error) {
	return s.scan(ctx, root, deviceID, progress)
}

func (s *Scanner) scan(ctx context.Context, root, deviceID string, progress ProgressFunc) (*Result, error) {
	result := &Result{SessionID: uuid.NewString()}

	s.logger.Info("scan started",
		logging.Args(
			logging.String(logging.FieldPath, root),
			logging.String(logging.FieldCorrelationID, result.SessionID),
		)...)
	s.store.AppendLog(ctx, catalog.LogEntry{
		Level:   "info",
		Module:  "ingest",
		Message: "scan started",
		Context: map[string]any{"root": root, "session_id": result.SessionID},
	})

	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if entry.IsDir() {
			return nil
		}
		if !IsMediaCandidate(path) {
			result.Skipped++
			return nil
		}

		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		if progress != nil {
			progress(path)
		}

		if err := s.registerFile(ctx, path, deviceID, result); err != nil {
			result.Errors++
			s.logger.Warn("file registration failed",
				logging.Args(
					logging.String(logging.FieldPath, path),
					logging.String(logging.FieldCorrelationID, result.SessionID),
					logging.Error(err),
				)...)
			s.store.AppendLog(ctx, catalog.LogEntry{
				Level:            "error",
				Module:           "ingest",
				Message:          "file registration failed",
				Context:          map[string]any{"path": path, "session_id": result.SessionID},
				ExceptionMessage: err.Error(),
			})
		}
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("scan %s: %w", root, err)
	}

	s.logger.Info("scan finished",
		logging.Args(
			logging.String(logging.FieldCorrelationID, result.SessionID),
			logging.Int("discovered", result.Discovered),
			logging.Int("skipped", result.Skipped),
			logging.Int("duplicates", result.Duplicates),
			logging.Int("errors", result.Errors),
		)...)
	s.store.AppendLog(ctx, catalog.LogEntry{
		Level:   "info",
		Module:  "ingest",
		Message: "scan finished",
		Context: map[string]any{
			"session_id": result.SessionID,
			"discovered": result.Discovered,
			"skipped":    result.Skipped,
			"duplicates": result.Duplicates,
			"errors":     result.Errors,
		},
	})
	return result, nil
}

// RegisterFile hashes, classifies, and upserts a single file, seeding
// embedded tag metadata when present. Used by both the scanner and the
// watcher.
func (s *Scanner) RegisterFile(ctx context.Context, path string) (*catalog.MediaFile, error) {
	return s.register(ctx, path, "")
}

func (s *Scanner) register(ctx context.Context, path, deviceID string) (*catalog.MediaFile, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}

	hash, err := HashFile(absPath)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", absPath, err)
	}

	var opts []catalog.UpsertOption
	if deviceID != "" {
		opts = append(opts, catalog.WithUSBSource(deviceID))
	}
	mediaType := Classify(absPath)
	file, err := s.store.UpsertMediaFile(ctx, absPath, hash, info.Size(), mediaType, opts...)
	if err != nil {
		return nil, err
	}

	if seed := ProbeTags(absPath); seed != nil {
		if _, err := s.store.AttachMetadata(ctx, file.ID, *seed); err != nil {
			// Tag seeding is best effort; the metadata stage redoes it properly.
			s.logger.Debug("tag seed failed",
				logging.Args(
					logging.Int64(logging.FieldFileID, file.ID),
					logging.Error(err),
				)...)
		}
	}
	return file, nil
}

func (s *Scanner) registerFile(ctx context.Context, path, deviceID string, result *Result) error {
	file, err := s.register(ctx, path, deviceID)
	if err != nil {
		if errors.Is(err, catalog.ErrConflict) {
			result.Duplicates++
			s.logger.Info("duplicate content",
				logging.Args(
					logging.String(logging.FieldPath, path),
					logging.String(logging.FieldCorrelationID, result.SessionID),
				)...)
			return nil
		}
		return err
	}

	result.Discovered++
	s.store.AppendLog(ctx, catalog.LogEntry{
		MediaFileID: &file.ID,
		Level:       "info",
		Module:      "ingest",
		Message:     "file registered",
		Context:     map[string]any{"session_id": result.SessionID, "media_type": string(file.MediaType)},
	})
	return nil
}
