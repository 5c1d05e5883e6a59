package organizer

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"mediacat/internal/catalog"
	"mediacat/internal/config"
	"mediacat/internal/logging"
)

// Organizer moves files whose processing finished into the output library.
type Organizer struct {
	store  *catalog.Store
	cfg    *config.Config
	logger *slog.Logger
}

// NewOrganizer constructs an organizer bound to the catalog store.
func NewOrganizer(cfg *config.Config, store *catalog.Store, logger *slog.Logger) *Organizer {
	return &Organizer{
		store:  store,
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "organizer"),
	}
}

// OutputPathFor derives the library-relative target for a file from its
// metadata. Audio lands under Music/Artist/Album, episodic video under
// TV Shows, everything else under Movies. Missing metadata falls back to
// the filename stem and unknown-artist placeholders.
func OutputPathFor(file *catalog.MediaFile, meta *catalog.MediaMetadata) string {
	ext := strings.ToLower(filepath.Ext(file.Filename))
	title := ""
	if meta != nil {
		title = meta.Title
	}
	if strings.TrimSpace(title) == "" {
		title = strings.TrimSuffix(file.Filename, filepath.Ext(file.Filename))
	}

	if file.MediaType == catalog.MediaTypeAudio {
		var artist, album string
		var track *int64
		if meta != nil {
			artist = meta.Artist
			album = meta.Album
			track = meta.TrackNumber
		}
		return audioLayout(artist, album, title, track, ext)
	}

	if meta != nil && meta.Season != nil && meta.Episode != nil {
		return showLayout(title, *meta.Season, *meta.Episode, ext)
	}
	var year *int64
	if meta != nil {
		year = meta.Year
	}
	return movieLayout(title, year, ext)
}

// Organize moves the file into the output library and completes it. The
// file must be in organizing state; the completion update writes the final
// path and processing timestamp together with the status.
func (o *Organizer) Organize(ctx context.Context, fileID int64) (*catalog.MediaFile, error) {
	file, err := o.store.GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if file.Status != catalog.StatusOrganizing {
		return nil, catalog.Wrap(catalog.ErrConflict, "organize",
			fmt.Sprintf("file %d is %s, not organizing", fileID, file.Status), nil)
	}

	meta, err := o.store.GetMetadata(ctx, fileID)
	if err != nil && !errors.Is(err, catalog.ErrNotFound) {
		return nil, err
	}

	relative := OutputPathFor(file, meta)
	target, err := o.placeFile(file.OriginalPath, filepath.Join(o.cfg.Paths.OutputFolder, relative))
	if err != nil {
		return nil, err
	}

	o.logger.Info("file organized",
		logging.Args(
			logging.Int64(logging.FieldFileID, file.ID),
			logging.String(logging.FieldPath, target),
		)...)

	updated, err := o.store.Transition(ctx, fileID, catalog.StatusOrganizing, catalog.StatusCompleted,
		catalog.WithOutputPath(target),
		catalog.WithProcessedAt(time.Now().UTC()))
	if err != nil {
		// The bytes moved but the row did not complete. Leave the file in
		// place and surface the error; a retry sees the moved source.
		o.logger.Warn("file moved but completion update failed",
			logging.Args(
				logging.Int64(logging.FieldFileID, file.ID),
				logging.String(logging.FieldPath, target),
				logging.Error(err),
			)...)
		return nil, err
	}

	o.store.AppendLog(ctx, catalog.LogEntry{
		MediaFileID: &updated.ID,
		Level:       "info",
		Module:      "organizer",
		Message:     "file organized",
		Context:     map[string]any{"output_path": target},
	})
	return updated, nil
}

// placeFile moves src to the desired target, uniquifying the name when the
// slot is taken and falling back to copy+remove across filesystems.
func (o *Organizer) placeFile(src, desired string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(desired), 0o755); err != nil {
		return "", catalog.Wrap(catalog.ErrStorageUnavailable, "organize", "create library directory", err)
	}
	target, err := nextAvailablePath(desired)
	if err != nil {
		return "", catalog.Wrap(catalog.ErrStorageUnavailable, "organize", "allocate target path", err)
	}

	if renameErr := os.Rename(src, target); renameErr != nil {
		var linkErr *os.LinkError
		if errors.As(renameErr, &linkErr) && errors.Is(linkErr.Err, syscall.EXDEV) {
			if copyErr := copyFile(src, target); copyErr != nil {
				return "", catalog.Wrap(catalog.ErrStorageUnavailable, "organize", "copy into library", copyErr)
			}
			if err := os.Remove(src); err != nil {
				o.logger.Warn("source left behind after cross-device copy",
					logging.Args(
						logging.String(logging.FieldPath, src),
						logging.Error(err),
					)...)
			}
			return target, nil
		}
		return "", catalog.Wrap(catalog.ErrStorageUnavailable, "organize", "move into library", renameErr)
	}
	return target, nil
}

// nextAvailablePath returns desired, or "name (n).ext" for the first free n
// when desired already exists.
func nextAvailablePath(desired string) (string, error) {
	const maxAttempts = 1000

	candidate := desired
	ext := filepath.Ext(desired)
	stem := strings.TrimSuffix(desired, ext)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if _, err := os.Stat(candidate); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return candidate, nil
			}
			return "", err
		}
		candidate = fmt.Sprintf("%s (%d)%s", stem, attempt, ext)
	}
	return "", fmt.Errorf("no free name for %s", desired)
}

// copyFile copies src to dst verifying size and content hash, so a silent
// short write never counts as a successful move.
func copyFile(src, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		_ = out.Close()
	}()

	srcHasher := sha256.New()
	dstHasher := sha256.New()
	written, err := io.Copy(io.MultiWriter(out, dstHasher), io.TeeReader(in, srcHasher))
	if err != nil {
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	if written != srcInfo.Size() {
		_ = os.Remove(dst)
		return fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", srcInfo.Size(), written)
	}
	if !bytes.Equal(srcHasher.Sum(nil), dstHasher.Sum(nil)) {
		_ = os.Remove(dst)
		return fmt.Errorf("copy hash mismatch: file corrupted during copy")
	}
	return nil
}
