package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

const mediaFileColumns = "id, original_path, filename, file_size, file_hash, media_type, status, confidence_score, created_at, updated_at, processed_at, output_path, usb_device_id, is_on_usb, error_message, retry_count"

// UpsertOption customizes media file registration.
type UpsertOption func(*upsertParams)

type upsertParams struct {
	usbDeviceID string
	onUSB       bool
}

// WithUSBSource records the removable device the file was discovered on.
func WithUSBSource(deviceID string) UpsertOption {
	return func(p *upsertParams) {
		p.usbDeviceID = deviceID
		p.onUSB = true
	}
}

// UpsertMediaFile registers a discovered file, keyed by its absolute path. A
// re-scan of an existing path updates size, hash, and media type in place. A
// hash already registered under a different path is a duplicate and fails with
// ErrConflict; duplicate policy belongs to the caller, not this store.
func (s *Store) UpsertMediaFile(ctx context.Context, path, hash string, size int64, mediaType MediaType, opts ...UpsertOption) (*MediaFile, error) {
	ctx = ensureContext(ctx)
	path = strings.TrimSpace(path)
	hash = strings.TrimSpace(hash)

	if path == "" {
		return nil, Wrap(ErrValidation, "upsert media file", "path is required", nil)
	}
	if hash == "" {
		return nil, Wrap(ErrValidation, "upsert media file", "hash is required", nil)
	}
	if size < 0 {
		return nil, Wrap(ErrValidation, "upsert media file", fmt.Sprintf("negative file size %d", size), nil)
	}
	if _, err := ParseMediaType(string(mediaType)); err != nil {
		return nil, err
	}

	params := upsertParams{}
	for _, opt := range opts {
		opt(&params)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	var id int64
	err := s.transact(ctx, func(tx *sql.Tx) error {
		var existingPath string
		err := tx.QueryRowContext(ctx,
			`SELECT original_path FROM media_files WHERE file_hash = ?`, hash,
		).Scan(&existingPath)
		switch {
		case err == nil:
			if existingPath != path {
				return Wrap(ErrConflict, "upsert media file",
					fmt.Sprintf("hash already registered at %s", existingPath), nil)
			}
		case errors.Is(err, sql.ErrNoRows):
			// New content.
		default:
			return Wrap(ErrStorageUnavailable, "upsert media file", "check hash", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO media_files (
                original_path, filename, file_size, file_hash, media_type,
                status, confidence_score, created_at, updated_at,
                usb_device_id, is_on_usb
            ) VALUES (?, ?, ?, ?, ?, ?, 0.0, ?, ?, ?, ?)
            ON CONFLICT(original_path) DO UPDATE SET
                filename = excluded.filename,
                file_size = excluded.file_size,
                file_hash = excluded.file_hash,
                media_type = excluded.media_type,
                usb_device_id = excluded.usb_device_id,
                is_on_usb = excluded.is_on_usb,
                updated_at = excluded.updated_at`,
			path,
			filepath.Base(path),
			size,
			hash,
			string(mediaType),
			string(StatusPending),
			now,
			now,
			nullableString(params.usbDeviceID),
			boolToInt(params.onUSB),
		)
		if err != nil {
			return Wrap(ErrStorageUnavailable, "upsert media file", "insert", err)
		}
		// last_insert_rowid is unreliable on the update arm of an upsert, so
		// resolve the id by path either way.
		if err := tx.QueryRowContext(ctx,
			`SELECT id FROM media_files WHERE original_path = ?`, path,
		).Scan(&id); err != nil {
			return Wrap(ErrStorageUnavailable, "upsert media file", "resolve id", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches a media file by identifier.
func (s *Store) GetByID(ctx context.Context, id int64) (*MediaFile, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+mediaFileColumns+` FROM media_files WHERE id = ?`, id)
	file, err := scanMediaFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, Wrap(ErrNotFound, "get media file", fmt.Sprintf("id %d", id), nil)
	}
	if err != nil {
		return nil, Wrap(ErrStorageUnavailable, "get media file", "scan", err)
	}
	return file, nil
}

// GetByPath fetches a media file by its original source path.
func (s *Store) GetByPath(ctx context.Context, path string) (*MediaFile, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+mediaFileColumns+` FROM media_files WHERE original_path = ?`, path)
	file, err := scanMediaFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, Wrap(ErrNotFound, "get media file", fmt.Sprintf("path %s", path), nil)
	}
	if err != nil {
		return nil, Wrap(ErrStorageUnavailable, "get media file", "scan", err)
	}
	return file, nil
}

// GetByHash fetches a media file by content hash.
func (s *Store) GetByHash(ctx context.Context, hash string) (*MediaFile, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+mediaFileColumns+` FROM media_files WHERE file_hash = ?`, hash)
	file, err := scanMediaFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, Wrap(ErrNotFound, "get media file", "hash "+hash, nil)
	}
	if err != nil {
		return nil, Wrap(ErrStorageUnavailable, "get media file", "scan", err)
	}
	return file, nil
}

// Filter selects media files for Query. Zero values mean "no constraint".
type Filter struct {
	Statuses      []Status
	MediaTypes    []MediaType
	MinConfidence *float64
	MaxConfidence *float64
	CreatedAfter  time.Time
	CreatedBefore time.Time
	OnUSB         *bool
	Limit         int

	// Newest flips the order to most recently created first.
	Newest bool
}

// Query returns committed media files matching the filter, oldest first
// unless Newest is set. Downstream stages use it to pull their work queue.
func (s *Store) Query(ctx context.Context, filter Filter) ([]*MediaFile, error) {
	var (
		clauses []string
		args    []any
	)

	if len(filter.Statuses) > 0 {
		args = appendEnumArgs(args, filter.Statuses)
		clauses = append(clauses, `status IN (`+makePlaceholders(len(filter.Statuses))+`)`)
	}
	if len(filter.MediaTypes) > 0 {
		args = appendEnumArgs(args, filter.MediaTypes)
		clauses = append(clauses, `media_type IN (`+makePlaceholders(len(filter.MediaTypes))+`)`)
	}
	if filter.MinConfidence != nil {
		clauses = append(clauses, `confidence_score >= ?`)
		args = append(args, *filter.MinConfidence)
	}
	if filter.MaxConfidence != nil {
		clauses = append(clauses, `confidence_score <= ?`)
		args = append(args, *filter.MaxConfidence)
	}
	if !filter.CreatedAfter.IsZero() {
		clauses = append(clauses, `created_at >= ?`)
		args = append(args, filter.CreatedAfter.UTC().Format(time.RFC3339Nano))
	}
	if !filter.CreatedBefore.IsZero() {
		clauses = append(clauses, `created_at <= ?`)
		args = append(args, filter.CreatedBefore.UTC().Format(time.RFC3339Nano))
	}
	if filter.OnUSB != nil {
		clauses = append(clauses, `is_on_usb = ?`)
		args = append(args, boolToInt(*filter.OnUSB))
	}

	query := `SELECT ` + mediaFileColumns + ` FROM media_files`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	if filter.Newest {
		query += ` ORDER BY created_at DESC, id DESC`
	} else {
		query += ` ORDER BY created_at, id`
	}
	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, filter.Limit)
	}

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, Wrap(ErrStorageUnavailable, "query media files", "execute", err)
	}
	defer rows.Close()

	var files []*MediaFile
	for rows.Next() {
		file, err := scanMediaFile(rows)
		if err != nil {
			return nil, Wrap(ErrStorageUnavailable, "query media files", "scan", err)
		}
		files = append(files, file)
	}
	return files, rows.Err()
}

// Stats returns a count of media files grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT status, COUNT(1) FROM media_files GROUP BY status`)
	if err != nil {
		return nil, Wrap(ErrStorageUnavailable, "catalog stats", "execute", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, Wrap(ErrStorageUnavailable, "catalog stats", "scan", err)
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Remove deletes a media file and its owned children via cascading foreign
// keys. Intended for explicit administrative action only.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM media_files WHERE id = ?`, id)
	if err != nil {
		return false, Wrap(ErrStorageUnavailable, "remove media file", "delete", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, Wrap(ErrStorageUnavailable, "remove media file", "rows affected", err)
	}
	return affected > 0, nil
}

func appendEnumArgs[T ~string](args []any, values []T) []any {
	for _, value := range values {
		args = append(args, string(value))
	}
	return args
}

func scanMediaFile(scanner interface{ Scan(dest ...any) error }) (*MediaFile, error) {
	var (
		id           int64
		originalPath string
		filename     string
		fileSize     int64
		fileHash     string
		mediaType    string
		statusStr    string
		confidence   float64
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
		processedRaw sql.NullString
		outputPath   sql.NullString
		usbDeviceID  sql.NullString
		isOnUSB      sql.NullInt64
		errorMessage sql.NullString
		retryCount   sql.NullInt64
	)

	if err := scanner.Scan(
		&id,
		&originalPath,
		&filename,
		&fileSize,
		&fileHash,
		&mediaType,
		&statusStr,
		&confidence,
		&createdRaw,
		&updatedRaw,
		&processedRaw,
		&outputPath,
		&usbDeviceID,
		&isOnUSB,
		&errorMessage,
		&retryCount,
	); err != nil {
		return nil, err
	}

	file := &MediaFile{
		ID:              id,
		OriginalPath:    originalPath,
		Filename:        filename,
		FileSize:        fileSize,
		FileHash:        fileHash,
		MediaType:       MediaType(mediaType),
		Status:          Status(statusStr),
		ConfidenceScore: confidence,
		OutputPath:      outputPath.String,
		USBDeviceID:     usbDeviceID.String,
		ErrorMessage:    errorMessage.String,
	}
	if isOnUSB.Valid {
		file.IsOnUSB = isOnUSB.Int64 != 0
	}
	if retryCount.Valid {
		file.RetryCount = int(retryCount.Int64)
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		file.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		file.UpdatedAt = updated
	}
	if processedRaw.Valid {
		if processed, err := parseTimeString(processedRaw.String); err == nil {
			file.ProcessedAt = &processed
		}
	}
	return file, nil
}
