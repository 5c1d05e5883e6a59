package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"mediacat/internal/logging"
)

const logColumns = "id, media_file_id, level, module, message, context, exception_type, exception_message, stack_trace, created_at"

// AppendLog writes one audit record. It never returns an error: a log write
// must not fail the calling operation, so failures degrade to a warning on
// the store's fallback logger.
func (s *Store) AppendLog(ctx context.Context, entry LogEntry) {
	ctx = ensureContext(ctx)

	level := strings.ToUpper(strings.TrimSpace(entry.Level))
	if level == "" {
		level = "INFO"
	}
	module := strings.TrimSpace(entry.Module)
	if module == "" {
		module = "unknown"
	}

	contextJSON, err := marshalJSON(entry.Context)
	if err != nil {
		contextJSON = nil
	}

	_, err = s.execWithRetry(ctx,
		`INSERT INTO processing_logs (
            media_file_id, level, module, message, context,
            exception_type, exception_message, stack_trace, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullableInt(entry.MediaFileID),
		level,
		module,
		entry.Message,
		contextJSON,
		nullableString(entry.ExceptionType),
		nullableString(entry.ExceptionMessage),
		nullableString(entry.StackTrace),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil && s.logger != nil {
		s.logger.Warn("audit log write failed",
			logging.Args(
				logging.String("module", module),
				logging.String("message", entry.Message),
				logging.Error(err),
			)...)
	}
}

// LogsForFile lists audit records for a media file, oldest first.
func (s *Store) LogsForFile(ctx context.Context, fileID int64, limit int) ([]*LogEntry, error) {
	query := `SELECT ` + logColumns + ` FROM processing_logs WHERE media_file_id = ? ORDER BY created_at, id`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), query, fileID)
	if err != nil {
		return nil, Wrap(ErrStorageUnavailable, "logs for file", "execute", err)
	}
	defer rows.Close()
	return collectLogs(rows)
}

// RecentLogs lists the newest audit records across all files.
func (s *Store) RecentLogs(ctx context.Context, limit int) ([]*LogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+logColumns+` FROM processing_logs ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, Wrap(ErrStorageUnavailable, "recent logs", "execute", err)
	}
	defer rows.Close()
	return collectLogs(rows)
}

func collectLogs(rows *sql.Rows) ([]*LogEntry, error) {
	var entries []*LogEntry
	for rows.Next() {
		entry, err := scanLogEntry(rows)
		if err != nil {
			return nil, Wrap(ErrStorageUnavailable, "scan logs", "scan", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanLogEntry(scanner interface{ Scan(dest ...any) error }) (*LogEntry, error) {
	var (
		entry      LogEntry
		fileID     sql.NullInt64
		contextRaw sql.NullString
		excType    sql.NullString
		excMessage sql.NullString
		stackTrace sql.NullString
		createdRaw sql.NullString
	)
	if err := scanner.Scan(
		&entry.ID, &fileID, &entry.Level, &entry.Module, &entry.Message,
		&contextRaw, &excType, &excMessage, &stackTrace, &createdRaw,
	); err != nil {
		return nil, err
	}

	if fileID.Valid {
		entry.MediaFileID = &fileID.Int64
	}
	entry.ExceptionType = excType.String
	entry.ExceptionMessage = excMessage.String
	entry.StackTrace = stackTrace.String
	if err := unmarshalJSON(contextRaw, &entry.Context); err != nil {
		return nil, err
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		entry.CreatedAt = created
	}
	return &entry, nil
}
