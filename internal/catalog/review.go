package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const reviewColumns = "id, media_file_id, review_status, confidence_score, reason, suggested_metadata, corrected_metadata, reviewer_notes, created_at, reviewed_at"

// EnqueueReview creates a review queue entry and moves the file from
// ml_scoring to review_needed as one atomic unit: after a successful return
// both are visible, after any failure neither is.
func (s *Store) EnqueueReview(ctx context.Context, fileID int64, confidence float64, reason string, suggested map[string]any) (*ReviewItem, error) {
	ctx = ensureContext(ctx)
	if confidence < 0.0 || confidence > 1.0 {
		return nil, Wrap(ErrValidation, "enqueue review",
			fmt.Sprintf("confidence score %g outside [0,1]", confidence), nil)
	}
	if strings.TrimSpace(reason) == "" {
		return nil, Wrap(ErrValidation, "enqueue review", "reason is required", nil)
	}

	suggestedJSON, err := marshalJSON(suggested)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	err = s.transact(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE media_files SET status = ?, confidence_score = ?, updated_at = ?
            WHERE id = ? AND status = ?`,
			string(StatusReviewNeeded), confidence, now, fileID, string(StatusMLScoring))
		if err != nil {
			return Wrap(ErrStorageUnavailable, "enqueue review", "update status", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return Wrap(ErrStorageUnavailable, "enqueue review", "rows affected", err)
		}
		if affected == 0 {
			var current string
			err := tx.QueryRowContext(ctx,
				`SELECT status FROM media_files WHERE id = ?`, fileID).Scan(&current)
			if errors.Is(err, sql.ErrNoRows) {
				return Wrap(ErrNotFound, "enqueue review", fmt.Sprintf("media file %d", fileID), nil)
			}
			if err != nil {
				return Wrap(ErrStorageUnavailable, "enqueue review", "inspect status", err)
			}
			return Wrap(ErrConflict, "enqueue review",
				fmt.Sprintf("media file %d expected status %s but found %s", fileID, StatusMLScoring, current), nil)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO review_queue (
                media_file_id, review_status, confidence_score, reason,
                suggested_metadata, created_at
            ) VALUES (?, ?, ?, ?, ?, ?)
            ON CONFLICT(media_file_id) DO UPDATE SET
                review_status = excluded.review_status,
                confidence_score = excluded.confidence_score,
                reason = excluded.reason,
                suggested_metadata = excluded.suggested_metadata,
                corrected_metadata = NULL,
                reviewer_notes = NULL,
                reviewed_at = NULL`,
			fileID, string(ReviewPending), confidence, reason, suggestedJSON, now,
		); err != nil {
			return Wrap(ErrStorageUnavailable, "enqueue review", "insert review row", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetReview(ctx, fileID)
}

// ResolveDecision carries a human reviewer's verdict into ResolveReview.
type ResolveDecision struct {
	Status            ReviewStatus
	CorrectedMetadata map[string]any
	ReviewerNotes     string
}

// ResolveReview applies a review decision and advances the file's status in
// the same transaction: approved and corrected move it to organizing,
// rejected moves it to failed. Only a pending review can be resolved.
func (s *Store) ResolveReview(ctx context.Context, fileID int64, decision ResolveDecision) (*ReviewItem, error) {
	ctx = ensureContext(ctx)

	var next Status
	switch decision.Status {
	case ReviewApproved, ReviewCorrected:
		next = StatusOrganizing
	case ReviewRejected:
		next = StatusFailed
	default:
		return nil, Wrap(ErrValidation, "resolve review",
			fmt.Sprintf("decision must be approved, rejected, or corrected (got %q)", decision.Status), nil)
	}
	if decision.Status == ReviewCorrected && len(decision.CorrectedMetadata) == 0 {
		return nil, Wrap(ErrValidation, "resolve review",
			"corrected decision requires corrected metadata", nil)
	}

	correctedJSON, err := marshalJSON(decision.CorrectedMetadata)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	err = s.transact(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE review_queue SET
                review_status = ?, corrected_metadata = ?, reviewer_notes = ?, reviewed_at = ?
            WHERE media_file_id = ? AND review_status = ?`,
			string(decision.Status), correctedJSON, nullableString(decision.ReviewerNotes),
			now, fileID, string(ReviewPending))
		if err != nil {
			return Wrap(ErrStorageUnavailable, "resolve review", "update review row", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return Wrap(ErrStorageUnavailable, "resolve review", "rows affected", err)
		}
		if affected == 0 {
			var current string
			err := tx.QueryRowContext(ctx,
				`SELECT review_status FROM review_queue WHERE media_file_id = ?`, fileID).Scan(&current)
			if errors.Is(err, sql.ErrNoRows) {
				return Wrap(ErrNotFound, "resolve review", fmt.Sprintf("media file %d", fileID), nil)
			}
			if err != nil {
				return Wrap(ErrStorageUnavailable, "resolve review", "inspect review row", err)
			}
			return Wrap(ErrConflict, "resolve review",
				fmt.Sprintf("media file %d review already %s", fileID, current), nil)
		}

		res, err = tx.ExecContext(ctx,
			`UPDATE media_files SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
			string(next), now, fileID, string(StatusReviewNeeded))
		if err != nil {
			return Wrap(ErrStorageUnavailable, "resolve review", "update file status", err)
		}
		affected, err = res.RowsAffected()
		if err != nil {
			return Wrap(ErrStorageUnavailable, "resolve review", "rows affected", err)
		}
		if affected == 0 {
			return Wrap(ErrConflict, "resolve review",
				fmt.Sprintf("media file %d is no longer awaiting review", fileID), nil)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetReview(ctx, fileID)
}

// GetReview fetches the review queue entry for a media file.
func (s *Store) GetReview(ctx context.Context, fileID int64) (*ReviewItem, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+reviewColumns+` FROM review_queue WHERE media_file_id = ?`, fileID)
	item, err := scanReviewItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, Wrap(ErrNotFound, "get review", fmt.Sprintf("media file %d", fileID), nil)
	}
	if err != nil {
		return nil, Wrap(ErrStorageUnavailable, "get review", "scan", err)
	}
	return item, nil
}

// PendingReviews lists unresolved review queue entries, oldest first.
func (s *Store) PendingReviews(ctx context.Context, limit int) ([]*ReviewItem, error) {
	query := `SELECT ` + reviewColumns + ` FROM review_queue WHERE review_status = ? ORDER BY created_at, id`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), query, string(ReviewPending))
	if err != nil {
		return nil, Wrap(ErrStorageUnavailable, "pending reviews", "execute", err)
	}
	defer rows.Close()

	var items []*ReviewItem
	for rows.Next() {
		item, err := scanReviewItem(rows)
		if err != nil {
			return nil, Wrap(ErrStorageUnavailable, "pending reviews", "scan", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanReviewItem(scanner interface{ Scan(dest ...any) error }) (*ReviewItem, error) {
	var (
		item        ReviewItem
		statusStr   string
		reason      sql.NullString
		suggested   sql.NullString
		corrected   sql.NullString
		notes       sql.NullString
		createdRaw  sql.NullString
		reviewedRaw sql.NullString
	)
	if err := scanner.Scan(
		&item.ID, &item.MediaFileID, &statusStr, &item.ConfidenceScore,
		&reason, &suggested, &corrected, &notes, &createdRaw, &reviewedRaw,
	); err != nil {
		return nil, err
	}

	item.ReviewStatus = ReviewStatus(statusStr)
	item.Reason = reason.String
	item.ReviewerNotes = notes.String
	if err := unmarshalJSON(suggested, &item.SuggestedMetadata); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(corrected, &item.CorrectedMetadata); err != nil {
		return nil, err
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		item.CreatedAt = created
	}
	if reviewedRaw.Valid {
		if reviewed, err := parseTimeString(reviewedRaw.String); err == nil {
			item.ReviewedAt = &reviewed
		}
	}
	return &item, nil
}
