package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const feedbackColumns = "id, media_file_id, predicted_metadata, predicted_confidence, correct_metadata, feedback_type, used_for_training, training_weight, created_at"

// RecordFeedback appends one training feedback record pairing the automated
// prediction with the user-confirmed truth. Existing rows are never mutated.
func (s *Store) RecordFeedback(ctx context.Context, fileID int64, predicted map[string]any, predictedConfidence float64, correct map[string]any, feedbackType FeedbackType) (*Feedback, error) {
	ctx = ensureContext(ctx)
	if err := s.requireFile(ctx, fileID, "record feedback"); err != nil {
		return nil, err
	}
	if len(predicted) == 0 {
		return nil, Wrap(ErrValidation, "record feedback", "predicted metadata is required", nil)
	}
	if len(correct) == 0 {
		return nil, Wrap(ErrValidation, "record feedback", "correct metadata is required", nil)
	}
	if predictedConfidence < 0.0 || predictedConfidence > 1.0 {
		return nil, Wrap(ErrValidation, "record feedback",
			fmt.Sprintf("predicted confidence %g outside [0,1]", predictedConfidence), nil)
	}
	switch feedbackType {
	case FeedbackCorrection, FeedbackConfirmation, FeedbackRejection:
	default:
		return nil, Wrap(ErrValidation, "record feedback",
			fmt.Sprintf("unknown feedback type %q", feedbackType), nil)
	}

	predictedJSON, err := marshalJSON(predicted)
	if err != nil {
		return nil, err
	}
	correctJSON, err := marshalJSON(correct)
	if err != nil {
		return nil, err
	}

	res, err := s.execWithRetry(ctx,
		`INSERT INTO ml_feedback (
            media_file_id, predicted_metadata, predicted_confidence,
            correct_metadata, feedback_type, used_for_training,
            training_weight, created_at
        ) VALUES (?, ?, ?, ?, ?, 0, 1.0, ?)`,
		fileID, predictedJSON, predictedConfidence, correctJSON,
		string(feedbackType), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, Wrap(ErrStorageUnavailable, "record feedback", "insert", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, Wrap(ErrStorageUnavailable, "record feedback", "last insert id", err)
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+feedbackColumns+` FROM ml_feedback WHERE id = ?`, id)
	fb, err := scanFeedback(row)
	if err != nil {
		return nil, Wrap(ErrStorageUnavailable, "record feedback", "read back", err)
	}
	return fb, nil
}

// FeedbackForFile lists feedback records for a media file, oldest first.
func (s *Store) FeedbackForFile(ctx context.Context, fileID int64) ([]*Feedback, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+feedbackColumns+` FROM ml_feedback WHERE media_file_id = ? ORDER BY created_at, id`, fileID)
	if err != nil {
		return nil, Wrap(ErrStorageUnavailable, "feedback for file", "execute", err)
	}
	defer rows.Close()
	return collectFeedback(rows)
}

// UnusedFeedback lists feedback not yet consumed by a training run.
func (s *Store) UnusedFeedback(ctx context.Context, limit int) ([]*Feedback, error) {
	query := `SELECT ` + feedbackColumns + ` FROM ml_feedback WHERE used_for_training = 0 ORDER BY created_at, id`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), query)
	if err != nil {
		return nil, Wrap(ErrStorageUnavailable, "unused feedback", "execute", err)
	}
	defer rows.Close()
	return collectFeedback(rows)
}

// MarkFeedbackUsed flags feedback rows as consumed by a training run. The
// training usage flag and weight are the only mutable feedback fields.
func (s *Store) MarkFeedbackUsed(ctx context.Context, ids ...int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	res, err := s.execWithRetry(ensureContext(ctx),
		`UPDATE ml_feedback SET used_for_training = 1 WHERE id IN (`+makePlaceholders(len(ids))+`)`,
		args...)
	if err != nil {
		return 0, Wrap(ErrStorageUnavailable, "mark feedback used", "update", err)
	}
	return res.RowsAffected()
}

func collectFeedback(rows *sql.Rows) ([]*Feedback, error) {
	var records []*Feedback
	for rows.Next() {
		fb, err := scanFeedback(rows)
		if err != nil {
			return nil, Wrap(ErrStorageUnavailable, "scan feedback", "scan", err)
		}
		records = append(records, fb)
	}
	return records, rows.Err()
}

func scanFeedback(scanner interface{ Scan(dest ...any) error }) (*Feedback, error) {
	var (
		fb         Feedback
		predicted  sql.NullString
		correct    sql.NullString
		typeStr    string
		used       sql.NullInt64
		createdRaw sql.NullString
	)
	if err := scanner.Scan(
		&fb.ID, &fb.MediaFileID, &predicted, &fb.PredictedConfidence,
		&correct, &typeStr, &used, &fb.TrainingWeight, &createdRaw,
	); err != nil {
		return nil, err
	}

	fb.FeedbackType = FeedbackType(typeStr)
	if used.Valid {
		fb.UsedForTraining = used.Int64 != 0
	}
	if err := unmarshalJSON(predicted, &fb.PredictedMetadata); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(correct, &fb.CorrectMetadata); err != nil {
		return nil, err
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		fb.CreatedAt = created
	}
	return &fb, nil
}
