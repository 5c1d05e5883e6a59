package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// TransitionOption carries field updates that must land atomically with a
// status change.
type TransitionOption func(*transitionParams) error

type transitionParams struct {
	confidence   *float64
	outputPath   *string
	errorMessage *string
	processedAt  *time.Time
}

// WithConfidence records the score computed by the stage performing the
// transition. Values outside [0,1] fail with ErrValidation.
func WithConfidence(score float64) TransitionOption {
	return func(p *transitionParams) error {
		if score < 0.0 || score > 1.0 {
			return Wrap(ErrValidation, "transition",
				fmt.Sprintf("confidence score %g outside [0,1]", score), nil)
		}
		p.confidence = &score
		return nil
	}
}

// WithOutputPath records where the organized file was placed. Only valid when
// completing a file; output_path is reserved for terminal success.
func WithOutputPath(path string) TransitionOption {
	return func(p *transitionParams) error {
		trimmed := strings.TrimSpace(path)
		if trimmed == "" {
			return Wrap(ErrValidation, "transition", "output path is empty", nil)
		}
		p.outputPath = &trimmed
		return nil
	}
}

// WithErrorMessage attaches an error description to the row.
func WithErrorMessage(message string) TransitionOption {
	return func(p *transitionParams) error {
		p.errorMessage = &message
		return nil
	}
}

// WithProcessedAt stamps the time the file finished processing.
func WithProcessedAt(t time.Time) TransitionOption {
	return func(p *transitionParams) error {
		utc := t.UTC()
		p.processedAt = &utc
		return nil
	}
}

// Transition moves a media file from one status to another with optional
// simultaneous field updates, all in one atomic statement. The stored status
// must equal from at commit time: a compare-and-swap. A row whose status moved
// underneath the caller fails with ErrConflict; an edge not in the transition
// table fails with ErrInvalidTransition and changes nothing.
func (s *Store) Transition(ctx context.Context, id int64, from, to Status, opts ...TransitionOption) (*MediaFile, error) {
	ctx = ensureContext(ctx)
	if _, err := ParseStatus(string(from)); err != nil {
		return nil, err
	}
	if _, err := ParseStatus(string(to)); err != nil {
		return nil, err
	}
	if !CanTransition(from, to) {
		return nil, Wrap(ErrInvalidTransition, "transition",
			fmt.Sprintf("%s -> %s is not permitted", from, to), nil)
	}

	params := transitionParams{}
	for _, opt := range opts {
		if err := opt(&params); err != nil {
			return nil, err
		}
	}
	if params.outputPath != nil && to != StatusCompleted {
		return nil, Wrap(ErrValidation, "transition",
			fmt.Sprintf("output path may only be set when completing, not moving to %s", to), nil)
	}

	sets := []string{"status = ?", "updated_at = ?"}
	args := []any{string(to), time.Now().UTC().Format(time.RFC3339Nano)}
	if params.confidence != nil {
		sets = append(sets, "confidence_score = ?")
		args = append(args, *params.confidence)
	}
	if params.outputPath != nil {
		sets = append(sets, "output_path = ?")
		args = append(args, *params.outputPath)
	}
	if params.errorMessage != nil {
		sets = append(sets, "error_message = ?")
		args = append(args, nullableString(*params.errorMessage))
	}
	if params.processedAt != nil {
		sets = append(sets, "processed_at = ?")
		args = append(args, params.processedAt.Format(time.RFC3339Nano))
	}
	args = append(args, id, string(from))

	res, err := s.execWithRetry(ctx,
		`UPDATE media_files SET `+strings.Join(sets, ", ")+` WHERE id = ? AND status = ?`,
		args...)
	if err != nil {
		return nil, Wrap(ErrStorageUnavailable, "transition", "update", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, Wrap(ErrStorageUnavailable, "transition", "rows affected", err)
	}
	if affected == 0 {
		return nil, s.classifyTransitionMiss(ctx, id, from)
	}
	return s.GetByID(ctx, id)
}

// classifyTransitionMiss distinguishes a missing row from a lost race after a
// zero-row CAS update.
func (s *Store) classifyTransitionMiss(ctx context.Context, id int64, expected Status) error {
	var current string
	err := s.db.QueryRowContext(ctx,
		`SELECT status FROM media_files WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return Wrap(ErrNotFound, "transition", fmt.Sprintf("id %d", id), nil)
	}
	if err != nil {
		return Wrap(ErrStorageUnavailable, "transition", "inspect status", err)
	}
	return Wrap(ErrConflict, "transition",
		fmt.Sprintf("id %d expected status %s but found %s", id, expected, current), nil)
}

// MarkFailed records a stage failure: the error message is stored and the
// retry counter incremented in one atomic read-modify-write. While the retry
// budget lasts the row keeps its current status so the failed stage can be
// re-entered; once retry_count exceeds maxRetries the row lands in failed for
// good.
func (s *Store) MarkFailed(ctx context.Context, id int64, message string, maxRetries int) (*MediaFile, error) {
	ctx = ensureContext(ctx)
	if strings.TrimSpace(message) == "" {
		return nil, Wrap(ErrValidation, "mark failed", "error message is required", nil)
	}
	if maxRetries < 0 {
		return nil, Wrap(ErrValidation, "mark failed", fmt.Sprintf("negative max retries %d", maxRetries), nil)
	}

	terminal := []Status{StatusCompleted, StatusFailed, StatusSkipped}
	args := []any{
		message,
		time.Now().UTC().Format(time.RFC3339Nano),
		maxRetries,
		string(StatusFailed),
		id,
	}
	args = appendEnumArgs(args, terminal)

	res, err := s.execWithRetry(ctx,
		`UPDATE media_files SET
            error_message = ?,
            updated_at = ?,
            retry_count = retry_count + 1,
            status = CASE WHEN retry_count + 1 > ? THEN ? ELSE status END
        WHERE id = ? AND status NOT IN (`+makePlaceholders(len(terminal))+`)`,
		args...)
	if err != nil {
		return nil, Wrap(ErrStorageUnavailable, "mark failed", "update", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, Wrap(ErrStorageUnavailable, "mark failed", "rows affected", err)
	}
	if affected == 0 {
		file, getErr := s.GetByID(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		return nil, Wrap(ErrInvalidTransition, "mark failed",
			fmt.Sprintf("id %d already terminal in status %s", id, file.Status), nil)
	}
	return s.GetByID(ctx, id)
}

// MarkSkipped permanently excludes a file from processing. Only non-terminal
// files can be skipped.
func (s *Store) MarkSkipped(ctx context.Context, id int64, reason string) (*MediaFile, error) {
	ctx = ensureContext(ctx)

	terminal := []Status{StatusCompleted, StatusFailed, StatusSkipped}
	args := []any{
		string(StatusSkipped),
		nullableString(reason),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	}
	args = appendEnumArgs(args, terminal)

	res, err := s.execWithRetry(ctx,
		`UPDATE media_files SET status = ?, error_message = ?, updated_at = ?
        WHERE id = ? AND status NOT IN (`+makePlaceholders(len(terminal))+`)`,
		args...)
	if err != nil {
		return nil, Wrap(ErrStorageUnavailable, "mark skipped", "update", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, Wrap(ErrStorageUnavailable, "mark skipped", "rows affected", err)
	}
	if affected == 0 {
		file, getErr := s.GetByID(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		return nil, Wrap(ErrInvalidTransition, "mark skipped",
			fmt.Sprintf("id %d already terminal in status %s", id, file.Status), nil)
	}
	return s.GetByID(ctx, id)
}
