package catalog

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound marks operations referencing an unknown entity id.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks uniqueness violations and lost optimistic-transition races.
	ErrConflict = errors.New("conflict")
	// ErrInvalidTransition marks status changes not permitted from the current state.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrValidation marks out-of-range or missing required values.
	ErrValidation = errors.New("validation error")
	// ErrStorageUnavailable marks an unreachable or unusable database.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// Wrap builds an error message that includes operation context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, operation, message string, err error) error {
	detail := buildDetail(operation, message)
	if marker == nil {
		marker = ErrStorageUnavailable
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(operation, message string) string {
	parts := make([]string, 0, 2)
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "catalog failure"
	}
	return strings.Join(parts, ": ")
}
