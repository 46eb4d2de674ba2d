package workspace

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// Error taxonomy shared by the whole core. The transport layer maps these to
// status codes; everything below it works with errors.Is.
var (
	// ErrNotFound covers both genuinely missing rows and resources the
	// caller may not even view, so existence is never leaked.
	ErrNotFound = errors.New("not found")

	// ErrForbidden means the caller is known and the resource is visible,
	// but the specific mutation is disallowed.
	ErrForbidden = errors.New("forbidden")

	// ErrValidation means the input was malformed before any row was touched.
	ErrValidation = errors.New("validation failed")

	// ErrConflict is reserved for uniqueness violations. Lock contention is
	// ErrForbidden, never ErrConflict: stale locks resolve themselves.
	ErrConflict = errors.New("conflict")
)

// NewValidationError returns a validation error with a caller-facing reason
func NewValidationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NewForbiddenError returns a forbidden error with a caller-facing reason
func NewForbiddenError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrForbidden, fmt.Sprintf(format, args...))
}

// IsUniqueViolation reports whether err is a unique-constraint violation
// from postgres or sqlite.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
