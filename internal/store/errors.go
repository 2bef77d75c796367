package store

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrRoleNotFound is returned by the role registry for unknown labels.
var ErrRoleNotFound = errors.New("role not found")

// ErrEtagMismatch is returned when a conditional mutation's If-Match etag no
// longer matches the stored row.
var ErrEtagMismatch = errors.New("etag mismatch")

// ConflictError reports a uniqueness violation on resource creation.
type ConflictError struct {
	Resource string
	Field    string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on %s: %s already exists", e.Resource, e.Field)
}

// isUniqueViolation reports whether err is a unique-constraint violation from
// either backend. SQLite and Postgres phrase it differently, so this matches
// on the driver message the way classify-by-text error mapping usually does.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key")
}
