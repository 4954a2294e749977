// Package common defines shared constants and sentinel errors used across
// the Data Room server layers. Callers should use errors.Is to match these
// values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Auth errors (invalid, malformed or expired session token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Remote provider errors, classified from Drive API responses.
	ErrAuthExpired      = errors.New("authorization expired")
	ErrPermissionDenied = errors.New("permission denied")
	ErrQuotaExceeded    = errors.New("quota exceeded")
	ErrTransient        = errors.New("transient provider error")

	// ErrIntegrityAnomaly covers zero-byte downloads and checksum/size
	// mismatches detected during import.
	ErrIntegrityAnomaly = errors.New("integrity anomaly")
)

// UniqueConstraintError reports a uniqueness violation raised by the catalog.
// Constraint carries the database constraint name so callers can tell a
// storage-key collision from an active-remote-id collision.
type UniqueConstraintError struct {
	Constraint string
	Detail     string
}

func (e *UniqueConstraintError) Error() string {
	return fmt.Sprintf("unique constraint violation: %s", e.Constraint)
}

// IsUniqueViolation reports whether err wraps a UniqueConstraintError and,
// if so, returns it.
func IsUniqueViolation(err error) (*UniqueConstraintError, bool) {
	var uv *UniqueConstraintError
	if errors.As(err, &uv) {
		return uv, true
	}
	return nil, false
}
