package model

import (
	"errors"
	"fmt"
)

// Sentinel errors for the whole core. Services wrap them with context; callers
// match with errors.Is.
var (
	// ErrNotConfigured is returned when the storage connection is missing or
	// not set up. Fail fast, no retry.
	ErrNotConfigured = errors.New("storage is not configured")

	// ErrNotFound covers both "record absent" and "caller not authorized".
	// Unauthorized is deliberately folded in so that probing does not leak existence.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned for malformed dates, oversized blobs and
	// missing required fields.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict is returned when a status-guarded update matched zero rows:
	// already signed, already claimed, student already has a slot.
	ErrConflict = errors.New("conflict")
)

// Conflictf wraps ErrConflict with an actionable message.
func Conflictf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrConflict)...)
}

// Invalidf wraps ErrInvalidInput with an actionable message.
func Invalidf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrInvalidInput)...)
}
