// Package apperr defines the caller-visible error taxonomy shared by the
// game services. Services wrap these sentinels with context via fmt.Errorf
// and %w; the HTTP layer maps them to stable status codes with errors.Is.
package apperr

import "errors"

var (
	// ErrInvalidArgument marks bad caller input (negative amounts, unknown
	// battle types, malformed ids).
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound marks a missing or unpublished quiz, attempt, siblon, or
	// battle.
	ErrNotFound = errors.New("not found")

	// ErrForbidden marks an ownership or participation violation.
	ErrForbidden = errors.New("forbidden")

	// ErrConflict marks an invalid state transition: submitting a completed
	// attempt, acting on a finished battle, acting out of turn.
	ErrConflict = errors.New("conflict")

	// ErrAttemptLimit marks a start request past the quiz's max attempts.
	ErrAttemptLimit = errors.New("attempt limit exceeded")
)
