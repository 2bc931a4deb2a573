package db

import "errors"

var (
	// ErrSecurityBlocked marks statements refused regardless of mode.
	ErrSecurityBlocked = errors.New("statement blocked for security reasons")

	// ErrSafeModeBlocked marks destructive statements refused while safe
	// mode is on.
	ErrSafeModeBlocked = errors.New("statement blocked by safe mode")

	// ErrLiveModeViolation marks a non-read-only query submitted as live.
	ErrLiveModeViolation = errors.New("live queries must be read-only")

	// ErrTimeout marks a statement abandoned after its execution deadline.
	ErrTimeout = errors.New("query timed out")

	// ErrAborted marks a statement cancelled by its caller.
	ErrAborted = errors.New("query aborted")
)
