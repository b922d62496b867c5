package models

import "errors"

// Error kinds propagated from the store and the transfer orchestrator,
// per the error handling design (§7).
var (
	// ErrNotFound is returned when a task lookup fails.
	ErrNotFound = errors.New("task not found")
	// ErrAlreadyRunning is returned when a lock acquisition fails because
	// another run is already in flight for the task.
	ErrAlreadyRunning = errors.New("task is already running")
	// ErrInputInvalid is returned for validation failures surfaced to the caller.
	ErrInputInvalid = errors.New("invalid input")
	// ErrRemotePrepFailed is returned when remote directory preparation fails.
	ErrRemotePrepFailed = errors.New("remote preparation failed")
	// ErrPreTrashFailed is returned when a pre-trash batch fails before the
	// primary transfer has run.
	ErrPreTrashFailed = errors.New("pre-trash preparation failed")
	// ErrPrimaryFailed is returned when rsync exits non-zero with a code
	// other than 0 or 24.
	ErrPrimaryFailed = errors.New("primary transfer failed")
	// ErrFallbackFailed is returned when the sftp fallback also fails.
	ErrFallbackFailed = errors.New("fallback transfer failed")
	// ErrTimeout is returned when a child process exceeds its wall-clock budget.
	ErrTimeout = errors.New("operation timed out")
	// ErrSecretBox is returned when password decryption fails.
	ErrSecretBox = errors.New("secret box error")
)
