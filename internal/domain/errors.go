package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency. Engine operations
// return these wrapped with context; callers classify with errors.Is.

var (
	// Gateway errors
	ErrGatewayUnavailable = errors.New("remote gateway unavailable")

	// Lifecycle errors
	ErrAlreadyAssigned   = errors.New("task already assigned to another partner")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrTaskNotFound      = errors.New("task not found")
	ErrCodeMismatch      = errors.New("confirmation code mismatch")
	ErrUnknownStatus     = errors.New("unknown delivery status")

	// Mirror store errors
	ErrPersistence = errors.New("local mirror write failed")
)
