package chat

import "errors"

var (
	// ErrSessionNotFound means the conversation does not exist or belongs to a
	// different user.
	ErrSessionNotFound = errors.New("session not found")

	// ErrPersonaNotFound aborts a dispatch before any network call.
	ErrPersonaNotFound = errors.New("persona not found")

	// ErrQuotaExceeded is returned before any mutation when a guest has used up
	// their message allowance.
	ErrQuotaExceeded = errors.New("guest message limit reached")

	// ErrInference marks a recoverable inference backend failure; the optimistic
	// user turn has been rolled back and the raw input is restorable.
	ErrInference = errors.New("inference backend failure")
)
