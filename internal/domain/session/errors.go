package session

import "errors"

// Sentinel errors for session state.
var (
	ErrActiveSession = errors.New("a session is already active")
	ErrNoSession     = errors.New("no session")
	ErrSessionClosed = errors.New("session no longer accepts scores")
	ErrPlayerIndex   = errors.New("player index out of range")
	ErrNotPolling    = errors.New("orchestrator is not polling for games")
)
