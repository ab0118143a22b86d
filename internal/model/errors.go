package model

import "errors"

// Common errors used across the application
var (
	// Session lifecycle errors
	ErrSessionCreate    = errors.New("transport unavailable, could not create session")
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionEnded     = errors.New("session has ended")
	ErrNotInSession     = errors.New("not in a session")
	ErrAlreadyInSession = errors.New("already in a session")

	// Permission errors
	ErrPermissionDenied    = errors.New("participant does not have control")
	ErrNotHost             = errors.New("participant is not the host")
	ErrParticipantNotFound = errors.New("participant not found")

	// Queue errors
	ErrQueueIndexOutOfRange = errors.New("queue index out of range")
	ErrQueueEmpty           = errors.New("queue is empty")
)
