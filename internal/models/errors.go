package models

import "errors"

// Typed failures surfaced by the supervisor and the control API. Callers
// match with errors.Is so the invocation layer can show an actionable
// reason (busy vs. permission) instead of a generic failure.
var (
	// ErrAlreadyRecording: a session is active and cannot be preempted
	ErrAlreadyRecording = errors.New("recording already in progress")

	// ErrInvalidSession: the given id does not match the active session
	ErrInvalidSession = errors.New("no active session with that id")

	// ErrStartFailed: the capture device could not be opened (busy/missing)
	ErrStartFailed = errors.New("failed to start capture device")

	// ErrPermissionDenied: the capture device refused access
	ErrPermissionDenied = errors.New("capture device permission denied")

	// ErrStorageFailure: a disk write or rename failed
	ErrStorageFailure = errors.New("storage failure")
)
