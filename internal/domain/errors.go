package domain

import "errors"

var (
	// ErrEmptyAnswer is returned when the normalized answer is empty; no
	// request is sent in that case.
	ErrEmptyAnswer = errors.New("answer is empty")
	// ErrSubmissionInFlight is returned when a submission for the session is
	// already outstanding.
	ErrSubmissionInFlight = errors.New("submission already in flight for session")
	// ErrInvalidConfig indicates the session config failed local validation.
	ErrInvalidConfig = errors.New("invalid session config")
	// ErrSessionNotFound indicates the backend has no such session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrDocumentNotReady indicates the document is not ready for quizzing.
	ErrDocumentNotReady = errors.New("document not ready")
)
