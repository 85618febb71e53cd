package domain

import "errors"

var (
	// ErrSessionNotFound is returned when no session exists for a PIN.
	ErrSessionNotFound = errors.New("game not found")
	// ErrSessionEnded is returned when a student or teacher acts on a terminated session.
	ErrSessionEnded = errors.New("game has ended")
	// ErrPINTaken indicates the PIN already denotes an active session.
	ErrPINTaken = errors.New("pin already in use")
	// ErrNoFreePIN is returned when PIN generation keeps colliding.
	ErrNoFreePIN = errors.New("no free pin available")
	// ErrStudentNotFound is returned when a name submits before joining.
	ErrStudentNotFound = errors.New("student not found in game")
	// ErrNoQuestion is returned when answering before any question is published.
	ErrNoQuestion = errors.New("no question published yet")
	// ErrInvalidQuestionIndex indicates a submission references a question that was never published.
	ErrInvalidQuestionIndex = errors.New("invalid question index")
	// ErrValidation wraps caller-side input problems.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidTransition is returned when an action is not allowed in the current phase.
	ErrInvalidTransition = errors.New("action not allowed in current phase")
	// ErrSubmissionInFlight is returned while the student's previous answer is still being graded.
	ErrSubmissionInFlight = errors.New("previous answer is still being graded")
	// ErrUnauthorized is returned by the teacher gate.
	ErrUnauthorized = errors.New("wrong passphrase")
	// ErrTemplateNotFound indicates a question template could not be loaded.
	ErrTemplateNotFound = errors.New("template not found")
)
