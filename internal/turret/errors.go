package turret

import "errors"

// Domain errors for the turret package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(sess.Err, turret.ErrReloadTimeout) {
//	    // nobody refilled the magazine in time
//	}
var (
	// ErrReloadTimeout is returned when the magazine stays empty past the reload deadline.
	ErrReloadTimeout = errors.New("turret: reload timed out")

	// ErrReloadRace is returned when the magazine reports empty again while a
	// reload wait is pending.
	ErrReloadRace = errors.New("turret: magazine emitted empty while waiting to reload")

	// ErrBallCountUnderflow is logged when a ball is released from an empty
	// magazine. It never fails a sequence.
	ErrBallCountUnderflow = errors.New("turret: fired without anything in the magazine")

	// ErrInvalidCount is returned by Fire for a count below one.
	ErrInvalidCount = errors.New("turret: fire count must be at least 1")

	// ErrStepPanic wraps a panic recovered from a sequence step.
	ErrStepPanic = errors.New("turret: sequence step panicked")

	// ErrSessionNotFound is returned when a session ID does not exist.
	ErrSessionNotFound = errors.New("turret: session not found")

	// ErrMissingHardware is returned by New without a sensor or motor.
	ErrMissingHardware = errors.New("turret: sensor and motor are required")
)
