package command

import "errors"

// Sentinel errors returned by Parse and Dispatcher.Handle.
var (
	// ErrNotCommand indicates the text does not start with the prefix.
	ErrNotCommand = errors.New("not a command")

	// ErrUnknownCommand indicates a prefixed word that is not a turret command.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrSelfMessage indicates the message was sent by the transport itself.
	ErrSelfMessage = errors.New("message from self")

	// ErrNotAllowed indicates the sender is not on the allowlist.
	ErrNotAllowed = errors.New("sender not allowed")

	// ErrInvalidMessage indicates a payload that could not be decoded.
	ErrInvalidMessage = errors.New("invalid command message")
)
