package cli

import "errors"

// Error variables for argument validation.
var (
	ErrNoCommand      = errors.New("no command provided")
	ErrUnknownCommand = errors.New("unknown command")
	ErrEmptyDataDir   = errors.New("data-dir cannot be empty")
	ErrRunRequired    = errors.New("run number required")
	ErrInvalidRun     = errors.New("invalid run number")
	ErrArgsRequired   = errors.New("missing arguments")
	ErrInvalidIndex   = errors.New("invalid index")
	ErrTooManyArgs    = errors.New("too many arguments")
)
