package cmd

import (
	"context"
	"errors"

	sharedErrors "github.com/khanhnv2901/seca-probe/internal/shared/errors"
)

// Process exit codes
const (
	ExitOK         = 0
	ExitFailure    = 1
	ExitUsage      = 2
	ExitResolution = 4
	ExitCancelled  = 130
)

// UsageError marks invalid flags or arguments.
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string {
	return e.Err.Error()
}

func (e *UsageError) Unwrap() error {
	return e.Err
}

// exitCode maps a command error to the process exit status.
func exitCode(err error) int {
	var usage *UsageError
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, sharedErrors.ErrScanCancelled), errors.Is(err, context.Canceled):
		return ExitCancelled
	case errors.As(err, &usage),
		errors.Is(err, sharedErrors.ErrInvalidRange),
		errors.Is(err, sharedErrors.ErrInvalidOption),
		errors.Is(err, sharedErrors.ErrUnsupportedProxy):
		return ExitUsage
	case errors.Is(err, sharedErrors.ErrResolution):
		return ExitResolution
	default:
		return ExitFailure
	}
}
