package cmd

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/pixport/compositor"
	"github.com/justapithecus/pixport/encoder"
	"github.com/justapithecus/pixport/host"
	"github.com/justapithecus/pixport/ipc"
)

// Exit codes of host-facing commands.
const (
	exitSuccess         = 0
	exitHostError       = 1
	exitTransportError  = 2
	exitValidationError = 3
	exitEncodingFailure = 4
)

// usageError marks bad input detected before the host is contacted.
type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func invalid(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

// exitCode classifies err. Anything unrecognized is treated as a host
// error.
func exitCode(err error) int {
	var ue *usageError
	switch {
	case err == nil:
		return exitSuccess
	case errors.As(err, &ue), compositor.IsValidationError(err):
		return exitValidationError
	case ipc.IsTransportError(err), errors.Is(err, host.ErrNotConnected):
		return exitTransportError
	case encoder.IsEncodingError(err):
		return exitEncodingFailure
	default:
		return exitHostError
	}
}

// exit converts err into a cli.ExitCoder carrying its exit code. Errors
// that already carry one pass through.
func exit(err error) error {
	if err == nil {
		return nil
	}
	var ec cli.ExitCoder
	if errors.As(err, &ec) {
		return err
	}
	return cli.Exit(err.Error(), exitCode(err))
}
