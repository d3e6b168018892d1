package commands

import (
	"errors"
	"fmt"

	"github.com/Sumatoshi-tech/guidelint/pkg/report"
)

// ErrModeRequired is returned when check gets no mode flag.
var ErrModeRequired = errors.New("one of --full, --diff, --working or --staged is required")

// ExitError carries a process exit status out of a command. Err is nil when
// the status alone is the answer, as for a run that found violations.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}

	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode maps a command error to a process exit status. Errors without an
// explicit status, usage errors included, exit with report.ExitError.
func ExitCode(err error) int {
	if err == nil {
		return report.ExitClean
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	return report.ExitError
}

// ShouldReport reports whether err carries a message worth printing.
func ShouldReport(err error) bool {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Err != nil
	}

	return err != nil
}
