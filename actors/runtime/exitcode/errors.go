package exitcode

import (
	"errors"

	"golang.org/x/xerrors"
)

type wrapped struct {
	code  ExitCode
	cause error
}

func (w *wrapped) Error() string {
	return w.cause.Error()
}

// Is reports whether target is the exit code attached to this error.
// The cause is not exposed through Unwrap: an outer code shadows any inner one.
func (w *wrapped) Is(target error) bool {
	if other, ok := target.(ExitCode); ok {
		return w.code == other
	}
	return false
}

func (w *wrapped) As(target interface{}) bool {
	if code, ok := target.(*ExitCode); ok {
		*code = w.code
		return true
	}
	return false
}

// Wrapf attaches an exit code to an error built from the format string and arguments.
func (x ExitCode) Wrapf(msg string, args ...interface{}) error {
	return &wrapped{code: x, cause: xerrors.Errorf(msg, args...)}
}

// Unwrap extracts the outermost exit code attached to err, or returns the default if there is none.
func Unwrap(err error, defaultExitCode ExitCode) (code ExitCode) {
	if errors.As(err, &code) {
		return code
	}
	return defaultExitCode
}
