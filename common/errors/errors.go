// Package errors attaches process exit codes to errors returned by commands.
package errors

import "errors"

type ExitCodeError struct {
	code ExitCode
	error
}

func NewError(err error, exitCode ExitCode) *ExitCodeError {
	if err == nil {
		return nil
	}
	return &ExitCodeError{exitCode, err}
}

func (e *ExitCodeError) GetExitCode() ExitCode {
	if e == nil {
		return 0
	}
	return e.code
}

func (e *ExitCodeError) Unwrap() error {
	return e.error
}

// GetExitCode is the code attached anywhere in err's chain, or
// GenericFailureExitCode if there is none. A nil err exits 0.
func GetExitCode(err error) ExitCode {
	if err == nil {
		return 0
	}
	var e *ExitCodeError
	if errors.As(err, &e) {
		return e.GetExitCode()
	}
	return GenericFailureExitCode
}
