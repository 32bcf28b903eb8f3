package errors

import (
	"errors"
	"fmt"
)

// Exit codes for the savesentry CLI. Automation relies on these being
// distinct and stable.
const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess = 0

	// ExitUser indicates a user-related error (invalid input, configuration, etc.).
	ExitUser = 1

	// ExitStorage indicates a snapshot storage failure (I/O, space, permissions).
	ExitStorage = 2

	// ExitPreflight indicates a restore was rejected before touching any
	// live file, typically because the game process is running.
	ExitPreflight = 3

	// ExitInconsistent indicates a restore rollback failed and the live
	// save directory may hold a mix of old and new files.
	ExitInconsistent = 4
)

// Sentinel errors for common failure conditions.
var (
	// ErrSnapshotNotFound indicates the requested snapshot does not exist.
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrInvalidProfile indicates a profile number outside the valid range.
	ErrInvalidProfile = errors.New("invalid profile")

	// ErrInvalidConfig indicates configuration validation failed.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ExitError wraps an error with an exit code and optional suggestion for CLI use.
// It implements the error interface and supports unwrapping via errors.Unwrap.
type ExitError struct {
	// Err is the underlying error that caused the exit.
	Err error

	// Code is the exit code to return to the operating system.
	Code int

	// Suggestion is an optional actionable suggestion for the user.
	Suggestion string
}

// NewExitError creates an ExitError with the given underlying error and exit code.
// If err is nil, the returned ExitError will have a nil Err field.
func NewExitError(err error, code int) *ExitError {
	return &ExitError{
		Err:  err,
		Code: code,
	}
}

// NewUserError creates an ExitError with ExitUser code and a suggestion.
func NewUserError(err error, suggestion string) *ExitError {
	return &ExitError{
		Err:        err,
		Code:       ExitUser,
		Suggestion: suggestion,
	}
}

// NewStorageError creates an ExitError with ExitStorage code.
func NewStorageError(err error) *ExitError {
	return &ExitError{
		Err:  err,
		Code: ExitStorage,
	}
}

// NewPreflightError creates an ExitError with ExitPreflight code and a suggestion.
func NewPreflightError(err error, suggestion string) *ExitError {
	return &ExitError{
		Err:        err,
		Code:       ExitPreflight,
		Suggestion: suggestion,
	}
}

// ExitCode extracts the process exit code from an error chain. A nil
// error is success; an error without an ExitError in its chain is a
// user error.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitUser
}

// Error returns the error message from the underlying error.
// If the underlying error is nil, it returns a generic message with the exit code.
func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit code %d", e.Code)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error, enabling errors.Is and errors.As
// to examine the error chain.
func (e *ExitError) Unwrap() error {
	return e.Err
}
