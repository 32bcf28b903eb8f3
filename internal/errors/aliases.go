package errors

import (
	crdberrors "github.com/cockroachdb/errors"
)

// Re-exports so callers need a single errors import alongside the exit
// code helpers. Wrapping comes from cockroachdb/errors for its
// stack-preserving chains.

// New creates an error with a stack trace.
func New(msg string) error {
	return crdberrors.New(msg)
}

// Newf creates a formatted error with a stack trace.
func Newf(format string, args ...any) error {
	return crdberrors.Newf(format, args...)
}

// Wrap annotates err with a message, preserving the chain.
func Wrap(err error, msg string) error {
	return crdberrors.Wrap(err, msg)
}

// Wrapf annotates err with a formatted message, preserving the chain.
func Wrapf(err error, format string, args ...any) error {
	return crdberrors.Wrapf(err, format, args...)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return crdberrors.Is(err, target)
}

// As finds the first error in err's chain matching target.
func As(err error, target any) bool {
	return crdberrors.As(err, target)
}
