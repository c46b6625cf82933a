// This is a compatibility shim for POSIX-defined errno codes across platforms.
// The syscall package doesn't define all the values we need on all systems,
// particularly things like EUCLEAN.

package errors

import (
	"fmt"
)

// DriverError is any error that can be extended with an additional message
// or wrap another error while staying inspectable via errors.Unwrap.
type DriverError interface {
	error
	WithMessage(message string) DriverError
	WrapError(err error) DriverError
}

// customDriverError is the concrete DriverError built by DiskoError's
// WithMessage/WrapError. WithMessage keeps the base DiskoError as its Unwrap
// target, so errors.Is still matches that sentinel. WrapError's Unwrap target
// is the wrapped error instead, so errors.Is matches the wrapped cause and
// not the sentinel.
type customDriverError struct {
	message       string
	originalError error
}

func (e customDriverError) Error() string {
	return e.message
}

func (e customDriverError) WithMessage(message string) DriverError {
	return customDriverError{
		message:       fmt.Sprintf("%s: %s", e.message, message),
		originalError: e,
	}
}

func (e customDriverError) WrapError(err error) DriverError {
	return customDriverError{
		message:       fmt.Sprintf("%s: %s", e.Error(), err.Error()),
		originalError: err,
	}
}

func (e customDriverError) Unwrap() error {
	return e.originalError
}

// DiskoError is a sentinel error value, comparable with errors.Is and
// extendable into a customDriverError via WithMessage/WrapError.
type DiskoError string

const ErrArgumentOutOfRange = DiskoError("Numerical argument out of domain")
const ErrAuthenticationFailed = DiskoError("Authentication failed")
const ErrAccountLocked = DiskoError("Account locked after too many failed attempts")
const ErrBadMode = DiskoError("Invalid mode bits")
const ErrDirectoryFull = DiskoError("No free slot in directory")
const ErrExists = DiskoError("File exists")
const ErrFileSystemCorrupted = DiskoError("Structure needs cleaning")
const ErrInvalidArgument = DiskoError("Invalid argument")
const ErrIOFailed = DiskoError("Input/output error")
const ErrNameTooLong = DiskoError("File name too long")
const ErrNoSpaceOnDevice = DiskoError("No space left on device")
const ErrNotFound = DiskoError("No such file or directory")
const ErrPermissionDenied = DiskoError("Permission denied")
const ErrResultOutOfRange = DiskoError("Numerical result out of range")

func (e DiskoError) Error() string {
	return string(e)
}

func (e DiskoError) WithMessage(message string) DriverError {
	return customDriverError{
		message:       message,
		originalError: e,
	}
}

func (e DiskoError) WrapError(err error) DriverError {
	return customDriverError{
		message:       fmt.Sprintf("%s %s", e.Error(), err.Error()),
		originalError: err,
	}
}
