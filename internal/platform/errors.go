package platform

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get-style calls when the object does not exist.
var ErrNotFound = errors.New("not found")

// PermanentError is a rejection that will not change without a manifest
// edit, such as bad credentials or failed domain ownership.
type PermanentError struct {
	Reason string
	Err    error
}

func (e *PermanentError) Error() string {
	if e.Err != nil {
		return e.Reason + ": " + e.Err.Error()
	}
	return e.Reason
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Permanent builds a PermanentError with a formatted reason.
func Permanent(format string, args ...interface{}) error {
	return &PermanentError{Reason: fmt.Sprintf(format, args...)}
}

// IsPermanent reports whether err (or anything it wraps) is a PermanentError.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
