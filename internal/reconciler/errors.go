package reconciler

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"keel/internal/platform"
)

// BlockedError means the resource waits for a topology change: a required
// producer is not declared or has failed permanently. It is never retried on
// a timer.
type BlockedError struct {
	Reason string
}

func (e *BlockedError) Error() string {
	return "blocked: " + e.Reason
}

// TransientError is a retryable failure such as a timeout or a temporary
// platform outage.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// FatalError is a terminal failure. The resource is not retried until its
// generation changes.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return e.Err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Blocked returns a BlockedError with a formatted reason.
func Blocked(format string, args ...interface{}) error {
	return &BlockedError{Reason: fmt.Sprintf(format, args...)}
}

// Transient wraps err as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// Transientf returns a formatted TransientError.
func Transientf(format string, args ...interface{}) error {
	return &TransientError{Err: fmt.Errorf(format, args...)}
}

// Fatal wraps err as terminal.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// Fatalf returns a formatted FatalError.
func Fatalf(format string, args ...interface{}) error {
	return &FatalError{Err: fmt.Errorf(format, args...)}
}

// IsBlocked reports whether err is a BlockedError.
func IsBlocked(err error) bool {
	var b *BlockedError
	return errors.As(err, &b)
}

// IsTransient reports whether err is a TransientError.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

// IsFatal reports whether err is a FatalError.
func IsFatal(err error) bool {
	var f *FatalError
	return errors.As(err, &f)
}

// Classify maps a collaborator error onto the taxonomy. Errors that are
// already classified are returned unchanged. Permanent platform rejections
// become fatal; everything else, timeouts included, is transient.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case IsBlocked(err), IsTransient(err), IsFatal(err):
		return err
	case platform.IsPermanent(err):
		return Fatal(err)
	case errors.Is(err, context.DeadlineExceeded):
		return Transient(err)
	default:
		return Transient(err)
	}
}

// outcome names a classified error for metrics.
func outcome(err error) string {
	switch {
	case IsBlocked(err):
		return "blocked"
	case IsFatal(err):
		return "fatal"
	default:
		return "transient"
	}
}

var sensitivePatterns = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9\-_.~+/]+=*`), "bearer [REDACTED]"},
	{regexp.MustCompile(`(?i)\b(password|passwd|secret|token|apikey|api_key)=\S+`), "$1=[REDACTED]"},
	{regexp.MustCompile(`(?:/[A-Za-z0-9._\-]+){2,}/`), "[PATH]/"},
	{regexp.MustCompile(`[A-Za-z0-9+/]{40,}={0,2}`), "[REDACTED]"},
}

// SanitizeErrorMessage strips credentials, tokens and filesystem paths from a
// message before it is stored in a status or shown to an operator.
func SanitizeErrorMessage(msg string) string {
	for _, p := range sensitivePatterns {
		msg = p.re.ReplaceAllString(msg, p.repl)
	}
	return msg
}
