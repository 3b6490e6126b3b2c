// Package errors defines the taxonomy of error kinds shared by the
// Overseer and Reaper: ValidationError, AuthError, TransientError,
// NotFoundError and InternalError. Callers distinguish them with
// errors.As and the IsX helpers rather than string matching.
package errors

import "fmt"

// Kind identifies which of the five taxonomy buckets an error belongs to.
type Kind string

const (
	KindValidation Kind = "validation"
	KindAuth       Kind = "auth"
	KindTransient  Kind = "transient"
	KindNotFound   Kind = "not_found"
	KindInternal   Kind = "internal"
)

// Error is a taxonomy-tagged error. It wraps an optional underlying cause
// and carries a short machine-readable code alongside the human message.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func new_(kind Kind, code, msg string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: msg, Cause: cause}
}

// Validation builds a permanent, user-visible request-gate denial error.
func Validation(code, msg string) *Error { return new_(KindValidation, code, msg, nil) }

// Auth builds a permanent platform-credential error; callers must not
// retry it without refreshing credentials first.
func Auth(code, msg string, cause error) *Error { return new_(KindAuth, code, msg, cause) }

// Transient builds a retriable network/timeout error; the caller applies
// backoff on its own next cadence rather than retrying inline.
func Transient(code, msg string, cause error) *Error { return new_(KindTransient, code, msg, cause) }

// NotFound builds an idempotent-delete / failing-update error.
func NotFound(code, msg string) *Error { return new_(KindNotFound, code, msg, nil) }

// Internal builds a bug-class error: logged with context, loop continues.
func Internal(code, msg string, cause error) *Error { return new_(KindInternal, code, msg, cause) }

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if as(err, &e) {
		return e.Kind == kind
	}
	return false
}

// IsRetriable reports whether the originating loop should retry on its
// next cadence (TransientError only — NotFoundError on a delete path is
// success, not a retry candidate).
func IsRetriable(err error) bool { return Is(err, KindTransient) }

// IsPermanent reports whether retrying without an operator/credential
// change is pointless (Validation or Auth).
func IsPermanent(err error) bool { return Is(err, KindValidation) || Is(err, KindAuth) }

// as is a tiny local shim over errors.As to avoid importing the stdlib
// package under the same name as this one everywhere it's used.
func as(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
