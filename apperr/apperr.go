// Package apperr defines the application error taxonomy shared by the queue
// engine and the HTTP layer. Storage-level "not found" results never leak out
// of repositories; callers branch on nil results and raise these kinds at the
// boundary instead.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an application error.
type Kind int

const (
	// KindUnknown marks errors that did not originate from this package.
	KindUnknown Kind = iota
	// KindNotFound: missing room association, absent queue_num, empty
	// playlist where a current song is required.
	KindNotFound
	// KindForbidden: role check failed for a privileged operation.
	KindForbidden
	// KindConflict: duplicate creation, e.g. user already in a room.
	KindConflict
	// KindBadRequest: catch-all for malformed input and wrapped causes.
	KindBadRequest
)

// Error is a kinded application error with a human-readable detail.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Detail, e.Err)
	}
	return e.Detail
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NotFound returns a not-found error with the given detail.
func NotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Detail: fmt.Sprintf(format, args...)}
}

// Forbidden returns a forbidden error with the given detail.
func Forbidden(format string, args ...interface{}) *Error {
	return &Error{Kind: KindForbidden, Detail: fmt.Sprintf(format, args...)}
}

// Conflict returns a conflict error with the given detail.
func Conflict(format string, args ...interface{}) *Error {
	return &Error{Kind: KindConflict, Detail: fmt.Sprintf(format, args...)}
}

// BadRequest returns a bad-request error with the given detail.
func BadRequest(format string, args ...interface{}) *Error {
	return &Error{Kind: KindBadRequest, Detail: fmt.Sprintf(format, args...)}
}

// Wrap turns an arbitrary error into a bad-request application error,
// preserving the cause. Errors that already carry a kind pass through
// unchanged.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return err
	}
	return &Error{Kind: KindBadRequest, Detail: err.Error(), Err: err}
}

// KindOf extracts the kind of err, or KindUnknown for foreign errors.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}

// DetailOf extracts the detail of err, falling back to err.Error().
func DetailOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Detail
	}
	return err.Error()
}
