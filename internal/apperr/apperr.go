// Package apperr defines the error kinds shared by the repository, the
// object store and the services, and the helpers for classifying them.
package apperr

import (
	"errors"
	"fmt"
)

// Error kinds. Compare with errors.Is.
var (
	ErrValidation           = errors.New("validation error")
	ErrUnsupportedExtension = &kindError{msg: "unsupported extension", parent: ErrValidation}
	ErrParse                = errors.New("parse error")
	ErrNotFound             = errors.New("not found")
	ErrVersionConflict      = errors.New("version conflict")
	ErrStoreUnavailable     = errors.New("store unavailable")
)

// kindError is a sentinel that also matches a broader parent kind.
type kindError struct {
	msg    string
	parent error
}

func (k *kindError) Error() string { return k.msg }

func (k *kindError) Unwrap() error { return k.parent }

// Error carries a kind, the operation that failed and an optional cause.
type Error struct {
	Kind error
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.Error()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is matches the kind, so errors.Is(err, ErrNotFound) works on wrapped errors.
func (e *Error) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

func (e *Error) Unwrap() error { return e.Err }

// Validation returns a validation error with a client-facing message.
func Validation(op, format string, args ...any) error {
	return &Error{Kind: ErrValidation, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// UnsupportedExtension reports an extension outside the allow-list.
func UnsupportedExtension(op, ext string) error {
	return &Error{Kind: ErrUnsupportedExtension, Op: op, Msg: fmt.Sprintf("unsupported image extension %q", ext)}
}

// Parse returns a parse error for input that could not be decoded.
func Parse(op, format string, args ...any) error {
	return &Error{Kind: ErrParse, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// NotFound returns a not-found error naming the missing entity.
func NotFound(op, format string, args ...any) error {
	return &Error{Kind: ErrNotFound, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// VersionConflict reports a failed conditional write.
func VersionConflict(op string, expected int64) error {
	return &Error{Kind: ErrVersionConflict, Op: op, Msg: fmt.Sprintf("expected version %d", expected)}
}

// Unavailable wraps a backing-store failure. A nil cause yields nil.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return &Error{Kind: ErrStoreUnavailable, Op: op, Err: err}
}

// Message returns the client-facing message of err without the operation
// prefix or the cause.
func Message(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		if ae.Msg != "" {
			return ae.Msg
		}
		return ae.Kind.Error()
	}
	return err.Error()
}

// Transient reports whether retrying the failed operation may succeed.
func Transient(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) || errors.Is(err, ErrVersionConflict)
}
