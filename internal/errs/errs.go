// Package errs classifies failures so the retry engine can decide between
// retrying, giving up immediately, and dead-lettering.
package errs

import (
	"errors"
	"fmt"
)

type Kind string

const (
	// KindValidation failures cannot succeed on retry.
	KindValidation Kind = "validation"
	// KindInfrastructure failures (store/queue/upstream unavailable) are retryable.
	KindInfrastructure Kind = "infrastructure"
	// KindUnknown is treated conservatively as retryable.
	KindUnknown Kind = "unknown"
)

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

func Infra(err error, format string, args ...any) *Error {
	return &Error{Kind: KindInfrastructure, Msg: fmt.Sprintf(format, args...), Err: err}
}

func Wrap(err error, format string, args ...any) *Error {
	return &Error{Kind: KindUnknown, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf walks the error chain; anything unclassified is KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Retryable reports whether the error may succeed on a later attempt.
func Retryable(err error) bool {
	return KindOf(err) != KindValidation
}
