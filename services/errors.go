package services

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindInvalidArgument   Kind = "invalid-argument"
	KindUnauthenticated   Kind = "unauthenticated"
	KindPermissionDenied  Kind = "permission-denied"
	KindNotFound          Kind = "not-found"
	KindAlreadyExists     Kind = "already-exists"
	KindResourceExhausted Kind = "resource-exhausted"
	KindInternal          Kind = "internal"
)

// Error is a failure the caller can show to the end user. Message is safe to
// expose; Err keeps the underlying cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf reports the kind of err, or KindInternal for errors that did not
// originate here.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
