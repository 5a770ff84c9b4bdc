package bugtracker

import (
	bferrors "github.com/randalmurphal/bugfiler/internal/errors"
)

// Result is the outcome of a facade call: a value on success, a message
// (and the structured error behind it) on failure.
type Result[T any] struct {
	Value T
	Err   *bferrors.Error
	msg   string
	ok    bool
}

// Success wraps a value.
func Success[T any](v T) Result[T] {
	return Result[T]{Value: v, ok: true}
}

// Failure wraps a failure message.
func Failure[T any](msg string, err *bferrors.Error) Result[T] {
	return Result[T]{msg: msg, Err: err}
}

// OK reports whether the call succeeded.
func (r Result[T]) OK() bool {
	return r.ok
}

// Message returns the failure message, or "" on success.
func (r Result[T]) Message() string {
	return r.msg
}

// Unwrap returns the value and a non-nil error on failure.
func (r Result[T]) Unwrap() (T, error) {
	if r.ok {
		return r.Value, nil
	}
	if r.Err != nil {
		return r.Value, r.Err
	}
	return r.Value, bferrors.Wrap(nil, r.msg)
}

// IssueCreationResult is the outcome of CreateIssue.
type IssueCreationResult = Result[IssueRef]

// AttachmentResult is the outcome of AttachFile.
type AttachmentResult = Result[struct{}]

// failureFrom builds a failure whose message is the cause's message, the
// way the tracker reported it.
func failureFrom[T any](op string, cause error) Result[T] {
	return Failure[T](cause.Error(), bferrors.ErrTransport(op, cause))
}
