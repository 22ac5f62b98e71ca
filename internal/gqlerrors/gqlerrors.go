// Package gqlerrors classifies resolver errors so the transport layer can
// distinguish caller mistakes from server defects.
package gqlerrors

import (
	"errors"
	"fmt"
)

// Kind partitions resolver failures. BadRequest covers malformed caller
// input such as an undecodable cursor. NotImplemented covers valid input
// that names functionality the server does not support yet; it is never
// downgraded to a best-effort result. InvariantViolation marks defects,
// e.g. a row that vanished between identity resolution and use.
type Kind int

const (
	KindBadRequest Kind = iota + 1
	KindNotImplemented
	KindInvariantViolation
)

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad request"
	case KindNotImplemented:
		return "not implemented"
	case KindInvariantViolation:
		return "invariant violation"
	default:
		return "unknown"
	}
}

// Error carries a failure kind alongside the message. It supports
// errors.Is against the kind sentinels below and errors.Unwrap for
// wrapped causes.
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

func (e *Error) Unwrap() error {
	return e.Err
}

// BadRequest reports malformed caller input.
func BadRequest(format string, args ...interface{}) error {
	return &Error{Kind: KindBadRequest, Msg: fmt.Sprintf(format, args...)}
}

// BadRequestWrap reports malformed caller input with an underlying cause.
func BadRequestWrap(err error, format string, args ...interface{}) error {
	return &Error{Kind: KindBadRequest, Msg: fmt.Sprintf(format, args...), Err: err}
}

// NotImplemented reports valid input naming unsupported functionality.
func NotImplemented(format string, args ...interface{}) error {
	return &Error{Kind: KindNotImplemented, Msg: fmt.Sprintf(format, args...)}
}

// InvariantViolation reports a server-side defect.
func InvariantViolation(format string, args ...interface{}) error {
	return &Error{Kind: KindInvariantViolation, Msg: fmt.Sprintf(format, args...)}
}

// IsKind reports whether err (or anything it wraps) is an Error of kind k.
func IsKind(err error, k Kind) bool {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind == k
	}
	return false
}

// IsBadRequest reports whether err is a caller-input error.
func IsBadRequest(err error) bool { return IsKind(err, KindBadRequest) }

// IsNotImplemented reports whether err names unsupported functionality.
func IsNotImplemented(err error) bool { return IsKind(err, KindNotImplemented) }

// IsInvariantViolation reports whether err marks a server defect.
func IsInvariantViolation(err error) bool { return IsKind(err, KindInvariantViolation) }
