package rawi

import (
	"errors"
	"fmt"
)

// Kind classifies the failures surfaced by Fetch. Cache failures are handled
// internally and never reach callers; the kind exists for logging and metrics.
type Kind string

const (
	KindInvalidInput Kind = "InvalidInput"
	KindTransport    Kind = "Transport"
	KindRateLimited  Kind = "RateLimited"
	KindDecoding     Kind = "Decoding"
	KindCache        Kind = "Cache"
)

// Error is the failure type returned by Fetch and friends.
type Error struct {
	Kind        Kind
	Message     string
	Cause       error
	RequestID   string
	URL         string
	StatusCode  int
	Attempt     int
	MaxAttempts int
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Cause != nil {
		msg = fmt.Sprintf("%s (%v)", msg, e.Cause)
	}
	if e.RequestID != "" {
		msg = fmt.Sprintf("[%s] %s", e.RequestID, msg)
	}
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Attempt > 0 {
		msg = fmt.Sprintf("%s (attempt %d/%d)", msg, e.Attempt+1, e.MaxAttempts)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is matches two *Error values by kind, so callers can branch with errors.Is
// against a bare &Error{Kind: ...}.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// IsInvalidInput reports whether err is an input validation failure.
func IsInvalidInput(err error) bool { return hasKind(err, KindInvalidInput) }

// IsTransport reports whether err is a network-level failure that survived
// the retry budget.
func IsTransport(err error) bool { return hasKind(err, KindTransport) }

// IsRateLimited reports whether the server explicitly throttled the fetch.
// Callers may choose to degrade gracefully, e.g. by serving previously cached
// content, instead of treating this as a hard failure.
func IsRateLimited(err error) bool { return hasKind(err, KindRateLimited) }

// IsDecoding reports whether the payload matched neither expected shape.
func IsDecoding(err error) bool { return hasKind(err, KindDecoding) }

func hasKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// Retriable reports whether another attempt of the same fetch could succeed.
// Decoding and input errors are final; retrying cannot change them.
func Retriable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == KindTransport || e.Kind == KindRateLimited
	}
	return false
}
