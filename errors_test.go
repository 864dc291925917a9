package rawi

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	e := &Error{
		Kind:        KindRateLimited,
		Message:     "server throttled the request",
		RequestID:   "req-42",
		StatusCode:  429,
		Attempt:     2,
		MaxAttempts: 3,
	}

	msg := e.Error()
	for _, want := range []string{"RateLimited", "server throttled the request", "req-42", "status 429", "attempt 3/3"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	e := &Error{Kind: KindTransport, Message: "transport call failed", Cause: cause}

	if !errors.Is(e, cause) {
		t.Error("errors.Is(e, cause) = false, want true")
	}
	if got := errors.Unwrap(e); got != cause {
		t.Errorf("Unwrap() = %v, want %v", got, cause)
	}
}

func TestErrorIsMatchesByKind(t *testing.T) {
	wrapped := fmt.Errorf("fetching surah: %w", &Error{Kind: KindDecoding, Message: "bad payload"})

	if !errors.Is(wrapped, &Error{Kind: KindDecoding}) {
		t.Error("errors.Is by kind = false, want true")
	}
	if errors.Is(wrapped, &Error{Kind: KindTransport}) {
		t.Error("errors.Is matched a different kind")
	}
}

func TestKindPredicates(t *testing.T) {
	tests := []struct {
		kind Kind
		pred func(error) bool
	}{
		{KindInvalidInput, IsInvalidInput},
		{KindTransport, IsTransport},
		{KindRateLimited, IsRateLimited},
		{KindDecoding, IsDecoding},
	}

	for _, tt := range tests {
		err := fmt.Errorf("wrapped: %w", &Error{Kind: tt.kind, Message: "x"})
		if !tt.pred(err) {
			t.Errorf("predicate for %s = false on its own kind", tt.kind)
		}
		for _, other := range tests {
			if other.kind == tt.kind {
				continue
			}
			if other.pred(err) {
				t.Errorf("predicate for %s = true on a %s error", other.kind, tt.kind)
			}
		}
	}

	if IsTransport(nil) {
		t.Error("IsTransport(nil) = true")
	}
	if IsTransport(errors.New("plain")) {
		t.Error("IsTransport(plain error) = true")
	}
}

func TestRetriable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{&Error{Kind: KindTransport}, true},
		{&Error{Kind: KindRateLimited}, true},
		{&Error{Kind: KindInvalidInput}, false},
		{&Error{Kind: KindDecoding}, false},
		{&Error{Kind: KindCache}, false},
		{errors.New("plain"), false},
		{nil, false},
	}

	for _, tt := range tests {
		if got := Retriable(tt.err); got != tt.want {
			t.Errorf("Retriable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
