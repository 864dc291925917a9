package rawi

import (
	"context"
	"sync"
)

// inFlight is one shared pending fetch.
type inFlight struct {
	payload []byte
	err     error
	done    chan struct{}
}

func (e *inFlight) wait(ctx context.Context) ([]byte, error) {
	select {
	case <-e.done:
		return e.payload, e.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// InFlightTracker coalesces concurrent fetches for the same logical key into
// a single execution whose result every caller shares.
type InFlightTracker struct {
	mu      sync.Mutex
	entries map[string]*inFlight
}

// NewInFlightTracker returns an empty tracker.
func NewInFlightTracker() *InFlightTracker {
	return &InFlightTracker{entries: make(map[string]*inFlight)}
}

// Do runs work for key unless an execution is already in flight, in which
// case the caller subscribes to its result instead. The returned bool is true
// when the caller joined an existing flight.
//
// Started work always runs to completion: the worker goroutine receives a
// detached context, so a caller abandoning its wait does not cancel the call
// other subscribers depend on. The registration for key is removed when work
// completes, before any subscriber is resumed, so a caller arriving after
// completion starts a fresh execution instead of waiting on a stale entry.
func (t *InFlightTracker) Do(ctx context.Context, key string, work func(context.Context) ([]byte, error)) ([]byte, bool, error) {
	t.mu.Lock()
	if e, ok := t.entries[key]; ok {
		t.mu.Unlock()
		payload, err := e.wait(ctx)
		return payload, true, err
	}
	e := &inFlight{done: make(chan struct{})}
	t.entries[key] = e
	t.mu.Unlock()

	go func() {
		payload, err := work(context.WithoutCancel(ctx))
		t.mu.Lock()
		delete(t.entries, key)
		t.mu.Unlock()
		e.payload, e.err = payload, err
		close(e.done)
	}()

	payload, err := e.wait(ctx)
	return payload, false, err
}

// Len returns the number of keys currently in flight.
func (t *InFlightTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
