package rawi

import (
	"context"
	"sync"
)

// Throttle bounds the number of simultaneous outbound transport calls across
// the whole process. It is shared by every fetch: distinct logical keys still
// contend for the same pool. Waiters are resumed strictly in arrival order;
// Release hands the permit directly to the oldest waiter instead of waking
// everyone to race for it.
type Throttle struct {
	mu      sync.Mutex
	max     int
	current int
	waiters []chan struct{}
}

// NewThrottle creates a Throttle admitting at most max concurrent holders.
func NewThrottle(max int) *Throttle {
	if max <= 0 {
		max = 1
	}
	return &Throttle{max: max}
}

// Acquire blocks until a permit is available or ctx is done. A nil error
// means the caller holds a permit and must call Release exactly once.
func (t *Throttle) Acquire(ctx context.Context) error {
	t.mu.Lock()
	if t.current < t.max {
		t.current++
		t.mu.Unlock()
		return nil
	}
	ready := make(chan struct{})
	t.waiters = append(t.waiters, ready)
	t.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		t.mu.Lock()
		for i, w := range t.waiters {
			if w == ready {
				t.waiters = append(t.waiters[:i], t.waiters[i+1:]...)
				t.mu.Unlock()
				return ctx.Err()
			}
		}
		t.mu.Unlock()
		// Not queued anymore: a permit was handed over concurrently with the
		// cancellation, so it must be given back.
		t.Release()
		return ctx.Err()
	}
}

// Release returns a permit. If a waiter is queued, ownership transfers to it
// without touching the holder count.
func (t *Throttle) Release() {
	t.mu.Lock()
	if len(t.waiters) > 0 {
		ready := t.waiters[0]
		t.waiters = t.waiters[1:]
		t.mu.Unlock()
		close(ready)
		return
	}
	if t.current > 0 {
		t.current--
	}
	t.mu.Unlock()
}

// InFlight returns the number of permits currently held.
func (t *Throttle) InFlight() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Waiting returns the number of callers queued for a permit.
func (t *Throttle) Waiting() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.waiters)
}
