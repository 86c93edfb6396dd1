package utils

import (
	"sync"
	"time"
)

// RefreshThrottle gates one logical refresh action behind a time window.
// Construct one per refresh surface and pass it explicitly; automatic and
// forced refresh share the same timestamp, so a forced run also resets the
// automatic window.
type RefreshThrottle struct {
	clock Clock

	mu      sync.Mutex
	lastRun time.Time
}

// NewRefreshThrottle creates a throttle driven by the given clock.
func NewRefreshThrottle(clock Clock) *RefreshThrottle {
	if clock == nil {
		clock = SystemClock()
	}
	return &RefreshThrottle{clock: clock}
}

// Attempt runs action and returns true if the window has elapsed since the
// last run; otherwise it is a no-op returning false. The gate check and
// timestamp update happen under one lock, so of several concurrent attempts
// within the same window at most one executes the action.
func (t *RefreshThrottle) Attempt(window time.Duration, action func()) bool {
	t.mu.Lock()
	now := t.clock.Now()
	if !t.lastRun.IsZero() && now.Sub(t.lastRun) <= window {
		t.mu.Unlock()
		return false
	}
	t.lastRun = now
	t.mu.Unlock()

	action()
	return true
}

// Force always runs action and resets the window, for explicit user-initiated
// refresh.
func (t *RefreshThrottle) Force(action func()) {
	t.mu.Lock()
	t.lastRun = t.clock.Now()
	t.mu.Unlock()

	action()
}
