// Package alert gates outbound notifications so at most one is sent per cooldown window.
package alert

import (
	"sync"
	"time"
)

// Cooldown remembers when the last notification was dispatched.
// The zero value of last means nothing has been sent since the last Reset.
type Cooldown struct {
	window time.Duration
	last   time.Time
	mu     sync.Mutex
}

// NewCooldown creates a Cooldown that has never fired.
func NewCooldown(window time.Duration) *Cooldown {
	return &Cooldown{window: window}
}

// Allow reports whether a notification may be sent at now.
// It is true when nothing has been sent yet or strictly more than the window has elapsed.
func (c *Cooldown) Allow(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.last.IsZero() {
		return true
	}
	return now.Sub(c.last) > c.window
}

// Record stores now as the time of the last successful dispatch.
func (c *Cooldown) Record(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = now
}

// Reset forgets the last dispatch and optionally changes the window.
// Values less than or equal to 0 keep the current window.
func (c *Cooldown) Reset(window time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.last = time.Time{}
	if window > 0 {
		c.window = window
	}
}

// Last returns the time of the last dispatch, or the zero time if none.
func (c *Cooldown) Last() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Window returns the cooldown window.
func (c *Cooldown) Window() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.window
}
