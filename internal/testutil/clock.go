package testutil

import (
	"sync"
	"time"
)

// DeterministicClock is a monotonic fake wall clock for tests.
//
// Each call to Now advances it by one millisecond from its epoch, so write
// timestamps produced by the stores are predictable and strictly increasing.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu    sync.Mutex
	epoch time.Time
	ticks int64
}

// NewDeterministicClock creates a clock whose first Now is epoch + 1ms.
func NewDeterministicClock(epoch time.Time) *DeterministicClock {
	return &DeterministicClock{epoch: epoch}
}

// Now advances the clock by one millisecond and returns the new time.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks++
	return c.epoch.Add(time.Duration(c.ticks) * time.Millisecond)
}

// Current returns the last time handed out without advancing.
func (c *DeterministicClock) Current() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch.Add(time.Duration(c.ticks) * time.Millisecond)
}

// Reset rewinds the clock to its epoch.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks = 0
}
