package testutil

import (
	"sync"
	"time"
)

// Epoch is the instant a DeterministicClock starts from.
var Epoch = time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC)

// DeterministicClock provides a thread-safe monotonic time source for tests.
//
// Each call to Now() advances the clock by Step, so rows inserted one after
// another get strictly increasing created_at values and reruns of the same
// scenario produce identical timestamps.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu   sync.Mutex
	seq  int64
	Step time.Duration
}

// NewDeterministicClock creates a new deterministic clock starting at Epoch.
//
// The first call to Now() returns Epoch + Step.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{seq: 0, Step: time.Millisecond}
}

// Next increments and returns the next sequence number.
func (c *DeterministicClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// Now advances the clock and returns the new instant.
// Its signature matches time.Now, so it can be passed wherever a clock
// function is accepted.
func (c *DeterministicClock) Now() time.Time {
	n := c.Next()
	return Epoch.Add(time.Duration(n) * c.Step)
}

// Current returns the current sequence number without incrementing.
func (c *DeterministicClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Reset resets the clock to Epoch.
//
// Used for test reuse. After Reset(), the next call to Now() returns Epoch + Step.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
}
