package testutil

import (
	"sync"
	"time"
)

// Epoch is the first instant returned by a StepClock.
var Epoch = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

// StepClock is a wall clock for tests that advances one second per reading.
//
// Journal tests inject Now so that started/finished timestamps are stable and
// strictly increasing.
type StepClock struct {
	mu   sync.Mutex
	next time.Time
}

// NewStepClock creates a clock whose first reading is Epoch.
func NewStepClock() *StepClock {
	return &StepClock{next: Epoch}
}

// Now returns the current reading and advances the clock.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.next
	c.next = c.next.Add(time.Second)
	return t
}

// Reset rewinds the clock to Epoch.
func (c *StepClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next = Epoch
}
