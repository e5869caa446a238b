// Package testutil utilidades compartidas por los tests.
package testutil

import (
	"sync"
	"time"
)

// Clock reloj manual seguro para uso concurrente.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock crea un reloj parado en start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now hora actual del reloj.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance adelanta el reloj d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set fija la hora.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
