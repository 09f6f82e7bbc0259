// Package clock provides the time sources a playhead is driven by.
package clock

import (
	"sync"
	"time"
)

// VirtualClock reports milliseconds elapsed since an arbitrary origin.
// Values never decrease.
type VirtualClock interface {
	Elapsed() uint64
}

// SystemClock follows the monotonic wall clock.
type SystemClock struct {
	start time.Time
}

func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

func (c *SystemClock) Elapsed() uint64 {
	return uint64(time.Since(c.start).Milliseconds())
}

// ManualClock only moves when told to. It drives deterministic playback.
type ManualClock struct {
	mu  sync.Mutex
	now uint64
}

func NewManualClock(start uint64) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Elapsed() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by ms milliseconds.
func (c *ManualClock) Advance(ms uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += ms
}

// InterruptableClock wraps a source clock and stops counting while paused.
// Pause and Resume are idempotent.
type InterruptableClock struct {
	mu      sync.Mutex
	src     VirtualClock
	elapsed uint64
	// last source reading accounted for, valid while running
	last   uint64
	paused bool
}

// NewInterruptableClock returns a paused clock reading 0.
func NewInterruptableClock(src VirtualClock) *InterruptableClock {
	return &InterruptableClock{src: src, paused: true}
}

func (c *InterruptableClock) Elapsed() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.paused {
		now := c.src.Elapsed()
		c.elapsed += now - c.last
		c.last = now
	}
	return c.elapsed
}

func (c *InterruptableClock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.paused {
		return
	}
	now := c.src.Elapsed()
	c.elapsed += now - c.last
	c.paused = true
}

func (c *InterruptableClock) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.paused {
		return
	}
	c.last = c.src.Elapsed()
	c.paused = false
}

func (c *InterruptableClock) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}
