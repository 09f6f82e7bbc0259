package clock

import (
	"testing"
	"time"
)

func TestManualClock(t *testing.T) {
	c := NewManualClock(100)
	if c.Elapsed() != 100 {
		t.Fatalf("start: %d", c.Elapsed())
	}
	c.Advance(40)
	c.Advance(0)
	if c.Elapsed() != 140 {
		t.Errorf("after advance: %d", c.Elapsed())
	}
}

func TestInterruptableClock(t *testing.T) {
	src := NewManualClock(1000)
	c := NewInterruptableClock(src)

	src.Advance(500)
	if c.Elapsed() != 0 {
		t.Fatalf("paused clock moved: %d", c.Elapsed())
	}

	c.Resume()
	src.Advance(100)
	c.Resume()
	src.Advance(50)
	if c.Elapsed() != 150 {
		t.Errorf("running: got %d, want 150", c.Elapsed())
	}

	c.Pause()
	c.Pause()
	src.Advance(1000)
	if c.Elapsed() != 150 || !c.Paused() {
		t.Errorf("paused: got %d, want 150", c.Elapsed())
	}

	c.Resume()
	src.Advance(25)
	if c.Elapsed() != 175 {
		t.Errorf("resumed: got %d, want 175", c.Elapsed())
	}
}

func TestSystemClockMonotonic(t *testing.T) {
	c := NewSystemClock()
	a := c.Elapsed()
	time.Sleep(5 * time.Millisecond)
	if b := c.Elapsed(); b < a+5 {
		t.Errorf("clock went from %d to %d", a, b)
	}
}
