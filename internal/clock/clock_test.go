package clock

import (
	"testing"
	"time"
)

func TestRealClock_Now(t *testing.T) {
	c := &RealClock{}
	before := time.Now()
	got := c.Now()
	after := time.Now()

	if got.Before(before) || got.After(after) {
		t.Errorf("RealClock.Now() = %v, expected between %v and %v", got, before, after)
	}
}

func TestFakeClock(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewFakeClock(base)

	if !c.Now().Equal(base) {
		t.Errorf("Now() = %v, want %v", c.Now(), base)
	}

	t.Run("sleep advances time without blocking", func(t *testing.T) {
		c.Sleep(500 * time.Millisecond)
		want := base.Add(500 * time.Millisecond)
		if !c.Now().Equal(want) {
			t.Errorf("after Sleep, Now() = %v, want %v", c.Now(), want)
		}
		calls := c.SleepCalls()
		if len(calls) != 1 || calls[0] != 500*time.Millisecond {
			t.Errorf("SleepCalls() = %v, want [500ms]", calls)
		}
	})

	t.Run("advance moves time forward", func(t *testing.T) {
		at := c.Now()
		c.Advance(2 * time.Minute)
		if got := c.Now(); !got.Equal(at.Add(2 * time.Minute)) {
			t.Errorf("after Advance, Now() = %v, want %v", got, at.Add(2*time.Minute))
		}
	})

	t.Run("set replaces time", func(t *testing.T) {
		newTime := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		c.Set(newTime)
		if !c.Now().Equal(newTime) {
			t.Errorf("after Set, Now() = %v, want %v", c.Now(), newTime)
		}
	})
}
