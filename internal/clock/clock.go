package clock

import "time"

// Clock provides an abstraction for time operations to enable deterministic
// testing of the volume-wait polling loop.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Sleep pauses the calling goroutine for the given duration.
	Sleep(d time.Duration)
}

// RealClock implements Clock using the system time.
type RealClock struct{}

// Now returns the current system time.
func (c *RealClock) Now() time.Time {
	return time.Now()
}

// Sleep pauses for the given duration.
func (c *RealClock) Sleep(d time.Duration) {
	time.Sleep(d)
}

// FakeClock implements Clock with a controllable time for testing. Sleep
// advances the fake time instead of blocking, so poll loops run instantly.
type FakeClock struct {
	current time.Time
	slept   []time.Duration
}

// NewFakeClock creates a new FakeClock with the given time.
func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{current: t}
}

// Now returns the fake time.
func (c *FakeClock) Now() time.Time {
	return c.current
}

// Sleep advances the fake time by d and records the call.
func (c *FakeClock) Sleep(d time.Duration) {
	c.current = c.current.Add(d)
	c.slept = append(c.slept, d)
}

// Set updates the fake time.
func (c *FakeClock) Set(t time.Time) {
	c.current = t
}

// Advance moves the fake time forward by the given duration.
func (c *FakeClock) Advance(d time.Duration) {
	c.current = c.current.Add(d)
}

// SleepCalls returns the durations passed to Sleep, in order.
func (c *FakeClock) SleepCalls() []time.Duration {
	return c.slept
}
