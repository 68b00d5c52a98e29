package draw

import "time"

// Clock abstracts wall time so the delay and reveal phases are testable
// without sleeping. The production implementation is SystemClock; tests
// use testutil.FakeClock and advance it by hand.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
	// After returns a channel that fires once d has elapsed.
	After(d time.Duration) <-chan time.Time
}

// SystemClock is the real wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

func (SystemClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}
