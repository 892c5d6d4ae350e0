// Package clock provides the time source used by the timer core.
// The interface allows time to be mocked in tests.
package clock

import "time"

// Clock supplies wall-clock reads.
type Clock interface {
	Now() time.Time
}

// Real reads the actual system time.
type Real struct{}

// Now returns the current system time.
func (Real) Now() time.Time {
	return time.Now()
}

// Fake provides a settable time for testing.
type Fake struct {
	Current time.Time
}

// Now returns the fake time.
func (f *Fake) Now() time.Time {
	return f.Current
}

// Advance moves the fake time forward.
func (f *Fake) Advance(d time.Duration) {
	f.Current = f.Current.Add(d)
}
