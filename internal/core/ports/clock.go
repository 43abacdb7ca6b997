package ports

import "time"

// Clock supplies the current time. Rate limiting and cache freshness are pure
// functions of (stored state, now), so tests substitute a fake clock instead
// of sleeping.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock {
	return ClockFunc(time.Now)
}
