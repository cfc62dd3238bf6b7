package service

import "time"

// Clock returns the current server time. Every time-based decision in this
// package reads it at decision time.
type Clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }

func orSystemClock(c Clock) Clock {
	if c == nil {
		return systemClock
	}
	return c
}
