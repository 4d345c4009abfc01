package clock

import "time"

// Clock reports the current time.
type Clock interface {
	Now() time.Time
}

// Timer is a handle to an armed callback.
type Timer interface {
	// Stop cancels the callback. Returns false if the callback already
	// fired or was stopped before.
	Stop() bool
}

// Scheduler arms cancellable one-shot callbacks.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// System is the wall clock. Its AfterFunc runs f on a runtime timer
// goroutine, so callers that need single-threaded delivery must marshal
// the callback back onto their own loop (see scanner.Station).
type System struct{}

// Now returns time.Now().
func (System) Now() time.Time {
	return time.Now()
}

// AfterFunc wraps time.AfterFunc.
func (System) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
