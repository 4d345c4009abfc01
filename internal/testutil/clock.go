package testutil

import (
	"sort"
	"sync"
	"time"

	"github.com/roach88/posscan/internal/clock"
)

// Epoch is the instant every FakeClock starts at.
var Epoch = time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC)

// FakeClock is a simulated clock and scheduler for tests.
//
// Time only moves when Advance is called. Timers armed with AfterFunc fire
// synchronously inside Advance, in deadline order (ties in arming order),
// with Now() reporting the timer's deadline while its callback runs.
//
// Thread-safety: methods are guarded by a mutex, but callbacks run without
// it held so they may arm or stop other timers.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	nextID  int64
	pending []*FakeTimer
}

// FakeTimer is a timer armed on a FakeClock.
type FakeTimer struct {
	clock    *FakeClock
	id       int64
	deadline time.Time
	f        func()
	done     bool
}

// NewFakeClock creates a clock positioned at Epoch.
func NewFakeClock() *FakeClock {
	return &FakeClock{now: Epoch}
}

// Now returns the simulated time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Elapsed returns the simulated time passed since Epoch.
func (c *FakeClock) Elapsed() time.Duration {
	return c.Now().Sub(Epoch)
}

// AfterFunc arms f to run once d of simulated time has passed.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) clock.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	t := &FakeTimer{
		clock:    c,
		id:       c.nextID,
		deadline: c.now.Add(d),
		f:        f,
	}
	c.pending = append(c.pending, t)
	return t
}

// Stop cancels the timer.
func (t *FakeTimer) Stop() bool {
	c := t.clock
	c.mu.Lock()
	defer c.mu.Unlock()

	if t.done {
		return false
	}
	t.done = true
	c.remove(t)
	return true
}

// Pending returns the number of armed timers that have not fired or been stopped.
func (c *FakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Advance moves time forward by d, firing every timer that comes due.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		t := c.popDue(target)
		if t == nil {
			break
		}
		t.f()
	}

	c.mu.Lock()
	c.now = target
	c.mu.Unlock()
}

// popDue removes and returns the earliest timer due at or before target,
// moving now to its deadline.
func (c *FakeClock) popDue(target time.Time) *FakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.pending) == 0 {
		return nil
	}
	sort.SliceStable(c.pending, func(i, j int) bool {
		if c.pending[i].deadline.Equal(c.pending[j].deadline) {
			return c.pending[i].id < c.pending[j].id
		}
		return c.pending[i].deadline.Before(c.pending[j].deadline)
	})

	t := c.pending[0]
	if t.deadline.After(target) {
		return nil
	}
	c.pending = c.pending[1:]
	t.done = true
	if t.deadline.After(c.now) {
		c.now = t.deadline
	}
	return t
}

// remove drops t from the pending list. Caller holds mu.
func (c *FakeClock) remove(t *FakeTimer) {
	for i, p := range c.pending {
		if p == t {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return
		}
	}
}
