package scanner

import "time"

// TraceKind names a detector trace event.
type TraceKind string

const (
	TraceKey        TraceKind = "key"        // printable key reached the buffer
	TraceArm        TraceKind = "arm"        // auto-commit timer armed
	TraceCancel     TraceKind = "cancel"     // armed timer stopped
	TraceFire       TraceKind = "fire"       // auto-commit timer fired
	TraceCommit     TraceKind = "commit"     // product handed to the cart
	TraceNoMatch    TraceKind = "no_match"   // commit found no product
	TraceTooShort   TraceKind = "too_short"  // commit ignored, query too short
	TraceSuppressed TraceKind = "suppressed" // key ignored while a modal is open
	TraceModal      TraceKind = "modal"      // modal opened or closed
	TraceMode       TraceKind = "mode"       // mode toggled
)

// Trigger says what started a commit attempt.
type Trigger string

const (
	TriggerTimer Trigger = "timer"
	TriggerEnter Trigger = "enter"
)

// TraceEvent describes one detector step. Seq is stamped by the detector's
// logical sequence and is strictly increasing.
type TraceEvent struct {
	Seq       int64
	Kind      TraceKind
	At        time.Time
	Rune      rune
	Class     Class
	Trigger   Trigger
	Query     string
	ProductID string
	Modal     bool
	Mode      Mode
	Reason    string
}

// Observer receives trace events synchronously on the detector goroutine.
// Implementations must not call back into the Detector.
type Observer interface {
	Observe(ev TraceEvent)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(TraceEvent)

// Observe calls f(ev).
func (f ObserverFunc) Observe(ev TraceEvent) {
	f(ev)
}

// Observers fans events out in order.
type Observers []Observer

// Observe forwards ev to every observer.
func (o Observers) Observe(ev TraceEvent) {
	for _, obs := range o {
		obs.Observe(ev)
	}
}
