// Package clock abstracts wall time and deferred callbacks so the scan
// detector can run against a simulated clock in tests.
//
// Two notions of time live here:
//
//   - Clock and Scheduler: wall time and cancellable one-shot callbacks.
//     Inter-key timing and the auto-commit debounce depend on them.
//   - Sequence: a monotonic logical counter used to stamp trace events and
//     scan log rows. Ordering NEVER relies on wall-clock timestamps.
package clock
