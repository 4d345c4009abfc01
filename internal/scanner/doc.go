// Package scanner detects barcode-scanner bursts in a keyboard stream and
// turns them into add-to-cart actions.
//
// A USB/HID barcode scanner is a keyboard. It "types" a full code as a burst
// of evenly spaced keystrokes (typically 1-20ms apart), far faster than a
// cashier types (60-400ms). The Detector classifies every printable key by
// its gap to the previous one, mirrors the search input, and commits the
// buffer either when a burst goes quiet (auto mode) or on Enter (both modes).
//
// ARCHITECTURE:
//
// Single-Writer Event Loop:
// The Detector is NOT safe for concurrent use. Every call (keys, modal
// changes, mode toggles, timer fires) must come from one goroutine. In tests
// that goroutine is the test itself driving a testutil.FakeClock; in the
// running till it is Station.Run, which serializes events from the keyboard
// reader, the cart UI and the runtime timers through a FIFO queue.
//
// Commit Scheduling:
//   - At most one auto-commit timer is armed at any time
//   - Arming always stops the previous timer first
//   - Enter, modal activation and Close stop the armed timer
//   - A timer that fires after being superseded is dropped by generation
//     check, so its effect never runs
//
// Commit:
//   - The live buffer is read at commit time, never a captured copy
//   - Queries shorter than MinQueryLength (after trimming) are ignored
//   - No match leaves the buffer untouched for the cashier to correct
//   - A match clears the buffer BEFORE the product reaches the cart
package scanner
