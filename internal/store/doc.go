// Package store provides SQLite-backed local storage for a scan station.
//
// Two tables:
//   - settings: JSON values by key (auto-scan mode, shop settings, keyboard
//     shortcuts, API tokens)
//   - scan_log: append-only record of commit attempts, one row per attempt
//
// # Ordering
//
// Scan log rows are ordered by (session, seq), where seq is the detector's
// logical sequence. Wall-clock time is stored for display only and never
// used for ordering.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON
package store
