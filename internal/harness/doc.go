// Package harness runs scan scenarios against the detector with a fake
// clock and compares the resulting trace with golden files.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: auto_scan_commits
//	description: "A scanner burst commits once, 150ms after the last key"
//	mode: auto                 # auto (default) | manual
//	focus: none                # initial focus: none | search | other
//	scanner:                   # optional threshold overrides
//	  auto_commit_delay: 150ms
//	products:
//	  - { id: p1, name: Phone, sku: PH-100, barcode: "8901030911", stock: 5 }
//	steps:
//	  - type: "8901030911"     # one key per rune, gap apart
//	    gap: 10ms
//	  - wait: 150ms            # advance the clock; due timers fire
//	  - key: enter             # enter | backspace
//	  - modal: true            # open/close an unrelated modal
//	  - mode: manual
//	  - focus: other
//	  - buffer: "PH-"          # host-side edit of the search input
//	  - serial: "IMEI-1"       # confirm the open serial prompt
//	  - skip_serial: true
//	  - cancel_serial: true
//	  - catalog: [...]         # replace the product list (background refresh)
//	assertions:
//	  - { type: commit_count, count: 1 }
//	  - { type: buffer, value: "" }
//	  - { type: cart_contains, product: p1, quantity: 1 }
//	  - { type: trace_order, events: [arm, fire, commit] }
//	  - { type: trace_count, event: arm, count: 10 }
//	  - { type: scan_log, outcome: committed, count: 1 }
//	  - { type: pending, value: "false" }
//
// # Trace Format
//
// One line per event, virtual milliseconds since the scenario started:
//
//	90ms key '1' burst
//	90ms arm rearm
//	240ms fire
//	240ms commit trigger=timer query="8901030911" product=p1
//	240ms cart product=p1 outcome=added
//
// # Deterministic Testing
//
// Every scenario runs with testutil.FakeClock as both clock and timer
// source, a fixed session id and a fresh in-memory store, so the same
// scenario always yields the same trace.
package harness
