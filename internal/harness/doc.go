// Package harness replays session scenarios against a real engine with a
// manual clock and deterministic ids, and pins the resulting traces in
// golden files.
//
// # Scenario Format
//
//	name: retention_window
//	description: "A vanished item stays at zero quantity for the window"
//	retention_window_ms: 5000   # optional, defaults to 5000
//	steps:
//	  - at_ms: 0
//	    update: { products: [{product_name: apple, quantity: 1, unit_price: 0.80}], total: 0.80 }
//	    expect: { cart: ["apple x1"], total: "0.80" }
//	  - at_ms: 1000
//	    raw: "{not json"
//	  - at_ms: 1500
//	    signal: { type: connect }
//	  - at_ms: 2000
//	    command: open_invoice
//	    expect: { outcome: ok, phase: InvoiceOpen }
//	  - at_ms: 2100
//	    frame: "data:image/jpeg;base64,AA=="
//	assertions:
//	  - type: trace_order
//	    actions: [update, "command:open_invoice"]
//
// Each step carries exactly one of update, raw, signal, command or frame.
// at_ms is measured from Epoch and must not decrease.
//
// # Trace
//
// Every step appends one TraceEvent: the action, its outcome, and the cart,
// connection and phase after the step. Cart lines render as "name xQTY";
// a zero quantity is a retained placeholder.
//
// # Assertion Types
//
//   - trace_contains: an action (optionally with an outcome) appears in the trace
//   - trace_order: actions appear in the given order
//   - trace_count: an action appears exactly N times
//   - final_state: the view after the last step matches an expect clause
//
// Regenerate golden files with:
//
//	go test ./internal/harness -update
package harness
