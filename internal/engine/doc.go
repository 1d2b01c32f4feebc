// Package engine implements the cart session: a single-writer event loop
// that owns the reconciler, the connection tracker and the checkout
// controller.
//
// ARCHITECTURE:
//
// Single-Writer Event Loop:
// Every inbound event (update snapshot, connection lifecycle signal, checkout
// command) is enqueued to one FIFO queue and handled to completion by Run
// before the next is dequeued. This gives:
//   - Strict arrival ordering of snapshots (no parallel application)
//   - An atomic invoice snapshot at Idle -> InvoiceOpen without locks
//   - Reproducible traces when events are replayed on a manual clock
//
// Event Processing Flow:
//  1. Transport and API goroutines call EnqueueUpdate, EnqueueSignal or Submit
//  2. Run dequeues one event at a time and calls Handle
//  3. Handle routes to the update, signal or command handler
//  4. The resulting View is published atomically and observers are notified
//
// Readers on other goroutines only ever see published Views. The frame gate
// receives the connection status after every signal.
//
// ERROR HANDLING:
// A failing or panicking handler is logged and counted, and the loop moves
// on. No event can stop event processing.
package engine
