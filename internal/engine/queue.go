package engine

import (
	"sync"

	"github.com/roach88/cartsync/internal/checkout"
	"github.com/roach88/cartsync/internal/connection"
)

// EventType distinguishes the tagged events of a session.
type EventType int

const (
	// EventTypeUpdate carries one raw update message from the backend.
	EventTypeUpdate EventType = iota + 1
	// EventTypeSignal carries one connection lifecycle signal.
	EventTypeSignal
	// EventTypeCommand carries one checkout command.
	EventTypeCommand
)

func (t EventType) String() string {
	switch t {
	case EventTypeUpdate:
		return "update"
	case EventTypeSignal:
		return "signal"
	case EventTypeCommand:
		return "command"
	default:
		return "unknown"
	}
}

// Event is one entry of the session queue. Exactly one of Payload, Signal or
// Command is meaningful, according to Type.
type Event struct {
	Type    EventType
	Payload []byte
	Signal  connection.Signal
	Command *Command
}

// UpdateEvent wraps a raw update payload.
func UpdateEvent(payload []byte) Event {
	return Event{Type: EventTypeUpdate, Payload: payload}
}

// SignalEvent wraps a lifecycle signal.
func SignalEvent(sig connection.Signal) Event {
	return Event{Type: EventTypeSignal, Signal: sig}
}

// CommandEvent wraps a checkout command with no reply channel.
func CommandEvent(op checkout.Op) Event {
	return Event{Type: EventTypeCommand, Command: &Command{Op: op}}
}

// Command is a checkout operation awaiting its result.
type Command struct {
	Op    checkout.Op
	reply chan CommandResult
}

// CommandResult is the phase after a command, or the rejection. Checkout is
// the checkout view published by the same event.
type CommandResult struct {
	Phase    checkout.Phase
	Checkout CheckoutView
	Err      error
}

// respond delivers the result once; later calls and nil replies are no-ops.
func (c *Command) respond(r CommandResult) {
	if c == nil || c.reply == nil {
		return
	}
	select {
	case c.reply <- r:
	default:
	}
}

// eventQueue is an unbounded, thread-safe FIFO.
//
// Producers (transport reader, API handlers) enqueue from any goroutine; the
// Run loop dequeues. A buffered signal channel lets Run wait with a context.
type eventQueue struct {
	mu     sync.Mutex
	events []Event
	closed bool
	signal chan struct{} // buffered, size 1
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]Event, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue appends e. Returns false once the queue is closed.
func (q *eventQueue) Enqueue(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.events = append(q.events, e)

	// Coalesce wakeups; one pending signal is enough.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue pops the front event without blocking.
func (q *eventQueue) TryDequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return Event{}, false
	}

	e := q.events[0]

	// Release the payload and command references held by the backing array.
	q.events[0] = Event{}

	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}

	return e, true
}

// Wait returns a channel that fires when events may be available, and is
// closed when the queue is closed.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of queued events.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Closed reports whether Close has been called.
func (q *eventQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close rejects further enqueues and wakes waiters.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
