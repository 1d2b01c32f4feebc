package connection

import "time"

const defaultErrorMessage = "transport error"

// Transition applies sig to cur and reports whether the state changed.
//
// Edges:
//
//	Connecting   --connect|reconnect--> Connected
//	Connected    --disconnect---------> Disconnected
//	Disconnected --connecting---------> Connecting
//	Error        --connecting---------> Connecting
//	any          --error|connect_error-> Error(message)
//
// Delivery is at-least-once and may skip signals, so connect and reconnect
// are accepted from any non-Connected state and disconnect from any state
// but Disconnected. A connecting signal while Connected is stale and ignored.
func Transition(cur State, sig Signal, now time.Time) (State, bool) {
	switch sig.Kind {
	case SignalError, SignalConnectError:
		msg := sig.Message
		if msg == "" {
			msg = defaultErrorMessage
		}
		if cur.Status == Error && cur.Message == msg {
			return cur, false
		}
		return State{Status: Error, Message: msg, Since: now}, true

	case SignalConnect, SignalReconnect:
		if cur.Status == Connected {
			return cur, false
		}
		return State{Status: Connected, Attempt: sig.Attempt, Since: now}, true

	case SignalDisconnect:
		if cur.Status == Disconnected {
			return cur, false
		}
		return State{Status: Disconnected, Message: sig.Message, Since: now}, true

	case SignalConnecting:
		switch cur.Status {
		case Disconnected, Error:
			return State{Status: Connecting, Attempt: sig.Attempt, Since: now}, true
		case Connecting:
			if sig.Attempt != cur.Attempt {
				cur.Attempt = sig.Attempt
				return cur, true
			}
		}
		return cur, false
	}

	return cur, false
}

// Tracker owns the connection state. Only the session loop calls Apply;
// other components read published copies.
type Tracker struct {
	state State
}

// NewTracker starts in Connecting.
func NewTracker(now time.Time) *Tracker {
	return &Tracker{state: State{Status: Connecting, Since: now}}
}

// Current returns the current state.
func (t *Tracker) Current() State {
	return t.state
}

// Apply transitions on sig and reports whether anything changed.
func (t *Tracker) Apply(sig Signal, now time.Time) (State, bool) {
	next, changed := Transition(t.state, sig, now)
	t.state = next
	return next, changed
}
