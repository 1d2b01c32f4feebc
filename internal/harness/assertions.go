package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/cartsync/internal/connection"
	"github.com/roach88/cartsync/internal/engine"
)

// AssertionError is returned when an assertion fails. It carries the trace
// so the failure can be read in context.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] +%dms %s -> %s\n", ev.Step, ev.AtMS, ev.Action, ev.Outcome)
		}
	}
	return buf.String()
}

func evaluateAssertion(a Assertion, result *Result) error {
	switch a.Type {
	case AssertTraceContains:
		return assertTraceContains(result.Trace, a)
	case AssertTraceOrder:
		return assertTraceOrder(result.Trace, a)
	case AssertTraceCount:
		return assertTraceCount(result.Trace, a)
	case AssertFinalState:
		if msgs := checkExpect(a.Expect, nil, result.Final, result.Frames); len(msgs) > 0 {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: "final view to match",
				Actual:   strings.Join(msgs, "; "),
			}
		}
		return nil
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

func matches(ev TraceEvent, action, outcome string) bool {
	return ev.Action == action && (outcome == "" || ev.Outcome == outcome)
}

func describe(action, outcome string) string {
	if outcome == "" {
		return action
	}
	return action + " -> " + outcome
}

func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, ev := range trace {
		if matches(ev, a.Action, a.Outcome) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: describe(a.Action, a.Outcome),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that each action's first occurrence comes after
// the previous one's. Other events may sit in between.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int)
	for i, ev := range trace {
		if _, seen := positions[ev.Action]; !seen {
			positions[ev.Action] = i + 1
		}
	}

	for _, action := range a.Actions {
		if positions[action] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all actions present: %v", a.Actions),
				Actual:   fmt.Sprintf("missing action: %s", action),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(a.Actions); i++ {
		prev, curr := a.Actions[i-1], a.Actions[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("actions in order: %v", a.Actions),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if matches(ev, a.Action, a.Outcome) {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%s exactly %d times", describe(a.Action, a.Outcome), a.Count),
			Actual:   fmt.Sprintf("found %d times", count),
			Trace:    trace,
		}
	}
	return nil
}

// checkExpect compares exp with the observed state and returns one message
// per mismatch. ev is nil for final_state checks.
func checkExpect(exp *Expect, ev *TraceEvent, v engine.View, frames connection.GateStats) []string {
	var msgs []string
	mismatch := func(field string, want, got interface{}) {
		msgs = append(msgs, fmt.Sprintf("%s: expected %v, got %v", field, want, got))
	}

	if exp.Outcome != "" && ev != nil && ev.Outcome != exp.Outcome {
		mismatch("outcome", exp.Outcome, ev.Outcome)
	}
	if exp.Cart != nil {
		if got := cartLines(v.Cart.Items); !equalLines(exp.Cart, got) {
			mismatch("cart", exp.Cart, got)
		}
	}
	if exp.Total != "" && v.Cart.Total != exp.Total {
		mismatch("total", exp.Total, v.Cart.Total)
	}
	if exp.Connection != "" && !strings.EqualFold(v.Connection.Status, exp.Connection) {
		mismatch("connection", exp.Connection, v.Connection.Status)
	}
	if exp.Phase != "" && !strings.EqualFold(v.Checkout.Phase.String(), exp.Phase) {
		mismatch("phase", exp.Phase, v.Checkout.Phase)
	}

	inv := v.Checkout.Invoice
	if exp.NoInvoice && inv != nil {
		mismatch("invoice", "none", inv.Number)
	}
	if exp.Invoice != nil {
		if inv == nil {
			mismatch("invoice", "an open invoice", "none")
		} else {
			if exp.Invoice.Number != "" && inv.Number != exp.Invoice.Number {
				mismatch("invoice.number", exp.Invoice.Number, inv.Number)
			}
			if exp.Invoice.Total != "" && inv.Total != exp.Invoice.Total {
				mismatch("invoice.total", exp.Invoice.Total, inv.Total)
			}
			if exp.Invoice.Items != nil {
				if got := cartLines(inv.Items); !equalLines(exp.Invoice.Items, got) {
					mismatch("invoice.items", exp.Invoice.Items, got)
				}
			}
		}
	}

	if exp.PaymentID != "" {
		got := "none"
		if v.Checkout.Payment != nil {
			got = v.Checkout.Payment.InvoiceID
		}
		if got != exp.PaymentID {
			mismatch("payment_id", exp.PaymentID, got)
		}
	}

	if exp.Frames != nil {
		if frames.Sent != exp.Frames.Sent {
			mismatch("frames.sent", exp.Frames.Sent, frames.Sent)
		}
		if frames.Dropped() != exp.Frames.Dropped {
			mismatch("frames.dropped", exp.Frames.Dropped, frames.Dropped())
		}
	}
	return msgs
}

func equalLines(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
