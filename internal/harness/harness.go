package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/cartsync/internal/checkout"
	"github.com/roach88/cartsync/internal/connection"
	"github.com/roach88/cartsync/internal/engine"
	"github.com/roach88/cartsync/internal/logger"
	"github.com/roach88/cartsync/internal/testutil"
)

// Epoch is the instant at_ms counts from.
var Epoch = time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)

// Harness drives one engine through one scenario. Events are handled
// synchronously on the caller's goroutine, so runs are reproducible.
type Harness struct {
	engine *engine.Engine
	gate   *connection.Gate
	sender *testutil.RecordingSender
	clock  *testutil.ManualClock
}

func newHarness(scenario *Scenario, log *logger.Log) *Harness {
	clock := testutil.NewManualClock(Epoch)
	sender := &testutil.RecordingSender{}
	gate := connection.NewGate(sender, connection.WithGateLogger(log))

	opts := []engine.Option{
		engine.WithClock(clock),
		engine.WithIDGenerator(testutil.NewSequenceIDGenerator("test")),
		engine.WithGate(gate),
		engine.WithLogger(log),
	}
	if scenario.RetentionWindowMS > 0 {
		opts = append(opts, engine.WithRetentionWindow(time.Duration(scenario.RetentionWindowMS)*time.Millisecond))
	}

	return &Harness{
		engine: engine.New(opts...),
		gate:   gate,
		sender: sender,
		clock:  clock,
	}
}

// Run executes a scenario with logging discarded.
func Run(scenario *Scenario) (*Result, error) {
	return RunWithLogger(scenario, logger.Discard())
}

// RunWithLogger executes a scenario and returns its result. An error is
// returned only when the scenario itself is unusable; failed expectations
// are reported in the result.
func RunWithLogger(scenario *Scenario, log *logger.Log) (*Result, error) {
	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	h := newHarness(scenario, log)
	ctx := context.Background()
	result := NewResult()

	for i, step := range scenario.Steps {
		h.clock.Set(Epoch.Add(time.Duration(step.AtMS) * time.Millisecond))

		ev, err := h.execute(ctx, step)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		ev.Step = i + 1
		ev.AtMS = step.AtMS
		result.Trace = append(result.Trace, ev)

		if step.Expect != nil {
			for _, msg := range checkExpect(step.Expect, &ev, h.engine.View(), h.gate.Stats()) {
				result.AddError(fmt.Sprintf("step %d (%s): %s", i+1, ev.Action, msg))
			}
		}
	}

	result.Final = h.engine.View()
	result.Frames = h.gate.Stats()

	for _, a := range scenario.Assertions {
		if err := evaluateAssertion(a, result); err != nil {
			result.AddError(err.Error())
		}
	}
	return result, nil
}

func (h *Harness) execute(ctx context.Context, step Step) (TraceEvent, error) {
	switch step.Kind() {
	case KindUpdate:
		payload := []byte{}
		if step.Raw != nil {
			payload = []byte(*step.Raw)
		} else {
			var err error
			if payload, err = json.Marshal(step.Update); err != nil {
				return TraceEvent{}, fmt.Errorf("encode update: %w", err)
			}
		}
		out := h.engine.Handle(ctx, engine.UpdateEvent(payload))
		ev := h.traceFrom(KindUpdate, updateOutcome(out))
		if out.Snapshot != nil {
			ev.Expired = out.Snapshot.Expired
		}
		return ev, nil

	case KindSignal:
		kind, err := connection.ParseSignalKind(step.Signal.Type)
		if err != nil {
			return TraceEvent{}, err
		}
		out := h.engine.Handle(ctx, engine.SignalEvent(connection.Signal{
			Kind:    kind,
			Message: step.Signal.Message,
			Attempt: step.Signal.Attempt,
		}))
		outcome := OutcomeUnchanged
		if out.ConnectionChanged {
			outcome = OutcomeChanged
		}
		return h.traceFrom(KindSignal+":"+string(kind), outcome), nil

	case KindCommand:
		op, err := checkout.ParseOp(step.Command)
		if err != nil {
			return TraceEvent{}, err
		}
		out := h.engine.Handle(ctx, engine.CommandEvent(op))
		outcome := OutcomeOK
		if out.Err != nil {
			outcome = string(checkout.RejectionCodeOf(out.Err))
			if outcome == "" {
				return TraceEvent{}, out.Err
			}
		}
		return h.traceFrom(KindCommand+":"+string(op), outcome), nil

	case KindFrame:
		outcome := OutcomeDropped
		if h.gate.Send(ctx, connection.Frame{Image: step.Frame}) {
			outcome = OutcomeSent
		}
		return h.traceFrom(KindFrame, outcome), nil
	}
	return TraceEvent{}, fmt.Errorf("step carries no single input")
}

func updateOutcome(out engine.Outcome) string {
	switch {
	case out.Snapshot != nil && out.Snapshot.Malformed:
		return OutcomeMalformed
	case out.AutoReset:
		return OutcomeReset
	case out.Snapshot != nil && out.Snapshot.Dropped > 0:
		return fmt.Sprintf("dropped=%d", out.Snapshot.Dropped)
	}
	return OutcomeOK
}

func (h *Harness) traceFrom(action, outcome string) TraceEvent {
	v := h.engine.View()
	return TraceEvent{
		Seq:        v.Seq,
		Action:     action,
		Outcome:    outcome,
		Cart:       cartLines(v.Cart.Items),
		Total:      v.Cart.Total,
		Connection: v.Connection.Status,
		Phase:      v.Checkout.Phase.String(),
	}
}

// cartLines renders lines as "name xQTY".
func cartLines(items []engine.LineView) []string {
	lines := make([]string, 0, len(items))
	for _, it := range items {
		lines = append(lines, fmt.Sprintf("%s x%d", it.Name, it.Quantity))
	}
	return lines
}
