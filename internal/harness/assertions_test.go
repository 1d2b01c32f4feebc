package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleTrace = []TraceEvent{
	{Step: 1, Action: "update", Outcome: OutcomeOK},
	{Step: 2, Action: "command:open_invoice", Outcome: "EMPTY_CART"},
	{Step: 3, Action: "update", Outcome: OutcomeOK},
	{Step: 4, Action: "command:open_invoice", Outcome: OutcomeOK},
	{Step: 5, Action: "frame", Outcome: OutcomeDropped},
}

func TestAssertTraceContains(t *testing.T) {
	assert.NoError(t, assertTraceContains(sampleTrace, Assertion{Action: "frame"}))
	assert.NoError(t, assertTraceContains(sampleTrace, Assertion{Action: "command:open_invoice", Outcome: "ok"}))

	err := assertTraceContains(sampleTrace, Assertion{Action: "frame", Outcome: OutcomeSent})
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertTraceContains, ae.Type)
	assert.Contains(t, err.Error(), "frame -> sent")
	assert.Contains(t, err.Error(), "[5] +0ms frame -> dropped")
}

func TestAssertTraceOrder(t *testing.T) {
	tests := []struct {
		name    string
		actions []string
		wantErr string
	}{
		{"in order", []string{"update", "command:open_invoice", "frame"}, ""},
		{"reversed", []string{"frame", "update"}, "should be before"},
		{"missing", []string{"update", "signal:connect"}, "missing action: signal:connect"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertTraceOrder(sampleTrace, Assertion{Actions: tt.actions})
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAssertTraceCount(t *testing.T) {
	assert.NoError(t, assertTraceCount(sampleTrace, Assertion{Action: "update", Count: 2}))
	assert.NoError(t, assertTraceCount(sampleTrace, Assertion{Action: "command:open_invoice", Outcome: "ok", Count: 1}))
	assert.NoError(t, assertTraceCount(sampleTrace, Assertion{Action: "signal:connect", Count: 0}))

	err := assertTraceCount(sampleTrace, Assertion{Action: "update", Count: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "found 2 times")
}

func TestEvaluateAssertion_FinalState(t *testing.T) {
	result := &Result{}
	result.Final.Cart.Total = "0.00"
	result.Final.Connection.Status = "Connecting"

	ok := Assertion{Type: AssertFinalState, Expect: &Expect{Total: "0.00", Connection: "connecting", Cart: []string{}}}
	assert.NoError(t, evaluateAssertion(ok, result))

	bad := Assertion{Type: AssertFinalState, Expect: &Expect{Total: "1.00", Frames: &ExpectFrames{Sent: 1}}}
	err := evaluateAssertion(bad, result)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "total: expected 1.00, got 0.00")
	assert.Contains(t, err.Error(), "frames.sent: expected 1, got 0")
}
