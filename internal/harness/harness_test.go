package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarios_Golden(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), ".yaml")
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)
			assert.Equal(t, name, scenario.Name, "file name and scenario name differ")

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Len(t, result.Trace, len(scenario.Steps))
		})
	}
}

func TestRun_IsDeterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/end_to_end_checkout.yaml")
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	a, err := MarshalTrace(scenario.Name, first.Trace)
	require.NoError(t, err)
	b, err := MarshalTrace(scenario.Name, second.Trace)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRun_ReportsFailedExpectations(t *testing.T) {
	scenario := &Scenario{
		Name:        "wrong_expectations",
		Description: "every expectation is off",
		Steps: []Step{
			{
				AtMS:   0,
				Update: map[string]interface{}{"products": []interface{}{}, "total": 0},
				Expect: &Expect{Cart: []string{"milk x1"}, Total: "1.00", Phase: "Paid"},
			},
			{
				AtMS:    10,
				Command: "open_invoice",
				Expect:  &Expect{Outcome: "ok", Invoice: &ExpectInvoice{Number: "INV-1"}},
			},
		},
		Assertions: []Assertion{
			{Type: AssertTraceCount, Action: "update", Count: 2},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)

	joined := strings.Join(result.Errors, "\n")
	assert.Contains(t, joined, "step 1 (update): cart")
	assert.Contains(t, joined, "step 1 (update): total")
	assert.Contains(t, joined, "step 1 (update): phase")
	assert.Contains(t, joined, "step 2 (command:open_invoice): outcome: expected ok, got EMPTY_CART")
	assert.Contains(t, joined, "step 2 (command:open_invoice): invoice: expected an open invoice, got none")
	assert.Contains(t, joined, "Assertion failed: trace_count")
}

func TestRun_InvalidScenario(t *testing.T) {
	_, err := Run(&Scenario{Name: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid scenario")
}

func TestRun_FinalStateCarriesView(t *testing.T) {
	scenario := &Scenario{
		Name:        "final",
		Description: "final view is exposed",
		Steps: []Step{
			{Update: map[string]interface{}{
				"products": []interface{}{
					map[string]interface{}{"product_name": "tea", "quantity": 3, "unit_price": 1.5},
				},
			}},
			{AtMS: 5, Signal: &SignalStep{Type: "connect"}},
			{AtMS: 6, Frame: "data:image/png;base64,AA=="},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	require.True(t, result.Pass)

	assert.Equal(t, "4.50", result.Final.Cart.Total)
	assert.Equal(t, "Connected", result.Final.Connection.Status)
	assert.Equal(t, uint64(1), result.Frames.Sent)
	assert.Equal(t, int64(2), result.Final.Seq)
}
