package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScenario(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: parse
description: "all step kinds"
retention_window_ms: 2500
steps:
  - at_ms: 0
    update: {products: [{product_name: milk, quantity: 1, unit_price: 2.5}], total: 2.5}
  - at_ms: 5
    raw: "{"
  - at_ms: 10
    signal: {type: connect_error, message: refused}
  - at_ms: 20
    command: open_invoice
    expect: {outcome: ok, phase: InvoiceOpen, cart: []}
  - at_ms: 30
    frame: img
assertions:
  - type: trace_contains
    action: frame
`))
	require.NoError(t, err)

	assert.Equal(t, int64(2500), s.RetentionWindowMS)
	require.Len(t, s.Steps, 5)

	kinds := make([]string, len(s.Steps))
	for i, st := range s.Steps {
		kinds[i] = st.Kind()
	}
	assert.Equal(t, []string{KindUpdate, KindUpdate, KindSignal, KindCommand, KindFrame}, kinds)

	assert.Equal(t, "refused", s.Steps[2].Signal.Message)
	require.NotNil(t, s.Steps[3].Expect)
	assert.NotNil(t, s.Steps[3].Expect.Cart, "an explicit empty list is kept")
	assert.Empty(t, s.Steps[3].Expect.Cart)
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing name",
			yaml: "description: d\nsteps: [{command: open_invoice}]\n",
			want: "name is required",
		},
		{
			name: "missing description",
			yaml: "name: n\nsteps: [{command: open_invoice}]\n",
			want: "description is required",
		},
		{
			name: "no steps",
			yaml: "name: n\ndescription: d\n",
			want: "steps list is required",
		},
		{
			name: "unknown field",
			yaml: "name: n\ndescription: d\nflow: []\nsteps: [{command: open_invoice}]\n",
			want: "field flow not found",
		},
		{
			name: "two inputs in one step",
			yaml: "name: n\ndescription: d\nsteps: [{command: open_invoice, frame: x}]\n",
			want: "exactly one of",
		},
		{
			name: "empty step",
			yaml: "name: n\ndescription: d\nsteps: [{at_ms: 1}]\n",
			want: "exactly one of",
		},
		{
			name: "time goes backwards",
			yaml: "name: n\ndescription: d\nsteps: [{at_ms: 10, frame: x}, {at_ms: 5, frame: x}]\n",
			want: "before the previous step",
		},
		{
			name: "unknown command",
			yaml: "name: n\ndescription: d\nsteps: [{command: refund}]\n",
			want: "unknown checkout command",
		},
		{
			name: "unknown signal",
			yaml: "name: n\ndescription: d\nsteps: [{signal: {type: hangup}}]\n",
			want: "unknown connection signal",
		},
		{
			name: "unknown phase",
			yaml: "name: n\ndescription: d\nsteps: [{frame: x, expect: {phase: Shipped}}]\n",
			want: "unknown checkout phase",
		},
		{
			name: "unknown assertion",
			yaml: "name: n\ndescription: d\nsteps: [{frame: x}]\nassertions: [{type: vibes}]\n",
			want: "unknown assertion type",
		},
		{
			name: "trace_order needs two actions",
			yaml: "name: n\ndescription: d\nsteps: [{frame: x}]\nassertions: [{type: trace_order, actions: [frame]}]\n",
			want: "at least two actions",
		},
		{
			name: "final_state needs expect",
			yaml: "name: n\ndescription: d\nsteps: [{frame: x}]\nassertions: [{type: final_state}]\n",
			want: "final_state requires expect",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "none.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
