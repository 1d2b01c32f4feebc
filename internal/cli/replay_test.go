package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenarioDir = "../harness/testdata/scenarios"

func TestReplay_AllScenariosPass(t *testing.T) {
	out, err := execute(t, "replay", scenarioDir)
	require.NoError(t, err, out)

	assert.Contains(t, out, "✓ end_to_end_checkout")
	assert.Contains(t, out, "✓ retention_window")
	assert.Contains(t, out, "10 passed, 0 failed, 10 total")
}

func TestReplay_Filter(t *testing.T) {
	out, err := execute(t, "--format", "json", "replay", scenarioDir, "--filter", "checkout_*")
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   ReplayResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, "checkout_rejections", resp.Data.Scenarios[0].Name)
	assert.Equal(t, "match", resp.Data.Scenarios[0].Golden)
	assert.True(t, resp.Data.Scenarios[0].Pass)
}

func TestReplay_SingleFileWithoutGolden(t *testing.T) {
	golden := t.TempDir()

	out, err := execute(t, "--format", "json", "replay",
		filepath.Join(scenarioDir, "retention_window.yaml"), "--golden-dir", golden)
	require.NoError(t, err)

	var resp struct {
		Data ReplayResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, "missing", resp.Data.Scenarios[0].Golden)
	assert.True(t, resp.Data.Scenarios[0].Pass)
}

func TestReplay_UpdateThenMatch(t *testing.T) {
	golden := t.TempDir()
	file := filepath.Join(scenarioDir, "total_recomputation.yaml")

	out, err := execute(t, "replay", file, "--golden-dir", golden, "--update")
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ total_recomputation (golden updated)")

	written, err := os.ReadFile(filepath.Join(golden, "total_recomputation.golden"))
	require.NoError(t, err)
	want, err := os.ReadFile("../harness/testdata/golden/total_recomputation.golden")
	require.NoError(t, err)
	assert.Equal(t, string(want), string(written))

	_, err = execute(t, "replay", file, "--golden-dir", golden)
	require.NoError(t, err)
}

func TestReplay_GoldenMismatch(t *testing.T) {
	golden := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(golden, "custom_window.golden"), []byte("{}\n"), 0644))

	out, err := execute(t, "replay", filepath.Join(scenarioDir, "custom_window.yaml"), "--golden-dir", golden)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ custom_window")
	assert.Contains(t, out, "trace does not match golden file")
	assert.Contains(t, out, "0 passed, 1 failed, 1 total")
}

func TestReplay_FailingExpectation(t *testing.T) {
	dir := t.TempDir()
	scenario := `name: wrong_total
description: expects a total the cart never reaches
steps:
  - at_ms: 0
    update:
      products:
        - product_name: Toddy - 750g
          quantity: 1
          unit_price: 18.5
          subtotal: 18.5
      total: 18.5
    expect:
      total: "99.00"
`
	file := filepath.Join(dir, "wrong_total.yaml")
	require.NoError(t, os.WriteFile(file, []byte(scenario), 0644))

	out, err := execute(t, "replay", file, "--golden-dir", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ wrong_total")
	assert.Contains(t, out, "total: expected 99.00, got 18.50")
}

func TestReplay_InvalidScenario(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(file, []byte("name: broken\nbogus: true\n"), 0644))

	out, err := execute(t, "replay", file)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "failed to load scenario")
}

func TestReplay_CommandErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing path", []string{"replay", "does/not/exist"}},
		{"bad filter", []string{"replay", scenarioDir, "--filter", "["}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
		})
	}
}

func TestReplay_EmptyDirectory(t *testing.T) {
	out, err := execute(t, "replay", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}
