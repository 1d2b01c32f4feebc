package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cartsync/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cartsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestValidateConfig_Valid(t *testing.T) {
	path := writeConfig(t, `
transport:
  url: wss://backend.example.com/ws
reconcile:
  retention_window: 3s
`)

	out, err := execute(t, "validate-config", path)
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ "+path+" is valid")
}

func TestValidateConfig_Defaults(t *testing.T) {
	out, err := execute(t, "validate-config")
	require.NoError(t, err, out)
	assert.Contains(t, out, "(defaults) is valid")
}

func TestValidateConfig_ConfigFlag(t *testing.T) {
	path := writeConfig(t, "api:\n  addr: \":9090\"\n")

	_, err := execute(t, "--config", path, "validate-config")
	require.NoError(t, err)
}

func TestValidateConfig_Violations(t *testing.T) {
	path := writeConfig(t, `
transport:
  url: http://backend/ws
tracing:
  enabled: true
`)

	out, err := execute(t, "--format", "json", "validate-config", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Data ConfigReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.False(t, resp.Data.Valid)

	verrs := config.ValidationErrors(resp.Data.Errors)
	assert.True(t, verrs.Has("transport.url"), "got %v", verrs)
	assert.True(t, verrs.Has("tracing.endpoint"), "got %v", verrs)
}

func TestValidateConfig_TextViolations(t *testing.T) {
	path := writeConfig(t, "reconcile:\n  retention_window: 0s\n")

	out, err := execute(t, "validate-config", path)
	require.Error(t, err)
	assert.Contains(t, out, "✗ "+path+" has ")
	assert.Contains(t, out, "[E201] reconcile.retention_window_ms")
}

func TestValidateConfig_Unreadable(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"missing file", filepath.Join(t.TempDir(), "nope.yaml")},
		{"unknown field", writeConfig(t, "bogus: 1\n")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, "validate-config", tt.path)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, out, "Error [E_CONFIG]")
		})
	}
}
