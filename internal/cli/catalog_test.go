package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cartsync/internal/catalog"
)

func TestCatalog_SeedAndList(t *testing.T) {
	db := filepath.Join(t.TempDir(), "products.db")

	out, err := execute(t, "catalog", "seed", "--db", db)
	require.NoError(t, err, out)
	assert.Contains(t, out, "seeded 20 products into "+db)

	// Seeding twice keeps one row per class.
	_, err = execute(t, "catalog", "seed", "--db", db)
	require.NoError(t, err)

	out, err = execute(t, "--format", "json", "catalog", "list", "--db", db)
	require.NoError(t, err)

	var resp struct {
		Status string            `json:"status"`
		Data   []catalog.Product `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, len(catalog.SampleProducts()))
	assert.Equal(t, "choclo-lata-isamar-300g", resp.Data[0].ClassName)
	assert.Equal(t, "4.1", resp.Data[0].UnitPrice.String())
}

func TestCatalog_ListText(t *testing.T) {
	db := filepath.Join(t.TempDir(), "products.db")
	_, err := execute(t, "catalog", "seed", "--db", db)
	require.NoError(t, err)

	out, err := execute(t, "catalog", "list", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "CLASS")
	assert.Contains(t, out, "PRICE")
	assert.Regexp(t, `toddy-750g\s+Toddy - 750g\s+18\.50`, out)
}

func TestCatalog_ListEmpty(t *testing.T) {
	db := filepath.Join(t.TempDir(), "empty.db")

	out, err := execute(t, "--format", "json", "catalog", "list", "--db", db)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok","data":[]}`, out)
}

func TestCatalog_OpenFailure(t *testing.T) {
	db := filepath.Join(t.TempDir(), "missing", "dir", "products.db")

	_, err := execute(t, "catalog", "list", "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
