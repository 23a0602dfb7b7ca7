package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passingScenario = `name: quick_buy
description: buy a hat
accounts:
  - player: alice
    melons: 10
products:
  - name: hat
    melons_cost: 4
steps:
  - buy: alice
    product: hat
expect:
  balances: { alice: 6 }
`

const failingScenario = `name: wrong_balance
description: expects the wrong balance
accounts:
  - player: bob
    melons: 10
steps:
  - clear: true
expect:
  balances: { bob: 11 }
`

func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestTestCommand_MissingArgs(t *testing.T) {
	_, err := execute(t, tempDB(t), "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 1 arg")
}

func TestTestCommand_MissingPath(t *testing.T) {
	_, err := execute(t, tempDB(t), "test", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenario path not found")
}

func TestTestCommand_EmptyDir(t *testing.T) {
	out, err := execute(t, tempDB(t), "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")
}

func TestTestCommand_HarnessFixtures(t *testing.T) {
	out, err := execute(t, tempDB(t), "test", "../harness/testdata/scenarios")
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ concurrent_views_merge")
	assert.Contains(t, out, "✓ purchase_and_overdraft")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommand_Failure(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "pass.yaml", passingScenario)
	writeScenario(t, dir, "fail.yaml", failingScenario)

	out, err := execute(t, tempDB(t), "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✓ quick_buy")
	assert.Contains(t, out, "✗ wrong_balance")
	assert.Contains(t, out, "Test Summary: 1 passed, 1 failed, 2 total")
}

func TestTestCommand_Filter(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "pass.yaml", passingScenario)
	writeScenario(t, dir, "fail.yaml", failingScenario)

	out, err := execute(t, tempDB(t), "test", dir, "--filter", "pass")
	require.NoError(t, err)
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")
}

func TestTestCommand_GoldenUpdateAndCompare(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, "quick_buy.yaml", passingScenario)

	out, err := execute(t, tempDB(t), "test", path, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "(golden updated)")

	golden, err := os.ReadFile(filepath.Join(dir, "golden", "quick_buy.golden"))
	require.NoError(t, err)
	assert.Contains(t, string(golden), `"purchase":"00000000-0000-7000-8000-000000000001"`)

	_, err = execute(t, tempDB(t), "test", dir)
	require.NoError(t, err, "golden directory is not read as scenarios")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "golden", "quick_buy.golden"), []byte("{}"), 0o644))
	out, err = execute(t, tempDB(t), "test", path)
	require.Error(t, err)
	assert.Contains(t, out, "trace does not match golden file")
}

func TestTestCommand_JSON(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "fail.yaml", failingScenario)

	out, err := execute(t, tempDB(t), "test", dir, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, 1, resp.Data.Failed)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Contains(t, resp.Data.Scenarios[0].Errors[0], "balance of bob")
	assert.Equal(t, "TEST_FAILED", resp.Error.Code)
}
