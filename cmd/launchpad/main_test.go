package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/launchpad/internal/runner"
	"github.com/rovshanmuradov/launchpad/internal/wallet"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestWalletsGenerate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallets.csv")
	out, err := execute(t, "wallets", "generate", "2", "--out", path)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote 3 wallets")

	wallets, err := wallet.LoadWallets(path)
	require.NoError(t, err)
	assert.Contains(t, wallets, runner.AdminWallet)
	assert.Contains(t, wallets, "wallet2")

	_, err = execute(t, "wallets", "generate", "zero", "--out", path)
	assert.Error(t, err)
}

func TestDeployPrintsAddresses(t *testing.T) {
	t.Setenv("LAUNCHPAD_LOG_FILE", filepath.Join(t.TempDir(), "launchpad.log"))
	out, err := execute(t, "deploy", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "bonding")
	assert.Contains(t, out, "VIRTUAL")
	assert.Contains(t, out, "125000")
}

func TestQuote(t *testing.T) {
	t.Setenv("LAUNCHPAD_LOG_FILE", filepath.Join(t.TempDir(), "launchpad.log"))
	config := filepath.Join(t.TempDir(), "missing.yaml")

	out, err := execute(t, "quote", "100", "--config", config)
	require.NoError(t, err)
	assert.Contains(t, out, "buy")
	assert.Contains(t, out, "100 VIRTUAL")
	assert.Regexp(t, `out\s+[1-9][0-9.]* QUOTE`, out)

	out, err = execute(t, "quote", "1000", "--sell", "--config", config)
	require.NoError(t, err)
	assert.Contains(t, out, "sell")
	assert.Regexp(t, `out\s+[0-9.]+ VIRTUAL`, out)

	_, err = execute(t, "quote", "-5", "--config", config)
	assert.Error(t, err)
}

func TestRunExportsTrades(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LAUNCHPAD_LOG_FILE", filepath.Join(dir, "launchpad.log"))
	t.Setenv("LAUNCHPAD_WALLETS_FILE", filepath.Join(dir, "wallets.csv"))
	_, err := execute(t, "wallets", "generate", "1", "--out", filepath.Join(dir, "wallets.csv"))
	require.NoError(t, err)

	tasks := `
tasks:
  - task_name: launch
    wallet: wallet1
    operation: launch
    amount: "500"
    name: Agent
    symbol: AGT
    cores: [0]
  - task_name: buy
    wallet: wallet1
    operation: buy
    amount: "10"
    token: AGT
`
	tasksPath := filepath.Join(dir, "tasks.yaml")
	require.NoError(t, os.WriteFile(tasksPath, []byte(tasks), 0o600))

	exportDir := filepath.Join(dir, "exports")
	_, err = execute(t, "run", "--config", filepath.Join(dir, "none.yaml"), "--tasks", tasksPath, "--export-dir", exportDir)
	require.NoError(t, err)

	files, err := filepath.Glob(filepath.Join(exportDir, "trades_all_*.csv"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Equal(t, 3, bytes.Count(data, []byte("\n")))
}

func TestRunReportsFailedTasks(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LAUNCHPAD_LOG_FILE", filepath.Join(dir, "launchpad.log"))
	t.Setenv("LAUNCHPAD_WALLETS_FILE", filepath.Join(dir, "wallets.csv"))
	_, err := execute(t, "wallets", "generate", "1", "--out", filepath.Join(dir, "wallets.csv"))
	require.NoError(t, err)

	tasks := `
tasks:
  - task_name: launch
    wallet: wallet1
    operation: launch
    amount: "500"
    name: Agent
    symbol: AGT
    cores: [0]
  - task_name: buy-unknown
    wallet: wallet1
    operation: buy
    amount: "10"
    token: NOPE
`
	tasksPath := filepath.Join(dir, "tasks.yaml")
	require.NoError(t, os.WriteFile(tasksPath, []byte(tasks), 0o600))

	exportDir := filepath.Join(dir, "exports")
	_, err = execute(t, "run", "--config", filepath.Join(dir, "none.yaml"), "--tasks", tasksPath, "--export-dir", exportDir)
	require.ErrorIs(t, err, errTasksFailed)
	assert.Contains(t, err.Error(), "1 of 2")

	// trades of the tasks that succeeded are still exported
	files, err := filepath.Glob(filepath.Join(exportDir, "trades_all_*.csv"))
	require.NoError(t, err)
	assert.Len(t, files, 1)
}
