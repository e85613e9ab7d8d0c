package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpgo/lifetime-planner/internal/calculation"
	"github.com/rpgo/lifetime-planner/internal/config"
	"github.com/rpgo/lifetime-planner/internal/output"
)

const bundledTaxFile = "../taxdata/data/tax_2024.yaml"

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func writeExample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plan.yaml")
	_, err := run(t, "example", path)
	require.NoError(t, err)
	return path
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "rpsim dev\n", out)
}

func TestExample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")

	out, err := run(t, "example", path)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote example scenario")

	_, err = run(t, "example", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = run(t, "example", path, "--force")
	assert.NoError(t, err)
}

func TestValidate(t *testing.T) {
	out, err := run(t, "validate", writeExample(t))
	require.NoError(t, err)
	assert.Contains(t, out, `scenario "Example Household" is valid`)
}

func TestValidate_MissingStateData(t *testing.T) {
	path := writeExample(t)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, bytes.Replace(data, []byte("residence_state: NY"), []byte("residence_state: WA"), 1), 0o600))

	_, err = run(t, "validate", path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, calculation.ErrDataUnavailable))
}

func TestValidate_MissingFile(t *testing.T) {
	_, err := run(t, "validate", "/nonexistent/plan.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read file")
}

func TestSimulate_Console(t *testing.T) {
	out, err := run(t, "simulate", writeExample(t), "-n", "5", "--seed", "3", "--workers", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "LIFETIME FINANCIAL PLAN SIMULATION")
	assert.Contains(t, out, "Trajectories: 5 (seed 3)")
	assert.Contains(t, out, "Final-year success probability")
}

func TestSimulate_JSONIsDeterministic(t *testing.T) {
	path := writeExample(t)
	first, err := run(t, "simulate", path, "-n", "4", "--seed", "11", "-f", "json")
	require.NoError(t, err)
	second, err := run(t, "simulate", path, "-n", "4", "--seed", "11", "-f", "json", "--workers", "1")
	require.NoError(t, err)

	var a, b struct {
		Seed       int64           `json:"seed"`
		Aggregated json.RawMessage `json:"aggregated"`
	}
	require.NoError(t, json.Unmarshal([]byte(first), &a))
	require.NoError(t, json.Unmarshal([]byte(second), &b))
	assert.Equal(t, int64(11), a.Seed)
	assert.JSONEq(t, string(a.Aggregated), string(b.Aggregated))
}

func TestSimulate_OutputDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	out, err := run(t, "simulate", writeExample(t), "-n", "3", "--seed", "1", "-f", "all", "-o", dir)
	require.NoError(t, err)
	assert.Equal(t, 5, strings.Count(out, "wrote "))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 5)
}

func TestSimulate_FormatErrors(t *testing.T) {
	path := writeExample(t)

	_, err := run(t, "simulate", path, "-n", "2", "-f", "pdf")
	assert.True(t, errors.Is(err, output.ErrUnsupportedFormat))

	_, err = run(t, "simulate", path, "-n", "2", "-f", "all")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--output-dir")
}

func TestSimulate_ConfigFile(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "rpsim.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("simulation:\n  trajectories: 2\n  seed: 8\n"), 0o600))

	out, err := run(t, "--config", cfg, "simulate", writeExample(t))
	require.NoError(t, err)
	assert.Contains(t, out, "Trajectories: 2 (seed 8)")
}

func TestTaxData_ImportListStates(t *testing.T) {
	db := filepath.Join(t.TempDir(), "tax.db")

	out, err := run(t, "taxdata", "import", bundledTaxFile, "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "imported 2024 tax data (CA, FL, NY, PA, TX)\n", out)

	out, err = run(t, "taxdata", "list", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "2024\n", out)

	t.Setenv("RPSIM_TAX_DB_PATH", db)
	out, err = run(t, "taxdata", "states")
	require.NoError(t, err)
	assert.Equal(t, "2024: CA, FL, NY, PA, TX\n", out)

	out, err = run(t, "simulate", writeExample(t), "-n", "2", "--seed", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "Trajectories: 2 (seed 5)")
}

func TestTaxData_NeedsDatabase(t *testing.T) {
	_, err := run(t, "taxdata", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no database")
}

func TestTaxData_FileOverride(t *testing.T) {
	t.Setenv("RPSIM_TAX_DATA_FILE", bundledTaxFile)
	out, err := run(t, "taxdata", "states")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "2024: "))
}

func TestEngineOptions_ZeroEarlyAgeIsHonoured(t *testing.T) {
	t.Setenv("RPSIM_WITHDRAWAL_EARLY_AGE", "0")
	cfg, err := config.Load("", true)
	require.NoError(t, err)

	opts := engineOptions(cfg)
	require.NotNil(t, opts.EarlyWithdrawalAge)
	engine := calculation.NewEngine(nil, nil, opts, nil)
	assert.Equal(t, 0, *engine.Options().EarlyWithdrawalAge)
}
