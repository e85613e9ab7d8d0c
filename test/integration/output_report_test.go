package integration

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpgo/lifetime-planner/internal/calculation"
	"github.com/rpgo/lifetime-planner/internal/output"
)

func TestReportGeneration_AllFormats(t *testing.T) {
	engine := bundledEngine(t, calculation.EngineOptions{Seed: 7, KeepTrajectories: true})
	res, err := engine.Run(context.Background(), loadScenario(t, "scenario.yaml"), 10)
	require.NoError(t, err)

	dir := t.TempDir()
	files, err := output.GenerateReport(res, "all", dir)
	require.NoError(t, err)
	require.Len(t, files, 5)

	for _, f := range files {
		info, err := os.Stat(f)
		require.NoError(t, err)
		assert.Positive(t, info.Size(), f)
		assert.Equal(t, dir, filepath.Dir(f))
	}

	summary, err := output.CSVSummarizer{}.Format(res)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(summary)), "\n")
	assert.Len(t, lines, len(res.Aggregated.Years)+1)

	rows := 0
	for _, tr := range res.Trajectories {
		rows += len(tr.Years)
	}
	detailed, err := output.CSVDetailedExporter{}.Format(res)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(detailed)), "\n"), rows+1)
}

func TestReportGeneration_Console(t *testing.T) {
	engine := bundledEngine(t, calculation.EngineOptions{Seed: 7})
	res, err := engine.Run(context.Background(), loadScenario(t, "scenario.yaml"), 5)
	require.NoError(t, err)

	out, err := output.GetFormatterByName("text").Format(res)
	require.NoError(t, err)
	assert.Contains(t, string(out), "Integration Couple")
}
