package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpgo/lifetime-planner/internal/calculation"
	"github.com/rpgo/lifetime-planner/internal/config"
	"github.com/rpgo/lifetime-planner/internal/domain"
	"github.com/rpgo/lifetime-planner/internal/taxdata"
)

func loadScenario(t *testing.T, name string) *domain.ScenarioDefinition {
	t.Helper()
	sc, err := config.NewScenarioParser().LoadFromFile(filepath.Join("..", "testdata", name))
	require.NoError(t, err)
	return sc
}

func bundledEngine(t *testing.T, opts calculation.EngineOptions) *calculation.Engine {
	t.Helper()
	td, err := taxdata.Default()
	require.NoError(t, err)
	return calculation.NewEngine(td, nil, opts, nil)
}

func TestEndToEndSimulation(t *testing.T) {
	sc := loadScenario(t, "scenario.yaml")
	assert.True(t, sc.IsCouple())
	assert.Len(t, sc.EventSeries, 6)

	engine := bundledEngine(t, calculation.EngineOptions{Seed: 2024, Workers: 4})
	res, err := engine.Run(context.Background(), sc, 200)
	require.NoError(t, err)
	require.NotNil(t, res)

	agg := res.Aggregated
	require.NotEmpty(t, agg.Years)
	assert.Equal(t, 2025, agg.StartYear)
	assert.Equal(t, 200, agg.Years[0].Trajectories)

	one := decimal.NewFromInt(1)
	for i, y := range agg.Years {
		assert.Equal(t, agg.StartYear+i, y.Year)
		assert.False(t, y.SuccessProbability.IsNegative(), "year %d", y.Year)
		assert.True(t, y.SuccessProbability.LessThanOrEqual(one), "year %d", y.Year)
		assert.True(t, y.TotalInvestments.P10.LessThanOrEqual(y.TotalInvestments.Median), "year %d", y.Year)
		assert.True(t, y.TotalInvestments.Median.LessThanOrEqual(y.TotalInvestments.P90), "year %d", y.Year)
		if i > 0 {
			assert.LessOrEqual(t, y.Trajectories, agg.Years[i-1].Trajectories, "alive count cannot grow")
		}
	}
}

func TestEndToEndStoreMatchesBundled(t *testing.T) {
	sc := loadScenario(t, "scenario.yaml")
	ctx := context.Background()

	bundled, err := taxdata.Default()
	require.NoError(t, err)
	store, err := taxdata.Open(filepath.Join(t.TempDir(), "tax.db"))
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Save(ctx, bundled))
	stored, err := store.Latest(ctx)
	require.NoError(t, err)

	opts := calculation.EngineOptions{Seed: 99, Workers: 3}
	fromFile, err := calculation.NewEngine(bundled, nil, opts, nil).Run(ctx, sc, 25)
	require.NoError(t, err)
	fromStore, err := calculation.NewEngine(stored, nil, opts, nil).Run(ctx, sc, 25)
	require.NoError(t, err)

	a, err := json.Marshal(fromFile.Aggregated)
	require.NoError(t, err)
	b, err := json.Marshal(fromStore.Aggregated)
	require.NoError(t, err)
	assert.JSONEq(t, string(a), string(b))
}

func TestEndToEndHTTPRMDTable(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		var b strings.Builder
		b.WriteString("age,factor\n")
		for age := 72; age <= 120; age++ {
			fmt.Fprintf(&b, "%d,10\n", age)
		}
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte(b.String()))
	}))
	defer srv.Close()

	td, err := taxdata.Default()
	require.NoError(t, err)
	provider := calculation.NewRMDTableProvider(calculation.NewHTTPRMDSource(srv.URL, time.Second), 73, time.Hour, nil)
	engine := calculation.NewEngine(td, provider, calculation.EngineOptions{Seed: 1, KeepTrajectories: true}, nil)

	sc := loadScenario(t, "retiree.yaml")
	for i := 0; i < 2; i++ {
		res, err := engine.Run(context.Background(), sc, 2)
		require.NoError(t, err)
		first := res.Trajectories[0].Years[0]
		assert.Equal(t, 75, first.UserAge)
		assert.True(t, decimal.NewFromInt(10000).Equal(first.RMD), "rmd %s", first.RMD)
	}
	assert.Equal(t, int32(1), hits.Load(), "table should be cached between runs")
}

func TestEndToEndRMDSourceDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	td, err := taxdata.Default()
	require.NoError(t, err)
	provider := calculation.NewRMDTableProvider(calculation.NewHTTPRMDSource(srv.URL, time.Second), 73, time.Hour, nil)
	engine := calculation.NewEngine(td, provider, calculation.EngineOptions{Seed: 1}, nil)

	_, err = engine.Run(context.Background(), loadScenario(t, "retiree.yaml"), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, calculation.ErrDataUnavailable)
}
