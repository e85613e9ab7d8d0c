package taxdata

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpgo/lifetime-planner/internal/calculation"
	"github.com/rpgo/lifetime-planner/internal/domain"
)

const smallTable = `year: 2030
standard_deduction: {single: 10000, married: 20000}
federal:
  - {filing_status: single, min: 0, max: 10000, rate: 0.1}
  - {filing_status: single, min: 10001, max: null, rate: 0.2}
  - {filing_status: married, min: 0, max: 20000, rate: 0.1}
  - {filing_status: married, min: 20001, rate: 0.2}
capital_gains:
  - {filing_status: single, min: 0, rate: 0.15}
  - {filing_status: married, min: 0, rate: 0.15}
states:
  NY:
    - {filing_status: single, min: 0, rate: 0.05}
    - {filing_status: married, min: 0, rate: 0.05}
`

func TestDefault(t *testing.T) {
	td, err := Default()
	require.NoError(t, err)
	assert.Equal(t, DefaultYear, td.Year)
	assert.Equal(t, []string{"CA", "FL", "NY", "PA", "TX"}, States(td))
	assert.True(t, decimal.NewFromInt(14600).Equal(td.StandardDeduction[domain.FilingSingle]))

	top := td.Federal.ForStatus(domain.FilingMarried)
	require.Len(t, top, 7)
	assert.False(t, top[6].Bounded())

	_, err = calculation.NewTaxCalculator(td, "NY", calculation.DefaultEarlyWithdrawalPenalty)
	assert.NoError(t, err)
}

func TestParse_Unbounded(t *testing.T) {
	td, err := Parse([]byte(smallTable))
	require.NoError(t, err)
	single := td.Federal.ForStatus(domain.FilingSingle)
	require.Len(t, single, 2)
	assert.True(t, single[0].Bounded())
	assert.Nil(t, single[1].Max)
	assert.Nil(t, td.Federal.ForStatus(domain.FilingMarried)[1].Max)
}

func TestParse_RejectsBrokenTables(t *testing.T) {
	broken := `year: 2030
standard_deduction: {single: 10000}
federal:
  - {filing_status: single, min: 0, max: 10000, rate: 0.1}
  - {filing_status: single, min: 12000, rate: 0.2}
capital_gains:
  - {filing_status: single, min: 0, rate: 0.15}
  - {filing_status: married, min: 0, rate: 0.15}
`
	_, err := Parse([]byte(broken))
	require.Error(t, err)

	var verr *calculation.ValidationError
	require.True(t, errors.As(err, &verr))
	var be *calculation.BracketError
	require.True(t, errors.As(err, &be))
	assert.Contains(t, err.Error(), "standard_deduction.married")
	assert.Contains(t, err.Error(), "expected 10001")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tax.yaml")
	require.NoError(t, os.WriteFile(path, []byte(smallTable), 0o600))

	td, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2030, td.Year)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func openTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "tax.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(" ")
	assert.Error(t, err)
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openTempStore(t)

	want, err := Default()
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, want))

	got, err := store.Load(ctx, DefaultYear)
	require.NoError(t, err)
	assert.Equal(t, want.Year, got.Year)
	require.Len(t, got.Federal, len(want.Federal))
	for i := range want.Federal {
		assert.True(t, want.Federal[i].Min.Equal(got.Federal[i].Min))
		assert.True(t, want.Federal[i].Rate.Equal(got.Federal[i].Rate))
		assert.Equal(t, want.Federal[i].FilingStatus, got.Federal[i].FilingStatus)
		assert.Equal(t, want.Federal[i].Bounded(), got.Federal[i].Bounded())
	}
	assert.Equal(t, States(want), States(got))
	assert.Len(t, got.States["CA"], len(want.States["CA"]))
	assert.True(t, want.StandardDeduction[domain.FilingMarried].Equal(got.StandardDeduction[domain.FilingMarried]))
	assert.NoError(t, Validate(got))
}

func TestStore_SaveReplacesYear(t *testing.T) {
	ctx := context.Background()
	store := openTempStore(t)

	first, err := Parse([]byte(smallTable))
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, first))

	second, err := Parse([]byte(smallTable))
	require.NoError(t, err)
	second.States = map[string]domain.TaxBracketTable{"TX": first.States["NY"]}
	require.NoError(t, store.Save(ctx, second))

	got, err := store.Load(ctx, 2030)
	require.NoError(t, err)
	assert.Equal(t, []string{"TX"}, States(got))
	assert.Len(t, got.Federal, 4)
}

func TestStore_YearsAndLatest(t *testing.T) {
	ctx := context.Background()
	store := openTempStore(t)

	_, err := store.Latest(ctx)
	assert.True(t, errors.Is(err, calculation.ErrDataUnavailable))

	small, err := Parse([]byte(smallTable))
	require.NoError(t, err)
	def, err := Default()
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, small))
	require.NoError(t, store.Save(ctx, def))

	years, err := store.Years(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{2024, 2030}, years)

	latest, err := store.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2030, latest.Year)
}

func TestStore_LoadMissingYear(t *testing.T) {
	_, err := openTempStore(t).Load(context.Background(), 1999)
	require.Error(t, err)
	assert.True(t, errors.Is(err, calculation.ErrDataUnavailable))
}

func TestStore_SaveRejectsInvalid(t *testing.T) {
	td, err := Parse([]byte(smallTable))
	require.NoError(t, err)
	td.Federal[1].Min = decimal.NewFromInt(5)
	assert.Error(t, openTempStore(t).Save(context.Background(), td))
}
