package calculation

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpgo/lifetime-planner/internal/domain"
)

func TestValidateBrackets(t *testing.T) {
	complete := func(single ...domain.TaxBracket) domain.TaxBracketTable {
		table := domain.TaxBracketTable{bracket(domain.FilingMarried, "0", "", "0.1")}
		return append(table, single...)
	}

	tests := []struct {
		name     string
		table    domain.TaxBracketTable
		rule     BracketRule
		expected string
		actual   string
	}{
		{
			name: "discontinuity",
			table: complete(
				bracket(domain.FilingSingle, "0", "5000", "0.1"),
				bracket(domain.FilingSingle, "6000", "10000", "0.2"),
				bracket(domain.FilingSingle, "10001", "", "0.3"),
			),
			rule:     RuleDiscontinuity,
			expected: "5001",
			actual:   "6000",
		},
		{
			name:   "non-zero start",
			table:  complete(bracket(domain.FilingSingle, "100", "", "0.1")),
			rule:   RuleNonZeroStart,
			actual: "100",
		},
		{
			name: "unbounded not last",
			table: complete(
				bracket(domain.FilingSingle, "0", "", "0.1"),
				bracket(domain.FilingSingle, "5001", "", "0.2"),
			),
			rule: RuleUnboundedNotLast,
		},
		{
			name:  "missing partition",
			table: domain.TaxBracketTable{bracket(domain.FilingSingle, "0", "", "0.1")},
			rule:  RuleMissingPartition,
		},
		{
			name:   "rate above one",
			table:  complete(bracket(domain.FilingSingle, "0", "", "1.5")),
			rule:   RuleInvalidRate,
			actual: "1.5",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateBrackets(FamilyFederal, "", tc.table)
			require.Error(t, err)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			var berr *BracketError
			require.True(t, errors.As(err, &berr))
			assert.Equal(t, tc.rule, berr.Rule)
			if tc.expected != "" {
				assert.True(t, d(tc.expected).Equal(berr.Expected), "expected %s, got %s", tc.expected, berr.Expected)
			}
			if tc.actual != "" {
				assert.True(t, d(tc.actual).Equal(berr.Actual), "actual %s, got %s", tc.actual, berr.Actual)
			}
		})
	}
}

func TestValidateBrackets_Accepts(t *testing.T) {
	data := testTaxData()
	assert.NoError(t, ValidateBrackets(FamilyFederal, "", data.Federal))
	assert.NoError(t, ValidateBrackets(FamilyCapitalGains, "", data.CapitalGains))
	assert.NoError(t, ValidateBrackets(FamilyState, "NY", data.States["NY"]))
}

func TestProgressiveTax(t *testing.T) {
	brackets := testTaxData().Federal.ForStatus(domain.FilingSingle)

	tests := []struct {
		income   string
		expected string
	}{
		{"0", "0"},
		{"-50", "0"},
		{"5000", "500"},
		{"10000", "1000"},
		{"10001", "1000.2"},
		{"30000", "5000"},
	}
	for _, tc := range tests {
		t.Run(tc.income, func(t *testing.T) {
			got := ProgressiveTax(brackets, d(tc.income))
			assert.True(t, d(tc.expected).Equal(got), "tax(%s) = %s, want %s", tc.income, got, tc.expected)
		})
	}
}

func TestProgressiveTax_Monotonic(t *testing.T) {
	brackets := testTaxData().Federal.ForStatus(domain.FilingMarried)
	prev := decimal.Zero
	for income := int64(0); income <= 200000; income += 777 {
		tax := ProgressiveTax(brackets, decimal.NewFromInt(income))
		assert.True(t, tax.GreaterThanOrEqual(prev), "tax(%d)=%s below previous %s", income, tax, prev)
		prev = tax
	}
}

func TestNewTaxCalculator_DataErrors(t *testing.T) {
	_, err := NewTaxCalculator(testTaxData(), "ZZ", DefaultEarlyWithdrawalPenalty)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDataUnavailable))

	data := testTaxData()
	delete(data.StandardDeduction, domain.FilingMarried)
	_, err = NewTaxCalculator(data, "NY", DefaultEarlyWithdrawalPenalty)
	assert.True(t, errors.Is(err, ErrDataUnavailable))

	_, err = NewTaxCalculator(nil, "NY", DefaultEarlyWithdrawalPenalty)
	assert.True(t, errors.Is(err, ErrDataUnavailable))
}

func TestNewTaxCalculator_RejectsInvalidState(t *testing.T) {
	data := testTaxData()
	data.States["NY"] = domain.TaxBracketTable{
		bracket(domain.FilingSingle, "0", "5000", "0.04"),
		bracket(domain.FilingSingle, "6000", "", "0.06"),
		bracket(domain.FilingMarried, "0", "", "0.05"),
	}
	_, err := NewTaxCalculator(data, "NY", DefaultEarlyWithdrawalPenalty)
	require.Error(t, err)

	var berr *BracketError
	require.True(t, errors.As(err, &berr))
	assert.Equal(t, FamilyState, berr.Family)
	assert.Equal(t, "NY", berr.Jurisdiction)
	assert.Equal(t, RuleDiscontinuity, berr.Rule)
}

func TestTaxCalculator_Compute(t *testing.T) {
	calc := mustTaxCalculator(testTaxData(), "NY")

	year := TaxYear{
		OrdinaryIncome:   d("20000"),
		SocialSecurity:   d("10000"),
		CapitalGains:     d("50000"),
		EarlyWithdrawals: d("1000"),
	}
	bill := calc.Compute(year, domain.FilingSingle, one)

	// federal: 20000 + 8500 - 10000 = 18500 -> 1000 + 8500*0.2
	assert.True(t, d("2700").Equal(bill.Federal), "federal %s", bill.Federal)
	// capital gains: (50000-40000) * 0.15
	assert.True(t, d("1500").Equal(bill.CapitalGains), "gains %s", bill.CapitalGains)
	assert.True(t, d("1000").Equal(bill.State), "state %s", bill.State)
	assert.True(t, d("100").Equal(bill.EarlyWithdrawal), "penalty %s", bill.EarlyWithdrawal)
	assert.True(t, d("5300").Equal(bill.Total()))
}

func TestTaxCalculator_ComputeIndexed(t *testing.T) {
	calc := mustTaxCalculator(testTaxData(), "NY")
	year := TaxYear{OrdinaryIncome: d("40000")}

	base := calc.Compute(year, domain.FilingSingle, one)
	doubled := calc.Compute(TaxYear{OrdinaryIncome: d("80000")}, domain.FilingSingle, d("2"))

	// Doubling both prices and income doubles the tax.
	assert.True(t, base.Federal.Mul(d("2")).Equal(doubled.Federal))
	assert.True(t, calc.StandardDeduction(domain.FilingSingle, d("2")).Equal(d("20000")))
}

func TestTaxCalculator_NegativeGainsNotTaxed(t *testing.T) {
	calc := mustTaxCalculator(testTaxData(), "NY")
	bill := calc.Compute(TaxYear{CapitalGains: d("-5000")}, domain.FilingMarried, one)
	assert.True(t, bill.Total().IsZero())
}

func TestTaxCalculator_BracketHeadroom(t *testing.T) {
	calc := mustTaxCalculator(testTaxData(), "NY")

	// taxable 4000 of a 10000 first bracket
	room := calc.BracketHeadroom(d("14000"), domain.FilingSingle, one)
	assert.True(t, d("6000").Equal(room), "room %s", room)

	// below the deduction the whole first bracket is free
	room = calc.BracketHeadroom(d("5000"), domain.FilingSingle, one)
	assert.True(t, d("10000").Equal(room), "room %s", room)

	// top bracket is unbounded
	room = calc.BracketHeadroom(d("50000"), domain.FilingSingle, one)
	assert.True(t, room.IsZero())
}
