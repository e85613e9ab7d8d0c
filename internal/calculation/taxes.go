package calculation

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/rpgo/lifetime-planner/internal/domain"
)

// TAX CALCULATION ASSUMPTIONS:
//
// 1. Taxes are computed in year Y+1 on the ledger of year Y, using year Y's
//    cumulative inflation factor f: tax(x) = f * T(x / f), where T is the
//    base-year bracket function. The standard deduction scales by f too.
//
// 2. Federal ordinary income = ordinary + 85% of Social Security, less the
//    standard deduction, floored at zero.
//
// 3. Capital gains use their own bracket family on net gains (losses are not
//    carried forward). State tax applies to ordinary income only.
//
// 4. Early withdrawals pay a flat penalty rate on the amount withdrawn.
//
// Bracket bounds are inclusive integers (next.min = prev.max + 1); the amount
// taxed in a bracket runs from the previous bracket's max, so no dollar is
// skipped at a boundary.

// Bracket families.
const (
	FamilyFederal      = "federal"
	FamilyCapitalGains = "capital_gains"
	FamilyState        = "state"
)

var (
	one            = decimal.NewFromInt(1)
	hundred        = decimal.NewFromInt(100)
	ssTaxableShare = decimal.NewFromFloat(0.85)
)

// ValidateBrackets checks a bracket table: each filing status present,
// starting at zero, contiguous, with at most a final unbounded bracket.
// Every violation is returned as a *BracketError inside a *ValidationError.
func ValidateBrackets(family, jurisdiction string, table domain.TaxBracketTable) error {
	verr := &ValidationError{}
	field := family
	if jurisdiction != "" {
		field = family + "." + jurisdiction
	}

	for _, status := range domain.FilingStatuses {
		brackets := table.ForStatus(status)
		fail := func(idx int, rule BracketRule, expected, actual decimal.Decimal) {
			verr.AddErr(fmt.Sprintf("%s.%s[%d]", field, status, idx), &BracketError{
				Family:       family,
				Jurisdiction: jurisdiction,
				FilingStatus: string(status),
				Index:        idx,
				Rule:         rule,
				Expected:     expected,
				Actual:       actual,
			})
		}

		if len(brackets) == 0 {
			fail(0, RuleMissingPartition, decimal.Zero, decimal.Zero)
			continue
		}
		if !brackets[0].Min.IsZero() {
			fail(0, RuleNonZeroStart, decimal.Zero, brackets[0].Min)
		}
		for i, b := range brackets {
			if b.Rate.IsNegative() || b.Rate.GreaterThan(one) {
				fail(i, RuleInvalidRate, decimal.Zero, b.Rate)
			}
			if b.Max != nil && b.Max.LessThan(b.Min) {
				fail(i, RuleInvertedRange, b.Min, *b.Max)
			}
			if i == 0 {
				continue
			}
			prev := brackets[i-1]
			if prev.Max == nil {
				fail(i-1, RuleUnboundedNotLast, decimal.Zero, decimal.Zero)
				continue
			}
			expected := prev.Max.Add(one)
			if !b.Min.Equal(expected) {
				fail(i, RuleDiscontinuity, expected, b.Min)
			}
		}
	}
	return verr.OrNil()
}

// ProgressiveTax applies brackets (one filing status, ascending) to income.
func ProgressiveTax(brackets []domain.TaxBracket, income decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	if !income.IsPositive() {
		return total
	}
	floor := decimal.Zero
	for i, b := range brackets {
		if i > 0 {
			floor = *brackets[i-1].Max
		}
		if income.LessThanOrEqual(floor) {
			break
		}
		top := income
		if b.Max != nil && b.Max.LessThan(income) {
			top = *b.Max
		}
		total = total.Add(top.Sub(floor).Mul(b.Rate))
		if b.Max == nil {
			break
		}
	}
	return total
}

// TaxBill is the tax due on one ledger year.
type TaxBill struct {
	Federal         decimal.Decimal
	CapitalGains    decimal.Decimal
	State           decimal.Decimal
	EarlyWithdrawal decimal.Decimal
}

// Total sums every component.
func (b TaxBill) Total() decimal.Decimal {
	return b.Federal.Add(b.CapitalGains).Add(b.State).Add(b.EarlyWithdrawal)
}

type statusTables struct {
	federal      []domain.TaxBracket
	capitalGains []domain.TaxBracket
	state        []domain.TaxBracket
	deduction    decimal.Decimal
}

// TaxCalculator evaluates validated bracket data for one jurisdiction.
// It is immutable and shared by all trajectories of a run.
type TaxCalculator struct {
	year         int
	jurisdiction string
	penaltyRate  decimal.Decimal
	tables       map[domain.FilingStatus]statusTables
}

// NewTaxCalculator validates data for the given state and prepares it for
// evaluation. Bracket violations come back as *ValidationError; a missing
// state table or standard deduction as *DataError.
func NewTaxCalculator(data *domain.TaxData, state string, penaltyRate decimal.Decimal) (*TaxCalculator, error) {
	if data == nil {
		return nil, &DataError{Source: "tax data", Detail: "no tax data loaded"}
	}
	stateTable, ok := data.States[state]
	if !ok {
		return nil, &DataError{Source: "tax data", Detail: fmt.Sprintf("no state table for jurisdiction %q (year %d)", state, data.Year)}
	}
	for _, status := range domain.FilingStatuses {
		if _, ok := data.StandardDeduction[status]; !ok {
			return nil, &DataError{Source: "tax data", Detail: fmt.Sprintf("no standard deduction for %s (year %d)", status, data.Year)}
		}
	}

	verr := &ValidationError{}
	for _, check := range []struct {
		family, jurisdiction string
		table                domain.TaxBracketTable
	}{
		{FamilyFederal, "", data.Federal},
		{FamilyCapitalGains, "", data.CapitalGains},
		{FamilyState, state, stateTable},
	} {
		if err := ValidateBrackets(check.family, check.jurisdiction, check.table); err != nil {
			verr.Merge(err.(*ValidationError))
		}
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	calc := &TaxCalculator{
		year:         data.Year,
		jurisdiction: state,
		penaltyRate:  penaltyRate,
		tables:       make(map[domain.FilingStatus]statusTables, len(domain.FilingStatuses)),
	}
	for _, status := range domain.FilingStatuses {
		calc.tables[status] = statusTables{
			federal:      data.Federal.ForStatus(status),
			capitalGains: data.CapitalGains.ForStatus(status),
			state:        stateTable.ForStatus(status),
			deduction:    data.StandardDeduction[status],
		}
	}
	return calc, nil
}

// indexed evaluates brackets against x after deflating by factor f.
func indexed(brackets []domain.TaxBracket, x, f decimal.Decimal) decimal.Decimal {
	if f.IsZero() || f.Equal(one) {
		return ProgressiveTax(brackets, x)
	}
	return ProgressiveTax(brackets, x.Div(f)).Mul(f)
}

// StandardDeduction returns the inflation-indexed deduction.
func (c *TaxCalculator) StandardDeduction(status domain.FilingStatus, factor decimal.Decimal) decimal.Decimal {
	return c.tables[status].deduction.Mul(factor)
}

// Compute returns the tax due on year, which was earned under the given
// filing status and cumulative inflation factor.
func (c *TaxCalculator) Compute(year TaxYear, status domain.FilingStatus, factor decimal.Decimal) TaxBill {
	t := c.tables[status]

	taxable := year.FederalTaxableIncome().Sub(c.StandardDeduction(status, factor))
	if taxable.IsNegative() {
		taxable = decimal.Zero
	}
	gains := year.CapitalGains
	if gains.IsNegative() {
		gains = decimal.Zero
	}

	return TaxBill{
		Federal:         indexed(t.federal, taxable, factor),
		CapitalGains:    indexed(t.capitalGains, gains, factor),
		State:           indexed(t.state, year.OrdinaryIncome, factor),
		EarlyWithdrawal: year.EarlyWithdrawals.Mul(c.penaltyRate),
	}
}

// BracketHeadroom returns how much more ordinary income fits in the federal
// bracket that federalIncome (before deduction) currently reaches. It is zero
// in the unbounded top bracket.
func (c *TaxCalculator) BracketHeadroom(federalIncome decimal.Decimal, status domain.FilingStatus, factor decimal.Decimal) decimal.Decimal {
	t := c.tables[status]
	taxable := federalIncome.Sub(c.StandardDeduction(status, factor))
	if taxable.IsNegative() {
		taxable = decimal.Zero
	}
	base := taxable
	if !factor.IsZero() {
		base = taxable.Div(factor)
	}

	idx := sort.Search(len(t.federal), func(i int) bool {
		return t.federal[i].Max == nil || t.federal[i].Max.GreaterThan(base)
	})
	if idx >= len(t.federal) || t.federal[idx].Max == nil {
		return decimal.Zero
	}
	room := t.federal[idx].Max.Mul(factor).Sub(taxable)
	if room.IsNegative() {
		return decimal.Zero
	}
	return room
}
