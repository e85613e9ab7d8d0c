package calculation

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/rpgo/lifetime-planner/internal/domain"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

func bracket(status domain.FilingStatus, min string, max string, rate string) domain.TaxBracket {
	b := domain.TaxBracket{Min: d(min), Rate: d(rate), FilingStatus: status}
	if max != "" {
		b.Max = dp(max)
	}
	return b
}

// testTaxData is a small but complete bracket set.
func testTaxData() *domain.TaxData {
	return &domain.TaxData{
		Year: 2025,
		Federal: domain.TaxBracketTable{
			bracket(domain.FilingSingle, "0", "10000", "0.10"),
			bracket(domain.FilingSingle, "10001", "", "0.20"),
			bracket(domain.FilingMarried, "0", "20000", "0.10"),
			bracket(domain.FilingMarried, "20001", "", "0.20"),
		},
		CapitalGains: domain.TaxBracketTable{
			bracket(domain.FilingSingle, "0", "40000", "0"),
			bracket(domain.FilingSingle, "40001", "", "0.15"),
			bracket(domain.FilingMarried, "0", "80000", "0"),
			bracket(domain.FilingMarried, "80001", "", "0.15"),
		},
		StandardDeduction: map[domain.FilingStatus]decimal.Decimal{
			domain.FilingSingle:  d("10000"),
			domain.FilingMarried: d("20000"),
		},
		States: map[string]domain.TaxBracketTable{
			"NY": {
				bracket(domain.FilingSingle, "0", "", "0.05"),
				bracket(domain.FilingMarried, "0", "", "0.05"),
			},
		},
	}
}

// baseScenario is a single person with one non-retirement fund growing at a
// fixed 5% and a life expectancy ending after ten simulated years.
func baseScenario() *domain.ScenarioDefinition {
	return &domain.ScenarioDefinition{
		Name:           "base",
		User:           domain.Person{BirthYear: 1960, LifeExpectancy: domain.Fixed(d("75"))},
		StartYear:      2025,
		FinancialGoal:  decimal.Zero,
		ResidenceState: "NY",
		InvestmentTypes: []domain.InvestmentType{
			{Name: "fund", ReturnMode: domain.ModePercent, Return: domain.Fixed(d("0.05")), ExpenseRatio: decimal.Zero, Income: domain.Fixed(decimal.Zero)},
		},
		Investments: []domain.Investment{
			{ID: "brokerage", Type: "fund", Value: d("100000"), TaxStatus: domain.TaxStatusNonRetirement},
		},
		Inflation: domain.Fixed(decimal.Zero),
	}
}

func fixedSeries(name string, typ domain.EventType, start, duration int64) domain.EventSeries {
	return domain.EventSeries{
		Name:        name,
		Type:        typ,
		Start:       domain.StartRule{Distribution: domain.Fixed(decimal.NewFromInt(start))},
		Duration:    domain.Fixed(decimal.NewFromInt(duration)),
		UserPercent: d("100"),
	}
}

func mustTaxCalculator(data *domain.TaxData, state string) *TaxCalculator {
	calc, err := NewTaxCalculator(data, state, DefaultEarlyWithdrawalPenalty)
	if err != nil {
		panic(err)
	}
	return calc
}

func mustStaticTable() *RMDTable {
	factors, _ := StaticRMDSource{}.Fetch(context.Background())
	t, err := NewRMDTable("static", factors, DefaultRMDStartAge)
	if err != nil {
		panic(err)
	}
	return t
}

// flatFactors is an RMD table with one period for every age from first to
// the oldest reachable age.
func flatFactors(first int, factor string) map[int]decimal.Decimal {
	out := make(map[int]decimal.Decimal)
	for age := first; age <= maxLifeExpectancy; age++ {
		out[age] = d(factor)
	}
	return out
}
