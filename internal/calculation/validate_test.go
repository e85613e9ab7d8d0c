package calculation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpgo/lifetime-planner/internal/domain"
)

func TestValidateScenario_Base(t *testing.T) {
	require.NoError(t, ValidateScenario(baseScenario()))
}

func TestValidateScenario_Problems(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(sc *domain.ScenarioDefinition)
		field  string
	}{
		{"missing state", func(sc *domain.ScenarioDefinition) { sc.ResidenceState = "" }, "residence_state"},
		{"negative goal", func(sc *domain.ScenarioDefinition) { sc.FinancialGoal = d("-1") }, "financial_goal"},
		{"born after start", func(sc *domain.ScenarioDefinition) { sc.User.BirthYear = 2030 }, "user.birth_year"},
		{"bad inflation", func(sc *domain.ScenarioDefinition) { sc.Inflation = domain.Uniform(d("0.05"), d("0.01")) }, "inflation"},
		{"expense ratio", func(sc *domain.ScenarioDefinition) { sc.InvestmentTypes[0].ExpenseRatio = d("1.5") }, "investment_types[0].expense_ratio"},
		{"unknown type", func(sc *domain.ScenarioDefinition) { sc.Investments[0].Type = "bonds" }, "investments[0].type"},
		{"bad status", func(sc *domain.ScenarioDefinition) { sc.Investments[0].TaxStatus = "offshore" }, "investments[0].tax_status"},
		{"duplicate investment", func(sc *domain.ScenarioDefinition) {
			sc.Investments = append(sc.Investments, sc.Investments[0])
		}, "investments[1].id"},
		{"split not 100", func(sc *domain.ScenarioDefinition) {
			s := income("salary", "1000")
			s.UserPercent = d("70")
			sc.EventSeries = []domain.EventSeries{s}
		}, "event_series[salary].user_percent"},
		{"allocation sum", func(sc *domain.ScenarioDefinition) {
			s := fixedSeries("invest", domain.EventInvest, 2025, 5)
			s.Allocation = domain.Allocation{{Investment: "brokerage", Percent: d("90")}}
			sc.EventSeries = []domain.EventSeries{s}
		}, "event_series[invest].allocation"},
		{"invest buys pre-tax", func(sc *domain.ScenarioDefinition) {
			sc.Investments = append(sc.Investments, domain.Investment{ID: "ira", Type: "fund", Value: d("1"), TaxStatus: domain.TaxStatusPreTax})
			s := fixedSeries("invest", domain.EventInvest, 2025, 5)
			s.Allocation = domain.Allocation{{Investment: "ira", Percent: d("100")}}
			sc.EventSeries = []domain.EventSeries{s}
		}, "event_series[invest].allocation[ira]"},
		{"rebalance mixes statuses", func(sc *domain.ScenarioDefinition) {
			sc.Investments = append(sc.Investments, domain.Investment{ID: "ira", Type: "fund", Value: d("1"), TaxStatus: domain.TaxStatusPreTax})
			s := fixedSeries("rb", domain.EventRebalance, 2025, 5)
			s.Allocation = domain.Allocation{{Investment: "brokerage", Percent: d("50")}, {Investment: "ira", Percent: d("50")}}
			sc.EventSeries = []domain.EventSeries{s}
		}, "event_series[rb].allocation[ira]"},
		{"glide path changes status", func(sc *domain.ScenarioDefinition) {
			sc.Investments = append(sc.Investments, domain.Investment{ID: "roth", Type: "fund", Value: d("1"), TaxStatus: domain.TaxStatusAfterTax})
			s := fixedSeries("rb", domain.EventRebalance, 2025, 5)
			s.GlidePath = true
			s.Allocation = domain.Allocation{{Investment: "brokerage", Percent: d("100")}}
			s.FinalAllocation = domain.Allocation{{Investment: "roth", Percent: d("100")}}
			sc.EventSeries = []domain.EventSeries{s}
		}, "event_series[rb].final_allocation[roth]"},
		{"spending strategy", func(sc *domain.ScenarioDefinition) {
			sc.EventSeries = []domain.EventSeries{expense("rent", "1", false)}
			sc.SpendingStrategy = []string{"rent"}
		}, "spending_strategy[0]"},
		{"withdrawal strategy", func(sc *domain.ScenarioDefinition) { sc.WithdrawalStrategy = []string{"ghost"} }, "withdrawal_strategy[0]"},
		{"rmd not pre-tax", func(sc *domain.ScenarioDefinition) { sc.RMDStrategy = []string{"brokerage"} }, "rmd_strategy[0]"},
		{"roth years", func(sc *domain.ScenarioDefinition) {
			sc.RothConversion = domain.RothConversion{Enabled: true, StartYear: 2030, EndYear: 2026}
		}, "roth_conversion.end_year"},
		{"dangling reference", func(sc *domain.ScenarioDefinition) {
			sc.EventSeries = []domain.EventSeries{refSeries("later", domain.StartAfter, "ghost", 1)}
		}, "event_series[later].start.series"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sc := baseScenario()
			tc.mutate(sc)
			err := ValidateScenario(sc)
			require.Error(t, err)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			fields := make([]string, len(verr.Errors))
			for i, fe := range verr.Errors {
				fields[i] = fe.Field
			}
			assert.Contains(t, fields, tc.field)
		})
	}
}

func TestValidateScenario_ReportsEveryProblem(t *testing.T) {
	sc := baseScenario()
	sc.ResidenceState = ""
	sc.FinancialGoal = d("-5")
	sc.WithdrawalStrategy = []string{"ghost"}

	var verr *ValidationError
	require.True(t, errors.As(ValidateScenario(sc), &verr))
	assert.Len(t, verr.Errors, 3)
}

func TestValidateScenario_Nil(t *testing.T) {
	assert.Error(t, ValidateScenario(nil))
}
