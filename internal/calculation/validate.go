package calculation

import (
	"fmt"

	"github.com/rpgo/lifetime-planner/internal/domain"
)

// ValidateScenario checks every structural invariant of a scenario and
// returns all problems found as a *ValidationError.
func ValidateScenario(sc *domain.ScenarioDefinition) error {
	if sc == nil {
		return &ValidationError{Errors: []FieldError{{Field: "scenario", Message: "is required"}}}
	}
	verr := &ValidationError{}

	if sc.StartYear <= 0 {
		verr.Add("start_year", "must be positive")
	}
	validatePerson("user", sc.User, sc.StartYear, verr)
	if sc.IsCouple() {
		validatePerson("spouse", *sc.Spouse, sc.StartYear, verr)
	}
	if sc.FinancialGoal.IsNegative() {
		verr.Add("financial_goal", "must not be negative")
	}
	if sc.AfterTaxContributionLimit.IsNegative() {
		verr.Add("after_tax_contribution_limit", "must not be negative")
	}
	if sc.ResidenceState == "" {
		verr.Add("residence_state", "is required")
	}
	ValidateDistribution("inflation", sc.Inflation, verr)

	types := make(map[string]bool, len(sc.InvestmentTypes))
	for i, it := range sc.InvestmentTypes {
		field := fmt.Sprintf("investment_types[%d]", i)
		if it.Name == "" {
			verr.Add(field+".name", "is required")
		} else if types[it.Name] {
			verr.Add(field+".name", "duplicate investment type %q", it.Name)
		}
		types[it.Name] = true
		validateMode(field+".return_mode", it.ReturnMode, verr)
		validateMode(field+".income_mode", it.IncomeMode, verr)
		ValidateDistribution(field+".return", it.Return, verr)
		if it.Income.Type != "" {
			ValidateDistribution(field+".income", it.Income, verr)
		}
		if it.ExpenseRatio.IsNegative() || it.ExpenseRatio.GreaterThan(one) {
			verr.Add(field+".expense_ratio", "must be within [0,1]")
		}
	}

	investments := make(map[string]domain.TaxStatus, len(sc.Investments))
	for i, inv := range sc.Investments {
		field := fmt.Sprintf("investments[%d]", i)
		if inv.ID == "" {
			verr.Add(field+".id", "is required")
		} else if _, dup := investments[inv.ID]; dup {
			verr.Add(field+".id", "duplicate investment %q", inv.ID)
		}
		if !types[inv.Type] {
			verr.Add(field+".type", "unknown investment type %q", inv.Type)
		}
		if !inv.TaxStatus.Valid() {
			verr.Add(field+".tax_status", "unknown tax status %q", inv.TaxStatus)
		}
		if inv.Value.IsNegative() {
			verr.Add(field+".value", "must not be negative")
		}
		investments[inv.ID] = inv.TaxStatus
	}

	discretionary := make(map[string]bool)
	for i := range sc.EventSeries {
		es := &sc.EventSeries[i]
		validateSeries(fmt.Sprintf("event_series[%s]", es.Name), es, investments, verr)
		if es.Type == domain.EventExpense && es.Discretionary {
			discretionary[es.Name] = true
		}
	}
	if _, err := PlanSeries(sc.EventSeries); err != nil {
		verr.Merge(err.(*ValidationError))
	}

	for i, name := range sc.SpendingStrategy {
		if !discretionary[name] {
			verr.Add(fmt.Sprintf("spending_strategy[%d]", i), "%q is not a discretionary expense series", name)
		}
	}
	for i, id := range sc.WithdrawalStrategy {
		if _, ok := investments[id]; !ok {
			verr.Add(fmt.Sprintf("withdrawal_strategy[%d]", i), "unknown investment %q", id)
		}
	}
	validatePreTaxList("rmd_strategy", sc.RMDStrategy, investments, verr)
	if sc.RothConversion.Enabled {
		if sc.RothConversion.EndYear < sc.RothConversion.StartYear {
			verr.Add("roth_conversion.end_year", "precedes start year %d", sc.RothConversion.StartYear)
		}
		validatePreTaxList("roth_conversion.strategy", sc.RothConversion.Strategy, investments, verr)
	}

	return verr.OrNil()
}

func validatePerson(field string, p domain.Person, startYear int, verr *ValidationError) {
	if p.BirthYear <= 0 {
		verr.Add(field+".birth_year", "must be positive")
	} else if startYear > 0 && p.BirthYear > startYear {
		verr.Add(field+".birth_year", "is after start year %d", startYear)
	}
	ValidateDistribution(field+".life_expectancy", p.LifeExpectancy, verr)
}

func validateMode(field string, m domain.AmountMode, verr *ValidationError) {
	switch m {
	case "", domain.ModeAmount, domain.ModePercent:
	default:
		verr.Add(field, "unknown mode %q", m)
	}
}

func validatePreTaxList(field string, ids []string, investments map[string]domain.TaxStatus, verr *ValidationError) {
	for i, id := range ids {
		status, ok := investments[id]
		switch {
		case !ok:
			verr.Add(fmt.Sprintf("%s[%d]", field, i), "unknown investment %q", id)
		case status != domain.TaxStatusPreTax:
			verr.Add(fmt.Sprintf("%s[%d]", field, i), "investment %q is %s, not pre-tax", id, status)
		}
	}
}

func validateSeries(field string, es *domain.EventSeries, investments map[string]domain.TaxStatus, verr *ValidationError) {
	if es.Name == "" {
		verr.Add(field+".name", "is required")
	}
	if !es.Start.References() {
		ValidateDistribution(field+".start", es.Start.Distribution, verr)
	}
	ValidateDistribution(field+".duration", es.Duration, verr)

	switch es.Type {
	case domain.EventIncome, domain.EventExpense:
		if es.InitialAmount.IsNegative() {
			verr.Add(field+".initial_amount", "must not be negative")
		}
		validateMode(field+".change_mode", es.ChangeMode, verr)
		if es.Change.Type != "" {
			ValidateDistribution(field+".change", es.Change, verr)
		}
		if sum := es.UserPercent.Add(es.SpousePercent); !sum.Equal(hundred) {
			verr.Add(field+".user_percent", "user and spouse percentages sum to %s, want 100", sum)
		}
	case domain.EventInvest, domain.EventRebalance:
		// A glide path rebalances within the same tax status at both ends.
		var status domain.TaxStatus
		validateAllocation(field+".allocation", es, es.Allocation, investments, &status, verr)
		if es.GlidePath {
			validateAllocation(field+".final_allocation", es, es.FinalAllocation, investments, &status, verr)
		}
		if es.MaxCash.IsNegative() {
			verr.Add(field+".max_cash", "must not be negative")
		}
	default:
		verr.Add(field+".type", "unknown event type %q", es.Type)
	}
}

func validateAllocation(field string, es *domain.EventSeries, alloc domain.Allocation, investments map[string]domain.TaxStatus, first *domain.TaxStatus, verr *ValidationError) {
	if len(alloc) == 0 {
		verr.Add(field, "is required")
		return
	}
	if total := alloc.Total(); !total.Equal(hundred) {
		verr.Add(field, "percentages sum to %s, want 100", total)
	}
	for _, e := range alloc {
		status, ok := investments[e.Investment]
		if !ok {
			verr.Add(fmt.Sprintf("%s[%s]", field, e.Investment), "unknown investment")
			continue
		}
		if e.Percent.IsNegative() {
			verr.Add(fmt.Sprintf("%s[%s]", field, e.Investment), "percent must not be negative")
		}
		switch es.Type {
		case domain.EventInvest:
			if status == domain.TaxStatusPreTax {
				verr.Add(fmt.Sprintf("%s[%s]", field, e.Investment), "invest series cannot buy pre-tax investments")
			}
		case domain.EventRebalance:
			if *first == "" {
				*first = status
			} else if status != *first {
				verr.Add(fmt.Sprintf("%s[%s]", field, e.Investment), "tax status %s differs from %s", status, *first)
			}
		}
	}
}
