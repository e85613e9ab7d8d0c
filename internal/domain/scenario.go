package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// TaxStatus partitions investments by how withdrawals and growth are taxed.
type TaxStatus string

const (
	TaxStatusNonRetirement TaxStatus = "non-retirement"
	TaxStatusPreTax        TaxStatus = "pre-tax"
	TaxStatusAfterTax      TaxStatus = "after-tax"
)

// Valid reports whether the status is one of the known partitions.
func (s TaxStatus) Valid() bool {
	switch s {
	case TaxStatusNonRetirement, TaxStatusPreTax, TaxStatusAfterTax:
		return true
	}
	return false
}

// DistributionType selects how a Distribution is sampled.
type DistributionType string

const (
	DistributionFixed   DistributionType = "fixed"
	DistributionUniform DistributionType = "uniform"
	DistributionNormal  DistributionType = "normal"

	// StartWith and StartAfter are only meaningful on a StartRule.
	StartWith  DistributionType = "start_with"
	StartAfter DistributionType = "start_after"
)

// Distribution describes a scalar random variable.
type Distribution struct {
	Type   DistributionType `yaml:"type" json:"type"`
	Value  decimal.Decimal  `yaml:"value,omitempty" json:"value,omitempty"`
	Min    decimal.Decimal  `yaml:"min,omitempty" json:"min,omitempty"`
	Max    decimal.Decimal  `yaml:"max,omitempty" json:"max,omitempty"`
	Mean   decimal.Decimal  `yaml:"mean,omitempty" json:"mean,omitempty"`
	StdDev decimal.Decimal  `yaml:"std_dev,omitempty" json:"std_dev,omitempty"`
}

// Fixed returns a distribution that always yields v.
func Fixed(v decimal.Decimal) Distribution {
	return Distribution{Type: DistributionFixed, Value: v}
}

// Uniform returns a distribution over [min, max].
func Uniform(min, max decimal.Decimal) Distribution {
	return Distribution{Type: DistributionUniform, Min: min, Max: max}
}

// Normal returns a Gaussian distribution.
func Normal(mean, stdDev decimal.Decimal) Distribution {
	return Distribution{Type: DistributionNormal, Mean: mean, StdDev: stdDev}
}

// Person is one member of the household.
type Person struct {
	BirthYear      int          `yaml:"birth_year" json:"birth_year"`
	LifeExpectancy Distribution `yaml:"life_expectancy" json:"life_expectancy"`
}

// AmountMode says whether a sampled quantity is dollars or a fraction of a base value.
type AmountMode string

const (
	ModeAmount  AmountMode = "amount"
	ModePercent AmountMode = "percent"
)

// InvestmentType describes an asset class shared by one or more investments.
// Percent-mode returns and incomes are fractions (0.05 means 5%).
type InvestmentType struct {
	Name         string          `yaml:"name" json:"name"`
	Description  string          `yaml:"description,omitempty" json:"description,omitempty"`
	ReturnMode   AmountMode      `yaml:"return_mode,omitempty" json:"return_mode,omitempty"`
	Return       Distribution    `yaml:"return" json:"return"`
	ExpenseRatio decimal.Decimal `yaml:"expense_ratio" json:"expense_ratio"`
	IncomeMode   AmountMode      `yaml:"income_mode,omitempty" json:"income_mode,omitempty"`
	Income       Distribution    `yaml:"income" json:"income"`
	Taxable      bool            `yaml:"taxable" json:"taxable"`
}

// Investment is a holding of one InvestmentType in one tax partition.
type Investment struct {
	ID        string          `yaml:"id" json:"id"`
	Type      string          `yaml:"type" json:"type"`
	Value     decimal.Decimal `yaml:"value" json:"value"`
	TaxStatus TaxStatus       `yaml:"tax_status" json:"tax_status"`
}

// EventType classifies an EventSeries.
type EventType string

const (
	EventIncome    EventType = "income"
	EventExpense   EventType = "expense"
	EventInvest    EventType = "invest"
	EventRebalance EventType = "rebalance"
)

// StartRule picks the first active year of a series. Sampled rules use the
// embedded Distribution; StartWith and StartAfter reference another series.
type StartRule struct {
	Distribution `yaml:",inline"`
	Series       string `yaml:"series,omitempty" json:"series,omitempty"`
}

// References reports whether the rule depends on another series.
func (r StartRule) References() bool {
	return r.Type == StartWith || r.Type == StartAfter
}

// AllocationEntry is one investment's share of an allocation, in percent.
type AllocationEntry struct {
	Investment string          `yaml:"investment" json:"investment"`
	Percent    decimal.Decimal `yaml:"percent" json:"percent"`
}

// Allocation is an ordered asset allocation. In YAML it may be written as a
// mapping of investment id to percent (document order is kept) or as a list
// of entries.
type Allocation []AllocationEntry

// UnmarshalYAML keeps mapping order, which a Go map would lose.
func (a *Allocation) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.MappingNode:
		out := make(Allocation, 0, len(value.Content)/2)
		for i := 0; i+1 < len(value.Content); i += 2 {
			key, val := value.Content[i], value.Content[i+1]
			pct, err := decimal.NewFromString(val.Value)
			if err != nil {
				return fmt.Errorf("allocation %q: invalid percent %q: %w", key.Value, val.Value, err)
			}
			out = append(out, AllocationEntry{Investment: key.Value, Percent: pct})
		}
		*a = out
		return nil
	case yaml.SequenceNode:
		var entries []AllocationEntry
		if err := value.Decode(&entries); err != nil {
			return err
		}
		*a = entries
		return nil
	}
	return fmt.Errorf("allocation must be a mapping or a list, line %d", value.Line)
}

// Total sums the entry percentages.
func (a Allocation) Total() decimal.Decimal {
	sum := decimal.Zero
	for _, e := range a {
		sum = sum.Add(e.Percent)
	}
	return sum
}

// Percent returns the share for an investment id, or zero.
func (a Allocation) Percent(id string) decimal.Decimal {
	for _, e := range a {
		if e.Investment == id {
			return e.Percent
		}
	}
	return decimal.Zero
}

// EventSeries is a recurring income, expense, invest or rebalance event.
type EventSeries struct {
	Name        string       `yaml:"name" json:"name"`
	Description string       `yaml:"description,omitempty" json:"description,omitempty"`
	Type        EventType    `yaml:"type" json:"type"`
	Start       StartRule    `yaml:"start" json:"start"`
	Duration    Distribution `yaml:"duration" json:"duration"`

	// income and expense
	InitialAmount     decimal.Decimal `yaml:"initial_amount,omitempty" json:"initial_amount,omitempty"`
	ChangeMode        AmountMode      `yaml:"change_mode,omitempty" json:"change_mode,omitempty"`
	Change            Distribution    `yaml:"change,omitempty" json:"change,omitempty"`
	InflationAdjusted bool            `yaml:"inflation_adjusted,omitempty" json:"inflation_adjusted,omitempty"`
	UserPercent       decimal.Decimal `yaml:"user_percent,omitempty" json:"user_percent,omitempty"`
	SpousePercent     decimal.Decimal `yaml:"spouse_percent,omitempty" json:"spouse_percent,omitempty"`
	SocialSecurity    bool            `yaml:"social_security,omitempty" json:"social_security,omitempty"`
	Discretionary     bool            `yaml:"discretionary,omitempty" json:"discretionary,omitempty"`

	// invest and rebalance
	Allocation      Allocation      `yaml:"allocation,omitempty" json:"allocation,omitempty"`
	GlidePath       bool            `yaml:"glide_path,omitempty" json:"glide_path,omitempty"`
	FinalAllocation Allocation      `yaml:"final_allocation,omitempty" json:"final_allocation,omitempty"`
	MaxCash         decimal.Decimal `yaml:"max_cash,omitempty" json:"max_cash,omitempty"`
}

// IsCashFlow reports whether the series carries an amount (income or expense).
func (s *EventSeries) IsCashFlow() bool {
	return s.Type == EventIncome || s.Type == EventExpense
}

// RothConversion configures the optional bracket-filling conversion.
type RothConversion struct {
	Enabled   bool     `yaml:"enabled" json:"enabled"`
	StartYear int      `yaml:"start_year,omitempty" json:"start_year,omitempty"`
	EndYear   int      `yaml:"end_year,omitempty" json:"end_year,omitempty"`
	Strategy  []string `yaml:"strategy,omitempty" json:"strategy,omitempty"`
}

// ScenarioDefinition is the immutable input to a simulation run.
type ScenarioDefinition struct {
	Name                      string           `yaml:"name" json:"name"`
	User                      Person           `yaml:"user" json:"user"`
	Spouse                    *Person          `yaml:"spouse,omitempty" json:"spouse,omitempty"`
	StartYear                 int              `yaml:"start_year" json:"start_year"`
	FinancialGoal             decimal.Decimal  `yaml:"financial_goal" json:"financial_goal"`
	ResidenceState            string           `yaml:"residence_state" json:"residence_state"`
	InvestmentTypes           []InvestmentType `yaml:"investment_types" json:"investment_types"`
	Investments               []Investment     `yaml:"investments" json:"investments"`
	EventSeries               []EventSeries    `yaml:"event_series,omitempty" json:"event_series,omitempty"`
	Inflation                 Distribution     `yaml:"inflation" json:"inflation"`
	SpendingStrategy          []string         `yaml:"spending_strategy,omitempty" json:"spending_strategy,omitempty"`
	WithdrawalStrategy        []string         `yaml:"withdrawal_strategy,omitempty" json:"withdrawal_strategy,omitempty"`
	RMDStrategy               []string         `yaml:"rmd_strategy,omitempty" json:"rmd_strategy,omitempty"`
	RothConversion            RothConversion   `yaml:"roth_conversion,omitempty" json:"roth_conversion,omitempty"`
	AfterTaxContributionLimit decimal.Decimal  `yaml:"after_tax_contribution_limit" json:"after_tax_contribution_limit"`
}

// IsCouple reports whether the household has a spouse.
func (s *ScenarioDefinition) IsCouple() bool {
	return s.Spouse != nil
}

// InvestmentType looks up an investment type by name.
func (s *ScenarioDefinition) InvestmentType(name string) (*InvestmentType, bool) {
	for i := range s.InvestmentTypes {
		if s.InvestmentTypes[i].Name == name {
			return &s.InvestmentTypes[i], true
		}
	}
	return nil, false
}
