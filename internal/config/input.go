package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/rpgo/lifetime-planner/internal/calculation"
	"github.com/rpgo/lifetime-planner/internal/domain"
)

// ScenarioParser handles parsing of scenario files
type ScenarioParser struct{}

// NewScenarioParser creates a new scenario parser
func NewScenarioParser() *ScenarioParser {
	return &ScenarioParser{}
}

// LoadFromFile loads a scenario from a YAML (or JSON) file
func (sp *ScenarioParser) LoadFromFile(filename string) (*domain.ScenarioDefinition, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filename, err)
	}
	return sp.Parse(data)
}

// Parse decodes a scenario document, fills defaults and validates it.
func (sp *ScenarioParser) Parse(data []byte) (*domain.ScenarioDefinition, error) {
	sc, err := sp.Decode(data)
	if err != nil {
		return nil, err
	}
	if err := calculation.ValidateScenario(sc); err != nil {
		return nil, fmt.Errorf("scenario validation failed: %w", err)
	}
	return sc, nil
}

// Decode reads a YAML (or JSON) scenario and fills defaults without
// validating. Unknown keys are rejected.
func (sp *ScenarioParser) Decode(data []byte) (*domain.ScenarioDefinition, error) {
	var sc domain.ScenarioDefinition
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	ApplyDefaults(&sc)
	return &sc, nil
}

// ApplyDefaults fills the optional fields a scenario author may omit:
// percent modes, a 100% user share for cash flows and fixed zero change.
func ApplyDefaults(sc *domain.ScenarioDefinition) {
	hundred := decimal.NewFromInt(100)
	for i := range sc.InvestmentTypes {
		it := &sc.InvestmentTypes[i]
		if it.ReturnMode == "" {
			it.ReturnMode = domain.ModePercent
		}
		if it.IncomeMode == "" {
			it.IncomeMode = domain.ModePercent
		}
		if it.Income.Type == "" {
			it.Income = domain.Fixed(decimal.Zero)
		}
	}
	for i := range sc.EventSeries {
		es := &sc.EventSeries[i]
		if !es.IsCashFlow() {
			continue
		}
		if es.UserPercent.IsZero() && es.SpousePercent.IsZero() {
			es.UserPercent = hundred
		}
		if es.ChangeMode == "" {
			es.ChangeMode = domain.ModeAmount
		}
		if es.Change.Type == "" {
			es.Change = domain.Fixed(decimal.Zero)
		}
	}
}

// SaveToFile writes sc as YAML.
func (sp *ScenarioParser) SaveToFile(sc *domain.ScenarioDefinition, filename string) error {
	data, err := yaml.Marshal(sc)
	if err != nil {
		return fmt.Errorf("failed to encode scenario: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("failed to write file %s: %w", filename, err)
	}
	return nil
}

// CreateExampleScenario creates an example couple's plan
func (sp *ScenarioParser) CreateExampleScenario() *domain.ScenarioDefinition {
	d := decimal.RequireFromString
	spouse := domain.Person{BirthYear: 1967, LifeExpectancy: domain.Normal(d("89"), d("6"))}

	return &domain.ScenarioDefinition{
		Name:           "Example Household",
		User:           domain.Person{BirthYear: 1963, LifeExpectancy: domain.Normal(d("86"), d("7"))},
		Spouse:         &spouse,
		StartYear:      2025,
		FinancialGoal:  d("50000"),
		ResidenceState: "NY",
		InvestmentTypes: []domain.InvestmentType{
			{
				Name:         "cash",
				Description:  "Money market",
				ReturnMode:   domain.ModePercent,
				Return:       domain.Fixed(d("0.02")),
				ExpenseRatio: decimal.Zero,
				IncomeMode:   domain.ModePercent,
				Income:       domain.Fixed(decimal.Zero),
				Taxable:      true,
			},
			{
				Name:         "S&P 500",
				Description:  "Broad US equity index fund",
				ReturnMode:   domain.ModePercent,
				Return:       domain.Normal(d("0.06"), d("0.15")),
				ExpenseRatio: d("0.001"),
				IncomeMode:   domain.ModePercent,
				Income:       domain.Normal(d("0.015"), d("0.003")),
				Taxable:      true,
			},
		},
		Investments: []domain.Investment{
			{ID: "S&P 500 non-retirement", Type: "S&P 500", Value: d("250000"), TaxStatus: domain.TaxStatusNonRetirement},
			{ID: "S&P 500 pre-tax", Type: "S&P 500", Value: d("600000"), TaxStatus: domain.TaxStatusPreTax},
			{ID: "S&P 500 after-tax", Type: "S&P 500", Value: d("120000"), TaxStatus: domain.TaxStatusAfterTax},
			{ID: "cash non-retirement", Type: "cash", Value: d("40000"), TaxStatus: domain.TaxStatusNonRetirement},
		},
		EventSeries: []domain.EventSeries{
			{
				Name:          "salary",
				Type:          domain.EventIncome,
				Start:         domain.StartRule{Distribution: domain.Fixed(d("2025"))},
				Duration:      domain.Uniform(d("2"), d("5")),
				InitialAmount: d("120000"),
				ChangeMode:    domain.ModePercent,
				Change:        domain.Uniform(d("0.01"), d("0.03")),
				UserPercent:   d("100"),
			},
			{
				Name:              "social security",
				Type:              domain.EventIncome,
				Start:             domain.StartRule{Distribution: domain.Distribution{Type: domain.StartAfter}, Series: "salary"},
				Duration:          domain.Fixed(d("40")),
				InitialAmount:     d("42000"),
				ChangeMode:        domain.ModeAmount,
				Change:            domain.Fixed(decimal.Zero),
				InflationAdjusted: true,
				UserPercent:       d("60"),
				SpousePercent:     d("40"),
				SocialSecurity:    true,
			},
			{
				Name:              "living expenses",
				Type:              domain.EventExpense,
				Start:             domain.StartRule{Distribution: domain.Fixed(d("2025"))},
				Duration:          domain.Fixed(d("60")),
				InitialAmount:     d("70000"),
				ChangeMode:        domain.ModeAmount,
				Change:            domain.Fixed(decimal.Zero),
				InflationAdjusted: true,
				UserPercent:       d("50"),
				SpousePercent:     d("50"),
			},
			{
				Name:              "travel",
				Type:              domain.EventExpense,
				Start:             domain.StartRule{Distribution: domain.Distribution{Type: domain.StartWith}, Series: "social security"},
				Duration:          domain.Uniform(d("5"), d("15")),
				InitialAmount:     d("12000"),
				ChangeMode:        domain.ModeAmount,
				Change:            domain.Fixed(decimal.Zero),
				InflationAdjusted: true,
				UserPercent:       d("50"),
				SpousePercent:     d("50"),
				Discretionary:     true,
			},
			{
				Name:     "invest",
				Type:     domain.EventInvest,
				Start:    domain.StartRule{Distribution: domain.Fixed(d("2025"))},
				Duration: domain.Fixed(d("60")),
				Allocation: domain.Allocation{
					{Investment: "S&P 500 after-tax", Percent: d("30")},
					{Investment: "S&P 500 non-retirement", Percent: d("70")},
				},
				MaxCash:           d("30000"),
				InflationAdjusted: true,
			},
		},
		Inflation:                 domain.Normal(d("0.025"), d("0.01")),
		SpendingStrategy:          []string{"travel"},
		WithdrawalStrategy:        []string{"cash non-retirement", "S&P 500 non-retirement", "S&P 500 after-tax", "S&P 500 pre-tax"},
		RMDStrategy:               []string{"S&P 500 pre-tax"},
		RothConversion:            domain.RothConversion{Enabled: true, StartYear: 2028, EndYear: 2035, Strategy: []string{"S&P 500 pre-tax"}},
		AfterTaxContributionLimit: d("7000"),
	}
}
