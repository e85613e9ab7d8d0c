package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvestmentBalance is one holding's end-of-year value.
type InvestmentBalance struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	TaxStatus TaxStatus       `json:"tax_status"`
	Value     decimal.Decimal `json:"value"`
}

// NamedAmount is one line of an income or expense breakdown.
type NamedAmount struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// StatusTotals sums investment values per tax partition.
type StatusTotals struct {
	NonRetirement decimal.Decimal `json:"non_retirement"`
	PreTax        decimal.Decimal `json:"pre_tax"`
	AfterTax      decimal.Decimal `json:"after_tax"`
}

// Add accumulates v into the partition for status.
func (t *StatusTotals) Add(status TaxStatus, v decimal.Decimal) {
	switch status {
	case TaxStatusNonRetirement:
		t.NonRetirement = t.NonRetirement.Add(v)
	case TaxStatusPreTax:
		t.PreTax = t.PreTax.Add(v)
	case TaxStatusAfterTax:
		t.AfterTax = t.AfterTax.Add(v)
	}
}

// YearResult is the end-of-year snapshot of one trajectory.
type YearResult struct {
	Year      int  `json:"year"`
	UserAge   int  `json:"user_age"`
	SpouseAge int  `json:"spouse_age,omitempty"`
	GoalMet   bool `json:"goal_met"`

	Investments      []InvestmentBalance `json:"investments"`
	ByTaxStatus      StatusTotals        `json:"by_tax_status"`
	TotalInvestments decimal.Decimal     `json:"total_investments"`
	Cash             decimal.Decimal     `json:"cash"`

	Income      []NamedAmount   `json:"income"`
	TotalIncome decimal.Decimal `json:"total_income"`

	Expenses              []NamedAmount   `json:"expenses"`
	MandatoryExpenses     decimal.Decimal `json:"mandatory_expenses"`
	DiscretionaryExpenses decimal.Decimal `json:"discretionary_expenses"`
	DiscretionaryPercent  decimal.Decimal `json:"discretionary_percent"`
	Taxes                 decimal.Decimal `json:"taxes"`
	EarlyWithdrawalTax    decimal.Decimal `json:"early_withdrawal_tax"`
	TotalExpenses         decimal.Decimal `json:"total_expenses"`
	Shortfall             decimal.Decimal `json:"shortfall"`

	RMD                   decimal.Decimal `json:"rmd"`
	RothConversion        decimal.Decimal `json:"roth_conversion"`
	CapitalGains          decimal.Decimal `json:"capital_gains"`
	EarlyWithdrawals      decimal.Decimal `json:"early_withdrawals"`
	AfterTaxContributions decimal.Decimal `json:"after_tax_contributions"`
}

// TrajectoryResult is the full year series of one simulated trajectory.
type TrajectoryResult struct {
	Index int          `json:"index"`
	Seed  int64        `json:"seed"`
	Years []YearResult `json:"years"`
}

// QuantityStats summarizes one tracked quantity across trajectories in a year.
// The P-fields bound the 10-90, 20-80, 30-70 and 40-60 bands.
type QuantityStats struct {
	Median  decimal.Decimal `json:"median"`
	Average decimal.Decimal `json:"average"`
	P10     decimal.Decimal `json:"p10"`
	P20     decimal.Decimal `json:"p20"`
	P30     decimal.Decimal `json:"p30"`
	P40     decimal.Decimal `json:"p40"`
	P60     decimal.Decimal `json:"p60"`
	P70     decimal.Decimal `json:"p70"`
	P80     decimal.Decimal `json:"p80"`
	P90     decimal.Decimal `json:"p90"`
}

// YearAggregate is the cross-trajectory summary of one calendar year.
type YearAggregate struct {
	Year                 int             `json:"year"`
	Trajectories         int             `json:"trajectories"`
	SuccessProbability   decimal.Decimal `json:"success_probability"`
	TotalInvestments     QuantityStats   `json:"total_investments"`
	TotalIncome          QuantityStats   `json:"total_income"`
	TotalExpenses        QuantityStats   `json:"total_expenses"`
	EarlyWithdrawalTax   QuantityStats   `json:"early_withdrawal_tax"`
	DiscretionaryPercent QuantityStats   `json:"discretionary_percent"`
}

// AggregatedResult is the year-indexed reduction of a run.
type AggregatedResult struct {
	StartYear int             `json:"start_year"`
	EndYear   int             `json:"end_year"`
	Years     []YearAggregate `json:"years"`
}

// SimulationResult is the output of one engine run.
type SimulationResult struct {
	RunID           string             `json:"run_id"`
	Scenario        string             `json:"scenario"`
	Seed            int64              `json:"seed"`
	NumTrajectories int                `json:"num_trajectories"`
	StartedAt       time.Time          `json:"started_at"`
	Duration        time.Duration      `json:"duration"`
	Aggregated      AggregatedResult   `json:"aggregated"`
	Trajectories    []TrajectoryResult `json:"trajectories,omitempty"`
}
